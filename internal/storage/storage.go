// Package storage builds the repository selected by configuration.
package storage

import (
	"time"

	boltdbrepository "github.com/SystemBuilders/MigrationLock/internal/storage/boltdb"
	"github.com/SystemBuilders/MigrationLock/internal/storage/breaker"
	etcdrepository "github.com/SystemBuilders/MigrationLock/internal/storage/etcd"
	measuredrepository "github.com/SystemBuilders/MigrationLock/internal/storage/measured"
	"github.com/SystemBuilders/MigrationLock/internal/storage/memory"
	pgsqlrepository "github.com/SystemBuilders/MigrationLock/internal/storage/pgsql"
	redisrepository "github.com/SystemBuilders/MigrationLock/internal/storage/redis"
	"github.com/SystemBuilders/MigrationLock/internal/storage/repository"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Storage types.
const (
	MemoryType = "memory"
	BoltDBType = "boltdb"
	PgSQLType  = "pgsql"
	RedisType  = "redis"
	EtcdType   = "etcd"
)

// Config contains storage configuration.
type Config struct {
	Type    string                  `fig:"type" default:"memory"`
	LockTTL time.Duration           `fig:"lock_ttl" default:"15m"`
	DataTTL time.Duration           `fig:"data_ttl" default:"24h"`
	Memory  memory.Config           `fig:"memory"`
	BoltDB  boltdbrepository.Config `fig:"boltdb"`
	PgSQL   pgsqlrepository.Config  `fig:"pgsql"`
	Redis   redisrepository.Config  `fig:"redis"`
	Etcd    etcdrepository.Config   `fig:"etcd"`
	Breaker breaker.Config          `fig:"breaker"`
}

// New returns the repository of the configured type, guarded by a circuit
// breaker and measured. The repository must be started before use.
func New(cfg Config, log zerolog.Logger) (repository.Repository, error) {
	log = log.With().Str("storage", cfg.Type).Logger()

	var rep repository.Repository
	switch cfg.Type {
	case MemoryType:
		rep = memory.New(cfg.Memory, cfg.LockTTL, cfg.DataTTL, log)
	case BoltDBType:
		rep = boltdbrepository.New(cfg.BoltDB, cfg.LockTTL, cfg.DataTTL, log)
	case PgSQLType:
		rep = pgsqlrepository.New(cfg.PgSQL, cfg.LockTTL, cfg.DataTTL, log)
	case RedisType:
		rep = redisrepository.New(cfg.Redis, cfg.LockTTL, cfg.DataTTL, log)
	case EtcdType:
		rep = etcdrepository.New(cfg.Etcd, cfg.LockTTL, cfg.DataTTL, log)
	default:
		return nil, errors.Errorf("storage: unrecognized storage type: %s", cfg.Type)
	}
	return measuredrepository.New(breaker.New(cfg.Breaker, rep, log)), nil
}
