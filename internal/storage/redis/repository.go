// Package redisrepository implements a repository on Redis. Lock
// operations that touch both the scheme and the holder keys run as Lua
// scripts, so Redis applies each of them atomically.
package redisrepository

import (
	"context"
	"time"

	"github.com/SystemBuilders/MigrationLock/internal/lockservice"
	"github.com/SystemBuilders/MigrationLock/internal/migrationdata"
	"github.com/SystemBuilders/MigrationLock/internal/storage/repository"
	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

var _ repository.Repository = (*Repository)(nil)

// Config contains Redis configuration values.
type Config struct {
	Addr         string        `fig:"addr" default:"localhost:6379"`
	Username     string        `fig:"username"`
	Password     string        `fig:"password"`
	DB           int           `fig:"db"`
	DialTimeout  time.Duration `fig:"dial_timeout" default:"3s"`
	ReadTimeout  time.Duration `fig:"read_timeout" default:"5s"`
	WriteTimeout time.Duration `fig:"write_timeout" default:"5s"`
	KeyPrefix    string        `fig:"key_prefix" default:"migrationlock"`
}

// Repository is Redis repository implementation.
type Repository struct {
	client  *redis.Client
	prefix  string
	lockTTL time.Duration
	dataTTL time.Duration
	log     zerolog.Logger
}

// New creates and returns an initialized Redis Repository instance.
func New(cfg Config, lockTTL, dataTTL time.Duration, log zerolog.Logger) *Repository {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	return newRepository(client, cfg.KeyPrefix, lockTTL, dataTTL, log)
}

func newRepository(client *redis.Client, prefix string, lockTTL, dataTTL time.Duration, log zerolog.Logger) *Repository {
	return &Repository{
		client:  client,
		prefix:  prefix,
		lockTTL: lockTTL,
		dataTTL: dataTTL,
		log:     log,
	}
}

// Start checks the Redis connection.
func (r *Repository) Start(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return errors.Wrap(err, "redisrepository: unable to verify Redis connection")
	}
	r.log.Info().Str("addr", r.client.Options().Addr).Msg("dialed Redis connection")
	return nil
}

// Stop closes the Redis client.
func (r *Repository) Stop(_ context.Context) error {
	if err := r.client.Close(); err != nil {
		return errors.Wrap(err, "redisrepository: failed to close Redis connection")
	}
	r.log.Info().Str("addr", r.client.Options().Addr).Msg("closed Redis connection")
	return nil
}

// LockByScheme satisfies lockservice.LockStore interface.
func (r *Repository) LockByScheme(ctx context.Context, pstr string) (*lockservice.MigrationLock, error) {
	return r.fetchScheme(ctx, pstr)
}

// LockByIdentity satisfies lockservice.LockStore interface.
func (r *Repository) LockByIdentity(ctx context.Context, credID string) (*lockservice.MigrationLock, error) {
	fields, err := lockByIdentityScript.Run(ctx, r.client, []string{r.holderKey(credID)}, r.prefix, credID).StringSlice()
	switch {
	case err == nil:
		return lockservice.NewMigrationLock(fields[0], fields[1], fields[2]), nil
	case errors.Is(err, redis.Nil):
		return nil, nil
	default:
		return nil, err
	}
}

// ExactLock satisfies lockservice.LockStore interface.
func (r *Repository) ExactLock(ctx context.Context, want *lockservice.MigrationLock) (*lockservice.MigrationLock, error) {
	lock, err := r.fetchScheme(ctx, want.Pstr)
	if err != nil || lock == nil || !lock.Matches(want) {
		return nil, err
	}
	return lock, nil
}

// SetLock satisfies lockservice.LockStore interface.
func (r *Repository) SetLock(ctx context.Context, lock *lockservice.MigrationLock) error {
	return setLockScript.Run(
		ctx,
		r.client,
		[]string{r.schemeKey(lock.Pstr), r.holderKey(lock.CredID)},
		r.prefix, lock.Pstr, lock.CredID, lock.PsaID, r.lockTTL.Milliseconds(),
	).Err()
}

// ReleaseByScheme satisfies lockservice.LockStore interface.
func (r *Repository) ReleaseByScheme(ctx context.Context, pstr string) error {
	return releaseBySchemeScript.Run(ctx, r.client, []string{r.schemeKey(pstr)}, r.prefix, pstr).Err()
}

// ReleaseByIdentity satisfies lockservice.LockStore interface.
func (r *Repository) ReleaseByIdentity(ctx context.Context, credID string) error {
	return releaseByIdentityScript.Run(ctx, r.client, []string{r.holderKey(credID)}, r.prefix, credID).Err()
}

// ReleaseExact satisfies lockservice.LockStore interface.
func (r *Repository) ReleaseExact(ctx context.Context, lock *lockservice.MigrationLock) error {
	return releaseExactScript.Run(
		ctx,
		r.client,
		[]string{r.schemeKey(lock.Pstr), r.holderKey(lock.CredID)},
		lock.Pstr, lock.CredID,
	).Err()
}

// FetchData satisfies migrationdata.Store interface.
func (r *Repository) FetchData(ctx context.Context, pstr, credID string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.dataKey(pstr, credID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// UpsertData satisfies migrationdata.Store interface.
func (r *Repository) UpsertData(ctx context.Context, rec *migrationdata.Record) error {
	return r.client.Set(ctx, r.dataKey(rec.Pstr, rec.CredID), rec.Data, r.dataTTL).Err()
}

// DeleteData satisfies migrationdata.Store interface.
func (r *Repository) DeleteData(ctx context.Context, pstr, credID string) error {
	return r.client.Del(ctx, r.dataKey(pstr, credID)).Err()
}

func (r *Repository) fetchScheme(ctx context.Context, pstr string) (*lockservice.MigrationLock, error) {
	fields, err := r.client.HGetAll(ctx, r.schemeKey(pstr)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return lockservice.NewMigrationLock(fields["pstr"], fields["credId"], fields["psaId"]), nil
}

func (r *Repository) schemeKey(pstr string) string {
	return r.prefix + ":scheme:" + pstr
}

func (r *Repository) holderKey(credID string) string {
	return r.prefix + ":holder:" + credID
}

func (r *Repository) dataKey(pstr, credID string) string {
	return r.prefix + ":data:" + migrationdata.Key{Pstr: pstr, CredID: credID}.String()
}
