// Package boltdb implements a repository on a single BoltDB file. Every
// lock operation runs in one BoltDB transaction, which makes it atomic
// for all the goroutines of the process that owns the file.
package boltdb

import (
	"context"
	"time"

	"github.com/SystemBuilders/MigrationLock/internal/storage/repository"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	bolt "go.etcd.io/bbolt"
)

var _ repository.Repository = (*Repository)(nil)

const (
	locksBucket   = "locks"
	holdersBucket = "holders"
	dataBucket    = "migration_data"
)

// Config contains BoltDB configuration value.
type Config struct {
	Path string `fig:"path" default:".migrationlock.db"`
}

// Repository represents a BoltDB repository implementation.
type Repository struct {
	cfg     Config
	lockTTL time.Duration
	dataTTL time.Duration
	now     func() time.Time

	db  *bolt.DB
	log zerolog.Logger
}

// New creates and returns an initialized BoltDB Repository instance.
// A zero ttl never expires.
func New(cfg Config, lockTTL, dataTTL time.Duration, log zerolog.Logger) *Repository {
	return &Repository{
		cfg:     cfg,
		lockTTL: lockTTL,
		dataTTL: dataTTL,
		now:     time.Now,
		log:     log,
	}
}

// Start opens the BoltDB file and creates the buckets.
func (r *Repository) Start(_ context.Context) error {
	db, err := bolt.Open(r.cfg.Path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return errors.Wrap(err, "boltdb: failed to open database")
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range []string{locksBucket, holdersBucket, dataBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(b)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return errors.Wrap(err, "boltdb: failed to create buckets")
	}
	r.db = db

	r.log.Info().Str("path", r.cfg.Path).Msg("started BoltDB repository")
	return nil
}

// Stop closes BoltDB database.
func (r *Repository) Stop(_ context.Context) error {
	if r.db == nil {
		return nil
	}
	if err := r.db.Close(); err != nil {
		return errors.Wrap(err, "boltdb: failed to close database")
	}
	r.log.Info().Str("path", r.cfg.Path).Msg("stopped BoltDB repository")
	return nil
}

func (r *Repository) expireAt(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return r.now().Add(ttl).UnixNano()
}

func live(expireAt int64, now time.Time) bool {
	return expireAt == 0 || now.UnixNano() < expireAt
}
