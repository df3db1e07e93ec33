// Package pgsql implements a repository on PostgreSQL, so that several
// service instances can share the same lock table.
package pgsql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/SystemBuilders/MigrationLock/internal/lockservice"
	"github.com/SystemBuilders/MigrationLock/internal/migrationdata"
	"github.com/SystemBuilders/MigrationLock/internal/storage/repository"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

func init() {
	sq.StatementBuilder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

var _ repository.Repository = (*Repository)(nil)

type conn interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Config contains PgSQL configuration value.
type Config struct {
	Host            string        `fig:"host" default:"localhost:5432"`
	User            string        `fig:"user"`
	Password        string        `fig:"password"`
	Database        string        `fig:"database" default:"migrationlock"`
	SSLMode         string        `fig:"ssl_mode" default:"disable"`
	MaxOpenConns    int           `fig:"max_open_conns"`
	MaxIdleConns    int           `fig:"max_idle_conns"`
	ConnMaxLifetime time.Duration `fig:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `fig:"conn_max_idle_time"`
	// SweepInterval is the period of the expired rows sweep. Zero disables it.
	SweepInterval time.Duration `fig:"sweep_interval" default:"1m"`
}

// Repository represents a PgSQL repository implementation.
type Repository struct {
	lockservice.LockStore
	migrationdata.Store

	host    string
	dsn     string
	cfg     Config
	lockTTL time.Duration
	dataTTL time.Duration

	db  *sql.DB
	log zerolog.Logger

	stopSweep context.CancelFunc
	swept     chan struct{}
}

// New creates and returns an initialized PgSQL Repository instance.
func New(cfg Config, lockTTL, dataTTL time.Duration, log zerolog.Logger) *Repository {
	dsn := fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=%s", cfg.User, cfg.Password, cfg.Host, cfg.Database, cfg.SSLMode)
	return &Repository{
		host:    cfg.Host,
		dsn:     dsn,
		cfg:     cfg,
		lockTTL: lockTTL,
		dataTTL: dataTTL,
		log:     log,
	}
}

// Start implements Start interface method.
func (r *Repository) Start(ctx context.Context) error {
	db, err := sql.Open("postgres", r.dsn)
	if err != nil {
		return errors.Wrap(err, "pgsql: failed to start PgSQL connection")
	}
	r.db = db

	db.SetMaxIdleConns(r.cfg.MaxIdleConns)
	db.SetMaxOpenConns(r.cfg.MaxOpenConns)
	db.SetConnMaxIdleTime(r.cfg.ConnMaxIdleTime)
	db.SetConnMaxLifetime(r.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		return errors.Wrap(err, "pgsql: unable to verify PgSQL connection")
	}
	r.log.Info().Str("host", r.host).Msg("dialed PgSQL connection")

	r.LockStore = &pgSQLLockRep{db: db, ttl: r.lockTTL, now: time.Now, log: r.log}
	r.Store = &pgSQLDataRep{conn: db, ttl: r.dataTTL, now: time.Now}

	if r.cfg.SweepInterval > 0 {
		sweepCtx, cancel := context.WithCancel(context.Background())
		r.stopSweep = cancel
		r.swept = make(chan struct{})
		s := &sweeper{conn: db, now: time.Now, log: r.log}
		go s.run(sweepCtx, r.cfg.SweepInterval, r.swept)
	}
	return nil
}

// Stop closes PgSQL database and prevents new queries from starting.
func (r *Repository) Stop(_ context.Context) error {
	if r.db == nil {
		return nil
	}
	if r.stopSweep != nil {
		r.stopSweep()
		<-r.swept
		r.stopSweep = nil
	}
	if err := r.db.Close(); err != nil {
		return errors.Wrap(err, "pgsql: failed to close PgSQL connection")
	}
	r.log.Info().Str("host", r.host).Msg("closed PgSQL connection")
	return nil
}

// inTransaction runs f within a PgSQL transaction and commits it when f succeeds.
func inTransaction(ctx context.Context, db *sql.DB, log zerolog.Logger, f func(tx conn) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := f(tx); err != nil {
		if err := tx.Rollback(); err != nil {
			log.Warn().Err(err).Msg("failed to rollback PgSQL transaction")
		}
		return err
	}
	return tx.Commit()
}

// liveAt matches the rows that haven't expired at now. A NULL expiry never expires.
func liveAt(now time.Time) sq.Sqlizer {
	return sq.Or{sq.Eq{"expire_at": nil}, sq.Gt{"expire_at": now}}
}

func expireAt(now time.Time, ttl time.Duration) interface{} {
	if ttl <= 0 {
		return nil
	}
	return now.Add(ttl)
}
