// Package breaker guards a repository with a circuit breaker, so a
// failing store is reported as unavailable right away instead of making
// every request wait on it.
package breaker

import (
	"context"
	"errors"
	"time"

	"github.com/SystemBuilders/MigrationLock/internal/lockservice"
	"github.com/SystemBuilders/MigrationLock/internal/migrationdata"
	"github.com/SystemBuilders/MigrationLock/internal/storage/repository"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

var _ repository.Repository = (*Breaker)(nil)

// Config contains circuit breaker configuration values.
type Config struct {
	MaxRequests         uint32        `fig:"max_requests" default:"1"`
	Interval            time.Duration `fig:"interval"`
	Timeout             time.Duration `fig:"timeout" default:"30s"`
	ConsecutiveFailures uint32        `fig:"consecutive_failures" default:"5"`
}

// Breaker is a circuit breaking Repository implementation. Calls are never
// retried; an open breaker fails them with gobreaker.ErrOpenState.
type Breaker struct {
	rep repository.Repository
	cb  *gobreaker.CircuitBreaker
}

// New returns a Breaker wrapping rep.
func New(cfg Config, rep repository.Repository, log zerolog.Logger) *Breaker {
	failures := cfg.ConsecutiveFailures
	if failures == 0 {
		failures = 5
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "repository",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.
				Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
		// a canceled request says nothing about the health of the store
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return &Breaker{rep: rep, cb: cb}
}

// State returns the current state of the breaker.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// Start initializes repository.
func (b *Breaker) Start(ctx context.Context) error {
	return b.rep.Start(ctx)
}

// Stop releases all underlying repository resources.
func (b *Breaker) Stop(ctx context.Context) error {
	return b.rep.Stop(ctx)
}

func (b *Breaker) fetchLock(f func() (*lockservice.MigrationLock, error)) (*lockservice.MigrationLock, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return f()
	})
	if err != nil {
		return nil, err
	}
	lock, _ := res.(*lockservice.MigrationLock)
	return lock, nil
}

func (b *Breaker) exec(f func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, f()
	})
	return err
}

// LockByScheme satisfies lockservice.LockStore interface.
func (b *Breaker) LockByScheme(ctx context.Context, pstr string) (*lockservice.MigrationLock, error) {
	return b.fetchLock(func() (*lockservice.MigrationLock, error) {
		return b.rep.LockByScheme(ctx, pstr)
	})
}

// LockByIdentity satisfies lockservice.LockStore interface.
func (b *Breaker) LockByIdentity(ctx context.Context, credID string) (*lockservice.MigrationLock, error) {
	return b.fetchLock(func() (*lockservice.MigrationLock, error) {
		return b.rep.LockByIdentity(ctx, credID)
	})
}

// ExactLock satisfies lockservice.LockStore interface.
func (b *Breaker) ExactLock(ctx context.Context, lock *lockservice.MigrationLock) (*lockservice.MigrationLock, error) {
	return b.fetchLock(func() (*lockservice.MigrationLock, error) {
		return b.rep.ExactLock(ctx, lock)
	})
}

// SetLock satisfies lockservice.LockStore interface.
func (b *Breaker) SetLock(ctx context.Context, lock *lockservice.MigrationLock) error {
	return b.exec(func() error { return b.rep.SetLock(ctx, lock) })
}

// ReleaseByScheme satisfies lockservice.LockStore interface.
func (b *Breaker) ReleaseByScheme(ctx context.Context, pstr string) error {
	return b.exec(func() error { return b.rep.ReleaseByScheme(ctx, pstr) })
}

// ReleaseByIdentity satisfies lockservice.LockStore interface.
func (b *Breaker) ReleaseByIdentity(ctx context.Context, credID string) error {
	return b.exec(func() error { return b.rep.ReleaseByIdentity(ctx, credID) })
}

// ReleaseExact satisfies lockservice.LockStore interface.
func (b *Breaker) ReleaseExact(ctx context.Context, lock *lockservice.MigrationLock) error {
	return b.exec(func() error { return b.rep.ReleaseExact(ctx, lock) })
}

// FetchData satisfies migrationdata.Store interface.
func (b *Breaker) FetchData(ctx context.Context, pstr, credID string) ([]byte, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.rep.FetchData(ctx, pstr, credID)
	})
	if err != nil {
		return nil, err
	}
	data, _ := res.([]byte)
	return data, nil
}

// UpsertData satisfies migrationdata.Store interface.
func (b *Breaker) UpsertData(ctx context.Context, rec *migrationdata.Record) error {
	return b.exec(func() error { return b.rep.UpsertData(ctx, rec) })
}

// DeleteData satisfies migrationdata.Store interface.
func (b *Breaker) DeleteData(ctx context.Context, pstr, credID string) error {
	return b.exec(func() error { return b.rep.DeleteData(ctx, pstr, credID) })
}
