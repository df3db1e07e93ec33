// Package memory implements an in-process repository. Locks are only
// consistent within one process, so it suits a single instance deployment
// and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/SystemBuilders/MigrationLock/internal/cache"
	"github.com/SystemBuilders/MigrationLock/internal/lockservice"
	"github.com/SystemBuilders/MigrationLock/internal/migrationdata"
	"github.com/SystemBuilders/MigrationLock/internal/storage/repository"
	"github.com/rs/zerolog"
)

var _ repository.Repository = (*Repository)(nil)

// Config contains the in-memory repository configuration.
type Config struct {
	DataCapacity int `fig:"data_capacity" default:"10000"`
	// SweepInterval is the period of the expired lock sweep. Zero disables it.
	SweepInterval time.Duration `fig:"sweep_interval" default:"1m"`
}

type lockEntry struct {
	lock     lockservice.MigrationLock
	expireAt time.Time
}

// SafeLockMap is the repository's lock data structure. Both indexes are
// guarded by the same mutex so every operation sees them consistent.
type SafeLockMap struct {
	ByScheme map[string]lockEntry
	ByHolder map[string]string
	Mutex    sync.Mutex
}

// Repository is an in-memory repository.
type Repository struct {
	cfg     Config
	log     zerolog.Logger
	lockTTL time.Duration
	dataTTL time.Duration
	lockMap *SafeLockMap
	data    *cache.LRUCache
	now     func() time.Time
	cancel  context.CancelFunc
	done    chan struct{}
}

// New returns a new in-memory repository. A zero ttl never expires.
func New(cfg Config, lockTTL, dataTTL time.Duration, log zerolog.Logger) *Repository {
	r := &Repository{
		cfg:     cfg,
		log:     log,
		lockTTL: lockTTL,
		dataTTL: dataTTL,
		lockMap: &SafeLockMap{
			ByScheme: make(map[string]lockEntry),
			ByHolder: make(map[string]string),
		},
		now: time.Now,
	}
	r.data = cache.NewLRUCacheWithClock(cfg.DataCapacity, func() time.Time { return r.now() })
	return r
}

// Start satisfies repository.Repository interface.
func (r *Repository) Start(_ context.Context) error {
	if r.cfg.SweepInterval > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		r.cancel = cancel
		r.done = make(chan struct{})
		go r.sweepLoop(ctx)
	}
	r.log.Info().Msg("started in-memory repository")
	return nil
}

// Stop satisfies repository.Repository interface.
func (r *Repository) Stop(_ context.Context) error {
	if r.cancel != nil {
		r.cancel()
		<-r.done
		r.cancel = nil
	}
	r.log.Info().Msg("stopped in-memory repository")
	return nil
}

func (r *Repository) sweepLoop(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.SweepExpired(); n > 0 {
				r.log.Debug().Int("count", n).Msg("swept expired locks")
			}
		}
	}
}

// SweepExpired drops every expired lock and returns how many were dropped.
func (r *Repository) SweepExpired() int {
	r.lockMap.Mutex.Lock()
	defer r.lockMap.Mutex.Unlock()

	n := 0
	for pstr, e := range r.lockMap.ByScheme {
		if !r.live(e) {
			r.releaseScheme(pstr)
			n++
		}
	}
	return n
}

func (r *Repository) expireAt(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return r.now().Add(ttl)
}

func (r *Repository) live(e lockEntry) bool {
	return e.expireAt.IsZero() || r.now().Before(e.expireAt)
}

// schemeLock returns the live lock on pstr, dropping it once expired.
// Must be called with the mutex held.
func (r *Repository) schemeLock(pstr string) (*lockservice.MigrationLock, bool) {
	e, ok := r.lockMap.ByScheme[pstr]
	if !ok {
		return nil, false
	}
	if !r.live(e) {
		r.releaseScheme(pstr)
		return nil, false
	}
	lock := e.lock
	return &lock, true
}

// LockByScheme satisfies lockservice.LockStore interface.
func (r *Repository) LockByScheme(_ context.Context, pstr string) (*lockservice.MigrationLock, error) {
	r.lockMap.Mutex.Lock()
	defer r.lockMap.Mutex.Unlock()

	lock, _ := r.schemeLock(pstr)
	return lock, nil
}

// LockByIdentity satisfies lockservice.LockStore interface.
func (r *Repository) LockByIdentity(_ context.Context, credID string) (*lockservice.MigrationLock, error) {
	r.lockMap.Mutex.Lock()
	defer r.lockMap.Mutex.Unlock()

	pstr, ok := r.lockMap.ByHolder[credID]
	if !ok {
		return nil, nil
	}
	lock, ok := r.schemeLock(pstr)
	if !ok || lock.CredID != credID {
		return nil, nil
	}
	return lock, nil
}

// ExactLock satisfies lockservice.LockStore interface.
func (r *Repository) ExactLock(_ context.Context, want *lockservice.MigrationLock) (*lockservice.MigrationLock, error) {
	r.lockMap.Mutex.Lock()
	defer r.lockMap.Mutex.Unlock()

	lock, ok := r.schemeLock(want.Pstr)
	if !ok || !lock.Matches(want) {
		return nil, nil
	}
	return lock, nil
}

// SetLock satisfies lockservice.LockStore interface.
func (r *Repository) SetLock(_ context.Context, lock *lockservice.MigrationLock) error {
	r.lockMap.Mutex.Lock()
	defer r.lockMap.Mutex.Unlock()

	// the holder gives up the lock it has on another scheme
	if prev, ok := r.lockMap.ByHolder[lock.CredID]; ok && prev != lock.Pstr {
		if e, ok := r.lockMap.ByScheme[prev]; ok && e.lock.CredID == lock.CredID {
			delete(r.lockMap.ByScheme, prev)
		}
	}
	// the previous holder of this scheme loses it
	if e, ok := r.lockMap.ByScheme[lock.Pstr]; ok && e.lock.CredID != lock.CredID {
		if r.lockMap.ByHolder[e.lock.CredID] == lock.Pstr {
			delete(r.lockMap.ByHolder, e.lock.CredID)
		}
	}
	r.lockMap.ByScheme[lock.Pstr] = lockEntry{lock: *lock, expireAt: r.expireAt(r.lockTTL)}
	r.lockMap.ByHolder[lock.CredID] = lock.Pstr
	return nil
}

// ReleaseByScheme satisfies lockservice.LockStore interface.
func (r *Repository) ReleaseByScheme(_ context.Context, pstr string) error {
	r.lockMap.Mutex.Lock()
	defer r.lockMap.Mutex.Unlock()

	r.releaseScheme(pstr)
	return nil
}

// ReleaseByIdentity satisfies lockservice.LockStore interface.
func (r *Repository) ReleaseByIdentity(_ context.Context, credID string) error {
	r.lockMap.Mutex.Lock()
	defer r.lockMap.Mutex.Unlock()

	pstr, ok := r.lockMap.ByHolder[credID]
	if !ok {
		return nil
	}
	delete(r.lockMap.ByHolder, credID)
	if e, ok := r.lockMap.ByScheme[pstr]; ok && e.lock.CredID == credID {
		delete(r.lockMap.ByScheme, pstr)
	}
	return nil
}

// ReleaseExact satisfies lockservice.LockStore interface.
func (r *Repository) ReleaseExact(_ context.Context, lock *lockservice.MigrationLock) error {
	r.lockMap.Mutex.Lock()
	defer r.lockMap.Mutex.Unlock()

	// only the entity that posseses the lock is allowed to release it
	if e, ok := r.lockMap.ByScheme[lock.Pstr]; ok && e.lock.Matches(lock) {
		r.releaseScheme(lock.Pstr)
	}
	return nil
}

// releaseScheme drops the lock on pstr and its holder index.
// Must be called with the mutex held.
func (r *Repository) releaseScheme(pstr string) {
	e, ok := r.lockMap.ByScheme[pstr]
	if !ok {
		return
	}
	delete(r.lockMap.ByScheme, pstr)
	if r.lockMap.ByHolder[e.lock.CredID] == pstr {
		delete(r.lockMap.ByHolder, e.lock.CredID)
	}
}

// FetchData satisfies migrationdata.Store interface.
func (r *Repository) FetchData(_ context.Context, pstr, credID string) ([]byte, error) {
	v, err := r.data.GetElement(migrationdata.Key{Pstr: pstr, CredID: credID}.String())
	switch err {
	case nil:
		return v, nil
	case cache.ErrElementDoesntExist:
		return nil, nil
	default:
		return nil, err
	}
}

// UpsertData satisfies migrationdata.Store interface.
func (r *Repository) UpsertData(_ context.Context, rec *migrationdata.Record) error {
	key := migrationdata.Key{Pstr: rec.Pstr, CredID: rec.CredID}.String()
	return r.data.PutElement(key, append([]byte(nil), rec.Data...), r.expireAt(r.dataTTL))
}

// DeleteData satisfies migrationdata.Store interface.
func (r *Repository) DeleteData(_ context.Context, pstr, credID string) error {
	err := r.data.RemoveElement(migrationdata.Key{Pstr: pstr, CredID: credID}.String())
	if err != nil && err != cache.ErrElementDoesntExist {
		return err
	}
	return nil
}
