// Package etcd implements a repository on an etcd cluster. Lock
// operations run as software transactions, and lock expiry is delegated
// to etcd leases.
package etcd

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/SystemBuilders/MigrationLock/internal/lockservice"
	"github.com/SystemBuilders/MigrationLock/internal/migrationdata"
	"github.com/SystemBuilders/MigrationLock/internal/storage/repository"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	v3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"
)

var _ repository.Repository = (*Repository)(nil)

// Config contains etcd configuration values.
type Config struct {
	Endpoints   []string      `fig:"endpoints" default:"[localhost:2379]"`
	Username    string        `fig:"username"`
	Password    string        `fig:"password"`
	DialTimeout time.Duration `fig:"dial_timeout" default:"5s"`
	Prefix      string        `fig:"prefix" default:"/migrationlock"`
}

// Repository is the etcd repository implementation.
type Repository struct {
	cfg     Config
	client  *v3.Client
	prefix  string
	lockTTL time.Duration
	dataTTL time.Duration
	log     zerolog.Logger
}

// New returns an etcd Repository that dials the cluster on Start.
func New(cfg Config, lockTTL, dataTTL time.Duration, log zerolog.Logger) *Repository {
	return &Repository{
		cfg:     cfg,
		prefix:  cfg.Prefix,
		lockTTL: lockTTL,
		dataTTL: dataTTL,
		log:     log,
	}
}

// NewWithClient returns an etcd Repository on an already connected client.
func NewWithClient(client *v3.Client, prefix string, lockTTL, dataTTL time.Duration, log zerolog.Logger) *Repository {
	return &Repository{
		client:  client,
		prefix:  prefix,
		lockTTL: lockTTL,
		dataTTL: dataTTL,
		log:     log,
	}
}

// Start dials the etcd cluster and verifies the connection.
func (r *Repository) Start(ctx context.Context) error {
	if r.client == nil {
		client, err := v3.New(v3.Config{
			Endpoints:   r.cfg.Endpoints,
			Username:    r.cfg.Username,
			Password:    r.cfg.Password,
			DialTimeout: r.cfg.DialTimeout,
		})
		if err != nil {
			return errors.Wrap(err, "etcd: failed to create v3 client")
		}
		r.client = client
	}
	ctx, cancel := context.WithTimeout(ctx, r.dialTimeout())
	defer cancel()

	if _, err := r.client.Get(ctx, r.prefix+"/__startup_test"); err != nil {
		return errors.Wrap(err, "etcd: unable to verify connection")
	}
	r.log.Info().Strs("endpoints", r.client.Endpoints()).Msg("dialed etcd connection")
	return nil
}

// Stop closes the etcd client.
func (r *Repository) Stop(_ context.Context) error {
	if r.client == nil {
		return nil
	}
	if err := r.client.Close(); err != nil {
		return errors.Wrap(err, "etcd: failed to close client")
	}
	r.log.Info().Msg("closed etcd connection")
	return nil
}

// lockValue is the stored form of a lock. Lease is the lease shared by the
// scheme and holder keys of the lock, revoked once both are gone.
type lockValue struct {
	Pstr   string     `json:"pstr"`
	CredID string     `json:"credId"`
	PsaID  string     `json:"psaId"`
	Lease  v3.LeaseID `json:"lease,omitempty"`
}

func (v *lockValue) lock() *lockservice.MigrationLock {
	if v == nil {
		return nil
	}
	return lockservice.NewMigrationLock(v.Pstr, v.CredID, v.PsaID)
}

// LockByScheme satisfies lockservice.LockStore interface.
func (r *Repository) LockByScheme(ctx context.Context, pstr string) (*lockservice.MigrationLock, error) {
	resp, err := r.client.Get(ctx, r.schemeKey(pstr))
	if err != nil {
		return nil, err
	}
	if len(resp.Kvs) == 0 {
		return nil, nil
	}
	return decodeLock(string(resp.Kvs[0].Value))
}

// LockByIdentity satisfies lockservice.LockStore interface.
func (r *Repository) LockByIdentity(ctx context.Context, credID string) (lock *lockservice.MigrationLock, err error) {
	_, err = concurrency.NewSTM(r.client, func(stm concurrency.STM) error {
		lock = nil
		pstr := stm.Get(r.holderKey(credID))
		if pstr == "" {
			return nil
		}
		l, err := decodeLock(stm.Get(r.schemeKey(pstr)))
		if err != nil {
			return err
		}
		if l != nil && l.CredID == credID {
			lock = l
		}
		return nil
	}, concurrency.WithAbortContext(ctx))
	return
}

// ExactLock satisfies lockservice.LockStore interface.
func (r *Repository) ExactLock(ctx context.Context, want *lockservice.MigrationLock) (*lockservice.MigrationLock, error) {
	lock, err := r.LockByScheme(ctx, want.Pstr)
	if err != nil || lock == nil || !lock.Matches(want) {
		return nil, err
	}
	return lock, nil
}

// SetLock satisfies lockservice.LockStore interface.
func (r *Repository) SetLock(ctx context.Context, lock *lockservice.MigrationLock) error {
	var (
		opts  []v3.OpOption
		lease v3.LeaseID
	)
	if r.lockTTL > 0 {
		resp, err := r.client.Grant(ctx, leaseSeconds(r.lockTTL))
		if err != nil {
			return err
		}
		lease = resp.ID
		opts = append(opts, v3.WithLease(lease))
	}
	b, err := json.Marshal(&lockValue{Pstr: lock.Pstr, CredID: lock.CredID, PsaID: lock.PsaID, Lease: lease})
	if err != nil {
		r.revoke(ctx, lease)
		return err
	}
	var stale []v3.LeaseID
	_, err = concurrency.NewSTM(r.client, func(stm concurrency.STM) error {
		stale = stale[:0]
		holderKey := r.holderKey(lock.CredID)
		schemeKey := r.schemeKey(lock.Pstr)

		if prev := stm.Get(holderKey); prev != "" && prev != lock.Pstr {
			prevLock, err := decodeLockValue(stm.Get(r.schemeKey(prev)))
			if err != nil {
				return err
			}
			if prevLock != nil && prevLock.CredID == lock.CredID {
				stm.Del(r.schemeKey(prev))
				stale = append(stale, prevLock.Lease)
			}
		}
		owner, err := decodeLockValue(stm.Get(schemeKey))
		if err != nil {
			return err
		}
		if owner != nil {
			if owner.CredID != lock.CredID && stm.Get(r.holderKey(owner.CredID)) == lock.Pstr {
				stm.Del(r.holderKey(owner.CredID))
			}
			stale = append(stale, owner.Lease)
		}
		stm.Put(schemeKey, string(b), opts...)
		stm.Put(holderKey, lock.Pstr, opts...)
		return nil
	}, concurrency.WithAbortContext(ctx))
	if err != nil {
		r.revoke(ctx, lease)
		return err
	}
	r.revoke(ctx, stale...)
	return nil
}

// ReleaseByScheme satisfies lockservice.LockStore interface.
func (r *Repository) ReleaseByScheme(ctx context.Context, pstr string) error {
	var stale v3.LeaseID
	_, err := concurrency.NewSTM(r.client, func(stm concurrency.STM) error {
		stale = v3.NoLease
		owner, err := decodeLockValue(stm.Get(r.schemeKey(pstr)))
		if err != nil || owner == nil {
			return err
		}
		stm.Del(r.schemeKey(pstr))
		if stm.Get(r.holderKey(owner.CredID)) == pstr {
			stm.Del(r.holderKey(owner.CredID))
		}
		stale = owner.Lease
		return nil
	}, concurrency.WithAbortContext(ctx))
	if err != nil {
		return err
	}
	r.revoke(ctx, stale)
	return nil
}

// ReleaseByIdentity satisfies lockservice.LockStore interface.
func (r *Repository) ReleaseByIdentity(ctx context.Context, credID string) error {
	var stale v3.LeaseID
	_, err := concurrency.NewSTM(r.client, func(stm concurrency.STM) error {
		stale = v3.NoLease
		pstr := stm.Get(r.holderKey(credID))
		if pstr == "" {
			return nil
		}
		stm.Del(r.holderKey(credID))
		owner, err := decodeLockValue(stm.Get(r.schemeKey(pstr)))
		if err != nil {
			return err
		}
		if owner != nil && owner.CredID == credID {
			stm.Del(r.schemeKey(pstr))
			stale = owner.Lease
		}
		return nil
	}, concurrency.WithAbortContext(ctx))
	if err != nil {
		return err
	}
	r.revoke(ctx, stale)
	return nil
}

// ReleaseExact satisfies lockservice.LockStore interface.
func (r *Repository) ReleaseExact(ctx context.Context, lock *lockservice.MigrationLock) error {
	var stale v3.LeaseID
	_, err := concurrency.NewSTM(r.client, func(stm concurrency.STM) error {
		stale = v3.NoLease
		owner, err := decodeLockValue(stm.Get(r.schemeKey(lock.Pstr)))
		if err != nil || owner == nil || !owner.lock().Matches(lock) {
			return err
		}
		stm.Del(r.schemeKey(lock.Pstr))
		if stm.Get(r.holderKey(lock.CredID)) == lock.Pstr {
			stm.Del(r.holderKey(lock.CredID))
		}
		stale = owner.Lease
		return nil
	}, concurrency.WithAbortContext(ctx))
	if err != nil {
		return err
	}
	r.revoke(ctx, stale)
	return nil
}

// FetchData satisfies migrationdata.Store interface.
func (r *Repository) FetchData(ctx context.Context, pstr, credID string) ([]byte, error) {
	resp, err := r.client.Get(ctx, r.dataKey(pstr, credID))
	if err != nil {
		return nil, err
	}
	if len(resp.Kvs) == 0 {
		return nil, nil
	}
	return resp.Kvs[0].Value, nil
}

// UpsertData satisfies migrationdata.Store interface.
func (r *Repository) UpsertData(ctx context.Context, rec *migrationdata.Record) error {
	opts := []v3.OpOption{v3.WithPrevKV()}
	lease := v3.NoLease
	if r.dataTTL > 0 {
		resp, err := r.client.Grant(ctx, leaseSeconds(r.dataTTL))
		if err != nil {
			return err
		}
		lease = resp.ID
		opts = append(opts, v3.WithLease(lease))
	}
	resp, err := r.client.Put(ctx, r.dataKey(rec.Pstr, rec.CredID), string(rec.Data), opts...)
	if err != nil {
		r.revoke(ctx, lease)
		return err
	}
	if resp.PrevKv != nil {
		r.revoke(ctx, v3.LeaseID(resp.PrevKv.Lease))
	}
	return nil
}

// DeleteData satisfies migrationdata.Store interface.
func (r *Repository) DeleteData(ctx context.Context, pstr, credID string) error {
	resp, err := r.client.Delete(ctx, r.dataKey(pstr, credID), v3.WithPrevKV())
	if err != nil {
		return err
	}
	for _, kv := range resp.PrevKvs {
		r.revoke(ctx, v3.LeaseID(kv.Lease))
	}
	return nil
}

// revoke drops leases no key is attached to anymore. A failed revoke only
// delays the lease's own expiry, so it's logged and not returned.
func (r *Repository) revoke(ctx context.Context, leases ...v3.LeaseID) {
	for _, lease := range leases {
		if lease == v3.NoLease {
			continue
		}
		if _, err := r.client.Revoke(ctx, lease); err != nil {
			r.log.Debug().Err(err).Int64("lease", int64(lease)).Msg("failed to revoke etcd lease")
		}
	}
}

func (r *Repository) schemeKey(pstr string) string {
	return r.prefix + "/scheme/" + pstr
}

func (r *Repository) holderKey(credID string) string {
	return r.prefix + "/holder/" + credID
}

func (r *Repository) dataKey(pstr, credID string) string {
	return r.prefix + "/data/" + migrationdata.Key{Pstr: pstr, CredID: credID}.String()
}

func (r *Repository) dialTimeout() time.Duration {
	if r.cfg.DialTimeout > 0 {
		return r.cfg.DialTimeout
	}
	return 5 * time.Second
}

func decodeLock(val string) (*lockservice.MigrationLock, error) {
	v, err := decodeLockValue(val)
	if err != nil {
		return nil, err
	}
	return v.lock(), nil
}

func decodeLockValue(val string) (*lockValue, error) {
	if val == "" {
		return nil, nil
	}
	var v lockValue
	if err := json.Unmarshal([]byte(val), &v); err != nil {
		return nil, errors.Wrap(err, "etcd: malformed lock value")
	}
	return &v, nil
}

// leaseSeconds rounds ttl up to whole seconds, the granularity of etcd leases.
func leaseSeconds(ttl time.Duration) int64 {
	s := int64(math.Ceil(ttl.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}
