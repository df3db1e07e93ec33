package boltdb

import (
	"context"
	"time"

	"github.com/SystemBuilders/MigrationLock/internal/lockservice"
	bolt "go.etcd.io/bbolt"
)

type lockRecord struct {
	Pstr     string `json:"pstr"`
	CredID   string `json:"credId"`
	PsaID    string `json:"psaId"`
	ExpireAt int64  `json:"expireAt"`
}

func (rec *lockRecord) lock() *lockservice.MigrationLock {
	return lockservice.NewMigrationLock(rec.Pstr, rec.CredID, rec.PsaID)
}

// boltDBLockRep runs lock operations inside a single transaction.
type boltDBLockRep struct {
	tx  *bolt.Tx
	now time.Time
}

// record returns the stored record of pstr, live or not.
func (r boltDBLockRep) record(pstr string) (*lockRecord, error) {
	var rec lockRecord
	ok, err := fetchKeyOp{tx: r.tx, bucket: locksBucket, key: pstr, obj: &rec}.do()
	if err != nil || !ok {
		return nil, err
	}
	return &rec, nil
}

func (r boltDBLockRep) liveLock(pstr string) (*lockservice.MigrationLock, error) {
	rec, err := r.record(pstr)
	if err != nil || rec == nil || !live(rec.ExpireAt, r.now) {
		return nil, err
	}
	return rec.lock(), nil
}

func (r boltDBLockRep) lockByIdentity(credID string) (*lockservice.MigrationLock, error) {
	pstr, ok := fetchStringOp{tx: r.tx, bucket: holdersBucket, key: credID}.do()
	if !ok {
		return nil, nil
	}
	lock, err := r.liveLock(pstr)
	if err != nil || lock == nil || lock.CredID != credID {
		return nil, err
	}
	return lock, nil
}

func (r boltDBLockRep) setLock(lock *lockservice.MigrationLock, expireAt int64) error {
	// the holder gives up the lock it has on another scheme
	if prev, ok := (fetchStringOp{tx: r.tx, bucket: holdersBucket, key: lock.CredID}).do(); ok && prev != lock.Pstr {
		rec, err := r.record(prev)
		if err != nil {
			return err
		}
		if rec != nil && rec.CredID == lock.CredID {
			if err := (delKeyOp{tx: r.tx, bucket: locksBucket, key: prev}).do(); err != nil {
				return err
			}
		}
	}
	// the previous holder of this scheme loses it
	rec, err := r.record(lock.Pstr)
	if err != nil {
		return err
	}
	if rec != nil && rec.CredID != lock.CredID {
		if err := r.dropHolder(rec.CredID, lock.Pstr); err != nil {
			return err
		}
	}
	err = upsertKeyOp{
		tx:     r.tx,
		bucket: locksBucket,
		key:    lock.Pstr,
		obj: &lockRecord{
			Pstr:     lock.Pstr,
			CredID:   lock.CredID,
			PsaID:    lock.PsaID,
			ExpireAt: expireAt,
		},
	}.do()
	if err != nil {
		return err
	}
	return putStringOp{tx: r.tx, bucket: holdersBucket, key: lock.CredID, val: lock.Pstr}.do()
}

// releaseScheme deletes the record of pstr and the index of its holder.
func (r boltDBLockRep) releaseScheme(pstr string) error {
	rec, err := r.record(pstr)
	if err != nil || rec == nil {
		return err
	}
	if err := (delKeyOp{tx: r.tx, bucket: locksBucket, key: pstr}).do(); err != nil {
		return err
	}
	return r.dropHolder(rec.CredID, pstr)
}

func (r boltDBLockRep) releaseIdentity(credID string) error {
	pstr, ok := fetchStringOp{tx: r.tx, bucket: holdersBucket, key: credID}.do()
	if !ok {
		return nil
	}
	if err := (delKeyOp{tx: r.tx, bucket: holdersBucket, key: credID}).do(); err != nil {
		return err
	}
	rec, err := r.record(pstr)
	if err != nil || rec == nil || rec.CredID != credID {
		return err
	}
	return delKeyOp{tx: r.tx, bucket: locksBucket, key: pstr}.do()
}

func (r boltDBLockRep) releaseExact(lock *lockservice.MigrationLock) error {
	rec, err := r.record(lock.Pstr)
	if err != nil || rec == nil || !rec.lock().Matches(lock) {
		return err
	}
	return r.releaseScheme(lock.Pstr)
}

// dropHolder removes the index of credID if it still points to pstr.
func (r boltDBLockRep) dropHolder(credID, pstr string) error {
	if held, ok := (fetchStringOp{tx: r.tx, bucket: holdersBucket, key: credID}).do(); !ok || held != pstr {
		return nil
	}
	return delKeyOp{tx: r.tx, bucket: holdersBucket, key: credID}.do()
}

// LockByScheme satisfies lockservice.LockStore interface.
func (r *Repository) LockByScheme(_ context.Context, pstr string) (lock *lockservice.MigrationLock, err error) {
	err = r.db.View(func(tx *bolt.Tx) error {
		lock, err = boltDBLockRep{tx: tx, now: r.now()}.liveLock(pstr)
		return err
	})
	return
}

// LockByIdentity satisfies lockservice.LockStore interface.
func (r *Repository) LockByIdentity(_ context.Context, credID string) (lock *lockservice.MigrationLock, err error) {
	err = r.db.View(func(tx *bolt.Tx) error {
		lock, err = boltDBLockRep{tx: tx, now: r.now()}.lockByIdentity(credID)
		return err
	})
	return
}

// ExactLock satisfies lockservice.LockStore interface.
func (r *Repository) ExactLock(_ context.Context, want *lockservice.MigrationLock) (lock *lockservice.MigrationLock, err error) {
	err = r.db.View(func(tx *bolt.Tx) error {
		lock, err = boltDBLockRep{tx: tx, now: r.now()}.liveLock(want.Pstr)
		if lock != nil && !lock.Matches(want) {
			lock = nil
		}
		return err
	})
	return
}

// SetLock satisfies lockservice.LockStore interface.
func (r *Repository) SetLock(_ context.Context, lock *lockservice.MigrationLock) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		return boltDBLockRep{tx: tx, now: r.now()}.setLock(lock, r.expireAt(r.lockTTL))
	})
}

// ReleaseByScheme satisfies lockservice.LockStore interface.
func (r *Repository) ReleaseByScheme(_ context.Context, pstr string) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		return boltDBLockRep{tx: tx, now: r.now()}.releaseScheme(pstr)
	})
}

// ReleaseByIdentity satisfies lockservice.LockStore interface.
func (r *Repository) ReleaseByIdentity(_ context.Context, credID string) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		return boltDBLockRep{tx: tx, now: r.now()}.releaseIdentity(credID)
	})
}

// ReleaseExact satisfies lockservice.LockStore interface.
func (r *Repository) ReleaseExact(_ context.Context, lock *lockservice.MigrationLock) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		return boltDBLockRep{tx: tx, now: r.now()}.releaseExact(lock)
	})
}
