package lockservice

import "context"

// LockStore describes the storage component that maintains the set of
// migration locks. There is at most one lock per scheme and at most one lock
// per holder at any time, whatever the implementation.
//
// Lookups return a nil lock and a nil error when no live lock matches.
// Expired locks are treated as absent.
type LockStore interface {
	// LockByScheme returns the lock held on the given scheme.
	LockByScheme(ctx context.Context, pstr string) (*MigrationLock, error)
	// LockByIdentity returns the lock held by the given identity.
	LockByIdentity(ctx context.Context, credID string) (*MigrationLock, error)
	// ExactLock returns the stored lock only if the scheme of the argument is
	// currently held by the holder of the argument. PsaID is not compared.
	ExactLock(ctx context.Context, lock *MigrationLock) (*MigrationLock, error)
	// SetLock stores the lock, overwriting any lock on the same scheme and
	// removing the lock the same holder has on a different scheme, as one
	// atomic operation.
	SetLock(ctx context.Context, lock *MigrationLock) error
	// ReleaseByScheme removes the lock on the scheme, if any.
	ReleaseByScheme(ctx context.Context, pstr string) error
	// ReleaseByIdentity removes the lock held by the identity, if any.
	ReleaseByIdentity(ctx context.Context, credID string) error
	// ReleaseExact removes the lock on lock.Pstr only when it is held by
	// lock.CredID. Any other state of the store is left untouched.
	ReleaseExact(ctx context.Context, lock *MigrationLock) error
}

// IdentityResolver resolves the identity of the authenticated caller
// carried by the context.
//
// A resolver returns ok=false with a nil error when the caller is
// authenticated but no identity attribute is available. Authentication
// faults are reported through the error.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context) (identity string, ok bool, err error)
}

// Descriptors describe the type of data that a lock acquiring component must describe.
type Descriptors interface {
	ID() string
	Owner() string
}

var _ Descriptors = (*MigrationLock)(nil)

// MigrationLock identifies one active lock on a pension scheme migration.
type MigrationLock struct {
	Pstr   string `json:"pstr"`
	CredID string `json:"credId"`
	PsaID  string `json:"psaId"`
}

// NewMigrationLock returns a new lock on pstr held by credID.
func NewMigrationLock(pstr, credID, psaID string) *MigrationLock {
	return &MigrationLock{
		Pstr:   pstr,
		CredID: credID,
		PsaID:  psaID,
	}
}

// ID represents the scheme the lock is held on.
func (l *MigrationLock) ID() string {
	return l.Pstr
}

// Owner represents the identity that holds the lock.
func (l *MigrationLock) Owner() string {
	return l.CredID
}

// Matches reports whether d describes the same scheme and holder as the lock.
func (l *MigrationLock) Matches(d Descriptors) bool {
	return l.ID() == d.ID() && l.Owner() == d.Owner()
}
