package lockservice

import (
	"context"

	"github.com/rs/zerolog"
)

// Service enforces the migration lock rules on top of a LockStore.
// It holds no lock state of its own; every call performs exactly one
// store operation.
type Service struct {
	log        zerolog.Logger
	store      LockStore
	identities IdentityResolver
}

// NewService creates and returns a new lock service ready to use.
func NewService(store LockStore, identities IdentityResolver, log zerolog.Logger) *Service {
	return &Service{
		log:        log,
		store:      store,
		identities: identities,
	}
}

// ResolveIdentityOrFail returns the caller identity carried by ctx.
//
// ErrIdentityMissing is returned when the resolver reports an authenticated
// caller without identity. Resolver errors are returned unchanged.
func ResolveIdentityOrFail(ctx context.Context, identities IdentityResolver) (string, error) {
	identity, ok, err := identities.ResolveIdentity(ctx)
	if err != nil {
		return "", err
	}
	if !ok || identity == "" {
		return "", ErrIdentityMissing
	}
	return identity, nil
}

// Authenticate fails when the resolver rejects the caller's credentials.
// A caller without identity is authenticated.
func Authenticate(ctx context.Context, identities IdentityResolver) error {
	_, _, err := identities.ResolveIdentity(ctx)
	return err
}

// LockOnScheme returns the lock held on pstr, or nil if there is none.
// The caller must be authenticated but needs no identity.
func (s *Service) LockOnScheme(ctx context.Context, pstr string) (*MigrationLock, error) {
	if err := Authenticate(ctx, s.identities); err != nil {
		return nil, err
	}
	if pstr == "" {
		return nil, ErrMissingScheme
	}
	lock, err := s.store.LockByScheme(ctx, pstr)
	if err != nil {
		return nil, NewStoreError("lock on scheme", err)
	}
	s.
		log.
		Debug().
		Str("pstr", pstr).
		Bool("found", lock != nil).
		Msg("lock on scheme")
	return lock, nil
}

// LockForCaller returns the lock on pstr if the caller holds it.
func (s *Service) LockForCaller(ctx context.Context, pstr, psaID string) (*MigrationLock, error) {
	want, err := s.callerLock(ctx, pstr, psaID)
	if err != nil {
		return nil, err
	}
	lock, err := s.store.ExactLock(ctx, want)
	if err != nil {
		return nil, NewStoreError("lock for caller", err)
	}
	s.
		log.
		Debug().
		Str("pstr", pstr).
		Str("credId", want.CredID).
		Bool("found", lock != nil).
		Msg("lock for caller")
	return lock, nil
}

// LockByCaller returns the lock held by the caller on any scheme.
func (s *Service) LockByCaller(ctx context.Context) (*MigrationLock, error) {
	identity, err := ResolveIdentityOrFail(ctx, s.identities)
	if err != nil {
		return nil, err
	}
	lock, err := s.store.LockByIdentity(ctx, identity)
	if err != nil {
		return nil, NewStoreError("lock by caller", err)
	}
	s.
		log.
		Debug().
		Str("credId", identity).
		Bool("found", lock != nil).
		Msg("lock by caller")
	return lock, nil
}

// Acquire sets a lock on pstr for the caller. A lock held on pstr by
// anyone is replaced, and a lock the caller holds on another scheme
// is released.
func (s *Service) Acquire(ctx context.Context, pstr, psaID string) error {
	lock, err := s.callerLock(ctx, pstr, psaID)
	if err != nil {
		return err
	}
	if err := s.store.SetLock(ctx, lock); err != nil {
		return NewStoreError("acquire", err)
	}
	s.
		log.
		Debug().
		Str("pstr", pstr).
		Str("credId", lock.CredID).
		Msg("locked")
	return nil
}

// ReleaseOnScheme releases the lock on pstr whoever holds it.
// The caller must be authenticated but needs no identity.
func (s *Service) ReleaseOnScheme(ctx context.Context, pstr string) error {
	if err := Authenticate(ctx, s.identities); err != nil {
		return err
	}
	if pstr == "" {
		return ErrMissingScheme
	}
	if err := s.store.ReleaseByScheme(ctx, pstr); err != nil {
		return NewStoreError("release on scheme", err)
	}
	s.
		log.
		Debug().
		Str("pstr", pstr).
		Msg("released")
	return nil
}

// ReleaseByCaller releases the lock held by the caller, if any.
func (s *Service) ReleaseByCaller(ctx context.Context) error {
	identity, err := ResolveIdentityOrFail(ctx, s.identities)
	if err != nil {
		return err
	}
	if err := s.store.ReleaseByIdentity(ctx, identity); err != nil {
		return NewStoreError("release by caller", err)
	}
	s.
		log.
		Debug().
		Str("credId", identity).
		Msg("released")
	return nil
}

// ReleaseExactForCaller releases the lock on pstr only if the caller holds it.
func (s *Service) ReleaseExactForCaller(ctx context.Context, pstr, psaID string) error {
	lock, err := s.callerLock(ctx, pstr, psaID)
	if err != nil {
		return err
	}
	if err := s.store.ReleaseExact(ctx, lock); err != nil {
		return NewStoreError("release exact", err)
	}
	s.
		log.
		Debug().
		Str("pstr", pstr).
		Str("credId", lock.CredID).
		Msg("released")
	return nil
}

func (s *Service) callerLock(ctx context.Context, pstr, psaID string) (*MigrationLock, error) {
	if pstr == "" {
		return nil, ErrMissingScheme
	}
	if psaID == "" {
		return nil, ErrMissingPsaID
	}
	identity, err := ResolveIdentityOrFail(ctx, s.identities)
	if err != nil {
		return nil, err
	}
	return NewMigrationLock(pstr, identity, psaID), nil
}
