package lockclient

import (
	"context"

	"github.com/SystemBuilders/MigrationLock/internal/lockservice"
)

// Client describes a client that can be used to interact with the
// migration lock service over HTTP.
//
// Every call is made on behalf of the caller identified by the client's
// bearer token. Lookups that find nothing return a nil lock or nil data
// and no error.
type Client interface {
	// LockOnScheme returns the lock held on pstr by anyone.
	LockOnScheme(ctx context.Context, pstr string) (*lockservice.MigrationLock, error)
	// LockForCaller returns the lock on pstr if the caller holds it.
	LockForCaller(ctx context.Context, pstr, psaID string) (*lockservice.MigrationLock, error)
	// LockByCaller returns the lock the caller holds on any scheme.
	LockByCaller(ctx context.Context) (*lockservice.MigrationLock, error)
	// Acquire locks pstr for the caller, superseding whatever lock was
	// held on pstr and whatever lock the caller held elsewhere.
	Acquire(ctx context.Context, pstr, psaID string) error
	// ReleaseOnScheme releases the lock on pstr whoever holds it.
	ReleaseOnScheme(ctx context.Context, pstr string) error
	// ReleaseByCaller releases the lock the caller holds.
	ReleaseByCaller(ctx context.Context) error
	// ReleaseExactForCaller releases the lock on pstr only if the caller
	// holds it.
	ReleaseExactForCaller(ctx context.Context, pstr, psaID string) error

	// MigrationData returns the caller's migration data for pstr.
	MigrationData(ctx context.Context, pstr string) ([]byte, error)
	// SaveMigrationData stores data, which must be a JSON document.
	SaveMigrationData(ctx context.Context, pstr string, data []byte) error
	// RemoveMigrationData drops the caller's migration data for pstr.
	RemoveMigrationData(ctx context.Context, pstr string) error
}

// Config describes where the lock service runs and how to authenticate.
type Config interface {
	// BaseURL is the service root, for example http://127.0.0.1:8080.
	BaseURL() string
	// Token is the bearer token sent with each request.
	Token() string
}
