package repository

import (
	"context"

	"github.com/SystemBuilders/MigrationLock/internal/lockservice"
	"github.com/SystemBuilders/MigrationLock/internal/migrationdata"
)

// Repository is the storage backend of the service. It keeps both the
// migration locks and the migration data cache.
type Repository interface {
	lockservice.LockStore
	migrationdata.Store

	// Start opens the connections to the underlying storage.
	Start(ctx context.Context) error
	// Stop releases all underlying storage resources.
	Stop(ctx context.Context) error
}
