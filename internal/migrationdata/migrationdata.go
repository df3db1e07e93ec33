// Package migrationdata caches the in-progress data of a scheme migration
// for the caller working on it.
package migrationdata

import (
	"context"
	"strconv"
)

// Store describes the storage of migration data records. Records are keyed
// by scheme and holder and expire after a store-defined time to live.
type Store interface {
	// FetchData returns the payload cached for pstr and credID, or nil when
	// there is none or it has expired.
	FetchData(ctx context.Context, pstr, credID string) ([]byte, error)
	// UpsertData stores the record, replacing any previous payload.
	UpsertData(ctx context.Context, rec *Record) error
	// DeleteData removes the record, if any.
	DeleteData(ctx context.Context, pstr, credID string) error
}

// Record is the cached migration payload of one holder on one scheme.
type Record struct {
	Pstr   string
	CredID string
	Data   []byte
}

// Key is the composite identity of a record.
type Key struct {
	Pstr   string
	CredID string
}

// String returns a flat form of the key usable by key-value stores.
// Pstr is prefixed with its byte length so distinct keys never collide,
// whatever bytes the identifiers hold.
func (k Key) String() string {
	return strconv.Itoa(len(k.Pstr)) + ":" + k.Pstr + ":" + k.CredID
}
