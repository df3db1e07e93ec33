package boltdb

import (
	"context"

	"github.com/SystemBuilders/MigrationLock/internal/migrationdata"
	bolt "go.etcd.io/bbolt"
)

type dataRecord struct {
	Data     []byte `json:"data"`
	ExpireAt int64  `json:"expireAt"`
}

// FetchData satisfies migrationdata.Store interface.
func (r *Repository) FetchData(_ context.Context, pstr, credID string) (data []byte, err error) {
	err = r.db.View(func(tx *bolt.Tx) error {
		var rec dataRecord
		ok, err := fetchKeyOp{
			tx:     tx,
			bucket: dataBucket,
			key:    migrationdata.Key{Pstr: pstr, CredID: credID}.String(),
			obj:    &rec,
		}.do()
		if err != nil || !ok || !live(rec.ExpireAt, r.now()) {
			return err
		}
		data = rec.Data
		return nil
	})
	return
}

// UpsertData satisfies migrationdata.Store interface.
func (r *Repository) UpsertData(_ context.Context, rec *migrationdata.Record) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		return upsertKeyOp{
			tx:     tx,
			bucket: dataBucket,
			key:    migrationdata.Key{Pstr: rec.Pstr, CredID: rec.CredID}.String(),
			obj:    &dataRecord{Data: rec.Data, ExpireAt: r.expireAt(r.dataTTL)},
		}.do()
	})
}

// DeleteData satisfies migrationdata.Store interface.
func (r *Repository) DeleteData(_ context.Context, pstr, credID string) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		return delKeyOp{
			tx:     tx,
			bucket: dataBucket,
			key:    migrationdata.Key{Pstr: pstr, CredID: credID}.String(),
		}.do()
	})
}
