package pgsql

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/SystemBuilders/MigrationLock/internal/migrationdata"
)

const dataTableName = "migration_data"

type pgSQLDataRep struct {
	conn conn
	ttl  time.Duration
	now  func() time.Time
}

func (r *pgSQLDataRep) FetchData(ctx context.Context, pstr, credID string) ([]byte, error) {
	row := sq.Select("data").
		From(dataTableName).
		Where(sq.And{sq.Eq{"pstr": pstr}, sq.Eq{"cred_id": credID}, liveAt(r.now())}).
		RunWith(r.conn).QueryRowContext(ctx)

	var data []byte
	err := row.Scan(&data)
	switch err {
	case nil:
		return data, nil
	case sql.ErrNoRows:
		return nil, nil
	default:
		return nil, err
	}
}

func (r *pgSQLDataRep) UpsertData(ctx context.Context, rec *migrationdata.Record) error {
	_, err := sq.Insert(dataTableName).
		Columns("pstr", "cred_id", "data", "expire_at").
		Values(rec.Pstr, rec.CredID, string(rec.Data), expireAt(r.now(), r.ttl)).
		Suffix("ON CONFLICT (pstr, cred_id) DO UPDATE SET data = $3, expire_at = $4").
		RunWith(r.conn).ExecContext(ctx)
	return err
}

func (r *pgSQLDataRep) DeleteData(ctx context.Context, pstr, credID string) error {
	_, err := sq.Delete(dataTableName).
		Where(sq.And{sq.Eq{"pstr": pstr}, sq.Eq{"cred_id": credID}}).
		RunWith(r.conn).ExecContext(ctx)
	return err
}
