package pgsql

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/SystemBuilders/MigrationLock/internal/lockservice"
	"github.com/rs/zerolog"
)

const locksTableName = "migration_locks"

const advisoryXactLockQuery = "SELECT pg_advisory_xact_lock(hashtext($1))"

type pgSQLLockRep struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
	log zerolog.Logger
}

func (r *pgSQLLockRep) LockByScheme(ctx context.Context, pstr string) (*lockservice.MigrationLock, error) {
	return r.fetchLock(ctx, sq.And{sq.Eq{"pstr": pstr}, liveAt(r.now())})
}

func (r *pgSQLLockRep) LockByIdentity(ctx context.Context, credID string) (*lockservice.MigrationLock, error) {
	return r.fetchLock(ctx, sq.And{sq.Eq{"cred_id": credID}, liveAt(r.now())})
}

func (r *pgSQLLockRep) ExactLock(ctx context.Context, lock *lockservice.MigrationLock) (*lockservice.MigrationLock, error) {
	return r.fetchLock(ctx, sq.And{sq.Eq{"pstr": lock.Pstr}, sq.Eq{"cred_id": lock.CredID}, liveAt(r.now())})
}

// SetLock serializes writers on both the holder and the scheme before
// replacing their rows, so a holder never ends up with two schemes and a
// scheme never ends up with two holders.
func (r *pgSQLLockRep) SetLock(ctx context.Context, lock *lockservice.MigrationLock) error {
	return inTransaction(ctx, r.db, r.log, func(tx conn) error {
		if _, err := tx.ExecContext(ctx, advisoryXactLockQuery, "cred:"+lock.CredID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, advisoryXactLockQuery, "pstr:"+lock.Pstr); err != nil {
			return err
		}
		_, err := sq.Delete(locksTableName).
			Where(sq.And{sq.Eq{"cred_id": lock.CredID}, sq.NotEq{"pstr": lock.Pstr}}).
			RunWith(tx).ExecContext(ctx)
		if err != nil {
			return err
		}
		_, err = sq.Insert(locksTableName).
			Columns("pstr", "cred_id", "psa_id", "expire_at").
			Values(lock.Pstr, lock.CredID, lock.PsaID, expireAt(r.now(), r.ttl)).
			Suffix("ON CONFLICT (pstr) DO UPDATE SET cred_id = $2, psa_id = $3, expire_at = $4").
			RunWith(tx).ExecContext(ctx)
		return err
	})
}

func (r *pgSQLLockRep) ReleaseByScheme(ctx context.Context, pstr string) error {
	return r.deleteLocks(ctx, sq.Eq{"pstr": pstr})
}

func (r *pgSQLLockRep) ReleaseByIdentity(ctx context.Context, credID string) error {
	return r.deleteLocks(ctx, sq.Eq{"cred_id": credID})
}

func (r *pgSQLLockRep) ReleaseExact(ctx context.Context, lock *lockservice.MigrationLock) error {
	return r.deleteLocks(ctx, sq.And{sq.Eq{"pstr": lock.Pstr}, sq.Eq{"cred_id": lock.CredID}})
}

func (r *pgSQLLockRep) fetchLock(ctx context.Context, pred sq.Sqlizer) (*lockservice.MigrationLock, error) {
	row := sq.Select("pstr", "cred_id", "psa_id").
		From(locksTableName).
		Where(pred).
		RunWith(r.db).QueryRowContext(ctx)

	var lock lockservice.MigrationLock
	err := row.Scan(&lock.Pstr, &lock.CredID, &lock.PsaID)
	switch err {
	case nil:
		return &lock, nil
	case sql.ErrNoRows:
		return nil, nil
	default:
		return nil, err
	}
}

func (r *pgSQLLockRep) deleteLocks(ctx context.Context, pred sq.Sqlizer) error {
	_, err := sq.Delete(locksTableName).
		Where(pred).
		RunWith(r.db).ExecContext(ctx)
	return err
}
