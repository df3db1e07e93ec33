package pgsql

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/SystemBuilders/MigrationLock/internal/lockservice"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var errMocked = errors.New("pgsql: mocked error")

func TestPgSQLLockRep_LockByScheme(t *testing.T) {
	// given
	s, mock := newLockMock()

	mock.ExpectQuery(`SELECT pstr, cred_id, psa_id FROM migration_locks WHERE \(pstr = \$1 AND \(expire_at IS NULL OR expire_at > \$2\)\)`).
		WithArgs("S1", sqlmock.AnyArg()).
		WillReturnRows(
			sqlmock.NewRows([]string{"pstr", "cred_id", "psa_id"}).AddRow("S1", "U1", "P1"),
		)

	// when
	lock, err := s.LockByScheme(context.Background(), "S1")

	// then
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
	require.Equal(t, lockservice.NewMigrationLock("S1", "U1", "P1"), lock)
}

func TestPgSQLLockRep_LockBySchemeNotFound(t *testing.T) {
	// given
	s, mock := newLockMock()

	mock.ExpectQuery(`SELECT pstr, cred_id, psa_id FROM migration_locks WHERE`).
		WithArgs("S1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"pstr", "cred_id", "psa_id"}))

	// when
	lock, err := s.LockByScheme(context.Background(), "S1")

	// then
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
	require.Nil(t, lock)
}

func TestPgSQLLockRep_LockByIdentity(t *testing.T) {
	// given
	s, mock := newLockMock()

	mock.ExpectQuery(`SELECT pstr, cred_id, psa_id FROM migration_locks WHERE \(cred_id = \$1 AND \(expire_at IS NULL OR expire_at > \$2\)\)`).
		WithArgs("U1", sqlmock.AnyArg()).
		WillReturnRows(
			sqlmock.NewRows([]string{"pstr", "cred_id", "psa_id"}).AddRow("S1", "U1", "P1"),
		)

	// when
	lock, err := s.LockByIdentity(context.Background(), "U1")

	// then
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
	require.Equal(t, "S1", lock.Pstr)
}

func TestPgSQLLockRep_ExactLock(t *testing.T) {
	// given
	s, mock := newLockMock()

	mock.ExpectQuery(`SELECT pstr, cred_id, psa_id FROM migration_locks WHERE \(pstr = \$1 AND cred_id = \$2 AND \(expire_at IS NULL OR expire_at > \$3\)\)`).
		WithArgs("S1", "U1", sqlmock.AnyArg()).
		WillReturnRows(
			sqlmock.NewRows([]string{"pstr", "cred_id", "psa_id"}).AddRow("S1", "U1", "P1"),
		)

	// when
	lock, err := s.ExactLock(context.Background(), lockservice.NewMigrationLock("S1", "U1", "other"))

	// then
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
	require.Equal(t, "P1", lock.PsaID)
}

func TestPgSQLLockRep_LockQueryFailed(t *testing.T) {
	// given
	s, mock := newLockMock()

	mock.ExpectQuery(`SELECT pstr, cred_id, psa_id FROM migration_locks WHERE`).
		WillReturnError(errMocked)

	// when
	lock, err := s.LockByScheme(context.Background(), "S1")

	// then
	require.Nil(t, mock.ExpectationsWereMet())
	require.Equal(t, errMocked, err)
	require.Nil(t, lock)
}

func TestPgSQLLockRep_SetLock(t *testing.T) {
	// given
	s, mock := newLockMock()

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock\(hashtext\(\$1\)\)`).
		WithArgs("cred:U1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`SELECT pg_advisory_xact_lock\(hashtext\(\$1\)\)`).
		WithArgs("pstr:S1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM migration_locks WHERE \(cred_id = \$1 AND pstr <> \$2\)`).
		WithArgs("U1", "S1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO migration_locks \(pstr,cred_id,psa_id,expire_at\) VALUES \(\$1,\$2,\$3,\$4\) ON CONFLICT \(pstr\) DO UPDATE SET cred_id = \$2, psa_id = \$3, expire_at = \$4`).
		WithArgs("S1", "U1", "P1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	// when
	err := s.SetLock(context.Background(), lockservice.NewMigrationLock("S1", "U1", "P1"))

	// then
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
}

func TestPgSQLLockRep_SetLockRollback(t *testing.T) {
	// given
	s, mock := newLockMock()

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock\(hashtext\(\$1\)\)`).
		WithArgs("cred:U1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`SELECT pg_advisory_xact_lock\(hashtext\(\$1\)\)`).
		WithArgs("pstr:S1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM migration_locks WHERE`).
		WillReturnError(errMocked)
	mock.ExpectRollback()

	// when
	err := s.SetLock(context.Background(), lockservice.NewMigrationLock("S1", "U1", "P1"))

	// then
	require.Nil(t, mock.ExpectationsWereMet())
	require.Equal(t, errMocked, err)
}

func TestPgSQLLockRep_ReleaseByScheme(t *testing.T) {
	// given
	s, mock := newLockMock()

	mock.ExpectExec(`DELETE FROM migration_locks WHERE pstr = \$1`).
		WithArgs("S1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	// when
	err := s.ReleaseByScheme(context.Background(), "S1")

	// then
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
}

func TestPgSQLLockRep_ReleaseByIdentity(t *testing.T) {
	// given
	s, mock := newLockMock()

	mock.ExpectExec(`DELETE FROM migration_locks WHERE cred_id = \$1`).
		WithArgs("U1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	// when
	err := s.ReleaseByIdentity(context.Background(), "U1")

	// then
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
}

func TestPgSQLLockRep_ReleaseExact(t *testing.T) {
	// given
	s, mock := newLockMock()

	mock.ExpectExec(`DELETE FROM migration_locks WHERE \(pstr = \$1 AND cred_id = \$2\)`).
		WithArgs("S1", "U1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	// when
	err := s.ReleaseExact(context.Background(), lockservice.NewMigrationLock("S1", "U1", "P1"))

	// then
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
}

func newLockMock() (*pgSQLLockRep, sqlmock.Sqlmock) {
	db, sqlMock, err := sqlmock.New()
	if err != nil {
		panic(err)
	}
	return &pgSQLLockRep{
		db:  db,
		ttl: time.Minute,
		now: time.Now,
		log: zerolog.Nop(),
	}, sqlMock
}
