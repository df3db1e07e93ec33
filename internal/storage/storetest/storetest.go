// Package storetest holds the behaviour every storage backend must show.
// Backend tests run the contracts against their own implementation.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/SystemBuilders/MigrationLock/internal/lockservice"
	"github.com/SystemBuilders/MigrationLock/internal/migrationdata"
	"github.com/stretchr/testify/require"
)

// LockStore is the contract of lockservice.LockStore implementations.
// Subject must return an empty store on every call.
type LockStore struct {
	Subject func(t *testing.T) lockservice.LockStore
}

// Test runs the contract.
func (c LockStore) Test(t *testing.T) {
	for _, tc := range []struct {
		name string
		f    func(t *testing.T, s lockservice.LockStore)
	}{
		{name: "SetThenGetByScheme", f: testSetThenGetByScheme},
		{name: "GetOnEmptyStore", f: testGetOnEmptyStore},
		{name: "OverwriteByAnotherHolder", f: testOverwriteByAnotherHolder},
		{name: "HolderMovesToAnotherScheme", f: testHolderMovesToAnotherScheme},
		{name: "ReacquireSameScheme", f: testReacquireSameScheme},
		{name: "ExactLock", f: testExactLock},
		{name: "ReleaseByScheme", f: testReleaseByScheme},
		{name: "ReleaseByIdentity", f: testReleaseByIdentity},
		{name: "ReleaseExact", f: testReleaseExact},
		{name: "ReleaseExactMismatch", f: testReleaseExactMismatch},
		{name: "ConcurrentSameScheme", f: testConcurrentSameScheme},
		{name: "ConcurrentSameHolder", f: testConcurrentSameHolder},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) { tc.f(t, c.Subject(t)) })
	}
}

func testSetThenGetByScheme(t *testing.T, s lockservice.LockStore) {
	ctx := context.Background()
	l := lockservice.NewMigrationLock("S1", "U1", "P1")

	require.NoError(t, s.SetLock(ctx, l))

	got, err := s.LockByScheme(ctx, "S1")
	require.NoError(t, err)
	require.Equal(t, l, got)

	got, err = s.LockByIdentity(ctx, "U1")
	require.NoError(t, err)
	require.Equal(t, l, got)
}

func testGetOnEmptyStore(t *testing.T, s lockservice.LockStore) {
	ctx := context.Background()

	got, err := s.LockByScheme(ctx, "S1")
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = s.LockByIdentity(ctx, "U1")
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = s.ExactLock(ctx, lockservice.NewMigrationLock("S1", "U1", "P1"))
	require.NoError(t, err)
	require.Nil(t, got)
}

func testOverwriteByAnotherHolder(t *testing.T, s lockservice.LockStore) {
	ctx := context.Background()

	require.NoError(t, s.SetLock(ctx, lockservice.NewMigrationLock("S1", "U1", "P1")))
	l2 := lockservice.NewMigrationLock("S1", "U2", "P2")
	require.NoError(t, s.SetLock(ctx, l2))

	got, err := s.LockByScheme(ctx, "S1")
	require.NoError(t, err)
	require.Equal(t, l2, got)

	got, err = s.LockByIdentity(ctx, "U1")
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = s.LockByIdentity(ctx, "U2")
	require.NoError(t, err)
	require.Equal(t, l2, got)
}

func testHolderMovesToAnotherScheme(t *testing.T, s lockservice.LockStore) {
	ctx := context.Background()

	require.NoError(t, s.SetLock(ctx, lockservice.NewMigrationLock("S1", "U1", "P1")))
	l2 := lockservice.NewMigrationLock("S2", "U1", "P1")
	require.NoError(t, s.SetLock(ctx, l2))

	got, err := s.LockByScheme(ctx, "S1")
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = s.LockByScheme(ctx, "S2")
	require.NoError(t, err)
	require.Equal(t, l2, got)

	got, err = s.LockByIdentity(ctx, "U1")
	require.NoError(t, err)
	require.Equal(t, l2, got)
}

func testReacquireSameScheme(t *testing.T, s lockservice.LockStore) {
	ctx := context.Background()

	require.NoError(t, s.SetLock(ctx, lockservice.NewMigrationLock("S1", "U1", "P1")))
	l2 := lockservice.NewMigrationLock("S1", "U1", "P9")
	require.NoError(t, s.SetLock(ctx, l2))

	got, err := s.LockByScheme(ctx, "S1")
	require.NoError(t, err)
	require.Equal(t, l2, got)

	got, err = s.LockByIdentity(ctx, "U1")
	require.NoError(t, err)
	require.Equal(t, l2, got)
}

func testExactLock(t *testing.T, s lockservice.LockStore) {
	ctx := context.Background()
	l := lockservice.NewMigrationLock("S1", "U1", "P1")
	require.NoError(t, s.SetLock(ctx, l))

	got, err := s.ExactLock(ctx, lockservice.NewMigrationLock("S1", "U1", "P1"))
	require.NoError(t, err)
	require.Equal(t, l, got)

	// psaId takes no part in the comparison
	got, err = s.ExactLock(ctx, lockservice.NewMigrationLock("S1", "U1", "other"))
	require.NoError(t, err)
	require.Equal(t, l, got)

	got, err = s.ExactLock(ctx, lockservice.NewMigrationLock("S1", "U2", "P1"))
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = s.ExactLock(ctx, lockservice.NewMigrationLock("S2", "U1", "P1"))
	require.NoError(t, err)
	require.Nil(t, got)
}

func testReleaseByScheme(t *testing.T, s lockservice.LockStore) {
	ctx := context.Background()
	require.NoError(t, s.SetLock(ctx, lockservice.NewMigrationLock("S1", "U1", "P1")))

	require.NoError(t, s.ReleaseByScheme(ctx, "S1"))
	require.NoError(t, s.ReleaseByScheme(ctx, "S1"))

	requireNoLock(t, s, "S1", "U1")
}

func testReleaseByIdentity(t *testing.T, s lockservice.LockStore) {
	ctx := context.Background()
	require.NoError(t, s.SetLock(ctx, lockservice.NewMigrationLock("S1", "U1", "P1")))

	require.NoError(t, s.ReleaseByIdentity(ctx, "U1"))
	require.NoError(t, s.ReleaseByIdentity(ctx, "U1"))

	requireNoLock(t, s, "S1", "U1")
}

func testReleaseExact(t *testing.T, s lockservice.LockStore) {
	ctx := context.Background()
	l := lockservice.NewMigrationLock("S1", "U1", "P1")
	require.NoError(t, s.SetLock(ctx, l))

	require.NoError(t, s.ReleaseExact(ctx, l))
	require.NoError(t, s.ReleaseExact(ctx, l))

	requireNoLock(t, s, "S1", "U1")
}

func testReleaseExactMismatch(t *testing.T, s lockservice.LockStore) {
	ctx := context.Background()
	l := lockservice.NewMigrationLock("S1", "U1", "P1")
	require.NoError(t, s.SetLock(ctx, l))

	require.NoError(t, s.ReleaseExact(ctx, lockservice.NewMigrationLock("S1", "U2", "P1")))

	got, err := s.LockByScheme(ctx, "S1")
	require.NoError(t, err)
	require.Equal(t, l, got)

	got, err = s.LockByIdentity(ctx, "U1")
	require.NoError(t, err)
	require.Equal(t, l, got)
}

func testConcurrentSameScheme(t *testing.T, s lockservice.LockStore) {
	ctx := context.Background()
	const workers = 10

	var wg sync.WaitGroup
	errCh := make(chan error, workers)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			errCh <- s.SetLock(ctx, lockservice.NewMigrationLock("S1", fmt.Sprintf("U%d", i), "P1"))
		}(i)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}

	winner, err := s.LockByScheme(ctx, "S1")
	require.NoError(t, err)
	require.NotNil(t, winner)

	holders := 0
	for i := 0; i < workers; i++ {
		got, err := s.LockByIdentity(ctx, fmt.Sprintf("U%d", i))
		require.NoError(t, err)
		if got != nil {
			holders++
			require.Equal(t, winner, got)
		}
	}
	require.Equal(t, 1, holders)
}

func testConcurrentSameHolder(t *testing.T, s lockservice.LockStore) {
	ctx := context.Background()
	const workers = 10

	var wg sync.WaitGroup
	errCh := make(chan error, workers)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			errCh <- s.SetLock(ctx, lockservice.NewMigrationLock(fmt.Sprintf("S%d", i), "U1", "P1"))
		}(i)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}

	held, err := s.LockByIdentity(ctx, "U1")
	require.NoError(t, err)
	require.NotNil(t, held)

	locked := 0
	for i := 0; i < workers; i++ {
		got, err := s.LockByScheme(ctx, fmt.Sprintf("S%d", i))
		require.NoError(t, err)
		if got != nil {
			locked++
			require.Equal(t, held, got)
		}
	}
	require.Equal(t, 1, locked)
}

func requireNoLock(t *testing.T, s lockservice.LockStore, pstr, credID string) {
	t.Helper()
	ctx := context.Background()

	got, err := s.LockByScheme(ctx, pstr)
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = s.LockByIdentity(ctx, credID)
	require.NoError(t, err)
	require.Nil(t, got)
}

// DataStore is the contract of migrationdata.Store implementations.
// Subject must return an empty store on every call.
type DataStore struct {
	Subject func(t *testing.T) migrationdata.Store
}

// Test runs the contract.
func (c DataStore) Test(t *testing.T) {
	t.Run("UpsertAndFetch", func(t *testing.T) {
		s := c.Subject(t)
		ctx := context.Background()

		require.NoError(t, s.UpsertData(ctx, &migrationdata.Record{Pstr: "S1", CredID: "U1", Data: []byte(`{"a":1}`)}))

		data, err := s.FetchData(ctx, "S1", "U1")
		require.NoError(t, err)
		require.JSONEq(t, `{"a":1}`, string(data))

		data, err = s.FetchData(ctx, "S1", "U2")
		require.NoError(t, err)
		require.Nil(t, data)
	})
	t.Run("Replace", func(t *testing.T) {
		s := c.Subject(t)
		ctx := context.Background()

		require.NoError(t, s.UpsertData(ctx, &migrationdata.Record{Pstr: "S1", CredID: "U1", Data: []byte(`{"a":1}`)}))
		require.NoError(t, s.UpsertData(ctx, &migrationdata.Record{Pstr: "S1", CredID: "U1", Data: []byte(`{"a":2}`)}))

		data, err := s.FetchData(ctx, "S1", "U1")
		require.NoError(t, err)
		require.JSONEq(t, `{"a":2}`, string(data))
	})
	t.Run("IdentifiersWithSeparators", func(t *testing.T) {
		s := c.Subject(t)
		ctx := context.Background()

		require.NoError(t, s.UpsertData(ctx, &migrationdata.Record{Pstr: "a\x1fb", CredID: "c", Data: []byte(`{"a":1}`)}))
		require.NoError(t, s.UpsertData(ctx, &migrationdata.Record{Pstr: "a", CredID: "b\x1fc", Data: []byte(`{"a":2}`)}))

		data, err := s.FetchData(ctx, "a\x1fb", "c")
		require.NoError(t, err)
		require.JSONEq(t, `{"a":1}`, string(data))

		data, err = s.FetchData(ctx, "a", "b\x1fc")
		require.NoError(t, err)
		require.JSONEq(t, `{"a":2}`, string(data))
	})
	t.Run("Delete", func(t *testing.T) {
		s := c.Subject(t)
		ctx := context.Background()

		require.NoError(t, s.UpsertData(ctx, &migrationdata.Record{Pstr: "S1", CredID: "U1", Data: []byte(`[]`)}))
		require.NoError(t, s.DeleteData(ctx, "S1", "U1"))
		require.NoError(t, s.DeleteData(ctx, "S1", "U1"))

		data, err := s.FetchData(ctx, "S1", "U1")
		require.NoError(t, err)
		require.Nil(t, data)
	})
}
