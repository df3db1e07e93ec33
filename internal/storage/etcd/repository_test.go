//go:build integration

package etcd

import (
	"context"
	"crypto/rand"
	"testing"
	"time"

	"github.com/SystemBuilders/MigrationLock/internal/etcdtest"
	"github.com/SystemBuilders/MigrationLock/internal/lockservice"
	"github.com/SystemBuilders/MigrationLock/internal/migrationdata"
	"github.com/SystemBuilders/MigrationLock/internal/storage/storetest"
	"github.com/oklog/ulid"
	"github.com/ory/dockertest/v3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	v3 "go.etcd.io/etcd/client/v3"
)

func TestEtcd(t *testing.T) {
	require := require.New(t)

	pool, err := dockertest.NewPool("")
	require.NoError(err)

	client, teardown, err := etcdtest.StartEtcd(pool)
	require.NoError(err)
	defer teardown()

	newRepository := func(ttl time.Duration) *Repository {
		prefix := "/test-" + ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
		return NewWithClient(client, prefix, ttl, ttl, zerolog.Nop())
	}

	t.Run("LockStore", func(t *testing.T) {
		storetest.LockStore{
			Subject: func(t *testing.T) lockservice.LockStore { return newRepository(time.Minute) },
		}.Test(t)
	})
	t.Run("DataStore", func(t *testing.T) {
		storetest.DataStore{
			Subject: func(t *testing.T) migrationdata.Store { return newRepository(time.Minute) },
		}.Test(t)
	})
	t.Run("LeaseExpiry", func(t *testing.T) {
		testLeaseExpiry(t, client, newRepository(2*time.Second))
	})
	t.Run("LeaseRevoke", func(t *testing.T) {
		testLeaseRevoke(t, client, newRepository(time.Minute))
	})
}

func leaseOf(t *testing.T, client *v3.Client, key string) v3.LeaseID {
	t.Helper()

	resp, err := client.Get(context.Background(), key)
	require.NoError(t, err)
	require.Len(t, resp.Kvs, 1)
	return v3.LeaseID(resp.Kvs[0].Lease)
}

func requireRevoked(t *testing.T, client *v3.Client, lease v3.LeaseID) {
	t.Helper()

	resp, err := client.TimeToLive(context.Background(), lease)
	require.NoError(t, err)
	require.Equal(t, int64(-1), resp.TTL)
}

func testLeaseRevoke(t *testing.T, client *v3.Client, r *Repository) {
	ctx := context.Background()

	// a replaced lock gives its lease back
	require.NoError(t, r.SetLock(ctx, lockservice.NewMigrationLock("S1", "U1", "P1")))
	first := leaseOf(t, client, r.schemeKey("S1"))
	require.NoError(t, r.SetLock(ctx, lockservice.NewMigrationLock("S1", "U2", "P2")))
	second := leaseOf(t, client, r.schemeKey("S1"))
	require.NotEqual(t, first, second)
	requireRevoked(t, client, first)

	// a released lock gives its lease back
	require.NoError(t, r.ReleaseByScheme(ctx, "S1"))
	requireRevoked(t, client, second)

	// replaced and deleted data give their leases back
	require.NoError(t, r.UpsertData(ctx, &migrationdata.Record{Pstr: "S1", CredID: "U1", Data: []byte(`{}`)}))
	first = leaseOf(t, client, r.dataKey("S1", "U1"))
	require.NoError(t, r.UpsertData(ctx, &migrationdata.Record{Pstr: "S1", CredID: "U1", Data: []byte(`[]`)}))
	second = leaseOf(t, client, r.dataKey("S1", "U1"))
	requireRevoked(t, client, first)
	require.NoError(t, r.DeleteData(ctx, "S1", "U1"))
	requireRevoked(t, client, second)
}

func testLeaseExpiry(t *testing.T, client *v3.Client, r *Repository) {
	ctx := context.Background()

	require.NoError(t, r.SetLock(ctx, lockservice.NewMigrationLock("S1", "U1", "P1")))

	resp, err := client.Get(ctx, r.schemeKey("S1"))
	require.NoError(t, err)
	require.Len(t, resp.Kvs, 1)
	require.NotZero(t, resp.Kvs[0].Lease)

	require.Eventually(t, func() bool {
		lock, err := r.LockByIdentity(ctx, "U1")
		return err == nil && lock == nil
	}, 15*time.Second, 250*time.Millisecond)
}
