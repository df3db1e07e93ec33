package lockclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SystemBuilders/MigrationLock/internal/auth"
	"github.com/SystemBuilders/MigrationLock/internal/lockservice"
	"github.com/SystemBuilders/MigrationLock/internal/migrationdata"
	"github.com/SystemBuilders/MigrationLock/internal/routing"
	"github.com/SystemBuilders/MigrationLock/internal/storage/memory"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "lockclient-test-secret"

func startService(t *testing.T) string {
	t.Helper()

	rep := memory.New(memory.Config{DataCapacity: 16}, time.Minute, time.Hour, zerolog.Nop())
	resolver := auth.NewJWTResolver(auth.Config{Secret: testSecret})
	ls := lockservice.NewService(rep, resolver, zerolog.Nop())
	ds := migrationdata.NewService(rep, resolver, zerolog.Nop())

	srv := httptest.NewServer(routing.SetupRouting(ls, ds, zerolog.Nop(), mux.NewRouter()))
	t.Cleanup(srv.Close)
	return srv.URL
}

func newClient(t *testing.T, url, credID string, claim string) *SimpleClient {
	t.Helper()

	token, err := auth.NewJWTResolver(auth.Config{Secret: testSecret, IdentityClaim: claim}).IssueToken(credID, time.Minute)
	require.NoError(t, err)
	return NewSimpleClient(&SimpleConfig{URL: url + "/", BearerToken: token})
}

func TestAcquireandRelease(t *testing.T) {
	url := startService(t)
	ctx := context.Background()

	t.Run("acquire test release test", func(t *testing.T) {
		sc := newClient(t, url, "owner", "")

		require.NoError(t, sc.Acquire(ctx, "test", "psa"))

		lock, err := sc.LockOnScheme(ctx, "test")
		require.NoError(t, err)
		assert.Equal(t, &lockservice.MigrationLock{Pstr: "test", CredID: "owner", PsaID: "psa"}, lock)

		require.NoError(t, sc.Acquire(ctx, "test1", "psa"))

		// the first lock was superseded
		lock, err = sc.LockOnScheme(ctx, "test")
		require.NoError(t, err)
		assert.Nil(t, lock)

		lock, err = sc.LockByCaller(ctx)
		require.NoError(t, err)
		require.NotNil(t, lock)
		assert.Equal(t, "test1", lock.Pstr)

		require.NoError(t, sc.ReleaseExactForCaller(ctx, "test1", "psa"))
		lock, err = sc.LockForCaller(ctx, "test1", "psa")
		require.NoError(t, err)
		assert.Nil(t, lock)
	})

	t.Run("release by others", func(t *testing.T) {
		owner := newClient(t, url, "owner", "")
		other := newClient(t, url, "other", "")

		require.NoError(t, owner.Acquire(ctx, "test2", "psa"))
		require.NoError(t, other.ReleaseByCaller(ctx))

		lock, err := owner.LockForCaller(ctx, "test2", "psa")
		require.NoError(t, err)
		require.NotNil(t, lock)

		require.NoError(t, other.ReleaseOnScheme(ctx, "test2"))
		lock, err = owner.LockByCaller(ctx)
		require.NoError(t, err)
		assert.Nil(t, lock)
	})

	t.Run("release twice", func(t *testing.T) {
		sc := newClient(t, url, "owner", "")

		require.NoError(t, sc.Acquire(ctx, "test3", "psa"))
		require.NoError(t, sc.ReleaseByCaller(ctx))
		require.NoError(t, sc.ReleaseByCaller(ctx))
	})
}

func TestMigrationData(t *testing.T) {
	// given
	url := startService(t)
	ctx := context.Background()
	sc := newClient(t, url, "owner", "")

	// when
	err := sc.SaveMigrationData(ctx, "test", []byte(`{"page":"members"}`))

	// then
	require.NoError(t, err)
	data, err := sc.MigrationData(ctx, "test")
	require.NoError(t, err)
	assert.JSONEq(t, `{"page":"members"}`, string(data))

	require.NoError(t, sc.RemoveMigrationData(ctx, "test"))
	data, err = sc.MigrationData(ctx, "test")
	require.NoError(t, err)
	assert.Nil(t, data)

	err = sc.SaveMigrationData(ctx, "test", []byte("not json"))
	assert.True(t, errors.Is(err, migrationdata.ErrInvalidPayload))
}

func TestErrors(t *testing.T) {
	url := startService(t)
	ctx := context.Background()

	t.Run("identity missing", func(t *testing.T) {
		sc := newClient(t, url, "owner", "someOtherClaim")

		_, err := sc.LockByCaller(ctx)

		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
		assert.True(t, errors.Is(err, lockservice.ErrIdentityMissing))
		assert.False(t, errors.Is(err, auth.ErrUnauthenticated))
	})

	t.Run("unauthenticated", func(t *testing.T) {
		sc := NewSimpleClient(&SimpleConfig{URL: url, BearerToken: "garbage"})

		err := sc.Acquire(ctx, "test", "psa")

		assert.True(t, errors.Is(err, auth.ErrUnauthenticated))
	})

	t.Run("missing psaId", func(t *testing.T) {
		sc := newClient(t, url, "owner", "")

		err := sc.Acquire(ctx, "test", "")

		assert.True(t, errors.Is(err, lockservice.ErrMissingPsaID))
		assert.False(t, errors.Is(err, lockservice.ErrMissingScheme))
	})
}

func TestUnexpectedResponse(t *testing.T) {
	// given
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()
	sc := NewSimpleClient(&SimpleConfig{URL: srv.URL})

	// when
	err := sc.Acquire(context.Background(), "test", "psa")

	// then
	assert.True(t, errors.Is(err, ErrUnexpectedResponse))
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
}
