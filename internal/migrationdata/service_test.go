package migrationdata_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/SystemBuilders/MigrationLock/internal/lockservice"
	"github.com/SystemBuilders/MigrationLock/internal/migrationdata"
	"github.com/SystemBuilders/MigrationLock/internal/storage/memory"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type identityKey struct{}

type contextIdentities struct{}

func (contextIdentities) ResolveIdentity(ctx context.Context) (string, bool, error) {
	identity, ok := ctx.Value(identityKey{}).(string)
	return identity, ok, nil
}

func withIdentity(credID string) context.Context {
	return context.WithValue(context.Background(), identityKey{}, credID)
}

var errMocked = errors.New("migrationdata: mocked error")

type failingStore struct {
	*memory.Repository
}

func (failingStore) FetchData(context.Context, string, string) ([]byte, error) {
	return nil, errMocked
}

func newService(store migrationdata.Store) *migrationdata.Service {
	if store == nil {
		store = memory.New(memory.Config{DataCapacity: 8}, time.Minute, time.Hour, zerolog.Nop())
	}
	return migrationdata.NewService(store, contextIdentities{}, zerolog.Nop())
}

func TestService_SaveGetRemove(t *testing.T) {
	// given
	s := newService(nil)
	ctx := withIdentity("U1")

	// when
	require.NoError(t, s.Save(ctx, "S1", []byte(`{"members":[1,2]}`)))

	// then
	data, err := s.Get(ctx, "S1")
	require.NoError(t, err)
	require.JSONEq(t, `{"members":[1,2]}`, string(data))

	// another caller sees nothing
	data, err = s.Get(withIdentity("U2"), "S1")
	require.NoError(t, err)
	require.Nil(t, data)

	require.NoError(t, s.Remove(ctx, "S1"))
	require.NoError(t, s.Remove(ctx, "S1"))

	data, err = s.Get(ctx, "S1")
	require.NoError(t, err)
	require.Nil(t, data)
}

func TestService_SaveRejectsInvalidJSON(t *testing.T) {
	s := newService(nil)

	err := s.Save(withIdentity("U1"), "S1", []byte(`{"members":`))

	require.Equal(t, migrationdata.ErrInvalidPayload, err)
}

func TestService_IdentityMissing(t *testing.T) {
	s := newService(nil)
	ctx := context.Background()

	_, err := s.Get(ctx, "S1")
	require.Equal(t, lockservice.ErrIdentityMissing, err)
	require.Equal(t, lockservice.ErrIdentityMissing, s.Save(ctx, "S1", []byte(`{}`)))
	require.Equal(t, lockservice.ErrIdentityMissing, s.Remove(ctx, "S1"))
}

func TestService_MissingScheme(t *testing.T) {
	s := newService(nil)

	_, err := s.Get(withIdentity("U1"), "")

	require.Equal(t, lockservice.ErrMissingScheme, err)
}

func TestService_StoreFault(t *testing.T) {
	s := newService(failingStore{memory.New(memory.Config{DataCapacity: 8}, time.Minute, time.Hour, zerolog.Nop())})

	_, err := s.Get(withIdentity("U1"), "S1")

	require.True(t, errors.Is(err, lockservice.ErrStoreUnavailable))
	require.True(t, errors.Is(err, errMocked))
}
