package migrationdata

import (
	"context"
	"encoding/json"

	"github.com/SystemBuilders/MigrationLock/internal/lockservice"
	"github.com/rs/zerolog"
)

// Error provides constant error strings to the driver functions.
type Error string

func (e Error) Error() string { return string(e) }

// ErrInvalidPayload is returned when the data to save isn't a JSON document.
const ErrInvalidPayload = Error("payload is not valid json")

// Service gives the caller access to the migration data cached for them.
type Service struct {
	log        zerolog.Logger
	store      Store
	identities lockservice.IdentityResolver
}

// NewService returns a new migration data service.
func NewService(store Store, identities lockservice.IdentityResolver, log zerolog.Logger) *Service {
	return &Service{
		log:        log,
		store:      store,
		identities: identities,
	}
}

// Get returns the migration data the caller cached for pstr, or nil.
func (s *Service) Get(ctx context.Context, pstr string) ([]byte, error) {
	key, err := s.callerKey(ctx, pstr)
	if err != nil {
		return nil, err
	}
	data, err := s.store.FetchData(ctx, key.Pstr, key.CredID)
	if err != nil {
		return nil, lockservice.NewStoreError("get migration data", err)
	}
	return data, nil
}

// Save caches data for the caller on pstr.
func (s *Service) Save(ctx context.Context, pstr string, data []byte) error {
	key, err := s.callerKey(ctx, pstr)
	if err != nil {
		return err
	}
	if !json.Valid(data) {
		return ErrInvalidPayload
	}
	err = s.store.UpsertData(ctx, &Record{
		Pstr:   key.Pstr,
		CredID: key.CredID,
		Data:   data,
	})
	if err != nil {
		return lockservice.NewStoreError("save migration data", err)
	}
	s.log.Debug().
		Str("pstr", key.Pstr).
		Str("credId", key.CredID).
		Int("size", len(data)).
		Msg("migration data saved")
	return nil
}

// Remove drops the migration data the caller cached for pstr.
func (s *Service) Remove(ctx context.Context, pstr string) error {
	key, err := s.callerKey(ctx, pstr)
	if err != nil {
		return err
	}
	if err := s.store.DeleteData(ctx, key.Pstr, key.CredID); err != nil {
		return lockservice.NewStoreError("remove migration data", err)
	}
	s.log.Debug().
		Str("pstr", key.Pstr).
		Str("credId", key.CredID).
		Msg("migration data removed")
	return nil
}

func (s *Service) callerKey(ctx context.Context, pstr string) (Key, error) {
	if pstr == "" {
		return Key{}, lockservice.ErrMissingScheme
	}
	identity, err := lockservice.ResolveIdentityOrFail(ctx, s.identities)
	if err != nil {
		return Key{}, err
	}
	return Key{Pstr: pstr, CredID: identity}, nil
}
