package lockclient

import (
	"fmt"

	"github.com/SystemBuilders/MigrationLock/internal/auth"
	"github.com/SystemBuilders/MigrationLock/internal/lockservice"
	"github.com/SystemBuilders/MigrationLock/internal/migrationdata"
	"github.com/SystemBuilders/MigrationLock/internal/routing"
)

// Error provides constant error strings to the driver functions.
type Error string

func (e Error) Error() string { return string(e) }

// Constant errors.
// Rule of thumb, all errors start with a small letter and end with no full stop.
const (
	ErrUnexpectedResponse = Error("unexpected response from the lock service")
)

// APIError is a failure reported by the lock service.
//
// It matches the service's sentinel errors with errors.Is, so callers can
// tell a missing identity apart from a store fault.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("lock service: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// Is reports whether target is the sentinel error matching the code.
func (e *APIError) Is(target error) bool {
	switch e.Code {
	case "":
		return target == ErrUnexpectedResponse
	case routing.CodeIdentityMissing:
		return target == lockservice.ErrIdentityMissing
	case routing.CodeUnauthenticated:
		return target == auth.ErrUnauthenticated
	case routing.CodeStoreUnavailable:
		return target == lockservice.ErrStoreUnavailable
	case routing.CodeBadRequest:
		return target == lockservice.ErrMissingScheme && e.Message == lockservice.ErrMissingScheme.Error() ||
			target == lockservice.ErrMissingPsaID && e.Message == lockservice.ErrMissingPsaID.Error() ||
			target == migrationdata.ErrInvalidPayload && e.Message == migrationdata.ErrInvalidPayload.Error()
	}
	return false
}
