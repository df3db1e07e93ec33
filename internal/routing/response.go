package routing

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/SystemBuilders/MigrationLock/internal/auth"
	"github.com/SystemBuilders/MigrationLock/internal/lockservice"
	"github.com/SystemBuilders/MigrationLock/internal/migrationdata"
)

// Error codes carried by ErrorResponse.
const (
	CodeBadRequest       = "BAD_REQUEST"
	CodeUnauthenticated  = "UNAUTHENTICATED"
	CodeIdentityMissing  = "IDENTITY_MISSING"
	CodeNotFound         = "NOT_FOUND"
	CodeStoreUnavailable = "STORE_UNAVAILABLE"
	CodeInternal         = "INTERNAL"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, err error) {
	setError(w, err)
	switch {
	case errors.Is(err, lockservice.ErrIdentityMissing):
		writeErrorResponse(w, http.StatusForbidden, CodeIdentityMissing, err.Error())
	case errors.Is(err, auth.ErrUnauthenticated):
		writeErrorResponse(w, http.StatusUnauthorized, CodeUnauthenticated, err.Error())
	case errors.Is(err, lockservice.ErrMissingScheme),
		errors.Is(err, lockservice.ErrMissingPsaID),
		errors.Is(err, migrationdata.ErrInvalidPayload):
		writeErrorResponse(w, http.StatusBadRequest, CodeBadRequest, err.Error())
	case errors.Is(err, lockservice.ErrStoreUnavailable):
		// backend faults stay in the logs
		writeErrorResponse(w, http.StatusInternalServerError, CodeStoreUnavailable, lockservice.ErrStoreUnavailable.Error())
	default:
		writeErrorResponse(w, http.StatusInternalServerError, CodeInternal, err.Error())
	}
}

func writeErrorResponse(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, &ErrorResponse{Code: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}
