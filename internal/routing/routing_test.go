package routing_test

import (
	"encoding/json"
	"io"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"strings"
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

type testServer struct {
	*httptest.Server
	resolver *auth.JWTResolver
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	rep := memory.New(memory.Config{DataCapacity: 16}, time.Minute, time.Hour, zerolog.Nop())
	resolver := auth.NewJWTResolver(auth.Config{Secret: "routing-test-secret"})
	ls := lockservice.NewService(rep, resolver, zerolog.Nop())
	ds := migrationdata.NewService(rep, resolver, zerolog.Nop())

	srv := httptest.NewServer(routing.SetupRouting(ls, ds, zerolog.Nop(), mux.NewRouter()))
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, resolver: resolver}
}

func (s *testServer) token(t *testing.T, credID string) string {
	t.Helper()
	token, err := s.resolver.IssueToken(credID, time.Minute)
	require.NoError(t, err)
	return token
}

type request struct {
	method string
	path   string
	token  string
	pstr   string
	psaID  string
	body   string
}

func (s *testServer) do(t *testing.T, req request) (*http.Response, []byte) {
	t.Helper()

	var body io.Reader
	if req.body != "" {
		body = strings.NewReader(req.body)
	}
	r, err := http.NewRequest(req.method, s.URL+req.path, body)
	require.NoError(t, err)
	if req.token != "" {
		r.Header.Set("Authorization", "Bearer "+req.token)
	}
	if req.pstr != "" {
		r.Header.Set(routing.SchemeHeader, req.pstr)
	}
	if req.psaID != "" {
		r.Header.Set(routing.PsaIDHeader, req.psaID)
	}

	resp, err := http.DefaultClient.Do(r)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := ioutil.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, b
}

func decodeError(t *testing.T, b []byte) routing.ErrorResponse {
	t.Helper()
	var er routing.ErrorResponse
	require.NoError(t, json.Unmarshal(b, &er))
	return er
}

func TestRouting_AcquireAndRead(t *testing.T) {
	// given
	s := newTestServer(t)
	token := s.token(t, "cred-1")

	// when
	resp, _ := s.do(t, request{method: http.MethodPost, path: "/lock", token: token, pstr: "S1", psaID: "P1"})

	// then
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(routing.RequestIDHeader))

	for _, path := range []string{"/lock-on-scheme", "/lock", "/lock-by-user"} {
		resp, b := s.do(t, request{method: http.MethodGet, path: path, token: token, pstr: "S1", psaID: "ignored"})
		require.Equal(t, http.StatusOK, resp.StatusCode, path)

		var lock lockservice.MigrationLock
		require.NoError(t, json.Unmarshal(b, &lock))
		assert.Equal(t, lockservice.MigrationLock{Pstr: "S1", CredID: "cred-1", PsaID: "P1"}, lock, path)
	}
}

func TestRouting_LockAbsentIsNotFound(t *testing.T) {
	// given
	s := newTestServer(t)
	token := s.token(t, "cred-1")

	// when
	resp, b := s.do(t, request{method: http.MethodGet, path: "/lock-on-scheme", token: token, pstr: "S1"})

	// then
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, routing.CodeNotFound, decodeError(t, b).Code)
}

func TestRouting_ReleaseOnScheme(t *testing.T) {
	// given
	s := newTestServer(t)
	holder := s.token(t, "cred-1")
	other := s.token(t, "cred-2")
	resp, _ := s.do(t, request{method: http.MethodPost, path: "/lock", token: holder, pstr: "S1", psaID: "P1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// when
	resp, _ = s.do(t, request{method: http.MethodDelete, path: "/lock-on-scheme", token: other, pstr: "S1"})

	// then
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = s.do(t, request{method: http.MethodGet, path: "/lock-by-user", token: holder})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouting_ReleaseExactRequiresHolder(t *testing.T) {
	// given
	s := newTestServer(t)
	holder := s.token(t, "cred-1")
	other := s.token(t, "cred-2")
	s.do(t, request{method: http.MethodPost, path: "/lock", token: holder, pstr: "S1", psaID: "P1"})

	// when
	resp, _ := s.do(t, request{method: http.MethodDelete, path: "/lock", token: other, pstr: "S1", psaID: "P1"})

	// then
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = s.do(t, request{method: http.MethodGet, path: "/lock-on-scheme", token: holder, pstr: "S1"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// when the holder releases with another psaId
	resp, _ = s.do(t, request{method: http.MethodDelete, path: "/lock", token: holder, pstr: "S1", psaID: "P2"})

	// then
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = s.do(t, request{method: http.MethodGet, path: "/lock-on-scheme", token: holder, pstr: "S1"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouting_ReleaseByCaller(t *testing.T) {
	// given
	s := newTestServer(t)
	token := s.token(t, "cred-1")
	s.do(t, request{method: http.MethodPost, path: "/lock", token: token, pstr: "S1", psaID: "P1"})

	// when
	resp, _ := s.do(t, request{method: http.MethodDelete, path: "/lock-by-user", token: token})

	// then
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = s.do(t, request{method: http.MethodGet, path: "/lock-on-scheme", token: token, pstr: "S1"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouting_Errors(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, "cred-1")
	noIdentity, err := auth.NewJWTResolver(auth.Config{Secret: "routing-test-secret", IdentityClaim: "other"}).
		IssueToken("cred-1", time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name       string
		req        request
		wantStatus int
		wantCode   string
	}{
		{
			name:       "no token",
			req:        request{method: http.MethodGet, path: "/lock-by-user"},
			wantStatus: http.StatusUnauthorized,
			wantCode:   routing.CodeUnauthenticated,
		},
		{
			name:       "bad token",
			req:        request{method: http.MethodGet, path: "/lock-by-user", token: "garbage"},
			wantStatus: http.StatusUnauthorized,
			wantCode:   routing.CodeUnauthenticated,
		},
		{
			name:       "lock on scheme without token",
			req:        request{method: http.MethodGet, path: "/lock-on-scheme", pstr: "S1"},
			wantStatus: http.StatusUnauthorized,
			wantCode:   routing.CodeUnauthenticated,
		},
		{
			name:       "lock on scheme with bad token",
			req:        request{method: http.MethodGet, path: "/lock-on-scheme", token: "garbage", pstr: "S1"},
			wantStatus: http.StatusUnauthorized,
			wantCode:   routing.CodeUnauthenticated,
		},
		{
			name:       "release on scheme without token",
			req:        request{method: http.MethodDelete, path: "/lock-on-scheme", pstr: "S1"},
			wantStatus: http.StatusUnauthorized,
			wantCode:   routing.CodeUnauthenticated,
		},
		{
			name:       "release on scheme with bad token",
			req:        request{method: http.MethodDelete, path: "/lock-on-scheme", token: "garbage", pstr: "S1"},
			wantStatus: http.StatusUnauthorized,
			wantCode:   routing.CodeUnauthenticated,
		},
		{
			name:       "token without identity",
			req:        request{method: http.MethodGet, path: "/lock-by-user", token: noIdentity},
			wantStatus: http.StatusForbidden,
			wantCode:   routing.CodeIdentityMissing,
		},
		{
			name:       "acquire without identity",
			req:        request{method: http.MethodPost, path: "/lock", token: noIdentity, pstr: "S1", psaID: "P1"},
			wantStatus: http.StatusForbidden,
			wantCode:   routing.CodeIdentityMissing,
		},
		{
			name:       "missing pstr",
			req:        request{method: http.MethodPost, path: "/lock", token: token, psaID: "P1"},
			wantStatus: http.StatusBadRequest,
			wantCode:   routing.CodeBadRequest,
		},
		{
			name:       "missing psaId",
			req:        request{method: http.MethodPost, path: "/lock", token: token, pstr: "S1"},
			wantStatus: http.StatusBadRequest,
			wantCode:   routing.CodeBadRequest,
		},
		{
			name:       "invalid migration data",
			req:        request{method: http.MethodPost, path: "/migration-data", token: token, pstr: "S1", body: "{nope"},
			wantStatus: http.StatusBadRequest,
			wantCode:   routing.CodeBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// when
			resp, b := s.do(t, tt.req)

			// then
			require.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantCode, decodeError(t, b).Code)
		})
	}
}

func TestRouting_UnauthenticatedReleaseKeepsLock(t *testing.T) {
	// given
	s := newTestServer(t)
	token := s.token(t, "cred-1")
	resp, _ := s.do(t, request{method: http.MethodPost, path: "/lock", token: token, pstr: "S1", psaID: "P1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// when
	resp, _ = s.do(t, request{method: http.MethodDelete, path: "/lock-on-scheme", token: "garbage", pstr: "S1"})

	// then
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, _ = s.do(t, request{method: http.MethodGet, path: "/lock-on-scheme", token: token, pstr: "S1"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouting_MigrationData(t *testing.T) {
	// given
	s := newTestServer(t)
	token := s.token(t, "cred-1")
	other := s.token(t, "cred-2")

	// when
	resp, _ := s.do(t, request{method: http.MethodPost, path: "/migration-data", token: token, pstr: "S1", body: `{"step":3}`})

	// then
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, b := s.do(t, request{method: http.MethodGet, path: "/migration-data", token: token, pstr: "S1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"step":3}`, string(b))

	resp, _ = s.do(t, request{method: http.MethodGet, path: "/migration-data", token: other, pstr: "S1"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// when
	resp, _ = s.do(t, request{method: http.MethodDelete, path: "/migration-data", token: token, pstr: "S1"})

	// then
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = s.do(t, request{method: http.MethodGet, path: "/migration-data", token: token, pstr: "S1"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouting_RequestIDIsKept(t *testing.T) {
	// given
	s := newTestServer(t)
	r, err := http.NewRequest(http.MethodGet, s.URL+"/ping", nil)
	require.NoError(t, err)
	r.Header.Set(routing.RequestIDHeader, "req-42")

	// when
	resp, err := http.DefaultClient.Do(r)
	require.NoError(t, err)
	defer resp.Body.Close()

	// then
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "req-42", resp.Header.Get(routing.RequestIDHeader))
}

func TestRouting_Metrics(t *testing.T) {
	// given
	s := newTestServer(t)

	// when
	resp, _ := s.do(t, request{method: http.MethodGet, path: "/metrics"})

	// then
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
