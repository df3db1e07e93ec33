package lockclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"io/ioutil"
	"net/http"
	"strings"
	"time"

	"github.com/SystemBuilders/MigrationLock/internal/lockservice"
	"github.com/SystemBuilders/MigrationLock/internal/routing"
)

var _ Config = (*SimpleConfig)(nil)

// SimpleConfig implements Config.
type SimpleConfig struct {
	URL         string
	BearerToken string
}

// BaseURL returns the URL from SimpleConfig.
func (scfg *SimpleConfig) BaseURL() string {
	return strings.TrimSuffix(scfg.URL, "/")
}

// Token returns the bearer token from SimpleConfig.
func (scfg *SimpleConfig) Token() string {
	return scfg.BearerToken
}

var _ Client = (*SimpleClient)(nil)

// SimpleClient implements Client.
type SimpleClient struct {
	config     Config
	httpClient *http.Client
}

// NewSimpleClient returns a new SimpleClient talking to the service
// described by config.
func NewSimpleClient(config Config) *SimpleClient {
	return &SimpleClient{
		config:     config,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type call struct {
	method string
	path   string
	pstr   string
	psaID  string
	body   []byte
}

// do performs c and returns the response body of a 2xx response, or nil
// if the service answered 404.
func (sc *SimpleClient) do(ctx context.Context, c call) ([]byte, error) {
	var body io.Reader
	if c.body != nil {
		body = bytes.NewReader(c.body)
	}
	req, err := http.NewRequestWithContext(ctx, c.method, sc.config.BaseURL()+c.path, body)
	if err != nil {
		return nil, err
	}
	if token := sc.config.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if c.pstr != "" {
		req.Header.Set(routing.SchemeHeader, c.pstr)
	}
	if c.psaID != "" {
		req.Header.Set(routing.PsaIDHeader, c.psaID)
	}
	if c.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := sc.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if b == nil {
			b = []byte{}
		}
		return b, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	}

	var er routing.ErrorResponse
	if err := json.Unmarshal(b, &er); err != nil || er.Code == "" {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(b)}
	}
	return nil, &APIError{StatusCode: resp.StatusCode, Code: er.Code, Message: er.Message}
}

func (sc *SimpleClient) lock(ctx context.Context, c call) (*lockservice.MigrationLock, error) {
	b, err := sc.do(ctx, c)
	if err != nil || b == nil {
		return nil, err
	}
	var lock lockservice.MigrationLock
	if err := json.Unmarshal(b, &lock); err != nil {
		return nil, err
	}
	return &lock, nil
}

// LockOnScheme makes a HTTP call to the lockserver and looks up the lock on pstr.
func (sc *SimpleClient) LockOnScheme(ctx context.Context, pstr string) (*lockservice.MigrationLock, error) {
	return sc.lock(ctx, call{method: http.MethodGet, path: "/lock-on-scheme", pstr: pstr})
}

// LockForCaller makes a HTTP call to the lockserver and looks up the
// caller's lock on pstr.
func (sc *SimpleClient) LockForCaller(ctx context.Context, pstr, psaID string) (*lockservice.MigrationLock, error) {
	return sc.lock(ctx, call{method: http.MethodGet, path: "/lock", pstr: pstr, psaID: psaID})
}

// LockByCaller makes a HTTP call to the lockserver and looks up the caller's lock.
func (sc *SimpleClient) LockByCaller(ctx context.Context) (*lockservice.MigrationLock, error) {
	return sc.lock(ctx, call{method: http.MethodGet, path: "/lock-by-user"})
}

// Acquire makes a HTTP call to the lockserver and acquires the lock.
func (sc *SimpleClient) Acquire(ctx context.Context, pstr, psaID string) error {
	_, err := sc.do(ctx, call{method: http.MethodPost, path: "/lock", pstr: pstr, psaID: psaID})
	return err
}

// ReleaseOnScheme makes a HTTP call to the lockserver and releases the lock on pstr.
func (sc *SimpleClient) ReleaseOnScheme(ctx context.Context, pstr string) error {
	_, err := sc.do(ctx, call{method: http.MethodDelete, path: "/lock-on-scheme", pstr: pstr})
	return err
}

// ReleaseByCaller makes a HTTP call to the lockserver and releases the caller's lock.
func (sc *SimpleClient) ReleaseByCaller(ctx context.Context) error {
	_, err := sc.do(ctx, call{method: http.MethodDelete, path: "/lock-by-user"})
	return err
}

// ReleaseExactForCaller makes a HTTP call to the lockserver and releases
// the lock on pstr if the caller holds it.
func (sc *SimpleClient) ReleaseExactForCaller(ctx context.Context, pstr, psaID string) error {
	_, err := sc.do(ctx, call{method: http.MethodDelete, path: "/lock", pstr: pstr, psaID: psaID})
	return err
}

// MigrationData makes a HTTP call to the lockserver and fetches the caller's data.
func (sc *SimpleClient) MigrationData(ctx context.Context, pstr string) ([]byte, error) {
	return sc.do(ctx, call{method: http.MethodGet, path: "/migration-data", pstr: pstr})
}

// SaveMigrationData makes a HTTP call to the lockserver and stores the caller's data.
func (sc *SimpleClient) SaveMigrationData(ctx context.Context, pstr string, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	_, err := sc.do(ctx, call{method: http.MethodPost, path: "/migration-data", pstr: pstr, body: data})
	return err
}

// RemoveMigrationData makes a HTTP call to the lockserver and drops the caller's data.
func (sc *SimpleClient) RemoveMigrationData(ctx context.Context, pstr string) error {
	_, err := sc.do(ctx, call{method: http.MethodDelete, path: "/migration-data", pstr: pstr})
	return err
}
