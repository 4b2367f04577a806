// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeysJSON = `{"keys":[
	{"name":"ci","key":"k-ci","scopes":["paste:create","paste:read","recent:read","api:index"],"max_requests_per_minute":60},
	{"name":"writer","key":"k-writer","scopes":["paste:create"],"max_requests_per_minute":2},
	{"name":"reader","key":"k-reader","scopes":["paste:read"],"max_requests_per_minute":60}
]}`

func newKeyedServer(t *testing.T, keysJSON string) *Server {
	t.Helper()
	keysFile := filepath.Join(t.TempDir(), "keys.json")
	require.NoError(t, os.WriteFile(keysFile, []byte(keysJSON), 0o644))
	return newTestServer(t, func(sc *ServerConfig) {
		sc.APIKeysFile = keysFile
		sc.Token = "ignored-in-keys-mode"
	})
}

func TestAPIKeyAuth(t *testing.T) {
	srv := newKeyedServer(t, testKeysJSON)

	w := do(srv, postPaste("x", "", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code, "missing key")

	w = do(srv, postPaste("x", "", map[string]string{APIKeyHeader: "nope"}))
	assert.Equal(t, http.StatusUnauthorized, w.Code, "unknown key")

	// the shared token is ignored once a keys file is configured
	w = do(srv, postPaste("x", "", map[string]string{PasteTokenHeader: "ignored-in-keys-mode"}))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(srv, postPaste("x", "", map[string]string{APIKeyHeader: "k-ci"}))
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestScopeEnforcement(t *testing.T) {
	srv := newKeyedServer(t, testKeysJSON)

	w := do(srv, postPaste("x", "", map[string]string{APIKeyHeader: "k-reader"}))
	assert.Equal(t, http.StatusForbidden, w.Code, "reader cannot create")
	var e ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
	assert.Equal(t, "forbidden", e.Error)

	r := httptest.NewRequest("GET", "/api/v1/recent", nil)
	r.Header.Set(APIKeyHeader, "k-reader")
	assert.Equal(t, http.StatusForbidden, do(srv, r).Code, "reader lacks recent:read")

	r = httptest.NewRequest("GET", "/api", nil)
	r.Header.Set(APIKeyHeader, "k-ci")
	assert.Equal(t, http.StatusOK, do(srv, r).Code)
}

func TestRateLimit(t *testing.T) {
	srv := newKeyedServer(t, testKeysJSON)
	hdr := map[string]string{APIKeyHeader: "k-writer"}

	assert.Equal(t, http.StatusCreated, do(srv, postPaste("a", "", hdr)).Code)
	assert.Equal(t, http.StatusCreated, do(srv, postPaste("b", "", hdr)).Code)

	w := do(srv, postPaste("c", "", hdr))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	var e ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
	assert.Equal(t, "rate_limited", e.Error)
}

func TestIdempotentReplayDoesNotConsumeTokens(t *testing.T) {
	srv := newKeyedServer(t, testKeysJSON)
	hdr := map[string]string{APIKeyHeader: "k-writer", IdempotencyKey: "stable"}

	w := do(srv, postPaste("same", "", hdr))
	require.Equal(t, http.StatusCreated, w.Code)

	// replays are free: far more of them than the bucket holds
	for i := 0; i < 10; i++ {
		w = do(srv, postPaste("same", "", hdr))
		require.Equal(t, http.StatusOK, w.Code)
	}

	// one token is left for a fresh create
	w = do(srv, postPaste("fresh", "", map[string]string{APIKeyHeader: "k-writer"}))
	assert.Equal(t, http.StatusCreated, w.Code)
	w = do(srv, postPaste("over", "", map[string]string{APIKeyHeader: "k-writer"}))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestMalformedKeysFileFailsStartup(t *testing.T) {
	keysFile := filepath.Join(t.TempDir(), "keys.json")
	require.NoError(t, os.WriteFile(keysFile, []byte(`{"keys":`), 0o644))
	sc := DefaultServerConfig()
	sc.Dir = t.TempDir()
	sc.APIKeysFile = keysFile
	_, err := NewServer(context.Background(), sc)
	assert.Error(t, err)
}
