// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhengpenghou/lanpaste/modules/command"
	"github.com/zhengpenghou/lanpaste/pkg/paste"
)

func newTestServer(t *testing.T, mutate func(*ServerConfig)) *Server {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
	sc := DefaultServerConfig()
	sc.Dir = t.TempDir()
	if mutate != nil {
		mutate(sc)
	}
	srv, err := NewServer(context.Background(), sc)
	require.NoError(t, err)
	return srv
}

func do(srv *Server, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, r)
	return w
}

func gitHead(t *testing.T, srv *Server) string {
	t.Helper()
	out, err := command.New(context.Background(), filepath.Join(srv.Dir, "repo"), "git", "rev-parse", "HEAD").OneLine()
	require.NoError(t, err)
	return out
}

func gitCommitCount(t *testing.T, srv *Server) int {
	t.Helper()
	out, err := command.New(context.Background(), filepath.Join(srv.Dir, "repo"), "git", "rev-list", "--count", "HEAD").OneLine()
	require.NoError(t, err)
	n, err := strconv.Atoi(out)
	require.NoError(t, err)
	return n
}

func postPaste(body, query string, header map[string]string) *http.Request {
	r := httptest.NewRequest("POST", "/api/v1/paste"+query, strings.NewReader(body))
	for k, v := range header {
		r.Header.Set(k, v)
	}
	return r
}

func TestCreateHappyPath(t *testing.T) {
	srv := newTestServer(t, func(sc *ServerConfig) { sc.Token = "tok" })

	w := do(srv, postPaste("# hello\n", "?name=note.md&tag=test", map[string]string{
		PasteTokenHeader: "tok",
		"Content-Type":   "text/markdown",
	}))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp CreateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.ID, 26)
	assert.True(t, paste.ParseID(resp.ID))
	assert.Regexp(t, `^pastes/\d{4}/\d{2}/\d{2}/`+resp.ID+`__note\.md$`, resp.Path)
	assert.Equal(t, gitHead(t, srv), resp.Commit)
	assert.Equal(t, "/api/v1/p/"+resp.ID+"/raw", resp.RawURL)
	assert.Equal(t, "/p/"+resp.ID, resp.ViewURL)
	assert.Equal(t, "/api/v1/p/"+resp.ID, resp.MetaURL)

	// metadata round trip; token mode guards reads too
	r := httptest.NewRequest("GET", "/api/v1/p/"+resp.ID, nil)
	r.Header.Set(PasteTokenHeader, "tok")
	w = do(srv, r)
	require.Equal(t, http.StatusOK, w.Code)
	var p paste.Paste
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, resp.Commit, p.Commit)
	assert.Equal(t, "test", p.Tag)
	assert.Equal(t, int64(len("# hello\n")), p.Size)
}

func TestTokenRequired(t *testing.T) {
	srv := newTestServer(t, func(sc *ServerConfig) { sc.Token = "tok" })

	w := do(srv, postPaste("x", "", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	var e ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
	assert.Equal(t, "unauthorized", e.Error)

	w = do(srv, postPaste("x", "", map[string]string{PasteTokenHeader: "wrong"}))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// denied requests never touch the repository
	assert.Equal(t, 1, gitCommitCount(t, srv))
}

func TestOpenCreateWithoutAuth(t *testing.T) {
	srv := newTestServer(t, nil)
	w := do(srv, postPaste("open", "", nil))
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestIdempotentReplayAndConflict(t *testing.T) {
	srv := newTestServer(t, func(sc *ServerConfig) { sc.Token = "tok" })
	hdr := map[string]string{PasteTokenHeader: "tok", IdempotencyKey: "k1", "Content-Type": "text/markdown"}

	w1 := do(srv, postPaste("# hello\n", "?name=note.md&tag=test", hdr))
	require.Equal(t, http.StatusCreated, w1.Code)
	commits := gitCommitCount(t, srv)

	w2 := do(srv, postPaste("# hello\n", "?name=note.md&tag=test", hdr))
	require.Equal(t, http.StatusOK, w2.Code)
	assert.Equal(t, w1.Body.String(), w2.Body.String())
	assert.Equal(t, commits, gitCommitCount(t, srv), "replay must not commit")

	w3 := do(srv, postPaste("# different\n", "?name=note.md&tag=test", hdr))
	assert.Equal(t, http.StatusConflict, w3.Code)
	var e ErrorResponse
	require.NoError(t, json.Unmarshal(w3.Body.Bytes(), &e))
	assert.Equal(t, "conflict", e.Error)
	assert.Equal(t, commits, gitCommitCount(t, srv))
}

func TestPayloadTooLarge(t *testing.T) {
	srv := newTestServer(t, func(sc *ServerConfig) { sc.MaxBytes = 16 })

	w := do(srv, postPaste(strings.Repeat("a", 17), "", nil))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	var e ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
	assert.Equal(t, "payload_too_large", e.Error)
	assert.Equal(t, 1, gitCommitCount(t, srv))

	w = do(srv, postPaste(strings.Repeat("a", 16), "", nil))
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestCIDRReject(t *testing.T) {
	srv := newTestServer(t, func(sc *ServerConfig) { sc.AllowCIDR = []string{"10.0.0.0/8"} })

	r := postPaste("x", "", nil)
	r.RemoteAddr = "127.0.0.1:54321"
	w := do(srv, r)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"error":"forbidden","message":"client IP not in allowlist"}`, w.Body.String())

	// X-Forwarded-For must not bypass the socket check
	r = postPaste("x", "", map[string]string{"X-Forwarded-For": "10.1.2.3"})
	r.RemoteAddr = "127.0.0.1:54321"
	w = do(srv, r)
	assert.Equal(t, http.StatusForbidden, w.Code)

	r = postPaste("x", "", nil)
	r.RemoteAddr = "10.9.8.7:54321"
	w = do(srv, r)
	assert.Equal(t, http.StatusCreated, w.Code)

	// reads are not gated by the allowlist
	r = httptest.NewRequest("GET", "/healthz", nil)
	r.RemoteAddr = "127.0.0.1:54321"
	assert.Equal(t, http.StatusOK, do(srv, r).Code)
}

func TestStrictPushRollback(t *testing.T) {
	srv := newTestServer(t, func(sc *ServerConfig) {
		sc.Push = "strict"
		sc.Remote = "origin" // never configured, push must fail
	})
	before := gitHead(t, srv)

	w := do(srv, postPaste("doomed", "?name=d.txt", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var e ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
	assert.Equal(t, "push_failed", e.Error)

	assert.Equal(t, before, gitHead(t, srv))
	entries, err := os.ReadDir(filepath.Join(srv.Dir, "repo", "meta"))
	if err == nil {
		assert.Empty(t, entries)
	}
}

func TestRawHeaders(t *testing.T) {
	srv := newTestServer(t, nil)
	w := do(srv, postPaste("<b>bytes</b>", "?name=page.html", map[string]string{"Content-Type": "text/html"}))
	require.Equal(t, http.StatusCreated, w.Code)
	var resp CreateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	w = do(srv, httptest.NewRequest("GET", resp.RawURL, nil))
	require.Equal(t, http.StatusOK, w.Code)
	// stored content type never leaks into the raw response headers
	assert.Equal(t, "application/octet-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="`+resp.ID+`__page.html"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "<b>bytes</b>", w.Body.String())
}

func TestNotFound(t *testing.T) {
	srv := newTestServer(t, nil)
	for _, target := range []string{
		"/api/v1/p/01JG0000000000000000000000",
		"/api/v1/p/01JG0000000000000000000000/raw",
		"/p/01JG0000000000000000000000",
	} {
		w := do(srv, httptest.NewRequest("GET", target, nil))
		assert.Equal(t, http.StatusNotFound, w.Code, target)
	}
}

func TestRecentWindow(t *testing.T) {
	srv := newTestServer(t, nil)
	var ids []string
	for i := 0; i < 3; i++ {
		tag := "a"
		if i == 2 {
			tag = "b"
		}
		w := do(srv, postPaste("body"+strconv.Itoa(i), "?tag="+tag, nil))
		require.Equal(t, http.StatusCreated, w.Code)
		var resp CreateResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		ids = append(ids, resp.ID)
	}

	w := do(srv, httptest.NewRequest("GET", "/api/v1/recent?n=10", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var all []*paste.Paste
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	require.Len(t, all, 3)
	assert.Equal(t, ids[2], all[0].ID, "newest first")

	w = do(srv, httptest.NewRequest("GET", "/api/v1/recent?tag=b", nil))
	var tagged []*paste.Paste
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tagged))
	require.Len(t, tagged, 1)
	assert.Equal(t, ids[2], tagged[0].ID)

	w = do(srv, httptest.NewRequest("GET", "/api/v1/recent?n=banana", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t, nil)
	assert.Equal(t, http.StatusOK, do(srv, httptest.NewRequest("GET", "/healthz", nil)).Code)
	assert.Equal(t, http.StatusOK, do(srv, httptest.NewRequest("GET", "/readyz", nil)).Code)

	require.NoError(t, os.RemoveAll(filepath.Join(srv.Dir, "repo")))
	assert.Equal(t, http.StatusServiceUnavailable, do(srv, httptest.NewRequest("GET", "/readyz", nil)).Code)
}

func TestViewRendersMarkdown(t *testing.T) {
	srv := newTestServer(t, nil)
	body := "# Title\n\n<script>alert(1)</script>\n\n*em*\n"
	w := do(srv, postPaste(body, "?name=doc.md", map[string]string{"Content-Type": "text/markdown"}))
	require.Equal(t, http.StatusCreated, w.Code)
	var resp CreateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	w = do(srv, httptest.NewRequest("GET", resp.ViewURL, nil))
	require.Equal(t, http.StatusOK, w.Code)
	html := w.Body.String()
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, html, "<h1>Title</h1>")
	assert.Contains(t, html, "<em>em</em>")
	assert.NotContains(t, html, "<script>")
}

func TestViewEscapesPlainText(t *testing.T) {
	srv := newTestServer(t, nil)
	w := do(srv, postPaste("<script>alert(1)</script>", "", nil))
	require.Equal(t, http.StatusCreated, w.Code)
	var resp CreateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	w = do(srv, httptest.NewRequest("GET", resp.ViewURL, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<pre>&lt;script&gt;")
	assert.NotContains(t, w.Body.String(), "<script>alert")
}

func TestDashboard(t *testing.T) {
	srv := newTestServer(t, nil)
	w := do(srv, postPaste("hello", "?name=hello.txt", nil))
	require.Equal(t, http.StatusCreated, w.Code)
	var resp CreateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	for _, target := range []string{"/", "/dashboard"} {
		w = do(srv, httptest.NewRequest("GET", target, nil))
		require.Equal(t, http.StatusOK, w.Code, target)
		assert.Contains(t, w.Body.String(), resp.ID)
	}
}

func TestServerBanner(t *testing.T) {
	srv := newTestServer(t, nil)
	w := do(srv, httptest.NewRequest("GET", "/healthz", nil))
	assert.Contains(t, w.Header().Get("Server"), "LanPaste/")
}

func TestOpenAPIDocument(t *testing.T) {
	srv := newTestServer(t, nil)
	w := do(srv, httptest.NewRequest("GET", "/openapi.json", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "3.0.3", doc["openapi"])
}
