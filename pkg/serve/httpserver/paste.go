// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/zhengpenghou/lanpaste/modules/strengthen"
	"github.com/zhengpenghou/lanpaste/pkg/paste"
	"github.com/zhengpenghou/lanpaste/pkg/serve"
	"github.com/zhengpenghou/lanpaste/pkg/store"
	"github.com/zhengpenghou/lanpaste/pkg/version"
)

type CreateResponse struct {
	ID      string `json:"id"`
	Path    string `json:"path"`
	Commit  string `json:"commit"`
	RawURL  string `json:"raw_url"`
	ViewURL string `json:"view_url"`
	MetaURL string `json:"meta_url"`
}

// CreatePaste is the write pipeline entry: CIDR allowlist, authentication,
// size guard, idempotency lookup, then the store. The rate limit is checked
// before the size guard when no Idempotency-Key is sent, and after the
// idempotency lookup when one is, so replays are answered from the cache
// without consuming a rate token.
func (s *Server) CreatePaste(w http.ResponseWriter, r *http.Request) {
	if s.checkCIDR(w, r) != nil {
		return
	}
	req, err := s.doAuth(w, r, serve.ScopePasteCreate)
	if err != nil {
		return
	}
	q := r.URL.Query()
	name, tag, subject := q.Get("name"), q.Get("tag"), q.Get("msg")
	contentType := r.Header.Get("Content-Type")
	idemKey := r.Header.Get(IdempotencyKey)

	if idemKey == "" && !s.rateAllow(req) {
		renderFailure(w, r, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
		return
	}
	if r.ContentLength > s.MaxBytes {
		renderFailureFormat(w, r, http.StatusRequestEntityTooLarge, "payload_too_large", "body exceeds %d bytes", s.MaxBytes)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.MaxBytes))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			renderFailureFormat(w, r, http.StatusRequestEntityTooLarge, "payload_too_large", "body exceeds %d bytes", s.MaxBytes)
			return
		}
		renderFailure(w, r, http.StatusBadRequest, "bad_request", "read request body failed")
		return
	}

	var fingerprint string
	if idemKey != "" {
		fingerprint = Fingerprint(contentType, tag, name, body)
		state, rec := s.idem.Check(req.Principal, idemKey, fingerprint)
		switch state {
		case IdemReplay:
			w.Header().Set("Content-Type", JSON_MIME)
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(rec.body)
			return
		case IdemConflict:
			renderFailure(w, r, http.StatusConflict, "conflict", "idempotency key reused with a different payload")
			return
		}
		if !s.rateAllow(req) {
			renderFailure(w, r, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
			return
		}
	}

	// the pipeline runs to completion even when the client goes away:
	// a commit that lands must stand
	p, err := s.store.Create(context.WithoutCancel(r.Context()), &store.CreateRequest{
		Body:        body,
		Name:        name,
		Tag:         tag,
		ContentType: contentType,
		Subject:     subject,
	})
	if err != nil {
		s.renderError(w, req, err)
		return
	}
	resp := &CreateResponse{
		ID:      p.ID,
		Path:    p.Path,
		Commit:  p.Commit,
		RawURL:  strengthen.StrCat("/api/v1/p/", p.ID, "/raw"),
		ViewURL: strengthen.StrCat("/p/", p.ID),
		MetaURL: strengthen.StrCat("/api/v1/p/", p.ID),
	}
	data, err := json.Marshal(resp)
	if err != nil {
		s.renderError(w, req, err)
		return
	}
	data = append(data, '\n')
	if idemKey != "" {
		s.idem.Store(req.Principal, idemKey, fingerprint, http.StatusCreated, data)
	}
	w.Header().Set("Content-Type", JSON_MIME)
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(data)
}

func (s *Server) GetMeta(w http.ResponseWriter, r *Request) {
	p, err := s.store.Meta(mux.Vars(r.Request)["id"])
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	JsonEncode(w, http.StatusOK, p)
}

func (s *Server) GetRaw(w http.ResponseWriter, r *Request) {
	data, p, err := s.store.Raw(mux.Vars(r.Request)["id"])
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", strengthen.StrCat(`attachment; filename="`, paste.Filename(p.ID, p.Slug, p.Ext), `"`))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) RecentList(w http.ResponseWriter, r *Request) {
	q := r.URL.Query()
	var n int
	if v := q.Get("n"); v != "" {
		var err error
		if n, err = strconv.Atoi(v); err != nil {
			renderFailure(w, r.Request, http.StatusBadRequest, "bad_request", "malformed query parameter 'n'")
			return
		}
	}
	pastes, err := s.store.Recent(n, q.Get("tag"))
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	JsonEncode(w, http.StatusOK, pastes)
}

func (s *Server) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "ok\n")
}

func (s *Server) Readyz(w http.ResponseWriter, r *http.Request) {
	if !s.store.Ready(r.Context()) {
		renderFailure(w, r, http.StatusServiceUnavailable, "not_ready", "store unavailable")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "ok\n")
}

func (s *Server) APIIndex(w http.ResponseWriter, r *Request) {
	JsonEncode(w, http.StatusOK, map[string]any{
		"name":    "lanpaste",
		"version": version.GetVersion(),
		"endpoints": []map[string]string{
			{"method": "POST", "path": "/api/v1/paste", "scope": serve.ScopePasteCreate},
			{"method": "GET", "path": "/api/v1/p/{id}", "scope": serve.ScopePasteRead},
			{"method": "GET", "path": "/api/v1/p/{id}/raw", "scope": serve.ScopePasteRead},
			{"method": "GET", "path": "/api/v1/recent", "scope": serve.ScopeRecentRead},
			{"method": "GET", "path": "/api", "scope": serve.ScopeAPIIndex},
		},
	})
}
