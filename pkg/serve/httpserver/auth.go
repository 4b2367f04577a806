// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package httpserver

import (
	"errors"
	"net/http"

	"github.com/zhengpenghou/lanpaste/pkg/serve"
)

const (
	APIKeyHeader     = "X-API-Key"
	PasteTokenHeader = "X-Paste-Token"
	IdempotencyKey   = "Idempotency-Key"

	// AnonymousPrincipal buckets idempotency records when no API key
	// identifies the caller.
	AnonymousPrincipal = "anonymous"
)

var (
	ErrStop = errors.New("stop")
)

// Request carries the resolved caller identity alongside the raw request.
type Request struct {
	*http.Request
	Principal string
	Key       *serve.APIKey
}

type HandlerFunc func(http.ResponseWriter, *Request)

// doAuth resolves the caller for a protected route. With an API keys file
// configured, X-API-Key must name a known key holding the route's scope; the
// shared token header is ignored in that mode. With only --token configured,
// X-Paste-Token must match. With neither, the route is open.
func (s *Server) doAuth(w http.ResponseWriter, r *http.Request, scope string) (*Request, error) {
	if s.keychain != nil {
		key, ok := s.keychain.Lookup(r.Header.Get(APIKeyHeader))
		if !ok {
			renderFailure(w, r, http.StatusUnauthorized, "unauthorized", "missing or unknown API key")
			return nil, ErrStop
		}
		if !key.HasScope(scope) {
			renderFailureFormat(w, r, http.StatusForbidden, "forbidden", "key '%s' lacks scope '%s'", key.Name, scope)
			return nil, ErrStop
		}
		return &Request{Request: r, Principal: key.Name, Key: key}, nil
	}
	if s.Token != "" {
		if r.Header.Get(PasteTokenHeader) != s.Token {
			renderFailure(w, r, http.StatusUnauthorized, "unauthorized", "missing or invalid token")
			return nil, ErrStop
		}
	}
	return &Request{Request: r, Principal: AnonymousPrincipal}, nil
}

// rateAllow consumes one token from the caller's bucket. Rate limiting only
// exists in API-keys mode; everyone else passes.
func (s *Server) rateAllow(req *Request) bool {
	if req.Key == nil {
		return true
	}
	return s.limiter.Allow(req.Key.Name)
}

// OnFunc wraps a read-style handler with authentication, scope and rate
// admission. The create route composes these pieces itself because
// idempotency replays must not consume rate tokens.
func (s *Server) OnFunc(fn HandlerFunc, scope string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := s.doAuth(w, r, scope)
		if err != nil {
			return
		}
		if !s.rateAllow(req) {
			renderFailure(w, r, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
			return
		}
		fn(w, req)
	}
}

// checkCIDR enforces the allowlist against the raw socket peer.
// X-Forwarded-For is deliberately not consulted.
func (s *Server) checkCIDR(w http.ResponseWriter, r *http.Request) error {
	if len(s.allowNets) == 0 {
		return nil
	}
	ip := socketRemoteIP(r)
	if ip != nil {
		for _, n := range s.allowNets {
			if n.Contains(ip) {
				return nil
			}
		}
	}
	renderFailure(w, r, http.StatusForbidden, "forbidden", "client IP not in allowlist")
	return ErrStop
}
