// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package httpserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"path"
	"time"

	"github.com/gorilla/mux"
	"github.com/klauspost/compress/gzhttp"
	"github.com/sirupsen/logrus"

	"github.com/zhengpenghou/lanpaste/pkg/serve"
	"github.com/zhengpenghou/lanpaste/pkg/store"
)

type Server struct {
	*ServerConfig
	srv        *http.Server
	r          *mux.Router
	store      *store.Store
	keychain   *serve.Keychain
	limiter    *limiter
	idem       *idemCache
	render     Renderer
	allowNets  []*net.IPNet
	serverName string
}

func (s *Server) initialize() error {
	r := mux.NewRouter().UseEncodedPath()
	r.HandleFunc("/", s.Dashboard).Methods("GET")
	r.HandleFunc("/dashboard", s.Dashboard).Methods("GET")
	r.HandleFunc("/healthz", s.Healthz).Methods("GET")
	r.HandleFunc("/readyz", s.Readyz).Methods("GET")
	r.HandleFunc("/openapi.json", s.OpenAPI).Methods("GET")
	r.HandleFunc("/p/{id}", s.ViewPaste).Methods("GET")
	r.HandleFunc("/api", s.OnFunc(s.APIIndex, serve.ScopeAPIIndex)).Methods("GET")
	r.HandleFunc("/api/v1/paste", s.CreatePaste).Methods("POST")
	r.HandleFunc("/api/v1/p/{id}", s.OnFunc(s.GetMeta, serve.ScopePasteRead)).Methods("GET")
	r.HandleFunc("/api/v1/p/{id}/raw", s.OnFunc(s.GetRaw, serve.ScopePasteRead)).Methods("GET")
	r.HandleFunc("/api/v1/recent", s.OnFunc(s.RecentList, serve.ScopeRecentRead)).Methods("GET")
	s.r = r
	s.srv.Handler = gzhttp.GzipHandler(s)
	return nil
}

func NewServer(ctx context.Context, sc *ServerConfig) (*Server, error) {
	pushMode, err := store.ParsePushMode(sc.Push)
	if err != nil {
		return nil, err
	}
	srv := &Server{
		ServerConfig: sc,
		srv: &http.Server{
			Addr:        sc.Listen,
			IdleTimeout: sc.IdleTimeout.Duration,
		},
		idem:       newIdemCache(),
		render:     NewRenderer(),
		serverName: sc.BannerVersion,
	}
	for _, cidr := range sc.AllowCIDR {
		_, n, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, fmt.Errorf("parse allow-cidr '%s': %w", cidr, err)
		}
		srv.allowNets = append(srv.allowNets, n)
	}
	if sc.APIKeysFile != "" {
		if srv.keychain, err = serve.LoadKeychain(sc.APIKeysFile); err != nil {
			return nil, err
		}
	}
	srv.limiter = newLimiter(srv.keychain)
	if srv.store, err = store.Open(ctx, &store.Options{
		Dir:         sc.Dir,
		AuthorName:  sc.GitAuthorName,
		AuthorEmail: sc.GitAuthorEmail,
		Push:        pushMode,
		Remote:      sc.Remote,
	}); err != nil {
		return nil, err
	}
	if err := srv.initialize(); err != nil {
		return nil, err
	}
	return srv, nil
}

func (s *Server) ListenAndServe() error {
	logrus.Infof("lanpaste httpd listen on %s, data dir %s", s.Listen, s.store.BaseDir())
	return s.srv.ListenAndServe()
}

func logResponse(hw *ResponseWriter, r *http.Request, tr *trackedReader, spent time.Duration) {
	message := r.Header.Get(ErrorMessageKey)
	switch statusCode := hw.StatusCode(); {
	case statusCode >= http.StatusOK && statusCode < http.StatusBadRequest:
		logrus.Infof("[%s] %s %s status: %d received: %d written: %d spent: %v", hw.RemoteAddr(), r.Method, r.RequestURI, statusCode, tr.received, hw.Written(), spent)
	default:
		logrus.Errorf("[%s] %s %s status: %d received: %d written: %d spent: %v message: %s", hw.RemoteAddr(), r.Method, r.RequestURI, statusCode, tr.received, hw.Written(), spent, message)
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// remove multiple slash and ./..
	if r.URL != nil && r.URL.Path != "" {
		r.URL.Path = path.Clean(r.URL.Path)
	}

	w.Header().Set("Server", s.serverName)
	tr := newTrackedReader(r.Body)
	r.Body = tr
	now := time.Now()
	hw := NewResponseWriter(w, r)
	s.r.ServeHTTP(hw, r)
	spent := time.Since(now)
	logResponse(hw, r, tr, spent)
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.srv == nil {
		return nil
	}
	if err := s.srv.Shutdown(ctx); err != nil {
		logrus.Errorf("shutdown http server %v", err)
		return err
	}
	return nil
}
