// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/zhengpenghou/lanpaste/pkg/store"
)

const (
	ErrorMessageKey = "X-Paste-Error-Message"
	JSON_MIME       = "application/json"
)

// ErrorResponse is the error envelope every failing API route renders.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ResponseWriter shadow ResponseWriter
type ResponseWriter struct {
	http.ResponseWriter
	written    int64
	statusCode int
	remoteAddr string
}

// NewResponseWriter bind ResponseWriter
func NewResponseWriter(w http.ResponseWriter, r *http.Request) *ResponseWriter {
	return &ResponseWriter{ResponseWriter: w, statusCode: http.StatusOK, remoteAddr: displayRemoteAddress(r)}
}

// Write data
func (w *ResponseWriter) Write(data []byte) (int, error) {
	written, err := w.ResponseWriter.Write(data)
	w.written += int64(written)
	return written, err
}

// WriteHeader write header statusCode
func (w *ResponseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// StatusCode return statusCode
func (w *ResponseWriter) StatusCode() int {
	return w.statusCode
}

// Written return body size
func (w *ResponseWriter) Written() int64 {
	return w.written
}

func (w *ResponseWriter) RemoteAddr() string {
	return w.remoteAddr
}

type trackedReader struct {
	rc       io.ReadCloser
	received int64
}

func newTrackedReader(rc io.ReadCloser) *trackedReader {
	return &trackedReader{rc: rc}
}

// Read reads up to len(data) bytes from the channel.
func (r *trackedReader) Read(data []byte) (int, error) {
	n, err := r.rc.Read(data)
	r.received += int64(n)
	return n, err
}

func (r *trackedReader) Close() error {
	return r.rc.Close()
}

// displayRemoteAddress is the address shown in access logs. Proxy headers
// are honoured here and only here; admission uses socketRemoteIP.
func displayRemoteAddress(r *http.Request) string {
	xForwardedFor := r.Header.Get("X-Forwarded-For")
	if addr := strings.TrimSpace(strings.Split(xForwardedFor, ",")[0]); len(addr) != 0 {
		return addr
	}
	if addr := strings.TrimSpace(r.Header.Get("X-Real-Ip")); len(addr) != 0 {
		return addr
	}
	addr, _, _ := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	return addr
}

// socketRemoteIP is the raw TCP peer address. The CIDR allowlist trusts
// nothing else.
func socketRemoteIP(r *http.Request) net.IP {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		host = strings.TrimSpace(r.RemoteAddr)
	}
	return net.ParseIP(host)
}

func renderFailureFormat(w http.ResponseWriter, r *http.Request, statusCode int, code, format string, a ...any) {
	renderFailure(w, r, statusCode, code, fmt.Sprintf(format, a...))
}

func renderFailure(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	resp := &ErrorResponse{
		Error:   code,
		Message: message,
	}
	w.Header().Set("Content-Type", JSON_MIME)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(resp)
	if statusCode != http.StatusOK {
		r.Header.Set(ErrorMessageKey, message)
	}
}

// renderError maps store errors onto the wire. Internal detail never leaks
// into the message field; it travels to the access log through the error
// message header.
func (s *Server) renderError(w http.ResponseWriter, r *Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		renderFailure(w, r.Request, http.StatusNotFound, "not_found", "no such paste")
	case errors.Is(err, store.ErrPushFailed):
		renderFailure(w, r.Request, http.StatusInternalServerError, "push_failed", "push to remote failed")
	default:
		renderFailure(w, r.Request, http.StatusInternalServerError, "internal", "internal server error")
		r.Header.Set(ErrorMessageKey, err.Error())
	}
}

func JsonEncode(w http.ResponseWriter, statusCode int, a any) {
	w.Header().Set("Content-Type", JSON_MIME)
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(a); err != nil {
		logrus.Errorf("encode response error: %v", err)
	}
}
