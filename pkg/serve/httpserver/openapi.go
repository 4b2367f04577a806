// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package httpserver

import (
	"net/http"

	"github.com/zhengpenghou/lanpaste/pkg/version"
)

// OpenAPI serves a minimal machine-readable description of the API surface.
func (s *Server) OpenAPI(w http.ResponseWriter, r *http.Request) {
	errorSchema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"error":   map[string]any{"type": "string"},
			"message": map[string]any{"type": "string"},
		},
	}
	pasteSchema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"id":           map[string]any{"type": "string"},
			"sha256":       map[string]any{"type": "string"},
			"commit":       map[string]any{"type": "string"},
			"content_type": map[string]any{"type": "string"},
			"tag":          map[string]any{"type": "string"},
			"size":         map[string]any{"type": "integer"},
			"created_at":   map[string]any{"type": "string", "format": "date-time"},
			"path":         map[string]any{"type": "string"},
			"slug":         map[string]any{"type": "string"},
			"ext":          map[string]any{"type": "string"},
		},
	}
	doc := map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":   "lanpaste",
			"version": version.GetVersion(),
		},
		"paths": map[string]any{
			"/api/v1/paste": map[string]any{
				"post": map[string]any{
					"summary": "Create a paste from the request body",
					"parameters": []map[string]any{
						{"name": "name", "in": "query", "schema": map[string]any{"type": "string"}},
						{"name": "tag", "in": "query", "schema": map[string]any{"type": "string"}},
						{"name": "msg", "in": "query", "schema": map[string]any{"type": "string"}},
					},
					"responses": map[string]any{
						"201": map[string]any{"description": "created"},
						"409": map[string]any{"description": "idempotency conflict"},
						"413": map[string]any{"description": "payload too large"},
					},
				},
			},
			"/api/v1/p/{id}":     map[string]any{"get": map[string]any{"summary": "Fetch paste metadata"}},
			"/api/v1/p/{id}/raw": map[string]any{"get": map[string]any{"summary": "Fetch raw paste bytes"}},
			"/api/v1/recent":     map[string]any{"get": map[string]any{"summary": "List recent pastes"}},
			"/p/{id}":            map[string]any{"get": map[string]any{"summary": "Rendered HTML view"}},
			"/healthz":           map[string]any{"get": map[string]any{"summary": "Liveness"}},
			"/readyz":            map[string]any{"get": map[string]any{"summary": "Readiness"}},
		},
		"components": map[string]any{
			"schemas": map[string]any{
				"Error": errorSchema,
				"Paste": pasteSchema,
			},
		},
	}
	JsonEncode(w, http.StatusOK, doc)
}
