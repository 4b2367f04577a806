// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package httpserver

import (
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/zhengpenghou/lanpaste/modules/strengthen"
	"github.com/zhengpenghou/lanpaste/pkg/paste"
	"github.com/zhengpenghou/lanpaste/pkg/store"
)

const viewTemplateText = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; margin: 2rem auto; max-width: 56rem; padding: 0 1rem; }
pre { background: #f6f8fa; padding: 1rem; overflow-x: auto; }
code { background: #f6f8fa; }
</style>
</head>
<body>
{{.Body}}
</body>
</html>
`

const dashboardTemplateText = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>lanpaste</title>
<style>
body { font-family: sans-serif; margin: 2rem auto; max-width: 72rem; padding: 0 1rem; }
table { border-collapse: collapse; width: 100%; }
th, td { text-align: left; padding: 0.3rem 0.8rem; border-bottom: 1px solid #ddd; }
td.num { text-align: right; }
</style>
</head>
<body>
<h1>lanpaste</h1>
<p>{{len .Pastes}} recent pastes</p>
<table>
<tr><th>id</th><th>name</th><th>tag</th><th>size</th><th>created</th><th></th></tr>
{{range .Pastes}}
<tr>
<td><a href="/p/{{.ID}}">{{.ID}}</a></td>
<td>{{filename .}}</td>
<td>{{.Tag}}</td>
<td class="num">{{size .Size}}</td>
<td>{{stamp .CreatedAt}}</td>
<td><a href="/api/v1/p/{{.ID}}/raw">raw</a> <a href="/api/v1/p/{{.ID}}">meta</a></td>
</tr>
{{end}}
</table>
</body>
</html>
`

var (
	viewTemplate      = template.Must(template.New("view").Parse(viewTemplateText))
	dashboardTemplate = template.Must(template.New("dashboard").Funcs(template.FuncMap{
		"size":     strengthen.FormatSize,
		"stamp":    func(t time.Time) string { return t.UTC().Format(time.RFC3339) },
		"filename": func(p *paste.Paste) string { return paste.Filename(p.ID, p.Slug, p.Ext) },
	}).Parse(dashboardTemplateText))
)

// ViewPaste renders a single paste as HTML: markdown through the
// renderer/sanitizer, everything else escaped into a <pre> block.
func (s *Server) ViewPaste(w http.ResponseWriter, r *http.Request) {
	data, p, err := s.store.Raw(mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			renderFailure(w, r, http.StatusNotFound, "not_found", "no such paste")
			return
		}
		renderFailure(w, r, http.StatusInternalServerError, "internal", "internal server error")
		r.Header.Set(ErrorMessageKey, err.Error())
		return
	}
	fragment, err := s.render.Render(p, data)
	if err != nil {
		renderFailure(w, r, http.StatusInternalServerError, "internal", "internal server error")
		r.Header.Set(ErrorMessageKey, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := viewTemplate.Execute(w, map[string]any{
		"Title": paste.Filename(p.ID, p.Slug, p.Ext),
		"Body":  template.HTML(fragment),
	}); err != nil {
		logrus.Errorf("execute view template error: %v", err)
	}
}

// Dashboard lists the most recent pastes.
func (s *Server) Dashboard(w http.ResponseWriter, r *http.Request) {
	pastes, err := s.store.Recent(store.DefaultRecentWindow, "")
	if err != nil {
		renderFailure(w, r, http.StatusInternalServerError, "internal", "internal server error")
		r.Header.Set(ErrorMessageKey, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := dashboardTemplate.Execute(w, map[string]any{"Pastes": pastes}); err != nil {
		logrus.Errorf("execute dashboard template error: %v", err)
	}
}
