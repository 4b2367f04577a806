// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package httpserver

import (
	"bytes"
	"html"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/zhengpenghou/lanpaste/pkg/paste"
)

// Renderer produces safe HTML fragments for the view route.
type Renderer interface {
	Render(p *paste.Paste, body []byte) ([]byte, error)
}

// htmlRenderer renders markdown through goldmark and scrubs the result with
// bluemonday's UGC policy: script, event attributes, javascript/data URLs
// and style never survive. Anything that is not markdown is escaped into a
// <pre> block.
type htmlRenderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

func NewRenderer() Renderer {
	return &htmlRenderer{
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM)),
		policy: bluemonday.UGCPolicy(),
	}
}

func (r *htmlRenderer) Render(p *paste.Paste, body []byte) ([]byte, error) {
	if !p.IsMarkdown() {
		var buf bytes.Buffer
		buf.Grow(len(body) + 16)
		buf.WriteString("<pre>")
		buf.WriteString(html.EscapeString(string(body)))
		buf.WriteString("</pre>")
		return buf.Bytes(), nil
	}
	var out bytes.Buffer
	if err := r.md.Convert(body, &out); err != nil {
		return nil, err
	}
	return r.policy.SanitizeBytes(out.Bytes()), nil
}
