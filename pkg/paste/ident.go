// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package paste

import (
	"crypto/rand"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	DefaultSlug = "paste"
	maxSlugLen  = 64
	maxExtLen   = 8
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewID returns a 26-char ULID. IDs are monotonic within the process, so
// lexicographic order matches creation order even inside one millisecond.
func NewID(now time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(now.UTC()), entropy).String()
}

// ParseID reports whether s is a well-formed ULID.
func ParseID(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}

// SplitName splits a caller-supplied filename hint into slug and extension.
// The extension is the final dot segment, lowercased, when it is alphanumeric
// and at most 8 chars; everything else stays in the stem. A leading dot does
// not start an extension (".bashrc" has none). A stem that sanitises to
// nothing becomes DefaultSlug.
func SplitName(name string) (slug, ext string) {
	stem := name
	if dot := strings.LastIndexByte(name, '.'); dot > 0 && dot < len(name)-1 {
		if candidate := name[dot+1:]; isAlnum(candidate) && len(candidate) <= maxExtLen {
			stem, ext = name[:dot], strings.ToLower(candidate)
		}
	}
	slug = Slugify(stem)
	return slug, ext
}

// Slugify reduces s to [A-Za-z0-9._-], collapses a run of the same separator
// ('_' or '-') to one (a mixed run such as "-_" is kept), trims leading and
// trailing separators, and truncates to 64 bytes.
func Slugify(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	var lastSep byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '.':
			b.WriteByte(c)
			lastSep = 0
		case c == '_', c == '-':
			if lastSep == c {
				continue
			}
			b.WriteByte(c)
			lastSep = c
		default:
			// dropped
		}
	}
	slug := strings.Trim(b.String(), "_-")
	if len(slug) > maxSlugLen {
		slug = strings.Trim(slug[:maxSlugLen], "_-")
	}
	if slug == "" || strings.Trim(slug, ".") == "" {
		return DefaultSlug
	}
	return slug
}

func isAlnum(s string) bool {
	if len(s) == 0 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

// Filename joins id, slug and extension into the on-disk file name,
// <ID>__<slug>.<ext>, omitting the dot when there is no extension.
func Filename(id, slug, ext string) string {
	if ext == "" {
		return id + "__" + slug
	}
	return id + "__" + slug + "." + ext
}

// ContentPath returns the repo-relative dated content path,
// pastes/YYYY/MM/DD/<ID>__<slug>.<ext>. The date is the UTC date at commit
// time.
func ContentPath(id, slug, ext string, now time.Time) string {
	u := now.UTC()
	return path.Join("pastes", u.Format("2006"), u.Format("01"), u.Format("02"), Filename(id, slug, ext))
}

// MetaPath returns the repo-relative metadata path, meta/<ID>.json.
func MetaPath(id string) string {
	return path.Join("meta", id+".json")
}
