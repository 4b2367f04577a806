// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zhengpenghou/lanpaste/pkg/paste"
)

const (
	DefaultRecentWindow = 50
	MaxRecentWindow     = 500
)

// Meta loads the metadata record for id. Read-only, runs without the store
// mutex.
func (s *Store) Meta(id string) (*paste.Paste, error) {
	if !paste.ParseID(id) {
		return nil, ErrNotFound
	}
	data, err := os.ReadFile(filepath.Join(s.repoDir, "meta", id+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	p := &paste.Paste{}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Raw returns the stored body bytes together with the metadata record.
func (s *Store) Raw(id string) ([]byte, *paste.Paste, error) {
	p, err := s.Meta(id)
	if err != nil {
		return nil, nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.repoDir, filepath.FromSlash(p.Path)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	return data, p, nil
}

// Recent returns up to min(n, 500) pastes, newest first, optionally filtered
// by exact tag. ULIDs sort by creation time, so ordering is by id
// descending; n <= 0 selects the default window.
func (s *Store) Recent(n int, tag string) ([]*paste.Paste, error) {
	if n <= 0 {
		n = DefaultRecentWindow
	}
	if n > MaxRecentWindow {
		n = MaxRecentWindow
	}
	entries, err := os.ReadDir(filepath.Join(s.repoDir, "meta"))
	if err != nil {
		if os.IsNotExist(err) {
			return []*paste.Paste{}, nil
		}
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if id, ok := strings.CutSuffix(name, ".json"); ok && paste.ParseID(id) {
			ids = append(ids, id)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	pastes := make([]*paste.Paste, 0, min(n, len(ids)))
	for _, id := range ids {
		p, err := s.Meta(id)
		if err != nil {
			continue
		}
		if tag != "" && p.Tag != tag {
			continue
		}
		pastes = append(pastes, p)
		if len(pastes) == n {
			break
		}
	}
	return pastes, nil
}
