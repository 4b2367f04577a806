// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zhengpenghou/lanpaste/modules/command"
	"github.com/zhengpenghou/lanpaste/pkg/paste"
)

type CreateRequest struct {
	Body        []byte
	Name        string
	Tag         string
	ContentType string
	Subject     string
}

// Create runs the whole write pipeline under the store mutex: derive id and
// paths, stage both files with temp-and-rename, commit, embed the commit
// hash into the metadata by amending, then drive the push policy. On any
// failure the staged files and the git index are restored to the pre-call
// state.
func (s *Store) Create(ctx context.Context, req *CreateRequest) (*paste.Paste, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	id := paste.NewID(now)
	slug, ext := paste.SplitName(req.Name)
	sum := sha256.Sum256(req.Body)

	relContent := paste.ContentPath(id, slug, ext, now)
	relMeta := paste.MetaPath(id)
	absContent := filepath.Join(s.repoDir, filepath.FromSlash(relContent))
	absMeta := filepath.Join(s.repoDir, filepath.FromSlash(relMeta))

	p := &paste.Paste{
		ID:          id,
		SHA256:      hex.EncodeToString(sum[:]),
		ContentType: req.ContentType,
		Tag:         req.Tag,
		Size:        int64(len(req.Body)),
		CreatedAt:   now,
		Path:        relContent,
		Slug:        slug,
		Ext:         ext,
	}

	rollback := func() {
		_ = os.Remove(absContent)
		_ = os.Remove(absMeta)
		if _, err := s.git(ctx, "reset", "--quiet"); err != nil {
			logrus.Errorf("unstage after failed create error: %v", command.FromError(err))
		}
	}

	if err := s.writeFileAtomic(absContent, req.Body); err != nil {
		rollback()
		return nil, err
	}
	if err := s.writeMetaAtomic(absMeta, p); err != nil {
		rollback()
		return nil, err
	}
	if _, err := s.git(ctx, "add", "--", relContent, relMeta); err != nil {
		rollback()
		return nil, err
	}
	subject := req.Subject
	if subject == "" {
		subject = "paste " + id
	}
	if _, err := s.git(ctx, "commit", "--quiet", "-m", subject); err != nil {
		rollback()
		return nil, err
	}

	// Two-phase: the metadata has to name the commit that introduces it, so
	// the hash is embedded after the fact and squashed in by amending. The
	// amend rewrites the hash once more, so the on-disk record is refreshed
	// a final time to match the published HEAD.
	head, err := s.git(ctx, "rev-parse", "HEAD")
	if err != nil {
		s.dropHeadCommit(ctx, absContent, absMeta)
		return nil, err
	}
	p.Commit = head
	if err := s.amendMeta(ctx, absMeta, relMeta, p); err != nil {
		s.dropHeadCommit(ctx, absContent, absMeta)
		return nil, err
	}
	if head, err = s.git(ctx, "rev-parse", "HEAD"); err != nil {
		s.dropHeadCommit(ctx, absContent, absMeta)
		return nil, err
	}
	p.Commit = head
	if err := s.writeMetaAtomic(absMeta, p); err != nil {
		s.dropHeadCommit(ctx, absContent, absMeta)
		return nil, err
	}

	if err := s.push(ctx); err != nil {
		s.dropHeadCommit(ctx, absContent, absMeta)
		return nil, ErrPushFailed
	}
	return p, nil
}

func (s *Store) amendMeta(ctx context.Context, absMeta, relMeta string, p *paste.Paste) error {
	if err := s.writeMetaAtomic(absMeta, p); err != nil {
		return err
	}
	if _, err := s.git(ctx, "add", "--", relMeta); err != nil {
		return err
	}
	_, err := s.git(ctx, "commit", "--quiet", "--amend", "--no-edit")
	return err
}

// dropHeadCommit compensates for a failure after the commit already landed:
// move HEAD back one commit, unstage, and unlink the two files the dropped
// commit introduced. A mixed reset is used rather than --hard so metadata
// records of earlier pastes are left untouched.
func (s *Store) dropHeadCommit(ctx context.Context, absContent, absMeta string) {
	if _, err := s.git(ctx, "reset", "--quiet", "HEAD~1"); err != nil {
		logrus.Errorf("drop commit error: %v", command.FromError(err))
	}
	_ = os.Remove(absContent)
	_ = os.Remove(absMeta)
}

func (s *Store) push(ctx context.Context) error {
	if s.pushMode == PushOff || s.remote == "" {
		return nil
	}
	_, err := s.git(ctx, "push", "--quiet", s.remote, "HEAD")
	if err == nil {
		return nil
	}
	if s.pushMode == PushBestEffort {
		logrus.Warnf("push to '%s' error: %v", s.remote, command.FromError(err))
		return nil
	}
	return err
}

// writeFileAtomic stages data in tmp/, fsyncs and renames it into place.
func (s *Store) writeFileAtomic(dest string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	fd, err := os.CreateTemp(s.tmpDir, "stage-*")
	if err != nil {
		return err
	}
	name := fd.Name()
	if _, err := fd.Write(data); err != nil {
		_ = fd.Close()
		_ = os.Remove(name)
		return err
	}
	if err := fd.Sync(); err != nil {
		_ = fd.Close()
		_ = os.Remove(name)
		return err
	}
	if err := fd.Close(); err != nil {
		_ = os.Remove(name)
		return err
	}
	if err := os.Rename(name, dest); err != nil {
		_ = os.Remove(name)
		return err
	}
	return nil
}

func (s *Store) writeMetaAtomic(dest string, p *paste.Paste) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return s.writeFileAtomic(dest, append(data, '\n'))
}
