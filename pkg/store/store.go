// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package store owns the git repository that holds every paste. All
// mutations are serialised on a single mutex and flow through one write
// pipeline: temp file, fsync, rename, git add, git commit, push policy.
package store

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/zhengpenghou/lanpaste/modules/command"
)

var (
	ErrNotFound       = errors.New("paste not found")
	ErrGitUnavailable = errors.New("git binary not found")
	ErrAlreadyRunning = errors.New("already running")
	ErrPushFailed     = errors.New("push failed")
)

type PushMode string

const (
	PushOff        PushMode = "off"
	PushBestEffort PushMode = "best_effort"
	PushStrict     PushMode = "strict"
)

func ParsePushMode(s string) (PushMode, error) {
	switch PushMode(s) {
	case PushOff, PushBestEffort, PushStrict:
		return PushMode(s), nil
	}
	return PushOff, errors.New("unknown push mode '" + s + "'")
}

type Options struct {
	Dir         string
	AuthorName  string
	AuthorEmail string
	Push        PushMode
	Remote      string
}

// Store is the single writer for everything under its base directory:
// repo/ (the git repository), run/ (the daemon lock) and tmp/ (rename
// staging, cleared on open).
type Store struct {
	baseDir  string
	repoDir  string
	tmpDir   string
	remote   string
	pushMode PushMode

	mu sync.Mutex
}

// Open prepares the base directory and the git repository inside it: the
// repo is initialised with an empty root commit when absent, and the commit
// author identity is pinned. Fails with ErrGitUnavailable when no git binary
// is on PATH.
func Open(ctx context.Context, opts *Options) (*Store, error) {
	if _, err := exec.LookPath("git"); err != nil {
		return nil, ErrGitUnavailable
	}
	baseDir, err := filepath.Abs(opts.Dir)
	if err != nil {
		return nil, err
	}
	s := &Store{
		baseDir:  baseDir,
		repoDir:  filepath.Join(baseDir, "repo"),
		tmpDir:   filepath.Join(baseDir, "tmp"),
		remote:   opts.Remote,
		pushMode: opts.Push,
	}
	for _, d := range []string{s.repoDir, s.tmpDir, filepath.Join(baseDir, "run")} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, err
		}
	}
	s.clearTmp()
	// stat .git rather than rev-parse: the base directory may itself live
	// inside some unrelated repository
	if _, err := os.Stat(filepath.Join(s.repoDir, ".git")); err != nil {
		if _, err := s.git(ctx, "init", "--quiet"); err != nil {
			return nil, err
		}
	}
	for _, kv := range [][2]string{
		{"user.name", opts.AuthorName},
		{"user.email", opts.AuthorEmail},
		{"commit.gpgsign", "false"},
	} {
		if _, err := s.git(ctx, "config", kv[0], kv[1]); err != nil {
			return nil, err
		}
	}
	if _, err := s.git(ctx, "rev-parse", "HEAD"); err != nil {
		if _, err := s.git(ctx, "commit", "--allow-empty", "--quiet", "-m", "init"); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// BaseDir returns the absolute base directory the store owns.
func (s *Store) BaseDir() string {
	return s.baseDir
}

// Ready reports whether the repository exists and has a resolvable HEAD.
func (s *Store) Ready(ctx context.Context) bool {
	if _, err := os.Stat(s.repoDir); err != nil {
		return false
	}
	_, err := s.git(ctx, "rev-parse", "HEAD")
	return err == nil
}

func (s *Store) git(ctx context.Context, args ...string) (string, error) {
	cmd := command.New(ctx, s.repoDir, "git", args...)
	out, err := cmd.OneLine()
	if err != nil {
		logrus.Debugf("%s: %v", cmd, err)
	}
	return out, err
}

// clearTmp removes stale staging files left behind by a crashed process.
func (s *Store) clearTmp() {
	entries, err := os.ReadDir(s.tmpDir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(s.tmpDir, e.Name())); err != nil {
			logrus.Warnf("clear tmp entry '%s' error: %v", e.Name(), err)
		}
	}
}
