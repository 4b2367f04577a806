// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/gofrs/flock"
)

// DaemonLock is the OS-advisory exclusive lock at run/daemon.lock that keeps
// a second instance off the same base directory. Held for the lifetime of
// the serving process.
type DaemonLock struct {
	fl *flock.Flock
}

// AcquireLock takes the lock or fails with ErrAlreadyRunning when another
// process holds it. The lock file records the holder's pid for debugging.
func AcquireLock(baseDir string) (*DaemonLock, error) {
	runDir := filepath.Join(baseDir, "run")
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, err
	}
	fl := flock.New(filepath.Join(runDir, "daemon.lock"))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, ErrAlreadyRunning
	}
	if err := os.WriteFile(fl.Path(), []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		_ = fl.Unlock()
		return nil, err
	}
	return &DaemonLock{fl: fl}, nil
}

func (l *DaemonLock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
