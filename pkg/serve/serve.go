// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package serve holds configuration types shared by the serving commands:
// TOML helpers and the API key table.
package serve

import (
	"io"
	"os"
	"strings"
	"time"
)

const (
	MiByte = 1 << 20
)

type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// NewExpandReader opens a config file, optionally substituting ${var}
// references from the environment before parsing.
func NewExpandReader(file string, expandEnv bool) (io.ReadCloser, error) {
	fd, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	if !expandEnv {
		return fd, nil
	}
	defer fd.Close() // nolint
	buf, err := io.ReadAll(io.LimitReader(fd, 4*MiByte))
	if err != nil {
		return nil, err
	}
	b := strings.NewReader(os.ExpandEnv(string(buf)))
	return io.NopCloser(b), nil
}
