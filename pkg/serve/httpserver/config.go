// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package httpserver

import (
	"time"

	"github.com/BurntSushi/toml"

	"github.com/zhengpenghou/lanpaste/pkg/serve"
	"github.com/zhengpenghou/lanpaste/pkg/version"
)

const (
	DefaultListen          = "0.0.0.0:8090"
	DefaultMaxBytes        = 1048576
	DefaultRemote          = "origin"
	DefaultAuthorName      = "LAN Paste"
	DefaultAuthorEmail     = "paste@lan"
	DefaultIdleTimeout     = 5 * time.Minute
	DefaultShutdownTimeout = 10 * time.Second
)

type ServerConfig struct {
	Listen          string         `toml:"listen,omitempty"`
	Dir             string         `toml:"dir"`
	Token           string         `toml:"token,omitempty"`
	APIKeysFile     string         `toml:"api_keys_file,omitempty"`
	MaxBytes        int64          `toml:"max_bytes,omitempty"`
	Push            string         `toml:"push,omitempty"`
	Remote          string         `toml:"remote,omitempty"`
	AllowCIDR       []string       `toml:"allow_cidr,omitempty"`
	GitAuthorName   string         `toml:"git_author_name,omitempty"`
	GitAuthorEmail  string         `toml:"git_author_email,omitempty"`
	IdleTimeout     serve.Duration `toml:"idle_timeout,omitempty"`
	ShutdownTimeout serve.Duration `toml:"shutdown_timeout,omitempty"`
	BannerVersion   string         `toml:"banner_version,omitempty"`
}

func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Listen:          DefaultListen,
		MaxBytes:        DefaultMaxBytes,
		Push:            "off",
		Remote:          DefaultRemote,
		GitAuthorName:   DefaultAuthorName,
		GitAuthorEmail:  DefaultAuthorEmail,
		IdleTimeout:     serve.Duration{Duration: DefaultIdleTimeout},
		ShutdownTimeout: serve.Duration{Duration: DefaultShutdownTimeout},
		BannerVersion:   version.GetServerVersion(),
	}
}

// NewServerConfig loads a TOML config file over the defaults. Explicit
// command line flags are applied on top by the caller.
func NewServerConfig(file string, expandEnv bool) (*ServerConfig, error) {
	r, err := serve.NewExpandReader(file, expandEnv)
	if err != nil {
		return nil, err
	}
	defer r.Close() // nolint
	sc := DefaultServerConfig()
	if _, err = toml.NewDecoder(r).Decode(sc); err != nil {
		return nil, err
	}
	return sc, nil
}
