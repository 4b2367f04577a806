// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/zhengpenghou/lanpaste/modules/strengthen"
	"github.com/zhengpenghou/lanpaste/pkg/serve/httpserver"
	"github.com/zhengpenghou/lanpaste/pkg/store"
)

type Serve struct {
	Config         string   `short:"c" name:"config" help:"Location of server config file (TOML); explicit flags win" type:"path"`
	Dir            string   `name:"dir" help:"Base data directory (required unless set in the config file)" type:"path"`
	Bind           string   `name:"bind" help:"Listen address (default: 0.0.0.0:8090)" placeholder:"<ip:port>"`
	Token          string   `name:"token" help:"Shared token checked against X-Paste-Token"`
	APIKeysFile    string   `name:"api-keys-file" help:"JSON API keys file; enables key auth, scopes and rate limits" type:"path"`
	MaxBytes       int64    `name:"max-bytes" help:"Largest accepted body in bytes (default: 1048576)"`
	Push           string   `name:"push" help:"Push mode after each commit: off, best_effort or strict (default: off)"`
	Remote         string   `name:"remote" help:"Git remote pushed to (default: origin)"`
	AllowCIDR      []string `name:"allow-cidr" help:"CIDR allowlist for the create route, repeatable"`
	GitAuthorName  string   `name:"git-author-name" help:"Commit author name (default: LAN Paste)"`
	GitAuthorEmail string   `name:"git-author-email" help:"Commit author email (default: paste@lan)"`
}

func (c *Serve) makeServerConfig(g *Globals) (*httpserver.ServerConfig, error) {
	sc := httpserver.DefaultServerConfig()
	if c.Config != "" {
		var err error
		if sc, err = httpserver.NewServerConfig(c.Config, g.ExpandEnv); err != nil {
			logrus.Errorf("lanpaste serve load server config error: %v", err)
			return nil, err
		}
	}
	if c.Dir != "" {
		sc.Dir = c.Dir
	}
	if c.Bind != "" {
		sc.Listen = c.Bind
	}
	if c.Token != "" {
		sc.Token = c.Token
	}
	if c.APIKeysFile != "" {
		sc.APIKeysFile = c.APIKeysFile
	}
	if c.MaxBytes > 0 {
		sc.MaxBytes = c.MaxBytes
	}
	if c.Push != "" {
		sc.Push = c.Push
	}
	if c.Remote != "" {
		sc.Remote = c.Remote
	}
	if len(c.AllowCIDR) != 0 {
		sc.AllowCIDR = c.AllowCIDR
	}
	if c.GitAuthorName != "" {
		sc.GitAuthorName = c.GitAuthorName
	}
	if c.GitAuthorEmail != "" {
		sc.GitAuthorEmail = c.GitAuthorEmail
	}
	if sc.Dir == "" {
		logrus.Errorf("lanpaste serve: --dir is required")
		return nil, errors.New("missing data directory")
	}
	sc.Dir = strengthen.ExpandPath(sc.Dir)
	return sc, nil
}

func (c *Serve) Run(g *Globals) error {
	sc, err := c.makeServerConfig(g)
	if err != nil {
		return err
	}
	g.DbgPrint("data dir: %s", sc.Dir)
	lock, err := store.AcquireLock(sc.Dir)
	if err != nil {
		logrus.Errorf("lanpaste serve acquire daemon lock error: %v", err)
		return err
	}
	defer func() {
		_ = lock.Release()
	}()
	srv, err := httpserver.NewServer(context.Background(), sc)
	if err != nil {
		logrus.Errorf("lanpaste serve new httpd server error: %v", err)
		return err
	}
	eg, egCtx := errgroup.WithContext(context.Background())
	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Errorf("lanpaste serve listen error: %v", err)
			return err
		}
		return nil
	})
	eg.Go(func() error {
		return waitForShutdown(egCtx, srv, sc.ShutdownTimeout.Duration)
	})
	if err := eg.Wait(); err != nil {
		return err
	}
	logrus.Infof("lanpaste exited")
	return nil
}
