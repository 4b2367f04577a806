// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

type Shutdowner interface {
	Shutdown(ctx context.Context) error
}

// waitForShutdown blocks until SIGINT/SIGTERM arrives, then drains the
// server within timeout. Returns early when ctx ends because the server
// already stopped on its own.
func waitForShutdown(ctx context.Context, s Shutdowner, timeout time.Duration) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	select {
	case sig := <-sigCh:
		logrus.Infof("received signal %v, shutting down", sig)
	case <-ctx.Done():
		return nil
	}
	sctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.Shutdown(sctx)
}
