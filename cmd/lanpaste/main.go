// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"

	"github.com/alecthomas/kong"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"

	"github.com/zhengpenghou/lanpaste/pkg/version"
)

type App struct {
	Globals
	Serve Serve `cmd:"serve" help:"Start the paste service"`
}

func setupLogging(verbose bool) {
	stderrIsTerminal := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		DisableColors: !stderrIsTerminal,
	})
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
}

func main() {
	var app App
	ctx := kong.Parse(&app,
		kong.Name("lanpaste"),
		kong.Description("LAN-scoped paste service whose durable state is a git repository"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version.GetVersionString(),
		},
	)
	setupLogging(app.Verbose)
	if err := ctx.Run(&app.Globals); err != nil {
		os.Exit(1)
	}
}
