// SPDX-License-Identifier: Apache-2.0

// Command vecbench exercises the vector and its allocator backends.
package main

import (
	"os"

	kingpin "github.com/alecthomas/kingpin/v2"

	"github.com/wundergraph/go-alloc/internal/cli/bench"
	"github.com/wundergraph/go-alloc/internal/cli/demo"
	"github.com/wundergraph/go-alloc/internal/config"
	"github.com/wundergraph/go-alloc/internal/log"
)

const (
	appName = "vecbench"
	appDesc = "Runs the vector scenarios and benchmarks the allocator backends."
)

var (
	// Version is set at build time.
	Version = "dev"

	mainLog = log.Get()
)

func main() {
	conf, err := config.Load()
	if err != nil {
		mainLog.WithError(err).Fatal("Invalid configuration")
	}

	app := kingpin.New(appName, appDesc)
	app.Version(Version)
	app.HelpFlag.Short('h')
	app.Flag("log-level", "Log level: error, warn, info, debug").
		Default(conf.LogLevel).StringVar(&conf.LogLevel)
	app.Flag("log-format", "Log format: text or json").
		Default(conf.LogFormat).EnumVar(&conf.LogFormat, "text", "json")
	app.PreAction(func(*kingpin.ParseContext) error {
		log.SetLevel(conf.LogLevel)
		mainLog.Formatter = log.NewFormatter(conf.LogFormat)
		return nil
	})

	demo.AddTo(app)
	bench.AddTo(app, conf)

	if _, err := app.Parse(os.Args[1:]); err != nil {
		mainLog.WithError(err).Error("Command failed")
		os.Exit(1)
	}
}
