// SPDX-License-Identifier: Apache-2.0

// Package config loads vecbench settings from VECBENCH_* environment variables.
// Command line flags override what is loaded here.
package config

import (
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

const envPrefix = "VECBENCH"

// Config holds the tunables shared by every vecbench command.
type Config struct {
	LogLevel  string `envconfig:"LOGLEVEL" default:"info"`
	LogFormat string `envconfig:"LOGFORMAT" default:"text"`
	// Elements is the number of values each benchmark vector receives.
	Elements int `envconfig:"ELEMENTS" default:"100000"`
	// Workers is the number of vectors sharing one arena in the concurrent benchmark.
	Workers int `envconfig:"WORKERS" default:"4"`
	// ArenaSlots is the slot count of every size class in benchmark arenas.
	ArenaSlots int `envconfig:"ARENA_SLOTS" default:"256"`
}

// Default is the configuration used when no environment variable is set.
var Default = Config{
	LogLevel:   "info",
	LogFormat:  "text",
	Elements:   100000,
	Workers:    4,
	ArenaSlots: 256,
}

// Load returns Default overridden by the environment.
func Load() (*Config, error) {
	conf := Default
	if err := envconfig.Process(envPrefix, &conf); err != nil {
		return nil, errors.Wrap(err, "reading environment")
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

// Validate rejects settings no command can run with.
func (c *Config) Validate() error {
	if c.Elements < 0 {
		return errors.Errorf("elements must not be negative, got %d", c.Elements)
	}
	if c.Workers < 1 {
		return errors.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.ArenaSlots < 1 {
		return errors.Errorf("arena slots must be at least 1, got %d", c.ArenaSlots)
	}
	return nil
}
