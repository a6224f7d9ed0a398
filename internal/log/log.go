// SPDX-License-Identifier: Apache-2.0

// Package log holds the process-wide logrus logger used by the command line tools.
package log

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// EnvLevel is the environment variable Get consults when no level was set explicitly.
const EnvLevel = "VECBENCH_LOGLEVEL"

var (
	log      = logrus.New()
	levelSet bool
)

func init() {
	log.Formatter = NewFormatter("")
}

// Get returns the shared logger. Until SetLevel is called its level follows
// the VECBENCH_LOGLEVEL environment variable.
func Get() *logrus.Logger {
	if !levelSet {
		log.Level = parseLevel(os.Getenv(EnvLevel))
	}
	return log
}

// SetLevel fixes the level of the shared logger. Unknown names mean info.
func SetLevel(name string) {
	log.Level = parseLevel(name)
	levelSet = true
}

func parseLevel(name string) logrus.Level {
	switch strings.ToLower(name) {
	case "error":
		return logrus.ErrorLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "debug":
		return logrus.DebugLevel
	case "trace":
		return logrus.TraceLevel
	default:
		return logrus.InfoLevel
	}
}

// NewFormatter returns the formatter for the named output format: "json" or text.
func NewFormatter(format string) logrus.Formatter {
	if format == "json" {
		return &logrus.JSONFormatter{}
	}
	return &logrus.TextFormatter{
		TimestampFormat: "Jan 02 15:04:05",
		FullTimestamp:   true,
		DisableColors:   true,
	}
}
