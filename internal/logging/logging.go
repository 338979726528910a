// Copyright 2025 Tradeledger Authors
//
// Shared zerolog setup. Every long-lived component takes a zerolog.Logger
// in its constructor or options; this package builds the one root logger
// they are all derived from.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds the process root logger. level is one of zerolog's named
// levels ("trace" .. "fatal"); format is "json" for machine-readable
// output or "console" for local development. Unknown values fall back to
// info-level JSON on stdout.
func New(level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	var out io.Writer = os.Stdout
	if strings.EqualFold(format, "console") {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

// For returns a child of root tagged with the component name, so every
// line a component emits can be traced back to it.
func For(root zerolog.Logger, component string) zerolog.Logger {
	return root.With().Str("component", component).Logger()
}
