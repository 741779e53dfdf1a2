// Package cli implements the pkgferry command-line interface.
//
// This package wires the library packages under pkg/ into cobra commands:
// downloading a package graph, installing it from a local feed, serving a
// feed to other machines and managing the metadata cache. Values missing
// from both flags and the config file are asked for with bubbletea prompts
// when stdin is a terminal.
//
// # Commands
//
// The main commands are:
//   - download: Resolve a package and download its dependency graph
//   - install: Rebuild the feed and install the downloaded packages
//   - run: Download, install, or both, prompting for the action
//   - serve: Serve a feed directory over HTTP
//   - list: Show gallery versions, local artifacts or module roots
//   - cache: Manage the metadata cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging, which also
// logs every fetch, cache and HTTP event. Loggers are passed through
// context.Context.
package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger returns a logger writing to w at level, with short
// "HH:MM:SS.ms" timestamps.
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// step times one stage of a command. Not safe for concurrent use.
type step struct {
	logger *log.Logger
	name   string
	start  time.Time
}

func startStep(l *log.Logger, name string) *step {
	l.Debug("starting", "step", name)
	return &step{logger: l, name: name, start: time.Now()}
}

// elapsed is the time since the step started, rounded to milliseconds.
func (s *step) elapsed() time.Duration {
	return time.Since(s.start).Round(time.Millisecond)
}

// done logs the end of the step with its elapsed time and any extra
// key/value pairs.
func (s *step) done(keyvals ...any) {
	s.logger.Info("finished "+s.name, append([]any{"elapsed", s.elapsed()}, keyvals...)...)
}

type ctxKey int

const loggerKey ctxKey = 0

func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext returns the logger attached with withLogger, or
// log.Default when there is none.
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}
