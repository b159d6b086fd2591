// Copyright (C) 2026 Kinoko Lab (oss@kinokolab.jp)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging provides structured logging for semesterd components.
//
// The logging system is built on Go's standard library slog package.
// Output goes to stderr by default (following Unix conventions for a
// daemon): a human-readable text handler when stderr is a terminal,
// JSON otherwise. An optional log file can be configured alongside
// stderr.
//
// # Basic Usage
//
//	logger, closeFn, err := logging.New(logging.Config{Level: logging.LevelInfo})
//	if err != nil { ... }
//	defer closeFn()
//	logger.Info("cohort created", "semester", 5, "classes", 2)
//
// # Thread Safety
//
// The returned *slog.Logger is safe for concurrent use.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
)

// Level represents log severity. Levels follow the slog convention and
// are ordered Debug < Info < Warn < Error.
type Level int

const (
	// LevelDebug is for development troubleshooting.
	LevelDebug Level = iota

	// LevelInfo is for normal operations (workflow stages, state changes).
	LevelInfo

	// LevelWarn is for recoverable issues (dropped bindings, naming
	// inconsistencies, skipped audit notifications).
	LevelWarn

	// LevelError is for operation failures the daemon survives.
	LevelError
)

// ParseLevel converts a config string to a Level. Unknown values
// return an error rather than silently defaulting.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config controls logger construction.
type Config struct {
	// Level is the minimum severity to emit.
	Level Level

	// LogFile, when non-empty, duplicates output to the given file in
	// JSON format. Parent directories are created as needed.
	LogFile string

	// Service is attached to every record as the "service" attribute.
	Service string
}

// New builds a logger per the config. The returned close function
// flushes and closes the log file, if any; it is safe to call when no
// file was configured.
func New(cfg Config) (*slog.Logger, func() error, error) {
	opts := &slog.HandlerOptions{Level: cfg.Level.slogLevel()}

	var stderrHandler slog.Handler
	if isatty.IsTerminal(os.Stderr.Fd()) {
		stderrHandler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		stderrHandler = slog.NewJSONHandler(os.Stderr, opts)
	}

	closeFn := func() error { return nil }
	handler := stderrHandler

	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			return nil, nil, fmt.Errorf("creating log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file %s: %w", cfg.LogFile, err)
		}
		closeFn = f.Close
		handler = &teeHandler{handlers: []slog.Handler{
			stderrHandler,
			slog.NewJSONHandler(f, opts),
		}}
	}

	logger := slog.New(handler)
	if cfg.Service != "" {
		logger = logger.With("service", cfg.Service)
	}
	return logger, closeFn, nil
}

// Default returns a stderr-only logger at Info level. Intended for
// early bootstrap before config is loaded.
func Default() *slog.Logger {
	l, _, _ := New(Config{Level: LevelInfo})
	return l
}

// Discard returns a logger that drops every record. Used in tests that
// do not assert on log output.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// teeHandler fans records out to multiple handlers. A record is emitted
// by every handler whose level admits it.
type teeHandler struct {
	handlers []slog.Handler
}

func (t *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t *teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range t.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (t *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(t.handlers))
	for i, h := range t.handlers {
		next[i] = h.WithAttrs(attrs)
	}
	return &teeHandler{handlers: next}
}

func (t *teeHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(t.handlers))
	for i, h := range t.handlers {
		next[i] = h.WithGroup(name)
	}
	return &teeHandler{handlers: next}
}
