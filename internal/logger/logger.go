// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MatchCut - 比赛录像剪辑与转码工具

package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger provides a simple logging interface
type Logger interface {
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
	Debug(format string, args ...interface{})
	// With returns a logger that adds key/value attributes to every record
	With(args ...any) Logger
}

// Config for New
type Config struct {
	Level string
	// File additionally receives every record, e.g. for diagnostics of
	// unexpected failures. Empty disables it.
	File string
}

type defaultLogger struct {
	prefix string
	log    *slog.Logger
}

// NewWithConfig creates a logger from cfg. The returned closer releases
// the log file, if any.
func NewWithConfig(prefix string, cfg Config) (Logger, io.Closer, error) {
	var w io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}

	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = io.MultiWriter(os.Stderr, f)
		closer = f
	}

	return NewWriter(prefix, w, cfg.Level), closer, nil
}

// NewWriter creates a logger writing to w
func NewWriter(prefix string, w io.Writer, level string) Logger {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	return &defaultLogger{prefix: prefix, log: slog.New(h)}
}

// ParseLevel maps debug, info, warn and error; anything else is info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *defaultLogger) Info(format string, args ...interface{}) {
	l.log.Info(fmt.Sprintf(format, args...), "component", l.prefix)
}

func (l *defaultLogger) Warn(format string, args ...interface{}) {
	l.log.Warn(fmt.Sprintf(format, args...), "component", l.prefix)
}

func (l *defaultLogger) Error(format string, args ...interface{}) {
	l.log.Error(fmt.Sprintf(format, args...), "component", l.prefix)
}

func (l *defaultLogger) Debug(format string, args ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, args...), "component", l.prefix)
}

func (l *defaultLogger) With(args ...any) Logger {
	return &defaultLogger{prefix: l.prefix, log: l.log.With(args...)}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Discard returns a logger that drops every record
func Discard() Logger {
	return NewWriter("", io.Discard, "error")
}
