// Copyright 2026 The Dishwasher Bot Authors
// SPDX-License-Identifier: Apache-2.0

// Package logging builds the process logger.
//
// When the output is a terminal the logger uses slog.TextHandler for
// people; otherwise (systemd, containers, pipes) it uses
// slog.JSONHandler so log collectors can parse it. Components receive
// the *slog.Logger by injection and scope it with With().
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
)

// ParseLevel converts a level name to a slog.Level. Accepted names,
// case-insensitively: DEBUG, INFO, WARN, WARNING, ERROR, CRITICAL.
// CRITICAL maps to slog.LevelError, the highest slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR", "CRITICAL":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q (want DEBUG, INFO, WARNING, ERROR, or CRITICAL)", name)
	}
}

// New returns a logger writing to output at level. The handler is
// text when output is a terminal and JSON otherwise.
func New(output io.Writer, level slog.Level) *slog.Logger {
	options := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(output) {
		handler = slog.NewTextHandler(output, options)
	} else {
		handler = slog.NewJSONHandler(output, options)
	}
	return slog.New(handler)
}

func isTerminal(output io.Writer) bool {
	file, ok := output.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}
