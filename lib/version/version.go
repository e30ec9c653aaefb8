// Copyright 2026 The Dishwasher Bot Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build information for the relay binary.
//
// The variables are injected at build time via -ldflags, for example:
//
//	go build -ldflags "-X github.com/dishwasher-bot/dishwasher-bot/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// They default to "unknown" / "0.1.0-dev" in development builds.
package version

import (
	"fmt"
	"runtime"
)

var (
	// GitCommit is the short git SHA of the build.
	GitCommit = "unknown"

	// GitDirty is "true" when the build had uncommitted changes.
	GitDirty = "false"

	// BuildTime is the UTC timestamp of the build.
	BuildTime = "unknown"

	// Version is the semantic version, set manually for releases.
	Version = "0.1.0-dev"
)

// Info returns "<version> (<commit>[-dirty], <build time>)".
func Info() string {
	dirty := ""
	if GitDirty == "true" {
		dirty = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s, %s)", Version, GitCommit, dirty, BuildTime)
}

// LogAttrs returns the build information as slog key/value pairs for
// the startup log line.
func LogAttrs() []any {
	return []any{
		"version", Version,
		"commit", GitCommit,
		"go", runtime.Version(),
		"platform", runtime.GOOS + "/" + runtime.GOARCH,
	}
}
