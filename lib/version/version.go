// Copyright 2026 The Throne Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for Throne
// binaries.
//
// Release builds inject the values via -ldflags:
//
//	go build -ldflags "-X github.com/throne-labs/throne/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// Plain `go build` / `go install` builds fall back to the VCS metadata
// the toolchain stamps into the binary, so --version is never blank.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// These variables are set via -ldflags at build time.
var (
	// Version is the semantic version. Set manually for releases.
	Version = "0.1.0-dev"

	// GitCommit is the short git SHA of the build.
	GitCommit = ""

	// GitDirty is "true" when the build had uncommitted changes.
	GitDirty = ""

	// BuildTime is the UTC timestamp of the build.
	BuildTime = ""
)

// Info returns a one-line version string suitable for --version
// output: the semantic version plus whatever build provenance is
// available.
func Info() string {
	commit, dirty, when := provenance()
	if commit == "" {
		return Version
	}
	suffix := ""
	if dirty {
		suffix = "-dirty"
	}
	if when == "" {
		return fmt.Sprintf("%s (%s%s)", Version, commit, suffix)
	}
	return fmt.Sprintf("%s (%s%s, %s)", Version, commit, suffix, when)
}

// Full returns detailed version information including the Go
// toolchain and platform.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// provenance resolves commit/dirty/time, preferring ldflags values
// and falling back to the VCS settings in the embedded build info.
func provenance() (commit string, dirty bool, when string) {
	if GitCommit != "" {
		return GitCommit, GitDirty == "true", BuildTime
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "", false, ""
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			commit = setting.Value
			if len(commit) > 12 {
				commit = commit[:12]
			}
		case "vcs.modified":
			dirty = setting.Value == "true"
		case "vcs.time":
			when = setting.Value
		}
	}
	return commit, dirty, when
}
