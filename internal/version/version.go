// SPDX-License-Identifier: MIT

// Package version holds build metadata injected at link time.
package version

var (
	// Version is the current application version.
	// It is populated by the build system via ldflags.
	Version = "v0.1.0"

	// Commit is the git short hash of the build.
	Commit = "unknown"

	// Date is the build timestamp.
	Date = "unknown"
)
