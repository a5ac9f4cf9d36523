// SPDX-License-Identifier: MIT

// Package lazyconf loads configuration on first use and keeps it
// hot-reloadable afterwards.
//
// A Loader produces a config value; FromYAMLFile and Compose build loaders
// from files, defaults and environment overlays. A Holder wraps a loader so
// nothing is read, parsed or validated until the first Get, then serves an
// immutable snapshot that Reload can swap atomically. A failed reload keeps
// the previous snapshot installed.
package lazyconf
