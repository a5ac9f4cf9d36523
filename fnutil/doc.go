// SPDX-License-Identifier: MIT

// Package fnutil provides small generic helpers for working with functions
// and slices: partitioning, mapping, and argument pre-binding.
package fnutil
