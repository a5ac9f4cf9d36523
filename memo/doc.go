// SPDX-License-Identifier: MIT

// Package memo provides memoization for expensive computations.
//
// A Store holds serialized results with optional expiry. Memoize wraps a
// function so repeated calls with the same key are served from the store,
// with concurrent callers for the same key collapsed into a single
// computation. Unlike the lazy package, which defers a computation until
// first use, memo is about not repeating computations that already ran.
//
// Store implementations: MemoryStore (in-process, janitor-cleaned),
// RedisStore (shared across processes), BadgerStore (persistent on disk)
// and NopStore (memoization disabled).
package memo
