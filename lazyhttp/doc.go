// SPDX-License-Identifier: MIT

// Package lazyhttp attaches request-scoped lazy values to HTTP requests
// and provides the canonical middleware stack around them.
//
// Provide installs a deferred value under a typed Key; its setup runs only
// when a handler forces the slot, at most once per request. Handlers that
// never touch the value never pay for it. The stack middleware (recovery,
// request IDs, logging, metrics, tracing, throttling, rate limiting)
// follows one fixed ordering so servers do not drift in their
// cross-cutting concerns.
package lazyhttp
