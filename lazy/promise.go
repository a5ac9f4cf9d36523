// SPDX-License-Identifier: MIT

package lazy

import "errors"

// ErrNoSetup is returned when a deferred value is forced before a setup
// function was attached (the zero Value or Deferred).
var ErrNoSetup = errors.New("no setup function")

// Promise is implemented by every deferred value in this package. It exists
// so code handling values of unknown type can recognize deferral and force
// it explicitly.
type Promise interface {
	// Eval forces the deferred computation and returns its result.
	Eval() (any, error)
}

// IsDeferred reports whether v is a deferred value.
func IsDeferred(v any) bool {
	_, ok := v.(Promise)
	return ok
}

// ForceAny evaluates v if it is deferred and returns the result; any other
// value is returned unchanged.
func ForceAny(v any) (any, error) {
	if p, ok := v.(Promise); ok {
		return p.Eval()
	}
	return v, nil
}

// MustForceAny is ForceAny, panicking on evaluation errors.
func MustForceAny(v any) any {
	out, err := ForceAny(v)
	if err != nil {
		panic(err)
	}
	return out
}
