// SPDX-License-Identifier: MIT

package lazy

import (
	"fmt"
	"sync"
)

// Value is a deferred value that is computed at most once. The setup
// function runs on the first Force and the result is cached for every later
// access. A failed setup is not cached: the next Force retries.
//
// Value is safe for concurrent use. Setup must not force the same Value.
type Value[T any] struct {
	mu    sync.Mutex
	setup func() (T, error)
	v     T
	done  bool
}

// New returns a Value that computes its result with setup on first Force.
func New[T any](setup func() (T, error)) *Value[T] {
	return &Value[T]{setup: setup}
}

// NewFunc is New for setup functions that cannot fail.
func NewFunc[T any](setup func() T) *Value[T] {
	return &Value[T]{setup: func() (T, error) { return setup(), nil }}
}

// Resolved returns a Value already holding v; no setup will ever run.
func Resolved[T any](v T) *Value[T] {
	return &Value[T]{v: v, done: true}
}

// Force returns the value, computing it on first use. Concurrent first
// forces observe exactly one setup execution.
func (v *Value[T]) Force() (T, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.done {
		return v.v, nil
	}
	if v.setup == nil {
		var zero T
		return zero, ErrNoSetup
	}
	out, err := v.setup()
	if err != nil {
		// Stay unevaluated so the next Force retries.
		var zero T
		return zero, err
	}
	v.v = out
	v.done = true
	return out, nil
}

// MustForce is Force, panicking on error.
func (v *Value[T]) MustForce() T {
	out, err := v.Force()
	if err != nil {
		panic(err)
	}
	return out
}

// Forced reports whether the value has been computed or Set.
func (v *Value[T]) Forced() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.done
}

// Peek returns the value without forcing. ok is false while the value is
// unevaluated.
func (v *Value[T]) Peek() (T, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.v, v.done
}

// Set installs val as the computed value; setup will not run afterwards.
func (v *Value[T]) Set(val T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.v = val
	v.done = true
}

// Reset discards any computed value so the next Force runs setup again.
func (v *Value[T]) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	var zero T
	v.v = zero
	v.done = false
}

// Eval implements Promise.
func (v *Value[T]) Eval() (any, error) {
	return v.Force()
}

// String describes the value without forcing it, so logging a Value never
// triggers the computation.
func (v *Value[T]) String() string {
	if val, ok := v.Peek(); ok {
		return fmt.Sprintf("lazy.Value(%v)", val)
	}
	return "lazy.Value(unevaluated)"
}
