// SPDX-License-Identifier: MIT

package lazy

// Forcer is the typed forcing interface shared by *Value[T] and
// *Deferred[T].
type Forcer[T any] interface {
	Force() (T, error)
}

// Deferred is a deferred computation that is re-evaluated on every Force.
// Nothing is cached, so the result can track ambient state that changes
// between accesses, such as the active language of a translator. Use Value
// when the result should be computed once.
type Deferred[T any] struct {
	fn func() (T, error)
}

// Defer returns a Deferred evaluating fn on every Force.
func Defer[T any](fn func() (T, error)) *Deferred[T] {
	return &Deferred[T]{fn: fn}
}

// DeferFunc is Defer for functions that cannot fail.
func DeferFunc[T any](fn func() T) *Deferred[T] {
	return &Deferred[T]{fn: func() (T, error) { return fn(), nil }}
}

// Force evaluates the computation.
func (d *Deferred[T]) Force() (T, error) {
	if d == nil || d.fn == nil {
		var zero T
		return zero, ErrNoSetup
	}
	return d.fn()
}

// MustForce is Force, panicking on error.
func (d *Deferred[T]) MustForce() T {
	out, err := d.Force()
	if err != nil {
		panic(err)
	}
	return out
}

// Eval implements Promise.
func (d *Deferred[T]) Eval() (any, error) {
	return d.Force()
}

// Then chains f onto src without evaluating anything. The result is a new
// Deferred that forces src and applies f each time it is forced.
func Then[T, U any](src Forcer[T], f func(T) (U, error)) *Deferred[U] {
	return Defer(func() (U, error) {
		in, err := src.Force()
		if err != nil {
			var zero U
			return zero, err
		}
		return f(in)
	})
}

// Map is Then for transforms that cannot fail.
func Map[T, U any](src Forcer[T], f func(T) U) *Deferred[U] {
	return Then(src, func(in T) (U, error) { return f(in), nil })
}
