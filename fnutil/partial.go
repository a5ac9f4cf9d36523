// SPDX-License-Identifier: MIT

package fnutil

// Partial1 pre-binds the first argument of a two-argument function.
func Partial1[A, B, R any](f func(A, B) R, a A) func(B) R {
	return func(b B) R { return f(a, b) }
}

// Partial2 pre-binds the first two arguments of a three-argument function.
func Partial2[A, B, C, R any](f func(A, B, C) R, a A, b B) func(C) R {
	return func(c C) R { return f(a, b, c) }
}

// Curry2 turns a two-argument function into a chain of single-argument
// functions.
func Curry2[A, B, R any](f func(A, B) R) func(A) func(B) R {
	return func(a A) func(B) R {
		return func(b B) R { return f(a, b) }
	}
}

// Curry3 turns a three-argument function into a chain of single-argument
// functions.
func Curry3[A, B, C, R any](f func(A, B, C) R) func(A) func(B) func(C) R {
	return func(a A) func(B) func(C) R {
		return func(b B) func(C) R {
			return func(c C) R { return f(a, b, c) }
		}
	}
}
