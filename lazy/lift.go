// SPDX-License-Identifier: MIT

package lazy

// Lift adapts fn to arguments that may be deferred. The returned function
// inspects its arguments: if none is deferred, fn runs immediately and its
// result and error are returned. Otherwise evaluation is postponed: the
// result is a *Deferred[R] (with a nil error) that forces the arguments and
// applies fn each time it is forced.
func Lift[R any](fn func(args ...any) (R, error)) func(args ...any) (any, error) {
	return func(args ...any) (any, error) {
		anyDeferred := false
		for _, a := range args {
			if IsDeferred(a) {
				anyDeferred = true
				break
			}
		}
		if !anyDeferred {
			out, err := fn(args...)
			return out, err
		}
		return Defer(func() (R, error) {
			forced := make([]any, len(args))
			for i, a := range args {
				out, err := ForceAny(a)
				if err != nil {
					var zero R
					return zero, err
				}
				forced[i] = out
			}
			return fn(forced...)
		}), nil
	}
}

// LiftFunc is Lift for functions that cannot fail. The returned function
// yields either the concrete R or a *Deferred[R].
func LiftFunc[R any](fn func(args ...any) R) func(args ...any) any {
	lifted := Lift(func(args ...any) (R, error) { return fn(args...), nil })
	return func(args ...any) any {
		out, _ := lifted(args...)
		return out
	}
}
