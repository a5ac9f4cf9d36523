// SPDX-License-Identifier: MIT

package fnutil

// Map returns a new slice with the same length as s, with values
// transformed by f.
func Map[T, U any](s []T, f func(T) U) []U {
	us := make([]U, len(s))
	for i := range s {
		us[i] = f(s[i])
	}
	return us
}

// MapErr is Map for transforms that can fail. It stops at the first error
// and returns it.
func MapErr[T, U any](s []T, f func(T) (U, error)) ([]U, error) {
	us := make([]U, len(s))
	for i := range s {
		var err error
		us[i], err = f(s[i])
		if err != nil {
			return nil, err
		}
	}
	return us, nil
}
