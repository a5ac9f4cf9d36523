// SPDX-License-Identifier: MIT

package fnutil

import "github.com/hashicorp/go-set/v2"

// Partition splits s into two slices based on pred, preserving input order:
//
//	Partition([]int{0, 1, 2, 3, 4}, func(n int) bool { return n > 3 })
//	// falses: [0 1 2 3], trues: [4]
//
// Both result slices are always non-nil.
func Partition[T any](s []T, pred func(T) bool) (falses, trues []T) {
	falses = make([]T, 0, len(s))
	trues = make([]T, 0)
	for _, item := range s {
		if pred(item) {
			trues = append(trues, item)
		} else {
			falses = append(falses, item)
		}
	}
	return falses, trues
}

// ContainsSameElements reports whether a and b hold the same set of
// elements, regardless of order and multiplicity.
func ContainsSameElements[T comparable](a, b []T) bool {
	return set.From(a).Equal(set.From(b))
}
