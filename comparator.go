package skiplist

import "cmp"

// Comparator returns negative if a < b, zero if a == b, and positive if
// a > b. This mirrors the teacher's memtable.Comparator (func(a, b []byte)
// int), generalized from []byte to an arbitrary generic key type.
type Comparator[K any] func(a, b K) int

// OrderedComparator returns the natural Comparator for any cmp.Ordered key
// type (numbers, strings), for callers who don't need a custom order.
func OrderedComparator[K cmp.Ordered]() Comparator[K] {
	return func(a, b K) int {
		return cmp.Compare(a, b)
	}
}
