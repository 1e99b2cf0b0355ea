// Package base holds the types shared by every layer of the engine: the
// user/internal key comparators, the internal and lookup key encodings,
// status codes, and the logging interface. It plays the role Pebble's own
// internal/base package plays in the teacher tree.
package base

import "bytes"

// Compare returns -1, 0, or 1 depending on whether a is less than, equal
// to, or greater than b.
type Compare func(a, b []byte) int

// DefaultComparer is the lexicographic byte comparator used on user keys.
var DefaultComparer Compare = bytes.Compare

// InternalCompare orders internal keys: user keys ascending, and for
// equal user keys, higher sequence numbers first. This makes a forward
// scan see the newest version of a key before any older version.
func InternalCompare(cmp Compare, a, b InternalKey) int {
	if c := cmp(a.UserKey, b.UserKey); c != 0 {
		return c
	}
	switch {
	case a.Seq > b.Seq:
		return -1
	case a.Seq < b.Seq:
		return 1
	default:
		return 0
	}
}
