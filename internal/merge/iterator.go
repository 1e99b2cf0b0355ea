// Package merge implements the k-way merging iterator and the
// MVCC-resolving user iterator spec.md §4.10–§4.11 describe: a merge
// over memtable, immutable memtable and SSTable sources in internal-key
// order, consumed by a user iterator that skips shadowed versions,
// tombstones, and anything written after the reader's snapshot.
package merge

import "github.com/oblsm-go/oblsm/internal/base"

// InternalIterator is the shape every merge source implements: a
// memtable's skiplist iterator, an SSTable's table iterator, or
// another MergingIterator (compactions merge over per-input iterators
// the same way reads do).
type InternalIterator interface {
	Valid() bool
	Key() base.InternalKey
	Value() []byte
	SeekToFirst() error
	SeekToLast() error
	Seek(target base.InternalKey) error
	Next() error
	Prev() error
}
