package arenaskl

import "github.com/oblsm-go/oblsm/internal/base"

// Iterator walks a Skiplist in internal-key order (user key ascending,
// seq descending for equal user keys). A single Iterator is not safe
// for concurrent use, but any number of Iterators may run concurrently
// with each other and with inserts.
type Iterator struct {
	list *Skiplist
	cur  *node
}

// NewIterator returns an unpositioned Iterator over s.
func (s *Skiplist) NewIterator() *Iterator {
	return &Iterator{list: s}
}

// Valid reports whether the iterator is positioned on an entry.
func (it *Iterator) Valid() bool { return it.cur != nil }

// Key returns the internal key at the current position.
func (it *Iterator) Key() base.InternalKey { return base.DecodeInternalKey(it.cur.key) }

// Value returns the value at the current position.
func (it *Iterator) Value() []byte { return it.cur.value }

// SeekToFirst positions the iterator at the smallest internal key.
func (it *Iterator) SeekToFirst() {
	it.cur = it.list.head.tower[0].Load()
}

// SeekToLast positions the iterator at the largest internal key.
func (it *Iterator) SeekToLast() {
	it.cur = it.list.lastNode()
}

// Seek positions the iterator at the first entry whose internal key is
// greater than or equal to key (typically a LookupKey's InternalKey, so
// that seeking with a snapshot sequence lands on the newest visible
// version of a user key).
func (it *Iterator) Seek(key base.InternalKey) {
	_, next := it.list.findSpliceForLevel(key.Encode(), 0)
	it.cur = next
}

// Next advances to the next larger internal key.
func (it *Iterator) Next() {
	it.cur = it.cur.tower[0].Load()
}

// Prev moves to the previous (next smaller) internal key, implemented
// as findLessThan on the current key per spec.md §4.3.
func (it *Iterator) Prev() {
	it.cur = it.list.findLessThan(it.cur.key)
}
