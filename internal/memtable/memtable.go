// Package memtable implements the in-memory write buffer every LsmImpl
// write passes through before (and, for a window, instead of) disk.
package memtable

import (
	"bytes"
	"sync/atomic"

	"github.com/oblsm-go/oblsm/internal/arena"
	"github.com/oblsm-go/oblsm/internal/arenaskl"
	"github.com/oblsm-go/oblsm/internal/base"
)

// MemTable wraps a skiplist with the versioned Put/Get API spec.md §4.4
// describes. MemTables are reference-counted: foreground readers, the
// background flusher, and iterators all hold a reference, and the
// backing arena is only released once every reference is dropped.
type MemTable struct {
	id    uint64
	arena *arena.Arena
	skl   *arenaskl.Skiplist
	cmp   base.Compare
	refs  atomic.Int32
}

// New returns an empty MemTable identified by id (the memtable/WAL
// generation number from spec.md §3's WAL-filename convention).
func New(id uint64, cmp base.Compare) *MemTable {
	a := arena.New()
	return &MemTable{
		id:    id,
		arena: a,
		skl:   arenaskl.New(a, cmp),
		cmp:   cmp,
	}
}

// ID returns the memtable's generation number.
func (m *MemTable) ID() uint64 { return m.id }

// Ref increments the reference count; call before handing a MemTable to
// a background worker or iterator that outlives the caller's own use.
func (m *MemTable) Ref() { m.refs.Add(1) }

// Unref decrements the reference count and reports whether it reached
// zero (i.e. the memtable's arena may now be discarded).
func (m *MemTable) Unref() bool { return m.refs.Add(-1) == 0 }

// Put serializes (seq, key, value) and inserts it into the skiplist.
// This never fails for lack of memory: the arena always grows to fit.
// Callers assign seq before calling Put (LsmImpl reserves it from the
// global counter under the engine lock).
func (m *MemTable) Put(seq uint64, key, value []byte) {
	m.skl.Insert(base.MakeInternalKey(key, seq), value)
}

// Delete writes a tombstone (an entry with a zero-length value) for key
// at seq.
func (m *MemTable) Delete(seq uint64, key []byte) {
	m.skl.Insert(base.MakeInternalKey(key, seq), nil)
}

// ApproximateMemoryUsage returns the arena's current live byte count,
// used by LsmImpl to decide when to rotate the active memtable
// (spec.md §4.13 step 5).
func (m *MemTable) ApproximateMemoryUsage() int64 {
	return m.arena.Size()
}

// Get seeks for the newest version of key visible at snapshotSeq.
// Reports base.ErrNotFound both when the key is absent and when its
// newest visible version is a deletion tombstone.
func (m *MemTable) Get(key []byte, snapshotSeq uint64) ([]byte, error) {
	lk := base.LookupKey{UserKey: key, SnapshotSeq: snapshotSeq}
	it := m.skl.NewIterator()
	it.Seek(lk.InternalKey())
	if !it.Valid() {
		return nil, base.ErrNotFound
	}
	ik := it.Key()
	if !bytes.Equal(ik.UserKey, key) {
		return nil, base.ErrNotFound
	}
	value := it.Value()
	if len(value) == 0 {
		return nil, base.ErrNotFound
	}
	return value, nil
}

// NewIterator returns an iterator over all entries (including
// tombstones) in internal-key order: user key ascending, seq
// descending for equal user keys. Visibility filtering is the user
// iterator's job (internal/merge), not the memtable's.
func (m *MemTable) NewIterator() *arenaskl.Iterator {
	return m.skl.NewIterator()
}
