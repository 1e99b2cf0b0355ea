package oblsm

import (
	"github.com/oblsm-go/oblsm/internal/compaction"
	"github.com/oblsm-go/oblsm/internal/memtable"
	"github.com/oblsm-go/oblsm/internal/merge"
)

// Iterator is a snapshot-isolated cursor over a database's key space:
// the set of keys and values it can see is fixed at the moment it was
// created (by DB.NewIterator or DB.BeginTransaction) and is unaffected
// by later writes, flushes, or compactions (spec.md §4.11).
type Iterator struct {
	ui     *merge.UserIterator
	mems   []*memtable.MemTable
	tables []*compaction.TableInfo
	closed bool
}

// Valid reports whether the iterator is positioned on an entry.
func (it *Iterator) Valid() bool { return it.ui.Valid() }

// Key returns the current entry's user key.
func (it *Iterator) Key() []byte { return it.ui.Key() }

// Value returns the current entry's value.
func (it *Iterator) Value() []byte { return it.ui.Value() }

// SeekToFirst positions the iterator at the smallest visible key.
func (it *Iterator) SeekToFirst() error { return it.ui.SeekToFirst() }

// SeekToLast positions the iterator at the largest visible key.
func (it *Iterator) SeekToLast() error { return it.ui.SeekToLast() }

// Seek positions the iterator at the first visible key >= target.
func (it *Iterator) Seek(target []byte) error { return it.ui.Seek(target) }

// Next advances to the next visible key.
func (it *Iterator) Next() error { return it.ui.Next() }

// Prev moves to the previous visible key.
func (it *Iterator) Prev() error { return it.ui.Prev() }

// Close releases every memtable and SSTable this iterator's snapshot
// pinned. An Iterator must not be used after Close.
func (it *Iterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	for _, m := range it.mems {
		m.Unref()
	}
	var firstErr error
	for _, t := range it.tables {
		if err := t.Release(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
