package merge

import (
	"github.com/oblsm-go/oblsm/internal/arenaskl"
	"github.com/oblsm-go/oblsm/internal/base"
	"github.com/oblsm-go/oblsm/internal/sstable"
)

// MemtableIterator adapts an arenaskl.Iterator (whose methods never
// fail) to InternalIterator.
type MemtableIterator struct {
	it *arenaskl.Iterator
}

// NewMemtableIterator wraps it.
func NewMemtableIterator(it *arenaskl.Iterator) *MemtableIterator {
	return &MemtableIterator{it: it}
}

func (m *MemtableIterator) Valid() bool                      { return m.it.Valid() }
func (m *MemtableIterator) Key() base.InternalKey            { return m.it.Key() }
func (m *MemtableIterator) Value() []byte                    { return m.it.Value() }
func (m *MemtableIterator) SeekToFirst() error                { m.it.SeekToFirst(); return nil }
func (m *MemtableIterator) SeekToLast() error                 { m.it.SeekToLast(); return nil }
func (m *MemtableIterator) Seek(target base.InternalKey) error { m.it.Seek(target); return nil }
func (m *MemtableIterator) Next() error                       { m.it.Next(); return nil }
func (m *MemtableIterator) Prev() error                       { m.it.Prev(); return nil }

// SSTableIterator adapts an *sstable.TableIterator, whose methods
// already return error, to InternalIterator.
type SSTableIterator struct {
	it *sstable.TableIterator
}

// NewSSTableIterator wraps it.
func NewSSTableIterator(it *sstable.TableIterator) *SSTableIterator {
	return &SSTableIterator{it: it}
}

func (s *SSTableIterator) Valid() bool                      { return s.it.Valid() }
func (s *SSTableIterator) Key() base.InternalKey            { return s.it.Key() }
func (s *SSTableIterator) Value() []byte                    { return s.it.Value() }
func (s *SSTableIterator) SeekToFirst() error                { return s.it.SeekToFirst() }
func (s *SSTableIterator) SeekToLast() error                 { return s.it.SeekToLast() }
func (s *SSTableIterator) Seek(target base.InternalKey) error { return s.it.Seek(target) }
func (s *SSTableIterator) Next() error                       { return s.it.Next() }
func (s *SSTableIterator) Prev() error                       { return s.it.Prev() }
