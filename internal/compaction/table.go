// Package compaction implements the compaction pickers and executor
// spec.md §4.12 describes: Tiered and Leveled policies choosing input
// SSTables, and a single executor that merges them into fresh output
// tables, plus the single-threaded background task queue §4.13
// schedules flushes and compactions onto.
package compaction

import (
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/oblsm-go/oblsm/internal/base"
	"github.com/oblsm-go/oblsm/internal/sstable"
)

// TableInfo is everything a picker or the executor needs to know about
// one live SSTable: its level (or, in Tiered mode, its run generation),
// key range, and an open reader. TableInfo is reference-counted the
// same way a MemTable is: the live set itself holds one reference, and
// an in-flight iterator holds another for as long as it might still
// read from the table, so a compaction publishing a replacement doesn't
// yank the file out from under a reader already scanning it.
type TableInfo struct {
	ID       uint64
	Level    int
	FirstKey base.InternalKey
	LastKey  base.InternalKey
	Size     int64
	Reader   *sstable.Reader

	refs atomic.Int32
}

// Ref increments the reference count. A new TableInfo starts at zero;
// whoever adds it to the live set takes the live set's reference with
// Ref, and callers that hand a TableInfo to something outlasting the
// current lock hold (an iterator) must Ref it first.
func (t *TableInfo) Ref() { t.refs.Add(1) }

// Release drops one reference and deletes the backing file once the
// count reaches zero, which happens either when the live set's own
// reference is dropped (a compaction obsoleted this table, and no
// iterator is reading it) or when the last iterator referencing an
// already-obsoleted table finishes.
func (t *TableInfo) Release() error {
	if t.refs.Add(-1) > 0 {
		return nil
	}
	return t.Reader.Remove()
}

// overlaps reports whether a and b's user-key ranges intersect.
func overlaps(cmp base.Compare, a, b *TableInfo) bool {
	if cmp(a.LastKey.UserKey, b.FirstKey.UserKey) < 0 {
		return false
	}
	if cmp(b.LastKey.UserKey, a.FirstKey.UserKey) < 0 {
		return false
	}
	return true
}

// Task names the SSTables one compaction run should merge and the
// level its outputs belong to.
type Task struct {
	Inputs      []*TableInfo
	OutputLevel int
}

// Picker is the common shape of TieredPicker and LeveledPicker: given
// the live table set grouped by level (or, in Tiered mode, by run
// generation), return the next compaction task to run, if any.
type Picker interface {
	Pick(tables map[int][]*TableInfo) (*Task, bool)
}

// sstablePath returns the on-disk path for SSTable id within dir.
func sstablePath(dir string, id uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%d.sst", id))
}
