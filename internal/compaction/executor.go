package compaction

import (
	"bytes"

	"github.com/oblsm-go/oblsm/internal/base"
	"github.com/oblsm-go/oblsm/internal/cache"
	"github.com/oblsm-go/oblsm/internal/merge"
	"github.com/oblsm-go/oblsm/internal/sstable"
	"github.com/oblsm-go/oblsm/vfs"
)

// Execute merges task's inputs into one or more fresh SSTables,
// starting a new output table whenever the current one reaches
// tableSizeTarget bytes (spec.md §4.12). Only the newest version of
// each user key is kept; the others are the very redundancy compaction
// exists to remove. dropTombstones additionally drops the retained
// entry when it is a tombstone, which is only safe when task's
// OutputLevel is the last level data can occupy.
func Execute(
	fs vfs.FS,
	dir string,
	task *Task,
	allocID func() uint64,
	cmp base.Compare,
	compression sstable.CompressionKind,
	tableSizeTarget int64,
	blockCache *cache.Cache,
	dropTombstones bool,
) ([]*TableInfo, error) {
	children := make([]merge.InternalIterator, 0, len(task.Inputs))
	for _, in := range task.Inputs {
		children = append(children, merge.NewSSTableIterator(in.Reader.NewIterator()))
	}
	m := merge.NewMergingIterator(cmp, children...)
	return StreamToTables(fs, dir, m, allocID, cmp, compression, tableSizeTarget, blockCache, task.OutputLevel, dropTombstones)
}

// StreamToTables drains src (already built from whatever sources the
// caller needs merged — compaction inputs, or a single memtable being
// flushed) into one or more fresh SSTables at outputLevel, collapsing
// each distinct user key to its newest version and optionally dropping
// the result when it is a tombstone. Shared by Execute above and by
// LsmImpl's flush path (spec.md §4.13's background flush step, which
// needs the same "duplicate puts on one user key collapse to the
// newest" behavior a flush can also exhibit).
func StreamToTables(
	fs vfs.FS,
	dir string,
	src merge.InternalIterator,
	allocID func() uint64,
	cmp base.Compare,
	compression sstable.CompressionKind,
	tableSizeTarget int64,
	blockCache *cache.Cache,
	outputLevel int,
	dropTombstones bool,
) ([]*TableInfo, error) {
	m := src
	if err := m.SeekToFirst(); err != nil {
		return nil, err
	}

	var outputs []*TableInfo
	var builder *sstable.Builder
	var builderID uint64
	var written int64

	startNew := func() error {
		builderID = allocID()
		b, err := sstable.NewBuilder(fs, sstablePath(dir, builderID), compression)
		if err != nil {
			return err
		}
		builder = b
		written = 0
		return nil
	}

	finishCurrent := func() error {
		if builder == nil {
			return nil
		}
		first, last := builder.FirstKey(), builder.LastKey()
		if err := builder.Finish(); err != nil {
			return err
		}
		filename := sstablePath(dir, builderID)
		r, err := sstable.Open(fs, filename, builderID, cmp, blockCache)
		if err != nil {
			return err
		}
		info := &TableInfo{
			ID:       builderID,
			Level:    outputLevel,
			FirstKey: first,
			LastKey:  last,
			Size:     r.Size(),
			Reader:   r,
		}
		info.Ref()
		outputs = append(outputs, info)
		builder = nil
		return nil
	}

	for m.Valid() {
		groupKey := append([]byte(nil), m.Key().UserKey...)
		chosenKey := m.Key()
		chosenVal := append([]byte(nil), m.Value()...)

		for {
			if err := m.Next(); err != nil {
				return nil, err
			}
			if !m.Valid() || !bytes.Equal(m.Key().UserKey, groupKey) {
				break
			}
		}

		if len(chosenVal) == 0 && dropTombstones {
			continue
		}

		if builder == nil {
			if err := startNew(); err != nil {
				return nil, err
			}
		}
		if err := builder.Add(chosenKey, chosenVal); err != nil {
			return nil, err
		}
		written += int64(chosenKey.Size() + len(chosenVal))
		if written >= tableSizeTarget {
			if err := finishCurrent(); err != nil {
				return nil, err
			}
		}
	}
	if err := finishCurrent(); err != nil {
		return nil, err
	}
	return outputs, nil
}

// RemoveInputs drops the live set's reference to every input table,
// called once a compaction's outputs have been published under the
// engine lock (spec.md §4.12 atomicity note: publish first, then
// remove superseded files). A table still open in an in-flight
// iterator survives until that iterator releases its own reference.
func RemoveInputs(task *Task) error {
	for _, in := range task.Inputs {
		if err := in.Release(); err != nil {
			return err
		}
	}
	return nil
}
