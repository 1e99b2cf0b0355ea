package oblsm

import (
	"github.com/google/uuid"

	"github.com/oblsm-go/oblsm/internal/base"
	"github.com/oblsm-go/oblsm/internal/compaction"
	"github.com/oblsm-go/oblsm/internal/manifest"
	"github.com/oblsm-go/oblsm/internal/sstable"
)

// Ingest adds externally-built SSTables to the database directly,
// bypassing the memtable/WAL write path entirely (spec.md §4.17 bulk
// load). Every file in paths must have been produced by
// internal/sstable.Builder over internal keys carrying sequence number
// 0; Ingest assigns the whole batch a single real sequence number
// before publishing it, so the ingested keys sort as one atomic write
// against everything already in the database.
//
// Each table is moved (not copied) to its final on-disk name and
// placed at the lowest level whose existing key ranges don't overlap
// it, falling back to L0 when every level overlaps. This mirrors how
// Ingest's source data arrives from outside the engine's own
// compaction history rather than being produced by it.
func (d *DB) Ingest(paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	batchID := uuid.New().String()
	d.logger.Infof("ingest %s: staging %d tables", batchID, len(paths))

	type opened struct {
		path string
		r    *sstable.Reader
	}
	opens := make([]opened, 0, len(paths))
	for _, p := range paths {
		r, err := sstable.Open(d.fs, p, 0, d.cmp, nil)
		if err != nil {
			for _, o := range opens {
				o.r.Close()
			}
			return base.NewError(base.CodeIOOpen, err, "opening ingest input %s", p)
		}
		if r.FirstKey().Seq != 0 || r.LastKey().Seq != 0 {
			r.Close()
			for _, o := range opens {
				o.r.Close()
			}
			return base.NewError(base.CodeInvalidArgument, nil, "ingest input %s carries assigned sequence numbers", p)
		}
		opens = append(opens, opened{path: p, r: r})
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mu.closed {
		for _, o := range opens {
			o.r.Close()
		}
		return base.NewError(base.CodeInvalidArgument, nil, "db is closed")
	}

	seq := d.allocSeqLocked()
	added := make([]manifest.SstableRef, 0, len(opens))
	for _, o := range opens {
		firstKey, lastKey := o.r.FirstKey().UserKey, o.r.LastKey().UserKey
		o.r.Close()

		id := d.mu.nextSstableID
		d.mu.nextSstableID++
		dst := sstablePathFor(d.dir, id)
		if err := d.fs.Rename(o.path, dst); err != nil {
			return base.NewError(base.CodeIOWrite, err, "moving ingest input %s into place", o.path)
		}

		r, err := sstable.Open(d.fs, dst, id, d.cmp, d.blockCache)
		if err != nil {
			return base.NewError(base.CodeIOOpen, err, "reopening ingested table %s", dst)
		}
		level := d.ingestLevelLocked(firstKey, lastKey)
		info := &compaction.TableInfo{
			ID:       id,
			Level:    level,
			FirstKey: base.MakeInternalKey(firstKey, seq),
			LastKey:  base.MakeInternalKey(lastKey, seq),
			Size:     r.Size(),
			Reader:   r,
		}
		info.Ref()
		d.mu.tables[level] = append(d.mu.tables[level], info)
		added = append(added, manifest.SstableRef{SstableID: id, Level: level})
	}

	if err := d.mu.manifestWriter.Append(manifest.CompactionRecordOf(string(d.opts.CompactionType), added, nil, d.mu.nextSstableID, d.mu.nextSeq)); err != nil {
		d.logger.Errorf("recording ingest: %v", err)
	}
	d.logger.Infof("ingest %s: published %d tables at seq %d", batchID, len(added), seq)
	return nil
}

// ingestLevelLocked picks the lowest non-zero level whose existing
// tables don't overlap [firstKey, lastKey], or L0 if every level does.
func (d *DB) ingestLevelLocked(firstKey, lastKey []byte) int {
	for level := d.opts.Levels - 1; level >= 1; level-- {
		overlapsLevel := false
		for _, t := range d.mu.tables[level] {
			if d.cmp(firstKey, t.LastKey.UserKey) <= 0 && d.cmp(t.FirstKey.UserKey, lastKey) <= 0 {
				overlapsLevel = true
				break
			}
		}
		if !overlapsLevel {
			return level
		}
	}
	return 0
}
