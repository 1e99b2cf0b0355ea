// Package oblsm implements a standalone LSM-tree key-value storage
// engine: a memtable/WAL write path, background flush and compaction
// onto leveled or tiered SSTable sets, crash recovery via a manifest
// log, and snapshot-isolated iterators and transactions.
package oblsm

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/oblsm-go/oblsm/internal/base"
	"github.com/oblsm-go/oblsm/internal/cache"
	"github.com/oblsm-go/oblsm/internal/compaction"
	"github.com/oblsm-go/oblsm/internal/manifest"
	"github.com/oblsm-go/oblsm/internal/memtable"
	"github.com/oblsm-go/oblsm/internal/merge"
	"github.com/oblsm-go/oblsm/internal/record"
	"github.com/oblsm-go/oblsm/internal/sstable"
	"github.com/oblsm-go/oblsm/vfs"

	"golang.org/x/sync/errgroup"
)

func walPath(dir string, id uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%d.wal", id))
}

func sstablePathFor(dir string, id uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%d.sst", id))
}

// DB is one open database directory.
type DB struct {
	dir    string
	opts   *Options
	fs     vfs.FS
	cmp    base.Compare
	logger base.Logger

	lock       io.Closer
	blockCache *cache.Cache
	scheduler  *compaction.Scheduler
	picker     compaction.Picker
	metrics    *Metrics

	mu struct {
		sync.Mutex
		nextSeq        uint64
		nextSstableID  uint64
		nextMemtableID uint64
		mem            *memtable.MemTable
		imm            []*memtable.MemTable
		walWriter      *record.Writer
		tables         map[int][]*compaction.TableInfo
		manifestWriter *manifest.Writer
		manifestID     uint64
		closed         bool
	}
}

// Open opens (or creates) a database rooted at dir. A crashed
// database recovers its committed writes by replaying the manifest
// and the WAL generation it names (spec.md §4.13).
func Open(dir string, o Options) (*DB, error) {
	opts := o.EnsureDefaults()
	fs := opts.FS

	if err := fs.MkdirAll(dir, 0755); err != nil {
		return nil, base.NewError(base.CodeIOOpen, err, "creating directory %s", dir)
	}
	lock, err := fs.Lock(filepath.Join(dir, "LOCK"))
	if err != nil {
		return nil, base.NewError(base.CodeIOOpen, err, "locking %s", dir)
	}

	d := &DB{
		dir:        dir,
		opts:       opts,
		fs:         fs,
		cmp:        opts.Comparer,
		logger:     opts.Logger,
		lock:       lock,
		blockCache: cache.New(opts.BlockCacheSize),
		scheduler:  compaction.NewScheduler(),
		metrics:    newMetrics(),
	}
	d.mu.tables = make(map[int][]*compaction.TableInfo)

	oldManifestID, found, err := manifest.ReadCurrent(fs, dir)
	if err != nil {
		lock.Close()
		return nil, err
	}
	if !found {
		if err := d.bootstrap(); err != nil {
			lock.Close()
			return nil, err
		}
	} else {
		state, _, err := manifest.Recover(fs, dir)
		if err != nil {
			lock.Close()
			return nil, err
		}
		if err := d.recoverFrom(state, oldManifestID); err != nil {
			lock.Close()
			return nil, err
		}
	}

	d.picker = d.newPicker()
	d.maybeScheduleCompaction()
	return d, nil
}

func (d *DB) newPicker() compaction.Picker {
	if d.opts.CompactionType == Tiered {
		return &compaction.TieredPicker{RunNum: d.opts.RunNum}
	}
	return &compaction.LeveledPicker{
		Cmp:         d.cmp,
		L0FileNum:   d.opts.L0FileNum,
		L1LevelSize: d.opts.L1LevelSize,
		LevelRatio:  d.opts.LevelRatio,
		MaxLevel:    d.opts.Levels,
	}
}

// allocSstableID reserves the next SSTable id. It takes the engine
// lock itself because compaction and flush call it from the
// background scheduler goroutine, outside the lock section that
// publishes their results.
func (d *DB) allocSstableID() uint64 {
	d.mu.Lock()
	id := d.mu.nextSstableID
	d.mu.nextSstableID++
	d.mu.Unlock()
	return id
}

func (d *DB) allocMemtableIDLocked() uint64 {
	id := d.mu.nextMemtableID
	d.mu.nextMemtableID++
	return id
}

func (d *DB) allocSeqLocked() uint64 {
	seq := d.mu.nextSeq
	d.mu.nextSeq++
	return seq
}

// currentSeqLocked returns the newest sequence number any committed
// write has been assigned, the snapshot bound a reader started right
// now would use.
func (d *DB) currentSeqLocked() uint64 {
	if d.mu.nextSeq == 0 {
		return 0
	}
	return d.mu.nextSeq - 1
}

func (d *DB) liveRefsLocked() []manifest.SstableRef {
	var refs []manifest.SstableRef
	for level, ts := range d.mu.tables {
		for _, t := range ts {
			refs = append(refs, manifest.SstableRef{SstableID: t.ID, Level: level})
		}
	}
	return refs
}

// bootstrap initializes a brand new, empty database directory: seq 1
// and SSTable id 1 are the first ones ever handed out, manifest 1
// holds an empty snapshot, and memtable/WAL generation 1 is active.
func (d *DB) bootstrap() error {
	d.mu.nextSstableID = 1
	d.mu.nextMemtableID = 1
	d.mu.nextSeq = 1

	memID := d.allocMemtableIDLocked()
	mem := memtable.New(memID, d.cmp)
	mem.Ref()
	d.mu.mem = mem

	w, err := record.Open(d.fs, walPath(d.dir, memID), d.opts.ForceSyncNewLog)
	if err != nil {
		return err
	}
	d.mu.walWriter = w

	manifestID := uint64(1)
	mw, err := manifest.Create(d.fs, d.dir, manifestID)
	if err != nil {
		return err
	}
	if err := mw.Append(manifest.SnapshotRecord(nil, d.mu.nextSstableID, d.mu.nextSeq, string(d.opts.CompactionType))); err != nil {
		return err
	}
	if err := mw.Append(manifest.NewMemtableRecord(memID)); err != nil {
		return err
	}
	if err := manifest.SetCurrent(d.fs, d.dir, manifestID); err != nil {
		return err
	}
	d.mu.manifestWriter = mw
	d.mu.manifestID = manifestID
	return nil
}

// recoverFrom rebuilds live state from a replayed manifest, then
// compacts the manifest log itself: since this disk-backed vfs.FS has
// no way to reopen a WAL file for further appends without truncating
// it (vfs.FS.Create always truncates), the replayed memtable is
// flushed to a fresh L0 table immediately rather than kept around to
// append to, its WAL file is removed, and a brand new empty memtable
// generation starts. The rewritten manifest then records the
// post-flush live set directly as one Snapshot record instead of the
// original (possibly long) record history, the same manifest
// compaction a fresh Snapshot record anywhere in the stream achieves
// (spec.md §4.13 step 5).
func (d *DB) recoverFrom(state *manifest.State, oldManifestID uint64) error {
	d.mu.nextSstableID = state.NextSstableID
	d.mu.nextSeq = state.NextSeq
	if state.CompactionType != "" {
		d.opts.CompactionType = CompactionType(state.CompactionType)
	}

	type liveTable struct {
		level int
		id    uint64
	}
	var live []liveTable
	for level, ids := range state.Live {
		for _, id := range ids {
			live = append(live, liveTable{level: level, id: id})
		}
	}
	infos := make([]*compaction.TableInfo, len(live))
	var g errgroup.Group
	for i, lt := range live {
		i, lt := i, lt
		g.Go(func() error {
			r, err := sstable.Open(d.fs, sstablePathFor(d.dir, lt.id), lt.id, d.cmp, d.blockCache)
			if err != nil {
				return err
			}
			infos[i] = &compaction.TableInfo{ID: lt.id, Level: lt.level, FirstKey: r.FirstKey(), LastKey: r.LastKey(), Size: r.Size(), Reader: r}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, info := range infos {
		info.Ref()
		d.mu.tables[info.Level] = append(d.mu.tables[info.Level], info)
	}

	if state.WALID != 0 {
		entries, err := record.Recover(d.fs, walPath(d.dir, state.WALID))
		if err != nil {
			return err
		}
		replay := memtable.New(state.WALID, d.cmp)
		for _, e := range entries {
			if e.Seq >= d.mu.nextSeq {
				d.mu.nextSeq = e.Seq + 1
			}
			if e.Deleted {
				replay.Delete(e.Seq, e.Key)
			} else {
				replay.Put(e.Seq, e.Key, e.Value)
			}
		}

		rit := replay.NewIterator()
		rit.SeekToFirst()
		if rit.Valid() {
			outputs, err := compaction.StreamToTables(
				d.fs, d.dir, merge.NewMemtableIterator(replay.NewIterator()),
				d.allocSstableID, d.cmp, d.opts.Compression, d.opts.TableSize, d.blockCache, 0, false)
			if err != nil {
				return err
			}
			for _, t := range outputs {
				d.mu.tables[t.Level] = append(d.mu.tables[t.Level], t)
			}
		}
		if err := d.fs.Remove(walPath(d.dir, state.WALID)); err != nil {
			return err
		}
	}

	memID := d.allocMemtableIDLocked()
	mem := memtable.New(memID, d.cmp)
	mem.Ref()
	d.mu.mem = mem
	w, err := record.Open(d.fs, walPath(d.dir, memID), d.opts.ForceSyncNewLog)
	if err != nil {
		return err
	}
	d.mu.walWriter = w

	newManifestID := oldManifestID + 1
	mw, err := manifest.Create(d.fs, d.dir, newManifestID)
	if err != nil {
		return err
	}
	if err := mw.Append(manifest.SnapshotRecord(d.liveRefsLocked(), d.mu.nextSstableID, d.mu.nextSeq, string(d.opts.CompactionType))); err != nil {
		return err
	}
	if err := mw.Append(manifest.NewMemtableRecord(memID)); err != nil {
		return err
	}
	if err := manifest.SetCurrent(d.fs, d.dir, newManifestID); err != nil {
		return err
	}
	d.mu.manifestWriter = mw
	d.mu.manifestID = newManifestID

	oldManifestPath := filepath.Join(d.dir, manifest.Filename(oldManifestID))
	if err := d.fs.Remove(oldManifestPath); err != nil {
		d.logger.Errorf("removing superseded manifest %s: %v", oldManifestPath, err)
	}
	return nil
}

// Apply commits every operation staged in b under one hold of the
// engine lock, so no reader observes part of the batch. Each operation
// gets its own sequence number and its own WAL record, written in
// order, so a crash partway through the batch can recover a prefix of
// its operations.
func (d *DB) Apply(b *Batch) error {
	if len(b.ops) == 0 {
		return nil
	}
	d.mu.Lock()
	if d.mu.closed {
		d.mu.Unlock()
		return base.NewError(base.CodeInvalidArgument, nil, "db is closed")
	}
	for _, op := range b.ops {
		seq := d.allocSeqLocked()
		var value []byte
		if !op.deleted {
			value = op.value
		}
		if err := d.mu.walWriter.Put(seq, op.key, value); err != nil {
			d.mu.Unlock()
			return err
		}
		if op.deleted {
			d.mu.mem.Delete(seq, op.key)
		} else {
			d.mu.mem.Put(seq, op.key, op.value)
		}
	}
	var job func()
	if d.mu.mem.ApproximateMemoryUsage() >= d.opts.MemtableSize {
		job = d.rotateMemtableLocked()
	}
	d.mu.Unlock()

	d.metrics.PutCount.Add(int64(len(b.ops)))
	d.metrics.PromPutTotal.Add(float64(len(b.ops)))
	if job != nil {
		d.scheduler.Schedule(job)
	}
	return nil
}

// Put writes key/value as a one-operation batch.
func (d *DB) Put(key, value []byte) error {
	b := NewBatch()
	b.Put(key, value)
	return d.Apply(b)
}

// Remove writes a tombstone for key as a one-operation batch.
func (d *DB) Remove(key []byte) error {
	b := NewBatch()
	b.Remove(key)
	return d.Apply(b)
}

// Get returns the newest value visible for key, or base.ErrNotFound if
// it is absent or its newest version is a deletion.
func (d *DB) Get(key []byte) ([]byte, error) {
	start := time.Now()
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mu.closed {
		return nil, base.NewError(base.CodeInvalidArgument, nil, "db is closed")
	}
	snapshotSeq := d.currentSeqLocked()
	mi := d.newMergingIteratorLocked()
	ui := merge.NewUserIterator(mi, d.cmp, snapshotSeq)
	if err := ui.Seek(key); err != nil {
		return nil, err
	}
	d.metrics.GetCount.Add(1)
	d.metrics.RecordGetLatency(time.Since(start).Microseconds())
	if !ui.Valid() || !bytes.Equal(ui.Key(), key) {
		return nil, base.ErrNotFound
	}
	return append([]byte(nil), ui.Value()...), nil
}

func (d *DB) newMergingIteratorLocked() *merge.MergingIterator {
	children := make([]merge.InternalIterator, 0, 8)
	children = append(children, merge.NewMemtableIterator(d.mu.mem.NewIterator()))
	for _, m := range d.mu.imm {
		children = append(children, merge.NewMemtableIterator(m.NewIterator()))
	}
	for _, ts := range d.mu.tables {
		for _, t := range ts {
			children = append(children, merge.NewSSTableIterator(t.Reader.NewIterator()))
		}
	}
	return merge.NewMergingIterator(d.cmp, children...)
}

// newSnapshotIteratorLocked pins every memtable and SSTable live right
// now (so a long-lived Iterator survives concurrent flushes and
// compactions) and returns an Iterator resolving visibility against
// seq.
func (d *DB) newSnapshotIteratorLocked(seq uint64) *Iterator {
	d.mu.mem.Ref()
	mems := []*memtable.MemTable{d.mu.mem}
	for _, m := range d.mu.imm {
		m.Ref()
		mems = append(mems, m)
	}

	var tables []*compaction.TableInfo
	children := make([]merge.InternalIterator, 0, len(mems)+8)
	for _, m := range mems {
		children = append(children, merge.NewMemtableIterator(m.NewIterator()))
	}
	for _, ts := range d.mu.tables {
		for _, t := range ts {
			t.Ref()
			tables = append(tables, t)
			children = append(children, merge.NewSSTableIterator(t.Reader.NewIterator()))
		}
	}

	mi := merge.NewMergingIterator(d.cmp, children...)
	ui := merge.NewUserIterator(mi, d.cmp, seq)
	return &Iterator{ui: ui, mems: mems, tables: tables}
}

// NewIterator returns a snapshot-isolated iterator over every key
// visible as of this call: later writes, flushes, and compactions
// never change what it sees, and it must be Closed to release the
// memtables and SSTables it pinned.
func (d *DB) NewIterator() (*Iterator, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mu.closed {
		return nil, base.NewError(base.CodeInvalidArgument, nil, "db is closed")
	}
	return d.newSnapshotIteratorLocked(d.currentSeqLocked()), nil
}

// newIteratorAtSeq pins a fresh snapshot iterator at an already-decided
// seq, for Transaction.NewIterator: a transaction's reads must stay
// bound to the seq captured at BeginTransaction (ts_), not whatever is
// current when the iterator is requested.
func (d *DB) newIteratorAtSeq(seq uint64) (*Iterator, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mu.closed {
		return nil, base.NewError(base.CodeInvalidArgument, nil, "db is closed")
	}
	return d.newSnapshotIteratorLocked(seq), nil
}

// BeginTransaction returns a Transaction reading a snapshot of the
// database as of this call, with writes buffered until Commit (spec.md
// §4.14). See DESIGN.md for the snapshot-only isolation decision.
func (d *DB) BeginTransaction() (*Transaction, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mu.closed {
		return nil, base.NewError(base.CodeInvalidArgument, nil, "db is closed")
	}
	seq := d.currentSeqLocked()
	return &Transaction{
		db:       d,
		seq:      seq,
		snapshot: d.newSnapshotIteratorLocked(seq),
		batch:    NewBatch(),
		pending:  make(map[string][]byte),
		tomb:     make(map[string]bool),
	}, nil
}

// rotateMemtableLocked retires the active memtable to immutable,
// starts a fresh one, and returns the flush job to schedule once the
// caller has released the lock. It returns nil (scheduling nothing) if
// opening the new generation's WAL failed, in which case the old
// memtable stays active and the write that triggered rotation is not
// lost.
func (d *DB) rotateMemtableLocked() func() {
	imm := d.mu.mem
	oldWALID := imm.ID()
	oldWAL := d.mu.walWriter

	memID := d.allocMemtableIDLocked()
	w, err := record.Open(d.fs, walPath(d.dir, memID), d.opts.ForceSyncNewLog)
	if err != nil {
		d.logger.Errorf("opening wal for memtable %d: %v", memID, err)
		d.mu.nextMemtableID--
		return nil
	}

	d.mu.imm = append(d.mu.imm, imm)
	mem := memtable.New(memID, d.cmp)
	mem.Ref()
	d.mu.mem = mem
	d.mu.walWriter = w

	if err := d.mu.manifestWriter.Append(manifest.NewMemtableRecord(memID)); err != nil {
		d.logger.Errorf("recording new memtable %d: %v", memID, err)
	}

	return func() {
		if err := d.flush(imm, oldWALID, oldWAL); err != nil {
			d.logger.Errorf("flush of memtable %d failed: %v", imm.ID(), err)
		}
	}
}

// flush streams imm's entries into one or more fresh L0 SSTables,
// publishes them to the live set, records the flush in the manifest,
// and removes the now-superseded WAL file (spec.md §4.13 background
// flush).
func (d *DB) flush(imm *memtable.MemTable, walID uint64, oldWAL *record.Writer) error {
	it := merge.NewMemtableIterator(imm.NewIterator())
	outputs, err := compaction.StreamToTables(
		d.fs, d.dir, it, d.allocSstableID, d.cmp, d.opts.Compression, d.opts.TableSize, d.blockCache, 0, false)
	if err != nil {
		return err
	}

	d.mu.Lock()
	added := make([]manifest.SstableRef, len(outputs))
	for i, t := range outputs {
		d.mu.tables[0] = append(d.mu.tables[0], t)
		added[i] = manifest.SstableRef{SstableID: t.ID, Level: 0}
	}
	if err := d.mu.manifestWriter.Append(manifest.CompactionRecordOf(string(d.opts.CompactionType), added, nil, d.mu.nextSstableID, d.mu.nextSeq)); err != nil {
		d.logger.Errorf("recording flush: %v", err)
	}
	d.removeImmLocked(imm)
	d.mu.Unlock()

	if err := oldWAL.Close(); err != nil {
		return err
	}
	if err := d.fs.Remove(walPath(d.dir, walID)); err != nil {
		return err
	}
	d.metrics.FlushCount.Add(1)
	d.maybeScheduleCompaction()
	return nil
}

func (d *DB) removeImmLocked(imm *memtable.MemTable) {
	for i, m := range d.mu.imm {
		if m == imm {
			d.mu.imm = append(d.mu.imm[:i], d.mu.imm[i+1:]...)
			break
		}
	}
	imm.Unref()
}

// maybeScheduleCompaction asks the picker for the next task and, if it
// found one, schedules it; the job re-asks the picker on completion, so
// several compactions run back to back until the engine quiesces
// (spec.md §4.12).
func (d *DB) maybeScheduleCompaction() {
	d.mu.Lock()
	task, ok := d.picker.Pick(d.mu.tables)
	d.mu.Unlock()
	if !ok {
		return
	}
	d.scheduler.Schedule(func() {
		if err := d.runCompaction(task); err != nil {
			d.logger.Errorf("compaction failed: %v", err)
			return
		}
		d.maybeScheduleCompaction()
	})
}

func (d *DB) runCompaction(task *compaction.Task) error {
	dropTombstones := d.opts.CompactionType == Leveled && task.OutputLevel == d.opts.Levels-1
	outputs, err := compaction.Execute(d.fs, d.dir, task, d.allocSstableID, d.cmp, d.opts.Compression, d.opts.TableSize, d.blockCache, dropTombstones)
	if err != nil {
		return err
	}

	d.mu.Lock()
	removed := make([]manifest.SstableRef, 0, len(task.Inputs))
	for _, in := range task.Inputs {
		d.removeTableLocked(in)
		removed = append(removed, manifest.SstableRef{SstableID: in.ID, Level: in.Level})
	}
	added := make([]manifest.SstableRef, 0, len(outputs))
	for _, t := range outputs {
		d.mu.tables[t.Level] = append(d.mu.tables[t.Level], t)
		added = append(added, manifest.SstableRef{SstableID: t.ID, Level: t.Level})
	}
	if err := d.mu.manifestWriter.Append(manifest.CompactionRecordOf(string(d.opts.CompactionType), added, removed, d.mu.nextSstableID, d.mu.nextSeq)); err != nil {
		d.logger.Errorf("recording compaction: %v", err)
	}
	d.mu.Unlock()

	if err := compaction.RemoveInputs(task); err != nil {
		return err
	}
	d.metrics.CompactionCount.Add(1)
	return nil
}

func (d *DB) removeTableLocked(target *compaction.TableInfo) {
	list := d.mu.tables[target.Level]
	for i, t := range list {
		if t == target {
			d.mu.tables[target.Level] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// SSTableSummary describes one live SSTable for the dump_sstables
// debug command.
type SSTableSummary struct {
	ID         uint64
	Level      int
	FirstKey   string
	LastKey    string
	Size       int64
	BlockCount int
}

// DumpSSTables returns every live SSTable grouped by level (or, under
// Tiered compaction, by run generation).
func (d *DB) DumpSSTables() map[int][]SSTableSummary {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[int][]SSTableSummary, len(d.mu.tables))
	for level, ts := range d.mu.tables {
		summaries := make([]SSTableSummary, 0, len(ts))
		for _, t := range ts {
			summaries = append(summaries, SSTableSummary{
				ID:         t.ID,
				Level:      t.Level,
				FirstKey:   string(t.FirstKey.UserKey),
				LastKey:    string(t.LastKey.UserKey),
				Size:       t.Size,
				BlockCount: t.Reader.BlockCount(),
			})
		}
		out[level] = summaries
	}
	return out
}

// Metrics returns the database's running counters and latency
// histogram. Under Tiered compaction, Sublevels is refreshed to the
// current run count before returning, since it has no meaning outside
// a live table snapshot.
func (d *DB) Metrics() *Metrics {
	if d.opts.CompactionType == Tiered {
		d.mu.Lock()
		runs := 0
		for _, ts := range d.mu.tables {
			if len(ts) > 0 {
				runs++
			}
		}
		d.mu.Unlock()
		d.metrics.Sublevels.Store(int32(runs))
	}
	return d.metrics
}

// Close stops background work and releases every file the database
// holds open. Close must not be called twice concurrently with
// in-flight operations; a second Close is a harmless no-op.
func (d *DB) Close() error {
	d.mu.Lock()
	if d.mu.closed {
		d.mu.Unlock()
		return nil
	}
	d.mu.closed = true
	d.mu.Unlock()

	d.scheduler.Close()

	d.mu.Lock()
	defer d.mu.Unlock()
	var firstErr error
	track := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	track(d.mu.walWriter.Close())
	track(d.mu.manifestWriter.Close())
	for _, ts := range d.mu.tables {
		for _, t := range ts {
			track(t.Reader.Close())
		}
	}
	d.mu.mem.Unref()
	for _, m := range d.mu.imm {
		m.Unref()
	}
	track(d.lock.Close())
	return firstErr
}
