package oblsm

import (
	"github.com/oblsm-go/oblsm/internal/base"
	"github.com/oblsm-go/oblsm/internal/sstable"
	"github.com/oblsm-go/oblsm/vfs"
)

// CompactionType selects which compaction picker LsmImpl runs.
type CompactionType string

const (
	Tiered  CompactionType = "TIERED"
	Leveled CompactionType = "LEVELED"
)

// Defaults from spec.md §6, carried verbatim.
const (
	DefaultMemtableSize    = 8 << 10
	DefaultTableSize       = 16 << 10
	DefaultLevels          = 7
	DefaultL1LevelSize     = 128 << 10
	DefaultLevelRatio      = 10
	DefaultL0FileNum       = 3
	DefaultRunNum          = 7
	DefaultForceSyncNewLog = true
	DefaultBlockCacheSize  = 8 << 20
)

// Options configures Open. A zero-value Options is valid input:
// EnsureDefaults fills in every unset field with the constants above,
// following the teacher's own Options.EnsureDefaults convention.
type Options struct {
	// MemtableSize is the approximate byte threshold at which the active
	// memtable rotates to immutable and a background flush is scheduled.
	MemtableSize int64
	// TableSize is the target byte size of one output SSTable, both for
	// a flush and for a compaction output.
	TableSize int64

	// CompactionType selects Tiered or Leveled.
	CompactionType CompactionType
	// Levels is the fixed level count under Leveled compaction.
	Levels int
	// L1LevelSize is Leveled compaction's L1 byte budget.
	L1LevelSize int64
	// LevelRatio scales each level's budget over the one above it.
	LevelRatio int
	// L0FileNum is the L0 file count that triggers an L0->L1 compaction.
	L0FileNum int
	// RunNum is the run count that triggers a Tiered merge of the two
	// oldest runs.
	RunNum int

	// ForceSyncNewLog fsyncs the WAL after every Put when true.
	ForceSyncNewLog bool
	// Compression selects the per-block codec used by new SSTables.
	Compression sstable.CompressionKind
	// Checksums is recorded in Options but not consulted: block and WAL
	// record checksums are verified on every read whatever its value.
	Checksums bool
	// BlockCacheSize is the LRU block cache's byte budget, shared across
	// every SSTable reader Open returns.
	BlockCacheSize int64

	// Comparer is the user-key comparator. Defaults to lexicographic
	// byte comparison.
	Comparer base.Compare
	// FS abstracts the filesystem Open/WAL/manifest/SSTable I/O runs
	// against. Defaults to the local disk; swap in
	// cloud/aws.NewCloudFS to mirror the data directory to S3.
	FS vfs.FS
	// Logger receives structured progress messages for recovery,
	// flush, and compaction. Defaults to a stderr logger.
	Logger base.Logger
}

// EnsureDefaults returns a copy of o with every unset field filled in
// from the constants above, the same pattern the teacher's own
// Options.EnsureDefaults follows.
func (o Options) EnsureDefaults() *Options {
	if o.MemtableSize == 0 {
		o.MemtableSize = DefaultMemtableSize
	}
	if o.TableSize == 0 {
		o.TableSize = DefaultTableSize
	}
	if o.CompactionType == "" {
		o.CompactionType = Leveled
	}
	if o.Levels == 0 {
		o.Levels = DefaultLevels
	}
	if o.L1LevelSize == 0 {
		o.L1LevelSize = DefaultL1LevelSize
	}
	if o.LevelRatio == 0 {
		o.LevelRatio = DefaultLevelRatio
	}
	if o.L0FileNum == 0 {
		o.L0FileNum = DefaultL0FileNum
	}
	if o.RunNum == 0 {
		o.RunNum = DefaultRunNum
	}
	if o.BlockCacheSize == 0 {
		o.BlockCacheSize = DefaultBlockCacheSize
	}
	if o.Comparer == nil {
		o.Comparer = base.DefaultComparer
	}
	if o.FS == nil {
		o.FS = vfs.Default()
	}
	if o.Logger == nil {
		o.Logger = base.NewDefaultLogger()
	}
	// ForceSyncNewLog, Checksums, and Compression all default to "on"
	// (spec.md §6), and a plain bool/zero-value CompressionKind can't
	// distinguish "unset" from "explicitly off", so ForceSyncNewLog and
	// Checksums are always set to true and NoCompression is replaced by
	// Snappy. Open applies EnsureDefaults to the Options it is given, so
	// none of the three can be turned off through Open.
	o.ForceSyncNewLog = true
	o.Checksums = true
	if o.Compression == sstable.NoCompression {
		o.Compression = sstable.SnappyCompression
	}
	return &o
}
