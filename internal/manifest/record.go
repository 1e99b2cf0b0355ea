// Package manifest implements the durable metadata log spec.md §4.13/§9
// describes: length-prefixed JSON records naming the live SSTable set,
// memtable/WAL linkage, and compaction results, plus the CURRENT-file
// redirection protocol that makes manifest rollover crash-safe.
package manifest

// SstableRef names one SSTable's id and the level it lives in.
type SstableRef struct {
	SstableID uint64 `json:"sstable_id"`
	Level     int    `json:"level"`
}

// Kind discriminates the three record shapes a manifest stream holds.
type Kind string

const (
	KindSnapshot    Kind = "snapshot"
	KindNewMemtable Kind = "new_memtable"
	KindCompaction  Kind = "compaction"
)

// SnapshotPayload is the full live state, written on manifest rollover
// and at the start of every manifest file (spec.md §4.13 step 5).
type SnapshotPayload struct {
	Sstables       []SstableRef `json:"sstables"`
	NextSstableID  uint64       `json:"next_sstable_id"`
	NextSeq        uint64       `json:"next_seq"`
	CompactionType string       `json:"compaction_type"`
}

// NewMemtablePayload names a freshly opened memtable generation and its
// paired WAL file.
type NewMemtablePayload struct {
	ID uint64 `json:"id"`
}

// CompactionPayload describes one compaction's effect on the live set.
type CompactionPayload struct {
	CompactionType string       `json:"compaction_type"`
	Added          []SstableRef `json:"added"`
	Removed        []SstableRef `json:"removed"`
	NextSstableID  uint64       `json:"next_sstable_id"`
	Seq            uint64       `json:"seq"`
}

// Record is the tagged union written to the manifest log. Exactly one
// of Snapshot/NewMemtable/Compaction is populated, selected by Kind.
type Record struct {
	Kind        Kind                `json:"kind"`
	Snapshot    *SnapshotPayload    `json:"snapshot,omitempty"`
	NewMemtable *NewMemtablePayload `json:"new_memtable,omitempty"`
	Compaction  *CompactionPayload  `json:"compaction,omitempty"`
}

// SnapshotRecord builds a Snapshot record.
func SnapshotRecord(sstables []SstableRef, nextSstableID, nextSeq uint64, compactionType string) Record {
	return Record{
		Kind: KindSnapshot,
		Snapshot: &SnapshotPayload{
			Sstables:       sstables,
			NextSstableID:  nextSstableID,
			NextSeq:        nextSeq,
			CompactionType: compactionType,
		},
	}
}

// NewMemtableRecord builds a NewMemtable record.
func NewMemtableRecord(id uint64) Record {
	return Record{Kind: KindNewMemtable, NewMemtable: &NewMemtablePayload{ID: id}}
}

// CompactionRecordOf builds a Compaction record.
func CompactionRecordOf(compactionType string, added, removed []SstableRef, nextSstableID, seq uint64) Record {
	return Record{
		Kind: KindCompaction,
		Compaction: &CompactionPayload{
			CompactionType: compactionType,
			Added:          added,
			Removed:        removed,
			NextSstableID:  nextSstableID,
			Seq:            seq,
		},
	}
}
