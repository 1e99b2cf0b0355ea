package manifest

// State is the live database metadata a manifest stream replays into:
// the SSTable set grouped by level, the id/seq counters, the active
// compaction policy, and the WAL generation to replay on recovery.
type State struct {
	Live           map[int][]uint64
	NextSstableID  uint64
	NextSeq        uint64
	CompactionType string
	WALID          uint64
}

// newState returns an empty State, equivalent to a freshly initialized
// database before any record has been applied.
func newState() *State {
	return &State{Live: make(map[int][]uint64)}
}

// apply folds one record into the state, in the order spec.md §4.13
// step 2 describes: a Snapshot resets everything; a Compaction mutates
// the live set and counters; a NewMemtable only updates which WAL to
// replay.
func (s *State) apply(rec Record) {
	switch rec.Kind {
	case KindSnapshot:
		s.Live = make(map[int][]uint64)
		for _, ref := range rec.Snapshot.Sstables {
			s.Live[ref.Level] = append(s.Live[ref.Level], ref.SstableID)
		}
		s.NextSstableID = rec.Snapshot.NextSstableID
		s.NextSeq = rec.Snapshot.NextSeq
		s.CompactionType = rec.Snapshot.CompactionType
	case KindNewMemtable:
		s.WALID = rec.NewMemtable.ID
	case KindCompaction:
		for _, ref := range rec.Compaction.Removed {
			s.Live[ref.Level] = removeID(s.Live[ref.Level], ref.SstableID)
		}
		for _, ref := range rec.Compaction.Added {
			s.Live[ref.Level] = append(s.Live[ref.Level], ref.SstableID)
		}
		s.NextSstableID = rec.Compaction.NextSstableID
		s.NextSeq = rec.Compaction.Seq
		s.CompactionType = rec.Compaction.CompactionType
	}
}

func removeID(ids []uint64, target uint64) []uint64 {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

// Snapshot produces the SstableRef list a fresh Snapshot record would
// need to fully describe the current live set, used when rewriting a
// compacted manifest on reopen (spec.md §4.13 step 5).
func (s *State) Snapshot() []SstableRef {
	var refs []SstableRef
	for level, ids := range s.Live {
		for _, id := range ids {
			refs = append(refs, SstableRef{SstableID: id, Level: level})
		}
	}
	return refs
}
