package compaction

import "github.com/oblsm-go/oblsm/internal/base"

// LeveledPicker implements the Leveled policy (spec.md §4.12): a fixed
// number of levels, L0 holding possibly-overlapping tables and every
// level beyond it partitioned into disjoint key ranges.
type LeveledPicker struct {
	Cmp         base.Compare
	L0FileNum   int
	L1LevelSize int64
	LevelRatio  int
	MaxLevel    int // levels are 0..MaxLevel-1
}

// levelBudget returns the byte budget for level i (i >= 1): L1's
// budget scaled by LevelRatio for every level beyond it.
func (p *LeveledPicker) levelBudget(level int) int64 {
	budget := p.L1LevelSize
	for i := 1; i < level; i++ {
		budget *= int64(p.LevelRatio)
	}
	return budget
}

// Pick returns the next compaction task, preferring L0->L1 when L0 has
// overflowed, then checking each level's byte budget in order.
func (p *LeveledPicker) Pick(tables map[int][]*TableInfo) (*Task, bool) {
	if len(tables[0]) > p.L0FileNum {
		return p.pickL0(tables)
	}
	for level := 1; level < p.MaxLevel-1; level++ {
		var bytes int64
		for _, t := range tables[level] {
			bytes += t.Size
		}
		if bytes > p.levelBudget(level) {
			return p.pickLevel(tables, level)
		}
	}
	return nil, false
}

func (p *LeveledPicker) pickL0(tables map[int][]*TableInfo) (*Task, bool) {
	l0 := tables[0]
	inputs := append([]*TableInfo(nil), l0...)

	for _, l1 := range tables[1] {
		for _, l0Table := range l0 {
			if overlaps(p.Cmp, l0Table, l1) {
				inputs = append(inputs, l1)
				break
			}
		}
	}
	return &Task{Inputs: inputs, OutputLevel: 1}, true
}

func (p *LeveledPicker) pickLevel(tables map[int][]*TableInfo, level int) (*Task, bool) {
	src := tables[level]
	if len(src) == 0 {
		return nil, false
	}
	// Pick the table with the smallest first key: a stable, simple
	// choice that keeps repeated compactions sweeping across the
	// level's key space rather than always picking the same table.
	victim := src[0]
	for _, t := range src[1:] {
		if p.Cmp(t.FirstKey.UserKey, victim.FirstKey.UserKey) < 0 {
			victim = t
		}
	}

	inputs := []*TableInfo{victim}
	for _, t := range tables[level+1] {
		if overlaps(p.Cmp, victim, t) {
			inputs = append(inputs, t)
		}
	}
	return &Task{Inputs: inputs, OutputLevel: level + 1}, true
}
