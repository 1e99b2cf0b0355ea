package compaction

import (
	"golang.org/x/exp/slices"
)

// TieredPicker implements the Tiered policy (spec.md §4.12): tables
// are grouped into "runs" keyed by TableInfo.Level, where a lower
// Level value means an older run. Once the run count reaches RunNum,
// the two oldest runs are merged into one.
type TieredPicker struct {
	RunNum int
}

// Pick returns the oldest two runs as one Task, or ok=false if there
// are not yet enough runs to trigger a compaction. Both merged runs'
// tables become the task's inputs; the output keeps the generation of
// the older of the two runs, so merged data keeps sinking toward the
// oldest position as further merges happen.
func (p *TieredPicker) Pick(tables map[int][]*TableInfo) (*Task, bool) {
	runs := make([]int, 0, len(tables))
	for run := range tables {
		runs = append(runs, run)
	}
	if len(runs) < p.RunNum {
		return nil, false
	}
	slices.Sort(runs)

	oldest, secondOldest := runs[0], runs[1]
	var inputs []*TableInfo
	inputs = append(inputs, tables[oldest]...)
	inputs = append(inputs, tables[secondOldest]...)

	return &Task{Inputs: inputs, OutputLevel: oldest}, true
}
