package compaction

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/cockroachdb/datadriven"

	"github.com/oblsm-go/oblsm/internal/base"
)

// parseLevelLine parses "L0: a-m:100 n-z:50" into a level number and
// the TableInfo entries it names. Pick only consults FirstKey, LastKey
// and Size, so these synthetic tables carry no backing Reader.
func parseLevelLine(t *testing.T, line string) (int, []*TableInfo) {
	t.Helper()
	head, rest, ok := strings.Cut(line, ":")
	if !ok {
		t.Fatalf("malformed level line %q", line)
	}
	level, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(head), "L"))
	if err != nil {
		t.Fatalf("malformed level number in %q: %v", line, err)
	}

	var infos []*TableInfo
	for i, tok := range strings.Fields(rest) {
		keys, sizeStr, ok := strings.Cut(tok, ":")
		if !ok {
			t.Fatalf("malformed table token %q", tok)
		}
		first, last, ok := strings.Cut(keys, "-")
		if !ok {
			t.Fatalf("malformed key range %q", tok)
		}
		size, err := strconv.ParseInt(sizeStr, 10, 64)
		if err != nil {
			t.Fatalf("malformed size in %q: %v", tok, err)
		}
		infos = append(infos, &TableInfo{
			ID:       uint64(level*1000 + i),
			Level:    level,
			FirstKey: base.MakeInternalKey([]byte(first), 1),
			LastKey:  base.MakeInternalKey([]byte(last), 1),
			Size:     size,
		})
	}
	return level, infos
}

// TestLeveledPickerDataDriven exercises LeveledPicker.Pick against
// hand-written level layouts the way real Pebble's own compaction
// picker tests table-drive their decisions.
func TestLeveledPickerDataDriven(t *testing.T) {
	datadriven.RunTest(t, "testdata/leveled_pick", func(t *testing.T, d *datadriven.TestData) string {
		switch d.Cmd {
		case "pick":
			tables := make(map[int][]*TableInfo)
			for _, line := range strings.Split(d.Input, "\n") {
				line = strings.TrimSpace(line)
				if line == "" {
					continue
				}
				level, infos := parseLevelLine(t, line)
				tables[level] = append(tables[level], infos...)
			}
			picker := &LeveledPicker{
				Cmp:         base.DefaultComparer,
				L0FileNum:   1,
				L1LevelSize: 100,
				LevelRatio:  10,
				MaxLevel:    4,
			}
			task, ok := picker.Pick(tables)
			if !ok {
				return "no compaction\n"
			}
			var b strings.Builder
			fmt.Fprintf(&b, "output level: %d\n", task.OutputLevel)
			for _, in := range task.Inputs {
				fmt.Fprintf(&b, "input: L%d %s-%s\n", in.Level, in.FirstKey.UserKey, in.LastKey.UserKey)
			}
			return b.String()
		default:
			t.Fatalf("unknown command %s", d.Cmd)
			return ""
		}
	})
}
