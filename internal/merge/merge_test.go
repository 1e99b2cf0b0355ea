package merge

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oblsm-go/oblsm/internal/base"
)

// fakeIterator is a simple in-memory InternalIterator over a
// pre-sorted slice, used to exercise MergingIterator/UserIterator
// without needing a real memtable or SSTable.
type fakeIterator struct {
	entries []fakeEntry
	idx     int // -1 = before start, len(entries) = past end
}

type fakeEntry struct {
	key base.InternalKey
	val []byte
}

func newFakeIterator(entries []fakeEntry) *fakeIterator {
	return &fakeIterator{entries: entries, idx: -1}
}

func (f *fakeIterator) Valid() bool               { return f.idx >= 0 && f.idx < len(f.entries) }
func (f *fakeIterator) Key() base.InternalKey     { return f.entries[f.idx].key }
func (f *fakeIterator) Value() []byte             { return f.entries[f.idx].val }
func (f *fakeIterator) SeekToFirst() error {
	if len(f.entries) == 0 {
		f.idx = -1
		return nil
	}
	f.idx = 0
	return nil
}
func (f *fakeIterator) SeekToLast() error {
	f.idx = len(f.entries) - 1
	return nil
}
func (f *fakeIterator) Seek(target base.InternalKey) error {
	for i, e := range f.entries {
		if base.InternalCompare(bytes.Compare, e.key, target) >= 0 {
			f.idx = i
			return nil
		}
	}
	f.idx = len(f.entries)
	return nil
}
func (f *fakeIterator) Next() error {
	if f.idx < len(f.entries) {
		f.idx++
	}
	return nil
}
func (f *fakeIterator) Prev() error {
	if f.idx > -1 {
		f.idx--
	}
	return nil
}

func e(userKey string, seq uint64, val string) fakeEntry {
	return fakeEntry{key: base.MakeInternalKey([]byte(userKey), seq), val: []byte(val)}
}

func tombstone(userKey string, seq uint64) fakeEntry {
	return fakeEntry{key: base.MakeInternalKey([]byte(userKey), seq), val: nil}
}

func TestMergingIteratorInterleavesAscending(t *testing.T) {
	a := newFakeIterator([]fakeEntry{e("a", 5, "a5"), e("c", 3, "c3")})
	b := newFakeIterator([]fakeEntry{e("b", 4, "b4"), e("c", 1, "c1")})

	m := NewMergingIterator(bytes.Compare, a, b)
	require.NoError(t, m.SeekToFirst())

	var got []string
	for m.Valid() {
		got = append(got, string(m.Key().UserKey))
		require.NoError(t, m.Next())
	}
	require.Equal(t, []string{"a", "b", "c", "c"}, got)
}

func TestMergingIteratorSeekToLastAndPrev(t *testing.T) {
	a := newFakeIterator([]fakeEntry{e("a", 1, "a1"), e("d", 2, "d2")})
	b := newFakeIterator([]fakeEntry{e("b", 1, "b1"), e("c", 1, "c1")})

	m := NewMergingIterator(bytes.Compare, a, b)
	require.NoError(t, m.SeekToLast())
	require.Equal(t, "d", string(m.Key().UserKey))

	require.NoError(t, m.Prev())
	require.Equal(t, "c", string(m.Key().UserKey))

	require.NoError(t, m.Prev())
	require.Equal(t, "b", string(m.Key().UserKey))

	require.NoError(t, m.Prev())
	require.Equal(t, "a", string(m.Key().UserKey))

	require.NoError(t, m.Prev())
	require.False(t, m.Valid())
}

func TestUserIteratorResolvesNewestVisibleVersion(t *testing.T) {
	mem := newFakeIterator([]fakeEntry{e("a", 10, "newer"), e("a", 5, "older")})
	m := NewMergingIterator(bytes.Compare, mem)

	u := NewUserIterator(m, bytes.Compare, 100)
	require.NoError(t, u.SeekToFirst())
	require.True(t, u.Valid())
	require.Equal(t, "a", string(u.Key()))
	require.Equal(t, "newer", string(u.Value()))
}

func TestUserIteratorHidesVersionsAfterSnapshot(t *testing.T) {
	mem := newFakeIterator([]fakeEntry{e("a", 10, "future"), e("a", 5, "visible")})
	m := NewMergingIterator(bytes.Compare, mem)

	u := NewUserIterator(m, bytes.Compare, 7)
	require.NoError(t, u.SeekToFirst())
	require.True(t, u.Valid())
	require.Equal(t, "visible", string(u.Value()))
}

func TestUserIteratorSkipsTombstones(t *testing.T) {
	mem := newFakeIterator([]fakeEntry{tombstone("a", 5), e("b", 1, "b1")})
	m := NewMergingIterator(bytes.Compare, mem)

	u := NewUserIterator(m, bytes.Compare, 10)
	require.NoError(t, u.SeekToFirst())
	require.True(t, u.Valid())
	require.Equal(t, "b", string(u.Key()))
}

func TestUserIteratorForwardScanAcrossKeys(t *testing.T) {
	mem := newFakeIterator([]fakeEntry{
		e("a", 3, "a3"), e("a", 1, "a1"),
		e("b", 2, "b2"),
		e("c", 4, "c4"),
	})
	m := NewMergingIterator(bytes.Compare, mem)

	u := NewUserIterator(m, bytes.Compare, 10)
	require.NoError(t, u.SeekToFirst())

	var got []string
	for u.Valid() {
		got = append(got, string(u.Key()))
		require.NoError(t, u.Next())
	}
	require.Equal(t, []string{"a", "b", "c"}, got)
}

func TestUserIteratorBackwardScan(t *testing.T) {
	mem := newFakeIterator([]fakeEntry{
		e("a", 1, "a1"),
		e("b", 2, "b2"),
		e("c", 4, "c4"), e("c", 1, "c1"),
	})
	m := NewMergingIterator(bytes.Compare, mem)

	u := NewUserIterator(m, bytes.Compare, 10)
	require.NoError(t, u.SeekToLast())
	require.True(t, u.Valid())
	require.Equal(t, "c", string(u.Key()))
	require.Equal(t, "c4", string(u.Value()))

	require.NoError(t, u.Prev())
	require.Equal(t, "b", string(u.Key()))

	require.NoError(t, u.Prev())
	require.Equal(t, "a", string(u.Key()))

	require.NoError(t, u.Prev())
	require.False(t, u.Valid())
}

func TestUserIteratorSeekLandsOnVisibleVersion(t *testing.T) {
	mem := newFakeIterator([]fakeEntry{
		e("a", 1, "a1"),
		e("m", 3, "m3"), e("m", 1, "m1"),
		e("z", 1, "z1"),
	})
	m := NewMergingIterator(bytes.Compare, mem)

	u := NewUserIterator(m, bytes.Compare, 10)
	require.NoError(t, u.Seek([]byte("m")))
	require.True(t, u.Valid())
	require.Equal(t, "m", string(u.Key()))
	require.Equal(t, "m3", string(u.Value()))
}
