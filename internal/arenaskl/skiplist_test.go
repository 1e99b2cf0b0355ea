package arenaskl

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oblsm-go/oblsm/internal/arena"
	"github.com/oblsm-go/oblsm/internal/base"
)

func newTestSkiplist() *Skiplist {
	return New(arena.New(), base.DefaultComparer)
}

func TestInsertAndIterateAscendingNewestFirst(t *testing.T) {
	s := newTestSkiplist()
	s.Insert(base.MakeInternalKey([]byte("a"), 1), []byte("a1"))
	s.Insert(base.MakeInternalKey([]byte("a"), 2), []byte("a2"))
	s.Insert(base.MakeInternalKey([]byte("b"), 1), []byte("b1"))

	it := s.NewIterator()
	it.SeekToFirst()

	require.True(t, it.Valid())
	require.Equal(t, "a", string(it.Key().UserKey))
	require.EqualValues(t, 2, it.Key().Seq)
	require.Equal(t, "a2", string(it.Value()))

	it.Next()
	require.True(t, it.Valid())
	require.Equal(t, "a", string(it.Key().UserKey))
	require.EqualValues(t, 1, it.Key().Seq)

	it.Next()
	require.True(t, it.Valid())
	require.Equal(t, "b", string(it.Key().UserKey))

	it.Next()
	require.False(t, it.Valid())
}

func TestSeekToLastAndPrev(t *testing.T) {
	s := newTestSkiplist()
	for i := 0; i < 10; i++ {
		s.Insert(base.MakeInternalKey([]byte{byte('a' + i)}, 1), []byte{byte(i)})
	}
	it := s.NewIterator()
	it.SeekToLast()
	require.True(t, it.Valid())
	require.Equal(t, "j", string(it.Key().UserKey))

	it.Prev()
	require.True(t, it.Valid())
	require.Equal(t, "i", string(it.Key().UserKey))
}

func TestSeekWithLookupKeyFindsVisibleVersion(t *testing.T) {
	s := newTestSkiplist()
	s.Insert(base.MakeInternalKey([]byte("k"), 1), []byte("v1"))
	s.Insert(base.MakeInternalKey([]byte("k"), 5), []byte("v5"))

	lk := base.LookupKey{UserKey: []byte("k"), SnapshotSeq: 3}
	it := s.NewIterator()
	it.Seek(lk.InternalKey())
	require.True(t, it.Valid())
	require.Equal(t, "v1", string(it.Value()))
	require.EqualValues(t, 1, it.Key().Seq)
}

func TestContains(t *testing.T) {
	s := newTestSkiplist()
	k := base.MakeInternalKey([]byte("x"), 9)
	require.False(t, s.Contains(k))
	s.Insert(k, []byte("v"))
	require.True(t, s.Contains(k))
}

func TestConcurrentInsertIsSafe(t *testing.T) {
	s := newTestSkiplist()
	const n = 2000
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.InsertConcurrently(base.MakeInternalKey([]byte(fmt.Sprintf("key-%05d", i)), 1), []byte("v"))
		}(i)
	}
	wg.Wait()

	count := 0
	it := s.NewIterator()
	var prev base.InternalKey
	first := true
	for it.SeekToFirst(); it.Valid(); it.Next() {
		if !first {
			require.Less(t, base.InternalCompare(base.DefaultComparer, prev, it.Key()), 0)
		}
		prev = it.Key()
		first = false
		count++
	}
	require.Equal(t, n, count)
}
