package sstable

import (
	"bytes"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oblsm-go/oblsm/internal/base"
	"github.com/oblsm-go/oblsm/internal/cache"
	"github.com/oblsm-go/oblsm/vfs"
)

type sliceIterator struct {
	keys   []base.InternalKey
	values [][]byte
	idx    int
}

func newSliceIterator(keys []base.InternalKey, values [][]byte) *sliceIterator {
	return &sliceIterator{keys: keys, values: values, idx: 0}
}

func (s *sliceIterator) Valid() bool          { return s.idx < len(s.keys) }
func (s *sliceIterator) Key() base.InternalKey { return s.keys[s.idx] }
func (s *sliceIterator) Value() []byte        { return s.values[s.idx] }
func (s *sliceIterator) Next() error          { s.idx++; return nil }

func buildTestTable(t *testing.T, filename string, n int) ([]base.InternalKey, [][]byte) {
	t.Helper()
	var keys []base.InternalKey
	var values [][]byte
	for i := 0; i < n; i++ {
		keys = append(keys, base.MakeInternalKey([]byte(fmt.Sprintf("key-%05d", i)), uint64(i+1)))
		values = append(values, []byte(fmt.Sprintf("value-%05d", i)))
	}

	b, err := NewBuilder(vfs.Default(), filename, SnappyCompression)
	require.NoError(t, err)
	require.NoError(t, b.AddAll(newSliceIterator(keys, values)))
	require.NoError(t, b.Finish())
	return keys, values
}

func TestBuilderAndReaderRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "1.sst")
	keys, values := buildTestTable(t, path, 500)

	r, err := Open(vfs.Default(), path, 1, bytes.Compare, nil)
	require.NoError(t, err)
	defer r.Close()

	require.Greater(t, r.BlockCount(), 1)
	require.Equal(t, keys[0], r.FirstKey())
	require.Equal(t, keys[len(keys)-1], r.LastKey())

	it := r.NewIterator()
	require.NoError(t, it.SeekToFirst())
	i := 0
	for it.Valid() {
		require.Equal(t, keys[i], it.Key())
		require.Equal(t, values[i], it.Value())
		i++
		require.NoError(t, it.Next())
	}
	require.Equal(t, len(keys), i)
}

func TestReaderSeekFindsMidTableKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "1.sst")
	keys, values := buildTestTable(t, path, 500)

	r, err := Open(vfs.Default(), path, 1, bytes.Compare, nil)
	require.NoError(t, err)
	defer r.Close()

	target := keys[250]
	it := r.NewIterator()
	require.NoError(t, it.Seek(target))
	require.True(t, it.Valid())
	require.Equal(t, target, it.Key())
	require.Equal(t, values[250], it.Value())
}

func TestReaderSeekToLastAndPrevWalkBackward(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "1.sst")
	keys, values := buildTestTable(t, path, 500)

	r, err := Open(vfs.Default(), path, 1, bytes.Compare, nil)
	require.NoError(t, err)
	defer r.Close()

	it := r.NewIterator()
	require.NoError(t, it.SeekToLast())
	require.True(t, it.Valid())
	require.Equal(t, keys[len(keys)-1], it.Key())

	for i := len(keys) - 2; i >= len(keys)-5; i-- {
		require.NoError(t, it.Prev())
		require.True(t, it.Valid())
		require.Equal(t, keys[i], it.Key())
		require.Equal(t, values[i], it.Value())
	}
}

func TestBloomFilterRejectsAbsentKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "1.sst")
	buildTestTable(t, path, 100)

	r, err := Open(vfs.Default(), path, 1, bytes.Compare, nil)
	require.NoError(t, err)
	defer r.Close()

	require.True(t, r.MayContain([]byte("key-00010")))
	require.False(t, r.MayContain([]byte("definitely-not-present")))
}

func TestReadBlockWithCacheServesFromCache(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "1.sst")
	buildTestTable(t, path, 500)

	c := cache.New(1 << 20)
	r, err := Open(vfs.Default(), path, 1, bytes.Compare, c)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.ReadBlockWithCache(0)
	require.NoError(t, err)
	m := c.Metrics()
	require.Equal(t, int64(1), m.Misses)

	_, err = r.ReadBlockWithCache(0)
	require.NoError(t, err)
	m = c.Metrics()
	require.Equal(t, int64(1), m.Hits)
}

func TestRemoveDeletesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "1.sst")
	buildTestTable(t, path, 10)

	r, err := Open(vfs.Default(), path, 1, bytes.Compare, nil)
	require.NoError(t, err)
	require.NoError(t, r.Remove())

	_, err = Open(vfs.Default(), path, 1, bytes.Compare, nil)
	require.Error(t, err)
}
