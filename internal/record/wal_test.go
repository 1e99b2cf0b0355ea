package record

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oblsm-go/oblsm/vfs"
)

func TestWriteAndRecover(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "0.wal")
	fs := vfs.Default()

	w, err := Open(fs, path, false)
	require.NoError(t, err)
	require.NoError(t, w.Put(1, []byte("a"), []byte("1")))
	require.NoError(t, w.Put(2, []byte("b"), []byte("2")))
	require.NoError(t, w.Put(3, []byte("a"), nil)) // tombstone
	require.NoError(t, w.Close())

	entries, err := Recover(fs, path)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, uint64(1), entries[0].Seq)
	require.Equal(t, "a", string(entries[0].Key))
	require.Equal(t, "1", string(entries[0].Value))
	require.False(t, entries[0].Deleted)
	require.True(t, entries[2].Deleted)
	require.Empty(t, entries[2].Value)
}

func TestRecoverTruncatesPartialTailRecord(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "0.wal")
	fs := vfs.Default()

	w, err := Open(fs, path, false)
	require.NoError(t, err)
	require.NoError(t, w.Put(1, []byte("a"), []byte("1")))
	require.NoError(t, w.Close())

	// Simulate a crash mid-write of a second record by appending a
	// partial record.
	f, err := os.OpenFile(path, os.O_RDWR|os.O_APPEND, 0644)
	require.NoError(t, err)
	_, err = f.Write(encode(2, []byte("b"), []byte("2"))[:10])
	require.NoError(t, err)
	require.NoError(t, f.Close())

	entries, err := Recover(fs, path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, uint64(1), entries[0].Seq)
}
