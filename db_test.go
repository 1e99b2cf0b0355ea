package oblsm

import (
	"fmt"
	"strings"
	"testing"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/stretchr/testify/require"

	"github.com/oblsm-go/oblsm/internal/base"
)

func openTestDB(t *testing.T, opts Options) *DB {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(dir, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestPutGetRoundTrip(t *testing.T) {
	db := openTestDB(t, Options{})
	require.NoError(t, db.Put([]byte("a"), []byte("1")))
	v, err := db.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, "1", string(v))
}

func TestGetMissingKeyReturnsNotFound(t *testing.T) {
	db := openTestDB(t, Options{})
	_, err := db.Get([]byte("missing"))
	require.True(t, base.IsNotFound(err))
}

func TestPutShadowsOlderVersion(t *testing.T) {
	db := openTestDB(t, Options{})
	require.NoError(t, db.Put([]byte("a"), []byte("1")))
	require.NoError(t, db.Put([]byte("a"), []byte("2")))
	v, err := db.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, "2", string(v))
}

func TestRemoveHidesKey(t *testing.T) {
	db := openTestDB(t, Options{})
	require.NoError(t, db.Put([]byte("a"), []byte("1")))
	require.NoError(t, db.Remove([]byte("a")))
	_, err := db.Get([]byte("a"))
	require.True(t, base.IsNotFound(err))
}

func TestIteratorScansInOrder(t *testing.T) {
	db := openTestDB(t, Options{})
	require.NoError(t, db.Put([]byte("c"), []byte("3")))
	require.NoError(t, db.Put([]byte("a"), []byte("1")))
	require.NoError(t, db.Put([]byte("b"), []byte("2")))

	it, err := db.NewIterator()
	require.NoError(t, err)
	defer it.Close()

	require.NoError(t, it.SeekToFirst())
	var keys []string
	for it.Valid() {
		keys = append(keys, string(it.Key()))
		require.NoError(t, it.Next())
	}
	require.Equal(t, []string{"a", "b", "c"}, keys)
}

// requireScanOutput compares a multi-line scan dump against a golden
// string, failing with a unified diff (rather than testify's raw
// expected/actual dump) when they differ.
func requireScanOutput(t *testing.T, want, got string) {
	t.Helper()
	if want == got {
		return
	}
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(want),
		B:        difflib.SplitLines(got),
		FromFile: "want",
		ToFile:   "got",
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	require.NoError(t, err)
	t.Fatalf("scan output mismatch:\n%s", text)
}

func TestScanOutputMatchesGolden(t *testing.T) {
	db := openTestDB(t, Options{})
	for _, k := range []string{"key1", "key2", "key10", "key20"} {
		require.NoError(t, db.Put([]byte(k), []byte(k+"-value")))
	}

	it, err := db.NewIterator()
	require.NoError(t, err)
	defer it.Close()

	var got strings.Builder
	require.NoError(t, it.SeekToFirst())
	for it.Valid() {
		fmt.Fprintf(&got, "%s => %s\n", it.Key(), it.Value())
		require.NoError(t, it.Next())
	}

	want := "key1 => key1-value\n" +
		"key10 => key10-value\n" +
		"key2 => key2-value\n" +
		"key20 => key20-value\n"
	requireScanOutput(t, want, got.String())
}

func TestIteratorSnapshotIsolatesLaterWrites(t *testing.T) {
	db := openTestDB(t, Options{})
	require.NoError(t, db.Put([]byte("a"), []byte("1")))

	it, err := db.NewIterator()
	require.NoError(t, err)
	defer it.Close()

	require.NoError(t, db.Put([]byte("b"), []byte("2")))

	require.NoError(t, it.SeekToFirst())
	var keys []string
	for it.Valid() {
		keys = append(keys, string(it.Key()))
		require.NoError(t, it.Next())
	}
	require.Equal(t, []string{"a"}, keys)
}

func TestApplyBatchAtomicVisibility(t *testing.T) {
	db := openTestDB(t, Options{})
	b := NewBatch()
	b.Put([]byte("x"), []byte("1"))
	b.Put([]byte("y"), []byte("2"))
	require.NoError(t, db.Apply(b))

	vx, err := db.Get([]byte("x"))
	require.NoError(t, err)
	require.Equal(t, "1", string(vx))
	vy, err := db.Get([]byte("y"))
	require.NoError(t, err)
	require.Equal(t, "2", string(vy))
}

func TestTransactionCommitAppliesWrites(t *testing.T) {
	db := openTestDB(t, Options{})
	txn, err := db.BeginTransaction()
	require.NoError(t, err)
	txn.Put([]byte("a"), []byte("1"))
	v, err := txn.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, "1", string(v))

	_, err = db.Get([]byte("a"))
	require.True(t, base.IsNotFound(err), "uncommitted write must not be visible outside the transaction")

	require.NoError(t, txn.Commit())
	v, err = db.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, "1", string(v))
}

func TestTransactionIteratorMergesLocalWritesOverSnapshot(t *testing.T) {
	db := openTestDB(t, Options{})
	require.NoError(t, db.Put([]byte("a"), []byte("engine-a")))
	require.NoError(t, db.Put([]byte("b"), []byte("engine-b")))
	require.NoError(t, db.Put([]byte("d"), []byte("engine-d")))

	txn, err := db.BeginTransaction()
	require.NoError(t, err)
	txn.Put([]byte("b"), []byte("local-b")) // shadows the engine's value
	txn.Put([]byte("c"), []byte("local-c")) // new key, absent from the engine
	txn.Remove([]byte("d"))                 // local tombstone hides the engine's value

	it, err := txn.NewIterator()
	require.NoError(t, err)
	defer it.Close()

	require.NoError(t, it.SeekToFirst())
	var keys, vals []string
	for it.Valid() {
		keys = append(keys, string(it.Key()))
		vals = append(vals, string(it.Value()))
		require.NoError(t, it.Next())
	}
	require.Equal(t, []string{"a", "b", "c"}, keys)
	require.Equal(t, []string{"engine-a", "local-b", "local-c"}, vals)

	// Writes made to the engine after the transaction began must stay
	// invisible to its iterator, same as Get's snapshot isolation.
	require.NoError(t, db.Put([]byte("e"), []byte("engine-e")))
	require.NoError(t, it.SeekToFirst())
	keys = nil
	for it.Valid() {
		keys = append(keys, string(it.Key()))
		require.NoError(t, it.Next())
	}
	require.Equal(t, []string{"a", "b", "c"}, keys)
}

func TestTransactionIteratorReverseMatchesForward(t *testing.T) {
	db := openTestDB(t, Options{})
	require.NoError(t, db.Put([]byte("a"), []byte("1")))
	require.NoError(t, db.Put([]byte("c"), []byte("3")))

	txn, err := db.BeginTransaction()
	require.NoError(t, err)
	txn.Put([]byte("b"), []byte("2"))

	it, err := txn.NewIterator()
	require.NoError(t, err)
	defer it.Close()

	require.NoError(t, it.SeekToLast())
	var keys []string
	for it.Valid() {
		keys = append(keys, string(it.Key()))
		require.NoError(t, it.Prev())
	}
	require.Equal(t, []string{"c", "b", "a"}, keys)
}

func TestTransactionRollbackDiscardsWrites(t *testing.T) {
	db := openTestDB(t, Options{})
	txn, err := db.BeginTransaction()
	require.NoError(t, err)
	txn.Put([]byte("a"), []byte("1"))
	require.NoError(t, txn.Rollback())

	_, err = db.Get([]byte("a"))
	require.True(t, base.IsNotFound(err))
}

func TestFlushAndReopenSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	opts := Options{MemtableSize: 1} // force every write to rotate/flush.
	db, err := Open(dir, opts)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		key := []byte(fmt.Sprintf("key-%02d", i))
		val := []byte(fmt.Sprintf("val-%02d", i))
		require.NoError(t, db.Put(key, val))
	}
	require.NoError(t, db.Close())

	db2, err := Open(dir, opts)
	require.NoError(t, err)
	defer db2.Close()

	for i := 0; i < 20; i++ {
		key := []byte(fmt.Sprintf("key-%02d", i))
		want := fmt.Sprintf("val-%02d", i)
		v, err := db2.Get(key)
		require.NoError(t, err, "key %s", key)
		require.Equal(t, want, string(v))
	}
}

func TestMetricsSublevelsCountsTieredRuns(t *testing.T) {
	db := openTestDB(t, Options{CompactionType: Tiered, MemtableSize: 1, RunNum: 1000})
	for i := 0; i < 10; i++ {
		key := []byte(fmt.Sprintf("key-%02d", i))
		require.NoError(t, db.Put(key, []byte("v")))
	}
	// Close drains every scheduled flush job before returning, so the
	// live table set below reflects all of them deterministically.
	require.NoError(t, db.Close())
	require.Greater(t, db.Metrics().Sublevels.Load(), int32(0))
}

func TestConcurrentWritersSeeEachOthersWrites(t *testing.T) {
	db := openTestDB(t, Options{})
	done := make(chan error, 2)
	for w := 0; w < 2; w++ {
		w := w
		go func() {
			for i := 0; i < 50; i++ {
				key := []byte(fmt.Sprintf("w%d-%03d", w, i))
				if err := db.Put(key, []byte("v")); err != nil {
					done <- err
					return
				}
			}
			done <- nil
		}()
	}
	require.NoError(t, <-done)
	require.NoError(t, <-done)

	for w := 0; w < 2; w++ {
		for i := 0; i < 50; i++ {
			key := []byte(fmt.Sprintf("w%d-%03d", w, i))
			_, err := db.Get(key)
			require.NoError(t, err)
		}
	}
}
