package oblsm

import (
	"bytes"
	"sort"

	"github.com/oblsm-go/oblsm/internal/base"
)

// Transaction buffers writes and exposes a consistent point-in-time
// read view captured when BeginTransaction returned (spec.md §4.14).
// Per the snapshot-only isolation decision in DESIGN.md, concurrent
// transactions never block or abort one another and Commit always
// succeeds: there is no write-write conflict detection.
type Transaction struct {
	db       *DB
	seq      uint64
	snapshot *Iterator
	batch    *Batch
	pending  map[string][]byte
	tomb     map[string]bool
	done     bool
}

// Put stages a key/value write, visible to this transaction's own
// subsequent Get calls immediately but to everyone else only after
// Commit.
func (t *Transaction) Put(key, value []byte) {
	t.batch.Put(key, value)
	k := string(key)
	t.pending[k] = append([]byte(nil), value...)
	delete(t.tomb, k)
}

// Remove stages a deletion, visible the same way Put's write is.
func (t *Transaction) Remove(key []byte) {
	t.batch.Remove(key)
	k := string(key)
	delete(t.pending, k)
	t.tomb[k] = true
}

// Get resolves key against the transaction's own staged writes first,
// falling back to the snapshot captured at BeginTransaction.
func (t *Transaction) Get(key []byte) ([]byte, error) {
	k := string(key)
	if t.tomb[k] {
		return nil, base.ErrNotFound
	}
	if v, ok := t.pending[k]; ok {
		return v, nil
	}
	if err := t.snapshot.Seek(key); err != nil {
		return nil, err
	}
	if !t.snapshot.Valid() || !bytes.Equal(t.snapshot.Key(), key) {
		return nil, base.ErrNotFound
	}
	return append([]byte(nil), t.snapshot.Value()...), nil
}

// NewIterator returns an iterator over the transaction's local writes
// merged with a user iterator over the engine bound to ts_, the seq
// captured at BeginTransaction (spec.md §4.14). On keys present in
// both, the local map's value wins; a local tombstone hides the
// engine's value for that key entirely.
func (t *Transaction) NewIterator() (*TxnIterator, error) {
	snap, err := t.db.newIteratorAtSeq(t.seq)
	if err != nil {
		return nil, err
	}
	entries := make([]txnLocalEntry, 0, len(t.pending)+len(t.tomb))
	for k, v := range t.pending {
		entries = append(entries, txnLocalEntry{key: []byte(k), value: v})
	}
	for k := range t.tomb {
		entries = append(entries, txnLocalEntry{key: []byte(k), deleted: true})
	}
	sort.Slice(entries, func(i, j int) bool { return bytes.Compare(entries[i].key, entries[j].key) < 0 })
	return &TxnIterator{cmp: bytes.Compare, entries: entries, base: snap}, nil
}

// Commit applies every staged write as one atomic batch and releases
// the transaction's read snapshot. It is safe to call at most once;
// later calls are no-ops.
func (t *Transaction) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	defer t.snapshot.Close()
	if t.batch.Len() == 0 {
		return nil
	}
	return t.db.Apply(t.batch)
}

// Rollback discards every staged write and releases the transaction's
// read snapshot without applying anything.
func (t *Transaction) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	return t.snapshot.Close()
}
