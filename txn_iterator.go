package oblsm

// txnLocalEntry is one staged write in a transaction's local map, used
// as a merge source alongside the engine snapshot iterator.
type txnLocalEntry struct {
	key     []byte
	value   []byte
	deleted bool
}

// TxnIterator merges a transaction's staged writes with a user
// iterator over the engine snapshot captured at BeginTransaction
// (spec.md §4.14). On equal user keys the local entry wins; a local
// tombstone hides the engine's value for that key. It implements the
// same cursor shape as Iterator (Valid/Key/Value/Seek/Next/Prev/...)
// so callers can treat both the same way.
type TxnIterator struct {
	cmp     func(a, b []byte) int
	entries []txnLocalEntry // sorted ascending by key
	li      int             // next unconsumed local candidate index
	base    *Iterator

	keyBuf, valBuf []byte
	key, val       []byte
	valid          bool
}

// Valid reports whether the iterator is positioned on an entry.
func (it *TxnIterator) Valid() bool { return it.valid }

// Key returns the current entry's user key.
func (it *TxnIterator) Key() []byte { return it.key }

// Value returns the current entry's value.
func (it *TxnIterator) Value() []byte { return it.val }

// SeekToFirst positions the iterator at the smallest visible key.
func (it *TxnIterator) SeekToFirst() error {
	it.li = 0
	if err := it.base.SeekToFirst(); err != nil {
		return err
	}
	return it.advance(+1)
}

// SeekToLast positions the iterator at the largest visible key.
func (it *TxnIterator) SeekToLast() error {
	it.li = len(it.entries) - 1
	if err := it.base.SeekToLast(); err != nil {
		return err
	}
	return it.advance(-1)
}

// Seek positions the iterator at the first visible key >= target.
func (it *TxnIterator) Seek(target []byte) error {
	lo, hi := 0, len(it.entries)
	for lo < hi {
		mid := (lo + hi) / 2
		if it.cmp(it.entries[mid].key, target) >= 0 {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	it.li = lo
	if err := it.base.Seek(target); err != nil {
		return err
	}
	return it.advance(+1)
}

// Next advances to the next visible key.
func (it *TxnIterator) Next() error { return it.advance(+1) }

// Prev moves to the previous visible key.
func (it *TxnIterator) Prev() error { return it.advance(-1) }

// Close releases the underlying engine snapshot this iterator reads
// through. A TxnIterator must not be used after Close.
func (it *TxnIterator) Close() error { return it.base.Close() }

// advance consumes the next merge candidate in dir (+1 forward, -1
// backward) from the local entries and the base iterator, preferring
// the local entry on a tie and skipping local tombstones and any base
// entry a tombstone shadows.
func (it *TxnIterator) advance(dir int) error {
	for {
		localOK := it.li >= 0 && it.li < len(it.entries)
		baseOK := it.base.Valid()

		switch {
		case !localOK && !baseOK:
			it.valid = false
			return nil

		case !localOK:
			it.setFromBase()
			return it.stepBase(dir)

		case !baseOK:
			e := it.entries[it.li]
			it.li += dir
			if e.deleted {
				continue
			}
			it.setLocal(e)
			return nil

		default:
			c := it.cmp(it.entries[it.li].key, it.base.Key()) * dir
			switch {
			case c < 0:
				e := it.entries[it.li]
				it.li += dir
				if e.deleted {
					continue
				}
				it.setLocal(e)
				return nil
			case c > 0:
				it.setFromBase()
				return it.stepBase(dir)
			default:
				e := it.entries[it.li]
				it.li += dir
				if err := it.stepBase(dir); err != nil {
					return err
				}
				if e.deleted {
					continue
				}
				it.setLocal(e)
				return nil
			}
		}
	}
}

func (it *TxnIterator) stepBase(dir int) error {
	if dir > 0 {
		return it.base.Next()
	}
	return it.base.Prev()
}

func (it *TxnIterator) setFromBase() {
	it.keyBuf = append(it.keyBuf[:0], it.base.Key()...)
	it.valBuf = append(it.valBuf[:0], it.base.Value()...)
	it.key, it.val = it.keyBuf, it.valBuf
	it.valid = true
}

func (it *TxnIterator) setLocal(e txnLocalEntry) {
	it.keyBuf = append(it.keyBuf[:0], e.key...)
	it.valBuf = append(it.valBuf[:0], e.value...)
	it.key, it.val = it.keyBuf, it.valBuf
	it.valid = true
}
