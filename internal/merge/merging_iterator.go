package merge

import "github.com/oblsm-go/oblsm/internal/base"

// MergingIterator merges several InternalIterator sources into one
// ascending internal-key sequence (spec.md §4.10). Sources are not
// deduplicated by user key here — that is the User iterator's job;
// this type only ever advances whichever single child currently holds
// the winning key, so every version every child holds is visited.
type MergingIterator struct {
	cmp      base.Compare
	children []InternalIterator

	valid  bool
	curKey base.InternalKey
	curVal []byte
}

// NewMergingIterator merges children in the order given. Ties on an
// identical internal key (same user key and seq across two sources,
// which should not occur in a well-formed database) favor the
// lowest-indexed child, so callers should list the most authoritative
// source — typically the active memtable — first.
func NewMergingIterator(cmp base.Compare, children ...InternalIterator) *MergingIterator {
	return &MergingIterator{cmp: cmp, children: children}
}

func (m *MergingIterator) settle(pickMax bool) error {
	best := -1
	for i, c := range m.children {
		if !c.Valid() {
			continue
		}
		if best == -1 {
			best = i
			continue
		}
		cmp := base.InternalCompare(m.cmp, c.Key(), m.children[best].Key())
		if (pickMax && cmp > 0) || (!pickMax && cmp < 0) {
			best = i
		}
	}
	if best == -1 {
		m.valid = false
		return nil
	}
	m.valid = true
	m.curKey = m.children[best].Key()
	m.curVal = m.children[best].Value()
	return nil
}

// Valid reports whether the iterator is positioned on an entry.
func (m *MergingIterator) Valid() bool { return m.valid }

// Key returns the current entry's internal key.
func (m *MergingIterator) Key() base.InternalKey { return m.curKey }

// Value returns the current entry's value.
func (m *MergingIterator) Value() []byte { return m.curVal }

// SeekToFirst positions every child at its first entry and settles on
// the smallest resulting key.
func (m *MergingIterator) SeekToFirst() error {
	for _, c := range m.children {
		if err := c.SeekToFirst(); err != nil {
			return err
		}
	}
	return m.settle(false)
}

// SeekToLast positions every child at its last entry and settles on
// the largest resulting key.
func (m *MergingIterator) SeekToLast() error {
	for _, c := range m.children {
		if err := c.SeekToLast(); err != nil {
			return err
		}
	}
	return m.settle(true)
}

// Seek positions every child at its first entry >= target and settles
// on the smallest resulting key.
func (m *MergingIterator) Seek(target base.InternalKey) error {
	for _, c := range m.children {
		if err := c.Seek(target); err != nil {
			return err
		}
	}
	return m.settle(false)
}

// Next repositions every child to the first entry strictly greater
// than the current key, then settles on the smallest resulting key.
func (m *MergingIterator) Next() error {
	if !m.valid {
		return nil
	}
	cur := m.curKey
	for _, c := range m.children {
		if err := c.Seek(cur); err != nil {
			return err
		}
		if c.Valid() && base.InternalCompare(m.cmp, c.Key(), cur) == 0 {
			if err := c.Next(); err != nil {
				return err
			}
		}
	}
	return m.settle(false)
}

// Prev repositions every child to the last entry strictly less than
// the current key, then settles on the largest resulting key.
func (m *MergingIterator) Prev() error {
	if !m.valid {
		return nil
	}
	cur := m.curKey
	for _, c := range m.children {
		if err := c.Seek(cur); err != nil {
			return err
		}
		if c.Valid() {
			if err := c.Prev(); err != nil {
				return err
			}
		} else {
			if err := c.SeekToLast(); err != nil {
				return err
			}
		}
	}
	return m.settle(true)
}
