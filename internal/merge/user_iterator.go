package merge

import (
	"bytes"

	"github.com/oblsm-go/oblsm/internal/base"
)

// UserIterator consumes a MergingIterator and resolves MVCC visibility
// (spec.md §4.11): for each distinct user key it surfaces at most one
// entry — the newest version with seq <= the snapshot it was opened
// with — and skips both older shadowed versions and tombstones
// entirely, never exposing an internal key or a deletion marker to the
// caller.
//
// A single UserIterator supports a forward traversal (SeekToFirst,
// Seek, Next) or a backward one (SeekToLast, Prev), each maintaining
// its own positioning invariant; switching direction mid-traversal is
// not supported and requires a fresh Seek/SeekToFirst/SeekToLast call.
type UserIterator struct {
	merge       *MergingIterator
	cmp         base.Compare
	snapshotSeq uint64

	valid  bool
	curKey []byte
	curVal []byte
}

// NewUserIterator wraps merge, resolving visibility against
// snapshotSeq (typically the seq captured when the reader's
// transaction or snapshot began).
func NewUserIterator(merge *MergingIterator, cmp base.Compare, snapshotSeq uint64) *UserIterator {
	return &UserIterator{merge: merge, cmp: cmp, snapshotSeq: snapshotSeq}
}

// Valid reports whether the iterator is positioned on a visible entry.
func (u *UserIterator) Valid() bool { return u.valid }

// Key returns the current user key.
func (u *UserIterator) Key() []byte { return u.curKey }

// Value returns the current user key's value.
func (u *UserIterator) Value() []byte { return u.curVal }

// SeekToFirst positions the iterator at the smallest visible user key.
func (u *UserIterator) SeekToFirst() error {
	if err := u.merge.SeekToFirst(); err != nil {
		return err
	}
	return u.settleForward()
}

// Seek positions the iterator at the first visible user key >= target.
func (u *UserIterator) Seek(target []byte) error {
	lk := base.LookupKey{UserKey: target, SnapshotSeq: u.snapshotSeq}
	if err := u.merge.Seek(lk.InternalKey()); err != nil {
		return err
	}
	return u.settleForward()
}

// Next advances to the next visible user key.
func (u *UserIterator) Next() error {
	if !u.valid {
		return nil
	}
	return u.settleForward()
}

// SeekToLast positions the iterator at the largest visible user key.
func (u *UserIterator) SeekToLast() error {
	if err := u.merge.SeekToLast(); err != nil {
		return err
	}
	return u.settleBackward()
}

// Prev moves to the previous visible user key.
func (u *UserIterator) Prev() error {
	if !u.valid {
		return nil
	}
	return u.settleBackward()
}

// settleForward scans forward from the merging iterator's current
// position, resolving each user-key group to its visible version (the
// first entry encountered with seq <= snapshotSeq, since ascending
// order visits a group newest-seq-first) and skipping the group's
// remaining older versions before checking whether the version found
// was a tombstone. On return, the merging iterator is positioned at
// the first entry of the next, as yet unresolved, group.
func (u *UserIterator) settleForward() error {
	for u.merge.Valid() {
		k := u.merge.Key()
		if k.Seq > u.snapshotSeq {
			if err := u.merge.Next(); err != nil {
				return err
			}
			continue
		}

		userKey := append([]byte(nil), k.UserKey...)
		val := append([]byte(nil), u.merge.Value()...)
		for {
			if err := u.merge.Next(); err != nil {
				return err
			}
			if !u.merge.Valid() || !bytes.Equal(u.merge.Key().UserKey, userKey) {
				break
			}
		}

		if len(val) == 0 {
			continue // tombstone: this key is deleted, move to the next group.
		}
		u.valid = true
		u.curKey = userKey
		u.curVal = val
		return nil
	}
	u.valid = false
	return nil
}

// settleBackward is settleForward's mirror image: within a group,
// seq increases as Prev walks backward, so the visible version is the
// largest seq <= snapshotSeq seen before the group is exhausted. On
// return, the merging iterator is positioned just before the group
// that produced the visible entry.
func (u *UserIterator) settleBackward() error {
	for u.merge.Valid() {
		groupKey := append([]byte(nil), u.merge.Key().UserKey...)
		haveCandidate := false
		var candidateSeq uint64
		var candidateVal []byte

		for u.merge.Valid() && bytes.Equal(u.merge.Key().UserKey, groupKey) {
			k := u.merge.Key()
			if k.Seq <= u.snapshotSeq && (!haveCandidate || k.Seq > candidateSeq) {
				haveCandidate = true
				candidateSeq = k.Seq
				candidateVal = append([]byte(nil), u.merge.Value()...)
			}
			if err := u.merge.Prev(); err != nil {
				return err
			}
		}

		if haveCandidate {
			if len(candidateVal) == 0 {
				continue // tombstone: move to the previous group.
			}
			u.valid = true
			u.curKey = groupKey
			u.curVal = candidateVal
			return nil
		}
	}
	u.valid = false
	return nil
}
