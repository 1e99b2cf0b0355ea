// Package arenaskl implements the concurrent skiplist a memtable is
// built on: keys are internal keys (user_key || seq) ordered so that,
// for equal user keys, the newest sequence number sorts first. Node
// key/value bytes live in an arena; node towers are ordinary Go memory
// since nothing outside the process ever needs to address them, which
// is the idiomatic-Go substitute spec.md §9 calls for in place of the
// C++ source's trailing flexible array of forward pointers.
package arenaskl

import (
	"math/rand"

	"github.com/oblsm-go/oblsm/internal/arena"
	"github.com/oblsm-go/oblsm/internal/base"
)

const (
	maxHeight   = 12
	probability = 1.0 / 4
)

type node struct {
	key   []byte // arena-owned, encoded InternalKey
	value []byte // arena-owned
	tower []atomicNodePtr
}

func newNode(key, value []byte, height int) *node {
	return &node{key: key, value: value, tower: make([]atomicNodePtr, height)}
}

// Skiplist is a concurrent ordered container over internal keys. Reads
// (Contains, iterators) never take a lock; Insert and InsertConcurrently
// publish new nodes with a CAS loop per level so any number of
// concurrent inserters is safe. No node is ever removed while the
// skiplist is reachable, matching spec.md §4.3.
type Skiplist struct {
	arena *arena.Arena
	cmp   base.Compare
	head  *node
}

// New returns an empty Skiplist backed by a. cmp orders user keys; the
// skiplist itself always compares on the full internal key (user key,
// then descending seq).
func New(a *arena.Arena, cmp base.Compare) *Skiplist {
	return &Skiplist{arena: a, cmp: cmp, head: newNode(nil, nil, maxHeight)}
}

func (s *Skiplist) less(aKey, bKey []byte) bool {
	return base.InternalCompare(s.cmp, base.DecodeInternalKey(aKey), base.DecodeInternalKey(bKey)) < 0
}

func (s *Skiplist) equal(aKey, bKey []byte) bool {
	return base.InternalCompare(s.cmp, base.DecodeInternalKey(aKey), base.DecodeInternalKey(bKey)) == 0
}

func randomHeight() int {
	h := 1
	for h < maxHeight && rand.Float64() < probability {
		h++
	}
	return h
}

// findSpliceForLevel performs a standard top-down skiplist search for
// key, descending from the top level to level, and returns the
// immediate predecessor/successor pair at level.
func (s *Skiplist) findSpliceForLevel(key []byte, level int) (prev, next *node) {
	x := s.head
	for l := maxHeight - 1; l >= level; l-- {
		for {
			nxt := x.tower[l].Load()
			if nxt != nil && s.less(nxt.key, key) {
				x = nxt
				continue
			}
			break
		}
		if l == level {
			return x, x.tower[l].Load()
		}
	}
	return x, x.tower[level].Load()
}

// findLessThan returns the last node whose key is strictly less than
// key, or nil if none. Used to implement an iterator's Prev.
func (s *Skiplist) findLessThan(key []byte) *node {
	x := s.head
	for l := maxHeight - 1; l >= 0; l-- {
		for {
			nxt := x.tower[l].Load()
			if nxt != nil && s.less(nxt.key, key) {
				x = nxt
				continue
			}
			break
		}
	}
	if x == s.head {
		return nil
	}
	return x
}

func (s *Skiplist) lastNode() *node {
	x := s.head
	for l := maxHeight - 1; l >= 0; l-- {
		for {
			nxt := x.tower[l].Load()
			if nxt == nil {
				break
			}
			x = nxt
		}
	}
	if x == s.head {
		return nil
	}
	return x
}

// insert is the shared CAS-based algorithm behind both Insert and
// InsertConcurrently: it is safe under any number of concurrent
// inserters, since every link is published with a CompareAndSwap and
// retried on contention.
func (s *Skiplist) insert(key base.InternalKey, value []byte) {
	keyBuf := s.arena.AllocCopy(key.Encode())
	valBuf := s.arena.AllocCopy(value)
	height := randomHeight()
	n := newNode(keyBuf, valBuf, height)

	for lvl := 0; lvl < height; lvl++ {
		for {
			prev, next := s.findSpliceForLevel(keyBuf, lvl)
			n.tower[lvl].Store(next)
			if prev.tower[lvl].CompareAndSwap(next, n) {
				break
			}
			// Lost the race for this level's link; re-search and retry.
		}
	}
}

// Insert adds (key, value) to the skiplist. Safe to call from a single
// writer goroutine while readers traverse concurrently; in this engine
// memtable writes are additionally serialized by the engine mutex
// (spec.md §5), so the simpler single-writer contract is all that's
// actually exercised, but the underlying algorithm tolerates more.
func (s *Skiplist) Insert(key base.InternalKey, value []byte) {
	s.insert(key, value)
}

// InsertConcurrently adds (key, value) to the skiplist and is safe to
// call from multiple inserting goroutines at once with no external
// synchronization.
func (s *Skiplist) InsertConcurrently(key base.InternalKey, value []byte) {
	s.insert(key, value)
}

// Contains reports whether key (an exact internal key, user key + seq)
// is present.
func (s *Skiplist) Contains(key base.InternalKey) bool {
	keyBuf := key.Encode()
	_, next := s.findSpliceForLevel(keyBuf, 0)
	return next != nil && s.equal(next.key, keyBuf)
}
