// Package bloom implements the fixed-size bloom filter spec.md §4.9
// describes: one filter per SSTable, consulted before opening any of
// its blocks so a Get for an absent key can usually skip the table
// entirely. Grounded on original_source's ob_bloomfilter.h, which uses
// two independent hashes combined (double hashing) to derive k probe
// positions instead of k independent hash functions.
package bloom

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// DefaultNumBits is the default bitset size: 2^16 bits (8 KiB), large
// enough to keep false-positive rates low for the block counts a
// single SSTable typically holds.
const DefaultNumBits = 1 << 16

// DefaultK is the number of probe positions per key.
const DefaultK = 4

// Filter is a thread-safe fixed-size bloom filter.
type Filter struct {
	mu      sync.RWMutex
	bits    []byte
	numBits uint64
	k       int
	count   int
}

// New returns an empty filter with numBits bits and k probes per key.
func New(numBits uint64, k int) *Filter {
	if numBits == 0 {
		numBits = DefaultNumBits
	}
	if k <= 0 {
		k = DefaultK
	}
	return &Filter{
		bits:    make([]byte, (numBits+7)/8),
		numBits: numBits,
		k:       k,
	}
}

// hashes derives the two base hashes double hashing combines into k
// probe positions: h_i = h1 + i*h2 (mod numBits). h2 is computed by
// hashing key with a fixed suffix appended, keeping both hashes
// independent without needing a seeded hash variant.
func (f *Filter) hashes(key []byte) (h1, h2 uint64) {
	h1 = xxhash.Sum64(key)
	mixed := make([]byte, len(key)+1)
	copy(mixed, key)
	mixed[len(key)] = 0xff
	h2 = xxhash.Sum64(mixed)
	if h2 == 0 {
		h2 = 1
	}
	return h1, h2
}

// Insert adds key to the filter.
func (f *Filter) Insert(key []byte) {
	h1, h2 := f.hashes(key)
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := 0; i < f.k; i++ {
		bit := (h1 + uint64(i)*h2) % f.numBits
		f.bits[bit/8] |= 1 << (bit % 8)
	}
	f.count++
}

// Contains reports whether key may be present. False positives are
// possible; false negatives are not.
func (f *Filter) Contains(key []byte) bool {
	h1, h2 := f.hashes(key)
	f.mu.RLock()
	defer f.mu.RUnlock()
	for i := 0; i < f.k; i++ {
		bit := (h1 + uint64(i)*h2) % f.numBits
		if f.bits[bit/8]&(1<<(bit%8)) == 0 {
			return false
		}
	}
	return true
}

// Clear resets the filter to empty.
func (f *Filter) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.bits {
		f.bits[i] = 0
	}
	f.count = 0
}

// ObjectCount returns the number of keys Inserted since the last Clear.
func (f *Filter) ObjectCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.count
}

// Empty reports whether no key has been inserted.
func (f *Filter) Empty() bool { return f.ObjectCount() == 0 }

// Bytes returns a copy of the underlying bitset, for persisting the
// filter alongside its SSTable.
func (f *Filter) Bytes() []byte {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]byte, len(f.bits))
	copy(out, f.bits)
	return out
}

// NumBits returns the bitset's configured size.
func (f *Filter) NumBits() uint64 { return f.numBits }

// K returns the number of probes per key.
func (f *Filter) K() int { return f.k }

// Load reconstructs a filter from previously persisted bits, count and
// k, as read back from an SSTable's bloom section.
func Load(bits []byte, numBits uint64, k int, count int) *Filter {
	f := &Filter{bits: append([]byte(nil), bits...), numBits: numBits, k: k, count: count}
	return f
}
