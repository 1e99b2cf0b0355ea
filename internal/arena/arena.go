// Package arena implements a simple bump allocator: one arena is owned
// by exactly one memtable for its entire lifetime, and memory is freed
// only when the whole arena (and therefore the memtable) is discarded.
package arena

import (
	"sync"
	"sync/atomic"
)

const defaultBlockSize = 4 << 20 // 4 MiB growth chunks, like the teacher's.

// Arena is a bump allocator owning a list of growable byte blocks.
// Alloc returns a stable slice valid for the arena's lifetime. Arena is
// safe for concurrent Alloc calls from multiple goroutines; callers that
// need a single-writer fast path can still rely on that safety, they
// just won't contend on anything but the current block's bump pointer.
type Arena struct {
	mu     sync.Mutex
	blocks [][]byte
	cur    []byte // tail of blocks[len(blocks)-1], not yet handed out
	size   atomic.Int64
}

// New returns an empty Arena.
func New() *Arena {
	return &Arena{}
}

// Alloc returns n freshly zeroed bytes, stable for the arena's lifetime.
func (a *Arena) Alloc(n int) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.cur) < n {
		blockSize := defaultBlockSize
		if n > blockSize {
			blockSize = n
		}
		block := make([]byte, blockSize)
		a.blocks = append(a.blocks, block)
		a.cur = block
	}
	out := a.cur[:n:n]
	a.cur = a.cur[n:]
	a.size.Add(int64(n))
	return out
}

// AllocCopy allocates len(src) bytes and copies src into them, returning
// the arena-owned copy.
func (a *Arena) AllocCopy(src []byte) []byte {
	dst := a.Alloc(len(src))
	copy(dst, src)
	return dst
}

// Size reports the number of bytes handed out by Alloc so far. This is
// what memtable rotation decisions (spec.md §4.13 step 5) are based on.
func (a *Arena) Size() int64 {
	return a.size.Load()
}
