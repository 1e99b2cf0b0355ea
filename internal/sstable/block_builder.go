package sstable

import (
	"encoding/binary"

	"github.com/oblsm-go/oblsm/internal/base"
)

// BlockBuilder packs sorted internal-key/value entries into one block
// body (the uncompressed layout DecodeBlock parses), signalling Full
// once adding another entry would push the block past targetBlockSize.
type BlockBuilder struct {
	buf     []byte
	offsets []uint32
	lastKey base.InternalKey
}

// NewBlockBuilder returns an empty BlockBuilder.
func NewBlockBuilder() *BlockBuilder {
	return &BlockBuilder{}
}

// Empty reports whether any entry has been added since the last Reset.
func (b *BlockBuilder) Empty() bool { return len(b.offsets) == 0 }

// LastKey returns the most recently added key.
func (b *BlockBuilder) LastKey() base.InternalKey { return b.lastKey }

// EstimatedSize returns the size Finish would currently produce.
func (b *BlockBuilder) EstimatedSize() int {
	return len(b.buf) + 4 + 4*len(b.offsets) + 4
}

// Add appends one internal-key/value entry. It returns base.ErrFull
// when the block already holds at least one entry and this one would
// push EstimatedSize past targetBlockSize — the caller should Finish
// the current block, Reset, and retry the same Add on a fresh block.
// A single entry that alone exceeds targetBlockSize is not supported
// (spec.md §4.6/§7): Add returns base.ErrUnimplemented rather than
// producing an oversized block.
func (b *BlockBuilder) Add(key base.InternalKey, value []byte) error {
	encodedKey := key.Encode()
	entrySize := 4 + len(encodedKey) + 4 + len(value)

	if b.EstimatedSize()+entrySize > targetBlockSize {
		if b.Empty() {
			return base.ErrUnimplemented
		}
		return base.ErrFull
	}

	offset := uint32(len(b.buf))
	entry := make([]byte, entrySize)
	binary.LittleEndian.PutUint32(entry[0:4], uint32(len(encodedKey)))
	n := 4 + copy(entry[4:], encodedKey)
	binary.LittleEndian.PutUint32(entry[n:n+4], uint32(len(value)))
	copy(entry[n+4:], value)

	b.buf = append(b.buf, entry...)
	b.offsets = append(b.offsets, offset)
	b.lastKey = key
	return nil
}

// Finish returns the uncompressed block body: entries, entry_count,
// the offset table, and the trailing data_size (spec.md §3).
func (b *BlockBuilder) Finish() []byte {
	n := len(b.offsets)
	out := make([]byte, len(b.buf)+4+4*n+4)
	copy(out, b.buf)

	off := len(b.buf)
	binary.LittleEndian.PutUint32(out[off:off+4], uint32(n))
	off += 4
	for _, o := range b.offsets {
		binary.LittleEndian.PutUint32(out[off:off+4], o)
		off += 4
	}
	binary.LittleEndian.PutUint32(out[off:off+4], uint32(len(b.buf)))
	return out
}

// Reset clears the builder for reuse on the next block.
func (b *BlockBuilder) Reset() {
	b.buf = b.buf[:0]
	b.offsets = b.offsets[:0]
	b.lastKey = base.InternalKey{}
}
