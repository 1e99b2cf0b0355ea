// Package sstable implements spec.md §4.6–§4.7: 4 KiB on-disk blocks of
// sorted internal-key/value entries, and the SSTable files built from
// them — plus the compression/checksum trailer and bloom filter
// SPEC_FULL.md §3/§4.16 add on top.
package sstable

import (
	"encoding/binary"

	"github.com/oblsm-go/oblsm/internal/base"
)

// targetBlockSize is the uncompressed size a block builder aims for
// before rolling over to a new block (spec.md §3).
const targetBlockSize = 4096

// Block is a decoded, in-memory view of one on-disk block: the raw
// entries region plus the parsed offset table.
type Block struct {
	data    []byte   // entries region only, indexed by the offsets below
	offsets []uint32 // byte offset of each entry within data, ascending
}

// DecodeBlock parses the uncompressed body of a block (entries,
// entry_count, offset table, data_size — the layout in spec.md §3,
// before any compression/checksum trailer is applied).
func DecodeBlock(raw []byte) (*Block, error) {
	if len(raw) < 8 {
		return nil, base.NewError(base.CodeIORead, nil, "block too short: %d bytes", len(raw))
	}
	dataSize := binary.LittleEndian.Uint32(raw[len(raw)-4:])
	if int(dataSize)+4 > len(raw) {
		return nil, base.NewError(base.CodeIORead, nil, "corrupt block: data_size %d exceeds block length %d", dataSize, len(raw))
	}
	entryCount := binary.LittleEndian.Uint32(raw[dataSize : dataSize+4])
	offsetsStart := dataSize + 4
	needed := int(offsetsStart) + int(entryCount)*4 + 4
	if needed > len(raw) {
		return nil, base.NewError(base.CodeIORead, nil, "corrupt block: offset table overruns block")
	}
	offsets := make([]uint32, entryCount)
	for i := uint32(0); i < entryCount; i++ {
		offsets[i] = binary.LittleEndian.Uint32(raw[offsetsStart+i*4 : offsetsStart+i*4+4])
	}
	return &Block{data: raw[:dataSize], offsets: offsets}, nil
}

// entryAt decodes the len(key)(4) || key || len(value)(4) || value
// entry starting at byte offset off within the block's data region. The
// "key" here is always a full encoded internal key.
func (b *Block) entryAt(off uint32) (key base.InternalKey, value []byte) {
	keyLen := binary.LittleEndian.Uint32(b.data[off : off+4])
	keyStart := off + 4
	keyBuf := b.data[keyStart : keyStart+keyLen]
	valLenOff := keyStart + keyLen
	valLen := binary.LittleEndian.Uint32(b.data[valLenOff : valLenOff+4])
	valStart := valLenOff + 4
	value = b.data[valStart : valStart+valLen]
	key = base.DecodeInternalKey(keyBuf)
	return key, value
}

// Iterator walks a Block in stored (ascending internal-key) order.
type Iterator struct {
	block *Block
	cmp   base.Compare
	idx   int
}

// NewIterator returns an unpositioned Iterator over b.
func (b *Block) NewIterator(cmp base.Compare) *Iterator {
	return &Iterator{block: b, cmp: cmp, idx: -1}
}

// Valid reports whether the iterator is positioned on an entry.
func (it *Iterator) Valid() bool { return it.idx >= 0 && it.idx < len(it.block.offsets) }

// Key returns the internal key at the current position.
func (it *Iterator) Key() base.InternalKey {
	k, _ := it.block.entryAt(it.block.offsets[it.idx])
	return k
}

// Value returns the value at the current position.
func (it *Iterator) Value() []byte {
	_, v := it.block.entryAt(it.block.offsets[it.idx])
	return v
}

// SeekToFirst positions the iterator at the block's first entry.
func (it *Iterator) SeekToFirst() {
	if len(it.block.offsets) == 0 {
		it.idx = -1
		return
	}
	it.idx = 0
}

// SeekToLast positions the iterator at the block's last entry.
func (it *Iterator) SeekToLast() {
	it.idx = len(it.block.offsets) - 1
}

// Next advances to the next entry.
func (it *Iterator) Next() {
	it.idx++
	if it.idx >= len(it.block.offsets) {
		it.idx = len(it.block.offsets)
	}
}

// Prev moves to the previous entry.
func (it *Iterator) Prev() {
	if it.idx > -1 {
		it.idx--
	}
}

// Seek performs the linear scan over offsets spec.md §4.6 specifies,
// landing on the first entry whose internal key is >= target.
func (it *Iterator) Seek(target base.InternalKey) {
	for i := 0; i < len(it.block.offsets); i++ {
		k, _ := it.block.entryAt(it.block.offsets[i])
		if base.InternalCompare(it.cmp, k, target) >= 0 {
			it.idx = i
			return
		}
	}
	it.idx = len(it.block.offsets)
}
