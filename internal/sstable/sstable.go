package sstable

import (
	"encoding/binary"
	"encoding/json"
	"io"
	"sort"

	"github.com/oblsm-go/oblsm/internal/base"
	"github.com/oblsm-go/oblsm/internal/bloom"
	"github.com/oblsm-go/oblsm/internal/cache"
	"github.com/oblsm-go/oblsm/vfs"
)

// footerSize is the fixed trailer every SSTable file ends with:
// bloom_section_offset(8) || meta_section_offset(8).
const footerSize = 16

// BlockMeta indexes one block within an SSTable: its key range and its
// location in the file, so a table iterator can seek to the right
// block without scanning every one.
type BlockMeta struct {
	FirstKey base.InternalKey
	LastKey  base.InternalKey
	Offset   uint64
	Size     uint32
}

type blockMetaWire struct {
	FirstKey []byte `json:"first_key"`
	FirstSeq uint64 `json:"first_seq"`
	LastKey  []byte `json:"last_key"`
	LastSeq  uint64 `json:"last_seq"`
	Offset   uint64 `json:"offset"`
	Size     uint32 `json:"size"`
}

func (m BlockMeta) toWire() blockMetaWire {
	return blockMetaWire{
		FirstKey: m.FirstKey.UserKey,
		FirstSeq: m.FirstKey.Seq,
		LastKey:  m.LastKey.UserKey,
		LastSeq:  m.LastKey.Seq,
		Offset:   m.Offset,
		Size:     m.Size,
	}
}

func (w blockMetaWire) toMeta() BlockMeta {
	return BlockMeta{
		FirstKey: base.MakeInternalKey(w.FirstKey, w.FirstSeq),
		LastKey:  base.MakeInternalKey(w.LastKey, w.LastSeq),
		Offset:   w.Offset,
		Size:     w.Size,
	}
}

// Reader opens a previously-built SSTable file for reads.
type Reader struct {
	fs       vfs.FS
	f        vfs.File
	filename string
	id       uint64
	size     int64
	cmp      base.Compare
	metas    []BlockMeta
	filter   *bloom.Filter
	blockC   *cache.Cache
}

// Open reads an SSTable's footer, bloom filter and block index.
func Open(fs vfs.FS, filename string, id uint64, cmp base.Compare, blockCache *cache.Cache) (*Reader, error) {
	f, err := fs.Open(filename)
	if err != nil {
		return nil, base.NewError(base.CodeIOOpen, err, "opening sstable %s", filename)
	}
	info, err := f.Stat()
	if err != nil {
		return nil, base.NewError(base.CodeIOOpen, err, "stat sstable %s", filename)
	}
	size := info.Size()

	footer := make([]byte, footerSize)
	if _, err := f.ReadAt(footer, size-footerSize); err != nil {
		return nil, base.NewError(base.CodeIORead, err, "reading sstable footer %s", filename)
	}
	bloomOffset := int64(binary.LittleEndian.Uint64(footer[0:8]))
	metaOffset := int64(binary.LittleEndian.Uint64(footer[8:16]))

	bloomLenBuf := make([]byte, 4)
	if _, err := f.ReadAt(bloomLenBuf, bloomOffset); err != nil {
		return nil, base.NewError(base.CodeIORead, err, "reading bloom length %s", filename)
	}
	bloomLen := binary.LittleEndian.Uint32(bloomLenBuf)
	bloomBytes := make([]byte, bloomLen)
	if bloomLen > 0 {
		if _, err := f.ReadAt(bloomBytes, bloomOffset+4); err != nil {
			return nil, base.NewError(base.CodeIORead, err, "reading bloom bits %s", filename)
		}
	}
	filter := bloom.Load(bloomBytes, uint64(bloomLen)*8, bloom.DefaultK, 0)

	metaCountBuf := make([]byte, 4)
	if _, err := f.ReadAt(metaCountBuf, metaOffset); err != nil {
		return nil, base.NewError(base.CodeIORead, err, "reading meta count %s", filename)
	}
	metaCount := binary.LittleEndian.Uint32(metaCountBuf)

	metas := make([]BlockMeta, 0, metaCount)
	pos := metaOffset + 4
	for i := uint32(0); i < metaCount; i++ {
		lenBuf := make([]byte, 4)
		if _, err := f.ReadAt(lenBuf, pos); err != nil {
			return nil, base.NewError(base.CodeIORead, err, "reading meta entry length %s", filename)
		}
		entryLen := binary.LittleEndian.Uint32(lenBuf)
		pos += 4
		entryBuf := make([]byte, entryLen)
		if _, err := f.ReadAt(entryBuf, pos); err != nil {
			return nil, base.NewError(base.CodeIORead, err, "reading meta entry %s", filename)
		}
		pos += int64(entryLen)

		var wire blockMetaWire
		if err := json.Unmarshal(entryBuf, &wire); err != nil {
			return nil, base.NewError(base.CodeJSONParse, err, "decoding block meta %s", filename)
		}
		metas = append(metas, wire.toMeta())
	}

	return &Reader{
		fs:       fs,
		f:        f,
		filename: filename,
		id:       id,
		size:     size,
		cmp:      cmp,
		metas:    metas,
		filter:   filter,
		blockC:   blockCache,
	}, nil
}

// SSTID returns the table's identifier, used as the cache key's file
// component and in manifest records.
func (r *Reader) SSTID() uint64 { return r.id }

// Size returns the file size in bytes.
func (r *Reader) Size() int64 { return r.size }

// BlockCount returns the number of blocks in the table.
func (r *Reader) BlockCount() int { return len(r.metas) }

// BlockMetaAt returns the metadata for block i.
func (r *Reader) BlockMetaAt(i int) BlockMeta { return r.metas[i] }

// FirstKey returns the smallest internal key in the table.
func (r *Reader) FirstKey() base.InternalKey { return r.metas[0].FirstKey }

// LastKey returns the largest internal key in the table.
func (r *Reader) LastKey() base.InternalKey { return r.metas[len(r.metas)-1].LastKey }

// MayContain consults the table's bloom filter. A false return means
// key is definitely absent and the caller can skip this table.
func (r *Reader) MayContain(userKey []byte) bool {
	if r.filter == nil || r.filter.NumBits() == 0 {
		return true
	}
	return r.filter.Contains(userKey)
}

// rawBlockAt reads and decompresses block i directly, without
// consulting the block cache.
func (r *Reader) rawBlockAt(i int) (*Block, error) {
	meta := r.metas[i]
	onDisk := make([]byte, meta.Size)
	if _, err := r.f.ReadAt(onDisk, int64(meta.Offset)); err != nil {
		return nil, base.NewError(base.CodeIORead, err, "reading block %d of %s", i, r.filename)
	}
	if len(onDisk) < 9 {
		return nil, base.NewError(base.CodeChecksumMismatch, nil, "block %d of %s too short for trailer", i, r.filename)
	}
	trailerStart := len(onDisk) - 9
	compressed := onDisk[:trailerStart]
	kind := CompressionKind(onDisk[trailerStart])
	checksum := binary.LittleEndian.Uint64(onDisk[trailerStart+1:])
	if checksumOf(compressed) != checksum {
		return nil, base.NewError(base.CodeChecksumMismatch, nil, "checksum mismatch in block %d of %s", i, r.filename)
	}
	body, err := decompress(kind, compressed)
	if err != nil {
		return nil, base.NewError(base.CodeIORead, err, "decompressing block %d of %s", i, r.filename)
	}
	return DecodeBlock(body)
}

// ReadBlock decodes block i, bypassing the shared cache.
func (r *Reader) ReadBlock(i int) (*Block, error) { return r.rawBlockAt(i) }

// ReadBlockWithCache decodes block i, consulting/populating the shared
// block cache keyed by (table id, block offset) so repeat reads of a
// hot block skip the disk entirely.
func (r *Reader) ReadBlockWithCache(i int) (*Block, error) {
	if r.blockC == nil {
		return r.rawBlockAt(i)
	}
	meta := r.metas[i]
	key := cache.Key{FileNum: r.id, Offset: meta.Offset}
	v, err := r.blockC.GetOrLoad(key, func() (interface{}, int64, error) {
		b, err := r.rawBlockAt(i)
		if err != nil {
			return nil, 0, err
		}
		return b, int64(meta.Size), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Block), nil
}

// blockIndexFor returns the index of the first block whose last key is
// >= target, or len(metas) if target is past every block.
func (r *Reader) blockIndexFor(target base.InternalKey) int {
	return sort.Search(len(r.metas), func(i int) bool {
		return base.InternalCompare(r.cmp, r.metas[i].LastKey, target) >= 0
	})
}

// Remove closes and deletes the table's backing file, used once a
// compaction has produced replacement tables.
func (r *Reader) Remove() error {
	if err := r.f.Close(); err != nil {
		return base.NewError(base.CodeIOWrite, err, "closing sstable %s", r.filename)
	}
	if err := r.fs.Remove(r.filename); err != nil {
		return base.NewError(base.CodeIOWrite, err, "removing sstable %s", r.filename)
	}
	return nil
}

// Close closes the backing file without removing it.
func (r *Reader) Close() error { return r.f.Close() }

// TableIterator walks an SSTable's entries in ascending internal-key
// order, loading blocks lazily as it crosses block boundaries.
type TableIterator struct {
	r        *Reader
	blockIdx int
	blockIt  *Iterator
}

// NewIterator returns an unpositioned TableIterator.
func (r *Reader) NewIterator() *TableIterator {
	return &TableIterator{r: r, blockIdx: -1}
}

func (it *TableIterator) loadBlock(idx int) error {
	b, err := it.r.ReadBlockWithCache(idx)
	if err != nil {
		return err
	}
	it.blockIdx = idx
	it.blockIt = b.NewIterator(it.r.cmp)
	return nil
}

// SeekToFirst positions the iterator at the table's first entry.
func (it *TableIterator) SeekToFirst() error {
	if len(it.r.metas) == 0 {
		it.blockIt = nil
		return nil
	}
	if err := it.loadBlock(0); err != nil {
		return err
	}
	it.blockIt.SeekToFirst()
	return nil
}

// SeekToLast positions the iterator at the table's last entry.
func (it *TableIterator) SeekToLast() error {
	if len(it.r.metas) == 0 {
		it.blockIt = nil
		return nil
	}
	if err := it.loadBlock(len(it.r.metas) - 1); err != nil {
		return err
	}
	it.blockIt.SeekToLast()
	return nil
}

// Seek positions the iterator at the first entry >= target.
func (it *TableIterator) Seek(target base.InternalKey) error {
	idx := it.r.blockIndexFor(target)
	if idx >= len(it.r.metas) {
		it.blockIt = nil
		return nil
	}
	if err := it.loadBlock(idx); err != nil {
		return err
	}
	it.blockIt.Seek(target)
	if !it.blockIt.Valid() {
		// target falls between this block's last key and the next
		// block's first key; advance.
		return it.Next()
	}
	return nil
}

// Valid reports whether the iterator is positioned on an entry.
func (it *TableIterator) Valid() bool { return it.blockIt != nil && it.blockIt.Valid() }

// Key returns the current entry's internal key.
func (it *TableIterator) Key() base.InternalKey { return it.blockIt.Key() }

// Value returns the current entry's value.
func (it *TableIterator) Value() []byte { return it.blockIt.Value() }

// Next advances to the next entry, crossing block boundaries as
// needed.
func (it *TableIterator) Next() error {
	if it.blockIt != nil {
		it.blockIt.Next()
		if it.blockIt.Valid() {
			return nil
		}
	}
	if it.blockIdx+1 >= len(it.r.metas) {
		it.blockIt = nil
		return nil
	}
	if err := it.loadBlock(it.blockIdx + 1); err != nil {
		return err
	}
	it.blockIt.SeekToFirst()
	return nil
}

// Prev moves to the previous entry, crossing block boundaries as
// needed.
func (it *TableIterator) Prev() error {
	if it.blockIt == nil {
		return it.SeekToLast()
	}
	it.blockIt.Prev()
	if it.blockIt.Valid() {
		return nil
	}
	if it.blockIdx-1 < 0 {
		it.blockIt = nil
		return nil
	}
	if err := it.loadBlock(it.blockIdx - 1); err != nil {
		return err
	}
	it.blockIt.SeekToLast()
	return nil
}

var _ io.Closer = (*Reader)(nil)
