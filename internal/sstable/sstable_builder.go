package sstable

import (
	"encoding/binary"
	"encoding/json"

	"github.com/oblsm-go/oblsm/internal/base"
	"github.com/oblsm-go/oblsm/internal/bloom"
	"github.com/oblsm-go/oblsm/vfs"
)

// EntryIterator is the minimal shape Builder drains entries from: any
// sorted source of internal-key/value pairs (a memtable iterator, a
// merging iterator over several sources during compaction, ...).
type EntryIterator interface {
	Valid() bool
	Key() base.InternalKey
	Value() []byte
	Next() error
}

// Builder streams a sorted EntryIterator into a new SSTable file: one
// block at a time via BlockBuilder, recording a BlockMeta per block,
// and a bloom filter over every user key seen.
type Builder struct {
	f            vfs.File
	filename     string
	compression  CompressionKind
	blockBuilder *BlockBuilder
	metas        []BlockMeta
	filter       *bloom.Filter
	offset       int64
	pendingFirst base.InternalKey
	havePending  bool
}

// NewBuilder creates filename and returns a Builder that writes to it.
func NewBuilder(fs vfs.FS, filename string, compression CompressionKind) (*Builder, error) {
	f, err := fs.Create(filename)
	if err != nil {
		return nil, base.NewError(base.CodeIOOpen, err, "creating sstable %s", filename)
	}
	return &Builder{
		f:            f,
		filename:     filename,
		compression:  compression,
		blockBuilder: NewBlockBuilder(),
		filter:       bloom.New(bloom.DefaultNumBits, bloom.DefaultK),
	}, nil
}

// Add appends one internal-key/value entry. Entries must arrive in
// ascending internal-key order.
func (b *Builder) Add(key base.InternalKey, value []byte) error {
	b.filter.Insert(key.UserKey)

	if err := b.blockBuilder.Add(key, value); err != nil {
		if err != base.ErrFull {
			return err
		}
		if err := b.flushBlock(); err != nil {
			return err
		}
		if err := b.blockBuilder.Add(key, value); err != nil {
			return err
		}
	}
	if !b.havePending {
		b.pendingFirst = key
		b.havePending = true
	}
	return nil
}

// AddAll drains it into the builder in order.
func (b *Builder) AddAll(it EntryIterator) error {
	for it.Valid() {
		if err := b.Add(it.Key(), it.Value()); err != nil {
			return err
		}
		if err := it.Next(); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) flushBlock() error {
	if b.blockBuilder.Empty() {
		return nil
	}
	body := b.blockBuilder.Finish()
	onDisk, err := encodeBlockWithTrailer(b.compression, body)
	if err != nil {
		return err
	}
	n, err := b.f.Write(onDisk)
	if err != nil {
		return base.NewError(base.CodeIOWrite, err, "writing block to %s", b.filename)
	}
	b.metas = append(b.metas, BlockMeta{
		FirstKey: b.pendingFirst,
		LastKey:  b.blockBuilder.LastKey(),
		Offset:   uint64(b.offset),
		Size:     uint32(n),
	})
	b.offset += int64(n)
	b.blockBuilder.Reset()
	b.havePending = false
	return nil
}

// Empty reports whether any entry has been added.
func (b *Builder) Empty() bool { return len(b.metas) == 0 && b.blockBuilder.Empty() }

// EntryCount is unavailable from the builder directly; callers track it
// alongside Add if needed. FirstKey/LastKey summarize the table's key
// range once Finish has run.
func (b *Builder) FirstKey() base.InternalKey {
	if len(b.metas) == 0 {
		return base.InternalKey{}
	}
	return b.metas[0].FirstKey
}

func (b *Builder) LastKey() base.InternalKey {
	if len(b.metas) == 0 {
		return base.InternalKey{}
	}
	return b.metas[len(b.metas)-1].LastKey
}

// Finish flushes any partial block, writes the bloom filter section,
// the block index, and the footer, then closes the file.
func (b *Builder) Finish() error {
	if err := b.flushBlock(); err != nil {
		return err
	}

	bloomOffset := b.offset
	bits := b.filter.Bytes()
	bloomLenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(bloomLenBuf, uint32(len(bits)))
	if _, err := b.f.Write(bloomLenBuf); err != nil {
		return base.NewError(base.CodeIOWrite, err, "writing bloom length to %s", b.filename)
	}
	if _, err := b.f.Write(bits); err != nil {
		return base.NewError(base.CodeIOWrite, err, "writing bloom bits to %s", b.filename)
	}
	b.offset += int64(len(bloomLenBuf) + len(bits))

	metaOffset := b.offset
	metaCountBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(metaCountBuf, uint32(len(b.metas)))
	if _, err := b.f.Write(metaCountBuf); err != nil {
		return base.NewError(base.CodeIOWrite, err, "writing meta count to %s", b.filename)
	}
	b.offset += int64(len(metaCountBuf))

	for _, m := range b.metas {
		wireBytes, err := json.Marshal(m.toWire())
		if err != nil {
			return base.NewError(base.CodeJSONParse, err, "encoding block meta for %s", b.filename)
		}
		lenBuf := make([]byte, 4)
		binary.LittleEndian.PutUint32(lenBuf, uint32(len(wireBytes)))
		if _, err := b.f.Write(lenBuf); err != nil {
			return base.NewError(base.CodeIOWrite, err, "writing meta entry length to %s", b.filename)
		}
		if _, err := b.f.Write(wireBytes); err != nil {
			return base.NewError(base.CodeIOWrite, err, "writing meta entry to %s", b.filename)
		}
		b.offset += int64(len(lenBuf) + len(wireBytes))
	}

	footer := make([]byte, footerSize)
	binary.LittleEndian.PutUint64(footer[0:8], uint64(bloomOffset))
	binary.LittleEndian.PutUint64(footer[8:16], uint64(metaOffset))
	if _, err := b.f.Write(footer); err != nil {
		return base.NewError(base.CodeIOWrite, err, "writing footer to %s", b.filename)
	}

	if err := b.f.Sync(); err != nil {
		return base.NewError(base.CodeIOSync, err, "syncing %s", b.filename)
	}
	return b.f.Close()
}
