package sstable

import (
	"encoding/binary"

	"github.com/DataDog/zstd"
	"github.com/cespare/xxhash/v2"
	"github.com/golang/snappy"

	"github.com/oblsm-go/oblsm/internal/base"
)

// CompressionKind names a per-block compression codec. The kind is
// stored as a single trailer byte (spec.md §3's block layout, extended
// per SPEC_FULL.md §3) so every block can be decompressed independently
// of every other, and so compression can be changed between Open calls
// without invalidating existing SSTables.
type CompressionKind byte

const (
	NoCompression CompressionKind = iota
	SnappyCompression
	ZstdCompression
)

// compress returns the on-disk bytes for a finished, uncompressed block
// body under kind.
func compress(kind CompressionKind, body []byte) ([]byte, error) {
	switch kind {
	case NoCompression:
		return body, nil
	case SnappyCompression:
		return snappy.Encode(nil, body), nil
	case ZstdCompression:
		return zstd.Compress(nil, body)
	default:
		return nil, base.NewError(base.CodeInvalidArgument, nil, "unknown compression kind %d", kind)
	}
}

// decompress reverses compress.
func decompress(kind CompressionKind, compressed []byte) ([]byte, error) {
	switch kind {
	case NoCompression:
		return compressed, nil
	case SnappyCompression:
		return snappy.Decode(nil, compressed)
	case ZstdCompression:
		return zstd.Decompress(nil, compressed)
	default:
		return nil, base.NewError(base.CodeInvalidArgument, nil, "unknown compression kind %d", kind)
	}
}

// checksumOf hashes the on-disk (compressed) bytes of a block, the
// same convention internal/record uses for WAL records.
func checksumOf(compressed []byte) uint64 {
	return xxhash.Sum64(compressed)
}

// encodeBlockWithTrailer compresses body and appends the
// kind(1) || checksum(8) trailer that lets a reader verify and
// decompress a block independently of every other.
func encodeBlockWithTrailer(kind CompressionKind, body []byte) ([]byte, error) {
	compressed, err := compress(kind, body)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(compressed)+9)
	copy(out, compressed)
	out[len(compressed)] = byte(kind)
	binary.LittleEndian.PutUint64(out[len(compressed)+1:], checksumOf(compressed))
	return out, nil
}
