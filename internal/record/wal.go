// Package record implements the per-memtable write-ahead log: an
// append-only, checksummed, length-prefixed record stream recoverable
// after a crash. One WAL file backs exactly one memtable generation
// (spec.md §3, §4.5).
package record

import (
	"encoding/binary"
	"io"

	"github.com/cespare/xxhash/v2"

	"github.com/oblsm-go/oblsm/internal/base"
	"github.com/oblsm-go/oblsm/vfs"
)

// Entry is one WAL record as returned by Recover.
type Entry struct {
	Seq     uint64
	Key     []byte
	Value   []byte
	Deleted bool // true when Value has zero length: a tombstone write.
}

// Writer appends records to a single WAL file.
type Writer struct {
	f            vfs.File
	forceSync    bool
	bytesWritten int64
}

// Open creates filename, truncating any existing file, and returns a
// Writer.
// forceSync mirrors Options.ForceSyncNewLog: when true, every Put
// fsyncs before returning.
func Open(fs vfs.FS, filename string, forceSync bool) (*Writer, error) {
	f, err := fs.Create(filename)
	if err != nil {
		return nil, base.NewError(base.CodeIOOpen, err, "opening wal %s", filename)
	}
	return &Writer{f: f, forceSync: forceSync}, nil
}

// encode lays out one record as: len(8, LE) || payload || checksum(8).
// payload is seq(8) || len(key)(4) || key || len(value)(4) || value. A
// zero-length value marks a deletion, the same convention used
// everywhere else in the engine (spec.md §3).
func encode(seq uint64, key, value []byte) []byte {
	payloadLen := 8 + 4 + len(key) + 4 + len(value)
	buf := make([]byte, 8+payloadLen+8)

	binary.LittleEndian.PutUint64(buf[0:8], uint64(payloadLen))
	payload := buf[8 : 8+payloadLen]
	binary.LittleEndian.PutUint64(payload[0:8], seq)
	binary.LittleEndian.PutUint32(payload[8:12], uint32(len(key)))
	n := 12 + copy(payload[12:], key)
	binary.LittleEndian.PutUint32(payload[n:n+4], uint32(len(value)))
	copy(payload[n+4:], value)

	binary.LittleEndian.PutUint64(buf[8+payloadLen:], xxhash.Sum64(payload))
	return buf
}

// Put appends (seq, key, value) to the log. A zero-length value encodes
// a deletion.
func (w *Writer) Put(seq uint64, key, value []byte) error {
	buf := encode(seq, key, value)
	n, err := w.f.Write(buf)
	if err != nil {
		return base.NewError(base.CodeIOWrite, err, "writing wal record")
	}
	w.bytesWritten += int64(n)
	if w.forceSync {
		if err := w.f.Sync(); err != nil {
			return base.NewError(base.CodeIOSync, err, "syncing wal")
		}
	}
	return nil
}

// Sync forces a fsync of the log file regardless of forceSync.
func (w *Writer) Sync() error {
	if err := w.f.Sync(); err != nil {
		return base.NewError(base.CodeIOSync, err, "syncing wal")
	}
	return nil
}

// Close closes the underlying file.
func (w *Writer) Close() error { return w.f.Close() }

// Recover reads filename to EOF, returning every fully-written record in
// arrival order. A half-written trailing record (a short read, or a
// checksum mismatch on what would be the final record) is discarded
// silently, matching the crash-safety contract in spec.md §4.5/§9: a
// crash mid-append leaves at most one corrupt tail record.
func Recover(fs vfs.FS, filename string) ([]Entry, error) {
	f, err := fs.Open(filename)
	if err != nil {
		return nil, base.NewError(base.CodeIOOpen, err, "opening wal %s", filename)
	}
	defer f.Close()

	var entries []Entry
	var offset int64
	for {
		lenBuf := make([]byte, 8)
		if _, err := io.ReadFull(newOffsetReader(f, offset), lenBuf); err != nil {
			break // EOF or short read: nothing more to recover.
		}
		payloadLen := binary.LittleEndian.Uint64(lenBuf)
		rest := make([]byte, payloadLen+8)
		if _, err := io.ReadFull(newOffsetReader(f, offset+8), rest); err != nil {
			break // truncated trailing record.
		}
		payload := rest[:payloadLen]
		checksum := binary.LittleEndian.Uint64(rest[payloadLen:])
		if xxhash.Sum64(payload) != checksum {
			break // truncated/corrupt trailing record.
		}

		seq := binary.LittleEndian.Uint64(payload[0:8])
		keyLen := binary.LittleEndian.Uint32(payload[8:12])
		key := payload[12 : 12+keyLen]
		valLen := binary.LittleEndian.Uint32(payload[12+keyLen : 16+keyLen])
		value := payload[16+keyLen : 16+keyLen+uint32(valLen)]

		var storedValue []byte
		if valLen > 0 {
			storedValue = append([]byte(nil), value...)
		}
		entries = append(entries, Entry{
			Seq:     seq,
			Key:     append([]byte(nil), key...),
			Value:   storedValue,
			Deleted: valLen == 0,
		})

		offset += 8 + int64(payloadLen) + 8
	}
	return entries, nil
}

// offsetReader adapts an io.ReaderAt into a plain io.Reader starting at
// a fixed offset, so Recover can be written as a simple sequential scan
// over a vfs.File (which only promises ReaderAt/Reader, not Seek).
type offsetReader struct {
	r      io.ReaderAt
	offset int64
}

func newOffsetReader(r io.ReaderAt, offset int64) *offsetReader {
	return &offsetReader{r: r, offset: offset}
}

func (o *offsetReader) Read(p []byte) (int, error) {
	n, err := o.r.ReadAt(p, o.offset)
	o.offset += int64(n)
	return n, err
}
