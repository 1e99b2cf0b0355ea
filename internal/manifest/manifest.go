package manifest

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/oblsm-go/oblsm/internal/base"
	"github.com/oblsm-go/oblsm/vfs"
)

const currentFile = "CURRENT"

func manifestFilename(id uint64) string { return fmt.Sprintf("%d.mf", id) }

// Filename returns the on-disk name of the manifest file with the given id,
// for callers that need to remove a superseded manifest after redirecting
// CURRENT.
func Filename(id uint64) string { return manifestFilename(id) }

// Writer appends records to one manifest file, fsyncing after every
// record: manifest writes are rare compared to WAL writes, and every
// one of them must be durable before the operation it describes (a new
// memtable generation, a published compaction) is considered complete.
type Writer struct {
	fs  vfs.FS
	dir string
	id  uint64
	f   vfs.File
}

// Create starts a brand new manifest file <id>.mf.
func Create(fs vfs.FS, dir string, id uint64) (*Writer, error) {
	path := filepath.Join(dir, manifestFilename(id))
	f, err := fs.Create(path)
	if err != nil {
		return nil, base.NewError(base.CodeIOOpen, err, "creating manifest %s", path)
	}
	return &Writer{fs: fs, dir: dir, id: id, f: f}, nil
}

// ID returns the manifest's numeric id.
func (w *Writer) ID() uint64 { return w.id }

// Append encodes rec as len(4, LE) || json and writes it, then fsyncs.
func (w *Writer) Append(rec Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return base.NewError(base.CodeJSONParse, err, "encoding manifest record")
	}
	buf := make([]byte, 4+len(payload))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(payload)))
	copy(buf[4:], payload)
	if _, err := w.f.Write(buf); err != nil {
		return base.NewError(base.CodeIOWrite, err, "writing manifest record")
	}
	if err := w.f.Sync(); err != nil {
		return base.NewError(base.CodeIOSync, err, "syncing manifest")
	}
	return nil
}

// Close closes the manifest file.
func (w *Writer) Close() error { return w.f.Close() }

// SetCurrent atomically points CURRENT at id: write the new contents
// fully, fsync, then rename over the old file. On crash between the
// write and the rename, CURRENT still names whichever manifest was
// current before, which recovery can still replay correctly (spec.md
// §9 crash-safety note).
func SetCurrent(fs vfs.FS, dir string, id uint64) error {
	tmpPath := filepath.Join(dir, currentFile+".tmp")
	f, err := fs.Create(tmpPath)
	if err != nil {
		return base.NewError(base.CodeIOOpen, err, "creating CURRENT.tmp")
	}
	if _, err := f.Write([]byte(strconv.FormatUint(id, 10))); err != nil {
		return base.NewError(base.CodeIOWrite, err, "writing CURRENT.tmp")
	}
	if err := f.Sync(); err != nil {
		return base.NewError(base.CodeIOSync, err, "syncing CURRENT.tmp")
	}
	if err := f.Close(); err != nil {
		return base.NewError(base.CodeIOWrite, err, "closing CURRENT.tmp")
	}
	if err := fs.Rename(tmpPath, filepath.Join(dir, currentFile)); err != nil {
		return base.NewError(base.CodeIOWrite, err, "renaming CURRENT")
	}
	return nil
}

// ReadCurrent reads the manifest id CURRENT names. found is false when
// CURRENT does not exist yet (a brand new database directory).
func ReadCurrent(fs vfs.FS, dir string) (id uint64, found bool, err error) {
	path := filepath.Join(dir, currentFile)
	f, openErr := fs.Open(path)
	if openErr != nil {
		return 0, false, nil
	}
	defer f.Close()

	info, statErr := f.Stat()
	if statErr != nil {
		return 0, false, base.NewError(base.CodeIOOpen, statErr, "stat CURRENT")
	}
	buf := make([]byte, info.Size())
	if _, readErr := f.ReadAt(buf, 0); readErr != nil && readErr != io.EOF {
		return 0, false, base.NewError(base.CodeIORead, readErr, "reading CURRENT")
	}
	id, err = strconv.ParseUint(strings.TrimSpace(string(buf)), 10, 64)
	if err != nil {
		return 0, false, base.NewError(base.CodeJSONParse, err, "parsing CURRENT")
	}
	return id, true, nil
}

// Recover reads CURRENT and replays the manifest it names. found is
// false for a brand new, empty database directory.
func Recover(fs vfs.FS, dir string) (state *State, found bool, err error) {
	id, found, err := ReadCurrent(fs, dir)
	if err != nil || !found {
		return nil, found, err
	}

	path := filepath.Join(dir, manifestFilename(id))
	f, openErr := fs.Open(path)
	if openErr != nil {
		return nil, false, base.NewError(base.CodeIOOpen, openErr, "opening manifest %s", path)
	}
	defer f.Close()

	s := newState()
	var offset int64
	for {
		lenBuf := make([]byte, 4)
		if _, err := f.ReadAt(lenBuf, offset); err != nil {
			break
		}
		payloadLen := binary.LittleEndian.Uint32(lenBuf)
		payload := make([]byte, payloadLen)
		if _, err := f.ReadAt(payload, offset+4); err != nil {
			break // truncated trailing record.
		}

		var rec Record
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, false, base.NewError(base.CodeJSONParse, err, "decoding manifest record in %s", path)
		}
		s.apply(rec)
		offset += 4 + int64(payloadLen)
	}
	return s, true, nil
}
