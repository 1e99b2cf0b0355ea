// Package vfs defines the filesystem interface every durable component
// (internal/record, internal/sstable, internal/manifest) uses instead of
// calling the os package directly. This indirection is what lets
// cloud/aws mirror the data directory to S3 without touching the
// engine's I/O call sites, exactly as in the teacher.
package vfs

import (
	"io"
	"os"
)

// File is the subset of *os.File the engine needs.
type File interface {
	io.Reader
	io.ReaderAt
	io.Writer
	io.Closer
	Stat() (os.FileInfo, error)
	Sync() error
}

// FS abstracts filesystem operations on a data directory.
type FS interface {
	Create(name string) (File, error)
	Open(name string) (File, error)
	Remove(name string) error
	Rename(oldname, newname string) error
	MkdirAll(dir string, perm os.FileMode) error
	List(dir string) ([]string, error)
	Stat(name string) (os.FileInfo, error)
	PathJoin(elem ...string) string

	// Lock takes an advisory exclusive lock on name, returning a Closer
	// that releases it. Used once per Open to guard against two
	// processes sharing a data directory (spec.md §4.16 "Directory
	// locking").
	Lock(name string) (io.Closer, error)
}

// Default returns an FS backed directly by the local filesystem.
func Default() FS { return diskFS{} }
