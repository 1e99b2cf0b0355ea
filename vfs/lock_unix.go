//go:build !windows

package vfs

import (
	"os"

	"golang.org/x/sys/unix"
)

// lockFile takes a non-blocking advisory exclusive lock on f, returning
// an error (wrapping unix.EWOULDBLOCK) if another process already holds
// it. This is the real-filesystem implementation of vfs.FS.Lock.
func lockFile(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
}
