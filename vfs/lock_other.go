//go:build windows

package vfs

import "os"

// lockFile is a no-op on platforms without flock; the engine still
// works, it just loses the cross-process guard.
func lockFile(f *os.File) error {
	return nil
}
