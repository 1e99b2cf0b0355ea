// Package aws mirrors an oblsm data directory to S3 as a thin
// decorator over vfs.FS, the way the teacher's cloud/aws package
// mirrors a Pebble data directory: every manifest sync and every
// completed file close gets an S3 upload alongside the local write, so
// a lost local disk can still be recovered from the mirror.
package aws

import (
	"os"
	"strings"

	"github.com/oblsm-go/oblsm/cloud/common"
	"github.com/oblsm-go/oblsm/vfs"
)

// CloudFile wraps a vfs.File, additionally mirroring its contents to
// S3 on Close and, for manifest files, on every Sync too (a manifest's
// CURRENT pointer and its records must never point at a version the
// mirror doesn't have).
type CloudFile struct {
	vfs.File
	name     string
	s3Helper common.S3Helper
}

// NewCloudFile wraps base so its eventual Close (and, for manifest
// files, every Sync) also mirrors name to S3.
func NewCloudFile(base vfs.File, name string, s3Helper common.S3Helper) (vfs.File, error) {
	return &CloudFile{File: base, name: name, s3Helper: s3Helper}, nil
}

func (c *CloudFile) isManifest() bool {
	return strings.Contains(c.name, ".mf") || c.name == "CURRENT"
}

func (c *CloudFile) Sync() error {
	if err := c.File.Sync(); err != nil {
		return err
	}
	if c.isManifest() {
		return c.s3Helper.SyncFileToS3(c.File, c.name)
	}
	return nil
}

func (c *CloudFile) Close() error {
	err := c.s3Helper.SyncFileToS3(c.File, c.name)
	if cerr := c.File.Close(); err == nil {
		err = cerr
	}
	return err
}

// deleteMirror removes name's mirrored copy in S3, called by CloudFS
// after Remove succeeds locally so a compacted-away SSTable doesn't
// linger in the mirror.
func deleteMirror(s3Helper common.S3Helper, name string) {
	if err := s3Helper.DeleteS3File(name); err != nil {
		os.Stderr.WriteString("oblsm: failed to delete mirrored file " + name + ": " + err.Error() + "\n")
	}
}
