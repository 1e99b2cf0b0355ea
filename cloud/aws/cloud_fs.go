package aws

import (
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/oblsm-go/oblsm/cloud/common"
	"github.com/oblsm-go/oblsm/vfs"
)

// CloudFS decorates a vfs.FS so every file it creates mirrors itself
// to S3, the way the teacher's cloud/aws.CloudFS decorates Pebble's
// vfs.FS. It is meant to wrap vfs.Default() and be handed to
// oblsm.Options.FS.
type CloudFS struct {
	base     vfs.FS
	options  common.CloudFsOption
	s3Helper common.S3Helper
}

// NewCloudFS wraps base so every created file is mirrored to S3 under
// options.BasePath.
func NewCloudFS(base vfs.FS, options common.CloudFsOption) (vfs.FS, error) {
	helper, err := common.NewS3Helper(options)
	if err != nil {
		return nil, err
	}
	return &CloudFS{base: base, options: options, s3Helper: helper}, nil
}

func (c *CloudFS) Create(name string) (vfs.File, error) {
	f, err := c.base.Create(name)
	if err != nil {
		return nil, err
	}
	return NewCloudFile(f, name, c.s3Helper)
}

func (c *CloudFS) Open(name string) (vfs.File, error) {
	return c.base.Open(name)
}

func (c *CloudFS) Remove(name string) error {
	if err := c.base.Remove(name); err != nil {
		return err
	}
	deleteMirror(c.s3Helper, name)
	return nil
}

func (c *CloudFS) Rename(oldname, newname string) error {
	return c.base.Rename(oldname, newname)
}

func (c *CloudFS) MkdirAll(dir string, perm os.FileMode) error {
	return c.base.MkdirAll(dir, perm)
}

func (c *CloudFS) List(dir string) ([]string, error) {
	return c.base.List(dir)
}

func (c *CloudFS) Stat(name string) (os.FileInfo, error) {
	return c.base.Stat(name)
}

func (c *CloudFS) PathJoin(elem ...string) string {
	return c.base.PathJoin(elem...)
}

func (c *CloudFS) Lock(name string) (io.Closer, error) {
	return c.base.Lock(name)
}

// listBucketObjects lists every key mirrored under prefix in bucket,
// for AuditMirror to compare against the local data directory.
func listBucketObjects(bucket, prefix string) ([]string, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(os.Getenv("OBLSM_S3_REGION"))})
	if err != nil {
		return nil, err
	}
	client := s3.New(sess)
	out, err := client.ListObjectsV2(&s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(out.Contents))
	for _, obj := range out.Contents {
		names = append(names, aws.StringValue(obj.Key))
	}
	return names, nil
}

// AuditMirror compares dir's local entries against the S3 mirror and
// returns the names present locally but missing from the bucket under
// options.BasePath. It is an operator tool, not on the read/write
// path, for catching a mirror left behind by a write that failed
// after the local file was durably written.
func (c *CloudFS) AuditMirror(dir string) ([]string, error) {
	local, err := c.base.List(dir)
	if err != nil {
		return nil, err
	}
	mirrored, err := listBucketObjects(os.Getenv("OBLSM_S3_BUCKET"), c.options.BasePath)
	if err != nil {
		return nil, err
	}
	return missingFromMirror(local, mirrored, c.options.BasePath), nil
}

// missingFromMirror returns the names in local that are neither
// excluded by common.SkipS3Upload nor present (after stripping
// prefix+"/") among mirrored.
func missingFromMirror(local, mirrored []string, prefix string) []string {
	present := make(map[string]bool, len(mirrored))
	for _, key := range mirrored {
		present[strings.TrimPrefix(key, prefix+"/")] = true
	}

	var missing []string
	for _, name := range local {
		if common.SkipS3Upload(name) {
			continue
		}
		if !present[name] {
			missing = append(missing, name)
		}
	}
	return missing
}
