// Package common holds the pieces cloud/aws's S3 mirror needs that
// don't depend on the AWS SDK directly: the shared option struct and
// the S3Helper interface CloudFS and CloudFile talk to.
package common

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	awssdk "github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"github.com/oblsm-go/oblsm/vfs"
)

// CloudFsOption configures the S3 mirror's key prefix.
type CloudFsOption struct {
	BasePath string
}

// S3Helper uploads and deletes mirrored copies of data-directory files
// in S3. CloudFS and CloudFile depend on the interface, not the AWS
// SDK types directly, so they stay testable without real credentials.
type S3Helper interface {
	SyncFileToS3(file vfs.File, name string) error
	DeleteS3File(name string) error
}

type s3HelperImpl struct {
	bucket     string
	filePrefix string
	uploader   *s3manager.Uploader
	client     *s3.S3
}

// NewS3Helper builds an S3Helper from the ambient AWS session
// (credentials and region come from the shared config/credentials
// files, matching the teacher's setup).
func NewS3Helper(options CloudFsOption) (S3Helper, error) {
	sess, err := session.NewSession(&awssdk.Config{
		Region: awssdk.String(os.Getenv("OBLSM_S3_REGION")),
	})
	if err != nil {
		return nil, err
	}
	return &s3HelperImpl{
		bucket:     os.Getenv("OBLSM_S3_BUCKET"),
		filePrefix: options.BasePath,
		client:     s3.New(sess),
		uploader:   s3manager.NewUploader(sess),
	}, nil
}

// SkipS3Upload excludes WAL segments and temporary manifest-switch
// files from the mirror: both are either short-lived or superseded by
// a manifest snapshot soon after being written, so mirroring them is
// wasted bandwidth.
func SkipS3Upload(name string) bool {
	return strings.HasSuffix(name, ".wal") || strings.HasSuffix(name, ".tmp")
}

func (s *s3HelperImpl) SyncFileToS3(file vfs.File, name string) error {
	if SkipS3Upload(name) {
		return nil
	}
	info, err := file.Stat()
	if err != nil {
		return err
	}
	out, err := s.uploader.Upload(&s3manager.UploadInput{
		Body:   io.NewSectionReader(file, 0, info.Size()),
		Bucket: awssdk.String(s.bucket),
		Key:    awssdk.String(s.filePrefix + "/" + filepath.Base(name)),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "oblsm: mirrored %s to %s\n", name, out.Location)
	return nil
}

func (s *s3HelperImpl) DeleteS3File(name string) error {
	_, err := s.client.DeleteObject(&s3.DeleteObjectInput{
		Bucket: awssdk.String(s.bucket),
		Key:    awssdk.String(s.filePrefix + "/" + filepath.Base(name)),
	})
	return err
}
