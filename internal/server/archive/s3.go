// Package archive stores sealed closing reports in object storage. The
// upload happens after the closing transaction commits, so a failed
// upload is logged by the caller and never affects the sync outcome.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// ObjectPutter is the slice of the S3 client the uploader needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Options carries the connection settings for the archive bucket.
type S3Options struct {
	Region       string
	RootUser     string // MINIO_ROOT_USER
	RootPassword string // MINIO_ROOT_PASSWORD
	BaseEndpoint string
	Bucket       string
}

// S3Archiver uploads sealed reports keyed by closing date and shift id.
type S3Archiver struct {
	client ObjectPutter
	bucket string
}

func NewS3Archiver(ctx context.Context, opts S3Options) (*S3Archiver, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(opts.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.RootUser,
			opts.RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if opts.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(opts.BaseEndpoint)
		}
		o.UsePathStyle = true
	})

	return &S3Archiver{client: client, bucket: opts.Bucket}, nil
}

// StorageKey returns the object key for a shift closed at the given time.
func StorageKey(shiftID string, closedAt time.Time) string {
	d := closedAt.UTC()
	return fmt.Sprintf("shifts/%d/%02d/%02d/%s", d.Year(), d.Month(), d.Day(), shiftID)
}

// Store uploads the sealed report exactly as received from the client,
// still encrypted under the session key.
func (a *S3Archiver) Store(ctx context.Context, shiftID string, closedAt time.Time, sealed []byte) error {
	key := StorageKey(shiftID, closedAt)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &a.bucket,
		Key:         &key,
		Body:        bytes.NewReader(sealed),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return fmt.Errorf("archive report %s: %w", shiftID, err)
	}
	return nil
}
