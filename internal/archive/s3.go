// Package archive stores the original uploaded files in S3-compatible
// object storage so an upload can be inspected after the fact.
package archive

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/lekhnak/uc-pathways-hub-sub000/internal/ingest"
)

// DefaultPrefix is the key prefix used when none is configured.
const DefaultPrefix = "uploads"

// Config holds the bucket and credentials.
type Config struct {
	Bucket    string
	Region    string
	Endpoint  string // Optional, for R2/MinIO
	AccessKey string
	SecretKey string
	Prefix    string
	PathStyle bool
}

type putter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver writes uploads to one bucket.
type S3Archiver struct {
	client putter
	bucket string
	prefix string
}

var _ ingest.Archiver = (*S3Archiver)(nil)

// NewS3 builds an archiver from cfg. Static credentials are used when both
// keys are set; otherwise the default AWS credential chain applies.
func NewS3(ctx context.Context, cfg Config) (*S3Archiver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive: bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})
	return newS3Archiver(client, cfg.Bucket, cfg.Prefix), nil
}

func newS3Archiver(client putter, bucket, prefix string) *S3Archiver {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &S3Archiver{client: client, bucket: bucket, prefix: prefix}
}

// Archive uploads body and returns the object key.
func (a *S3Archiver) Archive(ctx context.Context, uploadKey string, meta ingest.FileMeta, body io.Reader) (string, error) {
	key := a.ObjectKey(uploadKey, meta.Name)

	in := &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
		Body:   body,
		Metadata: map[string]string{
			"original-name": meta.Name,
		},
	}
	if meta.Type != "" {
		in.ContentType = aws.String(meta.Type)
	}
	if meta.Size > 0 {
		in.ContentLength = aws.Int64(meta.Size)
	}

	if _, err := a.client.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return key, nil
}

// ObjectKey returns prefix/uploadKey/name with the name reduced to a safe
// base name.
func (a *S3Archiver) ObjectKey(uploadKey, name string) string {
	return path.Join(a.prefix, uploadKey, safeName(name))
}

func safeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	if name == "." || name == "/" || name == ".." {
		return "upload"
	}
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return '_'
		}
		return r
	}, name)
}
