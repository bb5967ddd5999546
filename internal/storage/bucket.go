// Package storage wraps the S3-compatible bucket (R2, MinIO, S3) that holds
// the catalog document, original media and generated thumbnails.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/onnwee/viewfinder/internal/tracing"
)

// Errors returned by Bucket.
var (
	ErrObjectNotFound = errors.New("object not found")
	ErrInvalidKey     = errors.New("invalid object key")
	ErrObjectTooLarge = errors.New("object exceeds maximum size")
)

// ObjectAPI is the subset of *s3.Client used by Bucket.
type ObjectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Config holds bucket connection settings.
type Config struct {
	BucketName       string
	AccessKeyID      string
	SecretAccessKey  string
	Endpoint         string
	Region           string // Default: "auto"
	URLExpiryMinutes int    // Default: 15 minutes
	MaxObjectMB      int    // Default: 25 MB
}

// Bucket reads, writes and signs objects in a single bucket.
type Bucket struct {
	api       ObjectAPI
	presign   func(ctx context.Context, key string, expiry time.Duration) (string, error)
	name      string
	urlExpiry time.Duration
	maxBytes  int64
}

// NewBucket creates a Bucket with path-style addressing, which R2 and MinIO
// require.
func NewBucket(cfg Config) (*Bucket, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("bucket name is required")
	}
	if cfg.AccessKeyID == "" {
		return nil, errors.New("access key ID is required")
	}
	if cfg.SecretAccessKey == "" {
		return nil, errors.New("secret access key is required")
	}
	if cfg.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}
	if cfg.Region == "" {
		cfg.Region = "auto"
	}

	client := s3.New(s3.Options{
		Region: cfg.Region,
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		BaseEndpoint: aws.String(cfg.Endpoint),
		UsePathStyle: true,
	})
	presignClient := s3.NewPresignClient(client)

	b := NewBucketWithAPI(client, cfg)
	b.presign = func(ctx context.Context, key string, expiry time.Duration) (string, error) {
		req, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(cfg.BucketName),
			Key:    aws.String(key),
		}, func(opts *s3.PresignOptions) {
			opts.Expires = expiry
		})
		if err != nil {
			return "", err
		}
		return req.URL, nil
	}
	return b, nil
}

// NewBucketWithAPI builds a Bucket over an existing client. Buckets built
// this way do not sign URLs; PresignGet returns the plain object path.
func NewBucketWithAPI(api ObjectAPI, cfg Config) *Bucket {
	if cfg.URLExpiryMinutes <= 0 {
		cfg.URLExpiryMinutes = 15
	}
	if cfg.MaxObjectMB <= 0 {
		cfg.MaxObjectMB = 25
	}
	return &Bucket{
		api:       api,
		name:      cfg.BucketName,
		urlExpiry: time.Duration(cfg.URLExpiryMinutes) * time.Minute,
		maxBytes:  int64(cfg.MaxObjectMB) * 1024 * 1024,
	}
}

// Name returns the bucket name.
func (b *Bucket) Name() string {
	return b.name
}

// Get reads the object at key. Objects larger than the configured maximum
// are rejected.
func (b *Bucket) Get(ctx context.Context, key string) (_ []byte, err error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	ctx, end := tracing.StartObjectSpan(ctx, b.name, "GetObject", key)
	defer func() { end(err) }()
	out, err := b.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.name),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, b.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	if int64(len(data)) > b.maxBytes {
		return nil, fmt.Errorf("%w: %s", ErrObjectTooLarge, key)
	}
	return data, nil
}

// Put writes data to key.
func (b *Bucket) Put(ctx context.Context, key, contentType string, data []byte) (err error) {
	if err := ValidateKey(key); err != nil {
		return err
	}
	ctx, end := tracing.StartObjectSpan(ctx, b.name, "PutObject", key)
	defer func() { end(err) }()

	_, err = b.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.name),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
		CacheControl:  aws.String("public, max-age=31536000, immutable"),
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return nil
}

// PresignGet returns a time-limited GET URL for key.
func (b *Bucket) PresignGet(ctx context.Context, key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	if b.presign == nil {
		return "/" + b.name + "/" + key, nil
	}
	url, err := b.presign(ctx, key, b.urlExpiry)
	if err != nil {
		return "", fmt.Errorf("failed to presign request: %w", err)
	}
	return url, nil
}

// HealthCheck confirms the bucket exists and the credentials can reach it.
func (b *Bucket) HealthCheck(ctx context.Context) error {
	if _, err := b.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(b.name)}); err != nil {
		return fmt.Errorf("failed to reach bucket %s: %w", b.name, err)
	}
	return nil
}

// ValidateKey rejects empty keys, absolute keys and path traversal.
func ValidateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") {
		return ErrInvalidKey
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." || part == "." || part == "" {
			return ErrInvalidKey
		}
	}
	return nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	return errors.As(err, &nf)
}
