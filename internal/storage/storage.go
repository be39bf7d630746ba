// Package storage provides the S3-backed object store behind artifact
// publishing and s3:// source acquisition.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/kiranshivaraju/clipminer/internal/config"
)

// Sentinel errors for object store failures.
var (
	ErrObjectNotFound     = errors.New("object not found")
	ErrStorageUnavailable = errors.New("object storage unavailable")
)

// Client is the interface for the artifact object store.
type Client interface {
	// Upload stores the file at localPath under key in the configured
	// bucket and returns the object's public URL.
	Upload(ctx context.Context, localPath, key, contentType string) (string, error)
	// Download fetches bucket/key into the local file dst.
	Download(ctx context.Context, bucket, key, dst string) error
	// Ping verifies the configured bucket is reachable.
	Ping(ctx context.Context) error
}

// S3Client implements Client against S3 or any S3-compatible endpoint.
type S3Client struct {
	api      *s3.Client
	bucket   string
	region   string
	endpoint string
}

// NewS3Client builds a client for cfg's bucket. Static credentials are used
// when configured, otherwise the SDK's default chain applies. A non-empty
// endpoint switches to path-style addressing for S3-compatible stores.
func NewS3Client(ctx context.Context, cfg config.StorageConfig) (*S3Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	api := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// Retry budgets live in the calling stage's policy, not the SDK.
		o.Retryer = aws.NopRetryer{}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// Third-party stores reject the SDK's trailing checksums.
			o.UsePathStyle = true
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		}
	})

	return &S3Client{
		api:      api,
		bucket:   cfg.Bucket,
		region:   cfg.Region,
		endpoint: cfg.Endpoint,
	}, nil
}

func (c *S3Client) Upload(ctx context.Context, localPath, key, contentType string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", localPath, err)
	}
	defer f.Close()

	_, err = c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", classifyError("putting "+key, err)
	}
	return c.objectURL(key), nil
}

func (c *S3Client) Download(ctx context.Context, bucket, key, dst string) error {
	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return classifyError(fmt.Sprintf("getting s3://%s/%s", bucket, key), err)
	}
	defer out.Body.Close()

	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	if _, err := io.Copy(f, out.Body); err != nil {
		f.Close()
		os.Remove(dst)
		return fmt.Errorf("writing %s: %w", dst, err)
	}
	return f.Close()
}

func (c *S3Client) Ping(ctx context.Context) error {
	_, err := c.api.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(c.bucket),
	})
	if err != nil {
		return classifyError("heading bucket "+c.bucket, err)
	}
	return nil
}

// objectURL renders the public URL for an uploaded key. Custom endpoints use
// path-style addressing, AWS proper uses the virtual-hosted form.
func (c *S3Client) objectURL(key string) string {
	if c.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(c.endpoint, "/"), c.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", c.bucket, c.region, key)
}

// classifyError maps SDK failures onto the package sentinels so callers can
// distinguish a missing object from an unreachable store.
func classifyError(op string, err error) error {
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, op)
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, op)
	}
	return fmt.Errorf("%w: %s: %v", ErrStorageUnavailable, op, err)
}

var _ Client = (*S3Client)(nil)
