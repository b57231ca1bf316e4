package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/agentic-research/termtree/internal/config"
)

// ObjectGetter is the part of *s3.Client the fetcher uses.
type ObjectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Fetcher opens import sources: s3://bucket/key objects or local files.
type Fetcher struct {
	cfg config.S3

	mu     sync.Mutex
	client ObjectGetter
}

// NewFetcher returns a Fetcher that builds its S3 client from cfg on first use.
func NewFetcher(cfg config.S3) *Fetcher {
	return &Fetcher{cfg: cfg}
}

// WithClient sets the client used for s3:// sources.
func (f *Fetcher) WithClient(c ObjectGetter) *Fetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.client = c
	return f
}

// NewS3Client builds an S3 client from the default AWS credential chain.
// A custom endpoint (MinIO, localstack) is honoured when set.
func NewS3Client(ctx context.Context, cfg config.S3, opts ...func(*awsconfig.LoadOptions) error) (*s3.Client, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := append([]func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}, opts...)
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

// Fetch opens uri for reading. The caller closes the result.
func (f *Fetcher) Fetch(ctx context.Context, uri string) (io.ReadCloser, error) {
	if bucket, key, ok := parseS3URI(uri); ok {
		client, err := f.s3Client(ctx)
		if err != nil {
			return nil, err
		}
		out, err := client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
		if err != nil {
			return nil, fmt.Errorf("get s3://%s/%s: %w", bucket, key, err)
		}
		return out.Body, nil
	}
	file, err := os.Open(localPath(uri))
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	return file, nil
}

func (f *Fetcher) s3Client(ctx context.Context) (ObjectGetter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.client != nil {
		return f.client, nil
	}
	c, err := NewS3Client(ctx, f.cfg)
	if err != nil {
		return nil, err
	}
	f.client = c
	return c, nil
}

// parseS3URI splits s3://bucket/key. Both parts must be non-empty.
func parseS3URI(uri string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(uri, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}

func localPath(uri string) string {
	return strings.TrimPrefix(uri, "file://")
}
