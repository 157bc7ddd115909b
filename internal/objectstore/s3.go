package objectstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Bucket is a Bucket backed by an S3 bucket.
type S3Bucket struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
}

var _ Bucket = (*S3Bucket)(nil)

// NewS3Bucket opens bucket using the default AWS credential chain. When
// AWS_ENDPOINT_URL_S3 is set the client talks to that endpoint with
// path-style addressing (MinIO, LocalStack).
func NewS3Bucket(ctx context.Context, bucket string) (*S3Bucket, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("objectstore: aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if ep := os.Getenv("AWS_ENDPOINT_URL_S3"); ep != "" {
			o.BaseEndpoint = aws.String(ep)
			o.UsePathStyle = true
		}
	})
	return NewS3BucketFromClient(client, bucket), nil
}

// NewS3BucketFromClient wraps an existing client.
func NewS3BucketFromClient(client *s3.Client, bucket string) *S3Bucket {
	return &S3Bucket{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
	}
}

// List implements Bucket.
func (b *S3Bucket) List(ctx context.Context, prefix string) ([]string, error) {
	p := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(prefix),
	})
	var keys []string
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("objectstore: list s3://%s/%s: %w", b.bucket, prefix, err)
		}
		for _, o := range page.Contents {
			key := aws.ToString(o.Key)
			if strings.HasSuffix(key, "/") || hidden(key, prefix) {
				continue
			}
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Open implements Bucket.
func (b *S3Bucket) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("objectstore: get s3://%s/%s: %w", b.bucket, key, err)
	}
	return out.Body, nil
}

// Put implements Bucket using the multipart-capable upload manager.
func (b *S3Bucket) Put(ctx context.Context, key string, r io.Reader) error {
	_, err := b.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   r,
	})
	if err != nil {
		return fmt.Errorf("objectstore: put s3://%s/%s: %w", b.bucket, key, err)
	}
	return nil
}
