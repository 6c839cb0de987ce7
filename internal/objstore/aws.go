package objstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	shoalerr "github.com/shoalstore/shoalstore/internal/errors"
	"github.com/shoalstore/shoalstore/internal/idgen"
)

// S3API is the subset of the AWS S3 client the AWS Backend uses, allowing a
// mock client in tests.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// AWSBackend implements Backend by proxying to an upstream S3-compatible
// bucket: a legitimate concrete realization of the abstract "object
// service" primitive (spec §6.1) when that service is itself S3. S3 has no
// partial-object write, so WriteBlock downloads, patches, and re-uploads
// the whole object, the same read-modify-write shape as SQLiteBackend.
type AWSBackend struct {
	bucket string
	prefix string
	client S3API
}

// NewAWSBackend connects to the given upstream S3 bucket using the default
// AWS credential chain.
func NewAWSBackend(ctx context.Context, bucket, region, prefix string) (*AWSBackend, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	client := s3.NewFromConfig(cfg)

	b := &AWSBackend{bucket: bucket, prefix: prefix, client: client}
	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err != nil {
		return nil, fmt.Errorf("cannot access upstream S3 bucket %q: %w", bucket, err)
	}
	return b, nil
}

// NewAWSBackendWithClient builds an AWSBackend with a pre-configured
// client, for tests with a mock S3API.
func NewAWSBackendWithClient(bucket, prefix string, client S3API) *AWSBackend {
	return &AWSBackend{bucket: bucket, prefix: prefix, client: client}
}

func (b *AWSBackend) objectKey(id idgen.ID) string {
	return b.prefix + id.String()
}

func (b *AWSBackend) CreateObject(ctx context.Context, id idgen.ID) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(b.objectKey(id)),
		Body:          bytes.NewReader(nil),
		ContentLength: aws.Int64(0),
	})
	if err != nil {
		return fmt.Errorf("creating object %s in S3: %w", id, err)
	}
	return nil
}

func (b *AWSBackend) DeleteObject(ctx context.Context, id idgen.ID) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.objectKey(id)),
	})
	if err != nil {
		return fmt.Errorf("deleting object %s from S3: %w", id, err)
	}
	return nil
}

func (b *AWSBackend) WriteBlock(ctx context.Context, id idgen.ID, offset int64, data []byte, last bool) error {
	current, err := b.readWhole(ctx, id)
	if err != nil {
		return err
	}

	end := offset + int64(len(data))
	if end > int64(len(current)) {
		grown := make([]byte, end)
		copy(grown, current)
		current = grown
	}
	copy(current[offset:end], data)

	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(b.objectKey(id)),
		Body:          bytes.NewReader(current),
		ContentLength: aws.Int64(int64(len(current))),
	})
	if err != nil {
		return fmt.Errorf("writing block for object %s to S3: %w", id, err)
	}
	return nil
}

func (b *AWSBackend) readWhole(ctx context.Context, id idgen.ID) ([]byte, error) {
	resp, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.objectKey(id)),
	})
	if err != nil {
		if isAWSNotFound(err) {
			return nil, shoalerr.Wrap(shoalerr.NotFound, "object %s", id)
		}
		return nil, fmt.Errorf("reading object %s from S3: %w", id, err)
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (b *AWSBackend) ReadBlock(ctx context.Context, id idgen.ID, offset, size int64) ([]byte, error) {
	data, err := b.readWhole(ctx, id)
	if err != nil {
		return nil, err
	}
	if offset >= int64(len(data)) {
		return nil, nil
	}
	end := offset + size
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	out := make([]byte, end-offset)
	copy(out, data[offset:end])
	return out, nil
}

func (b *AWSBackend) Exists(ctx context.Context, id idgen.ID) (bool, error) {
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.objectKey(id)),
	})
	if err != nil {
		if isAWSNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("checking object %s existence in S3: %w", id, err)
	}
	return true, nil
}

func (b *AWSBackend) HealthCheck(ctx context.Context) error {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(b.bucket)})
	return err
}

func isAWSNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "404", "NoSuchBucket":
			return true
		}
	}
	var respErr interface{ HTTPStatusCode() int }
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == 404 {
		return true
	}
	return false
}
