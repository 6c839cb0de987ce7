package objstore

import (
	"context"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"

	shoalerr "github.com/shoalstore/shoalstore/internal/errors"
	"github.com/shoalstore/shoalstore/internal/idgen"
)

// GCSAPI is the subset of the Cloud Storage client the GCP Backend uses,
// allowing a mock client in tests.
type GCSAPI interface {
	NewWriter(ctx context.Context, bucket, object string) io.WriteCloser
	NewReader(ctx context.Context, bucket, object string) (io.ReadCloser, error)
	Delete(ctx context.Context, bucket, object string) error
	Attrs(ctx context.Context, bucket, object string) (int64, error)
}

type realGCSClient struct {
	client *gcs.Client
}

func (c *realGCSClient) NewWriter(ctx context.Context, bucket, object string) io.WriteCloser {
	return c.client.Bucket(bucket).Object(object).NewWriter(ctx)
}

func (c *realGCSClient) NewReader(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	return c.client.Bucket(bucket).Object(object).NewReader(ctx)
}

func (c *realGCSClient) Delete(ctx context.Context, bucket, object string) error {
	return c.client.Bucket(bucket).Object(object).Delete(ctx)
}

func (c *realGCSClient) Attrs(ctx context.Context, bucket, object string) (int64, error) {
	attrs, err := c.client.Bucket(bucket).Object(object).Attrs(ctx)
	if err != nil {
		return 0, err
	}
	return attrs.Size, nil
}

// GCPBackend implements Backend by proxying to an upstream GCS bucket, read
// via Application Default Credentials. Like S3, GCS objects are immutable
// once written, so WriteBlock downloads, patches, and re-uploads the whole
// object.
type GCPBackend struct {
	bucket string
	prefix string
	client GCSAPI
}

// NewGCPBackend connects to the named GCS bucket using Application Default
// Credentials.
func NewGCPBackend(ctx context.Context, bucket, prefix string) (*GCPBackend, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating GCS client: %w", err)
	}
	return &GCPBackend{bucket: bucket, prefix: prefix, client: &realGCSClient{client: client}}, nil
}

// NewGCPBackendWithClient builds a GCPBackend with a pre-configured client,
// for tests with a mock GCSAPI.
func NewGCPBackendWithClient(bucket, prefix string, client GCSAPI) *GCPBackend {
	return &GCPBackend{bucket: bucket, prefix: prefix, client: client}
}

func (b *GCPBackend) objectName(id idgen.ID) string {
	return b.prefix + id.String()
}

func (b *GCPBackend) CreateObject(ctx context.Context, id idgen.ID) error {
	w := b.client.NewWriter(ctx, b.bucket, b.objectName(id))
	return w.Close()
}

func (b *GCPBackend) DeleteObject(ctx context.Context, id idgen.ID) error {
	err := b.client.Delete(ctx, b.bucket, b.objectName(id))
	if err != nil && err != gcs.ErrObjectNotExist {
		return fmt.Errorf("deleting object %s from GCS: %w", id, err)
	}
	return nil
}

func (b *GCPBackend) readWhole(ctx context.Context, id idgen.ID) ([]byte, error) {
	r, err := b.client.NewReader(ctx, b.bucket, b.objectName(id))
	if err != nil {
		if err == gcs.ErrObjectNotExist {
			return nil, shoalerr.Wrap(shoalerr.NotFound, "object %s", id)
		}
		return nil, fmt.Errorf("reading object %s from GCS: %w", id, err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (b *GCPBackend) WriteBlock(ctx context.Context, id idgen.ID, offset int64, data []byte, last bool) error {
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

	w := b.client.NewWriter(ctx, b.bucket, b.objectName(id))
	if _, err := w.Write(current); err != nil {
		w.Close()
		return fmt.Errorf("writing block for object %s to GCS: %w", id, err)
	}
	return w.Close()
}

func (b *GCPBackend) ReadBlock(ctx context.Context, id idgen.ID, offset, size int64) ([]byte, error) {
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

func (b *GCPBackend) Exists(ctx context.Context, id idgen.ID) (bool, error) {
	_, err := b.client.Attrs(ctx, b.bucket, b.objectName(id))
	if err != nil {
		if err == gcs.ErrObjectNotExist {
			return false, nil
		}
		return false, fmt.Errorf("checking object %s existence in GCS: %w", id, err)
	}
	return true, nil
}

func (b *GCPBackend) HealthCheck(ctx context.Context) error {
	_, err := b.client.Attrs(ctx, b.bucket, ".healthcheck")
	if err != nil && err != gcs.ErrObjectNotExist {
		return err
	}
	return nil
}
