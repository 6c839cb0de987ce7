package sal

import (
	"context"
	"io"

	"github.com/shoalstore/shoalstore/internal/catalog"
	"github.com/shoalstore/shoalstore/internal/objengine"
)

// PutObject delegates to the Object Engine (spec §4.5.1/§4.5.2).
func (s *Store) PutObject(ctx context.Context, p objengine.PutParams, r io.Reader) (*catalog.DirEntry, error) {
	return s.objects.PutObject(ctx, p, r)
}

// GetObject delegates to the Object Engine (spec §4.5.4). This is the
// capability set's "read-op": a conditional, range-scoped streaming read.
func (s *Store) GetObject(ctx context.Context, tenantBucket, name, instance string, cond objengine.Conditions, start, end int64, callback func([]byte) error) (*catalog.DirEntry, error) {
	return s.objects.GetObject(ctx, tenantBucket, name, instance, cond, start, end, callback)
}

// HeadObject delegates to the Object Engine (spec §4.5.4).
func (s *Store) HeadObject(ctx context.Context, tenantBucket, name, instance string) (*catalog.DirEntry, error) {
	return s.objects.HeadObject(ctx, tenantBucket, name, instance)
}

// DeleteObject delegates to the Object Engine (spec §4.5.3). This is the
// capability set's "delete-op".
func (s *Store) DeleteObject(ctx context.Context, tenantBucket, owner, name, instance string, bucket *catalog.BucketRecord) (*objengine.DeleteResult, error) {
	return s.objects.DeleteObject(ctx, tenantBucket, owner, name, instance, bucket)
}

// CopyObject delegates to the Object Engine (spec §4.5.6).
func (s *Store) CopyObject(ctx context.Context, p objengine.CopyParams) (*catalog.DirEntry, error) {
	return s.objects.CopyObject(ctx, p)
}

// GetObjectAttrs delegates to the Object Engine.
func (s *Store) GetObjectAttrs(ctx context.Context, tenantBucket, name, instance string) (map[string]string, error) {
	return s.objects.GetObjectAttrs(ctx, tenantBucket, name, instance)
}

// SetObjectAttrs delegates to the Object Engine.
func (s *Store) SetObjectAttrs(ctx context.Context, tenantBucket, name, instance string, attrs map[string]string) (*catalog.DirEntry, error) {
	return s.objects.SetObjectAttrs(ctx, tenantBucket, name, instance, attrs)
}
