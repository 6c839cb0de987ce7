package sal

import (
	"context"
	"fmt"
	"time"

	"github.com/shoalstore/shoalstore/internal/catalog"
	"github.com/shoalstore/shoalstore/internal/errors"
	"github.com/shoalstore/shoalstore/internal/index"
	"github.com/shoalstore/shoalstore/internal/objengine"
)

// GetBucket reads the bucket record for (tenant, bucket), preferring the
// Metadata Cache's bucket-instance partition over a round trip to the
// Index Gateway.
func (s *Store) GetBucket(ctx context.Context, tenant, bucket string) (*catalog.BucketRecord, error) {
	key := catalog.TenantBucketKey(tenant, bucket)
	if s.caches != nil {
		if raw, _, ok := s.caches.BucketInstances.Get(key); ok {
			return catalog.DecodeBucketRecord(raw)
		}
	}
	raw, err := s.idx.Get(ctx, catalog.IndexBucketInstances, []byte(key))
	if err != nil {
		return nil, fmt.Errorf("sal: loading bucket %s: %w", key, err)
	}
	rec, err := catalog.DecodeBucketRecord(raw)
	if err != nil {
		return nil, err
	}
	if s.caches != nil {
		s.caches.BucketInstances.Put(ctx, key, raw, time.Now())
	}
	return rec, nil
}

// CreateBucket writes a new BucketRecord, rejecting if one already exists
// for this (tenant, bucket), and performs the rest of spec §3.7's
// create_bucket lifecycle: an entry in the owner's user-info index and an
// empty stats header in the owner's user-stats index. The bucket's own
// bucket-index and multipart indices need no explicit creation step; this
// module's Index Gateway backends materialize a named index on its first
// write (spec §3.3's "created on demand").
func (s *Store) CreateBucket(ctx context.Context, rec *catalog.BucketRecord) error {
	tenantBucket := catalog.TenantBucketKey(rec.Tenant, rec.Bucket)
	encoded, err := catalog.EncodeBucketRecord(rec)
	if err != nil {
		return fmt.Errorf("sal: encoding new bucket record: %w", err)
	}
	if err := s.idx.Put(ctx, catalog.IndexBucketInstances, []byte(tenantBucket), encoded, false); err != nil {
		return fmt.Errorf("sal: creating bucket %s: %w", tenantBucket, err)
	}

	entry := &catalog.BucketEntry{Bucket: rec.Bucket, Ctime: rec.Mtime}
	entryEncoded, err := catalog.EncodeBucketEntry(entry)
	if err != nil {
		return fmt.Errorf("sal: encoding bucket entry for %s: %w", tenantBucket, err)
	}
	if err := s.idx.Put(ctx, catalog.UserInfoIndex(rec.Owner), []byte(rec.Bucket), entryEncoded, true); err != nil {
		return fmt.Errorf("sal: registering bucket %s under owner %s: %w", tenantBucket, rec.Owner, err)
	}

	header := &catalog.BucketHeader{Bucket: rec.Bucket, Stats: make(map[catalog.Category]catalog.CategoryStats)}
	headerEncoded, err := catalog.EncodeBucketHeader(header)
	if err != nil {
		return fmt.Errorf("sal: encoding stats header for %s: %w", tenantBucket, err)
	}
	if err := s.idx.Put(ctx, catalog.UserStatsIndex(rec.Owner), []byte(rec.Bucket), headerEncoded, true); err != nil {
		return fmt.Errorf("sal: creating stats header for %s: %w", tenantBucket, err)
	}
	return nil
}

// RemoveBucket deletes a bucket's record and owner-side bookkeeping, after
// verifying it holds no object versions and no in-progress multipart
// uploads (spec §3.7: "destroyed by remove_bucket after all contained
// objects are deleted or explicitly purged"). Callers that want to purge
// in-progress uploads first should call AbortAllMultipartUploads.
func (s *Store) RemoveBucket(ctx context.Context, tenant, bucket, owner string) error {
	tenantBucket := catalog.TenantBucketKey(tenant, bucket)

	empty, err := indexIsEmpty(ctx, s.idx, catalog.BucketIndexName(tenantBucket))
	if err != nil {
		return err
	}
	if !empty {
		return errors.Wrap(errors.NotEmpty, "bucket %s still contains objects", tenantBucket)
	}
	empty, err = indexIsEmpty(ctx, s.idx, catalog.MultipartsInProgressIndex(tenantBucket))
	if err != nil {
		return err
	}
	if !empty {
		return errors.Wrap(errors.NotEmpty, "bucket %s has in-progress multipart uploads", tenantBucket)
	}

	if err := s.idx.Del(ctx, catalog.IndexBucketInstances, []byte(tenantBucket)); err != nil && !index.IsNotFound(err) {
		return fmt.Errorf("sal: removing bucket record %s: %w", tenantBucket, err)
	}
	if err := s.idx.Del(ctx, catalog.UserInfoIndex(owner), []byte(bucket)); err != nil && !index.IsNotFound(err) {
		return fmt.Errorf("sal: removing bucket entry %s for owner %s: %w", bucket, owner, err)
	}
	if err := s.idx.Del(ctx, catalog.UserStatsIndex(owner), []byte(bucket)); err != nil && !index.IsNotFound(err) {
		return fmt.Errorf("sal: removing stats header %s for owner %s: %w", bucket, owner, err)
	}
	if s.caches != nil {
		s.caches.BucketInstances.InvalidateRemove(ctx, tenantBucket)
	}
	return nil
}

func indexIsEmpty(ctx context.Context, idx *index.Gateway, name string) (bool, error) {
	entries, err := idx.Next(ctx, name, nil, 1, nil, nil)
	if err != nil {
		return false, fmt.Errorf("sal: checking %s: %w", name, err)
	}
	return len(entries) == 0, nil
}

// ListBucketsForOwner lists every bucket a user owns, by scanning their
// user-info.<user-id> index (spec §3.3).
func (s *Store) ListBucketsForOwner(ctx context.Context, owner string) ([]*catalog.BucketEntry, error) {
	var out []*catalog.BucketEntry
	cursor := []byte{}
	for {
		entries, err := s.idx.Next(ctx, catalog.UserInfoIndex(owner), cursor, removeScanBatch, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("sal: listing buckets for %s: %w", owner, err)
		}
		for _, e := range entries {
			be, err := catalog.DecodeBucketEntry(e.Value)
			if err != nil {
				return nil, fmt.Errorf("sal: decoding bucket entry: %w", err)
			}
			out = append(out, be)
		}
		if len(entries) < removeScanBatch {
			return out, nil
		}
		cursor = append(append([]byte{}, entries[len(entries)-1].Key...), 0)
	}
}

// ListObjects delegates to the Object Engine (spec §4.5.5).
func (s *Store) ListObjects(ctx context.Context, p objengine.ListParams) (*objengine.ListResult, error) {
	return s.objects.ListObjects(ctx, p)
}
