package objengine

import (
	"context"
	"fmt"

	"github.com/shoalstore/shoalstore/internal/catalog"
	"github.com/shoalstore/shoalstore/internal/errors"
)

// GetObjectAttrs returns the current version's user-metadata/tagging map
// without touching its bytes (spec §3.3's DirEntry+attrs+ObjectMeta model).
func (s *Store) GetObjectAttrs(ctx context.Context, tenantBucket, name, instance string) (map[string]string, error) {
	entry, err := s.HeadObject(ctx, tenantBucket, name, instance)
	if err != nil {
		return nil, err
	}
	return entry.Attrs, nil
}

// SetObjectAttrs rewrites a version's attrs map in place, leaving its bytes,
// size, etag, and mtime untouched. This is the dedicated "refresh attributes
// without a same-object copy" path CopyObject's same-object rejection points
// callers at (SPEC_FULL.md's resolution of Open Question 5).
func (s *Store) SetObjectAttrs(ctx context.Context, tenantBucket, name, instance string, attrs map[string]string) (*catalog.DirEntry, error) {
	entry, key, err := s.resolveRecord(ctx, tenantBucket, name, instance)
	if err != nil {
		return nil, err
	}
	if entry.IsDeleteMarker() {
		return nil, errors.Wrap(errors.NotFound, "object %q is a delete marker", name)
	}

	entry.Attrs = attrs
	encoded, err := catalog.EncodeDirEntry(entry)
	if err != nil {
		return nil, fmt.Errorf("objengine: encoding entry with updated attrs: %w", err)
	}
	idxName := catalog.BucketIndexName(tenantBucket)
	if err := s.idx.Put(ctx, idxName, key, encoded, true); err != nil {
		return nil, fmt.Errorf("objengine: writing updated attrs: %w", err)
	}
	s.cachePutEntry(ctx, tenantBucket, key, encoded, entry.Mtime)
	return entry, nil
}
