package objengine

import (
	"context"
	"fmt"
	"time"

	"github.com/shoalstore/shoalstore/internal/catalog"
	"github.com/shoalstore/shoalstore/internal/errors"
	"github.com/shoalstore/shoalstore/internal/idgen"
	"github.com/shoalstore/shoalstore/internal/index"
)

// DeleteResult reports what a DeleteObject call actually did, since
// versioned/suspended buckets may write a delete-marker instead of
// removing anything (spec §4.5.3).
type DeleteResult struct {
	DeleteMarkerCreated bool
	DeleteMarkerEntry   *catalog.DirEntry
}

// DeleteObject implements the four sub-cases of spec §4.5.3, dispatched on
// (bucket.versioned, request.has_instance).
func (s *Store) DeleteObject(ctx context.Context, tenantBucket, owner, name, instance string, bucket *catalog.BucketRecord) (*DeleteResult, error) {
	switch state := bucketVersioningState(bucket); {
	case state == versioningDisabled:
		return &DeleteResult{}, s.deleteUnversioned(ctx, tenantBucket, owner, name)
	case instance != "":
		return &DeleteResult{}, s.deleteVersionedWithInstance(ctx, tenantBucket, owner, name, instance)
	case state == versioningSuspended:
		return s.deleteSuspendedNoInstance(ctx, tenantBucket, owner, name)
	default:
		return s.deleteVersionedNoInstance(ctx, tenantBucket, owner, name)
	}
}

// deleteUnversioned implements the "unversioned" row: remove the
// null-version DirEntry, delete its bytes, and subtract stats.
func (s *Store) deleteUnversioned(ctx context.Context, tenantBucket, owner, name string) error {
	idxName := catalog.BucketIndexName(tenantBucket)
	key := catalog.ObjectKey(name, "")

	raw, err := s.idx.Get(ctx, idxName, key)
	if err != nil {
		return fmt.Errorf("objengine: reading entry to delete: %w", err)
	}
	entry, err := catalog.DecodeDirEntry(raw)
	if err != nil {
		return fmt.Errorf("objengine: decoding entry to delete: %w", err)
	}

	if err := s.idx.Del(ctx, idxName, key); err != nil && !index.IsNotFound(err) {
		return fmt.Errorf("objengine: deleting entry: %w", err)
	}
	s.cacheInvalidate(ctx, tenantBucket, key)

	if hasBytes(entry) {
		if err := s.deleteBytes(ctx, "delete", entry.Meta, entry.Size); err != nil {
			return fmt.Errorf("objengine: deleting bytes: %w", err)
		}
	}
	if entry.Category == catalog.CategoryMain && !entry.IsDeleteMarker() {
		if err := catalog.UpdateStats(ctx, s.idx, owner, tenantBucket, catalog.CategoryMain,
			-entry.Size, -catalog.RoundUp(entry.Size, s.unitSizeFor(entry)), -1); err != nil {
			return fmt.Errorf("objengine: subtracting stats: %w", err)
		}
	}
	return nil
}

// deleteVersionedWithInstance implements the "versioned, instance given"
// row: remove that specific DirEntry, and if it was CURRENT, promote the
// newest remaining version.
func (s *Store) deleteVersionedWithInstance(ctx context.Context, tenantBucket, owner, name, instance string) error {
	idxName := catalog.BucketIndexName(tenantBucket)
	key := catalog.ObjectKey(name, instance)

	raw, err := s.idx.Get(ctx, idxName, key)
	if err != nil {
		return fmt.Errorf("objengine: reading entry to delete: %w", err)
	}
	entry, err := catalog.DecodeDirEntry(raw)
	if err != nil {
		return fmt.Errorf("objengine: decoding entry to delete: %w", err)
	}

	if err := s.idx.Del(ctx, idxName, key); err != nil && !index.IsNotFound(err) {
		return fmt.Errorf("objengine: deleting entry: %w", err)
	}
	s.cacheInvalidate(ctx, tenantBucket, key)

	if hasBytes(entry) {
		if err := s.deleteBytes(ctx, "delete", entry.Meta, entry.Size); err != nil {
			return fmt.Errorf("objengine: deleting bytes: %w", err)
		}
	}
	if entry.Category == catalog.CategoryMain && !entry.IsDeleteMarker() {
		if err := catalog.UpdateStats(ctx, s.idx, owner, tenantBucket, catalog.CategoryMain,
			-entry.Size, -catalog.RoundUp(entry.Size, s.unitSizeFor(entry)), -1); err != nil {
			return fmt.Errorf("objengine: subtracting stats: %w", err)
		}
	}

	if entry.IsCurrent() {
		if err := s.promoteNewestToCurrent(ctx, tenantBucket, name); err != nil {
			return err
		}
	}
	return nil
}

// promoteNewestToCurrent re-fetches the newest remaining version of name
// (by mtime, among the first two records under its key prefix, the same
// selection rule GET/HEAD uses) and sets its CURRENT flag if not already
// set.
func (s *Store) promoteNewestToCurrent(ctx context.Context, tenantBucket, name string) error {
	idxName := catalog.BucketIndexName(tenantBucket)
	prefix := catalog.ObjectKey(name, "")

	entries, err := s.idx.Next(ctx, idxName, prefix, 2, prefix, nil)
	if err != nil {
		return fmt.Errorf("objengine: scanning for newest remaining version: %w", err)
	}
	newest, key, found := selectActiveEntry(entries, name)
	if !found || newest.IsCurrent() {
		return nil
	}
	newest.Flags |= catalog.FlagCurrent
	encoded, err := catalog.EncodeDirEntry(newest)
	if err != nil {
		return fmt.Errorf("objengine: re-encoding promoted entry: %w", err)
	}
	if err := s.idx.Put(ctx, idxName, key, encoded, true); err != nil {
		return fmt.Errorf("objengine: promoting newest version to CURRENT: %w", err)
	}
	s.cachePutEntry(ctx, tenantBucket, key, encoded, newest.Mtime)
	return nil
}

// deleteVersionedNoInstance implements the "versioned, no instance" row:
// insert a delete-marker as a brand-new CURRENT version, clearing CURRENT
// on the predecessor. No byte object is removed and stats are untouched
// (delete-markers are never counted, spec §4.5.3).
func (s *Store) deleteVersionedNoInstance(ctx context.Context, tenantBucket, owner, name string) (*DeleteResult, error) {
	instance, err := idgen.NewVersionInstance()
	if err != nil {
		return nil, fmt.Errorf("objengine: generating delete-marker instance: %w", err)
	}
	marker := &catalog.DirEntry{
		Name:     name,
		Instance: instance,
		Mtime:    time.Now().UTC(),
		Owner:    owner,
		Category: catalog.CategoryMain,
		Flags:    catalog.FlagDeleteMarker | catalog.FlagVersioned | catalog.FlagCurrent,
	}

	idxName := catalog.BucketIndexName(tenantBucket)
	key := catalog.ObjectKey(name, instance)
	encoded, err := catalog.EncodeDirEntry(marker)
	if err != nil {
		return nil, fmt.Errorf("objengine: encoding delete marker: %w", err)
	}
	if err := s.idx.Put(ctx, idxName, key, encoded, true); err != nil {
		return nil, fmt.Errorf("objengine: writing delete marker: %w", err)
	}
	s.cachePutEntry(ctx, tenantBucket, key, encoded, marker.Mtime)

	if err := s.clearPredecessorCurrent(ctx, tenantBucket, name, instance); err != nil {
		return nil, err
	}
	return &DeleteResult{DeleteMarkerCreated: true, DeleteMarkerEntry: marker}, nil
}

// deleteSuspendedNoInstance implements the "suspended" row: behave like
// "no instance" but write the delete-marker as a null-version record,
// first removing any existing null-version predecessor.
func (s *Store) deleteSuspendedNoInstance(ctx context.Context, tenantBucket, owner, name string) (*DeleteResult, error) {
	if err := s.removeNullPredecessor(ctx, tenantBucket, owner, name); err != nil {
		return nil, err
	}

	idxName := catalog.BucketIndexName(tenantBucket)
	nullKey := catalog.ObjectKey(name, "")
	marker := &catalog.DirEntry{
		Name:     name,
		Instance: "",
		Mtime:    time.Now().UTC(),
		Owner:    owner,
		Category: catalog.CategoryMain,
		Flags:    catalog.FlagDeleteMarker | catalog.FlagVersioned | catalog.FlagCurrent,
	}
	encoded, err := catalog.EncodeDirEntry(marker)
	if err != nil {
		return nil, fmt.Errorf("objengine: encoding suspended delete marker: %w", err)
	}
	if err := s.idx.Put(ctx, idxName, nullKey, encoded, true); err != nil {
		return nil, fmt.Errorf("objengine: writing suspended delete marker: %w", err)
	}
	s.cachePutEntry(ctx, tenantBucket, nullKey, encoded, marker.Mtime)

	if err := s.clearPredecessorCurrent(ctx, tenantBucket, name, ""); err != nil {
		return nil, err
	}
	return &DeleteResult{DeleteMarkerCreated: true, DeleteMarkerEntry: marker}, nil
}

// removeNullPredecessor deletes the null-version record for name, if one
// exists, along with its bytes and stats contribution. Shared by
// deleteSuspendedNoInstance's predecessor-removal step and
// FinalizeMultipartEntry's suspended-bucket reconciliation (spec §4.6.4
// step 6's "for suspended, also remove null predecessor").
func (s *Store) removeNullPredecessor(ctx context.Context, tenantBucket, owner, name string) error {
	idxName := catalog.BucketIndexName(tenantBucket)
	nullKey := catalog.ObjectKey(name, "")

	raw, err := s.idx.Get(ctx, idxName, nullKey)
	if errors.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("objengine: reading null-version predecessor: %w", err)
	}
	old, err := catalog.DecodeDirEntry(raw)
	if err != nil {
		return fmt.Errorf("objengine: decoding null-version predecessor: %w", err)
	}

	if hasBytes(old) {
		if err := s.deleteBytes(ctx, "delete-suspended", old.Meta, old.Size); err != nil {
			return fmt.Errorf("objengine: deleting null-version predecessor bytes: %w", err)
		}
	}
	if err := s.idx.Del(ctx, idxName, nullKey); err != nil && !index.IsNotFound(err) {
		return fmt.Errorf("objengine: deleting null-version predecessor: %w", err)
	}
	s.cacheInvalidate(ctx, tenantBucket, nullKey)
	if old.Category == catalog.CategoryMain && !old.IsDeleteMarker() {
		if err := catalog.UpdateStats(ctx, s.idx, owner, tenantBucket, catalog.CategoryMain,
			-old.Size, -catalog.RoundUp(old.Size, s.unitSizeFor(old)), -1); err != nil {
			return fmt.Errorf("objengine: subtracting null-version predecessor stats: %w", err)
		}
	}
	return nil
}

// FinalizeMultipartEntry writes an already-assembled DirEntry (produced by
// the multipart engine's Complete operation) into the bucket index,
// applying the same unversioned-replacement / predecessor-CURRENT
// reconciliation / stats bookkeeping an ordinary PUT performs (spec
// §4.6.4 steps 5-7), without re-streaming any bytes through the Writer
// Pipeline. For suspended buckets it additionally removes any null-version
// predecessor, which ordinary PUT does not do (spec §4.6.4 step 6).
func (s *Store) FinalizeMultipartEntry(ctx context.Context, tenantBucket, owner string, bucket *catalog.BucketRecord, entry *catalog.DirEntry) (*catalog.DirEntry, error) {
	p := PutParams{TenantBucket: tenantBucket, Owner: owner, Name: entry.Name, Size: entry.Size, Bucket: bucket}

	if bucketVersioningState(bucket) == versioningDisabled {
		return s.putUnversioned(ctx, p, entry)
	}

	result, err := s.putVersioned(ctx, p, entry)
	if err != nil {
		return nil, err
	}
	if bucketVersioningState(bucket) == versioningSuspended {
		if err := s.removeNullPredecessor(ctx, tenantBucket, owner, entry.Name); err != nil {
			return nil, err
		}
	}
	return result, nil
}
