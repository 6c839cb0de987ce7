package objengine

import (
	"context"
	"fmt"
	"time"

	"github.com/shoalstore/shoalstore/internal/catalog"
	"github.com/shoalstore/shoalstore/internal/errors"
)

// Conditions mirrors the standard S3 conditional-request headers (spec
// §4.5.4 step 3).
type Conditions struct {
	IfMatch           string
	IfNoneMatch       string
	IfModifiedSince   time.Time // zero value means unset
	IfUnmodifiedSince time.Time
}

func (c Conditions) check(entry *catalog.DirEntry) error {
	if c.IfMatch != "" && c.IfMatch != entry.Etag {
		return errors.Wrap(errors.PreconditionFailed, "if-match %q does not match etag %q", c.IfMatch, entry.Etag)
	}
	if c.IfNoneMatch != "" && c.IfNoneMatch == entry.Etag {
		return errors.Wrap(errors.PreconditionFailed, "if-none-match %q matches etag %q", c.IfNoneMatch, entry.Etag)
	}
	if !c.IfModifiedSince.IsZero() && !entry.Mtime.After(c.IfModifiedSince) {
		return errors.Wrap(errors.PreconditionFailed, "not modified since %s", c.IfModifiedSince)
	}
	if !c.IfUnmodifiedSince.IsZero() && entry.Mtime.After(c.IfUnmodifiedSince) {
		return errors.Wrap(errors.PreconditionFailed, "modified since %s", c.IfUnmodifiedSince)
	}
	return nil
}

// resolveRecord implements spec §4.5.4 steps 1-2: an explicit instance goes
// straight to its key; otherwise a targeted NEXT over the first two
// records under name's key prefix picks the one with maximal mtime.
func (s *Store) resolveRecord(ctx context.Context, tenantBucket, name, instance string) (*catalog.DirEntry, []byte, error) {
	idxName := catalog.BucketIndexName(tenantBucket)

	if instance != "" {
		key := catalog.ObjectKey(name, instance)
		if s.caches != nil {
			if raw, _, ok := s.caches.Objects.Get(objectCacheKey(tenantBucket, key)); ok {
				if entry, err := catalog.DecodeDirEntry(raw); err == nil {
					return entry, key, nil
				}
			}
		}
		raw, err := s.idx.Get(ctx, idxName, key)
		if err != nil {
			return nil, nil, err
		}
		entry, err := catalog.DecodeDirEntry(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("objengine: decoding entry: %w", err)
		}
		s.cachePutEntry(ctx, tenantBucket, key, raw, entry.Mtime)
		return entry, key, nil
	}

	prefix := catalog.ObjectKey(name, "")
	entries, err := s.idx.Next(ctx, idxName, prefix, 2, prefix, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("objengine: resolving current version: %w", err)
	}
	entry, key, found := selectActiveEntry(entries, name)
	if !found {
		return nil, nil, errors.Wrap(errors.NotFound, "object %q not found", name)
	}
	return entry, key, nil
}

// HeadObject implements spec §4.5.4 steps 1-2, including the delete-marker
// not-found/method-not-allowed split.
func (s *Store) HeadObject(ctx context.Context, tenantBucket, name, instance string) (*catalog.DirEntry, error) {
	entry, _, err := s.resolveRecord(ctx, tenantBucket, name, instance)
	if err != nil {
		return nil, err
	}
	if entry.IsDeleteMarker() {
		if instance == "" {
			return nil, errors.Wrap(errors.NotFound, "object %q not found (current version is a delete marker)", name)
		}
		return nil, errors.Wrap(errors.NotAllowed, "object %q instance %q is a delete marker", name, instance)
	}
	return entry, nil
}

// GetObject implements spec §4.5.4: resolves the record, applies
// conditional checks, and (for a plain, non-MultiMeta object) streams
// [start,end] through callback via the Object Gateway. MultiMeta (multipart)
// objects are the multipart engine's responsibility; GetObject returns the
// resolved entry to the caller without streaming so it can dispatch.
func (s *Store) GetObject(ctx context.Context, tenantBucket, name, instance string, cond Conditions, start, end int64, callback func([]byte) error) (*catalog.DirEntry, error) {
	entry, err := s.HeadObject(ctx, tenantBucket, name, instance)
	if err != nil {
		return nil, err
	}
	if err := cond.check(entry); err != nil {
		return entry, err
	}
	if entry.Category == catalog.CategoryMultiMeta {
		return entry, nil
	}
	if entry.Size == 0 || callback == nil {
		return entry, nil
	}

	e := end
	if e < 0 || e >= entry.Size {
		e = entry.Size - 1
	}
	meta := toObjstoreMeta(entry.Meta)
	if err := s.objGW.Read(ctx, &meta, start, e, callback); err != nil {
		return entry, fmt.Errorf("objengine: reading object bytes: %w", err)
	}
	return entry, nil
}
