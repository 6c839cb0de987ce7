package objengine

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/shoalstore/shoalstore/internal/catalog"
	"github.com/shoalstore/shoalstore/internal/errors"
	"github.com/shoalstore/shoalstore/internal/idgen"
	"github.com/shoalstore/shoalstore/internal/index"
	"github.com/shoalstore/shoalstore/internal/writer"
)

// PutParams carries everything a PUT needs beyond the bytes themselves.
type PutParams struct {
	TenantBucket string
	Owner        string
	Name         string
	Size         int64 // declared size; Create consults the layout catalog with it
	Attributes   map[string]string
	Bucket       *catalog.BucketRecord
}

// PutObject implements spec §4.5.1 (unversioned bucket) and §4.5.2
// (versioned bucket), dispatching on the bucket's versioning state.
func (s *Store) PutObject(ctx context.Context, p PutParams, r io.Reader) (*catalog.DirEntry, error) {
	if ok, err := s.quota.Check(ctx, p.Owner, p.TenantBucket, p.Size, 1); err != nil {
		return nil, fmt.Errorf("objengine: quota check: %w", err)
	} else if !ok {
		return nil, errors.Wrap(errors.InvalidArgument, "quota exceeded for %s", p.Owner)
	}

	size, etag, meta, err := s.streamIntoObject(ctx, p.Size, r)
	if err != nil {
		return nil, err
	}

	entry := &catalog.DirEntry{
		Name:     p.Name,
		Mtime:    time.Now().UTC(),
		Size:     size,
		Etag:     etag,
		Owner:    p.Owner,
		Category: catalog.CategoryMain,
		Meta:     meta,
		Attrs:    p.Attributes,
	}

	switch bucketVersioningState(p.Bucket) {
	case versioningDisabled:
		return s.putUnversioned(ctx, p, entry)
	default:
		return s.putVersioned(ctx, p, entry)
	}
}

// streamIntoObject writes r's bytes into a freshly created object via the
// Writer Pipeline, returning the final size, MD5 ETag, and persisted
// ObjectMeta. A zero-size object gets no underlying byte container at all
// (spec §3.7).
func (s *Store) streamIntoObject(ctx context.Context, declaredSize int64, r io.Reader) (int64, string, catalog.ObjectMeta, error) {
	if declaredSize == 0 {
		return 0, emptyMD5, catalog.ObjectMeta{}, nil
	}

	objMeta, err := s.objGW.Create(ctx, declaredSize)
	if err != nil {
		return 0, "", catalog.ObjectMeta{}, fmt.Errorf("objengine: creating object: %w", err)
	}

	pipeline := writer.New(s.objGW, objMeta)
	buf := make([]byte, writer.MaxAccSize)
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			if err := pipeline.Process(ctx, buf[:n]); err != nil {
				return 0, "", catalog.ObjectMeta{}, fmt.Errorf("objengine: streaming object body: %w", err)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return 0, "", catalog.ObjectMeta{}, fmt.Errorf("objengine: reading object body: %w", rerr)
		}
	}
	if err := pipeline.Process(ctx, nil); err != nil {
		return 0, "", catalog.ObjectMeta{}, fmt.Errorf("objengine: flushing object body: %w", err)
	}

	return pipeline.Offset(), pipeline.ETag(), fromObjstoreMeta(objMeta), nil
}

// putUnversioned implements spec §4.5.1.
func (s *Store) putUnversioned(ctx context.Context, p PutParams, entry *catalog.DirEntry) (*catalog.DirEntry, error) {
	idxName := catalog.BucketIndexName(p.TenantBucket)
	key := catalog.ObjectKey(p.Name, "")

	// Step 3: if a null-version record already exists, remove its byte
	// object and index entry first (remove-then-insert; atomic replacement
	// is not assumed).
	if raw, err := s.idx.Get(ctx, idxName, key); err == nil {
		old, derr := catalog.DecodeDirEntry(raw)
		if derr == nil {
			if hasBytes(old) {
				if err := s.deleteBytes(ctx, "put-replace", old.Meta, old.Size); err != nil {
					return nil, fmt.Errorf("objengine: deleting predecessor bytes: %w", err)
				}
			}
			if err := s.idx.Del(ctx, idxName, key); err != nil && !index.IsNotFound(err) {
				return nil, fmt.Errorf("objengine: deleting predecessor entry: %w", err)
			}
			if !old.IsDeleteMarker() && old.Category == catalog.CategoryMain {
				if err := catalog.UpdateStats(ctx, s.idx, p.Owner, p.TenantBucket, catalog.CategoryMain,
					-old.Size, -catalog.RoundUp(old.Size, s.unitSizeFor(old)), -1); err != nil {
					return nil, fmt.Errorf("objengine: subtracting predecessor stats: %w", err)
				}
			}
		}
	} else if !errors.IsNotFound(err) {
		return nil, fmt.Errorf("objengine: reading existing null-version entry: %w", err)
	}

	encoded, err := catalog.EncodeDirEntry(entry)
	if err != nil {
		return nil, fmt.Errorf("objengine: encoding DirEntry: %w", err)
	}
	if err := s.idx.Put(ctx, idxName, key, encoded, true); err != nil {
		return nil, fmt.Errorf("objengine: writing DirEntry: %w", err)
	}
	s.cachePutEntry(ctx, p.TenantBucket, key, encoded, entry.Mtime)

	roundedSize := catalog.RoundUp(entry.Size, s.unitSizeFor(entry))
	if err := catalog.UpdateStats(ctx, s.idx, p.Owner, p.TenantBucket, catalog.CategoryMain, entry.Size, roundedSize, 1); err != nil {
		return nil, fmt.Errorf("objengine: updating stats: %w", err)
	}
	return entry, nil
}

// putVersioned implements spec §4.5.2.
func (s *Store) putVersioned(ctx context.Context, p PutParams, entry *catalog.DirEntry) (*catalog.DirEntry, error) {
	instance, err := idgen.NewVersionInstance()
	if err != nil {
		return nil, fmt.Errorf("objengine: generating version instance: %w", err)
	}
	entry.Instance = instance
	entry.Flags = catalog.FlagVersioned | catalog.FlagCurrent

	idxName := catalog.BucketIndexName(p.TenantBucket)
	key := catalog.ObjectKey(p.Name, instance)

	encoded, err := catalog.EncodeDirEntry(entry)
	if err != nil {
		return nil, fmt.Errorf("objengine: encoding DirEntry: %w", err)
	}
	if err := s.idx.Put(ctx, idxName, key, encoded, true); err != nil {
		return nil, fmt.Errorf("objengine: writing DirEntry: %w", err)
	}
	s.cachePutEntry(ctx, p.TenantBucket, key, encoded, entry.Mtime)

	if err := s.clearPredecessorCurrent(ctx, p.TenantBucket, p.Name, instance); err != nil {
		return nil, err
	}

	roundedSize := catalog.RoundUp(entry.Size, s.unitSizeFor(entry))
	if err := catalog.UpdateStats(ctx, s.idx, p.Owner, p.TenantBucket, catalog.CategoryMain, entry.Size, roundedSize, 1); err != nil {
		return nil, fmt.Errorf("objengine: updating stats: %w", err)
	}
	return entry, nil
}

// clearPredecessorCurrent implements the reconcile step of spec §4.5.2 step
// 3: a targeted NEXT over the first two records under name's key prefix,
// clearing CURRENT on whichever of them (other than the instance just
// written) still carries it. This is a best-effort, race-tolerant scan per
// spec §5's note on invariant 3.6.1.
func (s *Store) clearPredecessorCurrent(ctx context.Context, tenantBucket, name, justWrittenInstance string) error {
	idxName := catalog.BucketIndexName(tenantBucket)
	prefix := catalog.ObjectKey(name, "")

	entries, err := s.idx.Next(ctx, idxName, prefix, 2, prefix, nil)
	if err != nil {
		return fmt.Errorf("objengine: scanning predecessors: %w", err)
	}
	for _, e := range entries {
		if e.Value == nil {
			continue
		}
		candidate, err := catalog.DecodeDirEntry(e.Value)
		if err != nil || candidate.Name != name || candidate.Instance == justWrittenInstance {
			continue
		}
		if !candidate.IsCurrent() {
			continue
		}
		candidate.Flags &^= catalog.FlagCurrent
		encoded, err := catalog.EncodeDirEntry(candidate)
		if err != nil {
			return fmt.Errorf("objengine: re-encoding predecessor: %w", err)
		}
		if err := s.idx.Put(ctx, idxName, e.Key, encoded, true); err != nil {
			return fmt.Errorf("objengine: clearing predecessor CURRENT flag: %w", err)
		}
		s.cachePutEntry(ctx, tenantBucket, e.Key, encoded, candidate.Mtime)
	}
	return nil
}

// unitSizeFor resolves the layout unit size used to round a DirEntry's
// accounted size (spec §4.4); zero-byte objects have no layout at all and
// round to 0 regardless (RoundUp already special-cases size==0).
func (s *Store) unitSizeFor(entry *catalog.DirEntry) int64 {
	if entry.Size == 0 {
		return 0
	}
	layout, err := s.layouts.Get(entry.Meta.LayoutID)
	if err != nil {
		return 0
	}
	return layout.UnitSize
}
