package multipart

import (
	"context"
	"fmt"

	"github.com/shoalstore/shoalstore/internal/catalog"
	"github.com/shoalstore/shoalstore/internal/index"
)

// AbortParams carries what Abort needs beyond the Store's own wiring.
type AbortParams struct {
	TenantBucket string
	Owner        string
	Name         string
	UploadID     string
}

// Abort implements spec §4.6.6: remove the in-progress record, delete
// every part's byte object (separate strategy) or the composite (tiered),
// delete every multiparts record under the upload, and subtract the
// accumulated size from stats.
func (s *Store) Abort(ctx context.Context, p AbortParams) error {
	rec, key, err := s.getInProgress(ctx, p.TenantBucket, p.Name, p.UploadID)
	if err != nil {
		return err
	}

	parts, err := s.listPartsAscending(ctx, p.TenantBucket, p.Name, p.UploadID)
	if err != nil {
		return err
	}

	idxName := catalog.MultipartsInProgressIndex(p.TenantBucket)
	if err := s.idx.Del(ctx, idxName, key); err != nil && !index.IsNotFound(err) {
		return fmt.Errorf("multipart: deleting in-progress record: %w", err)
	}

	if rec.Tiered {
		live := toObjstoreMeta(rec.Meta)
		if err := s.objGW.Delete(ctx, &live); err != nil {
			return fmt.Errorf("multipart: deleting composite object: %w", err)
		}
	} else {
		for _, part := range parts {
			if err := s.deleteMultipartBytes(ctx, p.TenantBucket, p.UploadID, part.Meta, part.Size); err != nil {
				return fmt.Errorf("multipart: deleting part %d bytes: %w", part.Num, err)
			}
		}
	}

	partsIdx := catalog.MultipartsIndex(p.TenantBucket)
	for _, part := range parts {
		partKey := catalog.MultipartPartKey(p.Name, p.UploadID, part.Num)
		if err := s.idx.Del(ctx, partsIdx, partKey); err != nil && !index.IsNotFound(err) {
			return fmt.Errorf("multipart: deleting part %d record: %w", part.Num, err)
		}
	}

	var totalSize, totalRounded int64
	for _, part := range parts {
		totalSize += part.Size
		totalRounded += part.AccountedSize
	}
	if err := catalog.UpdateStats(ctx, s.idx, p.Owner, p.TenantBucket, catalog.CategoryMultiMeta,
		-totalSize, -totalRounded, -1); err != nil {
		return fmt.Errorf("multipart: subtracting multimeta stats: %w", err)
	}
	return nil
}
