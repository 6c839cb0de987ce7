// Package multipart implements the Multipart Engine (C6): initiate,
// upload-part, complete, abort, and list-uploads over the two strategies
// spec §4.6 allows (separate-part byte objects, or one composite object
// with parts appended as fixed-offset extents), layered on the same
// Catalog (C4), Object Gateway (C2), and Writer Pipeline (C7) the Object
// Engine (C5) uses.
package multipart

import (
	"context"
	"fmt"

	"github.com/shoalstore/shoalstore/internal/catalog"
	"github.com/shoalstore/shoalstore/internal/errors"
	"github.com/shoalstore/shoalstore/internal/gc"
	"github.com/shoalstore/shoalstore/internal/index"
	"github.com/shoalstore/shoalstore/internal/mcache"
	"github.com/shoalstore/shoalstore/internal/objengine"
	"github.com/shoalstore/shoalstore/internal/objstore"
)

// partSize is PART_SIZE from spec §4.6.3: the fixed byte stride at which
// the tiered strategy places each part within its composite object,
// regardless of the part's actual declared size. Parts smaller than this
// leave a gap; parts larger than this overlap the next part's region. This
// is a known limitation carried over unchanged from the source contract
// (spec §9 Open Question 1), not something this package papers over.
const partSize = 15 * 1024 * 1024

// minPartSize is the minimum size Complete enforces on every part but the
// last (spec §4.6.4 step 2's "min_part_size", left unspecified by name;
// this is the conventional S3 multipart minimum).
const minPartSize = 5 * 1024 * 1024

// Store is the Multipart Engine. tiered selects the store-level strategy
// spec §4.6 says is "chosen at initiation time by a store-level flag
// (tiered_enabled)"; eng is the Object Engine used to write the completed
// object's final DirEntry through the same versioning/stats machinery an
// ordinary PUT uses.
type Store struct {
	idx       *index.Gateway
	objGW     *objstore.Gateway
	layouts   objstore.LayoutCatalog
	caches    *mcache.Store
	gcQueue   *gc.Queue
	gcEnabled bool
	eng       *objengine.Store
	tiered    bool
}

// New builds a Multipart Engine Store. gcQueue may be nil, in which case
// part and composite byte deletes always happen synchronously.
func New(idx *index.Gateway, objGW *objstore.Gateway, layouts objstore.LayoutCatalog, caches *mcache.Store, gcQueue *gc.Queue, gcEnabled bool, eng *objengine.Store, tiered bool) *Store {
	return &Store{idx: idx, objGW: objGW, layouts: layouts, caches: caches, gcQueue: gcQueue, gcEnabled: gcEnabled, eng: eng, tiered: tiered}
}

// multipartMetaKey renders the meta-object key spec §4.6.1 step 2
// describes ("_multipart_<name>.<upload-id>"), used only as a human-
// readable label for logs and GC items; the actual index key is
// catalog.MultipartInProgressKey.
func multipartMetaKey(name, uploadID string) string {
	return "_multipart_" + name + "." + uploadID
}

// toObjstoreMeta and fromObjstoreMeta mirror objengine's own conversions
// between the persisted, layer-handle-free catalog.ObjectMeta and the live
// objstore.ObjectMeta the Object Gateway needs; duplicated here rather
// than imported since objengine's are unexported and this is a distinct
// component operating over the same two types (grounded on
// objengine/engine.go).
func toObjstoreMeta(m catalog.ObjectMeta) objstore.ObjectMeta {
	out := objstore.ObjectMeta{
		ID:               m.ObjectID,
		PlacementVersion: m.PlacementVersion,
		LayoutID:         m.LayoutID,
		IsComposite:      m.IsComposite,
	}
	if m.IsComposite && !m.TopLayerID.IsZero() {
		out.Layers = []objstore.Layer{{ID: m.TopLayerID, Priority: objstore.TopLayerPriority}}
	}
	return out
}

func fromObjstoreMeta(m *objstore.ObjectMeta) catalog.ObjectMeta {
	out := catalog.ObjectMeta{
		ObjectID:         m.ID,
		PlacementVersion: m.PlacementVersion,
		LayoutID:         m.LayoutID,
		IsComposite:      m.IsComposite,
	}
	if m.IsComposite && len(m.Layers) > 0 {
		out.TopLayerID = m.Layers[0].ID
	}
	return out
}

// unitSizeForLayout resolves a layout's unit size for rounding a part's
// accounted size (spec §4.4), mirroring objengine.Store.unitSizeFor.
func (s *Store) unitSizeForLayout(layoutID uint32) int64 {
	layout, err := s.layouts.Get(layoutID)
	if err != nil {
		return 0
	}
	return layout.UnitSize
}

// GetInfo returns the in-progress upload record for (name, uploadID)
// without mutating anything (spec §6.2's Multipart "get-info" row).
func (s *Store) GetInfo(ctx context.Context, tenantBucket, name, uploadID string) (*catalog.MultipartUpload, error) {
	rec, _, err := s.getInProgress(ctx, tenantBucket, name, uploadID)
	return rec, err
}

// getInProgress reads and decodes the in-progress record for (name,
// uploadID), mapping a missing record to errors.NotFound.
func (s *Store) getInProgress(ctx context.Context, tenantBucket, name, uploadID string) (*catalog.MultipartUpload, []byte, error) {
	idxName := catalog.MultipartsInProgressIndex(tenantBucket)
	key := catalog.MultipartInProgressKey(name, uploadID)

	raw, err := s.idx.Get(ctx, idxName, key)
	if err != nil {
		if index.IsNotFound(err) {
			return nil, nil, errors.Wrap(errors.NotFound, "multipart: no upload %s for %s", uploadID, name)
		}
		return nil, nil, fmt.Errorf("multipart: reading in-progress record: %w", err)
	}
	rec, err := catalog.DecodeMultipartUpload(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("multipart: decoding in-progress record: %w", err)
	}
	return rec, key, nil
}

// deleteMultipartBytes removes a part's or composite's underlying byte
// container, preferring the GC enqueue interface over a synchronous delete
// (spec §4.5.3's note that multipart GC items carry `{upload-id, fqn,
// ObjectMeta, size, part-index-name}`).
func (s *Store) deleteMultipartBytes(ctx context.Context, tenantBucket, uploadID string, meta catalog.ObjectMeta, size int64) error {
	live := toObjstoreMeta(meta)
	if s.gcEnabled && s.gcQueue != nil {
		err := s.gcQueue.EnqueueMultipart(ctx, gc.MultipartItem{
			UploadID:      uploadID,
			FQN:           meta.ObjectID.String(),
			Meta:          live,
			Size:          size,
			PartIndexName: catalog.MultipartsIndex(tenantBucket),
		})
		if err == nil {
			return nil
		}
	}
	return s.objGW.Delete(ctx, &live)
}

// listPartsAscending enumerates every multiparts record for (name,
// uploadID) in ascending part-number order (spec §4.6.4 step 1), relying
// on catalog.MultipartPartKey's zero-padding for correct lexicographic
// ordering.
func (s *Store) listPartsAscending(ctx context.Context, tenantBucket, name, uploadID string) ([]*catalog.PartInfo, error) {
	idxName := catalog.MultipartsIndex(tenantBucket)
	prefix := []byte(name + "." + uploadID + ".")
	const batchMax = 500

	var parts []*catalog.PartInfo
	cursor := prefix
	for {
		entries, err := s.idx.Next(ctx, idxName, cursor, batchMax, prefix, nil)
		if err != nil {
			return nil, fmt.Errorf("multipart: listing parts: %w", err)
		}
		if len(entries) == 0 {
			break
		}
		for _, e := range entries {
			if e.Value == nil {
				continue
			}
			part, err := catalog.DecodePartInfo(e.Value)
			if err != nil {
				return nil, fmt.Errorf("multipart: decoding part: %w", err)
			}
			parts = append(parts, part)
		}
		if len(entries) < batchMax {
			break
		}
		cursor = append(append([]byte{}, entries[len(entries)-1].Key...), 0)
	}
	return parts, nil
}
