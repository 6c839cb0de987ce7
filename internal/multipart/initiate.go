package multipart

import (
	"context"
	"fmt"
	"time"

	"github.com/shoalstore/shoalstore/internal/catalog"
	"github.com/shoalstore/shoalstore/internal/idgen"
	"github.com/shoalstore/shoalstore/internal/writer"
)

// InitiateParams carries what Initiate needs beyond the bucket/store
// context already held by Store.
type InitiateParams struct {
	TenantBucket  string
	Owner         string
	Name          string
	PlacementRule string
	Attributes    map[string]string
}

// UploadHandle is what Initiate hands back to the caller (spec §4.6.1).
type UploadHandle struct {
	UploadID string
	Tiered   bool
}

// Initiate implements spec §4.6.1: generate an upload ID, optionally create
// a composite object sized to MAX_ACC_SIZE for the tiered strategy, write
// the in-progress record, and bump the bucket's object count by one (size
// is unaffected until parts land).
func (s *Store) Initiate(ctx context.Context, p InitiateParams) (*UploadHandle, error) {
	uploadID, err := idgen.NewUploadID()
	if err != nil {
		return nil, fmt.Errorf("multipart: generating upload id: %w", err)
	}

	var meta catalog.ObjectMeta
	if s.tiered {
		objMeta, err := s.objGW.CreateComposite(ctx, writer.MaxAccSize)
		if err != nil {
			return nil, fmt.Errorf("multipart: creating composite object: %w", err)
		}
		meta = fromObjstoreMeta(objMeta)
	}

	rec := &catalog.MultipartUpload{
		Name:          p.Name,
		UploadID:      uploadID,
		PlacementRule: p.PlacementRule,
		Tiered:        s.tiered,
		Owner:         p.Owner,
		Ctime:         time.Now().UTC(),
		Meta:          meta,
		Attrs:         p.Attributes,
	}
	encoded, err := catalog.EncodeMultipartUpload(rec)
	if err != nil {
		return nil, fmt.Errorf("multipart: encoding in-progress record: %w", err)
	}

	idxName := catalog.MultipartsInProgressIndex(p.TenantBucket)
	key := catalog.MultipartInProgressKey(p.Name, uploadID)
	if err := s.idx.Put(ctx, idxName, key, encoded, true); err != nil {
		return nil, fmt.Errorf("multipart: writing in-progress record: %w", err)
	}

	if err := catalog.UpdateStats(ctx, s.idx, p.Owner, p.TenantBucket, catalog.CategoryMultiMeta, 0, 0, 1); err != nil {
		return nil, fmt.Errorf("multipart: updating stats: %w", err)
	}

	return &UploadHandle{UploadID: uploadID, Tiered: s.tiered}, nil
}
