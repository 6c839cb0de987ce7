package sal

import (
	"context"
	"fmt"
	"io"

	"github.com/shoalstore/shoalstore/internal/catalog"
	"github.com/shoalstore/shoalstore/internal/multipart"
)

// InitiateMultipartUpload delegates to the Multipart Engine (spec §4.6.1).
func (s *Store) InitiateMultipartUpload(ctx context.Context, p multipart.InitiateParams) (*multipart.UploadHandle, error) {
	return s.multipart.Initiate(ctx, p)
}

// GetMultipartUploadInfo implements spec §6.2's Multipart "get-info":
// returning the in-progress upload record for (name, uploadID) without
// mutating anything. Grounded on the same in-progress-record lookup every
// other multipart operation starts from.
func (s *Store) GetMultipartUploadInfo(ctx context.Context, tenantBucket, name, uploadID string) (*catalog.MultipartUpload, error) {
	rec, err := s.multipart.GetInfo(ctx, tenantBucket, name, uploadID)
	if err != nil {
		return nil, fmt.Errorf("sal: getting multipart upload info: %w", err)
	}
	return rec, nil
}

// UploadPart delegates to the Multipart Engine (spec §4.6.2/§4.6.3).
func (s *Store) UploadPart(ctx context.Context, p multipart.UploadPartParams, r io.Reader) (*catalog.PartInfo, error) {
	return s.multipart.UploadPart(ctx, p, r)
}

// ListParts delegates to the Multipart Engine.
func (s *Store) ListParts(ctx context.Context, p multipart.ListPartsParams) (*multipart.ListPartsResult, error) {
	return s.multipart.ListParts(ctx, p)
}

// CompleteMultipartUpload delegates to the Multipart Engine (spec §4.6.4).
func (s *Store) CompleteMultipartUpload(ctx context.Context, p multipart.CompleteParams) (*catalog.DirEntry, error) {
	return s.multipart.Complete(ctx, p)
}

// AbortMultipartUpload delegates to the Multipart Engine (spec §4.6.6).
func (s *Store) AbortMultipartUpload(ctx context.Context, p multipart.AbortParams) error {
	return s.multipart.Abort(ctx, p)
}

// ListMultipartUploads delegates to the Multipart Engine (spec §4.6.7).
func (s *Store) ListMultipartUploads(ctx context.Context, p multipart.ListUploadsParams) (*multipart.ListUploadsResult, error) {
	return s.multipart.ListUploads(ctx, p)
}

// ReadMultipartObject delegates to the Multipart Engine (spec §4.6.5).
func (s *Store) ReadMultipartObject(ctx context.Context, p multipart.ReadParams, callback func([]byte) error) error {
	return s.multipart.Read(ctx, p, callback)
}

// AbortAllMultipartUploads implements spec §6.2's Bucket "multipart-...
// abort-all": pages through every in-progress upload in tenantBucket and
// aborts each, the purge step RemoveBucket's callers use before removing a
// bucket that still has in-progress uploads.
func (s *Store) AbortAllMultipartUploads(ctx context.Context, tenantBucket, owner string) error {
	marker := ""
	const pageSize = 200
	for {
		result, err := s.multipart.ListUploads(ctx, multipart.ListUploadsParams{TenantBucket: tenantBucket, Marker: marker, Max: pageSize})
		if err != nil {
			return fmt.Errorf("sal: listing uploads to abort: %w", err)
		}
		for _, e := range result.Entries {
			if e.Upload == nil {
				continue
			}
			if err := s.multipart.Abort(ctx, multipart.AbortParams{TenantBucket: tenantBucket, Owner: owner, Name: e.Upload.Name, UploadID: e.Upload.UploadID}); err != nil {
				return fmt.Errorf("sal: aborting upload %s for %s: %w", e.Upload.UploadID, e.Upload.Name, err)
			}
		}
		if !result.Truncated {
			return nil
		}
		marker = result.NextMarker
	}
}
