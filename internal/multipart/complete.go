package multipart

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/shoalstore/shoalstore/internal/catalog"
	"github.com/shoalstore/shoalstore/internal/errors"
	"github.com/shoalstore/shoalstore/internal/index"
)

// RequestPart is one entry of the client-supplied part list Complete
// validates against what was actually uploaded (spec §4.6.4 step 1).
type RequestPart struct {
	Num  int
	Etag string
}

// CompleteParams carries what Complete needs beyond the Store's own
// wiring.
type CompleteParams struct {
	TenantBucket string
	Owner        string
	Name         string
	UploadID     string
	Parts        []RequestPart
	Bucket       *catalog.BucketRecord
}

// Complete implements spec §4.6.4: validate the requested part list
// against what was uploaded, compute the composite ETag, register the
// tiered strategy's top-layer extents, write the final DirEntry through
// the same machinery an ordinary PUT uses, and retire the in-progress
// bookkeeping.
func (s *Store) Complete(ctx context.Context, p CompleteParams) (*catalog.DirEntry, error) {
	rec, key, err := s.getInProgress(ctx, p.TenantBucket, p.Name, p.UploadID)
	if err != nil {
		return nil, err
	}

	stored, err := s.listPartsAscending(ctx, p.TenantBucket, p.Name, p.UploadID)
	if err != nil {
		return nil, err
	}

	ordered, err := validateParts(stored, p.Parts)
	if err != nil {
		return nil, err
	}

	var totalSize int64
	for _, part := range ordered {
		totalSize += part.Size
	}

	etag, err := compositeETag(ordered)
	if err != nil {
		return nil, err
	}

	if rec.Tiered {
		if err := s.addPartExtents(ctx, rec, ordered); err != nil {
			return nil, err
		}
	}

	entry := finalMeta(rec, totalSize, etag)

	final, err := s.eng.FinalizeMultipartEntry(ctx, p.TenantBucket, p.Owner, p.Bucket, entry)
	if err != nil {
		return nil, err
	}

	if err := s.cleanupAfterComplete(ctx, p.TenantBucket, p.Owner, key, stored); err != nil {
		return nil, err
	}

	return final, nil
}

// validateParts implements spec §4.6.4 step 1's consistency checks:
// requested part numbers strictly ascending, every requested part actually
// uploaded with a matching ETag, every part but the last at least
// minPartSize, and a consistent compression type across parts.
func validateParts(stored []*catalog.PartInfo, requested []RequestPart) ([]*catalog.PartInfo, error) {
	if len(requested) == 0 {
		return nil, errors.Wrap(errors.InvalidArgument, "complete requires at least one part")
	}

	byNum := make(map[int]*catalog.PartInfo, len(stored))
	for _, sp := range stored {
		byNum[sp.Num] = sp
	}

	ordered := make([]*catalog.PartInfo, 0, len(requested))
	prevNum := 0
	var compressedType string
	for i, rp := range requested {
		if rp.Num <= prevNum {
			return nil, errors.Wrap(errors.InvalidArgument, "part numbers must be strictly ascending, got %d after %d", rp.Num, prevNum)
		}
		prevNum = rp.Num

		sp, ok := byNum[rp.Num]
		if !ok {
			return nil, errors.Wrap(errors.InvalidArgument, "part %d was never uploaded", rp.Num)
		}
		if sp.Etag != rp.Etag {
			return nil, errors.Wrap(errors.InvalidArgument, "etag mismatch for part %d: have %q, requested %q", rp.Num, sp.Etag, rp.Etag)
		}
		if i < len(requested)-1 && sp.Size < minPartSize {
			return nil, errors.Wrap(errors.InvalidArgument, "part %d is %d bytes, below the %d byte minimum for a non-final part", rp.Num, sp.Size, minPartSize)
		}
		if i == 0 {
			compressedType = sp.CompressedType
		} else if sp.CompressedType != compressedType {
			return nil, errors.Wrap(errors.InvalidArgument, "part %d's compression type %q is inconsistent with the upload's %q", rp.Num, sp.CompressedType, compressedType)
		}

		ordered = append(ordered, sp)
	}
	return ordered, nil
}

// compositeETag implements the multipart ETag rule: MD5 the concatenation
// of each part's binary (not hex) ETag in ascending order, hex-encode, and
// append "-<part-count>".
func compositeETag(parts []*catalog.PartInfo) (string, error) {
	h := md5.New()
	for _, part := range parts {
		raw, err := hex.DecodeString(part.Etag)
		if err != nil {
			return "", fmt.Errorf("multipart: decoding part %d etag: %w", part.Num, err)
		}
		h.Write(raw)
	}
	return fmt.Sprintf("%s-%d", hex.EncodeToString(h.Sum(nil)), len(parts)), nil
}

// addPartExtents registers one read/write extent per part on the upload's
// composite top layer, at the cumulative sum of each part's actual
// declared size.
//
// This deliberately does NOT match the fixed PART_SIZE grid uploadPartTiered
// writes to: a part upload always lands at (num-1)*partSize regardless of
// the part's real size, but the extents built here are packed back-to-back
// at the parts' true sizes. For a part smaller than partSize this leaves a
// gap of stale/zero bytes between its end and the next part's write
// offset that the extent map never exposes a reader to; for a part larger
// than partSize the next part's write silently overwrites the tail of the
// previous one. Carried over unchanged as a known limitation: do not
// "fix" this without revisiting the write-side offset formula too.
func (s *Store) addPartExtents(ctx context.Context, rec *catalog.MultipartUpload, parts []*catalog.PartInfo) error {
	if rec.Meta.TopLayerID.IsZero() {
		return fmt.Errorf("multipart: tiered upload %s has no top layer", rec.UploadID)
	}
	var cum int64
	for _, part := range parts {
		if err := s.objGW.AddExtent(ctx, rec.Meta.TopLayerID, cum, cum+part.Size); err != nil {
			return fmt.Errorf("multipart: registering extent for part %d: %w", part.Num, err)
		}
		cum += part.Size
	}
	return nil
}

// finalMeta builds the completed object's DirEntry (spec §4.6.4 step 5).
// A separate-strategy object has no single byte container, so its
// ObjectMeta carries only the UploadID discriminator Read uses to locate
// its part records; a tiered object's ObjectMeta is the composite it was
// built in, so it continues to read transparently through the Object
// Gateway like any other composite.
func finalMeta(rec *catalog.MultipartUpload, totalSize int64, etag string) *catalog.DirEntry {
	meta := rec.Meta
	if !rec.Tiered {
		meta = catalog.ObjectMeta{UploadID: rec.UploadID}
	}
	return &catalog.DirEntry{
		Name:     rec.Name,
		Mtime:    time.Now().UTC(),
		Size:     totalSize,
		Etag:     etag,
		Owner:    rec.Owner,
		Category: catalog.CategoryMultiMeta,
		Meta:     meta,
		Attrs:    rec.Attrs,
	}
}

// cleanupAfterComplete removes the in-progress record and subtracts the
// full CategoryMultiMeta footprint this upload accumulated across every
// part it ever stored (spec §4.6.4 step 7), whether or not that part ended
// up referenced by the completed object. Part records themselves are left
// in place: the separate strategy's Read depends on them surviving
// Complete.
func (s *Store) cleanupAfterComplete(ctx context.Context, tenantBucket, owner string, inProgressKey []byte, allParts []*catalog.PartInfo) error {
	idxName := catalog.MultipartsInProgressIndex(tenantBucket)
	if err := s.idx.Del(ctx, idxName, inProgressKey); err != nil && !index.IsNotFound(err) {
		return fmt.Errorf("multipart: deleting in-progress record: %w", err)
	}

	var totalSize, totalRounded int64
	for _, part := range allParts {
		totalSize += part.Size
		totalRounded += part.AccountedSize
	}
	if err := catalog.UpdateStats(ctx, s.idx, owner, tenantBucket, catalog.CategoryMultiMeta,
		-totalSize, -totalRounded, -1); err != nil {
		return fmt.Errorf("multipart: subtracting multimeta stats: %w", err)
	}
	return nil
}
