package multipart

import (
	"context"
	"fmt"

	"github.com/shoalstore/shoalstore/internal/catalog"
)

// ReadParams carries what Read needs: the completed multipart DirEntry
// (Category == CategoryMultiMeta) objengine.GetObject resolved and handed
// back without streaming, plus the requested inclusive byte range.
type ReadParams struct {
	TenantBucket string
	Entry        *catalog.DirEntry
	Start, End   int64
}

// Read implements spec §4.6.5: a tiered object reads transparently through
// the Object Gateway like any other composite; a separate-strategy object
// has no single byte container, so its parts are enumerated from the
// multiparts index and each intersecting part is read separately.
func (s *Store) Read(ctx context.Context, p ReadParams, callback func([]byte) error) error {
	if p.Entry.Meta.IsComposite {
		meta := toObjstoreMeta(p.Entry.Meta)
		end := clampEnd(p.End, p.Entry.Size)
		return s.objGW.Read(ctx, &meta, p.Start, end, callback)
	}
	return s.readSeparateParts(ctx, p, callback)
}

func clampEnd(end, size int64) int64 {
	if end < 0 || end >= size {
		return size - 1
	}
	return end
}

// readSeparateParts implements the separate-strategy half of spec §4.6.5:
// parts are laid out back-to-back in upload order at the cumulative sum of
// their actual sizes (there is no fixed per-part stride for this
// strategy, unlike the tiered strategy's PART_SIZE grid), and only the
// parts intersecting [Start, End] are read.
func (s *Store) readSeparateParts(ctx context.Context, p ReadParams, callback func([]byte) error) error {
	parts, err := s.listPartsAscending(ctx, p.TenantBucket, p.Entry.Name, p.Entry.Meta.UploadID)
	if err != nil {
		return err
	}

	end := clampEnd(p.End, p.Entry.Size)

	var offset int64
	for _, part := range parts {
		partStart := offset
		partEnd := offset + part.Size - 1
		offset += part.Size

		if partEnd < p.Start || partStart > end {
			continue
		}

		readStart := int64(0)
		if p.Start > partStart {
			readStart = p.Start - partStart
		}
		readEnd := part.Size - 1
		if end < partEnd {
			readEnd = end - partStart
		}

		meta := toObjstoreMeta(part.Meta)
		if err := s.objGW.Read(ctx, &meta, readStart, readEnd, callback); err != nil {
			return fmt.Errorf("multipart: reading part %d: %w", part.Num, err)
		}
	}
	return nil
}
