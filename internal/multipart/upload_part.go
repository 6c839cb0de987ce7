package multipart

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/shoalstore/shoalstore/internal/catalog"
	"github.com/shoalstore/shoalstore/internal/index"
	"github.com/shoalstore/shoalstore/internal/objstore"
	"github.com/shoalstore/shoalstore/internal/writer"
)

// UploadPartParams carries what UploadPart needs beyond the Store's own
// wiring.
type UploadPartParams struct {
	TenantBucket string
	Owner        string
	Name         string
	UploadID     string
	PartNum      int
	Size         int64 // declared part size
	Attributes   map[string]string
}

// UploadPart implements spec §4.6.2 (separate strategy) and §4.6.3 (tiered
// strategy), dispatching on the in-progress record's Tiered flag.
func (s *Store) UploadPart(ctx context.Context, p UploadPartParams, r io.Reader) (*catalog.PartInfo, error) {
	rec, _, err := s.getInProgress(ctx, p.TenantBucket, p.Name, p.UploadID)
	if err != nil {
		return nil, err
	}

	if rec.Tiered {
		return s.uploadPartTiered(ctx, p, rec, r)
	}
	return s.uploadPartSeparate(ctx, p, r)
}

// uploadPartSeparate implements spec §4.6.2: each part gets its own
// freshly created byte object, streamed through the Writer Pipeline the
// same way an ordinary PUT streams an object (spec §4.5.1's streamIntoObject
// idiom, reused here per part).
func (s *Store) uploadPartSeparate(ctx context.Context, p UploadPartParams, r io.Reader) (*catalog.PartInfo, error) {
	objMeta, err := s.objGW.Create(ctx, p.Size)
	if err != nil {
		return nil, fmt.Errorf("multipart: creating part object: %w", err)
	}

	size, etag, err := streamPart(ctx, s.objGW, objMeta, r)
	if err != nil {
		return nil, err
	}
	meta := fromObjstoreMeta(objMeta)

	part := &catalog.PartInfo{
		Num:           p.PartNum,
		Etag:          etag,
		Size:          size,
		Mtime:         time.Now().UTC(),
		Meta:          meta,
		Attrs:         p.Attributes,
	}
	unitSize := s.unitSizeForLayout(meta.LayoutID)
	part.RoundedSize = catalog.RoundUp(size, unitSize)
	part.AccountedSize = part.RoundedSize

	if err := s.replacePart(ctx, p.TenantBucket, p.Owner, p.Name, p.UploadID, p.PartNum, part); err != nil {
		return nil, err
	}
	return part, nil
}

// uploadPartTiered implements spec §4.6.3: the part is written directly
// into the upload's composite object at its fixed PART_SIZE-aligned
// offset, without allocating a byte object of its own and without going
// through deleteBytes for any previous occupant of that slot (the
// composite itself is never swapped out mid-upload).
func (s *Store) uploadPartTiered(ctx context.Context, p UploadPartParams, rec *catalog.MultipartUpload, r io.Reader) (*catalog.PartInfo, error) {
	live := toObjstoreMeta(rec.Meta)
	offset := int64(p.PartNum-1) * partSize

	size, etag, err := writePartAtOffset(ctx, s.objGW, &live, offset, r)
	if err != nil {
		return nil, err
	}

	unitSize := s.unitSizeForLayout(rec.Meta.LayoutID)
	part := &catalog.PartInfo{
		Num:           p.PartNum,
		Etag:          etag,
		Size:          size,
		Mtime:         time.Now().UTC(),
		Meta:          rec.Meta,
		Attrs:         p.Attributes,
	}
	part.RoundedSize = catalog.RoundUp(size, unitSize)
	part.AccountedSize = part.RoundedSize

	if err := s.replacePart(ctx, p.TenantBucket, p.Owner, p.Name, p.UploadID, p.PartNum, part); err != nil {
		return nil, err
	}
	return part, nil
}

// streamPart pushes r's bytes through a fresh Writer Pipeline into objMeta,
// the same accumulate-and-flush idiom objengine.streamIntoObject uses for
// a whole object, applied here to a single part's byte object.
func streamPart(ctx context.Context, gw *objstore.Gateway, meta *objstore.ObjectMeta, r io.Reader) (int64, string, error) {
	pipeline := writer.New(gw, meta)
	buf := make([]byte, writer.MaxAccSize)
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			if err := pipeline.Process(ctx, buf[:n]); err != nil {
				return 0, "", fmt.Errorf("multipart: streaming part body: %w", err)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return 0, "", fmt.Errorf("multipart: reading part body: %w", rerr)
		}
	}
	if err := pipeline.Process(ctx, nil); err != nil {
		return 0, "", fmt.Errorf("multipart: flushing part body: %w", err)
	}
	return pipeline.Offset(), pipeline.ETag(), nil
}

// writePartAtOffset streams r directly into meta starting at a caller-
// supplied, possibly non-zero offset. writer.Pipeline always starts at
// offset 0 with no way to seed a different starting point, so the tiered
// strategy's fixed-offset part placement (spec §4.6.3) writes straight to
// the Object Gateway instead, using the same accumulate-to-MaxAccSize and
// streaming-MD5 idiom writer.Pipeline uses internally.
func writePartAtOffset(ctx context.Context, gw *objstore.Gateway, meta *objstore.ObjectMeta, startOffset int64, r io.Reader) (int64, string, error) {
	hasher := md5.New()
	buf := make([]byte, 0, writer.MaxAccSize)
	pos := startOffset
	readBuf := make([]byte, writer.MaxAccSize)

	flush := func(chunk []byte, last bool) error {
		if len(chunk) == 0 && !last {
			return nil
		}
		if err := gw.Write(ctx, meta, pos, chunk, last); err != nil {
			return fmt.Errorf("multipart: writing part at offset %d: %w", pos, err)
		}
		pos += int64(len(chunk))
		return nil
	}

	for {
		n, rerr := r.Read(readBuf)
		if n > 0 {
			hasher.Write(readBuf[:n])
			buf = append(buf, readBuf[:n]...)
			for len(buf) > writer.MaxAccSize {
				chunk := buf[:writer.MaxAccSize]
				if err := flush(chunk, false); err != nil {
					return 0, "", err
				}
				buf = append(buf[:0], buf[writer.MaxAccSize:]...)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return 0, "", fmt.Errorf("multipart: reading part body: %w", rerr)
		}
	}
	if err := flush(buf, true); err != nil {
		return 0, "", err
	}

	return pos - startOffset, hex.EncodeToString(hasher.Sum(nil)), nil
}

// replacePart implements the "before PUT, GET existing key; if present and
// not composite, delete the old part's byte object (or GC-enqueue it) and
// update stats by the size delta" step common to both strategies (spec
// §4.6.2 step 4). Tiered parts share the upload's single composite, so the
// old-bytes branch only ever fires for the separate strategy; the
// composite check below is what keeps it from ever firing against a
// tiered part's shared container.
func (s *Store) replacePart(ctx context.Context, tenantBucket, owner, name, uploadID string, partNum int, part *catalog.PartInfo) error {
	idxName := catalog.MultipartsIndex(tenantBucket)
	key := catalog.MultipartPartKey(name, uploadID, partNum)

	sizeDelta := part.AccountedSize
	rawDelta := part.Size

	if raw, err := s.idx.Get(ctx, idxName, key); err == nil {
		old, derr := catalog.DecodePartInfo(raw)
		if derr == nil && !old.Meta.IsComposite {
			if err := s.deleteMultipartBytes(ctx, tenantBucket, uploadID, old.Meta, old.Size); err != nil {
				return fmt.Errorf("multipart: deleting superseded part bytes: %w", err)
			}
			sizeDelta -= old.AccountedSize
			rawDelta -= old.Size
		}
	} else if !index.IsNotFound(err) {
		return fmt.Errorf("multipart: reading existing part: %w", err)
	}

	encoded, err := catalog.EncodePartInfo(part)
	if err != nil {
		return fmt.Errorf("multipart: encoding part: %w", err)
	}
	if err := s.idx.Put(ctx, idxName, key, encoded, true); err != nil {
		return fmt.Errorf("multipart: writing part: %w", err)
	}

	if err := catalog.UpdateStats(ctx, s.idx, owner, tenantBucket, catalog.CategoryMultiMeta, rawDelta, sizeDelta, 0); err != nil {
		return fmt.Errorf("multipart: updating stats: %w", err)
	}
	return nil
}
