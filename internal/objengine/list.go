package objengine

import (
	"bytes"
	"context"
	"fmt"

	"github.com/shoalstore/shoalstore/internal/catalog"
)

// ListParams is the input to ListObjects (spec §4.5.5).
type ListParams struct {
	TenantBucket  string
	Prefix        string
	Marker        string
	Delim         string
	Max           int
	ListVersions  bool
}

// ListEntry is one result row: either a real object version or a collapsed
// common-prefix pseudo-entry.
type ListEntry struct {
	IsCommonPrefix bool
	CommonPrefix   string
	Entry          *catalog.DirEntry
}

// ListResult is ListObjects' output.
type ListResult struct {
	Entries     []ListEntry
	Truncated   bool
	NextMarker  string
}

// ListObjects implements spec §4.5.5. Internally it issues one
// over-fetching NEXT call sized generously past Max (index.Gateway.Next
// already paginates its own underlying batches), then applies the
// visibility filter and the pending-null-entry reordering in a single
// pass, stopping once Max visible results have been produced.
func (s *Store) ListObjects(ctx context.Context, p ListParams) (*ListResult, error) {
	if p.Max <= 0 {
		p.Max = 1000
	}
	idxName := catalog.BucketIndexName(p.TenantBucket)

	var prefix, delim []byte
	if p.Prefix != "" {
		prefix = []byte(p.Prefix)
	}
	if p.Delim != "" {
		delim = []byte(p.Delim)
	}

	cursor := seedCursor(p.Prefix, p.Marker, p.Delim)

	const overfetchFactor = 3
	rawMax := p.Max*overfetchFactor + 16
	raw, err := s.idx.Next(ctx, idxName, cursor, rawMax, prefix, delim)
	if err != nil {
		return nil, fmt.Errorf("objengine: listing objects: %w", err)
	}

	result := &ListResult{}
	var pendingNull *catalog.DirEntry
	var pendingNullKey []byte

	emitNull := func() {
		if pendingNull == nil {
			return
		}
		result.Entries = append(result.Entries, ListEntry{Entry: pendingNull})
		result.NextMarker = string(pendingNullKey)
		pendingNull = nil
		pendingNullKey = nil
	}

	for _, e := range raw {
		if len(result.Entries) >= p.Max {
			result.Truncated = true
			break
		}

		if e.Value == nil {
			// Directory pseudo-entry: flush any pending null first, since it
			// necessarily belongs to an earlier name.
			emitNull()
			result.Entries = append(result.Entries, ListEntry{IsCommonPrefix: true, CommonPrefix: string(e.Key)})
			result.NextMarker = string(e.Key)
			continue
		}

		entry, err := catalog.DecodeDirEntry(e.Value)
		if err != nil {
			return nil, fmt.Errorf("objengine: decoding DirEntry during list: %w", err)
		}

		// A null-version record is the only version an unversioned-bucket
		// name ever gets (flags=∅ per spec §4.5.1 step 2), so CURRENT never
		// applies to it; it is visible whenever it isn't a delete marker.
		isNull := entry.Instance == ""
		visible := !entry.IsDeleteMarker() && (isNull || entry.IsCurrent())
		if !p.ListVersions && !visible {
			continue
		}

		if isNull {
			emitNull() // at most one null-version per name; a new one means a new name group began
			pendingNull = entry
			pendingNullKey = e.Key
			continue
		}

		if pendingNull != nil && (pendingNull.Name != entry.Name || entry.Mtime.Before(pendingNull.Mtime)) {
			emitNull()
		}

		result.Entries = append(result.Entries, ListEntry{Entry: entry})
		result.NextMarker = string(e.Key)
	}

	if !result.Truncated {
		emitNull()
	}
	if len(result.Entries) >= p.Max && len(raw) >= rawMax {
		// The raw over-fetch itself may have been exhausted exactly at the
		// boundary; treat that as truncated too since more could remain.
		result.Truncated = true
	}

	return result, nil
}

// seedCursor implements step 1: seed NEXT with the marker's name, bumped
// past a trailing delimiter so listing resumes after (not inside) the
// previously returned common prefix.
func seedCursor(prefix, marker, delim string) []byte {
	if marker == "" {
		if prefix != "" {
			return []byte(prefix)
		}
		return nil
	}
	cursor := []byte(marker)
	if delim != "" && bytes.HasSuffix(cursor, []byte(delim)) {
		cursor = append(cursor, 0xFF)
	}
	return cursor
}
