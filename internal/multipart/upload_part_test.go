package multipart

import (
	"context"
	"strings"
	"testing"

	"github.com/shoalstore/shoalstore/internal/catalog"
)

func TestUploadPartSeparateStoresPartAndUpdatesStats(t *testing.T) {
	s := newTestStore(t, false)
	ctx := context.Background()

	handle, err := s.Initiate(ctx, InitiateParams{TenantBucket: testTenantBucket, Owner: "alice", Name: "a.bin", PlacementRule: "default"})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	part, err := s.UploadPart(ctx, UploadPartParams{TenantBucket: testTenantBucket, Owner: "alice", Name: "a.bin", UploadID: handle.UploadID, PartNum: 1, Size: 11}, strings.NewReader("hello world"))
	if err != nil {
		t.Fatalf("UploadPart: %v", err)
	}
	if part.Size != 11 {
		t.Fatalf("Size = %d, want 11", part.Size)
	}
	if part.Meta.ObjectID.IsZero() {
		t.Fatal("separate-strategy part must have its own byte object")
	}

	idxName := catalog.MultipartsIndex(testTenantBucket)
	key := catalog.MultipartPartKey("a.bin", handle.UploadID, 1)
	raw, err := s.idx.Get(ctx, idxName, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	stored, err := catalog.DecodePartInfo(raw)
	if err != nil {
		t.Fatalf("DecodePartInfo: %v", err)
	}
	if stored.Etag != part.Etag {
		t.Fatalf("stored etag %q != returned etag %q", stored.Etag, part.Etag)
	}

	header, err := readStatsHeader(t, s, "alice", "b")
	if err != nil {
		t.Fatalf("readStatsHeader: %v", err)
	}
	if got := header.Stats[catalog.CategoryMultiMeta].TotalSize; got != 11 {
		t.Fatalf("CategoryMultiMeta TotalSize = %d, want 11", got)
	}
}

func TestUploadPartSeparateReplaceDeletesOldBytesAndAdjustsDelta(t *testing.T) {
	s := newTestStore(t, false)
	ctx := context.Background()

	handle, err := s.Initiate(ctx, InitiateParams{TenantBucket: testTenantBucket, Owner: "alice", Name: "a.bin", PlacementRule: "default"})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	first, err := s.UploadPart(ctx, UploadPartParams{TenantBucket: testTenantBucket, Owner: "alice", Name: "a.bin", UploadID: handle.UploadID, PartNum: 1, Size: 11}, strings.NewReader("hello world"))
	if err != nil {
		t.Fatalf("first UploadPart: %v", err)
	}
	second, err := s.UploadPart(ctx, UploadPartParams{TenantBucket: testTenantBucket, Owner: "alice", Name: "a.bin", UploadID: handle.UploadID, PartNum: 1, Size: 5}, strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("second UploadPart: %v", err)
	}
	if second.Etag == first.Etag {
		t.Fatal("replacing part 1 with different content should change its etag")
	}

	header, err := readStatsHeader(t, s, "alice", "b")
	if err != nil {
		t.Fatalf("readStatsHeader: %v", err)
	}
	if got := header.Stats[catalog.CategoryMultiMeta].TotalSize; got != 5 {
		t.Fatalf("CategoryMultiMeta TotalSize after replace = %d, want 5 (old part's contribution subtracted)", got)
	}
}

func TestUploadPartTieredWritesAtFixedOffsetInComposite(t *testing.T) {
	s := newTestStore(t, true)
	ctx := context.Background()

	handle, err := s.Initiate(ctx, InitiateParams{TenantBucket: testTenantBucket, Owner: "alice", Name: "a.bin", PlacementRule: "default"})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	part1, err := s.UploadPart(ctx, UploadPartParams{TenantBucket: testTenantBucket, Owner: "alice", Name: "a.bin", UploadID: handle.UploadID, PartNum: 1, Size: 5}, strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("UploadPart 1: %v", err)
	}
	part2, err := s.UploadPart(ctx, UploadPartParams{TenantBucket: testTenantBucket, Owner: "alice", Name: "a.bin", UploadID: handle.UploadID, PartNum: 2, Size: 5}, strings.NewReader("world"))
	if err != nil {
		t.Fatalf("UploadPart 2: %v", err)
	}
	if !part1.Meta.IsComposite || !part2.Meta.IsComposite {
		t.Fatal("tiered parts must reference the shared composite object")
	}

	rec, _, err := s.getInProgress(ctx, testTenantBucket, "a.bin", handle.UploadID)
	if err != nil {
		t.Fatalf("getInProgress: %v", err)
	}
	live := toObjstoreMeta(rec.Meta)
	var got []byte
	if err := s.objGW.Read(ctx, &live, int64(partSize), int64(partSize)+4, func(b []byte) error {
		got = append(got, b...)
		return nil
	}); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "world" {
		t.Fatalf("part 2 bytes at offset %d = %q, want %q", partSize, got, "world")
	}
}
