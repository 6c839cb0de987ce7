package multipart

import (
	"context"
	"strings"
	"testing"

	"github.com/shoalstore/shoalstore/internal/catalog"
	"github.com/shoalstore/shoalstore/internal/errors"
	"github.com/shoalstore/shoalstore/internal/index"
)

func TestAbortSeparateDeletesPartsAndInProgressRecord(t *testing.T) {
	s := newTestStore(t, false)
	ctx := context.Background()

	handle, err := s.Initiate(ctx, InitiateParams{TenantBucket: testTenantBucket, Owner: "alice", Name: "a.bin", PlacementRule: "default"})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if _, err := s.UploadPart(ctx, UploadPartParams{TenantBucket: testTenantBucket, Owner: "alice", Name: "a.bin", UploadID: handle.UploadID, PartNum: 1, Size: 5}, strings.NewReader("hello")); err != nil {
		t.Fatalf("UploadPart: %v", err)
	}

	if err := s.Abort(ctx, AbortParams{TenantBucket: testTenantBucket, Owner: "alice", Name: "a.bin", UploadID: handle.UploadID}); err != nil {
		t.Fatalf("Abort: %v", err)
	}

	if _, _, err := s.getInProgress(ctx, testTenantBucket, "a.bin", handle.UploadID); err == nil {
		t.Fatal("in-progress record should have been deleted by Abort")
	}
	idxName := catalog.MultipartsIndex(testTenantBucket)
	if _, err := s.idx.Get(ctx, idxName, catalog.MultipartPartKey("a.bin", handle.UploadID, 1)); !index.IsNotFound(err) {
		t.Fatalf("part record should have been deleted by Abort, got err=%v", err)
	}

	header, err := readStatsHeader(t, s, "alice", "b")
	if err != nil {
		t.Fatalf("readStatsHeader: %v", err)
	}
	if got := header.Stats[catalog.CategoryMultiMeta]; got.NumEntries != 0 || got.TotalSize != 0 {
		t.Fatalf("CategoryMultiMeta stats after Abort = %+v, want zeroed", got)
	}
}

func TestAbortTieredDeletesComposite(t *testing.T) {
	s := newTestStore(t, true)
	ctx := context.Background()

	handle, err := s.Initiate(ctx, InitiateParams{TenantBucket: testTenantBucket, Owner: "alice", Name: "a.bin", PlacementRule: "default"})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	rec, _, err := s.getInProgress(ctx, testTenantBucket, "a.bin", handle.UploadID)
	if err != nil {
		t.Fatalf("getInProgress: %v", err)
	}
	composite := toObjstoreMeta(rec.Meta)

	if _, err := s.UploadPart(ctx, UploadPartParams{TenantBucket: testTenantBucket, Owner: "alice", Name: "a.bin", UploadID: handle.UploadID, PartNum: 1, Size: 5}, strings.NewReader("hello")); err != nil {
		t.Fatalf("UploadPart: %v", err)
	}

	if err := s.Abort(ctx, AbortParams{TenantBucket: testTenantBucket, Owner: "alice", Name: "a.bin", UploadID: handle.UploadID}); err != nil {
		t.Fatalf("Abort: %v", err)
	}

	readErr := s.objGW.Read(ctx, &composite, 0, 0, func([]byte) error { return nil })
	if !errors.IsNotFound(readErr) {
		t.Fatalf("expected NotFound reading a deleted composite, got %v", readErr)
	}
}
