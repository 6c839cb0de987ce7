package multipart

import (
	"context"
	"strings"
	"testing"
)

func TestListUploadsReturnsInProgressUploads(t *testing.T) {
	s := newTestStore(t, false)
	ctx := context.Background()

	h1, err := s.Initiate(ctx, InitiateParams{TenantBucket: testTenantBucket, Owner: "alice", Name: "a.bin", PlacementRule: "default"})
	if err != nil {
		t.Fatalf("Initiate a.bin: %v", err)
	}
	h2, err := s.Initiate(ctx, InitiateParams{TenantBucket: testTenantBucket, Owner: "alice", Name: "b.bin", PlacementRule: "default"})
	if err != nil {
		t.Fatalf("Initiate b.bin: %v", err)
	}

	result, err := s.ListUploads(ctx, ListUploadsParams{TenantBucket: testTenantBucket, Max: 10})
	if err != nil {
		t.Fatalf("ListUploads: %v", err)
	}
	if len(result.Entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(result.Entries))
	}
	seen := map[string]bool{}
	for _, e := range result.Entries {
		if e.Upload == nil {
			t.Fatal("unexpected common-prefix entry")
		}
		seen[e.Upload.UploadID] = true
	}
	if !seen[h1.UploadID] || !seen[h2.UploadID] {
		t.Fatalf("expected both upload ids in result, got %+v", result.Entries)
	}
}

func TestListPartsPaginatesWithPartNumMarker(t *testing.T) {
	s := newTestStore(t, false)
	ctx := context.Background()

	handle, err := s.Initiate(ctx, InitiateParams{TenantBucket: testTenantBucket, Owner: "alice", Name: "a.bin", PlacementRule: "default"})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	for i := 1; i <= 3; i++ {
		if _, err := s.UploadPart(ctx, UploadPartParams{TenantBucket: testTenantBucket, Owner: "alice", Name: "a.bin", UploadID: handle.UploadID, PartNum: i, Size: 5}, strings.NewReader("hello")); err != nil {
			t.Fatalf("UploadPart %d: %v", i, err)
		}
	}

	first, err := s.ListParts(ctx, ListPartsParams{TenantBucket: testTenantBucket, Name: "a.bin", UploadID: handle.UploadID, Max: 2})
	if err != nil {
		t.Fatalf("ListParts page 1: %v", err)
	}
	if len(first.Parts) != 2 || !first.Truncated {
		t.Fatalf("page 1 = %+v, want 2 parts truncated", first)
	}
	if first.Parts[0].Num != 1 || first.Parts[1].Num != 2 {
		t.Fatalf("page 1 part numbers = %d,%d, want 1,2", first.Parts[0].Num, first.Parts[1].Num)
	}

	second, err := s.ListParts(ctx, ListPartsParams{TenantBucket: testTenantBucket, Name: "a.bin", UploadID: handle.UploadID, PartNumMarker: first.NextMarker, Max: 2})
	if err != nil {
		t.Fatalf("ListParts page 2: %v", err)
	}
	if len(second.Parts) != 1 || second.Parts[0].Num != 3 {
		t.Fatalf("page 2 = %+v, want part 3", second)
	}
}
