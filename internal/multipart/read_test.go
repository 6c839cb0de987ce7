package multipart

import (
	"context"
	"strings"
	"testing"
)

func TestReadSeparateDispatchesAcrossPartBoundaries(t *testing.T) {
	s := newTestStore(t, false)
	ctx := context.Background()
	bucket := unversionedBucket()

	handle, err := s.Initiate(ctx, InitiateParams{TenantBucket: testTenantBucket, Owner: "alice", Name: "a.bin", PlacementRule: "default"})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	// Part 1 is a non-final part, so it must reach minPartSize; it ends in
	// "hello" so the reads below can straddle the part boundary.
	p1, err := s.UploadPart(ctx, UploadPartParams{TenantBucket: testTenantBucket, Owner: "alice", Name: "a.bin", UploadID: handle.UploadID, PartNum: 1, Size: minPartSize}, strings.NewReader(strings.Repeat("a", minPartSize-5)+"hello"))
	if err != nil {
		t.Fatalf("UploadPart 1: %v", err)
	}
	p2, err := s.UploadPart(ctx, UploadPartParams{TenantBucket: testTenantBucket, Owner: "alice", Name: "a.bin", UploadID: handle.UploadID, PartNum: 2, Size: 5}, strings.NewReader("world"))
	if err != nil {
		t.Fatalf("UploadPart 2: %v", err)
	}

	final, err := s.Complete(ctx, CompleteParams{
		TenantBucket: testTenantBucket, Owner: "alice", Name: "a.bin", UploadID: handle.UploadID,
		Parts:  []RequestPart{{Num: 1, Etag: p1.Etag}, {Num: 2, Etag: p2.Etag}},
		Bucket: bucket,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	var got []byte
	if err := s.Read(ctx, ReadParams{TenantBucket: testTenantBucket, Entry: final, Start: minPartSize - 5, End: minPartSize + 4}, func(b []byte) error {
		got = append(got, b...)
		return nil
	}); err != nil {
		t.Fatalf("Read last 10 bytes: %v", err)
	}
	if string(got) != "helloworld" {
		t.Fatalf("read of last 10 bytes = %q, want %q", got, "helloworld")
	}

	got = nil
	if err := s.Read(ctx, ReadParams{TenantBucket: testTenantBucket, Entry: final, Start: minPartSize - 2, End: minPartSize + 1}, func(b []byte) error {
		got = append(got, b...)
		return nil
	}); err != nil {
		t.Fatalf("Read crossing boundary: %v", err)
	}
	if string(got) != "lowo" {
		t.Fatalf("range read [minPartSize-2,minPartSize+1] = %q, want %q", got, "lowo")
	}
}
