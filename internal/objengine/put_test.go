package objengine

import (
	"context"
	"strings"
	"testing"

	"github.com/shoalstore/shoalstore/internal/catalog"
)

func TestPutObjectUnversionedWritesNullVersionEntry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := PutParams{TenantBucket: testTenantBucket, Owner: "alice", Name: "a.txt", Size: 5, Bucket: unversionedBucket()}
	entry, err := s.PutObject(ctx, p, strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("PutObject: %v", err)
	}
	if entry.Instance != "" {
		t.Fatalf("unversioned PUT should write the null-version instance, got %q", entry.Instance)
	}
	if entry.Size != 5 {
		t.Fatalf("Size = %d, want 5", entry.Size)
	}

	idxName := catalog.BucketIndexName(testTenantBucket)
	raw, err := s.idx.Get(ctx, idxName, catalog.ObjectKey("a.txt", ""))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	got, err := catalog.DecodeDirEntry(raw)
	if err != nil {
		t.Fatalf("DecodeDirEntry: %v", err)
	}
	if got.Etag != entry.Etag || got.Size != entry.Size {
		t.Fatalf("stored entry %+v does not match returned entry %+v", got, entry)
	}
}

func TestPutObjectUnversionedReplacesPredecessor(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	bucket := unversionedBucket()

	if _, err := s.PutObject(ctx, PutParams{TenantBucket: testTenantBucket, Owner: "alice", Name: "a.txt", Size: 5, Bucket: bucket}, strings.NewReader("hello")); err != nil {
		t.Fatalf("first PutObject: %v", err)
	}
	entry, err := s.PutObject(ctx, PutParams{TenantBucket: testTenantBucket, Owner: "alice", Name: "a.txt", Size: 11, Bucket: bucket}, strings.NewReader("hello world"))
	if err != nil {
		t.Fatalf("second PutObject: %v", err)
	}
	if entry.Size != 11 {
		t.Fatalf("Size = %d, want 11", entry.Size)
	}

	idxName := catalog.BucketIndexName(testTenantBucket)
	entries, err := s.idx.Next(ctx, idxName, nil, 10, nil, nil)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	count := 0
	for _, e := range entries {
		if e.Value != nil {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one entry after replace, got %d", count)
	}
}

func TestPutObjectVersionedKeepsBothVersionsAndMarksLatestCurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	bucket := versionedBucket()

	first, err := s.PutObject(ctx, PutParams{TenantBucket: testTenantBucket, Owner: "alice", Name: "a.txt", Size: 5, Bucket: bucket}, strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("first PutObject: %v", err)
	}
	if first.Instance == "" {
		t.Fatal("versioned PUT must generate a non-empty instance")
	}
	if !first.IsCurrent() {
		t.Fatal("first version must be CURRENT")
	}

	second, err := s.PutObject(ctx, PutParams{TenantBucket: testTenantBucket, Owner: "alice", Name: "a.txt", Size: 11, Bucket: bucket}, strings.NewReader("hello world"))
	if err != nil {
		t.Fatalf("second PutObject: %v", err)
	}
	if !second.IsCurrent() {
		t.Fatal("second version must be CURRENT")
	}

	idxName := catalog.BucketIndexName(testTenantBucket)
	rawFirst, err := s.idx.Get(ctx, idxName, catalog.ObjectKey("a.txt", first.Instance))
	if err != nil {
		t.Fatalf("Get first: %v", err)
	}
	gotFirst, err := catalog.DecodeDirEntry(rawFirst)
	if err != nil {
		t.Fatalf("DecodeDirEntry: %v", err)
	}
	if gotFirst.IsCurrent() {
		t.Fatal("predecessor's CURRENT flag must have been cleared")
	}
}

func TestPutObjectZeroByteUsesEmptyMD5AndNoBytes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entry, err := s.PutObject(ctx, PutParams{TenantBucket: testTenantBucket, Owner: "alice", Name: "empty", Size: 0, Bucket: unversionedBucket()}, strings.NewReader(""))
	if err != nil {
		t.Fatalf("PutObject: %v", err)
	}
	if entry.Etag != emptyMD5 {
		t.Fatalf("Etag = %q, want %q", entry.Etag, emptyMD5)
	}
	if hasBytes(entry) {
		t.Fatal("zero-byte object must have no byte container")
	}
}

func TestPutObjectWiresAttributesOntoEntry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	attrs := map[string]string{"x-tag": "v1"}

	entry, err := s.PutObject(ctx, PutParams{TenantBucket: testTenantBucket, Owner: "alice", Name: "a.txt", Size: 5, Attributes: attrs, Bucket: unversionedBucket()}, strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("PutObject: %v", err)
	}
	if entry.Attrs["x-tag"] != "v1" {
		t.Fatalf("Attrs = %+v, want x-tag=v1", entry.Attrs)
	}
}
