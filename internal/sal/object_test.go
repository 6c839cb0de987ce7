package sal

import (
	"context"
	"strings"
	"testing"

	"github.com/shoalstore/shoalstore/internal/catalog"
	"github.com/shoalstore/shoalstore/internal/objengine"
)

func testBucketRecord() *catalog.BucketRecord {
	return &catalog.BucketRecord{Tenant: "t", Bucket: "b", Owner: "alice"}
}

func TestPutObjectThenGetObjectRoundTrips(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, Config{})
	bucket := testBucketRecord()
	if err := s.CreateBucket(ctx, bucket); err != nil {
		t.Fatalf("CreateBucket: %v", err)
	}
	tenantBucket := catalog.TenantBucketKey("t", "b")

	if _, err := s.PutObject(ctx, objengine.PutParams{TenantBucket: tenantBucket, Owner: "alice", Name: "a.txt", Size: 5, Bucket: bucket}, strings.NewReader("hello")); err != nil {
		t.Fatalf("PutObject: %v", err)
	}

	var got []byte
	_, err := s.GetObject(ctx, tenantBucket, "a.txt", "", objengine.Conditions{}, 0, -1, func(chunk []byte) error {
		got = append(got, chunk...)
		return nil
	})
	if err != nil {
		t.Fatalf("GetObject: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("GetObject body = %q, want %q", got, "hello")
	}
}

func TestHeadObjectReturnsEntryWithoutBody(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, Config{})
	bucket := testBucketRecord()
	if err := s.CreateBucket(ctx, bucket); err != nil {
		t.Fatalf("CreateBucket: %v", err)
	}
	tenantBucket := catalog.TenantBucketKey("t", "b")
	if _, err := s.PutObject(ctx, objengine.PutParams{TenantBucket: tenantBucket, Owner: "alice", Name: "a.txt", Size: 5, Bucket: bucket}, strings.NewReader("hello")); err != nil {
		t.Fatalf("PutObject: %v", err)
	}

	entry, err := s.HeadObject(ctx, tenantBucket, "a.txt", "")
	if err != nil {
		t.Fatalf("HeadObject: %v", err)
	}
	if entry.Size != 5 {
		t.Fatalf("HeadObject Size = %d, want 5", entry.Size)
	}
}

func TestDeleteObjectRemovesIt(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, Config{})
	bucket := testBucketRecord()
	if err := s.CreateBucket(ctx, bucket); err != nil {
		t.Fatalf("CreateBucket: %v", err)
	}
	tenantBucket := catalog.TenantBucketKey("t", "b")
	if _, err := s.PutObject(ctx, objengine.PutParams{TenantBucket: tenantBucket, Owner: "alice", Name: "a.txt", Size: 5, Bucket: bucket}, strings.NewReader("hello")); err != nil {
		t.Fatalf("PutObject: %v", err)
	}

	if _, err := s.DeleteObject(ctx, tenantBucket, "alice", "a.txt", "", bucket); err != nil {
		t.Fatalf("DeleteObject: %v", err)
	}
	if _, err := s.HeadObject(ctx, tenantBucket, "a.txt", ""); err == nil {
		t.Fatalf("HeadObject should fail after DeleteObject")
	}
}

func TestSetObjectAttrsThenGetObjectAttrs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, Config{})
	bucket := testBucketRecord()
	if err := s.CreateBucket(ctx, bucket); err != nil {
		t.Fatalf("CreateBucket: %v", err)
	}
	tenantBucket := catalog.TenantBucketKey("t", "b")
	if _, err := s.PutObject(ctx, objengine.PutParams{TenantBucket: tenantBucket, Owner: "alice", Name: "a.txt", Size: 5, Bucket: bucket}, strings.NewReader("hello")); err != nil {
		t.Fatalf("PutObject: %v", err)
	}

	if _, err := s.SetObjectAttrs(ctx, tenantBucket, "a.txt", "", map[string]string{"tag": "v1"}); err != nil {
		t.Fatalf("SetObjectAttrs: %v", err)
	}
	attrs, err := s.GetObjectAttrs(ctx, tenantBucket, "a.txt", "")
	if err != nil {
		t.Fatalf("GetObjectAttrs: %v", err)
	}
	if attrs["tag"] != "v1" {
		t.Fatalf("GetObjectAttrs = %v, want tag=v1", attrs)
	}
}

func TestCopyObjectDuplicatesEntry(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, Config{})
	bucket := testBucketRecord()
	if err := s.CreateBucket(ctx, bucket); err != nil {
		t.Fatalf("CreateBucket: %v", err)
	}
	tenantBucket := catalog.TenantBucketKey("t", "b")
	if _, err := s.PutObject(ctx, objengine.PutParams{TenantBucket: tenantBucket, Owner: "alice", Name: "src.txt", Size: 5, Bucket: bucket}, strings.NewReader("hello")); err != nil {
		t.Fatalf("PutObject: %v", err)
	}

	dst, err := s.CopyObject(ctx, objengine.CopyParams{
		SourceTenantBucket: tenantBucket,
		SourceName:         "src.txt",
		DestTenantBucket:   tenantBucket,
		DestName:           "dst.txt",
		DestOwner:          "alice",
		DestBucket:         bucket,
	})
	if err != nil {
		t.Fatalf("CopyObject: %v", err)
	}
	if dst.Name != "dst.txt" || dst.Size != 5 {
		t.Fatalf("CopyObject entry = %+v, want dst.txt size 5", dst)
	}
}

func TestListObjectsReturnsPutEntries(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, Config{})
	bucket := testBucketRecord()
	if err := s.CreateBucket(ctx, bucket); err != nil {
		t.Fatalf("CreateBucket: %v", err)
	}
	tenantBucket := catalog.TenantBucketKey("t", "b")
	for _, name := range []string{"a.txt", "b.txt"} {
		if _, err := s.PutObject(ctx, objengine.PutParams{TenantBucket: tenantBucket, Owner: "alice", Name: name, Size: 5, Bucket: bucket}, strings.NewReader("hello")); err != nil {
			t.Fatalf("PutObject(%s): %v", name, err)
		}
	}

	result, err := s.ListObjects(ctx, objengine.ListParams{TenantBucket: tenantBucket, Max: 10})
	if err != nil {
		t.Fatalf("ListObjects: %v", err)
	}
	if len(result.Entries) != 2 {
		t.Fatalf("ListObjects = %d entries, want 2", len(result.Entries))
	}
}
