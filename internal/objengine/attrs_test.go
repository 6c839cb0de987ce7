package objengine

import (
	"context"
	"strings"
	"testing"

	"github.com/shoalstore/shoalstore/internal/errors"
)

func TestSetObjectAttrsRewritesAttrsWithoutTouchingBytes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	bucket := unversionedBucket()

	original, err := s.PutObject(ctx, PutParams{TenantBucket: testTenantBucket, Owner: "alice", Name: "a.txt", Size: 5, Bucket: bucket}, strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("PutObject: %v", err)
	}

	updated, err := s.SetObjectAttrs(ctx, testTenantBucket, "a.txt", "", map[string]string{"new": "tag"})
	if err != nil {
		t.Fatalf("SetObjectAttrs: %v", err)
	}
	if updated.Attrs["new"] != "tag" {
		t.Fatalf("Attrs = %+v, want new=tag", updated.Attrs)
	}
	if updated.Etag != original.Etag || updated.Size != original.Size {
		t.Fatalf("SetObjectAttrs must not change bytes/etag/size: got %+v, want etag=%q size=%d", updated, original.Etag, original.Size)
	}

	got, err := s.GetObjectAttrs(ctx, testTenantBucket, "a.txt", "")
	if err != nil {
		t.Fatalf("GetObjectAttrs: %v", err)
	}
	if got["new"] != "tag" {
		t.Fatalf("GetObjectAttrs = %+v, want new=tag", got)
	}
}

func TestSetObjectAttrsRejectsDeleteMarker(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	bucket := versionedBucket()

	if _, err := s.PutObject(ctx, PutParams{TenantBucket: testTenantBucket, Owner: "alice", Name: "a.txt", Size: 5, Bucket: bucket}, strings.NewReader("hello")); err != nil {
		t.Fatalf("PutObject: %v", err)
	}
	if _, err := s.DeleteObject(ctx, testTenantBucket, "alice", "a.txt", "", bucket); err != nil {
		t.Fatalf("DeleteObject: %v", err)
	}

	_, err := s.SetObjectAttrs(ctx, testTenantBucket, "a.txt", "", map[string]string{"k": "v"})
	if !errors.IsNotFound(err) {
		t.Fatalf("expected NotFound against a delete marker, got %v", err)
	}
}
