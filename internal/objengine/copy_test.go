package objengine

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/shoalstore/shoalstore/internal/errors"
)

func TestCopyObjectRejectsSameObject(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	bucket := unversionedBucket()

	if _, err := s.PutObject(ctx, PutParams{TenantBucket: testTenantBucket, Owner: "alice", Name: "a.txt", Size: 5, Bucket: bucket}, strings.NewReader("hello")); err != nil {
		t.Fatalf("PutObject: %v", err)
	}

	_, err := s.CopyObject(ctx, CopyParams{
		SourceTenantBucket: testTenantBucket,
		SourceName:         "a.txt",
		DestTenantBucket:   testTenantBucket,
		DestName:           "a.txt",
		DestBucket:         bucket,
		DestOwner:          "alice",
	})
	if !stderrors.Is(err, errors.InvalidArgument) {
		t.Fatalf("expected InvalidArgument for same-object copy, got %v", err)
	}
}

func TestCopyObjectRejectsCrossZonegroupAndEncryptedSource(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	bucket := unversionedBucket()

	if _, err := s.CopyObject(ctx, CopyParams{
		SourceTenantBucket: testTenantBucket,
		SourceName:         "a.txt",
		DestTenantBucket:   testTenantBucket,
		DestName:           "b.txt",
		DestBucket:         bucket,
		DestOwner:          "alice",
		CrossZonegroup:     true,
	}); !stderrors.Is(err, errors.NotImplemented) {
		t.Fatalf("expected NotImplemented for cross-zonegroup copy, got %v", err)
	}

	if _, err := s.CopyObject(ctx, CopyParams{
		SourceTenantBucket: testTenantBucket,
		SourceName:         "a.txt",
		DestTenantBucket:   testTenantBucket,
		DestName:           "b.txt",
		DestBucket:         bucket,
		DestOwner:          "alice",
		SourceEncrypted:    true,
	}); !stderrors.Is(err, errors.NotImplemented) {
		t.Fatalf("expected NotImplemented for encrypted-source copy, got %v", err)
	}
}

func TestCopyObjectCopiesBytesAndTags(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	bucket := unversionedBucket()

	if _, err := s.PutObject(ctx, PutParams{
		TenantBucket: testTenantBucket, Owner: "alice", Name: "a.txt", Size: 11,
		Attributes: map[string]string{"k": "v"}, Bucket: bucket,
	}, strings.NewReader("hello world")); err != nil {
		t.Fatalf("PutObject: %v", err)
	}

	entry, err := s.CopyObject(ctx, CopyParams{
		SourceTenantBucket: testTenantBucket,
		SourceName:         "a.txt",
		DestTenantBucket:   testTenantBucket,
		DestName:           "b.txt",
		DestBucket:         bucket,
		DestOwner:          "alice",
		TaggingDirective:   TaggingCopy,
	})
	if err != nil {
		t.Fatalf("CopyObject: %v", err)
	}
	if entry.Size != 11 {
		t.Fatalf("Size = %d, want 11", entry.Size)
	}
	if entry.Attrs["k"] != "v" {
		t.Fatalf("Attrs = %+v, want k=v carried over from source", entry.Attrs)
	}

	var got []byte
	if _, err := s.GetObject(ctx, testTenantBucket, "b.txt", "", Conditions{}, 0, -1, func(chunk []byte) error {
		got = append(got, chunk...)
		return nil
	}); err != nil {
		t.Fatalf("GetObject on copy destination: %v", err)
	}
	if string(got) != "hello world" {
		t.Fatalf("copied bytes = %q, want %q", got, "hello world")
	}
}

func TestCopyObjectReplaceTaggingUsesRequestTags(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	bucket := unversionedBucket()

	if _, err := s.PutObject(ctx, PutParams{
		TenantBucket: testTenantBucket, Owner: "alice", Name: "a.txt", Size: 5,
		Attributes: map[string]string{"k": "v"}, Bucket: bucket,
	}, strings.NewReader("hello")); err != nil {
		t.Fatalf("PutObject: %v", err)
	}

	entry, err := s.CopyObject(ctx, CopyParams{
		SourceTenantBucket: testTenantBucket,
		SourceName:         "a.txt",
		DestTenantBucket:   testTenantBucket,
		DestName:           "b.txt",
		DestBucket:         bucket,
		DestOwner:          "alice",
		TaggingDirective:   TaggingReplace,
		RequestTags:        map[string]string{"new": "tag"},
	})
	if err != nil {
		t.Fatalf("CopyObject: %v", err)
	}
	if entry.Attrs["new"] != "tag" || entry.Attrs["k"] != "" {
		t.Fatalf("Attrs = %+v, want only the replacement tag", entry.Attrs)
	}
}
