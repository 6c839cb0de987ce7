package main

import (
	"context"
	"testing"
	"time"

	"github.com/shoalstore/shoalstore/internal/catalog"
	"github.com/shoalstore/shoalstore/internal/idgen"
	"github.com/shoalstore/shoalstore/internal/index"
	"github.com/shoalstore/shoalstore/internal/mcache"
	"github.com/shoalstore/shoalstore/internal/multipart"
	"github.com/shoalstore/shoalstore/internal/objstore"
	"github.com/shoalstore/shoalstore/internal/sal"
)

func newReaperTestStore(t *testing.T) (*sal.Store, *index.Gateway) {
	t.Helper()
	idxGW := index.NewGateway(index.NewMemoryBackend())
	gen, err := idgen.NewGenerator()
	if err != nil {
		t.Fatalf("idgen.NewGenerator: %v", err)
	}
	objGW := objstore.NewGateway(objstore.NewMemoryBackend(), objstore.DefaultCatalog(), idxGW, gen, 1)
	caches := mcache.NewStore(64, 64, 64)
	store := sal.New(idxGW, objGW, objstore.DefaultCatalog(), caches, nil, nil, catalog.NoQuota{}, sal.Config{})
	return store, idxGW
}

func TestReapBucketAbortsOnlyUploadsOlderThanCutoff(t *testing.T) {
	ctx := context.Background()
	store, _ := newReaperTestStore(t)

	bucket := &catalog.BucketRecord{Tenant: "t", Bucket: "b", Owner: "alice"}
	if err := store.CreateBucket(ctx, bucket); err != nil {
		t.Fatalf("CreateBucket: %v", err)
	}
	tenantBucket := catalog.TenantBucketKey(bucket.Tenant, bucket.Bucket)

	if _, err := store.InitiateMultipartUpload(ctx, multipart.InitiateParams{TenantBucket: tenantBucket, Owner: "alice", Name: "old.bin"}); err != nil {
		t.Fatalf("InitiateMultipartUpload(old): %v", err)
	}

	cutoff := time.Now().Add(time.Hour)
	n, err := reapBucket(ctx, store, tenantBucket, cutoff)
	if err != nil {
		t.Fatalf("reapBucket: %v", err)
	}
	if n != 1 {
		t.Fatalf("reapBucket aborted %d uploads, want 1", n)
	}

	result, err := store.ListMultipartUploads(ctx, multipart.ListUploadsParams{TenantBucket: tenantBucket, Max: 10})
	if err != nil {
		t.Fatalf("ListMultipartUploads: %v", err)
	}
	if len(result.Entries) != 0 {
		t.Fatalf("ListMultipartUploads after reapBucket = %v, want empty", result.Entries)
	}
}

func TestReapBucketLeavesFreshUploadsAlone(t *testing.T) {
	ctx := context.Background()
	store, _ := newReaperTestStore(t)

	bucket := &catalog.BucketRecord{Tenant: "t", Bucket: "b", Owner: "alice"}
	if err := store.CreateBucket(ctx, bucket); err != nil {
		t.Fatalf("CreateBucket: %v", err)
	}
	tenantBucket := catalog.TenantBucketKey(bucket.Tenant, bucket.Bucket)

	if _, err := store.InitiateMultipartUpload(ctx, multipart.InitiateParams{TenantBucket: tenantBucket, Owner: "alice", Name: "fresh.bin"}); err != nil {
		t.Fatalf("InitiateMultipartUpload(fresh): %v", err)
	}

	cutoff := time.Now().Add(-time.Hour)
	n, err := reapBucket(ctx, store, tenantBucket, cutoff)
	if err != nil {
		t.Fatalf("reapBucket: %v", err)
	}
	if n != 0 {
		t.Fatalf("reapBucket aborted %d uploads, want 0", n)
	}

	result, err := store.ListMultipartUploads(ctx, multipart.ListUploadsParams{TenantBucket: tenantBucket, Max: 10})
	if err != nil {
		t.Fatalf("ListMultipartUploads: %v", err)
	}
	if len(result.Entries) != 1 {
		t.Fatalf("ListMultipartUploads after reapBucket = %v, want 1 untouched upload", result.Entries)
	}
}

func TestReapSweepWalksEveryBucket(t *testing.T) {
	ctx := context.Background()
	store, idxGW := newReaperTestStore(t)

	for _, name := range []string{"b1", "b2"} {
		bucket := &catalog.BucketRecord{Tenant: "t", Bucket: name, Owner: "alice"}
		if err := store.CreateBucket(ctx, bucket); err != nil {
			t.Fatalf("CreateBucket(%s): %v", name, err)
		}
		tenantBucket := catalog.TenantBucketKey(bucket.Tenant, bucket.Bucket)
		if _, err := store.InitiateMultipartUpload(ctx, multipart.InitiateParams{TenantBucket: tenantBucket, Owner: "alice", Name: "a.bin"}); err != nil {
			t.Fatalf("InitiateMultipartUpload(%s): %v", name, err)
		}
	}

	cutoff := time.Now().Add(time.Hour)
	n, err := reapSweep(ctx, store, idxGW, cutoff)
	if err != nil {
		t.Fatalf("reapSweep: %v", err)
	}
	if n != 2 {
		t.Fatalf("reapSweep aborted %d uploads, want 2", n)
	}
}
