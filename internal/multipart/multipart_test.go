package multipart

import (
	"testing"

	"github.com/shoalstore/shoalstore/internal/catalog"
	"github.com/shoalstore/shoalstore/internal/idgen"
	"github.com/shoalstore/shoalstore/internal/index"
	"github.com/shoalstore/shoalstore/internal/mcache"
	"github.com/shoalstore/shoalstore/internal/objengine"
	"github.com/shoalstore/shoalstore/internal/objstore"
)

const testTenantBucket = "t/b"

// newTestStore builds a Store over in-memory backends, in either the
// separate-part or the tiered strategy, suitable for exercising
// initiate/upload-part/complete/abort logic without any real I/O.
func newTestStore(t *testing.T, tiered bool) *Store {
	t.Helper()
	idxGW := index.NewGateway(index.NewMemoryBackend())
	gen, err := idgen.NewGenerator()
	if err != nil {
		t.Fatalf("idgen.NewGenerator: %v", err)
	}
	layouts := objstore.DefaultCatalog()
	objGW := objstore.NewGateway(objstore.NewMemoryBackend(), layouts, idxGW, gen, 1)
	caches := mcache.NewStore(64, 64, 64)
	eng := objengine.New(idxGW, objGW, layouts, caches, nil, catalog.NoQuota{}, false)
	return New(idxGW, objGW, layouts, caches, nil, false, eng, tiered)
}

func unversionedBucket() *catalog.BucketRecord {
	return &catalog.BucketRecord{Tenant: "t", Bucket: "b", Owner: "alice"}
}

func versionedBucket() *catalog.BucketRecord {
	return &catalog.BucketRecord{Tenant: "t", Bucket: "b", Owner: "alice", Versioned: true}
}

func suspendedBucket() *catalog.BucketRecord {
	return &catalog.BucketRecord{Tenant: "t", Bucket: "b", Owner: "alice", Versioned: true, Suspended: true}
}
