package objengine

import (
	"testing"

	"github.com/shoalstore/shoalstore/internal/catalog"
	"github.com/shoalstore/shoalstore/internal/idgen"
	"github.com/shoalstore/shoalstore/internal/index"
	"github.com/shoalstore/shoalstore/internal/mcache"
	"github.com/shoalstore/shoalstore/internal/objstore"
)

// newTestStore builds a Store over in-memory backends, with no GC queue and
// no quota enforcement, suitable for exercising PUT/GET/DELETE/LIST/COPY
// logic without any real I/O.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	idxGW := index.NewGateway(index.NewMemoryBackend())
	gen, err := idgen.NewGenerator()
	if err != nil {
		t.Fatalf("idgen.NewGenerator: %v", err)
	}
	objGW := objstore.NewGateway(objstore.NewMemoryBackend(), objstore.DefaultCatalog(), idxGW, gen, 1)
	caches := mcache.NewStore(64, 64, 64)
	return New(idxGW, objGW, objstore.DefaultCatalog(), caches, nil, catalog.NoQuota{}, false)
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

const testTenantBucket = "t/b"
