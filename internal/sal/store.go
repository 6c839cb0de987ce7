// Package sal implements the top-level capability set (spec §6.2): the
// single Store context an S3 (or other) front end is built against,
// gluing the Index Gateway (C1), Object Gateway (C2), Metadata Cache (C3),
// Catalog (C4), Object Engine (C5), Multipart Engine (C6), and Writer
// Pipeline (C7) behind User/Bucket/Object/Multipart/Writer operations.
//
// Spec §9's "Global mutable state" note places the monotonic ID generator,
// layout catalog, and three metadata caches in one Store context
// constructed at bootstrap and passed explicitly through every call; no
// package-level globals exist anywhere in this module.
package sal

import (
	"github.com/shoalstore/shoalstore/internal/catalog"
	"github.com/shoalstore/shoalstore/internal/cluster"
	"github.com/shoalstore/shoalstore/internal/gc"
	"github.com/shoalstore/shoalstore/internal/index"
	"github.com/shoalstore/shoalstore/internal/mcache"
	"github.com/shoalstore/shoalstore/internal/multipart"
	"github.com/shoalstore/shoalstore/internal/objengine"
	"github.com/shoalstore/shoalstore/internal/objstore"
)

// Config bundles the bootstrap-time capability toggles spec §6.4 names.
type Config struct {
	// UseMetadataCache mirrors use_metadata_cache: false turns every cache
	// partition into a pass-through.
	UseMetadataCache bool
	// GCEnabled mirrors gc_enabled: true routes byte-object deletes through
	// the GC enqueue interface, falling back to synchronous delete only if
	// enqueue itself fails.
	GCEnabled bool
	// TieredEnabled mirrors tiered_enabled: true makes new multipart
	// uploads use the composite-object strategy instead of one byte object
	// per part.
	TieredEnabled bool
}

// Store is the capability set spec §6.2 exposes upward: User, Bucket,
// Object, Multipart, and Writer operations, plus Finalize. It is a value
// built once at bootstrap from already-constructed C1-C4/C7 dependencies;
// Store itself constructs the C5 (objengine) and C6 (multipart) engines
// that sit on top of them.
type Store struct {
	idx     *index.Gateway
	objGW   *objstore.Gateway
	layouts objstore.LayoutCatalog
	caches  *mcache.Store
	node    *cluster.Node
	gcQueue *gc.Queue
	quota   catalog.QuotaChecker

	objects   *objengine.Store
	multipart *multipart.Store
}

// New builds a Store. idx, objGW, layouts, caches, and gcQueue must already
// be mutually wired where that matters (e.g. caches.SetBroadcaster(node)
// already called); node and gcQueue may be nil, matching a single-process,
// synchronous-delete deployment. quota may be catalog.NoQuota{}.
func New(idx *index.Gateway, objGW *objstore.Gateway, layouts objstore.LayoutCatalog, caches *mcache.Store, node *cluster.Node, gcQueue *gc.Queue, quota catalog.QuotaChecker, cfg Config) *Store {
	if caches != nil {
		caches.SetEnabled(cfg.UseMetadataCache)
	}
	objects := objengine.New(idx, objGW, layouts, caches, gcQueue, quota, cfg.GCEnabled)
	mp := multipart.New(idx, objGW, layouts, caches, gcQueue, cfg.GCEnabled, objects, cfg.TieredEnabled)
	return &Store{
		idx:       idx,
		objGW:     objGW,
		layouts:   layouts,
		caches:    caches,
		node:      node,
		gcQueue:   gcQueue,
		quota:     quota,
		objects:   objects,
		multipart: mp,
	}
}

// Finalize implements spec §6.2's Store/finalize row: stop the GC queue's
// worker pool and disconnect the cluster invalidation transport. Safe to
// call once at shutdown; not safe to call concurrently with in-flight
// operations against this Store.
func (s *Store) Finalize() error {
	if s.gcQueue != nil {
		s.gcQueue.Stop()
	}
	if s.node != nil {
		return s.node.Stop()
	}
	return nil
}
