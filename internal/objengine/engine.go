// Package objengine implements the Object Engine (C5): versioned
// PUT/GET/DELETE/LIST/COPY and attribute management over the Catalog (C4),
// Object Gateway (C2), Writer Pipeline (C7), and Metadata Cache (C3).
package objengine

import (
	"context"
	"time"

	"github.com/shoalstore/shoalstore/internal/catalog"
	"github.com/shoalstore/shoalstore/internal/gc"
	"github.com/shoalstore/shoalstore/internal/index"
	"github.com/shoalstore/shoalstore/internal/mcache"
	"github.com/shoalstore/shoalstore/internal/objstore"
)

// emptyMD5 is the MD5 hex digest of zero bytes, the ETag of every
// zero-byte object (spec §3.7: zero-byte objects have no underlying byte
// container, so there is nothing to stream through the Writer Pipeline).
const emptyMD5 = "d41d8cd98f00b204e9800998ecf8427e"

// Store is the Object Engine: it wires the Catalog's record/index helpers
// to the Object Gateway and Writer Pipeline, keeping the Metadata Cache's
// object partition and the bucket's stats header in sync with every
// mutation.
type Store struct {
	idx       *index.Gateway
	objGW     *objstore.Gateway
	layouts   objstore.LayoutCatalog
	caches    *mcache.Store
	gcQueue   *gc.Queue
	quota     catalog.QuotaChecker
	gcEnabled bool
}

// New builds an Object Engine Store. quota may be catalog.NoQuota{} to
// disable quota enforcement; gcQueue may be nil, in which case deletes
// always happen synchronously (spec §6.4's gc_enabled=false behavior).
func New(idx *index.Gateway, objGW *objstore.Gateway, layouts objstore.LayoutCatalog, caches *mcache.Store, gcQueue *gc.Queue, quota catalog.QuotaChecker, gcEnabled bool) *Store {
	return &Store{idx: idx, objGW: objGW, layouts: layouts, caches: caches, gcQueue: gcQueue, quota: quota, gcEnabled: gcEnabled}
}

// versioningState mirrors the three S3 bucket-versioning states a
// catalog.BucketRecord can encode: never enabled, enabled, or enabled-then-
// suspended (spec §4.5.3's "suspended (flags contain VERSIONED but not
// ENABLED)" row).
type versioningState int

const (
	versioningDisabled versioningState = iota
	versioningEnabled
	versioningSuspended
)

func bucketVersioningState(rec *catalog.BucketRecord) versioningState {
	if !rec.Versioned {
		return versioningDisabled
	}
	if rec.Suspended {
		return versioningSuspended
	}
	return versioningEnabled
}

// objectCacheKey is the Metadata Cache key for an object DirEntry: the
// tenant-bucket plus the bucket-index key (spec §4.3's "keyed by the
// version-qualified object key").
func objectCacheKey(tenantBucket string, indexKey []byte) string {
	return tenantBucket + "\x00" + string(indexKey)
}

func (s *Store) cachePutEntry(ctx context.Context, tenantBucket string, key []byte, raw []byte, mtime time.Time) {
	if s.caches == nil {
		return
	}
	s.caches.Objects.Put(ctx, objectCacheKey(tenantBucket, key), raw, mtime)
}

func (s *Store) cacheInvalidate(ctx context.Context, tenantBucket string, key []byte) {
	if s.caches == nil {
		return
	}
	s.caches.Objects.InvalidateRemove(ctx, objectCacheKey(tenantBucket, key))
}

// toObjstoreMeta converts a catalog.ObjectMeta (the persisted, layer-
// handle-free form stored in a DirEntry) into the live objstore.ObjectMeta
// Gateway.Read/Write/Delete expect. Composite objects built by this engine
// only ever carry the single top layer CreateComposite creates, so
// reconstructing Layers from TopLayerID alone is exact for every object
// this package itself creates.
func toObjstoreMeta(m catalog.ObjectMeta) objstore.ObjectMeta {
	out := objstore.ObjectMeta{
		ID:               m.ObjectID,
		PlacementVersion: m.PlacementVersion,
		LayoutID:         m.LayoutID,
		IsComposite:      m.IsComposite,
	}
	if m.IsComposite && !m.TopLayerID.IsZero() {
		out.Layers = []objstore.Layer{{ID: m.TopLayerID, Priority: objstore.TopLayerPriority}}
	}
	return out
}

func fromObjstoreMeta(m *objstore.ObjectMeta) catalog.ObjectMeta {
	out := catalog.ObjectMeta{
		ObjectID:         m.ID,
		PlacementVersion: m.PlacementVersion,
		LayoutID:         m.LayoutID,
		IsComposite:      m.IsComposite,
	}
	if m.IsComposite && len(m.Layers) > 0 {
		out.TopLayerID = m.Layers[0].ID
	}
	return out
}

// hasBytes reports whether entry has an underlying byte container that
// needs deleting alongside its DirEntry (spec §3.7: zero-byte objects and
// delete markers have none).
func hasBytes(entry *catalog.DirEntry) bool {
	return entry.Size > 0 && !entry.Meta.ObjectID.IsZero()
}

// deleteBytes removes an object's underlying byte container, preferring
// the GC enqueue interface over a synchronous delete (spec §4.5.3);
// tag is only used to label the GC item.
func (s *Store) deleteBytes(ctx context.Context, tag string, meta catalog.ObjectMeta, size int64) error {
	live := toObjstoreMeta(meta)
	if s.gcEnabled && s.gcQueue != nil {
		err := s.gcQueue.EnqueueObject(ctx, gc.ObjectItem{Tag: tag, FQN: meta.ObjectID.String(), Meta: live, Size: size})
		if err == nil {
			return nil
		}
	}
	return s.objGW.Delete(ctx, &live)
}

func selectActiveEntry(entries []index.Entry, name string) (*catalog.DirEntry, []byte, bool) {
	var best *catalog.DirEntry
	var bestKey []byte
	for _, e := range entries {
		if e.Value == nil {
			continue // directory pseudo-entry
		}
		entry, err := catalog.DecodeDirEntry(e.Value)
		if err != nil || entry.Name != name {
			continue
		}
		if best == nil || entry.Mtime.After(best.Mtime) {
			best = entry
			bestKey = e.Key
		}
	}
	if best == nil {
		return nil, nil, false
	}
	return best, bestKey, true
}
