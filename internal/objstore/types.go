// Package objstore implements the Object Gateway (C2): a handle-based
// byte-container API over plain striped objects and composite (layered)
// objects, backed by one of several concrete Backend implementations.
package objstore

import (
	"fmt"

	"github.com/shoalstore/shoalstore/internal/idgen"
)

// Layout is a striping recipe: unit size plus N data + K parity + S spare
// units spread across a pool of width P. Picked from a LayoutCatalog by
// object size.
type Layout struct {
	ID       uint32
	UnitSize int64
	N        int
	K        int
	S        int
	P        int
}

// Layer is one sub-object of a composite object, with the priority it was
// added at (higher wins when layers overlap).
type Layer struct {
	ID       idgen.ID
	Priority uint32
}

// TopLayerPriority is the priority assigned to the single top layer created
// by CreateComposite. Matches the composite priority formula
// ((0x00FFFFFF - gen) << 8) | top_tier with gen=0, top_tier=0.
const TopLayerPriority = uint32(0x00FFFFFF) << 8

// ObjectMeta identifies and describes a byte container: the triple
// (object-id, placement-version, layout-id), plus composite layer state.
type ObjectMeta struct {
	ID               idgen.ID
	PlacementVersion uint64
	LayoutID         uint32
	IsComposite      bool
	Layers           []Layer
}

// Extent is a half-open-or-unbounded byte range within a layer's write or
// read extent index. Unbounded marks an end of infinity (the initial
// (0, inf) extent every new layer is created with).
type Extent struct {
	Start     int64
	End       int64
	Unbounded bool
}

// LayoutCatalog resolves object sizes and layout IDs to concrete Layouts.
type LayoutCatalog interface {
	FindByObjSize(size int64) (Layout, error)
	Get(id uint32) (Layout, error)
}

// StaticCatalog is a fixed, in-memory LayoutCatalog: a small ladder of
// layouts sized for increasingly large objects, the simplest legitimate
// implementation of "consult the store's layout catalog" (spec §4.2).
type StaticCatalog struct {
	layouts []Layout
}

// NewStaticCatalog builds a catalog from layouts sorted ascending by the
// object size each is best suited for; the first layout is used for any
// size up to its own threshold-free minimum, the last layout is used for
// anything larger than all thresholds.
func NewStaticCatalog(layouts ...Layout) *StaticCatalog {
	return &StaticCatalog{layouts: layouts}
}

// DefaultCatalog returns a small ladder of layouts: a 64KiB unit size, 1
// data unit layout for small objects, scaling up to a 3+2 erasure layout
// with a 1MiB unit size for large objects.
func DefaultCatalog() *StaticCatalog {
	return NewStaticCatalog(
		Layout{ID: 1, UnitSize: 64 * 1024, N: 1, K: 0, S: 0, P: 1},
		Layout{ID: 2, UnitSize: 256 * 1024, N: 2, K: 1, S: 0, P: 4},
		Layout{ID: 3, UnitSize: 1024 * 1024, N: 3, K: 2, S: 1, P: 8},
	)
}

// FindByObjSize returns the smallest layout whose unit*N group size is at
// least size, or the largest layout if size exceeds them all.
func (c *StaticCatalog) FindByObjSize(size int64) (Layout, error) {
	if len(c.layouts) == 0 {
		return Layout{}, fmt.Errorf("layout catalog is empty")
	}
	for _, l := range c.layouts {
		if size <= l.UnitSize*int64(l.N) {
			return l, nil
		}
	}
	return c.layouts[len(c.layouts)-1], nil
}

// Get returns the layout with the given ID.
func (c *StaticCatalog) Get(id uint32) (Layout, error) {
	for _, l := range c.layouts {
		if l.ID == id {
			return l, nil
		}
	}
	return Layout{}, fmt.Errorf("unknown layout id %d", id)
}
