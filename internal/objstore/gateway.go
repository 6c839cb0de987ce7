package objstore

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/shoalstore/shoalstore/internal/errors"
	"github.com/shoalstore/shoalstore/internal/idgen"
	"github.com/shoalstore/shoalstore/internal/index"
	"github.com/shoalstore/shoalstore/internal/metrics"
)

// extentIndexWrite and extentIndexRead name the two shared index.Gateway
// indices every composite layer's extents live in. Entries are scoped per
// layer by prefixing keys with the layer's 16-byte ID, so a layer's extents
// can be enumerated with a single prefix-bounded NEXT.
const (
	extentIndexWrite = "layer-write-extents"
	extentIndexRead  = "layer-read-extents"
)

// Gateway is the Object Gateway (C2): handle-based plain and composite byte
// containers over a Backend, using a LayoutCatalog for block-size selection
// and an index.Gateway for composite layer extent bookkeeping.
type Gateway struct {
	backend  Backend
	catalog  LayoutCatalog
	indexGW  *index.Gateway
	idgen    *idgen.Generator
	placeVer uint64
}

// NewGateway builds an Object Gateway. placementVersion is recorded on every
// created ObjectMeta (spec §3.1's ObjectMeta.placement-version); it changes
// only when the underlying placement topology is reconfigured, which this
// module treats as an operational event outside its own scope.
func NewGateway(backend Backend, catalog LayoutCatalog, indexGW *index.Gateway, gen *idgen.Generator, placementVersion uint64) *Gateway {
	return &Gateway{backend: backend, catalog: catalog, indexGW: indexGW, idgen: gen, placeVer: placementVersion}
}

// Create reserves a new object ID, picks a layout for size, and issues the
// create on the underlying service.
func (g *Gateway) Create(ctx context.Context, size int64) (*ObjectMeta, error) {
	layout, err := g.catalog.FindByObjSize(size)
	if err != nil {
		return nil, fmt.Errorf("selecting layout for size %d: %w", size, err)
	}

	id := g.idgen.Next()
	if err := g.backend.CreateObject(ctx, id); err != nil {
		return nil, fmt.Errorf("creating object %s: %w", id, err)
	}

	return &ObjectMeta{ID: id, PlacementVersion: g.placeVer, LayoutID: layout.ID}, nil
}

// CreateComposite creates a root object (with service-side metadata
// enabled) plus a single top layer sub-object, and seeds that layer's
// write/read extent indices with the initial unbounded (0, inf) extent. Any
// failure unwinds everything created so far.
func (g *Gateway) CreateComposite(ctx context.Context, size int64) (*ObjectMeta, error) {
	meta, err := g.Create(ctx, size)
	if err != nil {
		return nil, err
	}
	meta.IsComposite = true

	layer, err := g.addLayerTo(ctx, meta, TopLayerPriority)
	if err != nil {
		_ = g.backend.DeleteObject(ctx, meta.ID)
		return nil, fmt.Errorf("creating composite top layer: %w", err)
	}
	meta.Layers = []Layer{layer}
	return meta, nil
}

// AddLayer adds a new layer to an existing composite object at the given
// priority, seeding it with the initial unbounded extent.
func (g *Gateway) AddLayer(ctx context.Context, meta *ObjectMeta, priority uint32) (Layer, error) {
	if !meta.IsComposite {
		return Layer{}, errors.Wrap(errors.InvalidArgument, "object %s is not composite", meta.ID)
	}
	layer, err := g.addLayerTo(ctx, meta, priority)
	if err != nil {
		return Layer{}, err
	}
	meta.Layers = append(meta.Layers, layer)
	return layer, nil
}

func (g *Gateway) addLayerTo(ctx context.Context, meta *ObjectMeta, priority uint32) (Layer, error) {
	layerID := g.idgen.Next()
	if err := g.backend.CreateObject(ctx, layerID); err != nil {
		return Layer{}, fmt.Errorf("creating layer sub-object %s: %w", layerID, err)
	}

	ext := Extent{Start: 0, Unbounded: true}
	if err := g.putExtent(ctx, extentIndexWrite, layerID, ext); err != nil {
		_ = g.backend.DeleteObject(ctx, layerID)
		return Layer{}, fmt.Errorf("seeding write extent index: %w", err)
	}
	if err := g.putExtent(ctx, extentIndexRead, layerID, ext); err != nil {
		_ = g.delExtent(ctx, extentIndexWrite, layerID, 0)
		_ = g.backend.DeleteObject(ctx, layerID)
		return Layer{}, fmt.Errorf("seeding read extent index: %w", err)
	}

	return Layer{ID: layerID, Priority: priority}, nil
}

// DelLayer removes a layer's extents and sub-object, and drops it from
// meta.Layers.
func (g *Gateway) DelLayer(ctx context.Context, meta *ObjectMeta, layerID idgen.ID) error {
	if err := g.deleteLayerExtents(ctx, extentIndexWrite, layerID); err != nil {
		return err
	}
	if err := g.deleteLayerExtents(ctx, extentIndexRead, layerID); err != nil {
		return err
	}
	if err := g.backend.DeleteObject(ctx, layerID); err != nil {
		return fmt.Errorf("deleting layer sub-object %s: %w", layerID, err)
	}

	kept := meta.Layers[:0]
	for _, l := range meta.Layers {
		if l.ID != layerID {
			kept = append(kept, l)
		}
	}
	meta.Layers = kept
	return nil
}

// Write splits data into block-sized operations against the object service,
// starting at offset. last marks whether this call's final chunk is the
// object's last block (end-of-stream); the gateway zero-pads that chunk up
// to the layout's unit size before issuing it.
func (g *Gateway) Write(ctx context.Context, meta *ObjectMeta, offset int64, data []byte, last bool) (writeErr error) {
	defer func() { metrics.ObjectOpsTotal.WithLabelValues("write", outcome(writeErr)).Inc() }()

	layout, err := g.catalog.Get(meta.LayoutID)
	if err != nil {
		return fmt.Errorf("resolving layout %d: %w", meta.LayoutID, err)
	}

	pos := offset
	remaining := data
	for len(remaining) > 0 {
		bs := GetOptimalBS(layout, int64(len(remaining)), last)
		n := bs
		if n > int64(len(remaining)) {
			n = int64(len(remaining))
		}
		chunk := remaining[:n]
		remaining = remaining[n:]
		isLastChunk := last && len(remaining) == 0

		payload := chunk
		if isLastChunk {
			payload = zeroPadTo(chunk, layout.UnitSize)
		}

		if err := g.backend.WriteBlock(ctx, meta.ID, pos, payload, isLastChunk); err != nil {
			return fmt.Errorf("writing block at offset %d: %w", pos, err)
		}
		metrics.ObjectBytesWritten.Add(float64(len(chunk)))
		pos += int64(len(chunk))
	}
	return nil
}

// Read issues block-aligned reads covering [start, end] and invokes
// callback with each trimmed region in order. end is inclusive.
func (g *Gateway) Read(ctx context.Context, meta *ObjectMeta, start, end int64, callback func([]byte) error) (readErr error) {
	defer func() { metrics.ObjectOpsTotal.WithLabelValues("read", outcome(readErr)).Inc() }()

	layout, err := g.catalog.Get(meta.LayoutID)
	if err != nil {
		return fmt.Errorf("resolving layout %d: %w", meta.LayoutID, err)
	}

	pos := rounddown(start, layout.UnitSize)
	for pos <= end {
		remainingLen := end - pos + 1
		// A read's "last" flag marks the final parity group needed to cover
		// end; since the gateway has no independent notion of the object's
		// true logical size here, it treats reaching end as the signal,
		// matching a caller that always reads to a known, already-validated
		// end offset (§4.2's own read description does not specify a
		// separate end-of-object detection path beyond covering [start,end]).
		bs := GetOptimalBS(layout, remainingLen, true)

		block, err := g.backend.ReadBlock(ctx, meta.ID, pos, bs)
		if err != nil {
			return fmt.Errorf("reading block at offset %d: %w", pos, err)
		}
		if len(block) == 0 {
			break
		}

		blockStart, blockEnd := pos, pos+int64(len(block))-1
		trimStart := int64(0)
		if start > blockStart {
			trimStart = start - blockStart
		}
		trimEnd := int64(len(block))
		if blockEnd > end {
			trimEnd = end - blockStart + 1
		}
		if trimStart < trimEnd {
			n := trimEnd - trimStart
			if err := callback(block[trimStart:trimEnd]); err != nil {
				return err
			}
			metrics.ObjectBytesRead.Add(float64(n))
		}

		pos += bs
	}
	return nil
}

// Delete removes the underlying object. For composite objects, every
// layer's extents are deleted in bounded NEXT batches, then each layer
// sub-object, then the root.
func (g *Gateway) Delete(ctx context.Context, meta *ObjectMeta) (deleteErr error) {
	defer func() { metrics.ObjectOpsTotal.WithLabelValues("delete", outcome(deleteErr)).Inc() }()

	if meta.IsComposite {
		for _, layer := range meta.Layers {
			if err := g.deleteLayerExtents(ctx, extentIndexWrite, layer.ID); err != nil {
				return err
			}
			if err := g.deleteLayerExtents(ctx, extentIndexRead, layer.ID); err != nil {
				return err
			}
			if err := g.backend.DeleteObject(ctx, layer.ID); err != nil {
				return fmt.Errorf("deleting layer %s: %w", layer.ID, err)
			}
		}
	}
	if err := g.backend.DeleteObject(ctx, meta.ID); err != nil {
		return fmt.Errorf("deleting object %s: %w", meta.ID, err)
	}
	return nil
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// AddExtent records a bounded [start,end) extent for layerID in both the
// write and read extent indices. Used by the multipart engine's Complete
// operation to register one extent per part on a composite's top layer
// (spec §4.6.4 step 4: "add batches of read+write extents to the top
// layer, one extent per part, at the cumulative byte offset").
func (g *Gateway) AddExtent(ctx context.Context, layerID idgen.ID, start, end int64) error {
	ext := Extent{Start: start, End: end}
	if err := g.putExtent(ctx, extentIndexWrite, layerID, ext); err != nil {
		return fmt.Errorf("adding write extent [%d,%d) for layer %s: %w", start, end, layerID, err)
	}
	if err := g.putExtent(ctx, extentIndexRead, layerID, ext); err != nil {
		return fmt.Errorf("adding read extent [%d,%d) for layer %s: %w", start, end, layerID, err)
	}
	return nil
}

const extentBatchSize = 100

func (g *Gateway) deleteLayerExtents(ctx context.Context, indexName string, layerID idgen.ID) error {
	prefix := layerID[:]
	for {
		entries, err := g.indexGW.Next(ctx, indexName, prefix, extentBatchSize, prefix, nil)
		if err != nil {
			return fmt.Errorf("listing extents in %s for layer %s: %w", indexName, layerID, err)
		}
		if len(entries) == 0 {
			return nil
		}
		for _, e := range entries {
			if err := g.indexGW.Del(ctx, indexName, e.Key); err != nil && !index.IsNotFound(err) {
				return fmt.Errorf("deleting extent %x in %s: %w", e.Key, indexName, err)
			}
		}
		if len(entries) < extentBatchSize {
			return nil
		}
	}
}

func (g *Gateway) putExtent(ctx context.Context, indexName string, layerID idgen.ID, ext Extent) error {
	key := extentKey(layerID, ext.Start)
	val := encodeExtent(ext)
	return g.indexGW.Put(ctx, indexName, key, val, true)
}

func (g *Gateway) delExtent(ctx context.Context, indexName string, layerID idgen.ID, start int64) error {
	return g.indexGW.Del(ctx, indexName, extentKey(layerID, start))
}

func extentKey(layerID idgen.ID, start int64) []byte {
	key := make([]byte, len(layerID)+8)
	copy(key, layerID[:])
	binary.BigEndian.PutUint64(key[len(layerID):], uint64(start))
	return key
}

func encodeExtent(ext Extent) []byte {
	buf := make([]byte, 17)
	binary.BigEndian.PutUint64(buf[0:8], uint64(ext.Start))
	binary.BigEndian.PutUint64(buf[8:16], uint64(ext.End))
	if ext.Unbounded {
		buf[16] = 1
	}
	return buf
}

func decodeExtent(buf []byte) (Extent, error) {
	if len(buf) != 17 {
		return Extent{}, fmt.Errorf("malformed extent record: %d bytes", len(buf))
	}
	return Extent{
		Start:     int64(binary.BigEndian.Uint64(buf[0:8])),
		End:       int64(binary.BigEndian.Uint64(buf[8:16])),
		Unbounded: buf[16] == 1,
	}, nil
}

func zeroPadTo(data []byte, unit int64) []byte {
	padded := roundup(int64(len(data)), unit)
	if padded == int64(len(data)) {
		return data
	}
	out := make([]byte, padded)
	copy(out, data)
	return out
}

func roundup(v, unit int64) int64 {
	if unit <= 0 {
		return v
	}
	if v%unit == 0 {
		return v
	}
	return (v/unit + 1) * unit
}

func rounddown(v, unit int64) int64 {
	if unit <= 0 {
		return v
	}
	return (v / unit) * unit
}
