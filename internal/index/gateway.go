package index

import (
	"bytes"
	"context"
	"time"

	"github.com/shoalstore/shoalstore/internal/errors"
	"github.com/shoalstore/shoalstore/internal/idgen"
	"github.com/shoalstore/shoalstore/internal/metrics"
)

// dirMarker is appended to a collapsed directory pseudo-entry's key before
// resuming iteration, so the next Next call skips every key sharing that
// directory prefix instead of re-emitting it. Spec: "directory + 0xFF".
const dirMarker = 0xFF

// Gateway is the Index Gateway (C1): it hashes textual index names into
// 128-bit IDs and layers prefix/delimiter-aware NEXT batching on top of a
// raw Backend.
type Gateway struct {
	backend Backend
}

// NewGateway wraps backend with name-to-ID hashing and NEXT batching.
func NewGateway(backend Backend) *Gateway {
	return &Gateway{backend: backend}
}

// Put writes value at key within the named index.
func (g *Gateway) Put(ctx context.Context, name string, key, value []byte, overwrite bool) error {
	defer observeIndexOp(name, "put", time.Now())
	err := g.backend.Put(ctx, idgen.NameToIndexID(name), key, value, overwrite)
	metrics.IndexOpsTotal.WithLabelValues(name, "put", outcome(err)).Inc()
	return err
}

// Get returns the value at key within the named index.
func (g *Gateway) Get(ctx context.Context, name string, key []byte) ([]byte, error) {
	defer observeIndexOp(name, "get", time.Now())
	v, err := g.backend.Get(ctx, idgen.NameToIndexID(name), key)
	metrics.IndexOpsTotal.WithLabelValues(name, "get", outcome(err)).Inc()
	return v, err
}

// Del removes key from the named index.
func (g *Gateway) Del(ctx context.Context, name string, key []byte) error {
	defer observeIndexOp(name, "del", time.Now())
	err := g.backend.Del(ctx, idgen.NameToIndexID(name), key)
	metrics.IndexOpsTotal.WithLabelValues(name, "del", outcome(err)).Inc()
	return err
}

func observeIndexOp(name, op string, start time.Time) {
	metrics.IndexOpDuration.WithLabelValues(name, op).Observe(time.Since(start).Seconds())
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// HealthCheck proxies to the underlying backend.
func (g *Gateway) HealthCheck(ctx context.Context) error {
	return g.backend.HealthCheck(ctx)
}

// Next returns up to max entries with key >= cursor from the named index,
// restricted to keys sharing prefix (if non-nil). If delim is non-nil, any
// key that contains delim beyond prefix collapses into a directory
// pseudo-entry: the returned key is the common prefix up to and including
// the first occurrence of delim, the value is empty, and iteration skips to
// the next key >= directory+0xFF. Consecutive duplicate directories are
// suppressed.
//
// batchSize controls how many raw backend entries are requested per
// round-trip; the backend is re-queried until max results are assembled or
// iteration terminates (fewer than a full batch returned, or a key no
// longer shares prefix).
func (g *Gateway) Next(ctx context.Context, name string, cursor []byte, max int, prefix, delim []byte) (result []Entry, resultErr error) {
	defer observeIndexOp(name, "next", time.Now())
	defer func() { metrics.IndexOpsTotal.WithLabelValues(name, "next", outcome(resultErr)).Inc() }()

	id := idgen.NameToIndexID(name)
	const batchSize = 100

	out := make([]Entry, 0, max)
	var lastDir []byte
	next := cursor

	for len(out) < max {
		batch, err := g.backend.Next(ctx, id, next, batchSize)
		if err != nil {
			return out, err
		}
		if len(batch) == 0 {
			break
		}

		terminated := false
		for _, e := range batch {
			if prefix != nil && !bytes.HasPrefix(e.Key, prefix) {
				terminated = true
				break
			}

			if delim != nil {
				if dirKey, isDir := collapseDelimiter(e.Key, prefix, delim); isDir {
					if lastDir == nil || !bytes.Equal(lastDir, dirKey) {
						out = append(out, Entry{Key: dirKey, Value: nil})
						lastDir = dirKey
						if len(out) >= max {
							terminated = true
							break
						}
					}
					next = append(append([]byte{}, dirKey...), dirMarker)
					continue
				}
			}

			out = append(out, e)
			lastDir = nil
			next = nextCursor(e.Key)
			if len(out) >= max {
				terminated = true
				break
			}
		}

		if terminated || len(batch) < batchSize {
			break
		}
	}

	return out, nil
}

// collapseDelimiter reports whether key (past prefix) contains delim, and if
// so returns the directory key: prefix + everything up to and including the
// first delim occurrence.
func collapseDelimiter(key, prefix, delim []byte) ([]byte, bool) {
	rest := key
	if prefix != nil {
		if !bytes.HasPrefix(key, prefix) {
			return nil, false
		}
		rest = key[len(prefix):]
	}
	idx := bytes.Index(rest, delim)
	if idx < 0 {
		return nil, false
	}
	cut := len(prefix) + idx + len(delim)
	dirKey := make([]byte, cut)
	copy(dirKey, key[:cut])
	return dirKey, true
}

// nextCursor returns the smallest key strictly greater than key, for
// resuming iteration past it.
func nextCursor(key []byte) []byte {
	out := make([]byte, len(key)+1)
	copy(out, key)
	return out
}

// IsNotFound reports whether err is index.Backend's not-found sentinel.
func IsNotFound(err error) bool { return errors.IsNotFound(err) }
