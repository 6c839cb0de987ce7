package objstore

import (
	"context"
	"sync"

	"github.com/shoalstore/shoalstore/internal/errors"
	"github.com/shoalstore/shoalstore/internal/idgen"
)

// MemoryBackend is an in-process Backend over a plain byte-slice map. Used
// for tests and single-process deployments with no durability requirement.
type MemoryBackend struct {
	mu      sync.RWMutex
	objects map[idgen.ID][]byte
}

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{objects: make(map[idgen.ID][]byte)}
}

func (b *MemoryBackend) CreateObject(ctx context.Context, id idgen.ID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.objects[id]; ok {
		return errors.Wrap(errors.AlreadyExists, "object %s", id)
	}
	b.objects[id] = []byte{}
	return nil
}

func (b *MemoryBackend) DeleteObject(ctx context.Context, id idgen.ID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, id)
	return nil
}

func (b *MemoryBackend) WriteBlock(ctx context.Context, id idgen.ID, offset int64, data []byte, last bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	obj, ok := b.objects[id]
	if !ok {
		return errors.Wrap(errors.NotFound, "object %s", id)
	}
	end := offset + int64(len(data))
	if end > int64(len(obj)) {
		grown := make([]byte, end)
		copy(grown, obj)
		obj = grown
	}
	copy(obj[offset:end], data)
	b.objects[id] = obj
	return nil
}

func (b *MemoryBackend) ReadBlock(ctx context.Context, id idgen.ID, offset, size int64) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, ok := b.objects[id]
	if !ok {
		return nil, errors.Wrap(errors.NotFound, "object %s", id)
	}
	if offset >= int64(len(obj)) {
		return nil, nil
	}
	end := offset + size
	if end > int64(len(obj)) {
		end = int64(len(obj))
	}
	out := make([]byte, end-offset)
	copy(out, obj[offset:end])
	return out, nil
}

func (b *MemoryBackend) Exists(ctx context.Context, id idgen.ID) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.objects[id]
	return ok, nil
}

func (b *MemoryBackend) HealthCheck(ctx context.Context) error {
	return nil
}
