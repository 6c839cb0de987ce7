package index

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/shoalstore/shoalstore/internal/errors"
	"github.com/shoalstore/shoalstore/internal/idgen"
)

// MemoryBackend is an in-process Backend implementation backed by sorted
// slices per index. Used for tests and single-process deployments with no
// durability requirement.
type MemoryBackend struct {
	mu      sync.RWMutex
	indices map[idgen.ID][]memEntry
}

type memEntry struct {
	key, value []byte
}

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{indices: make(map[idgen.ID][]memEntry)}
}

func (b *MemoryBackend) Put(ctx context.Context, id idgen.ID, key, value []byte, overwrite bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries := b.indices[id]
	i := sort.Search(len(entries), func(i int) bool { return bytes.Compare(entries[i].key, key) >= 0 })

	if i < len(entries) && bytes.Equal(entries[i].key, key) {
		if !overwrite {
			return errors.Wrap(errors.AlreadyExists, "key %x", key)
		}
		entries[i].value = append([]byte{}, value...)
		return nil
	}

	entry := memEntry{key: append([]byte{}, key...), value: append([]byte{}, value...)}
	entries = append(entries, memEntry{})
	copy(entries[i+1:], entries[i:])
	entries[i] = entry
	b.indices[id] = entries
	return nil
}

func (b *MemoryBackend) Get(ctx context.Context, id idgen.ID, key []byte) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	entries := b.indices[id]
	i := sort.Search(len(entries), func(i int) bool { return bytes.Compare(entries[i].key, key) >= 0 })
	if i < len(entries) && bytes.Equal(entries[i].key, key) {
		return append([]byte{}, entries[i].value...), nil
	}
	return nil, errors.Wrap(errors.NotFound, "key %x", key)
}

func (b *MemoryBackend) Del(ctx context.Context, id idgen.ID, key []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries := b.indices[id]
	i := sort.Search(len(entries), func(i int) bool { return bytes.Compare(entries[i].key, key) >= 0 })
	if i >= len(entries) || !bytes.Equal(entries[i].key, key) {
		return errors.Wrap(errors.NotFound, "key %x", key)
	}
	b.indices[id] = append(entries[:i], entries[i+1:]...)
	return nil
}

func (b *MemoryBackend) Next(ctx context.Context, id idgen.ID, cursor []byte, max int) ([]Entry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	entries := b.indices[id]
	i := sort.Search(len(entries), func(i int) bool { return bytes.Compare(entries[i].key, cursor) >= 0 })

	out := make([]Entry, 0, max)
	for ; i < len(entries) && len(out) < max; i++ {
		out = append(out, Entry{
			Key:   append([]byte{}, entries[i].key...),
			Value: append([]byte{}, entries[i].value...),
		})
	}
	return out, nil
}

func (b *MemoryBackend) HealthCheck(ctx context.Context) error {
	return nil
}
