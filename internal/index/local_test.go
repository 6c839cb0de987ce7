package index

import (
	"context"
	"os"
	"testing"

	"github.com/shoalstore/shoalstore/internal/idgen"
)

func TestLocalBackendPutGetDel(t *testing.T) {
	dir, err := os.MkdirTemp("", "shoalstore-index-local-*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	defer os.RemoveAll(dir)

	b, err := NewLocalBackend(dir)
	if err != nil {
		t.Fatalf("NewLocalBackend: %v", err)
	}
	ctx := context.Background()
	id := idgen.NameToIndexID("buckets")

	if err := b.Put(ctx, id, []byte("k1"), []byte("v1"), true); err != nil {
		t.Fatalf("Put: %v", err)
	}
	v, err := b.Get(ctx, id, []byte("k1"))
	if err != nil || string(v) != "v1" {
		t.Fatalf("Get = %q, %v", v, err)
	}
	if err := b.Del(ctx, id, []byte("k1")); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if _, err := b.Get(ctx, id, []byte("k1")); !IsNotFound(err) {
		t.Fatalf("Get after Del = %v, want NotFound", err)
	}
}

func TestLocalBackendSurvivesReplay(t *testing.T) {
	dir, err := os.MkdirTemp("", "shoalstore-index-local-*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	defer os.RemoveAll(dir)

	ctx := context.Background()
	id := idgen.NameToIndexID("buckets")

	b1, err := NewLocalBackend(dir)
	if err != nil {
		t.Fatalf("NewLocalBackend: %v", err)
	}
	if err := b1.Put(ctx, id, []byte("k1"), []byte("v1"), true); err != nil {
		t.Fatalf("Put k1: %v", err)
	}
	if err := b1.Put(ctx, id, []byte("k2"), []byte("v2"), true); err != nil {
		t.Fatalf("Put k2: %v", err)
	}
	if err := b1.Del(ctx, id, []byte("k1")); err != nil {
		t.Fatalf("Del k1: %v", err)
	}

	b2, err := NewLocalBackend(dir)
	if err != nil {
		t.Fatalf("reopen NewLocalBackend: %v", err)
	}
	if _, err := b2.Get(ctx, id, []byte("k1")); !IsNotFound(err) {
		t.Fatalf("Get k1 after replay = %v, want NotFound (tombstoned)", err)
	}
	v, err := b2.Get(ctx, id, []byte("k2"))
	if err != nil || string(v) != "v2" {
		t.Fatalf("Get k2 after replay = %q, %v", v, err)
	}
}

func TestLocalBackendCompactPreservesLiveEntries(t *testing.T) {
	dir, err := os.MkdirTemp("", "shoalstore-index-local-*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	defer os.RemoveAll(dir)

	ctx := context.Background()
	id := idgen.NameToIndexID("buckets")

	b, err := NewLocalBackend(dir)
	if err != nil {
		t.Fatalf("NewLocalBackend: %v", err)
	}
	if err := b.Put(ctx, id, []byte("k1"), []byte("v1"), true); err != nil {
		t.Fatalf("Put k1: %v", err)
	}
	if err := b.Put(ctx, id, []byte("k2"), []byte("v2"), true); err != nil {
		t.Fatalf("Put k2: %v", err)
	}
	if err := b.Del(ctx, id, []byte("k1")); err != nil {
		t.Fatalf("Del k1: %v", err)
	}
	if err := b.Compact(id); err != nil {
		t.Fatalf("Compact: %v", err)
	}

	b2, err := NewLocalBackend(dir)
	if err != nil {
		t.Fatalf("reopen after compact: %v", err)
	}
	if _, err := b2.Get(ctx, id, []byte("k1")); !IsNotFound(err) {
		t.Fatalf("Get k1 after compact+replay = %v, want NotFound", err)
	}
	v, err := b2.Get(ctx, id, []byte("k2"))
	if err != nil || string(v) != "v2" {
		t.Fatalf("Get k2 after compact+replay = %q, %v", v, err)
	}
}
