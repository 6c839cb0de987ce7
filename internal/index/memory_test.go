package index

import (
	"context"
	"testing"

	"github.com/shoalstore/shoalstore/internal/idgen"
)

func TestMemoryBackendPutGetDel(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()
	id := idgen.NameToIndexID("users")

	if err := b.Put(ctx, id, []byte("alice"), []byte("1"), true); err != nil {
		t.Fatalf("Put: %v", err)
	}
	v, err := b.Get(ctx, id, []byte("alice"))
	if err != nil || string(v) != "1" {
		t.Fatalf("Get = %q, %v", v, err)
	}
	if err := b.Del(ctx, id, []byte("alice")); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if _, err := b.Get(ctx, id, []byte("alice")); !IsNotFound(err) {
		t.Fatalf("Get after Del = %v, want NotFound", err)
	}
}

func TestMemoryBackendPutWithoutOverwriteRejectsExisting(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()
	id := idgen.NameToIndexID("users")

	if err := b.Put(ctx, id, []byte("k"), []byte("v1"), false); err != nil {
		t.Fatalf("first Put: %v", err)
	}
	if err := b.Put(ctx, id, []byte("k"), []byte("v2"), false); err == nil {
		t.Fatalf("second Put without overwrite should fail")
	}
	if err := b.Put(ctx, id, []byte("k"), []byte("v2"), true); err != nil {
		t.Fatalf("Put with overwrite: %v", err)
	}
	v, _ := b.Get(ctx, id, []byte("k"))
	if string(v) != "v2" {
		t.Fatalf("value = %q, want v2", v)
	}
}

func TestMemoryBackendNextOrdersByKey(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()
	id := idgen.NameToIndexID("users")

	for _, k := range []string{"c", "a", "b"} {
		if err := b.Put(ctx, id, []byte(k), []byte(k), true); err != nil {
			t.Fatalf("Put(%q): %v", k, err)
		}
	}

	entries, err := b.Next(ctx, id, nil, 10)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	got := make([]string, len(entries))
	for i, e := range entries {
		got[i] = string(e.Key)
	}
	want := []string{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Next order = %v, want %v", got, want)
		}
	}
}

func TestMemoryBackendIndicesAreIsolated(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()

	if err := b.Put(ctx, idgen.NameToIndexID("a"), []byte("k"), []byte("from-a"), true); err != nil {
		t.Fatalf("Put a: %v", err)
	}
	if _, err := b.Get(ctx, idgen.NameToIndexID("b"), []byte("k")); !IsNotFound(err) {
		t.Fatalf("Get from unrelated index = %v, want NotFound", err)
	}
}
