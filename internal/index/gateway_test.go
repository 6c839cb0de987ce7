package index

import (
	"context"
	"testing"
)

func TestGatewayPutGetDelRoundTrip(t *testing.T) {
	g := NewGateway(NewMemoryBackend())
	ctx := context.Background()

	if err := g.Put(ctx, "bucket-index.tenant1/mybucket", []byte("obj1"), []byte("meta"), true); err != nil {
		t.Fatalf("Put: %v", err)
	}
	v, err := g.Get(ctx, "bucket-index.tenant1/mybucket", []byte("obj1"))
	if err != nil || string(v) != "meta" {
		t.Fatalf("Get = %q, %v", v, err)
	}
	if err := g.Del(ctx, "bucket-index.tenant1/mybucket", []byte("obj1")); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if _, err := g.Get(ctx, "bucket-index.tenant1/mybucket", []byte("obj1")); !IsNotFound(err) {
		t.Fatalf("Get after Del = %v, want NotFound", err)
	}
}

func TestGatewayNextPlainListing(t *testing.T) {
	g := NewGateway(NewMemoryBackend())
	ctx := context.Background()
	name := "bucket-index.t/b"

	for _, k := range []string{"a", "b", "c", "d"} {
		if err := g.Put(ctx, name, []byte(k), []byte(k), true); err != nil {
			t.Fatalf("Put(%q): %v", k, err)
		}
	}

	entries, err := g.Next(ctx, name, nil, 10, nil, nil)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("len(entries) = %d, want 4", len(entries))
	}
	for i, want := range []string{"a", "b", "c", "d"} {
		if string(entries[i].Key) != want {
			t.Fatalf("entries[%d] = %q, want %q", i, entries[i].Key, want)
		}
	}
}

func TestGatewayNextRespectsPrefix(t *testing.T) {
	g := NewGateway(NewMemoryBackend())
	ctx := context.Background()
	name := "bucket-index.t/b"

	for _, k := range []string{"photos/a.jpg", "photos/b.jpg", "videos/c.mp4"} {
		if err := g.Put(ctx, name, []byte(k), []byte(k), true); err != nil {
			t.Fatalf("Put(%q): %v", k, err)
		}
	}

	entries, err := g.Next(ctx, name, nil, 10, []byte("photos/"), nil)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2: %v", len(entries), entries)
	}
}

func TestGatewayNextCollapsesDirectories(t *testing.T) {
	g := NewGateway(NewMemoryBackend())
	ctx := context.Background()
	name := "bucket-index.t/b"

	keys := []string{
		"photos/2024/a.jpg",
		"photos/2024/b.jpg",
		"photos/2025/c.jpg",
		"readme.txt",
	}
	for _, k := range keys {
		if err := g.Put(ctx, name, []byte(k), []byte(k), true); err != nil {
			t.Fatalf("Put(%q): %v", k, err)
		}
	}

	entries, err := g.Next(ctx, name, nil, 10, []byte("photos/"), []byte("/"))
	if err != nil {
		t.Fatalf("Next: %v", err)
	}

	// The two 2024/ entries collapse into a single directory pseudo-entry,
	// followed by the 2025/ directory pseudo-entry. readme.txt doesn't share
	// the prefix so it's excluded.
	want := []string{"photos/2024/", "photos/2025/"}
	if len(entries) != len(want) {
		t.Fatalf("entries = %v, want %v", entries, want)
	}
	for i, w := range want {
		if string(entries[i].Key) != w {
			t.Fatalf("entries[%d] = %q, want %q", i, entries[i].Key, w)
		}
		if entries[i].Value != nil {
			t.Fatalf("entries[%d].Value = %q, want nil (directory pseudo-entry)", i, entries[i].Value)
		}
	}
}

func TestGatewayNextStopsAtMax(t *testing.T) {
	g := NewGateway(NewMemoryBackend())
	ctx := context.Background()
	name := "bucket-index.t/b"

	for _, k := range []string{"a", "b", "c", "d", "e"} {
		if err := g.Put(ctx, name, []byte(k), []byte(k), true); err != nil {
			t.Fatalf("Put(%q): %v", k, err)
		}
	}

	entries, err := g.Next(ctx, name, nil, 2, nil, nil)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}

	next, err := g.Next(ctx, name, nextCursor(entries[len(entries)-1].Key), 2, nil, nil)
	if err != nil {
		t.Fatalf("Next (page 2): %v", err)
	}
	if len(next) != 2 || string(next[0].Key) != "c" {
		t.Fatalf("page 2 = %v, want starting at c", next)
	}
}

func TestGatewayNextNoPrefixMatchReturnsEmpty(t *testing.T) {
	g := NewGateway(NewMemoryBackend())
	ctx := context.Background()
	name := "bucket-index.t/b"

	if err := g.Put(ctx, name, []byte("videos/c.mp4"), []byte("v"), true); err != nil {
		t.Fatalf("Put: %v", err)
	}

	entries, err := g.Next(ctx, name, nil, 10, []byte("photos/"), nil)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("entries = %v, want empty", entries)
	}
}
