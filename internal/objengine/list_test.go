package objengine

import (
	"context"
	"strings"
	"testing"
)

func TestListObjectsReturnsOnlyCurrentVisibleVersionsByDefault(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	bucket := versionedBucket()

	if _, err := s.PutObject(ctx, PutParams{TenantBucket: testTenantBucket, Owner: "alice", Name: "a.txt", Size: 5, Bucket: bucket}, strings.NewReader("hello")); err != nil {
		t.Fatalf("PutObject a v1: %v", err)
	}
	if _, err := s.PutObject(ctx, PutParams{TenantBucket: testTenantBucket, Owner: "alice", Name: "a.txt", Size: 11, Bucket: bucket}, strings.NewReader("hello world")); err != nil {
		t.Fatalf("PutObject a v2: %v", err)
	}
	if _, err := s.PutObject(ctx, PutParams{TenantBucket: testTenantBucket, Owner: "alice", Name: "b.txt", Size: 3, Bucket: bucket}, strings.NewReader("bbb")); err != nil {
		t.Fatalf("PutObject b: %v", err)
	}

	res, err := s.ListObjects(ctx, ListParams{TenantBucket: testTenantBucket, Max: 100})
	if err != nil {
		t.Fatalf("ListObjects: %v", err)
	}

	names := map[string]int64{}
	for _, e := range res.Entries {
		if e.IsCommonPrefix {
			t.Fatalf("unexpected common prefix %q with no delimiter set", e.CommonPrefix)
		}
		names[e.Entry.Name] = e.Entry.Size
	}
	if len(names) != 2 {
		t.Fatalf("expected 2 visible names, got %d: %+v", len(names), names)
	}
	if names["a.txt"] != 11 {
		t.Fatalf("a.txt should list its current (second) version, size %d", names["a.txt"])
	}
	if names["b.txt"] != 3 {
		t.Fatalf("b.txt size = %d, want 3", names["b.txt"])
	}
}

func TestListObjectsListVersionsIncludesAllInstances(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	bucket := versionedBucket()

	if _, err := s.PutObject(ctx, PutParams{TenantBucket: testTenantBucket, Owner: "alice", Name: "a.txt", Size: 5, Bucket: bucket}, strings.NewReader("hello")); err != nil {
		t.Fatalf("PutObject v1: %v", err)
	}
	if _, err := s.PutObject(ctx, PutParams{TenantBucket: testTenantBucket, Owner: "alice", Name: "a.txt", Size: 11, Bucket: bucket}, strings.NewReader("hello world")); err != nil {
		t.Fatalf("PutObject v2: %v", err)
	}

	res, err := s.ListObjects(ctx, ListParams{TenantBucket: testTenantBucket, Max: 100, ListVersions: true})
	if err != nil {
		t.Fatalf("ListObjects: %v", err)
	}
	if len(res.Entries) != 2 {
		t.Fatalf("expected 2 versions listed, got %d", len(res.Entries))
	}
}

func TestListObjectsCollapsesCommonPrefixes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	bucket := unversionedBucket()

	names := []string{"dir/a.txt", "dir/b.txt", "top.txt"}
	for _, n := range names {
		if _, err := s.PutObject(ctx, PutParams{TenantBucket: testTenantBucket, Owner: "alice", Name: n, Size: 1, Bucket: bucket}, strings.NewReader("x")); err != nil {
			t.Fatalf("PutObject %q: %v", n, err)
		}
	}

	res, err := s.ListObjects(ctx, ListParams{TenantBucket: testTenantBucket, Delim: "/", Max: 100})
	if err != nil {
		t.Fatalf("ListObjects: %v", err)
	}

	var gotPrefix bool
	var gotTop bool
	for _, e := range res.Entries {
		if e.IsCommonPrefix {
			if e.CommonPrefix != "dir/" {
				t.Fatalf("common prefix = %q, want %q", e.CommonPrefix, "dir/")
			}
			gotPrefix = true
		} else if e.Entry.Name == "top.txt" {
			gotTop = true
		}
	}
	if !gotPrefix || !gotTop {
		t.Fatalf("expected both a common prefix and top.txt, got %+v", res.Entries)
	}
}
