package mcache

import (
	"context"
	"testing"
	"time"

	"github.com/shoalstore/shoalstore/internal/cluster"
)

func TestStoreInvalidateDispatchesByPartition(t *testing.T) {
	s := NewStore(10, 10, 10)
	ctx := context.Background()

	s.Objects.Put(ctx, "obj-1", []byte("a"), time.Now())
	s.Users.Put(ctx, "user-1", []byte("b"), time.Now())
	s.BucketInstances.Put(ctx, "bucket-1", []byte("c"), time.Now())

	if _, err := s.Invalidate(ctx, &cluster.InvalidationMessage{Cache: PartitionUser, Key: "user-1"}); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}

	if _, _, ok := s.Users.Get("user-1"); ok {
		t.Fatalf("user-1 should have been invalidated")
	}
	if _, _, ok := s.Objects.Get("obj-1"); !ok {
		t.Fatalf("obj-1 should be unaffected by a user invalidation")
	}
	if _, _, ok := s.BucketInstances.Get("bucket-1"); !ok {
		t.Fatalf("bucket-1 should be unaffected by a user invalidation")
	}
}

func TestStoreInvalidateUnknownPartitionErrors(t *testing.T) {
	s := NewStore(10, 10, 10)
	if _, err := s.Invalidate(context.Background(), &cluster.InvalidationMessage{Cache: "nonsense", Key: "k"}); err == nil {
		t.Fatalf("Invalidate with unknown partition should error")
	}
}
