package mcache

import (
	"context"
	"fmt"

	"github.com/shoalstore/shoalstore/internal/cluster"
)

const (
	// PartitionObject caches object DirEntry+attrs payloads, keyed by the
	// version-qualified object key.
	PartitionObject = "object"
	// PartitionUser caches user records, keyed by user-id.
	PartitionUser = "user"
	// PartitionBucketInstance caches bucket instances, keyed by
	// tenant-bucket.
	PartitionBucketInstance = "bucket-instance"
)

// Store holds the three metadata cache partitions spec §4.3 requires, and
// dispatches remote cluster.InvalidationMessages to the right one by name.
type Store struct {
	Objects         *Cache
	Users           *Cache
	BucketInstances *Cache
}

// NewStore creates a Store with the given per-partition capacities.
func NewStore(objectCapacity, userCapacity, bucketCapacity int) *Store {
	return &Store{
		Objects:         New(PartitionObject, objectCapacity),
		Users:           New(PartitionUser, userCapacity),
		BucketInstances: New(PartitionBucketInstance, bucketCapacity),
	}
}

// SetBroadcaster wires the same cluster.Node into all three partitions.
func (s *Store) SetBroadcaster(node *cluster.Node) {
	s.Objects.SetBroadcaster(node)
	s.Users.SetBroadcaster(node)
	s.BucketInstances.SetBroadcaster(node)
}

// SetEnabled toggles all three partitions between caching and pass-through,
// mirroring the use_metadata_cache capability flag (spec §6.4): disabled,
// every Get reports a miss and every Put/InvalidateRemove is a no-op.
func (s *Store) SetEnabled(enabled bool) {
	s.Objects.SetEnabled(enabled)
	s.Users.SetEnabled(enabled)
	s.BucketInstances.SetEnabled(enabled)
}

// Invalidate implements cluster.InvalidationHandler by routing msg to the
// partition its Cache field names. Register a Store (not an individual
// Cache) with cluster.RegisterInvalidationServer so a single gRPC service
// serves all three partitions.
func (s *Store) Invalidate(ctx context.Context, msg *cluster.InvalidationMessage) (*cluster.InvalidationAck, error) {
	switch msg.Cache {
	case PartitionObject:
		return s.Objects.Invalidate(ctx, msg)
	case PartitionUser:
		return s.Users.Invalidate(ctx, msg)
	case PartitionBucketInstance:
		return s.BucketInstances.Invalidate(ctx, msg)
	default:
		return nil, fmt.Errorf("mcache: unknown invalidation partition %q", msg.Cache)
	}
}
