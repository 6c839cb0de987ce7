package multipart

import (
	"context"
	"strings"
	"testing"

	"github.com/shoalstore/shoalstore/internal/catalog"
)

func TestInitiateSeparateWritesInProgressRecordWithNoComposite(t *testing.T) {
	s := newTestStore(t, false)
	ctx := context.Background()

	handle, err := s.Initiate(ctx, InitiateParams{TenantBucket: testTenantBucket, Owner: "alice", Name: "a.bin", PlacementRule: "default"})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if !strings.HasPrefix(handle.UploadID, "mpu-") {
		t.Fatalf("UploadID = %q, want mpu- prefix", handle.UploadID)
	}
	if handle.Tiered {
		t.Fatal("separate-strategy Store must report Tiered=false")
	}

	rec, _, err := s.getInProgress(ctx, testTenantBucket, "a.bin", handle.UploadID)
	if err != nil {
		t.Fatalf("getInProgress: %v", err)
	}
	if rec.Tiered {
		t.Fatal("in-progress record must not be tiered")
	}
	if !rec.Meta.ObjectID.IsZero() {
		t.Fatal("separate strategy must not allocate a composite object at initiate time")
	}

	header, err := readStatsHeader(t, s, "alice", "b")
	if err != nil {
		t.Fatalf("readStatsHeader: %v", err)
	}
	if got := header.Stats[catalog.CategoryMultiMeta].NumEntries; got != 1 {
		t.Fatalf("CategoryMultiMeta NumEntries = %d, want 1", got)
	}
}

func TestInitiateTieredCreatesComposite(t *testing.T) {
	s := newTestStore(t, true)
	ctx := context.Background()

	handle, err := s.Initiate(ctx, InitiateParams{TenantBucket: testTenantBucket, Owner: "alice", Name: "a.bin", PlacementRule: "default"})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if !handle.Tiered {
		t.Fatal("tiered-strategy Store must report Tiered=true")
	}

	rec, _, err := s.getInProgress(ctx, testTenantBucket, "a.bin", handle.UploadID)
	if err != nil {
		t.Fatalf("getInProgress: %v", err)
	}
	if rec.Meta.ObjectID.IsZero() || !rec.Meta.IsComposite || rec.Meta.TopLayerID.IsZero() {
		t.Fatalf("expected a composite object with a top layer, got %+v", rec.Meta)
	}
}

// readStatsHeader is a small test helper reaching into the catalog stats
// index directly, mirroring how objengine's own tests inspect stats
// side-effects.
func readStatsHeader(t *testing.T, s *Store, owner, bucket string) (*catalog.BucketHeader, error) {
	t.Helper()
	raw, err := s.idx.Get(context.Background(), catalog.UserStatsIndex(owner), []byte(bucket))
	if err != nil {
		return nil, err
	}
	return catalog.DecodeBucketHeader(raw)
}
