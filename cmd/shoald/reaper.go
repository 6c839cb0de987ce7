package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/shoalstore/shoalstore/internal/catalog"
	"github.com/shoalstore/shoalstore/internal/index"
	"github.com/shoalstore/shoalstore/internal/multipart"
	"github.com/shoalstore/shoalstore/internal/sal"
)

// reaperSweepInterval is how often the upload reaper scans for abandoned
// multipart uploads. Independent of the TTL itself.
const reaperSweepInterval = 15 * time.Minute

// runUploadReaper periodically scans every bucket for multipart uploads
// older than ttlSeconds and aborts them, grounded on the crash-only-recovery
// convention: an upload a crashed or disconnected client never completed is
// indistinguishable from one that never will be, so once it is old enough it
// is aborted and its parts reclaimed.
func runUploadReaper(store *sal.Store, idxGW *index.Gateway, ttlSeconds int, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(reaperSweepInterval)
	defer ticker.Stop()

	sweep := func() {
		ctx := context.Background()
		cutoff := time.Now().Add(-time.Duration(ttlSeconds) * time.Second)
		n, err := reapSweep(ctx, store, idxGW, cutoff)
		if err != nil {
			slog.Error("upload reaper sweep failed", "error", err)
			return
		}
		if n > 0 {
			slog.Info("upload reaper aborted expired uploads", "count", n)
		}
	}

	sweep()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			sweep()
		}
	}
}

// reapSweep walks every (tenant, bucket) pair in the global bucket-instances
// index, then every in-progress upload within it, aborting anything older
// than cutoff. Returns the number of uploads aborted.
func reapSweep(ctx context.Context, store *sal.Store, idxGW *index.Gateway, cutoff time.Time) (int, error) {
	aborted := 0
	var cursor []byte
	for {
		entries, err := idxGW.Next(ctx, catalog.IndexBucketInstances, cursor, 256, nil, nil)
		if err != nil {
			return aborted, err
		}
		if len(entries) == 0 {
			break
		}
		for _, e := range entries {
			rec, err := catalog.DecodeBucketRecord(e.Value)
			if err != nil {
				slog.Warn("upload reaper: skipping undecodable bucket-instances entry", "error", err)
				continue
			}
			n, err := reapBucket(ctx, store, catalog.TenantBucketKey(rec.Tenant, rec.Bucket), cutoff)
			if err != nil {
				slog.Warn("upload reaper: sweeping bucket failed", "tenant", rec.Tenant, "bucket", rec.Bucket, "error", err)
				continue
			}
			aborted += n
		}
		cursor = append(append([]byte{}, entries[len(entries)-1].Key...), 0)
	}
	return aborted, nil
}

// reapBucket pages through a single bucket's in-progress uploads, aborting
// every one whose Ctime is before cutoff.
func reapBucket(ctx context.Context, store *sal.Store, tenantBucket string, cutoff time.Time) (int, error) {
	aborted := 0
	marker := ""
	for {
		result, err := store.ListMultipartUploads(ctx, multipart.ListUploadsParams{TenantBucket: tenantBucket, Marker: marker, Max: 256})
		if err != nil {
			return aborted, err
		}
		for _, entry := range result.Entries {
			if entry.Upload == nil || !entry.Upload.Ctime.Before(cutoff) {
				continue
			}
			err := store.AbortMultipartUpload(ctx, multipart.AbortParams{
				TenantBucket: tenantBucket,
				Owner:        entry.Upload.Owner,
				Name:         entry.Upload.Name,
				UploadID:     entry.Upload.UploadID,
			})
			if err != nil {
				slog.Warn("upload reaper: abort failed", "tenant_bucket", tenantBucket, "name", entry.Upload.Name, "upload_id", entry.Upload.UploadID, "error", err)
				continue
			}
			aborted++
		}
		if !result.Truncated {
			return aborted, nil
		}
		marker = result.NextMarker
	}
}
