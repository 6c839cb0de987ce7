// Package metrics defines the Prometheus metrics exported by the storage
// abstraction layer's core components (index gateway, object gateway, cache,
// GC queue, stats reconciliation). The S3 wire protocol front end is out of
// scope for this module, so no HTTP-path metrics are defined here, and
// cmd/shoald registers none of its own.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// registerOnce ensures Register() is idempotent.
var registerOnce sync.Once

// Index gateway metrics (C1).
var (
	// IndexOpsTotal counts index operations by index name, operation, and outcome.
	IndexOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shoalstore_index_ops_total",
			Help: "Index gateway operations by index, op, and outcome",
		},
		[]string{"index", "op", "outcome"},
	)

	// IndexOpDuration observes index operation latency in seconds.
	IndexOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shoalstore_index_op_duration_seconds",
			Help:    "Index gateway operation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"index", "op"},
	)
)

// Object gateway metrics (C2).
var (
	// ObjectOpsTotal counts object operations by op and outcome.
	ObjectOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shoalstore_object_ops_total",
			Help: "Object gateway operations by op and outcome",
		},
		[]string{"op", "outcome"},
	)

	// ObjectBytesWritten counts bytes written through the writer pipeline.
	ObjectBytesWritten = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shoalstore_object_bytes_written_total",
			Help: "Total bytes written to the object gateway",
		},
	)

	// ObjectBytesRead counts bytes read from the object gateway.
	ObjectBytesRead = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shoalstore_object_bytes_read_total",
			Help: "Total bytes read from the object gateway",
		},
	)
)

// Metadata cache metrics (C3).
var (
	// CacheRequestsTotal counts cache lookups by cache name and outcome (hit/miss).
	CacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shoalstore_cache_requests_total",
			Help: "Metadata cache lookups by cache and outcome",
		},
		[]string{"cache", "outcome"},
	)

	// CacheInvalidationsTotal counts cross-process cache invalidations received.
	CacheInvalidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shoalstore_cache_invalidations_total",
			Help: "Cross-process cache invalidations received, by cache",
		},
		[]string{"cache"},
	)
)

// GC and stats-reconciliation metrics (C4, gc).
var (
	// GCQueueDepth is a gauge of pending GC-enqueued deletes.
	GCQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "shoalstore_gc_queue_depth",
			Help: "Pending garbage-collection queue entries",
		},
	)

	// GCDeletesTotal counts completed GC deletes by outcome.
	GCDeletesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shoalstore_gc_deletes_total",
			Help: "Garbage-collected object deletes by outcome",
		},
		[]string{"outcome"},
	)

	// StatsReconcileDrift observes the absolute byte drift found by a stats
	// reconciliation scan, per bucket-owning user's stats header.
	StatsReconcileDrift = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shoalstore_stats_reconcile_drift_bytes",
			Help:    "Absolute byte drift detected during stats reconciliation",
			Buckets: prometheus.ExponentialBuckets(1, 8, 10),
		},
	)
)

// Register registers all Prometheus collectors with the default registry.
// This must be called explicitly (typically from cmd/shoald) so that
// registration can be made conditional on configuration. Safe to call
// multiple times; subsequent calls are no-ops.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			IndexOpsTotal,
			IndexOpDuration,
			ObjectOpsTotal,
			ObjectBytesWritten,
			ObjectBytesRead,
			CacheRequestsTotal,
			CacheInvalidationsTotal,
			GCQueueDepth,
			GCDeletesTotal,
			StatsReconcileDrift,
		)
	})
}
