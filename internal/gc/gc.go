// Package gc implements the garbage-collection enqueue interface of spec
// §4.5.3/§6.1: delete paths prefer handing a byte object off to this queue
// over a synchronous delete, falling back to a synchronous delete only if
// the enqueue itself fails (the queue is full or has been stopped). The
// background scheduling policy a full GC subsystem would need is out of
// scope; this is the minimal in-process consumer so the delete paths have
// something real to call.
package gc

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/shoalstore/shoalstore/internal/metrics"
	"github.com/shoalstore/shoalstore/internal/objstore"
)

// ErrQueueFull is returned by Enqueue* when the bounded queue has no room
// and the caller must fall back to a synchronous delete.
var ErrQueueFull = errors.New("gc: queue is full")

// ObjectItem is the payload for a plain or composite byte object the
// object engine has already unlinked from its index and wants deleted.
type ObjectItem struct {
	Tag  string
	FQN  string
	Meta objstore.ObjectMeta
	Size int64
}

// MultipartItem is the payload for a multipart upload's byte object (or, in
// the separate-part strategy, one part's byte object).
type MultipartItem struct {
	UploadID      string
	FQN           string
	Meta          objstore.ObjectMeta
	Size          int64
	PartIndexName string
}

// Deleter deletes an object's underlying bytes. objstore.Gateway satisfies
// this.
type Deleter interface {
	Delete(ctx context.Context, meta *objstore.ObjectMeta) error
}

// Queue is a bounded in-process GC queue: one buffered channel per item
// kind, drained by a small worker pool. Grounded on the teacher's
// background-loop shape (a stopCh plus sync.WaitGroup drained on Close,
// internal/storage/memory.go's snapshotLoop) adapted from a periodic
// ticker to a channel consumer, the same queue-then-drain structure
// swiftycloud-swifty's gc.go uses for its own deferred-delete sweep.
type Queue struct {
	deleter Deleter
	log     *slog.Logger

	objects    chan ObjectItem
	multiparts chan MultipartItem
	stopCh     chan struct{}
	wg         sync.WaitGroup
}

// NewQueue creates a Queue with the given per-kind channel capacity. It
// does not start consuming until Start is called.
func NewQueue(deleter Deleter, capacity int) *Queue {
	return &Queue{
		deleter:    deleter,
		log:        slog.Default(),
		objects:    make(chan ObjectItem, capacity),
		multiparts: make(chan MultipartItem, capacity),
		stopCh:     make(chan struct{}),
	}
}

// Start spawns workers workers goroutines draining the queue.
func (q *Queue) Start(workers int) {
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
}

// Stop signals all workers to exit and waits for them to drain in-flight
// deletes. Items still sitting in the channel when Stop is called are
// dropped; callers that need stronger durability should not rely on this
// queue surviving a process restart.
func (q *Queue) Stop() {
	close(q.stopCh)
	q.wg.Wait()
}

func (q *Queue) worker() {
	defer q.wg.Done()
	ctx := context.Background()
	for {
		select {
		case <-q.stopCh:
			return
		case item := <-q.objects:
			metrics.GCQueueDepth.Dec()
			err := q.deleter.Delete(ctx, &item.Meta)
			if err != nil {
				q.log.Error("gc: deleting object", "tag", item.Tag, "fqn", item.FQN, "error", err)
			}
			metrics.GCDeletesTotal.WithLabelValues(outcome(err)).Inc()
		case item := <-q.multiparts:
			metrics.GCQueueDepth.Dec()
			err := q.deleter.Delete(ctx, &item.Meta)
			if err != nil {
				q.log.Error("gc: deleting multipart object", "upload_id", item.UploadID, "fqn", item.FQN, "error", err)
			}
			metrics.GCDeletesTotal.WithLabelValues(outcome(err)).Inc()
		}
	}
}

// EnqueueObject hands item off for background deletion. Returns
// ErrQueueFull if the queue has no room; the caller should fall back to a
// synchronous delete in that case (spec §4.5.3).
func (q *Queue) EnqueueObject(ctx context.Context, item ObjectItem) error {
	select {
	case q.objects <- item:
		metrics.GCQueueDepth.Inc()
		return nil
	default:
		return ErrQueueFull
	}
}

// EnqueueMultipart hands item off for background deletion, same contract
// as EnqueueObject.
func (q *Queue) EnqueueMultipart(ctx context.Context, item MultipartItem) error {
	select {
	case q.multiparts <- item:
		metrics.GCQueueDepth.Inc()
		return nil
	default:
		return ErrQueueFull
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
