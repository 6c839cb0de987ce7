package sal

import (
	"context"
	"fmt"

	"github.com/shoalstore/shoalstore/internal/objstore"
	"github.com/shoalstore/shoalstore/internal/writer"
)

// Writer is the capability set's prepare/process/complete handle (spec
// §6.2's Writer row): a direct streaming handle onto a fresh byte object,
// for callers that need to push bytes without going through the Object
// Engine's catalog bookkeeping (raw write-ops; the Multipart Engine's own
// uploadPartSeparate/streamPart use the Writer Pipeline the same way
// internally, but through internal/objstore directly rather than this
// handle, since they also need to swap in a replacement part's bytes and
// adjust stats as part of the same call).
type Writer struct {
	pipeline *writer.Pipeline
	meta     *objstore.ObjectMeta
}

// PrepareWriter implements spec §6.2's "prepare": reserves a fresh byte
// object sized size and returns a Writer ready to accept Process calls.
func (s *Store) PrepareWriter(ctx context.Context, size int64) (*Writer, error) {
	meta, err := s.objGW.Create(ctx, size)
	if err != nil {
		return nil, fmt.Errorf("sal: preparing writer: %w", err)
	}
	return &Writer{pipeline: writer.New(s.objGW, meta), meta: meta}, nil
}

// Process implements spec §6.2's "process": streams bl into the object,
// accumulating until the Writer Pipeline's threshold is reached (spec
// §4.7). An empty bl signals end-of-stream just as it does for the
// underlying Pipeline; callers normally use Complete for that instead.
func (w *Writer) Process(ctx context.Context, bl []byte) error {
	return w.pipeline.Process(ctx, bl)
}

// Complete implements spec §6.2's "complete": signals end-of-stream and
// returns the finished object's size, MD5 ETag, and ObjectMeta.
func (w *Writer) Complete(ctx context.Context) (size int64, etag string, meta *objstore.ObjectMeta, err error) {
	if err := w.pipeline.Process(ctx, nil); err != nil {
		return 0, "", nil, err
	}
	return w.pipeline.Offset(), w.pipeline.ETag(), w.meta, nil
}
