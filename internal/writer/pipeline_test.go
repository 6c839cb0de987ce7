package writer

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"testing"

	"github.com/shoalstore/shoalstore/internal/idgen"
	"github.com/shoalstore/shoalstore/internal/index"
	"github.com/shoalstore/shoalstore/internal/objstore"
)

func newTestPipeline(t *testing.T, size int64) (*Pipeline, *objstore.Gateway, *objstore.ObjectMeta) {
	t.Helper()
	gen, err := idgen.NewGenerator()
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	idxGW := index.NewGateway(index.NewMemoryBackend())
	gw := objstore.NewGateway(objstore.NewMemoryBackend(), objstore.DefaultCatalog(), idxGW, gen, 1)

	meta, err := gw.Create(context.Background(), size)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return New(gw, meta), gw, meta
}

func readAll(t *testing.T, gw *objstore.Gateway, meta *objstore.ObjectMeta, size int64) []byte {
	t.Helper()
	var got []byte
	err := gw.Read(context.Background(), meta, 0, size-1, func(chunk []byte) error {
		got = append(got, chunk...)
		return nil
	})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	return got
}

func TestPipelineSmallWriteFlushesOnEndOfStream(t *testing.T) {
	ctx := context.Background()
	data := []byte("hello, writer pipeline")
	p, gw, meta := newTestPipeline(t, int64(len(data)))

	if err := p.Process(ctx, data); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if err := p.Process(ctx, nil); err != nil {
		t.Fatalf("Process(eos): %v", err)
	}

	if p.Offset() != int64(len(data)) {
		t.Fatalf("Offset() = %d, want %d", p.Offset(), len(data))
	}

	wantSum := md5.Sum(data)
	if p.ETag() != hex.EncodeToString(wantSum[:]) {
		t.Fatalf("ETag() = %s, want %s", p.ETag(), hex.EncodeToString(wantSum[:]))
	}

	got := readAll(t, gw, meta, int64(len(data)))
	if !bytes.Equal(got, data) {
		t.Fatalf("readback = %q, want %q", got, data)
	}
}

func TestPipelineProcessAfterEndOfStreamErrors(t *testing.T) {
	ctx := context.Background()
	p, _, _ := newTestPipeline(t, 10)

	if err := p.Process(ctx, []byte("abc")); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if err := p.Process(ctx, nil); err != nil {
		t.Fatalf("Process(eos): %v", err)
	}
	if err := p.Process(ctx, []byte("more")); err == nil {
		t.Fatalf("Process after end-of-stream should error")
	}
}

func TestPipelineFlushesAtAccumulationThreshold(t *testing.T) {
	ctx := context.Background()
	size := int64(MaxAccSize) + 100
	data := bytes.Repeat([]byte("a"), int(size))
	p, gw, meta := newTestPipeline(t, size)

	// Feed it in two chunks straddling the threshold.
	if err := p.Process(ctx, data[:MaxAccSize+50]); err != nil {
		t.Fatalf("Process first chunk: %v", err)
	}
	if err := p.Process(ctx, data[MaxAccSize+50:]); err != nil {
		t.Fatalf("Process second chunk: %v", err)
	}
	if err := p.Process(ctx, nil); err != nil {
		t.Fatalf("Process(eos): %v", err)
	}

	if p.Offset() != size {
		t.Fatalf("Offset() = %d, want %d", p.Offset(), size)
	}

	got := readAll(t, gw, meta, size)
	if !bytes.Equal(got, data) {
		t.Fatalf("readback length = %d, want %d", len(got), len(data))
	}
}

func TestPipelineEmptyObject(t *testing.T) {
	ctx := context.Background()
	p, _, _ := newTestPipeline(t, 0)

	if err := p.Process(ctx, nil); err != nil {
		t.Fatalf("Process(eos) on empty object: %v", err)
	}
	if p.Offset() != 0 {
		t.Fatalf("Offset() = %d, want 0", p.Offset())
	}
	emptySum := md5.Sum(nil)
	if p.ETag() != hex.EncodeToString(emptySum[:]) {
		t.Fatalf("ETag() on empty object = %s, want %s", p.ETag(), hex.EncodeToString(emptySum[:]))
	}
}
