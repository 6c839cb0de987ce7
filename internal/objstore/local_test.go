package objstore

import (
	"bytes"
	"context"
	"testing"

	"github.com/shoalstore/shoalstore/internal/errors"
	"github.com/shoalstore/shoalstore/internal/idgen"
)

func TestLocalBackendCreateWriteReadDelete(t *testing.T) {
	ctx := context.Background()
	b, err := NewLocalBackend(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalBackend: %v", err)
	}
	gen, _ := idgen.NewGenerator()
	id := gen.Next()

	if err := b.CreateObject(ctx, id); err != nil {
		t.Fatalf("CreateObject: %v", err)
	}
	if err := b.CreateObject(ctx, id); !errors.IsAlreadyExists(err) {
		t.Fatalf("CreateObject duplicate: got %v, want AlreadyExists", err)
	}

	if err := b.WriteBlock(ctx, id, 0, []byte("hello"), false); err != nil {
		t.Fatalf("WriteBlock: %v", err)
	}
	if err := b.WriteBlock(ctx, id, 5, []byte(" world"), true); err != nil {
		t.Fatalf("WriteBlock: %v", err)
	}

	got, err := b.ReadBlock(ctx, id, 0, 11)
	if err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}
	if !bytes.Equal(got, []byte("hello world")) {
		t.Fatalf("ReadBlock = %q, want %q", got, "hello world")
	}

	exists, err := b.Exists(ctx, id)
	if err != nil || !exists {
		t.Fatalf("Exists = %v, %v; want true, nil", exists, err)
	}

	if err := b.DeleteObject(ctx, id); err != nil {
		t.Fatalf("DeleteObject: %v", err)
	}
	exists, err = b.Exists(ctx, id)
	if err != nil || exists {
		t.Fatalf("Exists after delete = %v, %v; want false, nil", exists, err)
	}
	// Idempotent delete.
	if err := b.DeleteObject(ctx, id); err != nil {
		t.Fatalf("DeleteObject on already-deleted object: %v", err)
	}
}

func TestLocalBackendWriteBlockMissingObject(t *testing.T) {
	ctx := context.Background()
	b, err := NewLocalBackend(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalBackend: %v", err)
	}
	gen, _ := idgen.NewGenerator()
	id := gen.Next()

	if err := b.WriteBlock(ctx, id, 0, []byte("x"), false); !errors.IsNotFound(err) {
		t.Fatalf("WriteBlock on missing object: got %v, want NotFound", err)
	}
	if _, err := b.ReadBlock(ctx, id, 0, 1); !errors.IsNotFound(err) {
		t.Fatalf("ReadBlock on missing object: got %v, want NotFound", err)
	}
}

func TestLocalBackendHealthCheck(t *testing.T) {
	b, err := NewLocalBackend(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalBackend: %v", err)
	}
	if err := b.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}
