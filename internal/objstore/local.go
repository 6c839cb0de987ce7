package objstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shoalstore/shoalstore/internal/errors"
	"github.com/shoalstore/shoalstore/internal/idgen"
	"github.com/shoalstore/shoalstore/internal/uid"
)

// LocalBackend implements Backend on the local filesystem: one file per
// object, named by its hex ID. CreateObject and WriteBlock follow the
// teacher's crash-only temp-file+fsync+rename pattern for the initial
// creation; subsequent in-place block writes use pwrite-style seeked
// writes, which is how a real striped object service issues block ops
// against an already-created container.
type LocalBackend struct {
	rootDir string
}

// NewLocalBackend opens (or creates) a local object store rooted at
// rootDir.
func NewLocalBackend(rootDir string) (*LocalBackend, error) {
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating object root directory %q: %w", rootDir, err)
	}
	tmpDir := filepath.Join(rootDir, ".tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating temp directory %q: %w", tmpDir, err)
	}
	return &LocalBackend{rootDir: rootDir}, nil
}

func (b *LocalBackend) objectPath(id idgen.ID) string {
	return filepath.Join(b.rootDir, id.String())
}

func (b *LocalBackend) tempPath() string {
	return filepath.Join(b.rootDir, ".tmp", "tmp-"+uid.New())
}

func (b *LocalBackend) CreateObject(ctx context.Context, id idgen.ID) error {
	objPath := b.objectPath(id)
	if _, err := os.Stat(objPath); err == nil {
		return errors.Wrap(errors.AlreadyExists, "object %s", id)
	}

	tmpPath := b.tempPath()
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp file for object %s: %w", id, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing empty object file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, objPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file to object path: %w", err)
	}
	return nil
}

func (b *LocalBackend) DeleteObject(ctx context.Context, id idgen.ID) error {
	err := os.Remove(b.objectPath(id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing object file %s: %w", id, err)
	}
	return nil
}

func (b *LocalBackend) WriteBlock(ctx context.Context, id idgen.ID, offset int64, data []byte, last bool) error {
	f, err := os.OpenFile(b.objectPath(id), os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Wrap(errors.NotFound, "object %s", id)
		}
		return fmt.Errorf("opening object %s for write: %w", id, err)
	}
	defer f.Close()

	if _, err := f.WriteAt(data, offset); err != nil {
		return fmt.Errorf("writing block at offset %d: %w", offset, err)
	}
	if last {
		if err := f.Sync(); err != nil {
			return fmt.Errorf("syncing final block: %w", err)
		}
	}
	return nil
}

func (b *LocalBackend) ReadBlock(ctx context.Context, id idgen.ID, offset, size int64) ([]byte, error) {
	f, err := os.Open(b.objectPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.NotFound, "object %s", id)
		}
		return nil, fmt.Errorf("opening object %s for read: %w", id, err)
	}
	defer f.Close()

	buf := make([]byte, size)
	n, err := f.ReadAt(buf, offset)
	if err != nil && n == 0 {
		return nil, nil
	}
	return buf[:n], nil
}

func (b *LocalBackend) Exists(ctx context.Context, id idgen.ID) (bool, error) {
	_, err := os.Stat(b.objectPath(id))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (b *LocalBackend) HealthCheck(ctx context.Context) error {
	_, err := os.Stat(b.rootDir)
	return err
}
