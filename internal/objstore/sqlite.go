package objstore

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver

	"github.com/shoalstore/shoalstore/internal/errors"
	"github.com/shoalstore/shoalstore/internal/idgen"
)

// SQLiteBackend stores each object as a single growing BLOB row. It has no
// natural striping or block addressing, which is exactly the point: it
// exercises the gateway's block-size math and zero-padding against a
// backend that must emulate block writes by read-modify-write over the
// whole blob.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend opens (or creates) the SQLite object database at dsn.
func NewSQLiteBackend(dsn string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening SQLite object database: %w", err)
	}
	b := &SQLiteBackend{db: db}
	if err := b.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing SQLite object schema: %w", err)
	}
	return b, nil
}

func (b *SQLiteBackend) initSchema() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := b.db.Exec(p); err != nil {
			return fmt.Errorf("executing %q: %w", p, err)
		}
	}
	_, err := b.db.Exec(`
		CREATE TABLE IF NOT EXISTS objects (
			object_id TEXT PRIMARY KEY,
			data      BLOB NOT NULL
		);
	`)
	return err
}

func (b *SQLiteBackend) CreateObject(ctx context.Context, id idgen.ID) error {
	res, err := b.db.ExecContext(ctx, "INSERT OR IGNORE INTO objects (object_id, data) VALUES (?, ?)", id.String(), []byte{})
	if err != nil {
		return fmt.Errorf("sqlite create object: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return errors.Wrap(errors.AlreadyExists, "object %s", id)
	}
	return nil
}

func (b *SQLiteBackend) DeleteObject(ctx context.Context, id idgen.ID) error {
	_, err := b.db.ExecContext(ctx, "DELETE FROM objects WHERE object_id = ?", id.String())
	if err != nil {
		return fmt.Errorf("sqlite delete object: %w", err)
	}
	return nil
}

func (b *SQLiteBackend) WriteBlock(ctx context.Context, id idgen.ID, offset int64, data []byte, last bool) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin tx: %w", err)
	}
	defer tx.Rollback()

	var current []byte
	err = tx.QueryRowContext(ctx, "SELECT data FROM objects WHERE object_id = ?", id.String()).Scan(&current)
	if err == sql.ErrNoRows {
		return errors.Wrap(errors.NotFound, "object %s", id)
	}
	if err != nil {
		return fmt.Errorf("sqlite read-before-write: %w", err)
	}

	end := offset + int64(len(data))
	if end > int64(len(current)) {
		grown := make([]byte, end)
		copy(grown, current)
		current = grown
	}
	copy(current[offset:end], data)

	if _, err := tx.ExecContext(ctx, "UPDATE objects SET data = ? WHERE object_id = ?", current, id.String()); err != nil {
		return fmt.Errorf("sqlite write block: %w", err)
	}
	return tx.Commit()
}

func (b *SQLiteBackend) ReadBlock(ctx context.Context, id idgen.ID, offset, size int64) ([]byte, error) {
	var data []byte
	err := b.db.QueryRowContext(ctx, "SELECT data FROM objects WHERE object_id = ?", id.String()).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, errors.Wrap(errors.NotFound, "object %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite read block: %w", err)
	}
	if offset >= int64(len(data)) {
		return nil, nil
	}
	end := offset + size
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	out := make([]byte, end-offset)
	copy(out, data[offset:end])
	return out, nil
}

func (b *SQLiteBackend) Exists(ctx context.Context, id idgen.ID) (bool, error) {
	var count int
	err := b.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM objects WHERE object_id = ?", id.String()).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("sqlite exists check: %w", err)
	}
	return count > 0, nil
}

func (b *SQLiteBackend) HealthCheck(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

// Close releases the underlying database connection.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
