package index

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver

	"github.com/shoalstore/shoalstore/internal/errors"
	"github.com/shoalstore/shoalstore/internal/idgen"
)

// SQLiteBackend implements Backend over a single SQLite table, suitable for
// single-node deployments wanting ACID durability without an external
// database dependency.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend opens (or creates) the SQLite index database at dsn.
func NewSQLiteBackend(dsn string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening SQLite index database: %w", err)
	}

	b := &SQLiteBackend{db: db}
	if err := b.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing SQLite index schema: %w", err)
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

	schema := `
		CREATE TABLE IF NOT EXISTS schema_version (
			version    INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL
		);
		INSERT OR IGNORE INTO schema_version (version, applied_at) VALUES (1, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'));

		CREATE TABLE IF NOT EXISTS index_entries (
			index_id   TEXT NOT NULL,
			key        BLOB NOT NULL,
			value      BLOB NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (index_id, key)
		);
	`
	_, err := b.db.Exec(schema)
	return err
}

func (b *SQLiteBackend) Put(ctx context.Context, id idgen.ID, key, value []byte, overwrite bool) error {
	idHex := id.String()
	if !overwrite {
		res, err := b.db.ExecContext(ctx,
			"INSERT OR IGNORE INTO index_entries (index_id, key, value, updated_at) VALUES (?, ?, ?, strftime('%s','now'))",
			idHex, key, value)
		if err != nil {
			return errors.Wrap(errors.Transport, "sqlite put: %v", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return errors.Wrap(errors.AlreadyExists, "key %x", key)
		}
		return nil
	}

	_, err := b.db.ExecContext(ctx,
		`INSERT INTO index_entries (index_id, key, value, updated_at) VALUES (?, ?, ?, strftime('%s','now'))
		 ON CONFLICT(index_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		idHex, key, value)
	if err != nil {
		return errors.Wrap(errors.Transport, "sqlite put: %v", err)
	}
	return nil
}

func (b *SQLiteBackend) Get(ctx context.Context, id idgen.ID, key []byte) ([]byte, error) {
	var value []byte
	err := b.db.QueryRowContext(ctx,
		"SELECT value FROM index_entries WHERE index_id = ? AND key = ?", id.String(), key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, errors.Wrap(errors.NotFound, "key %x", key)
	}
	if err != nil {
		return nil, errors.Wrap(errors.Transport, "sqlite get: %v", err)
	}
	return value, nil
}

func (b *SQLiteBackend) Del(ctx context.Context, id idgen.ID, key []byte) error {
	res, err := b.db.ExecContext(ctx, "DELETE FROM index_entries WHERE index_id = ? AND key = ?", id.String(), key)
	if err != nil {
		return errors.Wrap(errors.Transport, "sqlite del: %v", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return errors.Wrap(errors.NotFound, "key %x", key)
	}
	return nil
}

func (b *SQLiteBackend) Next(ctx context.Context, id idgen.ID, cursor []byte, max int) ([]Entry, error) {
	rows, err := b.db.QueryContext(ctx,
		"SELECT key, value FROM index_entries WHERE index_id = ? AND key >= ? ORDER BY key LIMIT ?",
		id.String(), cursor, max)
	if err != nil {
		return nil, errors.Wrap(errors.Transport, "sqlite next: %v", err)
	}
	defer rows.Close()

	out := make([]Entry, 0, max)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Value); err != nil {
			return nil, errors.Wrap(errors.Transport, "sqlite next scan: %v", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (b *SQLiteBackend) HealthCheck(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

// Close releases the underlying database connection.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
