// Package serialization handles catalog export/import between the SQLite
// index backend and JSON, for backup and migration via cmd/shoaldctl.
package serialization

import (
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

const (
	Version       = "0.1.0"
	ExportVersion = 1
)

// ExportOptions configures what to export.
type ExportOptions struct {
	// IndexIDs restricts the export to the named indices (hex-encoded
	// idgen.ID strings). Empty means export every index in the database.
	IndexIDs []string
}

// ImportOptions configures how to import.
type ImportOptions struct {
	// Replace deletes the contents of any index present in the import
	// payload before inserting. Without it, import uses INSERT OR IGNORE
	// and leaves existing keys untouched.
	Replace bool
}

// ImportResult holds the result of an import operation. Counts and Skipped
// are keyed by table name ("index_entries"), not by index ID.
type ImportResult struct {
	Counts   map[string]int
	Skipped  map[string]int
	Warnings []string
}

// entryRow mirrors one row of the sqlite index backend's entries table.
type entryRow struct {
	IndexID   string
	Key       []byte
	Value     []byte
	UpdatedAt int64
}

// ExportIndex exports catalog entries from a SQLite index backend database
// to a JSON string with a version envelope and sorted keys, so two exports
// of the same data differ only in the envelope's exported_at timestamp.
func ExportIndex(dbPath string, opts *ExportOptions) (string, error) {
	if opts == nil {
		opts = &ExportOptions{}
	}

	db, err := sql.Open("sqlite", dbPath+"?mode=ro")
	if err != nil {
		return "", fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	schemaVersion := getSchemaVersion(db)
	now := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")

	query := "SELECT index_id, key, value, updated_at FROM index_entries"
	args := []any{}
	if len(opts.IndexIDs) > 0 {
		placeholders := make([]string, len(opts.IndexIDs))
		for i, id := range opts.IndexIDs {
			placeholders[i] = "?"
			args = append(args, id)
		}
		query += " WHERE index_id IN (" + joinPlaceholders(placeholders) + ")"
	}
	query += " ORDER BY index_id, key"

	rows, err := db.Query(query, args...)
	if err != nil {
		return "", fmt.Errorf("querying index_entries: %w", err)
	}
	defer rows.Close()

	entries := make([]map[string]any, 0)
	for rows.Next() {
		var r entryRow
		if err := rows.Scan(&r.IndexID, &r.Key, &r.Value, &r.UpdatedAt); err != nil {
			return "", fmt.Errorf("scanning index_entries row: %w", err)
		}
		entries = append(entries, map[string]any{
			"index_id":   r.IndexID,
			"key":        base64.StdEncoding.EncodeToString(r.Key),
			"value":      base64.StdEncoding.EncodeToString(r.Value),
			"updated_at": r.UpdatedAt,
		})
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterating index_entries: %w", err)
	}

	result := map[string]any{
		"shoalstore_export": map[string]any{
			"version":        ExportVersion,
			"exported_at":    now,
			"schema_version": schemaVersion,
			"source":         "go/" + Version,
		},
		"index_entries": entries,
	}

	return marshalSorted(result)
}

// ImportIndex imports catalog entries from a JSON string (produced by
// ExportIndex) into a SQLite index backend database.
func ImportIndex(dbPath string, jsonStr string, opts *ImportOptions) (*ImportResult, error) {
	if opts == nil {
		opts = &ImportOptions{}
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(jsonStr), &data); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}

	envelope, _ := data["shoalstore_export"].(map[string]any)
	version, _ := envelope["version"].(float64)
	if version < 1 || version > ExportVersion {
		return nil, fmt.Errorf("unsupported export version: %v", version)
	}

	rowList, _ := data["index_entries"].([]any)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	result := &ImportResult{
		Counts:  make(map[string]int),
		Skipped: make(map[string]int),
	}

	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}

	if opts.Replace {
		touched := map[string]bool{}
		for _, raw := range rowList {
			if rowMap, ok := raw.(map[string]any); ok {
				if id, ok := rowMap["index_id"].(string); ok {
					touched[id] = true
				}
			}
		}
		for id := range touched {
			if _, err := tx.Exec("DELETE FROM index_entries WHERE index_id = ?", id); err != nil {
				tx.Rollback()
				return nil, fmt.Errorf("deleting index %s: %w", id, err)
			}
		}
	}

	for _, raw := range rowList {
		rowMap, ok := raw.(map[string]any)
		if !ok {
			result.Skipped["index_entries"]++
			continue
		}

		indexID, _ := rowMap["index_id"].(string)
		keyB64, _ := rowMap["key"].(string)
		valB64, _ := rowMap["value"].(string)
		updatedAt, _ := rowMap["updated_at"].(float64)

		key, err := base64.StdEncoding.DecodeString(keyB64)
		if err != nil {
			result.Skipped["index_entries"]++
			result.Warnings = append(result.Warnings, fmt.Sprintf("skipped entry in index %q: bad key encoding", indexID))
			continue
		}
		value, err := base64.StdEncoding.DecodeString(valB64)
		if err != nil {
			result.Skipped["index_entries"]++
			result.Warnings = append(result.Warnings, fmt.Sprintf("skipped entry in index %q: bad value encoding", indexID))
			continue
		}

		var query string
		if opts.Replace {
			query = "INSERT INTO index_entries (index_id, key, value, updated_at) VALUES (?, ?, ?, ?)"
		} else {
			query = "INSERT OR IGNORE INTO index_entries (index_id, key, value, updated_at) VALUES (?, ?, ?, ?)"
		}

		res, err := tx.Exec(query, indexID, key, value, int64(updatedAt))
		if err != nil {
			result.Skipped["index_entries"]++
			result.Warnings = append(result.Warnings, fmt.Sprintf("skipped entry in index %q: %v", indexID, err))
			continue
		}
		affected, _ := res.RowsAffected()
		if affected > 0 {
			result.Counts["index_entries"]++
		} else {
			result.Skipped["index_entries"]++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	return result, nil
}

func getSchemaVersion(db *sql.DB) int {
	var version int
	err := db.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)
	if err != nil {
		return 1
	}
	return version
}

func joinPlaceholders(placeholders []string) string {
	out := ""
	for i, p := range placeholders {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}

// marshalSorted produces JSON with sorted keys, 2-space indent, so exports
// are stable and diffable across runs.
func marshalSorted(data map[string]any) (string, error) {
	b, err := json.MarshalIndent(sortedMap(data), "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// sortedMap is a map that marshals with sorted keys.
type sortedMap map[string]any

func (m sortedMap) MarshalJSON() ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf := []byte{'{'}
	for i, k := range keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf = append(buf, keyBytes...)
		buf = append(buf, ':')

		valBytes, err := marshalValue(m[k])
		if err != nil {
			return nil, err
		}
		buf = append(buf, valBytes...)
	}
	buf = append(buf, '}')
	return buf, nil
}

func marshalValue(v any) ([]byte, error) {
	switch val := v.(type) {
	case map[string]any:
		return sortedMap(val).MarshalJSON()
	case []any:
		buf := []byte{'['}
		for i, elem := range val {
			if i > 0 {
				buf = append(buf, ',')
			}
			b, err := marshalValue(elem)
			if err != nil {
				return nil, err
			}
			buf = append(buf, b...)
		}
		buf = append(buf, ']')
		return buf, nil
	default:
		return json.Marshal(v)
	}
}
