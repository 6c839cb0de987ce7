package index

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/shoalstore/shoalstore/internal/errors"
	"github.com/shoalstore/shoalstore/internal/idgen"
	"github.com/shoalstore/shoalstore/internal/uid"
)

// jsonlEntry is one line of an index's log file: an upsert (Deleted=false)
// or a tombstone (Deleted=true) for Key.
type jsonlEntry struct {
	Key     []byte `json:"key"`
	Value   []byte `json:"value,omitempty"`
	Deleted bool   `json:"deleted,omitempty"`
}

// LocalBackend is a log-structured Backend: every mutation is appended to a
// per-index JSONL log, with an in-memory sorted index rebuilt from the log
// at startup. Compact shrinks a log to its live entries to bound replay
// time; it runs only when called, never on a schedule.
type LocalBackend struct {
	mu      sync.RWMutex
	rootDir string
	entries map[idgen.ID][]memEntry
}

// NewLocalBackend opens (or creates) a log-structured index backend rooted
// at rootDir, replaying every existing index log.
func NewLocalBackend(rootDir string) (*LocalBackend, error) {
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index root directory %q: %w", rootDir, err)
	}
	tmpDir := filepath.Join(rootDir, ".tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating temp directory %q: %w", tmpDir, err)
	}

	b := &LocalBackend{rootDir: rootDir, entries: make(map[idgen.ID][]memEntry)}
	if err := b.loadAll(); err != nil {
		return nil, fmt.Errorf("replaying index logs: %w", err)
	}
	return b, nil
}

func (b *LocalBackend) logPath(id idgen.ID) string {
	return filepath.Join(b.rootDir, id.String()+".jsonl")
}

func (b *LocalBackend) loadAll() error {
	entries, err := os.ReadDir(b.rootDir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".jsonl" {
			continue
		}
		idHex := e.Name()[:len(e.Name())-len(".jsonl")]
		raw, err := decodeIDHex(idHex)
		if err != nil {
			continue
		}
		if err := b.loadLog(raw, filepath.Join(b.rootDir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

func decodeIDHex(s string) (idgen.ID, error) {
	var id idgen.ID
	if len(s) != len(id)*2 {
		return id, fmt.Errorf("bad index id %q", s)
	}
	for i := range id {
		var b byte
		if _, err := fmt.Sscanf(s[i*2:i*2+2], "%02x", &b); err != nil {
			return id, err
		}
		id[i] = b
	}
	return id, nil
}

func (b *LocalBackend) loadLog(id idgen.ID, path string) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	byKey := make(map[string]memEntry)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry jsonlEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		k := base64.StdEncoding.EncodeToString(entry.Key)
		if entry.Deleted {
			delete(byKey, k)
			continue
		}
		byKey[k] = memEntry{key: entry.Key, value: entry.Value}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	sorted := make([]memEntry, 0, len(byKey))
	for _, e := range byKey {
		sorted = append(sorted, e)
	}
	sort.Slice(sorted, func(i, j int) bool { return bytes.Compare(sorted[i].key, sorted[j].key) < 0 })
	b.entries[id] = sorted
	return nil
}

func (b *LocalBackend) appendLog(id idgen.ID, entry jsonlEntry) error {
	f, err := os.OpenFile(b.logPath(id), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	line, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return err
	}
	return f.Sync()
}

// Compact rewrites id's log to contain only its current live entries,
// bounding future replay time. Safe to call while the backend is in use.
func (b *LocalBackend) Compact(id idgen.ID) error {
	b.mu.RLock()
	live := append([]memEntry{}, b.entries[id]...)
	b.mu.RUnlock()

	tmpPath := filepath.Join(b.rootDir, ".tmp", "compact-"+uid.New())
	f, err := os.Create(tmpPath)
	if err != nil {
		return err
	}
	for _, e := range live {
		line, err := json.Marshal(jsonlEntry{Key: e.key, Value: e.value})
		if err != nil {
			f.Close()
			os.Remove(tmpPath)
			return err
		}
		if _, err := f.Write(append(line, '\n')); err != nil {
			f.Close()
			os.Remove(tmpPath)
			return err
		}
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	f.Close()
	return os.Rename(tmpPath, b.logPath(id))
}

func (b *LocalBackend) Put(ctx context.Context, id idgen.ID, key, value []byte, overwrite bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries := b.entries[id]
	i := sort.Search(len(entries), func(i int) bool { return bytes.Compare(entries[i].key, key) >= 0 })
	if i < len(entries) && bytes.Equal(entries[i].key, key) && !overwrite {
		return errors.Wrap(errors.AlreadyExists, "key %x", key)
	}

	if err := b.appendLog(id, jsonlEntry{Key: key, Value: value}); err != nil {
		return fmt.Errorf("appending index log: %w", err)
	}

	entry := memEntry{key: append([]byte{}, key...), value: append([]byte{}, value...)}
	if i < len(entries) && bytes.Equal(entries[i].key, key) {
		entries[i] = entry
	} else {
		entries = append(entries, memEntry{})
		copy(entries[i+1:], entries[i:])
		entries[i] = entry
	}
	b.entries[id] = entries
	return nil
}

func (b *LocalBackend) Get(ctx context.Context, id idgen.ID, key []byte) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	entries := b.entries[id]
	i := sort.Search(len(entries), func(i int) bool { return bytes.Compare(entries[i].key, key) >= 0 })
	if i < len(entries) && bytes.Equal(entries[i].key, key) {
		return append([]byte{}, entries[i].value...), nil
	}
	return nil, errors.Wrap(errors.NotFound, "key %x", key)
}

func (b *LocalBackend) Del(ctx context.Context, id idgen.ID, key []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries := b.entries[id]
	i := sort.Search(len(entries), func(i int) bool { return bytes.Compare(entries[i].key, key) >= 0 })
	if i >= len(entries) || !bytes.Equal(entries[i].key, key) {
		return errors.Wrap(errors.NotFound, "key %x", key)
	}

	if err := b.appendLog(id, jsonlEntry{Key: key, Deleted: true}); err != nil {
		return fmt.Errorf("appending index tombstone: %w", err)
	}

	b.entries[id] = append(entries[:i], entries[i+1:]...)
	return nil
}

func (b *LocalBackend) Next(ctx context.Context, id idgen.ID, cursor []byte, max int) ([]Entry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	entries := b.entries[id]
	i := sort.Search(len(entries), func(i int) bool { return bytes.Compare(entries[i].key, cursor) >= 0 })

	out := make([]Entry, 0, max)
	for ; i < len(entries) && len(out) < max; i++ {
		out = append(out, Entry{
			Key:   append([]byte{}, entries[i].key...),
			Value: append([]byte{}, entries[i].value...),
		})
	}
	return out, nil
}

func (b *LocalBackend) HealthCheck(ctx context.Context) error {
	_, err := os.Stat(b.rootDir)
	return err
}
