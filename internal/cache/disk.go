package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DiskCache persists entries as one JSON file each, sharded by key hash.
// Verdicts are JSON already and are stored inline so cache files stay readable.
type DiskCache struct {
	dir string
	ttl time.Duration
}

// NewDiskCache creates a disk cache rooted at dir. ttl applies when Set is given 0.
func NewDiskCache(dir string, ttl time.Duration) *DiskCache {
	return &DiskCache{
		dir: dir,
		ttl: ttl,
	}
}

type diskEntry struct {
	Key       string          `json:"key"`
	StoredAt  time.Time       `json:"stored_at"`
	ExpiresAt time.Time       `json:"expires_at"`
	Value     json.RawMessage `json:"value,omitempty"` // JSON payloads
	Raw       []byte          `json:"raw,omitempty"`   // anything else, base64
}

func (e *diskEntry) payload() []byte {
	if e.Value != nil {
		return e.Value
	}
	return e.Raw
}

// Get returns the value for key. Expired and unreadable entries are removed.
func (c *DiskCache) Get(key string) ([]byte, bool) {
	path := c.path(key)

	entry, err := readEntry(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			_ = os.Remove(path)
		}
		return nil, false
	}

	// A hash collision would surface as a different key
	if entry.Key != key || time.Now().After(entry.ExpiresAt) {
		_ = os.Remove(path)
		return nil, false
	}

	return entry.payload(), true
}

// Set writes value under key, atomically replacing any previous entry
func (c *DiskCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}

	now := time.Now()
	entry := diskEntry{Key: key, StoredAt: now.UTC(), ExpiresAt: now.Add(ttl).UTC()}
	if json.Valid(value) {
		entry.Value = value
	} else {
		entry.Raw = value
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	path := c.path(key)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename cache file: %w", err)
	}

	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (c *DiskCache) Delete(key string) error {
	if err := os.Remove(c.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Clear removes the whole cache directory
func (c *DiskCache) Clear() error {
	return os.RemoveAll(c.dir)
}

// Prune removes expired and unreadable entries and reports how many it removed
// and how many remain. A missing cache directory is empty, not an error.
func (c *DiskCache) Prune() (removed, kept int, err error) {
	now := time.Now()

	err = filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if errors.Is(walkErr, fs.ErrNotExist) {
				return nil
			}
			return walkErr
		}
		if d.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}

		entry, err := readEntry(path)
		if err == nil && now.Before(entry.ExpiresAt) {
			kept++
			return nil
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", path, err)
		}
		removed++
		return nil
	})

	return removed, kept, err
}

// path maps key to <dir>/<first two hex chars>/<sha256>.json
func (c *DiskCache) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	name := hex.EncodeToString(sum[:])
	return filepath.Join(c.dir, name[:2], name+".json")
}

func readEntry(path string) (*diskEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entry diskEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &entry, nil
}
