package subsystem

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"

	"gapfill/internal/logging"
)

// Cache serves indexes keyed by reference-file path.
//
// Entries are immutable. A cached index is reused while the file's content
// hash is unchanged; otherwise it is replaced by a fresh load, so a cached
// read is indistinguishable from an uncached one. Hashing still reads the
// file but skips parsing.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	group   singleflight.Group

	// load is swapped in tests to count reads.
	load func(path string) (*Index, error)
}

type cacheEntry struct {
	index *Index
	hash  string
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]*cacheEntry),
		load:    Load,
	}
}

func cacheKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// Index returns the index for path, loading it on first use or when the file changed.
// A file that no longer exists is evicted and reported like an uncached Load.
func (c *Cache) Index(path string) (*Index, error) {
	key := cacheKey(path)

	hash, err := fileHash(key)
	if err != nil {
		c.Invalidate(path)
		return nil, fmt.Errorf("open subsystems file: %w", err)
	}

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && e.hash == hash {
		logging.CacheDebug("hit %s", key)
		return e.index, nil
	}

	v, err, shared := c.group.Do(key+"\x00"+hash, func() (interface{}, error) {
		ix, err := c.load(key)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = &cacheEntry{index: ix, hash: hash}
		c.mu.Unlock()
		return ix, nil
	})
	if err != nil {
		return nil, err
	}
	logging.CacheDebug("miss %s (shared=%v)", key, shared)
	return v.(*Index), nil
}

func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Invalidate drops the entry for path, if any.
func (c *Cache) Invalidate(path string) {
	key := cacheKey(path)
	c.mu.Lock()
	_, ok := c.entries[key]
	delete(c.entries, key)
	c.mu.Unlock()
	if ok {
		logging.Cache("evicted %s", key)
	}
}

// Len returns the number of cached indexes.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
