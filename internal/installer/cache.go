// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Cache deduplicates installs across environments. Each plugin@version key
// has a single writer: concurrent callers for the same key serialize, and a
// completed install leaves a marker so later callers skip the work entirely.
type Cache struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewCache creates a cache rooted at dir. The directory is created lazily
// on first write.
func NewCache(dir string) *Cache {
	return &Cache{
		dir:   dir,
		locks: make(map[string]*sync.Mutex),
	}
}

// Do runs fn under the key's lock unless the key is already marked done.
// A successful fn marks the key; failures leave it unmarked so the next
// caller retries.
func (c *Cache) Do(key string, fn func() error) error {
	lock := c.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	marker := c.markerPath(key)
	if _, err := os.Stat(marker); err == nil {
		return nil
	}

	if err := fn(); err != nil {
		return err
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	if err := os.WriteFile(marker, nil, 0o644); err != nil {
		return fmt.Errorf("failed to write cache marker: %w", err)
	}
	return nil
}

// Invalidate removes a key's marker so the next Do runs fn again.
func (c *Cache) Invalidate(key string) error {
	lock := c.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	err := os.Remove(c.markerPath(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to invalidate cache key %q: %w", key, err)
	}
	return nil
}

func (c *Cache) lockFor(key string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	lock, ok := c.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[key] = lock
	}
	return lock
}

func (c *Cache) markerPath(key string) string {
	return filepath.Join(c.dir, sanitizeKey(key)+".done")
}

// sanitizeKey maps a cache key to a safe filename component.
func sanitizeKey(key string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "@", "-")
	return replacer.Replace(key)
}

// CacheKey builds the canonical cache key for a plugin install.
func CacheKey(name, version string) string {
	if version == "" {
		version = "default"
	}
	return name + "@" + version
}
