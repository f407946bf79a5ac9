package cache

import (
	"time"
)

// LayeredCache serves hot verdicts from memory and keeps them on disk across runs.
// Disk hits are promoted to memory.
type LayeredCache struct {
	memory *MemoryCache
	disk   *DiskCache
}

// NewLayeredCache creates a memory cache in front of a disk cache at diskDir
func NewLayeredCache(memoryTTL time.Duration, diskDir string, diskTTL time.Duration) *LayeredCache {
	return &LayeredCache{
		memory: NewMemoryCache(memoryTTL, 10*time.Minute),
		disk:   NewDiskCache(diskDir, diskTTL),
	}
}

// Get checks memory, then disk
func (c *LayeredCache) Get(key string) ([]byte, bool) {
	if val, found := c.memory.Get(key); found {
		return val, true
	}

	val, found := c.disk.Get(key)
	if found {
		// Promote with the memory default TTL
		_ = c.memory.Set(key, val, 0)
	}
	return val, found
}

// Set writes to disk first so a failed write never leaves a memory-only entry.
// A ttl of 0 gives each layer its own default.
func (c *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	if err := c.disk.Set(key, value, ttl); err != nil {
		return err
	}
	return c.memory.Set(key, value, ttl)
}

// Delete removes key from both layers
func (c *LayeredCache) Delete(key string) error {
	_ = c.memory.Delete(key)
	return c.disk.Delete(key)
}

// Clear empties both layers
func (c *LayeredCache) Clear() error {
	_ = c.memory.Clear()
	return c.disk.Clear()
}
