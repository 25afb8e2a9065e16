package cache

import (
	"sync"
)

// Binary key/value store of constructed tile payloads, keyed by the canonical tile code.
// Get on a missing key returns an empty slice: callers treat empty as absent. The cache does
// not validate the blobs it returns.
type TileCache interface {
	Has(key string) bool
	Get(key string) []byte
	Set(key string, value []byte) bool
}

// Keeps blobs in memory for the lifetime of the process
type MemoryTileCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

func NewMemoryTileCache() *MemoryTileCache {
	return &MemoryTileCache{
		items: make(map[string][]byte),
	}
}

func (c *MemoryTileCache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.items[key]
	return ok
}

func (c *MemoryTileCache) Get(key string) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	value, ok := c.items[key]
	if !ok {
		return []byte{}
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out
}

// Stores a copy of value. An existing entry is kept: entries are written at most once.
func (c *MemoryTileCache) Set(key string, value []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.items[key]; ok {
		return true
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	c.items[key] = stored
	return true
}

func (c *MemoryTileCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Disables caching
type NopTileCache struct{}

func (NopTileCache) Has(string) bool         { return false }
func (NopTileCache) Get(string) []byte       { return []byte{} }
func (NopTileCache) Set(string, []byte) bool { return false }
