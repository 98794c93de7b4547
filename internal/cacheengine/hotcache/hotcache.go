// Package hotcache defines the pluggable accelerator tier that the cache
// engine consults before it takes the slot lock and touches the
// filesystem-backed store. It is never the system of record: every
// invariant the cache engine guarantees holds with the hot cache disabled
// or cold.
package hotcache

import (
	"bytes"
	"io"
	"io/ioutil"
	"sync"
)

// Cache stores and retrieves one opaque byte value per key; the cache
// engine stores one envelope-encoded response (expiry plus every chunk)
// per resource key and encoding. Backends
// implement this the same way mchtech-httpcache's storage packages
// implement httpcache.Cache: a flat string-keyed blob store, agnostic of
// what the caller put in the value.
type Cache interface {
	// Has returns whether key has been cached.
	Has(key string) (ok bool)
	// Get returns the stored bytes for key and true if present.
	Get(key string) (value io.ReadCloser, ok bool)
	// Set stores value against key, replacing any prior value.
	Set(key string, value io.ReadCloser)
	// Delete removes key, if present.
	Delete(key string)
}

// MemoryCache is an in-memory Cache. It is the default hot-cache backend
// (cache_backend=memory) and needs no external service or file descriptor.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: map[string][]byte{}}
}

// Has returns whether key has been cached.
func (c *MemoryCache) Has(key string) (ok bool) {
	c.mu.RLock()
	_, ok = c.items[key]
	c.mu.RUnlock()
	return ok
}

// Get returns the bytes stored for key, if present.
func (c *MemoryCache) Get(key string) (value io.ReadCloser, ok bool) {
	c.mu.RLock()
	data, found := c.items[key]
	c.mu.RUnlock()
	if !found {
		return nil, false
	}
	return ioutil.NopCloser(bytes.NewReader(data)), true
}

// Set stores value against key.
func (c *MemoryCache) Set(key string, value io.ReadCloser) {
	data, err := ioutil.ReadAll(value)
	if err != nil {
		return
	}
	c.mu.Lock()
	c.items[key] = data
	c.mu.Unlock()
}

// Delete removes key from the cache.
func (c *MemoryCache) Delete(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}
