// Package memcache is a hotcache.Cache backend that uses gomemcache to
// store the envelope.go-encoded (expiry + chunks) blob the cache engine
// hands it as an opaque value in a memcached server.
package memcache

import (
	"bytes"
	"io"
	"io/ioutil"

	"github.com/bradfitz/gomemcache/memcache"
	"go.uber.org/zap"
)

// Cache is a hotcache.Cache that caches entries in a memcache server.
type Cache struct {
	client *memcache.Client
	logger *zap.Logger
}

// cacheKey prefixes keys to avoid collision with other data stored in
// the same memcache server.
func cacheKey(key string) string {
	return "cacheproxy:" + key
}

// Has returns whether key has been cached.
func (c *Cache) Has(key string) (ok bool) {
	_, err := c.client.Get(cacheKey(key))
	return err == nil
}

// Get returns the stored bytes for key, if present.
func (c *Cache) Get(key string) (value io.ReadCloser, ok bool) {
	item, err := c.client.Get(cacheKey(key))
	if err != nil {
		return nil, false
	}
	return ioutil.NopCloser(bytes.NewReader(item.Value)), true
}

// Set stores value against key, replacing any prior value. A write
// failure is logged, not propagated: the hot cache never gates
// correctness.
func (c *Cache) Set(key string, value io.ReadCloser) {
	data, err := ioutil.ReadAll(value)
	if err != nil {
		c.logger.Warn("memcache: read value failed", zap.String("key", key), zap.Error(err))
		return
	}
	item := &memcache.Item{Key: cacheKey(key), Value: data}
	if err := c.client.Set(item); err != nil {
		c.logger.Warn("memcache: set failed", zap.String("key", key), zap.Error(err))
	}
}

// Delete removes key, if present.
func (c *Cache) Delete(key string) {
	if err := c.client.Delete(cacheKey(key)); err != nil && err != memcache.ErrCacheMiss {
		c.logger.Warn("memcache: delete failed", zap.String("key", key), zap.Error(err))
	}
}

// New returns a new Cache using the provided memcache server(s) with
// equal weight. If a server is listed multiple times, it gets a
// proportional amount of weight.
func New(logger *zap.Logger, server ...string) *Cache {
	return NewWithClient(memcache.New(server...), logger)
}

// NewWithClient returns a new Cache with the given memcache client.
func NewWithClient(client *memcache.Client, logger *zap.Logger) *Cache {
	return &Cache{client: client, logger: logger}
}
