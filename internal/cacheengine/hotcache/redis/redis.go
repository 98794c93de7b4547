// Package redis is a hotcache.Cache backend backed by a redis server,
// letting several proxy processes share one warm cache tier for the
// envelope.go-encoded (expiry + chunks) blob the cache engine hands it
// as an opaque value.
package redis

import (
	"bytes"
	"io"
	"io/ioutil"

	"github.com/gomodule/redigo/redis"
	"go.uber.org/zap"

	"github.com/kjhall/cacheproxy/internal/cacheengine/hotcache"
)

// cache is a hotcache.Cache that stores entries in a redis server.
type cache struct {
	conn   redis.Conn
	logger *zap.Logger
}

// cacheKey prefixes keys to avoid collision with other data stored in
// the same redis instance.
func cacheKey(key string) string {
	return "rediscache:" + key
}

// Has returns whether key has been cached.
func (c cache) Has(key string) (ok bool) {
	ok, _ = redis.Bool(c.conn.Do("EXISTS", cacheKey(key)))
	return
}

// Get returns the stored bytes for key, if present.
func (c cache) Get(key string) (value io.ReadCloser, ok bool) {
	data, err := redis.Bytes(c.conn.Do("GET", cacheKey(key)))
	if err != nil {
		return nil, false
	}
	return ioutil.NopCloser(bytes.NewReader(data)), true
}

// Set stores value against key, replacing any prior value. A write
// failure is logged, not propagated: the hot cache never gates
// correctness.
func (c cache) Set(key string, value io.ReadCloser) {
	data, err := ioutil.ReadAll(value)
	if err != nil {
		c.logger.Warn("redis: read value failed", zap.String("key", key), zap.Error(err))
		return
	}
	if _, err := c.conn.Do("SET", cacheKey(key), data); err != nil {
		c.logger.Warn("redis: set failed", zap.String("key", key), zap.Error(err))
	}
}

// Delete removes key, if present.
func (c cache) Delete(key string) {
	if _, err := c.conn.Do("DEL", cacheKey(key)); err != nil {
		c.logger.Warn("redis: delete failed", zap.String("key", key), zap.Error(err))
	}
}

// NewWithClient returns a new Cache with the given redis connection.
func NewWithClient(client redis.Conn, logger *zap.Logger) hotcache.Cache {
	return cache{conn: client, logger: logger}
}
