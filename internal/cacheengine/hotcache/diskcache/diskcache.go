// Package diskcache is a hotcache.Cache backend that content-hashes keys
// into a flat diskv store, storing the envelope.go-encoded (expiry +
// chunks) blob the cache engine hands it as an opaque file. It is a
// hot-cache accelerator, distinct from cacheengine/filestore, which
// lays out the authoritative per-segment directory tree the cache
// engine's invariants depend on: unlike filestore, losing this store
// entirely (a bad hash bucket, a truncated write) only costs a cache
// miss, never correctness, so its write path tolerates errors by
// logging rather than surfacing them to the caller.
package diskcache

import (
	"crypto/md5"
	"encoding/hex"
	"io"

	"github.com/peterbourgon/diskv/v3"
	"go.uber.org/zap"
)

// Cache is a hotcache.Cache backed by a diskv store keyed by content hash.
type Cache struct {
	d      *diskv.Diskv
	logger *zap.Logger
}

// Has reports whether key has been cached.
func (c *Cache) Has(key string) (ok bool) {
	return c.d.Has(keyToFilename(key))
}

// Get returns the stored bytes for key, if present.
func (c *Cache) Get(key string) (value io.ReadCloser, ok bool) {
	stream, err := c.d.ReadStream(keyToFilename(key), true)
	if err != nil {
		return nil, false
	}
	return stream, true
}

// Set stores value against key, replacing any prior value.
func (c *Cache) Set(key string, value io.ReadCloser) {
	if err := c.d.WriteStream(keyToFilename(key), value, true); err != nil {
		c.logger.Warn("diskcache: write failed", zap.String("key", key), zap.Error(err))
	}
}

// Delete removes key, if present.
func (c *Cache) Delete(key string) {
	if err := c.d.Erase(keyToFilename(key)); err != nil {
		c.logger.Warn("diskcache: erase failed", zap.String("key", key), zap.Error(err))
	}
}

// keyToFilename content-hashes key so resource keys of arbitrary length
// and character set are safe diskv filenames; unlike filestore, this
// store has no directory-layout invariant for callers to rely on.
func keyToFilename(key string) string {
	h := md5.New()
	io.WriteString(h, key)
	return hex.EncodeToString(h.Sum(nil))
}

// New returns a new Cache that will store files in basePath, bounding
// its in-process read cache at 100MB.
func New(basePath string, logger *zap.Logger) *Cache {
	return NewWithDiskv(diskv.New(diskv.Options{
		BasePath:     basePath,
		CacheSizeMax: 100 * 1024 * 1024,
	}), logger)
}

// NewWithDiskv returns a new Cache using the provided Diskv as underlying
// storage.
func NewWithDiskv(d *diskv.Diskv, logger *zap.Logger) *Cache {
	return &Cache{d: d, logger: logger}
}
