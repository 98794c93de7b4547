// Package leveldbcache is a hotcache.Cache backend that stores the
// envelope.go-encoded (expiry + chunks) blob the cache engine hands it
// as an opaque leveldb value, using github.com/syndtr/goleveldb/leveldb.
package leveldbcache

import (
	"bytes"
	"io"
	"io/ioutil"

	"github.com/syndtr/goleveldb/leveldb"
	"go.uber.org/zap"
)

// keyPrefix namespaces this proxy's entries within a shared leveldb
// instance the same way badgercache does.
const keyPrefix = "cacheproxy/"

func ldbKey(key string) []byte {
	return []byte(keyPrefix + key)
}

// Cache is a hotcache.Cache backed by leveldb storage.
type Cache struct {
	db     *leveldb.DB
	logger *zap.Logger
}

// Has returns whether key has been cached.
func (c *Cache) Has(key string) (ok bool) {
	ok, _ = c.db.Has(ldbKey(key), nil)
	return
}

// Get returns the bytes stored for key, if present.
func (c *Cache) Get(key string) (value io.ReadCloser, ok bool) {
	data, err := c.db.Get(ldbKey(key), nil)
	if err != nil {
		return nil, false
	}
	return ioutil.NopCloser(bytes.NewReader(data)), true
}

// Set stores value against key, replacing any prior value. A write
// failure is logged, not propagated: the hot cache never gates
// correctness, the authoritative filestore does.
func (c *Cache) Set(key string, value io.ReadCloser) {
	data, err := ioutil.ReadAll(value)
	if err != nil {
		c.logger.Warn("leveldbcache: read value failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.db.Put(ldbKey(key), data, nil); err != nil {
		c.logger.Warn("leveldbcache: put failed", zap.String("key", key), zap.Error(err))
	}
}

// Delete removes key, if present.
func (c *Cache) Delete(key string) {
	if err := c.db.Delete(ldbKey(key), nil); err != nil {
		c.logger.Warn("leveldbcache: delete failed", zap.String("key", key), zap.Error(err))
	}
}

// New opens (or creates) a leveldb database at path as the hot-cache
// backend.
func New(path string, logger *zap.Logger) (*Cache, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return NewWithDB(db, logger), nil
}

// NewWithDB returns a new Cache using the provided leveldb as underlying
// storage.
func NewWithDB(db *leveldb.DB, logger *zap.Logger) *Cache {
	return &Cache{db: db, logger: logger}
}
