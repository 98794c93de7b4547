// Package badgercache is a hotcache.Cache backend that stores the
// envelope.go-encoded (expiry + chunks) blob the cache engine hands it
// as an opaque badger value, keyed by engine.hotKey's
// "<resourceKey>\x00<encoding>" string.
package badgercache

import (
	"bytes"
	"io"
	"io/ioutil"

	badger "github.com/dgraph-io/badger/v2"
	"go.uber.org/zap"
)

// keyPrefix namespaces this proxy's entries so a shared badger
// instance (or its on-disk files, if ever inspected directly) can't be
// confused with keys another tenant of the same store might write.
const keyPrefix = "cacheproxy/"

func badgerKey(key string) []byte {
	return []byte(keyPrefix + key)
}

// Cache is a hotcache.Cache backed by badger storage.
type Cache struct {
	db     *badger.DB
	logger *zap.Logger
}

// Has returns whether key has been cached.
func (c *Cache) Has(key string) (ok bool) {
	c.db.View(func(txn *badger.Txn) (err error) {
		_, err = txn.Get(badgerKey(key))
		ok = err == nil
		return
	})
	return
}

// Get returns the bytes stored for key, if present.
func (c *Cache) Get(key string) (value io.ReadCloser, ok bool) {
	c.db.View(func(txn *badger.Txn) (err error) {
		item, err := txn.Get(badgerKey(key))
		if err != nil {
			return err
		}
		data, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		value = ioutil.NopCloser(bytes.NewReader(data))
		ok = true
		return nil
	})
	return
}

// Set stores value against key, replacing any prior value. A write
// failure is logged rather than propagated: the hot cache is never
// load-bearing, so the caller falls through to the authoritative
// filestore either way.
func (c *Cache) Set(key string, value io.ReadCloser) {
	err := c.db.Update(func(txn *badger.Txn) error {
		data, err := ioutil.ReadAll(value)
		if err != nil {
			return err
		}
		return txn.Set(badgerKey(key), data)
	})
	if err != nil {
		c.logger.Warn("badgercache: set failed", zap.String("key", key), zap.Error(err))
	}
}

// Delete removes key, if present.
func (c *Cache) Delete(key string) {
	if err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(badgerKey(key))
	}); err != nil {
		c.logger.Warn("badgercache: delete failed", zap.String("key", key), zap.Error(err))
	}
}

// New opens (or creates) a badger database at path as the hot-cache
// backend.
func New(path string, logger *zap.Logger) (*Cache, error) {
	db, err := badger.Open(badger.DefaultOptions(path))
	if err != nil {
		return nil, err
	}
	return NewWithDB(db, logger), nil
}

// NewWithDB returns a new Cache using the provided badger as underlying
// storage.
func NewWithDB(db *badger.DB, logger *zap.Logger) *Cache {
	return &Cache{db: db, logger: logger}
}
