// Package test is a shared conformance suite for hotcache.Cache
// backends, run by each of badgercache, diskcache and leveldbcache
// against their own backing store. memcache and redis need a live
// server so they are exercised only through cmd/proxy's buildHotCache
// wiring, not this suite.
package test

import (
	"bytes"
	"io/ioutil"
	"testing"

	"github.com/kjhall/cacheproxy/internal/cacheengine/hotcache"
)

// Cache exercises a hotcache.Cache implementation against the same
// key shape engine.hotKey produces ("<resourceKey>\x00<encoding>") and
// a value standing in for an envelope.go-encoded blob, so a backend
// that mishandles NUL bytes or binary payloads fails here rather than
// in production.
func Cache(t *testing.T, cache hotcache.Cache) {
	key := "example.com/a/b\x00gzip"

	if ok := cache.Has(key); ok {
		t.Fatal("Has reported a key before it was ever set")
	}
	if _, ok := cache.Get(key); ok {
		t.Fatal("Get returned a value for a key before it was ever set")
	}

	val := []byte("\x00\x00\x00\x00\x00\x00\x00\x01encoded envelope bytes")
	cache.Set(key, ioutil.NopCloser(bytes.NewReader(val)))

	if ok := cache.Has(key); !ok {
		t.Fatal("Has reported false for a key just Set")
	}

	stream, ok := cache.Get(key)
	if !ok {
		t.Fatal("Get reported false for a key just Set")
	}
	got, err := ioutil.ReadAll(stream)
	if err != nil {
		t.Fatalf("reading Get's value: %v", err)
	}
	if !bytes.Equal(got, val) {
		t.Fatalf("Get returned %q, want %q", got, val)
	}

	cache.Delete(key)
	if _, ok := cache.Get(key); ok {
		t.Fatal("Get still returned a value after Delete")
	}
}
