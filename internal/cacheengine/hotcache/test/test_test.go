package test_test

import (
	"testing"

	"github.com/kjhall/cacheproxy/internal/cacheengine/hotcache"
	"github.com/kjhall/cacheproxy/internal/cacheengine/hotcache/test"
)

func TestMemoryCache(t *testing.T) {
	test.Cache(t, hotcache.NewMemoryCache())
}
