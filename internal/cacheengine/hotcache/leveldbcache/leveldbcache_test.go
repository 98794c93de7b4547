package leveldbcache

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/kjhall/cacheproxy/internal/cacheengine/hotcache/test"
)

func TestLevelDBCache(t *testing.T) {
	tempDir, err := ioutil.TempDir("", "cacheproxy")
	if err != nil {
		t.Fatalf("TempDir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	cache, err := New(filepath.Join(tempDir, "db"), zap.NewNop())
	if err != nil {
		t.Fatalf("New leveldb: %v", err)
	}

	test.Cache(t, cache)
}
