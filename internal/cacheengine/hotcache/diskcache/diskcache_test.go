package diskcache

import (
	"io/ioutil"
	"os"
	"testing"

	"go.uber.org/zap"

	"github.com/kjhall/cacheproxy/internal/cacheengine/hotcache/test"
)

func TestDiskCache(t *testing.T) {
	tempDir, err := ioutil.TempDir("", "cacheproxy")
	if err != nil {
		t.Fatalf("TempDir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	test.Cache(t, New(tempDir, zap.NewNop()))
}
