package cacheengine

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/kjhall/cacheproxy/internal/wire"
)

func TestIndexUpsertAndGet(t *testing.T) {
	dir := t.TempDir()
	ix := newIndex(filepath.Join(dir, "cache_lookup_table.json"), zap.NewNop())

	e := newEntry("example.com/a")
	e.counts[wire.EncodingGzip] = 1
	ix.upsert(e)

	got, ok := ix.get("example.com/a")
	if !ok || got.counts[wire.EncodingGzip] != 1 {
		t.Fatalf("get returned %v, %v", got, ok)
	}
}

func TestIndexMissingFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	ix := newIndex(filepath.Join(dir, "cache_lookup_table.json"), zap.NewNop())

	if _, ok := ix.get("anything"); ok {
		t.Fatal("expected no entries for a missing index file")
	}
}

func TestIndexZeroCountsKeepsEntryPresent(t *testing.T) {
	dir := t.TempDir()
	ix := newIndex(filepath.Join(dir, "cache_lookup_table.json"), zap.NewNop())

	e := newEntry("k")
	e.counts[wire.EncodingIdentity] = 2
	ix.upsert(e)

	ix.zeroCounts("k")

	got, ok := ix.get("k")
	if !ok {
		t.Fatal("entry should still be present after zeroCounts")
	}
	if got.isLive() {
		t.Fatal("entry should not be live after zeroCounts")
	}
}

func TestIndexPruneAndPersistDropsZeroedEntries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache_lookup_table.json")
	ix := newIndex(path, zap.NewNop())

	live := newEntry("live")
	live.counts[wire.EncodingIdentity] = 1
	ix.upsert(live)

	dead := newEntry("dead")
	dead.counts[wire.EncodingIdentity] = 1
	ix.upsert(dead)
	ix.zeroCounts("dead")

	if err := ix.pruneAndPersist(); err != nil {
		t.Fatalf("pruneAndPersist: %v", err)
	}

	reloaded := newIndex(path, zap.NewNop())
	if _, ok := reloaded.get("live"); !ok {
		t.Error("expected live entry to survive persistence")
	}
	if _, ok := reloaded.get("dead"); ok {
		t.Error("expected zeroed entry to be dropped by pruneAndPersist")
	}
}
