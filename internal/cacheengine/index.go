package cacheengine

import (
	"encoding/json"
	"os"
	"sync"

	"go.uber.org/zap"
)

// index is spec.md §3's cache index: an in-memory table of CacheEntry,
// keyed by ResourceKey, persisted as one JSON document at indexPath.
// Loaded lazily on first access; the resident copy is authoritative while
// the process is up. A single mutex serializes all index mutations (read
// or write), per spec.md §5: "mutations are brief".
type index struct {
	path   string
	logger *zap.Logger

	mu      sync.Mutex
	loaded  bool
	entries map[string]*entry
}

func newIndex(path string, logger *zap.Logger) *index {
	return &index{path: path, logger: logger, entries: map[string]*entry{}}
}

// ensureLoaded lazily reads the index document. Caller must hold mu.
func (ix *index) ensureLoaded() {
	if ix.loaded {
		return
	}
	ix.loaded = true

	data, err := os.ReadFile(ix.path)
	if os.IsNotExist(err) {
		return
	}
	if err != nil {
		ix.logger.Warn("cacheengine: could not read index, starting empty", zap.String("path", ix.path), zap.Error(err))
		return
	}

	var rows []entryJSON
	if err := json.Unmarshal(data, &rows); err != nil {
		ix.logger.Warn("cacheengine: could not parse index, starting empty", zap.String("path", ix.path), zap.Error(err))
		return
	}
	for _, row := range rows {
		ix.entries[row.CacheFileNameFH] = entryFromJSON(row)
	}
}

// get returns a copy-by-reference of the entry for key (callers must not
// mutate it without holding mu), and whether it exists.
func (ix *index) get(key string) (*entry, bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.ensureLoaded()
	e, ok := ix.entries[key]
	return e, ok
}

// upsert stores e under its key.
func (ix *index) upsert(e *entry) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.ensureLoaded()
	ix.entries[e.key] = e
}

// zeroCounts sets every encoding's count to 0 for key, if present — the
// "Present → Zeroed" transition spec.md §4.2 describes for Delete. The
// entry itself is only physically removed at Shutdown.
func (ix *index) zeroCounts(key string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.ensureLoaded()
	e, ok := ix.entries[key]
	if !ok {
		return
	}
	for enc := range e.counts {
		e.counts[enc] = 0
	}
}

// pruneAndPersist drops every entry whose every encoding count is 0 and
// writes the remaining entries to disk, per spec.md §4.2 Shutdown steps
// (b) and (c).
func (ix *index) pruneAndPersist() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.ensureLoaded()

	rows := make([]entryJSON, 0, len(ix.entries))
	for key, e := range ix.entries {
		if !e.isLive() {
			delete(ix.entries, key)
			continue
		}
		rows = append(rows, e.toJSON())
	}

	data, err := json.MarshalIndent(rows, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(ix.path, data, 0o644)
}
