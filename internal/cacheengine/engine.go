// Package cacheengine is spec.md §4.2's Cache engine: it coordinates the
// index and the filestore under a striped lock scheme and exposes Store,
// Fetch, Delete, Shutdown. Grounded throughout on
// original_source/CacheHandler.py, generalized per the §9 redesign note to
// drop the process-wide chdir lock in favor of absolute paths.
package cacheengine

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/kjhall/cacheproxy/internal/cacheengine/filestore"
	"github.com/kjhall/cacheproxy/internal/cacheengine/hotcache"
	"github.com/kjhall/cacheproxy/internal/wire"
)

// FetchResult is spec.md §4.2 Fetch's "(chunks, expiry)" pair.
type FetchResult struct {
	Response  *wire.MultiChunkResponse
	Expiry    wire.HTTPDate
	HasExpiry bool
}

// Fresh reports whether the result's expiry is a concrete instant still
// in the future relative to now, per spec.md §4.3's decision tree step
// "cached entry has a known, unexpired expiry."
func (r *FetchResult) Fresh(now wire.HTTPDate) bool {
	e := unknownExpiry()
	if r.HasExpiry {
		e = absoluteExpiry(r.Expiry)
	}
	return e.isFresh(now)
}

// Engine is the Cache engine. The zero value is not usable; build one with
// New.
type Engine struct {
	dir    string
	idx    *index
	store  *filestore.Store
	locks  *stripedLocks
	hot    hotcache.Cache
	logger *zap.Logger
	bg     *worker
}

// New builds an Engine rooted at dir (spec.md §6's cache_responses/),
// sizing its striped lock table off workerCount. hot may be nil to disable
// the accelerator tier entirely.
func New(dir string, workerCount int, hot hotcache.Cache, logger *zap.Logger) *Engine {
	return &Engine{
		dir:    dir,
		idx:    newIndex(filepath.Join(dir, "cache_lookup_table.json"), logger),
		store:  filestore.New(dir),
		locks:  newStripedLocks(workerCount),
		hot:    hot,
		logger: logger,
		bg:     newWorker(),
	}
}

func hotKey(key string, encoding wire.Encoding) string {
	return key + "\x00" + string(encoding)
}

// Fetch returns at most one cached response compatible with req's
// Accept-Encoding, per spec.md §4.2. ok is false for a non-GET method, an
// uncacheable key, an absent/zeroed entry, or no matching stored encoding.
func (e *Engine) Fetch(req *wire.Request) (*FetchResult, bool) {
	if !req.IsGet() {
		return nil, false
	}
	key, segments, ok := resourceKey(req)
	if !ok {
		return nil, false
	}

	ent, found := e.idx.get(key)
	if !found || !ent.isLive() {
		return nil, false
	}

	encoding, count, ok := chooseEncoding(ent, req.AcceptedEncodings())
	if !ok {
		return nil, false
	}

	if e.hot != nil {
		if raw, ok := e.hot.Get(hotKey(key, encoding)); ok {
			defer raw.Close()
			data, err := ioutil.ReadAll(raw)
			if err == nil {
				if exp, chunks, err := decodeEnvelope(bytes.NewReader(data)); err == nil {
					if result, ok := e.buildFetchResult(chunks, exp); ok {
						return result, true
					}
				}
			}
		}
	}

	mu := e.locks.slotFor(key)
	mu.Lock()
	chunks, err := e.store.Fetch(segments, encoding, count)
	mu.Unlock()
	if err != nil {
		e.logger.Warn("cacheengine: fetch found index/disk mismatch, treating as miss",
			zap.String("key", key), zap.String("encoding", string(encoding)), zap.Error(err))
		return nil, false
	}

	if e.hot != nil {
		e.hot.Set(hotKey(key, encoding), ioutil.NopCloser(bytes.NewReader(encodeEnvelope(ent.exp, chunks))))
	}

	return e.buildFetchResult(chunks, ent.exp)
}

func (e *Engine) buildFetchResult(chunks [][]byte, exp expiry) (*FetchResult, bool) {
	if len(chunks) == 0 {
		return nil, false
	}
	head, err := wire.ParseResponse(chunks[0])
	if err != nil {
		e.logger.Warn("cacheengine: stored head chunk does not parse as a response, treating as miss", zap.Error(err))
		return nil, false
	}
	result := &FetchResult{
		Response: &wire.MultiChunkResponse{Head: head, ExtraChunks: chunks[1:]},
	}
	if exp.known {
		result.Expiry = exp.at
		result.HasExpiry = true
	}
	return result, true
}

// chooseEncoding picks the first stored encoding compatible with accepted
// (nil meaning "any"), per spec.md §4.2: "among multiple stored encodings,
// picks in declaration order."
func chooseEncoding(ent *entry, accepted []wire.Encoding) (wire.Encoding, int, bool) {
	candidates := accepted
	if candidates == nil {
		candidates = wire.AllEncodings
	}
	for _, enc := range candidates {
		if n := ent.counts[enc]; n > 0 {
			return enc, n, true
		}
	}
	return "", 0, false
}

// Store persists resp (and any extraChunks from chunked assembly) under
// req's key, per spec.md §4.2. A no-store/private response is a no-op.
func (e *Engine) Store(req *wire.Request, resp *wire.Response, extraChunks [][]byte) error {
	if resp.CacheControl().NoStoreOrPrivate() {
		return nil
	}
	key, segments, ok := resourceKey(req)
	if !ok {
		return nil
	}

	e.deleteFiles(key, segments)

	encoding := resp.Encoding()
	chunks := append([][]byte{resp.Serialize()}, extraChunks...)

	mu := e.locks.slotFor(key)
	mu.Lock()
	err := e.store.Store(segments, encoding, chunks)
	mu.Unlock()
	if err != nil {
		e.logger.Warn("cacheengine: store failed, partial files left on disk",
			zap.String("key", key), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrCacheIO, err)
	}

	ent := newEntry(key)
	ent.exp = computeExpiry(resp)
	ent.counts[encoding] = len(chunks)
	e.idx.upsert(ent)
	return nil
}

// computeExpiry implements spec.md §4.2's precedence: max-age, then
// s-maxage overrides it, then no-cache/must-revalidate/proxy-revalidate
// resets to unknown. The reference instant is the response's Date header,
// or now.
func computeExpiry(resp *wire.Response) expiry {
	ref, ok := resp.Date()
	if !ok {
		ref = wire.Now()
	}
	cc := resp.CacheControl()

	exp := unknownExpiry()
	if delta, ok := cc.IntValue("max-age"); ok {
		exp = absoluteExpiry(ref.Add(delta))
	}
	if delta, ok := cc.IntValue("s-maxage"); ok {
		exp = absoluteExpiry(ref.Add(delta))
	}
	if cc.MustRevalidate() {
		exp = unknownExpiry()
	}
	return exp
}

// Delete removes all files for req's key and zeroes the index entry's
// counts, per spec.md §4.2. The entry itself is only physically removed
// by Shutdown.
func (e *Engine) Delete(req *wire.Request) error {
	key, segments, ok := resourceKey(req)
	if !ok {
		return nil
	}
	e.deleteFiles(key, segments)
	return nil
}

// deleteFiles physically removes every stored chunk file for key across
// all encodings and zeroes the index entry's counts. Shared by Store
// (which must clear a prior version before writing a new one) and the
// public Delete operation.
func (e *Engine) deleteFiles(key string, segments []string) {
	ent, found := e.idx.get(key)
	if !found {
		return
	}
	for _, enc := range wire.AllEncodings {
		n := ent.counts[enc]
		if n == 0 {
			continue
		}
		mu := e.locks.slotFor(key)
		mu.Lock()
		err := e.store.Delete(segments, enc, n)
		mu.Unlock()
		if err != nil {
			e.logger.Warn("cacheengine: delete failed", zap.String("key", key), zap.Error(err))
		}
		if e.hot != nil {
			e.hot.Delete(hotKey(key, enc))
		}
	}
	e.idx.zeroCounts(key)
}

// StoreAsync dispatches Store on a background worker task, per spec.md
// §4.3's "background Store" and §10's Background cache worker.
func (e *Engine) StoreAsync(req *wire.Request, resp *wire.Response, extraChunks [][]byte) {
	e.bg.dispatch(func() {
		if err := e.Store(req, resp, extraChunks); err != nil {
			e.logger.Warn("cacheengine: background store failed", zap.Error(err))
		}
	})
}

// DeleteAsync dispatches Delete on a background worker task.
func (e *Engine) DeleteAsync(req *wire.Request) {
	e.bg.dispatch(func() {
		if err := e.Delete(req); err != nil {
			e.logger.Warn("cacheengine: background delete failed", zap.Error(err))
		}
	})
}

// Shutdown implements spec.md §4.2 Shutdown: wait for outstanding
// background writes, walk the cache directory removing empty directories,
// drop zeroed index entries, and persist the index.
func (e *Engine) Shutdown() error {
	e.bg.wait()
	if err := removeEmptyDirs(e.dir); err != nil {
		e.logger.Warn("cacheengine: shutdown directory sweep failed", zap.Error(err))
	}
	return e.idx.pruneAndPersist()
}

// removeEmptyDirs walks root depth-first and removes every directory left
// empty, per spec.md §4.2 Shutdown step (a).
func removeEmptyDirs(root string) error {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil
	}
	var dirs []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() && path != root {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return err
	}
	for i := len(dirs) - 1; i >= 0; i-- {
		_ = os.Remove(dirs[i]) // fails silently if not empty
	}
	return nil
}
