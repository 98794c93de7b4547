// Package filestore is the authoritative on-disk chunk store for the
// cache engine: spec.md §3/§6's nested-directory layout, one directory per
// URL path segment, with chunk files named "<lastSegment>, <encoding>, <i>".
// It is backed by diskv, repurposing diskv's AdvancedTransform hook
// (normally used for flat or content-addressed layouts, as in
// cacheengine/hotcache/diskcache) to derive that nested layout directly
// from the ResourceKey, grounded on
// original_source/CacheHandler.py's cacheResponses/fetchResponses/
// deleteFromCache directory walk.
package filestore

import (
	"fmt"
	"strings"

	"github.com/peterbourgon/diskv/v3"

	"github.com/kjhall/cacheproxy/internal/wire"
)

// Store is the authoritative chunk store. It is not safe for concurrent
// access to the same key without the caller holding the corresponding
// slot lock (see cacheengine.stripedLocks) — filestore itself does no
// locking.
type Store struct {
	d *diskv.Diskv
}

// New returns a Store rooted at basePath, creating it if necessary.
func New(basePath string) *Store {
	return &Store{
		d: diskv.New(diskv.Options{
			BasePath:          basePath,
			AdvancedTransform: advancedTransform,
			InverseTransform:  inverseTransform,
			CacheSizeMax:      0, // authoritative store always hits disk
		}),
	}
}

// advancedTransform splits a diskv key of the form
// "seg0/seg1/.../segN, encoding, i" into the directory components
// (everything but the last segment) and the terminal filename (the last
// segment, which already carries the ", encoding, i" suffix from
// chunkKey). A plain diskv.TransformFunction cannot do this: diskv joins
// the untransformed key onto the transformed directory as the filename,
// so a key containing "/" would recreate the directory as a path
// component of the filename itself. AdvancedTransform's PathKey keeps the
// directory list and filename separate, which is what produces the
// nested-directory layout spec.md §3/§6 describes.
func advancedTransform(key string) *diskv.PathKey {
	parts := strings.Split(key, "/")
	if len(parts) == 1 {
		return &diskv.PathKey{FileName: parts[0]}
	}
	return &diskv.PathKey{Path: parts[:len(parts)-1], FileName: parts[len(parts)-1]}
}

// inverseTransform is advancedTransform's required inverse: diskv panics
// at construction if AdvancedTransform is set without it.
func inverseTransform(pathKey *diskv.PathKey) string {
	if len(pathKey.Path) == 0 {
		return pathKey.FileName
	}
	return strings.Join(pathKey.Path, "/") + "/" + pathKey.FileName
}

// chunkKey reproduces original_source/CacheHandler.py's cacheFileName:
// the slash-joined segments, with ", encoding, i" appended to the final
// segment.
func chunkKey(segments []string, encoding wire.Encoding, i int) string {
	if len(segments) == 0 {
		return fmt.Sprintf(", %s, %d", encoding, i)
	}
	joined := strings.Join(segments, "/")
	return fmt.Sprintf("%s, %s, %d", joined, encoding, i)
}

// Store writes chunks[i-1] (1-indexed, matching spec.md §6) for encoding
// under segments, overwriting any existing chunk files at the same
// indices. It does not remove chunks beyond len(chunks) from a previous,
// longer generation of the same resource — callers must Delete first when
// replacing a cached resource outright (cacheengine.engine does this via
// CacheHandler.py's "deleteFromCache before cacheResponses" sequencing).
func (s *Store) Store(segments []string, encoding wire.Encoding, chunks [][]byte) error {
	for i, chunk := range chunks {
		key := chunkKey(segments, encoding, i+1)
		if err := s.d.Write(key, chunk); err != nil {
			return fmt.Errorf("filestore: write %s: %w", key, err)
		}
	}
	return nil
}

// Fetch reads back count chunks (1-indexed) for encoding under segments.
func (s *Store) Fetch(segments []string, encoding wire.Encoding, count int) ([][]byte, error) {
	chunks := make([][]byte, 0, count)
	for i := 1; i <= count; i++ {
		key := chunkKey(segments, encoding, i)
		data, err := s.d.Read(key)
		if err != nil {
			return nil, fmt.Errorf("filestore: read %s: %w", key, err)
		}
		chunks = append(chunks, data)
	}
	return chunks, nil
}

// Delete removes count chunk files (1-indexed) for encoding under
// segments. Missing files are not an error: spec.md §4.2's Delete is
// idempotent.
func (s *Store) Delete(segments []string, encoding wire.Encoding, count int) error {
	for i := 1; i <= count; i++ {
		key := chunkKey(segments, encoding, i)
		if !s.d.Has(key) {
			continue
		}
		if err := s.d.Erase(key); err != nil {
			return fmt.Errorf("filestore: erase %s: %w", key, err)
		}
	}
	return nil
}
