package cacheengine

import (
	"strings"

	"github.com/kjhall/cacheproxy/internal/wire"
)

// maxKeyBytes is spec.md §3's "Keys longer than 255 bytes are uncacheable."
const maxKeyBytes = 255

// resourceKey builds the ResourceKey from spec.md §3: host plus the
// request-URI's path segments, slash-joined, grounded on
// original_source/CacheHandler.py's __getCacheFileNameFH. segments is the
// exploded per-directory path, passed to filestore to build its chunk keys.
// ok is false if the key is uncacheable (an empty "//" segment, or a key
// longer than 255 bytes).
func resourceKey(req *wire.Request) (key string, segments []string, ok bool) {
	host := req.Host()
	segments = []string{host}

	path := req.FilePath()
	if path != "/" && path != "" {
		trimmed := strings.TrimPrefix(path, "/")
		for _, part := range strings.Split(trimmed, "/") {
			if part == "" {
				return "", nil, false
			}
			segments = append(segments, part)
		}
	}

	key = strings.Join(segments, "/")
	if len(key) > maxKeyBytes {
		return "", nil, false
	}
	return key, segments, true
}
