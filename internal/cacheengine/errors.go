package cacheengine

import "errors"

// ErrCacheIO is spec.md §7's CacheIO kind: any filesystem error during
// Store. The new entry is not written to the index (the prior version's
// counts were already zeroed before the write began), and any partial
// chunk files stay on disk: Shutdown's sweep removes only empty
// directories, not files.
var ErrCacheIO = errors.New("cacheengine: disk I/O error")

// ErrCacheCorruption is spec.md §7's CacheCorruption kind: Fetch found an
// index entry whose declared chunk count exceeds what is actually present
// on disk. Policy: treat as a miss.
var ErrCacheCorruption = errors.New("cacheengine: index/disk mismatch")
