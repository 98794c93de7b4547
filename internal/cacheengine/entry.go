package cacheengine

import (
	"github.com/kjhall/cacheproxy/internal/wire"
)

// expiry is spec.md §3's CacheEntry.expiry: either "never/unknown" or an
// absolute instant.
type expiry struct {
	known bool
	at    wire.HTTPDate
}

func unknownExpiry() expiry { return expiry{} }

func absoluteExpiry(at wire.HTTPDate) expiry { return expiry{known: true, at: at} }

// isFresh reports whether the expiry is a concrete instant still in the
// future relative to now.
func (e expiry) isFresh(now wire.HTTPDate) bool {
	return e.known && e.at.After(now)
}

// entry is spec.md §3's CacheEntry: per-encoding chunk counts and an
// expiry, grounded on original_source/CacheHandler.py's __generateJSON.
type entry struct {
	key    string
	exp    expiry
	counts map[wire.Encoding]int
}

func newEntry(key string) *entry {
	return &entry{key: key, counts: map[wire.Encoding]int{}}
}

// isLive reports whether any encoding has a non-zero chunk count.
func (e *entry) isLive() bool {
	for _, n := range e.counts {
		if n > 0 {
			return true
		}
	}
	return false
}

// entryJSON mirrors the on-disk document shape from spec.md §6:
// cacheFileNameFH, expiry (HTTP-date string or "nil"), and one numeric
// field per encoding token — the "none" token is rendered as "nil",
// matching original_source/CacheHandler.py's __generateJSON literally.
type entryJSON struct {
	CacheFileNameFH string `json:"cacheFileNameFH"`
	Expiry          string `json:"expiry"`
	Gzip            int    `json:"gzip"`
	Compress        int    `json:"compress"`
	Deflate         int    `json:"deflate"`
	Br              int    `json:"br"`
	Identity        int    `json:"identity"`
	None            int    `json:"nil"`
}

func (e *entry) toJSON() entryJSON {
	ej := entryJSON{
		CacheFileNameFH: e.key,
		Expiry:          "nil",
		Gzip:            e.counts[wire.EncodingGzip],
		Compress:        e.counts[wire.EncodingCompress],
		Deflate:         e.counts[wire.EncodingDeflate],
		Br:              e.counts[wire.EncodingBrotli],
		Identity:        e.counts[wire.EncodingIdentity],
		None:            e.counts[wire.EncodingNone],
	}
	if e.exp.known {
		ej.Expiry = e.exp.at.String()
	}
	return ej
}

func entryFromJSON(ej entryJSON) *entry {
	e := newEntry(ej.CacheFileNameFH)
	e.counts[wire.EncodingGzip] = ej.Gzip
	e.counts[wire.EncodingCompress] = ej.Compress
	e.counts[wire.EncodingDeflate] = ej.Deflate
	e.counts[wire.EncodingBrotli] = ej.Br
	e.counts[wire.EncodingIdentity] = ej.Identity
	e.counts[wire.EncodingNone] = ej.None
	if ej.Expiry != "nil" && ej.Expiry != "" {
		if d, err := wire.ParseHTTPDate(ej.Expiry); err == nil {
			e.exp = absoluteExpiry(d)
		}
	}
	return e
}
