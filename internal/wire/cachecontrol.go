package wire

import "strings"

// CacheControl is the parsed set of Cache-Control directives on a request or
// response, grounded on mchtech-httpcache/httpcache.go's parseCacheControl
// and lggomez-httpcache/cache_control.go (the same parser, independently
// forked in both teacher-family repos).
type CacheControl map[string]string

// ParseCacheControl parses the Cache-Control header value from a headerList.
func ParseCacheControl(hl headerList) CacheControl {
	cc := CacheControl{}
	raw := hl.Get("Cache-Control")
	if raw == "nil" {
		return cc
	}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if eq := strings.IndexByte(part, '='); eq >= 0 {
			key := strings.TrimSpace(part[:eq])
			val := strings.Trim(strings.TrimSpace(part[eq+1:]), `"`)
			cc[strings.ToLower(key)] = val
		} else {
			cc[strings.ToLower(part)] = ""
		}
	}
	return cc
}

// Has reports whether directive is present (with or without a value).
func (cc CacheControl) Has(directive string) bool {
	_, ok := cc[directive]
	return ok
}

// IntValue returns the integer value of directive (e.g. max-age=60) and
// whether it was present and well-formed.
func (cc CacheControl) IntValue(directive string) (int, bool) {
	v, ok := cc[directive]
	if !ok {
		return 0, false
	}
	n := 0
	for _, r := range v {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	if v == "" {
		return 0, false
	}
	return n, true
}

// NoStoreOrPrivate reports whether the response's Cache-Control forbids
// caching at all, per spec.md §4.2 Store: "no-store" or "private".
func (cc CacheControl) NoStoreOrPrivate() bool {
	return cc.Has("no-store") || cc.Has("private")
}

// MustRevalidate reports whether any of no-cache / must-revalidate /
// proxy-revalidate is present, per spec.md §4.2 expiry computation.
func (cc CacheControl) MustRevalidate() bool {
	return cc.Has("no-cache") || cc.Has("must-revalidate") || cc.Has("proxy-revalidate")
}
