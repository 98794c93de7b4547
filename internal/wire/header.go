package wire

import "strings"

// header is one "Field: value" line, kept in declaration order. Field
// matching everywhere in this package is case-insensitive per spec.md §4.1.
type header struct {
	name  string
	value string
}

// headerList is the order-preserving header representation from
// spec.md §3: "Request and Response messages ... an ordered header list".
// It is built from original_source/RequestPacket.py and ResponsePacket.py's
// __headerSplitted linear scan-by-prefix, generalized into a small type.
type headerList struct {
	items []header
}

func parseHeaderLines(lines []string) headerList {
	hl := headerList{items: make([]header, 0, len(lines))}
	for _, line := range lines {
		idx := strings.Index(line, ":")
		if idx < 0 {
			continue
		}
		name := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		hl.items = append(hl.items, header{name: name, value: value})
	}
	return hl
}

// Get returns the first value for name ("nil" if absent, matching
// spec.md §4.1's getHeaderInfo/getConnection "nil" sentinel convention).
func (hl headerList) Get(name string) string {
	for _, h := range hl.items {
		if strings.EqualFold(h.name, name) {
			return h.value
		}
	}
	return "nil"
}

// Has reports whether name is present at all.
func (hl headerList) Has(name string) bool {
	for _, h := range hl.items {
		if strings.EqualFold(h.name, name) {
			return true
		}
	}
	return false
}

// Set upserts name's value, preserving the position of the first existing
// occurrence (spec.md §4.1 modifyTime: "upserts").
func (hl *headerList) Set(name, value string) {
	for i := range hl.items {
		if strings.EqualFold(hl.items[i].name, name) {
			hl.items[i].value = value
			return
		}
	}
	hl.items = append(hl.items, header{name: name, value: value})
}

// Lines renders the header list back to "Field: value" wire lines, in
// declaration order.
func (hl headerList) Lines() []string {
	lines := make([]string, 0, len(hl.items))
	for _, h := range hl.items {
		lines = append(lines, h.name+": "+h.value)
	}
	return lines
}

// commaSepValues splits a comma-separated header value into trimmed parts,
// per mchtech-httpcache's headerAllCommaSepValues (RFC 2616 §4.2).
func commaSepValues(value string) []string {
	if value == "nil" || value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// hopByHopHeaders are never forwarded end-to-end, per
// mchtech-httpcache/httpcache.go getEndToEndHeaders.
var hopByHopHeaders = map[string]struct{}{
	"connection":          {},
	"keep-alive":          {},
	"proxy-authenticate":  {},
	"proxy-authorization": {},
	"te":                  {},
	"trailer":             {},
	"transfer-encoding":   {},
	"upgrade":             {},
}

func isHopByHop(name string) bool {
	_, ok := hopByHopHeaders[strings.ToLower(name)]
	return ok
}
