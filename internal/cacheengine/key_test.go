package cacheengine

import (
	"strings"
	"testing"

	"github.com/kjhall/cacheproxy/internal/wire"
)

func mustParseRequest(t *testing.T, raw string) *wire.Request {
	t.Helper()
	req, err := wire.ParseRequest([]byte(raw))
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	return req
}

func TestResourceKeyBasic(t *testing.T) {
	req := mustParseRequest(t, "GET /a/b HTTP/1.1\r\nHost: example.com\r\n\r\n")
	key, segments, ok := resourceKey(req)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if key != "example.com/a/b" {
		t.Errorf("key = %q, want example.com/a/b", key)
	}
	if len(segments) != 3 || segments[0] != "example.com" || segments[2] != "b" {
		t.Errorf("segments = %v", segments)
	}
}

func TestResourceKeyRootPath(t *testing.T) {
	req := mustParseRequest(t, "GET / HTTP/1.1\r\nHost: example.com\r\n\r\n")
	key, segments, ok := resourceKey(req)
	if !ok || key != "example.com" || len(segments) != 1 {
		t.Fatalf("key=%q segments=%v ok=%v", key, segments, ok)
	}
}

func TestResourceKeyEmptySegmentUncacheable(t *testing.T) {
	req := mustParseRequest(t, "GET /a//b HTTP/1.1\r\nHost: example.com\r\n\r\n")
	if _, _, ok := resourceKey(req); ok {
		t.Fatal("expected ok=false for an empty path segment")
	}
}

func TestResourceKeyTooLongUncacheable(t *testing.T) {
	longPath := "/" + strings.Repeat("a", 300)
	req := mustParseRequest(t, "GET "+longPath+" HTTP/1.1\r\nHost: example.com\r\n\r\n")
	if _, _, ok := resourceKey(req); ok {
		t.Fatal("expected ok=false for a key over 255 bytes")
	}
}
