package cacheengine

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kjhall/cacheproxy/internal/cacheengine/hotcache"
	"github.com/kjhall/cacheproxy/internal/wire"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	dir := t.TempDir()
	return New(dir, 10, hotcache.NewMemoryCache(), zap.NewNop())
}

func mustRequest(t *testing.T, raw string) *wire.Request {
	t.Helper()
	req, err := wire.ParseRequest([]byte(raw))
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	return req
}

func mustResponse(t *testing.T, raw string) *wire.Response {
	t.Helper()
	resp, err := wire.ParseResponse([]byte(raw))
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	return resp
}

func TestStoreFetchRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	req := mustRequest(t, "GET /x HTTP/1.1\r\nHost: h\r\nAccept-Encoding: gzip\r\n\r\n")
	resp := mustResponse(t, "HTTP/1.1 200 OK\r\nCache-Control: public, max-age=60\r\n"+
		"Content-Encoding: gzip\r\nDate: Mon, 01 Jan 2024 00:00:00 GMT\r\n\r\nbody-bytes")

	if err := e.Store(req, resp, nil); err != nil {
		t.Fatalf("Store: %v", err)
	}

	result, ok := e.Fetch(req)
	if !ok {
		t.Fatal("expected a cache hit")
	}
	if !result.HasExpiry {
		t.Fatal("expected a known expiry")
	}
	if string(result.Response.Head.Body) != "body-bytes" {
		t.Errorf("body = %q", result.Response.Head.Body)
	}
}

func TestStoreNoStoreIsNoOp(t *testing.T) {
	e := newTestEngine(t)
	req := mustRequest(t, "GET /x HTTP/1.1\r\nHost: h\r\n\r\n")
	resp := mustResponse(t, "HTTP/1.1 200 OK\r\nCache-Control: no-store\r\n\r\nbody")

	if err := e.Store(req, resp, nil); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if _, ok := e.Fetch(req); ok {
		t.Fatal("expected no cache entry for a no-store response")
	}
}

func TestSecondStoreReplacesPriorEncoding(t *testing.T) {
	e := newTestEngine(t)
	req := mustRequest(t, "GET /x HTTP/1.1\r\nHost: h\r\n\r\n")
	gzipResp := mustResponse(t, "HTTP/1.1 200 OK\r\nCache-Control: public, max-age=60\r\n"+
		"Content-Encoding: gzip\r\n\r\nfirst")
	identityResp := mustResponse(t, "HTTP/1.1 200 OK\r\nCache-Control: public, max-age=60\r\n\r\nsecond")

	if err := e.Store(req, gzipResp, nil); err != nil {
		t.Fatalf("Store gzip: %v", err)
	}
	if err := e.Store(req, identityResp, nil); err != nil {
		t.Fatalf("Store identity: %v", err)
	}

	result, ok := e.Fetch(req)
	if !ok {
		t.Fatal("expected a hit for the identity-encoded replacement")
	}
	if string(result.Response.Head.Body) != "second" {
		t.Errorf("body = %q, want second (gzip version should have been replaced)", result.Response.Head.Body)
	}
}

func TestDeleteThenShutdownLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	e := New(dir, 10, nil, zap.NewNop())
	req := mustRequest(t, "GET /x/y HTTP/1.1\r\nHost: h\r\n\r\n")
	resp := mustResponse(t, "HTTP/1.1 200 OK\r\nCache-Control: public, max-age=60\r\n\r\nbody")

	if err := e.Store(req, resp, nil); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := e.Delete(req); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := e.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	if _, ok := e.idx.get("h/x/y"); ok {
		t.Error("expected the index entry to be pruned by Shutdown")
	}

	if _, err := os.Stat(filepath.Join(dir, "h")); !os.IsNotExist(err) {
		t.Errorf("expected emptied directory tree under h to be swept by Shutdown, stat err = %v", err)
	}
}

func TestFetchUncacheableKeyIsMiss(t *testing.T) {
	e := newTestEngine(t)
	req := mustRequest(t, "GET //x HTTP/1.1\r\nHost: h\r\n\r\n")
	if _, ok := e.Fetch(req); ok {
		t.Fatal("expected a miss for an uncacheable key")
	}
}

func TestFetchNonGetIsMiss(t *testing.T) {
	e := newTestEngine(t)
	req := mustRequest(t, "POST /x HTTP/1.1\r\nHost: h\r\n\r\n")
	if _, ok := e.Fetch(req); ok {
		t.Fatal("expected a miss for a non-GET method")
	}
}

func TestSMaxAgeOverridesMaxAge(t *testing.T) {
	e := newTestEngine(t)
	req := mustRequest(t, "GET /x HTTP/1.1\r\nHost: h\r\n\r\n")
	resp := mustResponse(t, "HTTP/1.1 200 OK\r\nCache-Control: max-age=1, s-maxage=3600\r\n\r\nbody")

	if err := e.Store(req, resp, nil); err != nil {
		t.Fatalf("Store: %v", err)
	}

	result, ok := e.Fetch(req)
	if !ok {
		t.Fatal("expected a hit")
	}
	now := wire.Now()
	if !result.Expiry.After(now) {
		t.Fatal("expected s-maxage=3600 to override max-age=1 and still be fresh")
	}
}

func TestMustRevalidateResetsExpiryToUnknown(t *testing.T) {
	e := newTestEngine(t)
	req := mustRequest(t, "GET /x HTTP/1.1\r\nHost: h\r\n\r\n")
	resp := mustResponse(t, "HTTP/1.1 200 OK\r\nCache-Control: max-age=3600, must-revalidate\r\n\r\nbody")

	if err := e.Store(req, resp, nil); err != nil {
		t.Fatalf("Store: %v", err)
	}
	result, ok := e.Fetch(req)
	if !ok {
		t.Fatal("expected a hit")
	}
	if result.HasExpiry {
		t.Fatal("expected must-revalidate to reset expiry to unknown")
	}
	if result.Fresh(wire.Now()) {
		t.Fatal("a result with no known expiry should never report Fresh")
	}
}

func TestFetchResultFreshReflectsExpiry(t *testing.T) {
	e := newTestEngine(t)
	req := mustRequest(t, "GET /x HTTP/1.1\r\nHost: h\r\n\r\n")
	resp := mustResponse(t, "HTTP/1.1 200 OK\r\nCache-Control: max-age=3600\r\n\r\nbody")

	if err := e.Store(req, resp, nil); err != nil {
		t.Fatalf("Store: %v", err)
	}
	result, ok := e.Fetch(req)
	if !ok {
		t.Fatal("expected a hit")
	}
	if !result.Fresh(wire.Now()) {
		t.Fatal("expected a max-age=3600 entry to be Fresh right after Store")
	}
	future := wire.FromTime(wire.Now().Time().Add(2 * time.Hour))
	if result.Fresh(future) {
		t.Fatal("expected the entry to no longer be Fresh 2 hours in the future")
	}
}
