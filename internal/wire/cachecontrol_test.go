package wire

import "testing"

func TestParseCacheControlDirectives(t *testing.T) {
	hl := headerList{}
	hl.Set("Cache-Control", "public, max-age=60, must-revalidate")
	cc := ParseCacheControl(hl)
	if !cc.Has("public") {
		t.Fatalf("expected public")
	}
	if n, ok := cc.IntValue("max-age"); !ok || n != 60 {
		t.Fatalf("max-age = %d %v", n, ok)
	}
	if !cc.MustRevalidate() {
		t.Fatalf("expected must-revalidate")
	}
	if cc.NoStoreOrPrivate() {
		t.Fatalf("unexpected no-store/private")
	}
}

func TestNoStoreOrPrivate(t *testing.T) {
	hl := headerList{}
	hl.Set("Cache-Control", "private")
	if !ParseCacheControl(hl).NoStoreOrPrivate() {
		t.Fatalf("expected private to block storage")
	}

	hl2 := headerList{}
	hl2.Set("Cache-Control", "no-store")
	if !ParseCacheControl(hl2).NoStoreOrPrivate() {
		t.Fatalf("expected no-store to block storage")
	}
}
