package denylist

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

type fakeResolver map[string][]string

func (f fakeResolver) LookupHost(host string) ([]string, error) {
	if addrs, ok := f[host]; ok {
		return addrs, nil
	}
	return nil, &net.DNSError{Err: "not found", Name: host}
}

func writeBannedSites(t *testing.T, dir string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, "banned_sites")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	content += sentinel + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLiteralMatch(t *testing.T) {
	dir := t.TempDir()
	path := writeBannedSites(t, dir, "evil.example")
	l := New(path, zap.NewNop())
	l.resolver = fakeResolver{}

	if !l.IsBlocked("evil.example") {
		t.Fatalf("expected evil.example blocked")
	}
	if !l.IsBlocked("EVIL.EXAMPLE") {
		t.Fatalf("expected case-insensitive match")
	}
	if l.IsBlocked("good.example") {
		t.Fatalf("did not expect good.example blocked")
	}
}

func TestResolvedAddressMatch(t *testing.T) {
	dir := t.TempDir()
	path := writeBannedSites(t, dir, "blocked-alias.example")
	l := New(path, zap.NewNop())
	l.resolver = fakeResolver{
		"blocked-alias.example": {"10.0.0.1"},
		"mirror.example":        {"10.0.0.1"},
	}

	if !l.IsBlocked("mirror.example") {
		t.Fatalf("expected address-based match")
	}
}

func TestMissingFileCreatesEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "banned_sites")
	l := New(path, zap.NewNop())
	l.resolver = fakeResolver{}

	if l.IsBlocked("anything.example") {
		t.Fatalf("expected empty denylist")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file to be created: %v", err)
	}
}

func TestUnresolvableRequestHostFallsThroughToLiteral(t *testing.T) {
	dir := t.TempDir()
	path := writeBannedSites(t, dir, "evil.example")
	l := New(path, zap.NewNop())
	l.resolver = fakeResolver{}

	if l.IsBlocked("unresolvable.invalid") {
		t.Fatalf("unresolvable non-matching host should not be blocked")
	}
}
