package main

import "testing"

func TestParseArgsDefaults(t *testing.T) {
	cfg, err := parseArgs(nil)
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	if cfg.Port != 6298 || cfg.MaxConnection != 200 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestParseArgsOverrides(t *testing.T) {
	cfg, err := parseArgs([]string{"port=8080", "max_connection=50", "debug=true", "banned_sites=blocked.txt", "cache_backend=diskv"})
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	if cfg.Port != 8080 || cfg.MaxConnection != 50 || !cfg.Debug || cfg.BannedSites != "blocked.txt" || cfg.CacheBackend != "diskv" {
		t.Errorf("unexpected overrides: %+v", cfg)
	}
}

func TestParseArgsRejectsMalformed(t *testing.T) {
	if _, err := parseArgs([]string{"port"}); err == nil {
		t.Fatal("expected error for argument with no '='")
	}
	if _, err := parseArgs([]string{"port=notanumber"}); err == nil {
		t.Fatal("expected error for non-numeric port")
	}
	if _, err := parseArgs([]string{"bogus=1"}); err == nil {
		t.Fatal("expected error for unrecognized option")
	}
}
