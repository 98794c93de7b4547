package main

import (
	"fmt"
	"strconv"
	"strings"
)

// Config is the parsed result of the proxy's bare k=v argument vector,
// grounded on original_source/proxy_main.py's `option.split('=')` loop
// and extended per spec.md §6 with debug, banned_sites and
// cache_backend.
type Config struct {
	MaxConnection int
	Port          int
	Debug         bool
	BannedSites   string
	CacheBackend  string
	CacheDir      string
}

// ArgumentError reports a malformed or unrecognized k=v argument, the
// Go equivalent of proxy_main.py letting ValueError/unpacking errors
// propagate out of the split loop.
type ArgumentError struct {
	Arg string
	Err error
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %q: %v", e.Arg, e.Err)
}

func (e *ArgumentError) Unwrap() error { return e.Err }

// defaultConfig mirrors Proxy.py's default port (6298) and
// Proxy.MAX_CONNECTION, plus this rewrite's additive defaults.
func defaultConfig() Config {
	return Config{
		MaxConnection: 200,
		Port:          6298,
		Debug:         false,
		BannedSites:   "banned_sites",
		CacheBackend:  "memory",
		CacheDir:      "cache_responses",
	}
}

// parseArgs parses a k=v argument vector (os.Args[1:]) into a Config,
// starting from defaultConfig and overriding per recognized key.
func parseArgs(args []string) (Config, error) {
	cfg := defaultConfig()
	for _, arg := range args {
		parts := strings.SplitN(arg, "=", 2)
		if len(parts) != 2 {
			return cfg, &ArgumentError{Arg: arg, Err: fmt.Errorf("expected key=value")}
		}
		key, val := parts[0], parts[1]
		switch key {
		case "max_connection":
			n, err := strconv.Atoi(val)
			if err != nil {
				return cfg, &ArgumentError{Arg: arg, Err: err}
			}
			cfg.MaxConnection = n
		case "port":
			n, err := strconv.Atoi(val)
			if err != nil {
				return cfg, &ArgumentError{Arg: arg, Err: err}
			}
			cfg.Port = n
		case "debug":
			b, err := strconv.ParseBool(val)
			if err != nil {
				return cfg, &ArgumentError{Arg: arg, Err: err}
			}
			cfg.Debug = b
		case "banned_sites":
			cfg.BannedSites = val
		case "cache_backend":
			cfg.CacheBackend = val
		case "cache_dir":
			cfg.CacheDir = val
		default:
			return cfg, &ArgumentError{Arg: arg, Err: fmt.Errorf("unrecognized option %q", key)}
		}
	}
	return cfg, nil
}
