// Command proxy is spec.md §6's entry point: parse k=v arguments, stand
// up the cache engine, denylist and acceptor, and run until an
// interrupt triggers a graceful shutdown. Grounded on
// original_source/proxy_main.py's wiring order (Proxy, then
// CacheHandler.origin, then listenConnection) and the logger/signal
// shape of other_examples' beacon-cache-proxy main.go.
package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"

	"github.com/gomodule/redigo/redis"
	"go.uber.org/zap"

	"github.com/kjhall/cacheproxy/internal/acceptor"
	"github.com/kjhall/cacheproxy/internal/cacheengine"
	"github.com/kjhall/cacheproxy/internal/cacheengine/hotcache"
	"github.com/kjhall/cacheproxy/internal/cacheengine/hotcache/badgercache"
	"github.com/kjhall/cacheproxy/internal/cacheengine/hotcache/diskcache"
	"github.com/kjhall/cacheproxy/internal/cacheengine/hotcache/leveldbcache"
	"github.com/kjhall/cacheproxy/internal/cacheengine/hotcache/memcache"
	hcredis "github.com/kjhall/cacheproxy/internal/cacheengine/hotcache/redis"
	"github.com/kjhall/cacheproxy/internal/denylist"
)

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// buildHotCache selects the hot-cache tier per cfg.CacheBackend. A
// badger or leveldb store that cannot be opened, or a redis server that
// cannot be dialed, is reported as a fatal config error rather than
// silently disabling acceleration, since the operator named it
// explicitly. The memcache backend is not contacted at startup.
func buildHotCache(cfg Config, logger *zap.Logger) (hotcache.Cache, error) {
	switch cfg.CacheBackend {
	case "memory":
		return hotcache.NewMemoryCache(), nil
	case "diskv":
		return diskcache.New(cfg.CacheDir+"-hot", logger), nil
	case "badger":
		db, err := badgercache.New(cfg.CacheDir+"-badger", logger)
		if err != nil {
			return nil, fmt.Errorf("buildHotCache: badger: %w", err)
		}
		return db, nil
	case "leveldb":
		db, err := leveldbcache.New(cfg.CacheDir+"-leveldb", logger)
		if err != nil {
			return nil, fmt.Errorf("buildHotCache: leveldb: %w", err)
		}
		return db, nil
	case "memcache":
		return memcache.New(logger, "127.0.0.1:11211"), nil
	case "redis":
		conn, err := redis.Dial("tcp", "127.0.0.1:6379")
		if err != nil {
			return nil, fmt.Errorf("buildHotCache: redis: %w", err)
		}
		return hcredis.NewWithClient(conn, logger), nil
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("buildHotCache: unrecognized cache_backend %q", cfg.CacheBackend)
	}
}

func main() {
	cfg, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "proxy: %v\n", err)
		fmt.Fprintln(os.Stderr, "usage: proxy [max_connection=N] [port=P] [debug=bool] [banned_sites=path] [cache_backend=name] [cache_dir=path]")
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "proxy: error initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	hot, err := buildHotCache(cfg, logger)
	if err != nil {
		logger.Fatal("proxy: error constructing hot cache", zap.Error(err))
	}

	engine := cacheengine.New(cfg.CacheDir, cfg.MaxConnection, hot, logger)
	dl := denylist.New(cfg.BannedSites, logger)

	addr := net.JoinHostPort("0.0.0.0", strconv.Itoa(cfg.Port))
	acc := acceptor.New(addr, cfg.MaxConnection, engine, dl, logger)
	if err := acc.Listen(); err != nil {
		logger.Error("proxy: error starting listener", zap.Error(err))
		os.Exit(1)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		logger.Info("proxy: shutdown signal received")
		acc.Shutdown()
		if err := engine.Shutdown(); err != nil {
			logger.Warn("proxy: error during cache engine shutdown", zap.Error(err))
		}
	}()

	logger.Info("proxy: server starts", zap.Int("port", cfg.Port), zap.Int("max_connection", cfg.MaxConnection))
	if err := acc.Serve(); err != nil {
		logger.Info("proxy: listener closed", zap.Error(err))
	}
	logger.Info("proxy: server ends")
}
