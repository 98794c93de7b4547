// Package denylist implements spec.md §4.6: a lazily-loaded, host-pattern
// blocklist that causes the proxy to reject a request with a synthesized
// 404 instead of forwarding it. Grounded on the lock-guarded lazy-load
// style of mchtech-httpcache's CacheHandler.lookupTableRWLock, applied to
// a read-mostly structure instead of a read/write one.
package denylist

import (
	"bufio"
	"net"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// sentinel terminates the banned_sites file, per spec.md §4.6/§6.
const sentinel = "***"

// Resolver resolves a hostname to its addresses. It is an interface so
// tests can substitute a deterministic fake in place of net.LookupHost.
type Resolver interface {
	LookupHost(host string) ([]string, error)
}

type netResolver struct{}

func (netResolver) LookupHost(host string) ([]string, error) {
	return net.LookupHost(host)
}

// List is a denylist.IsBlocked(host) gate, lazily loaded from path on
// first use.
type List struct {
	path     string
	logger   *zap.Logger
	resolver Resolver

	once    sync.Once
	entries []string // literal host patterns, lowercased
}

// New returns a List that will lazily load path on first IsBlocked call.
func New(path string, logger *zap.Logger) *List {
	return &List{path: path, logger: logger, resolver: netResolver{}}
}

func (l *List) load() {
	l.once.Do(func() {
		f, err := os.Open(l.path)
		if os.IsNotExist(err) {
			if werr := os.WriteFile(l.path, []byte(sentinel+"\n"), 0o644); werr != nil {
				l.logger.Warn("denylist: could not create empty file", zap.String("path", l.path), zap.Error(werr))
			}
			l.logger.Info("denylist: file missing, created empty denylist", zap.String("path", l.path))
			return
		}
		if err != nil {
			l.logger.Warn("denylist: could not open file, treating as empty", zap.String("path", l.path), zap.Error(err))
			return
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if line == sentinel {
				break
			}
			l.entries = append(l.entries, strings.ToLower(line))
		}
	})
}

// IsBlocked reports whether host matches the denylist, per spec.md §4.6:
// a literal (case-insensitive) match, or a match between the resolved
// addresses of host and of a denylist entry. Resolution failures on
// either side count as "no match" (fail-open), except that an
// unresolvable request host falls through to literal matching only.
func (l *List) IsBlocked(host string) bool {
	l.load()

	host = strings.ToLower(host)
	for _, entry := range l.entries {
		if host == entry {
			return true
		}
	}

	reqAddrs, err := l.resolver.LookupHost(host)
	if err != nil || len(reqAddrs) == 0 {
		// Request host unresolvable: literal match only, already checked above.
		return false
	}

	for _, entry := range l.entries {
		entryAddrs, err := l.resolver.LookupHost(entry)
		if err != nil {
			continue
		}
		if addrSetsIntersect(reqAddrs, entryAddrs) {
			return true
		}
	}
	return false
}

func addrSetsIntersect(a, b []string) bool {
	set := make(map[string]struct{}, len(a))
	for _, x := range a {
		set[x] = struct{}{}
	}
	for _, y := range b {
		if _, ok := set[y]; ok {
			return true
		}
	}
	return false
}
