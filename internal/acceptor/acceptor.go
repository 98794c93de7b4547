// Package acceptor is spec.md §4.5: a bounded pool of connection slots
// that accepts from a listening TCP socket, dispatches each accepted
// connection to its own Connection handler, and orchestrates graceful
// shutdown. Grounded on original_source/Proxy.py and ConnectionThread.py
// (the free-slot table and listenConnection accept loop), restructured
// per the §9 redesign note to inject the Cache Engine and denylist
// rather than reach for class-level globals, and on the signal/Shutdown
// shape of other_examples' beacon-cache-proxy main.go.
package acceptor

import (
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/kjhall/cacheproxy/internal/cacheengine"
	"github.com/kjhall/cacheproxy/internal/denylist"
	"github.com/kjhall/cacheproxy/internal/proxyconn"
)

// DefaultMaxConnection mirrors original_source/Proxy.py's MAX_CONNECTION,
// raised from 100 to the value spec.md's CLI default settled on.
const DefaultMaxConnection = 200

// DefaultPort is original_source/Proxy.py's default proxyPort.
const DefaultPort = 6298

// Acceptor owns the listening socket and the fixed-size pool of
// connection slots described in spec.md §4.5. A slot is "free" or
// "busy" exactly as Proxy.py's freeIndexArr tracks it; here the same
// bound is enforced with a buffered channel used as a counting
// semaphore instead of a scanned boolean array, since Go has no
// convenient equivalent of Python's shared class attributes.
type Acceptor struct {
	addr     string
	engine   *cacheengine.Engine
	denylist *denylist.List
	logger   *zap.Logger

	maxConnection int
	slots         chan struct{}

	listener net.Listener

	mu       sync.Mutex
	handlers map[*proxyconn.Handler]struct{}
	wg       sync.WaitGroup

	shutdownOnce sync.Once
}

// New constructs an Acceptor bound to addr (host:port form; an empty
// host means all interfaces, matching Proxy.py's '0.0.0.0' bind).
// maxConnection <= 0 falls back to DefaultMaxConnection.
func New(addr string, maxConnection int, engine *cacheengine.Engine, dl *denylist.List, logger *zap.Logger) *Acceptor {
	if maxConnection <= 0 {
		maxConnection = DefaultMaxConnection
	}
	return &Acceptor{
		addr:          addr,
		engine:        engine,
		denylist:      dl,
		logger:        logger,
		maxConnection: maxConnection,
		slots:         make(chan struct{}, maxConnection),
		handlers:      make(map[*proxyconn.Handler]struct{}),
	}
}

// Listen binds the listening socket. Separated from Serve so callers
// (cmd/proxy) can report a bind failure before committing to the accept
// loop.
func (a *Acceptor) Listen() error {
	ln, err := net.Listen("tcp", a.addr)
	if err != nil {
		return err
	}
	a.listener = ln
	a.logger.Info("acceptor: listening", zap.String("addr", a.addr), zap.Int("max_connection", a.maxConnection))
	return nil
}

// Serve runs the accept loop described in spec.md §4.5 until the
// listening socket is closed by Shutdown. A free slot is reserved
// before each accept; when the pool is saturated, Serve blocks waiting
// for a slot to free up before it calls Accept, rather than spinning, so a burst of connections queues
// in the kernel's backlog instead of busy-polling getFreeIndex as
// Proxy.py does.
func (a *Acceptor) Serve() error {
	for {
		a.slots <- struct{}{}

		conn, err := a.listener.Accept()
		if err != nil {
			<-a.slots
			return err
		}

		h := proxyconn.New(conn, a.engine, a.denylist, a.logger)
		a.mu.Lock()
		a.handlers[h] = struct{}{}
		a.mu.Unlock()

		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			defer func() { <-a.slots }()
			defer func() {
				a.mu.Lock()
				delete(a.handlers, h)
				a.mu.Unlock()
			}()
			h.Run()
		}()
	}
}

// Shutdown is spec.md §4.5's graceful-shutdown sequence: close the
// listening socket so Serve's Accept unblocks with an error, signal
// every running handler to cancel, wait for all of them to finish,
// then hand control back to the caller so it can invoke the Cache
// Engine's own Shutdown. Safe to call more than once.
func (a *Acceptor) Shutdown() {
	a.shutdownOnce.Do(func() {
		if a.listener != nil {
			a.listener.Close()
		}
		a.mu.Lock()
		for h := range a.handlers {
			h.Shutdown()
		}
		a.mu.Unlock()
		a.wg.Wait()
	})
}
