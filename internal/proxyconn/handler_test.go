package proxyconn

import (
	"net"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kjhall/cacheproxy/internal/denylist"
	"github.com/kjhall/cacheproxy/internal/wire"
)

func newTestHandler(t *testing.T) (*Handler, net.Conn) {
	t.Helper()
	client, other := net.Pipe()
	t.Cleanup(func() { other.Close() })
	dl := denylist.New(t.TempDir()+"/banned_sites", zap.NewNop())
	h := New(client, nil, dl, zap.NewNop())
	return h, other
}

func mustResp(t *testing.T, raw string) *wire.Response {
	t.Helper()
	resp, err := wire.ParseResponse([]byte(raw))
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	return resp
}

func mustReq(t *testing.T, raw string) *wire.Request {
	t.Helper()
	req, err := wire.ParseRequest([]byte(raw))
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	return req
}

func TestAccountKeepAliveClosesOnConnectionClose(t *testing.T) {
	h, _ := newTestHandler(t)
	req := mustReq(t, "GET /x HTTP/1.1\r\nHost: h\r\nConnection: close\r\n\r\n")
	resp := mustResp(t, "HTTP/1.1 200 OK\r\n\r\n")

	if !h.accountKeepAlive(req, resp) {
		t.Fatal("expected accountKeepAlive to signal close for Connection: close")
	}
	h.timer.Cancel()
}

func TestAccountKeepAliveAppliesMaxDefault(t *testing.T) {
	h, _ := newTestHandler(t)
	req := mustReq(t, "GET /x HTTP/1.1\r\nHost: h\r\n\r\n")
	resp := mustResp(t, "HTTP/1.1 200 OK\r\n\r\n")

	h.accountKeepAlive(req, resp)
	if h.remainingTransmissions != defaultKeepAliveMax-1 {
		t.Errorf("remainingTransmissions = %d, want %d", h.remainingTransmissions, defaultKeepAliveMax-1)
	}
	h.timer.Cancel()
}

func TestAccountKeepAliveHonorsExplicitMax(t *testing.T) {
	h, _ := newTestHandler(t)
	req := mustReq(t, "GET /x HTTP/1.1\r\nHost: h\r\n\r\n")
	resp := mustResp(t, "HTTP/1.1 200 OK\r\nKeep-Alive: timeout=5, max=1\r\n\r\n")

	closeAfter := h.accountKeepAlive(req, resp)
	if h.remainingTransmissions != 0 {
		t.Errorf("remainingTransmissions = %d, want 0", h.remainingTransmissions)
	}
	if !closeAfter {
		t.Fatal("expected close after remainingTransmissions hits 0")
	}
	h.timer.Cancel()
}

func TestMarkTimedOutRespectsEpoch(t *testing.T) {
	h, _ := newTestHandler(t)
	h.timerEpoch = 5

	h.MarkTimedOut(3) // stale epoch, should be ignored
	if h.timedOut {
		t.Fatal("MarkTimedOut with a stale epoch should not set timedOut")
	}

	h.MarkTimedOut(5)
	if !h.timedOut {
		t.Fatal("MarkTimedOut with the current epoch should set timedOut")
	}
}

func TestAssembleChunksStopsOnTerminator(t *testing.T) {
	h, _ := newTestHandler(t)
	client, srv := net.Pipe()
	defer client.Close()
	defer srv.Close()

	go func() {
		srv.Write([]byte("3\r\nabc\r\n"))
		time.Sleep(10 * time.Millisecond)
		srv.Write([]byte("0\r\n\r\n"))
	}()

	chunks := h.assembleChunks(client, []byte("HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n"))
	var all []byte
	for _, c := range chunks {
		all = append(all, c...)
	}
	if !wire.HasChunkedTerminator(all) {
		t.Fatalf("expected assembled chunks to end with the chunked terminator, got %q", all)
	}
}

func TestAssembleChunksGivesUpAfterIdleSleeps(t *testing.T) {
	orig := chunkIdleSleep
	chunkIdleSleep = 5 * time.Millisecond
	defer func() { chunkIdleSleep = orig }()

	h, _ := newTestHandler(t)
	client, srv := net.Pipe()
	defer client.Close()
	defer srv.Close()

	chunks := h.assembleChunks(client, []byte("HTTP/1.1 200 OK\r\n\r\n"))
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks when upstream never sends data, got %d", len(chunks))
	}
}
