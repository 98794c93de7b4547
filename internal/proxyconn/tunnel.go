package proxyconn

import (
	"errors"
	"io"
	"net"
	"time"

	"go.uber.org/zap"
)

// connectEstablished is the literal reply spec.md §4.3/§6 mandates before
// tunnel bytes start flowing.
const connectEstablished = "HTTP/1.1 200 Connection Established\r\n\r\n"

// tunnelPollInterval is how long each side's read deadline is set to,
// standing in for the original's non-blocking socket reads: net.Conn has
// no portable non-blocking mode, so a short read deadline plays the same
// role as original_source/SocketHandler.py's "would block, ignore and
// retry" behavior.
const tunnelPollInterval = 200 * time.Millisecond

// runTunnel is the CONNECT state from spec.md §4.3: a blind bidirectional
// byte-forwarding loop between client and upstream, with no cache
// interaction. done is closed on acceptor shutdown to unwind the loop at
// its next poll.
func runTunnel(client, upstream net.Conn, done <-chan struct{}, logger *zap.Logger) {
	for {
		select {
		case <-done:
			return
		default:
		}

		if !pumpOnce(upstream, client, logger) {
			return
		}
		if !pumpOnce(client, upstream, logger) {
			return
		}
	}
}

// pumpOnce attempts one non-blocking-equivalent read from src and, if any
// bytes arrived, writes them to dst. It returns false when the tunnel
// should end: a real error other than a read timeout.
func pumpOnce(src, dst net.Conn, logger *zap.Logger) bool {
	buf := make([]byte, bufferSize)
	_ = src.SetReadDeadline(time.Now().Add(tunnelPollInterval))
	n, err := src.Read(buf)
	if n > 0 {
		if _, werr := dst.Write(buf[:n]); werr != nil {
			logger.Debug("proxyconn: tunnel write failed, ending tunnel", zap.Error(werr))
			return false
		}
	}
	if err == nil {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true // would-block equivalent: no data this tick
	}
	if err == io.EOF {
		return false
	}
	logger.Debug("proxyconn: tunnel read ended", zap.Error(err))
	return false
}
