package proxyconn

import "errors"

// ErrDNSFailure is spec.md §7's DNSFailure kind: resolving the origin host
// failed. The handler replies with a synthesized 404; the connection is
// not closed for this reason, and keep-alive accounting then applies as
// for any other reply.
var ErrDNSFailure = errors.New("proxyconn: DNS resolution failed")

// ErrUpstreamConnectTimeout is spec.md §7's UpstreamConnectTimeout kind:
// the TCP connect to origin did not complete. The handler replies with a
// synthesized 504; the connection is not closed for this reason, and
// keep-alive accounting then applies as for any other reply.
var ErrUpstreamConnectTimeout = errors.New("proxyconn: upstream connect timed out")
