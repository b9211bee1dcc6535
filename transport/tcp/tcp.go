// Package tcp provides the plain/TLS TCP transport the wish protocol
// runs over: a net.Conn is already an io.ReadWriteCloser, so this
// package is mostly listener/dial plumbing plus optional TLS.
package tcp

import (
	"context"
	"crypto/tls"
	"net"

	"github.com/wish-project/wishd/wisherr"
)

// Listener accepts incoming protocol connections on a TCP address,
// optionally behind TLS.
type Listener struct {
	net.Listener
}

// Listen binds addr. If tlsConfig is non-nil, accepted connections
// are wrapped in TLS; the TLS handshake runs on the connection's first
// Read or Write, not inside Accept.
func Listen(addr string, tlsConfig *tls.Config) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, wisherr.Wrap(wisherr.Timeout, "listen", err)
	}
	if tlsConfig != nil {
		ln = tls.NewListener(ln, tlsConfig)
	}
	return &Listener{Listener: ln}, nil
}

// Dial connects to addr, optionally over TLS when tlsConfig is
// non-nil.
func Dial(ctx context.Context, addr string, tlsConfig *tls.Config) (net.Conn, error) {
	dialer := &net.Dialer{}
	if tlsConfig != nil {
		conn, err := (&tls.Dialer{NetDialer: dialer, Config: tlsConfig}).DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, wisherr.Wrap(wisherr.Timeout, "dial tls", err)
		}
		return conn, nil
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, wisherr.Wrap(wisherr.Timeout, "dial", err)
	}
	return conn, nil
}
