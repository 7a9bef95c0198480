// Package pipe defines the lower transport abstraction the obfuscation
// layer runs over: an ordinary duplex byte stream plus a little identity
// introspection. Concrete carriers (TCP here, KCP and QUIC in subpackages)
// only move bytes; making those bytes look like noise is not their job.
package pipe

import (
	"context"
	"net"
)

// Pipe is a bidirectional byte stream with transport introspection.
type Pipe interface {
	net.Conn

	// Protocol returns the transport identifier, e.g. "tcp" or "sosistab3".
	Protocol() string

	// SharedSecret returns session key material negotiated by this layer,
	// or nil if the transport has none. Callers may use it for channel
	// binding or certificate pinning.
	SharedSecret() []byte
}

// Dialer establishes outgoing pipes.
type Dialer interface {
	Dial(ctx context.Context) (Pipe, error)
}

// Listener accepts incoming pipes.
type Listener interface {
	Accept() (Pipe, error)
	Close() error
	Addr() net.Addr
}

type wrapped struct {
	net.Conn
	protocol string
}

func (w *wrapped) Protocol() string     { return w.protocol }
func (w *wrapped) SharedSecret() []byte { return nil }

// Wrap turns a plain net.Conn into a Pipe with the given protocol name.
func Wrap(c net.Conn, protocol string) Pipe {
	return &wrapped{Conn: c, protocol: protocol}
}
