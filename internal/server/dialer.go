package server

import (
	"context"
	"net"
	"time"

	"github.com/txthinking/socks5"

	"geph5/internal/conf"
)

const outboundTimeout = 10 * time.Second

// Dialer reaches the target address on behalf of a tunneled connection.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// newOutboundDialer builds the dialer described by the outbound config:
// a plain net.Dialer, or a SOCKS5 client for type "socks5".
func newOutboundDialer(o conf.Outbound) (Dialer, error) {
	if o.Type != "socks5" {
		return &net.Dialer{Timeout: outboundTimeout}, nil
	}
	client, err := socks5.NewClient(o.Addr, o.Username, o.Password, 10, 10)
	if err != nil {
		return nil, err
	}
	return &socks5Dialer{client: client}, nil
}

type socks5Dialer struct {
	client *socks5.Client
}

// The socks5 client cannot take a context, so the dial runs in its own
// goroutine; whichever of the result and the context loses the race also
// takes responsibility for closing the conn.
func (d *socks5Dialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	type dialResult struct {
		conn net.Conn
		err  error
	}
	results := make(chan dialResult)
	go func() {
		conn, err := d.client.Dial(network, address)
		select {
		case results <- dialResult{conn, err}:
		case <-ctx.Done():
			if conn != nil {
				conn.Close()
			}
		}
	}()

	select {
	case res := <-results:
		return res.conn, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
