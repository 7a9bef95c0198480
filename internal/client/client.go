package client

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"geph5/internal/carrier"
	"geph5/internal/conf"
	"geph5/internal/flog"
	"geph5/internal/pipe"
	"geph5/internal/pkg/buffer"
)

const dialTimeout = 30 * time.Second

type Client struct {
	cfg    *conf.Conf
	dialer pipe.Dialer
	wg     sync.WaitGroup
}

func New(cfg *conf.Conf) (*Client, error) {
	dialer, err := carrier.NewDialer(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{cfg: cfg, dialer: dialer}, nil
}

func (c *Client) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		flog.Infof("Shutdown signal received, initiating graceful shutdown...")
		cancel()
	}()

	ln, err := net.Listen("tcp", c.cfg.Listen)
	if err != nil {
		return fmt.Errorf("could not listen on %s: %w", c.cfg.Listen, err)
	}
	defer ln.Close()
	flog.Infof("Client started - forwarding %s to %s over %s", c.cfg.Listen, c.cfg.Server, c.cfg.Transport.Type)

	c.wg.Go(func() {
		c.listen(ctx, ln)
	})

	c.wg.Wait()
	flog.Infof("Client shutdown completed")
	return nil
}

func (c *Client) listen(ctx context.Context, ln net.Listener) {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			flog.Errorf("failed to accept local connection: %v", err)
			continue
		}

		c.wg.Go(func() {
			defer conn.Close()
			c.handleConn(ctx, conn)
		})
	}
}

// handleConn opens one tunnel per local connection. There is no stream
// multiplexing; carriers are cheap enough and independent tunnels avoid
// head-of-line blocking between local clients.
func (c *Client) handleConn(ctx context.Context, conn net.Conn) {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	remote, err := c.dialer.Dial(dialCtx)
	cancel()
	if err != nil {
		flog.Errorf("failed to reach server %s: %v", c.cfg.Server, err)
		return
	}
	defer remote.Close()
	flog.Debugf("opened %s tunnel for %s", remote.Protocol(), conn.RemoteAddr())

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			remote.Close()
		case <-done:
		}
	}()

	if err := buffer.Relay(conn, remote); err != nil {
		flog.Debugf("tunnel for %s ended: %v", conn.RemoteAddr(), err)
	}
}
