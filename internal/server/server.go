package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"geph5/internal/carrier"
	"geph5/internal/conf"
	"geph5/internal/flog"
	"geph5/internal/pipe"
	"geph5/internal/pkg/buffer"
)

type Server struct {
	cfg    *conf.Conf
	dialer Dialer
	wg     sync.WaitGroup
}

func New(cfg *conf.Conf) (*Server, error) {
	dialer, err := newOutboundDialer(cfg.Outbound)
	if err != nil {
		return nil, fmt.Errorf("outbound %s: %w", cfg.Outbound.Type, err)
	}
	return &Server{cfg: cfg, dialer: dialer}, nil
}

func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		flog.Infof("Shutdown signal received, initiating graceful shutdown...")
		cancel()
	}()

	listener, err := carrier.Listen(s.cfg)
	if err != nil {
		return fmt.Errorf("could not start %s listener: %w", s.cfg.Transport.Type, err)
	}
	defer listener.Close()
	if s.cfg.Target == "" {
		flog.Infof("Server started - echoing %s connections on %s", s.cfg.Transport.Type, s.cfg.Listen)
	} else {
		flog.Infof("Server started - relaying %s connections on %s to %s", s.cfg.Transport.Type, s.cfg.Listen, s.cfg.Target)
	}

	s.wg.Go(func() {
		s.listen(ctx, listener)
	})

	s.wg.Wait()
	flog.Infof("Server shutdown completed")
	return nil
}

func (s *Server) listen(ctx context.Context, listener pipe.Listener) {
	go func() {
		<-ctx.Done()
		listener.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			flog.Errorf("failed to accept connection: %v", err)
			continue
		}
		flog.Infof("accepted %s connection from %s", conn.Protocol(), conn.RemoteAddr())

		s.wg.Go(func() {
			defer conn.Close()
			s.handleConn(ctx, conn)
		})
	}
}

func (s *Server) handleConn(ctx context.Context, conn pipe.Pipe) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	if s.cfg.Target == "" {
		// Echo mode, mainly useful for probing a deployment end to end.
		if err := buffer.Copy(conn, conn); err != nil {
			flog.Debugf("echo connection from %s ended: %v", conn.RemoteAddr(), err)
		}
		return
	}

	target, err := s.dialer.DialContext(ctx, "tcp", s.cfg.Target)
	if err != nil {
		flog.Errorf("failed to reach target %s: %v", s.cfg.Target, err)
		return
	}
	defer target.Close()

	if err := buffer.Relay(conn, target); err != nil {
		flog.Debugf("relay for %s ended: %v", conn.RemoteAddr(), err)
	}
}
