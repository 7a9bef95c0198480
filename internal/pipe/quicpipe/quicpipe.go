// Package quicpipe carries pipes over QUIC. Each pipe is a dedicated QUIC
// connection with a single bidirectional stream, so closing the pipe tears
// down the whole connection.
package quicpipe

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/quic-go/quic-go"

	"geph5/internal/conf"
	"geph5/internal/pipe"
)

const protocol = "quic"

const acceptStreamTimeout = 30 * time.Second

func getQUICConfig(cfg *conf.QUIC) *quic.Config {
	return &quic.Config{
		MaxIdleTimeout:             time.Duration(cfg.MaxIdleTimeout) * time.Second,
		KeepAlivePeriod:            time.Duration(cfg.KeepAlivePeriod) * time.Second,
		InitialStreamReceiveWindow: uint64(cfg.InitialStreamReceiveWindow),
		MaxStreamReceiveWindow:     uint64(cfg.MaxStreamReceiveWindow),
		MaxIncomingStreams:         1,
	}
}

type Dialer struct {
	Addr string
	Conf conf.QUIC
}

func (d *Dialer) Dial(ctx context.Context) (pipe.Pipe, error) {
	tlsConfig, err := d.Conf.GenerateTLSConfig("client")
	if err != nil {
		return nil, fmt.Errorf("failed to generate TLS config: %w", err)
	}

	qconn, err := quic.DialAddr(ctx, d.Addr, tlsConfig, getQUICConfig(&d.Conf))
	if err != nil {
		return nil, err
	}

	stream, err := qconn.OpenStreamSync(ctx)
	if err != nil {
		qconn.CloseWithError(0, "")
		return nil, err
	}

	return pipe.Wrap(&streamConn{stream: stream, conn: qconn}, protocol), nil
}

type Listener struct {
	inner *quic.Listener
	conf  conf.QUIC
}

func Listen(addr string, qconf conf.QUIC) (*Listener, error) {
	tlsConfig, err := qconf.GenerateTLSConfig("server")
	if err != nil {
		return nil, err
	}

	inner, err := quic.ListenAddr(addr, tlsConfig, getQUICConfig(&qconf))
	if err != nil {
		return nil, err
	}

	return &Listener{inner: inner, conf: qconf}, nil
}

func (l *Listener) Accept() (pipe.Pipe, error) {
	qconn, err := l.inner.Accept(context.Background())
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), acceptStreamTimeout)
	stream, err := qconn.AcceptStream(ctx)
	cancel()
	if err != nil {
		qconn.CloseWithError(0, "")
		return nil, err
	}

	return pipe.Wrap(&streamConn{stream: stream, conn: qconn}, protocol), nil
}

func (l *Listener) Close() error   { return l.inner.Close() }
func (l *Listener) Addr() net.Addr { return l.inner.Addr() }

// streamConn presents the connection's single stream as a net.Conn.
type streamConn struct {
	stream *quic.Stream
	conn   *quic.Conn
}

func (s *streamConn) Read(p []byte) (int, error)  { return s.stream.Read(p) }
func (s *streamConn) Write(p []byte) (int, error) { return s.stream.Write(p) }

func (s *streamConn) Close() error {
	s.stream.Close()
	return s.conn.CloseWithError(0, "")
}

func (s *streamConn) LocalAddr() net.Addr  { return s.conn.LocalAddr() }
func (s *streamConn) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }

func (s *streamConn) SetDeadline(t time.Time) error      { return s.stream.SetDeadline(t) }
func (s *streamConn) SetReadDeadline(t time.Time) error  { return s.stream.SetReadDeadline(t) }
func (s *streamConn) SetWriteDeadline(t time.Time) error { return s.stream.SetWriteDeadline(t) }
