// Package kcpipe carries pipes over KCP, a reliable stream protocol on UDP.
// The payload is already uniformly random, so the KCP layer runs without its
// own encryption.
package kcpipe

import (
	"context"
	"net"

	kcp "github.com/xtaci/kcp-go/v5"

	"geph5/internal/conf"
	"geph5/internal/pipe"
)

const protocol = "kcp"

type Dialer struct {
	Addr string
	Conf conf.KCP
}

func (d *Dialer) Dial(ctx context.Context) (pipe.Pipe, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// KCP dials are local-state only; the first round trip happens on the
	// first write, under the handshake deadline set by the caller.
	sess, err := kcp.DialWithOptions(d.Addr, nil, d.Conf.DataShards, d.Conf.ParityShards)
	if err != nil {
		return nil, err
	}
	tune(sess, d.Conf)
	return pipe.Wrap(sess, protocol), nil
}

type Listener struct {
	inner *kcp.Listener
	conf  conf.KCP
}

func Listen(addr string, kconf conf.KCP) (*Listener, error) {
	inner, err := kcp.ListenWithOptions(addr, nil, kconf.DataShards, kconf.ParityShards)
	if err != nil {
		return nil, err
	}
	return &Listener{inner: inner, conf: kconf}, nil
}

func (l *Listener) Accept() (pipe.Pipe, error) {
	sess, err := l.inner.AcceptKCP()
	if err != nil {
		return nil, err
	}
	tune(sess, l.conf)
	return pipe.Wrap(sess, protocol), nil
}

func (l *Listener) Close() error   { return l.inner.Close() }
func (l *Listener) Addr() net.Addr { return l.inner.Addr() }

// tune applies the low-latency profile. KCP's defaults favor throughput on
// stable links; obfuscated tunnels tend to sit on lossy paths.
func tune(sess *kcp.UDPSession, kconf conf.KCP) {
	sess.SetStreamMode(true)
	sess.SetWriteDelay(false)
	sess.SetNoDelay(1, 10, 2, 1)
	sess.SetWindowSize(kconf.SndWnd, kconf.RcvWnd)
	sess.SetMtu(kconf.MTU)
}
