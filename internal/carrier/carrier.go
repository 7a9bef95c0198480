// Package carrier assembles the transport stack described by the config: a
// TCP, KCP or QUIC carrier, optionally wrapped in the sosistab3 obfuscation
// layer when a cookie is configured.
package carrier

import (
	"fmt"
	"strings"

	"geph5/internal/conf"
	"geph5/internal/pipe"
	"geph5/internal/pipe/kcpipe"
	"geph5/internal/pipe/quicpipe"
	"geph5/internal/sosistab3"
)

func NewDialer(cfg *conf.Conf) (pipe.Dialer, error) {
	var inner pipe.Dialer
	switch cfg.Transport.Type {
	case "tcp":
		inner = &pipe.TCPDialer{Addr: cfg.Server}
	case "kcp":
		inner = &kcpipe.Dialer{Addr: cfg.Server, Conf: cfg.Transport.KCP}
	case "quic":
		inner = &quicpipe.Dialer{Addr: cfg.Server, Conf: cfg.Transport.QUIC}
	default:
		return nil, fmt.Errorf("unknown transport type %q", cfg.Transport.Type)
	}

	if strings.TrimSpace(cfg.Cookie) == "" {
		return inner, nil
	}
	return &sosistab3.Dialer{
		Cookie: sosistab3.NewCookie(cfg.Cookie),
		Inner:  inner,
	}, nil
}

func Listen(cfg *conf.Conf) (pipe.Listener, error) {
	var inner pipe.Listener
	var err error
	switch cfg.Transport.Type {
	case "tcp":
		inner, err = pipe.ListenTCP(cfg.Listen)
	case "kcp":
		inner, err = kcpipe.Listen(cfg.Listen, cfg.Transport.KCP)
	case "quic":
		inner, err = quicpipe.Listen(cfg.Listen, cfg.Transport.QUIC)
	default:
		return nil, fmt.Errorf("unknown transport type %q", cfg.Transport.Type)
	}
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Cookie) == "" {
		return inner, nil
	}
	return sosistab3.Listen(inner, sosistab3.NewCookie(cfg.Cookie)), nil
}
