package sosistab3

import (
	"context"
	"net"
	"testing"
	"time"

	"geph5/internal/pipe"
)

// A peer that connects and then never speaks must not hold up anyone
// else's handshake.
func TestAcceptUnblockedBySilentPeer(t *testing.T) {
	cookie := NewCookie("silent peer cookie")

	tcpLn, err := pipe.ListenTCP("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ln := Listen(tcpLn, cookie)
	defer ln.Close()

	silent, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer silent.Close()

	accepted := make(chan pipe.Pipe, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	d := &Dialer{
		Cookie: cookie,
		Inner:  &pipe.TCPDialer{Addr: ln.Addr().String()},
	}
	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	conn, err := d.Dial(ctx)
	if err != nil {
		t.Fatalf("dial behind a silent peer: %v", err)
	}
	defer conn.Close()

	select {
	case srv := <-accepted:
		srv.Close()
	case <-time.After(5 * time.Second):
		t.Fatal("accept still stalled behind the silent peer")
	}
}

// A server that accepts and then never answers must not hang Dial past
// its context deadline.
func TestDialDeadlineOnSilentServer(t *testing.T) {
	tcpLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer tcpLn.Close()
	parked := make(chan struct{})
	defer close(parked)
	go func() {
		conn, err := tcpLn.Accept()
		if err != nil {
			return
		}
		// Hold the conn open and say nothing.
		<-parked
		conn.Close()
	}()

	d := &Dialer{
		Cookie: NewCookie("silent server cookie"),
		Inner:  &pipe.TCPDialer{Addr: tcpLn.Addr().String()},
	}
	ctx, cancel := context.WithTimeout(t.Context(), 500*time.Millisecond)
	defer cancel()

	start := time.Now()
	if _, err := d.Dial(ctx); err == nil {
		t.Fatal("dial succeeded against a mute server")
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("dial took %v to fail, deadline was 500ms", elapsed)
	}
}

func TestListenerCloseUnblocksAccept(t *testing.T) {
	tcpLn, err := pipe.ListenTCP("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ln := Listen(tcpLn, NewCookie("close cookie"))

	acceptErr := make(chan error, 1)
	go func() {
		_, err := ln.Accept()
		acceptErr <- err
	}()

	ln.Close()
	select {
	case err := <-acceptErr:
		if err == nil {
			t.Fatal("accept returned a pipe from a closed listener")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("accept did not return after close")
	}
}
