package sosistab3

import (
	"bytes"
	"crypto/rand"
	"errors"
	"net"
	"testing"
)

type handshakeResult struct {
	state *State
	err   error
}

func runServer(conn net.Conn, cookie Cookie, dedup *Dedup) chan handshakeResult {
	ch := make(chan handshakeResult, 1)
	go func() {
		state, err := ServerHandshake(conn, cookie, dedup, rand.Reader)
		if err != nil {
			conn.Close()
		}
		ch <- handshakeResult{state, err}
	}()
	return ch
}

func TestHandshakeSuccess(t *testing.T) {
	cookie := NewCookie("shared secret")
	cconn, sconn := net.Pipe()
	defer cconn.Close()
	defer sconn.Close()

	ch := runServer(sconn, cookie, NewDedup())
	clientState, err := ClientHandshake(cconn, cookie, rand.Reader)
	if err != nil {
		t.Fatalf("client handshake: %v", err)
	}
	res := <-ch
	if res.err != nil {
		t.Fatalf("server handshake: %v", res.err)
	}

	if !bytes.Equal(clientState.SharedSecret(), res.state.SharedSecret()) {
		t.Fatal("peers negotiated different session secrets")
	}

	// The states must actually interoperate in both directions.
	msg := testPayload(2000)
	out, _, err := res.state.Decrypt(nil, clientState.Encrypt(nil, msg))
	if err != nil || !bytes.Equal(out, msg) {
		t.Fatalf("client-to-server framing broken: %v", err)
	}
	out, _, err = clientState.Decrypt(nil, res.state.Encrypt(nil, msg))
	if err != nil || !bytes.Equal(out, msg) {
		t.Fatalf("server-to-client framing broken: %v", err)
	}
}

func TestHandshakeForwardSecrecy(t *testing.T) {
	cookie := NewCookie("shared secret")

	secretOf := func() []byte {
		cconn, sconn := net.Pipe()
		defer cconn.Close()
		defer sconn.Close()
		ch := runServer(sconn, cookie, NewDedup())
		state, err := ClientHandshake(cconn, cookie, rand.Reader)
		if err != nil {
			t.Fatalf("client handshake: %v", err)
		}
		if res := <-ch; res.err != nil {
			t.Fatalf("server handshake: %v", res.err)
		}
		return state.SharedSecret()
	}

	if bytes.Equal(secretOf(), secretOf()) {
		t.Fatal("two sessions with the same cookie share a session secret")
	}
}

func TestHandshakeCookieMismatch(t *testing.T) {
	cconn, sconn := net.Pipe()
	defer cconn.Close()
	defer sconn.Close()

	ch := runServer(sconn, NewCookie("server side"), NewDedup())
	_, err := ClientHandshake(cconn, NewCookie("client side"), rand.Reader)
	if err == nil {
		t.Fatal("client handshake succeeded across mismatched cookies")
	}
	res := <-ch
	if !errors.Is(res.err, ErrHandshakeFailed) {
		t.Fatalf("server error = %v, want ErrHandshakeFailed", res.err)
	}
}

func TestHandshakeGarbageInput(t *testing.T) {
	cconn, sconn := net.Pipe()
	defer cconn.Close()
	defer sconn.Close()

	ch := runServer(sconn, NewCookie("server side"), NewDedup())
	junk := make([]byte, clientHelloSize)
	rand.Read(junk)
	if _, err := cconn.Write(junk); err != nil {
		t.Fatal(err)
	}
	res := <-ch
	if !errors.Is(res.err, ErrHandshakeFailed) {
		t.Fatalf("server error = %v, want ErrHandshakeFailed", res.err)
	}
}

// recordingConn captures everything written through it so a handshake can
// be replayed verbatim.
type recordingConn struct {
	net.Conn
	wrote bytes.Buffer
}

func (r *recordingConn) Write(p []byte) (int, error) {
	r.wrote.Write(p)
	return r.Conn.Write(p)
}

func TestHandshakeReplayRejected(t *testing.T) {
	cookie := NewCookie("shared secret")
	dedup := NewDedup()

	cconn, sconn := net.Pipe()
	defer cconn.Close()
	defer sconn.Close()

	rec := &recordingConn{Conn: cconn}
	ch := runServer(sconn, cookie, dedup)
	if _, err := ClientHandshake(rec, cookie, rand.Reader); err != nil {
		t.Fatalf("original handshake: %v", err)
	}
	if res := <-ch; res.err != nil {
		t.Fatalf("original server handshake: %v", res.err)
	}

	// An attacker replays the captured clientHello against the same
	// listener. The dedup store must reject it.
	cconn2, sconn2 := net.Pipe()
	defer cconn2.Close()
	defer sconn2.Close()

	ch2 := runServer(sconn2, cookie, dedup)
	if _, err := cconn2.Write(rec.wrote.Bytes()); err != nil {
		t.Fatal(err)
	}
	res := <-ch2
	if !errors.Is(res.err, ErrHandshakeFailed) {
		t.Fatalf("replayed handshake error = %v, want ErrHandshakeFailed", res.err)
	}
}
