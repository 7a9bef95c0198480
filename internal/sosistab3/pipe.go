package sosistab3

import (
	"errors"
	"io"
	"net"
	"time"

	"geph5/internal/pipe"
)

// SosistabPipe is an established sosistab3 session: a pipe.Pipe that
// encrypts and obfuscates everything written to the lower pipe it owns.
// It supports one concurrent reader and one concurrent writer, like any
// duplex stream; the encrypt and decrypt halves of the State are disjoint
// so no locking is needed.
type SosistabPipe struct {
	lower pipe.Pipe
	state *State

	// read side
	readBuf    []byte // decrypted plaintext not yet handed to the caller
	rawReadBuf []byte // ciphertext that does not yet contain a full frame
	readClosed bool
	readErr    error
	scratch    []byte

	// write side
	toWrite []byte
}

// NewPipe wraps an established State over its lower pipe. Call only with
// the State produced by a successful handshake on that same pipe.
func NewPipe(lower pipe.Pipe, state *State) *SosistabPipe {
	return &SosistabPipe{
		lower:   lower,
		state:   state,
		scratch: make([]byte, 32*1024),
	}
}

func (p *SosistabPipe) Read(buf []byte) (int, error) {
	for {
		if len(p.readBuf) > 0 {
			n := copy(buf, p.readBuf)
			p.readBuf = p.readBuf[n:]
			return n, nil
		}
		if p.readErr != nil {
			return 0, p.readErr
		}
		if p.readClosed {
			return 0, io.EOF
		}

		n, err := p.lower.Read(p.scratch)
		if n > 0 {
			p.rawReadBuf = append(p.rawReadBuf, p.scratch[:n]...)
			out, consumed, derr := p.state.Decrypt(p.readBuf, p.rawReadBuf)
			p.readBuf = out
			p.rawReadBuf = append(p.rawReadBuf[:0], p.rawReadBuf[consumed:]...)
			if derr != nil {
				// Authentication failure kills the session for good.
				p.readErr = derr
				return 0, derr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				p.readClosed = true
				continue
			}
			return 0, err
		}
	}
}

func (p *SosistabPipe) Write(buf []byte) (int, error) {
	p.toWrite = p.state.Encrypt(p.toWrite[:0], buf)
	if d := p.state.WriteDelay(); d > 0 {
		time.Sleep(d)
	}
	out := p.toWrite
	for len(out) > 0 {
		n, err := p.lower.Write(out)
		out = out[n:]
		if err != nil {
			return 0, err
		}
	}
	return len(buf), nil
}

// Close tears down the lower pipe. No protocol-level goodbye exists: an
// abrupt close is exactly what an unrelated TCP connection looks like.
func (p *SosistabPipe) Close() error { return p.lower.Close() }

func (p *SosistabPipe) Protocol() string { return "sosistab3" }

// SharedSecret exposes the negotiated session secret for channel binding.
func (p *SosistabPipe) SharedSecret() []byte { return p.state.SharedSecret() }

func (p *SosistabPipe) LocalAddr() net.Addr  { return p.lower.LocalAddr() }
func (p *SosistabPipe) RemoteAddr() net.Addr { return p.lower.RemoteAddr() }

func (p *SosistabPipe) SetDeadline(t time.Time) error      { return p.lower.SetDeadline(t) }
func (p *SosistabPipe) SetReadDeadline(t time.Time) error  { return p.lower.SetReadDeadline(t) }
func (p *SosistabPipe) SetWriteDeadline(t time.Time) error { return p.lower.SetWriteDeadline(t) }
