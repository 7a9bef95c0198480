package sosistab3

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// ErrHandshakeFailed is the single error reported for any cryptographic
// or protocol failure during the handshake. Wrong cookie, tampered
// messages, and replays are deliberately indistinguishable, both to the
// caller and on the wire.
var ErrHandshakeFailed = errors.New("sosistab3: handshake failed")

const (
	// clientHello: random nonce, then a sealed
	// [eph pub (32) | unix seconds (8) | session id (16)].
	clientHelloPlain = 32 + 8 + 16
	clientHelloSize  = chacha20poly1305.NonceSize + clientHelloPlain + chacha20poly1305.Overhead

	// serverHello: random nonce, then a sealed
	// [eph pub (32) | echoed session id (16)].
	serverHelloPlain = 32 + 16
	serverHelloSize  = chacha20poly1305.NonceSize + serverHelloPlain + chacha20poly1305.Overhead

	// Largest tolerated clock skew on the clientHello timestamp. Must be
	// under half the dedup horizon so replays never outlive both checks.
	maxClockSkew = 4 * time.Minute
)

// ClientHandshake establishes a session over conn from the client side,
// drawing randomness from rng. On success the returned State is ready for
// exactly one SosistabPipe; on any failure the conn must be discarded.
func ClientHandshake(conn net.Conn, cookie Cookie, rng io.Reader) (*State, error) {
	ephPriv := make([]byte, curve25519.ScalarSize)
	if _, err := io.ReadFull(rng, ephPriv); err != nil {
		return nil, err
	}
	ephPub, err := curve25519.X25519(ephPriv, curve25519.Basepoint)
	if err != nil {
		return nil, ErrHandshakeFailed
	}
	var sessionID [16]byte
	if _, err := io.ReadFull(rng, sessionID[:]); err != nil {
		return nil, err
	}

	plain := make([]byte, clientHelloPlain)
	copy(plain, ephPub)
	binary.BigEndian.PutUint64(plain[32:], uint64(time.Now().Unix()))
	copy(plain[40:], sessionID[:])

	msg, err := sealHello(cookie.DeriveKey(false), plain, rng)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(msg); err != nil {
		return nil, err
	}

	reply := make([]byte, serverHelloSize)
	if _, err := io.ReadFull(conn, reply); err != nil {
		return nil, err
	}
	replyPlain, err := openHello(cookie.DeriveKey(true), reply, serverHelloPlain)
	if err != nil {
		return nil, ErrHandshakeFailed
	}
	if subtle.ConstantTimeCompare(replyPlain[32:48], sessionID[:]) != 1 {
		return nil, ErrHandshakeFailed
	}

	shared, err := curve25519.X25519(ephPriv, replyPlain[:32])
	if err != nil {
		return nil, ErrHandshakeFailed
	}
	return NewState(sessionSecret(shared, cookie, sessionID), false, cookie.params), nil
}

// ServerHandshake establishes a session over conn from the server side.
// The dedup store rejects replayed clientHellos; on any failure nothing
// is written back, so a failed handshake is wire-indistinguishable from a
// dead connection.
func ServerHandshake(conn net.Conn, cookie Cookie, dedup *Dedup, rng io.Reader) (*State, error) {
	hello := make([]byte, clientHelloSize)
	if _, err := io.ReadFull(conn, hello); err != nil {
		return nil, err
	}
	plain, err := openHello(cookie.DeriveKey(false), hello, clientHelloPlain)
	if err != nil {
		return nil, ErrHandshakeFailed
	}

	ts := int64(binary.BigEndian.Uint64(plain[32:40]))
	skew := time.Since(time.Unix(ts, 0))
	if skew < -maxClockSkew || skew > maxClockSkew {
		return nil, ErrHandshakeFailed
	}
	var sessionID [16]byte
	copy(sessionID[:], plain[40:56])
	if dedup.Seen(sessionID) {
		return nil, ErrHandshakeFailed
	}

	ephPriv := make([]byte, curve25519.ScalarSize)
	if _, err := io.ReadFull(rng, ephPriv); err != nil {
		return nil, err
	}
	ephPub, err := curve25519.X25519(ephPriv, curve25519.Basepoint)
	if err != nil {
		return nil, ErrHandshakeFailed
	}
	shared, err := curve25519.X25519(ephPriv, plain[:32])
	if err != nil {
		return nil, ErrHandshakeFailed
	}

	reply := make([]byte, serverHelloPlain)
	copy(reply, ephPub)
	copy(reply[32:], sessionID[:])
	msg, err := sealHello(cookie.DeriveKey(true), reply, rng)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(msg); err != nil {
		return nil, err
	}

	return NewState(sessionSecret(shared, cookie, sessionID), true, cookie.params), nil
}

// sealHello produces nonce || AEAD(plain). Every byte on the wire is
// either fresh randomness or AEAD output.
func sealHello(key [32]byte, plain []byte, rng io.Reader) ([]byte, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		panic(err)
	}
	msg := make([]byte, chacha20poly1305.NonceSize, chacha20poly1305.NonceSize+len(plain)+chacha20poly1305.Overhead)
	if _, err := io.ReadFull(rng, msg); err != nil {
		return nil, err
	}
	return aead.Seal(msg, msg[:chacha20poly1305.NonceSize], plain, nil), nil
}

func openHello(key [32]byte, msg []byte, plainLen int) ([]byte, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		panic(err)
	}
	if len(msg) != chacha20poly1305.NonceSize+plainLen+chacha20poly1305.Overhead {
		return nil, ErrHandshakeFailed
	}
	return aead.Open(nil, msg[:chacha20poly1305.NonceSize], msg[chacha20poly1305.NonceSize:], nil)
}

// sessionSecret binds the ECDH result to the cookie and the session id.
// The ephemeral keys never touch the wire in the clear and are dropped
// after the handshake, so past sessions stay secret even if the cookie
// later leaks.
func sessionSecret(shared []byte, cookie Cookie, sessionID [16]byte) [32]byte {
	var out [32]byte
	info := append([]byte("session"), sessionID[:]...)
	r := hkdf.New(sha256.New, shared, cookie.key[:], info)
	if _, err := io.ReadFull(r, out[:]); err != nil {
		panic("hkdf: " + err.Error())
	}
	return out
}
