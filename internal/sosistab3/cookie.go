// Package sosistab3 implements an obfuscated transport that wraps any lower
// pipe into an authenticated, encrypted channel whose wire traffic is
// indistinguishable from random noise. All secrets descend from a shared
// cookie string plus an ephemeral per-session handshake.
package sosistab3

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// ObfsParams toggles the traffic-shape obfuscation knobs.
type ObfsParams struct {
	// ObfsLengths pads frame lengths to size classes so payload sizes
	// cannot be recovered from wire lengths.
	ObfsLengths bool `json:"obfs_lengths"`
	// ObfsTiming adds random delay before writes.
	ObfsTiming bool `json:"obfs_timing"`
}

// Cookie is the pre-shared secret both peers derive their keys from.
type Cookie struct {
	key    [32]byte
	params ObfsParams
}

// NewCookie derives a cookie from a string. The part before an optional
// "---" delimiter is the secret; the part after it is a JSON ObfsParams
// object. Malformed params fall back to the defaults, so NewCookie never
// fails and is fully deterministic.
func NewCookie(s string) Cookie {
	secret := s
	var params ObfsParams
	if a, b, ok := strings.Cut(s, "---"); ok {
		secret = a
		if err := json.Unmarshal([]byte(b), &params); err != nil {
			params = ObfsParams{}
		}
	}
	return Cookie{
		key:    deriveKey("cookie", []byte(secret)),
		params: params,
	}
}

// RandomCookie generates a cookie with a random key and default params,
// reading randomness from rng.
func RandomCookie(rng io.Reader) (Cookie, error) {
	return RandomCookieWithParams(rng, ObfsParams{})
}

// RandomCookieWithParams generates a cookie with a random key and the
// given params.
func RandomCookieWithParams(rng io.Reader, params ObfsParams) (Cookie, error) {
	var c Cookie
	if _, err := io.ReadFull(rng, c.key[:]); err != nil {
		return Cookie{}, err
	}
	c.params = params
	return c, nil
}

// DeriveKey derives the 32-byte direction key. The server and client
// directions yield distinct keys that must never be swapped.
func (c Cookie) DeriveKey(isServer bool) [32]byte {
	label := "client"
	if isServer {
		label = "server"
	}
	return deriveKey(label, c.key[:])
}

// Params returns the obfuscation parameters carried by the cookie.
func (c Cookie) Params() ObfsParams { return c.params }

// String renders the cookie as "<hex key>---<json params>". Handing that
// string to both peers reconstructs an equivalent cookie via NewCookie.
func (c Cookie) String() string {
	js, _ := json.Marshal(c.params)
	return hex.EncodeToString(c.key[:]) + "---" + string(js)
}

// deriveKey is the domain-separated KDF used throughout the protocol:
// HKDF-SHA256 with the label as info.
func deriveKey(label string, secret []byte) [32]byte {
	var out [32]byte
	r := hkdf.New(sha256.New, secret, nil, []byte(label))
	if _, err := io.ReadFull(r, out[:]); err != nil {
		panic("hkdf: " + err.Error())
	}
	return out
}
