package sosistab3

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"time"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/chacha20poly1305"
)

// ErrBadFrame is returned by Decrypt when a complete-looking frame fails
// authentication or is structurally invalid. It is fatal: the session is
// unusable afterward.
var ErrBadFrame = errors.New("sosistab3: frame failed authentication")

const (
	// Largest plaintext carried by a single frame.
	maxPayload = 16384

	lenSize      = 2 // masked outer length
	innerLenSize = 2 // true payload length inside the sealed box

	minBox = innerLenSize + chacha20poly1305.Overhead
	maxBox = innerLenSize + maxPayload + chacha20poly1305.Overhead

	// Smallest size class used when padding lengths.
	minSizeClass = 64
)

// State is the per-session framing and encryption engine. It is a pure
// transform over byte buffers: no I/O, no scheduling. Each State belongs
// to exactly one SosistabPipe and must not be shared.
type State struct {
	params ObfsParams
	secret [32]byte

	seal     cipher.AEAD
	open     cipher.AEAD
	sealCtr  uint64
	openCtr  uint64
	sealMask *chacha20.Cipher
	openMask *chacha20.Cipher

	// Unmasked length of the next incoming frame, or -1 when the length
	// bytes have not been seen yet. Cached so that re-running Decrypt on a
	// still-incomplete buffer never advances the mask stream twice.
	nextLen int

	scratch []byte
}

// NewState builds the per-direction cipher schedule from the negotiated
// session secret. The client seals with the "client" keys and opens with
// the "server" keys; the server does the opposite.
func NewState(secret [32]byte, isServer bool, params ObfsParams) *State {
	c2sKey := deriveKey("client", secret[:])
	s2cKey := deriveKey("server", secret[:])
	c2sMask := deriveKey("client-mask", secret[:])
	s2cMask := deriveKey("server-mask", secret[:])

	sealKey, openKey := c2sKey, s2cKey
	sealMaskKey, openMaskKey := c2sMask, s2cMask
	if isServer {
		sealKey, openKey = s2cKey, c2sKey
		sealMaskKey, openMaskKey = s2cMask, c2sMask
	}

	s := &State{
		params:  params,
		secret:  secret,
		nextLen: -1,
	}
	var err error
	if s.seal, err = chacha20poly1305.New(sealKey[:]); err != nil {
		panic(err)
	}
	if s.open, err = chacha20poly1305.New(openKey[:]); err != nil {
		panic(err)
	}
	// The mask keys are unique per session and direction, so a zero nonce
	// is safe for these keystreams.
	zero := make([]byte, chacha20.NonceSize)
	if s.sealMask, err = chacha20.NewUnauthenticatedCipher(sealMaskKey[:], zero); err != nil {
		panic(err)
	}
	if s.openMask, err = chacha20.NewUnauthenticatedCipher(openMaskKey[:], zero); err != nil {
		panic(err)
	}
	return s
}

// SharedSecret exposes the negotiated session secret for channel binding.
func (s *State) SharedSecret() []byte { return s.secret[:] }

// Params returns the obfuscation parameters this session runs with.
func (s *State) Params() ObfsParams { return s.params }

// Encrypt appends one or more authenticated frames encoding plaintext to
// dst and returns the extended slice. Empty plaintext still emits a frame,
// so every write produces cover traffic.
func (s *State) Encrypt(dst, plaintext []byte) []byte {
	for {
		chunk := plaintext
		if len(chunk) > maxPayload {
			chunk = plaintext[:maxPayload]
		}
		dst = s.encryptFrame(dst, chunk)
		plaintext = plaintext[len(chunk):]
		if len(plaintext) == 0 {
			return dst
		}
	}
}

func (s *State) encryptFrame(dst, chunk []byte) []byte {
	padded := len(chunk)
	if s.params.ObfsLengths {
		padded = sizeClass(len(chunk))
	}

	inner := make([]byte, innerLenSize+padded)
	binary.BigEndian.PutUint16(inner, uint16(len(chunk)))
	copy(inner[innerLenSize:], chunk)

	s.sealCtr++
	var nonce [chacha20poly1305.NonceSize]byte
	binary.BigEndian.PutUint64(nonce[4:], s.sealCtr)

	// Masked outer length, then the sealed box. One keystream advance per
	// frame on each side keeps the masks in lockstep.
	boxLen := len(inner) + chacha20poly1305.Overhead
	var lenBytes [lenSize]byte
	binary.BigEndian.PutUint16(lenBytes[:], uint16(boxLen))
	s.sealMask.XORKeyStream(lenBytes[:], lenBytes[:])

	dst = append(dst, lenBytes[:]...)
	return s.seal.Seal(dst, nonce[:], inner, nil)
}

// Decrypt scans raw for complete frames, authenticates and decrypts each
// into dst in order, and returns the extended dst plus the count of bytes
// consumed from the front of raw. A trailing partial frame consumes
// nothing and is not an error; call again once more bytes have arrived.
// ErrBadFrame is fatal and non-retryable.
func (s *State) Decrypt(dst, raw []byte) ([]byte, int, error) {
	consumed := 0
	for {
		buf := raw[consumed:]
		if s.nextLen < 0 {
			if len(buf) < lenSize {
				return dst, consumed, nil
			}
			var masked [lenSize]byte
			s.openMask.XORKeyStream(masked[:], buf[:lenSize])
			n := int(binary.BigEndian.Uint16(masked[:]))
			if n < minBox || n > maxBox {
				return dst, consumed, ErrBadFrame
			}
			s.nextLen = n
		}
		if len(buf) < lenSize+s.nextLen {
			return dst, consumed, nil
		}

		s.openCtr++
		var nonce [chacha20poly1305.NonceSize]byte
		binary.BigEndian.PutUint64(nonce[4:], s.openCtr)

		inner, err := s.open.Open(s.scratch[:0], nonce[:], buf[lenSize:lenSize+s.nextLen], nil)
		if err != nil {
			return dst, consumed, ErrBadFrame
		}
		s.scratch = inner[:0]

		trueLen := int(binary.BigEndian.Uint16(inner[:innerLenSize]))
		if trueLen > len(inner)-innerLenSize {
			return dst, consumed, ErrBadFrame
		}
		dst = append(dst, inner[innerLenSize:innerLenSize+trueLen]...)
		consumed += lenSize + s.nextLen
		s.nextLen = -1
	}
}

// WriteDelay returns how long the caller should wait before flushing a
// write. Zero unless timing obfuscation is on.
func (s *State) WriteDelay() time.Duration {
	if !s.params.ObfsTiming {
		return 0
	}
	return time.Duration(cryptoRandUint32()%5000) * time.Microsecond
}

// sizeClass rounds n up to the next length bucket so wire lengths reveal
// only the bucket, not the payload size.
func sizeClass(n int) int {
	c := minSizeClass
	for c < n && c < maxPayload {
		c *= 2
	}
	return c
}

func cryptoRandUint32() uint32 {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic("crypto/rand unavailable: " + err.Error())
	}
	return binary.BigEndian.Uint32(b[:])
}
