package sosistab3

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"
	"time"
)

func testStates(params ObfsParams) (client, server *State) {
	var secret [32]byte
	for i := range secret {
		secret[i] = byte(i * 7)
	}
	return NewState(secret, false, params), NewState(secret, true, params)
}

func testPayload(n int) []byte {
	buf := make([]byte, n)
	rng := rand.New(rand.NewSource(int64(n)))
	rng.Read(buf)
	return buf
}

func TestStateRoundTrip(t *testing.T) {
	sizes := []int{0, 1, 2, 63, 64, 65, 1000, maxPayload - 1, maxPayload, maxPayload + 1, 100 * 1024}
	for _, params := range []ObfsParams{{}, {ObfsLengths: true}} {
		for _, size := range sizes {
			client, server := testStates(params)
			msg := testPayload(size)

			ct := client.Encrypt(nil, msg)
			if len(ct) == 0 {
				t.Fatalf("size %d: no ciphertext emitted", size)
			}
			out, consumed, err := server.Decrypt(nil, ct)
			if err != nil {
				t.Fatalf("size %d params %+v: decrypt: %v", size, params, err)
			}
			if consumed != len(ct) {
				t.Fatalf("size %d: consumed %d of %d ciphertext bytes", size, consumed, len(ct))
			}
			if !bytes.Equal(out, msg) {
				t.Fatalf("size %d params %+v: plaintext corrupted in round trip", size, params)
			}
		}
	}
}

// Ciphertext must decrypt identically no matter how the stream is sliced
// into chunks, simulating arbitrary network delivery boundaries.
func TestStateRoundTripChunked(t *testing.T) {
	msgs := [][]byte{
		testPayload(3),
		testPayload(4000),
		{},
		testPayload(maxPayload + 100),
		testPayload(1),
	}
	var want []byte
	for _, m := range msgs {
		want = append(want, m...)
	}

	for _, chunkSize := range []int{1, 2, 3, 7, 64, 1000, 16411} {
		client, server := testStates(ObfsParams{})
		var stream []byte
		for _, m := range msgs {
			stream = client.Encrypt(stream, m)
		}

		var got []byte
		var raw []byte
		for off := 0; off < len(stream); off += chunkSize {
			end := min(off+chunkSize, len(stream))
			raw = append(raw, stream[off:end]...)
			out, consumed, err := server.Decrypt(nil, raw)
			if err != nil {
				t.Fatalf("chunk %d: decrypt: %v", chunkSize, err)
			}
			got = append(got, out...)
			raw = raw[consumed:]
		}
		if len(raw) != 0 {
			t.Fatalf("chunk %d: %d undecrypted bytes left over", chunkSize, len(raw))
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("chunk %d: reassembled plaintext differs", chunkSize)
		}
	}
}

// A strict prefix of a frame must consume nothing and produce nothing;
// needing more data is not an error.
func TestStatePartialFrameSafety(t *testing.T) {
	client, _ := testStates(ObfsParams{})
	ct := client.Encrypt(nil, testPayload(500))

	for _, cut := range []int{1, 2, 3, lenSize + 1, len(ct) / 2, len(ct) - 1} {
		_, server := testStates(ObfsParams{})
		out, consumed, err := server.Decrypt(nil, ct[:cut])
		if err != nil {
			t.Fatalf("cut %d: unexpected error: %v", cut, err)
		}
		if consumed != 0 || len(out) != 0 {
			t.Fatalf("cut %d: consumed %d bytes and produced %d output from a partial frame", cut, consumed, len(out))
		}

		// Feeding the remainder afterward must still succeed: peeking the
		// length twice may not desync the mask stream.
		out, consumed, err = server.Decrypt(nil, ct)
		if err != nil || consumed != len(ct) {
			t.Fatalf("cut %d: completion failed: consumed=%d err=%v", cut, consumed, err)
		}
		if len(out) != 500 {
			t.Fatalf("cut %d: wrong plaintext length after completion", cut)
		}
	}
}

func TestStateTamperDetection(t *testing.T) {
	msg := []byte("attack at dawn")
	probe, _ := testStates(ObfsParams{})
	frameLen := len(probe.Encrypt(nil, msg))

	for pos := 0; pos < frameLen; pos++ {
		for bit := 0; bit < 8; bit++ {
			client, server := testStates(ObfsParams{})
			ct := client.Encrypt(nil, msg)
			ct[pos] ^= 1 << bit

			out, consumed, err := server.Decrypt(nil, ct)
			if err == nil {
				// A flip in the masked length may leave the decoder
				// waiting for bytes that never come. That is acceptable
				// only as long as no forged plaintext is produced.
				if consumed == len(ct) || len(out) != 0 {
					t.Fatalf("pos %d bit %d: tampered frame accepted", pos, bit)
				}
				continue
			}
			if !errors.Is(err, ErrBadFrame) {
				t.Fatalf("pos %d bit %d: got %v, want ErrBadFrame", pos, bit, err)
			}
		}
	}
}

func TestStateStreamIsPoisonedAfterBadFrame(t *testing.T) {
	client, server := testStates(ObfsParams{})
	ct := client.Encrypt(nil, testPayload(100))
	ct[lenSize+4] ^= 0x80

	if _, _, err := server.Decrypt(nil, ct); !errors.Is(err, ErrBadFrame) {
		t.Fatalf("want ErrBadFrame, got %v", err)
	}
}

// With length obfuscation on, payloads in the same size class are
// indistinguishable from their wire length alone.
func TestStateLengthObfuscation(t *testing.T) {
	wireLen := func(n int) int {
		client, _ := testStates(ObfsParams{ObfsLengths: true})
		return len(client.Encrypt(nil, testPayload(n)))
	}

	pairs := [][2]int{{0, 64}, {1, 50}, {65, 128}, {1000, 1024}, {5000, 8192}}
	for _, p := range pairs {
		if a, b := wireLen(p[0]), wireLen(p[1]); a != b {
			t.Errorf("payloads %d and %d produce distinguishable wire lengths %d and %d", p[0], p[1], a, b)
		}
	}

	// Without the flag the wire length tracks the payload exactly.
	client, _ := testStates(ObfsParams{})
	short := len(client.Encrypt(nil, testPayload(10)))
	long := len(client.Encrypt(nil, testPayload(20)))
	if long-short != 10 {
		t.Errorf("unpadded frames should differ by the payload delta, got %d vs %d", short, long)
	}
}

func TestStateSharedSecret(t *testing.T) {
	client, server := testStates(ObfsParams{})
	if !bytes.Equal(client.SharedSecret(), server.SharedSecret()) {
		t.Error("both ends must expose the same session secret")
	}
	if len(client.SharedSecret()) != 32 {
		t.Errorf("session secret length = %d, want 32", len(client.SharedSecret()))
	}
}

func TestSizeClass(t *testing.T) {
	tests := []struct{ n, want int }{
		{0, 64}, {1, 64}, {64, 64}, {65, 128}, {128, 128}, {129, 256},
		{8193, 16384}, {maxPayload, maxPayload},
	}
	for _, tt := range tests {
		if got := sizeClass(tt.n); got != tt.want {
			t.Errorf("sizeClass(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}

func TestStateWriteDelay(t *testing.T) {
	client, _ := testStates(ObfsParams{})
	if d := client.WriteDelay(); d != 0 {
		t.Errorf("delay without obfs_timing = %v, want 0", d)
	}
	jittery, _ := testStates(ObfsParams{ObfsTiming: true})
	for range 32 {
		if d := jittery.WriteDelay(); d < 0 || d >= 5*time.Millisecond {
			t.Errorf("jitter %v out of range", d)
		}
	}
}
