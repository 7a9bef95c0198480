package buffer

import (
	"io"
	"sync"
)

var pool = sync.Pool{
	New: func() any {
		b := make([]byte, 64*1024)
		return &b
	},
}

// Copy copies from src to dst using a pooled buffer.
func Copy(dst io.Writer, src io.Reader) error {
	bufp := pool.Get().(*[]byte)
	defer pool.Put(bufp)

	_, err := io.CopyBuffer(dst, src, *bufp)
	return err
}

// Relay copies in both directions until one side fails or hits EOF, then
// returns that side's error. Both connections should be closed by the
// caller afterwards; the surviving copy unblocks once they are.
func Relay(a, b io.ReadWriter) error {
	errChan := make(chan error, 2)
	go func() {
		errChan <- Copy(a, b)
	}()
	go func() {
		errChan <- Copy(b, a)
	}()
	return <-errChan
}
