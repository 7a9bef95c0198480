package sosistab3

import (
	"crypto/rand"
	"net"
	"sync"
	"time"

	"geph5/internal/flog"
	"geph5/internal/pipe"
)

// handshakeTimeout bounds how long an accepted lower pipe may take to
// complete the handshake before it is dropped.
const handshakeTimeout = 30 * time.Second

// Listener accepts lower pipes and upgrades each to a sosistab3 session.
// Handshakes run concurrently, one goroutine per accepted pipe, so a peer
// that connects and goes silent cannot stall anyone else's handshake. All
// sessions share one dedup store, so a captured handshake cannot be
// replayed against any connection on this listener.
type Listener struct {
	inner  pipe.Listener
	cookie Cookie
	dedup  *Dedup

	ready     chan pipe.Pipe
	done      chan struct{}
	closeOnce sync.Once

	acceptErr error
	failed    chan struct{}
}

func Listen(inner pipe.Listener, cookie Cookie) *Listener {
	l := &Listener{
		inner:  inner,
		cookie: cookie,
		dedup:  NewDedup(),
		ready:  make(chan pipe.Pipe),
		done:   make(chan struct{}),
		failed: make(chan struct{}),
	}
	go l.acceptLoop()
	return l
}

func (l *Listener) acceptLoop() {
	for {
		lower, err := l.inner.Accept()
		if err != nil {
			l.acceptErr = err
			close(l.failed)
			return
		}
		go l.upgrade(lower)
	}
}

// upgrade runs the server handshake on one lower pipe. Failed pipes are
// closed silently; an attacker probing with a bad cookie sees the same
// thing a broken network shows.
func (l *Listener) upgrade(lower pipe.Pipe) {
	lower.SetDeadline(time.Now().Add(handshakeTimeout))
	state, err := ServerHandshake(lower, l.cookie, l.dedup, rand.Reader)
	if err != nil {
		flog.Debugf("handshake from %s failed: %v", lower.RemoteAddr(), err)
		lower.Close()
		return
	}
	lower.SetDeadline(time.Time{})

	select {
	case l.ready <- NewPipe(lower, state):
	case <-l.done:
		lower.Close()
	}
}

// Accept returns the next successfully handshaked session, in handshake
// completion order rather than connection order.
func (l *Listener) Accept() (pipe.Pipe, error) {
	select {
	case p := <-l.ready:
		return p, nil
	case <-l.failed:
		return nil, l.acceptErr
	case <-l.done:
		return nil, net.ErrClosed
	}
}

func (l *Listener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.done)
		err = l.inner.Close()
	})
	return err
}

func (l *Listener) Addr() net.Addr { return l.inner.Addr() }
