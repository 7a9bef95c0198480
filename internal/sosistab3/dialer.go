package sosistab3

import (
	"context"
	"crypto/rand"
	"io"
	"time"

	"geph5/internal/pipe"
)

// Dialer obtains a lower pipe from Inner and upgrades it to a sosistab3
// session.
type Dialer struct {
	Cookie Cookie
	Inner  pipe.Dialer

	// Rand is the randomness source for the handshake; nil means
	// crypto/rand.
	Rand io.Reader
}

func (d *Dialer) Dial(ctx context.Context) (pipe.Pipe, error) {
	lower, err := d.Inner.Dial(ctx)
	if err != nil {
		return nil, err
	}
	rng := d.Rand
	if rng == nil {
		rng = rand.Reader
	}
	// The inner dial honors ctx on its own; the handshake I/O needs the
	// deadline pushed down, or a server that accepts and goes silent
	// would hang us forever.
	if deadline, ok := ctx.Deadline(); ok {
		lower.SetDeadline(deadline)
	}
	state, err := ClientHandshake(lower, d.Cookie, rng)
	if err != nil {
		lower.Close()
		return nil, err
	}
	lower.SetDeadline(time.Time{})
	return NewPipe(lower, state), nil
}
