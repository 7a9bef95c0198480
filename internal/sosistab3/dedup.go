package sosistab3

import (
	"encoding/hex"
	"time"

	"github.com/patrickmn/go-cache"
)

// dedupHorizon bounds how long handshake identifiers are remembered. It
// must exceed twice the allowed handshake clock skew, so a replay is
// always caught either here or by the timestamp check.
const dedupHorizon = 10 * time.Minute

// Dedup is a bounded recency set of handshake identifiers, the sole
// defense against replayed or duplicated handshakes. Safe for concurrent
// use by all sessions handshaking on one listener.
type Dedup struct {
	seen *cache.Cache
}

// NewDedup creates a dedup store with the default horizon.
func NewDedup() *Dedup {
	return NewDedupWithHorizon(dedupHorizon)
}

// NewDedupWithHorizon creates a dedup store that evicts identifiers older
// than the given horizon.
func NewDedupWithHorizon(horizon time.Duration) *Dedup {
	return &Dedup{seen: cache.New(horizon, horizon/4)}
}

// Seen atomically checks and inserts id, reporting whether it was already
// present. A fresh id is recorded with the current time and evicted once
// it ages past the horizon.
func (d *Dedup) Seen(id [16]byte) bool {
	return d.seen.Add(hex.EncodeToString(id[:]), struct{}{}, cache.DefaultExpiration) != nil
}
