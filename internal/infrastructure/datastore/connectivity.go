package datastore

import (
	"sync/atomic"
	"time"
)

// Connectivity is a best-effort signal of recent transient failures. It is
// never a correctness gate: readers may observe a stale value.
type Connectivity struct {
	offline   atomic.Bool
	changedAt atomic.Int64
}

func (c *Connectivity) Offline() bool { return c.offline.Load() }

// ChangedAt is the last time the flag flipped, zero if it never did.
func (c *Connectivity) ChangedAt() time.Time {
	ns := c.changedAt.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

func (c *Connectivity) set(offline bool) {
	if c.offline.Swap(offline) != offline {
		c.changedAt.Store(time.Now().UnixNano())
	}
}
