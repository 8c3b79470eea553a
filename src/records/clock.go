package records

import (
	"sync"
	"time"
)

// Clock hands out strictly increasing timestamps in unix nanoseconds, even
// when the wall clock stalls or goes backwards.
type Clock struct {
	sync.Mutex
	now  func() time.Time
	last int64
}

// NewClock creates a Clock reading time from now, or from time.Now if now is
// nil.
func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

// Next returns a timestamp greater than every timestamp returned or observed
// before.
func (c *Clock) Next() int64 {
	c.Lock()
	defer c.Unlock()

	ts := c.now().UnixNano()
	if ts <= c.last {
		ts = c.last + 1
	}
	c.last = ts
	return ts
}

// Observe records a timestamp that was issued earlier, for instance by a
// previous run of the node, so that Next stays above it.
func (c *Clock) Observe(ts int64) {
	c.Lock()
	defer c.Unlock()

	if ts > c.last {
		c.last = ts
	}
}
