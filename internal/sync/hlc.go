package sync

import (
	stdsync "sync"
	"time"
)

// Timestamp is a hybrid logical clock value establishing causal order
// between operations. The upper 48 bits carry unix milliseconds, the
// lower 16 bits a logical counter that breaks ties when several
// operations are stamped within the same millisecond.
type Timestamp uint64

// NewTimestamp builds a Timestamp from a wall-clock time and counter.
func NewTimestamp(t time.Time, counter uint16) Timestamp {
	return Timestamp(t.UnixMilli())<<16 | Timestamp(counter)
}

// Time returns the wall-clock component of the timestamp.
func (t Timestamp) Time() time.Time {
	return time.UnixMilli(int64(t >> 16))
}

// Counter returns the logical counter component of the timestamp.
func (t Timestamp) Counter() uint16 {
	return uint16(t & 0xffff)
}

// Clock issues strictly monotonic Timestamps for one device. Two calls
// never return the same value, even when the wall clock stalls or steps
// backwards; in that case the counter advances instead.
type Clock struct {
	mu   stdsync.Mutex
	last Timestamp
}

// NewClock returns a Clock starting at the current wall-clock time.
func NewClock() *Clock {
	return &Clock{}
}

// Now returns the next timestamp.
func (c *Clock) Now() Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()

	phys := Timestamp(time.Now().UnixMilli()) << 16
	if phys > c.last {
		c.last = phys
	} else {
		// Wall clock hasn't advanced (or went backwards): bump the
		// counter. If the counter overflows this spills into the
		// physical bits, which still preserves monotonicity.
		c.last++
	}
	return c.last
}
