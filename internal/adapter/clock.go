package adapter

import (
	"sync/atomic"
	"time"
)

// Clock provides the logical-clock value used for status timestamps and
// license expiry comparison. The host ledger guarantees the value is
// monotonically increasing across calls.
type Clock interface {
	Now() uint64
}

// WallClock implements Clock using wall time in unix seconds
type WallClock struct{}

// NewWallClock creates a clock backed by the system time
func NewWallClock() Clock {
	return &WallClock{}
}

func (c *WallClock) Now() uint64 {
	return uint64(time.Now().Unix()) //nolint:gosec,G115
}

// LogicalClock implements Clock as a strictly increasing counter.
// Used in tests and embedded runs where deterministic time is required.
type LogicalClock struct {
	now atomic.Uint64
}

// NewLogicalClock creates a logical clock starting at the given value
func NewLogicalClock(start uint64) *LogicalClock {
	c := &LogicalClock{}
	c.now.Store(start)
	return c
}

func (c *LogicalClock) Now() uint64 {
	return c.now.Add(1)
}

// Set moves the clock to an absolute value. Later Now calls return values
// above it.
func (c *LogicalClock) Set(v uint64) {
	c.now.Store(v)
}
