// Package counters provides strictly monotonic counters. The tracker uses
// one as its last-scanned-block watermark; the machine uses one to allocate
// transaction ids.
package counters

import "sync/atomic"

// StrictMonotonicCounter is a helper struct which implements a strict
// monotonic counter. It is implemented using atomic operations and doesn't
// allow to set a value which is lower or equal to the already stored one.
type StrictMonotonicCounter struct {
	atomicCounter uint64
}

// NewMonotonicCounter creates a new counter with the given initial value.
func NewMonotonicCounter(initialValue uint64) StrictMonotonicCounter {
	return StrictMonotonicCounter{
		atomicCounter: initialValue,
	}
}

// Set updates the value of the counter if it is strictly greater than the
// already stored one. Returns true if the value was updated.
func (c *StrictMonotonicCounter) Set(processing uint64) bool {
	for {
		processed := c.Value()
		if processing <= processed {
			return false
		}
		if atomic.CompareAndSwapUint64(&c.atomicCounter, processed, processing) {
			return true
		}
	}
}

// Value returns the value of the counter.
func (c *StrictMonotonicCounter) Value() uint64 {
	return atomic.LoadUint64(&c.atomicCounter)
}

// Increment atomically increments the counter and returns the new value.
func (c *StrictMonotonicCounter) Increment() uint64 {
	return atomic.AddUint64(&c.atomicCounter, 1)
}
