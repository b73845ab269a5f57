// Package barrier provides a countdown latch that reports which completion
// signal satisfied it.
package barrier

import (
	"sync"
)

// Barrier counts down from an initial value. Exactly one Signal call, the
// one that brings the count to zero, reports true; later calls are ignored.
type Barrier struct {
	mu        sync.Mutex
	remaining int
}

// New creates a Barrier expecting count signals. A count of zero or less
// yields a barrier that is already satisfied.
func New(count int) *Barrier {
	if count < 0 {
		count = 0
	}
	return &Barrier{remaining: count}
}

// Signal records one completion and reports whether it satisfied the
// barrier.
func (b *Barrier) Signal() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.remaining == 0 {
		return false
	}
	b.remaining--
	return b.remaining == 0
}

// Remaining returns the number of signals still expected.
func (b *Barrier) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remaining
}
