package async

import (
	"context"
	"sync"
)

// Semaphore is a counting semaphore, ported from
// common/src/util/semaphore.rs's Inner{current, wakers}. Acquire blocks
// (the Go stand-in for registering a Waker and returning Pending) until
// enough units are available; Release hands units back and wakes every
// blocked acquirer to re-check, so the order in which woken acquirers
// take units is not defined.
type Semaphore struct {
	mu      sync.Mutex
	current int
	waiters []chan struct{}
}

// NewSemaphore returns a semaphore initialized with n available units.
func NewSemaphore(n int) *Semaphore {
	return &Semaphore{current: n}
}

// Acquire blocks until count units are available, then takes them. It
// returns ctx.Err() if ctx is canceled first.
func (s *Semaphore) Acquire(ctx context.Context, count int) error {
	for {
		s.mu.Lock()
		if s.current >= count {
			s.current -= count
			s.mu.Unlock()
			return nil
		}
		wake := make(chan struct{})
		s.waiters = append(s.waiters, wake)
		s.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Release returns count units to the semaphore and wakes any blocked
// acquirers so they can re-check.
func (s *Semaphore) Release(count int) {
	s.mu.Lock()
	s.current += count
	waiters := s.waiters
	s.waiters = nil
	s.mu.Unlock()

	for _, w := range waiters {
		close(w)
	}
}
