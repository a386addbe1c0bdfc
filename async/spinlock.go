// Package async implements Arca's concurrency primitives: SpinLock,
// Mutex, Semaphore, RwLock, Channel, OneShot, Router, and a thin Task
// wrapper. The originals (original_source/common/src/util/*.rs) are each
// hand-rolled Futures that register a Waker and get polled by a
// single-threaded executor; Go already has a scheduler that multiplexes
// goroutines across (or within) a core, so here a "task" is simply a
// goroutine and a suspension point is simply a channel operation or a
// spin loop — the primitives below are the direct Go rewrite of the same
// algorithms, not a reimplementation of the Rust polling machinery.
package async

import (
	"runtime"
	"sync/atomic"
)

// SpinLock is a pure busy-wait mutual-exclusion lock, ported from
// common/src/util/spinlock.rs. It must never be held across a blocking
// call (channel receive, Mutex.Lock, etc.) — exactly the constraint the
// original documents, since a spinning waiter starves the very goroutine
// that would release the lock on a single core.
type SpinLock struct {
	locked atomic.Bool
}

// TryLock attempts to acquire the lock without blocking.
func (s *SpinLock) TryLock() bool {
	return s.locked.CompareAndSwap(false, true)
}

// Lock spins until the lock is acquired.
func (s *SpinLock) Lock() {
	for !s.TryLock() {
		runtime.Gosched()
	}
}

// Unlock releases the lock.
func (s *SpinLock) Unlock() {
	s.locked.Store(false)
}
