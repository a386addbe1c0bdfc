package async

import (
	"context"
	"runtime"
	"sync/atomic"
)

const rwLockWriterMask = ^uint64(0) // all bits set marks a held write lock

// RwLock is a writer-priority-free, CAS-based reader/writer lock guarding
// a value of type T, ported from common/src/util/rwlock.rs's
// RwLock<T>{count: AtomicUsize, data}. count == 0 means unlocked,
// count == max means write-locked, any other value is the reader count.
type RwLock[T any] struct {
	count atomic.Uint64
	data  T
}

// NewRwLock wraps v in a fresh, unlocked RwLock.
func NewRwLock[T any](v T) *RwLock[T] {
	return &RwLock[T]{data: v}
}

// TryWrite attempts to take the write lock without blocking.
func (l *RwLock[T]) TryWrite() (WriteGuard[T], bool) {
	if l.count.CompareAndSwap(0, rwLockWriterMask) {
		return WriteGuard[T]{l: l}, true
	}
	return WriteGuard[T]{}, false
}

// Write spins until the write lock is acquired, or ctx is canceled.
func (l *RwLock[T]) Write(ctx context.Context) (WriteGuard[T], error) {
	for {
		if g, ok := l.TryWrite(); ok {
			return g, nil
		}
		if err := ctx.Err(); err != nil {
			return WriteGuard[T]{}, err
		}
		runtime.Gosched()
	}
}

// TryRead attempts to take a read lock without blocking.
func (l *RwLock[T]) TryRead() (ReadGuard[T], bool) {
	for {
		old := l.count.Load()
		if old == rwLockWriterMask {
			return ReadGuard[T]{}, false
		}
		if l.count.CompareAndSwap(old, old+1) {
			return ReadGuard[T]{l: l}, true
		}
	}
}

// Read spins until a read lock is acquired, or ctx is canceled.
func (l *RwLock[T]) Read(ctx context.Context) (ReadGuard[T], error) {
	for {
		if g, ok := l.TryRead(); ok {
			return g, nil
		}
		if err := ctx.Err(); err != nil {
			return ReadGuard[T]{}, err
		}
		runtime.Gosched()
	}
}

// WriteGuard grants exclusive access to an RwLock's data.
type WriteGuard[T any] struct{ l *RwLock[T] }

func (g WriteGuard[T]) Get() T     { return g.l.data }
func (g WriteGuard[T]) Set(v T)    { g.l.data = v }
func (g WriteGuard[T]) Unlock()    { g.l.count.Store(0) }

// Downgrade converts a write lock directly into a read lock without an
// intervening unlocked window, mirroring WriteGuard::downgrade.
func (g WriteGuard[T]) Downgrade() ReadGuard[T] {
	g.l.count.Store(1)
	return ReadGuard[T]{l: g.l}
}

// ReadGuard grants shared access to an RwLock's data.
type ReadGuard[T any] struct{ l *RwLock[T] }

func (g ReadGuard[T]) Get() T { return g.l.data }

func (g ReadGuard[T]) Unlock() { g.l.count.Add(^uint64(0)) } // fetch_sub(1)

// Upgrade releases the read lock and reacquires a write lock, mirroring
// ReadGuard::upgrade's unlock-then-write (there is necessarily a window
// where another writer can intervene).
func (g ReadGuard[T]) Upgrade(ctx context.Context) (WriteGuard[T], error) {
	g.Unlock()
	return g.l.Write(ctx)
}
