package async

import "context"

// Mutex is an await-aware mutual-exclusion lock guarding a value of type
// T, built on Semaphore(1) exactly as common/src/util/mutex.rs's
// Mutex<T>{sema, data} is.
type Mutex[T any] struct {
	sema *Semaphore
	data T
}

// NewMutex returns a Mutex wrapping the given initial value.
func NewMutex[T any](v T) *Mutex[T] {
	return &Mutex[T]{sema: NewSemaphore(1), data: v}
}

// MutexGuard grants exclusive access to a Mutex's data until Unlock is
// called.
type MutexGuard[T any] struct {
	m *Mutex[T]
}

// Lock blocks until the mutex is acquired.
func (m *Mutex[T]) Lock(ctx context.Context) (MutexGuard[T], error) {
	if err := m.sema.Acquire(ctx, 1); err != nil {
		return MutexGuard[T]{}, err
	}
	return MutexGuard[T]{m: m}, nil
}

// TryLock attempts to acquire the mutex without blocking.
func (m *Mutex[T]) TryLock() (MutexGuard[T], bool) {
	s := m.sema
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current < 1 {
		return MutexGuard[T]{}, false
	}
	s.current--
	return MutexGuard[T]{m: m}, true
}

// Get returns the guarded value.
func (g MutexGuard[T]) Get() T { return g.m.data }

// Set replaces the guarded value.
func (g MutexGuard[T]) Set(v T) { g.m.data = v }

// Unlock releases the mutex. The guard must not be used afterward.
func (g MutexGuard[T]) Unlock() { g.m.sema.Release(1) }

// With runs f with exclusive access to the mutex's data, releasing the
// lock afterward regardless of panics, mirroring Mutex::with.
func (m *Mutex[T]) With(ctx context.Context, f func(v T) T) error {
	g, err := m.Lock(ctx)
	if err != nil {
		return err
	}
	defer g.Unlock()
	g.Set(f(g.Get()))
	return nil
}
