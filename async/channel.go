package async

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Channel operations performed after the channel
// has been closed, mirroring the original's closed-channel error variant.
var ErrClosed = errors.New("async: channel closed")

// Channel is an unbounded multi-producer, single-consumer queue, ported
// from common/src/util/channel.rs's unbounded(). Send never blocks;
// Recv blocks until a value is available, the channel closes, or ctx is
// canceled — the Go stand-in for ReceiveFuture registering a waker.
type Channel[T any] struct {
	mu      sync.Mutex
	queue   []T
	closed  bool
	waiters []chan struct{}
}

// NewChannel returns a fresh, open, empty channel.
func NewChannel[T any]() *Channel[T] {
	return &Channel[T]{}
}

// Send enqueues v. It returns ErrClosed if the channel has been closed.
func (c *Channel[T]) Send(v T) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.queue = append(c.queue, v)
	waiters := c.waiters
	c.waiters = nil
	c.mu.Unlock()

	for _, w := range waiters {
		close(w)
	}
	return nil
}

// TryRecv pops a queued value without blocking.
func (c *Channel[T]) TryRecv() (v T, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return v, false
	}
	v, c.queue = c.queue[0], c.queue[1:]
	return v, true
}

// Recv blocks until a value is available, the channel is closed (in which
// case it returns ErrClosed once drained), or ctx is canceled.
func (c *Channel[T]) Recv(ctx context.Context) (T, error) {
	for {
		c.mu.Lock()
		if len(c.queue) > 0 {
			v := c.queue[0]
			c.queue = c.queue[1:]
			c.mu.Unlock()
			return v, nil
		}
		if c.closed {
			c.mu.Unlock()
			var zero T
			return zero, ErrClosed
		}
		wake := make(chan struct{})
		c.waiters = append(c.waiters, wake)
		c.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// Close marks the channel closed, waking any blocked receivers so they
// observe ErrClosed once the queue drains.
func (c *Channel[T]) Close() {
	c.mu.Lock()
	c.closed = true
	waiters := c.waiters
	c.waiters = nil
	c.mu.Unlock()
	for _, w := range waiters {
		close(w)
	}
}
