package async

import (
	"context"
	"sync/atomic"
)

// State mirrors tinfo.go's Tnote_t notion of a schedulable unit's
// lifecycle, trimmed to what the Go port needs since the goroutine
// scheduler — not this struct — actually decides when a Task runs.
type State int32

const (
	StateReady State = iota
	StateSleeping
	StateDone
)

// Task tracks one spawned goroutine's lifecycle, grounded on
// tinfo/tinfo.go's Tnote_t{State, Alive, Killed}: Go gives us the
// goroutine itself for free, so Task only needs to remember whether it
// has finished and let callers wait for that.
type Task struct {
	state atomic.Int32
	done  chan struct{}
	err   error
}

// spawned counts live tasks, the Go-port equivalent of stats.go's
// compiled-out Counter_t bookkeeping — always on here since there is no
// hardware cycle counter to gate it behind.
var spawned atomic.Int64

// Spawned reports how many tasks have been started and not yet finished.
func Spawned() int64 { return spawned.Load() }

// Spawn runs fn in a new goroutine and returns a Task tracking it.
// fn's suspension points are whatever blocking calls it makes on the
// primitives in this package (Mutex.Lock, Channel.Recv, etc.); Go's
// scheduler handles the actual multiplexing that the original's executor
// did by hand.
func Spawn(fn func(ctx context.Context) error, ctx context.Context) *Task {
	t := &Task{done: make(chan struct{})}
	t.state.Store(int32(StateReady))
	spawned.Add(1)
	go func() {
		defer func() {
			spawned.Add(-1)
			t.state.Store(int32(StateDone))
			close(t.done)
		}()
		t.err = fn(ctx)
	}()
	return t
}

// State reports the task's current lifecycle state.
func (t *Task) State() State { return State(t.state.Load()) }

// Wait blocks until the task completes, returning whatever error fn
// returned (or ctx's error if ctx is canceled first).
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MarkSleeping records that the task is awaiting an external event;
// purely observational bookkeeping, mirroring Tnote_t's informational
// State field (nothing in this package blocks the goroutine on it).
func (t *Task) MarkSleeping() { t.state.Store(int32(StateSleeping)) }

// MarkReady undoes MarkSleeping.
func (t *Task) MarkReady() { t.state.Store(int32(StateReady)) }
