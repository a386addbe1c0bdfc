package async

import (
	"context"
	"testing"
	"time"
)

func TestSpinLockMutualExclusion(t *testing.T) {
	var l SpinLock
	l.Lock()
	if l.TryLock() {
		t.Fatalf("TryLock succeeded while already held")
	}
	l.Unlock()
	if !l.TryLock() {
		t.Fatalf("TryLock failed after Unlock")
	}
}

func TestSemaphoreAcquireRelease(t *testing.T) {
	ctx := context.Background()
	s := NewSemaphore(2)
	if err := s.Acquire(ctx, 2); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		s.Acquire(ctx, 1)
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatalf("Acquire succeeded before Release")
	case <-time.After(20 * time.Millisecond):
	}

	s.Release(2)
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatalf("Acquire did not unblock after Release")
	}
}

func TestMutexExclusion(t *testing.T) {
	ctx := context.Background()
	m := NewMutex(0)
	g, err := m.Lock(ctx)
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if _, ok := m.TryLock(); ok {
		t.Fatalf("TryLock succeeded while locked")
	}
	g.Set(42)
	g.Unlock()

	g2, err := m.Lock(ctx)
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if g2.Get() != 42 {
		t.Fatalf("Get = %v, want 42", g2.Get())
	}
	g2.Unlock()
}

func TestRwLockDowngradeUpgrade(t *testing.T) {
	ctx := context.Background()
	l := NewRwLock(1)

	wg, err := l.Write(ctx)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	wg.Set(2)
	rg := wg.Downgrade()
	if rg.Get() != 2 {
		t.Fatalf("Get after downgrade = %v, want 2", rg.Get())
	}

	wg2, err := rg.Upgrade(ctx)
	if err != nil {
		t.Fatalf("Upgrade: %v", err)
	}
	wg2.Set(3)
	wg2.Unlock()

	rg2, err := l.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if rg2.Get() != 3 {
		t.Fatalf("Get = %v, want 3", rg2.Get())
	}
	rg2.Unlock()
}

func TestChannelSendRecvOrder(t *testing.T) {
	ctx := context.Background()
	c := NewChannel[int]()
	c.Send(1)
	c.Send(2)

	v, err := c.Recv(ctx)
	if err != nil || v != 1 {
		t.Fatalf("Recv = %v, %v, want 1, nil", v, err)
	}
	v, err = c.Recv(ctx)
	if err != nil || v != 2 {
		t.Fatalf("Recv = %v, %v, want 2, nil", v, err)
	}
}

func TestChannelCloseDrainsThenErrors(t *testing.T) {
	ctx := context.Background()
	c := NewChannel[int]()
	c.Send(1)
	c.Close()

	v, err := c.Recv(ctx)
	if err != nil || v != 1 {
		t.Fatalf("Recv after close with queued value = %v, %v", v, err)
	}
	if _, err := c.Recv(ctx); err != ErrClosed {
		t.Fatalf("Recv on drained closed channel = %v, want ErrClosed", err)
	}
}

func TestOneShotDoubleSendPanics(t *testing.T) {
	o := NewOneShot[int]()
	o.Send(1)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected second Send to panic")
		}
	}()
	o.Send(2)
}

func TestRouterSendRecv(t *testing.T) {
	ctx := context.Background()
	r := NewRouter[string, int]()

	go r.Send("tag-1", 99)

	v, err := r.Recv(ctx, "tag-1")
	if err != nil || v != 99 {
		t.Fatalf("Recv = %v, %v, want 99, nil", v, err)
	}
}

func TestTaskWait(t *testing.T) {
	ctx := context.Background()
	task := Spawn(func(ctx context.Context) error {
		return nil
	}, ctx)
	if err := task.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if task.State() != StateDone {
		t.Fatalf("State = %v, want StateDone", task.State())
	}
}
