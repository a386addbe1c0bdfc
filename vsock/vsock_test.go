package vsock

import (
	"context"
	"testing"
	"time"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{
		SrcCID: 2, DstCID: 3, SrcPort: 1024, DstPort: 80,
		Len: 5, PType: 1, Op: OpReadWrite, Flags: 0,
		BufAlloc: 65536, FwdCnt: 5,
	}
	b := h.Marshal()
	if len(b) != HeaderSize {
		t.Fatalf("Marshal produced %d bytes, want %d", len(b), HeaderSize)
	}
	got, err := UnmarshalHeader(b)
	if err != nil {
		t.Fatalf("UnmarshalHeader: %v", err)
	}
	if got != h {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, h)
	}
}

func TestDescTableRingWraps(t *testing.T) {
	d := NewDescTable(2)
	if !d.Push([]byte("a")) {
		t.Fatalf("first Push failed")
	}
	if !d.Push([]byte("b")) {
		t.Fatalf("second Push failed")
	}
	if d.Push([]byte("c")) {
		t.Fatalf("Push succeeded on full ring")
	}
	v, ok := d.Pop()
	if !ok || string(v) != "a" {
		t.Fatalf("Pop = %q, %v, want a, true", v, ok)
	}
	if !d.Push([]byte("c")) {
		t.Fatalf("Push after Pop should succeed")
	}
	v, _ = d.Pop()
	if string(v) != "b" {
		t.Fatalf("Pop = %q, want b", v)
	}
	v, _ = d.Pop()
	if string(v) != "c" {
		t.Fatalf("Pop = %q, want c", v)
	}
}

// TestVsockEchoInOrderDelivery exercises spec.md §8's vsock echo scenario:
// a client connects to a server, writes a message, the server echoes it
// back, and bytes arrive in order.
func TestVsockEchoInOrderDelivery(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	net := NewNetwork()
	server := NewDriver(net, 2)
	client := NewDriver(net, 3)

	listener, err := server.Bind(80)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}

	serverDone := make(chan error, 1)
	go func() {
		s, err := listener.Accept(ctx)
		if err != nil {
			serverDone <- err
			return
		}
		for i := 0; i < 2; i++ {
			msg, err := s.Read(ctx)
			if err != nil {
				serverDone <- err
				return
			}
			if err := s.Write(msg); err != nil {
				serverDone <- err
				return
			}
		}
		serverDone <- nil
	}()

	cs, err := client.Connect(ctx, SocketAddr{CID: 2, Port: 80})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	if err := cs.Write([]byte("first")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := cs.Write([]byte("second")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got1, err := cs.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	got2, err := cs.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if string(got1) != "first" || string(got2) != "second" {
		t.Fatalf("echo out of order: got %q, %q", got1, got2)
	}

	if err := <-serverDone; err != nil {
		t.Fatalf("server goroutine: %v", err)
	}
}

func TestConnectRefusedWithoutListener(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	net := NewNetwork()
	server := NewDriver(net, 2)
	client := NewDriver(net, 3)
	_ = server

	if _, err := client.Connect(ctx, SocketAddr{CID: 2, Port: 81}); err == nil {
		t.Fatalf("expected Connect to an unbound port to fail")
	}
}
