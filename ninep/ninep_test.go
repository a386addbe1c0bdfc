package ninep

import (
	"context"
	"net"
	"testing"
	"time"
)

// newLoopback wires a Client directly to an in-process Server over a
// net.Pipe, standing in for the real vsock/virtio transport the client
// would otherwise ride; the round trip it drives is exactly the
// "attach, walk to a file, open, read" property the 9P layer must
// satisfy.
func newLoopback(t *testing.T, root *node) (*Client, context.Context) {
	t.Helper()
	clientConn, serverConn := net.Pipe()

	srv := NewServer(root)
	go func() {
		_ = srv.Serve(serverConn)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	c, err := NewClient(ctx, clientConn)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c, ctx
}

func TestWalkOpenReadRoundTrip(t *testing.T) {
	root := NewServerDir("/")
	AddFile(root, "greeting.txt", []byte("hello from the other side"))

	c, ctx := newLoopback(t, root)

	rootFid := c.NewFid()
	if _, err := c.Attach(ctx, rootFid, "student", ""); err != nil {
		t.Fatalf("Attach: %v", err)
	}

	fileFid := c.NewFid()
	qids, err := c.Walk(ctx, rootFid, fileFid, []string{"greeting.txt"})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(qids) != 1 {
		t.Fatalf("expected 1 qid, got %d", len(qids))
	}

	if _, err := c.Open(ctx, fileFid, 0); err != nil {
		t.Fatalf("Open: %v", err)
	}

	data, err := c.Read(ctx, fileFid, 0, 4096)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != "hello from the other side" {
		t.Fatalf("unexpected read contents: %q", data)
	}

	if err := c.Clunk(ctx, fileFid); err != nil {
		t.Fatalf("Clunk: %v", err)
	}
}

func TestWriteThenReadBack(t *testing.T) {
	root := NewServerDir("/")
	AddFile(root, "scratch.txt", nil)

	c, ctx := newLoopback(t, root)

	rootFid := c.NewFid()
	if _, err := c.Attach(ctx, rootFid, "student", ""); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	fileFid := c.NewFid()
	if _, err := c.Walk(ctx, rootFid, fileFid, []string{"scratch.txt"}); err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if _, err := c.Open(ctx, fileFid, 1); err != nil {
		t.Fatalf("Open: %v", err)
	}

	n, err := c.Write(ctx, fileFid, 0, []byte("arca"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected 4 bytes written, got %d", n)
	}

	data, err := c.Read(ctx, fileFid, 0, 4096)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != "arca" {
		t.Fatalf("unexpected read-back contents: %q", data)
	}
}

func TestWalkMissingFileErrors(t *testing.T) {
	root := NewServerDir("/")
	c, ctx := newLoopback(t, root)

	rootFid := c.NewFid()
	if _, err := c.Attach(ctx, rootFid, "student", ""); err != nil {
		t.Fatalf("Attach: %v", err)
	}

	missingFid := c.NewFid()
	if _, err := c.Walk(ctx, rootFid, missingFid, []string{"nope.txt"}); err == nil {
		t.Fatal("expected error walking to a nonexistent file")
	}
}

func TestStatReportsLength(t *testing.T) {
	root := NewServerDir("/")
	AddFile(root, "sized.txt", []byte("0123456789"))

	c, ctx := newLoopback(t, root)
	rootFid := c.NewFid()
	if _, err := c.Attach(ctx, rootFid, "student", ""); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	fileFid := c.NewFid()
	if _, err := c.Walk(ctx, rootFid, fileFid, []string{"sized.txt"}); err != nil {
		t.Fatalf("Walk: %v", err)
	}

	st, err := c.Stat(ctx, fileFid)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if st.Length != 10 {
		t.Fatalf("expected length 10, got %d", st.Length)
	}
}
