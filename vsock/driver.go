package vsock

import (
	"context"
	"fmt"
	"sync"

	"arca/async"
)

// Network routes packets between Drivers keyed by context id, standing in
// for the hypervisor-provided transport a real vsock driver rides on top
// of (original_source's vsock.rs instead talks to a single global
// OnceLock<Arc<Driver>> backed by real virtqueues to the host).
type Network struct {
	mu      sync.Mutex
	drivers map[uint64]*Driver
}

// NewNetwork returns an empty routing fabric.
func NewNetwork() *Network {
	return &Network{drivers: make(map[uint64]*Driver)}
}

func (n *Network) register(d *Driver) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.drivers[d.cid] = d
}

func (n *Network) route(h Header, payload []byte) error {
	n.mu.Lock()
	dst, ok := n.drivers[h.DstCID]
	n.mu.Unlock()
	if !ok {
		return fmt.Errorf("vsock: no driver for cid %d", h.DstCID)
	}
	dst.receive(h, payload)
	return nil
}

// Listener accepts inbound connection requests on one bound port,
// ported from listener.rs's StreamListener.
type Listener struct {
	addr     SocketAddr
	incoming *async.Channel[*Stream]
}

// Accept blocks for the next inbound connection.
func (l *Listener) Accept(ctx context.Context) (*Stream, error) {
	return l.incoming.Recv(ctx)
}

// Driver is one context id's vsock endpoint, owning its listeners and
// established streams, ported from vsock.rs's free functions collapsed
// onto a single struct (the original uses a process-global DRIVER; the Go
// port makes the driver a value so a test can run two side by side).
type Driver struct {
	cid uint64
	net *Network

	mu        sync.Mutex
	listeners map[uint32]*Listener
	streams   map[Flow]*Stream

	responses *async.Router[Flow, Header]
	nextPort  uint32
}

// NewDriver returns a Driver for cid, registered with net.
func NewDriver(net *Network, cid uint64) *Driver {
	d := &Driver{
		cid:       cid,
		net:       net,
		listeners: make(map[uint32]*Listener),
		streams:   make(map[Flow]*Stream),
		responses: async.NewRouter[Flow, Header](),
		nextPort:  1024,
	}
	net.register(d)
	return d
}

// Bind registers a listener on port, mirroring StreamListener::bind.
func (d *Driver) Bind(port uint32) (*Listener, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.listeners[port]; exists {
		return nil, fmt.Errorf("vsock: port %d already bound", port)
	}
	l := &Listener{addr: SocketAddr{CID: d.cid, Port: port}, incoming: async.NewChannel[*Stream]()}
	d.listeners[port] = l
	return l, nil
}

// allocPort returns an unused ephemeral local port, grounded on
// msi/msi.go's fixed-pool allocate/free pattern (here the pool is simply
// "every port not already in d.listeners", since vsock ports are not a
// scarce hardware resource the way MSI vectors are).
func (d *Driver) allocPort() uint32 {
	for {
		p := d.nextPort
		d.nextPort++
		if _, exists := d.listeners[p]; !exists {
			return p
		}
	}
}

func (d *Driver) send(h Header, payload []byte) error {
	return d.net.route(h, payload)
}

// Connect opens a stream to peer, mirroring vsock.rs's connect: sends a
// Request and blocks for the matching Response.
func (d *Driver) Connect(ctx context.Context, peer SocketAddr) (*Stream, error) {
	d.mu.Lock()
	local := SocketAddr{CID: d.cid, Port: d.allocPort()}
	d.mu.Unlock()

	flow := Flow{Src: local, Dst: peer}
	req := Header{
		SrcCID: local.CID, SrcPort: local.Port,
		DstCID: peer.CID, DstPort: peer.Port,
		Op: OpRequest, BufAlloc: defaultBufAlloc,
	}
	if err := d.send(req, nil); err != nil {
		return nil, err
	}

	resp, err := d.responses.Recv(ctx, flow)
	if err != nil {
		return nil, err
	}
	if resp.Op != OpResponse {
		return nil, fmt.Errorf("vsock: connect refused: op=%d", resp.Op)
	}

	s := newStream(local, peer, d.send)
	d.mu.Lock()
	d.streams[flow] = s
	d.mu.Unlock()
	return s, nil
}

// receive processes one inbound packet from the network, mirroring the
// dispatch a real virtqueue interrupt handler would perform: Request
// packets wake a listener, everything else is routed to an existing
// Stream.
func (d *Driver) receive(h Header, payload []byte) {
	flow := h.Flow()

	if h.Op == OpRequest {
		d.mu.Lock()
		l, ok := d.listeners[h.DstPort]
		d.mu.Unlock()
		if !ok {
			d.send(Header{
				SrcCID: h.DstCID, SrcPort: h.DstPort,
				DstCID: h.SrcCID, DstPort: h.SrcPort,
				Op: OpRst,
			}, nil)
			return
		}
		local := SocketAddr{CID: h.DstCID, Port: h.DstPort}
		peer := SocketAddr{CID: h.SrcCID, Port: h.SrcPort}
		s := newStream(local, peer, d.send)
		d.mu.Lock()
		d.streams[Flow{Src: local, Dst: peer}] = s
		d.mu.Unlock()
		d.send(Header{
			SrcCID: local.CID, SrcPort: local.Port,
			DstCID: peer.CID, DstPort: peer.Port,
			Op: OpResponse, BufAlloc: defaultBufAlloc,
		}, nil)
		l.incoming.Send(s)
		return
	}

	if h.Op == OpResponse || h.Op == OpRst {
		// The flow as seen by the connector is (local=dst, peer=src) of
		// this inbound packet's reverse.
		d.responses.Send(Flow{Src: flow.Dst, Dst: flow.Src}, h)
		if h.Op != OpRst {
			return
		}
	}

	d.mu.Lock()
	s, ok := d.streams[Flow{Src: flow.Dst, Dst: flow.Src}]
	d.mu.Unlock()
	if ok {
		s.deliver(h, payload)
	}
}
