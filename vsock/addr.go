// Package vsock implements a VirtIO-vsock transport: wire header framing,
// a descriptor-ring virtqueue, and a Driver exposing
// listen/accept/connect/send/shutdown, ported from
// original_source/kernel/src/virtio/vsock.rs and its vsock/ submodules.
// The descriptor free-list and ring bookkeeping are grounded on
// circbuf/circbuf.go's head/tail wraparound arithmetic, generalized from
// a single byte ring to a ring of fixed-size descriptors.
//
// A Stream records the credit a peer advertises in CreditUpdate packets,
// but its writes are not throttled by that credit, and no CreditUpdate or
// CreditRequest is sent.
package vsock

import (
	"fmt"
	"strconv"
	"strings"
)

// SocketAddr identifies one vsock endpoint by context id and port,
// ported from original_source/kernel/src/virtio/vsock/addr.rs.
type SocketAddr struct {
	CID  uint64
	Port uint32
}

func (a SocketAddr) String() string {
	return fmt.Sprintf("%d:%d", a.CID, a.Port)
}

// ParseSocketAddr parses a "cid:port" string, mirroring addr.rs's FromStr.
func ParseSocketAddr(s string) (SocketAddr, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return SocketAddr{}, fmt.Errorf("vsock: malformed address %q", s)
	}
	cid, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return SocketAddr{}, fmt.Errorf("vsock: bad cid in %q: %w", s, err)
	}
	port, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return SocketAddr{}, fmt.Errorf("vsock: bad port in %q: %w", s, err)
	}
	return SocketAddr{CID: cid, Port: uint32(port)}, nil
}

// Flow is a pair of endpoints identifying one connection, ported from
// flow.rs.
type Flow struct {
	Src SocketAddr
	Dst SocketAddr
}

// Reverse swaps src/dst, giving the peer's view of the same flow.
func (f Flow) Reverse() Flow {
	return Flow{Src: f.Dst, Dst: f.Src}
}
