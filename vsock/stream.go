package vsock

import (
	"context"
	"fmt"
	"sync"

	"arca/async"
)

// defaultBufAlloc is the credit each endpoint advertises on connect,
// standing in for the guest-configurable receive buffer size in
// message.rs's CreditUpdate handling.
const defaultBufAlloc = 64 * 1024

// Stream is one established vsock connection, ported from
// original_source/kernel/src/virtio/vsock/stream.rs's Stream{outbound,
// local, peer, rx, peer_rx_closed, peer_tx_closed}.
type Stream struct {
	local SocketAddr
	peer  SocketAddr

	mu              sync.Mutex
	state           State
	peerRxClosed    bool
	peerTxClosed    bool
	fwdCnt          uint32
	peerBufAlloc    uint32
	peerFwdCnt      uint32

	rx   *async.Channel[[]byte]
	send func(pkt Header, payload []byte) error
}

func newStream(local, peer SocketAddr, send func(Header, []byte) error) *Stream {
	return &Stream{
		local: local,
		peer:  peer,
		state: StateEstablished,
		rx:    async.NewChannel[[]byte](),
		send:  send,
	}
}

// Local and Peer report the stream's two endpoints.
func (s *Stream) Local() SocketAddr { return s.local }
func (s *Stream) Peer() SocketAddr  { return s.peer }

// State reports the stream's current lifecycle state.
func (s *Stream) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// deliver is called by the Driver when a packet addressed to this stream
// arrives; it updates connection state and, for ReadWrite packets,
// enqueues the payload for Read.
func (s *Stream) deliver(h Header, payload []byte) {
	s.mu.Lock()
	switch h.Op {
	case OpReadWrite:
		s.mu.Unlock()
		s.rx.Send(payload)
		return
	case OpCreditUpdate:
		s.peerBufAlloc = h.BufAlloc
		s.peerFwdCnt = h.FwdCnt
	case OpShutdown:
		if h.Flags&ShutdownRx != 0 {
			s.peerTxClosed = true
		}
		if h.Flags&ShutdownTx != 0 {
			s.peerRxClosed = true
		}
		if s.peerTxClosed && s.peerRxClosed {
			s.state = StateClosed
		}
	case OpRst:
		s.state = StateClosed
		s.peerTxClosed = true
		s.peerRxClosed = true
	}
	s.mu.Unlock()
}

// Write sends payload as one or more ReadWrite packets, returning an
// error if the peer has closed its receive side (mirrors stream.rs's
// write, which errors on peer_rx_closed rather than silently dropping).
func (s *Stream) Write(payload []byte) error {
	s.mu.Lock()
	closed := s.peerRxClosed
	s.fwdCnt += uint32(len(payload))
	fwd := s.fwdCnt
	s.mu.Unlock()
	if closed {
		return fmt.Errorf("vsock: peer closed receive side")
	}
	return s.send(Header{
		SrcCID: s.local.CID, SrcPort: s.local.Port,
		DstCID: s.peer.CID, DstPort: s.peer.Port,
		Len: uint32(len(payload)), Op: OpReadWrite,
		BufAlloc: defaultBufAlloc, FwdCnt: fwd,
	}, payload)
}

// Read blocks for the next inbound payload, returning an error once both
// directions have been shut down and no data remains queued.
func (s *Stream) Read(ctx context.Context) ([]byte, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if v, ok := s.rx.TryRecv(); ok {
			return v, nil
		}
		s.mu.Lock()
		closed := s.peerTxClosed
		s.mu.Unlock()
		if closed {
			return nil, fmt.Errorf("vsock: connection closed")
		}
		v, err := s.rx.Recv(ctx)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
}

// Close marks the stream half-closed locally, sends a Shutdown with both
// flags set and closes the local receive queue, returning the send error.
// It does not wait for the peer's Shutdown or Rst; the state becomes
// StateClosed only when one of those later arrives through deliver.
func (s *Stream) Close() error {
	s.mu.Lock()
	s.state = StateHalfClosedLocal
	s.mu.Unlock()
	err := s.send(Header{
		SrcCID: s.local.CID, SrcPort: s.local.Port,
		DstCID: s.peer.CID, DstPort: s.peer.Port,
		Op: OpShutdown, Flags: ShutdownRx | ShutdownTx,
	}, nil)
	s.rx.Close()
	return err
}
