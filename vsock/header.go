package vsock

import "arca/internal/kutil"

// HeaderSize is the on-wire size of a Header, asserted the same way the
// original const-asserts size_of::<Header>() == 44.
const HeaderSize = 44

// PacketOperation is the vsock op code carried in a Header, ported from
// message.rs's PacketOperation enum.
type PacketOperation uint16

const (
	OpRequest       PacketOperation = 1
	OpResponse      PacketOperation = 2
	OpRst           PacketOperation = 3
	OpShutdown      PacketOperation = 4
	OpReadWrite     PacketOperation = 5
	OpCreditUpdate  PacketOperation = 6
	OpCreditRequest PacketOperation = 7
)

// Shutdown flag bits, carried in Header.Flags when Op == OpShutdown.
const (
	ShutdownRx uint32 = 1 << 0
	ShutdownTx uint32 = 1 << 1
)

// Header is the 44-byte little-endian vsock packet header, ported
// field-for-field from header.rs's #[repr(C, packed)] Header.
type Header struct {
	SrcCID   uint64
	DstCID   uint64
	SrcPort  uint32
	DstPort  uint32
	Len      uint32
	PType    uint16
	Op       PacketOperation
	Flags    uint32
	BufAlloc uint32
	FwdCnt   uint32
}

// Marshal encodes h as 44 little-endian bytes, in the same field order as
// the Rust repr(C) layout.
func (h Header) Marshal() []byte {
	b := make([]byte, HeaderSize)
	kutil.Writen(b, 8, 0, h.SrcCID)
	kutil.Writen(b, 8, 8, h.DstCID)
	kutil.Writen(b, 4, 16, uint64(h.SrcPort))
	kutil.Writen(b, 4, 20, uint64(h.DstPort))
	kutil.Writen(b, 4, 24, uint64(h.Len))
	kutil.Writen(b, 2, 28, uint64(h.PType))
	kutil.Writen(b, 2, 30, uint64(h.Op))
	kutil.Writen(b, 4, 32, uint64(h.Flags))
	kutil.Writen(b, 4, 36, uint64(h.BufAlloc))
	kutil.Writen(b, 4, 40, uint64(h.FwdCnt))
	return b
}

// UnmarshalHeader decodes a 44-byte wire header.
func UnmarshalHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, errShortHeader
	}
	return Header{
		SrcCID:   kutil.Readn(b, 8, 0),
		DstCID:   kutil.Readn(b, 8, 8),
		SrcPort:  uint32(kutil.Readn(b, 4, 16)),
		DstPort:  uint32(kutil.Readn(b, 4, 20)),
		Len:      uint32(kutil.Readn(b, 4, 24)),
		PType:    uint16(kutil.Readn(b, 2, 28)),
		Op:       PacketOperation(kutil.Readn(b, 2, 30)),
		Flags:    uint32(kutil.Readn(b, 4, 32)),
		BufAlloc: uint32(kutil.Readn(b, 4, 36)),
		FwdCnt:   uint32(kutil.Readn(b, 4, 40)),
	}, nil
}

var errShortHeader = headerError("vsock: header shorter than 44 bytes")

type headerError string

func (e headerError) Error() string { return string(e) }

// Flow extracts the (src, dst) pair this header describes.
func (h Header) Flow() Flow {
	return Flow{
		Src: SocketAddr{CID: h.SrcCID, Port: h.SrcPort},
		Dst: SocketAddr{CID: h.DstCID, Port: h.DstPort},
	}
}
