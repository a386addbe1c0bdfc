// Package ninep implements a 9P2000 client and a minimal matching server:
// wire framing (size[4] type[1] tag[2] ...), a tag-demultiplexing
// transport client, and the Attach/Walk/Open/Read/Write/Clunk operation
// set. Ported from original_source/ninep/src/{client.rs,client/*.rs},
// with the tag-keyed pending-response map grounded on
// hashtable/hashtable.go's bucketed table idiom and the fixed-field wire
// Stat grounded on stat/stat.go's manual byte-layout marshaling.
package ninep

import (
	"encoding/binary"
	"fmt"
	"io"

	"arca/internal/kutil"
)

// MType is a 9P message type byte.
type MType uint8

const (
	Tversion MType = 100
	Rversion MType = 101
	Tauth    MType = 102
	Rauth    MType = 103
	Tattach  MType = 104
	Rattach  MType = 105
	Rerror   MType = 107
	Twalk    MType = 110
	Rwalk    MType = 111
	Topen    MType = 112
	Ropen    MType = 113
	Tcreate  MType = 114
	Rcreate  MType = 115
	Tread    MType = 116
	Rread    MType = 117
	Twrite   MType = 118
	Rwrite   MType = 119
	Tclunk   MType = 120
	Rclunk   MType = 121
	Tremove  MType = 122
	Rremove  MType = 123
	Tstat    MType = 124
	Rstat    MType = 125
	Twstat   MType = 126
	Rwstat   MType = 127
)

// NoTag is the distinguished tag used only by the initial Tversion
// exchange, matching the 9P2000 spec's NOTAG (0xffff).
const NoTag uint16 = 0xffff

// NoFid marks "no fid" on the wire; Client.Attach sends it as the afid,
// since this client does no authentication.
const NoFid uint32 = 0xffffffff

const DefaultMsize = 8192

// Msg is a fully decoded 9P message: a type, a tag, and a body left as
// raw bytes for the caller to interpret per the message's type (keeps
// this package from needing one struct per message shape, matching how
// compact the teacher's own wire structs tend to be).
type Msg struct {
	Type MType
	Tag  uint16
	Body []byte
}

// WriteMessage frames body with the 4-byte little-endian size prefix,
// type, and tag, and writes it to w.
func WriteMessage(w io.Writer, mtype MType, tag uint16, body []byte) error {
	total := 4 + 1 + 2 + len(body)
	buf := make([]byte, total)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(total))
	buf[4] = byte(mtype)
	binary.LittleEndian.PutUint16(buf[5:7], tag)
	copy(buf[7:], body)
	_, err := w.Write(buf)
	return err
}

// ReadMessage reads one framed message from r.
func ReadMessage(r io.Reader) (Msg, error) {
	var sizeBuf [4]byte
	if _, err := io.ReadFull(r, sizeBuf[:]); err != nil {
		return Msg{}, err
	}
	size := binary.LittleEndian.Uint32(sizeBuf[:])
	if size < 7 {
		return Msg{}, fmt.Errorf("ninep: message size %d too small", size)
	}
	rest := make([]byte, size-4)
	if _, err := io.ReadFull(r, rest); err != nil {
		return Msg{}, err
	}
	return Msg{
		Type: MType(rest[0]),
		Tag:  binary.LittleEndian.Uint16(rest[1:3]),
		Body: rest[3:],
	}, nil
}

// --- small body encoders/decoders, string/array per the 9P wire format ---

func putString(buf []byte, off int, s string) int {
	binary.LittleEndian.PutUint16(buf[off:], uint16(len(s)))
	copy(buf[off+2:], s)
	return off + 2 + len(s)
}

func getString(b []byte, off int) (string, int) {
	n := int(binary.LittleEndian.Uint16(b[off:]))
	return string(b[off+2 : off+2+n]), off + 2 + n
}

func stringLen(s string) int { return 2 + len(s) }

func putU32(buf []byte, off int, v uint32) int {
	kutil.Writen(buf, 4, off, uint64(v))
	return off + 4
}

func getU32(b []byte, off int) (uint32, int) {
	return uint32(kutil.Readn(b, 4, off)), off + 4
}

func putU64(buf []byte, off int, v uint64) int {
	kutil.Writen(buf, 8, off, v)
	return off + 8
}

func getU64(b []byte, off int) (uint64, int) {
	return kutil.Readn(b, 8, off), off + 8
}
