package ninep

import "encoding/binary"

// Qid is a 9P file identifier: type, version, and path, unique within a
// server's lifetime.
type Qid struct {
	Type    uint8
	Version uint32
	Path    uint64
}

func (q Qid) marshal(buf []byte, off int) int {
	buf[off] = q.Type
	binary.LittleEndian.PutUint32(buf[off+1:], q.Version)
	binary.LittleEndian.PutUint64(buf[off+5:], q.Path)
	return off + 13
}

func unmarshalQid(b []byte, off int) (Qid, int) {
	return Qid{
		Type:    b[off],
		Version: binary.LittleEndian.Uint32(b[off+1:]),
		Path:    binary.LittleEndian.Uint64(b[off+5:]),
	}, off + 13
}

// Stat is a 9P directory-entry descriptor, ported field-for-field from
// the 9P2000 stat structure; its accessor-per-field shape mirrors
// stat/stat.go's Stat_t (there backed by bit-packed uint fields behind
// Wmode/Wsize/etc., here backed by a plain struct since Go structs don't
// need the teacher's manual bitfield packing to stay cache-dense).
type Stat struct {
	Type   uint16
	Dev    uint32
	Qid    Qid
	Mode   uint32
	Atime  uint32
	Mtime  uint32
	Length uint64
	Name   string
	Uid    string
	Gid    string
	Muid   string
}

func (s Stat) wireLen() int {
	return 2 + 4 + 13 + 4 + 4 + 4 + 8 +
		stringLen(s.Name) + stringLen(s.Uid) + stringLen(s.Gid) + stringLen(s.Muid)
}

// Marshal encodes the stat body, prefixed with its own 2-byte length as
// 9P nests a stat's size ahead of its fields wherever one is embedded.
func (s Stat) Marshal() []byte {
	inner := s.wireLen()
	buf := make([]byte, 2+inner)
	binary.LittleEndian.PutUint16(buf[0:2], uint16(inner))
	off := 2
	binary.LittleEndian.PutUint16(buf[off:], s.Type)
	off += 2
	off = putU32(buf, off, s.Dev)
	off = s.Qid.marshal(buf, off)
	off = putU32(buf, off, s.Mode)
	off = putU32(buf, off, s.Atime)
	off = putU32(buf, off, s.Mtime)
	off = putU64(buf, off, s.Length)
	off = putString(buf, off, s.Name)
	off = putString(buf, off, s.Uid)
	off = putString(buf, off, s.Gid)
	off = putString(buf, off, s.Muid)
	return buf
}

// UnmarshalStat decodes a length-prefixed stat body, returning the byte
// offset just past it.
func UnmarshalStat(b []byte, off int) (Stat, int) {
	off += 2 // skip inner length prefix
	var s Stat
	s.Type = binary.LittleEndian.Uint16(b[off:])
	off += 2
	s.Dev, off = getU32(b, off)
	s.Qid, off = unmarshalQid(b, off)
	s.Mode, off = getU32(b, off)
	s.Atime, off = getU32(b, off)
	s.Mtime, off = getU32(b, off)
	s.Length, off = getU64(b, off)
	s.Name, off = getString(b, off)
	s.Uid, off = getString(b, off)
	s.Gid, off = getString(b, off)
	s.Muid, off = getString(b, off)
	return s, off
}
