// Package kutil holds small numeric and byte-layout helpers shared by the
// rest of the runtime. It has no dependency on any other arca package.
package kutil

import "encoding/binary"

// Int is the set of integer types the helpers below operate over.
type Int interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// Min returns the smaller of a and b.
func Min[T Int](a, b T) T {
	if a < b {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func Max[T Int](a, b T) T {
	if a > b {
		return a
	}
	return b
}

// Rounddown rounds v down to the nearest multiple of n.
func Rounddown[T Int](v, n T) T {
	return v - v%n
}

// Roundup rounds v up to the nearest multiple of n.
func Roundup[T Int](v, n T) T {
	return Rounddown(v+n-1, n)
}

// Readn reads an n-byte little-endian unsigned integer out of a at off.
// n must be 1, 2, 4, or 8.
func Readn(a []uint8, n, off int) uint64 {
	switch n {
	case 1:
		return uint64(a[off])
	case 2:
		return uint64(binary.LittleEndian.Uint16(a[off:]))
	case 4:
		return uint64(binary.LittleEndian.Uint32(a[off:]))
	case 8:
		return binary.LittleEndian.Uint64(a[off:])
	default:
		panic("kutil.Readn: bad width")
	}
}

// Writen writes val as an n-byte little-endian unsigned integer into a at
// off. n must be 1, 2, 4, or 8.
func Writen(a []uint8, n, off int, val uint64) {
	switch n {
	case 1:
		a[off] = uint8(val)
	case 2:
		binary.LittleEndian.PutUint16(a[off:], uint16(val))
	case 4:
		binary.LittleEndian.PutUint32(a[off:], uint32(val))
	case 8:
		binary.LittleEndian.PutUint64(a[off:], val)
	default:
		panic("kutil.Writen: bad width")
	}
}
