package mem

import "unsafe"

// viewPtr returns a pointer to the start of b's backing array. Centralizing
// the one unsafe cast RcPage.View needs here keeps "unsafe" confined to a
// single small file, in the spirit of util.go's Readn/Writen doing the same
// for its pointer casts.
func viewPtr(b []byte) unsafe.Pointer {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Pointer(&b[0])
}
