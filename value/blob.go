package value

import "sync/atomic"

// Blob is a variable-length, refcounted byte buffer — unlike Atom it is
// not content-addressed, so two blobs with identical bytes remain distinct
// values (mirrors original_source/kernel/src/types/blob.rs, which backs a
// Blob with a plain owned allocation rather than the interned table
// atom.rs uses).
type Blob struct {
	data []byte
	refs *atomic.Int32
}

// NewBlob copies data into a fresh, uniquely-owned Blob.
func NewBlob(data []byte) *Blob {
	owned := make([]byte, len(data))
	copy(owned, data)
	refs := &atomic.Int32{}
	refs.Store(1)
	return &Blob{data: owned, refs: refs}
}

func (b *Blob) Type() Type { return TypeBlob }

func (b *Blob) Clone() Value {
	b.refs.Add(1)
	return b
}

func (b *Blob) Drop() {
	b.refs.Add(-1)
}

// Bytes returns the blob's contents. Callers must not mutate the result if
// the blob's refcount may be greater than one.
func (b *Blob) Bytes() []byte { return b.data }

// Len returns the blob's byte length.
func (b *Blob) Len() int { return len(b.data) }
