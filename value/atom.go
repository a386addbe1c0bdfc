package value

import (
	"sync"

	"lukechampine.com/blake3"
)

// AtomHash is a content hash identifying an Atom, matching
// original_source/kernel/src/types/atom.rs's use of blake3::hash for atom
// identity.
type AtomHash [32]byte

// Atom is an immutable, content-addressed byte string. Two atoms built
// from the same bytes share identity: InternAtom returns the same *Atom
// pointer (and a bumped refcount) for equal input, so equality of atoms
// reduces to pointer equality.
type Atom struct {
	hash  AtomHash
	bytes []byte
	refs  int32
}

func (a *Atom) Type() Type { return TypeAtom }

func (a *Atom) Clone() Value {
	atomTable.bump(a.hash, 1)
	return a
}

func (a *Atom) Drop() {
	atomTable.bump(a.hash, -1)
}

// Bytes returns the atom's payload. Callers must not modify it.
func (a *Atom) Bytes() []byte { return a.bytes }

// Hash returns the atom's content hash.
func (a *Atom) Hash() AtomHash { return a.hash }

// atomBucket mirrors hashtable.go's bucket_t: a single lock guarding a
// chain, sized to keep chains short under the expected atom population.
type atomBucket struct {
	mu      sync.Mutex
	entries map[AtomHash]*Atom
}

// atomStore is a process-wide interning table for atoms, grounded on
// hashtable/hashtable.go's Hashtable_t (bucketed locking rather than one
// global mutex, so interning under concurrent load doesn't serialize on a
// single lock).
type atomStore struct {
	buckets []*atomBucket
}

const atomBucketCount = 256

var atomTable = newAtomStore()

func newAtomStore() *atomStore {
	s := &atomStore{buckets: make([]*atomBucket, atomBucketCount)}
	for i := range s.buckets {
		s.buckets[i] = &atomBucket{entries: make(map[AtomHash]*Atom)}
	}
	return s
}

func (s *atomStore) bucketFor(h AtomHash) *atomBucket {
	var idx uint32
	for _, b := range h[:4] {
		idx = idx<<8 | uint32(b)
	}
	return s.buckets[idx%atomBucketCount]
}

func (s *atomStore) bump(h AtomHash, delta int32) {
	b := s.bucketFor(h)
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.entries[h]
	if !ok {
		return
	}
	a.refs += delta
	if a.refs <= 0 {
		delete(b.entries, h)
	}
}

// InternAtom returns the canonical *Atom for the given bytes, creating and
// storing it on first use and bumping its refcount on every subsequent
// call. The returned Atom must eventually be balanced with Drop.
func InternAtom(data []byte) *Atom {
	sum := blake3.Sum256(data)
	var h AtomHash
	copy(h[:], sum[:])

	b := atomTable.bucketFor(h)
	b.mu.Lock()
	defer b.mu.Unlock()

	if a, ok := b.entries[h]; ok {
		a.refs++
		return a
	}
	owned := make([]byte, len(data))
	copy(owned, data)
	a := &Atom{hash: h, bytes: owned, refs: 1}
	b.entries[h] = a
	return a
}
