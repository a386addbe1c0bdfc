package value

import "testing"

func TestTreePutTakeRoundTrip(t *testing.T) {
	tr := NewTree(4)
	old, err := tr.Put(1, Word(42))
	if err != ErrNone {
		t.Fatalf("Put: %v", err)
	}
	if _, ok := old.(Null); !ok {
		t.Fatalf("expected previous slot to be Null, got %T", old)
	}

	got, err := tr.Take(1)
	if err != ErrNone {
		t.Fatalf("Take: %v", err)
	}
	if w, ok := got.(Word); !ok || w != 42 {
		t.Fatalf("Take returned %#v, want Word(42)", got)
	}

	after, err := tr.Get(1)
	if err != ErrNone {
		t.Fatalf("Get: %v", err)
	}
	if _, ok := after.(Null); !ok {
		t.Fatalf("expected slot to be Null after Take, got %T", after)
	}
}

func TestTreeOutOfRange(t *testing.T) {
	tr := NewTree(2)
	if _, err := tr.Get(5); err != ErrBadIndex {
		t.Fatalf("Get out of range = %v, want ErrBadIndex", err)
	}
}

func TestTupleIsWriteOnce(t *testing.T) {
	tup := NewTuple(Word(1), Word(2), Null{})
	if tup.Len() != 3 {
		t.Fatalf("Len = %d, want 3", tup.Len())
	}
	v, err := tup.Get(0)
	if err != ErrNone {
		t.Fatalf("Get: %v", err)
	}
	if w, ok := v.(Word); !ok || w != 1 {
		t.Fatalf("Get(0) = %#v, want Word(1)", v)
	}
}

func TestAtomInterningSharesIdentity(t *testing.T) {
	a := InternAtom([]byte("hello"))
	b := InternAtom([]byte("hello"))
	if a != b {
		t.Fatalf("InternAtom returned distinct atoms for identical bytes")
	}
	a.Drop()
	b.Drop()
}

func TestAtomDistinctContentDistinctIdentity(t *testing.T) {
	a := InternAtom([]byte("hello"))
	b := InternAtom([]byte("world"))
	if a == b {
		t.Fatalf("InternAtom collapsed distinct content into one atom")
	}
	a.Drop()
	b.Drop()
}

func TestDescriptorsInsertGetRemove(t *testing.T) {
	d := NewDescriptors[int]()
	i0 := d.Insert(10)
	i1 := d.Insert(20)
	if i0 != 0 || i1 != 1 {
		t.Fatalf("unexpected indices %d, %d", i0, i1)
	}

	v, ok := d.Remove(i0)
	if !ok || v != 10 {
		t.Fatalf("Remove(%d) = %v, %v", i0, v, ok)
	}

	// The freed slot should be reused by the next Insert.
	i2 := d.Insert(30)
	if i2 != i0 {
		t.Fatalf("Insert after Remove = %d, want reuse of %d", i2, i0)
	}
}

func TestDescriptorsShrinkwrap(t *testing.T) {
	d := NewDescriptors[int]()
	d.Insert(1)
	i1 := d.Insert(2)
	if _, ok := d.Remove(i1); !ok {
		t.Fatalf("Remove failed")
	}
	if d.Len() != 1 {
		t.Fatalf("Len after trailing remove = %d, want 1 (shrinkwrap)", d.Len())
	}
}
