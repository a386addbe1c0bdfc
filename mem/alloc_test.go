package mem

import "testing"

func TestAllocZeroed(t *testing.T) {
	a := NewAllocator(4096)
	pfn, err := a.Alloc(Class4K)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	b := a.Bytes(pfn, Class4K)
	for i, v := range b {
		if v != 0 {
			t.Fatalf("byte %d not zeroed: %v", i, v)
		}
	}
}

func TestRcPageCloneDropRestoresAllocatorState(t *testing.T) {
	a := NewAllocator(64)
	before, err := a.Alloc(Class4K)
	if err != nil {
		t.Fatalf("Alloc sentinel: %v", err)
	}
	a.Free(Class4K, before)

	p, err := NewRcPage[[4096]byte](a, Class4K)
	if err != nil {
		t.Fatalf("NewRcPage: %v", err)
	}
	if got := p.Refcount(); got != 1 {
		t.Fatalf("fresh page refcount = %d, want 1", got)
	}

	q := p.Clone()
	if got := p.Refcount(); got != 2 {
		t.Fatalf("after clone refcount = %d, want 2", got)
	}

	q.Drop()
	if got := p.Refcount(); got != 1 {
		t.Fatalf("after one drop refcount = %d, want 1", got)
	}

	p.Drop()

	after, err := a.Alloc(Class4K)
	if err != nil {
		t.Fatalf("Alloc after drop: %v", err)
	}
	if after != before {
		t.Fatalf("allocator free-list state changed across clone+drop cycle: before=%v after=%v", before, after)
	}
}

func TestCowPageMakeUniqueSharesWhenRefcountOne(t *testing.T) {
	a := NewAllocator(64)
	rc, err := NewRcPage[[4096]byte](a, Class4K)
	if err != nil {
		t.Fatalf("NewRcPage: %v", err)
	}
	p := CowPage[[4096]byte]{rc}
	unique, err := p.MakeUnique()
	if err != nil {
		t.Fatalf("MakeUnique: %v", err)
	}
	if unique.PFN() != p.PFN() {
		t.Fatalf("MakeUnique copied a uniquely-owned page")
	}
}

func TestCowPageMakeUniqueCopiesWhenShared(t *testing.T) {
	a := NewAllocator(64)
	rc, err := NewRcPage[[4096]byte](a, Class4K)
	if err != nil {
		t.Fatalf("NewRcPage: %v", err)
	}
	rc.Bytes()[0] = 0xAB
	shared := rc.Clone()

	p := CowPage[[4096]byte]{shared}
	unique, err := p.MakeUnique()
	if err != nil {
		t.Fatalf("MakeUnique: %v", err)
	}
	if unique.PFN() == rc.PFN() {
		t.Fatalf("MakeUnique reused a shared page in place")
	}
	if unique.Bytes()[0] != 0xAB {
		t.Fatalf("MakeUnique lost page contents across copy")
	}
	rc.Drop()
	unique.Drop()
}

func TestAllocExhaustion(t *testing.T) {
	a := NewAllocator(1)
	if _, err := a.Alloc(Class4K); err != nil {
		t.Fatalf("first Alloc: %v", err)
	}
	if _, err := a.Alloc(Class4K); err != ErrOutOfMemory {
		t.Fatalf("Alloc on exhausted arena = %v, want ErrOutOfMemory", err)
	}
}
