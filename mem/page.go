package mem

import "sync/atomic"

// refcount is the per-frame atomic reference count, the Go equivalent of
// Physpg_t.Refcnt. It lives in a flat array indexed by PFN so that cloning
// a page is always a single atomic increment, never a map lookup.
type refcount struct{ v atomic.Int32 }

func (r *refcount) store(n int32) { r.v.Store(n) }
func (r *refcount) up() int32     { return r.v.Add(1) }
func (r *refcount) down() int32   { return r.v.Add(-1) }
func (r *refcount) get() int32    { return r.v.Load() }

// Refcnt returns the current reference count of the frame at pfn, mirroring
// mem.Refcnt.
func (a *Allocator) Refcnt(pfn PFN) int32 {
	return a.refcnt[pfn].get()
}

// RcPage is a refcounted, shared handle onto a physical page of class C.
// Cloning bumps the underlying refcount; dropping decrements it and frees
// the frame back to the allocator when it reaches zero. It is the typed
// counterpart of Refup/Refdown, generalized with Go generics since the Go
// port has no borrow checker to enforce single ownership at compile time.
type RcPage[T any] struct {
	a     *Allocator
	class Class
	pfn   PFN
}

// NewRcPage allocates a fresh zeroed page of class c and wraps it.
func NewRcPage[T any](a *Allocator, c Class) (RcPage[T], error) {
	pfn, err := a.Alloc(c)
	if err != nil {
		return RcPage[T]{}, err
	}
	return RcPage[T]{a: a, class: c, pfn: pfn}, nil
}

// WrapPage re-wraps an already-live frame (one whose refcount was
// established by a previous NewRcPage/Clone) as an RcPage, without
// allocating or bumping the refcount. It exists for code paths — like
// abi's page-table unmap syscall — that hand a bare PFN back from a
// pgtbl.Entry and need to rebuild a typed, droppable handle onto it.
func WrapPage[T any](a *Allocator, c Class, pfn PFN) RcPage[T] {
	return RcPage[T]{a: a, class: c, pfn: pfn}
}

// PFN returns the underlying frame number.
func (p RcPage[T]) PFN() PFN { return p.pfn }

// Bytes returns the raw backing bytes of the page.
func (p RcPage[T]) Bytes() []byte { return p.a.Bytes(p.pfn, p.class) }

// View reinterprets the page's bytes as *T. T's size must not exceed the
// page's class size; callers (pgtbl, value) are responsible for picking a
// T that fits.
func (p RcPage[T]) View() *T {
	return (*T)(viewPtr(p.Bytes()))
}

// Clone returns a new handle sharing the same frame, bumping the refcount
// (Refup).
func (p RcPage[T]) Clone() RcPage[T] {
	p.a.refcnt[p.pfn].up()
	return p
}

// Drop decrements the refcount (Refdown) and frees the frame if it reached
// zero. Callers must not use p after calling Drop.
func (p RcPage[T]) Drop() {
	if p.a.refcnt[p.pfn].down() == 0 {
		p.a.Free(p.class, p.pfn)
	}
}

// Refcount reports the page's current reference count.
func (p RcPage[T]) Refcount() int32 { return p.a.Refcnt(p.pfn) }

// CowPage is an RcPage that additionally knows how to materialize a
// private, writable copy of itself when shared (refcount > 1). It is the
// split the original_source Rust tree makes between refcnt.rs's bare
// RcPage and the copy-on-write path layered on top of it in vm/as.go's
// Sys_pgfault (claim-without-copy when refcount==1, copy-and-replace
// otherwise).
type CowPage[T any] struct {
	RcPage[T]
}

// MakeUnique returns a page with refcount exactly 1 holding the same
// contents as p. If p is already uniquely owned it is reused in place
// (Sys_pgfault's "claim" fast path); otherwise a fresh page is allocated,
// the bytes are copied, and p is dropped (the "copy" slow path).
func (p CowPage[T]) MakeUnique() (CowPage[T], error) {
	if p.Refcount() == 1 {
		return p, nil
	}
	fresh, err := NewRcPage[T](p.a, p.class)
	if err != nil {
		return CowPage[T]{}, err
	}
	copy(fresh.Bytes(), p.Bytes())
	p.Drop()
	return CowPage[T]{fresh}, nil
}
