package value

import (
	"arca/mem"
	"arca/pgtbl"
)

// Page is a Value wrapping a single refcounted physical page, letting
// guest code pass raw memory through the descriptor tree like any other
// value (spec.md §3's Page variant).
type Page struct {
	rc mem.RcPage[[4096]byte]
}

// NewPage wraps an already-allocated page.
func NewPage(rc mem.RcPage[[4096]byte]) *Page { return &Page{rc: rc} }

func (*Page) Type() Type { return TypePage }

func (p *Page) Clone() Value { return &Page{rc: p.rc.Clone()} }

func (p *Page) Drop() { p.rc.Drop() }

// Bytes exposes the page's backing storage.
func (p *Page) Bytes() []byte { return p.rc.Bytes() }

// PFN returns the underlying physical frame number, for callers (abi's
// memory syscalls) that need to install or remove a mapping in a
// pgtbl.Table.
func (p *Page) PFN() mem.PFN { return p.rc.PFN() }

// Rc returns the underlying refcounted page handle.
func (p *Page) Rc() mem.RcPage[[4096]byte] { return p.rc }

// Table is a Value wrapping a page table, letting guest code manipulate
// its own (or a child's) address space as an ordinary descriptor-tree
// slot (spec.md §3's Table variant; not to be confused with value.Tree,
// which is the mutable-slots aggregate).
type Table struct {
	t *pgtbl.Table
}

// NewTable wraps an already-built page table.
func NewTable(t *pgtbl.Table) *Table { return &Table{t: t} }

func (*Table) Type() Type { return TypeTable }

func (t *Table) Clone() Value {
	// Page tables are not deep-cloned on Value.Clone: spec.md's COW model
	// shares physical pages through the allocator's refcounts, not
	// through table duplication, so cloning the Value just shares the
	// same *pgtbl.Table pointer (pgtbl has no table-copy operation).
	return &Table{t: t.t}
}

func (t *Table) Drop() {}

// Inner returns the wrapped page table.
func (t *Table) Inner() *pgtbl.Table { return t.t }
