// Package pgtbl implements Arca's page table model: a three-level,
// 512-entry-per-level table of Null/ROPage/RWPage/ROTable/RWTable entries,
// and the ELF64 loader that turns a guest binary into an initial table
// plus register file. It generalizes vm/as.go's single-level Pmap_t into
// the multi-level, copy-on-write-aware structure spec.md §4.3 describes,
// and ports common/src/elfloader.rs's segment walk for image loading.
package pgtbl

import (
	"fmt"

	"arca/mem"
)

// Level identifies a table's depth: Level1G is the root, mapping 1 GiB
// regions; Level2M its children map 2 MiB regions; Level4K leaves map
// single pages. Matches DESIGN.md's pinned three-size-class policy.
type Level int

const (
	Level1G Level = iota
	Level2M
	Level4K
)

func (l Level) class() mem.Class {
	switch l {
	case Level1G:
		return mem.Class1G
	case Level2M:
		return mem.Class2M
	default:
		return mem.Class4K
	}
}

func (l Level) child() Level {
	switch l {
	case Level1G:
		return Level2M
	case Level2M:
		return Level4K
	default:
		panic("pgtbl: Level4K has no child level")
	}
}

const entriesPerTable = 512

// Perm is a bitmask of page permissions. ROTable/RWTable entries bound the
// maximum permission any descendant page may carry — a child entry's
// permission bits must be a subset of every ancestor's, mirroring
// spec.md's permission-subset invariant.
type Perm uint8

const (
	PermRead Perm = 1 << iota
	PermWrite
	PermExec
)

const PermAll = PermRead | PermWrite | PermExec

// EntryKind discriminates the five entry shapes.
type EntryKind uint8

const (
	EntryNull EntryKind = iota
	EntryROPage
	EntryRWPage
	EntryROTable
	EntryRWTable
)

// Entry is one slot of a Table. Exactly one of page/sub is meaningful,
// selected by Kind.
type Entry struct {
	Kind EntryKind
	Perm Perm
	pfn  mem.PFN
	sub  *Table
}

// Table is one level of the page table, 512 entries wide.
type Table struct {
	level   Level
	alloc   *mem.Allocator
	entries [entriesPerTable]Entry
}

// NewTable allocates an empty table at the given level.
func NewTable(alloc *mem.Allocator, level Level) *Table {
	return &Table{level: level, alloc: alloc}
}

// Level reports the table's depth.
func (t *Table) Level() Level { return t.level }

// checkPerm enforces the permission-subset invariant: a new entry's
// permission bits must not exceed any ancestor's. Table callers pass the
// accumulated ancestor mask.
func checkPerm(ancestor, requested Perm) error {
	if requested&^ancestor != 0 {
		return fmt.Errorf("pgtbl: permission %#x exceeds ancestor mask %#x", requested, ancestor)
	}
	return nil
}

// Map installs a leaf page mapping at the given index of a Level4K table
// (or a large-page mapping at Level2M/Level1G), enforcing the permission
// subset invariant against ancestorPerm.
func (t *Table) Map(index int, pfn mem.PFN, perm Perm, ancestorPerm Perm) error {
	if index < 0 || index >= entriesPerTable {
		return fmt.Errorf("pgtbl: index %d out of range", index)
	}
	if err := checkPerm(ancestorPerm, perm); err != nil {
		return err
	}
	kind := EntryROPage
	if perm&PermWrite != 0 {
		kind = EntryRWPage
	}
	t.entries[index] = Entry{Kind: kind, Perm: perm, pfn: pfn}
	return nil
}

// MapTable installs a subtable at index, enforcing that its permission
// ceiling is a subset of ancestorPerm.
func (t *Table) MapTable(index int, sub *Table, perm Perm, ancestorPerm Perm) error {
	if index < 0 || index >= entriesPerTable {
		return fmt.Errorf("pgtbl: index %d out of range", index)
	}
	if err := checkPerm(ancestorPerm, perm); err != nil {
		return err
	}
	kind := EntryROTable
	if perm&PermWrite != 0 {
		kind = EntryRWTable
	}
	t.entries[index] = Entry{Kind: kind, Perm: perm, sub: sub}
	return nil
}

// Unmap clears the entry at index, returning what was there (the Go
// counterpart of vm/as.go's Page_remove, which hands the displaced PTE
// back to the caller for refcount bookkeeping).
func (t *Table) Unmap(index int) Entry {
	old := t.entries[index]
	t.entries[index] = Entry{}
	return old
}

// Get returns the entry at index without modifying the table.
func (t *Table) Get(index int) Entry {
	return t.entries[index]
}

// Walk resolves a virtual address down to its leaf entry, returning each
// level's index path and the final entry. It mirrors vm/as.go's
// pmap_walk, generalized to three explicit levels instead of one fixed
// depth of 4 KiB PTEs.
func (t *Table) Walk(va uintptr) (indices [3]int, leaf Entry, ok bool) {
	i1 := int((va >> 30) & 0x1ff)
	i2 := int((va >> 21) & 0x1ff)
	i3 := int((va >> 12) & 0x1ff)
	indices = [3]int{i1, i2, i3}

	e1 := t.Get(i1)
	switch e1.Kind {
	case EntryNull:
		return indices, Entry{}, false
	case EntryROPage, EntryRWPage:
		return indices, e1, true
	}
	e2 := e1.sub.Get(i2)
	switch e2.Kind {
	case EntryNull:
		return indices, Entry{}, false
	case EntryROPage, EntryRWPage:
		return indices, e2, true
	}
	e3 := e2.sub.Get(i3)
	if e3.Kind == EntryNull {
		return indices, Entry{}, false
	}
	return indices, e3, true
}

// UnmapVA walks root down to the leaf table covering va and clears that
// mapping, returning the entry that was there. It is Walk's counterpart
// for removal, needed because Table.Unmap only operates on a single
// table's own index and has no notion of a full virtual address.
func UnmapVA(root *Table, va uintptr) (Entry, bool) {
	i1 := int((va >> 30) & 0x1ff)
	i2 := int((va >> 21) & 0x1ff)
	i3 := int((va >> 12) & 0x1ff)

	e1 := root.Get(i1)
	switch e1.Kind {
	case EntryNull:
		return Entry{}, false
	case EntryROPage, EntryRWPage:
		return root.Unmap(i1), true
	}
	e2 := e1.sub.Get(i2)
	switch e2.Kind {
	case EntryNull:
		return Entry{}, false
	case EntryROPage, EntryRWPage:
		return e1.sub.Unmap(i2), true
	}
	if e2.sub.Get(i3).Kind == EntryNull {
		return Entry{}, false
	}
	return e2.sub.Unmap(i3), true
}

// EnsureChild returns the subtable at index, allocating and installing a
// fresh empty one of the appropriate child level if none exists yet.
func (t *Table) EnsureChild(index int, perm Perm, ancestorPerm Perm) (*Table, error) {
	e := t.entries[index]
	if e.Kind == EntryROTable || e.Kind == EntryRWTable {
		return e.sub, nil
	}
	if e.Kind != EntryNull {
		return nil, fmt.Errorf("pgtbl: index %d already holds a page, not a table", index)
	}
	sub := NewTable(t.alloc, t.level.child())
	if err := t.MapTable(index, sub, perm, ancestorPerm); err != nil {
		return nil, err
	}
	return sub, nil
}

// PFN returns the entry's target frame, valid only when Kind is a page
// variant.
func (e Entry) PFN() mem.PFN { return e.pfn }

// Writable reports whether the entry (page or table) carries write
// permission.
func (e Entry) Writable() bool { return e.Perm&PermWrite != 0 }
