package pgtbl

import (
	"testing"

	"arca/mem"
)

func TestMapAndWalk(t *testing.T) {
	alloc := mem.NewAllocator(4096)
	root := NewTable(alloc, Level1G)

	pfn, err := alloc.Alloc(mem.Class4K)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	va := uintptr(0x1000)
	if err := mapPage(root, alloc, va, pfn, PermRead|PermWrite); err != nil {
		t.Fatalf("mapPage: %v", err)
	}

	_, leaf, ok := root.Walk(va)
	if !ok {
		t.Fatalf("Walk did not find mapping")
	}
	if leaf.PFN() != pfn {
		t.Fatalf("Walk returned pfn %v, want %v", leaf.PFN(), pfn)
	}
	if !leaf.Writable() {
		t.Fatalf("leaf should be writable")
	}
}

func TestPermissionSubsetInvariant(t *testing.T) {
	alloc := mem.NewAllocator(4096)
	root := NewTable(alloc, Level1G)

	sub, err := root.EnsureChild(0, PermRead, PermRead)
	if err != nil {
		t.Fatalf("EnsureChild: %v", err)
	}
	pfn, _ := alloc.Alloc(mem.Class4K)
	if err := sub.Map(0, pfn, PermRead|PermWrite, PermRead); err == nil {
		t.Fatalf("expected permission-subset violation to be rejected")
	}
}

func TestWalkMissingMapping(t *testing.T) {
	alloc := mem.NewAllocator(4096)
	root := NewTable(alloc, Level1G)
	if _, _, ok := root.Walk(0x2000); ok {
		t.Fatalf("Walk found a mapping that was never installed")
	}
}
