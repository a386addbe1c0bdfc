package pgtbl

import (
	"debug/elf"
	"fmt"

	"arca/mem"
)

// RegisterCount covers cpu.RegisterFile's sixteen general registers plus
// RIP (RFLAGS and mode are not part of the raw array); duplicated here as
// a constant (rather than importing cpu, which would invert the intended
// mem -> pgtbl -> {cpu, value} dependency order) since the loader only
// needs to know where RIP lives in the raw register array it hands back.
const RegisterCount = 17
const ripSlot = 16

// RipSlot reports the index of the RIP slot within LoadedImage.Registers,
// for callers outside this package that need to seed a register file
// from a LoadedImage without duplicating the layout.
func RipSlot() int { return ripSlot }

// LoadedImage is what LoadELF hands back: a populated page table and the
// initial register contents, ready to be wrapped into a value.Thunk via
// value.NewThunkFromImage (or, for the simplest guests, fed straight into
// a cpu.Arca).
type LoadedImage struct {
	Table     *Table
	Registers [RegisterCount]uint64
}

// LoadELF parses a raw ELF64 executable and maps its PT_LOAD segments into
// a freshly built page table, following
// original_source/common/src/elfloader.rs's load_elf algorithm: walk
// segments, skip PT_NOTE/PT_PHDR and OS/arch-reserved types, and for each
// PT_LOAD segment allocate one page per covered 4 KiB window, copy in
// file bytes (a fresh page is already zeroed, so bss is free), and map it
// read-only or read-write per PF_W.
func LoadELF(data []byte, alloc *mem.Allocator) (*LoadedImage, error) {
	f, err := elf.NewFile(byteReaderAt(data))
	if err != nil {
		return nil, fmt.Errorf("pgtbl: parse ELF: %w", err)
	}
	if f.Class != elf.ELFCLASS64 {
		return nil, fmt.Errorf("pgtbl: not a 64-bit ELF")
	}
	if f.Type != elf.ET_EXEC {
		return nil, fmt.Errorf("pgtbl: not ET_EXEC")
	}
	if f.Machine != elf.EM_X86_64 {
		return nil, fmt.Errorf("pgtbl: not EM_X86_64")
	}

	root := NewTable(alloc, Level1G)

	for _, prog := range f.Progs {
		switch prog.Type {
		case elf.PT_NOTE, elf.PT_PHDR:
			continue
		}
		if prog.Type >= elf.PT_LOOS {
			continue
		}
		if prog.Type != elf.PT_LOAD {
			continue
		}

		perm := PermRead
		if prog.Flags&elf.PF_W != 0 {
			perm |= PermWrite
		}
		if prog.Flags&elf.PF_X != 0 {
			perm |= PermExec
		}

		pageStart := prog.Vaddr &^ 0xfff
		pageEnd := (prog.Vaddr + prog.Memsz + 0xfff) &^ 0xfff
		segData := make([]byte, prog.Filesz)
		if _, err := prog.ReaderAt.ReadAt(segData, 0); err != nil {
			return nil, fmt.Errorf("pgtbl: read segment: %w", err)
		}

		for va := pageStart; va < pageEnd; va += 0x1000 {
			pfn, err := alloc.Alloc(mem.Class4K)
			if err != nil {
				return nil, err
			}
			page := alloc.Bytes(pfn, mem.Class4K)

			fileOff := int64(va) - int64(prog.Vaddr)
			for i := range page {
				srcOff := fileOff + int64(i)
				if srcOff >= 0 && srcOff < int64(len(segData)) {
					page[i] = segData[srcOff]
				}
			}

			if err := mapPage(root, alloc, uintptr(va), pfn, perm); err != nil {
				return nil, err
			}
		}
	}

	img := &LoadedImage{Table: root}
	img.Registers[ripSlot] = f.Entry
	return img, nil
}

// mapPage walks/creates the intermediate tables for va and installs the
// final leaf mapping, mirroring elfloader.rs's per-page table.map call
// chained through whatever intermediate tables create_table produces.
func mapPage(root *Table, alloc *mem.Allocator, va uintptr, pfn mem.PFN, perm Perm) error {
	i1 := int((va >> 30) & 0x1ff)
	i2 := int((va >> 21) & 0x1ff)
	i3 := int((va >> 12) & 0x1ff)

	l2, err := root.EnsureChild(i1, PermAll, PermAll)
	if err != nil {
		return err
	}
	l3, err := l2.EnsureChild(i2, PermAll, PermAll)
	if err != nil {
		return err
	}
	return l3.Map(i3, pfn, perm, PermAll)
}

// byteReaderAt adapts a byte slice to io.ReaderAt without an extra copy.
type byteReaderAt []byte

func (b byteReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(b)) {
		return 0, fmt.Errorf("pgtbl: ReadAt out of range")
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, fmt.Errorf("pgtbl: short read")
	}
	return n, nil
}
