// Command arcactl is the boot/diagnostic CLI: it loads a guest ELF image
// into a fresh address space, wires up the allocator, and reports the
// resulting Arca's entry state. It is the operator-facing counterpart to
// the library packages under mem/, pgtbl/, cpu/, abi/, vsock/, ninep/,
// and vfs/ — none of which have a main of their own.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"arca/cpu"
	"arca/mem"
	"arca/pgtbl"
	"arca/value"
)

const framesDefault = 4096 // 16MB of 4K frames for the diagnostic allocator

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s boot [-frames N] <elf-path>\n", os.Args[0])
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	switch os.Args[1] {
	case "boot":
		cmdBoot(os.Args[2:])
	default:
		usage()
	}
}

func cmdBoot(args []string) {
	fs := flag.NewFlagSet("boot", flag.ExitOnError)
	frames := fs.Uint64("frames", framesDefault, "number of 4K frames to give the diagnostic allocator")
	fs.Parse(args)
	if fs.NArg() != 1 {
		usage()
	}
	path := fs.Arg(0)

	data, err := mmapFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "arcactl: %v\n", err)
		os.Exit(1)
	}

	alloc := mem.NewAllocator(*frames)
	image, err := pgtbl.LoadELF(data, alloc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "arcactl: load: %v\n", err)
		os.Exit(1)
	}

	bootID := uuid.New()
	thunk := value.NewThunkFromImage(image)
	fn := thunk.AsFunction()
	arca := fn.Definition().Arca()

	fmt.Printf("arcactl: boot %s\n", bootID)
	fmt.Printf("arcactl: loaded %s, entry=0x%x\n", path, arca.Registers.Get(cpu.RIP))
	fmt.Printf("arcactl: mode=%v\n", arca.Registers.Mode())
}

// mmapFile maps path read-only into this process's address space so the
// loader can treat the guest image as a plain byte slice without a
// read(2) copy, mirroring original_source/common/src/mmap.rs's use of
// mmap for guest image staging.
func mmapFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if st.Size() == 0 {
		return nil, fmt.Errorf("%s: empty file", path)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(st.Size()), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}
	return data, nil
}
