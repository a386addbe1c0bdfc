package cpu

import (
	"testing"

	"arca/mem"
	"arca/pgtbl"
)

func TestSyscallSafePredicate(t *testing.T) {
	alloc := mem.NewAllocator(64)
	a := NewArca(pgtbl.NewTable(alloc, pgtbl.Level1G))

	a.Registers.Set(RIP, 0x1000)
	a.Registers.Set(RCX, 0x1000)
	a.Registers.Set(RFLAGS, 0x202)
	a.Registers.Set(R11, 0x202)
	a.Registers.SetMode(ModeUser)

	if !a.SyscallSafe() {
		t.Fatalf("expected syscall-safe register state to be recognized")
	}

	a.Registers.Set(RCX, 0x2000)
	if a.SyscallSafe() {
		t.Fatalf("mismatched RCX/RIP should not be syscall-safe")
	}
}

func TestRunDispatchesOnce(t *testing.T) {
	alloc := mem.NewAllocator(64)
	a := NewArca(pgtbl.NewTable(alloc, pgtbl.Level1G))
	c := NewCpu()

	calls := 0
	status := c.Run(a, func(arca *Arca) ExitStatus {
		calls++
		return ExitStatus{Reason: ExitSystemCall}
	})

	if calls != 1 {
		t.Fatalf("dispatch called %d times, want 1", calls)
	}
	if status.Reason != ExitSystemCall {
		t.Fatalf("status = %+v, want ExitSystemCall", status)
	}
	if c.Active() != a {
		t.Fatalf("Run did not activate the Arca it ran")
	}
}

func TestArcaSwap(t *testing.T) {
	alloc := mem.NewAllocator(64)
	a := NewArca(pgtbl.NewTable(alloc, pgtbl.Level1G))
	b := NewArca(pgtbl.NewTable(alloc, pgtbl.Level1G))

	a.Registers.Set(RAX, 111)
	b.Registers.Set(RAX, 222)
	aTable, bTable := a.Table, b.Table

	a.Swap(b)

	if a.Registers.Get(RAX) != 222 || b.Registers.Get(RAX) != 111 {
		t.Fatalf("Swap did not exchange register files")
	}
	if a.Table != bTable || b.Table != aTable {
		t.Fatalf("Swap did not exchange page tables")
	}
}
