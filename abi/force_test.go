package abi

import (
	"testing"

	"arca/cpu"
	"arca/mem"
	"arca/pgtbl"
	"arca/value"
)

func newTestArca(alloc *mem.Allocator) *cpu.Arca {
	return cpu.NewArca(pgtbl.NewTable(alloc, pgtbl.Level1G))
}

// TestForceNull exercises spec.md §8's "null" scenario: a guest that
// immediately terminates with the Null value.
func TestForceNull(t *testing.T) {
	alloc := mem.NewAllocator(64)
	fn := value.NewFunction(value.Arcane(newTestArca(alloc)))
	c := cpu.NewCpu()

	guest := GuestFunc(func(m *Machine) (bool, int) {
		idx := m.Descriptors.Insert(value.Value(value.Null{}))
		return true, idx
	})

	result := Force(fn, c, alloc, guest)
	if _, ok := result.(value.Null); !ok {
		t.Fatalf("Force returned %T, want value.Null", result)
	}
}

// TestForceInc exercises the "inc" scenario: a guest that reads one
// queued Word argument and returns it incremented by one.
func TestForceInc(t *testing.T) {
	alloc := mem.NewAllocator(64)
	fn := value.NewFunction(value.Arcane(newTestArca(alloc)))
	fn.Apply(value.Word(41))
	c := cpu.NewCpu()

	step := 0
	guest := GuestFunc(func(m *Machine) (bool, int) {
		step++
		if step == 1 {
			// First dispatch: the argument was drained into slot 0 by
			// Force before calling Step.
			v, ok := m.Descriptors.Get(0)
			if !ok {
				t.Fatalf("expected argument in descriptor 0")
			}
			w := v.(value.Word)
			idx := m.Descriptors.Insert(value.Value(value.Word(w + 1)))
			return true, idx
		}
		return true, 0
	})

	result := Force(fn, c, alloc, guest)
	w, ok := result.(value.Word)
	if !ok || w != 42 {
		t.Fatalf("Force returned %#v, want Word(42)", result)
	}
}

// TestForceSymbolicReturnsImmediately exercises the Symbolic definition
// path: forcing never dispatches a syscall and simply wraps the value
// back up as a Function, matching function.rs's no-op branch.
func TestForceSymbolicReturnsImmediately(t *testing.T) {
	alloc := mem.NewAllocator(64)
	fn := value.NewFunction(value.Symbolic(value.Word(7)))
	c := cpu.NewCpu()

	calls := 0
	guest := GuestFunc(func(m *Machine) (bool, int) {
		calls++
		return true, 0
	})

	result := Force(fn, c, alloc, guest)
	if calls != 0 {
		t.Fatalf("guest stepped %d times for a symbolic function, want 0", calls)
	}
	if _, ok := result.(*value.Function); !ok {
		t.Fatalf("Force returned %T, want *value.Function", result)
	}
}

// TestForcerForcee exercises spec.md §8's forcer/forcee pair as a chain:
// the forcee doubles its applied Word(10) to Word(20), and the forcer,
// applied to that result, adds one and returns Word(21).
func TestForcerForcee(t *testing.T) {
	alloc := mem.NewAllocator(64)
	c := cpu.NewCpu()

	forcee := value.NewFunction(value.Arcane(newTestArca(alloc)))
	forcee.Apply(value.Word(10))
	forceeGuest := GuestFunc(func(m *Machine) (bool, int) {
		v, _ := m.Descriptors.Get(0)
		w := v.(value.Word)
		idx := m.Descriptors.Insert(value.Value(value.Word(w * 2)))
		return true, idx
	})
	forceeResult := Force(forcee, c, alloc, forceeGuest)

	forcer := value.NewFunction(value.Arcane(newTestArca(alloc)))
	forcer.Apply(forceeResult)
	forcerGuest := GuestFunc(func(m *Machine) (bool, int) {
		v, _ := m.Descriptors.Get(0)
		w := v.(value.Word)
		idx := m.Descriptors.Insert(value.Value(value.Word(w + 1)))
		return true, idx
	})
	final := Force(forcer, c, alloc, forcerGuest)

	w, ok := final.(value.Word)
	if !ok || w != 21 {
		t.Fatalf("forcer/forcee chain returned %#v, want Word(21)", final)
	}
}

func TestMachineDescriptorSyscalls(t *testing.T) {
	alloc := mem.NewAllocator(64)
	m := NewMachine(newTestArca(alloc), alloc)

	raw := m.Call(SysCreateWord, []uint64{5})
	v, isErr, _ := Decode(raw)
	if isErr {
		t.Fatalf("SysCreateWord errored")
	}
	idx := int(v)

	raw = m.Call(SysDup, []uint64{uint64(idx)})
	v2, isErr, _ := Decode(raw)
	if isErr {
		t.Fatalf("SysDup errored")
	}
	dupIdx := int(v2)

	got, ok := m.Descriptors.Get(dupIdx)
	if !ok {
		t.Fatalf("duplicated descriptor missing")
	}
	if got.(value.Word) != 5 {
		t.Fatalf("duplicated value = %v, want 5", got)
	}

	raw = m.Call(SysDrop, []uint64{uint64(idx)})
	if _, isErr, _ := Decode(raw); isErr {
		t.Fatalf("SysDrop errored")
	}
	if _, ok := m.Descriptors.Get(idx); ok {
		t.Fatalf("descriptor still present after SysDrop")
	}
}

func TestMachineBadIndexErrors(t *testing.T) {
	alloc := mem.NewAllocator(64)
	m := NewMachine(newTestArca(alloc), alloc)

	raw := m.Call(SysDrop, []uint64{99})
	_, isErr, code := Decode(raw)
	if !isErr || value.Err(code) != value.ErrBadIndex {
		t.Fatalf("Decode = isErr=%v code=%v, want ErrBadIndex", isErr, code)
	}
}
