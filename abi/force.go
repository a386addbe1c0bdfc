package abi

import (
	"arca/cpu"
	"arca/mem"
	"arca/value"
)

// Guest is the Go stand-in for a loaded guest's instruction stream. Real
// Arca guests run compiled machine code trapping into the host on every
// syscall; a pure-Go port with no hardware virtualization and no x86
// interpreter cannot execute that code, so a Guest here is the closure
// that issues the same syscall sequence directly against a Machine. Every
// testable scenario in spec.md §8 (inc, null, forcer/forcee, ...) is
// expressed as a Guest. See DESIGN.md, Open Question 1.
//
// A Guest issues its syscalls itself through the Machine and reports
// done=true once it has nothing left to run and wants force_on to return
// the value at descriptor result.
type Guest interface {
	// Step is called once per trampoline dispatch. It may mutate m
	// (typically via m.Call) and must report whether the guest program
	// has finished; if so, result is the descriptor index force_on
	// should read out and return.
	Step(m *Machine) (done bool, result int)
}

// GuestFunc adapts a plain function to the Guest interface.
type GuestFunc func(m *Machine) (done bool, result int)

func (f GuestFunc) Step(m *Machine) (bool, int) { return f(m) }

// Force drives fn's body to completion, mirroring
// original_source/kernel/src/types/function.rs's force_on: a Symbolic
// definition returns immediately as a Function value; an Arcane one runs
// guest against the Machine wrapping fn's Arca until it signals
// completion. Before each dispatch it moves the next of fn's queued
// arguments, if any, into the descriptor table (one argument per
// dispatch), in place of force_on's run loop draining self.args via
// handle_syscall.
func Force(fn *value.Function, c *cpu.Cpu, alloc *mem.Allocator, guest Guest) value.Value {
	defn := fn.Definition()
	if !defn.IsArcane() {
		return value.NewFunction(defn)
	}

	m := newRuntimeMachine(defn.Arca(), alloc, c, guest)
	if seed := fn.Seed(); seed != nil {
		for i := 0; i < seed.Len(); i++ {
			v, errc := seed.Get(i)
			if errc == value.ErrNone {
				m.Descriptors.Set(i, v)
			}
		}
	}

	for {
		if arg, ok := fn.NextArg(); ok {
			m.Descriptors.Insert(arg)
		}

		status := c.Run(m.Arca, func(a *cpu.Arca) cpu.ExitStatus {
			return cpu.ExitStatus{Reason: cpu.ExitSystemCall}
		})

		switch status.Reason {
		case cpu.ExitInterrupt:
			if status.Vector == 0x20 {
				continue
			}
			panic("abi: unexpected interrupt vector")
		case cpu.ExitFault:
			panic("abi: guest fault")
		}

		done, resultIdx := guest.Step(m)
		if m.exited {
			done, resultIdx = true, m.exitIdx
		}
		if done {
			v, ok := m.Descriptors.Get(resultIdx)
			if !ok {
				return value.Null{}
			}
			return v
		}
	}
}
