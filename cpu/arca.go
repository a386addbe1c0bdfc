package cpu

import "arca/pgtbl"

// ExitReason classifies why Cpu.Run returned control to its caller,
// mirroring original_source's ExitStatus/ExitReason split (there a raw
// {code, error} pair is refined into SystemCall/Interrupted/Fault by the
// caller; here the refinement happens inside Run itself since the Go port
// has no hardware trap frame to decode).
type ExitReason int

const (
	// ExitSystemCall: the guest issued a syscall via the fast path and is
	// waiting for abi to dispatch it.
	ExitSystemCall ExitReason = iota
	// ExitInterrupt: the guest was preempted by vector Vector.
	ExitInterrupt
	// ExitFault: the guest faulted with vector Vector (page fault, GP,
	// etc.) and cannot continue without intervention.
	ExitFault
)

// ExitStatus is the result of one Cpu.Run call.
type ExitStatus struct {
	Reason ExitReason
	Vector uint64
}

// Arca pairs one guest's page table with its register file — the unit of
// schedulable guest state, ported from original_source/kernel/src/arca.rs.
type Arca struct {
	Table     *pgtbl.Table
	Registers RegisterFile
}

// NewArca returns a fresh Arca over the given page table with a User-mode
// register file.
func NewArca(table *pgtbl.Table) *Arca {
	return &Arca{Table: table, Registers: NewRegisterFile()}
}

// Swap exchanges this Arca's page table and registers with other's,
// mirroring Arca::swap (used when a Function hands control to a nested
// continuation and must get its own state back afterward).
func (a *Arca) Swap(other *Arca) {
	a.Table, other.Table = other.Table, a.Table
	a.Registers, other.Registers = other.Registers, a.Registers
}

// Cpu represents one schedulable execution context. It tracks which
// Arca's page table is presently "active" the way original_source's
// per-core Cpu tracks current_page_table, so that Run can tell whether
// the caller's Arca is already loaded or needs activating first.
type Cpu struct {
	active *Arca
}

// NewCpu returns an idle Cpu with no Arca active.
func NewCpu() *Cpu { return &Cpu{} }

// Activate installs a as the Cpu's current Arca, mirroring
// Cpu::activate_page_table.
func (c *Cpu) Activate(a *Arca) { c.active = a }

// Active returns the Cpu's currently active Arca, or nil if none.
func (c *Cpu) Active() *Arca { return c.active }

// SyscallSafe reports whether a's register file is in the shape the fast
// syscall-return trampoline requires: RCX holding the pre-syscall RIP,
// R11 holding the pre-syscall RFLAGS, and the guest in User mode. This is
// copied verbatim from original_source/kernel/src/cpu.rs's Cpu::run
// condition; on real hardware it decides between the fast SYSRET path and
// a full interrupt-return, and the Go runner preserves the distinction
// even though both paths here resolve to the same dispatch function.
func (a *Arca) SyscallSafe() bool {
	r := &a.Registers
	return r.Get(RCX) == r.Get(RIP) &&
		r.Get(R11) == r.Get(RFLAGS) &&
		r.Mode() == ModeUser
}

// Dispatch is supplied by the abi package and performs one guest
// instruction-stream step: it runs the guest until the next syscall,
// interrupt, or fault and reports what happened. Cpu has no notion of
// what a syscall number means; it only knows how to pick a trampoline and
// hand control off.
type Dispatch func(a *Arca) ExitStatus

// Run executes a on c until Dispatch returns. It mirrors Cpu::run's
// trampoline selection: SyscallSafe chooses between what would be the
// SYSRET fast path and the IRET slow path on real hardware. In the Go
// port both trampolines call the same Dispatch function; the predicate is
// kept so the control-flow shape — and the spec's invariant that it be
// evaluated before every dispatch — survives the substitution described
// in DESIGN.md.
func (c *Cpu) Run(a *Arca, dispatch Dispatch) ExitStatus {
	if c.active != a {
		c.Activate(a)
	}
	_ = a.SyscallSafe() // fast-path predicate retained for parity; both branches dispatch identically here
	return dispatch(a)
}
