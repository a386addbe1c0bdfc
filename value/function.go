package value

import (
	"container/list"

	"arca/cpu"
	"arca/pgtbl"
)

// Definition is a Function's body: either a pre-computed Value behind a
// symbolic wrapper (it never runs, it just carries data), or an Arcane
// guest computation capable of real execution. Mirrors
// original_source/kernel/src/types/function.rs's Definition enum.
type Definition struct {
	symbolic Value
	arcane   *cpu.Arca
}

// Symbolic wraps v as a Function that, when forced, simply yields itself
// back as a Function value (function.rs's force_on no-op branch for
// Definition::Symbolic).
func Symbolic(v Value) Definition { return Definition{symbolic: v} }

// Arcane wraps a guest computation as a Function body.
func Arcane(a *cpu.Arca) Definition { return Definition{arcane: a} }

// IsArcane reports whether the definition holds a real computation rather
// than a symbolic value.
func (d Definition) IsArcane() bool { return d.arcane != nil }

// Arca returns the underlying Arca; only valid when IsArcane is true.
func (d Definition) Arca() *cpu.Arca { return d.arcane }

// Symbol returns the underlying symbolic value; only valid when IsArcane
// is false.
func (d Definition) Symbol() Value { return d.symbolic }

// Function is a value representing a not-yet-forced (or partially
// applied) computation, ported from function.rs's Function{defn, args}.
// Arguments queue up FIFO via Apply and are drained by whatever dispatches
// the function's syscalls (abi.Force), matching the original's VecDeque.
type Function struct {
	defn Definition
	args *list.List
	seed *Tree
}

// NewFunction wraps defn as a fresh Function with no queued arguments.
func NewFunction(defn Definition) *Function {
	return &Function{defn: defn, args: list.New()}
}

// newArcaneFunction wraps an Arcane definition whose descriptor table
// should be pre-populated from seed before the guest runs, the path
// Thunk.AsFunction uses to carry its descriptors tree across into a
// forceable Function.
func newArcaneFunction(a *cpu.Arca, seed *Tree) *Function {
	return &Function{defn: Arcane(a), args: list.New(), seed: seed}
}

// Seed returns the descriptor tree a Thunk-derived Function's Machine
// should be pre-populated with, or nil for an ordinarily-constructed
// Function (which starts with an empty descriptor table).
func (f *Function) Seed() *Tree { return f.seed }

func (*Function) Type() Type { return TypeFunction }

func (f *Function) Clone() Value {
	// Functions are not content-duplicated; original_source's Function
	// has no Clone impl for the Arcane case (an Arca is unique), so
	// cloning here only ever applies to already-forced Symbolic bodies.
	if f.defn.IsArcane() {
		panic("value: cannot clone an in-flight arcane Function")
	}
	return NewFunction(Symbolic(f.defn.symbolic.Clone()))
}

func (f *Function) Drop() {
	if !f.defn.IsArcane() && f.defn.symbolic != nil {
		f.defn.symbolic.Drop()
	}
	for e := f.args.Front(); e != nil; e = e.Next() {
		e.Value.(Value).Drop()
	}
	if f.seed != nil {
		f.seed.Drop()
	}
}

// Apply enqueues an argument that abi.Force moves into the descriptor
// table before a later dispatch, one argument per dispatch, mirroring
// Function::apply's push_back.
func (f *Function) Apply(arg Value) {
	f.args.PushBack(arg)
}

// NextArg dequeues the next pending argument, if any.
func (f *Function) NextArg() (Value, bool) {
	e := f.args.Front()
	if e == nil {
		return nil, false
	}
	f.args.Remove(e)
	return e.Value.(Value), true
}

// Definition exposes the function's body for abi's force loop.
func (f *Function) Definition() Definition { return f.defn }

// Thunk is a suspended Arcane computation decomposed into the triple
// spec.md §3 and §4.3 step 6 name: a serialized register file, the
// address space it runs against, and the descriptor tree it starts with.
// It is the direct result of loading an ELF image (pgtbl.LoadELF plus
// NewThunkFromImage), matching
// original_source/kernel/src/types/thunk/concrete.rs's Application.
type Thunk struct {
	Registers   *Blob
	Memory      *Table
	Descriptors *Tree
}

// NewThunk assembles a Thunk from its three parts, taking ownership of
// each.
func NewThunk(registers *Blob, memory *Table, descriptors *Tree) *Thunk {
	return &Thunk{Registers: registers, Memory: memory, Descriptors: descriptors}
}

// NewThunkFromImage builds a Thunk from a pgtbl.LoadedImage: the RIP slot
// of the loader's raw register array is copied into an otherwise zeroed
// RegisterFile, which is encoded as a Blob, and the loader's table is
// wrapped as a Table, with an empty descriptor tree, matching spec.md §4.3 step 5's
// "descriptors tree starts empty" for freshly loaded guests. pgtbl cannot
// build this itself without importing value (see elf.go's doc comment on
// preserving the mem -> pgtbl -> {cpu, value} dependency order), so the
// bridge lives here, in the one package that already imports both pgtbl
// and cpu.
func NewThunkFromImage(img *pgtbl.LoadedImage) *Thunk {
	var rf cpu.RegisterFile
	rf.Set(cpu.RIP, img.Registers[pgtbl.RipSlot()])
	return NewThunk(NewBlob(rf.Encode()), NewTable(img.Table), NewTree(0))
}

func (*Thunk) Type() Type { return TypeThunk }

func (t *Thunk) Clone() Value {
	return &Thunk{
		Registers:   t.Registers.Clone().(*Blob),
		Memory:      t.Memory.Clone().(*Table),
		Descriptors: t.Descriptors.Clone().(*Tree),
	}
}

func (t *Thunk) Drop() {
	t.Registers.Drop()
	t.Memory.Drop()
	t.Descriptors.Drop()
}

// AsFunction promotes the thunk into a forceable Function: the registers
// blob is decoded back into a RegisterFile, paired with the memory table
// into a fresh Arca, and the descriptors tree is carried along as the
// resulting Function's seed so abi.Force can pre-populate the Machine's
// descriptor table with it before running (see force.go).
func (t *Thunk) AsFunction() *Function {
	rf := cpu.DecodeRegisterFile(t.Registers.Bytes())
	arca := &cpu.Arca{Table: t.Memory.Inner(), Registers: rf}
	return newArcaneFunction(arca, t.Descriptors)
}

// Lambda is a thunk paired with a descriptor index at which an applied
// argument is inserted before the thunk runs, matching the GLOSSARY's
// "thunk paired with a descriptor index" and
// original_source/kernel/src/types/lambda.rs's Lambda{thunk, index}.
// Where a Function's argument queue is FIFO and positionless, a Lambda
// names exactly where its one argument lands.
type Lambda struct {
	thunk *Thunk
	slot  int
}

// NewLambda pairs a Thunk with the descriptor slot an applied argument
// should occupy.
func NewLambda(t *Thunk, slot int) *Lambda { return &Lambda{thunk: t, slot: slot} }

func (*Lambda) Type() Type { return TypeLambda }

func (l *Lambda) Clone() Value {
	return &Lambda{thunk: l.thunk.Clone().(*Thunk), slot: l.slot}
}

func (l *Lambda) Drop() { l.thunk.Drop() }

// Apply inserts arg at the lambda's slot in its thunk's descriptor tree
// and returns the now-runnable Function, consuming the Lambda the way
// lambda.rs's Lambda::apply consumes self.
func (l *Lambda) Apply(arg Value) *Function {
	l.thunk.Descriptors.Set(l.slot, arg)
	return l.thunk.AsFunction()
}

// Continuation is a reified escape point captured by
// call_with_current_continuation: invoking it resolves the Force call
// that captured it to the supplied value, unwinding whatever the
// capturing Function was doing. This is the escape-only special case of
// call/cc (a continuation invoked at most once, and only while its
// capturing Force call is still on the stack); spec.md §9 flags the
// behavior of a continuation that outlives its originating Function as
// an open question, and this port does not attempt the general
// re-entrant case. See DESIGN.md.
type Continuation struct {
	invoke func(Value)
	used   bool
}

// NewContinuation wraps invoke, the callback abi.Machine's
// call_with_current_continuation handler uses to resolve its capturing
// Force call.
func NewContinuation(invoke func(Value)) *Continuation {
	return &Continuation{invoke: invoke}
}

func (*Continuation) Type() Type { return TypeContinuation }

func (c *Continuation) Clone() Value { return c }

func (c *Continuation) Drop() {}

// Invoke resolves the captured escape point with v. Calling it more than
// once panics, matching a OneShot's single-delivery contract (the
// mechanism it is grounded on, common/src/util/oneshot.rs).
func (c *Continuation) Invoke(v Value) {
	if c.used {
		panic("value: Continuation invoked twice")
	}
	c.used = true
	c.invoke(v)
}
