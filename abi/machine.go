package abi

import (
	"context"

	"arca/async"
	"arca/cpu"
	"arca/mem"
	"arca/pgtbl"
	"arca/value"
)

// Machine pairs a running Arca with the descriptor table its syscalls
// address. The pairing lives here rather than on cpu.Arca itself so that
// cpu need not import value (value already imports cpu): abi is the one
// package that knows about
// both the execution core and the value universe.
type Machine struct {
	Arca        *cpu.Arca
	Descriptors *value.Descriptors[value.Value]
	Alloc       *mem.Allocator

	// cpu and guest let SysForce and call_with_current_continuation
	// re-enter Force recursively for a nested Function; both are nil for
	// a Machine built directly via NewMachine rather than by Force
	// itself, in which case those two syscalls report ErrBadSyscall.
	cpu   *cpu.Cpu
	guest Guest

	// exited records a pending exit/tailcall: force.go's run loop checks
	// this after every guest.Step in addition to Step's own done flag,
	// so SysExit and SysTailcall are genuine alternatives to a Guest
	// reporting done itself.
	exited  bool
	exitIdx int
}

// NewMachine returns a Machine for a freshly loaded Arca with an empty
// descriptor table. SysForce and call_with_current_continuation are
// unavailable on a Machine built this way; use Force to get one wired for
// recursive forcing.
func NewMachine(a *cpu.Arca, alloc *mem.Allocator) *Machine {
	return &Machine{Arca: a, Descriptors: value.NewDescriptors[value.Value](), Alloc: alloc}
}

// newRuntimeMachine is Force's constructor: it wires in the Cpu and Guest
// so a recursive force/call-cc inside the guest's own syscalls can drive
// another Function to completion the same way the outer one is being
// driven.
func newRuntimeMachine(a *cpu.Arca, alloc *mem.Allocator, c *cpu.Cpu, guest Guest) *Machine {
	return &Machine{Arca: a, Descriptors: value.NewDescriptors[value.Value](), Alloc: alloc, cpu: c, guest: guest}
}

// effects is the process-wide registry perform/prompt rendezvous through,
// grounded the same way atomTable in value/atom.go is: a single
// process-lifetime table rather than one scoped per Machine, since the
// "parent" half of an effect handshake (spec.md §9) generally runs as a
// different Function on a different Machine than the "child" half that
// performed it, and the two only share an atom tag, not a Go reference to
// each other.
var effects = async.NewRouter[value.AtomHash, value.Value]()

// Call dispatches one syscall, following the same lock/validate/mutate
// pattern vm/as.go's Sys_pgfault and Userdmap8_inner use (assert
// preconditions, perform the single mutation under whatever lock the
// target data structure owns, translate any failure into the spec's Err
// taxonomy).
func (m *Machine) Call(num Number, args []uint64) uint64 {
	switch num {
	case SysNull:
		idx := m.Descriptors.Insert(value.Value(value.Null{}))
		return EncodeOK(uint64(idx))

	case SysDrop:
		idx := int(args[0])
		v, ok := m.Descriptors.Remove(idx)
		if !ok {
			return EncodeErr(uint8(value.ErrBadIndex))
		}
		v.Drop()
		return EncodeOK(0)

	case SysDup:
		idx := int(args[0])
		v, ok := m.Descriptors.Get(idx)
		if !ok {
			return EncodeErr(uint8(value.ErrBadIndex))
		}
		newIdx := m.Descriptors.Insert(v.Clone())
		return EncodeOK(uint64(newIdx))

	case SysResize:
		// No-op beyond reporting the current table length: Descriptors
		// already grows lazily (see value.Descriptors.Set), matching
		// descriptors.rs's append-on-demand Vec.
		return EncodeOK(uint64(m.Descriptors.Len()))

	case SysCreateWord:
		idx := m.Descriptors.Insert(value.Value(value.Word(args[0])))
		return EncodeOK(uint64(idx))

	case SysCreateBlob:
		n := args[0]
		b := make([]byte, n)
		idx := m.Descriptors.Insert(value.Value(value.NewBlob(b)))
		return EncodeOK(uint64(idx))

	case SysCreateTuple:
		n := int(args[0])
		idx := m.Descriptors.Insert(value.Value(value.NewTupleLen(n)))
		return EncodeOK(uint64(idx))

	case SysCreateTree:
		n := int(args[0])
		idx := m.Descriptors.Insert(value.Value(value.NewTree(n)))
		return EncodeOK(uint64(idx))

	case SysCreateAtom:
		// No raw guest memory to read a (ptr, len) pair out of in this
		// port, so the source bytes come from an already-created Blob
		// descriptor instead (args[0]); the guest writes its payload via
		// create_blob/write_blob, then interns it.
		srcIdx := int(args[0])
		sv, ok := m.Descriptors.Get(srcIdx)
		if !ok {
			return EncodeErr(uint8(value.ErrBadIndex))
		}
		src, ok := sv.(*value.Blob)
		if !ok {
			return EncodeErr(uint8(value.ErrBadType))
		}
		idx := m.Descriptors.Insert(value.Value(value.InternAtom(src.Bytes())))
		return EncodeOK(uint64(idx))

	case SysCreatePage:
		class := mem.Class(args[0])
		pfn, err := m.Alloc.Alloc(class)
		if err != nil {
			return EncodeErr(uint8(value.ErrOutOfMemory))
		}
		rc := mem.WrapPage[[4096]byte](m.Alloc, class, pfn)
		idx := m.Descriptors.Insert(value.Value(value.NewPage(rc)))
		return EncodeOK(uint64(idx))

	case SysCreateTable:
		level := pgtbl.Level(args[0])
		tbl := pgtbl.NewTable(m.Alloc, level)
		idx := m.Descriptors.Insert(value.Value(value.NewTable(tbl)))
		return EncodeOK(uint64(idx))

	case SysGet:
		return m.composite(args, func(tr *value.Tree, i int) (value.Value, value.Err) { return tr.Get(i) })

	case SysSet:
		idx := int(args[0])
		i := int(args[1])
		vIdx := int(args[2])
		tr, vv, errc := m.lookupTreeAndValue(idx, vIdx)
		if errc != value.ErrNone {
			return EncodeErr(uint8(errc))
		}
		if errc := tr.Set(i, vv); errc != value.ErrNone {
			return EncodeErr(uint8(errc))
		}
		return EncodeOK(0)

	case SysTake:
		return m.composite(args, func(tr *value.Tree, i int) (value.Value, value.Err) { return tr.Take(i) })

	case SysPut:
		idx := int(args[0])
		i := int(args[1])
		vIdx := int(args[2])
		tr, vv, errc := m.lookupTreeAndValue(idx, vIdx)
		if errc != value.ErrNone {
			return EncodeErr(uint8(errc))
		}
		old, errc := tr.Put(i, vv)
		if errc != value.ErrNone {
			return EncodeErr(uint8(errc))
		}
		return EncodeOK(uint64(m.Descriptors.Insert(old)))

	case SysLen:
		idx := int(args[0])
		v, ok := m.Descriptors.Get(idx)
		if !ok {
			return EncodeErr(uint8(value.ErrBadIndex))
		}
		tr, ok := v.(*value.Tree)
		if !ok {
			return EncodeErr(uint8(value.ErrBadType))
		}
		return EncodeOK(uint64(tr.Len()))

	case SysType:
		idx := int(args[0])
		v, ok := m.Descriptors.Get(idx)
		if !ok {
			return EncodeErr(uint8(value.ErrBadIndex))
		}
		return EncodeOK(uint64(v.Type()))

	case SysReadWord:
		idx := int(args[0])
		v, ok := m.Descriptors.Get(idx)
		if !ok {
			return EncodeErr(uint8(value.ErrBadIndex))
		}
		w, ok := v.(value.Word)
		if !ok {
			return EncodeErr(uint8(value.ErrBadType))
		}
		return EncodeOK(uint64(w))

	case SysMap:
		return m.sysMap(args)

	case SysUnmap:
		return m.sysUnmap(args)

	case SysMapNewPages:
		return m.sysMapNewPages(args)

	case SysReadBlob:
		idx := int(args[0])
		v, ok := m.Descriptors.Get(idx)
		if !ok {
			return EncodeErr(uint8(value.ErrBadIndex))
		}
		b, ok := v.(*value.Blob)
		if !ok {
			return EncodeErr(uint8(value.ErrBadType))
		}
		return EncodeOK(uint64(b.Len()))

	case SysWriteBlob:
		// Same stand-in as create_atom: no guest memory to copy from, so
		// the source is another Blob descriptor (args[1]) rather than a
		// (ptr, len) pair.
		dstIdx := int(args[0])
		srcIdx := int(args[1])
		dv, ok := m.Descriptors.Get(dstIdx)
		if !ok {
			return EncodeErr(uint8(value.ErrBadIndex))
		}
		dst, ok := dv.(*value.Blob)
		if !ok {
			return EncodeErr(uint8(value.ErrBadType))
		}
		sv, ok := m.Descriptors.Remove(srcIdx)
		if !ok {
			return EncodeErr(uint8(value.ErrBadIndex))
		}
		src, ok := sv.(*value.Blob)
		if !ok {
			return EncodeErr(uint8(value.ErrBadType))
		}
		n := copy(dst.Bytes(), src.Bytes())
		src.Drop()
		return EncodeOK(uint64(n))

	case SysApply:
		return m.sysApply(args)

	case SysForce:
		idx := int(args[0])
		v, ok := m.Descriptors.Remove(idx)
		if !ok {
			return EncodeErr(uint8(value.ErrBadIndex))
		}
		fn, ok := v.(*value.Function)
		if !ok {
			return EncodeErr(uint8(value.ErrBadType))
		}
		if m.cpu == nil || m.guest == nil {
			return EncodeErr(uint8(value.ErrBadSyscall))
		}
		result := Force(fn, m.cpu, m.Alloc, m.guest)
		return EncodeOK(uint64(m.Descriptors.Insert(result)))

	case SysCallWithCurrentContinuation:
		return m.sysCallCC(args)

	case SysTailcall:
		m.exited = true
		m.exitIdx = int(args[0])
		return EncodeOK(0)

	case SysPerform:
		return m.sysPerform(args)

	case SysPrompt:
		return m.sysPrompt(args)

	case SysExit:
		m.exited = true
		m.exitIdx = int(args[0])
		return EncodeOK(0)

	case SysDebugPrint:
		return EncodeOK(0)

	default:
		return EncodeErr(uint8(value.ErrBadSyscall))
	}
}

func (m *Machine) composite(args []uint64, f func(tr *value.Tree, i int) (value.Value, value.Err)) uint64 {
	idx := int(args[0])
	i := int(args[1])
	v, ok := m.Descriptors.Get(idx)
	if !ok {
		return EncodeErr(uint8(value.ErrBadIndex))
	}
	tr, ok := v.(*value.Tree)
	if !ok {
		return EncodeErr(uint8(value.ErrBadType))
	}
	result, errc := f(tr, i)
	if errc != value.ErrNone {
		return EncodeErr(uint8(errc))
	}
	return EncodeOK(uint64(m.Descriptors.Insert(result)))
}

func (m *Machine) lookupTreeAndValue(treeIdx, valIdx int) (*value.Tree, value.Value, value.Err) {
	tv, ok := m.Descriptors.Get(treeIdx)
	if !ok {
		return nil, nil, value.ErrBadIndex
	}
	tr, ok := tv.(*value.Tree)
	if !ok {
		return nil, nil, value.ErrBadType
	}
	vv, ok := m.Descriptors.Remove(valIdx)
	if !ok {
		return nil, nil, value.ErrBadIndex
	}
	return tr, vv, value.ErrNone
}

func (m *Machine) sysMap(args []uint64) uint64 {
	tableIdx := int(args[0])
	pageIdx := int(args[1])
	va := uintptr(args[2])
	perm := pgtbl.Perm(args[3])

	tv, ok := m.Descriptors.Get(tableIdx)
	if !ok {
		return EncodeErr(uint8(value.ErrBadIndex))
	}
	tbl, ok := tv.(*value.Table)
	if !ok {
		return EncodeErr(uint8(value.ErrBadType))
	}
	pv, ok := m.Descriptors.Remove(pageIdx)
	if !ok {
		return EncodeErr(uint8(value.ErrBadIndex))
	}
	pg, ok := pv.(*value.Page)
	if !ok {
		return EncodeErr(uint8(value.ErrBadType))
	}

	i1 := int((va >> 30) & 0x1ff)
	i2 := int((va >> 21) & 0x1ff)
	i3 := int((va >> 12) & 0x1ff)
	l2, err := tbl.Inner().EnsureChild(i1, pgtbl.PermAll, pgtbl.PermAll)
	if err != nil {
		return EncodeErr(uint8(value.ErrBadArgument))
	}
	l3, err := l2.EnsureChild(i2, pgtbl.PermAll, pgtbl.PermAll)
	if err != nil {
		return EncodeErr(uint8(value.ErrBadArgument))
	}
	if err := l3.Map(i3, pg.PFN(), perm, pgtbl.PermAll); err != nil {
		return EncodeErr(uint8(value.ErrBadArgument))
	}
	return EncodeOK(0)
}

func (m *Machine) sysUnmap(args []uint64) uint64 {
	tableIdx := int(args[0])
	va := uintptr(args[1])

	tv, ok := m.Descriptors.Get(tableIdx)
	if !ok {
		return EncodeErr(uint8(value.ErrBadIndex))
	}
	tbl, ok := tv.(*value.Table)
	if !ok {
		return EncodeErr(uint8(value.ErrBadType))
	}
	entry, found := pgtbl.UnmapVA(tbl.Inner(), va)
	if !found {
		return EncodeErr(uint8(value.ErrBadArgument))
	}
	rc := mem.WrapPage[[4096]byte](m.Alloc, mem.Class4K, entry.PFN())
	idx := m.Descriptors.Insert(value.Value(value.NewPage(rc)))
	return EncodeOK(uint64(idx))
}

// sysMapNewPages installs n freshly allocated 4K pages at consecutive
// addresses starting at va in tableIdx's table, the combined
// allocate-then-map spec.md §4.5 names as one operation.
func (m *Machine) sysMapNewPages(args []uint64) uint64 {
	tableIdx := int(args[0])
	va := uintptr(args[1])
	n := int(args[2])

	tv, ok := m.Descriptors.Get(tableIdx)
	if !ok {
		return EncodeErr(uint8(value.ErrBadIndex))
	}
	tbl, ok := tv.(*value.Table)
	if !ok {
		return EncodeErr(uint8(value.ErrBadType))
	}

	for p := 0; p < n; p++ {
		pfn, err := m.Alloc.Alloc(mem.Class4K)
		if err != nil {
			return EncodeErr(uint8(value.ErrOutOfMemory))
		}
		pageVA := va + uintptr(p)*0x1000
		i1 := int((pageVA >> 30) & 0x1ff)
		i2 := int((pageVA >> 21) & 0x1ff)
		i3 := int((pageVA >> 12) & 0x1ff)
		l2, err := tbl.Inner().EnsureChild(i1, pgtbl.PermAll, pgtbl.PermAll)
		if err != nil {
			return EncodeErr(uint8(value.ErrBadArgument))
		}
		l3, err := l2.EnsureChild(i2, pgtbl.PermAll, pgtbl.PermAll)
		if err != nil {
			return EncodeErr(uint8(value.ErrBadArgument))
		}
		if err := l3.Map(i3, pfn, pgtbl.PermRead|pgtbl.PermWrite, pgtbl.PermAll); err != nil {
			return EncodeErr(uint8(value.ErrBadArgument))
		}
	}
	return EncodeOK(uint64(n))
}

// sysApply transitions the Function (or Continuation) at args[0] by
// handing it the value at args[1]. A Function just queues the argument
// for whenever it is next forced; a Continuation invokes immediately,
// resolving the Force call that captured it (see value.Continuation's
// doc comment on the escape-only scope of this port's call/cc support).
func (m *Machine) sysApply(args []uint64) uint64 {
	fIdx := int(args[0])
	argIdx := int(args[1])

	fv, ok := m.Descriptors.Get(fIdx)
	if !ok {
		return EncodeErr(uint8(value.ErrBadIndex))
	}
	av, ok := m.Descriptors.Remove(argIdx)
	if !ok {
		return EncodeErr(uint8(value.ErrBadIndex))
	}

	switch target := fv.(type) {
	case *value.Function:
		target.Apply(av)
		return EncodeOK(0)
	case *value.Continuation:
		target.Invoke(av)
		return EncodeOK(0)
	default:
		av.Drop()
		return EncodeErr(uint8(value.ErrBadType))
	}
}

// sysCallCC captures the calling Machine's current point as a
// Continuation, applies it to the Function at args[0], and forces that
// Function. If the Function invokes the continuation (directly or from
// anywhere in whatever it forces or applies transitively) before
// returning normally, that invocation's value wins; otherwise the
// Function's own result is used, mirroring os::call_with_current_continuation
// racing a normal return against an invoked escape.
func (m *Machine) sysCallCC(args []uint64) uint64 {
	fIdx := int(args[0])
	v, ok := m.Descriptors.Remove(fIdx)
	if !ok {
		return EncodeErr(uint8(value.ErrBadIndex))
	}
	fn, ok := v.(*value.Function)
	if !ok {
		return EncodeErr(uint8(value.ErrBadType))
	}
	if m.cpu == nil || m.guest == nil {
		return EncodeErr(uint8(value.ErrBadSyscall))
	}

	cont := value.NewContinuation(func(val value.Value) {
		m.exited = true
		m.exitIdx = m.Descriptors.Insert(val)
	})
	fn.Apply(cont)

	result := Force(fn, m.cpu, m.Alloc, m.guest)
	if m.exited {
		m.exited = false
		return EncodeOK(uint64(m.exitIdx))
	}
	return EncodeOK(uint64(m.Descriptors.Insert(result)))
}

// sysPerform suspends the caller on effects, tagged by the Atom at
// args[0], until a matching sysPrompt call on another Machine answers it
// — the message-pair handshake spec.md §9 describes. Blocking here is
// safe because Force's run loop (like every other blocking async
// primitive in this port) treats a goroutine as a task and a blocking
// receive as its await point.
func (m *Machine) sysPerform(args []uint64) uint64 {
	idx := int(args[0])
	v, ok := m.Descriptors.Get(idx)
	if !ok {
		return EncodeErr(uint8(value.ErrBadIndex))
	}
	atom, ok := v.(*value.Atom)
	if !ok {
		return EncodeErr(uint8(value.ErrBadType))
	}

	reply, err := effects.Recv(context.Background(), atom.Hash())
	if err != nil {
		return EncodeErr(uint8(value.ErrInterrupted))
	}
	return EncodeOK(uint64(m.Descriptors.Insert(reply)))
}

// sysPrompt answers a pending sysPerform tagged by the Atom at args[0]
// with the value at args[1], waking whichever Machine is blocked in
// sysPerform for that atom.
func (m *Machine) sysPrompt(args []uint64) uint64 {
	atomIdx := int(args[0])
	replyIdx := int(args[1])

	av, ok := m.Descriptors.Get(atomIdx)
	if !ok {
		return EncodeErr(uint8(value.ErrBadIndex))
	}
	atom, ok := av.(*value.Atom)
	if !ok {
		return EncodeErr(uint8(value.ErrBadType))
	}
	reply, ok := m.Descriptors.Remove(replyIdx)
	if !ok {
		return EncodeErr(uint8(value.ErrBadIndex))
	}

	effects.Send(atom.Hash(), reply)
	return EncodeOK(0)
}
