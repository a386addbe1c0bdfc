// Package abi implements the guest syscall ABI: the syscall number table,
// the wire error encoding (high bit of RAX set on failure, per spec.md
// §7), and the dispatcher that turns a syscall number plus register
// arguments into an operation on a Machine's descriptor table. It also
// hosts Force, the run loop that drives a value.Function's Arcane
// body to completion — the Go counterpart of
// original_source/kernel/src/types/function.rs's force_on, grounded
// additionally on vm/as.go's lock/mutate/unlock dispatch shape for each
// individual syscall handler (see DESIGN.md, Open Question 1, for why the
// "guest code" a Machine runs is a Go closure rather than interpreted
// machine instructions).
package abi

// Number identifies a guest syscall. Grouping and numbering follow
// spec.md §4.5's syscall table.
type Number uint64

const (
	// Descriptor management.
	SysResize Number = iota
	SysNull
	SysDup
	SysDrop

	// Value constructors.
	SysCreateWord
	SysCreateBlob
	SysCreateTuple
	SysCreateTree
	SysCreateAtom
	SysCreatePage
	SysCreateTable

	// Accessors.
	SysGet
	SysSet
	SysTake
	SysPut
	SysLen
	SysType
	SysReadWord

	// Composite / memory ops.
	SysMap
	SysUnmap
	SysMapNewPages
	SysReadBlob
	SysWriteBlob

	// Function ops.
	SysApply
	SysForce
	SysCallWithCurrentContinuation
	SysTailcall

	// Effects.
	SysPerform
	SysPrompt

	// Termination.
	SysExit

	// Debug.
	SysDebugPrint
)

// errorBit marks a failed syscall's result, matching spec.md §7: the
// high bit of RAX is set and the remaining bits carry the Err code.
const errorBit = uint64(1) << 63

// EncodeOK packs a successful result value into RAX's wire form.
func EncodeOK(v uint64) uint64 { return v &^ errorBit }

// EncodeErr packs an Err into RAX's wire form with the error bit set.
func EncodeErr(code uint8) uint64 { return errorBit | uint64(code) }

// Decode splits a raw RAX value back into (value, isError, errCode).
func Decode(raw uint64) (value uint64, isErr bool, errCode uint8) {
	if raw&errorBit != 0 {
		return 0, true, uint8(raw &^ errorBit)
	}
	return raw, false, 0
}
