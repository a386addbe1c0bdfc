// Package value implements Arca's immutable, reference-counted value
// universe: the Null/Word/Atom/Blob/Tuple/Tree/Page/Table/Function variants
// that flow across the guest syscall ABI. It is modeled on
// original_source/kernel/src/types/value.rs's Value enum and the sibling
// per-variant files under kernel/src/types/, re-expressed with explicit Go
// refcounting in place of Rust ownership.
package value

// Type is the wire-stable type tag used by the syscall ABI to describe a
// descriptor slot's contents. Numbering matches spec.md's external
// interface exactly; it intentionally differs from the ad hoc ordering of
// original_source/common/src/message.rs's Type enum, which is not part of
// any stable wire contract.
type Type uint8

const (
	TypeNull Type = iota
	TypeWord
	TypeBlob
	TypeTuple
	TypePage
	TypeTable
	TypeFunction
	TypeAtom
	TypeError

	// The tags above are spec.md §6's versioned external contract
	// (0-8) and must keep their numbering. Tree, Thunk, Lambda, and
	// Continuation are real Value variants the original carries
	// (kernel/src/types/tree.rs's DataType::Tree, lambda.rs's
	// DataType::Lambda) that the captured original_source/arca/src/datatype.rs
	// enum under-reports; they get tags beyond the contract's range
	// rather than reusing one of the nine, so a `type` syscall can
	// still tell every Go-side variant apart. See DESIGN.md.
	TypeTree
	TypeThunk
	TypeLambda
	TypeContinuation
)

func (t Type) String() string {
	switch t {
	case TypeNull:
		return "null"
	case TypeWord:
		return "word"
	case TypeBlob:
		return "blob"
	case TypeTuple:
		return "tuple"
	case TypePage:
		return "page"
	case TypeTable:
		return "table"
	case TypeFunction:
		return "function"
	case TypeAtom:
		return "atom"
	case TypeError:
		return "error"
	case TypeTree:
		return "tree"
	case TypeThunk:
		return "thunk"
	case TypeLambda:
		return "lambda"
	case TypeContinuation:
		return "continuation"
	default:
		return "unknown"
	}
}

// Value is implemented by every member of the value universe. Values are
// immutable from the guest's point of view; Tree is the one variant whose
// slots may be rewritten in place (see tree.go).
type Value interface {
	Type() Type
	// Clone returns a value sharing the same identity as this one, bumping
	// any underlying refcount (the Go analogue of the original's Clone
	// derive over Arc/RcPage-backed variants).
	Clone() Value
	// Drop releases any resources held by this value. Values that don't
	// own anything refcounted (Null, Word, Error) implement it as a no-op.
	Drop()
}

// Null is the unit value. The zero value is ready to use.
type Null struct{}

func (Null) Type() Type { return TypeNull }
func (Null) Clone() Value { return Null{} }
func (Null) Drop() {}

// Word is a 64-bit integer scalar, the Go counterpart of Value::Word.
type Word uint64

func (Word) Type() Type { return TypeWord }
func (w Word) Clone() Value { return w }
func (Word) Drop() {}

// Err is the guest-visible error taxonomy, carried as a Value so it can
// occupy a descriptor slot like any other result (spec.md §7).
type Err uint8

const (
	ErrNone Err = iota
	ErrBadSyscall
	ErrBadIndex
	ErrBadType
	ErrBadArgument
	ErrOutOfMemory
	ErrInterrupted
)

func (Err) Type() Type { return TypeError }
func (e Err) Clone() Value { return e }
func (Err) Drop() {}

func (e Err) Error() string {
	switch e {
	case ErrNone:
		return "no error"
	case ErrBadSyscall:
		return "bad syscall"
	case ErrBadIndex:
		return "bad index"
	case ErrBadType:
		return "bad type"
	case ErrBadArgument:
		return "bad argument"
	case ErrOutOfMemory:
		return "out of memory"
	case ErrInterrupted:
		return "interrupted"
	default:
		return "unknown error"
	}
}
