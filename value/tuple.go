package value

// Tuple is a fixed-length, write-once aggregate of values, ported from
// original_source/kernel/src/types/tuple.rs's Tuple{contents: Box<[Value]>}.
// Unlike Tree it offers no mutation beyond construction: once built, a
// Tuple's slots never change, which is what lets a Tuple be used as a
// syscall's composite argument without defensive copying.
type Tuple struct {
	contents []Value
}

// NewTuple builds a Tuple from the given values, taking ownership of them.
func NewTuple(vals ...Value) *Tuple {
	contents := make([]Value, len(vals))
	copy(contents, vals)
	return &Tuple{contents: contents}
}

// NewTupleLen builds a Tuple of n Null slots, mirroring
// Tuple::new_with_len's Value::default() fill.
func NewTupleLen(n int) *Tuple {
	contents := make([]Value, n)
	for i := range contents {
		contents[i] = Null{}
	}
	return &Tuple{contents: contents}
}

func (*Tuple) Type() Type { return TypeTuple }

func (t *Tuple) Clone() Value {
	contents := make([]Value, len(t.contents))
	for i, v := range t.contents {
		contents[i] = v.Clone()
	}
	return &Tuple{contents: contents}
}

func (t *Tuple) Drop() {
	for _, v := range t.contents {
		v.Drop()
	}
}

// Len returns the number of slots in the tuple.
func (t *Tuple) Len() int { return len(t.contents) }

// Get returns the value at index, without removing it. The caller does not
// take ownership; use Into to consume the tuple if ownership transfer is
// needed.
func (t *Tuple) Get(index int) (Value, Err) {
	if index < 0 || index >= len(t.contents) {
		return nil, ErrBadIndex
	}
	return t.contents[index], ErrNone
}

// Into consumes the tuple and returns its backing slice, matching
// Tuple::into_inner.
func (t *Tuple) Into() []Value {
	return t.contents
}
