package value

import "sync"

// Tree is a mutable aggregate of value slots, ported from
// original_source/kernel/src/types/tree.rs. Where Tuple is write-once,
// Tree supports Take/Put/Get/Set in place: this is the type the get, set,
// take, put and len syscalls operate on (spec.md §4.5).
type Tree struct {
	mu       sync.Mutex
	contents []Value
}

// NewTree builds a Tree of n Null slots.
func NewTree(n int) *Tree {
	contents := make([]Value, n)
	for i := range contents {
		contents[i] = Null{}
	}
	return &Tree{contents: contents}
}

func (*Tree) Type() Type { return TypeTree }

func (t *Tree) Clone() Value {
	t.mu.Lock()
	defer t.mu.Unlock()
	contents := make([]Value, len(t.contents))
	for i, v := range t.contents {
		contents[i] = v.Clone()
	}
	return &Tree{contents: contents}
}

func (t *Tree) Drop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, v := range t.contents {
		v.Drop()
	}
}

// Len returns the number of slots.
func (t *Tree) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.contents)
}

// Take removes the value at index, leaving Null in its place, mirroring
// Tree::take's mem::take.
func (t *Tree) Take(index int) (Value, Err) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if index < 0 || index >= len(t.contents) {
		return nil, ErrBadIndex
	}
	v := t.contents[index]
	t.contents[index] = Null{}
	return v, ErrNone
}

// Put installs value at index and returns the slot's previous occupant,
// mirroring Tree::put.
func (t *Tree) Put(index int, v Value) (Value, Err) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if index < 0 || index >= len(t.contents) {
		return nil, ErrBadIndex
	}
	old := t.contents[index]
	t.contents[index] = v
	return old, ErrNone
}

// Get returns a clone of the value at index, leaving the slot unchanged.
func (t *Tree) Get(index int) (Value, Err) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if index < 0 || index >= len(t.contents) {
		return nil, ErrBadIndex
	}
	return t.contents[index].Clone(), ErrNone
}

// Set overwrites the value at index, dropping the previous occupant.
func (t *Tree) Set(index int, v Value) Err {
	t.mu.Lock()
	defer t.mu.Unlock()
	if index < 0 || index >= len(t.contents) {
		return ErrBadIndex
	}
	t.contents[index].Drop()
	t.contents[index] = v
	return ErrNone
}
