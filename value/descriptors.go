package value

// Descriptors is a guest process's open-descriptor table: a sparse array
// of optional values addressed by small integer handles, ported from
// original_source/common/src/util/descriptors.rs's Descriptors<T>. It
// backs the "descriptor management" syscall group in spec.md §4.5
// (insert/get/set/remove) with the same first-free-slot allocation policy
// as the original.
type Descriptors[T any] struct {
	table []*T
}

// NewDescriptors returns an empty descriptor table.
func NewDescriptors[T any]() *Descriptors[T] {
	return &Descriptors[T]{table: make([]*T, 0, 512)}
}

// Insert finds the first free slot (or appends one) and stores v there,
// returning its index.
func (d *Descriptors[T]) Insert(v T) int {
	for i, slot := range d.table {
		if slot == nil {
			d.table[i] = &v
			return i
		}
	}
	d.table = append(d.table, &v)
	return len(d.table) - 1
}

// Get returns the value at index, or ok=false if the slot is empty or out
// of range.
func (d *Descriptors[T]) Get(index int) (v T, ok bool) {
	if index < 0 || index >= len(d.table) || d.table[index] == nil {
		return v, false
	}
	return *d.table[index], true
}

// Set installs v at index, growing the table with nil padding as needed,
// and returns the slot's previous contents if any.
func (d *Descriptors[T]) Set(index int, v T) (prev T, had bool) {
	for len(d.table) <= index {
		d.table = append(d.table, nil)
	}
	if d.table[index] != nil {
		prev, had = *d.table[index], true
	}
	d.table[index] = &v
	return prev, had
}

// Remove clears the slot at index, returning its previous value, and
// shrinks the table to drop any trailing empty slots (shrinkwrap).
func (d *Descriptors[T]) Remove(index int) (v T, ok bool) {
	if index < 0 || index >= len(d.table) || d.table[index] == nil {
		return v, false
	}
	v = *d.table[index]
	d.table[index] = nil
	d.shrinkwrap()
	return v, true
}

func (d *Descriptors[T]) shrinkwrap() {
	n := len(d.table)
	for n > 0 && d.table[n-1] == nil {
		n--
	}
	d.table = d.table[:n]
}

// Len returns the current table length, including empty trailing-interior
// slots but never trailing-empty ones past the last occupied slot.
func (d *Descriptors[T]) Len() int { return len(d.table) }

// Each calls f for every occupied slot in ascending index order.
func (d *Descriptors[T]) Each(f func(index int, v T)) {
	for i, slot := range d.table {
		if slot != nil {
			f(i, *slot)
		}
	}
}
