package value

import (
	"testing"

	"arca/cpu"
	"arca/mem"
	"arca/pgtbl"
)

func TestThunkFromImageRoundTripsRegisters(t *testing.T) {
	alloc := mem.NewAllocator(64)
	tbl := pgtbl.NewTable(alloc, pgtbl.Level1G)
	img := &pgtbl.LoadedImage{Table: tbl}
	img.Registers[pgtbl.RipSlot()] = 0x401000

	thunk := NewThunkFromImage(img)
	if thunk.Descriptors.Len() != 0 {
		t.Fatalf("freshly loaded Thunk's descriptors tree has %d slots, want 0", thunk.Descriptors.Len())
	}

	fn := thunk.AsFunction()
	arca := fn.Definition().Arca()
	if arca == nil {
		t.Fatalf("AsFunction did not produce an Arcane definition")
	}
	if got := arca.Registers.Get(cpu.RIP); got != 0x401000 {
		t.Fatalf("decoded RIP = 0x%x, want 0x401000", got)
	}
}

func TestLambdaApplyInsertsAtSlot(t *testing.T) {
	alloc := mem.NewAllocator(64)
	tbl := pgtbl.NewTable(alloc, pgtbl.Level1G)
	thunk := NewThunk(NewBlob(nil), NewTable(tbl), NewTree(2))
	lambda := NewLambda(thunk, 1)

	fn := lambda.Apply(Word(99))
	v, err := thunk.Descriptors.Get(1)
	if err != ErrNone {
		t.Fatalf("Get(1): %v", err)
	}
	if w, ok := v.(Word); !ok || w != 99 {
		t.Fatalf("slot 1 = %#v, want Word(99)", v)
	}
	if fn.Seed() != thunk.Descriptors {
		t.Fatalf("Lambda.Apply's Function does not carry the thunk's descriptors as its seed")
	}
}

func TestContinuationInvokeCallsBack(t *testing.T) {
	var got Value
	c := NewContinuation(func(v Value) { got = v })
	c.Invoke(Word(7))
	if w, ok := got.(Word); !ok || w != 7 {
		t.Fatalf("invoke callback received %#v, want Word(7)", got)
	}
}

func TestContinuationDoubleInvokePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("second Invoke did not panic")
		}
	}()
	c := NewContinuation(func(Value) {})
	c.Invoke(Null{})
	c.Invoke(Null{})
}

func TestTreeAndTableHaveDistinctTypeTags(t *testing.T) {
	alloc := mem.NewAllocator(64)
	tbl := NewTable(pgtbl.NewTable(alloc, pgtbl.Level1G))
	tr := NewTree(1)
	if tbl.Type() == tr.Type() {
		t.Fatalf("Table and Tree share a type tag: %v", tbl.Type())
	}
}
