package sema

import (
	"errors"
	"math/big"
	"testing"

	"github.com/chazu/quarkc/bits"
	"github.com/chazu/quarkc/config"
)

func TestBuiltinMemoized(t *testing.T) {
	reg := NewRegistry(config.Default())

	a, err := reg.Builtin(PrimInt, 8)
	if err != nil {
		t.Fatalf("Builtin(Int, 8): %v", err)
	}
	b := reg.MustBuiltin(PrimInt, 8)
	if a != b {
		t.Error("Int(8) not memoized")
	}
	if a.ID() == reg.MustBuiltin(PrimUnsigned, 8).ID() {
		t.Error("Int(8) and Unsigned(8) share an ID")
	}
	if a.Name() != "Int(8)" {
		t.Errorf("Name() = %q, want Int(8)", a.Name())
	}
	if reg.Atom().Width != 96 {
		t.Errorf("Atom width = %d, want 96", reg.Atom().Width)
	}
}

func TestBuiltinInvalidWidth(t *testing.T) {
	reg := NewRegistry(config.Default())
	tests := []struct {
		kind  PrimKind
		width int
	}{
		{PrimInt, 1},
		{PrimInt, 65},
		{PrimUnsigned, 0},
		{PrimBool, 65},
		{PrimBits, bits.MaxBits + 1},
	}
	for _, tt := range tests {
		_, err := reg.Builtin(tt.kind, tt.width)
		if !errors.Is(err, ErrInvalidWidth) {
			t.Errorf("Builtin(%s, %d) error = %v, want ErrInvalidWidth", tt.kind, tt.width, err)
		}
	}
}

func TestDerivedTypesMemoized(t *testing.T) {
	reg := NewRegistry(config.Default())
	u8 := reg.MustBuiltin(PrimUnsigned, 8)

	if u8.ArrayOf(3) != u8.ArrayOf(3) {
		t.Error("ArrayOf not memoized")
	}
	if u8.RefOf() != u8.RefOf() {
		t.Error("RefOf not memoized")
	}
	if got := u8.ArrayOf(3).BitSize(); got != 24 {
		t.Errorf("Unsigned(8)[3] size = %d, want 24", got)
	}

	alias := reg.NewAlias("Byte", u8)
	if !SameType(alias, u8) {
		t.Error("alias is not the same type as its target")
	}
	if alias.ArrayOf(3) != u8.ArrayOf(3) {
		t.Error("array of alias differs from array of target")
	}

	ph := reg.NewPlaceholder("Later")
	if !ph.IsPlaceholder() {
		t.Fatal("fresh placeholder is not a placeholder")
	}
	ph.Bind(alias)
	if ph.IsPlaceholder() || !SameType(ph, u8) {
		t.Error("bound placeholder does not denote its target")
	}
	if ph.BitSize() != 8 {
		t.Errorf("bound placeholder size = %d, want 8", ph.BitSize())
	}
}

func TestPrimitiveEncoding(t *testing.T) {
	reg := NewRegistry(config.Default())

	b3 := reg.MustBuiltin(PrimBool, 3)
	if b3.Decode(0b011).Sign() == 0 {
		t.Error("Bool(3) 0b011 decoded false, want true")
	}
	if b3.Decode(0b001).Sign() != 0 {
		t.Error("Bool(3) 0b001 decoded true, want false")
	}

	un := reg.MustBuiltin(PrimUnary, 5)
	v := un.FromInt(big.NewInt(3))
	if v.Raw() != 0b111 {
		t.Errorf("Unary(5) 3 = %b, want 111", v.Raw())
	}
	if got := un.FromInt(big.NewInt(9)); got.Raw() != 0b11111 {
		t.Errorf("Unary(5) 9 = %b, want saturated 11111", got.Raw())
	}

	i8 := reg.MustBuiltin(PrimInt, 8)
	if got := i8.Decode(0xFF).Int64(); got != -1 {
		t.Errorf("Int(8) 0xFF = %d, want -1", got)
	}
	if x, _ := i8.FromInt(big.NewInt(300)).Int(); x.Int64() != 127 {
		t.Errorf("Int(8) 300 = %d, want 127", x)
	}
	if x, _ := i8.FromInt(big.NewInt(-300)).Int(); x.Int64() != -128 {
		t.Errorf("Int(8) -300 = %d, want -128", x)
	}

	u4 := reg.MustBuiltin(PrimUnsigned, 4)
	if x, _ := u4.FromInt(big.NewInt(-2)).Int(); x.Sign() != 0 {
		t.Errorf("Unsigned(4) -2 = %d, want 0", x)
	}
}

func TestVectorValues(t *testing.T) {
	reg := NewRegistry(config.Default())
	b100 := reg.MustBuiltin(PrimBits, 100)

	z := Zero(b100)
	if z.Vec() == nil || z.Vec().Len() != 100 {
		t.Fatalf("Zero(Bits(100)) is not a 100-bit vector")
	}
	vec := bits.New(100)
	vec.Write(90, 4, 0xA)
	v := VectorValue(b100, vec)
	if v.Equal(z) {
		t.Error("distinct vectors compare equal")
	}
	w := NewVar(0, b100, v)
	vec.Write(90, 4, 0)
	got, _ := w.Load()
	if got.Vec().Read(90, 4) != 0xA {
		t.Error("variable shares storage with the value it was created from")
	}
}
