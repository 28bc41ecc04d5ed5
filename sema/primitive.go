package sema

import (
	"fmt"
	"math/big"
	mbits "math/bits"

	"github.com/chazu/quarkc/bits"
	"github.com/chazu/quarkc/diag"
)

// PrimKind is a primitive type family.
type PrimKind uint8

const (
	PrimInt PrimKind = iota
	PrimUnsigned
	PrimBool
	PrimUnary
	PrimBits
	PrimAtom
)

// primRange is the legal width range and default width of a family.
type primRange struct {
	name     string
	min, max int
	def      int
}

var primRanges = [...]primRange{
	PrimInt:      {"Int", 2, 64, 32},
	PrimUnsigned: {"Unsigned", 1, 64, 32},
	PrimBool:     {"Bool", 1, 64, 1},
	PrimUnary:    {"Unary", 1, 64, 32},
	PrimBits:     {"Bits", 1, bits.MaxBits, 32},
	PrimAtom:     {"Atom", 0, 0, 0}, // width comes from the architecture
}

func (k PrimKind) String() string {
	if int(k) < len(primRanges) {
		return primRanges[k].name
	}
	return fmt.Sprintf("PrimKind(%d)", k)
}

// DefaultWidth returns the width used when a family is named without one.
func (k PrimKind) DefaultWidth() int { return primRanges[k].def }

// primKinds maps builtin type names to families.
var primKinds = map[string]PrimKind{
	"Int":      PrimInt,
	"Unsigned": PrimUnsigned,
	"Bool":     PrimBool,
	"Unary":    PrimUnary,
	"Bits":     PrimBits,
	"Atom":     PrimAtom,
}

// PrimType is a primitive type of a fixed bit width.
type PrimType struct {
	typeBase
	Prim  PrimKind
	Width int
}

func (t *PrimType) Name() string {
	if t.Prim == PrimAtom {
		return "Atom"
	}
	return fmt.Sprintf("%s(%d)", t.Prim, t.Width)
}

func (t *PrimType) Kind() TypeKind { return KindPrim }
func (t *PrimType) BitSize() int   { return t.Width }

// scalar reports whether values of t fit a single machine word.
func (t *PrimType) scalar() bool {
	return t.Prim != PrimAtom && t.Width <= 64
}

// Arithmetic reports whether + - * / % apply to t.
func (t *PrimType) Arithmetic() bool {
	switch t.Prim {
	case PrimInt, PrimUnsigned, PrimUnary:
		return true
	}
	return false
}

// Numeric reports whether values of t decode to an integer.
func (t *PrimType) Numeric() bool {
	return t.scalar()
}

func (t *PrimType) Load(v bits.View, off int) RValue {
	if t.scalar() {
		return Scalar(t, v.Read(off, t.Width))
	}
	return VectorValue(t, v.ReadVector(off, t.Width))
}

func (t *PrimType) Store(v bits.View, off int, rv RValue) error {
	if rv.IsUnknown() {
		return nil
	}
	switch rv.kind {
	case payloadScalar:
		if !t.scalar() {
			break
		}
		v.Write(off, t.Width, rv.scalar)
		return nil
	case payloadVector:
		if t.scalar() || rv.vec.Len() != t.Width {
			break
		}
		v.WriteVector(off, rv.vec)
		return nil
	}
	return errorf(diag.Incompatible, zeroSpan, "cannot store %s into %s", rv.Type.Name(), t.Name())
}

// ---------------------------------------------------------------------------
// Numeric interpretation
// ---------------------------------------------------------------------------

// Min returns the smallest value of t.
func (t *PrimType) Min() *big.Int {
	if t.Prim == PrimInt {
		x := new(big.Int).Lsh(big.NewInt(1), uint(t.Width-1))
		return x.Neg(x)
	}
	return new(big.Int)
}

// Max returns the largest value of t.
func (t *PrimType) Max() *big.Int {
	switch t.Prim {
	case PrimInt:
		x := new(big.Int).Lsh(big.NewInt(1), uint(t.Width-1))
		return x.Sub(x, big.NewInt(1))
	case PrimUnary:
		return big.NewInt(int64(t.Width))
	case PrimBool:
		return big.NewInt(1)
	}
	x := new(big.Int).Lsh(big.NewInt(1), uint(t.Width))
	return x.Sub(x, big.NewInt(1))
}

// Decode interprets raw bits as an integer. Bool(n) is 1 when more than half
// of its bits are set; Unary(n) counts set bits.
func (t *PrimType) Decode(raw uint64) *big.Int {
	raw &= widthMask(t.Width)
	switch t.Prim {
	case PrimInt:
		if t.Width < 64 && raw>>(uint(t.Width)-1)&1 == 1 {
			raw |= ^widthMask(t.Width)
		}
		return big.NewInt(int64(raw))
	case PrimUnary:
		return big.NewInt(int64(mbits.OnesCount64(raw)))
	case PrimBool:
		if mbits.OnesCount64(raw) > t.Width/2 {
			return big.NewInt(1)
		}
		return new(big.Int)
	}
	return new(big.Int).SetUint64(raw)
}

// Clamp saturates x to the range of t.
func (t *PrimType) Clamp(x *big.Int) *big.Int {
	if lo := t.Min(); x.Cmp(lo) < 0 {
		return lo
	}
	if hi := t.Max(); x.Cmp(hi) > 0 {
		return hi
	}
	return x
}

// Encode produces raw bits for x, which must already be in range.
func (t *PrimType) Encode(x *big.Int) uint64 {
	switch t.Prim {
	case PrimInt:
		return uint64(x.Int64()) & widthMask(t.Width)
	case PrimUnary:
		return widthMask(int(x.Int64()))
	case PrimBool:
		if x.Sign() != 0 {
			return widthMask(t.Width)
		}
		return 0
	}
	return x.Uint64() & widthMask(t.Width)
}

// FromInt returns the value of t closest to x. Any non-zero x is true for
// Bool.
func (t *PrimType) FromInt(x *big.Int) RValue {
	if t.Prim == PrimBool && x.Sign() != 0 {
		return Scalar(t, widthMask(t.Width))
	}
	return Scalar(t, t.Encode(t.Clamp(x)))
}

// Fits reports whether x is representable in t without saturation.
func (t *PrimType) Fits(x *big.Int) bool {
	return x.Cmp(t.Min()) >= 0 && x.Cmp(t.Max()) <= 0
}

func widthMask(width int) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	if width <= 0 {
		return 0
	}
	return uint64(1)<<uint(width) - 1
}
