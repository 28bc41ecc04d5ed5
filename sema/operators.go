package sema

import (
	"math/big"

	"github.com/chazu/quarkc/ast"
	"github.com/chazu/quarkc/bits"
	"github.com/chazu/quarkc/diag"
)

// CheckStatus is the verdict on one operand of a binary operator.
type CheckStatus uint8

const (
	CheckOk CheckStatus = iota
	CheckImplicitCast
	CheckExplicitCast
	CheckIncompatible
)

func (s CheckStatus) String() string {
	switch s {
	case CheckOk:
		return "ok"
	case CheckImplicitCast:
		return "implicit cast required"
	case CheckExplicitCast:
		return "explicit cast required"
	}
	return "incompatible"
}

// OperandCheck says whether an operand can be used as is, and if not, the
// type it must be cast to.
type OperandCheck struct {
	Status    CheckStatus
	Suggested Type
}

var (
	arithmeticFamilies = []PrimKind{PrimInt, PrimUnsigned, PrimUnary}
	bitwiseFamilies    = []PrimKind{PrimInt, PrimUnsigned, PrimBits, PrimBool}
	equalityFamilies   = []PrimKind{PrimInt, PrimUnsigned, PrimUnary, PrimBits, PrimBool}
)

// valueType strips a reference.
func valueType(t Type) Type {
	if r, ok := t.Basic().(*RefType); ok {
		return r.Elem
	}
	return t
}

// BinaryOpCheck decides how the operands of op must be cast to a common
// type. The right operand is a value so constants that fit count as
// implicitly castable.
func (c *Caster) BinaryOpCheck(op ast.Op, lhs Type, rhs RValue) (OperandCheck, OperandCheck) {
	lt, rt := valueType(lhs), valueType(rhs.Type)
	bad := OperandCheck{Status: CheckIncompatible}
	switch {
	case op.IsLogical():
		b := c.r.reg.Bool()
		return c.operandCheck(lt, nil, b), c.operandCheck(rt, &rhs, b)

	case op.IsShift():
		lp, ok := lt.Basic().(*PrimType)
		if !ok || !inFamilies(lp, []PrimKind{PrimInt, PrimUnsigned, PrimBits}) {
			return bad, c.operandCheck(rt, &rhs, c.r.reg.Unsigned())
		}
		return OperandCheck{Status: CheckOk}, c.operandCheck(rt, &rhs, c.r.reg.Unsigned())

	case op == ast.OpEq || op == ast.OpNe:
		if SameType(lt, rt) {
			return OperandCheck{Status: CheckOk}, OperandCheck{Status: CheckOk}
		}
		return c.commonCheck(lt, rt, &rhs, equalityFamilies)

	case op.IsComparison(), op.IsArithmetic():
		return c.commonCheck(lt, rt, &rhs, arithmeticFamilies)

	case op.IsBitwise():
		return c.commonCheck(lt, rt, &rhs, bitwiseFamilies)
	}
	return bad, bad
}

func inFamilies(p *PrimType, fams []PrimKind) bool {
	for _, f := range fams {
		if p.Prim == f {
			return true
		}
	}
	return false
}

// commonCheck picks the common type: the left operand's type when the right
// is a constant it holds, otherwise the left operand's family at the wider
// of the two widths.
func (c *Caster) commonCheck(lt, rt Type, rhs *RValue, fams []PrimKind) (OperandCheck, OperandCheck) {
	bad := OperandCheck{Status: CheckIncompatible}
	lp, lok := lt.Basic().(*PrimType)
	rp, rok := rt.Basic().(*PrimType)
	lok = lok && inFamilies(lp, fams)
	rok = rok && inFamilies(rp, fams)
	switch {
	case !lok && !rok:
		return bad, bad
	case !lok:
		return bad, OperandCheck{Status: CheckOk}
	case !rok:
		return OperandCheck{Status: CheckOk}, bad
	case rhs != nil && c.fitsConstant(*rhs, lp):
		return OperandCheck{Status: CheckOk, Suggested: lt}, c.operandCheck(rt, rhs, lt)
	}
	width := lp.Width
	if rp.Width > width {
		width = rp.Width
	}
	common, err := c.r.reg.Builtin(lp.Prim, width)
	if err != nil {
		return bad, bad
	}
	return c.operandCheck(lt, nil, common), c.operandCheck(rt, rhs, common)
}

func (c *Caster) operandCheck(from Type, v *RValue, to Type) OperandCheck {
	if SameType(from, to) {
		return OperandCheck{Status: CheckOk, Suggested: to}
	}
	conv, _ := c.Classify(from, to)
	if conv == ConvExplicit && v != nil && c.fitsConstant(*v, to) {
		conv = ConvImplicit
	}
	switch conv {
	case ConvImplicit:
		return OperandCheck{Status: CheckImplicitCast, Suggested: to}
	case ConvExplicit:
		return OperandCheck{Status: CheckExplicitCast, Suggested: to}
	}
	return OperandCheck{Status: CheckIncompatible, Suggested: to}
}

// ---------------------------------------------------------------------------
// Application
// ---------------------------------------------------------------------------

// applyBinary applies op to operands already cast to their common type (the
// right operand of a shift is Unsigned).
func (c *Caster) applyBinary(op ast.Op, l, r RValue, span ast.Span) (RValue, error) {
	if (op == ast.OpDiv || op == ast.OpMod) && r.IsKnown() {
		if y, ok := r.Int(); ok && y.Sign() == 0 {
			return RValue{}, errorf(diag.DivisionByZero, span, "division by zero")
		}
	}
	resType := l.Type
	if op.IsComparison() {
		resType = c.r.reg.Bool()
	}
	if !l.IsKnown() || !r.IsKnown() {
		return Unknown(resType), nil
	}

	switch {
	case op == ast.OpEq || op == ast.OpNe:
		eq := l.Pattern().Equal(r.Pattern())
		if p, ok := l.Type.Basic().(*PrimType); ok && p.Numeric() {
			x, _ := l.Int()
			y, _ := r.Int()
			eq = x.Cmp(y) == 0
		}
		return boolValue(c.r.reg.Bool(), eq == (op == ast.OpEq)), nil

	case op.IsComparison():
		x, ok1 := l.Int()
		y, ok2 := r.Int()
		if !ok1 || !ok2 {
			return RValue{}, errorf(diag.Incompatible, span, "operator %s does not apply to %s", op, l.Type.Name())
		}
		cmp := x.Cmp(y)
		var res bool
		switch op {
		case ast.OpLt:
			res = cmp < 0
		case ast.OpLe:
			res = cmp <= 0
		case ast.OpGt:
			res = cmp > 0
		case ast.OpGe:
			res = cmp >= 0
		}
		return boolValue(c.r.reg.Bool(), res), nil

	case op.IsArithmetic():
		p := l.Type.Basic().(*PrimType)
		x, _ := l.Int()
		y, _ := r.Int()
		z := new(big.Int)
		switch op {
		case ast.OpAdd:
			z.Add(x, y)
		case ast.OpSub:
			z.Sub(x, y)
		case ast.OpMul:
			z.Mul(x, y)
		case ast.OpDiv:
			z.Quo(x, y)
		case ast.OpMod:
			z.Rem(x, y)
		}
		return p.FromInt(z).withType(l.Type), nil

	case op.IsBitwise():
		return bitwise(op, l, r), nil

	case op.IsShift():
		n, _ := r.Int()
		return shift(op, l, int(n.Int64())), nil
	}
	return RValue{}, errorf(diag.Incompatible, span, "unsupported operator %s", op)
}

func boolValue(t *PrimType, b bool) RValue {
	if b {
		return Scalar(t, widthMask(t.Width))
	}
	return Scalar(t, 0)
}

func bitwise(op ast.Op, l, r RValue) RValue {
	apply := func(a, b uint64) uint64 {
		switch op {
		case ast.OpAnd:
			return a & b
		case ast.OpOr:
			return a | b
		}
		return a ^ b
	}
	if l.Vec() == nil {
		return Scalar(l.Type, apply(l.Raw(), r.Raw()))
	}
	a, b := l.Vec(), r.Vec()
	out := bits.New(a.Len())
	for off := 0; off < a.Len(); off += 64 {
		w := min(64, a.Len()-off)
		out.Write(off, w, apply(a.Read(off, w), b.Read(off, w)))
	}
	return VectorValue(l.Type, out)
}

// shift moves the bits of l by n. Right shifts of Int replicate the sign
// bit.
func shift(op ast.Op, l RValue, n int) RValue {
	p := l.Type.Basic().(*PrimType)
	src := l.Pattern()
	width := src.Len()
	fill := uint64(0)
	if op == ast.OpShr && p.Prim == PrimInt && src.Read(width-1, 1) == 1 {
		fill = 1
	}
	out := bits.New(width)
	for i := 0; i < width; i++ {
		var j int
		if op == ast.OpShl {
			j = i - n
		} else {
			j = i + n
		}
		bit := fill
		if j >= 0 && j < width {
			bit = src.Read(j, 1)
		} else if op == ast.OpShl {
			bit = 0
		}
		out.Write(i, 1, bit)
	}
	return p.Load(out.View(), 0).withType(l.Type)
}

// applyUnary applies a prefix operator other than logical not.
func (c *Caster) applyUnary(op ast.Op, v RValue, span ast.Span) (RValue, error) {
	p, ok := valueType(v.Type).Basic().(*PrimType)
	if !ok || p.Prim == PrimAtom {
		return RValue{}, errorf(diag.Incompatible, span, "operator %s does not apply to %s", op, v.Type.Name())
	}
	switch op {
	case ast.OpPlus:
		if !p.Arithmetic() {
			break
		}
		return v, nil

	case ast.OpNeg:
		if !p.Arithmetic() {
			break
		}
		rt := Type(v.Type)
		if p.Prim != PrimInt {
			rt = c.r.reg.MustBuiltin(PrimInt, min(64, p.Width+1))
		}
		if !v.IsKnown() {
			return Unknown(rt), nil
		}
		x, _ := v.Int()
		return rt.Basic().(*PrimType).FromInt(new(big.Int).Neg(x)).withType(rt), nil

	case ast.OpBitNot:
		if p.Prim == PrimUnary {
			break
		}
		if !v.IsKnown() {
			return v, nil
		}
		if v.Vec() == nil {
			return Scalar(v.Type, ^v.Raw()), nil
		}
		src := v.Vec()
		out := bits.New(src.Len())
		for off := 0; off < src.Len(); off += 64 {
			w := min(64, src.Len()-off)
			out.Write(off, w, ^src.Read(off, w))
		}
		return VectorValue(v.Type, out), nil
	}
	return RValue{}, errorf(diag.Incompatible, span, "operator %s does not apply to %s", op, v.Type.Name())
}
