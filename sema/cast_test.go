package sema

import (
	"errors"
	"math/big"
	"testing"

	"github.com/chazu/quarkc/ast"
	"github.com/chazu/quarkc/config"
)

func TestClassifyPrimitives(t *testing.T) {
	r := newResolver(config.Default())
	c := r.Caster()
	reg := r.Registry()
	i8, i16 := reg.MustBuiltin(PrimInt, 8), reg.MustBuiltin(PrimInt, 16)
	u8 := reg.MustBuiltin(PrimUnsigned, 8)
	b8 := reg.MustBuiltin(PrimBits, 8)
	atom := reg.Atom()

	tests := []struct {
		from, to Type
		want     Conversion
		cost     int
	}{
		{i8, i8, ConvImplicit, 0},
		{i8, i16, ConvImplicit, 8},
		{i16, i8, ConvExplicit, 0},
		{i8, u8, ConvExplicit, 0},
		{u8, i8, ConvExplicit, 0},
		{i8, b8, ConvExplicit, 0},
		{reg.MustBuiltin(PrimBits, 96), atom, ConvExplicit, 0},
		{atom, reg.MustBuiltin(PrimBits, 96), ConvExplicit, 0},
		{i8, atom, ConvNone, 0},
		{reg.Bool(), reg.MustBuiltin(PrimBool, 3), ConvImplicit, 2},
	}
	for _, tt := range tests {
		got, cost := c.Classify(tt.from, tt.to)
		if got != tt.want || (got == ConvImplicit && cost != tt.cost) {
			t.Errorf("Classify(%s, %s) = %s %d, want %s %d", tt.from.Name(), tt.to.Name(), got, cost, tt.want, tt.cost)
		}
	}
}

func TestCastLatticeConsistent(t *testing.T) {
	r := newResolver(config.Default())
	c := r.Caster()
	reg := r.Registry()
	var types []Type
	for _, k := range []PrimKind{PrimInt, PrimUnsigned, PrimBool, PrimUnary, PrimBits} {
		for _, w := range []int{2, 8, 32} {
			types = append(types, reg.MustBuiltin(k, w))
		}
	}
	types = append(types, reg.Atom())

	for _, from := range types {
		for _, to := range types {
			conv, _ := c.Classify(from, to)
			implicit := c.IsCastable(from, to, false)
			explicit := c.IsCastable(from, to, true)
			if implicit && !explicit {
				t.Errorf("%s -> %s implicit but not explicit", from.Name(), to.Name())
			}
			if implicit != (conv == ConvImplicit) {
				t.Errorf("%s -> %s: IsCastable(implicit) = %v, Classify = %s", from.Name(), to.Name(), implicit, conv)
			}
			if _, ok := c.ConversionCost(from, to); ok != implicit {
				t.Errorf("%s -> %s: ConversionCost ok = %v, implicit = %v", from.Name(), to.Name(), ok, implicit)
			}
		}
	}
}

func TestCastValues(t *testing.T) {
	r := newResolver(config.Default())
	c := r.Caster()
	reg := r.Registry()
	i8 := reg.MustBuiltin(PrimInt, 8)
	u8 := reg.MustBuiltin(PrimUnsigned, 8)
	b8 := reg.MustBuiltin(PrimBits, 8)
	minus1 := i8.FromInt(big.NewInt(-1))

	v, err := c.Cast(minus1, u8, false)
	if err != nil {
		t.Fatal(err)
	}
	if x, _ := v.Int(); x.Sign() != 0 {
		t.Errorf("(Unsigned(8)) -1 = %s, want 0", x)
	}

	v, err = c.Cast(minus1, b8, false)
	if err != nil {
		t.Fatal(err)
	}
	if v.Raw() != 0xFF {
		t.Errorf("(Bits(8)) -1 = %#x, want 0xff", v.Raw())
	}

	five := i8.FromInt(big.NewInt(5))
	if _, err := c.Cast(five, u8, true); err != nil {
		t.Errorf("implicit cast of a fitting constant failed: %v", err)
	}
	if _, err := c.Cast(minus1, u8, true); !errors.Is(err, ErrCastRequired) {
		t.Errorf("implicit cast of -1 to Unsigned = %v, want ErrCastRequired", err)
	}
	if _, err := c.Cast(Unknown(i8), u8, true); !errors.Is(err, ErrCastRequired) {
		t.Errorf("implicit cast of an unknown = %v, want ErrCastRequired", err)
	}
	v, err = c.Cast(Unknown(i8), u8, false)
	if err != nil || !v.IsUnknown() || !SameType(v.Type, u8) {
		t.Errorf("explicit cast of an unknown = %v, %v; want unknown Unsigned(8)", v, err)
	}
	if _, err := c.Cast(five, reg.Atom(), false); !errors.Is(err, ErrInvalidCast) {
		t.Errorf("cast of Int to Atom = %v, want ErrInvalidCast", err)
	}
}

func TestToBoolean(t *testing.T) {
	r := newResolver(config.Default())
	c := r.Caster()
	reg := r.Registry()
	b3 := reg.MustBuiltin(PrimBool, 3)

	truth, known, err := c.ToBoolean(Scalar(b3, 0b110))
	if err != nil || !known || !truth {
		t.Errorf("ToBoolean(0b110) = %v %v %v, want true", truth, known, err)
	}
	truth, known, err = c.ToBoolean(Scalar(b3, 0b100))
	if err != nil || !known || truth {
		t.Errorf("ToBoolean(0b100) = %v %v %v, want false", truth, known, err)
	}
	if _, known, err = c.ToBoolean(Unknown(b3)); err != nil || known {
		t.Errorf("ToBoolean(unknown) known = %v, err = %v", known, err)
	}
	if _, _, err = c.ToBoolean(reg.MustBuiltin(PrimInt, 32).FromInt(big.NewInt(2))); !errors.Is(err, ErrCastRequired) {
		t.Errorf("ToBoolean(Int 2) = %v, want ErrCastRequired", err)
	}
}

func TestBinaryOpCheck(t *testing.T) {
	r := newResolver(config.Default())
	c := r.Caster()
	reg := r.Registry()
	i8, i16 := reg.MustBuiltin(PrimInt, 8), reg.MustBuiltin(PrimInt, 16)
	u32 := reg.MustBuiltin(PrimUnsigned, 32)

	lc, rc := c.BinaryOpCheck(ast.OpAdd, i8, Unknown(i16))
	if lc.Status != CheckImplicitCast || !SameType(lc.Suggested, i16) || rc.Status != CheckOk {
		t.Errorf("Int(8) + Int(16) = %s/%s, want implicit/ok to Int(16)", lc.Status, rc.Status)
	}
	_, rc = c.BinaryOpCheck(ast.OpAdd, i16, Unknown(u32))
	if rc.Status != CheckExplicitCast {
		t.Errorf("Int(16) + unknown Unsigned = %s, want explicit cast", rc.Status)
	}
	_, rc = c.BinaryOpCheck(ast.OpAdd, i16, u32.FromInt(big.NewInt(7)))
	if rc.Status != CheckImplicitCast {
		t.Errorf("Int(16) + Unsigned 7 = %s, want implicit cast", rc.Status)
	}
	lc, _ = c.BinaryOpCheck(ast.OpAdd, reg.Bool(), Unknown(i8))
	if lc.Status != CheckIncompatible {
		t.Errorf("Bool + Int = %s, want incompatible", lc.Status)
	}
	lc, rc = c.BinaryOpCheck(ast.OpLogAnd, reg.Bool(), Unknown(reg.Bool()))
	if lc.Status != CheckOk || rc.Status != CheckOk {
		t.Errorf("Bool && Bool = %s/%s, want ok", lc.Status, rc.Status)
	}
}

func TestArithmetic(t *testing.T) {
	r := newResolver(config.Default())
	c := r.Caster()
	reg := r.Registry()
	i8 := reg.MustBuiltin(PrimInt, 8)
	u8 := reg.MustBuiltin(PrimUnsigned, 8)
	n := func(p *PrimType, x int64) RValue { return p.FromInt(big.NewInt(x)) }
	get := func(v RValue, err error) int64 {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
		x, _ := v.Int()
		return x.Int64()
	}

	tests := []struct {
		name string
		op   ast.Op
		l, r RValue
		want int64
	}{
		{"add saturates", ast.OpAdd, n(i8, 100), n(i8, 100), 127},
		{"sub saturates", ast.OpSub, n(i8, -100), n(i8, 100), -128},
		{"unsigned floor", ast.OpSub, n(u8, 3), n(u8, 5), 0},
		{"mul", ast.OpMul, n(i8, -3), n(i8, 7), -21},
		{"div truncates", ast.OpDiv, n(i8, -7), n(i8, 2), -3},
		{"mod", ast.OpMod, n(i8, -7), n(i8, 2), -1},
		{"and", ast.OpAnd, n(u8, 0xF0), n(u8, 0x3C), 0x30},
		{"xor", ast.OpXor, n(u8, 0xF0), n(u8, 0x3C), 0xCC},
	}
	for _, tt := range tests {
		if got := get(c.applyBinary(tt.op, tt.l, tt.r, ast.Span{})); got != tt.want {
			t.Errorf("%s: got %d, want %d", tt.name, got, tt.want)
		}
	}

	if _, err := c.applyBinary(ast.OpDiv, n(i8, 1), n(i8, 0), ast.Span{}); !errors.Is(err, ErrDivisionByZero) {
		t.Errorf("1/0 = %v, want ErrDivisionByZero", err)
	}
	if _, err := c.applyBinary(ast.OpMod, Unknown(i8), n(i8, 0), ast.Span{}); !errors.Is(err, ErrDivisionByZero) {
		t.Errorf("x%%0 = %v, want ErrDivisionByZero", err)
	}
	if v, _ := c.applyBinary(ast.OpAdd, Unknown(i8), n(i8, 1), ast.Span{}); !v.IsUnknown() {
		t.Error("unknown + 1 is known")
	}

	shr, err := c.applyBinary(ast.OpShr, n(i8, -8), n(reg.Unsigned(), 1), ast.Span{})
	if got := get(shr, err); got != -4 {
		t.Errorf("-8 >> 1 = %d, want -4", got)
	}
	shl, err := c.applyBinary(ast.OpShl, n(u8, 0x81), n(reg.Unsigned(), 1), ast.Span{})
	if got := get(shl, err); got != 0x02 {
		t.Errorf("0x81 << 1 = %#x, want 0x02", got)
	}

	neg, err := c.applyUnary(ast.OpNeg, n(u8, 200), ast.Span{})
	if got := get(neg, err); got != -200 {
		t.Errorf("-(Unsigned(8) 200) = %d, want -200", got)
	}
	if p := neg.Type.Basic().(*PrimType); p.Prim != PrimInt || p.Width != 9 {
		t.Errorf("-(Unsigned(8)) typed %s, want Int(9)", neg.Type.Name())
	}
}

func TestReferenceBinding(t *testing.T) {
	r := newResolver(config.Default())
	c := r.Caster()
	reg := r.Registry()
	u8, i8 := reg.MustBuiltin(PrimUnsigned, 8), reg.MustBuiltin(PrimInt, 8)
	ref := u8.RefOf()
	rt := ref.Basic().(*RefType)

	if conv, _ := c.Classify(u8, ref); conv != ConvNone {
		t.Errorf("Classify(%s, %s) = %s, want none", u8.Name(), ref.Name(), conv)
	}
	if c.IsCastable(u8, ref, true) {
		t.Errorf("a %s value is castable to %s", u8.Name(), ref.Name())
	}
	if _, err := c.Cast(Scalar(u8, 3), ref, false); !errors.Is(err, ErrInvalidCast) {
		t.Errorf("Cast to a reference = %v, want ErrInvalidCast", err)
	}
	if conv, cost := c.ClassifyBinding(u8, rt); conv != ConvImplicit || cost != 0 {
		t.Errorf("ClassifyBinding(%s, %s) = %s %d, want implicit 0", u8.Name(), ref.Name(), conv, cost)
	}
	if conv, _ := c.ClassifyBinding(i8, rt); conv != ConvNone {
		t.Errorf("ClassifyBinding(%s, %s) = %s, want none", i8.Name(), ref.Name(), conv)
	}

	b := newTB()
	u := func() *ast.TypeRef { return b.typ("Unsigned", b.lit(8)) }
	q := b.quark("Q", b.fun(b.typ("Int"), "viaRef", nil,
		b.local(u(), "x", b.lit(3)),
		b.local(b.ref(u()), "r", b.name("x")),
		b.expr(b.assign(b.name("r"), b.lit(5))),
		b.ret(b.cast(b.typ("Int"), b.name("x"))),
	))
	p, sink := b.analyze(t, config.Default(), q, b.constant(b.typ("Int"), "stored", b.call(b.member(b.constantOf("Q"), "viaRef"))))
	if got := constInt(t, p, "stored"); got != 5 {
		dumpDiags(t, sink)
		t.Errorf("store through a bound reference: x = %d, want 5", got)
	}
}
