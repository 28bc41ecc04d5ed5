package sema

import (
	"github.com/chazu/quarkc/ast"
	"github.com/chazu/quarkc/bits"
	"github.com/chazu/quarkc/diag"
)

// Conversion is how one type converts to another.
type Conversion uint8

const (
	ConvNone Conversion = iota
	ConvImplicit
	ConvExplicit
)

func (c Conversion) String() string {
	switch c {
	case ConvImplicit:
		return "implicit"
	case ConvExplicit:
		return "explicit"
	}
	return "none"
}

// Caster applies the conversion lattice to types and values.
type Caster struct {
	r *Resolver
}

// Classify returns how a value of type from converts to type to, and the
// cost of the conversion when it is implicit. Identity is implicit and free.
func (c *Caster) Classify(from, to Type) (Conversion, int) {
	if SameType(from, to) {
		return ConvImplicit, 0
	}
	fb, tb := from.Basic(), to.Basic()
	switch f := fb.(type) {
	case *PrimType:
		switch t := tb.(type) {
		case *PrimType:
			return primConversion(f, t)
		case *Class:
			if f.Prim == PrimAtom && t.IsElement() {
				return ConvExplicit, 0
			}
		}

	case *Class:
		switch t := tb.(type) {
		case *PrimType:
			if t.Prim == PrimAtom {
				if f.IsElement() {
					return ConvImplicit, 1
				}
				return ConvNone, 0
			}
			if f.ClassKind == ast.Quark {
				if fn := c.conversionFunc(f, t); fn != nil {
					conv, cost := primConversion(fn.Return.Basic().(*PrimType), t)
					if conv == ConvImplicit {
						return ConvImplicit, cost + 1
					}
					return ConvExplicit, 0
				}
			}
		case *Class:
			if f.IsA(t) {
				return ConvExplicit, 0
			}
		}

	case *RefType:
		if t, ok := tb.(*RefType); ok {
			return refConversion(f, t)
		}
		conv, cost := c.Classify(f.Elem, to)
		if conv == ConvNone && c.r.cfg.Analysis.CastDerefAsDynamicType {
			if fc, ok := f.Elem.Basic().(*Class); ok && fc.ClassKind == ast.Quark {
				if tp, ok := tb.(*PrimType); ok && tp.Prim == PrimAtom {
					return ConvExplicit, 0
				}
			}
		}
		return conv, cost
	}
	return ConvNone, 0
}

// ClassifyBinding returns how storage of type from binds to a reference of
// type to. A value never converts to a reference; only storage binds.
func (c *Caster) ClassifyBinding(from Type, to *RefType) (Conversion, int) {
	if SameType(from, to.Elem) {
		return ConvImplicit, 0
	}
	fc, ok1 := from.Basic().(*Class)
	tc, ok2 := to.Elem.Basic().(*Class)
	if ok1 && ok2 {
		if d, ok := fc.Distance(tc); ok {
			return ConvImplicit, d
		}
	}
	return ConvNone, 0
}

// bindingCost is ConversionCost for storage binding to a reference
// parameter.
func (c *Caster) bindingCost(from, to Type) (int, bool) {
	rt, ok := to.Basic().(*RefType)
	if !ok {
		return 0, false
	}
	conv, cost := c.ClassifyBinding(from, rt)
	if conv != ConvImplicit {
		return 0, false
	}
	return cost, true
}

func primConversion(f, t *PrimType) (Conversion, int) {
	if f.Prim == PrimAtom || t.Prim == PrimAtom {
		if f.Prim == PrimBits || t.Prim == PrimBits {
			return ConvExplicit, 0
		}
		return ConvNone, 0
	}
	if f.Prim == t.Prim {
		if t.Width >= f.Width {
			return ConvImplicit, t.Width - f.Width
		}
		return ConvExplicit, 0
	}
	return ConvExplicit, 0
}

func refConversion(f, t *RefType) (Conversion, int) {
	if SameType(f.Elem, t.Elem) {
		return ConvImplicit, 0
	}
	fc, ok1 := f.Elem.Basic().(*Class)
	tc, ok2 := t.Elem.Basic().(*Class)
	if !ok1 || !ok2 {
		return ConvNone, 0
	}
	if d, ok := fc.Distance(tc); ok {
		return ConvImplicit, d
	}
	if _, ok := tc.Distance(fc); ok {
		return ConvExplicit, 0
	}
	return ConvNone, 0
}

// IsCastable reports whether from converts to to, implicitly unless
// explicit is set.
func (c *Caster) IsCastable(from, to Type, explicit bool) bool {
	conv, _ := c.Classify(from, to)
	return conv == ConvImplicit || explicit && conv == ConvExplicit
}

// ConversionCost returns the cost of an implicit conversion, or false when
// none exists.
func (c *Caster) ConversionCost(from, to Type) (int, bool) {
	conv, cost := c.Classify(from, to)
	if conv != ConvImplicit {
		return 0, false
	}
	return cost, true
}

// argCost is ConversionCost for a value, counting constants that fit.
func (c *Caster) argCost(v RValue, to Type) (int, bool) {
	conv, cost := c.Classify(v.Type, to)
	switch {
	case conv == ConvImplicit:
		return cost, true
	case conv == ConvExplicit && c.fitsConstant(v, to):
		return 1, true
	}
	return 0, false
}

// fitsConstant reports whether v is a known constant that to represents
// exactly, which makes an otherwise explicit primitive cast implicit.
func (c *Caster) fitsConstant(v RValue, to Type) bool {
	if !v.IsKnown() {
		return false
	}
	f, ok1 := v.Type.Basic().(*PrimType)
	t, ok2 := to.Basic().(*PrimType)
	if !ok1 || !ok2 {
		return false
	}
	if f.Prim == PrimBool || t.Prim == PrimBool {
		return f.Prim == t.Prim
	}
	if !constantFamily(f) || !constantFamily(t) {
		return false
	}
	x, ok := v.Int()
	if !ok {
		return false
	}
	if t.Prim == PrimBits {
		return x.Sign() >= 0 && x.BitLen() <= t.Width
	}
	return t.Fits(x)
}

func constantFamily(p *PrimType) bool {
	switch p.Prim {
	case PrimInt, PrimUnsigned, PrimUnary:
		return true
	case PrimBits:
		return p.scalar()
	}
	return false
}

// Cast converts v to type to. An implicit cast fails with CastRequired where
// only an explicit one exists; a cast with no conversion fails with
// InvalidCast.
func (c *Caster) Cast(v RValue, to Type, implicit bool) (RValue, error) {
	if !v.IsValid() {
		return RValue{}, errorf(diag.Incompatible, zeroSpan, "expression has no value")
	}
	if SameType(v.Type, to) {
		return v.withType(to), nil
	}
	if to.IsPlaceholder() || v.Type.IsPlaceholder() {
		return RValue{}, errorf(diag.UnresolvedName, zeroSpan, "%s is not resolved", to.Name())
	}
	conv, _ := c.Classify(v.Type, to)
	if conv == ConvExplicit && implicit && c.fitsConstant(v, to) {
		conv = ConvImplicit
	}
	switch {
	case conv == ConvNone:
		return RValue{}, errorf(diag.InvalidCast, zeroSpan, "cannot cast %s to %s", v.Type.Name(), to.Name())
	case conv == ConvExplicit && implicit:
		return RValue{}, errorf(diag.CastRequired, zeroSpan, "explicit cast required from %s to %s", v.Type.Name(), to.Name())
	}
	if v.IsUnknown() {
		return Unknown(to), nil
	}
	return c.convert(v, to)
}

func (c *Caster) convert(v RValue, to Type) (RValue, error) {
	switch f := v.Type.Basic().(type) {
	case *PrimType:
		switch t := to.Basic().(type) {
		case *PrimType:
			return convertPrim(f, t, v, to), nil
		case *Class:
			return c.unpackAtom(v, t, to)
		}

	case *Class:
		switch t := to.Basic().(type) {
		case *PrimType:
			if t.Prim == PrimAtom {
				return c.packAtom(v.Obj(), to), nil
			}
			rv, err := c.callConversion(c.conversionFunc(f, t), v)
			if err != nil || !rv.IsKnown() {
				return Unknown(to), err
			}
			return c.Cast(rv, to, false)
		case *Class:
			o, err := upcast(v.Obj(), t)
			if err != nil {
				return RValue{}, err
			}
			return ObjectValue(to, o), nil
		}

	case *RefType:
		target := v.Ref()
		tv, err := target.Load()
		if err != nil {
			return RValue{}, err
		}
		if t, ok := to.Basic().(*RefType); ok {
			if tc, ok := t.Elem.Basic().(*Class); ok && tv.IsKnown() {
				if dyn := tv.Obj().Class; !dyn.IsA(tc) {
					return RValue{}, errorf(diag.InvalidCast, zeroSpan, "%s is not a %s", dyn.name, tc.name)
				}
			}
			return RefValue(to, target), nil
		}
		if !tv.IsKnown() {
			return Unknown(to), nil
		}
		if !c.r.cfg.Analysis.CastDerefAsDynamicType {
			if tv, err = c.Cast(tv, f.Elem, false); err != nil {
				return RValue{}, err
			}
		} else if o := tv.Obj(); o != nil {
			tv = ObjectValue(o.Class, o)
		}
		return c.Cast(tv, to, false)
	}
	return RValue{}, errorf(diag.InvalidCast, zeroSpan, "cannot cast %s to %s", v.Type.Name(), to.Name())
}

// convertPrim converts between primitives. Numeric families convert by
// value with saturation; anything involving Bits or Atom copies the low bits.
func convertPrim(f, t *PrimType, v RValue, to Type) RValue {
	if f.Prim == PrimBits || t.Prim == PrimBits || f.Prim == PrimAtom || t.Prim == PrimAtom {
		pat := v.Pattern()
		out := bits.New(t.Width)
		n := pat.Len()
		if n > t.Width {
			n = t.Width
		}
		out.View().WriteVector(0, pat.ReadVector(0, n))
		return t.Load(out.View(), 0).withType(to)
	}
	return t.FromInt(f.Decode(v.Raw())).withType(to)
}

// ---------------------------------------------------------------------------
// Atoms
// ---------------------------------------------------------------------------

// packAtom places o behind a header carrying its class ID.
func (c *Caster) packAtom(o *Object, to Type) RValue {
	arch := c.r.reg.Arch()
	vec := bits.New(arch.AtomBits)
	vec.Write(0, arch.ElementHeaderBits, uint64(o.Class.ClassID()))
	vec.View().WriteVector(arch.ElementHeaderBits, o.Data)
	return VectorValue(to, vec)
}

// atomClass returns the class named by an atom's header, or nil.
func (c *Caster) atomClass(v RValue) *Class {
	hdr := c.r.reg.Arch().ElementHeaderBits
	id := v.Vec().Read(0, hdr)
	if id == 0 || id > uint64(^uint32(0)) {
		return nil
	}
	return c.r.reg.ClassByID(uint32(id))
}

// unpackAtom extracts an element from an atom, checking the header when it
// names a class.
func (c *Caster) unpackAtom(v RValue, t *Class, to Type) (RValue, error) {
	if err := c.r.requireLayout(t, zeroSpan, false); err != nil {
		return RValue{}, err
	}
	hdr := c.r.reg.Arch().ElementHeaderBits
	dyn := t
	if v.Vec().Read(0, hdr) != 0 {
		dyn = c.atomClass(v)
		if dyn == nil || !dyn.IsA(t) {
			return RValue{}, errorf(diag.InvalidCast, zeroSpan, "atom does not hold a %s", t.name)
		}
	}
	o := &Object{Class: dyn, Data: v.Vec().ReadVector(hdr, dyn.size)}
	if dyn != t {
		uo, err := upcast(o, t)
		if err != nil {
			return RValue{}, err
		}
		o = uo
	}
	return ObjectValue(to, o), nil
}

// ---------------------------------------------------------------------------
// Conversion functions and truth
// ---------------------------------------------------------------------------

var conversionNames = map[PrimKind][]string{
	PrimInt:      {"toInt"},
	PrimUnsigned: {"toUnsigned", "toInt"},
	PrimBool:     {"toBool"},
	PrimUnary:    {"toInt", "toUnsigned"},
	PrimBits:     {"toUnsigned", "toInt"},
}

// conversionFunc returns the quark member that converts cl to family t.
func (c *Caster) conversionFunc(cl *Class, t *PrimType) *Function {
	for _, name := range conversionNames[t.Prim] {
		id, ok := c.r.names.Lookup(name)
		if !ok {
			continue
		}
		for _, fn := range cl.LookupFun(id) {
			if len(fn.Params) != 0 {
				continue
			}
			if p, ok := fn.Return.Basic().(*PrimType); ok && p.Prim != PrimAtom {
				return fn
			}
		}
	}
	return nil
}

func (c *Caster) callConversion(fn *Function, v RValue) (RValue, error) {
	if fn == nil {
		return RValue{}, errorf(diag.InvalidCast, zeroSpan, "%s has no conversion function", v.Type.Name())
	}
	self := NewVar(ast.NoIdent, v.Type, v)
	out, err := c.r.eval.invoke(fn, self, nil, zeroSpan)
	if err != nil {
		return RValue{}, err
	}
	rv, ok := out.(RValue)
	if !ok {
		return Unknown(fn.Return), nil
	}
	return rv, nil
}

// ToBoolean returns the truth of v. known is false when v is not known at
// compile time.
func (c *Caster) ToBoolean(v RValue) (truth, known bool, err error) {
	if p, ok := v.Type.Basic().(*PrimType); !ok || p.Prim != PrimBool {
		if v, err = c.Cast(v, c.r.reg.Bool(), true); err != nil {
			return false, false, err
		}
	}
	if !v.IsKnown() {
		return false, false, nil
	}
	x, ok := v.Int()
	if !ok {
		return false, false, errorf(diag.Incompatible, zeroSpan, "%s is not a condition", v.Type.Name())
	}
	return x.Sign() != 0, true, nil
}
