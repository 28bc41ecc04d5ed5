package sema

import (
	"math/big"

	"github.com/chazu/quarkc/ast"
	"github.com/chazu/quarkc/diag"
)

func (e *Evaluator) evalTypeOp(n *ast.TypeOpExpr, scope *Scope) (Value, error) {
	if n.Type != nil {
		t, err := e.r.ResolveTypeRef(n.Type, scope)
		if err != nil {
			return nil, err
		}
		if err := e.r.requireType(t, n.Type.Span()); err != nil {
			return nil, err
		}
		return e.typeOp(n.Op, t, n.Member, n.Span())
	}

	v, err := e.evalRaw(n.X, scope)
	if err != nil {
		return nil, err
	}
	t := valueType(v.Type)
	if err := e.r.requireType(t, n.X.Span()); err != nil {
		return nil, err
	}
	switch n.Op {
	case ast.AtomOf, ast.InstanceOf:
		if ov, ok := e.dynamicValue(v); ok {
			v, t = ov, ov.Type
		} else if v, err = e.deref(v); err != nil {
			return nil, err
		}
	}
	if n.Op == ast.AtomOf {
		c, ok := t.Basic().(*Class)
		if !ok || !c.IsElement() {
			return nil, errorf(diag.Incompatible, n.Span(), "atomof requires an element, not %s", t.Name())
		}
		if !v.IsKnown() {
			return Unknown(e.r.reg.Atom()), nil
		}
		return e.r.cast.packAtom(v.Obj(), e.r.reg.Atom()), nil
	}
	return e.typeOp(n.Op, t, n.Member, n.Span())
}

// dynamicValue loads the object a known reference is bound to, typed as
// its own class, when casts through references follow dynamic types.
func (e *Evaluator) dynamicValue(v RValue) (RValue, bool) {
	if _, ok := v.Type.Basic().(*RefType); !ok || !v.IsKnown() || !e.r.cfg.Analysis.CastDerefAsDynamicType {
		return RValue{}, false
	}
	tv, err := v.Ref().Load()
	if err != nil || !tv.IsKnown() || tv.Obj() == nil {
		return RValue{}, false
	}
	o := tv.Obj()
	return ObjectValue(o.Class, o), true
}

// TypeOp applies a type operator to t. member names the data member for
// positionof.
func (e *Evaluator) TypeOp(op ast.TypeOpKind, t Type, member ast.Ident) (RValue, error) {
	if err := e.r.requireType(t, zeroSpan); err != nil {
		return RValue{}, err
	}
	return e.typeOp(op, t, member, zeroSpan)
}

func (e *Evaluator) typeOp(op ast.TypeOpKind, t Type, member ast.Ident, span ast.Span) (RValue, error) {
	u := e.r.reg.Unsigned()
	unsigned := func(n int) RValue { return u.FromInt(big.NewInt(int64(n))) }
	c, isClass := t.Basic().(*Class)
	needClass := func() error {
		if !isClass {
			return errorf(diag.Incompatible, span, "%s requires a class, not %s", op, t.Name())
		}
		return nil
	}

	switch op {
	case ast.SizeOf:
		return unsigned(t.BitSize()), nil

	case ast.MinOf, ast.MaxOf:
		p, ok := t.Basic().(*PrimType)
		if !ok || !p.Numeric() {
			return RValue{}, errorf(diag.Incompatible, span, "%s has no numeric range", t.Name())
		}
		x := p.Min()
		if op == ast.MaxOf {
			x = p.Max()
		}
		return p.FromInt(x).withType(t), nil

	case ast.LengthOf:
		a, ok := t.Basic().(*ArrayType)
		if !ok {
			return RValue{}, errorf(diag.Incompatible, span, "lengthof requires an array, not %s", t.Name())
		}
		return unsigned(a.Dim), nil

	case ast.ClassIDOf:
		if err := needClass(); err != nil {
			return RValue{}, err
		}
		return u.FromInt(new(big.Int).SetUint64(uint64(c.ClassID()))), nil

	case ast.ConstantOf:
		z := Zero(t)
		if !z.IsKnown() {
			return RValue{}, errorf(diag.NotConstant, span, "%s has no constant value", t.Name())
		}
		return z, nil

	case ast.PositionOf:
		if err := needClass(); err != nil {
			return RValue{}, err
		}
		p := c.Prop(member)
		if p == nil {
			return RValue{}, errorf(diag.NameNotFound, span, "%s has no data member %s", c.name, e.r.name(member))
		}
		off, _ := c.Offset(p)
		return unsigned(off), nil

	case ast.AtomOf:
		if !isClass || !c.IsElement() {
			return RValue{}, errorf(diag.Incompatible, span, "atomof requires an element, not %s", t.Name())
		}
		return e.r.cast.packAtom(NewObject(c), e.r.reg.Atom()), nil

	case ast.InstanceOf:
		if err := needClass(); err != nil {
			return RValue{}, err
		}
		return ObjectValue(t, NewObject(c)), nil
	}
	return RValue{}, errorf(diag.Incompatible, span, "unknown type operator %s", op)
}

func (e *Evaluator) evalIs(n *ast.IsExpr, scope *Scope) (Value, error) {
	boolT := e.r.reg.Bool()
	t, err := e.r.ResolveTypeRef(n.Type, scope)
	if err != nil {
		return nil, err
	}
	tc, ok := t.Basic().(*Class)
	if !ok {
		return nil, errorf(diag.Incompatible, n.Type.Span(), "is requires a class type, not %s", t.Name())
	}
	if err := e.r.requireLayout(tc, n.Type.Span(), false); err != nil {
		return nil, err
	}
	v, err := e.evalRaw(n.X, scope)
	if err != nil {
		return nil, err
	}
	if _, isRef := v.Type.Basic().(*RefType); isRef && v.IsKnown() {
		if v, err = v.Ref().Load(); err != nil {
			return nil, err
		}
	}
	switch b := valueType(v.Type).Basic().(type) {
	case *Class:
		if !v.IsKnown() {
			return Unknown(boolT), nil
		}
		return boolValue(boolT, v.Obj().Class.IsA(tc)), nil
	case *PrimType:
		if b.Prim != PrimAtom {
			break
		}
		if !v.IsKnown() {
			return Unknown(boolT), nil
		}
		dyn := e.r.cast.atomClass(v)
		return boolValue(boolT, dyn != nil && dyn.IsA(tc)), nil
	}
	return nil, errorf(diag.Incompatible, n.X.Span(), "is requires a class or atom operand, not %s", v.Type.Name())
}
