package sema

import (
	"github.com/chazu/quarkc/ast"
	"github.com/chazu/quarkc/diag"
)

// LValue is a storage location. Load resolves it to an RValue by
// indirection; Store writes back through the same indirection.
type LValue interface {
	Value
	Type() Type
	Load() (RValue, error)
	Store(rv RValue) error
}

// ---------------------------------------------------------------------------
// Var
// ---------------------------------------------------------------------------

// Var is a named storage cell: a local, a parameter, or a temporary.
type Var struct {
	Name ast.Ident
	typ  Type
	val  RValue
}

// NewVar creates a variable holding a private copy of v.
func NewVar(name ast.Ident, t Type, v RValue) *Var {
	return &Var{Name: name, typ: t, val: v.owned().withType(t)}
}

func (v *Var) value()     {}
func (v *Var) Type() Type { return v.typ }

func (v *Var) Load() (RValue, error) { return v.val, nil }

func (v *Var) Store(rv RValue) error {
	if !rv.IsValid() {
		return errorf(diag.Incompatible, zeroSpan, "no value to store")
	}
	if storageOf(rv.Type) != storageOf(v.typ) && !rv.IsUnknown() {
		return errorf(diag.Incompatible, zeroSpan, "cannot store %s into %s", rv.Type.Name(), v.typ.Name())
	}
	// Writing back a payload loaded from this same variable needs no copy.
	if (rv.vec == nil || rv.vec != v.val.vec) && (rv.obj == nil || rv.obj != v.val.obj) {
		rv = rv.owned()
	}
	v.val = rv.withType(v.typ)
	return nil
}

// ---------------------------------------------------------------------------
// Bound data members and array elements
// ---------------------------------------------------------------------------

// resolveBase loads base, following one reference if base is reference
// typed. It returns the lvalue to write a modified value back to, or nil
// when the reference itself is unknown.
func resolveBase(base LValue) (LValue, RValue, error) {
	rv, err := base.Load()
	if err != nil {
		return nil, RValue{}, err
	}
	if _, ok := base.Type().Basic().(*RefType); !ok {
		return base, rv, nil
	}
	if !rv.IsKnown() {
		return nil, rv, nil
	}
	target := rv.Ref()
	tv, err := target.Load()
	return target, tv, err
}

// PropRef is a data member bound to the object held by Base.
type PropRef struct {
	Base LValue
	Prop *Prop
}

func (r *PropRef) value()     {}
func (r *PropRef) Type() Type { return r.Prop.Type }

func (r *PropRef) Load() (RValue, error) {
	_, bv, err := resolveBase(r.Base)
	if err != nil {
		return RValue{}, err
	}
	if !bv.IsKnown() {
		return Unknown(r.Prop.Type), nil
	}
	v, err := r.Prop.Load(bv.Obj())
	if err != nil {
		return RValue{}, err
	}
	return v.withType(r.Prop.Type), nil
}

func (r *PropRef) Store(rv RValue) error {
	owner, bv, err := resolveBase(r.Base)
	if err != nil || owner == nil {
		return err
	}
	if !bv.IsKnown() {
		return nil
	}
	if rv.IsUnknown() {
		return owner.Store(Unknown(bv.Type))
	}
	if err := r.Prop.Store(bv.Obj(), rv); err != nil {
		return err
	}
	return owner.Store(bv)
}

// ElemRef is an array element bound to the array held by Base. An Index of
// -1 stands for an element whose index is not known.
type ElemRef struct {
	Base  LValue
	Index int
	Array *ArrayType
}

func (r *ElemRef) value()     {}
func (r *ElemRef) Type() Type { return r.Array.Elem }

func (r *ElemRef) Load() (RValue, error) {
	_, av, err := resolveBase(r.Base)
	if err != nil {
		return RValue{}, err
	}
	if !av.IsKnown() || r.Index < 0 {
		return Unknown(r.Array.Elem), nil
	}
	size := r.Array.Elem.BitSize()
	return r.Array.Elem.Load(av.Vec().View(), r.Index*size), nil
}

func (r *ElemRef) Store(rv RValue) error {
	owner, av, err := resolveBase(r.Base)
	if err != nil || owner == nil {
		return err
	}
	if !av.IsKnown() {
		return nil
	}
	if rv.IsUnknown() || r.Index < 0 {
		return owner.Store(Unknown(av.Type))
	}
	size := r.Array.Elem.BitSize()
	if err := r.Array.Elem.Store(av.Vec().View(), r.Index*size, rv); err != nil {
		return err
	}
	return owner.Store(av)
}
