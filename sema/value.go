package sema

import (
	"fmt"
	"math/big"

	"github.com/chazu/quarkc/bits"
	"github.com/chazu/quarkc/mangle"
)

// Value is nil (absent), an RValue or an LValue.
type Value interface {
	value()
}

// payloadKind tags the payload of an RValue.
type payloadKind uint8

const (
	payloadNone payloadKind = iota
	payloadScalar
	payloadVector
	payloadObject
	payloadRef
	payloadUnknown
)

// storageKind is the payload shape a type's values must have.
type storageKind uint8

const (
	storeNone storageKind = iota
	storeScalar
	storeVector
	storeObject
	storeRef
)

func storageOf(t Type) storageKind {
	switch b := t.Basic().(type) {
	case *PrimType:
		if b.scalar() {
			return storeScalar
		}
		return storeVector
	case *ArrayType:
		return storeVector
	case *Class:
		return storeObject
	case *RefType:
		return storeRef
	}
	return storeNone
}

// RValue is a typed value: a concrete bit pattern, an object, a bound
// reference, or the marker for a value unknown at compile time.
type RValue struct {
	Type Type

	kind   payloadKind
	scalar uint64
	vec    *bits.Vector
	obj    *Object
	ref    LValue
}

func (RValue) value() {}

func mustStore(t Type, want storageKind) {
	if got := storageOf(t); got != want {
		panic(fmt.Sprintf("sema: %s value built with the wrong payload", t.Name()))
	}
}

// Scalar returns a value of a word-sized primitive type. raw is masked to
// the type's width.
func Scalar(t Type, raw uint64) RValue {
	mustStore(t, storeScalar)
	return RValue{Type: t, kind: payloadScalar, scalar: raw & widthMask(t.BitSize())}
}

// VectorValue returns a value of a wide primitive or an array type.
func VectorValue(t Type, v *bits.Vector) RValue {
	mustStore(t, storeVector)
	if v.Len() != t.BitSize() {
		panic(fmt.Sprintf("sema: %d-bit vector for %s", v.Len(), t.Name()))
	}
	return RValue{Type: t, kind: payloadVector, vec: v}
}

// ObjectValue returns a value of class type t holding o.
func ObjectValue(t Type, o *Object) RValue {
	mustStore(t, storeObject)
	return RValue{Type: t, kind: payloadObject, obj: o}
}

// RefValue returns a reference of type t bound to lv.
func RefValue(t Type, lv LValue) RValue {
	mustStore(t, storeRef)
	return RValue{Type: t, kind: payloadRef, ref: lv}
}

// Unknown returns the marker for a value of type t not known at compile
// time.
func Unknown(t Type) RValue {
	return RValue{Type: t, kind: payloadUnknown}
}

// IsValid reports whether v holds anything.
func (v RValue) IsValid() bool { return v.kind != payloadNone }

// IsUnknown reports whether v is the unknown marker.
func (v RValue) IsUnknown() bool { return v.kind == payloadUnknown }

// IsKnown reports whether v is a concrete value.
func (v RValue) IsKnown() bool { return v.kind != payloadNone && v.kind != payloadUnknown }

// Raw returns the bits of a scalar value.
func (v RValue) Raw() uint64 { return v.scalar }

// Vec returns the vector payload, or nil.
func (v RValue) Vec() *bits.Vector { return v.vec }

// Obj returns the object payload, or nil.
func (v RValue) Obj() *Object { return v.obj }

// Ref returns the referenced lvalue, or nil.
func (v RValue) Ref() LValue { return v.ref }

// Int decodes a known scalar primitive value.
func (v RValue) Int() (*big.Int, bool) {
	p, ok := v.Type.Basic().(*PrimType)
	if !ok || v.kind != payloadScalar {
		return nil, false
	}
	return p.Decode(v.scalar), true
}

// Pattern returns the value's bits as a fresh vector.
func (v RValue) Pattern() *bits.Vector {
	switch v.kind {
	case payloadScalar:
		return bits.FromUint64(v.Type.BitSize(), v.scalar)
	case payloadVector:
		return v.vec.Clone()
	case payloadObject:
		return v.obj.Data.Clone()
	}
	return nil
}

// Equal reports whether two known values have the same type and bits.
func (v RValue) Equal(o RValue) bool {
	if !v.IsKnown() || !o.IsKnown() || !SameType(v.Type, o.Type) {
		return false
	}
	if v.kind == payloadRef {
		return v.ref == o.ref
	}
	return v.Pattern().Equal(o.Pattern())
}

// withType retypes v to an interchangeable type.
func (v RValue) withType(t Type) RValue {
	if v.kind == payloadNone {
		return v
	}
	v.Type = t
	return v
}

// owned returns v with any shared payload copied.
func (v RValue) owned() RValue {
	switch v.kind {
	case payloadVector:
		v.vec = v.vec.Clone()
	case payloadObject:
		v.obj = v.obj.Clone()
	}
	return v
}

func (v RValue) String() string {
	switch v.kind {
	case payloadNone:
		return "<none>"
	case payloadUnknown:
		return "<unknown " + v.Type.Name() + ">"
	case payloadScalar:
		p := v.Type.Basic().(*PrimType)
		switch p.Prim {
		case PrimBool:
			if p.Decode(v.scalar).Sign() != 0 {
				return "true"
			}
			return "false"
		case PrimBits:
			return fmt.Sprintf("0x%x", v.scalar)
		}
		return p.Decode(v.scalar).String()
	case payloadVector:
		return "0b" + v.vec.String()
	case payloadObject:
		return v.obj.Class.Name() + "{" + v.obj.Data.String() + "}"
	case payloadRef:
		return "&" + v.ref.Type().Name()
	}
	return "?"
}

// Zero returns the default value of t: zero bits for primitives and arrays
// of primitives, the default object for classes.
func Zero(t Type) RValue {
	switch b := t.Basic().(type) {
	case *PrimType:
		if b.scalar() {
			return Scalar(t, 0)
		}
		return VectorValue(t, bits.New(b.Width))
	case *ArrayType:
		vec := bits.New(b.BitSize())
		if ec, ok := b.Elem.Basic().(*Class); ok && ec.Default != nil {
			for i := 0; i < b.Dim; i++ {
				vec.Slice(i*ec.size, ec.size).WriteVector(0, ec.Default.Data)
			}
		}
		return VectorValue(t, vec)
	case *Class:
		if b.state != Resolved && b.Default == nil {
			return Unknown(t)
		}
		return ObjectValue(t, NewObject(b))
	}
	return Unknown(t)
}

// mangleArg reduces a bound template argument to its cache-key form.
func mangleArg(v RValue) mangle.Arg {
	pat := v.Pattern()
	a := mangle.Arg{Type: uint64(v.Type.Basic().ID()), Text: v.String()}
	if pat != nil {
		a.Len = pat.Len()
		a.Words = pat.Words()
	}
	return a
}
