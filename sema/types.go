// Package sema is the semantic core: the type system, scopes and symbols,
// the class resolution pipeline, the bit-level value model, and the
// evaluator and caster that fold and validate expressions.
package sema

import (
	"fmt"
	"strings"

	"github.com/chazu/quarkc/bits"
	"github.com/chazu/quarkc/diag"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("quarkc.sema")

// ---------------------------------------------------------------------------
// Type identity
// ---------------------------------------------------------------------------

// TypeID is a process-unique type identity. IDs are never reused.
type TypeID uint64

// IDAllocator hands out TypeIDs in increasing order. Each Registry owns
// exactly one.
type IDAllocator struct {
	next TypeID
}

// NewIDAllocator creates an allocator whose first ID is 1.
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{next: 1}
}

// Next returns a fresh ID.
func (a *IDAllocator) Next() TypeID {
	id := a.next
	a.next++
	return id
}

// Allocated returns how many IDs have been handed out.
func (a *IDAllocator) Allocated() int {
	return int(a.next - 1)
}

// TypeKind distinguishes the type variants.
type TypeKind uint8

const (
	KindPrim TypeKind = iota
	KindClass
	KindTemplate
	KindAlias
	KindPlaceholder
	KindVoid
	KindFunc
	KindArray
	KindRef
)

var typeKindNames = [...]string{
	KindPrim:        "primitive",
	KindClass:       "class",
	KindTemplate:    "template",
	KindAlias:       "alias",
	KindPlaceholder: "placeholder",
	KindVoid:        "void",
	KindFunc:        "function",
	KindArray:       "array",
	KindRef:         "reference",
}

func (k TypeKind) String() string {
	if int(k) < len(typeKindNames) {
		return typeKindNames[k]
	}
	return fmt.Sprintf("TypeKind(%d)", k)
}

// Type is implemented by every type variant.
type Type interface {
	ID() TypeID
	Name() string
	Kind() TypeKind
	BitSize() int

	// Basic returns the canonical type. Aliases and bound placeholders
	// return their target's basic type; everything else returns itself.
	Basic() Type
	IsPlaceholder() bool

	// Load reads a value of this type at off; Store writes one.
	Load(v bits.View, off int) RValue
	Store(v bits.View, off int, rv RValue) error

	// ArrayOf and RefOf return the memoized derived types.
	ArrayOf(dim int) *ArrayType
	RefOf() *RefType

	base() *typeBase
}

// SameType reports whether a and b are interchangeable.
func SameType(a, b Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Basic().ID() == b.Basic().ID()
}

// typeBase carries identity and the derived-type memo shared by all variants.
type typeBase struct {
	id     TypeID
	ids    *IDAllocator
	self   Type
	arrays map[int]*ArrayType
	ref    *RefType
}

func (b *typeBase) init(ids *IDAllocator, self Type) {
	b.id = ids.Next()
	b.ids = ids
	b.self = self
}

func (b *typeBase) ID() TypeID          { return b.id }
func (b *typeBase) Basic() Type         { return b.self }
func (b *typeBase) IsPlaceholder() bool { return false }
func (b *typeBase) base() *typeBase     { return b }

func (b *typeBase) ArrayOf(dim int) *ArrayType {
	if bt := b.self.Basic(); bt != b.self {
		return bt.ArrayOf(dim)
	}
	if a, ok := b.arrays[dim]; ok {
		return a
	}
	if b.arrays == nil {
		b.arrays = make(map[int]*ArrayType)
	}
	a := &ArrayType{Elem: b.self, Dim: dim}
	a.init(b.ids, a)
	b.arrays[dim] = a
	return a
}

func (b *typeBase) RefOf() *RefType {
	if bt := b.self.Basic(); bt != b.self {
		return bt.RefOf()
	}
	if b.ref == nil {
		r := &RefType{Elem: b.self}
		r.init(b.ids, r)
		b.ref = r
	}
	return b.ref
}

func notStorable(t Type) error {
	return errorf(diag.Incompatible, zeroSpan, "%s has no storage", t.Name())
}

// ---------------------------------------------------------------------------
// Void
// ---------------------------------------------------------------------------

// VoidType is the type of functions that return nothing.
type VoidType struct {
	typeBase
}

func (t *VoidType) Name() string                       { return "Void" }
func (t *VoidType) Kind() TypeKind                     { return KindVoid }
func (t *VoidType) BitSize() int                       { return 0 }
func (t *VoidType) Load(bits.View, int) RValue         { return Unknown(t) }
func (t *VoidType) Store(bits.View, int, RValue) error { return nil }

// ---------------------------------------------------------------------------
// Alias (typedef)
// ---------------------------------------------------------------------------

// AliasType is a named synonym introduced by a typedef.
type AliasType struct {
	typeBase
	name   string
	Target Type
}

func (t *AliasType) Name() string   { return t.name }
func (t *AliasType) Kind() TypeKind { return KindAlias }
func (t *AliasType) BitSize() int   { return t.Target.BitSize() }
func (t *AliasType) Basic() Type    { return t.Target.Basic() }

func (t *AliasType) IsPlaceholder() bool { return t.Target.IsPlaceholder() }

func (t *AliasType) Load(v bits.View, off int) RValue {
	return t.Target.Load(v, off).withType(t)
}

func (t *AliasType) Store(v bits.View, off int, rv RValue) error {
	return t.Target.Store(v, off, rv)
}

// ---------------------------------------------------------------------------
// Placeholder
// ---------------------------------------------------------------------------

// PlaceholderType stands in for a name whose definition has not been
// resolved yet. Binding it makes every holder of the placeholder see the
// real type through Basic.
type PlaceholderType struct {
	typeBase
	name  string
	bound Type
}

func (t *PlaceholderType) Name() string   { return t.name }
func (t *PlaceholderType) Kind() TypeKind { return KindPlaceholder }

// Bind attaches the real definition.
func (t *PlaceholderType) Bind(real Type) { t.bound = real }

// Bound returns the bound type or nil.
func (t *PlaceholderType) Bound() Type { return t.bound }

func (t *PlaceholderType) Basic() Type {
	if t.bound != nil {
		return t.bound.Basic()
	}
	return t
}

func (t *PlaceholderType) IsPlaceholder() bool {
	return t.bound == nil || t.bound.IsPlaceholder()
}

func (t *PlaceholderType) BitSize() int {
	if t.bound != nil {
		return t.bound.BitSize()
	}
	return 0
}

func (t *PlaceholderType) Load(v bits.View, off int) RValue {
	if t.bound != nil {
		return t.bound.Load(v, off)
	}
	return Unknown(t)
}

func (t *PlaceholderType) Store(v bits.View, off int, rv RValue) error {
	if t.bound != nil {
		return t.bound.Store(v, off, rv)
	}
	return notStorable(t)
}

// ---------------------------------------------------------------------------
// Arrays and references
// ---------------------------------------------------------------------------

// ArrayType is a fixed-length array of Elem.
type ArrayType struct {
	typeBase
	Elem Type
	Dim  int
}

func (t *ArrayType) Name() string   { return fmt.Sprintf("%s[%d]", t.Elem.Name(), t.Dim) }
func (t *ArrayType) Kind() TypeKind { return KindArray }
func (t *ArrayType) BitSize() int   { return t.Elem.BitSize() * t.Dim }

func (t *ArrayType) Basic() Type {
	if eb := t.Elem.Basic(); eb != t.Elem {
		return eb.ArrayOf(t.Dim)
	}
	return t
}

func (t *ArrayType) IsPlaceholder() bool { return t.Elem.IsPlaceholder() }

func (t *ArrayType) Load(v bits.View, off int) RValue {
	return VectorValue(t, v.ReadVector(off, t.BitSize()))
}

func (t *ArrayType) Store(v bits.View, off int, rv RValue) error {
	if rv.IsUnknown() {
		return nil
	}
	vec := rv.Vec()
	if vec == nil || vec.Len() != t.BitSize() {
		return errorf(diag.Incompatible, zeroSpan, "cannot store %s into %s", rv.Type.Name(), t.Name())
	}
	v.WriteVector(off, vec)
	return nil
}

// RefType is a reference to an Elem. References are bound, not stored: they
// occupy no bits of any layout.
type RefType struct {
	typeBase
	Elem Type
}

func (t *RefType) Name() string   { return t.Elem.Name() + "&" }
func (t *RefType) Kind() TypeKind { return KindRef }
func (t *RefType) BitSize() int   { return 0 }

func (t *RefType) Basic() Type {
	if eb := t.Elem.Basic(); eb != t.Elem {
		return eb.RefOf()
	}
	return t
}

func (t *RefType) IsPlaceholder() bool                { return t.Elem.IsPlaceholder() }
func (t *RefType) Load(bits.View, int) RValue         { return Unknown(t) }
func (t *RefType) Store(bits.View, int, RValue) error { return notStorable(t) }

// ---------------------------------------------------------------------------
// Function signatures
// ---------------------------------------------------------------------------

// FuncType is a function signature.
type FuncType struct {
	typeBase
	Params []Type
	Return Type
}

func (t *FuncType) Name() string {
	names := make([]string, len(t.Params))
	for i, p := range t.Params {
		names[i] = p.Name()
	}
	return fmt.Sprintf("(%s) -> %s", strings.Join(names, ","), t.Return.Name())
}

func (t *FuncType) Kind() TypeKind                     { return KindFunc }
func (t *FuncType) BitSize() int                       { return 0 }
func (t *FuncType) Load(bits.View, int) RValue         { return Unknown(t) }
func (t *FuncType) Store(bits.View, int, RValue) error { return notStorable(t) }

// sigKey identifies a parameter list by the identities of its types.
func sigKey(params []Type) string {
	var sb strings.Builder
	for i, p := range params {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%d", p.Basic().ID())
	}
	return sb.String()
}
