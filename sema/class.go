package sema

import (
	"fmt"

	"github.com/chazu/quarkc/ast"
	"github.com/chazu/quarkc/bits"
	"github.com/chazu/quarkc/diag"
)

// ResolveState tracks a class (or lazy symbol) through resolution.
type ResolveState uint8

const (
	NotResolved ResolveState = iota
	Resolving
	Resolved
	Unresolvable
)

func (s ResolveState) String() string {
	switch s {
	case NotResolved:
		return "NotResolved"
	case Resolving:
		return "Resolving"
	case Resolved:
		return "Resolved"
	case Unresolvable:
		return "Unresolvable"
	default:
		return fmt.Sprintf("ResolveState(%d)", s)
	}
}

// ---------------------------------------------------------------------------
// Class
// ---------------------------------------------------------------------------

// Class is a quark, element or transient, either declared directly or
// instantiated from a template.
type Class struct {
	typeBase
	ClassKind ast.ClassKind
	name      string
	Decl      *ast.ClassDecl
	Template  *ClassTemplate // nil unless this is a template instance
	Args      []RValue       // bound template arguments
	Scope     ScopeID        // the class scope

	state     ResolveState
	err       error
	installed bool

	Bases  []*Class // direct bases, deduplicated, declaration order
	Linear []*Class // every ancestor, in layout order
	Props  []*Prop  // own data members, declaration order
	Funs   map[ast.Ident]*FunSet

	offsets map[*Prop]int
	all     []*Prop
	size    int
	classID uint32
	reg     *Registry

	// Default is the class's default object: every data member holds its
	// declared initial value.
	Default *Object
}

func (c *Class) Name() string   { return c.name }
func (c *Class) Kind() TypeKind { return KindClass }

// BitSize is the total size of the data members; 0 until resolved.
func (c *Class) BitSize() int { return c.size }

// State returns the resolution state.
func (c *Class) State() ResolveState { return c.state }

// Err returns the failure recorded for an Unresolvable class.
func (c *Class) Err() error { return c.err }

// IsElement reports whether c is an element.
func (c *Class) IsElement() bool { return c.ClassKind == ast.Element }

// ClassID returns the class-identity number, assigning it on first use when
// class IDs are lazy.
func (c *Class) ClassID() uint32 {
	if c.classID == 0 {
		c.reg.assignClassID(c)
	}
	return c.classID
}

// HasClassID reports whether the identity number has been assigned.
func (c *Class) HasClassID() bool { return c.classID != 0 }

// Offset returns the bit offset of p within c's layout.
func (c *Class) Offset(p *Prop) (int, bool) {
	off, ok := c.offsets[p]
	return off, ok
}

// AllProps returns every data member, inherited ones first, in offset order.
func (c *Class) AllProps() []*Prop { return c.all }

// Prop returns the data member with the given name, searching ancestors.
func (c *Class) Prop(name ast.Ident) *Prop {
	for i := len(c.all) - 1; i >= 0; i-- {
		if c.all[i].Name == name {
			return c.all[i]
		}
	}
	return nil
}

// IsA reports whether c is anc or derives from it.
func (c *Class) IsA(anc *Class) bool {
	if c == anc {
		return true
	}
	for _, a := range c.Linear {
		if a == anc {
			return true
		}
	}
	return false
}

// Distance returns the number of inheritance edges from c up to anc.
func (c *Class) Distance(anc *Class) (int, bool) {
	type step struct {
		c *Class
		d int
	}
	seen := map[*Class]bool{c: true}
	queue := []step{{c, 0}}
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		if s.c == anc {
			return s.d, true
		}
		for _, b := range s.c.Bases {
			if !seen[b] {
				seen[b] = true
				queue = append(queue, step{b, s.d + 1})
			}
		}
	}
	return 0, false
}

// LookupFun returns the overloads of name visible in c: its own, then each
// ancestor's from nearest to farthest. A signature already seen shadows the
// same signature further up.
func (c *Class) LookupFun(name ast.Ident) []*Function {
	var out []*Function
	seen := make(map[string]bool)
	add := func(set *FunSet) {
		if set == nil {
			return
		}
		for _, fn := range set.Funs {
			key := sigKey(fn.Params)
			if !seen[key] {
				seen[key] = true
				out = append(out, fn)
			}
		}
	}
	add(c.Funs[name])
	for i := len(c.Linear) - 1; i >= 0; i-- {
		add(c.Linear[i].Funs[name])
	}
	return out
}

// FindOverride returns the implementation of fn's signature that c
// dispatches to.
func (c *Class) FindOverride(fn *Function) *Function {
	key := sigKey(fn.Params)
	for _, cand := range c.LookupFun(fn.Name) {
		if sigKey(cand.Params) == key {
			return cand
		}
	}
	return fn
}

func (c *Class) Load(v bits.View, off int) RValue {
	if c.state != Resolved {
		return Unknown(c)
	}
	return ObjectValue(c, &Object{Class: c, Data: v.ReadVector(off, c.size)})
}

func (c *Class) Store(v bits.View, off int, rv RValue) error {
	if rv.IsUnknown() {
		return nil
	}
	o := rv.Obj()
	if o == nil || o.Data.Len() != c.size {
		return errorf(diag.Incompatible, zeroSpan, "cannot store %s into %s", rv.Type.Name(), c.name)
	}
	v.WriteVector(off, o.Data)
	return nil
}

// ---------------------------------------------------------------------------
// Data members
// ---------------------------------------------------------------------------

// Prop is a data member. It stores no data, only where its bits live.
type Prop struct {
	Name   ast.Ident
	Type   Type
	Owner  *Class
	Offset int // offset within Owner's layout
	Span   ast.Span
	Decl   *ast.VarDecl
}

// Load reads p out of o, using the layout of o's own class.
func (p *Prop) Load(o *Object) (RValue, error) {
	off, ok := o.Class.Offset(p)
	if !ok {
		return RValue{}, errorf(diag.NameNotFound, p.Span, "%s does not contain the members of %s", o.Class.name, p.Owner.name)
	}
	return p.Type.Load(o.Data.View(), off), nil
}

// Store writes rv into o.
func (p *Prop) Store(o *Object, rv RValue) error {
	off, ok := o.Class.Offset(p)
	if !ok {
		return errorf(diag.NameNotFound, p.Span, "%s does not contain the members of %s", o.Class.name, p.Owner.name)
	}
	return p.Type.Store(o.Data.View(), off, rv)
}

// ---------------------------------------------------------------------------
// Functions
// ---------------------------------------------------------------------------

// Function is a resolved member function signature.
type Function struct {
	Name       ast.Ident
	Decl       *ast.FuncDecl
	Owner      *Class
	Params     []Type
	ParamNames []ast.Ident
	Return     Type
	Sig        *FuncType
}

// FunSet groups the overloads of one name declared in one class.
type FunSet struct {
	Name  ast.Ident
	Owner *Class
	Funs  []*Function
}

func (s *FunSet) add(fn *Function) bool {
	key := sigKey(fn.Params)
	for _, f := range s.Funs {
		if sigKey(f.Params) == key {
			return false
		}
	}
	s.Funs = append(s.Funs, fn)
	return true
}

// ---------------------------------------------------------------------------
// Class templates
// ---------------------------------------------------------------------------

// ClassTemplate is a parameterized class declaration. Its instances are
// cached by the canonical encoding of their bound arguments.
type ClassTemplate struct {
	typeBase
	name      string
	Decl      *ast.ClassDecl
	declScope ScopeID
	instances map[string]*Class
	failed    map[string]error
	order     []*Class
	resolver  *Resolver
}

func (t *ClassTemplate) Name() string   { return t.name }
func (t *ClassTemplate) Kind() TypeKind { return KindTemplate }
func (t *ClassTemplate) BitSize() int   { return 0 }

func (t *ClassTemplate) Load(bits.View, int) RValue         { return Unknown(t) }
func (t *ClassTemplate) Store(bits.View, int, RValue) error { return notStorable(t) }

// Instances returns the instances created so far, in creation order.
func (t *ClassTemplate) Instances() []*Class { return t.order }

// ---------------------------------------------------------------------------
// Objects
// ---------------------------------------------------------------------------

// Object is a class instance: its class and the bits of its data members.
type Object struct {
	Class *Class
	Data  *bits.Vector
}

// NewObject returns a fresh instance of c holding its default values.
func NewObject(c *Class) *Object {
	if c.Default != nil {
		return c.Default.Clone()
	}
	return &Object{Class: c, Data: bits.New(c.size)}
}

// Clone returns an independent copy of o.
func (o *Object) Clone() *Object {
	return &Object{Class: o.Class, Data: o.Data.Clone()}
}

// upcast copies the members o shares with anc into a new anc object.
func upcast(o *Object, anc *Class) (*Object, error) {
	out := NewObject(anc)
	for _, p := range anc.all {
		v, err := p.Load(o)
		if err != nil {
			return nil, err
		}
		if err := p.Store(out, v); err != nil {
			return nil, err
		}
	}
	return out, nil
}
