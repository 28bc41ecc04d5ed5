package sema

import (
	"github.com/chazu/quarkc/ast"
	"github.com/chazu/quarkc/config"
	"github.com/chazu/quarkc/diag"
)

// Registry is the single source of type identity for one analysis. It owns
// the ID allocator, the primitive memo, class-identity numbers and the list
// of every class and template created. Entries are only ever appended.
type Registry struct {
	ids  *IDAllocator
	arch config.Arch
	lazy bool

	prims     map[primKey]*PrimType
	funcs     map[string]*FuncType
	void      *VoidType
	classes   []*Class
	templates []*ClassTemplate
	byClassID map[uint32]*Class
	nextID    uint32
}

type primKey struct {
	kind  PrimKind
	width int
}

// NewRegistry creates a registry for the given configuration.
func NewRegistry(cfg config.Config) *Registry {
	r := &Registry{
		ids:       NewIDAllocator(),
		arch:      cfg.Arch,
		lazy:      cfg.Analysis.LazyClassID,
		prims:     make(map[primKey]*PrimType),
		funcs:     make(map[string]*FuncType),
		byClassID: make(map[uint32]*Class),
	}
	r.void = &VoidType{}
	r.void.init(r.ids, r.void)
	return r
}

// IDs returns the registry's allocator.
func (r *Registry) IDs() *IDAllocator { return r.ids }

// Arch returns the target architecture description.
func (r *Registry) Arch() config.Arch { return r.arch }

// Void returns the Void type.
func (r *Registry) Void() *VoidType { return r.void }

// Builtin returns the memoized primitive of the given family and width.
// Atom ignores width. A width outside the family's range fails with
// InvalidWidth.
func (r *Registry) Builtin(kind PrimKind, width int) (*PrimType, error) {
	if kind == PrimAtom {
		width = r.arch.AtomBits
	} else if rng := primRanges[kind]; width < rng.min || width > rng.max {
		return nil, errorf(diag.InvalidWidth, zeroSpan, "%s width %d outside %d..%d", kind, width, rng.min, rng.max)
	}
	key := primKey{kind, width}
	if t, ok := r.prims[key]; ok {
		return t, nil
	}
	t := &PrimType{Prim: kind, Width: width}
	t.init(r.ids, t)
	r.prims[key] = t
	return t, nil
}

// MustBuiltin is Builtin for widths known to be valid.
func (r *Registry) MustBuiltin(kind PrimKind, width int) *PrimType {
	t, err := r.Builtin(kind, width)
	if err != nil {
		panic(err)
	}
	return t
}

// Bool returns Bool(1).
func (r *Registry) Bool() *PrimType { return r.MustBuiltin(PrimBool, 1) }

// Atom returns the Atom type.
func (r *Registry) Atom() *PrimType { return r.MustBuiltin(PrimAtom, 0) }

// Unsigned returns Unsigned(32), the type of type-operator results.
func (r *Registry) Unsigned() *PrimType { return r.MustBuiltin(PrimUnsigned, 32) }

// FuncType returns the memoized signature type.
func (r *Registry) FuncType(params []Type, ret Type) *FuncType {
	key := sigKey(params) + "->" + sigKey([]Type{ret})
	if t, ok := r.funcs[key]; ok {
		return t
	}
	t := &FuncType{Params: params, Return: ret}
	t.init(r.ids, t)
	r.funcs[key] = t
	return t
}

// NewAlias creates a typedef alias.
func (r *Registry) NewAlias(name string, target Type) *AliasType {
	t := &AliasType{name: name, Target: target}
	t.init(r.ids, t)
	return t
}

// NewPlaceholder creates an unbound placeholder.
func (r *Registry) NewPlaceholder(name string) *PlaceholderType {
	t := &PlaceholderType{name: name}
	t.init(r.ids, t)
	return t
}

// Classes returns every class (including template instances) in creation
// order.
func (r *Registry) Classes() []*Class { return r.classes }

// Templates returns every class template in creation order.
func (r *Registry) Templates() []*ClassTemplate { return r.templates }

// ClassByID returns the class with the given class-identity number.
func (r *Registry) ClassByID(id uint32) *Class { return r.byClassID[id] }

func (r *Registry) newClass(kind ast.ClassKind, name string, decl *ast.ClassDecl) *Class {
	c := &Class{
		ClassKind: kind,
		name:      name,
		Decl:      decl,
		reg:       r,
		Funs:      make(map[ast.Ident]*FunSet),
	}
	c.init(r.ids, c)
	if !r.lazy {
		r.assignClassID(c)
	}
	r.classes = append(r.classes, c)
	return c
}

func (r *Registry) newTemplate(name string, decl *ast.ClassDecl, declScope ScopeID) *ClassTemplate {
	t := &ClassTemplate{
		name:      name,
		Decl:      decl,
		declScope: declScope,
		instances: make(map[string]*Class),
		failed:    make(map[string]error),
	}
	t.init(r.ids, t)
	r.templates = append(r.templates, t)
	return t
}

func (r *Registry) assignClassID(c *Class) {
	r.nextID++
	c.classID = r.nextID
	r.byClassID[c.classID] = c
}
