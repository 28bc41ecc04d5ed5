package sema

import "github.com/chazu/quarkc/ast"

// bindingKey identifies a node as resolved in one context. inst is the
// template instance for nodes inside a template declaration, nil elsewhere.
type bindingKey struct {
	node ast.Node
	inst *Class
}

// Bindings records what each type reference and name resolved to, for
// stages that run after analysis.
type Bindings struct {
	types   map[bindingKey]Type
	symbols map[bindingKey]Symbol
}

func newBindings() *Bindings {
	return &Bindings{
		types:   make(map[bindingKey]Type),
		symbols: make(map[bindingKey]Symbol),
	}
}

// enclosingInstance returns the template instance whose declaration encloses s.
func enclosingInstance(s *Scope) *Class {
	if c := s.EnclosingClass(); c != nil && c.Template != nil {
		return c
	}
	return nil
}

func (b *Bindings) setType(ref *ast.TypeRef, scope *Scope, t Type) {
	b.types[bindingKey{ref, enclosingInstance(scope)}] = t
}

func (b *Bindings) setSymbol(n *ast.NameExpr, scope *Scope, sym Symbol) {
	b.symbols[bindingKey{n, enclosingInstance(scope)}] = sym
}

// Type returns the type ref resolved to. inst is the template instance
// the reference was resolved for, or nil outside template declarations.
func (b *Bindings) Type(ref *ast.TypeRef, inst *Class) Type {
	return b.types[bindingKey{ref, inst}]
}

// Symbol returns the symbol n was bound to, or nil if n was never
// resolved.
func (b *Bindings) Symbol(n *ast.NameExpr, inst *Class) Symbol {
	return b.symbols[bindingKey{n, inst}]
}

// Len returns the number of recorded types and symbols.
func (b *Bindings) Len() int { return len(b.types) + len(b.symbols) }
