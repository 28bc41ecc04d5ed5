package sema

import "github.com/chazu/quarkc/ast"

// Symbol is what a name in a scope denotes.
type Symbol interface {
	Name() ast.Ident
	Span() ast.Span
	IsPlaceholder() bool
	symbol()
}

type symBase struct {
	name ast.Ident
	span ast.Span
}

func (b *symBase) Name() ast.Ident     { return b.name }
func (b *symBase) Span() ast.Span      { return b.span }
func (b *symBase) IsPlaceholder() bool { return false }
func (b *symBase) symbol()             {}

// TypeSymbol names a class, an alias or a placeholder. Class-level typedefs
// are lazy: they carry their declaration and resolve on first use.
type TypeSymbol struct {
	symBase
	Type Type

	decl  *ast.TypedefDecl
	scope ScopeID
	state ResolveState
	err   error
}

// NewTypeSymbol creates a resolved type symbol.
func NewTypeSymbol(name ast.Ident, span ast.Span, t Type) *TypeSymbol {
	return &TypeSymbol{symBase: symBase{name, span}, Type: t, state: Resolved}
}

func (s *TypeSymbol) IsPlaceholder() bool {
	return s.decl == nil && s.Type != nil && s.Type.IsPlaceholder()
}

// TemplateSymbol names a class template.
type TemplateSymbol struct {
	symBase
	Template *ClassTemplate
}

// VarKind classifies variable symbols.
type VarKind uint8

const (
	VarLocal VarKind = iota
	VarParam
	VarDataMember
	VarConstant
	VarTemplateParam
)

// VarSymbol names storage or a constant. Constants are lazy: their value is
// folded on first use and cached.
type VarSymbol struct {
	symBase
	Kind  VarKind
	Type  Type
	Var   *Var  // locals and parameters
	Prop  *Prop // data members
	Value RValue

	decl  *ast.ConstDecl
	scope ScopeID
	state ResolveState
	err   error
}

// IsConstant reports whether the symbol denotes a compile-time constant.
func (s *VarSymbol) IsConstant() bool {
	return s.Kind == VarConstant || s.Kind == VarTemplateParam
}

// State returns the folding state of a constant.
func (s *VarSymbol) State() ResolveState { return s.state }

// Err returns the failure recorded for an Unresolvable constant.
func (s *VarSymbol) Err() error { return s.err }

// FunSetSymbol names the overloads of a member function.
type FunSetSymbol struct {
	symBase
	Set *FunSet
}
