// Package ast defines the syntax tree the semantic core consumes. Trees are
// produced by an external parser and are never mutated by the core.
package ast

// ---------------------------------------------------------------------------
// Positions
// ---------------------------------------------------------------------------

// Position represents a source location.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

// Span represents a range in source code.
type Span struct {
	File  string
	Start Position
	End   Position
}

// Node is the interface implemented by all syntax tree nodes.
type Node interface {
	Span() Span
	node() // marker method
}

// Decl is a module-level or class-level declaration.
type Decl interface {
	Node
	decl() // marker method
}

// Expr is the interface for expression nodes.
type Expr interface {
	Node
	expr() // marker method
}

// Stmt is the interface for statement nodes.
type Stmt interface {
	Node
	stmt() // marker method
}

// ---------------------------------------------------------------------------
// Program structure
// ---------------------------------------------------------------------------

// Program is the root of a parsed compilation: every module plus the
// interner its identifiers were built against.
type Program struct {
	Names   *Interner
	Modules []*Module
}

// Module is one source module.
type Module struct {
	SpanVal Span
	Name    Ident
	Imports []*Import
	Decls   []Decl
}

func (n *Module) Span() Span { return n.SpanVal }
func (n *Module) node()      {}

// Import makes another module's names visible.
type Import struct {
	SpanVal Span
	Module  Ident
}

func (n *Import) Span() Span { return n.SpanVal }
func (n *Import) node()      {}

// ClassKind distinguishes quarks, elements and transients.
type ClassKind uint8

const (
	Quark ClassKind = iota
	Element
	Transient
)

func (k ClassKind) String() string {
	switch k {
	case Quark:
		return "quark"
	case Element:
		return "element"
	case Transient:
		return "transient"
	default:
		return "class"
	}
}

// ClassDecl declares a class. A non-nil Params slice (even an empty one)
// makes it a class template.
type ClassDecl struct {
	SpanVal Span
	Kind    ClassKind
	Name    Ident
	Params  []*Param
	Bases   []*TypeRef
	Members []Decl
}

func (n *ClassDecl) Span() Span { return n.SpanVal }
func (n *ClassDecl) node()      {}
func (n *ClassDecl) decl()      {}

// IsTemplate reports whether the declaration is parameterized.
func (n *ClassDecl) IsTemplate() bool { return n.Params != nil }

// Param is a template parameter or a function parameter.
type Param struct {
	SpanVal Span
	Type    *TypeRef
	Name    Ident
	Default Expr // template parameters only
}

func (n *Param) Span() Span { return n.SpanVal }
func (n *Param) node()      {}

// TypedefDecl introduces an alias: typedef Type Name;
type TypedefDecl struct {
	SpanVal Span
	Type    *TypeRef
	Name    Ident
}

func (n *TypedefDecl) Span() Span { return n.SpanVal }
func (n *TypedefDecl) node()      {}
func (n *TypedefDecl) decl()      {}
func (n *TypedefDecl) stmt()      {}

// ConstDecl introduces a named constant: constant Type Name = Value;
type ConstDecl struct {
	SpanVal Span
	Type    *TypeRef
	Name    Ident
	Value   Expr
}

func (n *ConstDecl) Span() Span { return n.SpanVal }
func (n *ConstDecl) node()      {}
func (n *ConstDecl) decl()      {}
func (n *ConstDecl) stmt()      {}

// VarDecl declares a data member (inside a class) or a local variable
// (inside a function body).
type VarDecl struct {
	SpanVal Span
	Type    *TypeRef
	Name    Ident
	Init    Expr
}

func (n *VarDecl) Span() Span { return n.SpanVal }
func (n *VarDecl) node()      {}
func (n *VarDecl) decl()      {}
func (n *VarDecl) stmt()      {}

// FuncDecl declares a class member function. A nil Return means Void.
type FuncDecl struct {
	SpanVal Span
	Name    Ident
	Params  []*Param
	Return  *TypeRef
	Body    *Block
}

func (n *FuncDecl) Span() Span { return n.SpanVal }
func (n *FuncDecl) node()      {}
func (n *FuncDecl) decl()      {}

// TypeRef names a type: [Scope.]Name[(Args)][Dims...][&].
// Builtin primitives are plain names ("Int", "Unsigned", ...) whose single
// optional argument is the bit width.
type TypeRef struct {
	SpanVal Span
	Scope   *TypeRef
	Name    Ident
	Args    []Expr
	Dims    []Expr
	Ref     bool
}

func (n *TypeRef) Span() Span { return n.SpanVal }
func (n *TypeRef) node()      {}
