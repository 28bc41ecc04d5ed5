package sema

import (
	"testing"

	"github.com/chazu/quarkc/ast"
	"github.com/chazu/quarkc/config"
	"github.com/chazu/quarkc/diag"
)

// tb builds syntax trees against one interner.
type tb struct {
	names *ast.Interner
	line  int
}

func newTB() *tb { return &tb{names: ast.NewInterner()} }

func (b *tb) id(s string) ast.Ident { return b.names.Intern(s) }

// span hands out a fresh line per node so diagnostics are distinguishable.
func (b *tb) span() ast.Span {
	b.line++
	return ast.Span{File: "test.ulam", Start: ast.Position{Line: b.line, Column: 1}}
}

func (b *tb) typ(name string, args ...ast.Expr) *ast.TypeRef {
	return &ast.TypeRef{SpanVal: b.span(), Name: b.id(name), Args: args}
}

func (b *tb) arr(t *ast.TypeRef, dims ...ast.Expr) *ast.TypeRef {
	t.Dims = dims
	return t
}

func (b *tb) ref(t *ast.TypeRef) *ast.TypeRef {
	t.Ref = true
	return t
}

func (b *tb) lit(v uint64) *ast.IntLiteral { return &ast.IntLiteral{SpanVal: b.span(), Value: v} }

func (b *tb) boolean(v bool) *ast.BoolLiteral { return &ast.BoolLiteral{SpanVal: b.span(), Value: v} }

func (b *tb) name(s string) *ast.NameExpr { return &ast.NameExpr{SpanVal: b.span(), Name: b.id(s)} }

func (b *tb) self() *ast.SelfExpr { return &ast.SelfExpr{SpanVal: b.span()} }

func (b *tb) bin(op ast.Op, x, y ast.Expr) *ast.BinaryExpr {
	return &ast.BinaryExpr{SpanVal: b.span(), Op: op, X: x, Y: y}
}

func (b *tb) unary(op ast.Op, x ast.Expr) *ast.UnaryExpr {
	return &ast.UnaryExpr{SpanVal: b.span(), Op: op, X: x}
}

func (b *tb) assign(target, value ast.Expr) *ast.AssignExpr {
	return &ast.AssignExpr{SpanVal: b.span(), Target: target, Value: value}
}

func (b *tb) member(x ast.Expr, name string) *ast.MemberExpr {
	return &ast.MemberExpr{SpanVal: b.span(), X: x, Name: b.id(name)}
}

func (b *tb) index(x, i ast.Expr) *ast.IndexExpr {
	return &ast.IndexExpr{SpanVal: b.span(), X: x, Index: i}
}

func (b *tb) call(fun ast.Expr, args ...ast.Expr) *ast.CallExpr {
	return &ast.CallExpr{SpanVal: b.span(), Fun: fun, Args: args}
}

func (b *tb) cast(t *ast.TypeRef, x ast.Expr) *ast.CastExpr {
	return &ast.CastExpr{SpanVal: b.span(), Type: t, X: x}
}

func (b *tb) typeOp(op ast.TypeOpKind, t *ast.TypeRef) *ast.TypeOpExpr {
	return &ast.TypeOpExpr{SpanVal: b.span(), Op: op, Type: t}
}

func (b *tb) is(x ast.Expr, t *ast.TypeRef) *ast.IsExpr {
	return &ast.IsExpr{SpanVal: b.span(), X: x, Type: t}
}

// constantOf builds constantof(name) for calling member functions on a
// class's default object.
func (b *tb) constantOf(name string) *ast.TypeOpExpr {
	return b.typeOp(ast.ConstantOf, b.typ(name))
}

// ---------------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------------

func (b *tb) class(kind ast.ClassKind, name string, bases []*ast.TypeRef, members ...ast.Decl) *ast.ClassDecl {
	return &ast.ClassDecl{SpanVal: b.span(), Kind: kind, Name: b.id(name), Bases: bases, Members: members}
}

func (b *tb) quark(name string, members ...ast.Decl) *ast.ClassDecl {
	return b.class(ast.Quark, name, nil, members...)
}

func (b *tb) element(name string, members ...ast.Decl) *ast.ClassDecl {
	return b.class(ast.Element, name, nil, members...)
}

func (b *tb) template(kind ast.ClassKind, name string, params []*ast.Param, members ...ast.Decl) *ast.ClassDecl {
	d := b.class(kind, name, nil, members...)
	d.Params = params
	if d.Params == nil {
		d.Params = []*ast.Param{}
	}
	return d
}

func (b *tb) param(t *ast.TypeRef, name string, def ast.Expr) *ast.Param {
	return &ast.Param{SpanVal: b.span(), Type: t, Name: b.id(name), Default: def}
}

func (b *tb) field(t *ast.TypeRef, name string, init ast.Expr) *ast.VarDecl {
	return &ast.VarDecl{SpanVal: b.span(), Type: t, Name: b.id(name), Init: init}
}

func (b *tb) constant(t *ast.TypeRef, name string, value ast.Expr) *ast.ConstDecl {
	return &ast.ConstDecl{SpanVal: b.span(), Type: t, Name: b.id(name), Value: value}
}

func (b *tb) typedef(t *ast.TypeRef, name string) *ast.TypedefDecl {
	return &ast.TypedefDecl{SpanVal: b.span(), Type: t, Name: b.id(name)}
}

func (b *tb) fun(ret *ast.TypeRef, name string, params []*ast.Param, body ...ast.Stmt) *ast.FuncDecl {
	return &ast.FuncDecl{SpanVal: b.span(), Name: b.id(name), Params: params, Return: ret, Body: b.block(body...)}
}

func (b *tb) params(ps ...*ast.Param) []*ast.Param { return ps }

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (b *tb) block(stmts ...ast.Stmt) *ast.Block { return &ast.Block{SpanVal: b.span(), Stmts: stmts} }

func (b *tb) expr(x ast.Expr) *ast.ExprStmt { return &ast.ExprStmt{SpanVal: b.span(), X: x} }

func (b *tb) ret(x ast.Expr) *ast.ReturnStmt { return &ast.ReturnStmt{SpanVal: b.span(), Value: x} }

func (b *tb) local(t *ast.TypeRef, name string, init ast.Expr) *ast.VarDecl {
	return b.field(t, name, init)
}

func (b *tb) ifElse(cond ast.Expr, then, els ast.Stmt) *ast.IfStmt {
	return &ast.IfStmt{SpanVal: b.span(), Cond: cond, Then: then, Else: els}
}

func (b *tb) while(cond ast.Expr, body ...ast.Stmt) *ast.WhileStmt {
	return &ast.WhileStmt{SpanVal: b.span(), Cond: cond, Body: b.block(body...)}
}

func (b *tb) brk() *ast.BreakStmt { return &ast.BreakStmt{SpanVal: b.span()} }

// ---------------------------------------------------------------------------
// Programs
// ---------------------------------------------------------------------------

func (b *tb) module(name string, decls ...ast.Decl) *ast.Module {
	return &ast.Module{SpanVal: b.span(), Name: b.id(name), Decls: decls}
}

func (b *tb) program(mods ...*ast.Module) *ast.Program {
	return &ast.Program{Names: b.names, Modules: mods}
}

// analyze runs the passes over a single module named M.
func (b *tb) analyze(t *testing.T, cfg config.Config, decls ...ast.Decl) (*Program, *diag.Collector) {
	t.Helper()
	sink := diag.NewCollector()
	p, err := Analyze(b.program(b.module("M", decls...)), cfg, sink)
	if p == nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	return p, sink
}

func mustClass(t *testing.T, p *Program, name string) *Class {
	t.Helper()
	typ, err := p.LookupType("M", name)
	if err != nil {
		t.Fatalf("LookupType(%s): %v", name, err)
	}
	c, ok := typ.Basic().(*Class)
	if !ok {
		t.Fatalf("%s is %s, not a class", name, typ.Name())
	}
	return c
}

// constInt folds the module constant name and returns it as an int64.
func constInt(t *testing.T, p *Program, name string) int64 {
	t.Helper()
	vs, ok := p.Lookup("M", name).(*VarSymbol)
	if !ok {
		t.Fatalf("%s is not a constant", name)
	}
	v, err := p.resolver.constValue(vs)
	if err != nil {
		t.Fatalf("constant %s: %v", name, err)
	}
	x, ok := v.Int()
	if !ok {
		t.Fatalf("constant %s is %s, not an integer", name, v.Type.Name())
	}
	return x.Int64()
}

// constErr returns the diagnostic code the module constant name failed
// with.
func constErr(t *testing.T, p *Program, name string) diag.Code {
	t.Helper()
	vs, ok := p.Lookup("M", name).(*VarSymbol)
	if !ok {
		t.Fatalf("%s is not a constant", name)
	}
	_, err := p.resolver.constValue(vs)
	if err == nil {
		t.Fatalf("constant %s folded, want an error", name)
	}
	return CodeOf(err)
}

func dumpDiags(t *testing.T, sink *diag.Collector) {
	t.Helper()
	for _, d := range sink.All() {
		t.Logf("  %s", d)
	}
}

func newResolver(cfg config.Config) *Resolver {
	names := ast.NewInterner()
	return NewResolver(NewRegistry(cfg), NewScopes(names), names, cfg, diag.NewCollector())
}
