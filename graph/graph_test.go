package graph

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/chazu/quarkc/ast"
	"github.com/chazu/quarkc/config"
	"github.com/chazu/quarkc/diag"
	"github.com/chazu/quarkc/sema"
)

// sampleProgram declares a quark, an element inheriting it, a template with
// one instance, a self-containing class, a constant and a typedef.
func sampleProgram(t *testing.T) *sema.Program {
	t.Helper()
	names := ast.NewInterner()
	id := names.Intern
	typ := func(name string, args ...ast.Expr) *ast.TypeRef {
		return &ast.TypeRef{Name: id(name), Args: args}
	}
	lit := func(v uint64) ast.Expr { return &ast.IntLiteral{Value: v} }
	field := func(t *ast.TypeRef, name string, init ast.Expr) ast.Decl {
		return &ast.VarDecl{Type: t, Name: id(name), Init: init}
	}

	q := &ast.ClassDecl{Kind: ast.Quark, Name: id("Q"), Members: []ast.Decl{
		field(typ("Unsigned", lit(4)), "a", lit(3)),
		field(typ("Bool"), "b", nil),
		&ast.FuncDecl{Name: id("get"), Return: typ("Int"), Body: &ast.Block{Stmts: []ast.Stmt{
			&ast.ReturnStmt{Value: lit(1)},
		}}},
	}}
	e := &ast.ClassDecl{Kind: ast.Element, Name: id("E"), Bases: []*ast.TypeRef{typ("Q")}, Members: []ast.Decl{
		field(typ("Unsigned", lit(8)), "c", lit(7)),
	}}
	tmpl := &ast.ClassDecl{Kind: ast.Quark, Name: id("T"),
		Params:  []*ast.Param{{Type: typ("Unsigned"), Name: id("n")}},
		Members: []ast.Decl{field(typ("Unsigned", &ast.NameExpr{Name: id("n")}), "x", nil)},
	}
	loop := &ast.ClassDecl{Kind: ast.Quark, Name: id("Loop"), Members: []ast.Decl{field(typ("Loop"), "inner", nil)}}

	mod := &ast.Module{Name: id("M"), Decls: []ast.Decl{
		q, e, tmpl, loop,
		&ast.ConstDecl{Type: typ("Int"), Name: id("k"), Value: lit(5)},
		&ast.ConstDecl{Type: typ("Unsigned"), Name: id("s"), Value: &ast.TypeOpExpr{Op: ast.SizeOf, Type: typ("T", lit(3))}},
		&ast.TypedefDecl{Type: typ("Q"), Name: id("Alias")},
	}}
	p, err := sema.Analyze(&ast.Program{Names: names, Modules: []*ast.Module{mod}}, config.Default(), diag.NewCollector())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	return p
}

func TestBuild(t *testing.T) {
	g := Build(sampleProgram(t))

	if _, err := uuid.Parse(g.BuildID); err != nil {
		t.Errorf("BuildID %q is not a UUID: %v", g.BuildID, err)
	}
	if len(g.Modules) != 1 {
		t.Fatalf("got %d modules, want 1", len(g.Modules))
	}
	m := g.Modules[0]
	if m.Name != "M" {
		t.Errorf("module name = %q, want M", m.Name)
	}
	if len(m.Constants) != 2 || m.Constants[0].Name != "k" || m.Constants[0].Value != "5" {
		t.Errorf("constants = %+v, want k = 5 first", m.Constants)
	}
	if len(m.Typedefs) != 1 || m.Typedefs[0].Target != "Q" {
		t.Errorf("typedefs = %+v, want Alias -> Q", m.Typedefs)
	}
	if len(m.Templates) != 1 || m.Templates[0] != "T" {
		t.Errorf("templates = %v, want [T]", m.Templates)
	}

	q := g.Class("Q")
	if q == nil {
		t.Fatal("class Q missing")
	}
	if q.Size != 5 || q.State != "Resolved" || q.Kind != "quark" {
		t.Errorf("Q = %+v", q)
	}
	if len(q.Members) != 2 || q.Members[0].Default != "3" || q.Members[1].Offset != 4 {
		t.Errorf("Q members = %+v", q.Members)
	}
	if len(q.Functions) != 1 || q.Functions[0].Name != "get" || q.Functions[0].Signature == "" {
		t.Errorf("Q functions = %+v", q.Functions)
	}

	e := g.Class("E")
	if e == nil {
		t.Fatal("class E missing")
	}
	if e.Size != 13 || e.ClassID == 0 || len(e.Bases) != 1 || e.Bases[0] != "Q" {
		t.Errorf("E = %+v", e)
	}
	if len(e.Members) != 3 || e.Members[0].Owner != "Q" || e.Members[2].Name != "c" || e.Members[2].Offset != 5 {
		t.Errorf("E members = %+v", e.Members)
	}

	inst := g.Class("T(3)")
	if inst == nil {
		t.Fatal("template instance T(3) missing")
	}
	if inst.Template != "T" || len(inst.Args) != 1 || inst.Args[0] != "3" || inst.Size != 3 {
		t.Errorf("T(3) = %+v", inst)
	}

	bad := g.Class("Loop")
	if bad == nil || bad.State != "Unresolvable" || bad.Error == "" {
		t.Errorf("Loop = %+v, want Unresolvable with an error", bad)
	}
}

func TestBuildIDsAreFresh(t *testing.T) {
	p := sampleProgram(t)
	if Build(p).BuildID == Build(p).BuildID {
		t.Error("two builds share a build ID")
	}
}

func TestMarshal(t *testing.T) {
	g := Build(sampleProgram(t))

	data, err := Marshal(g, "cbor")
	if err != nil {
		t.Fatalf("Marshal cbor: %v", err)
	}
	back, err := UnmarshalCBOR(data)
	if err != nil {
		t.Fatalf("UnmarshalCBOR: %v", err)
	}
	if back.BuildID != g.BuildID || len(back.Classes) != len(g.Classes) {
		t.Errorf("decoded graph = %s with %d classes", back.BuildID, len(back.Classes))
	}
	if e := back.Class("E"); e == nil || e.Size != 13 {
		t.Errorf("decoded E = %+v", e)
	}

	text, err := Marshal(g, "yaml")
	if err != nil {
		t.Fatalf("Marshal yaml: %v", err)
	}
	for _, want := range []string{"build-id: " + g.BuildID, "name: Q", "template: T", "state: Unresolvable"} {
		if !strings.Contains(string(text), want) {
			t.Errorf("yaml output missing %q:\n%s", want, text)
		}
	}

	if _, err := Marshal(g, "json"); err == nil {
		t.Error("Marshal accepted an unknown format")
	}
}
