package sema

import (
	"testing"

	"github.com/chazu/quarkc/ast"
	"github.com/chazu/quarkc/config"
)

func TestBindings(t *testing.T) {
	b := newTB()
	aRef := b.typ("Unsigned", b.lit(4))
	xRef := b.typ("Unsigned", b.name("n"))
	kName := b.name("k")
	unused := b.name("k")
	q := b.quark("Q", b.field(aRef, "a", nil))
	tmpl := b.template(ast.Quark, "T", b.params(b.param(b.typ("Unsigned"), "n", nil)), b.field(xRef, "x", nil))
	aliasRef := b.typ("Q")
	p, sink := b.analyze(t, config.Default(),
		q, tmpl,
		b.typedef(aliasRef, "Alias"),
		b.constant(b.typ("Int"), "k", b.lit(3)),
		b.constant(b.typ("Int"), "j", b.bin(ast.OpAdd, kName, b.lit(1))),
		b.constant(b.typ("Unsigned"), "two", b.typeOp(ast.SizeOf, b.typ("T", b.lit(2)))),
		b.constant(b.typ("Unsigned"), "five", b.typeOp(ast.SizeOf, b.typ("T", b.lit(5)))),
	)
	if len(sink.Errors()) > 0 {
		dumpDiags(t, sink)
		t.Fatal("unexpected diagnostics")
	}

	if got := p.TypeOf(aRef); got == nil || got.BitSize() != 4 {
		t.Errorf("TypeOf(Unsigned(4)) = %v", got)
	}
	if got := p.TypeOf(aliasRef); got == nil || got.Basic() != mustClass(t, p, "Q") {
		t.Errorf("TypeOf(Q) = %v, want class Q", got)
	}
	if got, want := p.SymbolOf(kName), p.Lookup("M", "k"); got != want {
		t.Errorf("SymbolOf(k) = %v, want the module constant", got)
	}
	if got := p.SymbolOf(unused); got != nil {
		t.Errorf("SymbolOf(unevaluated name) = %v, want nil", got)
	}
	if got := p.TypeOf(xRef); got != nil {
		t.Errorf("template member type outside an instance = %v, want nil", got)
	}

	instances := 0
	for _, c := range p.Registry.Classes() {
		if c.Template == nil {
			continue
		}
		instances++
		got := p.Bindings().Type(xRef, c)
		if got == nil || got.BitSize() != c.BitSize() {
			t.Errorf("x in %s resolved to %v, want %d bits", c.Name(), got, c.BitSize())
		}
	}
	if instances != 2 {
		t.Errorf("%d instances of T, want 2", instances)
	}
}
