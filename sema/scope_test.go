package sema

import (
	"errors"
	"testing"

	"github.com/chazu/quarkc/ast"
	"github.com/chazu/quarkc/config"
)

func TestScopeShadowing(t *testing.T) {
	names := ast.NewInterner()
	reg := NewRegistry(config.Default())
	a := NewScopes(names)
	x := names.Intern("x")

	outer := a.New(NoScope, FlagModule|FlagPersistent)
	inner := a.New(outer.ID, FlagBlock)
	outerSym := NewTypeSymbol(x, ast.Span{}, reg.Bool())
	innerSym := NewTypeSymbol(x, ast.Span{}, reg.Unsigned())
	if err := outer.Set(x, outerSym); err != nil {
		t.Fatal(err)
	}
	if got := inner.Get(x, false); got != Symbol(outerSym) {
		t.Errorf("inner sees %v, want the outer symbol", got)
	}
	if got := inner.Get(x, true); got != nil {
		t.Errorf("current-only lookup found %v in a parent", got)
	}
	if err := inner.Set(x, innerSym); err != nil {
		t.Fatal(err)
	}
	if got := inner.Get(x, false); got != Symbol(innerSym) {
		t.Error("inner declaration does not shadow the outer one")
	}
	if got := outer.Get(x, false); got != Symbol(outerSym) {
		t.Error("shadowing leaked into the parent")
	}
}

func TestScopeRedeclaration(t *testing.T) {
	names := ast.NewInterner()
	reg := NewRegistry(config.Default())
	a := NewScopes(names)
	s := a.New(NoScope, FlagModule)
	n := names.Intern("n")

	ph := &TypeSymbol{symBase: symBase{n, ast.Span{}}, Type: reg.NewPlaceholder("n"), state: Resolved}
	if err := s.Set(n, ph); err != nil {
		t.Fatal(err)
	}
	def := NewTypeSymbol(n, ast.Span{}, reg.Bool())
	if err := s.Set(n, def); err != nil {
		t.Fatalf("replacing a placeholder failed: %v", err)
	}
	err := s.Set(n, NewTypeSymbol(n, ast.Span{}, reg.Unsigned()))
	if !errors.Is(err, ErrRedeclaration) {
		t.Errorf("Set over a real symbol = %v, want ErrRedeclaration", err)
	}
	if s.Get(n, true) != Symbol(def) {
		t.Error("failed redeclaration replaced the symbol")
	}
	if got := s.Names(); len(got) != 1 || got[0] != n {
		t.Errorf("Names() = %v, want [n]", got)
	}
}

func TestSnapshotChangedSince(t *testing.T) {
	names := ast.NewInterner()
	reg := NewRegistry(config.Default())
	a := NewScopes(names)
	mod := a.New(NoScope, FlagModule|FlagPersistent)
	lib := a.New(NoScope, FlagModule|FlagPersistent)
	child := a.New(mod.ID, FlagBlock)

	snap := child.Snapshot()
	if child.ChangedSince(snap) {
		t.Fatal("fresh snapshot reports a change")
	}
	mod.Set(names.Intern("a"), NewTypeSymbol(names.Intern("a"), ast.Span{}, reg.Bool()))
	if !child.ChangedSince(snap) {
		t.Error("declaration in a parent not seen")
	}

	snap = child.Snapshot()
	mod.Import(lib.ID)
	if !child.ChangedSince(snap) {
		t.Error("new import not seen")
	}

	snap = child.Snapshot()
	lib.Set(names.Intern("b"), NewTypeSymbol(names.Intern("b"), ast.Span{}, reg.Bool()))
	if !child.ChangedSince(snap) {
		t.Error("declaration in an imported scope not seen")
	}

	snap = child.Snapshot()
	a.New(mod.ID, FlagBlock).Set(names.Intern("c"), NewTypeSymbol(names.Intern("c"), ast.Span{}, reg.Bool()))
	if child.ChangedSince(snap) {
		t.Error("declaration in a sibling scope reported as a change")
	}
}

func TestPurgeUnresolved(t *testing.T) {
	names := ast.NewInterner()
	reg := NewRegistry(config.Default())
	a := NewScopes(names)
	mod := a.New(NoScope, FlagModule|FlagPersistent)
	inner := a.New(mod.ID, FlagBlock)
	p, q := names.Intern("P"), names.Intern("Q")

	mod.Set(p, &TypeSymbol{symBase: symBase{p, ast.Span{}}, Type: reg.NewPlaceholder("P"), state: Resolved})
	bound := reg.NewPlaceholder("Q")
	mod.Set(q, &TypeSymbol{symBase: symBase{q, ast.Span{}}, Type: bound, state: Resolved})
	bound.Bind(reg.Bool())

	purged := mod.Purge()
	if len(purged) != 1 || purged[0].Name() != p {
		t.Fatalf("Purge() = %v, want only P", purged)
	}
	if mod.Get(p, true) != nil {
		t.Error("P still declared after Purge")
	}
	if mod.Get(q, true) == nil {
		t.Error("bound placeholder Q was purged")
	}
	if !inner.IsUnresolved(p) {
		t.Error("P not reported unresolved from a nested scope")
	}
	if inner.IsUnresolved(q) {
		t.Error("Q reported unresolved")
	}
}

func TestControlScopes(t *testing.T) {
	names := ast.NewInterner()
	a := NewScopes(names)
	cls := a.New(NoScope, FlagClass|FlagPersistent)
	fn := a.New(cls.ID, FlagFun|FlagSelf)
	self := NewVar(ast.NoIdent, NewRegistry(config.Default()).Bool(), RValue{})
	fn.Self = self
	loop := a.New(fn.ID, FlagBreak|FlagContinue|FlagBlock)
	body := a.New(loop.ID, FlagBlock)

	if body.NearestLoop() != loop {
		t.Error("NearestLoop missed the enclosing loop")
	}
	if fn.NearestLoop() != nil {
		t.Error("NearestLoop found a loop outside the function")
	}
	inner := a.New(body.ID, FlagFun)
	if inner.NearestLoop() != nil {
		t.Error("NearestLoop crossed a function boundary")
	}
	if body.SelfBinding() != LValue(self) {
		t.Error("SelfBinding did not find the function's instance")
	}
	if cls.SelfBinding() != nil {
		t.Error("class scope has an instance")
	}
}

func TestScopeRelease(t *testing.T) {
	a := NewScopes(ast.NewInterner())
	root := a.New(NoScope, FlagProgram|FlagPersistent)
	mark := a.Len()
	a.New(root.ID, FlagBlock)
	kept := a.New(root.ID, FlagClass|FlagPersistent)
	a.New(kept.ID, FlagBlock)
	a.release(mark)
	if a.Get(kept.ID) != kept {
		t.Error("release dropped a persistent scope")
	}
	if a.Len() != int(kept.ID)+1 {
		t.Errorf("Len() = %d, want %d", a.Len(), kept.ID+1)
	}
}
