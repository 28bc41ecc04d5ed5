package sema

import (
	"errors"
	"fmt"

	"github.com/chazu/quarkc/ast"
	"github.com/chazu/quarkc/config"
	"github.com/chazu/quarkc/diag"
)

// Module is an analyzed source module.
type Module struct {
	Name    ast.Ident
	Decl    *ast.Module
	Scope   *Scope
	Imports []*Module
}

// Program is the result of analysis: every module scope, and through the
// registry every type, class and template instance.
type Program struct {
	Registry *Registry
	Scopes   *Scopes
	Names    *ast.Interner
	Config   config.Config
	Root     *Scope
	Modules  []*Module

	byName   map[ast.Ident]*Module
	rejected map[ast.Decl]bool
	resolver *Resolver
	sink     diag.Sink
}

// Analyze runs the semantic passes over tree. Errors in declarations are
// reported to sink and analysis continues; the returned error is non-nil
// only when the program as a whole cannot be analyzed.
func Analyze(tree *ast.Program, cfg config.Config, sink diag.Sink) (*Program, error) {
	if sink == nil {
		sink = diag.NewCollector()
	}
	scopes := NewScopes(tree.Names)
	reg := NewRegistry(cfg)
	p := &Program{
		Registry: reg,
		Scopes:   scopes,
		Names:    tree.Names,
		Config:   cfg,
		byName:   make(map[ast.Ident]*Module),
		rejected: make(map[ast.Decl]bool),
		sink:     sink,
	}
	p.resolver = NewResolver(reg, scopes, tree.Names, cfg, sink)
	p.Root = scopes.New(NoScope, FlagProgram|FlagPersistent)

	if err := p.declare(tree); err != nil {
		log.Errorf("analysis failed: %s", err)
		return nil, err
	}
	p.link()
	p.defineClasses()
	p.evaluate()

	for _, c := range reg.Classes() {
		if c.state == Unresolvable && errors.Is(c.err, ErrCyclicInheritance) {
			err := fmt.Errorf("class %s: %w", c.name, ErrCyclicInheritance)
			log.Errorf("analysis failed: %s", err)
			return p, err
		}
	}
	return p, nil
}

// declare creates module scopes and a placeholder for every module-level
// name.
func (p *Program) declare(tree *ast.Program) error {
	r := p.resolver
	for _, md := range tree.Modules {
		if _, dup := p.byName[md.Name]; dup {
			return fmt.Errorf("module %s declared twice: %w", p.Names.Name(md.Name), ErrRedeclaration)
		}
		ms := p.Scopes.New(p.Root.ID, FlagModule|FlagPersistent)
		m := &Module{Name: md.Name, Decl: md, Scope: ms}
		p.byName[md.Name] = m
		p.Modules = append(p.Modules, m)

		classes := make(map[ast.Ident]bool)
		for _, d := range md.Decls {
			switch d := d.(type) {
			case *ast.ClassDecl:
				if classes[d.Name] {
					return fmt.Errorf("class %s declared twice in module %s: %w",
						p.Names.Name(d.Name), p.Names.Name(md.Name), ErrRedeclaration)
				}
				classes[d.Name] = true
				p.declarePlaceholder(ms, d)
			case *ast.TypedefDecl:
				p.declarePlaceholder(ms, d)
			case *ast.ConstDecl:
				if ms.Own(d.Name) != nil {
					r.report(errorf(diag.Redeclaration, d.Span(), "%s already declared", p.Names.Name(d.Name)))
					continue
				}
				sym := &VarSymbol{symBase: symBase{d.Name, d.Span()}, Kind: VarConstant, decl: d, scope: ms.ID}
				p.set(ms, d.Name, sym)
			case *ast.VarDecl:
				r.report(errorf(diag.Incompatible, d.Span(), "variable %s must be declared in a class", p.Names.Name(d.Name)))
			case *ast.FuncDecl:
				r.report(errorf(diag.Incompatible, d.Span(), "function %s must be declared in a class", p.Names.Name(d.Name)))
			}
		}
	}
	return nil
}

// declarePlaceholder stands in for a class or typedef until pass two
// defines it. A declaration whose name is taken is rejected.
func (p *Program) declarePlaceholder(ms *Scope, d ast.Decl) {
	name, span := declName(d), d.Span()
	if ms.Own(name) != nil {
		p.rejected[d] = true
		p.resolver.report(errorf(diag.Redeclaration, span, "%s already declared", p.Names.Name(name)))
		return
	}
	ph := p.Registry.NewPlaceholder(p.Names.Name(name))
	p.set(ms, name, &TypeSymbol{symBase: symBase{name, span}, Type: ph, state: Resolved})
}

func declName(d ast.Decl) ast.Ident {
	switch d := d.(type) {
	case *ast.ClassDecl:
		return d.Name
	case *ast.TypedefDecl:
		return d.Name
	}
	return ast.NoIdent
}

func (p *Program) set(s *Scope, name ast.Ident, sym Symbol) bool {
	if err := s.Set(name, sym); err != nil {
		p.resolver.report(err)
		return false
	}
	return true
}

// link resolves imports between modules.
func (p *Program) link() {
	for _, m := range p.Modules {
		for _, imp := range m.Decl.Imports {
			target, ok := p.byName[imp.Module]
			if !ok {
				p.resolver.report(errorf(diag.NameNotFound, imp.Span(), "module %s not found", p.Names.Name(imp.Module)))
				continue
			}
			m.Scope.Import(target.Scope.ID)
			m.Imports = append(m.Imports, target)
		}
	}
}

// pendingTypedef is a module typedef waiting for its target.
type pendingTypedef struct {
	mod      *Module
	decl     *ast.TypedefDecl
	snap     Snapshot
	deferred bool
}

// defineClasses binds the class and template placeholders, resolves module
// typedefs to a fixed point, then resolves every class.
func (p *Program) defineClasses() {
	r := p.resolver
	r.ready = false

	var pending []*pendingTypedef
	for _, m := range p.Modules {
		for _, d := range m.Decl.Decls {
			if p.rejected[d] {
				continue
			}
			switch d := d.(type) {
			case *ast.ClassDecl:
				ts, ok := m.Scope.Own(d.Name).(*TypeSymbol)
				if !ok || !ts.IsPlaceholder() {
					continue
				}
				ph := ts.Type.(*PlaceholderType)
				if d.IsTemplate() {
					t := r.DefineTemplate(d, m.Scope)
					p.set(m.Scope, d.Name, &TemplateSymbol{symBase{d.Name, d.Span()}, t})
					ph.Bind(t)
				} else {
					c := r.DefineClass(d, m.Scope)
					p.set(m.Scope, d.Name, NewTypeSymbol(d.Name, d.Span(), c))
					ph.Bind(c)
				}
			case *ast.TypedefDecl:
				pending = append(pending, &pendingTypedef{mod: m, decl: d})
			}
		}
	}

	for progress := true; progress && len(pending) > 0; {
		progress = false
		var next []*pendingTypedef
		for _, it := range pending {
			ms := it.mod.Scope
			if it.deferred && !ms.ChangedSince(it.snap) {
				next = append(next, it)
				continue
			}
			ok, err := p.resolveTypedef(it)
			switch {
			case ok:
				progress = true
			case errors.Is(err, errUnbound):
				it.snap = ms.Snapshot()
				it.deferred = true
				next = append(next, it)
			default:
				r.report(err)
				progress = true
			}
		}
		pending = next
	}
	for _, it := range pending {
		r.report(errorf(diag.UnresolvedName, it.decl.Span(), "typedef %s cannot be resolved", p.Names.Name(it.decl.Name)))
	}
	for _, m := range p.Modules {
		for _, sym := range m.Scope.Purge() {
			log.Debugf("purged %s", p.Names.Name(sym.Name()))
		}
	}

	r.ready = true
	classes := p.Registry.Classes()
	for i := 0; i < len(classes); i++ {
		r.Resolve(classes[i])
		classes = p.Registry.Classes()
	}
}

// resolveTypedef tries to resolve one module typedef and binds its
// placeholder on success.
func (p *Program) resolveTypedef(it *pendingTypedef) (bool, error) {
	r := p.resolver
	ms := it.mod.Scope
	name := it.decl.Name
	ts, ok := ms.Own(name).(*TypeSymbol)
	if !ok || !ts.IsPlaceholder() {
		return true, nil
	}
	saved := r.horizon
	r.horizon = horizon{ms.ID, ms.SeqOf(name)}
	t, err := r.ResolveTypeRef(it.decl.Type, ms)
	r.horizon = saved
	if err != nil {
		return false, err
	}
	alias := p.Registry.NewAlias(p.Names.Name(name), t)
	ph := ts.Type.(*PlaceholderType)
	p.set(ms, name, NewTypeSymbol(name, it.decl.Span(), alias))
	ph.Bind(alias)
	return true, nil
}

// evaluate folds every constant and validates every function body,
// including those of template instances created along the way.
func (p *Program) evaluate() {
	r := p.resolver
	for _, m := range p.Modules {
		p.foldConstants(m.Scope)
	}
	classes := p.Registry.Classes()
	for i := 0; i < len(classes); i++ {
		c := classes[i]
		if r.Resolve(c) == nil {
			r.installMembers(c)
			p.foldConstants(p.Scopes.Get(c.Scope))
			p.validateFunctions(c)
		}
		classes = p.Registry.Classes()
	}
}

func (p *Program) foldConstants(s *Scope) {
	for _, name := range s.Names() {
		if vs, ok := s.Own(name).(*VarSymbol); ok && vs.Kind == VarConstant {
			p.resolver.constValue(vs)
		}
	}
}

func (p *Program) validateFunctions(c *Class) {
	for _, m := range c.Decl.Members {
		fd, ok := m.(*ast.FuncDecl)
		if !ok {
			continue
		}
		set := c.Funs[fd.Name]
		if set == nil {
			continue
		}
		for _, fn := range set.Funs {
			if fn.Decl != fd {
				continue
			}
			if err := p.resolver.eval.ValidateFunction(fn); err != nil {
				p.resolver.report(err)
			}
		}
	}
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// Resolver returns the resolver used for the analysis.
func (p *Program) Resolver() *Resolver { return p.resolver }

// Module returns the module with the given name, or nil.
func (p *Program) Module(name string) *Module {
	id, ok := p.Names.Lookup(name)
	if !ok {
		return nil
	}
	return p.byName[id]
}

// Lookup returns the symbol a name denotes at module level, or nil.
func (p *Program) Lookup(module, name string) Symbol {
	m := p.Module(module)
	id, ok := p.Names.Lookup(name)
	if m == nil || !ok {
		return nil
	}
	return m.Scope.Get(id, false)
}

// LookupType returns the type a module-level name denotes.
func (p *Program) LookupType(module, name string) (Type, error) {
	switch s := p.Lookup(module, name).(type) {
	case *TypeSymbol:
		if s.IsPlaceholder() {
			return nil, errorf(diag.UnresolvedName, s.span, "%s is unresolved", name)
		}
		return s.Type, nil
	case *TemplateSymbol:
		return s.Template, nil
	case nil:
		return nil, errorf(diag.NameNotFound, zeroSpan, "%s.%s not declared", module, name)
	}
	return nil, errorf(diag.Incompatible, zeroSpan, "%s.%s is not a type", module, name)
}

// Bindings returns the types and symbols the analysis attached to tree
// nodes.
func (p *Program) Bindings() *Bindings { return p.resolver.binds }

// TypeOf returns the type ref resolved to outside any template
// declaration, or nil.
func (p *Program) TypeOf(ref *ast.TypeRef) Type { return p.resolver.binds.Type(ref, nil) }

// SymbolOf returns the symbol n was bound to outside any template
// declaration, or nil.
func (p *Program) SymbolOf(n *ast.NameExpr) Symbol { return p.resolver.binds.Symbol(n, nil) }

// EvalConstant evaluates x in scope as a compile-time constant.
func (p *Program) EvalConstant(x ast.Expr, scope *Scope) (RValue, error) {
	return p.resolver.eval.Constant(x, scope)
}
