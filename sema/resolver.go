package sema

import (
	"errors"

	"github.com/chazu/quarkc/ast"
	"github.com/chazu/quarkc/bits"
	"github.com/chazu/quarkc/config"
	"github.com/chazu/quarkc/diag"
	"github.com/chazu/quarkc/mangle"
)

// Resolver drives classes through resolution and resolves type references
// and lazy symbols. One Resolver serves one analysis.
type Resolver struct {
	reg    *Registry
	scopes *Scopes
	names  *ast.Interner
	cfg    config.Config
	sink   diag.Sink
	eval   *Evaluator
	cast   *Caster
	binds  *Bindings

	// ready is false while module placeholders may still be unbound; class
	// resolution waits until then.
	ready   bool
	horizon horizon
}

// NewResolver wires a resolver together with its evaluator and caster.
func NewResolver(reg *Registry, scopes *Scopes, names *ast.Interner, cfg config.Config, sink diag.Sink) *Resolver {
	r := &Resolver{
		reg:    reg,
		scopes: scopes,
		names:  names,
		cfg:    cfg,
		sink:   sink,
		binds:  newBindings(),
		ready:  true,
	}
	r.eval = &Evaluator{r: r}
	r.cast = &Caster{r: r}
	scopes.AllowAccessBeforeDef = cfg.Analysis.AllowAccessBeforeDef
	scopes.PreferParams = cfg.Analysis.PreferParamsInParamResolution
	return r
}

// Evaluator returns the resolver's evaluator.
func (r *Resolver) Evaluator() *Evaluator { return r.eval }

// Caster returns the resolver's caster.
func (r *Resolver) Caster() *Caster { return r.cast }

// Registry returns the type registry.
func (r *Resolver) Registry() *Registry { return r.reg }

func (r *Resolver) name(id ast.Ident) string { return r.names.Name(id) }

// report sends err to the sink, once.
func (r *Resolver) report(err error) {
	if err == nil || r.sink == nil {
		return
	}
	var e *Error
	if errors.As(err, &e) {
		if e.reported {
			return
		}
		e.reported = true
		r.sink.Report(e.Diagnostic())
		return
	}
	r.sink.Report(diag.Diagnostic{Severity: diag.SeverityError, Message: err.Error()})
}

// ---------------------------------------------------------------------------
// Class definition
// ---------------------------------------------------------------------------

// DefineClass creates a class for decl whose scope hangs off parent.
func (r *Resolver) DefineClass(decl *ast.ClassDecl, parent *Scope) *Class {
	return r.defineClass(decl, r.name(decl.Name), parent)
}

func (r *Resolver) defineClass(decl *ast.ClassDecl, name string, parent *Scope) *Class {
	c := r.reg.newClass(decl.Kind, name, decl)
	cs := r.scopes.New(parent.ID, FlagClass|FlagPersistent)
	cs.Class = c
	c.Scope = cs.ID
	return c
}

// DefineTemplate creates a class template declared in scope.
func (r *Resolver) DefineTemplate(decl *ast.ClassDecl, scope *Scope) *ClassTemplate {
	t := r.reg.newTemplate(r.name(decl.Name), decl, scope.ID)
	t.resolver = r
	return t
}

// installMembers declares the class's typedefs and constants as lazy
// symbols.
func (r *Resolver) installMembers(c *Class) {
	if c.installed {
		return
	}
	c.installed = true
	cs := r.scopes.Get(c.Scope)
	for _, m := range c.Decl.Members {
		var sym Symbol
		switch d := m.(type) {
		case *ast.TypedefDecl:
			sym = &TypeSymbol{symBase: symBase{d.Name, d.Span()}, decl: d, scope: cs.ID}
		case *ast.ConstDecl:
			sym = &VarSymbol{symBase: symBase{d.Name, d.Span()}, Kind: VarConstant, decl: d, scope: cs.ID}
		default:
			continue
		}
		if err := cs.Set(sym.Name(), sym); err != nil {
			r.report(err)
		}
	}
}

// ---------------------------------------------------------------------------
// Resolution pipeline
// ---------------------------------------------------------------------------

// Resolve runs the resolution pipeline on c. A class already being resolved
// yields ErrDeferred; an unresolvable one yields its recorded failure.
func (r *Resolver) Resolve(c *Class) error {
	switch c.state {
	case Resolved:
		return nil
	case Unresolvable:
		return c.err
	case Resolving:
		return ErrDeferred
	}
	c.state = Resolving
	saved := r.horizon
	r.horizon = horizon{}
	defer func() { r.horizon = saved }()

	err := r.resolveClass(c)
	if err == nil {
		c.state = Resolved
		err = r.foldDefaults(c)
	}
	if err != nil {
		c.state = Unresolvable
		c.err = err
		log.Debugf("class %s unresolvable: %s", c.name, err)
		r.report(err)
		return err
	}
	log.Debugf("resolved %s: %d bits", c.name, c.size)
	return nil
}

func (r *Resolver) resolveClass(c *Class) error {
	r.installMembers(c)
	if err := r.resolveAncestors(c); err != nil {
		return err
	}
	if err := r.resolveProps(c); err != nil {
		return err
	}
	if err := r.resolveFuns(c); err != nil {
		return err
	}
	return r.checkBitSize(c)
}

// requireLayout resolves c for a user that needs its bits. inheritance
// selects the failure reported when c is still being resolved.
func (r *Resolver) requireLayout(c *Class, span ast.Span, inheritance bool) error {
	err := r.Resolve(c)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrDeferred):
		if inheritance {
			return errorf(diag.CyclicInheritance, span, "%s inherits from itself", c.name)
		}
		return errorf(diag.CyclicDefinition, span, "%s contains itself", c.name)
	case inheritance && errors.Is(err, ErrCyclicInheritance):
		return errorf(diag.CyclicInheritance, span, "%s is on an inheritance cycle", c.name)
	}
	return errorf(diag.UnresolvedName, span, "%s cannot be resolved", c.name)
}

// requireType resolves every class t's layout depends on.
func (r *Resolver) requireType(t Type, span ast.Span) error {
	switch b := t.Basic().(type) {
	case *Class:
		return r.requireLayout(b, span, false)
	case *ArrayType:
		return r.requireType(b.Elem, span)
	}
	return nil
}

func (r *Resolver) resolveAncestors(c *Class) error {
	ps := r.scopes.Get(r.scopes.Get(c.Scope).Parent)
	seen := make(map[*Class]bool)
	for _, ref := range c.Decl.Bases {
		t, err := r.ResolveTypeRef(ref, ps)
		if err != nil {
			return err
		}
		b, ok := t.Basic().(*Class)
		if !ok {
			return errorf(diag.Incompatible, ref.Span(), "%s cannot inherit from %s", c.name, t.Name())
		}
		if b.ClassKind != ast.Quark && b.ClassKind != c.ClassKind {
			return errorf(diag.Incompatible, ref.Span(), "%s %s cannot inherit from %s %s", c.ClassKind, c.name, b.ClassKind, b.name)
		}
		if err := r.requireLayout(b, ref.Span(), true); err != nil {
			return err
		}
		if !seen[b] {
			seen[b] = true
			c.Bases = append(c.Bases, b)
		}
	}
	linear := make(map[*Class]bool)
	for _, b := range c.Bases {
		for _, a := range b.Linear {
			if !linear[a] {
				linear[a] = true
				c.Linear = append(c.Linear, a)
			}
		}
		if !linear[b] {
			linear[b] = true
			c.Linear = append(c.Linear, b)
		}
	}
	return nil
}

func (r *Resolver) resolveProps(c *Class) error {
	cs := r.scopes.Get(c.Scope)
	c.offsets = make(map[*Prop]int)
	off := 0
	for _, a := range c.Linear {
		for _, p := range a.Props {
			c.offsets[p] = off
			c.all = append(c.all, p)
			off += p.Type.BitSize()
		}
	}
	for _, m := range c.Decl.Members {
		vd, ok := m.(*ast.VarDecl)
		if !ok {
			continue
		}
		t, err := r.ResolveTypeRef(vd.Type, cs)
		if err != nil {
			return err
		}
		if err := r.checkMember(c, t, vd); err != nil {
			return err
		}
		if off+t.BitSize() > bits.MaxBits {
			return errorf(diag.BitSizeExceeded, vd.Span(), "%s exceeds %d bits", c.name, bits.MaxBits)
		}
		p := &Prop{Name: vd.Name, Type: t, Owner: c, Offset: off, Span: vd.Span(), Decl: vd}
		c.Props = append(c.Props, p)
		c.offsets[p] = off
		c.all = append(c.all, p)
		off += t.BitSize()
		sym := &VarSymbol{symBase: symBase{vd.Name, vd.Span()}, Kind: VarDataMember, Type: t, Prop: p}
		if err := cs.Set(vd.Name, sym); err != nil {
			return err
		}
	}
	c.size = off
	return nil
}

func (r *Resolver) checkMember(c *Class, t Type, vd *ast.VarDecl) error {
	name := r.name(vd.Name)
	elem := t.Basic()
	for {
		a, ok := elem.(*ArrayType)
		if !ok {
			break
		}
		elem = a.Elem.Basic()
	}
	switch b := elem.(type) {
	case *RefType:
		return errorf(diag.Incompatible, vd.Span(), "data member %s cannot be a reference", name)
	case *VoidType:
		return errorf(diag.Incompatible, vd.Span(), "data member %s cannot be Void", name)
	case *ClassTemplate:
		return errorf(diag.Incompatible, vd.Span(), "template %s needs arguments", b.name)
	case *Class:
		if b.IsElement() && c.ClassKind != ast.Transient {
			return errorf(diag.Incompatible, vd.Span(), "element %s may only be a member of a transient", b.name)
		}
		return r.requireLayout(b, vd.Span(), false)
	}
	return nil
}

func (r *Resolver) resolveFuns(c *Class) error {
	cs := r.scopes.Get(c.Scope)
	for _, m := range c.Decl.Members {
		fd, ok := m.(*ast.FuncDecl)
		if !ok {
			continue
		}
		fn, err := r.resolveSignature(c, fd, cs)
		if err != nil {
			return err
		}
		var set *FunSet
		switch s := cs.Own(fd.Name).(type) {
		case nil:
			set = &FunSet{Name: fd.Name, Owner: c}
			c.Funs[fd.Name] = set
			if err := cs.Set(fd.Name, &FunSetSymbol{symBase{fd.Name, fd.Span()}, set}); err != nil {
				return err
			}
		case *FunSetSymbol:
			set = s.Set
		default:
			return errorf(diag.Redeclaration, fd.Span(), "%s already declared in %s", r.name(fd.Name), c.name)
		}
		if !set.add(fn) {
			return errorf(diag.DuplicateOverloadSignature, fd.Span(), "%s.%s%s declared twice", c.name, r.name(fd.Name), fn.Sig.Name())
		}
	}
	return nil
}

func (r *Resolver) resolveSignature(c *Class, fd *ast.FuncDecl, cs *Scope) (*Function, error) {
	fn := &Function{Name: fd.Name, Decl: fd, Owner: c, Return: r.reg.Void()}
	for _, p := range fd.Params {
		t, err := r.ResolveTypeRef(p.Type, cs)
		if err != nil {
			return nil, err
		}
		if _, ok := t.Basic().(*VoidType); ok {
			return nil, errorf(diag.Incompatible, p.Span(), "parameter %s cannot be Void", r.name(p.Name))
		}
		fn.Params = append(fn.Params, t)
		fn.ParamNames = append(fn.ParamNames, p.Name)
	}
	if fd.Return != nil {
		t, err := r.ResolveTypeRef(fd.Return, cs)
		if err != nil {
			return nil, err
		}
		fn.Return = t
	}
	fn.Sig = r.reg.FuncType(fn.Params, fn.Return)
	return fn, nil
}

func (r *Resolver) checkBitSize(c *Class) error {
	arch := r.reg.Arch()
	var limit int
	switch c.ClassKind {
	case ast.Quark:
		limit = arch.MaxQuarkBits
	case ast.Element:
		limit = arch.ElementStateBits()
	default:
		limit = arch.MaxTransientBits
	}
	if limit > bits.MaxBits {
		limit = bits.MaxBits
	}
	if c.size > limit {
		return errorf(diag.BitSizeExceeded, c.Decl.Span(), "%s %s is %d bits, more than %d", c.ClassKind, c.name, c.size, limit)
	}
	return nil
}

// foldDefaults builds the default object from the declared initial values.
func (r *Resolver) foldDefaults(c *Class) error {
	cs := r.scopes.Get(c.Scope)
	def := &Object{Class: c, Data: bits.New(c.size)}
	for _, p := range c.all {
		var v RValue
		switch {
		case p.Owner != c:
			if p.Owner.Default == nil {
				continue
			}
			pv, err := p.Load(p.Owner.Default)
			if err != nil {
				return err
			}
			v = pv
		case p.Decl.Init != nil:
			iv, err := r.eval.Constant(p.Decl.Init, cs)
			if err != nil {
				return withSpan(err, p.Span)
			}
			cv, err := r.cast.Cast(iv, p.Type, true)
			if err != nil {
				return withSpan(err, p.Decl.Init.Span())
			}
			v = cv
		default:
			v = Zero(p.Type)
		}
		if v.IsKnown() {
			if err := p.Store(def, v); err != nil {
				return withSpan(err, p.Span)
			}
		}
	}
	c.Default = def
	return nil
}

// ---------------------------------------------------------------------------
// Templates
// ---------------------------------------------------------------------------

// Instantiate returns the instance of t for args, creating it on first use.
// Missing trailing arguments take the parameter defaults.
// An argument list that failed once fails again with the same error.
func (r *Resolver) Instantiate(t *ClassTemplate, args []RValue, span ast.Span) (*Class, error) {
	key, cacheable := rawKey(args)
	if err, ok := t.failed[key]; ok && cacheable {
		return nil, err
	}
	mark := r.scopes.Len()
	c, err := r.instantiate(t, args, span)
	if err != nil {
		r.scopes.release(mark)
		if cacheable {
			t.failed[key] = err
		}
		return nil, err
	}
	return c, nil
}

// rawKey keys the arguments as written, before they are bound to the
// parameter types. Unknown arguments have no key.
func rawKey(args []RValue) (string, bool) {
	margs := make([]mangle.Arg, len(args))
	for i, v := range args {
		if !v.IsKnown() {
			return "", false
		}
		margs[i] = mangleArg(v)
	}
	key, err := mangle.Key(margs)
	return key, err == nil
}

func (r *Resolver) instantiate(t *ClassTemplate, args []RValue, span ast.Span) (*Class, error) {
	params := t.Decl.Params
	if len(args) > len(params) {
		return nil, errorf(diag.Incompatible, span, "%s takes %d arguments, got %d", t.name, len(params), len(args))
	}
	mark := r.scopes.Len()
	ps := r.scopes.New(t.declScope, FlagClassTemplate)
	bound := make([]RValue, len(params))
	for i, p := range params {
		pt, err := r.ResolveTypeRef(p.Type, ps)
		if err != nil {
			return nil, err
		}
		var v RValue
		switch {
		case i < len(args):
			v = args[i]
		case p.Default != nil:
			dv, err := r.eval.Constant(p.Default, ps)
			if err != nil {
				return nil, err
			}
			v = dv
		default:
			return nil, errorf(diag.Incompatible, span, "%s: no argument for %s", t.name, r.name(p.Name))
		}
		if !v.IsKnown() {
			return nil, errorf(diag.NotConstant, span, "%s: argument for %s is not a constant", t.name, r.name(p.Name))
		}
		cv, err := r.cast.Cast(v, pt, true)
		if err != nil {
			return nil, withSpan(err, span)
		}
		bound[i] = cv
		sym := &VarSymbol{symBase: symBase{p.Name, p.Span()}, Kind: VarTemplateParam, Type: pt, Value: cv, state: Resolved}
		if err := ps.Set(p.Name, sym); err != nil {
			return nil, err
		}
	}

	margs := make([]mangle.Arg, len(bound))
	for i, v := range bound {
		margs[i] = mangleArg(v)
	}
	key, err := mangle.Key(margs)
	if err != nil {
		return nil, err
	}
	if c, ok := t.instances[key]; ok {
		r.scopes.release(mark)
		return c, nil
	}

	ps.Flags |= FlagPersistent
	c := r.defineClass(t.Decl, mangle.Name(t.name, margs), ps)
	c.Template = t
	c.Args = bound
	t.instances[key] = c
	t.order = append(t.order, c)
	log.Debugf("instantiated %s", c.name)
	if r.ready {
		r.Resolve(c)
	}
	return c, nil
}

// Instantiate returns the instance of t for args.
func (t *ClassTemplate) Instantiate(args []RValue) (*Class, error) {
	return t.resolver.Instantiate(t, args, t.Decl.Span())
}

// ---------------------------------------------------------------------------
// Type references
// ---------------------------------------------------------------------------

// ResolveTypeRef resolves a written type in scope.
func (r *Resolver) ResolveTypeRef(ref *ast.TypeRef, scope *Scope) (Type, error) {
	t, err := r.baseType(ref, scope)
	if err != nil {
		return nil, withSpan(err, ref.Span())
	}
	for i := len(ref.Dims) - 1; i >= 0; i-- {
		n, err := r.constInt(ref.Dims[i], scope)
		if err != nil {
			return nil, withSpan(err, ref.Span())
		}
		if n <= 0 {
			return nil, errorf(diag.InvalidWidth, ref.Dims[i].Span(), "array dimension %d must be positive", n)
		}
		if elem := int64(t.BitSize()); n > bits.MaxBits || elem*n > bits.MaxBits {
			return nil, errorf(diag.BitSizeExceeded, ref.Dims[i].Span(), "array of %d x %s exceeds %d bits", n, t.Name(), bits.MaxBits)
		}
		t = t.ArrayOf(int(n))
	}
	if ref.Ref {
		t = t.RefOf()
	}
	r.binds.setType(ref, scope, t)
	return t, nil
}

func (r *Resolver) baseType(ref *ast.TypeRef, scope *Scope) (Type, error) {
	if ref.Scope != nil {
		outer, err := r.ResolveTypeRef(ref.Scope, scope)
		if err != nil {
			return nil, err
		}
		oc, ok := outer.Basic().(*Class)
		if !ok {
			return nil, errorf(diag.NameNotFound, ref.Span(), "%s has no member types", outer.Name())
		}
		r.installMembers(oc)
		cs := r.scopes.Get(oc.Scope)
		sym := cs.Get(ref.Name, true)
		if sym == nil {
			return nil, errorf(diag.NameNotFound, ref.Span(), "%s has no member %s", oc.name, r.name(ref.Name))
		}
		return r.typeFromSymbol(sym, ref, cs)
	}

	name := r.name(ref.Name)
	if k, ok := primKinds[name]; ok {
		return r.primType(k, ref, scope)
	}
	switch name {
	case "Void":
		return r.reg.Void(), nil
	case "Self":
		if c := scope.EnclosingClass(); c != nil {
			return c, nil
		}
		return nil, errorf(diag.NameNotFound, ref.Span(), "Self used outside a class")
	}

	sym := scope.lookup(ref.Name, false, r.horizon)
	if sym == nil {
		if scope.IsUnresolved(ref.Name) {
			return nil, errorf(diag.UnresolvedName, ref.Span(), "%s could not be resolved", name)
		}
		return nil, errorf(diag.NameNotFound, ref.Span(), "%s not declared", name)
	}
	return r.typeFromSymbol(sym, ref, scope)
}

func (r *Resolver) primType(k PrimKind, ref *ast.TypeRef, scope *Scope) (Type, error) {
	width := k.DefaultWidth()
	switch {
	case k == PrimAtom && len(ref.Args) > 0:
		return nil, errorf(diag.InvalidWidth, ref.Span(), "Atom takes no width")
	case len(ref.Args) > 1:
		return nil, errorf(diag.InvalidWidth, ref.Span(), "%s takes one width", k)
	case len(ref.Args) == 1:
		n, err := r.constInt(ref.Args[0], scope)
		if err != nil {
			return nil, err
		}
		width = int(n)
		if int64(width) != n {
			width = -1
		}
	}
	t, err := r.reg.Builtin(k, width)
	if err != nil {
		return nil, withSpan(err, ref.Span())
	}
	return t, nil
}

func (r *Resolver) typeFromSymbol(sym Symbol, ref *ast.TypeRef, scope *Scope) (Type, error) {
	switch s := sym.(type) {
	case *TypeSymbol:
		t := s.Type
		if s.decl != nil {
			var err error
			if t, err = r.typedefType(s); err != nil {
				return nil, err
			}
		}
		if t.IsPlaceholder() {
			return nil, &Error{
				Code:    diag.UnresolvedName,
				Span:    ref.Span(),
				Msg:     r.name(s.name) + " is not defined yet",
				unbound: true,
			}
		}
		if len(ref.Args) > 0 {
			return nil, errorf(diag.Incompatible, ref.Span(), "%s is not a template", t.Name())
		}
		if c, ok := t.Basic().(*Class); ok && r.ready {
			r.Resolve(c)
		}
		return t, nil

	case *TemplateSymbol:
		if len(ref.Args) == 0 {
			for cur := scope; cur != nil; cur = r.scopes.Get(cur.Parent) {
				if cur.Class != nil && cur.Class.Template == s.Template {
					return cur.Class, nil
				}
			}
			return nil, errorf(diag.Incompatible, ref.Span(), "template %s needs arguments", s.Template.name)
		}
		args := make([]RValue, len(ref.Args))
		for i, a := range ref.Args {
			v, err := r.eval.Constant(a, scope)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		return r.Instantiate(s.Template, args, ref.Span())
	}
	return nil, errorf(diag.Incompatible, ref.Span(), "%s is not a type", r.name(sym.Name()))
}

// typedefType resolves a lazy class-level typedef.
func (r *Resolver) typedefType(s *TypeSymbol) (Type, error) {
	switch s.state {
	case Resolved:
		return s.Type, nil
	case Unresolvable:
		return nil, s.err
	case Resolving:
		return nil, errorf(diag.CyclicDefinition, s.span, "typedef %s refers to itself", r.name(s.name))
	}
	s.state = Resolving
	sc := r.scopes.Get(s.scope)
	saved := r.horizon
	r.horizon = horizon{s.scope, sc.SeqOf(s.name)}
	t, err := r.ResolveTypeRef(s.decl.Type, sc)
	r.horizon = saved
	if err != nil {
		if errors.Is(err, errUnbound) {
			s.state = NotResolved
			return nil, err
		}
		s.state = Unresolvable
		s.err = err
		r.report(err)
		return nil, err
	}
	s.Type = r.reg.NewAlias(r.name(s.name), t)
	s.state = Resolved
	return s.Type, nil
}

// ---------------------------------------------------------------------------
// Constants
// ---------------------------------------------------------------------------

// constValue folds a lazy constant on first use.
func (r *Resolver) constValue(s *VarSymbol) (RValue, error) {
	switch s.state {
	case Resolved:
		return s.Value, nil
	case Unresolvable:
		return RValue{}, s.err
	case Resolving:
		return RValue{}, errorf(diag.CyclicDefinition, s.span, "constant %s depends on itself", r.name(s.name))
	}
	if s.decl == nil {
		return s.Value, nil
	}
	s.state = Resolving
	sc := r.scopes.Get(s.scope)
	saved := r.horizon
	r.horizon = horizon{s.scope, sc.SeqOf(s.name)}
	v, err := r.foldConst(s, sc)
	r.horizon = saved
	if err != nil {
		if errors.Is(err, errUnbound) {
			s.state = NotResolved
			return RValue{}, err
		}
		s.state = Unresolvable
		s.err = err
		r.report(err)
		return RValue{}, err
	}
	s.Value = v
	s.state = Resolved
	return v, nil
}

func (r *Resolver) foldConst(s *VarSymbol, sc *Scope) (RValue, error) {
	t, err := r.ResolveTypeRef(s.decl.Type, sc)
	if err != nil {
		return RValue{}, err
	}
	if err := r.requireType(t, s.decl.Type.Span()); err != nil {
		return RValue{}, err
	}
	s.Type = t
	v, err := r.eval.Constant(s.decl.Value, sc)
	if err != nil {
		return RValue{}, withSpan(err, s.span)
	}
	cv, err := r.cast.Cast(v, t, true)
	if err != nil {
		return RValue{}, withSpan(err, s.decl.Value.Span())
	}
	return cv, nil
}

// constInt evaluates e as a constant integer.
func (r *Resolver) constInt(e ast.Expr, scope *Scope) (int64, error) {
	v, err := r.eval.Constant(e, scope)
	if err != nil {
		return 0, err
	}
	x, ok := v.Int()
	if !ok || !x.IsInt64() {
		return 0, errorf(diag.Incompatible, e.Span(), "%s is not an integer", v.Type.Name())
	}
	return x.Int64(), nil
}
