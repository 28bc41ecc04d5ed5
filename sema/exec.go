package sema

import (
	"github.com/chazu/quarkc/ast"
	"github.com/chazu/quarkc/bits"
	"github.com/chazu/quarkc/diag"
)

// FlowKind tags how a statement completed.
type FlowKind uint8

const (
	FlowNormal FlowKind = iota
	FlowReturn
	FlowBreak
	FlowContinue
)

// Flow is the completion of a statement. Value is set for FlowReturn from a
// non-Void function.
type Flow struct {
	Kind  FlowKind
	Value RValue
}

// Exec executes s in scope.
func (e *Evaluator) Exec(s ast.Stmt, scope *Scope) (Flow, error) {
	flow, err := e.exec(s, scope)
	if err != nil {
		return Flow{}, withSpan(err, s.Span())
	}
	return flow, nil
}

func (e *Evaluator) exec(s ast.Stmt, scope *Scope) (Flow, error) {
	switch n := s.(type) {
	case *ast.Block:
		mark := e.r.scopes.Len()
		bs := e.r.scopes.New(scope.ID, FlagBlock)
		defer e.r.scopes.release(mark)
		for _, st := range n.Stmts {
			flow, err := e.Exec(st, bs)
			if err != nil || flow.Kind != FlowNormal {
				return flow, err
			}
		}
		return Flow{}, nil

	case *ast.ExprStmt:
		_, err := e.Eval(n.X, scope)
		return Flow{}, err

	case *ast.VarDecl:
		return Flow{}, e.declareLocal(n, scope)

	case *ast.ConstDecl:
		sym := &VarSymbol{symBase: symBase{n.Name, n.Span()}, Kind: VarConstant, decl: n, scope: scope.ID}
		if err := scope.Set(n.Name, sym); err != nil {
			return Flow{}, err
		}
		_, err := e.r.constValue(sym)
		return Flow{}, err

	case *ast.TypedefDecl:
		t, err := e.r.ResolveTypeRef(n.Type, scope)
		if err != nil {
			return Flow{}, err
		}
		alias := e.r.reg.NewAlias(e.r.name(n.Name), t)
		return Flow{}, scope.Set(n.Name, NewTypeSymbol(n.Name, n.Span(), alias))

	case *ast.IfStmt:
		return e.execIf(n, scope)

	case *ast.WhileStmt:
		return e.loop(n.Span(), nil, n.Cond, nil, n.Body, scope)

	case *ast.ForStmt:
		return e.loop(n.Span(), n.Init, n.Cond, n.Post, n.Body, scope)

	case *ast.ReturnStmt:
		return e.execReturn(n, scope)

	case *ast.BreakStmt:
		if scope.NearestLoop() == nil {
			return Flow{}, errorf(diag.StructuralControlFlow, n.Span(), "break outside a loop")
		}
		return Flow{Kind: FlowBreak}, nil

	case *ast.ContinueStmt:
		if scope.NearestLoop() == nil {
			return Flow{}, errorf(diag.StructuralControlFlow, n.Span(), "continue outside a loop")
		}
		return Flow{Kind: FlowContinue}, nil
	}
	return Flow{}, errorf(diag.Incompatible, s.Span(), "unsupported statement %T", s)
}

func (e *Evaluator) declareLocal(n *ast.VarDecl, scope *Scope) error {
	name := e.r.name(n.Name)
	t, err := e.r.ResolveTypeRef(n.Type, scope)
	if err != nil {
		return err
	}
	if err := e.r.requireType(t, n.Type.Span()); err != nil {
		return err
	}
	if _, ok := t.Basic().(*VoidType); ok {
		return errorf(diag.Incompatible, n.Span(), "variable %s cannot be Void", name)
	}
	if t.BitSize() > bits.MaxBits {
		return errorf(diag.BitSizeExceeded, n.Span(), "variable %s is %d bits, more than %d", name, t.BitSize(), bits.MaxBits)
	}
	var v RValue
	switch _, isRef := t.Basic().(*RefType); {
	case isRef:
		if n.Init == nil {
			return errorf(diag.Incompatible, n.Span(), "reference %s must be initialized", name)
		}
		iv, err := e.Eval(n.Init, scope)
		if err != nil {
			return err
		}
		if v, err = e.bindRef(t, iv); err != nil {
			return withSpan(err, n.Init.Span())
		}
	case n.Init != nil:
		iv, err := e.EvalR(n.Init, scope)
		if err != nil {
			return err
		}
		if v, err = e.r.cast.Cast(iv, t, true); err != nil {
			return withSpan(err, n.Init.Span())
		}
	default:
		v = Zero(t)
	}
	if e.validating {
		v = Unknown(t)
	}
	sym := &VarSymbol{symBase: symBase{n.Name, n.Span()}, Kind: VarLocal, Type: t, Var: NewVar(n.Name, t, v)}
	return scope.Set(n.Name, sym)
}

// bindRef binds a reference of type t to the storage v denotes, or converts
// a reference value.
func (e *Evaluator) bindRef(t Type, v Value) (RValue, error) {
	rv, lv := argValue(v)
	if !rv.IsValid() {
		return RValue{}, errorf(diag.Incompatible, zeroSpan, "expression has no value")
	}
	if _, ok := rv.Type.Basic().(*RefType); ok {
		return e.r.cast.Cast(rv, t, true)
	}
	if lv == nil {
		return RValue{}, errorf(diag.Incompatible, zeroSpan, "%s must bind to storage", t.Name())
	}
	rt, ok := t.Basic().(*RefType)
	if !ok {
		return RValue{}, errorf(diag.Incompatible, zeroSpan, "%s is not a reference", t.Name())
	}
	if conv, _ := e.r.cast.ClassifyBinding(lv.Type(), rt); conv != ConvImplicit {
		return RValue{}, errorf(diag.InvalidCast, zeroSpan, "cannot bind %s to %s", lv.Type().Name(), t.Name())
	}
	return RefValue(t, lv), nil
}

func (e *Evaluator) execIf(n *ast.IfStmt, scope *Scope) (Flow, error) {
	cv, err := e.EvalR(n.Cond, scope)
	if err != nil {
		return Flow{}, err
	}
	truth, known, err := e.r.cast.ToBoolean(cv)
	if err != nil {
		return Flow{}, withSpan(err, n.Cond.Span())
	}
	both := func() error {
		if _, err := e.Exec(n.Then, scope); err != nil {
			return err
		}
		if n.Else != nil {
			if _, err := e.Exec(n.Else, scope); err != nil {
				return err
			}
		}
		return nil
	}
	switch {
	case e.validating:
		return Flow{}, both()
	case !known:
		return e.unknownOutcome(both)
	case truth:
		return e.Exec(n.Then, scope)
	case n.Else != nil:
		return e.Exec(n.Else, scope)
	}
	return Flow{}, nil
}

func (e *Evaluator) loop(span ast.Span, init ast.Stmt, cond, post ast.Expr, body ast.Stmt, scope *Scope) (Flow, error) {
	mark := e.r.scopes.Len()
	ls := e.r.scopes.New(scope.ID, FlagBreak|FlagContinue|FlagBlock)
	defer e.r.scopes.release(mark)
	if init != nil {
		if _, err := e.Exec(init, ls); err != nil {
			return Flow{}, err
		}
	}
	once := func() error {
		if cond != nil {
			cv, err := e.EvalR(cond, ls)
			if err != nil {
				return err
			}
			if _, _, err := e.r.cast.ToBoolean(cv); err != nil {
				return withSpan(err, cond.Span())
			}
		}
		if _, err := e.Exec(body, ls); err != nil {
			return err
		}
		if post != nil {
			if _, err := e.Eval(post, ls); err != nil {
				return err
			}
		}
		return nil
	}
	if e.validating {
		return Flow{}, once()
	}

	limit := e.r.cfg.Limits.MaxLoopIterations
	for iter := 0; ; iter++ {
		truth, known := true, true
		if cond != nil {
			cv, err := e.EvalR(cond, ls)
			if err != nil {
				return Flow{}, err
			}
			if truth, known, err = e.r.cast.ToBoolean(cv); err != nil {
				return Flow{}, withSpan(err, cond.Span())
			}
		}
		if !known {
			return e.unknownOutcome(once)
		}
		if !truth {
			return Flow{}, nil
		}
		if limit >= 0 && iter >= limit {
			return Flow{}, errorf(diag.IterationLimitExceeded, span, "loop exceeds %d iterations", limit)
		}
		flow, err := e.Exec(body, ls)
		if err != nil {
			return Flow{}, err
		}
		switch flow.Kind {
		case FlowBreak:
			return Flow{}, nil
		case FlowReturn:
			return flow, nil
		}
		if post != nil {
			if _, err := e.Eval(post, ls); err != nil {
				return Flow{}, err
			}
		}
	}
}

// unknownOutcome checks the paths of a statement whose control flow is not
// known at compile time. The current call then yields an unknown result and
// forgets its instance.
func (e *Evaluator) unknownOutcome(check func() error) (Flow, error) {
	e.validating = true
	err := check()
	e.validating = false
	if err != nil {
		return Flow{}, err
	}
	if len(e.frames) == 0 {
		return Flow{}, nil
	}
	top := e.frames[len(e.frames)-1]
	if top.self != nil {
		forget(top.self)
	}
	if _, ok := top.fn.Return.Basic().(*VoidType); ok {
		return Flow{Kind: FlowReturn}, nil
	}
	return Flow{Kind: FlowReturn, Value: Unknown(top.fn.Return)}, nil
}

// forget makes the storage lv denotes unknown.
func forget(lv LValue) {
	if _, ok := lv.Type().Basic().(*RefType); ok {
		v, err := lv.Load()
		if err != nil || !v.IsKnown() {
			return
		}
		lv = v.Ref()
	}
	_ = lv.Store(Unknown(lv.Type()))
}

func (e *Evaluator) execReturn(n *ast.ReturnStmt, scope *Scope) (Flow, error) {
	fn := scope.EnclosingFun()
	if fn == nil {
		return Flow{}, errorf(diag.StructuralControlFlow, n.Span(), "return outside a function")
	}
	fname := e.r.name(fn.Name)
	_, void := fn.Return.Basic().(*VoidType)
	switch {
	case n.Value == nil && !void:
		return Flow{}, errorf(diag.Incompatible, n.Span(), "%s must return %s", fname, fn.Return.Name())
	case n.Value == nil:
		return Flow{Kind: FlowReturn}, nil
	case void:
		return Flow{}, errorf(diag.Incompatible, n.Value.Span(), "%s returns no value", fname)
	}
	if _, ok := fn.Return.Basic().(*RefType); ok {
		v, err := e.Eval(n.Value, scope)
		if err != nil {
			return Flow{}, err
		}
		rv, err := e.bindRef(fn.Return, v)
		if err != nil {
			return Flow{}, withSpan(err, n.Value.Span())
		}
		return Flow{Kind: FlowReturn, Value: rv}, nil
	}
	v, err := e.EvalR(n.Value, scope)
	if err != nil {
		return Flow{}, err
	}
	cv, err := e.r.cast.Cast(v, fn.Return, true)
	if err != nil {
		return Flow{}, withSpan(err, n.Value.Span())
	}
	return Flow{Kind: FlowReturn, Value: cv}, nil
}
