package sema

import (
	"errors"
	"math"
	"strings"

	"github.com/chazu/quarkc/ast"
	"github.com/chazu/quarkc/diag"
)

// Evaluator walks expressions and statements. In folding mode values are
// computed; in validation mode unknown values flow through and every path is
// checked once.
type Evaluator struct {
	r          *Resolver
	frames     []frame
	validating bool
}

// frame is one active call.
type frame struct {
	fn   *Function
	self LValue
}

// Depth returns the number of active calls.
func (e *Evaluator) Depth() int { return len(e.frames) }

// Eval evaluates x in scope. The result is nil for a Void call, an RValue,
// or an LValue for expressions that denote storage.
func (e *Evaluator) Eval(x ast.Expr, scope *Scope) (Value, error) {
	v, err := e.eval(x, scope)
	if err != nil {
		return nil, withSpan(err, x.Span())
	}
	return v, nil
}

func (e *Evaluator) eval(x ast.Expr, scope *Scope) (Value, error) {
	switch n := x.(type) {
	case *ast.IntLiteral:
		return e.literal(n.Value), nil
	case *ast.BoolLiteral:
		return boolValue(e.r.reg.Bool(), n.Value), nil
	case *ast.NameExpr:
		return e.evalName(n, scope)
	case *ast.SelfExpr:
		if self := scope.SelfBinding(); self != nil {
			return self, nil
		}
		return nil, errorf(diag.NotConstant, n.Span(), "self used outside a member function")
	case *ast.UnaryExpr:
		return e.evalUnary(n, scope)
	case *ast.BinaryExpr:
		return e.evalBinary(n, scope)
	case *ast.AssignExpr:
		return e.evalAssign(n, scope)
	case *ast.CondExpr:
		return e.evalCond(n, scope)
	case *ast.MemberExpr:
		return e.evalMember(n, scope)
	case *ast.IndexExpr:
		return e.evalIndex(n, scope)
	case *ast.CallExpr:
		return e.evalCall(n, scope)
	case *ast.CastExpr:
		t, err := e.r.ResolveTypeRef(n.Type, scope)
		if err != nil {
			return nil, err
		}
		if err := e.r.requireType(t, n.Type.Span()); err != nil {
			return nil, err
		}
		v, err := e.evalRaw(n.X, scope)
		if err != nil {
			return nil, err
		}
		return e.r.cast.Cast(v, t, false)
	case *ast.TypeOpExpr:
		return e.evalTypeOp(n, scope)
	case *ast.IsExpr:
		return e.evalIs(n, scope)
	}
	return nil, errorf(diag.Incompatible, x.Span(), "unsupported expression %T", x)
}

// Constant evaluates x and requires a known value.
func (e *Evaluator) Constant(x ast.Expr, scope *Scope) (RValue, error) {
	v, err := e.EvalR(x, scope)
	if err != nil {
		return RValue{}, err
	}
	if !v.IsKnown() {
		return RValue{}, errorf(diag.NotConstant, x.Span(), "expression is not a constant")
	}
	return v, nil
}

// EvalR evaluates x to an rvalue, loading storage and following references.
func (e *Evaluator) EvalR(x ast.Expr, scope *Scope) (RValue, error) {
	v, err := e.evalRaw(x, scope)
	if err != nil {
		return RValue{}, err
	}
	rv, err := e.deref(v)
	return rv, withSpan(err, x.Span())
}

// evalRaw evaluates x to an rvalue without following references.
func (e *Evaluator) evalRaw(x ast.Expr, scope *Scope) (RValue, error) {
	v, err := e.Eval(x, scope)
	if err != nil {
		return RValue{}, err
	}
	rv, err := load(v)
	return rv, withSpan(err, x.Span())
}

func load(v Value) (RValue, error) {
	switch v := v.(type) {
	case RValue:
		return v, nil
	case LValue:
		return v.Load()
	}
	return RValue{}, errorf(diag.Incompatible, zeroSpan, "expression has no value")
}

// deref follows a reference to the value it is bound to, seen through the
// reference's static type.
func (e *Evaluator) deref(v RValue) (RValue, error) {
	rt, ok := v.Type.Basic().(*RefType)
	if !ok {
		return v, nil
	}
	if !v.IsKnown() {
		return Unknown(rt.Elem), nil
	}
	tv, err := v.Ref().Load()
	if err != nil {
		return RValue{}, err
	}
	if !tv.IsKnown() {
		return Unknown(rt.Elem), nil
	}
	return e.r.cast.Cast(tv, rt.Elem, false)
}

// lvalueOf returns v as storage, wrapping plain values in a temporary.
func lvalueOf(v Value) (LValue, error) {
	switch v := v.(type) {
	case LValue:
		return v, nil
	case RValue:
		return NewVar(ast.NoIdent, v.Type, v), nil
	}
	return nil, errorf(diag.Incompatible, zeroSpan, "expression has no value")
}

// literal types an integer literal: Int(32), Unsigned(32), Int(64) or
// Unsigned(64), whichever holds it first.
func (e *Evaluator) literal(x uint64) RValue {
	var t *PrimType
	switch {
	case x <= math.MaxInt32:
		t = e.r.reg.MustBuiltin(PrimInt, 32)
	case x <= math.MaxUint32:
		t = e.r.reg.MustBuiltin(PrimUnsigned, 32)
	case x <= math.MaxInt64:
		t = e.r.reg.MustBuiltin(PrimInt, 64)
	default:
		t = e.r.reg.MustBuiltin(PrimUnsigned, 64)
	}
	return Scalar(t, x)
}

// ---------------------------------------------------------------------------
// Names and members
// ---------------------------------------------------------------------------

func (e *Evaluator) evalName(n *ast.NameExpr, scope *Scope) (Value, error) {
	sym := scope.lookup(n.Name, false, e.r.horizon)
	if sym == nil {
		if scope.IsUnresolved(n.Name) {
			return nil, errorf(diag.UnresolvedName, n.Span(), "%s could not be resolved", e.r.name(n.Name))
		}
		return nil, errorf(diag.NameNotFound, n.Span(), "%s not declared", e.r.name(n.Name))
	}
	e.r.binds.setSymbol(n, scope, sym)
	switch s := sym.(type) {
	case *VarSymbol:
		switch s.Kind {
		case VarLocal, VarParam:
			return s.Var, nil
		case VarDataMember:
			self := scope.SelfBinding()
			if self == nil {
				return nil, errorf(diag.NotConstant, n.Span(), "%s needs an instance", e.r.name(n.Name))
			}
			return &PropRef{Base: self, Prop: s.Prop}, nil
		}
		v, err := e.r.constValue(s)
		if err != nil {
			return nil, err
		}
		return v, nil
	case *FunSetSymbol:
		return nil, errorf(diag.Incompatible, n.Span(), "function %s used as a value", e.r.name(n.Name))
	}
	return nil, errorf(diag.Incompatible, n.Span(), "%s is a type, not a value", e.r.name(n.Name))
}

// objectClass returns the class of the object lv holds, looking through a
// reference.
func objectClass(lv LValue) *Class {
	c, _ := valueType(lv.Type()).Basic().(*Class)
	return c
}

func (e *Evaluator) evalMember(m *ast.MemberExpr, scope *Scope) (Value, error) {
	base, err := e.Eval(m.X, scope)
	if err != nil {
		return nil, err
	}
	lv, err := lvalueOf(base)
	if err != nil {
		return nil, err
	}
	c := objectClass(lv)
	if c == nil {
		return nil, errorf(diag.Incompatible, m.Span(), "%s has no members", lv.Type().Name())
	}
	if err := e.r.requireLayout(c, m.Span(), false); err != nil {
		return nil, err
	}
	if p := c.Prop(m.Name); p != nil {
		return &PropRef{Base: lv, Prop: p}, nil
	}
	e.r.installMembers(c)
	if s, ok := e.r.scopes.Get(c.Scope).Get(m.Name, true).(*VarSymbol); ok && s.IsConstant() {
		return e.r.constValue(s)
	}
	return nil, errorf(diag.NameNotFound, m.Span(), "%s has no data member %s", c.name, e.r.name(m.Name))
}

func (e *Evaluator) evalIndex(ix *ast.IndexExpr, scope *Scope) (Value, error) {
	base, err := e.Eval(ix.X, scope)
	if err != nil {
		return nil, err
	}
	lv, err := lvalueOf(base)
	if err != nil {
		return nil, err
	}
	at, ok := valueType(lv.Type()).Basic().(*ArrayType)
	if !ok {
		return nil, errorf(diag.Incompatible, ix.Span(), "%s is not an array", lv.Type().Name())
	}
	iv, err := e.EvalR(ix.Index, scope)
	if err != nil {
		return nil, err
	}
	idx := -1
	if iv.IsKnown() {
		x, ok := iv.Int()
		if !ok {
			return nil, errorf(diag.Incompatible, ix.Index.Span(), "array index must be an integer")
		}
		if x.Sign() < 0 || !x.IsInt64() || x.Int64() >= int64(at.Dim) {
			return nil, errorf(diag.Incompatible, ix.Index.Span(), "index %s out of range for %s", x, at.Name())
		}
		idx = int(x.Int64())
	} else if _, ok := valueType(iv.Type).Basic().(*PrimType); !ok {
		return nil, errorf(diag.Incompatible, ix.Index.Span(), "array index must be an integer")
	}
	return &ElemRef{Base: lv, Index: idx, Array: at}, nil
}

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

func (e *Evaluator) evalUnary(u *ast.UnaryExpr, scope *Scope) (Value, error) {
	v, err := e.EvalR(u.X, scope)
	if err != nil {
		return nil, err
	}
	if u.Op == ast.OpNot {
		truth, known, err := e.r.cast.ToBoolean(v)
		if err != nil {
			return nil, err
		}
		if !known {
			return Unknown(e.r.reg.Bool()), nil
		}
		return boolValue(e.r.reg.Bool(), !truth), nil
	}
	return e.r.cast.applyUnary(u.Op, v, u.Span())
}

func (e *Evaluator) evalBinary(b *ast.BinaryExpr, scope *Scope) (Value, error) {
	if b.Op.IsLogical() {
		return e.evalLogical(b, scope)
	}
	l, err := e.EvalR(b.X, scope)
	if err != nil {
		return nil, err
	}
	r, err := e.EvalR(b.Y, scope)
	if err != nil {
		return nil, err
	}
	return e.binary(b.Op, l, r, b.Span())
}

func (e *Evaluator) evalLogical(b *ast.BinaryExpr, scope *Scope) (Value, error) {
	boolT := e.r.reg.Bool()
	l, err := e.EvalR(b.X, scope)
	if err != nil {
		return nil, err
	}
	lt, lk, err := e.r.cast.ToBoolean(l)
	if err != nil {
		return nil, withSpan(err, b.X.Span())
	}
	// Short circuit.
	if lk && lt == (b.Op == ast.OpLogOr) && !e.validating {
		return boolValue(boolT, lt), nil
	}
	r, err := e.EvalR(b.Y, scope)
	if err != nil {
		return nil, err
	}
	rt, rk, err := e.r.cast.ToBoolean(r)
	if err != nil {
		return nil, withSpan(err, b.Y.Span())
	}
	switch {
	case lk && lt == (b.Op == ast.OpLogOr):
		return boolValue(boolT, lt), nil
	case rk && rt == (b.Op == ast.OpLogOr):
		return boolValue(boolT, rt), nil
	case lk && rk:
		return boolValue(boolT, rt), nil
	}
	return Unknown(boolT), nil
}

// binary casts both operands to their common type and applies op. When the
// left operand is a constant that does not fix the type, the right operand
// chooses it instead.
func (e *Evaluator) binary(op ast.Op, l, r RValue, span ast.Span) (RValue, error) {
	c := e.r.cast
	lc, rc := c.BinaryOpCheck(op, l.Type, r)
	if !op.IsShift() && l.IsKnown() && (worse(lc) || worse(rc)) {
		rc2, lc2 := c.BinaryOpCheck(op, r.Type, l)
		if !worse(lc2) && !worse(rc2) {
			lc, rc = lc2, rc2
		}
	}
	for _, chk := range []OperandCheck{lc, rc} {
		switch chk.Status {
		case CheckIncompatible:
			return RValue{}, errorf(diag.Incompatible, span, "operator %s does not apply to %s and %s", op, l.Type.Name(), r.Type.Name())
		case CheckExplicitCast:
			return RValue{}, errorf(diag.CastRequired, span, "operator %s needs an explicit cast of %s and %s to %s", op, l.Type.Name(), r.Type.Name(), chk.Suggested.Name())
		}
	}
	var err error
	if lc.Status == CheckImplicitCast {
		if l, err = c.Cast(l, lc.Suggested, true); err != nil {
			return RValue{}, withSpan(err, span)
		}
	}
	if rc.Status == CheckImplicitCast {
		if r, err = c.Cast(r, rc.Suggested, true); err != nil {
			return RValue{}, withSpan(err, span)
		}
	}
	return c.applyBinary(op, l, r, span)
}

func worse(chk OperandCheck) bool {
	return chk.Status == CheckExplicitCast || chk.Status == CheckIncompatible
}

func (e *Evaluator) evalAssign(a *ast.AssignExpr, scope *Scope) (Value, error) {
	target, err := e.Eval(a.Target, scope)
	if err != nil {
		return nil, err
	}
	lv, ok := target.(LValue)
	if !ok {
		return nil, errorf(diag.Incompatible, a.Target.Span(), "cannot assign to a value")
	}
	v, err := e.EvalR(a.Value, scope)
	if err != nil {
		return nil, err
	}
	dest := lv
	if rt, ok := lv.Type().Basic().(*RefType); ok {
		rv, err := lv.Load()
		if err != nil {
			return nil, err
		}
		if !rv.IsKnown() {
			if _, err := e.r.cast.Cast(v, rt.Elem, true); err != nil {
				return nil, withSpan(err, a.Value.Span())
			}
			return Unknown(rt.Elem), nil
		}
		dest = rv.Ref()
	}
	if a.Op != ast.OpInvalid {
		cur, err := e.deref(mustLoad(dest))
		if err != nil {
			return nil, err
		}
		if v, err = e.binary(a.Op, cur, v, a.Span()); err != nil {
			return nil, err
		}
	}
	cv, err := e.r.cast.Cast(v, dest.Type(), true)
	if err != nil {
		return nil, withSpan(err, a.Value.Span())
	}
	if err := dest.Store(cv); err != nil {
		return nil, withSpan(err, a.Span())
	}
	return dest, nil
}

func mustLoad(lv LValue) RValue {
	v, err := lv.Load()
	if err != nil {
		return Unknown(lv.Type())
	}
	return v
}

func (e *Evaluator) evalCond(n *ast.CondExpr, scope *Scope) (Value, error) {
	cv, err := e.EvalR(n.Cond, scope)
	if err != nil {
		return nil, err
	}
	truth, known, err := e.r.cast.ToBoolean(cv)
	if err != nil {
		return nil, withSpan(err, n.Cond.Span())
	}
	if known && !e.validating {
		if truth {
			return e.EvalR(n.Then, scope)
		}
		return e.EvalR(n.Else, scope)
	}
	tv, err := e.EvalR(n.Then, scope)
	if err != nil {
		return nil, err
	}
	ev, err := e.EvalR(n.Else, scope)
	if err != nil {
		return nil, err
	}
	if ev, err = e.r.cast.Cast(ev, tv.Type, true); err != nil {
		return nil, withSpan(err, n.Else.Span())
	}
	if known {
		if truth {
			return tv, nil
		}
		return ev, nil
	}
	return Unknown(tv.Type), nil
}

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

func (e *Evaluator) evalCall(call *ast.CallExpr, scope *Scope) (Value, error) {
	var (
		self LValue
		cls  *Class
		name ast.Ident
	)
	switch f := call.Fun.(type) {
	case *ast.NameExpr:
		cls, name = scope.EnclosingClass(), f.Name
		if cls == nil {
			return nil, errorf(diag.NotCallable, f.Span(), "%s is not a member function", e.r.name(f.Name))
		}
		if self = scope.SelfBinding(); self == nil {
			return nil, errorf(diag.NotConstant, f.Span(), "call to %s needs an instance", e.r.name(f.Name))
		}
	case *ast.MemberExpr:
		base, err := e.Eval(f.X, scope)
		if err != nil {
			return nil, err
		}
		if self, err = lvalueOf(base); err != nil {
			return nil, withSpan(err, f.X.Span())
		}
		if cls = objectClass(self); cls == nil {
			return nil, errorf(diag.NotCallable, f.Span(), "%s has no member functions", self.Type().Name())
		}
		name = f.Name
	default:
		return nil, errorf(diag.NotCallable, call.Span(), "expression is not callable")
	}
	if err := e.r.requireLayout(cls, call.Span(), false); err != nil {
		return nil, err
	}
	cands := cls.LookupFun(name)
	if len(cands) == 0 {
		if cls.Prop(name) != nil {
			return nil, errorf(diag.NotCallable, call.Span(), "%s.%s is not a function", cls.name, e.r.name(name))
		}
		return nil, errorf(diag.NameNotFound, call.Span(), "%s has no function %s", cls.name, e.r.name(name))
	}

	args := make([]Value, len(call.Args))
	for i, a := range call.Args {
		v, err := e.Eval(a, scope)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, errorf(diag.Incompatible, a.Span(), "argument has no value")
		}
		args[i] = v
	}
	fn, err := e.selectOverload(cands, args, call.Span())
	if err != nil {
		return nil, err
	}
	if dyn := e.dynamicClass(self); dyn != nil && dyn != cls {
		fn = dyn.FindOverride(fn)
	}
	bound, err := e.bindArgs(fn, args, call)
	if err != nil {
		return nil, err
	}
	return e.invoke(fn, self, bound, call.Span())
}

// dynamicClass returns the class of the object a reference is bound to, when
// dispatch follows dynamic types.
func (e *Evaluator) dynamicClass(self LValue) *Class {
	if !e.r.cfg.Analysis.CastDerefAsDynamicType {
		return nil
	}
	v, err := self.Load()
	if err != nil || !v.IsKnown() {
		return nil
	}
	if _, ok := v.Type.Basic().(*RefType); ok {
		if v, err = v.Ref().Load(); err != nil || !v.IsKnown() {
			return nil
		}
	}
	if o := v.Obj(); o != nil {
		return o.Class
	}
	return nil
}

// argValue returns the value an argument passes and whether it denotes
// storage a reference parameter may bind to.
func argValue(v Value) (RValue, LValue) {
	switch v := v.(type) {
	case LValue:
		return mustLoad(v), v
	case RValue:
		return v, nil
	}
	return RValue{}, nil
}

// selectOverload picks the candidate whose implicit conversions cost least.
func (e *Evaluator) selectOverload(cands []*Function, args []Value, span ast.Span) (*Function, error) {
	var (
		best     *Function
		bestCost = -1
		tie      bool
	)
	for _, fn := range cands {
		if len(fn.Params) != len(args) {
			continue
		}
		total, ok := 0, true
		for i, pt := range fn.Params {
			cost, viable := e.paramCost(args[i], pt)
			if !viable {
				ok = false
				break
			}
			total += cost
		}
		if !ok {
			continue
		}
		switch {
		case best == nil || total < bestCost:
			best, bestCost, tie = fn, total, false
		case total == bestCost:
			tie = true
		}
	}
	if best == nil {
		types := make([]string, len(args))
		for i, a := range args {
			rv, _ := argValue(a)
			types[i] = rv.Type.Name()
		}
		return nil, errorf(diag.NameNotFound, span, "no overload of %s accepts (%s)", e.r.name(cands[0].Name), strings.Join(types, ","))
	}
	if tie {
		return nil, errorf(diag.AmbiguousCall, span, "call to %s is ambiguous", e.r.name(best.Name))
	}
	return best, nil
}

func (e *Evaluator) paramCost(arg Value, pt Type) (int, bool) {
	rv, lv := argValue(arg)
	if _, isRef := pt.Basic().(*RefType); isRef {
		if _, argRef := rv.Type.Basic().(*RefType); argRef {
			return e.r.cast.ConversionCost(rv.Type, pt)
		}
		if lv == nil {
			return 0, false
		}
		return e.r.cast.bindingCost(lv.Type(), pt)
	}
	if rv.IsKnown() {
		if drv, err := e.deref(rv); err == nil {
			rv = drv
		}
	} else {
		rv = Unknown(valueType(rv.Type))
	}
	return e.r.cast.argCost(rv, pt)
}

func (e *Evaluator) bindArgs(fn *Function, args []Value, call *ast.CallExpr) ([]RValue, error) {
	out := make([]RValue, len(args))
	for i, pt := range fn.Params {
		rv, lv := argValue(args[i])
		span := call.Args[i].Span()
		if _, isRef := pt.Basic().(*RefType); isRef {
			if _, argRef := rv.Type.Basic().(*RefType); argRef {
				cv, err := e.r.cast.Cast(rv, pt, true)
				if err != nil {
					return nil, withSpan(err, span)
				}
				out[i] = cv
				continue
			}
			out[i] = RefValue(pt, lv)
			continue
		}
		dv, err := e.deref(rv)
		if err != nil {
			return nil, withSpan(err, span)
		}
		cv, err := e.r.cast.Cast(dv, pt, true)
		if err != nil {
			return nil, withSpan(err, span)
		}
		out[i] = cv
	}
	return out, nil
}

// invoke runs fn on self. In validation mode the body is not entered; the
// call yields an unknown value of the return type.
func (e *Evaluator) invoke(fn *Function, self LValue, args []RValue, span ast.Span) (Value, error) {
	if e.validating {
		if _, ok := fn.Return.Basic().(*VoidType); ok {
			return nil, nil
		}
		return Unknown(fn.Return), nil
	}
	return e.callFunction(fn, self, args, span)
}

func (e *Evaluator) callFunction(fn *Function, self LValue, args []RValue, span ast.Span) (Value, error) {
	if limit := e.r.cfg.Limits.MaxCallDepth; len(e.frames) >= limit {
		return nil, errorf(diag.RecursionLimitExceeded, span, "call depth exceeds %d", limit)
	}
	mark := e.r.scopes.Len()
	defer e.r.scopes.release(mark)
	fs := e.r.scopes.New(fn.Owner.Scope, FlagFun|FlagSelf)
	fs.Fun = fn
	fs.Self = self
	for i, t := range fn.Params {
		name := fn.ParamNames[i]
		v := NewVar(name, t, args[i])
		sym := &VarSymbol{symBase: symBase{name, fn.Decl.Params[i].Span()}, Kind: VarParam, Type: t, Var: v}
		if err := fs.Set(name, sym); err != nil {
			return nil, err
		}
	}

	var flow Flow
	var err error
	e.frames = append(e.frames, frame{fn: fn, self: self})
	if fn.Decl.Body != nil {
		flow, err = e.Exec(fn.Decl.Body, fs)
	}
	e.frames = e.frames[:len(e.frames)-1]
	if err != nil {
		return nil, err
	}

	_, void := fn.Return.Basic().(*VoidType)
	switch flow.Kind {
	case FlowBreak, FlowContinue:
		return nil, errorf(diag.StructuralControlFlow, fn.Decl.Span(), "break or continue escapes %s", e.r.name(fn.Name))
	case FlowReturn:
		if void {
			return nil, nil
		}
		return flow.Value, nil
	}
	if void {
		return nil, nil
	}
	if e.validating {
		return Unknown(fn.Return), nil
	}
	return nil, errorf(diag.Incompatible, fn.Decl.Span(), "%s ends without returning a value", e.r.name(fn.Name))
}

// ValidateFunction checks fn's body with unknown parameters and an unknown
// instance.
func (e *Evaluator) ValidateFunction(fn *Function) error {
	saved := e.validating
	e.validating = true
	defer func() { e.validating = saved }()

	self := NewVar(ast.NoIdent, fn.Owner, Unknown(fn.Owner))
	args := make([]RValue, len(fn.Params))
	for i, t := range fn.Params {
		args[i] = Unknown(t)
	}
	_, err := e.callFunction(fn, self, args, fn.Decl.Span())
	var se *Error
	if err != nil && !errors.As(err, &se) {
		return errorf(diag.Incompatible, fn.Decl.Span(), "%s", err)
	}
	return err
}
