package sema

import (
	"errors"
	"fmt"

	"github.com/chazu/quarkc/ast"
	"github.com/chazu/quarkc/diag"
)

// Sentinel errors, one per diagnostic code. An *Error matches its code's
// sentinel with errors.Is.
var (
	ErrNameNotFound               = errors.New("name not found")
	ErrRedeclaration              = errors.New("redeclaration")
	ErrCyclicInheritance          = errors.New("cyclic inheritance")
	ErrInvalidWidth               = errors.New("invalid bit width")
	ErrInvalidCast                = errors.New("invalid cast")
	ErrCastRequired               = errors.New("cast required")
	ErrIncompatible               = errors.New("incompatible types")
	ErrDuplicateOverloadSignature = errors.New("duplicate overload signature")
	ErrUnresolvedName             = errors.New("unresolved name")
	ErrIterationLimitExceeded     = errors.New("iteration limit exceeded")
	ErrRecursionLimitExceeded     = errors.New("recursion limit exceeded")
	ErrStructuralControlFlow      = errors.New("control flow escapes function body")
	ErrNotConstant                = errors.New("not a constant")
	ErrDivisionByZero             = errors.New("division by zero")
	ErrBitSizeExceeded            = errors.New("bit size exceeded")
	ErrAmbiguousCall              = errors.New("ambiguous call")
	ErrCyclicDefinition           = errors.New("cyclic definition")
	ErrNotCallable                = errors.New("not callable")

	// ErrDeferred is returned when resolution of a class is requested while
	// that class is already being resolved.
	ErrDeferred = errors.New("resolution deferred")

	// errUnbound marks a failure caused by a placeholder that a later
	// declaration may still bind.
	errUnbound = errors.New("unbound placeholder")
)

var zeroSpan ast.Span

var sentinels = map[diag.Code]error{
	diag.NameNotFound:               ErrNameNotFound,
	diag.Redeclaration:              ErrRedeclaration,
	diag.CyclicInheritance:          ErrCyclicInheritance,
	diag.InvalidWidth:               ErrInvalidWidth,
	diag.InvalidCast:                ErrInvalidCast,
	diag.CastRequired:               ErrCastRequired,
	diag.Incompatible:               ErrIncompatible,
	diag.DuplicateOverloadSignature: ErrDuplicateOverloadSignature,
	diag.UnresolvedName:             ErrUnresolvedName,
	diag.IterationLimitExceeded:     ErrIterationLimitExceeded,
	diag.RecursionLimitExceeded:     ErrRecursionLimitExceeded,
	diag.StructuralControlFlow:      ErrStructuralControlFlow,
	diag.NotConstant:                ErrNotConstant,
	diag.DivisionByZero:             ErrDivisionByZero,
	diag.BitSizeExceeded:            ErrBitSizeExceeded,
	diag.AmbiguousCall:              ErrAmbiguousCall,
	diag.CyclicDefinition:           ErrCyclicDefinition,
	diag.NotCallable:                ErrNotCallable,
}

// Error is a located semantic error.
type Error struct {
	Code diag.Code
	Span ast.Span
	Msg  string

	reported bool
	unbound  bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// Is matches the sentinel for e.Code.
func (e *Error) Is(target error) bool {
	if target == errUnbound {
		return e.unbound
	}
	s, ok := sentinels[e.Code]
	return ok && s == target
}

// Diagnostic converts e into a diagnostic event.
func (e *Error) Diagnostic() diag.Diagnostic {
	return diag.Diagnostic{
		Severity: diag.SeverityError,
		Span:     e.Span,
		Code:     e.Code,
		Message:  e.Msg,
	}
}

func errorf(code diag.Code, span ast.Span, format string, args ...any) *Error {
	return &Error{Code: code, Span: span, Msg: fmt.Sprintf(format, args...)}
}

// CodeOf returns the diagnostic code carried by err, or CodeNone.
func CodeOf(err error) diag.Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return diag.CodeNone
}

// withSpan fills in a missing location on err.
func withSpan(err error, span ast.Span) error {
	var e *Error
	if errors.As(err, &e) && e.Span == (ast.Span{}) {
		e.Span = span
	}
	return err
}
