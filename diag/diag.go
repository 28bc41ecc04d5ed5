// Package diag carries structured diagnostics out of the semantic core.
// The core never renders text for users; it emits Diagnostics to a Sink.
package diag

import (
	"fmt"

	"github.com/chazu/quarkc/ast"
)

// Severity of a diagnostic.
type Severity uint8

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityNote
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "note"
	}
}

// Code classifies a diagnostic.
type Code uint8

const (
	CodeNone Code = iota
	NameNotFound
	Redeclaration
	CyclicInheritance
	InvalidWidth
	InvalidCast
	CastRequired
	Incompatible
	DuplicateOverloadSignature
	UnresolvedName
	IterationLimitExceeded
	RecursionLimitExceeded
	StructuralControlFlow
	NotConstant
	DivisionByZero
	BitSizeExceeded
	AmbiguousCall
	CyclicDefinition
	NotCallable
)

var codeNames = [...]string{
	CodeNone:                   "None",
	NameNotFound:               "NameNotFound",
	Redeclaration:              "Redeclaration",
	CyclicInheritance:          "CyclicInheritance",
	InvalidWidth:               "InvalidWidth",
	InvalidCast:                "InvalidCast",
	CastRequired:               "CastRequired",
	Incompatible:               "Incompatible",
	DuplicateOverloadSignature: "DuplicateOverloadSignature",
	UnresolvedName:             "UnresolvedName",
	IterationLimitExceeded:     "IterationLimitExceeded",
	RecursionLimitExceeded:     "RecursionLimitExceeded",
	StructuralControlFlow:      "StructuralControlFlow",
	NotConstant:                "NotConstant",
	DivisionByZero:             "DivisionByZero",
	BitSizeExceeded:            "BitSizeExceeded",
	AmbiguousCall:              "AmbiguousCall",
	CyclicDefinition:           "CyclicDefinition",
	NotCallable:                "NotCallable",
}

func (c Code) String() string {
	if int(c) < len(codeNames) {
		return codeNames[c]
	}
	return fmt.Sprintf("Code(%d)", c)
}

// Diagnostic is one structured event: (severity, location, code, message).
type Diagnostic struct {
	Severity Severity
	Span     ast.Span
	Code     Code
	Message  string
}

func (d Diagnostic) String() string {
	pos := d.Span.Start
	if d.Span.File != "" {
		return fmt.Sprintf("%s:%d:%d: %s [%s]: %s", d.Span.File, pos.Line, pos.Column, d.Severity, d.Code, d.Message)
	}
	return fmt.Sprintf("%d:%d: %s [%s]: %s", pos.Line, pos.Column, d.Severity, d.Code, d.Message)
}

// Sink accepts diagnostics.
type Sink interface {
	Report(d Diagnostic)
}

// Collector is an in-memory Sink.
type Collector struct {
	diags []Diagnostic
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Report appends d.
func (c *Collector) Report(d Diagnostic) {
	c.diags = append(c.diags, d)
}

// All returns every collected diagnostic in report order.
func (c *Collector) All() []Diagnostic {
	return c.diags
}

// Errors returns only error-severity diagnostics.
func (c *Collector) Errors() []Diagnostic {
	var out []Diagnostic
	for _, d := range c.diags {
		if d.Severity == SeverityError {
			out = append(out, d)
		}
	}
	return out
}

// HasCode reports whether any diagnostic carries code.
func (c *Collector) HasCode(code Code) bool {
	return c.Count(code) > 0
}

// Count returns how many diagnostics carry code.
func (c *Collector) Count(code Code) int {
	n := 0
	for _, d := range c.diags {
		if d.Code == code {
			n++
		}
	}
	return n
}

// Tee fans diagnostics out to several sinks.
type Tee []Sink

// Report forwards d to every sink.
func (t Tee) Report(d Diagnostic) {
	for _, s := range t {
		s.Report(d)
	}
}
