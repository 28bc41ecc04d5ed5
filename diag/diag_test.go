package diag

import (
	"strings"
	"testing"

	"github.com/chazu/quarkc/ast"
)

func TestCollectorFiltersAndCounts(t *testing.T) {
	c := NewCollector()
	c.Report(Diagnostic{Severity: SeverityError, Code: NameNotFound, Message: "a"})
	c.Report(Diagnostic{Severity: SeverityWarning, Code: CastRequired, Message: "b"})
	c.Report(Diagnostic{Severity: SeverityError, Code: NameNotFound, Message: "c"})

	if len(c.All()) != 3 {
		t.Errorf("All() len = %d, want 3", len(c.All()))
	}
	if len(c.Errors()) != 2 {
		t.Errorf("Errors() len = %d, want 2", len(c.Errors()))
	}
	if c.Count(NameNotFound) != 2 {
		t.Errorf("Count(NameNotFound) = %d, want 2", c.Count(NameNotFound))
	}
	if c.HasCode(CyclicInheritance) {
		t.Error("HasCode(CyclicInheritance) = true, want false")
	}
}

func TestDiagnosticString(t *testing.T) {
	d := Diagnostic{
		Severity: SeverityError,
		Span:     ast.Span{File: "m.ulam", Start: ast.Position{Line: 3, Column: 7}},
		Code:     Redeclaration,
		Message:  "x already declared",
	}
	got := d.String()
	want := "m.ulam:3:7: error [Redeclaration]: x already declared"
	if got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestTeeForwardsToAll(t *testing.T) {
	a, b := NewCollector(), NewCollector()
	Tee{a, b}.Report(Diagnostic{Code: Incompatible})
	if !a.HasCode(Incompatible) || !b.HasCode(Incompatible) {
		t.Error("Tee did not forward to every sink")
	}
}

func TestCodeNamesCoverEveryCode(t *testing.T) {
	for c := CodeNone; c <= NotCallable; c++ {
		if strings.HasPrefix(c.String(), "Code(") {
			t.Errorf("code %d has no name", c)
		}
	}
}
