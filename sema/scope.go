package sema

import (
	"github.com/chazu/quarkc/ast"
	"github.com/chazu/quarkc/diag"
)

// ScopeID addresses a scope in its Scopes arena. Zero is no scope.
type ScopeID uint32

const NoScope ScopeID = 0

// ScopeFlags records the roles a scope plays.
type ScopeFlags uint16

const (
	FlagProgram ScopeFlags = 1 << iota
	FlagModule
	FlagClass
	FlagClassTemplate
	FlagFun
	FlagSelf
	FlagAsCondition
	FlagBreak
	FlagContinue
	FlagBlock
	FlagPersistent
)

// Scopes is the arena owning every scope of an analysis. Scopes refer to
// each other by ScopeID only.
type Scopes struct {
	list  []*Scope
	names *ast.Interner

	// AllowAccessBeforeDef lets a constant or typedef see constants and
	// typedefs declared after it in the same scope.
	AllowAccessBeforeDef bool

	// PreferParams makes a class scope consult its template parameters
	// before its own members.
	PreferParams bool
}

// NewScopes creates an empty arena. names is used only for messages.
func NewScopes(names *ast.Interner) *Scopes {
	return &Scopes{list: []*Scope{nil}, names: names, AllowAccessBeforeDef: true}
}

// New creates a scope under parent.
func (a *Scopes) New(parent ScopeID, flags ScopeFlags) *Scope {
	s := &Scope{
		ID:     ScopeID(len(a.list)),
		Parent: parent,
		Flags:  flags,
		arena:  a,
		syms:   make(map[ast.Ident]Symbol),
		seq:    make(map[ast.Ident]int),
	}
	a.list = append(a.list, s)
	return s
}

// Get returns the scope with the given ID, or nil.
func (a *Scopes) Get(id ScopeID) *Scope {
	if int(id) >= len(a.list) {
		return nil
	}
	return a.list[id]
}

// Len returns the number of scopes allocated, including the unused zero slot.
func (a *Scopes) Len() int { return len(a.list) }

// release drops non-persistent scopes allocated after mark, stopping at the
// first persistent one.
func (a *Scopes) release(mark int) {
	for len(a.list) > mark {
		top := a.list[len(a.list)-1]
		if top.Flags&FlagPersistent != 0 {
			return
		}
		a.list[len(a.list)-1] = nil
		a.list = a.list[:len(a.list)-1]
	}
}

// horizon hides constants and typedefs declared at or after seq in scope
// while they are being defined.
type horizon struct {
	scope ScopeID
	seq   int
}

// Snapshot records the combined version of a scope and everything it can
// see.
type Snapshot struct {
	Scope   ScopeID
	Version uint64
}

// Scope maps interned names to symbols.
type Scope struct {
	ID     ScopeID
	Parent ScopeID
	Flags  ScopeFlags

	Class *Class    // class scopes
	Fun   *Function // function scopes
	Self  LValue    // function or condition scopes bound to an instance

	arena      *Scopes
	syms       map[ast.Ident]Symbol
	order      []ast.Ident
	seq        map[ast.Ident]int
	imports    []ScopeID
	version    uint64
	unresolved map[ast.Ident]bool
}

// Has reports whether every bit of f is set.
func (s *Scope) Has(f ScopeFlags) bool { return s.Flags&f == f }

func (s *Scope) parent() *Scope { return s.arena.Get(s.Parent) }

// Get looks name up in s and, unless currentOnly, its enclosing scopes.
// The nearest declaration wins.
func (s *Scope) Get(name ast.Ident, currentOnly bool) Symbol {
	return s.lookup(name, currentOnly, horizon{})
}

// Own returns the symbol declared in s's own table, ignoring imports and
// inherited members.
func (s *Scope) Own(name ast.Ident) Symbol { return s.syms[name] }

func (s *Scope) lookup(name ast.Ident, currentOnly bool, h horizon) Symbol {
	for cur := s; cur != nil; cur = cur.parent() {
		if sym := cur.local(name, h); sym != nil {
			return sym
		}
		if currentOnly {
			return nil
		}
	}
	return nil
}

// local searches one level: the scope's own table, then the members its
// class inherits, then its imports.
func (s *Scope) local(name ast.Ident, h horizon) Symbol {
	if s.Flags&FlagClass != 0 && s.arena.PreferParams {
		if p := s.parent(); p != nil && p.Flags&FlagClassTemplate != 0 {
			if sym := p.visible(name, h); sym != nil {
				return sym
			}
		}
	}
	if sym := s.visible(name, h); sym != nil {
		return sym
	}
	if s.Class != nil {
		for i := len(s.Class.Linear) - 1; i >= 0; i-- {
			if as := s.arena.Get(s.Class.Linear[i].Scope); as != nil {
				if sym := as.syms[name]; sym != nil {
					return sym
				}
			}
		}
	}
	for _, id := range s.imports {
		if sym := s.arena.Get(id).syms[name]; sym != nil {
			return sym
		}
	}
	return nil
}

func (s *Scope) visible(name ast.Ident, h horizon) Symbol {
	sym, ok := s.syms[name]
	if !ok {
		return nil
	}
	if h.scope == s.ID && !s.arena.AllowAccessBeforeDef && s.seq[name] >= h.seq && definedLater(sym) {
		return nil
	}
	return sym
}

// definedLater reports whether sym is subject to declaration order.
func definedLater(sym Symbol) bool {
	switch s := sym.(type) {
	case *TypeSymbol:
		return true
	case *VarSymbol:
		return s.Kind == VarConstant
	}
	return false
}

// Set declares name in s. Redeclaring a name already declared in s fails
// unless the existing symbol is a placeholder, which is replaced.
func (s *Scope) Set(name ast.Ident, sym Symbol) error {
	if existing, ok := s.syms[name]; ok {
		if !existing.IsPlaceholder() {
			return errorf(diag.Redeclaration, sym.Span(), "%s already declared", s.arena.names.Name(name))
		}
	} else {
		s.seq[name] = len(s.order)
		s.order = append(s.order, name)
	}
	s.syms[name] = sym
	s.version++
	return nil
}

// SeqOf returns the declaration position of name in s.
func (s *Scope) SeqOf(name ast.Ident) int { return s.seq[name] }

// Names returns the names declared in s in declaration order.
func (s *Scope) Names() []ast.Ident {
	out := make([]ast.Ident, 0, len(s.order))
	for _, n := range s.order {
		if _, ok := s.syms[n]; ok {
			out = append(out, n)
		}
	}
	return out
}

// Import makes the names declared in other visible in s.
func (s *Scope) Import(other ScopeID) {
	for _, id := range s.imports {
		if id == other {
			return
		}
	}
	s.imports = append(s.imports, other)
	s.version++
}

// Imports returns the imported scopes.
func (s *Scope) Imports() []ScopeID { return s.imports }

// Version returns the scope's own mutation count.
func (s *Scope) Version() uint64 { return s.version }

// stamp sums the versions of s, its ancestors and their imports. Versions
// only grow, so any mutation in that set grows the stamp.
func (s *Scope) stamp() uint64 {
	var total uint64
	for cur := s; cur != nil; cur = cur.parent() {
		total += cur.version
		for _, id := range cur.imports {
			total += s.arena.Get(id).version
		}
	}
	return total
}

// Snapshot captures the current stamp.
func (s *Scope) Snapshot() Snapshot {
	return Snapshot{Scope: s.ID, Version: s.stamp()}
}

// ChangedSince reports whether anything visible from s was declared after
// snap was taken.
func (s *Scope) ChangedSince(snap Snapshot) bool {
	return s.stamp() != snap.Version
}

// Purge removes unbound placeholders from s and returns them. Their names
// are remembered so later references report an unresolved name.
func (s *Scope) Purge() []Symbol {
	var purged []Symbol
	for _, n := range s.order {
		sym, ok := s.syms[n]
		if !ok || !sym.IsPlaceholder() {
			continue
		}
		delete(s.syms, n)
		if s.unresolved == nil {
			s.unresolved = make(map[ast.Ident]bool)
		}
		s.unresolved[n] = true
		purged = append(purged, sym)
	}
	if len(purged) > 0 {
		s.version++
	}
	return purged
}

// IsUnresolved reports whether name was purged from s or an enclosing
// scope.
func (s *Scope) IsUnresolved(name ast.Ident) bool {
	for cur := s; cur != nil; cur = cur.parent() {
		if cur.unresolved[name] {
			return true
		}
		for _, id := range cur.imports {
			if s.arena.Get(id).unresolved[name] {
				return true
			}
		}
	}
	return false
}

// NearestLoop returns the innermost break/continue target within the
// current function, or nil.
func (s *Scope) NearestLoop() *Scope {
	for cur := s; cur != nil; cur = cur.parent() {
		if cur.Flags&FlagBreak != 0 {
			return cur
		}
		if cur.Flags&FlagFun != 0 {
			return nil
		}
	}
	return nil
}

// SelfBinding returns the instance bound by the nearest function or
// condition scope, or nil outside one.
func (s *Scope) SelfBinding() LValue {
	for cur := s; cur != nil; cur = cur.parent() {
		if cur.Flags&(FlagFun|FlagAsCondition) != 0 && cur.Self != nil {
			return cur.Self
		}
		if cur.Flags&FlagClass != 0 {
			return nil
		}
	}
	return nil
}

// EnclosingClass returns the class whose scope encloses s, or nil.
func (s *Scope) EnclosingClass() *Class {
	for cur := s; cur != nil; cur = cur.parent() {
		if cur.Class != nil {
			return cur.Class
		}
	}
	return nil
}

// EnclosingFun returns the function whose body encloses s, or nil.
func (s *Scope) EnclosingFun() *Function {
	for cur := s; cur != nil; cur = cur.parent() {
		if cur.Fun != nil {
			return cur.Fun
		}
		if cur.Flags&FlagClass != 0 {
			return nil
		}
	}
	return nil
}
