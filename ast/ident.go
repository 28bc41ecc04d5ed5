package ast

// ---------------------------------------------------------------------------
// Interner: identifier interning
// ---------------------------------------------------------------------------

// Ident is an interned identifier. The zero Ident is the empty name.
type Ident uint32

// NoIdent marks an absent identifier.
const NoIdent Ident = 0

// Interner maps identifier strings to Idents and back. Trees handed to the
// semantic core are built against one Interner, which travels with the
// Program.
type Interner struct {
	byName map[string]Ident
	byID   []string
}

// NewInterner creates an interner with the empty name pre-registered as NoIdent.
func NewInterner() *Interner {
	return &Interner{
		byName: map[string]Ident{"": NoIdent},
		byID:   []string{""},
	}
}

// Intern returns the Ident for name, allocating one if needed.
func (in *Interner) Intern(name string) Ident {
	if id, ok := in.byName[name]; ok {
		return id
	}
	id := Ident(len(in.byID))
	in.byName[name] = id
	in.byID = append(in.byID, name)
	return id
}

// Lookup returns the Ident for name without allocating.
func (in *Interner) Lookup(name string) (Ident, bool) {
	id, ok := in.byName[name]
	return id, ok
}

// Name returns the string for id, or "" if id is unknown.
func (in *Interner) Name(id Ident) string {
	if int(id) >= len(in.byID) {
		return ""
	}
	return in.byID[id]
}

// Len returns the number of interned names, including the empty name.
func (in *Interner) Len() int { return len(in.byID) }
