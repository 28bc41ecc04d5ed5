// Package graph exports the resolved semantic graph of an analyzed program:
// modules with their constants and typedefs, and every class with its
// layout, bases and member functions. The export is what downstream
// collaborators (code generators, inspectors) consume; it is written as
// canonical CBOR or as YAML for people.
package graph

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	"gopkg.in/yaml.v3"

	"github.com/chazu/quarkc/sema"
)

var log = commonlog.GetLogger("quarkc.graph")

// Graph is the exported program.
type Graph struct {
	BuildID string   `cbor:"1,keyasint" yaml:"build-id"`
	Modules []Module `cbor:"2,keyasint" yaml:"modules"`
	Classes []Class  `cbor:"3,keyasint" yaml:"classes"`
}

// Module lists what a module declares at its top level.
type Module struct {
	Name      string     `cbor:"1,keyasint" yaml:"name"`
	Imports   []string   `cbor:"2,keyasint,omitempty" yaml:"imports,omitempty"`
	Constants []Constant `cbor:"3,keyasint,omitempty" yaml:"constants,omitempty"`
	Typedefs  []Typedef  `cbor:"4,keyasint,omitempty" yaml:"typedefs,omitempty"`
	Classes   []string   `cbor:"5,keyasint,omitempty" yaml:"classes,omitempty"`
	Templates []string   `cbor:"6,keyasint,omitempty" yaml:"templates,omitempty"`
}

// Constant is a folded named constant. Error is set instead of Value when
// folding failed.
type Constant struct {
	Name  string `cbor:"1,keyasint" yaml:"name"`
	Type  string `cbor:"2,keyasint" yaml:"type"`
	Value string `cbor:"3,keyasint,omitempty" yaml:"value,omitempty"`
	Error string `cbor:"4,keyasint,omitempty" yaml:"error,omitempty"`
}

// Typedef is a resolved alias.
type Typedef struct {
	Name   string `cbor:"1,keyasint" yaml:"name"`
	Target string `cbor:"2,keyasint" yaml:"target"`
}

// Class is a resolved (or failed) class and its layout.
type Class struct {
	Name      string     `cbor:"1,keyasint" yaml:"name"`
	Kind      string     `cbor:"2,keyasint" yaml:"kind"`
	State     string     `cbor:"3,keyasint" yaml:"state"`
	Error     string     `cbor:"4,keyasint,omitempty" yaml:"error,omitempty"`
	ClassID   uint32     `cbor:"5,keyasint,omitempty" yaml:"class-id,omitempty"`
	Template  string     `cbor:"6,keyasint,omitempty" yaml:"template,omitempty"`
	Args      []string   `cbor:"7,keyasint,omitempty" yaml:"args,omitempty"`
	Size      int        `cbor:"8,keyasint" yaml:"size"`
	Bases     []string   `cbor:"9,keyasint,omitempty" yaml:"bases,omitempty"`
	Members   []Member   `cbor:"10,keyasint,omitempty" yaml:"members,omitempty"`
	Functions []Function `cbor:"11,keyasint,omitempty" yaml:"functions,omitempty"`
}

// Member is a data member at its offset in the class layout, inherited
// members included.
type Member struct {
	Name    string `cbor:"1,keyasint" yaml:"name"`
	Type    string `cbor:"2,keyasint" yaml:"type"`
	Offset  int    `cbor:"3,keyasint" yaml:"offset"`
	Size    int    `cbor:"4,keyasint" yaml:"size"`
	Owner   string `cbor:"5,keyasint,omitempty" yaml:"owner,omitempty"`
	Default string `cbor:"6,keyasint,omitempty" yaml:"default,omitempty"`
}

// Function is one overload declared by the class itself.
type Function struct {
	Name      string `cbor:"1,keyasint" yaml:"name"`
	Signature string `cbor:"2,keyasint" yaml:"signature"`
}

// Build walks p and produces its graph under a fresh build ID.
func Build(p *sema.Program) *Graph {
	g := &Graph{BuildID: uuid.NewString()}
	for _, m := range p.Modules {
		g.Modules = append(g.Modules, buildModule(p, m))
	}
	for _, c := range p.Registry.Classes() {
		g.Classes = append(g.Classes, buildClass(p, c))
	}
	log.Debugf("graph %s: %d modules, %d classes", g.BuildID, len(g.Modules), len(g.Classes))
	return g
}

func buildModule(p *sema.Program, m *sema.Module) Module {
	out := Module{Name: p.Names.Name(m.Name)}
	for _, imp := range m.Imports {
		out.Imports = append(out.Imports, p.Names.Name(imp.Name))
	}
	for _, id := range m.Scope.Names() {
		name := p.Names.Name(id)
		switch s := m.Scope.Own(id).(type) {
		case *sema.VarSymbol:
			if s.Kind == sema.VarConstant {
				out.Constants = append(out.Constants, constant(name, s))
			}
		case *sema.TypeSymbol:
			if s.IsPlaceholder() || s.Type == nil {
				continue
			}
			if c, ok := s.Type.(*sema.Class); ok && c.Name() == name {
				out.Classes = append(out.Classes, name)
				continue
			}
			out.Typedefs = append(out.Typedefs, Typedef{Name: name, Target: s.Type.Basic().Name()})
		case *sema.TemplateSymbol:
			out.Templates = append(out.Templates, name)
		}
	}
	return out
}

func constant(name string, s *sema.VarSymbol) Constant {
	c := Constant{Name: name}
	if s.Type != nil {
		c.Type = s.Type.Name()
	}
	switch {
	case s.Err() != nil:
		c.Error = s.Err().Error()
	case s.Value.IsKnown():
		c.Value = s.Value.String()
	}
	return c
}

func buildClass(p *sema.Program, c *sema.Class) Class {
	out := Class{
		Name:  c.Name(),
		Kind:  c.ClassKind.String(),
		State: c.State().String(),
	}
	if c.Template != nil {
		out.Template = c.Template.Name()
		for _, a := range c.Args {
			out.Args = append(out.Args, a.String())
		}
	}
	if c.State() != sema.Resolved {
		if err := c.Err(); err != nil {
			out.Error = err.Error()
		}
		return out
	}
	if c.HasClassID() {
		out.ClassID = c.ClassID()
	}
	out.Size = c.BitSize()
	for _, b := range c.Bases {
		out.Bases = append(out.Bases, b.Name())
	}
	for _, prop := range c.AllProps() {
		off, _ := c.Offset(prop)
		m := Member{
			Name:   p.Names.Name(prop.Name),
			Type:   prop.Type.Name(),
			Offset: off,
			Size:   prop.Type.BitSize(),
		}
		if prop.Owner != c {
			m.Owner = prop.Owner.Name()
		}
		if c.Default != nil {
			if v, err := prop.Load(c.Default); err == nil && v.IsKnown() {
				m.Default = v.String()
			}
		}
		out.Members = append(out.Members, m)
	}
	for _, set := range c.Funs {
		for _, fn := range set.Funs {
			out.Functions = append(out.Functions, Function{Name: p.Names.Name(fn.Name), Signature: fn.Sig.Name()})
		}
	}
	slices.SortStableFunc(out.Functions, func(a, b Function) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.Signature, b.Signature))
	})
	return out
}

// Class returns the exported class with the given name, or nil.
func (g *Graph) Class(name string) *Class {
	for i := range g.Classes {
		if g.Classes[i].Name == name {
			return &g.Classes[i]
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("graph: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// MarshalCBOR serializes g to canonical CBOR.
func MarshalCBOR(g *Graph) ([]byte, error) {
	return encMode.Marshal(g)
}

// UnmarshalCBOR deserializes a graph from CBOR bytes.
func UnmarshalCBOR(data []byte) (*Graph, error) {
	var g Graph
	if err := cbor.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("graph: unmarshal: %w", err)
	}
	return &g, nil
}

// MarshalYAML renders g as YAML.
func MarshalYAML(g *Graph) ([]byte, error) {
	b, err := yaml.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("graph: yaml: %w", err)
	}
	return b, nil
}

// Marshal renders g in the named format, "cbor" or "yaml".
func Marshal(g *Graph, format string) ([]byte, error) {
	switch format {
	case "cbor":
		return MarshalCBOR(g)
	case "yaml":
		return MarshalYAML(g)
	}
	return nil, fmt.Errorf("graph: unknown format %q", format)
}
