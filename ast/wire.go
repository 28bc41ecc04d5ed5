package ast

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// WireVersion is written into every encoded program.
const WireVersion = 1

var wireEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("ast: failed to create CBOR enc mode: %v", err))
	}
	wireEncMode = em
}

// The wire form is a uniform node record. Kind selects how the other slots
// are read; unused slots are omitted.
type wireSpan struct {
	_     struct{} `cbor:",toarray"`
	File  string
	Start [3]int
	End   [3]int
}

type wireNode struct {
	Kind  string      `cbor:"1,keyasint"`
	Span  *wireSpan   `cbor:"2,keyasint,omitempty"`
	Name  string      `cbor:"3,keyasint,omitempty"`
	Op    string      `cbor:"4,keyasint,omitempty"`
	Value uint64      `cbor:"5,keyasint,omitempty"`
	Flag  bool        `cbor:"6,keyasint,omitempty"`
	Type  *wireNode   `cbor:"7,keyasint,omitempty"`
	X     *wireNode   `cbor:"8,keyasint,omitempty"`
	Y     *wireNode   `cbor:"9,keyasint,omitempty"`
	Z     *wireNode   `cbor:"10,keyasint,omitempty"`
	W     *wireNode   `cbor:"11,keyasint,omitempty"`
	List  []*wireNode `cbor:"12,keyasint,omitempty"`
	Aux   []*wireNode `cbor:"13,keyasint,omitempty"`
	Extra []*wireNode `cbor:"14,keyasint,omitempty"`
}

type wireModule struct {
	Span    *wireSpan   `cbor:"1,keyasint,omitempty"`
	Name    string      `cbor:"2,keyasint"`
	Imports []*wireNode `cbor:"3,keyasint,omitempty"`
	Decls   []*wireNode `cbor:"4,keyasint,omitempty"`
}

type wireProgram struct {
	Version int           `cbor:"1,keyasint"`
	Modules []*wireModule `cbor:"2,keyasint"`
}

// EncodeProgram serializes p to CBOR. Identifiers are written as strings so
// the result does not depend on p's interner.
func EncodeProgram(p *Program) ([]byte, error) {
	e := &encoder{names: p.Names}
	wp := wireProgram{Version: WireVersion}
	for _, m := range p.Modules {
		wm := &wireModule{Span: e.span(m.SpanVal), Name: e.name(m.Name)}
		for _, imp := range m.Imports {
			wm.Imports = append(wm.Imports, &wireNode{Kind: "import", Span: e.span(imp.SpanVal), Name: e.name(imp.Module)})
		}
		for _, d := range m.Decls {
			n, err := e.node(d)
			if err != nil {
				return nil, err
			}
			wm.Decls = append(wm.Decls, n)
		}
		wp.Modules = append(wp.Modules, wm)
	}
	b, err := wireEncMode.Marshal(wp)
	if err != nil {
		return nil, fmt.Errorf("ast: encode program: %w", err)
	}
	return b, nil
}

// DecodeProgram rebuilds a Program from CBOR produced by EncodeProgram or by
// an external parser speaking the same format. Identifiers are interned into
// a fresh Interner.
func DecodeProgram(data []byte) (*Program, error) {
	var wp wireProgram
	if err := cbor.Unmarshal(data, &wp); err != nil {
		return nil, fmt.Errorf("ast: unmarshal program: %w", err)
	}
	if wp.Version != WireVersion {
		return nil, fmt.Errorf("ast: unsupported wire version %d", wp.Version)
	}
	d := &decoder{names: NewInterner()}
	p := &Program{Names: d.names}
	for i, wm := range wp.Modules {
		if wm == nil || wm.Name == "" {
			return nil, fmt.Errorf("ast: module %d has no name", i)
		}
		m := &Module{SpanVal: d.span(wm.Span), Name: d.names.Intern(wm.Name)}
		for _, imp := range wm.Imports {
			if imp == nil || imp.Kind != "import" {
				return nil, fmt.Errorf("ast: module %s: malformed import", wm.Name)
			}
			m.Imports = append(m.Imports, &Import{SpanVal: d.span(imp.Span), Module: d.names.Intern(imp.Name)})
		}
		for _, wn := range wm.Decls {
			decl, err := d.decl(wn)
			if err != nil {
				return nil, fmt.Errorf("ast: module %s: %w", wm.Name, err)
			}
			m.Decls = append(m.Decls, decl)
		}
		p.Modules = append(p.Modules, m)
	}
	return p, nil
}

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

type encoder struct {
	names *Interner
}

func (e *encoder) name(id Ident) string { return e.names.Name(id) }

func (e *encoder) span(s Span) *wireSpan {
	if s == (Span{}) {
		return nil
	}
	return &wireSpan{
		File:  s.File,
		Start: [3]int{s.Start.Offset, s.Start.Line, s.Start.Column},
		End:   [3]int{s.End.Offset, s.End.Line, s.End.Column},
	}
}

func (e *encoder) nodes(list any) ([]*wireNode, error) {
	var out []*wireNode
	add := func(n Node) error {
		w, err := e.node(n)
		if err != nil {
			return err
		}
		out = append(out, w)
		return nil
	}
	switch l := list.(type) {
	case []Decl:
		for _, n := range l {
			if err := add(n); err != nil {
				return nil, err
			}
		}
	case []Stmt:
		for _, n := range l {
			if err := add(n); err != nil {
				return nil, err
			}
		}
	case []Expr:
		for _, n := range l {
			if err := add(n); err != nil {
				return nil, err
			}
		}
	case []*Param:
		for _, n := range l {
			if err := add(n); err != nil {
				return nil, err
			}
		}
	case []*TypeRef:
		for _, n := range l {
			if err := add(n); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// opt encodes a possibly nil child. Typed nils inside interfaces are
// treated as absent.
func (e *encoder) opt(n Node) (*wireNode, error) {
	switch v := n.(type) {
	case nil:
		return nil, nil
	case *TypeRef:
		if v == nil {
			return nil, nil
		}
	case *Block:
		if v == nil {
			return nil, nil
		}
	}
	return e.node(n)
}

func (e *encoder) node(n Node) (*wireNode, error) {
	w := &wireNode{Span: e.span(n.Span())}
	var err error
	kids := func(dst **wireNode, c Node) {
		if err == nil {
			*dst, err = e.opt(c)
		}
	}
	list := func(dst *[]*wireNode, l any) {
		if err == nil {
			*dst, err = e.nodes(l)
		}
	}

	switch n := n.(type) {
	case *ClassDecl:
		w.Kind, w.Name, w.Op = "class", e.name(n.Name), n.Kind.String()
		w.Flag = n.IsTemplate()
		list(&w.List, n.Members)
		list(&w.Aux, n.Params)
		list(&w.Extra, n.Bases)
	case *Param:
		w.Kind, w.Name = "param", e.name(n.Name)
		kids(&w.Type, n.Type)
		kids(&w.X, n.Default)
	case *TypedefDecl:
		w.Kind, w.Name = "typedef", e.name(n.Name)
		kids(&w.Type, n.Type)
	case *ConstDecl:
		w.Kind, w.Name = "const", e.name(n.Name)
		kids(&w.Type, n.Type)
		kids(&w.X, n.Value)
	case *VarDecl:
		w.Kind, w.Name = "var", e.name(n.Name)
		kids(&w.Type, n.Type)
		kids(&w.X, n.Init)
	case *FuncDecl:
		w.Kind, w.Name = "func", e.name(n.Name)
		kids(&w.Type, n.Return)
		kids(&w.X, n.Body)
		list(&w.Aux, n.Params)
	case *TypeRef:
		w.Kind, w.Name, w.Flag = "type", e.name(n.Name), n.Ref
		kids(&w.X, n.Scope)
		list(&w.List, n.Args)
		list(&w.Aux, n.Dims)

	case *IntLiteral:
		w.Kind, w.Value = "int", n.Value
	case *BoolLiteral:
		w.Kind, w.Flag = "bool", n.Value
	case *NameExpr:
		w.Kind, w.Name = "name", e.name(n.Name)
	case *SelfExpr:
		w.Kind = "self"
	case *UnaryExpr:
		w.Kind, w.Op = "unary", n.Op.String()
		kids(&w.X, n.X)
	case *BinaryExpr:
		w.Kind, w.Op = "binary", n.Op.String()
		kids(&w.X, n.X)
		kids(&w.Y, n.Y)
	case *AssignExpr:
		w.Kind = "assign"
		if n.Op != OpInvalid {
			w.Op = n.Op.String()
		}
		kids(&w.X, n.Target)
		kids(&w.Y, n.Value)
	case *CondExpr:
		w.Kind = "cond"
		kids(&w.X, n.Cond)
		kids(&w.Y, n.Then)
		kids(&w.Z, n.Else)
	case *MemberExpr:
		w.Kind, w.Name = "member", e.name(n.Name)
		kids(&w.X, n.X)
	case *IndexExpr:
		w.Kind = "index"
		kids(&w.X, n.X)
		kids(&w.Y, n.Index)
	case *CallExpr:
		w.Kind = "call"
		kids(&w.X, n.Fun)
		list(&w.List, n.Args)
	case *CastExpr:
		w.Kind = "cast"
		kids(&w.Type, n.Type)
		kids(&w.X, n.X)
	case *TypeOpExpr:
		w.Kind, w.Op, w.Name = "typeop", n.Op.String(), e.name(n.Member)
		kids(&w.Type, n.Type)
		kids(&w.X, n.X)
	case *IsExpr:
		w.Kind = "is"
		kids(&w.Type, n.Type)
		kids(&w.X, n.X)

	case *Block:
		w.Kind = "block"
		list(&w.List, n.Stmts)
	case *ExprStmt:
		w.Kind = "expr"
		kids(&w.X, n.X)
	case *IfStmt:
		w.Kind = "if"
		kids(&w.X, n.Cond)
		kids(&w.Y, n.Then)
		kids(&w.Z, n.Else)
	case *WhileStmt:
		w.Kind = "while"
		kids(&w.X, n.Cond)
		kids(&w.Y, n.Body)
	case *ForStmt:
		w.Kind = "for"
		kids(&w.X, n.Init)
		kids(&w.Y, n.Cond)
		kids(&w.Z, n.Post)
		kids(&w.W, n.Body)
	case *ReturnStmt:
		w.Kind = "return"
		kids(&w.X, n.Value)
	case *BreakStmt:
		w.Kind = "break"
	case *ContinueStmt:
		w.Kind = "continue"
	default:
		return nil, fmt.Errorf("ast: cannot encode %T", n)
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

// ---------------------------------------------------------------------------
// Decoding
// ---------------------------------------------------------------------------

type decoder struct {
	names *Interner
}

func (d *decoder) span(w *wireSpan) Span {
	if w == nil {
		return Span{}
	}
	return Span{
		File:  w.File,
		Start: Position{Offset: w.Start[0], Line: w.Start[1], Column: w.Start[2]},
		End:   Position{Offset: w.End[0], Line: w.End[1], Column: w.End[2]},
	}
}

func (d *decoder) ident(s string) Ident {
	if s == "" {
		return NoIdent
	}
	return d.names.Intern(s)
}

func parseClassKind(s string) (ClassKind, error) {
	for _, k := range []ClassKind{Quark, Element, Transient} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown class kind %q", s)
}

func (d *decoder) decl(w *wireNode) (Decl, error) {
	if w == nil {
		return nil, fmt.Errorf("missing declaration")
	}
	switch w.Kind {
	case "class":
		kind, err := parseClassKind(w.Op)
		if err != nil {
			return nil, err
		}
		c := &ClassDecl{SpanVal: d.span(w.Span), Kind: kind, Name: d.ident(w.Name)}
		if w.Flag {
			c.Params = []*Param{}
		}
		for _, p := range w.Aux {
			param, err := d.param(p)
			if err != nil {
				return nil, err
			}
			c.Params = append(c.Params, param)
		}
		for _, b := range w.Extra {
			t, err := d.typeRef(b)
			if err != nil {
				return nil, err
			}
			c.Bases = append(c.Bases, t)
		}
		for _, m := range w.List {
			member, err := d.decl(m)
			if err != nil {
				return nil, fmt.Errorf("class %s: %w", w.Name, err)
			}
			c.Members = append(c.Members, member)
		}
		return c, nil

	case "func":
		f := &FuncDecl{SpanVal: d.span(w.Span), Name: d.ident(w.Name)}
		var err error
		if w.Type != nil {
			if f.Return, err = d.typeRef(w.Type); err != nil {
				return nil, err
			}
		}
		for _, p := range w.Aux {
			param, err := d.param(p)
			if err != nil {
				return nil, err
			}
			f.Params = append(f.Params, param)
		}
		if w.X != nil {
			s, err := d.stmt(w.X)
			if err != nil {
				return nil, fmt.Errorf("function %s: %w", w.Name, err)
			}
			b, ok := s.(*Block)
			if !ok {
				return nil, fmt.Errorf("function %s: body is %s, want block", w.Name, w.X.Kind)
			}
			f.Body = b
		}
		return f, nil

	case "typedef", "const", "var":
		s, err := d.stmt(w)
		if err != nil {
			return nil, err
		}
		return s.(Decl), nil
	}
	return nil, fmt.Errorf("%q is not a declaration", w.Kind)
}

func (d *decoder) param(w *wireNode) (*Param, error) {
	if w == nil || w.Kind != "param" {
		return nil, fmt.Errorf("malformed parameter")
	}
	t, err := d.typeRef(w.Type)
	if err != nil {
		return nil, err
	}
	def, err := d.optExpr(w.X)
	if err != nil {
		return nil, err
	}
	return &Param{SpanVal: d.span(w.Span), Type: t, Name: d.ident(w.Name), Default: def}, nil
}

func (d *decoder) typeRef(w *wireNode) (*TypeRef, error) {
	if w == nil || w.Kind != "type" {
		return nil, fmt.Errorf("malformed type")
	}
	t := &TypeRef{SpanVal: d.span(w.Span), Name: d.ident(w.Name), Ref: w.Flag}
	if w.X != nil {
		scope, err := d.typeRef(w.X)
		if err != nil {
			return nil, err
		}
		t.Scope = scope
	}
	var err error
	if t.Args, err = d.exprs(w.List); err != nil {
		return nil, err
	}
	if t.Dims, err = d.exprs(w.Aux); err != nil {
		return nil, err
	}
	return t, nil
}

func (d *decoder) optType(w *wireNode) (*TypeRef, error) {
	if w == nil {
		return nil, nil
	}
	return d.typeRef(w)
}

func (d *decoder) exprs(ws []*wireNode) ([]Expr, error) {
	var out []Expr
	for _, w := range ws {
		x, err := d.expr(w)
		if err != nil {
			return nil, err
		}
		out = append(out, x)
	}
	return out, nil
}

func (d *decoder) optExpr(w *wireNode) (Expr, error) {
	if w == nil {
		return nil, nil
	}
	return d.expr(w)
}

func (d *decoder) expr(w *wireNode) (Expr, error) {
	if w == nil {
		return nil, fmt.Errorf("missing expression")
	}
	sp := d.span(w.Span)
	switch w.Kind {
	case "int":
		return &IntLiteral{SpanVal: sp, Value: w.Value}, nil
	case "bool":
		return &BoolLiteral{SpanVal: sp, Value: w.Flag}, nil
	case "name":
		return &NameExpr{SpanVal: sp, Name: d.ident(w.Name)}, nil
	case "self":
		return &SelfExpr{SpanVal: sp}, nil
	case "unary":
		op := ParseUnaryOp(w.Op)
		if op == OpInvalid {
			return nil, fmt.Errorf("unknown unary operator %q", w.Op)
		}
		x, err := d.expr(w.X)
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{SpanVal: sp, Op: op, X: x}, nil
	case "binary", "assign":
		op := ParseBinaryOp(w.Op)
		if op == OpInvalid && (w.Kind == "binary" || w.Op != "") {
			return nil, fmt.Errorf("unknown binary operator %q", w.Op)
		}
		x, err := d.expr(w.X)
		if err != nil {
			return nil, err
		}
		y, err := d.expr(w.Y)
		if err != nil {
			return nil, err
		}
		if w.Kind == "assign" {
			return &AssignExpr{SpanVal: sp, Op: op, Target: x, Value: y}, nil
		}
		return &BinaryExpr{SpanVal: sp, Op: op, X: x, Y: y}, nil
	case "cond":
		c, err := d.expr(w.X)
		if err != nil {
			return nil, err
		}
		a, err := d.expr(w.Y)
		if err != nil {
			return nil, err
		}
		b, err := d.expr(w.Z)
		if err != nil {
			return nil, err
		}
		return &CondExpr{SpanVal: sp, Cond: c, Then: a, Else: b}, nil
	case "member":
		x, err := d.expr(w.X)
		if err != nil {
			return nil, err
		}
		return &MemberExpr{SpanVal: sp, X: x, Name: d.ident(w.Name)}, nil
	case "index":
		x, err := d.expr(w.X)
		if err != nil {
			return nil, err
		}
		i, err := d.expr(w.Y)
		if err != nil {
			return nil, err
		}
		return &IndexExpr{SpanVal: sp, X: x, Index: i}, nil
	case "call":
		fun, err := d.expr(w.X)
		if err != nil {
			return nil, err
		}
		args, err := d.exprs(w.List)
		if err != nil {
			return nil, err
		}
		return &CallExpr{SpanVal: sp, Fun: fun, Args: args}, nil
	case "cast":
		t, err := d.typeRef(w.Type)
		if err != nil {
			return nil, err
		}
		x, err := d.expr(w.X)
		if err != nil {
			return nil, err
		}
		return &CastExpr{SpanVal: sp, Type: t, X: x}, nil
	case "typeop":
		op, ok := ParseTypeOp(w.Op)
		if !ok {
			return nil, fmt.Errorf("unknown type operator %q", w.Op)
		}
		t, err := d.optType(w.Type)
		if err != nil {
			return nil, err
		}
		x, err := d.optExpr(w.X)
		if err != nil {
			return nil, err
		}
		if t == nil && x == nil {
			return nil, fmt.Errorf("%s has no operand", op)
		}
		return &TypeOpExpr{SpanVal: sp, Op: op, Type: t, X: x, Member: d.ident(w.Name)}, nil
	case "is":
		t, err := d.typeRef(w.Type)
		if err != nil {
			return nil, err
		}
		x, err := d.expr(w.X)
		if err != nil {
			return nil, err
		}
		return &IsExpr{SpanVal: sp, X: x, Type: t}, nil
	}
	return nil, fmt.Errorf("%q is not an expression", w.Kind)
}

func (d *decoder) optStmt(w *wireNode) (Stmt, error) {
	if w == nil {
		return nil, nil
	}
	return d.stmt(w)
}

func (d *decoder) stmt(w *wireNode) (Stmt, error) {
	if w == nil {
		return nil, fmt.Errorf("missing statement")
	}
	sp := d.span(w.Span)
	switch w.Kind {
	case "block":
		b := &Block{SpanVal: sp}
		for _, s := range w.List {
			st, err := d.stmt(s)
			if err != nil {
				return nil, err
			}
			b.Stmts = append(b.Stmts, st)
		}
		return b, nil
	case "expr":
		x, err := d.expr(w.X)
		if err != nil {
			return nil, err
		}
		return &ExprStmt{SpanVal: sp, X: x}, nil
	case "if":
		c, err := d.expr(w.X)
		if err != nil {
			return nil, err
		}
		then, err := d.stmt(w.Y)
		if err != nil {
			return nil, err
		}
		els, err := d.optStmt(w.Z)
		if err != nil {
			return nil, err
		}
		return &IfStmt{SpanVal: sp, Cond: c, Then: then, Else: els}, nil
	case "while":
		c, err := d.expr(w.X)
		if err != nil {
			return nil, err
		}
		body, err := d.stmt(w.Y)
		if err != nil {
			return nil, err
		}
		return &WhileStmt{SpanVal: sp, Cond: c, Body: body}, nil
	case "for":
		first, err := d.optStmt(w.X)
		if err != nil {
			return nil, err
		}
		c, err := d.optExpr(w.Y)
		if err != nil {
			return nil, err
		}
		post, err := d.optExpr(w.Z)
		if err != nil {
			return nil, err
		}
		body, err := d.stmt(w.W)
		if err != nil {
			return nil, err
		}
		return &ForStmt{SpanVal: sp, Init: first, Cond: c, Post: post, Body: body}, nil
	case "return":
		x, err := d.optExpr(w.X)
		if err != nil {
			return nil, err
		}
		return &ReturnStmt{SpanVal: sp, Value: x}, nil
	case "break":
		return &BreakStmt{SpanVal: sp}, nil
	case "continue":
		return &ContinueStmt{SpanVal: sp}, nil

	case "typedef":
		t, err := d.typeRef(w.Type)
		if err != nil {
			return nil, err
		}
		return &TypedefDecl{SpanVal: sp, Type: t, Name: d.ident(w.Name)}, nil
	case "const":
		t, err := d.typeRef(w.Type)
		if err != nil {
			return nil, err
		}
		x, err := d.expr(w.X)
		if err != nil {
			return nil, fmt.Errorf("constant %s: %w", w.Name, err)
		}
		return &ConstDecl{SpanVal: sp, Type: t, Name: d.ident(w.Name), Value: x}, nil
	case "var":
		t, err := d.typeRef(w.Type)
		if err != nil {
			return nil, err
		}
		x, err := d.optExpr(w.X)
		if err != nil {
			return nil, err
		}
		return &VarDecl{SpanVal: sp, Type: t, Name: d.ident(w.Name), Init: x}, nil
	}
	return nil, fmt.Errorf("%q is not a statement", w.Kind)
}
