package ast

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

// Op identifies a unary, binary or assignment operator.
type Op uint8

const (
	OpInvalid Op = iota

	// Arithmetic
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod

	// Bitwise
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr

	// Comparison
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe

	// Logical
	OpLogAnd
	OpLogOr

	// Unary only
	OpNeg
	OpNot
	OpBitNot
	OpPlus
)

var opNames = map[Op]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpMod: "%",
	OpAnd: "&", OpOr: "|", OpXor: "^", OpShl: "<<", OpShr: ">>",
	OpEq: "==", OpNe: "!=", OpLt: "<", OpLe: "<=", OpGt: ">", OpGe: ">=",
	OpLogAnd: "&&", OpLogOr: "||",
	OpNeg: "-", OpNot: "!", OpBitNot: "~", OpPlus: "+",
}

func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return "?"
}

// ParseBinaryOp maps an operator spelling to a binary Op.
func ParseBinaryOp(s string) Op {
	for op := OpAdd; op <= OpLogOr; op++ {
		if opNames[op] == s {
			return op
		}
	}
	return OpInvalid
}

// ParseUnaryOp maps an operator spelling to a unary Op.
func ParseUnaryOp(s string) Op {
	switch s {
	case "-":
		return OpNeg
	case "!":
		return OpNot
	case "~":
		return OpBitNot
	case "+":
		return OpPlus
	}
	return OpInvalid
}

// IsArithmetic reports whether o is + - * / %.
func (o Op) IsArithmetic() bool { return o >= OpAdd && o <= OpMod }

// IsBitwise reports whether o is & | ^.
func (o Op) IsBitwise() bool { return o >= OpAnd && o <= OpXor }

// IsShift reports whether o is << or >>.
func (o Op) IsShift() bool { return o == OpShl || o == OpShr }

// IsComparison reports whether o yields a Bool from two comparable operands.
func (o Op) IsComparison() bool { return o >= OpEq && o <= OpGe }

// IsLogical reports whether o is && or ||.
func (o Op) IsLogical() bool { return o == OpLogAnd || o == OpLogOr }

// TypeOpKind names a compile-time type operator.
type TypeOpKind uint8

const (
	SizeOf TypeOpKind = iota
	MinOf
	MaxOf
	LengthOf
	ClassIDOf
	ConstantOf
	PositionOf
	AtomOf
	InstanceOf
)

var typeOpNames = [...]string{
	SizeOf: "sizeof", MinOf: "minof", MaxOf: "maxof", LengthOf: "lengthof",
	ClassIDOf: "classidof", ConstantOf: "constantof", PositionOf: "positionof",
	AtomOf: "atomof", InstanceOf: "instanceof",
}

func (k TypeOpKind) String() string {
	if int(k) < len(typeOpNames) {
		return typeOpNames[k]
	}
	return "typeop?"
}

// ParseTypeOp maps an operator name to a TypeOpKind.
func ParseTypeOp(s string) (TypeOpKind, bool) {
	for i, n := range typeOpNames {
		if n == s {
			return TypeOpKind(i), true
		}
	}
	return 0, false
}

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

// IntLiteral represents an integer literal. Literals are non-negative;
// negation is a UnaryExpr.
type IntLiteral struct {
	SpanVal Span
	Value   uint64
}

func (n *IntLiteral) Span() Span { return n.SpanVal }
func (n *IntLiteral) node()      {}
func (n *IntLiteral) expr()      {}

// BoolLiteral represents true or false.
type BoolLiteral struct {
	SpanVal Span
	Value   bool
}

func (n *BoolLiteral) Span() Span { return n.SpanVal }
func (n *BoolLiteral) node()      {}
func (n *BoolLiteral) expr()      {}

// NameExpr references a variable, constant, parameter or data member.
type NameExpr struct {
	SpanVal Span
	Name    Ident
}

func (n *NameExpr) Span() Span { return n.SpanVal }
func (n *NameExpr) node()      {}
func (n *NameExpr) expr()      {}

// SelfExpr is the receiver of the enclosing function.
type SelfExpr struct {
	SpanVal Span
}

func (n *SelfExpr) Span() Span { return n.SpanVal }
func (n *SelfExpr) node()      {}
func (n *SelfExpr) expr()      {}

// UnaryExpr applies a prefix operator.
type UnaryExpr struct {
	SpanVal Span
	Op      Op
	X       Expr
}

func (n *UnaryExpr) Span() Span { return n.SpanVal }
func (n *UnaryExpr) node()      {}
func (n *UnaryExpr) expr()      {}

// BinaryExpr applies an infix operator.
type BinaryExpr struct {
	SpanVal Span
	Op      Op
	X       Expr
	Y       Expr
}

func (n *BinaryExpr) Span() Span { return n.SpanVal }
func (n *BinaryExpr) node()      {}
func (n *BinaryExpr) expr()      {}

// AssignExpr is Target = Value, or Target op= Value when Op is set.
type AssignExpr struct {
	SpanVal Span
	Op      Op // OpInvalid for plain assignment
	Target  Expr
	Value   Expr
}

func (n *AssignExpr) Span() Span { return n.SpanVal }
func (n *AssignExpr) node()      {}
func (n *AssignExpr) expr()      {}

// CondExpr is Cond ? Then : Else.
type CondExpr struct {
	SpanVal Span
	Cond    Expr
	Then    Expr
	Else    Expr
}

func (n *CondExpr) Span() Span { return n.SpanVal }
func (n *CondExpr) node()      {}
func (n *CondExpr) expr()      {}

// MemberExpr selects a data member or function of X.
type MemberExpr struct {
	SpanVal Span
	X       Expr
	Name    Ident
}

func (n *MemberExpr) Span() Span { return n.SpanVal }
func (n *MemberExpr) node()      {}
func (n *MemberExpr) expr()      {}

// IndexExpr selects an array element.
type IndexExpr struct {
	SpanVal Span
	X       Expr
	Index   Expr
}

func (n *IndexExpr) Span() Span { return n.SpanVal }
func (n *IndexExpr) node()      {}
func (n *IndexExpr) expr()      {}

// CallExpr calls a member function. Fun is a NameExpr (implicit self) or a
// MemberExpr.
type CallExpr struct {
	SpanVal Span
	Fun     Expr
	Args    []Expr
}

func (n *CallExpr) Span() Span { return n.SpanVal }
func (n *CallExpr) node()      {}
func (n *CallExpr) expr()      {}

// CastExpr is (Type) X.
type CastExpr struct {
	SpanVal Span
	Type    *TypeRef
	X       Expr
}

func (n *CastExpr) Span() Span { return n.SpanVal }
func (n *CastExpr) node()      {}
func (n *CastExpr) expr()      {}

// TypeOpExpr applies a type operator to a type (Type set) or to the type of
// an expression (X set). Member names the data member for positionof.
type TypeOpExpr struct {
	SpanVal Span
	Op      TypeOpKind
	Type    *TypeRef
	X       Expr
	Member  Ident
}

func (n *TypeOpExpr) Span() Span { return n.SpanVal }
func (n *TypeOpExpr) node()      {}
func (n *TypeOpExpr) expr()      {}

// IsExpr tests whether X is an instance of Type.
type IsExpr struct {
	SpanVal Span
	X       Expr
	Type    *TypeRef
}

func (n *IsExpr) Span() Span { return n.SpanVal }
func (n *IsExpr) node()      {}
func (n *IsExpr) expr()      {}

// ---------------------------------------------------------------------------
// Statement nodes
// ---------------------------------------------------------------------------

// Block is a braced statement list with its own scope.
type Block struct {
	SpanVal Span
	Stmts   []Stmt
}

func (n *Block) Span() Span { return n.SpanVal }
func (n *Block) node()      {}
func (n *Block) stmt()      {}

// ExprStmt evaluates an expression for its effect.
type ExprStmt struct {
	SpanVal Span
	X       Expr
}

func (n *ExprStmt) Span() Span { return n.SpanVal }
func (n *ExprStmt) node()      {}
func (n *ExprStmt) stmt()      {}

// IfStmt is if (Cond) Then [else Else].
type IfStmt struct {
	SpanVal Span
	Cond    Expr
	Then    Stmt
	Else    Stmt
}

func (n *IfStmt) Span() Span { return n.SpanVal }
func (n *IfStmt) node()      {}
func (n *IfStmt) stmt()      {}

// WhileStmt is while (Cond) Body.
type WhileStmt struct {
	SpanVal Span
	Cond    Expr
	Body    Stmt
}

func (n *WhileStmt) Span() Span { return n.SpanVal }
func (n *WhileStmt) node()      {}
func (n *WhileStmt) stmt()      {}

// ForStmt is for (Init; Cond; Post) Body. Any part may be nil.
type ForStmt struct {
	SpanVal Span
	Init    Stmt
	Cond    Expr
	Post    Expr
	Body    Stmt
}

func (n *ForStmt) Span() Span { return n.SpanVal }
func (n *ForStmt) node()      {}
func (n *ForStmt) stmt()      {}

// ReturnStmt returns from the enclosing function.
type ReturnStmt struct {
	SpanVal Span
	Value   Expr
}

func (n *ReturnStmt) Span() Span { return n.SpanVal }
func (n *ReturnStmt) node()      {}
func (n *ReturnStmt) stmt()      {}

// BreakStmt leaves the nearest loop.
type BreakStmt struct {
	SpanVal Span
}

func (n *BreakStmt) Span() Span { return n.SpanVal }
func (n *BreakStmt) node()      {}
func (n *BreakStmt) stmt()      {}

// ContinueStmt starts the next iteration of the nearest loop.
type ContinueStmt struct {
	SpanVal Span
}

func (n *ContinueStmt) Span() Span { return n.SpanVal }
func (n *ContinueStmt) node()      {}
func (n *ContinueStmt) stmt()      {}
