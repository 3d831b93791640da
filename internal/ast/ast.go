package ast

import "clever/internal/token"

// Basic interfaces

type Node interface {
	Pos() token.Position
	Accept(v Visitor) error
}

type Stmt interface {
	Node
	stmtNode()
}

type Expr interface {
	Node
	exprNode()
}

// Literal is implemented by the constant expression nodes.
type Literal interface {
	Expr
	literalNode()
}

// Program

type Program struct {
	Stmts []Stmt
}

func (p *Program) Pos() token.Position {
	if len(p.Stmts) > 0 {
		return p.Stmts[0].Pos()
	}
	return token.Position{Line: 1, Column: 1}
}

// ---------- Statements ----------

type BlockStmt struct {
	LBrace token.Position
	Stmts  []Stmt
}

func (b *BlockStmt) Pos() token.Position { return b.LBrace }
func (*BlockStmt) stmtNode()             {}

// VarDecl is `var name = value;`. Value is nil for a bare declaration.
type VarDecl struct {
	VarPos token.Position
	Name   *Ident
	Value  Expr
}

func (d *VarDecl) Pos() token.Position { return d.VarPos }
func (*VarDecl) stmtNode()             {}

type ExprStmt struct {
	X Expr
}

func (s *ExprStmt) Pos() token.Position { return s.X.Pos() }
func (*ExprStmt) stmtNode()             {}

type IfBranch struct {
	Cond Expr
	Body *BlockStmt
}

// IfStmt holds the `if` branch followed by every `else if` branch.
type IfStmt struct {
	IfPos    token.Position
	Branches []*IfBranch
	Else     *BlockStmt // nil if absent
}

func (s *IfStmt) Pos() token.Position { return s.IfPos }
func (*IfStmt) stmtNode()             {}

type WhileStmt struct {
	WhilePos token.Position
	Cond     Expr
	Body     *BlockStmt
}

func (s *WhileStmt) Pos() token.Position { return s.WhilePos }
func (*WhileStmt) stmtNode()             {}

// ForStmt is the C-style loop. Any of Init, Cond and Post may be nil.
type ForStmt struct {
	ForPos token.Position
	Init   Stmt
	Cond   Expr
	Post   Expr
	Body   *BlockStmt
}

func (s *ForStmt) Pos() token.Position { return s.ForPos }
func (*ForStmt) stmtNode()             {}

// ForInStmt iterates the elements of an array, binding Var to each element.
type ForInStmt struct {
	ForPos token.Position
	Var    *Ident
	Iter   Expr
	Body   *BlockStmt
}

func (s *ForInStmt) Pos() token.Position { return s.ForPos }
func (*ForInStmt) stmtNode()             {}

type BreakStmt struct {
	BreakPos token.Position
}

func (s *BreakStmt) Pos() token.Position { return s.BreakPos }
func (*BreakStmt) stmtNode()             {}

type ContinueStmt struct {
	ContinuePos token.Position
}

func (s *ContinueStmt) Pos() token.Position { return s.ContinuePos }
func (*ContinueStmt) stmtNode()             {}

type ReturnStmt struct {
	ReturnPos token.Position
	Value     Expr // nil for bare return
}

func (s *ReturnStmt) Pos() token.Position { return s.ReturnPos }
func (*ReturnStmt) stmtNode()             {}

type Param struct {
	Name    *Ident
	Default Expr // nil if no default value
}

type FuncDecl struct {
	FuncPos token.Position
	Name    *Ident
	Params  []*Param
	Body    *BlockStmt
}

func (f *FuncDecl) Pos() token.Position { return f.FuncPos }
func (*FuncDecl) stmtNode()             {}

// CatchClause is `catch (e)` or the typed form `catch (Type e)`.
type CatchClause struct {
	CatchPos token.Position
	Type     *Ident // nil catches everything
	Var      *Ident
	Body     *BlockStmt
}

type TryStmt struct {
	TryPos  token.Position
	Body    *BlockStmt
	Catches []*CatchClause
	Finally *BlockStmt // nil if absent
}

func (s *TryStmt) Pos() token.Position { return s.TryPos }
func (*TryStmt) stmtNode()             {}

type ThrowStmt struct {
	ThrowPos token.Position
	Value    Expr
}

func (s *ThrowStmt) Pos() token.Position { return s.ThrowPos }
func (*ThrowStmt) stmtNode()             {}

// CriticalStmt runs Body while holding the interpreter-wide lock.
type CriticalStmt struct {
	CriticalPos token.Position
	Body        *BlockStmt
}

func (s *CriticalStmt) Pos() token.Position { return s.CriticalPos }
func (*CriticalStmt) stmtNode()             {}

// SpawnStmt is `spawn name[size] { ... }`. Name and Size are optional.
type SpawnStmt struct {
	SpawnPos token.Position
	Name     *Ident
	Size     Expr
	Body     *BlockStmt
}

func (s *SpawnStmt) Pos() token.Position { return s.SpawnPos }
func (*SpawnStmt) stmtNode()             {}

type WaitStmt struct {
	WaitPos token.Position
	Name    *Ident
}

func (s *WaitStmt) Pos() token.Position { return s.WaitPos }
func (*WaitStmt) stmtNode()             {}

// ---------- Expressions ----------

type Ident struct {
	Name    string
	NamePos token.Position
}

func (e *Ident) Pos() token.Position { return e.NamePos }
func (*Ident) exprNode()             {}

type IntLit struct {
	LitPos token.Position
	Value  int64
}

func (e *IntLit) Pos() token.Position { return e.LitPos }
func (*IntLit) exprNode()             {}
func (*IntLit) literalNode()          {}

type DoubleLit struct {
	LitPos token.Position
	Value  float64
}

func (e *DoubleLit) Pos() token.Position { return e.LitPos }
func (*DoubleLit) exprNode()             {}
func (*DoubleLit) literalNode()          {}

type StringLit struct {
	LitPos token.Position
	Value  string
}

func (e *StringLit) Pos() token.Position { return e.LitPos }
func (*StringLit) exprNode()             {}
func (*StringLit) literalNode()          {}

type BoolLit struct {
	LitPos token.Position
	Value  bool
}

func (e *BoolLit) Pos() token.Position { return e.LitPos }
func (*BoolLit) exprNode()             {}
func (*BoolLit) literalNode()          {}

type NullLit struct {
	LitPos token.Position
}

func (e *NullLit) Pos() token.Position { return e.LitPos }
func (*NullLit) exprNode()             {}
func (*NullLit) literalNode()          {}

type ArrayLit struct {
	LBrack token.Position
	Elems  []Expr
}

func (e *ArrayLit) Pos() token.Position { return e.LBrack }
func (*ArrayLit) exprNode()             {}

// BinaryExpr covers arithmetic, bitwise and comparison operators.
type BinaryExpr struct {
	Op    token.Kind
	OpPos token.Position
	Left  Expr
	Right Expr
}

func (e *BinaryExpr) Pos() token.Position { return e.OpPos }
func (*BinaryExpr) exprNode()             {}

// LogicalExpr is a short-circuit && or ||.
type LogicalExpr struct {
	Op    token.Kind
	OpPos token.Position
	Left  Expr
	Right Expr
}

func (e *LogicalExpr) Pos() token.Position { return e.OpPos }
func (*LogicalExpr) exprNode()             {}

type UnaryExpr struct {
	Op    token.Kind
	OpPos token.Position
	X     Expr
}

func (e *UnaryExpr) Pos() token.Position { return e.OpPos }
func (*UnaryExpr) exprNode()             {}

// IncDecExpr is ++x, --x, x++ or x--.
type IncDecExpr struct {
	Op     token.Kind
	OpPos  token.Position
	Prefix bool
	X      *Ident
}

func (e *IncDecExpr) Pos() token.Position { return e.OpPos }
func (*IncDecExpr) exprNode()             {}

// AssignExpr is a plain or compound assignment. Target is an *Ident or an *IndexExpr.
type AssignExpr struct {
	Op     token.Kind
	OpPos  token.Position
	Target Expr
	Value  Expr
}

func (e *AssignExpr) Pos() token.Position { return e.OpPos }
func (*AssignExpr) exprNode()             {}

type CallExpr struct {
	Callee Expr
	LParen token.Position
	Args   []Expr
}

func (e *CallExpr) Pos() token.Position { return e.Callee.Pos() }
func (*CallExpr) exprNode()             {}

// MethodCallExpr is recv.method(args). When Recv names a type the call is static.
type MethodCallExpr struct {
	Recv   Expr
	Method *Ident
	Args   []Expr
}

func (e *MethodCallExpr) Pos() token.Position { return e.Method.NamePos }
func (*MethodCallExpr) exprNode()             {}

type NewExpr struct {
	NewPos token.Position
	Type   *Ident
	Args   []Expr
}

func (e *NewExpr) Pos() token.Position { return e.NewPos }
func (*NewExpr) exprNode()             {}

type IndexExpr struct {
	X      Expr
	LBrack token.Position
	Index  Expr
}

func (e *IndexExpr) Pos() token.Position { return e.LBrack }
func (*IndexExpr) exprNode()             {}
