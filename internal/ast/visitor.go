package ast

// Visitor is implemented by passes that walk the tree through Accept.
// Returning an error stops the walk at that node.
type Visitor interface {
	VisitProgram(*Program) error
	VisitBlock(*BlockStmt) error
	VisitVarDecl(*VarDecl) error
	VisitExprStmt(*ExprStmt) error
	VisitIf(*IfStmt) error
	VisitWhile(*WhileStmt) error
	VisitFor(*ForStmt) error
	VisitForIn(*ForInStmt) error
	VisitBreak(*BreakStmt) error
	VisitContinue(*ContinueStmt) error
	VisitReturn(*ReturnStmt) error
	VisitFuncDecl(*FuncDecl) error
	VisitTry(*TryStmt) error
	VisitThrow(*ThrowStmt) error
	VisitCritical(*CriticalStmt) error
	VisitSpawn(*SpawnStmt) error
	VisitWait(*WaitStmt) error

	VisitIdent(*Ident) error
	VisitIntLit(*IntLit) error
	VisitDoubleLit(*DoubleLit) error
	VisitStringLit(*StringLit) error
	VisitBoolLit(*BoolLit) error
	VisitNullLit(*NullLit) error
	VisitArrayLit(*ArrayLit) error
	VisitBinary(*BinaryExpr) error
	VisitLogical(*LogicalExpr) error
	VisitUnary(*UnaryExpr) error
	VisitIncDec(*IncDecExpr) error
	VisitAssign(*AssignExpr) error
	VisitCall(*CallExpr) error
	VisitMethodCall(*MethodCallExpr) error
	VisitNew(*NewExpr) error
	VisitIndex(*IndexExpr) error
}

func (n *Program) Accept(v Visitor) error      { return v.VisitProgram(n) }
func (n *BlockStmt) Accept(v Visitor) error    { return v.VisitBlock(n) }
func (n *VarDecl) Accept(v Visitor) error      { return v.VisitVarDecl(n) }
func (n *ExprStmt) Accept(v Visitor) error     { return v.VisitExprStmt(n) }
func (n *IfStmt) Accept(v Visitor) error       { return v.VisitIf(n) }
func (n *WhileStmt) Accept(v Visitor) error    { return v.VisitWhile(n) }
func (n *ForStmt) Accept(v Visitor) error      { return v.VisitFor(n) }
func (n *ForInStmt) Accept(v Visitor) error    { return v.VisitForIn(n) }
func (n *BreakStmt) Accept(v Visitor) error    { return v.VisitBreak(n) }
func (n *ContinueStmt) Accept(v Visitor) error { return v.VisitContinue(n) }
func (n *ReturnStmt) Accept(v Visitor) error   { return v.VisitReturn(n) }
func (n *FuncDecl) Accept(v Visitor) error     { return v.VisitFuncDecl(n) }
func (n *TryStmt) Accept(v Visitor) error      { return v.VisitTry(n) }
func (n *ThrowStmt) Accept(v Visitor) error    { return v.VisitThrow(n) }
func (n *CriticalStmt) Accept(v Visitor) error { return v.VisitCritical(n) }
func (n *SpawnStmt) Accept(v Visitor) error    { return v.VisitSpawn(n) }
func (n *WaitStmt) Accept(v Visitor) error     { return v.VisitWait(n) }

func (n *Ident) Accept(v Visitor) error          { return v.VisitIdent(n) }
func (n *IntLit) Accept(v Visitor) error         { return v.VisitIntLit(n) }
func (n *DoubleLit) Accept(v Visitor) error      { return v.VisitDoubleLit(n) }
func (n *StringLit) Accept(v Visitor) error      { return v.VisitStringLit(n) }
func (n *BoolLit) Accept(v Visitor) error        { return v.VisitBoolLit(n) }
func (n *NullLit) Accept(v Visitor) error        { return v.VisitNullLit(n) }
func (n *ArrayLit) Accept(v Visitor) error       { return v.VisitArrayLit(n) }
func (n *BinaryExpr) Accept(v Visitor) error     { return v.VisitBinary(n) }
func (n *LogicalExpr) Accept(v Visitor) error    { return v.VisitLogical(n) }
func (n *UnaryExpr) Accept(v Visitor) error      { return v.VisitUnary(n) }
func (n *IncDecExpr) Accept(v Visitor) error     { return v.VisitIncDec(n) }
func (n *AssignExpr) Accept(v Visitor) error     { return v.VisitAssign(n) }
func (n *CallExpr) Accept(v Visitor) error       { return v.VisitCall(n) }
func (n *MethodCallExpr) Accept(v Visitor) error { return v.VisitMethodCall(n) }
func (n *NewExpr) Accept(v Visitor) error        { return v.VisitNew(n) }
func (n *IndexExpr) Accept(v Visitor) error      { return v.VisitIndex(n) }
