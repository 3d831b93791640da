package ir

import (
	"errors"

	"clever/internal/ast"
	"clever/internal/diag"
	"clever/internal/scope"
	"clever/internal/token"
	"clever/internal/value"
)

var binaryOps = map[token.Kind]value.Operator{
	token.Plus:    value.OpAdd,
	token.Minus:   value.OpSub,
	token.Star:    value.OpMul,
	token.Slash:   value.OpDiv,
	token.Percent: value.OpMod,
	token.Amp:     value.OpBitAnd,
	token.Pipe:    value.OpBitOr,
	token.Caret:   value.OpBitXor,
	token.Shl:     value.OpShl,
	token.Shr:     value.OpShr,
	token.Eq:      value.OpEqual,
	token.NotEq:   value.OpNotEqual,
	token.Lt:      value.OpLess,
	token.LtEq:    value.OpLessEqual,
	token.Gt:      value.OpGreater,
	token.GtEq:    value.OpGreaterEqual,
}

var compoundOps = map[token.Kind]value.Operator{
	token.PlusAssign:  value.OpAdd,
	token.MinusAssign: value.OpSub,
	token.StarAssign:  value.OpMul,
	token.SlashAssign: value.OpDiv,
}

func (c *Compiler) VisitIdent(id *ast.Ident) error {
	sym := c.info.Symbol(id)
	if sym == nil {
		return c.errorf(id.NamePos, "undefined symbol %s", id.Name)
	}
	switch sym.Kind {
	case scope.SymVar:
		c.result = varOperand(sym)
	case scope.SymFunc:
		c.result = c.funcConst(sym.Func)
	default:
		return c.errorf(id.NamePos, "type %s used as a value", id.Name)
	}
	return nil
}

func (c *Compiler) VisitIntLit(e *ast.IntLit) error {
	c.result = c.constant(c.reg.Int(e.Value))
	return nil
}

func (c *Compiler) VisitDoubleLit(e *ast.DoubleLit) error {
	c.result = c.constant(c.reg.Double(e.Value))
	return nil
}

func (c *Compiler) VisitStringLit(e *ast.StringLit) error {
	c.result = c.constant(c.reg.String(e.Value))
	return nil
}

func (c *Compiler) VisitBoolLit(e *ast.BoolLit) error {
	c.result = c.constant(c.reg.Bool(e.Value))
	return nil
}

func (c *Compiler) VisitNullLit(e *ast.NullLit) error {
	c.result = c.constant(value.Value{})
	return nil
}

// sendAll evaluates every argument, then emits one SEND per argument in
// source order so the callee sees them positionally.
func (c *Compiler) sendAll(args []ast.Expr) error {
	ops := make([]Operand, len(args))
	for i, a := range args {
		op, err := c.expr(a)
		if err != nil {
			return err
		}
		ops[i] = op
	}
	c.send(ops, args)
	return nil
}

func (c *Compiler) send(ops []Operand, args []ast.Expr) {
	for i, op := range ops {
		c.emit(OpSend, op, Operand{}, Operand{}, args[i].Pos())
	}
}

func (c *Compiler) VisitArrayLit(e *ast.ArrayLit) error {
	if err := c.sendAll(e.Elems); err != nil {
		return err
	}
	t := c.newTemp()
	c.emit(OpArray, Operand{}, Operand{}, t, e.LBrack)
	c.result = t
	return nil
}

// foldable reports whether both operands are constants the descriptor can
// combine at compile time.
func (c *Compiler) foldable(ops ...Operand) bool {
	if !c.opts.FoldConstants {
		return false
	}
	for _, op := range ops {
		if op.Kind != Const || c.prog.Consts[op.Slot].Kind() != value.KindPrimitive {
			return false
		}
	}
	return true
}

// fold evaluates op on two constants. Combinations the descriptor rejects are
// left to run-time dispatch with a warning.
func (c *Compiler) fold(op value.Operator, l, r Operand, pos token.Position) (Operand, bool) {
	var res value.Value
	err := c.reg.Binary(op, &res, &c.prog.Consts[l.Slot], &c.prog.Consts[r.Slot])
	if err != nil {
		var rt *diag.RuntimeError
		if errors.As(err, &rt) {
			c.warnf(pos, "%s: %s", rt.Kind, rt.Msg)
		}
		return Operand{}, false
	}
	return c.constant(res), true
}

func (c *Compiler) VisitBinary(e *ast.BinaryExpr) error {
	op, ok := binaryOps[e.Op]
	if !ok {
		return c.errorf(e.OpPos, "unknown binary operator %s", e.Op)
	}
	l, err := c.expr(e.Left)
	if err != nil {
		return err
	}
	r, err := c.expr(e.Right)
	if err != nil {
		return err
	}
	if c.foldable(l, r) {
		if folded, ok := c.fold(op, l, r, e.OpPos); ok {
			c.result = folded
			return nil
		}
	}
	t := c.newTemp()
	c.emit(BinaryOpCode(op), l, r, t, e.OpPos)
	c.result = t
	return nil
}

// VisitLogical short-circuits through one result temporary shared by both
// paths: JMPZ/JMPNZ store the truthiness of their condition before jumping.
func (c *Compiler) VisitLogical(e *ast.LogicalExpr) error {
	jump := OpJmpz
	if e.Op == token.OrOr {
		jump = OpJmpnz
	}
	res := c.newTemp()
	l, err := c.expr(e.Left)
	if err != nil {
		return err
	}
	first := c.emit(jump, l, JumpOp(0), res, e.OpPos)
	r, err := c.expr(e.Right)
	if err != nil {
		return err
	}
	second := c.emit(jump, r, JumpOp(0), res, e.OpPos)
	end := c.here()
	c.prog.Patch(first, 2, end)
	c.prog.Patch(second, 2, end)
	c.result = res
	return nil
}

func (c *Compiler) VisitUnary(e *ast.UnaryExpr) error {
	x, err := c.expr(e.X)
	if err != nil {
		return err
	}
	var op OpCode
	switch e.Op {
	case token.Bang:
		op = OpNot
	case token.Minus:
		op = OpNeg
		if c.foldable(x) {
			var res value.Value
			if err := c.reg.Unary(value.OpNeg, &res, &c.prog.Consts[x.Slot]); err == nil {
				c.result = c.constant(res)
				return nil
			}
		}
	case token.Tilde:
		op = OpBitNot
	default:
		return c.errorf(e.OpPos, "unknown unary operator %s", e.Op)
	}
	t := c.newTemp()
	c.emit(op, x, Operand{}, t, e.OpPos)
	c.result = t
	return nil
}

func (c *Compiler) VisitIncDec(e *ast.IncDecExpr) error {
	sym := c.info.Symbol(e.X)
	if sym == nil {
		return c.errorf(e.X.NamePos, "undefined symbol %s", e.X.Name)
	}
	var op OpCode
	switch {
	case e.Op == token.PlusPlus && e.Prefix:
		op = OpPreInc
	case e.Op == token.PlusPlus:
		op = OpPostInc
	case e.Prefix:
		op = OpPreDec
	default:
		op = OpPostDec
	}
	t := c.newTemp()
	c.emit(op, varOperand(sym), Operand{}, t, e.OpPos)
	c.result = t
	return nil
}

func (c *Compiler) VisitAssign(e *ast.AssignExpr) error {
	switch target := e.Target.(type) {
	case *ast.Ident:
		return c.assignVar(e, target)
	case *ast.IndexExpr:
		return c.assignIndex(e, target)
	}
	return c.errorf(e.OpPos, "invalid assignment target")
}

func (c *Compiler) assignVar(e *ast.AssignExpr, id *ast.Ident) error {
	sym := c.info.Symbol(id)
	if sym == nil {
		return c.errorf(id.NamePos, "undefined symbol %s", id.Name)
	}
	v, err := c.expr(e.Value)
	if err != nil {
		return err
	}
	dst := varOperand(sym)
	if op, ok := compoundOps[e.Op]; ok {
		c.emit(BinaryOpCode(op), dst, v, dst, e.OpPos)
	} else {
		c.emit(OpAssign, v, Operand{}, dst, e.OpPos)
	}
	c.result = dst
	return nil
}

// assignIndex lowers x[i] = v to SETINDEX x, i, v; the value travels in the
// result operand slot.
func (c *Compiler) assignIndex(e *ast.AssignExpr, ix *ast.IndexExpr) error {
	x, err := c.expr(ix.X)
	if err != nil {
		return err
	}
	i, err := c.expr(ix.Index)
	if err != nil {
		return err
	}
	v, err := c.expr(e.Value)
	if err != nil {
		return err
	}
	if op, ok := compoundOps[e.Op]; ok {
		cur := c.newTemp()
		c.emit(OpIndex, x, i, cur, ix.LBrack)
		sum := c.newTemp()
		c.emit(BinaryOpCode(op), cur, v, sum, e.OpPos)
		v = sum
	}
	c.emit(OpSetIndex, x, i, v, e.OpPos)
	c.result = v
	return nil
}

func (c *Compiler) VisitCall(e *ast.CallExpr) error {
	if id, ok := e.Callee.(*ast.Ident); ok {
		if sym := c.info.Symbol(id); sym != nil && sym.Kind == scope.SymFunc && !sym.Func.IsNative() {
			return c.callUser(e, sym)
		}
	}
	callee, err := c.expr(e.Callee)
	if err != nil {
		return err
	}
	if err := c.sendAll(e.Args); err != nil {
		return err
	}
	t := c.newTemp()
	c.emit(OpFCall, callee, Operand{}, t, e.LParen)
	c.result = t
	return nil
}

// callUser calls a declared function, substituting the literal defaults of
// trailing parameters the call omits.
func (c *Compiler) callUser(e *ast.CallExpr, sym *scope.Symbol) error {
	fi := c.info.FuncOf(sym.Func)
	if fi == nil {
		return c.errorf(e.LParen, "undefined symbol %s", sym.Name)
	}
	ops := make([]Operand, 0, len(fi.Decl.Params))
	args := make([]ast.Expr, 0, len(fi.Decl.Params))
	for _, a := range e.Args {
		op, err := c.expr(a)
		if err != nil {
			return err
		}
		ops = append(ops, op)
		args = append(args, a)
	}
	for _, p := range fi.Decl.Params[len(e.Args):] {
		if p.Default == nil {
			return c.errorf(e.LParen, "missing argument %s of %s", p.Name.Name, sym.Name)
		}
		op, err := c.expr(p.Default)
		if err != nil {
			return err
		}
		c.warnf(e.LParen, "argument %s of %s defaults to %s", p.Name.Name, sym.Name, c.prog.Consts[op.Slot].String())
		ops = append(ops, op)
		args = append(args, p.Default)
	}
	c.send(ops, args)
	t := c.newTemp()
	c.emit(OpFCall, c.funcConst(sym.Func), Operand{}, t, e.LParen)
	c.result = t
	return nil
}

func (c *Compiler) VisitMethodCall(e *ast.MethodCallExpr) error {
	name := c.constant(c.reg.String(e.Method.Name))
	if id, ok := e.Recv.(*ast.Ident); ok {
		if sym := c.info.Symbol(id); sym != nil && sym.Kind == scope.SymType {
			if err := c.sendAll(e.Args); err != nil {
				return err
			}
			t := c.newTemp()
			c.emit(OpSMCall, typeOperand(sym), name, t, e.Method.NamePos)
			c.result = t
			return nil
		}
	}
	recv, err := c.expr(e.Recv)
	if err != nil {
		return err
	}
	if err := c.sendAll(e.Args); err != nil {
		return err
	}
	t := c.newTemp()
	c.emit(OpMCall, recv, name, t, e.Method.NamePos)
	c.result = t
	return nil
}

func (c *Compiler) VisitNew(e *ast.NewExpr) error {
	sym := c.info.Symbol(e.Type)
	if sym == nil || sym.Kind != scope.SymType {
		return c.errorf(e.Type.NamePos, "undefined type %s", e.Type.Name)
	}
	if err := c.sendAll(e.Args); err != nil {
		return err
	}
	t := c.newTemp()
	c.emit(OpNew, typeOperand(sym), Operand{}, t, e.NewPos)
	c.result = t
	return nil
}

func (c *Compiler) VisitIndex(e *ast.IndexExpr) error {
	x, err := c.expr(e.X)
	if err != nil {
		return err
	}
	i, err := c.expr(e.Index)
	if err != nil {
		return err
	}
	t := c.newTemp()
	c.emit(OpIndex, x, i, t, e.LBrack)
	c.result = t
	return nil
}
