package ir

import (
	"clever/internal/ast"
	"clever/internal/token"
)

func (c *Compiler) VisitProgram(p *ast.Program) error {
	return c.stmts(p.Stmts)
}

func (c *Compiler) VisitBlock(b *ast.BlockStmt) error {
	return c.stmts(b.Stmts)
}

func (c *Compiler) VisitVarDecl(d *ast.VarDecl) error {
	sym := c.info.Symbol(d.Name)
	if sym == nil {
		return c.errorf(d.Name.NamePos, "undefined symbol %s", d.Name.Name)
	}
	var src Operand
	if d.Value != nil {
		v, err := c.expr(d.Value)
		if err != nil {
			return err
		}
		src = v
	}
	// a bare declaration still resets the slot on every execution
	c.emit(OpAssign, src, Operand{}, varOperand(sym), d.VarPos)
	return nil
}

func (c *Compiler) VisitExprStmt(s *ast.ExprStmt) error {
	_, err := c.expr(s.X)
	return err
}

func (c *Compiler) VisitIf(s *ast.IfStmt) error {
	var exits []int
	for i, br := range s.Branches {
		cond, err := c.expr(br.Cond)
		if err != nil {
			return err
		}
		jz := c.emit(OpJmpz, cond, JumpOp(0), Operand{}, br.Cond.Pos())
		if err := br.Body.Accept(c); err != nil {
			return err
		}
		if i < len(s.Branches)-1 || s.Else != nil {
			exits = append(exits, c.emit(OpJmp, JumpOp(0), Operand{}, Operand{}, s.IfPos))
		}
		c.prog.Patch(jz, 2, c.here())
	}
	if s.Else != nil {
		if err := s.Else.Accept(c); err != nil {
			return err
		}
	}
	c.patchAll(exits, 1, c.here())
	return nil
}

func (c *Compiler) pushLoop() *loopContext {
	l := &loopContext{regions: len(c.regions)}
	c.loops = append(c.loops, l)
	return l
}

func (c *Compiler) popLoop(continueAt, breakAt int) {
	l := c.loops[len(c.loops)-1]
	c.loops = c.loops[:len(c.loops)-1]
	c.patchAll(l.continues, 1, continueAt)
	c.patchAll(l.breaks, 1, breakAt)
}

func (c *Compiler) VisitWhile(s *ast.WhileStmt) error {
	head := c.here()
	cond, err := c.expr(s.Cond)
	if err != nil {
		return err
	}
	jz := c.emit(OpJmpz, cond, JumpOp(0), Operand{}, s.WhilePos)

	c.pushLoop()
	if err := s.Body.Accept(c); err != nil {
		return err
	}
	c.emit(OpJmp, JumpOp(head), Operand{}, Operand{}, s.WhilePos)
	end := c.here()
	c.prog.Patch(jz, 2, end)
	c.popLoop(head, end)
	return nil
}

func (c *Compiler) VisitFor(s *ast.ForStmt) error {
	if s.Init != nil {
		if err := s.Init.Accept(c); err != nil {
			return err
		}
	}
	head := c.here()
	jz := -1
	if s.Cond != nil {
		cond, err := c.expr(s.Cond)
		if err != nil {
			return err
		}
		jz = c.emit(OpJmpz, cond, JumpOp(0), Operand{}, s.ForPos)
	}

	c.pushLoop()
	if err := s.Body.Accept(c); err != nil {
		return err
	}
	post := c.here()
	if s.Post != nil {
		if _, err := c.expr(s.Post); err != nil {
			return err
		}
	}
	c.emit(OpJmp, JumpOp(head), Operand{}, Operand{}, s.ForPos)
	end := c.here()
	if jz >= 0 {
		c.prog.Patch(jz, 2, end)
	}
	c.popLoop(post, end)
	return nil
}

// VisitForIn binds the loop variable to each element in turn. For arrays the
// binding is a reference, so assignments through it update the array.
func (c *Compiler) VisitForIn(s *ast.ForInStmt) error {
	sym := c.info.Symbol(s.Var)
	if sym == nil {
		return c.errorf(s.Var.NamePos, "undefined symbol %s", s.Var.Name)
	}
	iter, err := c.expr(s.Iter)
	if err != nil {
		return err
	}
	pos := s.ForPos
	n := c.newTemp()
	c.emit(OpSize, iter, Operand{}, n, pos)
	i := c.newTemp()
	c.emit(OpAssign, c.constant(c.reg.Int(0)), Operand{}, i, pos)

	head := c.here()
	cond := c.newTemp()
	c.emit(OpLess, i, n, cond, pos)
	jz := c.emit(OpJmpz, cond, JumpOp(0), Operand{}, pos)
	loopVar := varOperand(sym)
	c.emit(OpBindRef, iter, i, loopVar, pos)

	c.pushLoop()
	if err := s.Body.Accept(c); err != nil {
		return err
	}
	next := c.here()
	c.emit(OpPreInc, i, Operand{}, Operand{}, pos)
	c.emit(OpJmp, JumpOp(head), Operand{}, Operand{}, pos)
	end := c.here()
	c.emit(OpUnbind, Operand{}, Operand{}, loopVar, pos)
	c.prog.Patch(jz, 2, end)
	c.popLoop(next, end)
	return nil
}

// leaveRegions emits the ETRY and UNLOCK instructions for every region a
// jump out of the innermost loop crosses.
func (c *Compiler) leaveRegions(pos token.Position) {
	l := c.loops[len(c.loops)-1]
	for i := len(c.regions) - 1; i >= l.regions; i-- {
		switch c.regions[i] {
		case regionTry:
			c.emit(OpEtry, Operand{}, Operand{}, Operand{}, pos)
		case regionCritical:
			c.emit(OpUnlock, Operand{}, Operand{}, Operand{}, pos)
		}
	}
}

func (c *Compiler) VisitBreak(s *ast.BreakStmt) error {
	if len(c.loops) == 0 {
		return c.errorf(s.BreakPos, "break outside loop")
	}
	c.leaveRegions(s.BreakPos)
	l := c.loops[len(c.loops)-1]
	l.breaks = append(l.breaks, c.emit(OpJmp, JumpOp(0), Operand{}, Operand{}, s.BreakPos))
	return nil
}

func (c *Compiler) VisitContinue(s *ast.ContinueStmt) error {
	if len(c.loops) == 0 {
		return c.errorf(s.ContinuePos, "continue outside loop")
	}
	c.leaveRegions(s.ContinuePos)
	l := c.loops[len(c.loops)-1]
	l.continues = append(l.continues, c.emit(OpJmp, JumpOp(0), Operand{}, Operand{}, s.ContinuePos))
	return nil
}

func (c *Compiler) VisitReturn(s *ast.ReturnStmt) error {
	var v Operand
	if s.Value != nil {
		op, err := c.expr(s.Value)
		if err != nil {
			return err
		}
		v = op
	}
	c.emit(OpRet, v, Operand{}, Operand{}, s.ReturnPos)
	return nil
}

// VisitFuncDecl emits the body in place, behind a jump that skips it.
func (c *Compiler) VisitFuncDecl(d *ast.FuncDecl) error {
	fi := c.info.Func(d)
	if fi == nil {
		return c.errorf(d.Name.NamePos, "undefined symbol %s", d.Name.Name)
	}
	skip := c.emit(OpJmp, JumpOp(0), Operand{}, Operand{}, d.FuncPos)
	fi.Fn.Addr = c.here()

	temps, maxTemps, loops, regions := c.temps, c.maxTemps, c.loops, c.regions
	c.temps, c.maxTemps, c.loops, c.regions = 0, 0, nil, nil

	if err := d.Body.Accept(c); err != nil {
		return err
	}
	c.emit(OpLeave, Operand{}, Operand{}, Operand{}, d.Body.LBrace)
	fi.Fn.NumTemps = c.maxTemps

	c.temps, c.maxTemps, c.loops, c.regions = temps, maxTemps, loops, regions
	c.prog.Patch(skip, 1, c.here())
	return nil
}

// VisitTry lowers
//
//	TRY catch; body; ETRY; JMP finally
//	catch: CATCH var, type, next; handler; JMP finally
//	next:  ...
//	rethrow: <finally>; RETHROW
//	finally: <finally>
func (c *Compiler) VisitTry(s *ast.TryStmt) error {
	try := c.emit(OpTry, JumpOp(0), Operand{}, Operand{}, s.TryPos)
	c.regions = append(c.regions, regionTry)
	if err := s.Body.Accept(c); err != nil {
		return err
	}
	c.regions = c.regions[:len(c.regions)-1]
	c.emit(OpEtry, Operand{}, Operand{}, Operand{}, s.TryPos)
	toFinally := []int{c.emit(OpJmp, JumpOp(0), Operand{}, Operand{}, s.TryPos)}
	c.prog.Patch(try, 1, c.here())

	for _, clause := range s.Catches {
		sym := c.info.Symbol(clause.Var)
		if sym == nil {
			return c.errorf(clause.Var.NamePos, "undefined symbol %s", clause.Var.Name)
		}
		var typ Operand
		if clause.Type != nil {
			tsym := c.info.Symbol(clause.Type)
			if tsym == nil {
				return c.errorf(clause.Type.NamePos, "undefined type %s", clause.Type.Name)
			}
			typ = typeOperand(tsym)
		}
		at := c.emit(OpCatch, typ, JumpOp(0), varOperand(sym), clause.CatchPos)
		if err := clause.Body.Accept(c); err != nil {
			return err
		}
		toFinally = append(toFinally, c.emit(OpJmp, JumpOp(0), Operand{}, Operand{}, clause.CatchPos))
		c.prog.Patch(at, 2, c.here())
	}

	// no clause matched: run the finally code, then propagate
	if s.Finally != nil {
		if err := s.Finally.Accept(c); err != nil {
			return err
		}
	}
	c.emit(OpRethrow, Operand{}, Operand{}, Operand{}, s.TryPos)

	c.patchAll(toFinally, 1, c.here())
	if s.Finally != nil {
		return s.Finally.Accept(c)
	}
	return nil
}

func (c *Compiler) VisitThrow(s *ast.ThrowStmt) error {
	v, err := c.expr(s.Value)
	if err != nil {
		return err
	}
	c.emit(OpThrow, v, Operand{}, Operand{}, s.ThrowPos)
	return nil
}

func (c *Compiler) VisitCritical(s *ast.CriticalStmt) error {
	c.emit(OpLock, Operand{}, Operand{}, Operand{}, s.CriticalPos)
	c.regions = append(c.regions, regionCritical)
	if err := s.Body.Accept(c); err != nil {
		return err
	}
	c.regions = c.regions[:len(c.regions)-1]
	c.emit(OpUnlock, Operand{}, Operand{}, Operand{}, s.CriticalPos)
	return nil
}

// VisitSpawn emits the thread body in place. The spawning thread jumps past
// it; each spawned thread runs it up to ETHREAD.
func (c *Compiler) VisitSpawn(s *ast.SpawnStmt) error {
	ti := c.info.Thread(s)
	if ti == nil {
		return c.errorf(s.SpawnPos, "unresolved thread block")
	}
	var size Operand
	if s.Size != nil {
		op, err := c.expr(s.Size)
		if err != nil {
			return err
		}
		size = op
	}
	block := c.constant(c.reg.Int(int64(ti.ID)))
	bt := c.emit(OpBThread, JumpOp(0), size, block, s.SpawnPos)

	loops, regions := c.loops, c.regions
	c.loops, c.regions = nil, nil
	if err := s.Body.Accept(c); err != nil {
		return err
	}
	c.loops, c.regions = loops, regions

	c.emit(OpEThread, Operand{}, Operand{}, Operand{}, s.SpawnPos)
	c.prog.Patch(bt, 1, c.here())
	return nil
}

func (c *Compiler) VisitWait(s *ast.WaitStmt) error {
	ti := c.info.ThreadNamed(s.Name.Name)
	if ti == nil {
		return c.errorf(s.Name.NamePos, "wait on unknown thread block %s", s.Name.Name)
	}
	c.emit(OpWait, c.constant(c.reg.Int(int64(ti.ID))), Operand{}, Operand{}, s.WaitPos)
	return nil
}
