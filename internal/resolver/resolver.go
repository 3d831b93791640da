// Package resolver builds the scope tree of a compilation unit and binds every
// identifier to the symbol it denotes.
package resolver

import (
	"clever/internal/ast"
	"clever/internal/diag"
	"clever/internal/scope"
	"clever/internal/token"
	"clever/internal/value"
)

// FuncInfo describes a user function declaration.
type FuncInfo struct {
	Decl   *ast.FuncDecl
	Symbol *scope.Symbol
	Fn     *value.Function
	Scope  *scope.Scope // parameter scope
	Index  int
}

// Required counts the parameters without a default value.
func (fi *FuncInfo) Required() int {
	n := 0
	for _, p := range fi.Decl.Params {
		if p.Default == nil {
			n++
		}
	}
	return n
}

// ThreadInfo describes a spawn block.
type ThreadInfo struct {
	Stmt  *ast.SpawnStmt
	Name  string
	ID    int
	Scope *scope.Scope // scope of the body block
}

// Info is the result of resolving one compilation unit.
type Info struct {
	Root    *scope.Scope // predefined types, natives and constants
	Unit    *scope.Scope // top-level code
	Scopes  []*scope.Scope
	Symbols map[*ast.Ident]*scope.Symbol
	Blocks  map[ast.Node]*scope.Scope
	Funcs   []*FuncInfo
	Threads []*ThreadInfo

	funcByDecl   map[*ast.FuncDecl]*FuncInfo
	funcByFn     map[*value.Function]*FuncInfo
	threadByStmt map[*ast.SpawnStmt]*ThreadInfo
	threadByName map[string]*ThreadInfo
}

func (i *Info) Func(decl *ast.FuncDecl) *FuncInfo      { return i.funcByDecl[decl] }
func (i *Info) FuncOf(fn *value.Function) *FuncInfo     { return i.funcByFn[fn] }
func (i *Info) Thread(stmt *ast.SpawnStmt) *ThreadInfo  { return i.threadByStmt[stmt] }
func (i *Info) ThreadNamed(name string) *ThreadInfo     { return i.threadByName[name] }
func (i *Info) Symbol(id *ast.Ident) *scope.Symbol      { return i.Symbols[id] }
func (i *Info) ScopeOf(n ast.Node) *scope.Scope         { return i.Blocks[n] }

// Resolver is an ast.Visitor. Errors are collected rather than returned so a
// single pass reports every problem in the unit.
type Resolver struct {
	file string
	reg  *value.Registry
	info *Info
	cur  *scope.Scope

	loops    int
	inFunc   bool
	inThread bool
	waits    []*ast.WaitStmt

	errs []error
}

// Resolve walks prog and returns the resolved unit. The returned list holds
// compile errors only; a non-empty list means info must not be compiled.
func Resolve(file string, prog *ast.Program, reg *value.Registry) (*Info, []error) {
	r := &Resolver{file: file, reg: reg}
	r.info = &Info{
		Symbols:      make(map[*ast.Ident]*scope.Symbol),
		Blocks:       make(map[ast.Node]*scope.Scope),
		funcByDecl:   make(map[*ast.FuncDecl]*FuncInfo),
		funcByFn:     make(map[*value.Function]*FuncInfo),
		threadByStmt: make(map[*ast.SpawnStmt]*ThreadInfo),
		threadByName: make(map[string]*ThreadInfo),
	}
	r.info.Root = r.predeclare()
	r.cur = r.info.Root

	_ = prog.Accept(r)

	for _, w := range r.waits {
		if r.info.threadByName[w.Name.Name] == nil {
			r.errorf(w.Name.NamePos, "wait on unknown thread block %s", w.Name.Name)
		}
	}

	r.info.Scopes = r.info.Root.Flatten()
	for id, s := range r.info.Scopes {
		s.SetID(id)
	}
	for _, fi := range r.info.Funcs {
		fi.Fn.ParamScope = fi.Scope.ID()
		for _, s := range r.info.Scopes {
			if s.Owner == fi.Index {
				fi.Fn.Scopes = append(fi.Fn.Scopes, s.ID())
			}
		}
	}
	return r.info, r.errs
}

// predeclare builds the root scope from the registry.
func (r *Resolver) predeclare() *scope.Scope {
	root := scope.New()
	for _, t := range r.reg.Types() {
		root.PushType(t.Name, t)
	}
	for _, fn := range r.reg.Natives() {
		root.PushFunc(fn.Name, fn)
	}
	for _, c := range r.reg.Consts() {
		v := c.Value.Clone()
		v.Const = true
		root.PushValue(c.Name, v)
	}
	return root
}

func (r *Resolver) errorf(pos token.Position, format string, args ...interface{}) {
	r.errs = append(r.errs, diag.Errorf(r.file, pos, format, args...))
}

func (r *Resolver) enter(n ast.Node) *scope.Scope {
	r.cur = r.cur.Enter()
	if n != nil {
		r.info.Blocks[n] = r.cur
	}
	return r.cur
}

func (r *Resolver) leave() {
	r.cur = r.cur.Leave()
}

func (r *Resolver) walk(n ast.Node) {
	if n != nil {
		_ = n.Accept(r)
	}
}

// hoist declares every function of a statement list before any statement is
// resolved, so calls may precede declarations.
func (r *Resolver) hoist(stmts []ast.Stmt) {
	for _, st := range stmts {
		decl, ok := st.(*ast.FuncDecl)
		if !ok {
			continue
		}
		name := decl.Name.Name
		if prev := r.cur.LookupLocal(name); prev != nil {
			r.errorf(decl.Name.NamePos, "redefinition of %s", name)
			continue
		}
		fi := &FuncInfo{Decl: decl, Index: len(r.info.Funcs)}
		fi.Fn = &value.Function{Name: name, NumParams: len(decl.Params)}
		fi.Symbol = r.cur.PushFunc(name, fi.Fn)
		r.info.Funcs = append(r.info.Funcs, fi)
		r.info.funcByDecl[decl] = fi
		r.info.funcByFn[fi.Fn] = fi
		r.info.Symbols[decl.Name] = fi.Symbol
	}
}

func (r *Resolver) stmts(list []ast.Stmt) {
	r.hoist(list)
	for _, st := range list {
		r.walk(st)
	}
}

// ---------- statements ----------

func (r *Resolver) VisitProgram(p *ast.Program) error {
	r.info.Unit = r.enter(p)
	r.stmts(p.Stmts)
	r.leave()
	return nil
}

func (r *Resolver) VisitBlock(b *ast.BlockStmt) error {
	r.enter(b)
	r.stmts(b.Stmts)
	r.leave()
	return nil
}

func (r *Resolver) VisitVarDecl(d *ast.VarDecl) error {
	r.walk(d.Value)
	r.declare(d.Name)
	return nil
}

func (r *Resolver) declare(id *ast.Ident) *scope.Symbol {
	if r.cur.LookupLocal(id.Name) != nil {
		r.errorf(id.NamePos, "redefinition of %s", id.Name)
		return nil
	}
	sym := r.cur.PushValue(id.Name, value.Value{})
	r.info.Symbols[id] = sym
	return sym
}

func (r *Resolver) VisitExprStmt(s *ast.ExprStmt) error {
	r.walk(s.X)
	return nil
}

func (r *Resolver) VisitIf(s *ast.IfStmt) error {
	for _, br := range s.Branches {
		r.walk(br.Cond)
		r.walk(br.Body)
	}
	if s.Else != nil {
		r.walk(s.Else)
	}
	return nil
}

func (r *Resolver) loop(body ast.Node) {
	r.loops++
	r.walk(body)
	r.loops--
}

func (r *Resolver) VisitWhile(s *ast.WhileStmt) error {
	r.walk(s.Cond)
	r.loop(s.Body)
	return nil
}

func (r *Resolver) VisitFor(s *ast.ForStmt) error {
	r.enter(s)
	if s.Init != nil {
		r.walk(s.Init)
	}
	if s.Cond != nil {
		r.walk(s.Cond)
	}
	if s.Post != nil {
		r.walk(s.Post)
	}
	r.loop(s.Body)
	r.leave()
	return nil
}

func (r *Resolver) VisitForIn(s *ast.ForInStmt) error {
	r.walk(s.Iter)
	r.enter(s)
	r.declare(s.Var)
	r.loop(s.Body)
	r.leave()
	return nil
}

func (r *Resolver) VisitBreak(s *ast.BreakStmt) error {
	if r.loops == 0 {
		r.errorf(s.BreakPos, "break outside loop")
	}
	return nil
}

func (r *Resolver) VisitContinue(s *ast.ContinueStmt) error {
	if r.loops == 0 {
		r.errorf(s.ContinuePos, "continue outside loop")
	}
	return nil
}

func (r *Resolver) VisitReturn(s *ast.ReturnStmt) error {
	switch {
	case r.inThread:
		r.errorf(s.ReturnPos, "return inside thread block")
	case !r.inFunc:
		r.errorf(s.ReturnPos, "return outside function")
	}
	r.walk(s.Value)
	return nil
}

func (r *Resolver) VisitFuncDecl(d *ast.FuncDecl) error {
	fi := r.info.funcByDecl[d]
	if fi == nil {
		// redefinition, already reported
		return nil
	}

	fi.Scope = r.enter(d)
	fi.Scope.Owner = fi.Index

	seenDefault := false
	for _, p := range d.Params {
		if p.Default != nil {
			seenDefault = true
			if _, ok := p.Default.(ast.Literal); !ok {
				r.errorf(p.Default.Pos(), "default value of parameter %s must be a literal", p.Name.Name)
			}
		} else if seenDefault {
			r.errorf(p.Name.NamePos, "parameter %s without default follows a defaulted parameter", p.Name.Name)
		}
		r.declare(p.Name)
	}

	loops, inFunc, inThread := r.loops, r.inFunc, r.inThread
	r.loops, r.inFunc, r.inThread = 0, true, false
	r.walk(d.Body)
	r.loops, r.inFunc, r.inThread = loops, inFunc, inThread

	r.leave()
	return nil
}

func (r *Resolver) VisitTry(s *ast.TryStmt) error {
	r.walk(s.Body)
	for _, c := range s.Catches {
		if c.Type != nil {
			sym := r.cur.Lookup(c.Type.Name)
			switch {
			case sym == nil:
				r.errorf(c.Type.NamePos, "undefined type %s", c.Type.Name)
			case sym.Kind != scope.SymType:
				r.errorf(c.Type.NamePos, "%s is not a type", c.Type.Name)
			default:
				r.info.Symbols[c.Type] = sym
			}
		}
		r.enter(nil)
		r.declare(c.Var)
		r.walk(c.Body)
		r.leave()
	}
	if s.Finally != nil {
		r.walk(s.Finally)
	}
	return nil
}

func (r *Resolver) VisitThrow(s *ast.ThrowStmt) error {
	r.walk(s.Value)
	return nil
}

func (r *Resolver) VisitCritical(s *ast.CriticalStmt) error {
	r.walk(s.Body)
	return nil
}

func (r *Resolver) VisitSpawn(s *ast.SpawnStmt) error {
	if s.Size != nil {
		r.walk(s.Size)
	}
	ti := &ThreadInfo{Stmt: s, ID: len(r.info.Threads)}
	if s.Name != nil {
		ti.Name = s.Name.Name
		if r.info.threadByName[ti.Name] != nil {
			r.errorf(s.Name.NamePos, "redefinition of thread block %s", ti.Name)
		} else {
			r.info.threadByName[ti.Name] = ti
		}
	}
	r.info.Threads = append(r.info.Threads, ti)
	r.info.threadByStmt[s] = ti

	loops, inThread := r.loops, r.inThread
	r.loops, r.inThread = 0, true
	r.walk(s.Body)
	r.loops, r.inThread = loops, inThread

	ti.Scope = r.info.Blocks[s.Body]
	return nil
}

func (r *Resolver) VisitWait(s *ast.WaitStmt) error {
	r.waits = append(r.waits, s)
	return nil
}

// ---------- expressions ----------

func (r *Resolver) VisitIdent(id *ast.Ident) error {
	sym := r.cur.Lookup(id.Name)
	if sym == nil {
		r.errorf(id.NamePos, "undefined symbol %s", id.Name)
		return nil
	}
	if sym.Kind == scope.SymType {
		r.errorf(id.NamePos, "type %s used as a value", id.Name)
		return nil
	}
	r.info.Symbols[id] = sym
	return nil
}

func (r *Resolver) VisitIntLit(*ast.IntLit) error       { return nil }
func (r *Resolver) VisitDoubleLit(*ast.DoubleLit) error { return nil }
func (r *Resolver) VisitStringLit(*ast.StringLit) error { return nil }
func (r *Resolver) VisitBoolLit(*ast.BoolLit) error     { return nil }
func (r *Resolver) VisitNullLit(*ast.NullLit) error     { return nil }

func (r *Resolver) VisitArrayLit(e *ast.ArrayLit) error {
	for _, el := range e.Elems {
		r.walk(el)
	}
	return nil
}

func (r *Resolver) VisitBinary(e *ast.BinaryExpr) error {
	r.walk(e.Left)
	r.walk(e.Right)
	return nil
}

func (r *Resolver) VisitLogical(e *ast.LogicalExpr) error {
	r.walk(e.Left)
	r.walk(e.Right)
	return nil
}

func (r *Resolver) VisitUnary(e *ast.UnaryExpr) error {
	r.walk(e.X)
	return nil
}

func (r *Resolver) VisitIncDec(e *ast.IncDecExpr) error {
	r.assignable(e.X)
	return nil
}

// assignable resolves an identifier used as an existing assignment target.
func (r *Resolver) assignable(id *ast.Ident) *scope.Symbol {
	sym := r.cur.Lookup(id.Name)
	if sym == nil {
		r.errorf(id.NamePos, "undefined symbol %s", id.Name)
		return nil
	}
	if sym.Kind != scope.SymVar {
		r.errorf(id.NamePos, "cannot assign to %s %s", sym.Kind, id.Name)
		return nil
	}
	if sym.Scope == r.info.Root {
		r.errorf(id.NamePos, "cannot assign to constant %s", id.Name)
		return nil
	}
	r.info.Symbols[id] = sym
	return sym
}

func (r *Resolver) VisitAssign(e *ast.AssignExpr) error {
	r.walk(e.Value)
	switch t := e.Target.(type) {
	case *ast.Ident:
		if e.Op == token.Assign && r.cur.Lookup(t.Name) == nil {
			// first assignment declares the name in the current scope
			r.declare(t)
			return nil
		}
		r.assignable(t)
	case *ast.IndexExpr:
		r.walk(t.X)
		r.walk(t.Index)
	default:
		r.errorf(e.OpPos, "invalid assignment target")
	}
	return nil
}

func (r *Resolver) VisitCall(e *ast.CallExpr) error {
	r.walk(e.Callee)
	for _, a := range e.Args {
		r.walk(a)
	}
	id, ok := e.Callee.(*ast.Ident)
	if !ok {
		return nil
	}
	sym := r.info.Symbols[id]
	if sym == nil || sym.Kind != scope.SymFunc {
		return nil
	}
	fn := sym.Func
	n := len(e.Args)
	if fn.IsNative() {
		if err := fn.Arity(n); err != nil {
			r.errorf(e.LParen, "%s", diag.AsRuntime(err).Msg)
		}
		return nil
	}
	fi := r.info.funcByFn[fn]
	if fi == nil {
		return nil
	}
	required := fi.Required()
	if n < required || n > len(fi.Decl.Params) {
		if required == len(fi.Decl.Params) {
			r.errorf(e.LParen, "%s expects %d argument(s), got %d", fn.Name, required, n)
		} else {
			r.errorf(e.LParen, "%s expects %d to %d argument(s), got %d", fn.Name, required, len(fi.Decl.Params), n)
		}
	}
	return nil
}

func (r *Resolver) VisitMethodCall(e *ast.MethodCallExpr) error {
	if id, ok := e.Recv.(*ast.Ident); ok {
		if sym := r.cur.Lookup(id.Name); sym != nil && sym.Kind == scope.SymType {
			r.info.Symbols[id] = sym
			r.staticCall(sym.Type, e)
			for _, a := range e.Args {
				r.walk(a)
			}
			return nil
		}
	}
	r.walk(e.Recv)
	for _, a := range e.Args {
		r.walk(a)
	}
	return nil
}

func (r *Resolver) staticCall(t *value.Type, e *ast.MethodCallExpr) {
	m := t.Method(e.Method.Name)
	switch {
	case m == nil:
		r.errorf(e.Method.NamePos, "type %s has no method %s", t.Name, e.Method.Name)
	case !m.Static:
		r.errorf(e.Method.NamePos, "%s.%s is not a static method", t.Name, e.Method.Name)
	default:
		if err := m.CheckArity(t.Name, len(e.Args)); err != nil {
			r.errorf(e.Method.NamePos, "%s", diag.AsRuntime(err).Msg)
		}
	}
}

func (r *Resolver) VisitNew(e *ast.NewExpr) error {
	sym := r.cur.Lookup(e.Type.Name)
	switch {
	case sym == nil:
		r.errorf(e.Type.NamePos, "undefined type %s", e.Type.Name)
	case sym.Kind != scope.SymType:
		r.errorf(e.Type.NamePos, "%s is not a type", e.Type.Name)
	default:
		r.info.Symbols[e.Type] = sym
	}
	for _, a := range e.Args {
		r.walk(a)
	}
	return nil
}

func (r *Resolver) VisitIndex(e *ast.IndexExpr) error {
	r.walk(e.X)
	r.walk(e.Index)
	return nil
}
