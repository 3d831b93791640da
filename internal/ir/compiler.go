package ir

import (
	"clever/internal/ast"
	"clever/internal/diag"
	"clever/internal/resolver"
	"clever/internal/scope"
	"clever/internal/token"
	"clever/internal/value"
)

// Options tune code generation.
type Options struct {
	FoldConstants bool
	Warnings      bool
}

func DefaultOptions() Options {
	return Options{FoldConstants: true, Warnings: true}
}

// Compile resolves prog and lowers it into a Program. The returned list holds
// warnings and errors; the program is nil whenever it holds an error.
func Compile(file string, prog *ast.Program, reg *value.Registry, opts Options) (*Program, diag.List) {
	info, errs := resolver.Resolve(file, prog, reg)
	if len(errs) > 0 {
		info.Root.Release()
		return nil, diag.List(errs)
	}
	defer info.Root.Release()

	c := &Compiler{
		file:    file,
		reg:     reg,
		opts:    opts,
		info:    info,
		prog:    &Program{File: file},
		fnConst: make(map[*value.Function]int),
	}
	if err := prog.Accept(c); err != nil {
		c.prog.Release()
		return nil, append(c.warnings, err)
	}
	c.emit(OpHalt, Operand{}, Operand{}, Operand{}, token.Position{})
	c.prog.NumTemps = c.maxTemps
	c.layout()

	if err := c.prog.Validate(); err != nil {
		c.prog.Release()
		return nil, append(c.warnings, diag.Errorf(file, token.Position{}, "%v", err))
	}
	return c.prog, c.warnings
}

type loopContext struct {
	breaks    []int
	continues []int
	regions   int // len(regions) when the loop was entered
}

type regionKind int

const (
	regionTry regionKind = iota
	regionCritical
)

// Compiler lowers a resolved tree into instructions. It implements
// ast.Visitor; each expression visit leaves its value's operand in result.
type Compiler struct {
	file string
	reg  *value.Registry
	opts Options
	info *resolver.Info
	prog *Program

	result   Operand
	temps    int
	maxTemps int

	fnConst map[*value.Function]int
	loops   []*loopContext
	regions []regionKind

	warnings diag.List
}

func (c *Compiler) errorf(pos token.Position, format string, args ...interface{}) error {
	return diag.Errorf(c.file, pos, format, args...)
}

func (c *Compiler) warnf(pos token.Position, format string, args ...interface{}) {
	if c.opts.Warnings {
		c.warnings = append(c.warnings, diag.Warningf(c.file, pos, format, args...))
	}
}

func (c *Compiler) emit(op OpCode, op1, op2, res Operand, pos token.Position) int {
	return c.prog.Emit(Instruction{Op: op, Op1: op1, Op2: op2, Result: res, Pos: pos})
}

func (c *Compiler) here() int { return len(c.prog.Code) }

func (c *Compiler) patchAll(addrs []int, which, target int) {
	for _, at := range addrs {
		c.prog.Patch(at, which, target)
	}
}

func (c *Compiler) newTemp() Operand {
	t := TempOp(c.temps)
	c.temps++
	if c.temps > c.maxTemps {
		c.maxTemps = c.temps
	}
	return t
}

func (c *Compiler) constant(v value.Value) Operand {
	return ConstOp(c.prog.AddConst(v))
}

// funcConst interns the Function value of fn once per program.
func (c *Compiler) funcConst(fn *value.Function) Operand {
	if i, ok := c.fnConst[fn]; ok {
		return ConstOp(i)
	}
	i := c.prog.AddConst(c.reg.FunctionValue(fn))
	c.fnConst[fn] = i
	return ConstOp(i)
}

func (c *Compiler) expr(e ast.Expr) (Operand, error) {
	c.result = Operand{}
	if err := e.Accept(c); err != nil {
		return Operand{}, err
	}
	return c.result, nil
}

func (c *Compiler) stmts(list []ast.Stmt) error {
	for _, st := range list {
		if err := st.Accept(c); err != nil {
			return err
		}
	}
	return nil
}

func varOperand(sym *scope.Symbol) Operand {
	return VarOp(sym.Slot, sym.Scope.ID())
}

func typeOperand(sym *scope.Symbol) Operand {
	return TypeOp(sym.Slot, sym.Scope.ID())
}

// layout records the storage of every scope, function and thread block.
func (c *Compiler) layout() {
	for _, s := range c.info.Scopes {
		c.prog.Scopes = append(c.prog.Scopes, ScopeInfo{
			Size:  s.Size(),
			Owner: s.Owner,
			Init:  s.Values(),
			Types: s.Types(),
		})
	}
	for _, fi := range c.info.Funcs {
		c.prog.Funcs = append(c.prog.Funcs, fi.Fn)
	}
	for _, ti := range c.info.Threads {
		info := ThreadInfo{Name: ti.Name}
		if ti.Scope != nil {
			for _, s := range ti.Scope.Flatten() {
				if s.Owner == ti.Scope.Owner {
					info.Scopes = append(info.Scopes, s.ID())
				}
			}
		}
		c.prog.Threads = append(c.prog.Threads, info)
	}
}
