// Package vm executes compiled Clever programs. Each thread of control owns
// a program counter, a call stack of frames and its own temporaries; scope
// storage of enclosing blocks is shared between threads.
package vm

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"clever/internal/diag"
	"clever/internal/ir"
	"clever/internal/scope"
	"clever/internal/value"
)

// Config bounds the resources a program may use.
type Config struct {
	MaxCallDepth int
	MaxTemps     int
	Trace        bool
	Logger       zerolog.Logger
}

func DefaultConfig() Config {
	return Config{
		MaxCallDepth: 10000,
		MaxTemps:     65536,
		Logger:       zerolog.Nop(),
	}
}

// checkEvery is the number of instructions the main thread runs between
// context checks.
const checkEvery = 1024

// VM runs one Program. It is not reusable: Run may be called once.
type VM struct {
	prog *ir.Program
	reg  *value.Registry
	host value.Host
	cfg  Config
	log  zerolog.Logger

	// critical guards LOCK/UNLOCK regions of every thread
	critical sync.Mutex

	groupsMu sync.Mutex
	groups   map[int]*errgroup.Group

	main *thread
}

// NewVM prepares prog for execution. The registry must be the one prog was
// compiled against.
func NewVM(prog *ir.Program, reg *value.Registry, host value.Host, cfg Config) *VM {
	if cfg.MaxCallDepth <= 0 {
		cfg.MaxCallDepth = DefaultConfig().MaxCallDepth
	}
	if cfg.MaxTemps <= 0 {
		cfg.MaxTemps = DefaultConfig().MaxTemps
	}
	return &VM{
		prog:   prog,
		reg:    reg,
		host:   host,
		cfg:    cfg,
		log:    cfg.Logger,
		groups: make(map[int]*errgroup.Group),
	}
}

// CallDepth is the number of user function activations on the main thread.
func (vm *VM) CallDepth() int {
	if vm.main == nil {
		return 0
	}
	return vm.main.depth()
}

// Run executes the program from its first instruction until HALT. Top-level
// storage is released before Run returns.
func (vm *VM) Run(ctx context.Context) error {
	if vm.main != nil {
		return fmt.Errorf("vm: program already run")
	}
	if !vm.reg.Frozen() {
		return fmt.Errorf("vm: registry must be frozen before running")
	}
	if vm.prog.NumTemps > vm.cfg.MaxTemps {
		return diag.Fatalf("program needs %d temporaries, limit is %d", vm.prog.NumTemps, vm.cfg.MaxTemps)
	}

	envs := make([]*scope.Env, len(vm.prog.Scopes))
	var owned []int
	for id, s := range vm.prog.Scopes {
		if s.Owner < 0 {
			envs[id] = scope.NewEnv(s.Size, s.Init)
			owned = append(owned, id)
		}
	}
	top := &frame{
		ret:   -1,
		envs:  envs,
		owned: owned,
		temps: make([]value.Value, vm.prog.NumTemps),
	}
	vm.main = vm.newThread("main", top, 0)
	vm.log.Debug().Str("file", vm.prog.File).Int("instructions", len(vm.prog.Code)).Msg("run")

	err := vm.main.run(ctx)
	if jerr := vm.joinAll(); err == nil {
		err = jerr
	}
	vm.main.unwindAll()
	return err
}

// run is the fetch-decode-execute loop of one thread. It returns when the
// thread reaches HALT or ETHREAD, or fails.
func (t *thread) run(ctx context.Context) error {
	vm := t.vm
	code := vm.prog.Code
	steps := 0
	for {
		if t.isMain {
			steps++
			if steps%checkEvery == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
		}
		if t.pc < 0 || t.pc >= len(code) {
			return diag.Fatalf("instruction pointer out of range: %d", t.pc)
		}
		inst := &code[t.pc]
		if vm.cfg.Trace {
			vm.log.Trace().Str("thread", t.id).Int("pc", t.pc).Stringer("op", inst.Op).
				Int("depth", t.depth()).Msg("exec")
		}

		next, done, err := t.exec(inst)
		if err != nil {
			// errors out of THROW and RETHROW already found no handler
			if diag.IsFatal(err) || inst.Op == ir.OpThrow || inst.Op == ir.OpRethrow {
				return t.locate(err, inst)
			}
			if rerr := t.raiseError(err, inst); rerr != nil {
				return rerr
			}
			continue
		}
		if done {
			return nil
		}
		t.pc = next
	}
}

// exec runs one instruction and returns the next program counter. done is set
// when the thread has finished.
func (t *thread) exec(inst *ir.Instruction) (next int, done bool, err error) {
	vm := t.vm
	reg := vm.reg
	next = t.pc + 1

	switch inst.Op {
	case ir.OpNop:

	case ir.OpHalt:
		if t.isMain {
			return 0, true, vm.joinAll()
		}
		return 0, true, nil

	case ir.OpAssign:
		dst, err := t.store(inst.Result)
		if err != nil {
			return 0, false, err
		}
		if !inst.Op1.IsUsed() {
			dst.Release()
			break
		}
		src, err := t.load(inst.Op1)
		if err != nil {
			return 0, false, err
		}
		dst.Copy(src)

	case ir.OpBindRef:
		if err := t.bindRef(inst); err != nil {
			return 0, false, err
		}

	case ir.OpUnbind:
		slot, err := t.slot(inst.Result)
		if err != nil {
			return 0, false, err
		}
		slot.Release()

	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpMod,
		ir.OpBitAnd, ir.OpBitOr, ir.OpBitXor, ir.OpShl, ir.OpShr,
		ir.OpEqual, ir.OpNotEqual, ir.OpLess, ir.OpLessEqual, ir.OpGreater, ir.OpGreaterEqual:
		op, _ := inst.Op.BinaryOperator()
		lhs, err := t.load(inst.Op1)
		if err != nil {
			return 0, false, err
		}
		rhs, err := t.load(inst.Op2)
		if err != nil {
			return 0, false, err
		}
		res, err := t.store(inst.Result)
		if err != nil {
			return 0, false, err
		}
		if err := guard(op.String(), func() error { return reg.Binary(op, res, lhs, rhs) }); err != nil {
			return 0, false, err
		}

	case ir.OpNot:
		v, err := t.load(inst.Op1)
		if err != nil {
			return 0, false, err
		}
		res, err := t.store(inst.Result)
		if err != nil {
			return 0, false, err
		}
		res.Set(reg.Bool(!v.Truthy()))

	case ir.OpBitNot, ir.OpNeg:
		uop := value.OpNeg
		if inst.Op == ir.OpBitNot {
			uop = value.OpBitNot
		}
		v, err := t.load(inst.Op1)
		if err != nil {
			return 0, false, err
		}
		res, err := t.store(inst.Result)
		if err != nil {
			return 0, false, err
		}
		if err := reg.Unary(uop, res, v); err != nil {
			return 0, false, err
		}

	case ir.OpPreInc, ir.OpPreDec, ir.OpPostInc, ir.OpPostDec:
		if err := t.incDec(inst); err != nil {
			return 0, false, err
		}

	case ir.OpJmp:
		next = inst.Op1.Slot

	case ir.OpJmpz, ir.OpJmpnz:
		v, err := t.load(inst.Op1)
		if err != nil {
			return 0, false, err
		}
		truth := v.Truthy()
		if inst.Result.IsUsed() {
			res, err := t.store(inst.Result)
			if err != nil {
				return 0, false, err
			}
			res.Set(reg.Bool(truth))
		}
		if truth == (inst.Op == ir.OpJmpnz) {
			next = inst.Op2.Slot
		}

	case ir.OpSend:
		v, err := t.load(inst.Op1)
		if err != nil {
			return 0, false, err
		}
		t.args = append(t.args, v.Clone())

	case ir.OpFCall:
		return t.call(inst)

	case ir.OpMCall, ir.OpSMCall:
		if err := t.methodCall(inst); err != nil {
			return 0, false, err
		}

	case ir.OpNew:
		if err := t.construct(inst); err != nil {
			return 0, false, err
		}

	case ir.OpArray:
		res, err := t.store(inst.Result)
		if err != nil {
			return 0, false, err
		}
		elems := t.args
		t.args = nil
		res.Set(reg.NewVector(elems))

	case ir.OpIndex:
		x, err := t.load(inst.Op1)
		if err != nil {
			return 0, false, err
		}
		i, err := t.load(inst.Op2)
		if err != nil {
			return 0, false, err
		}
		var elem value.Value
		if err := reg.Index(&elem, x, i); err != nil {
			return 0, false, err
		}
		res, err := t.store(inst.Result)
		if err != nil {
			elem.Release()
			return 0, false, err
		}
		res.Set(elem)

	case ir.OpSetIndex:
		x, err := t.load(inst.Op1)
		if err != nil {
			return 0, false, err
		}
		i, err := t.load(inst.Op2)
		if err != nil {
			return 0, false, err
		}
		v, err := t.load(inst.Result)
		if err != nil {
			return 0, false, err
		}
		if err := reg.SetIndex(x, i, v); err != nil {
			return 0, false, err
		}

	case ir.OpSize:
		x, err := t.load(inst.Op1)
		if err != nil {
			return 0, false, err
		}
		n, err := reg.Size(x)
		if err != nil {
			return 0, false, err
		}
		res, err := t.store(inst.Result)
		if err != nil {
			return 0, false, err
		}
		res.Set(reg.Int(int64(n)))

	case ir.OpRet, ir.OpLeave:
		return t.ret(inst)

	case ir.OpTry:
		t.pushHandler(inst.Op1.Slot)

	case ir.OpCatch:
		return t.catch(inst)

	case ir.OpEtry:
		t.popHandler()

	case ir.OpThrow:
		v, err := t.load(inst.Op1)
		if err != nil {
			return 0, false, err
		}
		if err := t.throw(v.Clone(), nil, inst); err != nil {
			return 0, false, err
		}
		return t.pc, false, nil

	case ir.OpRethrow:
		if !t.pending {
			return 0, false, diag.Fatalf("RETHROW without a pending exception")
		}
		exc, cause := t.exc, t.cause
		t.exc, t.cause, t.pending = value.Value{}, nil, false
		if err := t.throw(exc, cause, inst); err != nil {
			return 0, false, err
		}
		return t.pc, false, nil

	case ir.OpLock:
		t.lock()

	case ir.OpUnlock:
		t.unlock()

	case ir.OpBThread:
		if err := t.spawn(inst); err != nil {
			return 0, false, err
		}
		next = inst.Op1.Slot

	case ir.OpEThread:
		if t.isMain {
			return 0, false, diag.Fatalf("ETHREAD outside a thread block")
		}
		return 0, true, nil

	case ir.OpWait:
		id, err := t.load(inst.Op1)
		if err != nil {
			return 0, false, err
		}
		if err := vm.wait(int(id.Int())); err != nil {
			return 0, false, err
		}

	default:
		return 0, false, diag.Fatalf("unknown opcode %s", inst.Op)
	}
	return next, false, nil
}

// locate attaches the position of inst to errors that carry none.
func (t *thread) locate(err error, inst *ir.Instruction) error {
	switch e := err.(type) {
	case *diag.FatalError:
		if e.Pos.Line == 0 {
			e.File, e.Pos = t.vm.prog.File, inst.Pos
		}
	case *diag.RuntimeError:
		if e.Pos.Line == 0 {
			e.File, e.Pos = t.vm.prog.File, inst.Pos
		}
	}
	return err
}
