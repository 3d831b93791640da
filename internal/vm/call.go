package vm

import (
	"sync"

	"clever/internal/diag"
	"clever/internal/ir"
	"clever/internal/scope"
	"clever/internal/value"
)

// frame is the activation record of a user function, of top-level code or of
// a spawned thread's body.
type frame struct {
	fn     *value.Function // nil outside functions
	ret    int             // return address, -1 for the bottom frame
	result ir.Operand      // caller's destination for the return value

	envs  []*scope.Env // indexed by scope id
	owned []int        // scope ids whose storage this frame releases
	temps []value.Value

	locks    int // lock depth at entry
	handlers int // handler stack height at entry

	children sync.WaitGroup // threads spawned while this frame was on top
}

// release drops the frame's own storage. Shared envs are left alone.
func (f *frame) release() {
	for _, id := range f.owned {
		if env := f.envs[id]; env != nil {
			env.Release()
		}
	}
	for i := range f.temps {
		f.temps[i].Release()
	}
}

// slot returns the storage cell an operand designates, without following
// references.
func (t *thread) slot(o ir.Operand) (*value.Value, error) {
	f := t.top()
	switch o.Kind {
	case ir.Const:
		return &t.vm.prog.Consts[o.Slot], nil
	case ir.Var:
		if o.Scope >= len(f.envs) || f.envs[o.Scope] == nil {
			return nil, diag.Fatalf("scope %d has no storage in this frame", o.Scope)
		}
		v := f.envs[o.Scope].Slot(o.Slot)
		if v == nil {
			return nil, diag.Fatalf("variable %d:%d out of range", o.Scope, o.Slot)
		}
		return v, nil
	case ir.Temp:
		if o.Slot >= len(f.temps) {
			return nil, diag.Fatalf("temporary %d out of range (%d allocated)", o.Slot, len(f.temps))
		}
		return &f.temps[o.Slot], nil
	case ir.Unused:
		return &value.Value{}, nil
	}
	return nil, diag.Fatalf("operand %s does not designate a value", o)
}

// load resolves an input operand, following a bound reference to its target.
func (t *thread) load(o ir.Operand) (*value.Value, error) {
	v, err := t.slot(o)
	if err != nil {
		return nil, err
	}
	return v.Deref()
}

// store resolves an output operand. Writing through a variable bound by
// BINDREF updates the referenced element.
func (t *thread) store(o ir.Operand) (*value.Value, error) {
	if o.Kind == ir.Const {
		return nil, diag.Fatalf("constant %d used as a destination", o.Slot)
	}
	return t.load(o)
}

func (t *thread) typeOf(o ir.Operand) (*value.Type, error) {
	scopes := t.vm.prog.Scopes
	if o.Kind != ir.TypeRef || o.Scope >= len(scopes) || o.Slot >= len(scopes[o.Scope].Types) {
		return nil, diag.Fatalf("operand %s does not designate a type", o)
	}
	return scopes[o.Scope].Types[o.Slot], nil
}

// takeArgs hands the pending argument list to a callee.
func (t *thread) takeArgs() []value.Value {
	args := t.args
	t.args = nil
	return args
}

func releaseAll(vals []value.Value) {
	for i := range vals {
		vals[i].Release()
	}
}

// guard runs native code, turning a Go panic into a ResourceError.
func guard(name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = diag.ResourceErrorf("%s: %v", name, r)
		}
	}()
	return fn()
}

func pointers(vals []value.Value) []*value.Value {
	out := make([]*value.Value, len(vals))
	for i := range vals {
		out[i] = &vals[i]
	}
	return out
}

func (t *thread) newCall(name string, args []value.Value) (*value.Call, *value.Value) {
	res := &value.Value{}
	return &value.Call{
		Name:   name,
		Args:   pointers(args),
		Result: res,
		Reg:    t.vm.reg,
		Host:   t.vm.host,
		Thread: t.id,
	}, res
}

// finish moves a native result into the destination operand.
func (t *thread) finish(dst ir.Operand, res *value.Value) error {
	if !dst.IsUsed() {
		res.Release()
		return nil
	}
	out, err := t.store(dst)
	if err != nil {
		res.Release()
		return err
	}
	out.Set(*res)
	return nil
}

// call implements FCALL. Natives run in place; user functions get a new
// frame and execution continues at their entry.
func (t *thread) call(inst *ir.Instruction) (int, bool, error) {
	args := t.takeArgs()
	callee, err := t.load(inst.Op1)
	if err != nil {
		releaseAll(args)
		return 0, false, err
	}
	fn := callee.Function()
	if fn == nil {
		releaseAll(args)
		return 0, false, diag.TypeErrorf("%s is not callable", callee.TypeName())
	}
	if err := fn.Arity(len(args)); err != nil {
		releaseAll(args)
		return 0, false, err
	}

	if fn.IsNative() {
		c, res := t.newCall(fn.Name, args)
		err := guard(fn.Name, func() error { return fn.Native(c) })
		releaseAll(args)
		if err != nil {
			res.Release()
			return 0, false, err
		}
		return t.pc + 1, false, t.finish(inst.Result, res)
	}

	if t.depth() >= t.vm.cfg.MaxCallDepth {
		releaseAll(args)
		return 0, false, diag.Fatalf("maximum call depth %d exceeded calling %s", t.vm.cfg.MaxCallDepth, fn.Name)
	}
	if fn.NumTemps > t.vm.cfg.MaxTemps {
		releaseAll(args)
		return 0, false, diag.Fatalf("%s needs %d temporaries, limit is %d", fn.Name, fn.NumTemps, t.vm.cfg.MaxTemps)
	}

	caller := t.top()
	envs := make([]*scope.Env, len(caller.envs))
	copy(envs, caller.envs)
	for _, id := range fn.Scopes {
		s := t.vm.prog.Scopes[id]
		envs[id] = scope.NewEnv(s.Size, s.Init)
	}
	params := envs[fn.ParamScope]
	for i := range args {
		params.Slot(i).Set(args[i])
	}

	t.frames = append(t.frames, &frame{
		fn:       fn,
		ret:      t.pc + 1,
		result:   inst.Result,
		envs:     envs,
		owned:    fn.Scopes,
		temps:    make([]value.Value, fn.NumTemps),
		locks:    t.locks,
		handlers: len(t.handlers),
	})
	return fn.Addr, false, nil
}

// ret implements RET and LEAVE: pop the frame, release what it holds and
// deliver the return value to the caller.
func (t *thread) ret(inst *ir.Instruction) (int, bool, error) {
	f := t.top()
	if f.fn == nil {
		return 0, false, diag.Fatalf("return outside function")
	}
	var rv value.Value
	if inst.Op == ir.OpRet && inst.Op1.IsUsed() {
		v, err := t.load(inst.Op1)
		if err != nil {
			return 0, false, err
		}
		rv = v.Clone()
	}
	t.popFrame()
	return f.ret, false, t.finish(f.result, &rv)
}

// popFrame removes the innermost frame, dropping the handlers installed and
// the locks taken since it was entered. Threads spawned from the frame are
// joined before its storage goes away.
func (t *thread) popFrame() *frame {
	f := t.top()
	t.frames = t.frames[:len(t.frames)-1]
	if len(t.handlers) > f.handlers {
		t.handlers = t.handlers[:f.handlers]
	}
	t.releaseLocks(f.locks)
	f.children.Wait()
	f.release()
	return f
}

func (t *thread) methodCall(inst *ir.Instruction) error {
	args := t.takeArgs()
	defer releaseAll(args)

	name := t.vm.prog.Consts[inst.Op2.Slot].Str()
	var (
		typ  *value.Type
		recv *value.Value
	)
	if inst.Op == ir.OpSMCall {
		tp, err := t.typeOf(inst.Op1)
		if err != nil {
			return err
		}
		typ = tp
	} else {
		v, err := t.load(inst.Op1)
		if err != nil {
			return err
		}
		if v.IsNone() {
			return diag.TypeErrorf("cannot call method %s on null value", name)
		}
		recv, typ = v, v.Type()
		if typ == nil {
			return diag.TypeErrorf("cannot call method %s on %s", name, v.TypeName())
		}
	}

	m := typ.Method(name)
	switch {
	case m == nil:
		return diag.TypeErrorf("type %s has no method %s", typ.Name, name)
	case m.Static && recv != nil:
		return diag.TypeErrorf("%s.%s is a static method", typ.Name, name)
	case !m.Static && recv == nil:
		return diag.TypeErrorf("%s.%s is not a static method", typ.Name, name)
	}
	if err := m.CheckArity(typ.Name, len(args)); err != nil {
		return err
	}

	c, res := t.newCall(typ.Name+"."+name, args)
	c.Type = typ
	if recv != nil {
		// the receiver may be the destination operand
		this := recv.Clone()
		defer this.Release()
		c.This = &this
	}
	if err := guard(c.Name, func() error { return m.Fn(c) }); err != nil {
		res.Release()
		return err
	}
	return t.finish(inst.Result, res)
}

func (t *thread) construct(inst *ir.Instruction) error {
	args := t.takeArgs()
	defer releaseAll(args)
	typ, err := t.typeOf(inst.Op1)
	if err != nil {
		return err
	}
	c, res := t.newCall(typ.Name, args)
	c.Type = typ
	if err := guard(typ.Name, func() error { return t.vm.reg.Construct(typ, c) }); err != nil {
		res.Release()
		return err
	}
	return t.finish(inst.Result, res)
}

func (t *thread) incDec(inst *ir.Instruction) error {
	v, err := t.store(inst.Op1)
	if err != nil {
		return err
	}
	op := value.OpInc
	if inst.Op == ir.OpPreDec || inst.Op == ir.OpPostDec {
		op = value.OpDec
	}
	var old value.Value
	post := inst.Op == ir.OpPostInc || inst.Op == ir.OpPostDec
	if post {
		old = v.Clone()
	}
	if err := t.vm.reg.Unary(op, v, v); err != nil {
		old.Release()
		return err
	}
	if !inst.Result.IsUsed() {
		old.Release()
		return nil
	}
	res, err := t.store(inst.Result)
	if err != nil {
		old.Release()
		return err
	}
	if post {
		res.Set(old)
	} else {
		res.Copy(v)
	}
	return nil
}

// bindRef binds the loop variable to element Op2 of Op1. Array elements are
// bound by reference; other iterables yield a copy of the element.
func (t *thread) bindRef(inst *ir.Instruction) error {
	x, err := t.load(inst.Op1)
	if err != nil {
		return err
	}
	i, err := t.load(inst.Op2)
	if err != nil {
		return err
	}
	dst, err := t.slot(inst.Result)
	if err != nil {
		return err
	}
	if vec := x.Vector(); vec != nil {
		ref, err := t.vm.reg.Reference(&vec.Cells, int(i.Int()))
		if err != nil {
			return err
		}
		dst.Set(ref)
		return nil
	}
	var elem value.Value
	if err := t.vm.reg.Index(&elem, x, i); err != nil {
		return err
	}
	dst.Set(elem)
	return nil
}
