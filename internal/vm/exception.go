package vm

import (
	"clever/internal/diag"
	"clever/internal/ir"
	"clever/internal/value"
)

type handler struct {
	frame int // index into thread.frames
	addr  int // catch dispatch
	locks int // lock depth when TRY ran
}

func (t *thread) pushHandler(addr int) {
	t.handlers = append(t.handlers, handler{frame: len(t.frames) - 1, addr: addr, locks: t.locks})
}

func (t *thread) popHandler() {
	if len(t.handlers) > 0 {
		t.handlers = t.handlers[:len(t.handlers)-1]
	}
}

// throw transfers control to the innermost handler with exc pending. With no
// handler left the exception is returned as an error and the thread stops.
// cause is set when exc was built from a run-time error.
func (t *thread) throw(exc value.Value, cause *diag.RuntimeError, inst *ir.Instruction) error {
	if len(t.handlers) == 0 {
		defer exc.Release()
		if cause != nil {
			return t.locate(cause, inst)
		}
		return &diag.UncaughtError{
			Value: exc.String(),
			Type:  exc.TypeName(),
			File:  t.vm.prog.File,
			Pos:   inst.Pos,
		}
	}
	h := t.handlers[len(t.handlers)-1]
	t.handlers = t.handlers[:len(t.handlers)-1]
	for len(t.frames)-1 > h.frame {
		t.popFrame()
	}
	t.releaseLocks(h.locks)
	releaseAll(t.args)
	t.args = nil

	if t.pending {
		t.exc.Release()
	}
	t.exc, t.cause, t.pending = exc, cause, true
	t.pc = h.addr
	return nil
}

// raiseError turns a run-time error into an Error value and throws it.
func (t *thread) raiseError(err error, inst *ir.Instruction) error {
	rt := diag.AsRuntime(err)
	t.locate(rt, inst)
	exc := t.vm.reg.NewError(rt.Kind.String(), rt.Msg)
	t.vm.log.Debug().Str("thread", t.id).Int("pc", t.pc).Err(rt).Msg("runtime error")
	return t.throw(exc, rt, inst)
}

// catch implements CATCH: bind the pending exception when it matches the
// clause's type filter, otherwise try the next clause.
func (t *thread) catch(inst *ir.Instruction) (int, bool, error) {
	if !t.pending {
		return 0, false, diag.Fatalf("CATCH without a pending exception")
	}
	if inst.Op1.IsUsed() {
		want, err := t.typeOf(inst.Op1)
		if err != nil {
			return 0, false, err
		}
		got := t.exc.Type()
		if got == nil || !got.IsConvertibleTo(want) {
			return inst.Op2.Slot, false, nil
		}
	}
	dst, err := t.slot(inst.Result)
	if err != nil {
		return 0, false, err
	}
	dst.Set(t.exc)
	t.exc, t.cause, t.pending = value.Value{}, nil, false
	return t.pc + 1, false, nil
}
