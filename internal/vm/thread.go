package vm

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"clever/internal/diag"
	"clever/internal/ir"
	"clever/internal/scope"
	"clever/internal/value"
)

// thread is one thread of control: the main program or one instance of a
// spawned thread block.
type thread struct {
	vm     *VM
	id     string
	name   string
	isMain bool

	pc       int
	frames   []*frame
	args     []value.Value
	handlers []handler
	locks    int // re-entrant depth of vm.critical held by this thread

	// pending exception between a raise and the CATCH that binds it
	exc     value.Value
	cause   *diag.RuntimeError
	pending bool
}

func (vm *VM) newThread(name string, base *frame, pc int) *thread {
	return &thread{
		vm:     vm,
		id:     uuid.NewString(),
		name:   name,
		isMain: name == "main",
		pc:     pc,
		frames: []*frame{base},
	}
}

func (t *thread) top() *frame { return t.frames[len(t.frames)-1] }

// depth counts user function activations.
func (t *thread) depth() int {
	if len(t.frames) == 0 {
		return 0
	}
	return len(t.frames) - 1
}

func (t *thread) lock() {
	if t.locks == 0 {
		t.vm.critical.Lock()
	}
	t.locks++
}

func (t *thread) unlock() {
	if t.locks == 0 {
		return
	}
	t.locks--
	if t.locks == 0 {
		t.vm.critical.Unlock()
	}
}

// releaseLocks unlocks until the depth is back to n.
func (t *thread) releaseLocks(n int) {
	for t.locks > n {
		t.unlock()
	}
}

// unwindAll pops every frame, including the bottom one, and drops whatever
// the thread still holds.
func (t *thread) unwindAll() {
	for len(t.frames) > 1 {
		t.popFrame()
	}
	base := t.top()
	t.releaseLocks(0)
	base.children.Wait()
	base.release()
	t.frames = nil
	t.handlers = nil
	releaseAll(t.args)
	t.args = nil
	if t.pending {
		t.exc.Release()
		t.pending = false
	}
}

// spawn implements BTHREAD: start the requested number of threads at the
// instruction after inst. Each gets private copies of the block's scopes and
// shares every enclosing scope with the spawner.
func (t *thread) spawn(inst *ir.Instruction) error {
	vm := t.vm
	n := int64(1)
	if inst.Op2.IsUsed() {
		size, err := t.load(inst.Op2)
		if err != nil {
			return err
		}
		if !size.IsIntegral() {
			return diag.TypeErrorf("thread count must be Int, got %s", size.TypeName())
		}
		n = size.Int()
	}
	if n < 1 {
		return diag.ResourceErrorf("thread count must be positive, got %d", n)
	}
	id := int(vm.prog.Consts[inst.Result.Slot].Int())
	if id < 0 || id >= len(vm.prog.Threads) {
		return diag.Fatalf("unknown thread block %d", id)
	}
	info := vm.prog.Threads[id]
	name := info.Name
	if name == "" {
		name = fmt.Sprintf("spawn#%d", id)
	}

	g := vm.group(id)
	cur := t.top()
	for i := int64(0); i < n; i++ {
		envs := make([]*scope.Env, len(cur.envs))
		copy(envs, cur.envs)
		for _, sid := range info.Scopes {
			if envs[sid] != nil {
				envs[sid] = envs[sid].Copy()
			}
		}
		base := &frame{
			fn:    cur.fn,
			ret:   -1,
			envs:  envs,
			owned: info.Scopes,
			temps: make([]value.Value, len(cur.temps)),
		}
		th := vm.newThread(name, base, t.pc+1)
		vm.log.Debug().Str("block", name).Str("thread", th.id).Msg("thread started")
		cur.children.Add(1)
		g.Go(func() error {
			defer cur.children.Done()
			err := th.run(context.Background())
			th.unwindAll()
			if err != nil {
				vm.log.Debug().Str("block", name).Str("thread", th.id).Err(err).Msg("thread failed")
				return err
			}
			vm.log.Debug().Str("block", name).Str("thread", th.id).Msg("thread finished")
			return nil
		})
	}
	return nil
}

func (vm *VM) group(id int) *errgroup.Group {
	vm.groupsMu.Lock()
	defer vm.groupsMu.Unlock()
	g, ok := vm.groups[id]
	if !ok {
		g = new(errgroup.Group)
		vm.groups[id] = g
	}
	return g
}

// wait joins every thread spawned so far for block id.
func (vm *VM) wait(id int) error {
	vm.groupsMu.Lock()
	g := vm.groups[id]
	delete(vm.groups, id)
	vm.groupsMu.Unlock()
	if g == nil {
		return nil
	}
	return vm.blockError(id, g.Wait())
}

// joinAll waits for every thread block not joined by WAIT.
func (vm *VM) joinAll() error {
	var first error
	for {
		vm.groupsMu.Lock()
		var (
			id int
			g  *errgroup.Group
		)
		for k, v := range vm.groups {
			id, g = k, v
			break
		}
		delete(vm.groups, id)
		vm.groupsMu.Unlock()
		if g == nil {
			return first
		}
		if err := vm.blockError(id, g.Wait()); err != nil && first == nil {
			first = err
		}
	}
}

func (vm *VM) blockError(id int, err error) error {
	if err == nil {
		return nil
	}
	name := vm.prog.Threads[id].Name
	if name == "" {
		name = fmt.Sprintf("#%d", id)
	}
	return &diag.FatalError{Msg: "thread block " + name + " failed", Cause: err}
}
