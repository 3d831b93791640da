package ir_test

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"clever/internal/diag"
	"clever/internal/ir"
	"clever/internal/lexer"
	"clever/internal/parser"
	"clever/internal/value"
)

func newRegistry() *value.Registry {
	reg := value.NewRegistry()
	_ = reg.DefNative("print", func(c *value.Call) error { return nil }, 0, -1)
	reg.Freeze()
	return reg
}

func compileWith(t *testing.T, src string, opts ir.Options) (*ir.Program, diag.List) {
	t.Helper()
	p := parser.New(lexer.New(src))
	prog := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		for _, e := range errs {
			t.Logf("parser error: %s", e)
		}
		t.Fatalf("expected no parser errors, got %d", len(errs))
	}
	return ir.Compile("test.clv", prog, newRegistry(), opts)
}

func compile(t *testing.T, src string) *ir.Program {
	t.Helper()
	mod, diags := compileWith(t, src, ir.DefaultOptions())
	if mod == nil {
		for _, e := range diags {
			t.Logf("compile error: %s", e)
		}
		t.Fatalf("expected no compile errors, got %d", len(diags))
	}
	return mod
}

func find(mod *ir.Program, op ir.OpCode) []int {
	var out []int
	for addr, inst := range mod.Code {
		if inst.Op == op {
			out = append(out, addr)
		}
	}
	return out
}

func hasIntConst(mod *ir.Program, n int64) bool {
	for i := range mod.Consts {
		c := &mod.Consts[i]
		if c.Prim() == value.PrimInt && c.Int() == n {
			return true
		}
	}
	return false
}

func TestCompile_ConstantPool(t *testing.T) {
	mod := compile(t, `x = 1 + 2; print(x);`)
	defer mod.Release()
	for _, n := range []int64{1, 2, 3} {
		if !hasIntConst(mod, n) {
			t.Fatalf("constant pool lacks %d", n)
		}
	}
	if len(find(mod, ir.OpAdd)) != 0 {
		t.Fatalf("1 + 2 should fold into a constant")
	}
	if n := len(find(mod, ir.OpFCall)); n != 1 {
		t.Fatalf("expected 1 FCALL, got %d", n)
	}
	if last := mod.Code[len(mod.Code)-1]; last.Op != ir.OpHalt {
		t.Fatalf("program must end with HALT, got %s", last.Op)
	}
}

func TestCompile_NoFolding(t *testing.T) {
	opts := ir.DefaultOptions()
	opts.FoldConstants = false
	mod, diags := compileWith(t, `x = 1 + 2;`, opts)
	if mod == nil {
		t.Fatalf("compile errors: %v", diags)
	}
	defer mod.Release()
	adds := find(mod, ir.OpAdd)
	if len(adds) != 1 {
		t.Fatalf("expected one ADD, got %d", len(adds))
	}
	add := mod.Code[adds[0]]
	if add.Op1.Kind != ir.Const || add.Op2.Kind != ir.Const || add.Result.Kind != ir.Temp {
		t.Fatalf("unexpected ADD operands %s %s %s", add.Op1, add.Op2, add.Result)
	}
}

func TestCompile_FailedFoldWarns(t *testing.T) {
	mod, diags := compileWith(t, `var x = 1 / 0;`, ir.DefaultOptions())
	if mod == nil {
		t.Fatalf("division by a constant zero must not abort compilation: %v", diags)
	}
	defer mod.Release()
	if len(find(mod, ir.OpDiv)) != 1 {
		t.Fatalf("failed fold must leave DIV to run time")
	}
	if len(diags) != 1 || !strings.Contains(diags[0].Error(), "division by zero") {
		t.Fatalf("expected division warning, got %v", diags)
	}
}

func TestCompile_IfBackPatch(t *testing.T) {
	mod := compile(t, `if (false) { print(1); } else { print(2); } print(3);`)
	defer mod.Release()
	jz := find(mod, ir.OpJmpz)
	jmp := find(mod, ir.OpJmp)
	if len(jz) != 1 || len(jmp) != 1 {
		t.Fatalf("expected one JMPZ and one JMP, got %d and %d", len(jz), len(jmp))
	}
	// false branch starts right after the then-branch's exit jump
	if target := mod.Code[jz[0]].Op2.Slot; target != jmp[0]+1 {
		t.Fatalf("JMPZ targets %d, want %d", target, jmp[0]+1)
	}
	// the exit jump lands on the first instruction after the else branch
	end := mod.Code[jmp[0]].Op1.Slot
	calls := find(mod, ir.OpFCall)
	if len(calls) != 3 || end <= calls[1] || end > calls[2] {
		t.Fatalf("exit jump lands on %d, calls at %v", end, calls)
	}
}

func TestCompile_WhileJumpsBack(t *testing.T) {
	mod := compile(t, `var i = 0; while (i < 3) { i++; } print(i);`)
	defer mod.Release()
	less := find(mod, ir.OpLess)
	jz := find(mod, ir.OpJmpz)
	jmp := find(mod, ir.OpJmp)
	if len(less) != 1 || len(jz) != 1 || len(jmp) != 1 {
		t.Fatalf("unexpected loop shape:\n%s", dump(t, mod))
	}
	if mod.Code[jmp[0]].Op1.Slot != less[0] {
		t.Fatalf("loop jumps back to %d, condition at %d", mod.Code[jmp[0]].Op1.Slot, less[0])
	}
	if mod.Code[jz[0]].Op2.Slot != jmp[0]+1 {
		t.Fatalf("loop exit at %d, want %d", mod.Code[jz[0]].Op2.Slot, jmp[0]+1)
	}
}

func TestCompile_BreakContinue(t *testing.T) {
	mod := compile(t, `for (var i = 0; i < 10; i++) { if (i == 2) { continue; } if (i == 5) { break; } }`)
	defer mod.Release()
	for _, addr := range find(mod, ir.OpJmp) {
		target := mod.Code[addr].Op1.Slot
		if target < 0 || target >= len(mod.Code) {
			t.Fatalf("jump at %d has unpatched target %d", addr, target)
		}
	}
	if _, diags := compileWith(t, `break;`, ir.DefaultOptions()); len(diags) == 0 {
		t.Fatalf("expected error for break outside loop")
	}
}

func TestCompile_ShortCircuitSharesResult(t *testing.T) {
	mod := compile(t, `var a = true; var b = a && false;`)
	defer mod.Release()
	jz := find(mod, ir.OpJmpz)
	if len(jz) != 2 {
		t.Fatalf("expected two JMPZ, got %d", len(jz))
	}
	first, second := mod.Code[jz[0]], mod.Code[jz[1]]
	if first.Result != second.Result || first.Result.Kind != ir.Temp {
		t.Fatalf("both jumps must write the same temporary: %s vs %s", first.Result, second.Result)
	}
	if first.Op2.Slot != second.Op2.Slot || first.Op2.Slot != jz[1]+1 {
		t.Fatalf("both jumps must land after the expression")
	}
}

func TestCompile_DefaultArgumentWarning(t *testing.T) {
	mod, diags := compileWith(t, `function f(a, b = 10) { return a + b; } f(1);`, ir.DefaultOptions())
	if mod == nil {
		t.Fatalf("compile errors: %v", diags)
	}
	defer mod.Release()
	var ce *diag.CompileError
	if len(diags) != 1 || !errors.As(diags[0], &ce) || !ce.Warning {
		t.Fatalf("expected one warning, got %v", diags)
	}
	if !strings.Contains(ce.Msg, "argument b of f defaults to 10") {
		t.Fatalf("unexpected warning %q", ce.Msg)
	}
	if got := len(find(mod, ir.OpSend)); got != 2 {
		t.Fatalf("expected 2 SEND, got %d", got)
	}

	opts := ir.DefaultOptions()
	opts.Warnings = false
	mod2, diags := compileWith(t, `function f(a, b = 10) { return a + b; } f(1);`, opts)
	if mod2 == nil || len(diags) != 0 {
		t.Fatalf("warnings disabled, got %v", diags)
	}
	mod2.Release()
}

func TestCompile_Functions(t *testing.T) {
	mod := compile(t, `function add(a, b) { return a + b; } print(add(1, 2));`)
	defer mod.Release()
	if len(mod.Funcs) != 1 {
		t.Fatalf("expected 1 function, got %d", len(mod.Funcs))
	}
	fn := mod.Funcs[0]
	if fn.Name != "add" || fn.NumParams != 2 {
		t.Fatalf("unexpected function %+v", fn)
	}
	if fn.Addr <= 0 || fn.Addr >= len(mod.Code) {
		t.Fatalf("function address %d out of range", fn.Addr)
	}
	if len(find(mod, ir.OpRet)) == 0 || len(find(mod, ir.OpLeave)) != 1 {
		t.Fatalf("function body must contain RET and end with LEAVE")
	}
	// top-level code jumps over the body
	if mod.Code[0].Op != ir.OpJmp || mod.Code[0].Op1.Slot <= fn.Addr {
		t.Fatalf("expected a jump over the function body, got %s", mod.Code[0].Op)
	}
}

func TestCompile_TryLayout(t *testing.T) {
	mod := compile(t, `try { throw 1; } catch (TypeError e) { print(e); } catch (e) { print(e); } finally { print(0); }`)
	defer mod.Release()
	try := find(mod, ir.OpTry)
	catches := find(mod, ir.OpCatch)
	if len(try) != 1 || len(catches) != 2 || len(find(mod, ir.OpEtry)) != 1 || len(find(mod, ir.OpRethrow)) != 1 {
		t.Fatalf("unexpected try shape:\n%s", dump(t, mod))
	}
	if mod.Code[try[0]].Op1.Slot != catches[0] {
		t.Fatalf("TRY dispatches to %d, first CATCH at %d", mod.Code[try[0]].Op1.Slot, catches[0])
	}
	first := mod.Code[catches[0]]
	if first.Op1.Kind != ir.TypeRef || first.Op2.Slot != catches[1] {
		t.Fatalf("typed CATCH must fall through to the next clause: %s %s", first.Op1, first.Op2)
	}
	if second := mod.Code[catches[1]]; second.Op1.IsUsed() {
		t.Fatalf("untyped CATCH must not carry a type")
	}
}

func TestCompile_ThreadBlocks(t *testing.T) {
	mod := compile(t, `var n = 0; spawn w[2] { var i = 1; critical { n += i; } } wait w;`)
	defer mod.Release()
	bt := find(mod, ir.OpBThread)
	et := find(mod, ir.OpEThread)
	if len(bt) != 1 || len(et) != 1 || len(find(mod, ir.OpWait)) != 1 {
		t.Fatalf("unexpected thread shape:\n%s", dump(t, mod))
	}
	if mod.Code[bt[0]].Op1.Slot != et[0]+1 {
		t.Fatalf("spawner must resume after ETHREAD")
	}
	if len(find(mod, ir.OpLock)) != 1 || len(find(mod, ir.OpUnlock)) != 1 {
		t.Fatalf("critical must emit LOCK and UNLOCK")
	}
	if len(mod.Threads) != 1 || mod.Threads[0].Name != "w" || len(mod.Threads[0].Scopes) == 0 {
		t.Fatalf("unexpected thread table %+v", mod.Threads)
	}
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{`print(y);`, "undefined symbol y"},
		{`return 1;`, "return"},
		{`wait nobody;`, "nobody"},
		{`function f(a) { return a; } f();`, "f expects 1 argument(s), got 0"},
	}
	for _, tt := range tests {
		mod, diags := compileWith(t, tt.src, ir.DefaultOptions())
		if mod != nil {
			mod.Release()
			t.Fatalf("%q: expected compile error", tt.src)
		}
		if !strings.Contains(diags.Error(), tt.want) {
			t.Fatalf("%q: error %q does not mention %q", tt.src, diags.Error(), tt.want)
		}
		var ce *diag.CompileError
		if !errors.As(diags[len(diags)-1], &ce) || ce.Pos.Line != 1 || ce.File != "test.clv" {
			t.Fatalf("%q: error lacks location: %v", tt.src, diags)
		}
	}
}

func TestProgram_Validate(t *testing.T) {
	p := &ir.Program{}
	p.Emit(ir.Instruction{Op: ir.OpAssign, Op1: ir.ConstOp(0), Result: ir.TempOp(0)})
	p.Emit(ir.Instruction{Op: ir.OpHalt})
	if err := p.Validate(); err == nil {
		t.Fatalf("expected error for missing constant")
	}
	p.AddConst(value.Value{})
	if err := p.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p.Emit(ir.Instruction{Op: ir.OpJmp, Op1: ir.JumpOp(0)})
	if err := p.Validate(); err == nil {
		t.Fatalf("expected error for program not ending with HALT")
	}

	q := &ir.Program{}
	at := q.Emit(ir.Instruction{Op: ir.OpJmp, Op1: ir.JumpOp(0)})
	q.Emit(ir.Instruction{Op: ir.OpHalt})
	q.Patch(at, 1, 7)
	if err := q.Validate(); err == nil {
		t.Fatalf("expected error for jump out of range")
	}
	q.Patch(at, 1, 1)
	if err := q.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func dump(t *testing.T, mod *ir.Program) string {
	t.Helper()
	var b bytes.Buffer
	if err := mod.Dump(&b); err != nil {
		t.Fatalf("dump: %v", err)
	}
	return b.String()
}

func TestProgram_Dump(t *testing.T) {
	mod := compile(t, `function f(a) { return a; } x = f(2);`)
	defer mod.Release()
	out := dump(t, mod)
	for _, want := range []string{"; test.clv", "constants:", "functions:", "code:", "FCALL", "HALT"} {
		if !strings.Contains(out, want) {
			t.Fatalf("dump lacks %q:\n%s", want, out)
		}
	}
}

func TestProgram_SerializeRoundTrip(t *testing.T) {
	src := `
function greet(name, p = "hi") { return p + " " + name; }
var d = 2.5;
var ok = true;
spawn w[2] { critical { d += 1; } }
wait w;
try { print(greet("x")); } catch (TypeError e) { print(e); }
`
	mod := compile(t, src)
	defer mod.Release()

	path := filepath.Join(t.TempDir(), "prog.cvc")
	if err := ir.WriteProgramToFile(path, mod); err != nil {
		t.Fatalf("write: %v", err)
	}
	back, err := ir.ReadProgramFromFile(path, newRegistry())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	defer back.Release()

	if dump(t, back) != dump(t, mod) {
		t.Fatalf("round trip changed the program:\n%s\nvs\n%s", dump(t, mod), dump(t, back))
	}
	if len(back.Scopes) != len(mod.Scopes) || len(back.Threads) != len(mod.Threads) {
		t.Fatalf("storage layout lost in round trip")
	}
}

func TestProgram_ReadRejectsGarbage(t *testing.T) {
	if _, err := ir.ReadProgram(strings.NewReader("nope"), newRegistry()); err == nil {
		t.Fatalf("expected error for bad magic")
	}
	mod := compile(t, `print(1);`)
	defer mod.Release()
	var b bytes.Buffer
	if err := ir.WriteProgram(&b, mod); err != nil {
		t.Fatalf("write: %v", err)
	}
	truncated := b.Bytes()[:b.Len()/2]
	if _, err := ir.ReadProgram(bytes.NewReader(truncated), newRegistry()); err == nil {
		t.Fatalf("expected error for truncated input")
	}
}

func TestProgram_ValidateTables(t *testing.T) {
	src := `function f(a) { return a; } f(1); spawn w { var i = 1; } wait w;`
	tests := []struct {
		name   string
		mutate func(p *ir.Program)
		want   string
	}{
		{"function entry", func(p *ir.Program) { p.Funcs[0].Addr = len(p.Code) + 5 }, "entry"},
		{"parameter scope", func(p *ir.Program) { p.Funcs[0].ParamScope = len(p.Scopes) }, "parameter scope"},
		{"parameter count", func(p *ir.Program) { p.Funcs[0].NumParams = 1000 }, "parameters do not fit"},
		{"function scopes", func(p *ir.Program) { p.Funcs[0].Scopes = []int{-1} }, "scope -1 out of range"},
		{"function temporaries", func(p *ir.Program) { p.Funcs[0].NumTemps = -1 }, "negative temporary"},
		{"thread scopes", func(p *ir.Program) { p.Threads[0].Scopes = []int{len(p.Scopes)} }, "thread block 0"},
		{"scope size", func(p *ir.Program) { p.Scopes[0].Size = -1 }, "invalid size"},
		{"scope owner", func(p *ir.Program) { p.Scopes[0].Owner = len(p.Funcs) }, "owner"},
		{"operand kind", func(p *ir.Program) { p.Code[0].Op1.Kind = ir.OperandKind(42) }, "unknown operand kind"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mod := compile(t, src)
			defer mod.Release()
			if err := mod.Validate(); err != nil {
				t.Fatalf("compiled program is invalid: %v", err)
			}
			tt.mutate(mod)
			err := mod.Validate()
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}
