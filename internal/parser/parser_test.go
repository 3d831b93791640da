package parser_test

import (
	"strings"
	"testing"

	"clever/internal/ast"
	"clever/internal/lexer"
	"clever/internal/parser"
	"clever/internal/token"
)

func parse(t *testing.T, input string) *ast.Program {
	t.Helper()
	p := parser.New(lexer.New(input))
	prog := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		for _, e := range errs {
			t.Logf("parser error: %s", e)
		}
		t.Fatalf("expected no parser errors, got %d", len(errs))
	}
	return prog
}

func TestParseSimpleProgram(t *testing.T) {
	input := `var x = 1 + 2;
function f(a, b = 1) {
    return a + b;
}
print(f(x));
`
	prog := parse(t, input)

	if len(prog.Stmts) != 3 {
		t.Fatalf("expected 3 statements, got %d", len(prog.Stmts))
	}
	decl, ok := prog.Stmts[0].(*ast.VarDecl)
	if !ok || decl.Name.Name != "x" {
		t.Fatalf("expected var x, got %#v", prog.Stmts[0])
	}
	fn, ok := prog.Stmts[1].(*ast.FuncDecl)
	if !ok {
		t.Fatalf("expected FuncDecl, got %T", prog.Stmts[1])
	}
	if len(fn.Params) != 2 || fn.Params[1].Default == nil {
		t.Fatalf("expected two params with a default on b, got %#v", fn.Params)
	}
	call, ok := prog.Stmts[2].(*ast.ExprStmt).X.(*ast.CallExpr)
	if !ok || len(call.Args) != 1 {
		t.Fatalf("expected call with one argument, got %#v", prog.Stmts[2])
	}
}

func TestParsePrecedence(t *testing.T) {
	prog := parse(t, "y = 1 + 2 * 3 << 1 == 14 && !z;")

	assign := prog.Stmts[0].(*ast.ExprStmt).X.(*ast.AssignExpr)
	and, ok := assign.Value.(*ast.LogicalExpr)
	if !ok || and.Op != token.AndAnd {
		t.Fatalf("expected && at the root, got %#v", assign.Value)
	}
	eq := and.Left.(*ast.BinaryExpr)
	if eq.Op != token.Eq {
		t.Fatalf("expected == under &&, got %s", eq.Op)
	}
	shl := eq.Left.(*ast.BinaryExpr)
	if shl.Op != token.Shl {
		t.Fatalf("expected << under ==, got %s", shl.Op)
	}
	add := shl.Left.(*ast.BinaryExpr)
	if add.Op != token.Plus {
		t.Fatalf("expected + under <<, got %s", add.Op)
	}
	if mul := add.Right.(*ast.BinaryExpr); mul.Op != token.Star {
		t.Fatalf("expected * as right operand of +, got %s", mul.Op)
	}
}

func TestParseControlFlow(t *testing.T) {
	input := `
if (a > 1) { b = 1; } else if (a > 0) b = 2; else { b = 3; }
while (i < 10) { i++; if (i == 5) break; }
for (var i = 0; i < 3; i += 1) { continue; }
for (v in [1, 2, 3]) print(v);
`
	prog := parse(t, input)
	if len(prog.Stmts) != 4 {
		t.Fatalf("expected 4 statements, got %d", len(prog.Stmts))
	}
	ifs := prog.Stmts[0].(*ast.IfStmt)
	if len(ifs.Branches) != 2 || ifs.Else == nil {
		t.Fatalf("expected if/else if/else, got %d branches", len(ifs.Branches))
	}
	forStmt := prog.Stmts[2].(*ast.ForStmt)
	if forStmt.Init == nil || forStmt.Cond == nil || forStmt.Post == nil {
		t.Fatalf("expected all for clauses, got %#v", forStmt)
	}
	forIn := prog.Stmts[3].(*ast.ForInStmt)
	if forIn.Var.Name != "v" {
		t.Fatalf("expected for-in over v, got %s", forIn.Var.Name)
	}
}

func TestParseTryCatchFinally(t *testing.T) {
	input := `try { throw 42; } catch (String s) { print(s); } catch (e) { print(e); } finally { done = true; }`
	prog := parse(t, input)
	try := prog.Stmts[0].(*ast.TryStmt)
	if len(try.Catches) != 2 {
		t.Fatalf("expected 2 catch clauses, got %d", len(try.Catches))
	}
	if try.Catches[0].Type == nil || try.Catches[0].Type.Name != "String" {
		t.Fatalf("expected typed catch String, got %#v", try.Catches[0].Type)
	}
	if try.Catches[1].Type != nil || try.Catches[1].Var.Name != "e" {
		t.Fatalf("expected untyped catch e, got %#v", try.Catches[1])
	}
	if try.Finally == nil {
		t.Fatalf("expected finally block")
	}
}

func TestParseThreads(t *testing.T) {
	input := `spawn worker[2] { critical { counter++; } } wait worker; spawn { print(1); }`
	prog := parse(t, input)
	spawn := prog.Stmts[0].(*ast.SpawnStmt)
	if spawn.Name == nil || spawn.Name.Name != "worker" || spawn.Size == nil {
		t.Fatalf("unexpected spawn %#v", spawn)
	}
	if _, ok := spawn.Body.Stmts[0].(*ast.CriticalStmt); !ok {
		t.Fatalf("expected critical block, got %T", spawn.Body.Stmts[0])
	}
	if w := prog.Stmts[1].(*ast.WaitStmt); w.Name.Name != "worker" {
		t.Fatalf("expected wait worker, got %s", w.Name.Name)
	}
	if anon := prog.Stmts[2].(*ast.SpawnStmt); anon.Name != nil {
		t.Fatalf("expected anonymous spawn")
	}
}

func TestParseMethodsAndIndex(t *testing.T) {
	prog := parse(t, `a = new Map(); a.set("k", [1, 2][0]); Crypto.sha3("x"); b[1] = 5; x = -y++;`)
	if _, ok := prog.Stmts[0].(*ast.ExprStmt).X.(*ast.AssignExpr).Value.(*ast.NewExpr); !ok {
		t.Fatalf("expected new expression")
	}
	mc := prog.Stmts[1].(*ast.ExprStmt).X.(*ast.MethodCallExpr)
	if mc.Method.Name != "set" || len(mc.Args) != 2 {
		t.Fatalf("unexpected method call %#v", mc)
	}
	if _, ok := mc.Args[1].(*ast.IndexExpr); !ok {
		t.Fatalf("expected index expression argument, got %T", mc.Args[1])
	}
	set := prog.Stmts[3].(*ast.ExprStmt).X.(*ast.AssignExpr)
	if _, ok := set.Target.(*ast.IndexExpr); !ok {
		t.Fatalf("expected index target, got %T", set.Target)
	}
	neg := prog.Stmts[4].(*ast.ExprStmt).X.(*ast.AssignExpr).Value.(*ast.UnaryExpr)
	if inc, ok := neg.X.(*ast.IncDecExpr); !ok || inc.Prefix {
		t.Fatalf("expected postfix increment under negation, got %#v", neg.X)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"1 = 2;", "invalid assignment target"},
		{"var = 3;", "expected Ident"},
		{"try { }", "try requires at least one catch"},
		{"a.b;", "expected '(' after method name b"},
		{"function f(a = 1, b) {}", "without default follows"},
	}
	for _, tt := range tests {
		p := parser.New(lexer.New(tt.input))
		p.ParseProgram()
		errs := p.Errors()
		if len(errs) == 0 {
			t.Fatalf("%q: expected an error", tt.input)
		}
		if !strings.Contains(errs[0], tt.want) {
			t.Fatalf("%q: expected %q in first error, got %v", tt.input, tt.want, errs)
		}
	}
}

func TestDump(t *testing.T) {
	prog := parse(t, "x = 1 + 2;")
	out := ast.Dump(prog)
	for _, want := range []string{"Program", "Assign =", "Binary +", "Int 1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in dump:\n%s", want, out)
		}
	}
}
