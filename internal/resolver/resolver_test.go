package resolver_test

import (
	"strings"
	"testing"

	"clever/internal/ast"
	"clever/internal/lexer"
	"clever/internal/parser"
	"clever/internal/resolver"
	"clever/internal/scope"
	"clever/internal/value"
)

func parse(t *testing.T, src string) *ast.Program {
	t.Helper()
	p := parser.New(lexer.New(src))
	prog := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		t.Fatalf("parse errors: %v", errs)
	}
	return prog
}

func newRegistry() *value.Registry {
	reg := value.NewRegistry()
	_ = reg.DefNative("print", func(c *value.Call) error { return nil }, 1, -1)
	_ = reg.DefConst("PI", reg.Double(3.14))
	reg.Freeze()
	return reg
}

func resolve(t *testing.T, src string) *resolver.Info {
	t.Helper()
	info, errs := resolver.Resolve("test.clv", parse(t, src), newRegistry())
	if len(errs) > 0 {
		t.Fatalf("unexpected resolve errors: %v", errs)
	}
	return info
}

func TestShadowing(t *testing.T) {
	prog := parse(t, `var x = 1; { var x = 2; print(x); } print(x);`)
	info, errs := resolver.Resolve("test.clv", prog, newRegistry())
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	outerDecl := prog.Stmts[0].(*ast.VarDecl)
	block := prog.Stmts[1].(*ast.BlockStmt)
	innerDecl := block.Stmts[0].(*ast.VarDecl)
	innerUse := block.Stmts[1].(*ast.ExprStmt).X.(*ast.CallExpr).Args[0].(*ast.Ident)
	outerUse := prog.Stmts[2].(*ast.ExprStmt).X.(*ast.CallExpr).Args[0].(*ast.Ident)

	if info.Symbol(innerUse) != info.Symbol(innerDecl.Name) {
		t.Fatalf("inner use must resolve to the inner declaration")
	}
	if info.Symbol(outerUse) != info.Symbol(outerDecl.Name) {
		t.Fatalf("outer use must not see the inner declaration")
	}
	if info.Symbol(innerUse).Scope == info.Symbol(outerUse).Scope {
		t.Fatalf("declarations must live in different scopes")
	}
}

func TestScopeIDsArePreOrder(t *testing.T) {
	info := resolve(t, `var a = 1; if (a) { var b = 2; } else { var c = 3; }`)
	for i, s := range info.Scopes {
		if s.ID() != i {
			t.Fatalf("scope %d has id %d", i, s.ID())
		}
	}
	if info.Scopes[0] != info.Root || info.Scopes[1] != info.Unit {
		t.Fatalf("root and unit scopes must come first")
	}
}

func TestFirstAssignmentDeclares(t *testing.T) {
	prog := parse(t, `x = 1; x = x + 1;`)
	info, errs := resolver.Resolve("test.clv", prog, newRegistry())
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	first := prog.Stmts[0].(*ast.ExprStmt).X.(*ast.AssignExpr).Target.(*ast.Ident)
	second := prog.Stmts[1].(*ast.ExprStmt).X.(*ast.AssignExpr).Target.(*ast.Ident)
	if info.Symbol(first) == nil || info.Symbol(first) != info.Symbol(second) {
		t.Fatalf("both assignments must bind the same symbol")
	}
	if info.Unit.Size() != 1 {
		t.Fatalf("expected one slot in the unit scope, got %d", info.Unit.Size())
	}
}

func TestFunctionsAreHoisted(t *testing.T) {
	info := resolve(t, `
print(f(1));
function f(a, b = 2) {
	var c = a + b;
	{ var d = c; }
	return c;
}`)
	if len(info.Funcs) != 1 {
		t.Fatalf("expected 1 function, got %d", len(info.Funcs))
	}
	fi := info.Funcs[0]
	if fi.Fn.NumParams != 2 || fi.Required() != 1 {
		t.Fatalf("unexpected signature: %d params, %d required", fi.Fn.NumParams, fi.Required())
	}
	if fi.Fn.ParamScope != fi.Scope.ID() {
		t.Fatalf("param scope id mismatch")
	}
	// parameter scope, body block, inner block
	if len(fi.Fn.Scopes) != 3 {
		t.Fatalf("expected 3 owned scopes, got %v", fi.Fn.Scopes)
	}
	for _, id := range fi.Fn.Scopes {
		if info.Scopes[id].Owner != fi.Index {
			t.Fatalf("scope %d not owned by f", id)
		}
	}
	if info.Unit.Owner != -1 {
		t.Fatalf("top-level scope must not be owned")
	}
}

func TestThreadBlocks(t *testing.T) {
	info := resolve(t, `var n = 0; spawn worker[2] { var i = 1; critical { n = n + i; } } wait worker;`)
	if len(info.Threads) != 1 {
		t.Fatalf("expected 1 thread block, got %d", len(info.Threads))
	}
	ti := info.ThreadNamed("worker")
	if ti == nil || ti.ID != 0 || ti.Scope == nil {
		t.Fatalf("unexpected thread info %#v", ti)
	}
	if ti.Scope.LookupLocal("i") == nil {
		t.Fatalf("thread body scope must hold its locals")
	}
}

func TestTypesAndStaticCalls(t *testing.T) {
	prog := parse(t, `var m = new Map(); try { m.get("x"); } catch (TypeError e) { print(e); }`)
	info, errs := resolver.Resolve("test.clv", prog, newRegistry())
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	decl := prog.Stmts[0].(*ast.VarDecl)
	typ := decl.Value.(*ast.NewExpr).Type
	if sym := info.Symbol(typ); sym == nil || sym.Kind != scope.SymType {
		t.Fatalf("new must bind a type symbol, got %#v", sym)
	}
}

func TestCatchVariableScope(t *testing.T) {
	prog := parse(t, `var e = 0; try { throw 1; } catch (TypeError e) { print(e); } catch (e) { print(e); } print(e);`)
	info, errs := resolver.Resolve("test.clv", prog, newRegistry())
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	outer := prog.Stmts[0].(*ast.VarDecl)
	try := prog.Stmts[1].(*ast.TryStmt)
	if len(try.Catches) != 2 {
		t.Fatalf("expected 2 catch clauses, got %d", len(try.Catches))
	}
	if sym := info.Symbol(try.Catches[0].Type); sym == nil || sym.Kind != scope.SymType {
		t.Fatalf("catch filter must bind a type symbol, got %#v", sym)
	}
	for i, c := range try.Catches {
		use := c.Body.Stmts[0].(*ast.ExprStmt).X.(*ast.CallExpr).Args[0].(*ast.Ident)
		if info.Symbol(use) != info.Symbol(c.Var) {
			t.Fatalf("catch %d: body must see its own variable", i)
		}
		if info.Symbol(c.Var) == info.Symbol(outer.Name) {
			t.Fatalf("catch %d: variable must not reuse the outer symbol", i)
		}
	}
	after := prog.Stmts[2].(*ast.ExprStmt).X.(*ast.CallExpr).Args[0].(*ast.Ident)
	if info.Symbol(after) != info.Symbol(outer.Name) {
		t.Fatalf("use after try must resolve to the outer declaration")
	}
}

func TestErrors(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{`print(y);`, "undefined symbol y"},
		{`y += 1;`, "undefined symbol y"},
		{`var a = 1; var a = 2;`, "redefinition of a"},
		{`function f() {} f = 1;`, "cannot assign to function f"},
		{`PI = 3;`, "cannot assign to constant PI"},
		{`break;`, "break outside loop"},
		{`while (true) { function g() { continue; } }`, "continue outside loop"},
		{`return 1;`, "return outside function"},
		{`function f() { spawn { return 1; } }`, "return inside thread block"},
		{`wait nobody;`, "wait on unknown thread block nobody"},
		{`function f(a) {} f(1, 2);`, "f expects 1 argument(s), got 2"},
		{`function f(a, b = 1) {} f();`, "f expects 1 to 2 argument(s), got 0"},
		{`var d = 1; function f(a = d) {}`, "must be a literal"},
		{`var x = new Nothing();`, "undefined type Nothing"},
		{`var x = new print();`, "print is not a type"},
		{`var x = Int;`, "type Int used as a value"},
		{`Map.size();`, "Map.size is not a static method"},
		{`try {} catch (Nope e) {}`, "undefined type Nope"},
		{`print();`, "print expects at least 1 argument(s), got 0"},
		{`spawn t {} spawn t {}`, "redefinition of thread block t"},
	}
	for _, tt := range tests {
		_, errs := resolver.Resolve("test.clv", parse(t, tt.src), newRegistry())
		if len(errs) == 0 {
			t.Fatalf("%s: expected error containing %q", tt.src, tt.want)
		}
		if !strings.Contains(errs[0].Error(), tt.want) {
			t.Fatalf("%s: expected %q, got %q", tt.src, tt.want, errs[0].Error())
		}
		if !strings.HasPrefix(errs[0].Error(), "test.clv:1:") {
			t.Fatalf("%s: expected a located error, got %q", tt.src, errs[0].Error())
		}
	}
}
