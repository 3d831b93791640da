package vm_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"clever/internal/diag"
	"clever/internal/runtime"
	"clever/internal/vm"
)

func TestThreads_CriticalCounter(t *testing.T) {
	src := `
var counter = 0;
spawn workers[2] {
    var i = 0;
    while (i < 1000) {
        critical { counter = counter + 1; }
        i++;
    }
}
wait workers;
print(counter);
`
	mustRun(t, src, "2000\n")
}

func TestThreads_PrivateLocals(t *testing.T) {
	src := `
var total = 0;
spawn adders[4] {
    var mine = 0;
    for (var k = 0; k < 10; k++) { mine += 1; }
    critical { total += mine; }
}
wait adders;
print(total);
`
	mustRun(t, src, "40\n")
}

func TestThreads_HaltJoinsUnwaitedBlocks(t *testing.T) {
	src := `
var done = 0;
spawn [3] { critical { done++; } }
`
	mustRun(t, src, "")
}

func TestThreads_WaitTwiceIsNoop(t *testing.T) {
	src := `
var n = 0;
spawn w { critical { n++; } }
wait w;
wait w;
print(n);
`
	mustRun(t, src, "1\n")
}

func TestThreads_CatchInsideThread(t *testing.T) {
	src := `
var caught = 0;
spawn w[2] {
    try { throw "boom"; } catch (e) { critical { caught++; } }
}
wait w;
print(caught);
`
	mustRun(t, src, "2\n")
}

func TestThreads_FailureSurfacesAtWait(t *testing.T) {
	src := `
spawn bad[2] { throw "oops"; }
wait bad;
print("unreachable");
`
	out, err := run(t, src)
	var fe *diag.FatalError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FatalError, got %v", err)
	}
	var ue *diag.UncaughtError
	if !errors.As(err, &ue) || ue.Value != "oops" {
		t.Fatalf("expected uncaught cause, got %v", err)
	}
	if out != "" {
		t.Fatalf("output = %q", out)
	}
}

func TestThreads_InvalidCount(t *testing.T) {
	src := `
var n = 0;
try { spawn w[n] { print("x"); } } catch (ResourceError e) { print("bad count"); }
`
	mustRun(t, src, "bad count\n")
}

func TestThreads_ReturnJoinsSpawnedThreads(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"function returns without wait", `
var out = 0;
function f(x) {
    var local = x * 2;
    spawn w[3] {
        var i = 0;
        while (i < 500) { i++; }
        critical { out += local; }
    }
    return local;
}
print(f(5));
print(f(7));
print(out);
`, "10\n14\n72\n"},
		{"thread body ends without wait", `
var out = 0;
spawn outer {
    var v = 3;
    spawn inner[2] { critical { out += v; } }
}
wait outer;
print(out);
`, "6\n"},
		{"exception unwinds the spawning frame", `
var out = 0;
function g() {
    var v = 4;
    spawn w { critical { out += v; } }
    throw "stop";
}
try { g(); } catch (e) { print(out); }
`, "4\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mustRun(t, tt.src, tt.want)
		})
	}
}

// mustRunWithin is mustRun with a deadline for programs that could deadlock.
func mustRunWithin(t *testing.T, src, want string, d time.Duration) {
	t.Helper()
	reg := runtime.MustRegistry()
	mod := compile(t, reg, src)
	defer mod.Release()
	var out bytes.Buffer
	machine := vm.NewVM(mod, reg, runtime.NewHost(&out, nil), vm.DefaultConfig())
	done := make(chan error, 1)
	go func() { done <- machine.Run(context.Background()) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run error: %v\noutput: %q", err, out.String())
		}
		if out.String() != want {
			t.Fatalf("output = %q, want %q", out.String(), want)
		}
	case <-time.After(d):
		t.Fatalf("program did not finish within %s", d)
	}
}

func TestThreads_CriticalReleasedOnEarlyExit(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"return", `
var n = 0;
function f() { critical { return 1; } }
print(f());
spawn w { critical { n++; } }
wait w;
print(n);
`, "1\n1\n"},
		{"nested return", `
var n = 0;
function h() { critical { critical { return 2; } } }
print(h());
spawn w[2] { critical { n++; } }
wait w;
print(n);
`, "2\n2\n"},
		{"throw", `
var n = 0;
try { critical { throw "x"; } } catch (e) { print("caught"); }
spawn w { critical { n++; } }
wait w;
critical { n++; }
print(n);
`, "caught\n2\n"},
		{"throw through a call", `
var n = 0;
function g() { critical { throw 1; } }
spawn w[2] { try { g(); } catch (e) { critical { n++; } } }
wait w;
print(n);
`, "2\n"},
		{"break", `
var n = 0;
while (true) { critical { break; } }
spawn w[2] { critical { n++; } }
wait w;
print(n);
`, "2\n"},
		{"continue", `
var n = 0;
for (var i = 0; i < 3; i++) { critical { continue; } }
spawn w { critical { n++; } }
wait w;
critical { n++; }
print(n);
`, "2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mustRunWithin(t, tt.src, tt.want, 10*time.Second)
		})
	}
}
