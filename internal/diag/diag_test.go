package diag

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"clever/internal/token"
)

func TestErrorFormats(t *testing.T) {
	pos := token.Position{Line: 3, Column: 7}
	tests := []struct {
		err  error
		want string
	}{
		{Errorf("a.clv", pos, "undefined symbol %s", "x"), "a.clv:3:7: error: undefined symbol x"},
		{Warningf("", pos, "unused"), "<input>:3:7: warning: unused"},
		{TypeErrorf("bad"), "TypeError: bad"},
		{&RuntimeError{Kind: ResourceError, Msg: "gone", File: "a.clv", Pos: pos}, "a.clv:3:7: ResourceError: gone"},
		{Fatalf("too deep"), "fatal: too deep"},
		{&FatalError{Msg: "thread block w failed", Cause: io.EOF}, "fatal: thread block w failed: EOF"},
		{&UncaughtError{Value: "42", Type: "Int", File: "a.clv", Pos: pos}, "a.clv:3:7: uncaught exception (Int): 42"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Fatalf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestAsRuntime(t *testing.T) {
	rt := ResourceErrorf("closed")
	if AsRuntime(fmt.Errorf("wrapped: %w", rt)) != rt {
		t.Fatalf("AsRuntime should unwrap an existing RuntimeError")
	}
	got := AsRuntime(io.ErrUnexpectedEOF)
	if got.Kind != ResourceError || got.Msg != io.ErrUnexpectedEOF.Error() {
		t.Fatalf("unexpected conversion %+v", got)
	}
}

func TestIsFatal(t *testing.T) {
	if !IsFatal(Fatalf("x")) || !IsFatal(&UncaughtError{}) {
		t.Fatalf("fatal and uncaught errors must be fatal")
	}
	if !IsFatal(&FatalError{Msg: "thread", Cause: &UncaughtError{}}) {
		t.Fatalf("wrapped fatal error must be fatal")
	}
	if IsFatal(TypeErrorf("x")) {
		t.Fatalf("runtime errors are catchable")
	}
	var fe *FatalError
	if !errors.As(fmt.Errorf("run: %w", Fatalf("x")), &fe) {
		t.Fatalf("FatalError should survive wrapping")
	}
}

func TestList(t *testing.T) {
	if (List{}).Err() != nil {
		t.Fatalf("empty list must be a nil error")
	}
	l := FromStrings("a.clv", []string{"1:5: expected ;", "no position"})
	if len(l) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(l))
	}
	var ce *CompileError
	if !errors.As(l[0], &ce) || ce.Pos.Line != 1 || ce.Pos.Column != 5 || ce.Msg != "expected ;" {
		t.Fatalf("unexpected first entry %v", l[0])
	}
	if !strings.Contains(l.Error(), "\n") {
		t.Fatalf("list error should put one entry per line: %q", l.Error())
	}
}

func TestPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	p.Print(List{Errorf("a.clv", token.Position{Line: 1, Column: 1}, "one"), Warningf("a.clv", token.Position{Line: 2, Column: 1}, "two")})
	want := "a.clv:1:1: error: one\na.clv:2:1: warning: two\n"
	if buf.String() != want {
		t.Fatalf("output = %q, want %q", buf.String(), want)
	}
}
