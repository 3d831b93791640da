// Package diag defines the error taxonomy shared by the compiler and the VM.
package diag

import (
	"errors"
	"fmt"
	"strings"

	"clever/internal/token"
)

// CompileError is a fatal compile-time diagnostic. Warnings share the type
// with Warning set and never abort compilation.
type CompileError struct {
	File    string
	Pos     token.Position
	Msg     string
	Warning bool
}

func (e *CompileError) Error() string {
	sev := "error"
	if e.Warning {
		sev = "warning"
	}
	return fmt.Sprintf("%s: %s: %s", location(e.File, e.Pos), sev, e.Msg)
}

func Errorf(file string, pos token.Position, format string, args ...interface{}) *CompileError {
	return &CompileError{File: file, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func Warningf(file string, pos token.Position, format string, args ...interface{}) *CompileError {
	return &CompileError{File: file, Pos: pos, Msg: fmt.Sprintf(format, args...), Warning: true}
}

// RuntimeKind classifies catchable run-time errors.
type RuntimeKind int

const (
	TypeError RuntimeKind = iota
	ResourceError
)

func (k RuntimeKind) String() string {
	if k == ResourceError {
		return "ResourceError"
	}
	return "TypeError"
}

// RuntimeError is raised inside the VM. Unless a handler is installed it
// terminates the running thread.
type RuntimeError struct {
	Kind RuntimeKind
	Msg  string
	File string
	Pos  token.Position
}

func (e *RuntimeError) Error() string {
	if e.Pos.Line == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %s", location(e.File, e.Pos), e.Kind, e.Msg)
}

func TypeErrorf(format string, args ...interface{}) *RuntimeError {
	return &RuntimeError{Kind: TypeError, Msg: fmt.Sprintf(format, args...)}
}

func ResourceErrorf(format string, args ...interface{}) *RuntimeError {
	return &RuntimeError{Kind: ResourceError, Msg: fmt.Sprintf(format, args...)}
}

// AsRuntime converts err into a RuntimeError, treating foreign errors as
// resource errors.
func AsRuntime(err error) *RuntimeError {
	var rt *RuntimeError
	if errors.As(err, &rt) {
		return rt
	}
	return &RuntimeError{Kind: ResourceError, Msg: err.Error()}
}

// FatalError halts the VM immediately; handlers are not consulted.
type FatalError struct {
	Msg   string
	File  string
	Pos   token.Position
	Cause error
}

func (e *FatalError) Error() string {
	msg := e.Msg
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	if e.Pos.Line == 0 {
		return "fatal: " + msg
	}
	return fmt.Sprintf("%s: fatal: %s", location(e.File, e.Pos), msg)
}

func (e *FatalError) Unwrap() error { return e.Cause }

func Fatalf(format string, args ...interface{}) *FatalError {
	return &FatalError{Msg: fmt.Sprintf(format, args...)}
}

// UncaughtError reports a thrown value that reached the bottom of a thread
// without meeting a handler.
type UncaughtError struct {
	Value string
	Type  string
	File  string
	Pos   token.Position
}

func (e *UncaughtError) Error() string {
	return fmt.Sprintf("%s: uncaught exception (%s): %s", location(e.File, e.Pos), e.Type, e.Value)
}

// IsFatal reports whether err must terminate the script with a failure.
func IsFatal(err error) bool {
	var fe *FatalError
	var ue *UncaughtError
	return errors.As(err, &fe) || errors.As(err, &ue)
}

// List collects diagnostics from one compilation unit.
type List []error

func (l List) Error() string {
	msgs := make([]string, len(l))
	for i, err := range l {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "\n")
}

// Err returns nil for an empty list.
func (l List) Err() error {
	if len(l) == 0 {
		return nil
	}
	return l
}

// FromStrings wraps the "line:col: msg" strings produced by the lexer and parser.
func FromStrings(file string, msgs []string) List {
	out := make(List, 0, len(msgs))
	for _, m := range msgs {
		pos, rest := splitPosition(m)
		out = append(out, &CompileError{File: file, Pos: pos, Msg: rest})
	}
	return out
}

func splitPosition(msg string) (token.Position, string) {
	var pos token.Position
	if n, _ := fmt.Sscanf(msg, "%d:%d:", &pos.Line, &pos.Column); n == 2 {
		if i := strings.Index(msg, ": "); i >= 0 {
			return pos, msg[i+2:]
		}
	}
	return token.Position{}, msg
}

func location(file string, pos token.Position) string {
	if file == "" {
		file = "<input>"
	}
	return fmt.Sprintf("%s:%d:%d", file, pos.Line, pos.Column)
}
