package value

import (
	"context"
	"io"

	"clever/internal/diag"
)

// Host exposes the embedding environment to native code.
type Host interface {
	Stdout() io.Writer
	ReadLine() (string, error)
	Context() context.Context
	// Root is the directory relative paths are resolved against.
	Root() string
}

// Call carries the arguments and result slot of a native invocation.
type Call struct {
	Name   string
	Args   []*Value
	Result *Value
	This   *Value // receiver for instance methods, nil otherwise
	Type   *Type  // type being constructed or statically called
	Reg    *Registry
	Host   Host
	Thread string
}

func (c *Call) NumArgs() int { return len(c.Args) }

func (c *Call) Arg(i int) *Value {
	if i < 0 || i >= len(c.Args) {
		return &Value{}
	}
	return c.Args[i]
}

// Return moves v into the result slot.
func (c *Call) Return(v Value) {
	c.Result.Set(v)
}

func (c *Call) argError(i int, want string) error {
	return diag.TypeErrorf("argument %d of %s must be %s, got %s", i+1, c.Name, want, c.Arg(i).TypeName())
}

func (c *Call) StringArg(i int) (string, error) {
	a := c.Arg(i)
	if a.Prim() != PrimString {
		return "", c.argError(i, "String")
	}
	return a.str, nil
}

func (c *Call) IntArg(i int) (int64, error) {
	a := c.Arg(i)
	if !a.IsIntegral() {
		return 0, c.argError(i, "Int")
	}
	return a.num, nil
}

func (c *Call) NumberArg(i int) (float64, error) {
	f, ok := c.Arg(i).Number()
	if !ok {
		return 0, c.argError(i, "a number")
	}
	return f, nil
}

func (c *Call) BoolArg(i int) (bool, error) {
	a := c.Arg(i)
	if a.Prim() != PrimBool {
		return false, c.argError(i, "Bool")
	}
	return a.num != 0, nil
}

// OptString returns def when argument i was not supplied.
func (c *Call) OptString(i int, def string) (string, error) {
	if i >= len(c.Args) {
		return def, nil
	}
	return c.StringArg(i)
}

func (c *Call) OptInt(i int, def int64) (int64, error) {
	if i >= len(c.Args) {
		return def, nil
	}
	return c.IntArg(i)
}

// ThisData extracts the receiver payload of an instance method.
func ThisData[T any](c *Call) (T, error) {
	var zero T
	if c.This == nil {
		return zero, diag.TypeErrorf("%s requires a receiver", c.Name)
	}
	d, ok := DataOf[T](c.This)
	if !ok {
		return zero, diag.TypeErrorf("%s called on %s", c.Name, c.This.TypeName())
	}
	return d, nil
}

func arityError(name string, m *Method, n int) error {
	switch {
	case m.MaxArgs == m.MinArgs:
		return diag.TypeErrorf("%s expects %d argument(s), got %d", name, m.MinArgs, n)
	case m.MaxArgs < 0:
		return diag.TypeErrorf("%s expects at least %d argument(s), got %d", name, m.MinArgs, n)
	default:
		return diag.TypeErrorf("%s expects %d to %d argument(s), got %d", name, m.MinArgs, m.MaxArgs, n)
	}
}

// CheckArity validates n arguments against m.
func (m *Method) CheckArity(owner string, n int) error {
	if m.Accepts(n) {
		return nil
	}
	return arityError(owner+"."+m.Name, m, n)
}
