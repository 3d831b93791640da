package meta

import (
	"strings"

	"clever/internal/diag"
	"clever/internal/runtime/builtins"
	"clever/internal/value"
)

func init() {
	builtins.Register(builtins.Module{Name: "meta", Install: install})
}

func install(reg *value.Registry) error {
	defs := []struct {
		name     string
		fn       value.NativeFunc
		min, max int
	}{
		{"typeof", typeOf, 1, 1},
		{"len", length, 1, 1},
		{"assert", assert, 1, 2},
		{"toString", toString, 1, 1},
		{"isInstance", isInstance, 2, 2},
	}
	for _, d := range defs {
		if err := reg.DefNative(d.name, d.fn, d.min, d.max); err != nil {
			return err
		}
	}
	return nil
}

func typeOf(c *value.Call) error {
	v, err := c.Arg(0).Deref()
	if err != nil {
		return err
	}
	c.Return(c.Reg.String(v.TypeName()))
	return nil
}

func length(c *value.Call) error {
	v, err := c.Arg(0).Deref()
	if err != nil {
		return err
	}
	if m := v.Map(); m != nil {
		c.Return(c.Reg.Int(int64(m.Len())))
		return nil
	}
	n, err := c.Reg.Size(v)
	if err != nil {
		return diag.TypeErrorf("len: %s has no length", v.TypeName())
	}
	c.Return(c.Reg.Int(int64(n)))
	return nil
}

func assert(c *value.Call) error {
	if c.Arg(0).Truthy() {
		return nil
	}
	msg, err := c.OptString(1, "assertion failed")
	if err != nil {
		return err
	}
	return diag.TypeErrorf("%s", msg)
}

func toString(c *value.Call) error {
	c.Return(c.Reg.String(c.Arg(0).String()))
	return nil
}

// isInstance(v, "Name") tests v's type against a registered type name,
// following super types.
func isInstance(c *value.Call) error {
	name, err := c.StringArg(1)
	if err != nil {
		return err
	}
	want := c.Reg.Lookup(strings.TrimSpace(name))
	if want == nil {
		return diag.TypeErrorf("isInstance: unknown type %s", name)
	}
	got := c.Arg(0).Type()
	c.Return(c.Reg.Bool(got != nil && got.IsConvertibleTo(want)))
	return nil
}
