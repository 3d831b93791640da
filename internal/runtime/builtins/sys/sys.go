package sys

import (
	"os"
	"time"

	"github.com/google/uuid"

	"clever/internal/diag"
	"clever/internal/runtime/builtins"
	"clever/internal/value"
)

func init() {
	builtins.Register(builtins.Module{Name: "sys", Install: install})
}

// argvHost is implemented by hosts that carry script arguments.
type argvHost interface {
	Args() []string
}

func install(reg *value.Registry) error {
	t := value.NewType("Sys", nil)
	t.DefStatic("time", func(c *value.Call) error {
		c.Return(c.Reg.Int(time.Now().Unix()))
		return nil
	}, 0, 0)
	t.DefStatic("nanotime", func(c *value.Call) error {
		c.Return(c.Reg.Int(time.Now().UTC().UnixNano()))
		return nil
	}, 0, 0)
	t.DefStatic("sleep", func(c *value.Call) error {
		ms, err := c.IntArg(0)
		if err != nil {
			return err
		}
		if ms < 0 {
			return diag.TypeErrorf("Sys.sleep expects non-negative milliseconds, got %d", ms)
		}
		d := time.Duration(ms) * time.Millisecond
		if c.Host == nil || c.Host.Context() == nil {
			time.Sleep(d)
			return nil
		}
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
			return nil
		case <-c.Host.Context().Done():
			return c.Host.Context().Err()
		}
	}, 1, 1)
	t.DefStatic("format", func(c *value.Call) error {
		ts, err := c.IntArg(0)
		if err != nil {
			return err
		}
		layout, err := c.OptString(1, time.RFC3339)
		if err != nil {
			return err
		}
		c.Return(c.Reg.String(time.Unix(ts, 0).UTC().Format(layout)))
		return nil
	}, 1, 2)
	t.DefStatic("parse", func(c *value.Call) error {
		text, err := c.StringArg(0)
		if err != nil {
			return err
		}
		layout, err := c.OptString(1, time.RFC3339)
		if err != nil {
			return err
		}
		ts, err := time.Parse(layout, text)
		if err != nil {
			return diag.TypeErrorf("%v", err)
		}
		c.Return(c.Reg.Int(ts.UTC().Unix()))
		return nil
	}, 1, 2)
	t.DefStatic("env", func(c *value.Call) error {
		name, err := c.StringArg(0)
		if err != nil {
			return err
		}
		v, ok := os.LookupEnv(name)
		if !ok {
			def := c.Arg(1).Clone()
			c.Return(def)
			return nil
		}
		c.Return(c.Reg.String(v))
		return nil
	}, 1, 2)
	t.DefStatic("uuid", func(c *value.Call) error {
		c.Return(c.Reg.String(uuid.NewString()))
		return nil
	}, 0, 0)
	t.DefStatic("threadId", func(c *value.Call) error {
		c.Return(c.Reg.String(c.Thread))
		return nil
	}, 0, 0)
	t.DefStatic("argv", func(c *value.Call) error {
		var args []string
		if h, ok := c.Host.(argvHost); ok {
			args = h.Args()
		}
		elems := make([]value.Value, len(args))
		for i, a := range args {
			elems[i] = c.Reg.String(a)
		}
		c.Return(c.Reg.NewVector(elems))
		return nil
	}, 0, 0)
	return reg.Register(t)
}
