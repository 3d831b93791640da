package fs

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"clever/internal/diag"
	"clever/internal/runtime/builtins"
	"clever/internal/value"
)

func init() {
	builtins.Register(builtins.Module{Name: "fs", Install: install})
}

// file is the payload of File objects. The reader is created lazily so that
// write-only files never buffer.
type file struct {
	mu     sync.Mutex
	f      *os.File
	r      *bufio.Reader
	path   string
	closed bool
}

func (f *file) reader() *bufio.Reader {
	if f.r == nil {
		f.r = bufio.NewReader(f.f)
	}
	return f.r
}

func (f *file) close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	return f.f.Close()
}

func install(reg *value.Registry) error {
	t := value.NewType("File", nil)
	t.Alloc = func(c *value.Call) (any, error) {
		path, err := c.StringArg(0)
		if err != nil {
			return nil, err
		}
		mode, err := c.OptString(1, "r")
		if err != nil {
			return nil, err
		}
		flags, err := parseOpenMode(mode)
		if err != nil {
			return nil, diag.TypeErrorf("%v", err)
		}
		full := builtins.Path(c, path)
		f, err := os.OpenFile(full, flags, 0o666)
		if err != nil {
			return nil, diag.ResourceErrorf("%v", err)
		}
		return &file{f: f, path: full}, nil
	}
	t.Dtor = func(o *value.Object) {
		if f, ok := o.Data.(*file); ok {
			f.close()
		}
	}
	t.Repr = func(v *value.Value) string {
		if f, ok := value.DataOf[*file](v); ok {
			return "<File " + f.path + ">"
		}
		return "<File>"
	}

	t.Def("readLine", withFile(func(c *value.Call, f *file) error {
		line, err := f.reader().ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return diag.ResourceErrorf("%v", err)
		}
		c.Return(c.Reg.String(strings.TrimRight(line, "\r\n")))
		return nil
	}), 0, 0)
	t.Def("readAll", withFile(func(c *value.Call, f *file) error {
		data, err := io.ReadAll(f.reader())
		if err != nil {
			return diag.ResourceErrorf("%v", err)
		}
		c.Return(c.Reg.String(string(data)))
		return nil
	}), 0, 0)
	t.Def("write", withFile(func(c *value.Call, f *file) error {
		var b strings.Builder
		for _, a := range c.Args {
			b.WriteString(a.String())
		}
		n, err := f.f.WriteString(b.String())
		if err != nil {
			return diag.ResourceErrorf("%v", err)
		}
		c.Return(c.Reg.Int(int64(n)))
		return nil
	}), 1, -1)
	t.Def("eof", withFile(func(c *value.Call, f *file) error {
		_, err := f.reader().Peek(1)
		c.Return(c.Reg.Bool(errors.Is(err, io.EOF)))
		return nil
	}), 0, 0)
	t.Def("path", withFile(func(c *value.Call, f *file) error {
		c.Return(c.Reg.String(f.path))
		return nil
	}), 0, 0)
	t.Def("close", func(c *value.Call) error {
		f, err := value.ThisData[*file](c)
		if err != nil {
			return err
		}
		if err := f.close(); err != nil {
			return diag.ResourceErrorf("%v", err)
		}
		return nil
	}, 0, 0)

	t.DefStatic("exists", func(c *value.Call) error {
		path, err := c.StringArg(0)
		if err != nil {
			return err
		}
		_, err = os.Stat(builtins.Path(c, path))
		switch {
		case err == nil:
			c.Return(c.Reg.Bool(true))
		case errors.Is(err, os.ErrNotExist):
			c.Return(c.Reg.Bool(false))
		default:
			return diag.ResourceErrorf("%v", err)
		}
		return nil
	}, 1, 1)
	t.DefStatic("remove", pathOp(os.Remove), 1, 1)
	t.DefStatic("mkdir", pathOp(func(p string) error { return os.Mkdir(p, 0o755) }), 1, 1)
	t.DefStatic("root", func(c *value.Call) error {
		root := ""
		if c.Host != nil {
			root = c.Host.Root()
		}
		c.Return(c.Reg.String(root))
		return nil
	}, 0, 0)

	return reg.Register(t)
}

// withFile wraps a method body that needs an open file.
func withFile(fn func(c *value.Call, f *file) error) value.NativeFunc {
	return func(c *value.Call) error {
		f, err := value.ThisData[*file](c)
		if err != nil {
			return err
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.closed {
			return diag.ResourceErrorf("%s: file %s is closed", c.Name, f.path)
		}
		return fn(c, f)
	}
}

func pathOp(op func(string) error) value.NativeFunc {
	return func(c *value.Call) error {
		path, err := c.StringArg(0)
		if err != nil {
			return err
		}
		if err := op(builtins.Path(c, path)); err != nil {
			return diag.ResourceErrorf("%v", err)
		}
		return nil
	}
}

func parseOpenMode(mode string) (int, error) {
	switch mode {
	case "r":
		return os.O_RDONLY, nil
	case "w":
		return os.O_CREATE | os.O_TRUNC | os.O_WRONLY, nil
	case "a":
		return os.O_CREATE | os.O_APPEND | os.O_WRONLY, nil
	case "r+":
		return os.O_RDWR, nil
	case "w+":
		return os.O_CREATE | os.O_TRUNC | os.O_RDWR, nil
	case "a+":
		return os.O_CREATE | os.O_APPEND | os.O_RDWR, nil
	case "rw":
		return os.O_CREATE | os.O_RDWR, nil
	default:
		return 0, fmt.Errorf("invalid open mode %q", mode)
	}
}
