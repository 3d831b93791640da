// Package db exposes database/sql to scripts through the Db type. The sqlite
// and postgres drivers are linked in.
package db

import (
	"context"
	"database/sql"
	"sync"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"clever/internal/diag"
	"clever/internal/runtime/builtins"
	"clever/internal/value"
)

func init() {
	builtins.Register(builtins.Module{Name: "db", Install: install})
}

var drivers = map[string]string{
	"sqlite":   "sqlite",
	"sqlite3":  "sqlite",
	"postgres": "postgres",
	"pg":       "postgres",
}

type conn struct {
	mu     sync.Mutex
	db     *sql.DB
	driver string
}

func (c *conn) get() (*sql.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return nil, diag.ResourceErrorf("database is closed")
	}
	return c.db, nil
}

func (c *conn) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

func install(reg *value.Registry) error {
	t := value.NewType("Db", nil)
	t.Alloc = func(c *value.Call) (any, error) {
		name, err := c.StringArg(0)
		if err != nil {
			return nil, err
		}
		dsn, err := c.StringArg(1)
		if err != nil {
			return nil, err
		}
		driver, ok := drivers[name]
		if !ok {
			return nil, diag.TypeErrorf("unknown database driver %q", name)
		}
		if driver == "sqlite" && dsn != ":memory:" {
			dsn = builtins.Path(c, dsn)
		}
		db, err := sql.Open(driver, dsn)
		if err != nil {
			return nil, diag.ResourceErrorf("%v", err)
		}
		if driver == "sqlite" {
			// An in-memory database lives as long as its only connection.
			db.SetMaxOpenConns(1)
		}
		if err := db.PingContext(ctxOf(c)); err != nil {
			db.Close()
			return nil, diag.ResourceErrorf("%v", err)
		}
		return &conn{db: db, driver: driver}, nil
	}
	t.Dtor = func(o *value.Object) {
		if c, ok := o.Data.(*conn); ok {
			c.close()
		}
	}
	t.Repr = func(v *value.Value) string {
		if c, ok := value.DataOf[*conn](v); ok {
			return "<Db " + c.driver + ">"
		}
		return "<Db>"
	}

	t.Def("exec", withDB(func(c *value.Call, db *sql.DB, query string, args []any) error {
		res, err := db.ExecContext(ctxOf(c), query, args...)
		if err != nil {
			return diag.ResourceErrorf("%v", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			n = 0
		}
		c.Return(c.Reg.Int(n))
		return nil
	}), 1, -1)
	t.Def("query", withDB(func(c *value.Call, db *sql.DB, query string, args []any) error {
		rows, err := db.QueryContext(ctxOf(c), query, args...)
		if err != nil {
			return diag.ResourceErrorf("%v", err)
		}
		defer rows.Close()
		cols, err := rows.Columns()
		if err != nil {
			return diag.ResourceErrorf("%v", err)
		}
		var out []any
		for rows.Next() {
			dest := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range dest {
				ptrs[i] = &dest[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				return diag.ResourceErrorf("%v", err)
			}
			row := make(map[string]any, len(cols))
			for i, col := range cols {
				row[col] = dest[i]
			}
			out = append(out, row)
		}
		if err := rows.Err(); err != nil {
			return diag.ResourceErrorf("%v", err)
		}
		if out == nil {
			out = []any{}
		}
		v, err := builtins.FromNative(c.Reg, out)
		if err != nil {
			return err
		}
		c.Return(v)
		return nil
	}), 1, -1)
	t.Def("close", func(c *value.Call) error {
		cn, err := value.ThisData[*conn](c)
		if err != nil {
			return err
		}
		if err := cn.close(); err != nil {
			return diag.ResourceErrorf("%v", err)
		}
		return nil
	}, 0, 0)
	return reg.Register(t)
}

// withDB reads the statement and its bind arguments.
func withDB(fn func(c *value.Call, db *sql.DB, query string, args []any) error) value.NativeFunc {
	return func(c *value.Call) error {
		cn, err := value.ThisData[*conn](c)
		if err != nil {
			return err
		}
		db, err := cn.get()
		if err != nil {
			return err
		}
		query, err := c.StringArg(0)
		if err != nil {
			return err
		}
		args := make([]any, 0, c.NumArgs()-1)
		for i := 1; i < c.NumArgs(); i++ {
			x, err := builtins.ToNative(c.Arg(i))
			if err != nil {
				return err
			}
			args = append(args, x)
		}
		return fn(c, db, query, args)
	}
}

func ctxOf(c *value.Call) context.Context {
	if c.Host != nil && c.Host.Context() != nil {
		return c.Host.Context()
	}
	return context.Background()
}
