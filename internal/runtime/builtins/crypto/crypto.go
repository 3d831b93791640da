package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"

	"clever/internal/diag"
	"clever/internal/runtime/builtins"
	"clever/internal/value"
)

func init() {
	builtins.Register(builtins.Module{Name: "crypto", Install: install})
}

func install(reg *value.Registry) error {
	t := value.NewType("Crypto", nil)
	t.DefStatic("sha256", digest(func(b []byte) []byte { s := sha256.Sum256(b); return s[:] }), 1, 1)
	t.DefStatic("sha3", digest(func(b []byte) []byte { s := sha3.Sum256(b); return s[:] }), 1, 1)
	t.DefStatic("blake2b", digest(func(b []byte) []byte { s := blake2b.Sum256(b); return s[:] }), 1, 1)
	t.DefStatic("hashPassword", func(c *value.Call) error {
		pw, err := c.StringArg(0)
		if err != nil {
			return err
		}
		cost, err := c.OptInt(1, int64(bcrypt.DefaultCost))
		if err != nil {
			return err
		}
		if cost < int64(bcrypt.MinCost) || cost > int64(bcrypt.MaxCost) {
			return diag.TypeErrorf("bcrypt cost must be in [%d, %d], got %d", bcrypt.MinCost, bcrypt.MaxCost, cost)
		}
		h, err := bcrypt.GenerateFromPassword([]byte(pw), int(cost))
		if err != nil {
			return diag.TypeErrorf("%v", err)
		}
		c.Return(c.Reg.String(string(h)))
		return nil
	}, 1, 2)
	t.DefStatic("verifyPassword", func(c *value.Call) error {
		pw, err := c.StringArg(0)
		if err != nil {
			return err
		}
		hash, err := c.StringArg(1)
		if err != nil {
			return err
		}
		err = bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw))
		switch {
		case err == nil:
			c.Return(c.Reg.Bool(true))
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			c.Return(c.Reg.Bool(false))
		default:
			return diag.TypeErrorf("%v", err)
		}
		return nil
	}, 2, 2)
	return reg.Register(t)
}

// digest returns a native hashing its String argument to lowercase hex.
func digest(sum func([]byte) []byte) value.NativeFunc {
	return func(c *value.Call) error {
		s, err := c.StringArg(0)
		if err != nil {
			return err
		}
		c.Return(c.Reg.String(hex.EncodeToString(sum([]byte(s)))))
		return nil
	}
}
