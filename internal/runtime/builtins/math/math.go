package math

import (
	"math"

	"clever/internal/diag"
	"clever/internal/runtime/builtins"
	"clever/internal/value"
)

func init() {
	builtins.Register(builtins.Module{Name: "math", Install: install})
}

func install(reg *value.Registry) error {
	for name, fn := range map[string]func(float64) float64{
		"sqrt":  math.Sqrt,
		"floor": math.Floor,
		"ceil":  math.Ceil,
		"sin":   math.Sin,
		"cos":   math.Cos,
		"log":   math.Log,
	} {
		if err := reg.DefNative(name, unary(fn), 1, 1); err != nil {
			return err
		}
	}
	if err := reg.DefNative("pow", func(c *value.Call) error {
		x, err := c.NumberArg(0)
		if err != nil {
			return err
		}
		y, err := c.NumberArg(1)
		if err != nil {
			return err
		}
		c.Return(c.Reg.Double(math.Pow(x, y)))
		return nil
	}, 2, 2); err != nil {
		return err
	}
	if err := reg.DefNative("abs", func(c *value.Call) error {
		a := c.Arg(0)
		switch a.Prim() {
		case value.PrimInt, value.PrimByte:
			n := a.Int()
			if n < 0 {
				n = -n
			}
			c.Return(c.Reg.Int(n))
		case value.PrimDouble:
			c.Return(c.Reg.Double(math.Abs(a.Double())))
		default:
			return diag.TypeErrorf("abs expects a number, got %s", a.TypeName())
		}
		return nil
	}, 1, 1); err != nil {
		return err
	}
	if err := reg.DefConst("PI", reg.Double(math.Pi)); err != nil {
		return err
	}
	return reg.DefConst("E", reg.Double(math.E))
}

func unary(fn func(float64) float64) value.NativeFunc {
	return func(c *value.Call) error {
		x, err := c.NumberArg(0)
		if err != nil {
			return err
		}
		c.Return(c.Reg.Double(fn(x)))
		return nil
	}
}
