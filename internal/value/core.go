package value

import (
	"math"

	"clever/internal/diag"
)

func (r *Registry) installCore() {
	r.IntType = r.MustRegister(r.intType("Int", PrimInt))
	r.ByteType = r.MustRegister(r.intType("Byte", PrimByte))
	r.DoubleType = r.MustRegister(r.doubleType())
	r.BoolType = r.MustRegister(r.boolType())
	r.StringType = r.MustRegister(r.stringType())
	r.ArrayType = r.MustRegister(r.arrayType())
	r.MapType = r.MustRegister(r.mapType())
	r.FunctionType = r.MustRegister(r.functionType())
	r.ErrorType = r.MustRegister(r.errorType("Error", nil))
	r.TypeErrorType = r.MustRegister(r.errorType("TypeError", r.ErrorType))
	r.ResourceErrorType = r.MustRegister(r.errorType("ResourceError", r.ErrorType))
}

func (r *Registry) compare(op Operator, c int) Value {
	switch op {
	case OpEqual:
		return r.Bool(c == 0)
	case OpNotEqual:
		return r.Bool(c != 0)
	case OpLess:
		return r.Bool(c < 0)
	case OpLessEqual:
		return r.Bool(c <= 0)
	case OpGreater:
		return r.Bool(c > 0)
	default:
		return r.Bool(c >= 0)
	}
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func isComparison(op Operator) bool {
	return op >= OpEqual && op <= OpGreaterEqual
}

// mismatch handles an operand whose type the handler does not accept:
// equality is simply false, anything else is a type error.
func (r *Registry) mismatch(op Operator, res, lhs, rhs *Value) error {
	switch op {
	case OpEqual:
		res.Set(r.Bool(false))
		return nil
	case OpNotEqual:
		res.Set(r.Bool(true))
		return nil
	}
	return unsupported(op, lhs, rhs)
}

// ---------- Int / Byte ----------

func (r *Registry) intType(name string, prim Prim) *Type {
	t := newPrimitive(name, prim)
	for op := OpAdd; op < numOperators; op++ {
		t.DefBinary(op, r.intBinary(op))
	}
	t.DefUnary(OpNeg, func(res, v *Value) error {
		res.Set(r.Int(-v.num))
		return nil
	})
	t.DefUnary(OpBitNot, func(res, v *Value) error {
		res.Set(r.Int(^v.num))
		return nil
	})
	// Byte wraps around at 0 and 255.
	step := func(n, d int64) int64 {
		if prim == PrimByte {
			return int64(byte(n + d))
		}
		return n + d
	}
	t.DefUnary(OpInc, func(res, v *Value) error {
		res.Set(Value{kind: KindPrimitive, typ: v.typ, num: step(v.num, 1)})
		return nil
	})
	t.DefUnary(OpDec, func(res, v *Value) error {
		res.Set(Value{kind: KindPrimitive, typ: v.typ, num: step(v.num, -1)})
		return nil
	})
	t.Def("toDouble", func(c *Call) error {
		c.Return(r.Double(float64(c.This.num)))
		return nil
	}, 0, 0)
	t.Def("abs", func(c *Call) error {
		n := c.This.num
		if n < 0 {
			n = -n
		}
		c.Return(r.Int(n))
		return nil
	}, 0, 0)
	return t
}

func (r *Registry) intBinary(op Operator) BinaryFunc {
	return func(res, lhs, rhs *Value) error {
		if rhs.Prim() == PrimDouble && !(op >= OpBitAnd && op <= OpShr) {
			return r.floatOp(op, res, float64(lhs.num), rhs.dbl)
		}
		if !rhs.IsIntegral() {
			return r.mismatch(op, res, lhs, rhs)
		}
		a, b := lhs.num, rhs.num
		if isComparison(op) {
			res.Set(r.compare(op, cmpInt(a, b)))
			return nil
		}
		var n int64
		switch op {
		case OpAdd:
			n = a + b
		case OpSub:
			n = a - b
		case OpMul:
			n = a * b
		case OpDiv:
			if b == 0 {
				return diag.ResourceErrorf("division by zero")
			}
			n = a / b
		case OpMod:
			if b == 0 {
				return diag.ResourceErrorf("modulo by zero")
			}
			n = a % b
		case OpBitAnd:
			n = a & b
		case OpBitOr:
			n = a | b
		case OpBitXor:
			n = a ^ b
		case OpShl, OpShr:
			if b < 0 {
				return diag.ResourceErrorf("negative shift count %d", b)
			}
			if op == OpShl {
				n = a << uint64(b)
			} else {
				n = a >> uint64(b)
			}
		}
		res.Set(r.Int(n))
		return nil
	}
}

// ---------- Double ----------

func (r *Registry) doubleType() *Type {
	t := newPrimitive("Double", PrimDouble)
	for _, op := range []Operator{OpAdd, OpSub, OpMul, OpDiv, OpMod, OpEqual, OpNotEqual, OpLess, OpLessEqual, OpGreater, OpGreaterEqual} {
		op := op
		t.DefBinary(op, func(res, lhs, rhs *Value) error {
			b, ok := rhs.Number()
			if !ok {
				return r.mismatch(op, res, lhs, rhs)
			}
			return r.floatOp(op, res, lhs.dbl, b)
		})
	}
	t.DefUnary(OpNeg, func(res, v *Value) error {
		res.Set(r.Double(-v.dbl))
		return nil
	})
	t.DefUnary(OpInc, func(res, v *Value) error {
		res.Set(r.Double(v.dbl + 1))
		return nil
	})
	t.DefUnary(OpDec, func(res, v *Value) error {
		res.Set(r.Double(v.dbl - 1))
		return nil
	})
	t.Def("toInt", func(c *Call) error {
		c.Return(r.Int(int64(c.This.dbl)))
		return nil
	}, 0, 0)
	t.Def("round", func(c *Call) error {
		c.Return(r.Double(math.Round(c.This.dbl)))
		return nil
	}, 0, 0)
	t.Def("floor", func(c *Call) error {
		c.Return(r.Double(math.Floor(c.This.dbl)))
		return nil
	}, 0, 0)
	t.Def("ceil", func(c *Call) error {
		c.Return(r.Double(math.Ceil(c.This.dbl)))
		return nil
	}, 0, 0)
	return t
}

func (r *Registry) floatOp(op Operator, res *Value, a, b float64) error {
	if isComparison(op) {
		res.Set(r.compare(op, cmpFloat(a, b)))
		return nil
	}
	var f float64
	switch op {
	case OpAdd:
		f = a + b
	case OpSub:
		f = a - b
	case OpMul:
		f = a * b
	case OpDiv:
		f = a / b
	case OpMod:
		f = math.Mod(a, b)
	default:
		return diag.TypeErrorf("cannot use %s operator with Double type", op)
	}
	res.Set(r.Double(f))
	return nil
}

// ---------- Bool ----------

func (r *Registry) boolType() *Type {
	t := newPrimitive("Bool", PrimBool)
	for _, op := range []Operator{OpEqual, OpNotEqual, OpBitAnd, OpBitOr, OpBitXor} {
		op := op
		t.DefBinary(op, func(res, lhs, rhs *Value) error {
			if rhs.Prim() != PrimBool {
				return r.mismatch(op, res, lhs, rhs)
			}
			a, b := lhs.num != 0, rhs.num != 0
			var out bool
			switch op {
			case OpEqual:
				out = a == b
			case OpNotEqual, OpBitXor:
				out = a != b
			case OpBitAnd:
				out = a && b
			case OpBitOr:
				out = a || b
			}
			res.Set(r.Bool(out))
			return nil
		})
	}
	return t
}

// ---------- Function / Error ----------

func (r *Registry) functionType() *Type {
	t := NewType("Function", nil)
	t.Repr = func(v *Value) string {
		if fn := v.Function(); fn != nil {
			return "<function " + fn.Name + ">"
		}
		return "<function>"
	}
	t.Def("name", func(c *Call) error {
		c.Return(r.String(c.This.Function().Name))
		return nil
	}, 0, 0)
	return t
}

// errorType builds one member of the Error family. Methods are duplicated on
// each member since dispatch never consults Super.
func (r *Registry) errorType(name string, super *Type) *Type {
	t := NewType(name, super)
	t.Alloc = func(c *Call) (any, error) {
		msg, err := c.OptString(0, "")
		if err != nil {
			return nil, err
		}
		return &ErrorData{Kind: name, Msg: msg}, nil
	}
	t.Repr = func(v *Value) string {
		if e, ok := DataOf[*ErrorData](v); ok {
			return e.Msg
		}
		return "<error>"
	}
	t.Def("message", func(c *Call) error {
		e, err := ThisData[*ErrorData](c)
		if err != nil {
			return err
		}
		c.Return(r.String(e.Msg))
		return nil
	}, 0, 0)
	t.Def("kind", func(c *Call) error {
		e, err := ThisData[*ErrorData](c)
		if err != nil {
			return err
		}
		c.Return(r.String(e.Kind))
		return nil
	}, 0, 0)
	return t
}
