package value

import (
	"fmt"
	"sort"
)

// Operator identifies a binary operator in a type's operator table.
type Operator uint8

const (
	OpAdd Operator = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpBitAnd
	OpBitOr
	OpBitXor
	OpShl
	OpShr
	OpEqual
	OpNotEqual
	OpLess
	OpLessEqual
	OpGreater
	OpGreaterEqual

	numOperators
)

var operatorSymbols = [numOperators]string{
	"+", "-", "*", "/", "%", "&", "|", "^", "<<", ">>",
	"==", "!=", "<", "<=", ">", ">=",
}

func (o Operator) String() string {
	if o < numOperators {
		return operatorSymbols[o]
	}
	return fmt.Sprintf("Operator(%d)", int(o))
}

type UnaryOperator uint8

const (
	OpNeg UnaryOperator = iota
	OpBitNot
	OpInc
	OpDec

	numUnary
)

func (o UnaryOperator) String() string {
	switch o {
	case OpNeg:
		return "-"
	case OpBitNot:
		return "~"
	case OpInc:
		return "++"
	case OpDec:
		return "--"
	}
	return fmt.Sprintf("UnaryOperator(%d)", int(o))
}

// Handlers read their operands before writing res, so res may alias an operand.
type (
	NativeFunc   func(c *Call) error
	BinaryFunc   func(res, lhs, rhs *Value) error
	UnaryFunc    func(res, v *Value) error
	IndexFunc    func(res, recv, index *Value) error
	SetIndexFunc func(recv, index, val *Value) error
)

// Method is an entry of a type's method table.
type Method struct {
	Name    string
	Fn      NativeFunc
	MinArgs int
	MaxArgs int // -1 for variadic
	Static  bool
}

// Accepts reports whether n arguments satisfy the method's arity.
func (m *Method) Accepts(n int) bool {
	return n >= m.MinArgs && (m.MaxArgs < 0 || n <= m.MaxArgs)
}

// Type is a runtime type descriptor. Values dispatch operators and methods
// through their descriptor; Super is consulted only for convertibility.
type Type struct {
	Name  string
	Super *Type

	kind    Kind
	prim    Prim
	methods map[string]*Method
	binary  [numOperators]BinaryFunc
	unary   [numUnary]UnaryFunc
	frozen  bool

	Index    IndexFunc
	SetIndex SetIndexFunc
	Size     func(v *Value) int

	// Alloc builds the payload for `new Type(args)`; Init, when set, then
	// runs with the new object as c.This.
	Alloc func(c *Call) (any, error)
	Init  func(c *Call) error
	// Dtor runs when the last reference to an object is released.
	Dtor func(o *Object)
	Repr func(v *Value) string
}

// NewType returns an object type. Unless it defines its own, Register
// installs identity equality.
func NewType(name string, super *Type) *Type {
	return &Type{Name: name, Super: super, kind: KindObject, methods: make(map[string]*Method)}
}

func newPrimitive(name string, prim Prim) *Type {
	return &Type{Name: name, kind: KindPrimitive, prim: prim, methods: make(map[string]*Method)}
}

func (t *Type) Kind() Kind     { return t.kind }
func (t *Type) Prim() Prim     { return t.prim }
func (t *Type) String() string { return t.Name }

func (t *Type) mutable() {
	if t.frozen {
		panic("value: type " + t.Name + " is frozen")
	}
}

// Def adds an instance method.
func (t *Type) Def(name string, fn NativeFunc, minArgs, maxArgs int) *Type {
	t.mutable()
	t.methods[name] = &Method{Name: name, Fn: fn, MinArgs: minArgs, MaxArgs: maxArgs}
	return t
}

// DefStatic adds a method invoked on the type itself, as in Type.name().
func (t *Type) DefStatic(name string, fn NativeFunc, minArgs, maxArgs int) *Type {
	t.mutable()
	t.methods[name] = &Method{Name: name, Fn: fn, MinArgs: minArgs, MaxArgs: maxArgs, Static: true}
	return t
}

func (t *Type) Method(name string) *Method {
	return t.methods[name]
}

// Methods lists the method table sorted by name.
func (t *Type) Methods() []*Method {
	out := make([]*Method, 0, len(t.methods))
	for _, m := range t.methods {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (t *Type) DefBinary(op Operator, fn BinaryFunc) *Type {
	t.mutable()
	t.binary[op] = fn
	return t
}

func (t *Type) Binary(op Operator) BinaryFunc {
	if op >= numOperators {
		return nil
	}
	return t.binary[op]
}

func (t *Type) DefUnary(op UnaryOperator, fn UnaryFunc) *Type {
	t.mutable()
	t.unary[op] = fn
	return t
}

func (t *Type) Unary(op UnaryOperator) UnaryFunc {
	if op >= numUnary {
		return nil
	}
	return t.unary[op]
}

// IsConvertibleTo walks the super-type chain.
func (t *Type) IsConvertibleTo(u *Type) bool {
	for x := t; x != nil; x = x.Super {
		if x == u {
			return true
		}
	}
	return false
}

// Function is the payload of Function values: either a compiled function
// entered at Addr or a native implementation.
type Function struct {
	Name       string
	Addr       int
	NumParams  int
	ParamScope int
	Scopes     []int // scope ids owned by each activation
	NumTemps   int

	Native  NativeFunc
	MinArgs int
	MaxArgs int
}

func (f *Function) IsNative() bool { return f.Native != nil }

// Arity checks an argument count against the function's signature.
func (f *Function) Arity(n int) error {
	if f.IsNative() {
		m := Method{MinArgs: f.MinArgs, MaxArgs: f.MaxArgs}
		if !m.Accepts(n) {
			return arityError(f.Name, &m, n)
		}
		return nil
	}
	if n != f.NumParams {
		return arityError(f.Name, &Method{MinArgs: f.NumParams, MaxArgs: f.NumParams}, n)
	}
	return nil
}
