package value

import (
	"fmt"
	"sort"

	"clever/internal/diag"
)

// NamedValue is a predefined global such as PI.
type NamedValue struct {
	Name  string
	Value Value
}

// Registry holds the type descriptors and native functions of one
// interpreter instance. It is populated at start-up and frozen before any
// program runs, after which it is read concurrently without locking.
type Registry struct {
	IntType      *Type
	DoubleType   *Type
	BoolType     *Type
	StringType   *Type
	ByteType     *Type
	ArrayType    *Type
	MapType      *Type
	FunctionType *Type
	ErrorType    *Type

	TypeErrorType     *Type
	ResourceErrorType *Type

	types   map[string]*Type
	order   []*Type
	natives map[string]*Function
	consts  []NamedValue
	frozen  bool
}

func NewRegistry() *Registry {
	r := &Registry{
		types:   make(map[string]*Type),
		natives: make(map[string]*Function),
	}
	r.installCore()
	return r
}

// Register adds t under its name.
func (r *Registry) Register(t *Type) error {
	if r.frozen {
		return fmt.Errorf("register %s: registry is frozen", t.Name)
	}
	if _, dup := r.types[t.Name]; dup {
		return fmt.Errorf("register %s: type already defined", t.Name)
	}
	if t.kind != KindPrimitive && t.binary[OpEqual] == nil {
		t.binary[OpEqual] = r.identity(false)
		t.binary[OpNotEqual] = r.identity(true)
	}
	if t.methods["toString"] == nil {
		t.Def("toString", func(c *Call) error {
			c.Return(c.Reg.String(c.This.String()))
			return nil
		}, 0, 0)
	}
	r.types[t.Name] = t
	r.order = append(r.order, t)
	return nil
}

func (r *Registry) MustRegister(t *Type) *Type {
	if err := r.Register(t); err != nil {
		panic(err)
	}
	return t
}

func (r *Registry) Lookup(name string) *Type {
	return r.types[name]
}

// Types lists the registered descriptors in registration order.
func (r *Registry) Types() []*Type {
	return append([]*Type(nil), r.order...)
}

// DefNative adds a global native function.
func (r *Registry) DefNative(name string, fn NativeFunc, minArgs, maxArgs int) error {
	if r.frozen {
		return fmt.Errorf("define %s: registry is frozen", name)
	}
	if _, dup := r.natives[name]; dup {
		return fmt.Errorf("define %s: function already defined", name)
	}
	r.natives[name] = &Function{Name: name, Native: fn, MinArgs: minArgs, MaxArgs: maxArgs}
	return nil
}

func (r *Registry) Native(name string) *Function {
	return r.natives[name]
}

// Natives lists the native functions sorted by name.
func (r *Registry) Natives() []*Function {
	out := make([]*Function, 0, len(r.natives))
	for _, fn := range r.natives {
		out = append(out, fn)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// DefConst adds a predefined global, initialised in every program's root scope.
func (r *Registry) DefConst(name string, v Value) error {
	if r.frozen {
		return fmt.Errorf("define %s: registry is frozen", name)
	}
	r.consts = append(r.consts, NamedValue{Name: name, Value: v})
	return nil
}

func (r *Registry) Consts() []NamedValue {
	return r.consts
}

// Freeze forbids further registration and makes every descriptor immutable.
func (r *Registry) Freeze() {
	r.frozen = true
	for _, t := range r.order {
		t.frozen = true
	}
}

func (r *Registry) Frozen() bool { return r.frozen }

// ---------- constructors ----------

func (r *Registry) Int(n int64) Value {
	return Value{kind: KindPrimitive, typ: r.IntType, num: n}
}

func (r *Registry) Double(f float64) Value {
	return Value{kind: KindPrimitive, typ: r.DoubleType, dbl: f}
}

func (r *Registry) Bool(b bool) Value {
	v := Value{kind: KindPrimitive, typ: r.BoolType}
	if b {
		v.num = 1
	}
	return v
}

func (r *Registry) String(s string) Value {
	return Value{kind: KindPrimitive, typ: r.StringType, str: s}
}

func (r *Registry) Byte(b byte) Value {
	return Value{kind: KindPrimitive, typ: r.ByteType, num: int64(b)}
}

// NewVector takes ownership of elems.
func (r *Registry) NewVector(elems []Value) Value {
	return r.NewObject(r.ArrayType, NewVector(elems))
}

func (r *Registry) NewMap() Value {
	return r.NewObject(r.MapType, NewMap())
}

// NewObject wraps data in a fresh object with one reference, owned by the result.
func (r *Registry) NewObject(t *Type, data any) Value {
	return Value{kind: t.kind, typ: t, obj: newObject(t, data)}
}

func (r *Registry) FunctionValue(fn *Function) Value {
	return r.NewObject(r.FunctionType, fn)
}

// ErrorData is the payload of Error values raised by the VM.
type ErrorData struct {
	Kind string
	Msg  string
}

// NewError builds an Error value. Kinds naming a registered member of the
// Error family get that type; anything else is a plain Error.
func (r *Registry) NewError(kind, msg string) Value {
	t := r.ErrorType
	if k := r.types[kind]; k != nil && k.IsConvertibleTo(r.ErrorType) {
		t = k
	}
	return r.NewObject(t, &ErrorData{Kind: kind, Msg: msg})
}

// Reference builds a reference value designating slot i of cells.
func (r *Registry) Reference(cells *Cells, i int) (Value, error) {
	ref, err := cells.Ref(i)
	if err != nil {
		return Value{}, err
	}
	return Value{kind: KindReference, ref: ref}, nil
}

// Zero returns the default value of a primitive type.
func (r *Registry) Zero(t *Type) Value {
	return Value{kind: KindPrimitive, typ: t}
}

// Construct runs the allocator of t, then its initializer with the fresh
// object as receiver, and stores the new value in c.Result. A failing
// initializer releases the half-built object, running its destructor.
func (r *Registry) Construct(t *Type, c *Call) error {
	if t.kind == KindPrimitive {
		if len(c.Args) > 0 {
			return diag.TypeErrorf("constructor of %s takes no arguments", t.Name)
		}
		c.Return(r.Zero(t))
		return nil
	}
	if t.Alloc == nil {
		return diag.TypeErrorf("type %s cannot be instantiated", t.Name)
	}
	data, err := t.Alloc(c)
	if err != nil {
		return err
	}
	obj := r.NewObject(t, data)
	if t.Init != nil {
		c.This = &obj
		err := t.Init(c)
		c.This = nil
		if err != nil {
			obj.Release()
			return err
		}
	}
	c.Return(obj)
	return nil
}

// ---------- dispatch ----------

func unsupported(op fmt.Stringer, lhs, rhs *Value) error {
	if rhs == nil {
		return diag.TypeErrorf("cannot use %s operator with %s type", op, lhs.TypeName())
	}
	return diag.TypeErrorf("cannot use %s operator with %s and %s", op, lhs.TypeName(), rhs.TypeName())
}

// Binary dispatches op on the type of lhs.
func (r *Registry) Binary(op Operator, res, lhs, rhs *Value) error {
	if lhs.kind == KindNone || rhs.kind == KindNone {
		switch op {
		case OpEqual:
			res.Set(r.Bool(lhs.kind == rhs.kind))
			return nil
		case OpNotEqual:
			res.Set(r.Bool(lhs.kind != rhs.kind))
			return nil
		}
		if lhs.kind == KindNone {
			return diag.TypeErrorf("cannot use %s operator with null value", op)
		}
	}
	fn := lhs.typ.Binary(op)
	if fn == nil {
		return unsupported(op, lhs, rhs)
	}
	return fn(res, lhs, rhs)
}

// Unary dispatches op on the type of v.
func (r *Registry) Unary(op UnaryOperator, res, v *Value) error {
	if v.kind == KindNone {
		return diag.TypeErrorf("cannot use %s operator with null value", op)
	}
	fn := v.typ.Unary(op)
	if fn == nil {
		return unsupported(op, v, nil)
	}
	return fn(res, v)
}

func (r *Registry) Index(res, recv, index *Value) error {
	if recv.kind == KindNone {
		return diag.TypeErrorf("cannot index null value")
	}
	if recv.typ.Index == nil {
		return diag.TypeErrorf("%s does not support indexing", recv.TypeName())
	}
	return recv.typ.Index(res, recv, index)
}

func (r *Registry) SetIndex(recv, index, val *Value) error {
	if recv.kind == KindNone {
		return diag.TypeErrorf("cannot index null value")
	}
	if recv.typ.SetIndex == nil {
		return diag.TypeErrorf("%s does not support index assignment", recv.TypeName())
	}
	return recv.typ.SetIndex(recv, index, val)
}

// Size returns the element count used by for-in loops.
func (r *Registry) Size(v *Value) (int, error) {
	if v.kind == KindNone || v.typ.Size == nil {
		return 0, diag.TypeErrorf("%s is not iterable", v.TypeName())
	}
	return v.typ.Size(v), nil
}

// identity compares object values by the payload they share.
func (r *Registry) identity(negate bool) BinaryFunc {
	return func(res, lhs, rhs *Value) error {
		same := lhs.typ == rhs.typ && lhs.obj == rhs.obj
		res.Set(r.Bool(same != negate))
		return nil
	}
}
