package value

import (
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"clever/internal/diag"
)

// ---------- String ----------

// MaxStringLen bounds the strings built by repetition.
const MaxStringLen = 1 << 30

func (r *Registry) stringType() *Type {
	t := newPrimitive("String", PrimString)
	t.DefBinary(OpAdd, func(res, lhs, rhs *Value) error {
		s := lhs.str + rhs.String()
		res.Set(r.String(s))
		return nil
	})
	t.DefBinary(OpMul, func(res, lhs, rhs *Value) error {
		if !rhs.IsIntegral() || rhs.num < 0 {
			return unsupported(OpMul, lhs, rhs)
		}
		if len(lhs.str) > 0 && rhs.num > int64(MaxStringLen/len(lhs.str)) {
			return diag.ResourceErrorf("string repeat exceeds %d bytes", MaxStringLen)
		}
		s := strings.Repeat(lhs.str, int(rhs.num))
		res.Set(r.String(s))
		return nil
	})
	for op := OpEqual; op <= OpGreaterEqual; op++ {
		op := op
		t.DefBinary(op, func(res, lhs, rhs *Value) error {
			if rhs.Prim() != PrimString {
				return r.mismatch(op, res, lhs, rhs)
			}
			res.Set(r.compare(op, strings.Compare(lhs.str, rhs.str)))
			return nil
		})
	}
	t.Size = func(v *Value) int { return utf8.RuneCountInString(v.str) }
	t.Index = func(res, recv, index *Value) error {
		runes := []rune(recv.str)
		i, err := position(index, len(runes))
		if err != nil {
			return err
		}
		res.Set(r.String(string(runes[i])))
		return nil
	}

	str := func(fn func(c *Call, s string) (Value, error)) NativeFunc {
		return func(c *Call) error {
			v, err := fn(c, c.This.str)
			if err != nil {
				return err
			}
			c.Return(v)
			return nil
		}
	}
	t.Def("size", str(func(c *Call, s string) (Value, error) {
		return r.Int(int64(utf8.RuneCountInString(s))), nil
	}), 0, 0)
	t.Def("upper", str(func(c *Call, s string) (Value, error) {
		return r.String(strings.ToUpper(s)), nil
	}), 0, 0)
	t.Def("lower", str(func(c *Call, s string) (Value, error) {
		return r.String(strings.ToLower(s)), nil
	}), 0, 0)
	t.Def("trim", str(func(c *Call, s string) (Value, error) {
		return r.String(strings.TrimSpace(s)), nil
	}), 0, 0)
	t.Def("contains", str(func(c *Call, s string) (Value, error) {
		sub, err := c.StringArg(0)
		return r.Bool(strings.Contains(s, sub)), err
	}), 1, 1)
	t.Def("startsWith", str(func(c *Call, s string) (Value, error) {
		p, err := c.StringArg(0)
		return r.Bool(strings.HasPrefix(s, p)), err
	}), 1, 1)
	t.Def("endsWith", str(func(c *Call, s string) (Value, error) {
		p, err := c.StringArg(0)
		return r.Bool(strings.HasSuffix(s, p)), err
	}), 1, 1)
	t.Def("find", str(func(c *Call, s string) (Value, error) {
		sub, err := c.StringArg(0)
		if err != nil {
			return Value{}, err
		}
		i := strings.Index(s, sub)
		if i > 0 {
			i = utf8.RuneCountInString(s[:i])
		}
		return r.Int(int64(i)), nil
	}), 1, 1)
	t.Def("replace", str(func(c *Call, s string) (Value, error) {
		old, err := c.StringArg(0)
		if err != nil {
			return Value{}, err
		}
		repl, err := c.StringArg(1)
		return r.String(strings.ReplaceAll(s, old, repl)), err
	}), 2, 2)
	t.Def("split", str(func(c *Call, s string) (Value, error) {
		sep, err := c.StringArg(0)
		if err != nil {
			return Value{}, err
		}
		parts := strings.Split(s, sep)
		elems := make([]Value, len(parts))
		for i, p := range parts {
			elems[i] = r.String(p)
		}
		return r.NewVector(elems), nil
	}), 1, 1)
	t.Def("substr", str(func(c *Call, s string) (Value, error) {
		runes := []rune(s)
		start, err := c.IntArg(0)
		if err != nil {
			return Value{}, err
		}
		n, err := c.OptInt(1, int64(len(runes))-start)
		if err != nil {
			return Value{}, err
		}
		if start < 0 || n < 0 || start > int64(len(runes)) || n > int64(len(runes))-start {
			return Value{}, diag.ResourceErrorf("substr(%d, %d) out of range for length %d", start, n, len(runes))
		}
		return r.String(string(runes[start : start+n])), nil
	}), 1, 2)
	t.Def("toInt", str(func(c *Call, s string) (Value, error) {
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return Value{}, diag.TypeErrorf("cannot convert %q to Int", s)
		}
		return r.Int(n), nil
	}), 0, 0)
	t.Def("toDouble", str(func(c *Call, s string) (Value, error) {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return Value{}, diag.TypeErrorf("cannot convert %q to Double", s)
		}
		return r.Double(f), nil
	}), 0, 0)
	return t
}

// position validates an Int index against length n. Negative indexes count
// from the end.
func position(index *Value, n int) (int, error) {
	if !index.IsIntegral() {
		return 0, diag.TypeErrorf("index must be Int, got %s", index.TypeName())
	}
	i := index.num
	if i < 0 {
		i += int64(n)
	}
	if i < 0 || i >= int64(n) {
		return 0, diag.ResourceErrorf("index %d out of range [0, %d)", index.num, n)
	}
	return int(i), nil
}

// ---------- Array ----------

func (r *Registry) arrayType() *Type {
	t := NewType("Array", nil)
	t.kind = KindVector
	t.Alloc = func(c *Call) (any, error) {
		elems := make([]Value, len(c.Args))
		for i, a := range c.Args {
			elems[i].Copy(a)
		}
		return NewVector(elems), nil
	}
	t.Repr = func(v *Value) string {
		vec := v.Vector()
		if vec == nil {
			return "[]"
		}
		return "[" + joinQuoted(vec.slots, ", ") + "]"
	}
	t.Size = func(v *Value) int { return v.Vector().Len() }
	t.Index = func(res, recv, index *Value) error {
		vec := recv.Vector()
		i, err := position(index, vec.Len())
		if err != nil {
			return err
		}
		res.Copy(vec.At(i))
		return nil
	}
	t.SetIndex = func(recv, index, val *Value) error {
		vec := recv.Vector()
		i, err := position(index, vec.Len())
		if err != nil {
			return err
		}
		vec.At(i).Copy(val)
		return nil
	}

	vecMethod := func(fn func(c *Call, vec *Vector) error) NativeFunc {
		return func(c *Call) error {
			vec, err := ThisData[*Vector](c)
			if err != nil {
				return err
			}
			return fn(c, vec)
		}
	}
	t.Def("push", vecMethod(func(c *Call, vec *Vector) error {
		for _, a := range c.Args {
			vec.Append(a.Clone())
		}
		c.Result.Copy(c.This)
		return nil
	}), 1, -1)
	t.Def("pop", vecMethod(func(c *Call, vec *Vector) error {
		v, ok := vec.Pop()
		if !ok {
			return diag.ResourceErrorf("pop from empty array")
		}
		c.Return(v)
		return nil
	}), 0, 0)
	t.Def("size", vecMethod(func(c *Call, vec *Vector) error {
		c.Return(r.Int(int64(vec.Len())))
		return nil
	}), 0, 0)
	t.Def("isEmpty", vecMethod(func(c *Call, vec *Vector) error {
		c.Return(r.Bool(vec.Len() == 0))
		return nil
	}), 0, 0)
	t.Def("clear", vecMethod(func(c *Call, vec *Vector) error {
		vec.Clear()
		return nil
	}), 0, 0)
	t.Def("at", vecMethod(func(c *Call, vec *Vector) error {
		return t.Index(c.Result, c.This, c.Arg(0))
	}), 1, 1)
	t.Def("remove", vecMethod(func(c *Call, vec *Vector) error {
		i, err := position(c.Arg(0), vec.Len())
		if err != nil {
			return err
		}
		v, _ := vec.Remove(i)
		c.Return(v)
		return nil
	}), 1, 1)
	t.Def("contains", vecMethod(func(c *Call, vec *Vector) error {
		found := false
		for i := range vec.slots {
			var eq Value
			if err := r.Binary(OpEqual, &eq, &vec.slots[i], c.Arg(0)); err != nil {
				return err
			}
			if eq.Truthy() {
				found = true
				break
			}
		}
		c.Return(r.Bool(found))
		return nil
	}), 1, 1)
	t.Def("join", vecMethod(func(c *Call, vec *Vector) error {
		sep, err := c.OptString(0, ",")
		if err != nil {
			return err
		}
		parts := make([]string, vec.Len())
		for i := range vec.slots {
			parts[i] = vec.slots[i].String()
		}
		c.Return(r.String(strings.Join(parts, sep)))
		return nil
	}), 0, 1)
	t.Def("reverse", vecMethod(func(c *Call, vec *Vector) error {
		n := vec.Len()
		elems := make([]Value, n)
		for i := range vec.slots {
			elems[n-1-i].Copy(&vec.slots[i])
		}
		c.Return(r.NewVector(elems))
		return nil
	}), 0, 0)
	t.Def("slice", vecMethod(func(c *Call, vec *Vector) error {
		start, err := c.IntArg(0)
		if err != nil {
			return err
		}
		end, err := c.OptInt(1, int64(vec.Len()))
		if err != nil {
			return err
		}
		if start < 0 || end > int64(vec.Len()) || start > end {
			return diag.ResourceErrorf("slice [%d:%d] out of range for length %d", start, end, vec.Len())
		}
		elems := make([]Value, end-start)
		for i := range elems {
			elems[i].Copy(&vec.slots[int(start)+i])
		}
		c.Return(r.NewVector(elems))
		return nil
	}), 1, 2)
	t.Def("sort", vecMethod(func(c *Call, vec *Vector) error {
		var failure error
		sort.SliceStable(vec.slots, func(i, j int) bool {
			var less Value
			if err := r.Binary(OpLess, &less, &vec.slots[i], &vec.slots[j]); err != nil {
				failure = err
				return false
			}
			return less.Truthy()
		})
		vec.gen++
		return failure
	}), 0, 0)
	return t
}

// ---------- Map ----------

func mapKey(k *Value) (string, error) {
	if k.kind != KindPrimitive {
		return "", diag.TypeErrorf("map key must be a primitive value, got %s", k.TypeName())
	}
	return k.String(), nil
}

func (r *Registry) mapType() *Type {
	t := NewType("Map", nil)
	t.Alloc = func(c *Call) (any, error) {
		if len(c.Args)%2 != 0 {
			return nil, diag.TypeErrorf("Map constructor expects key/value pairs")
		}
		m := NewMap()
		for i := 0; i < len(c.Args); i += 2 {
			k, err := mapKey(c.Args[i])
			if err != nil {
				return nil, err
			}
			m.Set(k, c.Args[i+1])
		}
		return m, nil
	}
	t.Repr = func(v *Value) string {
		m := v.Map()
		if m == nil {
			return "{}"
		}
		parts := make([]string, len(m.keys))
		for i, k := range m.keys {
			parts[i] = strconv.Quote(k) + ": " + m.vals.slots[i].quoted()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	t.Index = func(res, recv, index *Value) error {
		k, err := mapKey(index)
		if err != nil {
			return err
		}
		if v, ok := recv.Map().Get(k); ok {
			res.Copy(v)
			return nil
		}
		res.Release()
		return nil
	}
	t.SetIndex = func(recv, index, val *Value) error {
		k, err := mapKey(index)
		if err != nil {
			return err
		}
		recv.Map().Set(k, val)
		return nil
	}

	mapMethod := func(fn func(c *Call, m *Map) error) NativeFunc {
		return func(c *Call) error {
			m, err := ThisData[*Map](c)
			if err != nil {
				return err
			}
			return fn(c, m)
		}
	}
	t.Def("set", mapMethod(func(c *Call, m *Map) error {
		return t.SetIndex(c.This, c.Arg(0), c.Arg(1))
	}), 2, 2)
	t.Def("get", mapMethod(func(c *Call, m *Map) error {
		k, err := mapKey(c.Arg(0))
		if err != nil {
			return err
		}
		if v, ok := m.Get(k); ok {
			c.Result.Copy(v)
		} else if c.NumArgs() > 1 {
			c.Result.Copy(c.Arg(1))
		}
		return nil
	}), 1, 2)
	t.Def("has", mapMethod(func(c *Call, m *Map) error {
		k, err := mapKey(c.Arg(0))
		if err != nil {
			return err
		}
		_, ok := m.Get(k)
		c.Return(r.Bool(ok))
		return nil
	}), 1, 1)
	t.Def("remove", mapMethod(func(c *Call, m *Map) error {
		k, err := mapKey(c.Arg(0))
		if err != nil {
			return err
		}
		c.Return(r.Bool(m.Delete(k)))
		return nil
	}), 1, 1)
	t.Def("keys", mapMethod(func(c *Call, m *Map) error {
		elems := make([]Value, m.Len())
		for i, k := range m.keys {
			elems[i] = r.String(k)
		}
		c.Return(r.NewVector(elems))
		return nil
	}), 0, 0)
	t.Def("values", mapMethod(func(c *Call, m *Map) error {
		elems := make([]Value, m.Len())
		for i := range m.vals.slots {
			elems[i].Copy(&m.vals.slots[i])
		}
		c.Return(r.NewVector(elems))
		return nil
	}), 0, 0)
	t.Def("size", mapMethod(func(c *Call, m *Map) error {
		c.Return(r.Int(int64(m.Len())))
		return nil
	}), 0, 0)
	t.Def("isEmpty", mapMethod(func(c *Call, m *Map) error {
		c.Return(r.Bool(m.Len() == 0))
		return nil
	}), 0, 0)
	t.Def("clear", mapMethod(func(c *Call, m *Map) error {
		m.Clear()
		return nil
	}), 0, 0)
	return t
}
