package value

import (
	"strconv"
	"strings"
)

// Kind is the storage class of a value at runtime.
type Kind uint8

const (
	KindNone Kind = iota
	KindPrimitive
	KindVector
	KindObject
	KindReference
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindPrimitive:
		return "primitive"
	case KindVector:
		return "vector"
	case KindObject:
		return "object"
	case KindReference:
		return "reference"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Prim selects the payload arm used by a primitive type.
type Prim uint8

const (
	PrimNone Prim = iota
	PrimInt
	PrimDouble
	PrimBool
	PrimString
	PrimByte
)

// Value is the universal runtime cell. Primitive payloads are stored inline;
// vectors and objects point at a reference-counted Object. A Value owns one
// reference to its object, released by Release or by being overwritten
// through Copy and Set.
type Value struct {
	kind Kind
	typ  *Type
	num  int64 // Int, Byte and Bool payloads
	dbl  float64
	str  string
	obj  *Object
	ref  *Reference

	Name  string
	Const bool
}

func (v *Value) Kind() Kind  { return v.kind }
func (v *Value) Type() *Type { return v.typ }
func (v *Value) IsNone() bool {
	return v.kind == KindNone
}

// TypeName is the descriptor name, or "null" for an empty cell.
func (v *Value) TypeName() string {
	if v.typ == nil {
		if v.kind == KindReference {
			return "Reference"
		}
		return "null"
	}
	return v.typ.Name
}

func (v *Value) Prim() Prim {
	if v.kind != KindPrimitive || v.typ == nil {
		return PrimNone
	}
	return v.typ.prim
}

func (v *Value) Int() int64       { return v.num }
func (v *Value) Double() float64  { return v.dbl }
func (v *Value) Bool() bool       { return v.num != 0 }
func (v *Value) Str() string      { return v.str }
func (v *Value) Byte() byte       { return byte(v.num) }
func (v *Value) Object() *Object  { return v.obj }
func (v *Value) Ref() *Reference  { return v.ref }
func (v *Value) IsNumeric() bool  { p := v.Prim(); return p == PrimInt || p == PrimDouble || p == PrimByte }
func (v *Value) IsIntegral() bool { p := v.Prim(); return p == PrimInt || p == PrimByte }

// Number widens Int, Byte and Double payloads to float64.
func (v *Value) Number() (float64, bool) {
	switch v.Prim() {
	case PrimInt, PrimByte:
		return float64(v.num), true
	case PrimDouble:
		return v.dbl, true
	}
	return 0, false
}

// Data returns the internal payload of an object value.
func (v *Value) Data() any {
	if v.obj == nil {
		return nil
	}
	return v.obj.Data
}

func (v *Value) Vector() *Vector {
	vec, _ := v.Data().(*Vector)
	return vec
}

func (v *Value) Map() *Map {
	m, _ := v.Data().(*Map)
	return m
}

func (v *Value) Function() *Function {
	fn, _ := v.Data().(*Function)
	return fn
}

// DataOf extracts a typed object payload.
func DataOf[T any](v *Value) (T, bool) {
	d, ok := v.Data().(T)
	return d, ok
}

// Copy makes v a copy of src. Shared payloads are retained before v's
// previous payload is released, so copying a value onto itself is safe.
func (v *Value) Copy(src *Value) {
	if v == src {
		return
	}
	if src.obj != nil {
		src.obj.Retain()
	}
	old := v.obj
	v.kind, v.typ, v.num, v.dbl, v.str, v.obj, v.ref = src.kind, src.typ, src.num, src.dbl, src.str, src.obj, src.ref
	if old != nil {
		old.Release()
	}
}

// Set moves src into v. The reference owned by src becomes v's.
func (v *Value) Set(src Value) {
	old := v.obj
	v.kind, v.typ, v.num, v.dbl, v.str, v.obj, v.ref = src.kind, src.typ, src.num, src.dbl, src.str, src.obj, src.ref
	if old != nil {
		old.Release()
	}
}

// Release drops v's payload, leaving an empty cell.
func (v *Value) Release() {
	old := v.obj
	v.kind, v.typ, v.num, v.dbl, v.str, v.obj, v.ref = KindNone, nil, 0, 0, "", nil, nil
	if old != nil {
		old.Release()
	}
}

// Clone returns an independently owned copy of v.
func (v *Value) Clone() Value {
	var out Value
	out.Copy(v)
	return out
}

// Deref follows a reference to the cell it designates.
func (v *Value) Deref() (*Value, error) {
	if v.kind != KindReference {
		return v, nil
	}
	return v.ref.Get()
}

// Truthy is the condition test used by JMPZ and JMPNZ.
func (v *Value) Truthy() bool {
	switch v.kind {
	case KindNone:
		return false
	case KindPrimitive:
		switch v.typ.prim {
		case PrimDouble:
			return v.dbl != 0
		case PrimString:
			return v.str != ""
		default:
			return v.num != 0
		}
	case KindReference:
		target, err := v.ref.Get()
		return err == nil && target.Truthy()
	default:
		return true
	}
}

func (v *Value) String() string {
	switch v.kind {
	case KindNone:
		return "null"
	case KindPrimitive:
		switch v.typ.prim {
		case PrimDouble:
			return strconv.FormatFloat(v.dbl, 'g', -1, 64)
		case PrimString:
			return v.str
		case PrimBool:
			return strconv.FormatBool(v.num != 0)
		default:
			return strconv.FormatInt(v.num, 10)
		}
	case KindReference:
		target, err := v.ref.Get()
		if err != nil {
			return "<dangling reference>"
		}
		return target.String()
	}
	if v.typ != nil && v.typ.Repr != nil {
		return v.typ.Repr(v)
	}
	return "<" + v.TypeName() + " object>"
}

// quoted renders v as an element of a container.
func (v *Value) quoted() string {
	if v.Prim() == PrimString {
		return strconv.Quote(v.str)
	}
	return v.String()
}

func joinQuoted(vals []Value, sep string) string {
	parts := make([]string, len(vals))
	for i := range vals {
		parts[i] = vals[i].quoted()
	}
	return strings.Join(parts, sep)
}
