package builtins

import (
	"fmt"
	"sort"
	"time"

	"clever/internal/diag"
	"clever/internal/value"
)

// ToNative converts a script value into plain Go data: nil, bool, int64,
// float64, string, []any and map[string]any. Used by the encoders.
func ToNative(v *value.Value) (any, error) {
	v, err := v.Deref()
	if err != nil {
		return nil, err
	}
	switch v.Kind() {
	case value.KindNone:
		return nil, nil
	case value.KindPrimitive:
		switch v.Prim() {
		case value.PrimInt, value.PrimByte:
			return v.Int(), nil
		case value.PrimDouble:
			return v.Double(), nil
		case value.PrimBool:
			return v.Bool(), nil
		case value.PrimString:
			return v.Str(), nil
		}
	}
	if vec := v.Vector(); vec != nil {
		out := make([]any, vec.Len())
		for i := range out {
			x, err := ToNative(vec.At(i))
			if err != nil {
				return nil, err
			}
			out[i] = x
		}
		return out, nil
	}
	if m := v.Map(); m != nil {
		out := make(map[string]any, m.Len())
		for _, k := range m.Keys() {
			elem, _ := m.Get(k)
			x, err := ToNative(elem)
			if err != nil {
				return nil, err
			}
			out[k] = x
		}
		return out, nil
	}
	return nil, diag.TypeErrorf("cannot convert %s to data", v.TypeName())
}

// FromNative builds a script value from decoded Go data. Map keys are
// inserted in sorted order.
func FromNative(reg *value.Registry, x any) (value.Value, error) {
	switch d := x.(type) {
	case nil:
		return value.Value{}, nil
	case bool:
		return reg.Bool(d), nil
	case int:
		return reg.Int(int64(d)), nil
	case int32:
		return reg.Int(int64(d)), nil
	case int64:
		return reg.Int(d), nil
	case uint64:
		return reg.Int(int64(d)), nil
	case float32:
		return reg.Double(float64(d)), nil
	case float64:
		return reg.Double(d), nil
	case string:
		return reg.String(d), nil
	case []byte:
		return reg.String(string(d)), nil
	case time.Time:
		return reg.String(d.Format(time.RFC3339Nano)), nil
	case []any:
		elems := make([]value.Value, 0, len(d))
		for _, item := range d {
			v, err := FromNative(reg, item)
			if err != nil {
				for i := range elems {
					elems[i].Release()
				}
				return value.Value{}, err
			}
			elems = append(elems, v)
		}
		return reg.NewVector(elems), nil
	case map[string]any:
		keys := make([]string, 0, len(d))
		for k := range d {
			keys = append(keys, k)
		}
		return fromEntries(reg, keys, func(k string) any { return d[k] })
	case map[any]any:
		keys := make([]string, 0, len(d))
		byKey := make(map[string]any, len(d))
		for k, item := range d {
			s := fmt.Sprint(k)
			keys = append(keys, s)
			byKey[s] = item
		}
		return fromEntries(reg, keys, func(k string) any { return byKey[k] })
	}
	return value.Value{}, diag.TypeErrorf("unsupported data of type %T", x)
}

func fromEntries(reg *value.Registry, keys []string, get func(string) any) (value.Value, error) {
	sort.Strings(keys)
	out := reg.NewMap()
	m := out.Map()
	for _, k := range keys {
		v, err := FromNative(reg, get(k))
		if err != nil {
			out.Release()
			return value.Value{}, err
		}
		m.Set(k, &v)
		v.Release()
	}
	return out, nil
}
