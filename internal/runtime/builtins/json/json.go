package json

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"clever/internal/diag"
	"clever/internal/runtime/builtins"
	"clever/internal/value"
)

func init() {
	builtins.Register(builtins.Module{Name: "json", Install: install})
}

func install(reg *value.Registry) error {
	t := value.NewType("Json", nil)
	t.DefStatic("decode", func(c *value.Call) error {
		text, err := c.StringArg(0)
		if err != nil {
			return err
		}
		v, err := parseJSON(c.Reg, text)
		if err != nil {
			return err
		}
		c.Return(v)
		return nil
	}, 1, 1)
	t.DefStatic("encode", func(c *value.Call) error {
		var b strings.Builder
		if err := writeJSONValue(&b, c.Arg(0)); err != nil {
			return err
		}
		c.Return(c.Reg.String(b.String()))
		return nil
	}, 1, 1)
	return reg.Register(t)
}

func parseJSON(reg *value.Registry, text string) (value.Value, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var data interface{}
	if err := dec.Decode(&data); err != nil {
		return value.Value{}, diag.TypeErrorf("Json.decode: %v", err)
	}
	// Ensure there is no trailing data.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return value.Value{}, diag.TypeErrorf("Json.decode: extra data after JSON value")
		}
		return value.Value{}, diag.TypeErrorf("Json.decode: %v", err)
	}
	native, err := normalizeNumbers(data)
	if err != nil {
		return value.Value{}, err
	}
	return builtins.FromNative(reg, native)
}

// normalizeNumbers replaces json.Number leaves by int64 or float64.
func normalizeNumbers(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case json.Number:
		raw := val.String()
		if !strings.ContainsAny(raw, ".eE") {
			if i, err := val.Int64(); err == nil {
				return i, nil
			}
		}
		f, err := val.Float64()
		if err != nil {
			return nil, diag.TypeErrorf("Json.decode: invalid number %q", raw)
		}
		return f, nil
	case []interface{}:
		for i, item := range val {
			n, err := normalizeNumbers(item)
			if err != nil {
				return nil, err
			}
			val[i] = n
		}
		return val, nil
	case map[string]interface{}:
		for k, item := range val {
			n, err := normalizeNumbers(item)
			if err != nil {
				return nil, err
			}
			val[k] = n
		}
		return val, nil
	}
	return v, nil
}

// writeJSONValue encodes v. Map keys keep their insertion order.
func writeJSONValue(b *strings.Builder, v *value.Value) error {
	v, err := v.Deref()
	if err != nil {
		return err
	}
	switch v.Prim() {
	case value.PrimInt, value.PrimByte:
		b.WriteString(strconv.FormatInt(v.Int(), 10))
		return nil
	case value.PrimDouble:
		if math.IsNaN(v.Double()) || math.IsInf(v.Double(), 0) {
			return diag.TypeErrorf("Json.encode: cannot encode non-finite double")
		}
		b.WriteString(strconv.FormatFloat(v.Double(), 'g', -1, 64))
		return nil
	case value.PrimString:
		return writeJSONString(b, v.Str())
	case value.PrimBool:
		b.WriteString(strconv.FormatBool(v.Bool()))
		return nil
	}
	if v.IsNone() {
		b.WriteString("null")
		return nil
	}
	if vec := v.Vector(); vec != nil {
		b.WriteByte('[')
		for i := 0; i < vec.Len(); i++ {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := writeJSONValue(b, vec.At(i)); err != nil {
				return err
			}
		}
		b.WriteByte(']')
		return nil
	}
	if m := v.Map(); m != nil {
		b.WriteByte('{')
		for i, k := range m.Keys() {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := writeJSONString(b, k); err != nil {
				return err
			}
			b.WriteByte(':')
			elem, _ := m.Get(k)
			if err := writeJSONValue(b, elem); err != nil {
				return err
			}
		}
		b.WriteByte('}')
		return nil
	}
	return diag.TypeErrorf("Json.encode: unsupported value type %s", v.TypeName())
}

func writeJSONString(b *strings.Builder, s string) error {
	encoded, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("Json.encode: invalid string: %w", err)
	}
	b.Write(encoded)
	return nil
}
