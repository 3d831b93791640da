package yaml

import (
	"strings"

	"gopkg.in/yaml.v3"

	"clever/internal/diag"
	"clever/internal/runtime/builtins"
	"clever/internal/value"
)

func init() {
	builtins.Register(builtins.Module{Name: "yaml", Install: install})
}

func install(reg *value.Registry) error {
	t := value.NewType("Yaml", nil)
	t.DefStatic("decode", func(c *value.Call) error {
		text, err := c.StringArg(0)
		if err != nil {
			return err
		}
		var data any
		if err := yaml.Unmarshal([]byte(text), &data); err != nil {
			return diag.TypeErrorf("Yaml.decode: %v", err)
		}
		v, err := builtins.FromNative(c.Reg, data)
		if err != nil {
			return err
		}
		c.Return(v)
		return nil
	}, 1, 1)
	t.DefStatic("encode", func(c *value.Call) error {
		node, err := toNode(c.Arg(0))
		if err != nil {
			return err
		}
		var b strings.Builder
		enc := yaml.NewEncoder(&b)
		enc.SetIndent(2)
		if err := enc.Encode(node); err != nil {
			return diag.TypeErrorf("Yaml.encode: %v", err)
		}
		if err := enc.Close(); err != nil {
			return diag.TypeErrorf("Yaml.encode: %v", err)
		}
		c.Return(c.Reg.String(b.String()))
		return nil
	}, 1, 1)
	return reg.Register(t)
}

// toNode builds a document tree from a script value. Map entries keep
// their insertion order.
func toNode(v *value.Value) (*yaml.Node, error) {
	v, err := v.Deref()
	if err != nil {
		return nil, err
	}
	if vec := v.Vector(); vec != nil {
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for i := 0; i < vec.Len(); i++ {
			elem, err := toNode(vec.At(i))
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, elem)
		}
		return n, nil
	}
	if m := v.Map(); m != nil {
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, k := range m.Keys() {
			key := &yaml.Node{}
			if err := key.Encode(k); err != nil {
				return nil, diag.TypeErrorf("Yaml.encode: %v", err)
			}
			elem, _ := m.Get(k)
			val, err := toNode(elem)
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, key, val)
		}
		return n, nil
	}
	data, err := builtins.ToNative(v)
	if err != nil {
		return nil, err
	}
	n := &yaml.Node{}
	if err := n.Encode(data); err != nil {
		return nil, diag.TypeErrorf("Yaml.encode: %v", err)
	}
	return n, nil
}
