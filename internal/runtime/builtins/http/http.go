package http

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"clever/internal/diag"
	"clever/internal/runtime/builtins"
	"clever/internal/value"
)

func init() {
	builtins.Register(builtins.Module{Name: "http", Install: install})
}

var client = &http.Client{Timeout: 30 * time.Second}

func install(reg *value.Registry) error {
	t := value.NewType("Http", nil)
	t.DefStatic("request", func(c *value.Call) error {
		method, err := c.StringArg(0)
		if err != nil {
			return err
		}
		url, err := c.StringArg(1)
		if err != nil {
			return err
		}
		headers, err := stringMap(c, 2)
		if err != nil {
			return err
		}
		body, err := c.OptString(3, "")
		if err != nil {
			return err
		}
		return do(c, strings.ToUpper(method), url, headers, body)
	}, 2, 4)
	t.DefStatic("get", func(c *value.Call) error {
		url, err := c.StringArg(0)
		if err != nil {
			return err
		}
		return do(c, http.MethodGet, url, nil, "")
	}, 1, 1)
	t.DefStatic("post", func(c *value.Call) error {
		url, err := c.StringArg(0)
		if err != nil {
			return err
		}
		body, err := c.StringArg(1)
		if err != nil {
			return err
		}
		ctype, err := c.OptString(2, "text/plain")
		if err != nil {
			return err
		}
		return do(c, http.MethodPost, url, map[string]string{"Content-Type": ctype}, body)
	}, 2, 3)
	return reg.Register(t)
}

// do performs the request and returns a Map with status, headers and body.
func do(c *value.Call, method, url string, headers map[string]string, body string) error {
	ctx := context.Background()
	if c.Host != nil && c.Host.Context() != nil {
		ctx = c.Host.Context()
	}
	var r io.Reader
	if body != "" {
		r = bytes.NewReader([]byte(body))
	}
	req, err := http.NewRequestWithContext(ctx, method, url, r)
	if err != nil {
		return diag.TypeErrorf("%v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return diag.ResourceErrorf("%v", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return diag.ResourceErrorf("%v", err)
	}

	respHeaders := make(map[string]any, len(resp.Header))
	for k, vals := range resp.Header {
		respHeaders[k] = strings.Join(vals, ", ")
	}
	out, err := builtins.FromNative(c.Reg, map[string]any{
		"status":  int64(resp.StatusCode),
		"headers": respHeaders,
		"body":    string(data),
	})
	if err != nil {
		return err
	}
	c.Return(out)
	return nil
}

// stringMap reads an optional Map argument of string values.
func stringMap(c *value.Call, i int) (map[string]string, error) {
	if i >= c.NumArgs() || c.Arg(i).IsNone() {
		return nil, nil
	}
	m := c.Arg(i).Map()
	if m == nil {
		return nil, diag.TypeErrorf("argument %d of %s must be Map, got %s", i+1, c.Name, c.Arg(i).TypeName())
	}
	out := make(map[string]string, m.Len())
	for _, k := range m.Keys() {
		v, _ := m.Get(k)
		out[k] = v.String()
	}
	return out, nil
}
