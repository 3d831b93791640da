package http_test

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"clever/internal/runtime"
	"clever/internal/value"
)

func callStatic(t *testing.T, reg *value.Registry, host value.Host, name string, args ...value.Value) (value.Value, error) {
	t.Helper()
	ty := reg.Lookup("Http")
	m := ty.Method(name)
	if m == nil || !m.Static {
		t.Fatalf("static method Http.%s not found", name)
	}
	if err := m.CheckArity(ty.Name, len(args)); err != nil {
		return value.Value{}, err
	}
	ptrs := make([]*value.Value, len(args))
	for i := range args {
		ptrs[i] = &args[i]
	}
	var res value.Value
	err := m.Fn(&value.Call{Name: "Http." + name, Args: ptrs, Result: &res, Type: ty, Reg: reg, Host: host})
	return res, err
}

func field(t *testing.T, v value.Value, key string) *value.Value {
	t.Helper()
	m := v.Map()
	if m == nil {
		t.Fatalf("expected Map response, got %s", v.TypeName())
	}
	got, ok := m.Get(key)
	if !ok {
		t.Fatalf("response has no %q field", key)
	}
	return got
}

func TestHTTPRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("X-Method", r.Method)
		w.Header().Set("X-Token", r.Header.Get("X-Token"))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("got:" + string(body)))
	}))
	defer srv.Close()

	reg := runtime.MustRegistry()
	host := runtime.NewHost(&bytes.Buffer{}, nil)
	headers := reg.NewMap()
	token := reg.String("abc")
	headers.Map().Set("X-Token", &token)

	resp, err := callStatic(t, reg, host, "request", reg.String("put"), reg.String(srv.URL), headers, reg.String("payload"))
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	if got := field(t, resp, "status").Int(); got != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", got)
	}
	if got := field(t, resp, "body").Str(); got != "got:payload" {
		t.Fatalf("unexpected body %q", got)
	}
	hdrs := field(t, resp, "headers").Map()
	if v, _ := hdrs.Get("X-Method"); v.Str() != "PUT" {
		t.Fatalf("expected method PUT, got %q", v.Str())
	}
	if v, _ := hdrs.Get("X-Token"); v.Str() != "abc" {
		t.Fatalf("expected forwarded header, got %q", v.Str())
	}
}

func TestHTTPGetAndPost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.Method + " " + r.Header.Get("Content-Type")))
	}))
	defer srv.Close()

	reg := runtime.MustRegistry()
	resp, err := callStatic(t, reg, nil, "get", reg.String(srv.URL))
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	if got := field(t, resp, "body").Str(); got != "GET " {
		t.Fatalf("unexpected get body %q", got)
	}
	resp, err = callStatic(t, reg, nil, "post", reg.String(srv.URL), reg.String("{}"), reg.String("application/json"))
	if err != nil {
		t.Fatalf("post error: %v", err)
	}
	if got := field(t, resp, "body").Str(); got != "POST application/json" {
		t.Fatalf("unexpected post body %q", got)
	}
}

func TestHTTPUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	reg := runtime.MustRegistry()
	if _, err := callStatic(t, reg, nil, "get", reg.String(url)); err == nil {
		t.Fatalf("expected error for closed server")
	}
}
