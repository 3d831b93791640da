package net_test

import (
	"bufio"
	"net"
	"strconv"
	"testing"

	"clever/internal/runtime"
	"clever/internal/value"
)

func call(t *testing.T, reg *value.Registry, ty *value.Type, this *value.Value, name string, args ...value.Value) (value.Value, error) {
	t.Helper()
	m := ty.Method(name)
	if m == nil {
		t.Fatalf("method %s.%s not found", ty.Name, name)
	}
	if err := m.CheckArity(ty.Name, len(args)); err != nil {
		return value.Value{}, err
	}
	ptrs := make([]*value.Value, len(args))
	for i := range args {
		ptrs[i] = &args[i]
	}
	var res value.Value
	err := m.Fn(&value.Call{Name: ty.Name + "." + name, Args: ptrs, Result: &res, This: this, Type: ty, Reg: reg})
	return res, err
}

func newSocket(t *testing.T, reg *value.Registry) value.Value {
	t.Helper()
	var res value.Value
	ty := reg.Lookup("TcpSocket")
	if err := reg.Construct(ty, &value.Call{Name: "TcpSocket", Result: &res, Type: ty, Reg: reg}); err != nil {
		t.Fatalf("construct TcpSocket: %v", err)
	}
	return res
}

func TestSocketSendReceive(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		line, _ := bufio.NewReader(conn).ReadString('\n')
		conn.Write([]byte("echo:" + line))
	}()

	reg := runtime.MustRegistry()
	sockType := reg.Lookup("TcpSocket")
	sock := newSocket(t, reg)
	defer sock.Release()

	connected, _ := call(t, reg, sockType, &sock, "isConnected")
	if connected.Bool() {
		t.Fatalf("fresh socket reports connected")
	}
	port := ln.Addr().(*net.TCPAddr).Port
	if _, err := call(t, reg, sockType, &sock, "connect", reg.String("127.0.0.1"), reg.Int(int64(port))); err != nil {
		t.Fatalf("connect: %v", err)
	}
	n, err := call(t, reg, sockType, &sock, "send", reg.String("ping\n"))
	if err != nil || n.Int() != 5 {
		t.Fatalf("send = %d, %v", n.Int(), err)
	}
	got, err := call(t, reg, sockType, &sock, "receive", reg.Int(1<<62))
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if got.Str() != "echo:ping\n" {
		t.Fatalf("receive = %q", got.Str())
	}
	if _, err := call(t, reg, sockType, &sock, "close"); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := call(t, reg, sockType, &sock, "send", reg.String("x")); err == nil {
		t.Fatalf("expected error sending on closed socket")
	}
}

func TestServerListenAccept(t *testing.T) {
	reg := runtime.MustRegistry()
	srvType := reg.Lookup("TcpServer")
	sockType := reg.Lookup("TcpSocket")

	srv, err := call(t, reg, srvType, nil, "listen", reg.String("127.0.0.1"), reg.Int(0))
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer srv.Release()
	port, err := call(t, reg, srvType, &srv, "port")
	if err != nil || port.Int() == 0 {
		t.Fatalf("port = %d, %v", port.Int(), err)
	}

	done := make(chan error, 1)
	go func() {
		conn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.FormatInt(port.Int(), 10)))
		if err == nil {
			_, err = conn.Write([]byte("hi"))
			conn.Close()
		}
		done <- err
	}()

	peer, err := call(t, reg, srvType, &srv, "accept")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	defer peer.Release()
	if peer.TypeName() != "TcpSocket" {
		t.Fatalf("accept returned %s", peer.TypeName())
	}
	if err := <-done; err != nil {
		t.Fatalf("dial: %v", err)
	}
	got, err := call(t, reg, sockType, &peer, "receive")
	if err != nil || got.Str() != "hi" {
		t.Fatalf("receive = %q, %v", got.Str(), err)
	}
}

func TestSocketInvalidPort(t *testing.T) {
	reg := runtime.MustRegistry()
	sock := newSocket(t, reg)
	defer sock.Release()
	if _, err := call(t, reg, reg.Lookup("TcpSocket"), &sock, "connect", reg.String("127.0.0.1"), reg.Int(70000)); err == nil {
		t.Fatalf("expected error for port out of range")
	}
}
