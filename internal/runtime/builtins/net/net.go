package net

import (
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"clever/internal/diag"
	"clever/internal/runtime/builtins"
	"clever/internal/value"
)

func init() {
	builtins.Register(builtins.Module{Name: "net", Install: install})
}

const dialTimeout = 10 * time.Second

// maxRead caps one receive call.
const maxRead = 1 << 20

type socket struct {
	mu   sync.Mutex
	conn net.Conn
}

func (s *socket) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

type server struct {
	mu sync.Mutex
	ln net.Listener
}

func (s *server) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	err := s.ln.Close()
	s.ln = nil
	return err
}

func install(reg *value.Registry) error {
	sock := value.NewType("TcpSocket", nil)
	sock.Alloc = func(c *value.Call) (any, error) {
		if c.NumArgs() != 0 {
			return nil, diag.TypeErrorf("TcpSocket takes no arguments, use connect(host, port)")
		}
		return &socket{}, nil
	}
	sock.Dtor = func(o *value.Object) {
		if s, ok := o.Data.(*socket); ok {
			s.close()
		}
	}
	sock.Def("connect", func(c *value.Call) error {
		s, err := value.ThisData[*socket](c)
		if err != nil {
			return err
		}
		addr, err := address(c)
		if err != nil {
			return err
		}
		conn, err := net.DialTimeout("tcp", addr, dialTimeout)
		if err != nil {
			return diag.ResourceErrorf("%v", err)
		}
		s.mu.Lock()
		old := s.conn
		s.conn = conn
		s.mu.Unlock()
		if old != nil {
			old.Close()
		}
		return nil
	}, 2, 2)
	sock.Def("send", withConn(func(c *value.Call, conn net.Conn) error {
		data, err := c.StringArg(0)
		if err != nil {
			return err
		}
		n, err := conn.Write([]byte(data))
		if err != nil {
			return diag.ResourceErrorf("%v", err)
		}
		c.Return(c.Reg.Int(int64(n)))
		return nil
	}), 1, 1)
	sock.Def("receive", withConn(func(c *value.Call, conn net.Conn) error {
		n, err := c.OptInt(0, 4096)
		if err != nil {
			return err
		}
		if n < 0 {
			return diag.TypeErrorf("invalid read size %d", n)
		}
		if n > maxRead {
			n = maxRead
		}
		buf := make([]byte, n)
		nread, err := conn.Read(buf)
		if err != nil && !errors.Is(err, io.EOF) {
			return diag.ResourceErrorf("%v", err)
		}
		c.Return(c.Reg.String(string(buf[:nread])))
		return nil
	}), 0, 1)
	sock.Def("isConnected", func(c *value.Call) error {
		s, err := value.ThisData[*socket](c)
		if err != nil {
			return err
		}
		s.mu.Lock()
		ok := s.conn != nil
		s.mu.Unlock()
		c.Return(c.Reg.Bool(ok))
		return nil
	}, 0, 0)
	sock.Def("close", func(c *value.Call) error {
		s, err := value.ThisData[*socket](c)
		if err != nil {
			return err
		}
		if err := s.close(); err != nil {
			return diag.ResourceErrorf("%v", err)
		}
		return nil
	}, 0, 0)
	if err := reg.Register(sock); err != nil {
		return err
	}

	srv := value.NewType("TcpServer", nil)
	srv.Dtor = func(o *value.Object) {
		if s, ok := o.Data.(*server); ok {
			s.close()
		}
	}
	srv.Def("accept", func(c *value.Call) error {
		s, err := value.ThisData[*server](c)
		if err != nil {
			return err
		}
		s.mu.Lock()
		ln := s.ln
		s.mu.Unlock()
		if ln == nil {
			return diag.ResourceErrorf("server is closed")
		}
		conn, err := ln.Accept()
		if err != nil {
			return diag.ResourceErrorf("%v", err)
		}
		c.Return(c.Reg.NewObject(sock, &socket{conn: conn}))
		return nil
	}, 0, 0)
	srv.Def("port", func(c *value.Call) error {
		s, err := value.ThisData[*server](c)
		if err != nil {
			return err
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.ln == nil {
			return diag.ResourceErrorf("server is closed")
		}
		c.Return(c.Reg.Int(int64(s.ln.Addr().(*net.TCPAddr).Port)))
		return nil
	}, 0, 0)
	srv.Def("close", func(c *value.Call) error {
		s, err := value.ThisData[*server](c)
		if err != nil {
			return err
		}
		if err := s.close(); err != nil {
			return diag.ResourceErrorf("%v", err)
		}
		return nil
	}, 0, 0)
	srv.DefStatic("listen", func(c *value.Call) error {
		addr, err := address(c)
		if err != nil {
			return err
		}
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return diag.ResourceErrorf("%v", err)
		}
		c.Return(c.Reg.NewObject(srv, &server{ln: ln}))
		return nil
	}, 2, 2)
	return reg.Register(srv)
}

// address reads the (host, port) argument pair.
func address(c *value.Call) (string, error) {
	host, err := c.StringArg(0)
	if err != nil {
		return "", err
	}
	port, err := c.IntArg(1)
	if err != nil {
		return "", err
	}
	if port < 0 || port > 65535 {
		return "", diag.TypeErrorf("invalid port %d", port)
	}
	return net.JoinHostPort(host, strconv.FormatInt(port, 10)), nil
}

func withConn(fn func(c *value.Call, conn net.Conn) error) value.NativeFunc {
	return func(c *value.Call) error {
		s, err := value.ThisData[*socket](c)
		if err != nil {
			return err
		}
		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()
		if conn == nil {
			return diag.ResourceErrorf("%s: socket is not connected", c.Name)
		}
		return fn(c, conn)
	}
}
