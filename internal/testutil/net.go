package testutil

import (
	"bytes"
	"io"
	"net"
	"sync"
	"testing"
)

// PipeConn создаёт пару соединений через net.Pipe и закрывает их по завершении теста.
// Запись в net.Pipe блокируется до чтения на другой стороне.
func PipeConn(tb testing.TB) (client, server net.Conn) {
	tb.Helper()

	server, client = net.Pipe()
	tb.Cleanup(func() {
		_ = server.Close()
		_ = client.Close()
	})
	return client, server
}

// ListenTCP создаёт TCP listener на случайном порту loopback.
func ListenTCP(tb testing.TB) (net.Listener, string) {
	tb.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		tb.Fatalf("failed to create TCP listener: %v", err)
	}
	tb.Cleanup(func() { _ = ln.Close() })
	return ln, ln.Addr().String()
}

// FakeAddr реализует net.Addr для тестов.
type FakeAddr struct {
	NetworkName string
	AddrString  string
}

func (f FakeAddr) Network() string { return f.NetworkName }
func (f FakeAddr) String() string  { return f.AddrString }

// TCPAddr создаёт FakeAddr для TCP соединения.
func TCPAddr(addr string) FakeAddr {
	return FakeAddr{NetworkName: "tcp", AddrString: addr}
}

// ScriptedConn отдаёт заранее заданные куски при чтении и запоминает всё записанное.
// После последнего куска Read возвращает io.EOF.
type ScriptedConn struct {
	mu     sync.Mutex
	reads  [][]byte
	writes bytes.Buffer
	closed bool
}

// NewScriptedConn создаёт соединение, которое прочитает chunks по одному за вызов Read.
func NewScriptedConn(chunks ...[]byte) *ScriptedConn {
	return &ScriptedConn{reads: chunks}
}

func (c *ScriptedConn) Read(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, net.ErrClosed
	}
	if len(c.reads) == 0 {
		return 0, io.EOF
	}
	n := copy(b, c.reads[0])
	if n < len(c.reads[0]) {
		c.reads[0] = c.reads[0][n:]
	} else {
		c.reads = c.reads[1:]
	}
	return n, nil
}

func (c *ScriptedConn) Write(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, net.ErrClosed
	}
	return c.writes.Write(b)
}

// Written возвращает копию всего записанного.
func (c *ScriptedConn) Written() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return bytes.Clone(c.writes.Bytes())
}

func (c *ScriptedConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
