package server

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"
)

type echoHandler struct {
	mu    sync.Mutex
	count int
}

func (h *echoHandler) HandleConnection(_ context.Context, conn net.Conn) {
	defer func() {
		_ = conn.Close()
	}()
	h.mu.Lock()
	h.count++
	h.mu.Unlock()
	_, _ = io.Copy(conn, conn)
}

func TestServer_ServesConnectionsUntilStopped(t *testing.T) {
	h := &echoHandler{}
	s := New("127.0.0.1:0", h)
	if err := s.Listen(); err != nil {
		t.Fatalf("listen: %v", err)
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.Serve(context.Background())
	}()

	conn, err := net.Dial("tcp", s.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if _, err := conn.Write([]byte("ping")); err != nil {
		t.Fatalf("write: %v", err)
	}
	buf := make([]byte, 4)
	if _, err := io.ReadFull(conn, buf); err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(buf) != "ping" {
		t.Fatalf("expected echo, got %q", buf)
	}
	_ = conn.Close()

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
	if err := <-serveErr; err != nil {
		t.Fatalf("unexpected serve error: %v", err)
	}
	if h.count != 1 {
		t.Fatalf("expected one handled connection, got %d", h.count)
	}
}

func TestServer_ServeWithoutListenFails(t *testing.T) {
	s := New("127.0.0.1:0", &echoHandler{})
	if err := s.Serve(context.Background()); err == nil {
		t.Fatal("expected error when serving before listen")
	}
	if s.Addr() != nil {
		t.Fatal("expected nil addr before listen")
	}
}
