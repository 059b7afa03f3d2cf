package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
)

type ConnectionHandler interface {
	HandleConnection(ctx context.Context, conn net.Conn)
}

// Server accepts TCP clients and hands each one to its own goroutine.
type Server struct {
	addr    string
	handler ConnectionHandler

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
	shutdown chan struct{}
	stopOnce sync.Once
}

func New(addr string, handler ConnectionHandler) *Server {
	return &Server{
		addr:     addr,
		handler:  handler,
		shutdown: make(chan struct{}),
	}
}

// Listen binds the listening socket. Serve must be called afterwards.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	slog.Info("relay server listening", "addr", listener.Addr().String())
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts connections until Stop is called. ctx is passed to every
// connection handler.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if listener == nil {
		return errors.New("server is not listening")
	}

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			slog.Warn("accept failed", "error", err)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			slog.Info("client connected", "remote_addr", conn.RemoteAddr().String())
			s.handler.HandleConnection(ctx, conn)
		}()
	}
}

// Stop closes the listener and waits for every connection handler to return.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.shutdown)
		s.mu.Lock()
		listener := s.listener
		s.mu.Unlock()
		if listener != nil {
			if err := listener.Close(); err != nil {
				slog.Warn("failed to close listener", "error", err)
			}
		}
	})
	s.wg.Wait()
}
