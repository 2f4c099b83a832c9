// Package server implements the TCP accept loop that terminates the wire
// protocol: one goroutine per accepted connection, a registry of live
// connections keyed by a monotonic ID, and graceful shutdown via
// net.ListenConfig.Listen for context-aware cancellation. Each connection's
// messages are dispatched locally through router.Dispatch; observability
// is available in-process via the event broker's Subscribe, consumed
// directly by cmd/mongofront-inspect rather than over the network.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"

	"github.com/solatis/mongofront/conn"
	"github.com/solatis/mongofront/router"
)

// Config holds the accept loop's tunables.
type Config struct {
	// Addr is the listen address, e.g. "127.0.0.1:27017".
	Addr string
	// MaxConns bounds the number of simultaneously open connections; 0
	// means unbounded.
	MaxConns int
	// MaxMessageBytes bounds an individual frame's declared length.
	MaxMessageBytes int32
}

// Server accepts client connections, dispatching each through a Router
// until the connection closes or the server is shut down.
type Server struct {
	cfg    Config
	router *router.Router

	mu       sync.Mutex
	lis      net.Listener
	conns    map[int64]*conn.Conn
	nextConn atomic.Int64

	connSlots chan struct{}

	wg sync.WaitGroup
}

// New constructs a Server dispatching every accepted connection's messages
// through r.
func New(cfg Config, r *router.Router) *Server {
	s := &Server{
		cfg:    cfg,
		router: r,
		conns:  make(map[int64]*conn.Conn),
	}
	if cfg.MaxConns > 0 {
		s.connSlots = make(chan struct{}, cfg.MaxConns)
	}
	return s
}

// ListenAndServe opens cfg.Addr and accepts connections until ctx is
// cancelled or Close is called, at which point it stops accepting, closes
// every live connection, and waits for their handler goroutines to drain
// before returning.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	lis, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.cfg.Addr, err)
	}
	s.mu.Lock()
	s.lis = lis
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()

	for {
		nc, err := lis.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return nil
			}
			return fmt.Errorf("server: accept: %w", err)
		}
		s.acquireSlot()
		s.wg.Add(1)
		go s.handle(ctx, nc)
	}
}

func (s *Server) acquireSlot() {
	if s.connSlots != nil {
		s.connSlots <- struct{}{}
	}
}

func (s *Server) releaseSlot() {
	if s.connSlots != nil {
		<-s.connSlots
	}
}

func (s *Server) handle(ctx context.Context, nc net.Conn) {
	defer s.wg.Done()
	defer s.releaseSlot()

	id := s.nextConn.Add(1)
	c := conn.New(id, nc, s.cfg.MaxMessageBytes)

	s.mu.Lock()
	s.conns[id] = c
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, id)
		s.mu.Unlock()
		_ = c.Close()
	}()

	for {
		msg, err := c.ReadMessage(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				log.Printf("server: conn %d: %v", id, err)
			}
			return
		}
		if err := s.router.Dispatch(ctx, c, msg); err != nil {
			log.Printf("server: conn %d: dispatch: %v", id, err)
			return
		}
	}
}

// Close stops accepting new connections and closes every live connection,
// unblocking their handler goroutines' blocked reads.
func (s *Server) Close() error {
	s.mu.Lock()
	lis := s.lis
	conns := make([]*conn.Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	var err error
	if lis != nil {
		err = lis.Close()
	}
	for _, c := range conns {
		_ = c.Close()
	}
	return err
}

// ConnCount returns the number of currently live connections.
func (s *Server) ConnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}
