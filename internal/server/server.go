// Package server accepts TCP connections and runs every framed request through
// decode, parse, plan, optimize, evaluate and encode.
//
// Protocol Format:
//
//	Request:  [4 bytes length, big endian][msgpack term]
//	Response: [4 bytes length, big endian][msgpack result or {"error": message}]
//
// Requests on one connection are answered in order. A failing request is
// answered with an error document and the connection stays open; a broken
// frame closes the connection.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/kartikbazzad/bunbase/bunquery/internal/ast"
	"github.com/kartikbazzad/bunbase/bunquery/internal/eval"
	"github.com/kartikbazzad/bunbase/bunquery/internal/metrics"
	"github.com/kartikbazzad/bunbase/bunquery/internal/planner"
	"github.com/kartikbazzad/bunbase/bunquery/internal/storage"
)

var ErrServerClosed = errors.New("server closed")

// Parser turns a decoded request value into a term.
type Parser interface {
	Parse(v ast.Datum) (ast.Term, error)
}

// Evaluator executes an optimized plan.
type Evaluator interface {
	Eval(ctx context.Context, plan planner.PlanNode) (*eval.Result, error)
}

// EvaluatorFactory binds an Evaluator to the shared backend. It is called once
// per request.
type EvaluatorFactory func(backend storage.Backend) Evaluator

type Config struct {
	Addr           string
	MaxConnections int    // 0 = unlimited
	MaxFrameSize   uint32 // 0 = unlimited
}

type Server struct {
	cfg          Config
	backend      storage.Backend
	parser       Parser
	newEvaluator EvaluatorFactory
	logger       *slog.Logger

	listener    net.Listener
	wg          sync.WaitGroup
	mu          sync.Mutex
	running     bool
	closed      bool
	connections map[net.Conn]context.CancelFunc
	connMu      sync.Mutex
	connPool    *ants.Pool // bounds concurrent connection handlers (nil = unlimited)
}

func New(cfg Config, backend storage.Backend, parser Parser, newEvaluator EvaluatorFactory, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		cfg:          cfg,
		backend:      backend,
		parser:       parser,
		newEvaluator: newEvaluator,
		logger:       log.With("component", "server"),
		connections:  make(map[net.Conn]context.CancelFunc),
	}
}

// ListenAndServe binds cfg.Addr and serves until ctx is cancelled or
// Shutdown is called.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled or Shutdown is
// called. It returns nil after a clean shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return ErrServerClosed
	}
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.listener = ln
	s.running = true

	if s.cfg.MaxConnections > 0 {
		connPool, err := ants.NewPool(s.cfg.MaxConnections,
			ants.WithNonblocking(true),
			ants.WithPanicHandler(func(v any) {
				s.logger.Error("connection handler panic", "panic", v)
			}))
		if err != nil {
			s.running = false
			s.mu.Unlock()
			return err
		}
		s.connPool = connPool
	}
	s.mu.Unlock()

	s.logger.Info("listening", "addr", ln.Addr().String(), "max_connections", s.cfg.MaxConnections)

	stop := context.AfterFunc(ctx, func() { s.Shutdown() })
	defer stop()

	return s.acceptLoop(ctx)
}

// Shutdown closes the listener and every open connection, then waits for the
// handlers to return.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	wasRunning := s.running
	s.running = false
	if s.listener != nil {
		s.listener.Close()
	}
	s.mu.Unlock()

	s.connMu.Lock()
	for conn, cancel := range s.connections {
		cancel()
		conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()

	if s.connPool != nil {
		_ = s.connPool.ReleaseTimeout(3 * time.Second)
		s.connPool = nil
	}

	if wasRunning {
		s.logger.Info("server stopped")
	}
	return nil
}

func (s *Server) acceptLoop(ctx context.Context) error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			running := s.running
			s.mu.Unlock()
			if !running {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			s.logger.Error("accept error", "error", err)
			continue
		}

		// Registration happens under mu so that Shutdown sees every
		// connection it has to close.
		s.mu.Lock()
		if !s.running {
			s.mu.Unlock()
			conn.Close()
			return nil
		}
		connCtx, cancel := context.WithCancel(ctx)
		s.connMu.Lock()
		s.connections[conn] = cancel
		s.connMu.Unlock()
		s.wg.Add(1)
		s.mu.Unlock()

		if s.connPool != nil {
			if err := s.connPool.Submit(func() {
				defer s.wg.Done()
				s.handleConnection(connCtx, conn)
			}); err != nil {
				s.wg.Done()
				s.release(conn)
				metrics.ConnectionsTotal.WithLabelValues("rejected").Inc()
				s.logger.Warn("connection rejected", "remote", conn.RemoteAddr().String(), "error", err)
			}
			continue
		}

		go func() {
			defer s.wg.Done()
			s.handleConnection(connCtx, conn)
		}()
	}
}

func (s *Server) release(conn net.Conn) {
	conn.Close()
	s.connMu.Lock()
	if cancel, ok := s.connections[conn]; ok {
		cancel()
		delete(s.connections, conn)
	}
	s.connMu.Unlock()
}
