// Package host runs the search side of the protocol. It listens on a unix
// socket, gives every connection its own identity and hands search requests
// to the executor.
package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/standardbeagle/lcs/internal/debug"
	lcserrors "github.com/standardbeagle/lcs/internal/errors"
	"github.com/standardbeagle/lcs/internal/protocol"
	"github.com/standardbeagle/lcs/internal/search"
)

// DefaultSocketPath returns the shared socket path used when no root is known.
func DefaultSocketPath() string {
	return filepath.Join(os.TempDir(), "lcs-server.sock")
}

// SocketPathForRoot returns a project-specific socket path so hosts for
// different roots can run side by side.
func SocketPathForRoot(root string) string {
	if root == "" {
		return DefaultSocketPath()
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return DefaultSocketPath()
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("lcs-server-%016x.sock", xxhash.Sum64String(absRoot)))
}

// Options configure a Server.
type Options struct {
	SocketPath       string
	DefaultExclude   string
	ProgressInterval time.Duration
}

// Server accepts client connections and runs their searches.
type Server struct {
	opts         Options
	registry     *search.Registry
	executor     *search.Executor
	listener     net.Listener
	startTime    time.Time
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	baseCtx      context.Context
	stop         context.CancelFunc
	wg           sync.WaitGroup
	mu           sync.Mutex
	running      bool
	conns        map[search.ConnID]net.Conn
}

// NewServer creates a server. Call Start to begin listening.
func NewServer(opts Options) *Server {
	if opts.SocketPath == "" {
		opts.SocketPath = DefaultSocketPath()
	}
	registry := search.NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		opts:     opts,
		registry: registry,
		executor: search.NewExecutor(registry, search.Options{
			DefaultExclude:   opts.DefaultExclude,
			ProgressInterval: opts.ProgressInterval,
		}),
		shutdownChan: make(chan struct{}),
		baseCtx:      ctx,
		stop:         cancel,
		conns:        make(map[search.ConnID]net.Conn),
	}
}

// Addr returns the socket path the server listens on.
func (s *Server) Addr() string {
	return s.opts.SocketPath
}

// ActiveSearches returns the number of connections with a live search.
func (s *Server) ActiveSearches() int {
	return s.registry.Len()
}

// Uptime reports how long the server has been running.
func (s *Server) Uptime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return 0
	}
	return time.Since(s.startTime)
}

// Start begins listening for client connections.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.mu.Unlock()

	// A stale socket from a crashed host would make Listen fail.
	socketPath := s.opts.SocketPath
	_ = os.Remove(socketPath)

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("failed to create socket: %w", err)
	}
	_ = os.Chmod(socketPath, 0o600)

	s.mu.Lock()
	s.listener = listener
	s.running = true
	s.startTime = time.Now()
	s.mu.Unlock()

	s.wg.Add(1)
	go s.acceptLoop(listener)

	debug.LogHost("search host started on %s (pid: %d)", socketPath, os.Getpid())
	return nil
}

func (s *Server) acceptLoop(listener net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			debug.LogHost("accept error: %v", err)
			return
		}

		id := search.ConnID(uuid.NewString())
		s.mu.Lock()
		if !s.running {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.conns[id] = conn
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handleConn(id, conn)
	}
}

// handleConn reads envelopes until the connection goes away. Each start
// request runs on its own goroutine so a cancel can arrive while it runs.
func (s *Server) handleConn(id search.ConnID, conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.registry.Remove(id)
		s.mu.Lock()
		delete(s.conns, id)
		s.mu.Unlock()
		conn.Close()
		debug.LogHost("connection %s closed", id)
	}()
	debug.LogHost("connection %s opened", id)

	enc := protocol.NewEncoder(conn)
	dec := protocol.NewDecoder(conn)
	for {
		env, err := dec.Decode()
		if err != nil {
			if errors.Is(err, protocol.ErrMalformed) {
				debug.LogHost("%v", lcserrors.NewProtocolError("", err))
				continue
			}
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				debug.LogHost("connection %s read error: %v", id, err)
			}
			return
		}
		s.dispatch(id, env, enc)
	}
}

func (s *Server) dispatch(id search.ConnID, env protocol.Envelope, enc *protocol.Encoder) {
	switch env.Channel {
	case protocol.ChannelStart:
		var req protocol.SearchRequest
		if err := env.Decode(&req); err != nil {
			debug.LogHost("%v", lcserrors.NewProtocolError(string(env.Channel), err))
			return
		}
		ctx := s.registry.Begin(s.baseCtx, id, req.SearchID)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.executor.Run(ctx, id, req, enc)
		}()

	case protocol.ChannelCancel:
		if s.registry.Cancel(id) {
			debug.LogHost("connection %s cancelled its search", id)
		}

	default:
		debug.LogHost("%v", lcserrors.NewProtocolError(string(env.Channel), errors.New("unknown channel")))
	}
}

// Wait blocks until the server is shut down.
func (s *Server) Wait() {
	<-s.shutdownChan
}

// Shutdown stops accepting connections, cancels every search, closes all
// connections and waits for their goroutines to exit.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	listener := s.listener
	conns := make([]net.Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	s.stop()
	if listener != nil {
		listener.Close()
	}
	for _, c := range conns {
		c.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = fmt.Errorf("server shutdown error: %w", ctx.Err())
	}

	_ = os.Remove(s.opts.SocketPath)
	s.shutdownOnce.Do(func() { close(s.shutdownChan) })

	debug.LogHost("search host shut down")
	return err
}
