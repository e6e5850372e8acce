// Package server implements the CLI front-end: a TCP listener that
// negotiates telnet character mode on accept and hands each connection
// off to its own session.Session, per spec.md §4.J.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/netnexus/controlplane/internal/cli/dispatcher"
	"github.com/netnexus/controlplane/internal/cli/session"
	"github.com/netnexus/controlplane/internal/domain/tree"
)

// DefaultPort is the CLI's listening port.
const DefaultPort = 3788

// backlog mirrors the original daemon's listen(2) backlog of 5: this
// is an operator console, not a public-facing service, and a short
// backlog surfaces connection storms as refusals instead of queuing.
const backlog = 5

// Server accepts CLI connections and spawns a session per connection.
type Server struct {
	Addr string

	hostname   string
	views      *tree.ViewTree
	dispatcher *dispatcher.Dispatcher
	globalHist *session.History
	completer  *session.Completer
	logger     *slog.Logger

	nextBusID uint32

	mu       sync.Mutex
	sessions map[uuid.UUID]*session.Session
	ln       net.Listener
}

// Config bundles a Server's collaborators.
type Config struct {
	Addr       string
	Hostname   string
	Views      *tree.ViewTree
	Dispatcher *dispatcher.Dispatcher
	Logger     *slog.Logger
}

// New constructs a Server. A single History ring (capacity 200) and
// Completer (capacity 256) are shared across every session this server
// ever accepts, per spec.md §4.I's global-history requirement.
func New(cfg Config) *Server {
	addr := cfg.Addr
	if addr == "" {
		addr = fmt.Sprintf(":%d", DefaultPort)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		Addr:       addr,
		hostname:   cfg.Hostname,
		views:      cfg.Views,
		dispatcher: cfg.Dispatcher,
		globalHist: session.NewHistory(200),
		completer:  session.NewCompleter(256),
		logger:     logger,
		sessions:   make(map[uuid.UUID]*session.Session),
	}
}

// ListenAndServe listens on s.Addr and serves connections until ctx is
// cancelled, at which point the listener closes and every open session
// is torn down (its underlying connection closed, which unblocks its
// Run loop).
func (s *Server) ListenAndServe(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("cli server: listen %s: %w", s.Addr, err)
	}
	if tl, ok := ln.(*net.TCPListener); ok {
		ln = tcpKeepaliveListener{tl}
	}
	s.ln = ln
	s.logger.Info("cli server listening", "addr", s.Addr)

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	var wg sync.WaitGroup
	for {
		conn, err := ln.Accept()
		if err != nil {
			wg.Wait()
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.serve(ctx, conn)
		}()
	}
}

func (s *Server) serve(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	id := uuid.New()
	busID := atomic.AddUint32(&s.nextBusID, 1)
	sess := session.New(id, busID, s.hostname, s.views, s.dispatcher, s.globalHist, s.completer, s.logger)

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
	}()

	remote := conn.RemoteAddr()
	s.logger.Info("cli session opened", "session_id", id, "remote", remote)
	if err := sess.Run(ctx, conn); err != nil {
		s.logger.Warn("cli session ended with error", "session_id", id, "error", err)
	} else {
		s.logger.Info("cli session closed", "session_id", id)
	}
}

// SessionCount reports how many connections are currently open, for
// the admin HTTP surface (component N).
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// tcpKeepaliveListener enables TCP keep-alives on accepted connections,
// the way a long-lived operator console should, so a half-dead network
// path is noticed instead of leaking a session forever.
type tcpKeepaliveListener struct {
	*net.TCPListener
}

func (ln tcpKeepaliveListener) Accept() (net.Conn, error) {
	conn, err := ln.AcceptTCP()
	if err != nil {
		return nil, err
	}
	_ = conn.SetKeepAlive(true)
	return conn, nil
}
