// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/toolshop-ai/toolshop/internal/logging"
	"github.com/toolshop-ai/toolshop/internal/session"
	"github.com/toolshop-ai/toolshop/internal/tools"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultAddr is used when no address is configured.
	DefaultAddr = "127.0.0.1:8088"

	// MaxRequestBodySize bounds the JSON parameters of a call (1MB).
	MaxRequestBodySize = 1 << 20

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout = 10 * time.Second
)

// =============================================================================
// SERVER
// =============================================================================

// Server serves the tool registry of a Toolset over HTTP.
type Server struct {
	router  *mux.Router
	toolset *tools.Toolset
	session *session.Manager
	logger  *zap.Logger
	server  *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and tool logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSession saves the session after every tool call.
func WithSession(m *session.Manager) Option {
	return func(s *Server) { s.session = m }
}

// NewServer returns a Server for ts listening on addr.
func NewServer(addr string, ts *tools.Toolset, opts ...Option) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	s := &Server{
		router:  mux.NewRouter(),
		toolset: ts,
		logger:  logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router.Use(
		RecoveryMiddleware(s.logger),
		LoggingMiddleware(s.logger),
		SecurityHeadersMiddleware(),
	)
	s.registerRoutes()

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // tool calls are bounded by the executor timeout
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// registerRoutes wires every endpoint to its handler.
func (s *Server) registerRoutes() {
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	s.router.HandleFunc("/tools", s.handleListTools).Methods(http.MethodGet)
	s.router.HandleFunc("/tools/{name}", s.handleGetTool).Methods(http.MethodGet)
	s.router.HandleFunc("/tools/{name}", s.handleCallTool).Methods(http.MethodPost)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, http.StatusNotFound, "no route for "+r.URL.Path)
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, r.Method+" not allowed on "+r.URL.Path)
	})
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}

// Start listens and serves until Shutdown is called.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown is called. It returns nil after a
// graceful shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("API server starting",
		zap.String("addr", ln.Addr().String()),
		zap.Int("tools", s.toolset.Registry.Len()))
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	}
}

// Shutdown gracefully drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("API server shutting down")
	return s.server.Shutdown(ctx)
}
