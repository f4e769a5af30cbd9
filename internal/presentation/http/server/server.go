// Package server provides HTTP server initialization and management.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/spabook-go/pkg/config"
)

// Server wraps the HTTP server with its configuration
type Server struct {
	name       string
	httpServer *http.Server
	logger     *logging.ChanneledLogger
}

// New creates a new HTTP server instance serving handler on port
func New(name, port string, handler http.Handler, logger *logging.ChanneledLogger) *Server {
	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      handler,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	return &Server{
		name:       name,
		httpServer: httpServer,
		logger:     logger,
	}
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	s.logger.Startup().Info("Starting HTTP server", "server", s.name, "addr", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start %s server: %w", s.name, err)
	}

	return nil
}

// Serve accepts connections on an existing listener.
func (s *Server) Serve(l net.Listener) error {
	s.httpServer.Addr = l.Addr().String()
	s.logger.Startup().Info("Starting HTTP server", "server", s.name, "addr", s.httpServer.Addr)

	if err := s.httpServer.Serve(l); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to serve %s: %w", s.name, err)
	}
	return nil
}

// Stop gracefully shuts down the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Shutdown().Info("Shutting down HTTP server", "server", s.name)
	return s.httpServer.Shutdown(ctx)
}
