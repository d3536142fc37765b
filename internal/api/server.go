package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ignite/paybench/internal/config"
)

// Server represents the API server
type Server struct {
	config  config.ServerConfig
	handler http.Handler
	server  *http.Server
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, rt Routes) *Server {
	if len(rt.AllowedOrigins) == 0 {
		rt.AllowedOrigins = cfg.AllowedOrigins
	}
	return &Server{config: cfg, handler: SetupRoutes(rt)}
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	s.server = &http.Server{
		Addr:    s.config.Addr(),
		Handler: s.handler,
		// Commits run inside the request, so writes get a long deadline.
		ReadTimeout:       2 * time.Minute,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing
func (s *Server) Handler() http.Handler {
	return s.handler
}
