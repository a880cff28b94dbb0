// Package api provides the HTTP REST API for the assistant.
//
// Endpoints:
//   - POST /message  - produce one persona reply for a message sequence
//   - GET  /events   - SSE stream of generation status events per session
//   - GET  /health   - liveness probe
//   - GET  /ready    - readiness probe
//
// File structure:
//   - server.go: HTTP server setup and lifecycle
//   - middleware.go: HTTP middleware (logging, recovery, CORS)
//   - health.go: health check endpoints
//   - message.go: the reply endpoint
//   - events.go: the SSE status stream
//   - response.go: JSON response helpers
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/camilo-ai/camilo/internal/chat"
	"github.com/camilo-ai/camilo/internal/events"
	"github.com/camilo-ai/camilo/internal/log"
)

const (
	// DefaultAddr is the default address for the HTTP server.
	DefaultAddr = "127.0.0.1:3001"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout is the timeout for reading request headers.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is the maximum duration for writing the response.
	// Generous because a reply may drive several backend round-trips.
	WriteTimeout = 300 * time.Second

	// IdleTimeout is the maximum time to wait for the next request on
	// keep-alive connections.
	IdleTimeout = 120 * time.Second
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Assistant   *chat.Assistant // required
	Broker      *events.Broker  // required for /events
	Pool        *pgxpool.Pool   // optional: nil disables pool ping in /ready
	Logger      log.Logger
	CORSOrigins []string
}

// Server is the HTTP server for the assistant's REST API.
type Server struct {
	mux         *http.ServeMux
	logger      log.Logger
	corsOrigins []string
}

// NewServer creates a new HTTP server with all routes registered.
func NewServer(cfg ServerConfig) *Server {
	mux := http.NewServeMux()

	health := &HealthHandler{pool: cfg.Pool, logger: cfg.Logger}
	health.RegisterRoutes(mux)

	message := &MessageHandler{assistant: cfg.Assistant, logger: cfg.Logger}
	message.RegisterRoutes(mux)

	stream := &EventsHandler{broker: cfg.Broker, logger: cfg.Logger}
	stream.RegisterRoutes(mux)

	return &Server{
		mux:         mux,
		logger:      cfg.Logger,
		corsOrigins: cfg.CORSOrigins,
	}
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery → logging → CORS → handler.
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware(s.logger),
		loggingMiddleware(s.logger),
		corsMiddleware(s.corsOrigins),
	)
}

// Run starts the HTTP server and blocks until the context is cancelled.
// It handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
