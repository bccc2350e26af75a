package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Server provides the HTTP surface carrying health probes, metrics and any
// application routes mounted on top.
type Server struct {
	httpServer *http.Server
	port       int
	mount      func(*http.ServeMux)
}

// NewServer creates an HTTP server on the given port. mount, if non-nil, is
// called with the mux so the application can add its own routes next to the
// observability endpoints.
func NewServer(port int, mount func(*http.ServeMux)) *Server {
	return &Server{
		port:  port,
		mount: mount,
	}
}

// Start starts the server and blocks until it stops.
func (s *Server) Start() error {
	mux := http.NewServeMux()

	// Health endpoints
	mux.HandleFunc("/health", HealthHandler())
	mux.HandleFunc("/health/live", LivenessHandler())
	mux.HandleFunc("/health/ready", ReadinessHandler())

	// Metrics endpoint
	mux.Handle("/metrics", MetricsHandler())

	if s.mount != nil {
		s.mount(mux)
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
