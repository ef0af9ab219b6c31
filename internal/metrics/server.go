package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cutlinehq/cutline/internal/logging"
)

// Server exposes the Prometheus registry over HTTP for processes that
// do not carry an API server of their own, such as the export worker.
type Server struct {
	server *http.Server
	port   int
	log    *logging.Logger
}

// NewServer creates a metrics server listening on the given port.
func NewServer(port int, log *logging.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", healthHandler)

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		port: port,
		log:  log,
	}
}

// Start serves until Shutdown is called. It blocks, so callers run it
// in a goroutine.
func (s *Server) Start() error {
	if s.log != nil {
		s.log.Infof("Starting metrics server on port %d", s.port)
	}
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the metrics server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.log != nil {
		s.log.Info("Shutting down metrics server")
	}
	return s.server.Shutdown(ctx)
}

// healthHandler handles health check requests
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
