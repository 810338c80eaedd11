package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server serves Prometheus metrics and a liveness probe on a dedicated port.
type Server struct {
	httpServer *http.Server
	log        *slog.Logger
}

// NewServer creates a metrics server exposing /metrics and /healthz on port.
func NewServer(port int, reg *prometheus.Registry) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: slog.With("component", "metrics-server"),
	}
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins serving metrics. Blocks until the server stops.
func (s *Server) Start() error {
	s.log.Info("Starting metrics server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.log.Error("Metrics server error", "error", err)
		return err
	}
	return nil
}

// Shutdown gracefully stops the metrics server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
