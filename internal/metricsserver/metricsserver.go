// Package metricsserver exposes the process's Prometheus metrics and a
// liveness probe over HTTP, grounded on the teacher's internal/server
// (chi router + go-chi/cors middleware stack, http.Server with the same
// read/write/idle timeouts) minus the TLS/autocert machinery that
// endpoint doesn't need.
package metricsserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server serves GET /health and GET /metrics.
type Server struct {
	httpServer *http.Server
}

// New builds a Server bound to addr (e.g. ":9090", per
// config.MetricsConfig.Addr). allowedOrigins mirrors the teacher's CORS
// gate on internal/server.NewRouter; an empty slice disables CORS
// entirely, as it does there.
func New(addr string, allowedOrigins []string) *Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{"GET"},
			MaxAge:         86400,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
	}
}

// Start blocks serving until the listener is closed via Shutdown. It
// returns http.ErrServerClosed on a clean shutdown, matching the
// teacher's Server.Start contract.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the address the server is configured to listen on.
func (s *Server) Addr() string { return s.httpServer.Addr }
