// Package server exposes health, statistics and prometheus metrics over HTTP.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"beatgrok/internal/handlers"
	"beatgrok/internal/logger"
	"beatgrok/internal/middleware"
)

// Config holds server configuration
type Config struct {
	Addr   string
	Health handlers.HealthCheck
	Stats  handlers.StatsFunc
}

// Server is the operational HTTP server.
type Server struct {
	http *http.Server
	done chan struct{}
}

// New builds the server. It does not listen until Start.
func New(cfg Config) *Server {
	return &Server{
		http: &http.Server{
			Addr:         cfg.Addr,
			Handler:      Handler(cfg),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		done: make(chan struct{}),
	}
}

// Handler returns the routed handler with middleware applied.
func Handler(cfg Config) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", handlers.Health(cfg.Health))
	mux.HandleFunc("/stats", handlers.Stats(cfg.Stats))
	mux.Handle("/metrics", promhttp.Handler())

	return middleware.Chain(mux, middleware.Recovery, middleware.Logging)
}

// Start listens on the configured address and serves in the background.
// The listen error is returned synchronously.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		close(s.done)
		return err
	}

	log := logger.WithComponent("server")
	log.Info().Str("addr", ln.Addr().String()).Msg("starting HTTP server")

	go func() {
		defer close(s.done)
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	select {
	case <-s.done:
	case <-ctx.Done():
	}
	return err
}
