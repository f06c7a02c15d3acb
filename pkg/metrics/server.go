// Copyright 2025 Philipp Hossner
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns the Prometheus exposition handler for gatherer.
//
// OpenMetrics is negotiated when the scraper asks for it. The status server
// mounts this handler at /metrics next to the status routes.
//
// Example:
//
//	mux.Handle("GET /metrics", metrics.Handler(registry))
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Server serves /metrics for an instance registry.
//
// Server is instance-based, never bound to prometheus.DefaultRegisterer. A
// controller built twice in one process, as the tests do, gets two servers
// that expose two independent registries.
//
// The server is optional: the status server already exposes /metrics, and
// this one only runs when a dedicated metrics port is configured.
type Server struct {
	addr   string
	server *http.Server
	logger *slog.Logger
}

// NewServer creates a metrics server.
//
// Parameters:
//   - addr: TCP address to listen on (e.g. ":9090" or "localhost:9090")
//   - gatherer: the instance registry to serve (prometheus.NewRegistry())
//   - logger: base logger; nil uses slog.Default()
//
// Example:
//
//	registry := prometheus.NewRegistry()
//	server := metrics.NewServer(":9090", registry, logger)
//	go server.Start(ctx)
func NewServer(addr string, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))

	return &Server{
		addr:   addr,
		logger: logger.With("component", "metrics-server"),
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully.
//
// Start blocks, so it is usually run from an errgroup next to the other
// components:
//
//	g.Go(func() error { return server.Start(gCtx) })
//
// Active scrapes get up to 10 seconds to finish during shutdown. Returns nil
// on clean shutdown and an error when the listener fails, for example because
// the port is taken.
func (s *Server) Start(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		s.logger.Info("Starting metrics server", "addr", s.addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		s.logger.Info("Metrics server stopped")
		return nil

	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}
}

// Addr returns the address the server was configured with.
func (s *Server) Addr() string {
	return s.addr
}
