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

package introspection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"syncwarden/pkg/metrics"
)

// Options configures the optional parts of a Server.
type Options struct {
	// Gatherer, when set, is served at /metrics.
	Gatherer prometheus.Gatherer

	// Recorder, when set, observes every request.
	Recorder metrics.Recorder

	// Ready reports readiness for /readyz. Nil means always ready.
	Ready func() error

	Logger *slog.Logger
}

// Server is the status API.
//
// Endpoints:
//   - GET /status            - list status variables
//   - GET /status/{path...}  - one variable, optionally ?field={.jsonpath}
//   - GET /debug/vars        - same index
//   - GET /debug/vars/all    - every variable
//   - GET /debug/vars/{path...}
//   - GET /healthz, /readyz
//   - GET /metrics           - if a Gatherer is configured
type Server struct {
	addr     string
	registry *Registry
	ready    func() error
	handler  http.Handler
	server   *http.Server
	logger   *slog.Logger
}

// NewServer creates a status server for registry.
//
// Example:
//
//	server := introspection.NewServer(":8080", registry, introspection.Options{
//	    Gatherer: promRegistry,
//	    Recorder: httpMetrics,
//	    Logger:   logger,
//	})
//	go server.Start(ctx)
func NewServer(addr string, registry *Registry, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		addr:     addr,
		registry: registry,
		ready:    opts.Ready,
		logger:   logger.With("component", "status-server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.handleIndex)
	mux.HandleFunc("GET /status/{path...}", s.handleVar)
	mux.HandleFunc("GET /debug/vars", s.handleIndex)
	mux.HandleFunc("GET /debug/vars/all", s.handleAllVars)
	mux.HandleFunc("GET /debug/vars/{path...}", s.handleVar)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if opts.Gatherer != nil {
		mux.Handle("GET /metrics", metrics.Handler(opts.Gatherer))
	}
	mux.HandleFunc("/", s.handleNotFound)

	s.handler = mux
	if opts.Recorder != nil {
		s.handler = metrics.Instrument(opts.Recorder, mux)
	}

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the instrumented route handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
// Returns nil on clean shutdown.
func (s *Server) Start(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		s.logger.Info("Starting status server", "addr", s.addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Status server error", "error", err)
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Status server shutting down", "reason", ctx.Err())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		s.logger.Info("Status server stopped")
		return nil

	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.addr
}
