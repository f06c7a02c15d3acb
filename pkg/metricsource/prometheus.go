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

package metricsource

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/api"
	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// DefaultQueryTimeout bounds a single range query.
const DefaultQueryTimeout = 5 * time.Second

// PrometheusConfig configures the Prometheus HTTP API source.
type PrometheusConfig struct {
	// Address is the base URL of the Prometheus server, e.g. http://prometheus:9090.
	Address string

	// Timeout bounds each query. Defaults to DefaultQueryTimeout.
	Timeout time.Duration

	// RoundTripper overrides the HTTP transport (optional).
	RoundTripper http.RoundTripper
}

// Prometheus queries a Prometheus-compatible HTTP API.
type Prometheus struct {
	api     promv1.API
	address string
	timeout time.Duration
	logger  *slog.Logger
}

// NewPrometheus creates a source for the server at config.Address.
func NewPrometheus(config PrometheusConfig, logger *slog.Logger) (*Prometheus, error) {
	if config.Address == "" {
		return nil, fmt.Errorf("prometheus address is required")
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultQueryTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := api.NewClient(api.Config{
		Address:      config.Address,
		RoundTripper: config.RoundTripper,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus client: %w", err)
	}

	return &Prometheus{
		api:     promv1.NewAPI(client),
		address: config.Address,
		timeout: config.Timeout,
		logger:  logger.With("component", "metric-source", "address", config.Address),
	}, nil
}

// Query runs a range query. Non-matrix results are an error.
func (p *Prometheus) Query(ctx context.Context, expr string, start, end time.Time, step time.Duration) (model.Matrix, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	value, warnings, err := p.api.QueryRange(ctx, expr, promv1.Range{Start: start, End: end, Step: step})
	if err != nil {
		return nil, &QueryError{Expr: expr, Err: err}
	}
	for _, warning := range warnings {
		p.logger.Warn("Query returned warning", "expr", expr, "warning", warning)
	}

	matrix, ok := value.(model.Matrix)
	if !ok {
		return nil, &QueryError{Expr: expr, Err: fmt.Errorf("unexpected result type %s", value.Type())}
	}
	return matrix, nil
}

// String returns the server address.
func (p *Prometheus) String() string {
	return p.address
}
