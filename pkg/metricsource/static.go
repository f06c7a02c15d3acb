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
	"sync"
	"time"

	"github.com/prometheus/common/model"
)

// Static serves fixed series per expression. Used by tests and dry runs.
type Static struct {
	mu     sync.Mutex
	series map[string]model.Matrix
	errs   map[string]error
}

// NewStatic creates an empty static source.
func NewStatic() *Static {
	return &Static{series: map[string]model.Matrix{}, errs: map[string]error{}}
}

// Set replaces the series returned for expr and clears any injected error.
func (s *Static) Set(expr string, matrix model.Matrix) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.series[expr] = matrix
	delete(s.errs, expr)
}

// Fail makes queries for expr return err until Set is called again.
func (s *Static) Fail(expr string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[expr] = err
}

// Query returns the samples of expr within [start, end]. Streams with no
// sample in range are omitted, as a range query would.
func (s *Static) Query(ctx context.Context, expr string, start, end time.Time, _ time.Duration) (model.Matrix, error) {
	if err := ctx.Err(); err != nil {
		return nil, &QueryError{Expr: expr, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.errs[expr]; err != nil {
		return nil, &QueryError{Expr: expr, Err: err}
	}

	from, to := model.TimeFromUnixNano(start.UnixNano()), model.TimeFromUnixNano(end.UnixNano())
	var result model.Matrix
	for _, stream := range s.series[expr] {
		var values []model.SamplePair
		for _, sample := range stream.Values {
			if sample.Timestamp.Before(from) || sample.Timestamp.After(to) {
				continue
			}
			values = append(values, sample)
		}
		if len(values) == 0 {
			continue
		}
		result = append(result, &model.SampleStream{Metric: stream.Metric.Clone(), Values: values})
	}
	return result, nil
}
