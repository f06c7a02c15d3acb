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

// Package metricsource reads metric time series for the alert evaluator.
//
// Implementations return range query results as a prometheus/common
// model.Matrix: one SampleStream per label set, samples in ascending time.
package metricsource

import (
	"context"
	"time"

	"github.com/prometheus/common/model"
)

// Source answers range queries.
type Source interface {
	// Query evaluates expr over [start, end] at the given resolution step.
	// Blocking; implementations honour ctx deadlines.
	Query(ctx context.Context, expr string, start, end time.Time, step time.Duration) (model.Matrix, error)
}

// QueryError is returned when a query could not be answered.
type QueryError struct {
	Expr string
	Err  error
}

func (e *QueryError) Error() string {
	return "query " + e.Expr + " failed: " + e.Err.Error()
}

func (e *QueryError) Unwrap() error {
	return e.Err
}
