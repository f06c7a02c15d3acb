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

// Package metrics provides Prometheus helpers shared by all components:
// constructors bound to an instance registry, the metrics HTTP server and
// the HTTP instrumentation middleware.
//
// All constructors take an explicit prometheus.Registerer. Pass an instance
// registry (prometheus.NewRegistry()), never the global default, so that
// metrics live exactly as long as the controller that owns them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// NewCounter creates and registers a counter.
func NewCounter(registry prometheus.Registerer, name, help string) prometheus.Counter {
	return promauto.With(registry).NewCounter(prometheus.CounterOpts{Name: name, Help: help})
}

// NewCounterVec creates and registers a labelled counter.
func NewCounterVec(registry prometheus.Registerer, name, help string, labels []string) *prometheus.CounterVec {
	return promauto.With(registry).NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels)
}

// NewGauge creates and registers a gauge.
func NewGauge(registry prometheus.Registerer, name, help string) prometheus.Gauge {
	return promauto.With(registry).NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
}

// NewGaugeVec creates and registers a labelled gauge.
func NewGaugeVec(registry prometheus.Registerer, name, help string, labels []string) *prometheus.GaugeVec {
	return promauto.With(registry).NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help}, labels)
}

// NewGaugeFunc registers a gauge whose value is read from fn at scrape time.
func NewGaugeFunc(registry prometheus.Registerer, name, help string, fn func() float64) prometheus.GaugeFunc {
	return promauto.With(registry).NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, fn)
}

// NewCounterFunc registers a counter whose value is read from fn at scrape time.
func NewCounterFunc(registry prometheus.Registerer, name, help string, fn func() float64) prometheus.CounterFunc {
	return promauto.With(registry).NewCounterFunc(prometheus.CounterOpts{Name: name, Help: help}, fn)
}

// NewHistogramWithBuckets creates and registers a histogram.
func NewHistogramWithBuckets(registry prometheus.Registerer, name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
		Name:    name,
		Help:    help,
		Buckets: buckets,
	})
}

// NewHistogramVec creates and registers a labelled histogram.
func NewHistogramVec(registry prometheus.Registerer, name, help string, buckets []float64, labels []string) *prometheus.HistogramVec {
	return promauto.With(registry).NewHistogramVec(prometheus.HistogramOpts{
		Name:    name,
		Help:    help,
		Buckets: buckets,
	}, labels)
}

// DurationBuckets suits operations between 10ms and 10s, such as a
// reconciliation pass or a metric query.
func DurationBuckets() []float64 {
	return []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0}
}

// RequestBuckets suits HTTP request latencies.
func RequestBuckets() []float64 {
	return prometheus.DefBuckets
}
