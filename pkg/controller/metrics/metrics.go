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
	"time"

	"github.com/prometheus/client_golang/prometheus"

	pkgmetrics "syncwarden/pkg/metrics"
)

// Pass results used as label values.
const (
	PassSucceeded = "success"
	PassPartial   = "partial"
	PassAborted   = "aborted"
)

// Metrics holds the domain metrics of the sync controller and the alert
// evaluator.
//
// Create one instance per controller run on an instance registry; the
// metrics are released together with it.
type Metrics struct {
	// Sync passes
	PassesTotal        *prometheus.CounterVec
	PassDuration       prometheus.Histogram
	LastSuccessfulPass prometheus.Gauge
	ActionsTotal       *prometheus.CounterVec
	ActionDuration     *prometheus.HistogramVec
	ActionsSkipped     prometheus.Counter
	DriftedResources   prometheus.Gauge
	InSyncResources    prometheus.Gauge
	SourceChangesTotal prometheus.Counter
	CurrentPhase       *prometheus.GaugeVec

	// Alerting
	EvaluationsTotal     *prometheus.CounterVec
	EvaluationDuration   prometheus.Histogram
	AlertInstances       *prometheus.GaugeVec
	AlertsFiring         *prometheus.GaugeVec
	TransitionsTotal     *prometheus.CounterVec
	NotificationFailures *prometheus.CounterVec

	// Event bus
	EventsPublished prometheus.Counter
}

// New creates all domain metrics on registry.
//
// Example:
//
//	registry := prometheus.NewRegistry()
//	m := metrics.New(registry)
func New(registry prometheus.Registerer) *Metrics {
	return &Metrics{
		PassesTotal: pkgmetrics.NewCounterVec(registry,
			"syncwarden_sync_passes_total",
			"Total number of reconciliation passes by result",
			[]string{"result"}),
		PassDuration: pkgmetrics.NewHistogramWithBuckets(registry,
			"syncwarden_sync_pass_duration_seconds",
			"Time spent in reconciliation passes",
			pkgmetrics.DurationBuckets()),
		LastSuccessfulPass: pkgmetrics.NewGauge(registry,
			"syncwarden_sync_last_success_timestamp_seconds",
			"Unix time of the last pass without failures"),
		ActionsTotal: pkgmetrics.NewCounterVec(registry,
			"syncwarden_sync_actions_total",
			"Total number of applied or failed actions",
			[]string{"action", "result"}),
		ActionDuration: pkgmetrics.NewHistogramVec(registry,
			"syncwarden_sync_action_duration_seconds",
			"Time spent applying one action, retries included",
			pkgmetrics.DurationBuckets(),
			[]string{"action"}),
		ActionsSkipped: pkgmetrics.NewCounter(registry,
			"syncwarden_sync_actions_skipped_total",
			"Total number of actions skipped because of cancellation"),
		DriftedResources: pkgmetrics.NewGauge(registry,
			"syncwarden_sync_drifted_resources",
			"Resources that drifted in the last pass and were not reverted"),
		InSyncResources: pkgmetrics.NewGauge(registry,
			"syncwarden_sync_in_sync_resources",
			"Declared resources matching the target after the last pass"),
		SourceChangesTotal: pkgmetrics.NewCounter(registry,
			"syncwarden_source_changes_total",
			"Total number of desired state change notifications"),
		CurrentPhase: pkgmetrics.NewGaugeVec(registry,
			"syncwarden_sync_phase",
			"Current reconciler phase (1 for the active phase)",
			[]string{"phase"}),

		EvaluationsTotal: pkgmetrics.NewCounterVec(registry,
			"syncwarden_alert_evaluations_total",
			"Total number of rule evaluations by result",
			[]string{"rule", "result"}),
		EvaluationDuration: pkgmetrics.NewHistogramWithBuckets(registry,
			"syncwarden_alert_evaluation_duration_seconds",
			"Time spent evaluating one rule",
			pkgmetrics.DurationBuckets()),
		AlertInstances: pkgmetrics.NewGaugeVec(registry,
			"syncwarden_alert_instances",
			"Alert instances tracked per rule",
			[]string{"rule"}),
		AlertsFiring: pkgmetrics.NewGaugeVec(registry,
			"syncwarden_alerts_firing",
			"Firing alert instances per rule",
			[]string{"rule"}),
		TransitionsTotal: pkgmetrics.NewCounterVec(registry,
			"syncwarden_alert_transitions_total",
			"Total number of alert state transitions",
			[]string{"rule", "to"}),
		NotificationFailures: pkgmetrics.NewCounterVec(registry,
			"syncwarden_notification_failures_total",
			"Total number of failed notification deliveries",
			[]string{"sink"}),

		EventsPublished: pkgmetrics.NewCounter(registry,
			"syncwarden_events_total",
			"Total number of events observed on the event bus"),
	}
}

// RecordPass records a completed or aborted pass. Aborted passes carry no
// duration.
func (m *Metrics) RecordPass(result string, duration time.Duration, skipped int) {
	m.PassesTotal.WithLabelValues(result).Inc()
	if duration > 0 {
		m.PassDuration.Observe(duration.Seconds())
	}
	if skipped > 0 {
		m.ActionsSkipped.Add(float64(skipped))
	}
	if result == PassSucceeded {
		m.LastSuccessfulPass.SetToCurrentTime()
	}
}

// RecordAction records one applied or failed action.
func (m *Metrics) RecordAction(action string, failed bool, duration time.Duration) {
	result := "applied"
	if failed {
		result = "failed"
	}
	m.ActionsTotal.WithLabelValues(action, result).Inc()
	if duration > 0 {
		m.ActionDuration.WithLabelValues(action).Observe(duration.Seconds())
	}
}

// SetPhase marks phase as the active reconciler phase.
func (m *Metrics) SetPhase(phase string, phases []string) {
	for _, p := range phases {
		value := 0.0
		if p == phase {
			value = 1
		}
		m.CurrentPhase.WithLabelValues(p).Set(value)
	}
}

// RecordEvaluation records a rule evaluation.
func (m *Metrics) RecordEvaluation(rule string, failed bool, duration time.Duration) {
	result := "success"
	if failed {
		result = "error"
	}
	m.EvaluationsTotal.WithLabelValues(rule, result).Inc()
	if !failed {
		m.EvaluationDuration.Observe(duration.Seconds())
	}
}
