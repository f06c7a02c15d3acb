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

// Package config provides the data model of the syncwarden configuration
// file.
//
// Durations are Go duration strings ("3m", "500ms") resolved through the
// Get* accessors, which fall back to the defaults when a value is unset.
package config

// Config is the root configuration structure.
type Config struct {
	// Source configures where the desired state is read from.
	Source SourceConfig `yaml:"source"`

	// Cluster configures access to the Kubernetes API.
	Cluster ClusterConfig `yaml:"cluster"`

	// Sync configures the reconciliation loop.
	Sync SyncConfig `yaml:"sync"`

	// Store configures where snapshots and pass summaries are kept.
	Store StoreConfig `yaml:"store"`

	// Alerting configures the alert evaluator. Evaluation is disabled when
	// no rules are configured.
	Alerting AlertingConfig `yaml:"alerting"`

	// Notifier configures where alert transitions are delivered.
	Notifier NotifierConfig `yaml:"notifier"`

	// Controller contains process-level settings (ports).
	Controller ControllerConfig `yaml:"controller"`

	// Logging configures logging behavior.
	Logging LoggingConfig `yaml:"logging"`
}

// SourceConfig points at a directory of manifests.
type SourceConfig struct {
	// Path is the repository root.
	Path string `yaml:"path"`

	// Subdir narrows the source to a subdirectory of Path (optional).
	Subdir string `yaml:"subdir"`

	// DefaultNamespace applies to namespaced manifests without one.
	// Default: default
	DefaultNamespace string `yaml:"default_namespace"`

	// Debounce coalesces bursts of file changes.
	// Default: 500ms
	Debounce string `yaml:"debounce"`

	// Watch enables file change notifications in addition to the interval.
	// Default: true
	Watch *bool `yaml:"watch"`
}

// ClusterConfig configures the Kubernetes client.
type ClusterConfig struct {
	// Kubeconfig is the kubeconfig path; empty means in-cluster.
	Kubeconfig string `yaml:"kubeconfig"`

	// RequestTimeout bounds a single API request.
	// Default: 30s
	RequestTimeout string `yaml:"request_timeout"`
}

// SyncConfig configures reconciliation passes.
type SyncConfig struct {
	// Interval between passes when no change is signalled.
	// Default: 3m
	Interval string `yaml:"interval"`

	// FetchTimeout bounds reading the desired state.
	// Default: 10s
	FetchTimeout string `yaml:"fetch_timeout"`

	// ApplyTimeout bounds a single create/update/delete call.
	// Default: 10s
	ApplyTimeout string `yaml:"apply_timeout"`

	// Workers bounds concurrent actions within a priority tier.
	// Default: number of CPUs
	Workers int `yaml:"workers"`

	// Prune deletes managed objects that are no longer declared.
	Prune bool `yaml:"prune"`

	// SelfHeal reverts drift. When false, drift is only reported.
	SelfHeal bool `yaml:"self_heal"`

	// Retry configures per-action retries.
	Retry RetryConfig `yaml:"retry"`
}

// RetryConfig configures per-action retry with exponential backoff.
type RetryConfig struct {
	// MaxAttempts including the first one.
	// Default: 5
	MaxAttempts int `yaml:"max_attempts"`

	// BaseDelay before the second attempt.
	// Default: 1s
	BaseDelay string `yaml:"base_delay"`

	// MaxDelay caps the backoff.
	// Default: 30s
	MaxDelay string `yaml:"max_delay"`
}

// StoreConfig selects the state store backend.
type StoreConfig struct {
	// Driver is "memory" or "postgres".
	// Default: memory
	Driver string `yaml:"driver"`

	// DSN is the PostgreSQL connection string (postgres driver only).
	//
	// Example: postgres://syncwarden:secret@db:5432/syncwarden?sslmode=disable
	DSN string `yaml:"dsn"`

	// HistoryLimit is the number of pass summaries kept.
	// Default: 100
	HistoryLimit int `yaml:"history_limit"`
}

// AlertingConfig configures the alert evaluator.
type AlertingConfig struct {
	// PrometheusURL is the base URL of the metrics backend.
	PrometheusURL string `yaml:"prometheus_url"`

	// Interval between evaluations.
	// Default: 1m
	Interval string `yaml:"interval"`

	// QueryTimeout bounds one rule query.
	// Default: 5s
	QueryTimeout string `yaml:"query_timeout"`

	// Retention is how long a resolved alert instance is kept before it is dropped.
	// Default: 15m
	Retention string `yaml:"retention"`

	// Step is the range query resolution.
	// Default: 15s
	Step string `yaml:"step"`

	// Rules are the alerting rules.
	Rules []AlertRule `yaml:"rules"`
}

// AlertRule is a windowed increase threshold rule.
type AlertRule struct {
	Name string `yaml:"name"`

	// Expr is the series expression, e.g. hwmonitor_requests_total{http_status=~"5.."}.
	Expr string `yaml:"expr"`

	// Range is the sliding window, e.g. "5m".
	Range string `yaml:"range"`

	// Threshold is exceeded when the increase over Range is strictly greater.
	Threshold float64 `yaml:"threshold"`

	// For is how long the breach must last before firing. Empty fires at once.
	For string `yaml:"for"`

	Labels      map[string]string `yaml:"labels"`
	Annotations map[string]string `yaml:"annotations"`
}

// NotifierConfig configures alert transition sinks.
type NotifierConfig struct {
	// Log enables the log sink.
	// Default: true
	Log *bool `yaml:"log"`

	// Webhook enables the Alertmanager-compatible webhook sink (optional).
	Webhook *WebhookConfig `yaml:"webhook"`
}

// WebhookConfig configures the webhook sink.
type WebhookConfig struct {
	URL string `yaml:"url"`

	// Timeout bounds a single delivery.
	// Default: 5s
	Timeout string `yaml:"timeout"`

	GeneratorURL string `yaml:"generator_url"`

	Auth *WebhookAuth `yaml:"auth"`
}

// WebhookAuth configures webhook authentication.
type WebhookAuth struct {
	// Type is one of basic, bearer, header.
	Type     string            `yaml:"type"`
	Username string            `yaml:"username"`
	Password string            `yaml:"password"`
	Token    string            `yaml:"token"`
	Headers  map[string]string `yaml:"headers"`
}

// ControllerConfig contains process-level configuration.
type ControllerConfig struct {
	// StatusPort serves /status/*, /healthz and /metrics.
	// Default: 8080
	StatusPort int `yaml:"status_port"`

	// MetricsPort serves a dedicated Prometheus endpoint (-1 disables it).
	// Default: 9090
	MetricsPort int `yaml:"metrics_port"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	// Level is one of ERROR, WARNING, INFO, DEBUG.
	// Default: INFO
	Level string `yaml:"level"`

	// Format is text (logfmt) or json.
	// Default: text
	Format string `yaml:"format"`
}
