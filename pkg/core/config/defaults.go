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

package config

import (
	"runtime"
	"time"
)

// Default values for configuration fields.
const (
	DefaultNamespace = "default"

	DefaultDebounce = 500 * time.Millisecond

	DefaultRequestTimeout = 30 * time.Second

	DefaultSyncInterval = 3 * time.Minute

	DefaultFetchTimeout = 10 * time.Second

	DefaultApplyTimeout = 10 * time.Second

	DefaultRetryMaxAttempts = 5

	DefaultRetryBaseDelay = 1 * time.Second

	DefaultRetryMaxDelay = 30 * time.Second

	// DefaultStoreDriver keeps state in process memory.
	DefaultStoreDriver = StoreDriverMemory

	DefaultHistoryLimit = 100

	DefaultAlertInterval = time.Minute

	DefaultQueryTimeout = 5 * time.Second

	DefaultAlertRetention = 15 * time.Minute

	DefaultQueryStep = 15 * time.Second

	DefaultWebhookTimeout = 5 * time.Second

	// DefaultStatusPort is the default port for the status API and health checks.
	DefaultStatusPort = 8080

	// DefaultMetricsPort is the default port for Prometheus metrics.
	DefaultMetricsPort = 9090

	DefaultLogLevel = "INFO"

	DefaultLogFormat = "text"
)

// Store drivers.
const (
	StoreDriverMemory   = "memory"
	StoreDriverPostgres = "postgres"
)

// setDefaults applies default values to unset configuration fields.
// Duration strings are left empty; their accessors return the defaults.
func setDefaults(cfg *Config) {
	if cfg.Source.DefaultNamespace == "" {
		cfg.Source.DefaultNamespace = DefaultNamespace
	}
	if cfg.Source.Watch == nil {
		watch := true
		cfg.Source.Watch = &watch
	}

	if cfg.Sync.Workers == 0 {
		cfg.Sync.Workers = runtime.NumCPU()
	}
	if cfg.Sync.Retry.MaxAttempts == 0 {
		cfg.Sync.Retry.MaxAttempts = DefaultRetryMaxAttempts
	}

	if cfg.Store.Driver == "" {
		cfg.Store.Driver = DefaultStoreDriver
	}
	if cfg.Store.HistoryLimit == 0 {
		cfg.Store.HistoryLimit = DefaultHistoryLimit
	}

	if cfg.Notifier.Log == nil {
		enabled := true
		cfg.Notifier.Log = &enabled
	}

	if cfg.Controller.StatusPort == 0 {
		cfg.Controller.StatusPort = DefaultStatusPort
	}
	// -1 disables the dedicated metrics server.
	if cfg.Controller.MetricsPort == 0 {
		cfg.Controller.MetricsPort = DefaultMetricsPort
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}
}

// parseDuration returns the parsed value or def when s is empty or invalid.
func parseDuration(s string, def time.Duration) time.Duration {
	if s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
	}
	return def
}

// GetDebounce returns the change debounce interval.
func (s *SourceConfig) GetDebounce() time.Duration {
	return parseDuration(s.Debounce, DefaultDebounce)
}

// WatchEnabled reports whether file change notifications are enabled.
func (s *SourceConfig) WatchEnabled() bool {
	return s.Watch == nil || *s.Watch
}

// GetRequestTimeout returns the Kubernetes API request timeout.
func (c *ClusterConfig) GetRequestTimeout() time.Duration {
	return parseDuration(c.RequestTimeout, DefaultRequestTimeout)
}

// GetInterval returns the reconciliation interval.
func (s *SyncConfig) GetInterval() time.Duration {
	return parseDuration(s.Interval, DefaultSyncInterval)
}

// GetFetchTimeout returns the desired-state fetch timeout.
func (s *SyncConfig) GetFetchTimeout() time.Duration {
	return parseDuration(s.FetchTimeout, DefaultFetchTimeout)
}

// GetApplyTimeout returns the per-call apply timeout.
func (s *SyncConfig) GetApplyTimeout() time.Duration {
	return parseDuration(s.ApplyTimeout, DefaultApplyTimeout)
}

// GetBaseDelay returns the first retry delay.
func (r *RetryConfig) GetBaseDelay() time.Duration {
	return parseDuration(r.BaseDelay, DefaultRetryBaseDelay)
}

// GetMaxDelay returns the retry delay cap.
func (r *RetryConfig) GetMaxDelay() time.Duration {
	return parseDuration(r.MaxDelay, DefaultRetryMaxDelay)
}

// Enabled reports whether any rule is configured.
func (a *AlertingConfig) Enabled() bool {
	return len(a.Rules) > 0
}

// GetInterval returns the evaluation interval.
func (a *AlertingConfig) GetInterval() time.Duration {
	return parseDuration(a.Interval, DefaultAlertInterval)
}

// GetQueryTimeout returns the per-query timeout.
func (a *AlertingConfig) GetQueryTimeout() time.Duration {
	return parseDuration(a.QueryTimeout, DefaultQueryTimeout)
}

// GetRetention returns the inactive instance retention.
func (a *AlertingConfig) GetRetention() time.Duration {
	return parseDuration(a.Retention, DefaultAlertRetention)
}

// GetStep returns the query resolution.
func (a *AlertingConfig) GetStep() time.Duration {
	return parseDuration(a.Step, DefaultQueryStep)
}

// GetRange returns the rule window (zero when unset or invalid).
func (r *AlertRule) GetRange() time.Duration {
	return parseDuration(r.Range, 0)
}

// GetFor returns the sustain duration (zero when unset).
func (r *AlertRule) GetFor() time.Duration {
	return parseDuration(r.For, 0)
}

// LogEnabled reports whether the log sink is enabled.
func (n *NotifierConfig) LogEnabled() bool {
	return n.Log == nil || *n.Log
}

// GetTimeout returns the webhook delivery timeout.
func (w *WebhookConfig) GetTimeout() time.Duration {
	return parseDuration(w.Timeout, DefaultWebhookTimeout)
}
