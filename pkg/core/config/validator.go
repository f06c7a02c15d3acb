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
	"fmt"
	"net/url"
	"time"

	"syncwarden/pkg/core/logging"
)

// ValidateStructure performs structural validation on the configuration:
// required fields, value ranges and parseable durations. It does not touch
// the filesystem or the network.
func ValidateStructure(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	if err := validateSourceConfig(&cfg.Source); err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if err := validateDuration("request_timeout", cfg.Cluster.RequestTimeout); err != nil {
		return fmt.Errorf("cluster: %w", err)
	}
	if err := validateSyncConfig(&cfg.Sync); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	if err := validateStoreConfig(&cfg.Store); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := validateAlertingConfig(&cfg.Alerting); err != nil {
		return fmt.Errorf("alerting: %w", err)
	}
	if err := validateNotifierConfig(&cfg.Notifier); err != nil {
		return fmt.Errorf("notifier: %w", err)
	}
	if err := validateControllerConfig(&cfg.Controller); err != nil {
		return fmt.Errorf("controller: %w", err)
	}
	if err := validateLoggingConfig(&cfg.Logging); err != nil {
		return fmt.Errorf("logging: %w", err)
	}

	return nil
}

// validateDuration accepts empty (default) or a positive Go duration.
func validateDuration(field, value string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q: %w", field, value, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive, got %s", field, value)
	}
	return nil
}

func validateSourceConfig(sc *SourceConfig) error {
	if sc.Path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	return validateDuration("debounce", sc.Debounce)
}

func validateSyncConfig(sc *SyncConfig) error {
	for field, value := range map[string]string{
		"interval":      sc.Interval,
		"fetch_timeout": sc.FetchTimeout,
		"apply_timeout": sc.ApplyTimeout,
	} {
		if err := validateDuration(field, value); err != nil {
			return err
		}
	}

	if sc.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", sc.Workers)
	}

	if sc.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1, got %d", sc.Retry.MaxAttempts)
	}
	if err := validateDuration("retry.base_delay", sc.Retry.BaseDelay); err != nil {
		return err
	}
	if err := validateDuration("retry.max_delay", sc.Retry.MaxDelay); err != nil {
		return err
	}
	if sc.Retry.GetBaseDelay() > sc.Retry.GetMaxDelay() {
		return fmt.Errorf("retry.base_delay (%s) cannot exceed retry.max_delay (%s)",
			sc.Retry.GetBaseDelay(), sc.Retry.GetMaxDelay())
	}

	return nil
}

func validateStoreConfig(sc *StoreConfig) error {
	switch sc.Driver {
	case StoreDriverMemory:
	case StoreDriverPostgres:
		if sc.DSN == "" {
			return fmt.Errorf("dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("driver must be %q or %q, got %q", StoreDriverMemory, StoreDriverPostgres, sc.Driver)
	}

	if sc.HistoryLimit < 1 {
		return fmt.Errorf("history_limit must be at least 1, got %d", sc.HistoryLimit)
	}
	return nil
}

func validateAlertingConfig(ac *AlertingConfig) error {
	for field, value := range map[string]string{
		"interval":      ac.Interval,
		"query_timeout": ac.QueryTimeout,
		"retention":     ac.Retention,
		"step":          ac.Step,
	} {
		if err := validateDuration(field, value); err != nil {
			return err
		}
	}

	if !ac.Enabled() {
		return nil
	}

	if ac.PrometheusURL == "" {
		return fmt.Errorf("prometheus_url is required when rules are configured")
	}
	if _, err := url.ParseRequestURI(ac.PrometheusURL); err != nil {
		return fmt.Errorf("prometheus_url: %w", err)
	}

	names := make(map[string]struct{}, len(ac.Rules))
	for i := range ac.Rules {
		rule := &ac.Rules[i]
		if err := validateAlertRule(rule); err != nil {
			return fmt.Errorf("rules[%d]: %w", i, err)
		}
		if _, dup := names[rule.Name]; dup {
			return fmt.Errorf("rules[%d]: duplicate rule name %q", i, rule.Name)
		}
		names[rule.Name] = struct{}{}
	}
	return nil
}

func validateAlertRule(rule *AlertRule) error {
	if rule.Name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if rule.Expr == "" {
		return fmt.Errorf("rule %q: expr cannot be empty", rule.Name)
	}
	if rule.Range == "" {
		return fmt.Errorf("rule %q: range cannot be empty", rule.Name)
	}
	if err := validateDuration("range", rule.Range); err != nil {
		return fmt.Errorf("rule %q: %w", rule.Name, err)
	}
	if rule.For != "" {
		d, err := time.ParseDuration(rule.For)
		if err != nil {
			return fmt.Errorf("rule %q: for: invalid duration %q: %w", rule.Name, rule.For, err)
		}
		if d < 0 {
			return fmt.Errorf("rule %q: for cannot be negative", rule.Name)
		}
	}
	return nil
}

func validateNotifierConfig(nc *NotifierConfig) error {
	if nc.Webhook == nil {
		return nil
	}

	if nc.Webhook.URL == "" {
		return fmt.Errorf("webhook.url cannot be empty")
	}
	if _, err := url.ParseRequestURI(nc.Webhook.URL); err != nil {
		return fmt.Errorf("webhook.url: %w", err)
	}
	if err := validateDuration("webhook.timeout", nc.Webhook.Timeout); err != nil {
		return err
	}

	if auth := nc.Webhook.Auth; auth != nil {
		switch auth.Type {
		case "basic", "bearer", "header":
		default:
			return fmt.Errorf("webhook.auth.type must be basic, bearer or header, got %q", auth.Type)
		}
	}
	return nil
}

func validateControllerConfig(cc *ControllerConfig) error {
	if cc.StatusPort < 1 || cc.StatusPort > 65535 {
		return fmt.Errorf("status_port must be between 1 and 65535, got %d", cc.StatusPort)
	}

	if cc.MetricsPort == -1 {
		return nil
	}
	if cc.MetricsPort < 1 || cc.MetricsPort > 65535 {
		return fmt.Errorf("metrics_port must be between 1 and 65535 or -1, got %d", cc.MetricsPort)
	}
	if cc.StatusPort == cc.MetricsPort {
		return fmt.Errorf("status_port and metrics_port cannot be the same (%d)", cc.StatusPort)
	}
	return nil
}

func validateLoggingConfig(lc *LoggingConfig) error {
	if !logging.ValidLevel(lc.Level) {
		return fmt.Errorf("level must be ERROR, WARNING, INFO or DEBUG, got %q", lc.Level)
	}
	switch lc.Format {
	case logging.FormatText, logging.FormatJSON:
	default:
		return fmt.Errorf("format must be text or json, got %q", lc.Format)
	}
	return nil
}
