package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullConfig = `
source:
  path: ./manifests
  subdir: prod
  default_namespace: apps
  debounce: 1s

cluster:
  kubeconfig: /home/me/.kube/config

sync:
  interval: 5m
  fetch_timeout: 20s
  apply_timeout: 15s
  workers: 4
  prune: true
  self_heal: true
  retry:
    max_attempts: 3
    base_delay: 500ms
    max_delay: 10s

store:
  driver: postgres
  dsn: postgres://syncwarden@localhost:5432/syncwarden?sslmode=disable
  history_limit: 50

alerting:
  prometheus_url: http://prometheus:9090
  interval: 30s
  rules:
    - name: HighErrorRate
      expr: hwmonitor_requests_total{http_status=~"5.."}
      range: 5m
      threshold: 10
      for: 2m
      labels:
        severity: critical
      annotations:
        summary: too many errors

notifier:
  log: false
  webhook:
    url: http://alertmanager:9093/api/v2/alerts
    timeout: 3s
    auth:
      type: bearer
      token: abc

controller:
  status_port: 8081
  metrics_port: 9091

logging:
  level: DEBUG
  format: json
`

func TestLoadConfig_Full(t *testing.T) {
	cfg, err := LoadConfig(fullConfig)
	require.NoError(t, err)
	require.NoError(t, ValidateStructure(cfg))

	assert.Equal(t, "./manifests", cfg.Source.Path)
	assert.Equal(t, "prod", cfg.Source.Subdir)
	assert.Equal(t, "apps", cfg.Source.DefaultNamespace)
	assert.Equal(t, time.Second, cfg.Source.GetDebounce())
	assert.True(t, cfg.Source.WatchEnabled())

	assert.Equal(t, 5*time.Minute, cfg.Sync.GetInterval())
	assert.Equal(t, 20*time.Second, cfg.Sync.GetFetchTimeout())
	assert.Equal(t, 15*time.Second, cfg.Sync.GetApplyTimeout())
	assert.Equal(t, 4, cfg.Sync.Workers)
	assert.True(t, cfg.Sync.Prune)
	assert.True(t, cfg.Sync.SelfHeal)
	assert.Equal(t, 3, cfg.Sync.Retry.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Sync.Retry.GetBaseDelay())

	assert.Equal(t, StoreDriverPostgres, cfg.Store.Driver)
	assert.Equal(t, 50, cfg.Store.HistoryLimit)

	require.Len(t, cfg.Alerting.Rules, 1)
	rule := cfg.Alerting.Rules[0]
	assert.Equal(t, "HighErrorRate", rule.Name)
	assert.Equal(t, 5*time.Minute, rule.GetRange())
	assert.Equal(t, 2*time.Minute, rule.GetFor())
	assert.InDelta(t, 10, rule.Threshold, 1e-9)
	assert.Equal(t, "critical", rule.Labels["severity"])
	assert.Equal(t, 30*time.Second, cfg.Alerting.GetInterval())
	assert.Equal(t, DefaultQueryTimeout, cfg.Alerting.GetQueryTimeout())

	assert.False(t, cfg.Notifier.LogEnabled())
	require.NotNil(t, cfg.Notifier.Webhook)
	assert.Equal(t, 3*time.Second, cfg.Notifier.Webhook.GetTimeout())
	assert.Equal(t, "bearer", cfg.Notifier.Webhook.Auth.Type)

	assert.Equal(t, 8081, cfg.Controller.StatusPort)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("source:\n  path: /srv/manifests\n")
	require.NoError(t, err)
	require.NoError(t, ValidateStructure(cfg))

	assert.Equal(t, DefaultNamespace, cfg.Source.DefaultNamespace)
	assert.Equal(t, DefaultDebounce, cfg.Source.GetDebounce())
	assert.True(t, cfg.Source.WatchEnabled())
	assert.Equal(t, DefaultRequestTimeout, cfg.Cluster.GetRequestTimeout())
	assert.Equal(t, DefaultSyncInterval, cfg.Sync.GetInterval())
	assert.Equal(t, runtime.NumCPU(), cfg.Sync.Workers)
	assert.Equal(t, DefaultRetryMaxAttempts, cfg.Sync.Retry.MaxAttempts)
	assert.Equal(t, DefaultRetryMaxDelay, cfg.Sync.Retry.GetMaxDelay())
	assert.False(t, cfg.Sync.Prune)
	assert.False(t, cfg.Sync.SelfHeal)
	assert.Equal(t, StoreDriverMemory, cfg.Store.Driver)
	assert.Equal(t, DefaultHistoryLimit, cfg.Store.HistoryLimit)
	assert.False(t, cfg.Alerting.Enabled())
	assert.Equal(t, DefaultAlertRetention, cfg.Alerting.GetRetention())
	assert.Equal(t, DefaultQueryStep, cfg.Alerting.GetStep())
	assert.True(t, cfg.Notifier.LogEnabled())
	assert.Nil(t, cfg.Notifier.Webhook)
	assert.Equal(t, DefaultStatusPort, cfg.Controller.StatusPort)
	assert.Equal(t, DefaultMetricsPort, cfg.Controller.MetricsPort)
	assert.Equal(t, DefaultLogLevel, cfg.Logging.Level)
	assert.Equal(t, DefaultLogFormat, cfg.Logging.Format)
}

func TestLoadConfig_SetValuesNotOverwritten(t *testing.T) {
	cfg, err := LoadConfig(`
source:
  path: x
  watch: false
sync:
  workers: 2
store:
  history_limit: 7
`)
	require.NoError(t, err)
	assert.False(t, cfg.Source.WatchEnabled())
	assert.Equal(t, 2, cfg.Sync.Workers)
	assert.Equal(t, 7, cfg.Store.HistoryLimit)
}

func TestParseConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"empty", "", "config YAML is empty"},
		{"invalid yaml", "source:\n  path: [unclosed\n", "failed to unmarshal YAML"},
		{"unknown field", "source:\n  paht: x\n", "failed to unmarshal YAML"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := parseConfig(tt.yaml)
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "syncwarden.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fullConfig), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "./manifests", cfg.Source.Path)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestDurationAccessors_InvalidFallsBack(t *testing.T) {
	sc := SyncConfig{Interval: "soon"}
	assert.Equal(t, DefaultSyncInterval, sc.GetInterval())
}

func TestValidateStructure_NilConfig(t *testing.T) {
	err := ValidateStructure(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config is nil")
}

func TestValidateStructure_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing source path", func(c *Config) { c.Source.Path = "" }, "source: path cannot be empty"},
		{"bad debounce", func(c *Config) { c.Source.Debounce = "fast" }, "debounce: invalid duration"},
		{"negative interval", func(c *Config) { c.Sync.Interval = "-1m" }, "interval must be positive"},
		{"zero workers", func(c *Config) { c.Sync.Workers = 0 }, "workers must be at least 1"},
		{"zero attempts", func(c *Config) { c.Sync.Retry.MaxAttempts = 0 }, "retry.max_attempts"},
		{"base above max", func(c *Config) { c.Sync.Retry.BaseDelay = "1m"; c.Sync.Retry.MaxDelay = "1s" }, "cannot exceed"},
		{"unknown driver", func(c *Config) { c.Store.Driver = "redis" }, "driver must be"},
		{"postgres without dsn", func(c *Config) { c.Store.Driver = StoreDriverPostgres }, "dsn is required"},
		{"zero history", func(c *Config) { c.Store.HistoryLimit = 0 }, "history_limit"},
		{"rules without prometheus", func(c *Config) {
			c.Alerting.Rules = []AlertRule{{Name: "a", Expr: "x", Range: "5m"}}
		}, "prometheus_url is required"},
		{"rule without range", func(c *Config) {
			c.Alerting.PrometheusURL = "http://p:9090"
			c.Alerting.Rules = []AlertRule{{Name: "a", Expr: "x"}}
		}, "range cannot be empty"},
		{"rule with negative for", func(c *Config) {
			c.Alerting.PrometheusURL = "http://p:9090"
			c.Alerting.Rules = []AlertRule{{Name: "a", Expr: "x", Range: "5m", For: "-1m"}}
		}, "for cannot be negative"},
		{"duplicate rules", func(c *Config) {
			c.Alerting.PrometheusURL = "http://p:9090"
			c.Alerting.Rules = []AlertRule{{Name: "a", Expr: "x", Range: "5m"}, {Name: "a", Expr: "y", Range: "5m"}}
		}, "duplicate rule name"},
		{"webhook without url", func(c *Config) { c.Notifier.Webhook = &WebhookConfig{} }, "webhook.url cannot be empty"},
		{"webhook bad auth", func(c *Config) {
			c.Notifier.Webhook = &WebhookConfig{URL: "http://am", Auth: &WebhookAuth{Type: "magic"}}
		}, "webhook.auth.type"},
		{"status port out of range", func(c *Config) { c.Controller.StatusPort = 70000 }, "status_port"},
		{"same ports", func(c *Config) { c.Controller.MetricsPort = c.Controller.StatusPort }, "cannot be the same"},
		{"bad level", func(c *Config) { c.Logging.Level = "TRACE" }, "level must be"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "format must be"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig("source:\n  path: /srv\n")
			require.NoError(t, err)
			tt.mutate(cfg)

			err = ValidateStructure(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateStructure_MetricsPortDisabled(t *testing.T) {
	cfg, err := LoadConfig("source:\n  path: /srv\ncontroller:\n  metrics_port: -1\n")
	require.NoError(t, err)
	assert.NoError(t, ValidateStructure(cfg))
}

func TestRedacted(t *testing.T) {
	cfg, err := LoadConfig(`
source:
  path: /srv
store:
  driver: postgres
  dsn: postgres://sync:hunter2@db:5432/syncwarden?sslmode=disable
notifier:
  webhook:
    url: http://alertmanager:9093/api/v2/alerts
    auth:
      type: bearer
      token: secret-token
      headers:
        X-Api-Key: abc
`)
	require.NoError(t, err)

	redacted := cfg.Redacted()

	assert.Equal(t, "postgres://sync:REDACTED@db:5432/syncwarden?sslmode=disable", redacted.Store.DSN)
	assert.Equal(t, "REDACTED", redacted.Notifier.Webhook.Auth.Token)
	assert.Equal(t, map[string]string{"X-Api-Key": "REDACTED"}, redacted.Notifier.Webhook.Auth.Headers)

	// The original is untouched.
	assert.Equal(t, "secret-token", cfg.Notifier.Webhook.Auth.Token)
	assert.Contains(t, cfg.Store.DSN, "hunter2")
	assert.Equal(t, "abc", cfg.Notifier.Webhook.Auth.Headers["X-Api-Key"])
}

func TestRedactDSN_KeyValueForm(t *testing.T) {
	assert.Equal(t, "REDACTED", redactDSN("host=db user=sync password=hunter2"))
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, DefaultStatusPort, cfg.Controller.StatusPort)
	assert.Equal(t, StoreDriverMemory, cfg.Store.Driver)
	assert.Empty(t, cfg.Source.Path)
	assert.ErrorContains(t, ValidateStructure(cfg), "path")
}
