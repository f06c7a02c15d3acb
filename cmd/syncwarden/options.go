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

package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"syncwarden/pkg/core/config"
	"syncwarden/pkg/core/logging"
)

// options holds the flags shared by all commands.
type options struct {
	configPath    string
	sourcePath    string
	kubeconfig    string
	prometheusURL string
	logLevel      string
	logFormat     string
	statusPort    int
	metricsPort   int
}

func (o *options) bindPersistent(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVarP(&o.configPath, "config", "c", "", "Path to the configuration file (env: SYNCWARDEN_CONFIG)")
	flags.StringVar(&o.sourcePath, "source-path", "", "Directory holding the desired-state manifests (env: SYNCWARDEN_SOURCE_PATH)")
	flags.StringVar(&o.kubeconfig, "kubeconfig", "", "Path to kubeconfig for out-of-cluster use (env: KUBECONFIG)")
	flags.StringVar(&o.prometheusURL, "prometheus-url", "", "Prometheus base URL for alert rules (env: SYNCWARDEN_PROMETHEUS_URL)")
	flags.StringVar(&o.logLevel, "log-level", "", "Log level: ERROR, WARNING, INFO, DEBUG (env: SYNCWARDEN_LOG_LEVEL)")
	flags.StringVar(&o.logFormat, "log-format", "", "Log format: text or json (env: SYNCWARDEN_LOG_FORMAT)")
	flags.IntVar(&o.statusPort, "status-port", 0, "Port for the status API (env: SYNCWARDEN_STATUS_PORT)")
	flags.IntVar(&o.metricsPort, "metrics-port", 0, "Port for the metrics server, -1 disables (env: SYNCWARDEN_METRICS_PORT)")
}

// load resolves the configuration: flags, then environment, then file,
// then defaults. The result is validated.
func (o *options) load(cmd *cobra.Command) (*config.Config, error) {
	path := firstNonEmpty(o.configPath, os.Getenv("SYNCWARDEN_CONFIG"))

	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.LoadFile(path); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	o.applyFlags(cmd, cfg)

	if err := config.ValidateStructure(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *config.Config) error {
	setString(&cfg.Source.Path, os.Getenv("SYNCWARDEN_SOURCE_PATH"))
	setString(&cfg.Cluster.Kubeconfig, os.Getenv("KUBECONFIG"))
	setString(&cfg.Alerting.PrometheusURL, os.Getenv("SYNCWARDEN_PROMETHEUS_URL"))
	setString(&cfg.Logging.Level, os.Getenv("SYNCWARDEN_LOG_LEVEL"))
	setString(&cfg.Logging.Format, os.Getenv("SYNCWARDEN_LOG_FORMAT"))

	for name, target := range map[string]*int{
		"SYNCWARDEN_STATUS_PORT":  &cfg.Controller.StatusPort,
		"SYNCWARDEN_METRICS_PORT": &cfg.Controller.MetricsPort,
	} {
		value := os.Getenv(name)
		if value == "" {
			continue
		}
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*target = port
	}
	return nil
}

func (o *options) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("source-path") {
		cfg.Source.Path = o.sourcePath
	}
	if flags.Changed("kubeconfig") {
		cfg.Cluster.Kubeconfig = o.kubeconfig
	}
	if flags.Changed("prometheus-url") {
		cfg.Alerting.PrometheusURL = o.prometheusURL
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = o.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = o.logFormat
	}
	if flags.Changed("status-port") {
		cfg.Controller.StatusPort = o.statusPort
	}
	if flags.Changed("metrics-port") {
		cfg.Controller.MetricsPort = o.metricsPort
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	logger := logging.New(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)
	return logger
}

func setString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
