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
	"context"
	"fmt"
	"math"
	"os/signal"
	"runtime"
	"runtime/debug"
	"syscall"

	"github.com/spf13/cobra"

	"syncwarden/pkg/controller"
)

func newRunCmd(opts *options) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the sync loop and alert evaluator",
		Long: `Run the reconciler and the alert evaluator until interrupted.

The status API serves /status/*, /healthz, /readyz and /metrics on the
status port.

Example usage:
  # Run with a configuration file
  syncwarden run --config /etc/syncwarden/config.yaml

  # Out-of-cluster development against a local manifest directory
  syncwarden run --source-path ./manifests --kubeconfig ~/.kube/config

  # Apply once and exit (non-zero exit status if any action failed)
  syncwarden run --config config.yaml --once`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			var gomemlimit string
			if limit := debug.SetMemoryLimit(-1); limit != math.MaxInt64 {
				gomemlimit = fmt.Sprintf("%d bytes (%.2f MiB)", limit, float64(limit)/(1024*1024))
			} else {
				gomemlimit = "unlimited"
			}
			logger.Info("syncwarden starting",
				"version", version,
				"source", cfg.Source.Path,
				"store", cfg.Store.Driver,
				"alert_rules", len(cfg.Alerting.Rules),
				"status_port", cfg.Controller.StatusPort,
				"gomaxprocs", runtime.GOMAXPROCS(0),
				"gomemlimit", gomemlimit)

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer cancel()

			ctrl, err := controller.New(ctx, cfg, logger, controller.Dependencies{})
			if err != nil {
				return err
			}
			defer func() { _ = ctrl.Close() }()

			if once {
				return runOnce(ctx, ctrl)
			}

			if err := ctrl.Run(ctx); err != nil {
				return err
			}
			logger.Info("syncwarden shutdown complete")
			return nil
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Run a single sync pass and exit")
	return cmd
}

func runOnce(ctx context.Context, ctrl *controller.Controller) error {
	summary, err := ctrl.RunOnce(ctx)
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d actions failed", summary.Failed, summary.Failed+summary.Created+summary.Updated+summary.Deleted)
	}
	return nil
}
