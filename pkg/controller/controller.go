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

// Package controller wires syncwarden's components together.
//
// A Controller owns one event bus, one Prometheus registry and one status
// registry. Run starts two independent loops, the reconciler and the alert
// evaluator, next to the event-driven metrics and logging components and the
// HTTP servers, and stops all of them when the context is cancelled:
//
//	ctrl, err := controller.New(ctx, cfg, logger, controller.Dependencies{})
//	if err != nil { ... }
//	defer ctrl.Close()
//	return ctrl.Run(ctx)
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"syncwarden/pkg/alerting"
	"syncwarden/pkg/cluster"
	"syncwarden/pkg/controller/commentator"
	"syncwarden/pkg/controller/debug"
	"syncwarden/pkg/controller/events"
	ctrlmetrics "syncwarden/pkg/controller/metrics"
	"syncwarden/pkg/core/config"
	"syncwarden/pkg/diff"
	busevents "syncwarden/pkg/events"
	"syncwarden/pkg/introspection"
	pkgmetrics "syncwarden/pkg/metrics"
	"syncwarden/pkg/metricsource"
	"syncwarden/pkg/reconciler"
	"syncwarden/pkg/source"
	"syncwarden/pkg/store"
)

// ErrNotReady is reported by /readyz until the first pass has completed.
var ErrNotReady = errors.New("no sync pass completed yet")

// Dependencies overrides the backends built from configuration. Nil fields
// are built from the config.
type Dependencies struct {
	Source   source.Source
	Target   cluster.Target
	Store    store.Store
	Metrics  metricsource.Source
	Notifier alerting.Notifier
}

// Controller is a fully wired syncwarden instance.
type Controller struct {
	cfg    *config.Config
	logger *slog.Logger

	bus         *busevents.EventBus
	promReg     *prometheus.Registry
	httpMetrics *pkgmetrics.HTTPMetrics
	metrics     *ctrlmetrics.Component
	commentator *commentator.EventCommentator
	statusVars  *introspection.Registry

	source     source.Source
	store      store.Store
	reconciler *reconciler.Reconciler
	evaluator  *alerting.Evaluator // nil when no rules are configured
}

// New builds every component. It connects to the store and the cluster but
// starts no goroutines.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, deps Dependencies) (*Controller, error) {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Controller{
		cfg:        cfg,
		logger:     logger,
		bus:        busevents.NewEventBus(100),
		promReg:    prometheus.NewRegistry(),
		statusVars: introspection.NewRegistry(),
	}

	c.metrics = ctrlmetrics.NewComponent(ctrlmetrics.New(c.promReg), c.bus)
	c.httpMetrics = pkgmetrics.NewHTTPMetrics(c.promReg, "syncwarden")
	pkgmetrics.NewCounterFunc(c.promReg,
		"syncwarden_events_dropped_total",
		"Total number of event deliveries dropped because a subscriber was full",
		func() float64 { return float64(c.bus.Dropped()) })
	c.commentator = commentator.NewEventCommentator(c.bus, logger, commentator.DefaultJournalSize)

	var err error
	if c.source, err = buildSource(cfg, deps.Source, logger); err != nil {
		return nil, err
	}
	target, err := buildTarget(cfg, deps.Target, logger)
	if err != nil {
		return nil, err
	}
	if c.store, err = buildStore(ctx, cfg, deps.Store); err != nil {
		return nil, err
	}

	c.reconciler = reconciler.New(c.source, target, c.store, c.bus, logger, reconcilerConfig(cfg))

	if c.evaluator, err = buildEvaluator(cfg, deps, c.bus, logger); err != nil {
		_ = c.store.Close()
		return nil, err
	}

	debug.RegisterVariables(c.statusVars, c)
	return c, nil
}

// Run starts every component and blocks until ctx is cancelled or a
// component fails. Returns nil on graceful shutdown.
func (c *Controller) Run(ctx context.Context) error {
	// Subscribe before the bus starts so startup events are replayed.
	c.metrics.Start()
	c.commentator.Start()

	c.bus.Publish(events.NewControllerStartedEvent(c.source.Reference(), len(c.cfg.Alerting.Rules)))
	c.bus.Start()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error { return c.metrics.Run(gCtx) })
	g.Go(func() error { return c.commentator.Run(gCtx) })
	g.Go(func() error { return c.reconciler.Run(gCtx) })

	if c.evaluator != nil {
		g.Go(func() error { return c.evaluator.Run(gCtx) })
	} else {
		c.logger.Info("No alert rules configured, alert evaluation disabled")
	}

	statusServer := introspection.NewServer(
		fmt.Sprintf(":%d", c.cfg.Controller.StatusPort),
		c.statusVars,
		introspection.Options{
			Gatherer: c.promReg,
			Recorder: c.httpMetrics,
			Ready:    c.ready,
			Logger:   c.logger,
		})
	g.Go(func() error { return statusServer.Start(gCtx) })

	if c.cfg.Controller.MetricsPort > 0 {
		metricsServer := pkgmetrics.NewServer(fmt.Sprintf(":%d", c.cfg.Controller.MetricsPort), c.promReg, c.logger)
		g.Go(func() error { return metricsServer.Start(gCtx) })
	}

	<-gCtx.Done()
	c.bus.Publish(events.NewControllerShutdownEvent(shutdownReason(ctx, gCtx)))

	return g.Wait()
}

// RunOnce performs a single pass without starting the loops or servers.
func (c *Controller) RunOnce(ctx context.Context) (store.PassSummary, error) {
	c.bus.Start()
	return c.reconciler.RunOnce(ctx)
}

// Plan returns the actions the next pass would apply.
func (c *Controller) Plan(ctx context.Context) (*diff.Plan, error) {
	return c.reconciler.Plan(ctx)
}

// Close releases the store.
func (c *Controller) Close() error {
	return c.store.Close()
}

// Gatherer exposes the controller's metrics registry.
func (c *Controller) Gatherer() prometheus.Gatherer {
	return c.promReg
}

// StatusVars exposes the status variable registry.
func (c *Controller) StatusVars() *introspection.Registry {
	return c.statusVars
}

func (c *Controller) ready() error {
	if c.reconciler.Status().LastSummary == nil {
		return ErrNotReady
	}
	return nil
}

func shutdownReason(parent, group context.Context) string {
	if parent.Err() != nil {
		return "context cancelled"
	}
	return fmt.Sprintf("component failed: %v", context.Cause(group))
}
