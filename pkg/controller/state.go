package controller

import (
	"context"

	"syncwarden/pkg/alerting"
	"syncwarden/pkg/controller/commentator"
	"syncwarden/pkg/core/config"
	"syncwarden/pkg/reconciler"
	"syncwarden/pkg/store"
)

// The Controller is the status API's debug.StateProvider.

func (c *Controller) SyncStatus() reconciler.Status {
	return c.reconciler.Status()
}

func (c *Controller) History(ctx context.Context, limit int) ([]store.PassSummary, error) {
	return c.store.History(ctx, limit)
}

func (c *Controller) Snapshot(ctx context.Context) (*store.Snapshot, error) {
	return c.store.LatestSnapshot(ctx)
}

func (c *Controller) Alerts() []alerting.InstanceStatus {
	if c.evaluator == nil {
		return []alerting.InstanceStatus{}
	}
	return c.evaluator.Instances()
}

func (c *Controller) Rules() []alerting.RuleStatus {
	if c.evaluator == nil {
		return []alerting.RuleStatus{}
	}
	return c.evaluator.Rules()
}

func (c *Controller) Config() *config.Config {
	return c.cfg.Redacted()
}

func (c *Controller) RecentEvents(n int) []commentator.Entry {
	return c.commentator.Recent(n)
}
