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

package reconciler

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"syncwarden/pkg/cluster"
	"syncwarden/pkg/controller/events"
	"syncwarden/pkg/diff"
	"syncwarden/pkg/resource"
	"syncwarden/pkg/store"
)

// runPass executes one pass and records its summary. It never panics on
// target or source errors; they end up in the summary.
func (r *Reconciler) runPass(ctx context.Context, reason string) store.PassSummary {
	r.passMu.Lock()
	defer r.passMu.Unlock()

	passID := uuid.NewString()
	summary := store.PassSummary{
		ID:        passID,
		Reference: r.source.Reference(),
		Started:   time.Now(),
	}
	logger := r.logger.With("pass_id", passID)

	r.publish(events.NewSyncStartedEvent(passID, reason))
	logger.Debug("Pass started", "reason", reason)

	// Fetching
	r.setPhase(passID, PhaseFetching)
	desired, observed, err := r.fetch(ctx)
	if err != nil {
		return r.abort(ctx, summary, PhaseFetching, err)
	}

	// Diffing
	if err := ctx.Err(); err != nil {
		return r.abort(ctx, summary, PhaseDiffing, err)
	}
	r.setPhase(passID, PhaseDiffing)

	plan := diff.Compute(desired, observed, r.config.Policy)
	counts := plan.Summary()
	summary.Drift = plan.Drift
	summary.Warnings = plan.Warnings
	summary.Unchanged = uniqueIdentities(desired) - counts.Creates - counts.Updates - counts.Drifted

	for _, warning := range plan.Warnings {
		logger.Warn("Plan warning", "warning", warning)
	}
	if len(plan.Drift) > 0 {
		logger.Warn("Drift detected, self-heal disabled", "resources", len(plan.Drift))
		r.publish(events.NewDriftDetectedEvent(passID, plan.Drift))
	}

	// Applying
	if err := ctx.Err(); err != nil {
		return r.abort(ctx, summary, PhaseApplying, err)
	}
	r.setPhase(passID, PhaseApplying)

	result := r.apply(ctx, passID, plan)
	summary.Created = result.applied[diff.ActionCreate]
	summary.Updated = result.applied[diff.ActionUpdate]
	summary.Deleted = result.applied[diff.ActionDelete]
	summary.Unchanged += result.converged
	summary.Failed = len(result.failures)
	summary.Failures = result.failures
	summary.Skipped = result.skipped
	if result.skipped > 0 {
		summary.Error = "cancelled: " + ctx.Err().Error()
	}

	r.record(ctx, summary, desired, logger)

	r.setPhase(passID, PhaseIdle)
	summary.Duration = time.Since(summary.Started)
	r.finish(summary)

	logger.Info("Pass completed",
		"created", summary.Created,
		"updated", summary.Updated,
		"deleted", summary.Deleted,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"drifted", len(summary.Drift),
		"duration", summary.Duration)
	r.publish(events.NewSyncCompletedEvent(summary))

	return summary
}

// abort records a pass that stopped before or during a phase boundary.
func (r *Reconciler) abort(ctx context.Context, summary store.PassSummary, phase Phase, err error) store.PassSummary {
	summary.Error = err.Error()
	summary.Duration = time.Since(summary.Started)

	r.logger.Error("Pass aborted",
		"pass_id", summary.ID,
		"phase", phase.String(),
		"error", err)

	r.appendSummary(ctx, summary)
	r.setPhase(summary.ID, PhaseIdle)
	r.finish(summary)
	r.publish(events.NewSyncFailedEvent(summary.ID, phase.String(), err))
	return summary
}

// record re-reads the observed state and writes the snapshot and summary.
// It runs on a context detached from cancellation so that a pass cut short by
// shutdown is still recorded.
func (r *Reconciler) record(ctx context.Context, summary store.PassSummary, desired []resource.Spec, logger *slog.Logger) {
	detached := context.WithoutCancel(ctx)

	observed, err := cluster.ListAll(detached, r.target, r.config.FetchTimeout)
	if err != nil {
		logger.Warn("Failed to re-read observed state, snapshot not updated", "error", err)
	} else {
		snapshot := store.Snapshot{
			PassID:     summary.ID,
			Reference:  summary.Reference,
			RecordedAt: time.Now(),
			Desired:    desired,
			Observed:   observed,
		}
		if err := r.store.SaveSnapshot(detached, snapshot); err != nil {
			logger.Warn("Failed to save snapshot", "error", err)
		}
	}

	summary.Duration = time.Since(summary.Started)
	r.appendSummary(detached, summary)
}

func (r *Reconciler) appendSummary(ctx context.Context, summary store.PassSummary) {
	if err := r.store.AppendSummary(context.WithoutCancel(ctx), summary); err != nil {
		r.logger.Warn("Failed to record pass summary", "pass_id", summary.ID, "error", err)
	}
}

func (r *Reconciler) finish(summary store.PassSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastSummary = &summary
}

func uniqueIdentities(specs []resource.Spec) int {
	seen := make(map[resource.Identity]struct{}, len(specs))
	for _, spec := range specs {
		seen[spec.ID] = struct{}{}
	}
	return len(seen)
}
