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

// Package reconciler drives the control loop that converges the target onto
// the declared desired state.
//
// Each pass fetches the desired state from a Source and the observed state
// from a Target, computes a plan with the diff engine and applies it in the
// order deletes, creates, updates. Passes are stateless: drift is re-derived
// from scratch every time, and nothing but the summary and the last snapshot
// outlives a pass.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"syncwarden/pkg/cluster"
	"syncwarden/pkg/controller/events"
	"syncwarden/pkg/diff"
	busevents "syncwarden/pkg/events"
	"syncwarden/pkg/resource"
	"syncwarden/pkg/source"
	"syncwarden/pkg/store"
)

// ErrPassAborted is returned by RunOnce when the pass stopped before applying.
var ErrPassAborted = errors.New("reconciliation pass aborted")

// Status is a point-in-time view of the reconciler.
type Status struct {
	Phase       Phase              `json:"phase"`
	PassID      string             `json:"pass_id,omitempty"`
	PhaseSince  time.Time          `json:"phase_since"`
	Policy      diff.Policy        `json:"policy"`
	Reference   string             `json:"reference"`
	LastSummary *store.PassSummary `json:"last_summary,omitempty"`
}

// Reconciler runs reconciliation passes.
type Reconciler struct {
	source source.Source
	target cluster.Target
	store  store.Store
	bus    *busevents.EventBus
	logger *slog.Logger
	config Config

	mu          sync.RWMutex
	phase       Phase
	phaseSince  time.Time
	passID      string
	lastSummary *store.PassSummary

	// passMu serialises passes started by Run and RunOnce.
	passMu sync.Mutex
}

// New creates a Reconciler.
//
// Parameters:
//   - src: where the desired state is read from
//   - target: the live system
//   - st: where snapshots and summaries are recorded
//   - bus: event bus for domain events (may be nil)
//   - logger: structured logger
//   - config: loop configuration; zero values use the package defaults
func New(src source.Source, target cluster.Target, st store.Store, bus *busevents.EventBus, logger *slog.Logger, config Config) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "reconciler")
	if config.Retry.Logger == nil {
		config.Retry.Logger = logger
	}

	return &Reconciler{
		source:     src,
		target:     target,
		store:      st,
		bus:        bus,
		logger:     logger,
		config:     config.withDefaults(),
		phase:      PhaseIdle,
		phaseSince: time.Now(),
	}
}

// Run performs a pass immediately and then on every interval tick or source
// change notification, until ctx is cancelled.
//
// Pass failures are recorded and never stop the loop. Run returns nil on
// cancellation.
func (r *Reconciler) Run(ctx context.Context) error {
	r.logger.Info("Reconciler starting",
		"interval", r.config.Interval,
		"policy", r.config.Policy.String(),
		"workers", r.config.Workers,
		"reference", r.source.Reference())

	changes := make(chan struct{}, 1)
	go func() {
		err := r.source.Watch(ctx, func() {
			select {
			case changes <- struct{}{}:
			default:
				// A pass is already pending.
			}
		})
		if err != nil {
			r.logger.Warn("Source watch stopped, falling back to interval", "error", err)
		}
	}()

	r.trigger(ctx, "startup")

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Reconciler shutting down", "reason", ctx.Err())
			return nil

		case <-ticker.C:
			r.trigger(ctx, "interval")

		case <-changes:
			r.publish(events.NewSourceChangedEvent(r.source.Reference()))
			r.trigger(ctx, "source_change")
			ticker.Reset(r.config.Interval)
		}
	}
}

func (r *Reconciler) trigger(ctx context.Context, reason string) {
	r.publish(events.NewSyncTriggeredEvent(reason))
	_ = r.runPass(ctx, reason)
}

// RunOnce performs a single pass and returns its summary. The error wraps
// ErrPassAborted when the pass stopped before applying.
func (r *Reconciler) RunOnce(ctx context.Context) (store.PassSummary, error) {
	summary := r.runPass(ctx, "manual")
	if summary.Error != "" {
		return summary, fmt.Errorf("%w: %s", ErrPassAborted, summary.Error)
	}
	return summary, nil
}

// Plan fetches both states and returns the plan a pass would apply, without
// applying it.
func (r *Reconciler) Plan(ctx context.Context) (*diff.Plan, error) {
	desired, observed, err := r.fetch(ctx)
	if err != nil {
		return nil, err
	}
	return diff.Compute(desired, observed, r.config.Policy), nil
}

// Status returns the current phase and the last pass summary.
func (r *Reconciler) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := Status{
		Phase:      r.phase,
		PassID:     r.passID,
		PhaseSince: r.phaseSince,
		Policy:     r.config.Policy,
		Reference:  r.source.Reference(),
	}
	if r.lastSummary != nil {
		summary := *r.lastSummary
		status.LastSummary = &summary
	}
	return status
}

func (r *Reconciler) setPhase(passID string, phase Phase) {
	r.mu.Lock()
	r.phase = phase
	r.phaseSince = time.Now()
	r.passID = passID
	r.mu.Unlock()

	r.publish(events.NewSyncPhaseEvent(passID, phase.String()))
}

func (r *Reconciler) publish(event busevents.Event) {
	if r.bus != nil {
		r.bus.Publish(event)
	}
}

// fetch reads the desired and observed state, each under FetchTimeout.
func (r *Reconciler) fetch(ctx context.Context) ([]resource.Spec, []resource.State, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, r.config.FetchTimeout)
	desired, err := r.source.Fetch(fetchCtx)
	cancel()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch desired state from %s: %w", r.source.Reference(), err)
	}

	observed, err := cluster.ListAll(ctx, r.target, r.config.FetchTimeout)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch observed state: %w", err)
	}

	return desired, observed, nil
}
