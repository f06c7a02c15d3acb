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
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"syncwarden/pkg/cluster"
	"syncwarden/pkg/controller/events"
	"syncwarden/pkg/diff"
	"syncwarden/pkg/resource"
	"syncwarden/pkg/retry"
	"syncwarden/pkg/store"
)

// applyResult aggregates the outcome of applying a plan.
type applyResult struct {
	applied   map[diff.ActionType]int
	converged int // conflicts resolved by finding the target already matching
	failures  []store.Failure
	skipped   int
}

// apply executes the plan's actions phase by phase (delete, create, update).
//
// Within a phase, actions are grouped into priority tiers; a tier's actions
// run concurrently on at most Workers goroutines and the tier completes
// before the next one starts. A failed action never stops the others.
// Cancellation is honoured between tiers and before each action: actions
// that never started are counted as skipped, while started ones finish.
func (r *Reconciler) apply(ctx context.Context, passID string, plan *diff.Plan) applyResult {
	result := applyResult{applied: map[diff.ActionType]int{}}
	var mu sync.Mutex

	for _, phase := range []diff.ActionType{diff.ActionDelete, diff.ActionCreate, diff.ActionUpdate} {
		for _, tier := range diff.Tiers(plan.ByType(phase)) {
			if ctx.Err() != nil {
				result.skipped += len(tier)
				continue
			}

			g := new(errgroup.Group)
			g.SetLimit(r.config.Workers)

			for _, action := range tier {
				g.Go(func() error {
					if ctx.Err() != nil {
						mu.Lock()
						result.skipped++
						mu.Unlock()
						return nil
					}

					outcome := r.applyAction(ctx, action)

					mu.Lock()
					defer mu.Unlock()
					switch {
					case outcome.err != nil:
						failure := store.Failure{
							ID:       action.ID,
							Action:   outcome.action.String(),
							Class:    cluster.ClassOf(outcome.err).String(),
							Attempts: outcome.attempts,
							Error:    outcome.err.Error(),
						}
						result.failures = append(result.failures, failure)
						r.logger.Error("Action failed",
							"pass_id", passID,
							"action", failure.Action,
							"id", action.ID.String(),
							"class", failure.Class,
							"attempts", failure.Attempts,
							"error", outcome.err)
						r.publish(events.NewActionFailedEvent(passID, failure))
					case outcome.converged:
						result.converged++
						r.logger.Debug("Action not needed, target already matches",
							"pass_id", passID, "id", action.ID.String())
					default:
						result.applied[outcome.action]++
						r.logger.Debug("Action applied",
							"pass_id", passID,
							"action", outcome.action.String(),
							"id", action.ID.String(),
							"attempts", outcome.attempts)
						r.publish(events.NewActionAppliedEvent(passID, outcome.action, action.ID, outcome.attempts, outcome.duration))
					}
					return nil
				})
			}

			_ = g.Wait()
		}
	}

	// Deterministic failure order for summaries.
	sortFailures(result.failures)
	return result
}

// actionOutcome is the result of applying one action.
type actionOutcome struct {
	// action is the type finally executed; a conflict may turn a create into
	// an update or an update into a create.
	action    diff.ActionType
	attempts  int
	converged bool
	duration  time.Duration
	err       error
}

// errConverged stops the retry loop when a conflict re-read shows the target
// already matching the declaration.
var errConverged = errors.New("target already converged")

// applyAction runs one action with retry.
//
// Transient errors are retried with backoff. On a conflict the identity is
// re-read and re-compared: if it already matches, the action is done;
// otherwise the next attempt uses the fresh version token. Permanent errors
// fail immediately.
func (r *Reconciler) applyAction(ctx context.Context, action diff.Action) actionOutcome {
	start := time.Now()

	kind := action.Type
	version := ""
	if action.Observed != nil {
		version = action.Observed.Version
	}

	config := r.config.Retry
	config.RetryIf = func(err error) bool {
		return !errors.Is(err, errConverged) && !cluster.IsPermanent(err)
	}

	_, attempts, err := retry.Do(ctx, config, func(attempt int) (struct{}, error) {
		// In-flight calls are allowed to finish on shutdown, bounded by ApplyTimeout.
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.config.ApplyTimeout)
		defer cancel()

		err := r.execute(callCtx, kind, action, version)
		if err == nil || !cluster.IsConflict(err) {
			return struct{}{}, err
		}

		r.logger.Debug("Conflict, re-reading",
			"id", action.ID.String(),
			"action", kind.String(),
			"attempt", attempt)

		current, getErr := r.target.Get(callCtx, action.ID)
		switch {
		case errors.Is(getErr, cluster.ErrNotFound):
			if action.Desired == nil {
				// Delete target is already gone.
				return struct{}{}, errConverged
			}
			kind, version = diff.ActionCreate, ""
		case getErr != nil:
			return struct{}{}, cluster.Classify("get", action.ID, getErr)
		case action.Desired == nil:
			version = current.Version
		case resource.Matches(action.Desired.Fields, current.Fields):
			return struct{}{}, errConverged
		default:
			kind, version = diff.ActionUpdate, current.Version
		}
		return struct{}{}, err
	})

	outcome := actionOutcome{action: kind, attempts: attempts, duration: time.Since(start)}
	switch {
	case errors.Is(err, errConverged):
		outcome.converged = true
	case err != nil:
		outcome.err = err
	}
	return outcome
}

// execute performs a single target call.
func (r *Reconciler) execute(ctx context.Context, kind diff.ActionType, action diff.Action, version string) error {
	switch kind {
	case diff.ActionDelete:
		state := *action.Observed
		state.Version = version
		return r.target.Delete(ctx, state)
	case diff.ActionCreate:
		_, err := r.target.Create(ctx, *action.Desired)
		return err
	case diff.ActionUpdate:
		_, err := r.target.Update(ctx, *action.Desired, version)
		return err
	default:
		return &cluster.PermanentError{Op: kind.String(), ID: action.ID, Err: fmt.Errorf("unknown action type %d", kind)}
	}
}

func sortFailures(failures []store.Failure) {
	sort.Slice(failures, func(i, j int) bool { return failures[i].ID.Less(failures[j].ID) })
}
