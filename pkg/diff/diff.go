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

// Package diff computes the edit script that transforms observed state into
// desired state.
//
// Compute is a pure function: it performs no I/O and returns the same Plan,
// byte for byte when encoded, for identical inputs. This is what makes a
// second pass over converged state produce an empty plan.
package diff

import (
	"fmt"
	"sort"

	"syncwarden/pkg/resource"
)

// Policy gates the mutating parts of a plan.
type Policy struct {
	// Prune allows deleting observed resources that are no longer declared.
	// When false those resources are ignored.
	Prune bool `yaml:"prune" json:"prune"`

	// SelfHeal allows updating resources whose observed fields drifted from
	// the declared ones. When false drift is reported, never corrected.
	SelfHeal bool `yaml:"self_heal" json:"self_heal"`
}

// String returns a compact representation for logs.
func (p Policy) String() string {
	return fmt.Sprintf("prune=%t,selfHeal=%t", p.Prune, p.SelfHeal)
}

// Compute diffs desired against observed under policy.
//
// Rules:
//   - desired identity missing from observed: Create
//   - present with non-matching fields: Update when SelfHeal, otherwise a DriftEntry
//   - observed identity missing from desired: Delete when Prune, otherwise ignored
//
// If the same identity is declared twice, the later declaration wins and a
// warning is added to the plan.
func Compute(desired []resource.Spec, observed []resource.State, policy Policy) *Plan {
	plan := &Plan{}

	desiredByID := make(map[resource.Identity]resource.Spec, len(desired))
	for _, spec := range desired {
		if prev, dup := desiredByID[spec.ID]; dup {
			plan.Warnings = append(plan.Warnings,
				fmt.Sprintf("%s declared more than once (%s, %s); using the latter", spec.ID, prev.Origin, spec.Origin))
		}
		desiredByID[spec.ID] = spec
	}

	observedByID := make(map[resource.Identity]resource.State, len(observed))
	for _, state := range observed {
		observedByID[state.ID] = state
	}

	var creates, updates, deletes []Action

	for id, spec := range desiredByID {
		state, exists := observedByID[id]
		if !exists {
			creates = append(creates, Action{Type: ActionCreate, ID: id, Desired: &spec})
			continue
		}

		fields := resource.DifferingFields(spec.Fields, state.Fields)
		if len(fields) == 0 {
			continue
		}

		if !policy.SelfHeal {
			plan.Drift = append(plan.Drift, DriftEntry{ID: id, Fields: fields, ObservedVersion: state.Version})
			continue
		}

		updates = append(updates, Action{Type: ActionUpdate, ID: id, Desired: &spec, Observed: &state, Fields: fields})
	}

	if policy.Prune {
		for id, state := range observedByID {
			if _, declared := desiredByID[id]; declared {
				continue
			}
			deletes = append(deletes, Action{Type: ActionDelete, ID: id, Observed: &state})
		}
	}

	plan.Actions = OrderActions(deletes, creates, updates)
	sort.Slice(plan.Drift, func(i, j int) bool { return plan.Drift[i].ID.Less(plan.Drift[j].ID) })
	sort.Strings(plan.Warnings)

	return plan
}

// OrderActions combines actions in execution order: deletes, creates, updates.
//
// Deletes run first so a resource removed and re-declared under the same name
// never collides with itself. Creates are sorted by ascending kind priority
// (containers first), deletes by descending priority (contents first). Ties are
// broken by identity so the order is total.
func OrderActions(deletes, creates, updates []Action) []Action {
	sort.Slice(deletes, func(i, j int) bool {
		if pi, pj := deletes[i].Priority(), deletes[j].Priority(); pi != pj {
			return pi > pj
		}
		return deletes[i].ID.Less(deletes[j].ID)
	})
	sort.Slice(creates, func(i, j int) bool {
		if pi, pj := creates[i].Priority(), creates[j].Priority(); pi != pj {
			return pi < pj
		}
		return creates[i].ID.Less(creates[j].ID)
	})
	sort.Slice(updates, func(i, j int) bool {
		return updates[i].ID.Less(updates[j].ID)
	})

	ordered := make([]Action, 0, len(deletes)+len(creates)+len(updates))
	ordered = append(ordered, deletes...)
	ordered = append(ordered, creates...)
	ordered = append(ordered, updates...)
	return ordered
}

// Tiers splits actions of one type into consecutive groups of equal priority.
// Actions inside a tier target independent identities and may run concurrently.
func Tiers(actions []Action) [][]Action {
	var tiers [][]Action
	for i, a := range actions {
		if i == 0 || a.Priority() != actions[i-1].Priority() {
			tiers = append(tiers, nil)
		}
		tiers[len(tiers)-1] = append(tiers[len(tiers)-1], a)
	}
	return tiers
}
