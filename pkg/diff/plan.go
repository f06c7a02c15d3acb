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

package diff

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Plan is the ordered edit script produced by Compute.
//
// Actions are ordered deletes, creates, updates. A Plan is built fresh for every
// reconciliation pass and discarded once applied.
type Plan struct {
	Actions []Action
	Drift   []DriftEntry

	// Warnings carries non-fatal input problems, such as duplicate declarations.
	Warnings []string
}

// Summary counts actions by type.
type Summary struct {
	Creates int `json:"creates"`
	Updates int `json:"updates"`
	Deletes int `json:"deletes"`
	Drifted int `json:"drifted"`
}

// HasChanges returns true if the plan mutates anything.
func (s Summary) HasChanges() bool {
	return s.Creates > 0 || s.Updates > 0 || s.Deletes > 0
}

// Total returns the number of actions.
func (s Summary) Total() int {
	return s.Creates + s.Updates + s.Deletes
}

// Summary returns the action counts of the plan.
func (p Plan) Summary() Summary {
	s := Summary{Drifted: len(p.Drift)}
	for _, a := range p.Actions {
		switch a.Type {
		case ActionCreate:
			s.Creates++
		case ActionUpdate:
			s.Updates++
		case ActionDelete:
			s.Deletes++
		}
	}
	return s
}

// IsEmpty returns true if the plan has neither actions nor drift.
func (p Plan) IsEmpty() bool {
	return len(p.Actions) == 0 && len(p.Drift) == 0
}

// ByType returns the actions of a single type, preserving plan order.
func (p Plan) ByType(t ActionType) []Action {
	var out []Action
	for _, a := range p.Actions {
		if a.Type == t {
			out = append(out, a)
		}
	}
	return out
}

// MarshalJSON encodes the plan deterministically. Map keys are sorted by
// encoding/json, and action order is fixed by Compute.
func (p Plan) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Actions  []Action     `json:"actions"`
		Drift    []DriftEntry `json:"drift"`
		Warnings []string     `json:"warnings,omitempty"`
	}{
		Actions:  nonNil(p.Actions),
		Drift:    nonNil(p.Drift),
		Warnings: p.Warnings,
	})
}

// String returns a human-readable summary of the plan.
func (p Plan) String() string {
	s := p.Summary()
	if !s.HasChanges() && s.Drifted == 0 {
		return "No changes"
	}

	parts := []string{fmt.Sprintf("Total: %d actions (%d creates, %d updates, %d deletes), %d drifted",
		s.Total(), s.Creates, s.Updates, s.Deletes, s.Drifted)}

	for _, t := range []ActionType{ActionDelete, ActionCreate, ActionUpdate} {
		actions := p.ByType(t)
		if len(actions) == 0 {
			continue
		}
		ids := make([]string, 0, len(actions))
		for _, a := range actions {
			ids = append(ids, a.ID.String())
		}
		parts = append(parts, fmt.Sprintf("- %s: %s", t, strings.Join(ids, ", ")))
	}

	if len(p.Drift) > 0 {
		ids := make([]string, 0, len(p.Drift))
		for _, d := range p.Drift {
			ids = append(ids, d.ID.String())
		}
		sort.Strings(ids)
		parts = append(parts, fmt.Sprintf("- drift: %s", strings.Join(ids, ", ")))
	}

	return strings.Join(parts, "\n")
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
