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
	"fmt"

	"syncwarden/pkg/resource"
)

// ActionType is the kind of change an Action performs.
type ActionType int

const (
	// ActionDelete removes an observed resource that is no longer declared.
	ActionDelete ActionType = iota
	// ActionCreate creates a declared resource that does not exist.
	ActionCreate
	// ActionUpdate reapplies a declared resource over drifted observed state.
	ActionUpdate
)

// String returns the lower-case action name.
func (t ActionType) String() string {
	switch t {
	case ActionDelete:
		return "delete"
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	default:
		return "unknown"
	}
}

// MarshalText encodes the action type by name.
func (t ActionType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Action is a single step of a SyncPlan.
//
// Create carries Desired only, Delete carries Observed only, Update carries both.
// Observed.Version is the token the applier must present on update.
type Action struct {
	Type     ActionType        `json:"type"`
	ID       resource.Identity `json:"id"`
	Desired  *resource.Spec    `json:"desired,omitempty"`
	Observed *resource.State   `json:"observed,omitempty"`

	// Fields lists the top-level fields that differ (updates only).
	Fields []string `json:"fields,omitempty"`
}

// Priority returns the kind priority of the targeted resource.
func (a Action) Priority() int {
	return a.ID.Kind.Priority()
}

// Describe returns a human-readable description for logs.
func (a Action) Describe() string {
	switch a.Type {
	case ActionUpdate:
		return fmt.Sprintf("update %s (fields: %v)", a.ID, a.Fields)
	default:
		return fmt.Sprintf("%s %s", a.Type, a.ID)
	}
}

// DriftEntry reports an existing resource whose observed fields differ from the
// declared ones while self-heal is disabled.
type DriftEntry struct {
	ID              resource.Identity `json:"id"`
	Fields          []string          `json:"fields"`
	ObservedVersion string            `json:"observed_version"`
}

// String renders the entry for logs.
func (d DriftEntry) String() string {
	return fmt.Sprintf("%s drifted (fields: %v)", d.ID, d.Fields)
}
