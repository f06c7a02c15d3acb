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

// Package resource defines the resource model shared by the diff engine, the
// reconciler and the external-system targets.
//
// A resource is addressed by an Identity (kind, namespace, name). The desired
// side is a Spec read from the declared source; the observed side is a State
// read from the live system. Both carry their fields as plain JSON-compatible
// maps so they can be compared without knowing the kind's schema.
package resource

import (
	"fmt"
	"sort"
)

const (
	// ManagedByLabel marks objects created by the controller. Only objects
	// carrying it are listed as observed state, which bounds pruning to
	// resources the controller owns.
	ManagedByLabel = "app.kubernetes.io/managed-by"

	// ManagedByValue is the value of ManagedByLabel.
	ManagedByValue = "syncwarden"

	// GenerationAnnotation records the declared generation that produced an object.
	GenerationAnnotation = "syncwarden.io/generation"
)

// Identity addresses a single resource.
type Identity struct {
	Kind      Kind   `json:"kind"`
	Namespace string `json:"namespace,omitempty"`
	Name      string `json:"name"`
}

// String returns "kind/namespace/name", or "kind/name" for cluster-scoped resources.
func (id Identity) String() string {
	if id.Namespace == "" {
		return fmt.Sprintf("%s/%s", id.Kind, id.Name)
	}
	return fmt.Sprintf("%s/%s/%s", id.Kind, id.Namespace, id.Name)
}

// Less orders identities by kind, namespace, then name.
func (id Identity) Less(other Identity) bool {
	if id.Kind != other.Kind {
		return id.Kind < other.Kind
	}
	if id.Namespace != other.Namespace {
		return id.Namespace < other.Namespace
	}
	return id.Name < other.Name
}

// Spec is a declared resource. It is immutable once read for a pass.
type Spec struct {
	ID Identity `json:"id"`

	// Fields holds every top-level manifest key except apiVersion, kind,
	// metadata and status, already normalised for the kind.
	Fields map[string]interface{} `json:"fields"`

	Labels      map[string]string `json:"labels,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`

	// Generation is a content hash of the manifest.
	Generation string `json:"generation"`

	// Origin is the file the spec was read from.
	Origin string `json:"origin,omitempty"`
}

// State is an observed resource. It is stale the instant it is read.
type State struct {
	ID     Identity               `json:"id"`
	Fields map[string]interface{} `json:"fields"`
	Labels map[string]string      `json:"labels,omitempty"`

	// Version is the optimistic-concurrency token (resourceVersion).
	// It must be passed back on update.
	Version string `json:"version"`

	Ready bool `json:"ready"`
}

// SortSpecs sorts specs by identity in place.
func SortSpecs(specs []Spec) {
	sort.SliceStable(specs, func(i, j int) bool { return specs[i].ID.Less(specs[j].ID) })
}

// SortStates sorts states by identity in place.
func SortStates(states []State) {
	sort.SliceStable(states, func(i, j int) bool { return states[i].ID.Less(states[j].ID) })
}

// StateFromSpec returns the state a target reports right after applying spec.
// It is used by in-memory targets and tests.
func StateFromSpec(spec Spec, version string) State {
	labels := make(map[string]string, len(spec.Labels)+1)
	for k, v := range spec.Labels {
		labels[k] = v
	}
	labels[ManagedByLabel] = ManagedByValue

	return State{
		ID:      spec.ID,
		Fields:  DeepCopyFields(spec.Fields),
		Labels:  labels,
		Version: version,
		Ready:   true,
	}
}

// DeepCopyFields copies a JSON-compatible field map.
func DeepCopyFields(in map[string]interface{}) map[string]interface{} {
	if in == nil {
		return nil
	}
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return DeepCopyFields(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i := range t {
			out[i] = deepCopyValue(t[i])
		}
		return out
	default:
		return v
	}
}
