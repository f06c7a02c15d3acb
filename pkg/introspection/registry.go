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

package introspection

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrNotFound is returned for unknown variable paths.
var ErrNotFound = errors.New("variable not found")

// Registry holds published status variables.
//
// Registries are instance-based rather than global like expvar. Each
// controller owns its own registry, so a controller built in a test or
// rebuilt after a configuration change never serves variables that point at
// an older instance.
//
// Registry is safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	vars map[string]Var
}

// NewRegistry creates an empty registry.
//
// Example:
//
//	registry := introspection.NewRegistry()
//	registry.Publish("uptime", introspection.Func(func() (any, error) {
//	    return time.Since(started).String(), nil
//	}))
func NewRegistry() *Registry {
	return &Registry{vars: make(map[string]Var)}
}

// Publish registers v under path, replacing any previous variable.
//
// The path is the URL suffix the variable is served under, both below
// /status/ and below /debug/vars/. Paths may be flat ("config", "uptime") or
// hierarchical ("sync/history", "alerts/rules").
//
// Panics on an empty path or nil v; both are programming errors.
//
// Example:
//
//	registry.Publish("config", introspection.Func(func() (any, error) {
//	    return cfg.Redacted(), nil
//	}))
//	registry.Publish("sync/history", &debug.HistoryVar{...})
func (r *Registry) Publish(path string, v Var) {
	if path == "" {
		panic("introspection: empty path not allowed")
	}
	if v == nil {
		panic("introspection: nil Var not allowed")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.vars[path] = v
}

// Get returns the current value of the variable at path.
//
// Returns an error wrapping ErrNotFound for unknown paths, or the error of the
// variable's own Get.
//
// Example:
//
//	value, err := registry.Get("sync")
//	if errors.Is(err, introspection.ErrNotFound) {
//	    // not published
//	}
func (r *Registry) Get(path string) (any, error) {
	r.mu.RLock()
	v, ok := r.vars[path]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, path)
	}
	return v.Get()
}

// GetWithField returns the variable at path, narrowed to a JSONPath field
// when field is non-empty.
//
// field uses kubectl-style JSONPath syntax. The HTTP handlers pass the
// ?field= query parameter through here.
//
// Example:
//
//	// Whole status
//	value, err := registry.GetWithField("sync", "")
//
//	// Only the current phase
//	phase, err := registry.GetWithField("sync", "{.phase}")
func (r *Registry) GetWithField(path, field string) (any, error) {
	value, err := r.Get(path)
	if err != nil {
		return nil, err
	}
	return ExtractField(value, field)
}

// All returns every variable's current value keyed by path.
//
// The first failing variable aborts the call; no partial map is returned.
// Served by /debug/vars/all.
func (r *Registry) All() (map[string]any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]any, len(r.vars))
	for path, v := range r.vars {
		value, err := v.Get()
		if err != nil {
			return nil, fmt.Errorf("failed to get variable %q: %w", path, err)
		}
		result[path] = value
	}
	return result, nil
}

// Paths returns the sorted variable paths.
//
// Used for the index documents at /status and /debug/vars.
//
// Example:
//
//	registry.Paths() // ["alerts", "config", "sync", "sync/history", "uptime"]
func (r *Registry) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	paths := make([]string, 0, len(r.vars))
	for path := range r.vars {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}
