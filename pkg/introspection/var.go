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

// Package introspection exposes the controller's internal state over HTTP.
//
// Components publish named variables on an instance-scoped Registry; the
// Server serves them as JSON under /status/{path} and /debug/vars/{path},
// with optional kubectl-style JSONPath field selection:
//
//	registry := introspection.NewRegistry()
//	registry.Publish("sync", introspection.Func(func() (any, error) {
//	    return reconciler.Status(), nil
//	}))
//
//	// GET /status/sync
//	// GET /status/sync?field={.last_summary.created}
package introspection

// Var is a variable that can be queried for its current value.
//
// Get must be safe for concurrent use and return a JSON-serializable value.
type Var interface {
	Get() (any, error)
}

// Func adapts a function to Var.
type Func func() (any, error)

// Get calls f.
func (f Func) Get() (any, error) {
	return f()
}
