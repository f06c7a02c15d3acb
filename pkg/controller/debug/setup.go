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

package debug

import (
	"time"

	"syncwarden/pkg/introspection"
)

// DefaultHistoryLimit is the number of summaries served by sync/history.
const DefaultHistoryLimit = 20

// RegisterVariables publishes the controller's status variables:
//   - sync: reconciler phase and last pass summary
//   - sync/history: recent pass summaries
//   - sync/snapshot: identities in the last recorded snapshot
//   - alerts: alert instances and per-state counts
//   - alerts/rules: per-rule evaluation health
//   - config: loaded configuration, secrets redacted
//   - events: recent domain events
//   - uptime
//
// Example:
//
//	registry := introspection.NewRegistry()
//	debug.RegisterVariables(registry, provider)
//	server := introspection.NewServer(":8080", registry, introspection.Options{})
func RegisterVariables(registry *introspection.Registry, provider StateProvider) {
	registry.Publish("sync", introspection.Func(func() (any, error) {
		return provider.SyncStatus(), nil
	}))
	registry.Publish("sync/history", &HistoryVar{provider: provider, limit: DefaultHistoryLimit})
	registry.Publish("sync/snapshot", &SnapshotVar{provider: provider})

	registry.Publish("alerts", &AlertsVar{provider: provider})
	registry.Publish("alerts/rules", introspection.Func(func() (any, error) {
		return provider.Rules(), nil
	}))

	registry.Publish("config", introspection.Func(func() (any, error) {
		return provider.Config(), nil
	}))
	registry.Publish("events", &EventsVar{provider: provider, defaultLimit: 100})

	startTime := time.Now()
	registry.Publish("uptime", introspection.Func(func() (any, error) {
		uptime := time.Since(startTime)
		return map[string]any{
			"started":        startTime,
			"uptime_seconds": uptime.Seconds(),
			"uptime_string":  uptime.String(),
		}, nil
	}))
}
