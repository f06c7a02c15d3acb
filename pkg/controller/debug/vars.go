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
	"context"
	"time"

	"syncwarden/pkg/alerting"
)

// requestTimeout bounds store reads made on behalf of a status request.
const requestTimeout = 5 * time.Second

// HistoryVar exposes recent pass summaries.
//
// Example response:
//
//	{
//	  "limit": 20,
//	  "passes": [{"id": "…", "created": 1, "failed": 0, ...}]
//	}
type HistoryVar struct {
	provider StateProvider
	limit    int
}

// Get implements introspection.Var.
func (v *HistoryVar) Get() (any, error) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	passes, err := v.provider.History(ctx, v.limit)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"limit":  v.limit,
		"passes": passes,
	}, nil
}

// SnapshotVar exposes counts from the last recorded snapshot. The full
// snapshot can be large, so resources are only listed by identity.
type SnapshotVar struct {
	provider StateProvider
}

// Get implements introspection.Var.
func (v *SnapshotVar) Get() (any, error) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	snapshot, err := v.provider.Snapshot(ctx)
	if err != nil || snapshot == nil {
		return nil, err
	}

	desired := make([]string, len(snapshot.Desired))
	for i, spec := range snapshot.Desired {
		desired[i] = spec.ID.String()
	}
	observed := make([]string, len(snapshot.Observed))
	for i, state := range snapshot.Observed {
		observed[i] = state.ID.String()
	}

	return map[string]any{
		"pass_id":     snapshot.PassID,
		"reference":   snapshot.Reference,
		"recorded_at": snapshot.RecordedAt,
		"desired":     desired,
		"observed":    observed,
	}, nil
}

// AlertsVar exposes alert instances together with a per-state count.
//
// Example response:
//
//	{
//	  "counts": {"inactive": 3, "pending": 0, "firing": 1},
//	  "instances": [{"rule": "HighErrorRate", "state": "firing", ...}]
//	}
type AlertsVar struct {
	provider StateProvider
}

// Get implements introspection.Var.
func (v *AlertsVar) Get() (any, error) {
	instances := v.provider.Alerts()

	counts := map[string]int{}
	for _, state := range []alerting.State{alerting.StateInactive, alerting.StatePending, alerting.StateFiring} {
		counts[state.String()] = 0
	}
	for _, instance := range instances {
		counts[instance.State.String()]++
	}

	return map[string]any{
		"counts":    counts,
		"instances": instances,
	}, nil
}

// EventsVar exposes the most recent domain events.
type EventsVar struct {
	provider     StateProvider
	defaultLimit int
}

// Get implements introspection.Var.
func (v *EventsVar) Get() (any, error) {
	return v.provider.RecentEvents(v.defaultLimit), nil
}
