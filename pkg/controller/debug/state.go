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

// Package debug publishes the controller's state as status variables.
package debug

import (
	"context"

	"syncwarden/pkg/alerting"
	"syncwarden/pkg/controller/commentator"
	"syncwarden/pkg/core/config"
	"syncwarden/pkg/reconciler"
	"syncwarden/pkg/store"
)

// StateProvider gives read access to the running controller's state.
//
// Implementations must be safe for concurrent use; every status request
// calls into the provider.
type StateProvider interface {
	// SyncStatus returns the reconciler's phase and last pass summary.
	SyncStatus() reconciler.Status

	// History returns up to limit pass summaries, newest first.
	History(ctx context.Context, limit int) ([]store.PassSummary, error)

	// Snapshot returns the last recorded desired/observed snapshot, or nil.
	Snapshot(ctx context.Context) (*store.Snapshot, error)

	// Alerts returns every tracked alert instance. Empty when alerting is off.
	Alerts() []alerting.InstanceStatus

	// Rules returns per-rule evaluation health.
	Rules() []alerting.RuleStatus

	// Config returns the loaded configuration with secrets redacted.
	Config() *config.Config

	// RecentEvents returns up to n recent domain events, newest first.
	RecentEvents(n int) []commentator.Entry
}
