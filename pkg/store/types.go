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

// Package store keeps the last-known desired and observed snapshots and the
// bounded history of reconciliation pass summaries.
//
// Two backends are provided: Memory, which lives for the process lifetime,
// and Postgres, which survives restarts so that the status API can report the
// previous passes of an earlier controller instance.
package store

import (
	"context"
	"time"

	"syncwarden/pkg/diff"
	"syncwarden/pkg/resource"
)

// DefaultHistoryLimit is the number of pass summaries kept by default.
const DefaultHistoryLimit = 100

// Store persists reconciliation results.
type Store interface {
	// SaveSnapshot replaces the last-known snapshot.
	SaveSnapshot(ctx context.Context, snapshot Snapshot) error

	// LatestSnapshot returns the last saved snapshot, or nil if none was saved.
	LatestSnapshot(ctx context.Context) (*Snapshot, error)

	// AppendSummary adds a pass summary to the history, evicting the oldest
	// entries beyond the history limit.
	AppendSummary(ctx context.Context, summary PassSummary) error

	// History returns up to limit summaries, newest first. limit <= 0 returns all.
	History(ctx context.Context, limit int) ([]PassSummary, error)

	// Close releases the backend.
	Close() error
}

// Snapshot is the state recorded at the end of a pass.
type Snapshot struct {
	PassID     string           `json:"pass_id"`
	Reference  string           `json:"reference"`
	RecordedAt time.Time        `json:"recorded_at"`
	Desired    []resource.Spec  `json:"desired"`
	Observed   []resource.State `json:"observed"`
}

// PassSummary reports the outcome of one reconciliation pass.
type PassSummary struct {
	ID        string        `json:"id"`
	Reference string        `json:"reference"`
	Started   time.Time     `json:"started"`
	Duration  time.Duration `json:"duration"`

	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Deleted   int `json:"deleted"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Unchanged int `json:"unchanged"`

	Failures []Failure         `json:"failures,omitempty"`
	Drift    []diff.DriftEntry `json:"drift,omitempty"`
	Warnings []string          `json:"warnings,omitempty"`

	// Error is set when the pass aborted before applying (fetch failure) or
	// was cancelled.
	Error string `json:"error,omitempty"`
}

// Failure describes an action that was not applied.
type Failure struct {
	ID       resource.Identity `json:"id"`
	Action   string            `json:"action"`
	Class    string            `json:"class"`
	Attempts int               `json:"attempts"`
	Error    string            `json:"error"`
}

// Succeeded reports whether the pass completed without failed actions.
func (s PassSummary) Succeeded() bool {
	return s.Error == "" && s.Failed == 0
}

// Changed returns the number of applied actions.
func (s PassSummary) Changed() int {
	return s.Created + s.Updated + s.Deleted
}
