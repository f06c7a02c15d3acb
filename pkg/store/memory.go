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

package store

import (
	"context"
	"sync"

	"syncwarden/pkg/resource"
)

// Memory is a process-local Store.
type Memory struct {
	mu       sync.RWMutex
	snapshot *Snapshot
	history  *history
}

// NewMemory creates a Memory store keeping up to historyLimit summaries.
func NewMemory(historyLimit int) *Memory {
	return &Memory{history: newHistory(historyLimit)}
}

// SaveSnapshot implements Store.
func (m *Memory) SaveSnapshot(_ context.Context, snapshot Snapshot) error {
	cp := copySnapshot(snapshot)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot = &cp
	return nil
}

// LatestSnapshot implements Store.
func (m *Memory) LatestSnapshot(_ context.Context) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.snapshot == nil {
		return nil, nil
	}
	cp := copySnapshot(*m.snapshot)
	return &cp, nil
}

// AppendSummary implements Store.
func (m *Memory) AppendSummary(_ context.Context, summary PassSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history.add(summary)
	return nil
}

// History implements Store.
func (m *Memory) History(_ context.Context, limit int) ([]PassSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.history.newest(limit), nil
}

// Close implements Store.
func (m *Memory) Close() error {
	return nil
}

// copySnapshot detaches a snapshot from the caller's slices so later
// mutations on either side are not shared.
func copySnapshot(s Snapshot) Snapshot {
	out := s
	out.Desired = make([]resource.Spec, len(s.Desired))
	for i, spec := range s.Desired {
		spec.Fields = resource.DeepCopyFields(spec.Fields)
		out.Desired[i] = spec
	}
	out.Observed = make([]resource.State, len(s.Observed))
	for i, state := range s.Observed {
		state.Fields = resource.DeepCopyFields(state.Fields)
		out.Observed[i] = state
	}
	return out
}
