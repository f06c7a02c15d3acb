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

package cluster

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"syncwarden/pkg/resource"
)

// Op names a Target operation for call recording and failure injection.
type Op string

const (
	OpList   Op = "list"
	OpGet    Op = "get"
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Call records one mutating call made against a Memory target.
type Call struct {
	Op Op
	ID resource.Identity
}

type injectedFailure struct {
	err       error
	remaining int // <0 means forever
}

type failureKey struct {
	op Op
	id resource.Identity
}

// Memory is an in-process Target with resourceVersion semantics.
//
// It is used by the "plan" command against a snapshot, and by tests, which can
// inject failures per operation and identity and simulate out-of-band edits.
type Memory struct {
	mu       sync.Mutex
	objects  map[resource.Identity]resource.State
	version  uint64
	failures map[failureKey]*injectedFailure
	calls    []Call
}

// NewMemory returns a Memory target seeded with states. Seeded states are
// treated as managed and receive fresh versions.
func NewMemory(states ...resource.State) *Memory {
	m := &Memory{
		objects:  make(map[resource.Identity]resource.State),
		failures: make(map[failureKey]*injectedFailure),
	}
	for _, s := range states {
		m.putLocked(s)
	}
	return m
}

// Fail makes the next times calls of op on id return err. A negative times
// fails every call. err is classified before being returned.
func (m *Memory) Fail(op Op, id resource.Identity, err error, times int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[failureKey{op: op, id: id}] = &injectedFailure{err: err, remaining: times}
}

// Mutate changes fields of an existing object as an out-of-band writer would,
// bumping its version.
func (m *Memory) Mutate(id resource.Identity, fields map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.objects[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	for key, value := range fields {
		state.Fields[key] = value
	}
	m.putLocked(state)
	return nil
}

// Calls returns the mutating calls made so far, in order.
func (m *Memory) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// Snapshot returns every stored object sorted by identity.
func (m *Memory) Snapshot() []resource.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]resource.State, 0, len(m.objects))
	for _, s := range m.objects {
		out = append(out, copyState(s))
	}
	resource.SortStates(out)
	return out
}

func (m *Memory) putLocked(s resource.State) resource.State {
	m.version++
	s = copyState(s)
	s.Version = strconv.FormatUint(m.version, 10)
	if s.Labels == nil {
		s.Labels = map[string]string{}
	}
	if s.Fields == nil {
		s.Fields = map[string]interface{}{}
	}
	if _, managed := s.Labels[resource.ManagedByLabel]; !managed {
		s.Labels[resource.ManagedByLabel] = resource.ManagedByValue
	}
	m.objects[s.ID] = s
	return copyState(s)
}

func (m *Memory) injectedLocked(op Op, id resource.Identity) error {
	f, ok := m.failures[failureKey{op: op, id: id}]
	if !ok || f.remaining == 0 {
		return nil
	}
	if f.remaining > 0 {
		f.remaining--
	}
	return Classify(string(op), id, f.err)
}

// List implements Target.
func (m *Memory) List(ctx context.Context, kind resource.Kind) ([]resource.State, error) {
	if err := ctx.Err(); err != nil {
		return nil, Classify(string(OpList), resource.Identity{Kind: kind}, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.injectedLocked(OpList, resource.Identity{Kind: kind}); err != nil {
		return nil, err
	}

	var out []resource.State
	for id, s := range m.objects {
		if id.Kind == kind && s.Labels[resource.ManagedByLabel] == resource.ManagedByValue {
			out = append(out, copyState(s))
		}
	}
	resource.SortStates(out)
	return out, nil
}

// Get implements Target.
func (m *Memory) Get(ctx context.Context, id resource.Identity) (resource.State, error) {
	if err := ctx.Err(); err != nil {
		return resource.State{}, Classify(string(OpGet), id, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.injectedLocked(OpGet, id); err != nil {
		return resource.State{}, err
	}
	s, ok := m.objects[id]
	if !ok {
		return resource.State{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return copyState(s), nil
}

// Create implements Target.
func (m *Memory) Create(ctx context.Context, spec resource.Spec) (resource.State, error) {
	if err := ctx.Err(); err != nil {
		return resource.State{}, Classify(string(OpCreate), spec.ID, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, Call{Op: OpCreate, ID: spec.ID})
	if err := m.injectedLocked(OpCreate, spec.ID); err != nil {
		return resource.State{}, err
	}
	if _, exists := m.objects[spec.ID]; exists {
		return resource.State{}, &ConflictError{Op: string(OpCreate), ID: spec.ID, Err: fmt.Errorf("already exists")}
	}
	return m.putLocked(resource.StateFromSpec(spec, "")), nil
}

// Update implements Target.
func (m *Memory) Update(ctx context.Context, spec resource.Spec, version string) (resource.State, error) {
	if err := ctx.Err(); err != nil {
		return resource.State{}, Classify(string(OpUpdate), spec.ID, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, Call{Op: OpUpdate, ID: spec.ID})
	if err := m.injectedLocked(OpUpdate, spec.ID); err != nil {
		return resource.State{}, err
	}
	current, exists := m.objects[spec.ID]
	if !exists {
		return resource.State{}, &ConflictError{Op: string(OpUpdate), ID: spec.ID, Err: ErrNotFound}
	}
	if current.Version != version {
		return resource.State{}, &ConflictError{
			Op:  string(OpUpdate),
			ID:  spec.ID,
			Err: fmt.Errorf("version %s does not match current %s", version, current.Version),
		}
	}
	return m.putLocked(resource.StateFromSpec(spec, "")), nil
}

// Delete implements Target.
func (m *Memory) Delete(ctx context.Context, state resource.State) error {
	if err := ctx.Err(); err != nil {
		return Classify(string(OpDelete), state.ID, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, Call{Op: OpDelete, ID: state.ID})
	if err := m.injectedLocked(OpDelete, state.ID); err != nil {
		return err
	}
	current, exists := m.objects[state.ID]
	if !exists {
		return nil
	}
	if state.Version != "" && current.Version != state.Version {
		return &ConflictError{
			Op:  string(OpDelete),
			ID:  state.ID,
			Err: fmt.Errorf("version %s does not match current %s", state.Version, current.Version),
		}
	}
	delete(m.objects, state.ID)
	return nil
}

func copyState(s resource.State) resource.State {
	out := s
	out.Fields = resource.DeepCopyFields(s.Fields)
	if s.Labels != nil {
		out.Labels = make(map[string]string, len(s.Labels))
		for k, v := range s.Labels {
			out.Labels[k] = v
		}
	}
	return out
}
