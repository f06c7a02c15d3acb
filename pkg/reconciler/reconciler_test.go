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

package reconciler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"syncwarden/pkg/cluster"
	"syncwarden/pkg/controller/events"
	"syncwarden/pkg/diff"
	busevents "syncwarden/pkg/events"
	"syncwarden/pkg/resource"
	"syncwarden/pkg/retry"
	"syncwarden/pkg/source"
	"syncwarden/pkg/store"
)

var configMaps = schema.GroupResource{Resource: "configmaps"}

func cm(name, value string) resource.Spec {
	return resource.Spec{
		ID:     resource.Identity{Kind: resource.KindConfigMap, Namespace: "team", Name: name},
		Fields: map[string]interface{}{"data": map[string]interface{}{"key": value}},
	}
}

func ns(name string) resource.Spec {
	return resource.Spec{
		ID:     resource.Identity{Kind: resource.KindNamespace, Name: name},
		Fields: map[string]interface{}{},
	}
}

func fastRetry() retry.Config {
	return retry.Config{MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func newTestReconciler(src source.Source, target cluster.Target, policy diff.Policy) (*Reconciler, *store.Memory) {
	st := store.NewMemory(10)
	r := New(src, target, st, nil, nil, Config{
		Interval: time.Hour,
		Workers:  2,
		Policy:   policy,
		Retry:    fastRetry(),
	})
	return r, st
}

var fullPolicy = diff.Policy{Prune: true, SelfHeal: true}

func TestRunOnce_CreatesDeclaredResources(t *testing.T) {
	target := cluster.NewMemory()
	src := &source.Static{Specs: []resource.Spec{ns("team"), cm("a", "1"), cm("b", "2")}}
	r, st := newTestReconciler(src, target, fullPolicy)

	summary, err := r.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Created)
	assert.Zero(t, summary.Failed)
	assert.True(t, summary.Succeeded())
	assert.NotEmpty(t, summary.ID)

	// Containers before contents.
	calls := target.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, resource.KindNamespace, calls[0].ID.Kind)

	snapshot, err := st.LatestSnapshot(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.Equal(t, summary.ID, snapshot.PassID)
	assert.Len(t, snapshot.Observed, 3)
	assert.Len(t, snapshot.Desired, 3)

	history, err := st.History(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, summary.ID, history[0].ID)
}

func TestRunOnce_IsIdempotent(t *testing.T) {
	target := cluster.NewMemory()
	src := &source.Static{Specs: []resource.Spec{ns("team"), cm("a", "1")}}
	r, _ := newTestReconciler(src, target, fullPolicy)

	_, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	callsAfterFirst := len(target.Calls())

	second, err := r.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Zero(t, second.Changed())
	assert.Equal(t, 2, second.Unchanged)
	assert.Len(t, target.Calls(), callsAfterFirst, "converged state must not be touched again")
}

func TestRunOnce_PartialFailureIsolation(t *testing.T) {
	target := cluster.NewMemory()
	first, second, third := cm("one", "1"), cm("two", "2"), cm("three", "3")
	target.Fail(cluster.OpCreate, second.ID, apierrors.NewForbidden(configMaps, "two", errors.New("denied")), -1)

	src := &source.Static{Specs: []resource.Spec{first, second, third}}
	r, _ := newTestReconciler(src, target, fullPolicy)

	summary, err := r.RunOnce(context.Background())
	require.NoError(t, err, "action failures do not abort the pass")

	assert.Equal(t, 2, summary.Created)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, second.ID, summary.Failures[0].ID)
	assert.Equal(t, "permanent", summary.Failures[0].Class)
	assert.Equal(t, 1, summary.Failures[0].Attempts, "permanent errors are not retried")

	for _, spec := range []resource.Spec{first, third} {
		_, err := target.Get(context.Background(), spec.ID)
		assert.NoError(t, err, "%s must be applied", spec.ID)
	}
}

func TestRunOnce_RetriesTransientErrors(t *testing.T) {
	target := cluster.NewMemory()
	spec := cm("flaky", "1")
	target.Fail(cluster.OpCreate, spec.ID, errors.New("connection reset by peer"), 2)

	r, _ := newTestReconciler(&source.Static{Specs: []resource.Spec{spec}}, target, fullPolicy)

	summary, err := r.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Created)
	assert.Len(t, target.Calls(), 3)
}

func TestRunOnce_ExhaustedRetriesMarkFailed(t *testing.T) {
	target := cluster.NewMemory()
	spec := cm("down", "1")
	target.Fail(cluster.OpCreate, spec.ID, errors.New("i/o timeout"), -1)

	r, _ := newTestReconciler(&source.Static{Specs: []resource.Spec{spec}}, target, fullPolicy)

	summary, err := r.RunOnce(context.Background())
	require.NoError(t, err)

	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "transient", summary.Failures[0].Class)
	assert.Equal(t, 5, summary.Failures[0].Attempts)
}

func TestRunOnce_DriftContainment(t *testing.T) {
	spec := cm("app", "declared")
	target := cluster.NewMemory(resource.StateFromSpec(spec, ""))
	require.NoError(t, target.Mutate(spec.ID, map[string]interface{}{"data": map[string]interface{}{"key": "hand-edited"}}))

	r, _ := newTestReconciler(&source.Static{Specs: []resource.Spec{spec}}, target, diff.Policy{Prune: true, SelfHeal: false})

	for i := 0; i < 3; i++ {
		summary, err := r.RunOnce(context.Background())
		require.NoError(t, err)
		require.Len(t, summary.Drift, 1)
		assert.Equal(t, spec.ID, summary.Drift[0].ID)
		assert.Equal(t, []string{"data"}, summary.Drift[0].Fields)
		assert.Zero(t, summary.Changed())
	}

	assert.Empty(t, target.Calls(), "drifted resources must never be mutated")
	got, err := target.Get(context.Background(), spec.ID)
	require.NoError(t, err)
	assert.Equal(t, "hand-edited", got.Fields["data"].(map[string]interface{})["key"])
}

func TestRunOnce_SelfHealRevertsDrift(t *testing.T) {
	spec := cm("app", "declared")
	target := cluster.NewMemory(resource.StateFromSpec(spec, ""))
	require.NoError(t, target.Mutate(spec.ID, map[string]interface{}{"data": map[string]interface{}{"key": "hand-edited"}}))

	r, _ := newTestReconciler(&source.Static{Specs: []resource.Spec{spec}}, target, fullPolicy)

	summary, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Updated)

	got, err := target.Get(context.Background(), spec.ID)
	require.NoError(t, err)
	assert.True(t, resource.Matches(spec.Fields, got.Fields))
}

func TestRunOnce_PruneGating(t *testing.T) {
	orphan := resource.StateFromSpec(cm("orphan", "x"), "")
	target := cluster.NewMemory(orphan)

	r, _ := newTestReconciler(&source.Static{}, target, diff.Policy{Prune: false, SelfHeal: true})

	for i := 0; i < 3; i++ {
		summary, err := r.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Zero(t, summary.Deleted)
	}
	_, err := target.Get(context.Background(), orphan.ID)
	assert.NoError(t, err, "orphan must survive with prune disabled")

	pruning, _ := newTestReconciler(&source.Static{}, target, fullPolicy)
	summary, err := pruning.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Deleted)
}

func TestRunOnce_ConflictRereadsAndRetries(t *testing.T) {
	spec := cm("app", "v1")
	target := cluster.NewMemory(resource.StateFromSpec(spec, ""))
	require.NoError(t, target.Mutate(spec.ID, map[string]interface{}{"data": map[string]interface{}{"key": "old"}}))
	target.Fail(cluster.OpUpdate, spec.ID, apierrors.NewConflict(configMaps, "app", errors.New("modified")), 1)

	r, _ := newTestReconciler(&source.Static{Specs: []resource.Spec{spec}}, target, fullPolicy)

	summary, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Updated)
	assert.Zero(t, summary.Failed)
}

// racingTarget creates the object itself on the first Create call and then
// reports a conflict, as a concurrent writer would.
type racingTarget struct {
	*cluster.Memory
	raced atomic.Bool
}

func (t *racingTarget) Create(ctx context.Context, spec resource.Spec) (resource.State, error) {
	if t.raced.CompareAndSwap(false, true) {
		if _, err := t.Memory.Create(ctx, spec); err != nil {
			return resource.State{}, err
		}
		return resource.State{}, &cluster.ConflictError{Op: "create", ID: spec.ID, Err: errors.New("already exists")}
	}
	return t.Memory.Create(ctx, spec)
}

func TestRunOnce_ConflictWithMatchingStateConverges(t *testing.T) {
	target := &racingTarget{Memory: cluster.NewMemory()}
	spec := cm("app", "v1")

	r, _ := newTestReconciler(&source.Static{Specs: []resource.Spec{spec}}, target, fullPolicy)

	summary, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Created)
	assert.Zero(t, summary.Failed)
	assert.Equal(t, 1, summary.Unchanged)
}

// cancellingTarget cancels the pass context from inside the first Create call.
type cancellingTarget struct {
	*cluster.Memory
	cancel context.CancelFunc
	once   sync.Once
}

func (t *cancellingTarget) Create(ctx context.Context, spec resource.Spec) (resource.State, error) {
	t.once.Do(t.cancel)
	return t.Memory.Create(ctx, spec)
}

func TestRunOnce_CancellationFinishesInFlightAndSkipsRest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	target := &cancellingTarget{Memory: cluster.NewMemory(), cancel: cancel}
	src := &source.Static{Specs: []resource.Spec{ns("team"), cm("a", "1"), cm("b", "2")}}
	r, st := newTestReconciler(src, target, fullPolicy)

	summary, err := r.RunOnce(ctx)
	require.ErrorIs(t, err, ErrPassAborted)

	assert.Equal(t, 1, summary.Created, "the in-flight namespace create completes")
	assert.Equal(t, 2, summary.Skipped)
	assert.Contains(t, summary.Error, "cancelled")

	_, getErr := target.Get(context.Background(), resource.Identity{Kind: resource.KindNamespace, Name: "team"})
	assert.NoError(t, getErr)

	history, err := st.History(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, history, 1, "cancelled passes are still recorded")
}

type failingSource struct{ source.Static }

func (s *failingSource) Fetch(context.Context) ([]resource.Spec, error) {
	return nil, errors.New("repository unreachable")
}

func TestRunOnce_FetchFailureAbortsPass(t *testing.T) {
	target := cluster.NewMemory(resource.StateFromSpec(cm("keep", "1"), ""))
	r, st := newTestReconciler(&failingSource{}, target, fullPolicy)

	summary, err := r.RunOnce(context.Background())

	require.ErrorIs(t, err, ErrPassAborted)
	assert.Contains(t, summary.Error, "repository unreachable")
	assert.Empty(t, target.Calls(), "nothing is pruned when the desired state is unknown")

	history, err := st.History(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.False(t, history[0].Succeeded())

	assert.Equal(t, PhaseIdle, r.Status().Phase)
}

func TestPlan_DoesNotApply(t *testing.T) {
	target := cluster.NewMemory(resource.StateFromSpec(cm("old", "1"), ""))
	r, st := newTestReconciler(&source.Static{Specs: []resource.Spec{cm("new", "1")}}, target, fullPolicy)

	plan, err := r.Plan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, diff.Summary{Creates: 1, Deletes: 1}, plan.Summary())
	assert.Empty(t, target.Calls())
	history, _ := st.History(context.Background(), 0)
	assert.Empty(t, history)
}

func TestRunOnce_PublishesEvents(t *testing.T) {
	bus := busevents.NewEventBus(100)
	sub := bus.Subscribe(100)
	bus.Start()

	target := cluster.NewMemory()
	spec := cm("denied", "1")
	target.Fail(cluster.OpCreate, spec.ID, apierrors.NewForbidden(configMaps, "denied", errors.New("rbac")), -1)

	r := New(&source.Static{Specs: []resource.Spec{spec, cm("ok", "1")}}, target, store.NewMemory(10), bus, nil,
		Config{Policy: fullPolicy, Retry: fastRetry()})

	_, err := r.RunOnce(context.Background())
	require.NoError(t, err)

	seen := map[string]int{}
	for len(sub) > 0 {
		ev := <-sub
		seen[ev.EventType()]++
		if failed, ok := ev.(*events.ActionFailedEvent); ok {
			assert.Equal(t, spec.ID, failed.Failure.ID)
		}
	}

	assert.Equal(t, 1, seen[events.EventTypeSyncStarted])
	assert.Equal(t, 1, seen[events.EventTypeSyncCompleted])
	assert.Equal(t, 1, seen[events.EventTypeActionFailed])
	assert.Equal(t, 1, seen[events.EventTypeActionApplied])
	assert.Equal(t, 4, seen[events.EventTypeSyncPhase], "fetching, diffing, applying, idle")
}

// notifyingSource pushes a change notification whenever kick is signalled.
type notifyingSource struct {
	source.Static
	kick chan struct{}
}

func (s *notifyingSource) Watch(ctx context.Context, notify func()) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.kick:
			notify()
		}
	}
}

func TestRun_PassesOnStartupAndSourceChange(t *testing.T) {
	src := &notifyingSource{Static: source.Static{Specs: []resource.Spec{cm("a", "1")}}, kick: make(chan struct{})}
	target := cluster.NewMemory()
	r, st := newTestReconciler(src, target, fullPolicy)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	passes := func() int {
		history, _ := st.History(context.Background(), 0)
		return len(history)
	}

	require.Eventually(t, func() bool { return passes() == 1 }, 2*time.Second, 5*time.Millisecond)

	src.kick <- struct{}{}
	require.Eventually(t, func() bool { return passes() == 2 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}

	status := r.Status()
	require.NotNil(t, status.LastSummary)
	assert.Equal(t, PhaseIdle, status.Phase)
	assert.Equal(t, "static", status.Reference)
}

func TestConfig_Defaults(t *testing.T) {
	c := Config{}.withDefaults()

	assert.Equal(t, DefaultInterval, c.Interval)
	assert.Equal(t, DefaultFetchTimeout, c.FetchTimeout)
	assert.Equal(t, DefaultApplyTimeout, c.ApplyTimeout)
	assert.Positive(t, c.Workers)
	assert.Equal(t, retry.DefaultMaxAttempts, c.Retry.MaxAttempts)
	assert.Equal(t, retry.DefaultMaxDelay, c.Retry.MaxDelay)
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "idle", PhaseIdle.String())
	assert.Equal(t, "fetching", PhaseFetching.String())
	assert.Equal(t, "diffing", PhaseDiffing.String())
	assert.Equal(t, "applying", PhaseApplying.String())
}
