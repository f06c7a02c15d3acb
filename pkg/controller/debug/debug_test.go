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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syncwarden/pkg/alerting"
	"syncwarden/pkg/controller/commentator"
	"syncwarden/pkg/core/config"
	"syncwarden/pkg/introspection"
	"syncwarden/pkg/reconciler"
	"syncwarden/pkg/resource"
	"syncwarden/pkg/store"
)

type fakeProvider struct {
	history   []store.PassSummary
	snapshot  *store.Snapshot
	alerts    []alerting.InstanceStatus
	lastLimit int
}

func (f *fakeProvider) SyncStatus() reconciler.Status {
	return reconciler.Status{Phase: reconciler.PhaseIdle, Reference: "/srv/manifests"}
}

func (f *fakeProvider) History(_ context.Context, limit int) ([]store.PassSummary, error) {
	f.lastLimit = limit
	return f.history, nil
}

func (f *fakeProvider) Snapshot(context.Context) (*store.Snapshot, error) { return f.snapshot, nil }
func (f *fakeProvider) Alerts() []alerting.InstanceStatus                { return f.alerts }
func (f *fakeProvider) Rules() []alerting.RuleStatus {
	return []alerting.RuleStatus{{Name: "HighErrorRate", Expr: "errors_total"}}
}
func (f *fakeProvider) Config() *config.Config { return &config.Config{} }
func (f *fakeProvider) RecentEvents(n int) []commentator.Entry {
	return []commentator.Entry{{Type: "sync.triggered", Message: "Sync triggered: startup"}}
}

func serve(t *testing.T, provider StateProvider, target string) map[string]any {
	t.Helper()
	registry := introspection.NewRegistry()
	RegisterVariables(registry, provider)
	server := introspection.NewServer(":0", registry, introspection.Options{})

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRegisterVariables_Paths(t *testing.T) {
	registry := introspection.NewRegistry()
	RegisterVariables(registry, &fakeProvider{})

	assert.Equal(t, []string{
		"alerts", "alerts/rules", "config", "events",
		"sync", "sync/history", "sync/snapshot", "uptime",
	}, registry.Paths())
}

func TestSyncStatus(t *testing.T) {
	body := serve(t, &fakeProvider{}, "/status/sync")
	assert.Equal(t, "idle", body["phase"])
	assert.Equal(t, "/srv/manifests", body["reference"])
}

func TestHistoryVar(t *testing.T) {
	provider := &fakeProvider{history: []store.PassSummary{{ID: "p2", Created: 1}, {ID: "p1"}}}

	body := serve(t, provider, "/status/sync/history")

	assert.Equal(t, DefaultHistoryLimit, provider.lastLimit)
	passes := body["passes"].([]any)
	require.Len(t, passes, 2)
	assert.Equal(t, "p2", passes[0].(map[string]any)["id"])
}

func TestSnapshotVar(t *testing.T) {
	id := resource.Identity{Kind: resource.KindConfigMap, Namespace: "default", Name: "app"}
	provider := &fakeProvider{snapshot: &store.Snapshot{
		PassID:     "p1",
		RecordedAt: time.Now(),
		Desired:    []resource.Spec{{ID: id}},
		Observed:   []resource.State{{ID: id}},
	}}

	body := serve(t, provider, "/status/sync/snapshot")
	assert.Equal(t, "p1", body["pass_id"])
	assert.Equal(t, []any{"ConfigMap/default/app"}, body["desired"])
	assert.Equal(t, []any{"ConfigMap/default/app"}, body["observed"])
}

func TestAlertsVar_Counts(t *testing.T) {
	provider := &fakeProvider{alerts: []alerting.InstanceStatus{
		{Rule: "HighErrorRate", Fingerprint: "a", State: alerting.StateFiring},
		{Rule: "HighErrorRate", Fingerprint: "b", State: alerting.StatePending},
		{Rule: "HighErrorRate", Fingerprint: "c", State: alerting.StateFiring},
	}}

	body := serve(t, provider, "/status/alerts")
	assert.Equal(t, map[string]any{"inactive": 0.0, "pending": 1.0, "firing": 2.0}, body["counts"])
	assert.Len(t, body["instances"], 3)
}

func TestAlertsVar_FieldSelection(t *testing.T) {
	registry := introspection.NewRegistry()
	RegisterVariables(registry, &fakeProvider{alerts: []alerting.InstanceStatus{
		{Rule: "HighErrorRate", State: alerting.StateFiring},
	}})

	value, err := registry.GetWithField("alerts", "{.counts.firing}")
	require.NoError(t, err)
	assert.Equal(t, 1.0, value)
}
