package events

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"syncwarden/pkg/diff"
	busevents "syncwarden/pkg/events"
	"syncwarden/pkg/resource"
	"syncwarden/pkg/store"
)

func TestEventTypes(t *testing.T) {
	id := resource.Identity{Kind: resource.KindConfigMap, Namespace: "default", Name: "app"}

	tests := []struct {
		event busevents.Event
		want  string
	}{
		{NewControllerStartedEvent("dir:/m", 1), EventTypeControllerStarted},
		{NewControllerShutdownEvent("signal"), EventTypeControllerShutdown},
		{NewSyncTriggeredEvent("interval"), EventTypeSyncTriggered},
		{NewSyncStartedEvent("p", "interval"), EventTypeSyncStarted},
		{NewSyncPhaseEvent("p", "applying"), EventTypeSyncPhase},
		{NewSyncCompletedEvent(store.PassSummary{}), EventTypeSyncCompleted},
		{NewSyncFailedEvent("p", "fetching", errors.New("x")), EventTypeSyncFailed},
		{NewActionAppliedEvent("p", diff.ActionCreate, id, 1, 0), EventTypeActionApplied},
		{NewActionFailedEvent("p", store.Failure{ID: id}), EventTypeActionFailed},
		{NewDriftDetectedEvent("p", nil), EventTypeDriftDetected},
		{NewSourceChangedEvent("dir:/m"), EventTypeSourceChanged},
		{NewAlertEvaluatedEvent("r", 1, 0, 0), EventTypeAlertEvaluated},
		{NewAlertEvaluationFailedEvent("r", errors.New("x")), EventTypeAlertEvaluationFailed},
		{NewAlertTransitionEvent("r", "fp", nil, "inactive", "pending", 1), EventTypeAlertTransition},
		{NewNotificationFailedEvent("r", "webhook", errors.New("x")), EventTypeNotificationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.event.EventType())
			assert.False(t, tt.event.Timestamp().IsZero())
		})
	}
}

func TestConstructorsCopyInputs(t *testing.T) {
	labels := map[string]string{"instance": "a"}
	transition := NewAlertTransitionEvent("r", "fp", labels, "inactive", "firing", 3)
	labels["instance"] = "mutated"
	assert.Equal(t, "a", transition.Labels["instance"])

	entries := []diff.DriftEntry{{Fields: []string{"data"}}}
	drift := NewDriftDetectedEvent("p", entries)
	entries[0].Fields = nil
	assert.Equal(t, []string{"data"}, drift.Entries[0].Fields)

	summary := store.PassSummary{Warnings: []string{"dup"}}
	completed := NewSyncCompletedEvent(summary)
	summary.Warnings[0] = "mutated"
	assert.Equal(t, "dup", completed.Summary.Warnings[0])

	failed := NewSyncFailedEvent("p", "fetching", nil)
	assert.Empty(t, failed.Error)
}
