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

package commentator

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syncwarden/pkg/controller/events"
	busevents "syncwarden/pkg/events"
	"syncwarden/pkg/resource"
	"syncwarden/pkg/store"
)

func newTestCommentator(buf *bytes.Buffer, size int) *EventCommentator {
	logger := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return NewEventCommentator(busevents.NewEventBus(10), logger, size)
}

func TestLevelFor(t *testing.T) {
	tests := []struct {
		name  string
		event busevents.Event
		want  slog.Level
	}{
		{"aborted pass", events.NewSyncFailedEvent("p", "fetching", errors.New("x")), slog.LevelError},
		{"failed action", events.NewActionFailedEvent("p", store.Failure{}), slog.LevelError},
		{"drift", events.NewDriftDetectedEvent("p", nil), slog.LevelWarn},
		{"notification failure", events.NewNotificationFailedEvent("r", "webhook", errors.New("x")), slog.LevelWarn},
		{"clean pass", events.NewSyncCompletedEvent(store.PassSummary{Created: 1}), slog.LevelInfo},
		{"pass with failures", events.NewSyncCompletedEvent(store.PassSummary{Failed: 1}), slog.LevelWarn},
		{"transition", events.NewAlertTransitionEvent("r", "f", nil, "pending", "firing", 3), slog.LevelInfo},
		{"phase", events.NewSyncPhaseEvent("p", "diffing"), slog.LevelDebug},
		{"evaluation", events.NewAlertEvaluatedEvent("r", 1, 0, time.Millisecond), slog.LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, levelFor(tt.event))
		})
	}
}

func TestDescribe(t *testing.T) {
	var buf bytes.Buffer
	ec := newTestCommentator(&buf, 10)

	id := resource.Identity{Kind: resource.KindConfigMap, Namespace: "default", Name: "app"}

	msg, _ := ec.describe(events.NewActionFailedEvent("p1", store.Failure{
		ID: id, Action: "update", Class: "permanent", Attempts: 1, Error: "forbidden",
	}))
	assert.Contains(t, msg, "Giving up on update")
	assert.Contains(t, msg, "forbidden")

	msg, _ = ec.describe(events.NewSyncCompletedEvent(store.PassSummary{Created: 2, Failed: 1, Skipped: 3}))
	assert.Equal(t, "Sync pass completed: 2 created, 0 updated, 0 deleted, 0 unchanged, 1 failed, 3 skipped on shutdown", msg)

	msg, _ = ec.describe(events.NewAlertTransitionEvent("HighErrors", "abc", map[string]string{"job": "api"}, "pending", "firing", 4))
	assert.Equal(t, "Alert HighErrors pending -> firing", msg)
}

func TestDescribe_CorrelatesPreviousPass(t *testing.T) {
	var buf bytes.Buffer
	ec := newTestCommentator(&buf, 10)

	ec.processEvent(events.NewSyncCompletedEvent(store.PassSummary{ID: "p1"}))
	msg, _ := ec.describe(events.NewSyncTriggeredEvent("interval"))

	assert.Contains(t, msg, "Sync triggered: interval")
	assert.Contains(t, msg, "previous pass finished")
}

func TestRecent(t *testing.T) {
	var buf bytes.Buffer
	ec := newTestCommentator(&buf, 3)

	for _, reason := range []string{"a", "b", "c", "d"} {
		ec.processEvent(events.NewSyncTriggeredEvent(reason))
	}

	assert.Equal(t, 3, ec.journal.count())

	recent := ec.Recent(2)
	require.Len(t, recent, 2)
	assert.Contains(t, recent[0].Message, "Sync triggered: d")
	assert.Contains(t, recent[1].Message, "Sync triggered: c")
	assert.Equal(t, events.EventTypeSyncTriggered, recent[0].Type)

	assert.Len(t, ec.Recent(0), 3)
}

func TestRun_LogsBusEvents(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	bus := busevents.NewEventBus(10)
	ec := NewEventCommentator(bus, logger, 10)
	ec.Start()

	bus.Publish(events.NewControllerStartedEvent("/srv/manifests", 2))
	bus.Start()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ec.Run(ctx) }()

	require.Eventually(t, func() bool { return ec.journal.count() == 1 }, time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Contains(t, buf.String(), "Controller started, syncing from /srv/manifests with 2 alert rules")
	assert.Contains(t, buf.String(), "component=commentator")
}
