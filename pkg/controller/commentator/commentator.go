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
	"context"
	"fmt"
	"log/slog"
	"time"

	"syncwarden/pkg/controller/events"
	busevents "syncwarden/pkg/events"
)

// DefaultJournalSize is the number of recent events kept for correlation.
const DefaultJournalSize = 500

// Entry is the JSON view of a journaled event.
type Entry struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// EventCommentator logs domain events with context.
type EventCommentator struct {
	bus     *busevents.EventBus
	logger  *slog.Logger
	journal *journal
	events  <-chan busevents.Event
}

// NewEventCommentator creates a commentator. journalSize <= 0 uses
// DefaultJournalSize.
func NewEventCommentator(bus *busevents.EventBus, logger *slog.Logger, journalSize int) *EventCommentator {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventCommentator{
		bus:     bus,
		logger:  logger.With("component", "commentator"),
		journal: newJournal(journalSize),
	}
}

// Start subscribes to the bus. Call before bus.Start() so that events
// buffered during startup are seen.
func (ec *EventCommentator) Start() {
	ec.events = ec.bus.Subscribe(200)
}

// Run processes events until ctx is cancelled. Returns nil on cancellation.
func (ec *EventCommentator) Run(ctx context.Context) error {
	if ec.events == nil {
		ec.Start()
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-ec.events:
			ec.processEvent(event)
		}
	}
}

// Recent returns up to n journaled events, newest first.
func (ec *EventCommentator) Recent(n int) []Entry {
	recent := ec.journal.recent(n, nil)
	entries := make([]Entry, len(recent))
	for i, event := range recent {
		message, _ := ec.describe(event)
		entries[i] = Entry{Type: event.EventType(), Timestamp: event.Timestamp(), Message: message}
	}
	return entries
}

func (ec *EventCommentator) processEvent(event busevents.Event) {
	message, attrs := ec.describe(event)
	ec.journal.add(event)
	ec.logger.Log(context.Background(), levelFor(event), message, attrs...)
}

// levelFor maps events to log levels. Per-action and per-evaluation events
// are debug noise at normal verbosity.
func levelFor(event busevents.Event) slog.Level {
	switch e := event.(type) {
	case *events.SyncFailedEvent, *events.ActionFailedEvent:
		return slog.LevelError
	case *events.AlertEvaluationFailedEvent, *events.NotificationFailedEvent, *events.DriftDetectedEvent:
		return slog.LevelWarn
	case *events.SyncCompletedEvent:
		if e.Summary.Failed > 0 || e.Summary.Skipped > 0 {
			return slog.LevelWarn
		}
		return slog.LevelInfo
	case *events.ControllerStartedEvent, *events.ControllerShutdownEvent,
		*events.AlertTransitionEvent, *events.SourceChangedEvent:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// describe builds the message and attributes for an event, correlating with
// journaled events where that adds information.
//
//nolint:gocyclo // one case per event type
func (ec *EventCommentator) describe(event busevents.Event) (string, []any) {
	attrs := []any{"event_type", event.EventType()}

	switch e := event.(type) {
	case *events.ControllerStartedEvent:
		return fmt.Sprintf("Controller started, syncing from %s with %d alert rules", e.Reference, e.Rules),
			append(attrs, "reference", e.Reference, "rules", e.Rules)

	case *events.ControllerShutdownEvent:
		return "Controller shutting down: " + e.Reason, append(attrs, "reason", e.Reason)

	case *events.SyncTriggeredEvent:
		msg := "Sync triggered: " + e.Reason
		if prev := ec.journal.latest(events.EventTypeSyncCompleted, time.Hour, e.Timestamp()); prev != nil {
			msg += fmt.Sprintf(" (previous pass finished %v ago)", e.Timestamp().Sub(prev.Timestamp()).Round(time.Second))
		}
		return msg, append(attrs, "reason", e.Reason)

	case *events.SyncStartedEvent:
		return "Sync pass started", append(attrs, "pass_id", e.PassID, "reason", e.Reason)

	case *events.SyncPhaseEvent:
		return "Sync phase " + e.Phase, append(attrs, "pass_id", e.PassID, "phase", e.Phase)

	case *events.SyncCompletedEvent:
		s := e.Summary
		msg := fmt.Sprintf("Sync pass completed: %d created, %d updated, %d deleted, %d unchanged",
			s.Created, s.Updated, s.Deleted, s.Unchanged)
		if s.Failed > 0 {
			msg += fmt.Sprintf(", %d failed", s.Failed)
		}
		if s.Skipped > 0 {
			msg += fmt.Sprintf(", %d skipped on shutdown", s.Skipped)
		}
		return msg, append(attrs,
			"pass_id", s.ID,
			"reference", s.Reference,
			"failed", s.Failed,
			"drifted", len(s.Drift),
			"duration", s.Duration)

	case *events.SyncFailedEvent:
		return fmt.Sprintf("Sync pass aborted in %s phase: %s", e.Phase, e.Error),
			append(attrs, "pass_id", e.PassID, "phase", e.Phase, "error", e.Error)

	case *events.ActionAppliedEvent:
		return fmt.Sprintf("Applied %s %s", e.Action, e.ID),
			append(attrs, "pass_id", e.PassID, "attempts", e.Attempts, "duration", e.Duration)

	case *events.ActionFailedEvent:
		f := e.Failure
		return fmt.Sprintf("Giving up on %s %s after %d attempts (%s): %s", f.Action, f.ID, f.Attempts, f.Class, f.Error),
			append(attrs, "pass_id", e.PassID, "id", f.ID.String(), "class", f.Class)

	case *events.DriftDetectedEvent:
		return fmt.Sprintf("%d resources drifted from their declaration, self-heal is off", len(e.Entries)),
			append(attrs, "pass_id", e.PassID, "resources", len(e.Entries))

	case *events.SourceChangedEvent:
		return "Desired state changed at " + e.Reference, append(attrs, "reference", e.Reference)

	case *events.AlertEvaluatedEvent:
		return fmt.Sprintf("Rule %s evaluated: %d instances, %d firing", e.Rule, e.Instances, e.Firing),
			append(attrs, "rule", e.Rule, "duration", e.Duration)

	case *events.AlertEvaluationFailedEvent:
		return fmt.Sprintf("Rule %s could not be evaluated, keeping previous state: %s", e.Rule, e.Error),
			append(attrs, "rule", e.Rule)

	case *events.AlertTransitionEvent:
		return fmt.Sprintf("Alert %s %s -> %s", e.Rule, e.From, e.To),
			append(attrs, "rule", e.Rule, "fingerprint", e.Fingerprint, "value", e.Value, "labels", e.Labels)

	case *events.NotificationFailedEvent:
		return fmt.Sprintf("Notification for %s via %s failed: %s", e.Rule, e.Sink, e.Error),
			append(attrs, "rule", e.Rule, "sink", e.Sink)

	default:
		return "Event: " + event.EventType(), attrs
	}
}
