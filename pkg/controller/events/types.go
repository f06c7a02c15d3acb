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

// Package events defines the domain events published on the controller's
// event bus.
//
// Events are immutable after creation: constructors copy the slices and maps
// they are given, and consumers must not modify event fields. All event types
// use pointer receivers for their Event interface methods.
//
// Events are organized into categories:
//   - Lifecycle Events: controller startup and shutdown
//   - Sync Events: reconciliation passes, actions and drift
//   - Source Events: desired-state change notifications
//   - Alert Events: evaluation results, state transitions and notification delivery
package events

import (
	"time"

	"syncwarden/pkg/diff"
	"syncwarden/pkg/resource"
	"syncwarden/pkg/store"
)

// -----------------------------------------------------------------------------
// Event Type Constants
// -----------------------------------------------------------------------------

const (
	// Lifecycle event types.
	EventTypeControllerStarted  = "controller.started"
	EventTypeControllerShutdown = "controller.shutdown"

	// Sync event types.
	EventTypeSyncTriggered = "sync.triggered"
	EventTypeSyncStarted   = "sync.started"
	EventTypeSyncPhase     = "sync.phase"
	EventTypeSyncCompleted = "sync.completed"
	EventTypeSyncFailed    = "sync.failed"
	EventTypeActionApplied = "sync.action.applied"
	EventTypeActionFailed  = "sync.action.failed"
	EventTypeDriftDetected = "sync.drift.detected"

	// Source event types.
	EventTypeSourceChanged = "source.changed"

	// Alert event types.
	EventTypeAlertEvaluated        = "alert.evaluated"
	EventTypeAlertEvaluationFailed = "alert.evaluation.failed"
	EventTypeAlertTransition       = "alert.transition"
	EventTypeNotificationFailed    = "alert.notification.failed"
)

// -----------------------------------------------------------------------------
// Lifecycle Events
// -----------------------------------------------------------------------------

// ControllerStartedEvent is published once all components are running.
type ControllerStartedEvent struct {
	Reference string
	Rules     int
	timestamp time.Time
}

// NewControllerStartedEvent creates a new ControllerStartedEvent.
func NewControllerStartedEvent(reference string, rules int) *ControllerStartedEvent {
	return &ControllerStartedEvent{
		Reference: reference,
		Rules:     rules,
		timestamp: time.Now(),
	}
}

func (e *ControllerStartedEvent) EventType() string    { return EventTypeControllerStarted }
func (e *ControllerStartedEvent) Timestamp() time.Time { return e.timestamp }

// ControllerShutdownEvent is published when the controller is shutting down gracefully.
type ControllerShutdownEvent struct {
	Reason    string
	timestamp time.Time
}

// NewControllerShutdownEvent creates a new ControllerShutdownEvent.
func NewControllerShutdownEvent(reason string) *ControllerShutdownEvent {
	return &ControllerShutdownEvent{
		Reason:    reason,
		timestamp: time.Now(),
	}
}

func (e *ControllerShutdownEvent) EventType() string    { return EventTypeControllerShutdown }
func (e *ControllerShutdownEvent) Timestamp() time.Time { return e.timestamp }

// -----------------------------------------------------------------------------
// Sync Events
// -----------------------------------------------------------------------------

// SyncTriggeredEvent is published when a pass is scheduled.
// Reason is one of "startup", "interval", "source_change" or "manual".
type SyncTriggeredEvent struct {
	Reason    string
	timestamp time.Time
}

// NewSyncTriggeredEvent creates a new SyncTriggeredEvent.
func NewSyncTriggeredEvent(reason string) *SyncTriggeredEvent {
	return &SyncTriggeredEvent{Reason: reason, timestamp: time.Now()}
}

func (e *SyncTriggeredEvent) EventType() string    { return EventTypeSyncTriggered }
func (e *SyncTriggeredEvent) Timestamp() time.Time { return e.timestamp }

// SyncStartedEvent is published when a pass begins fetching.
type SyncStartedEvent struct {
	PassID    string
	Reason    string
	timestamp time.Time
}

// NewSyncStartedEvent creates a new SyncStartedEvent.
func NewSyncStartedEvent(passID, reason string) *SyncStartedEvent {
	return &SyncStartedEvent{PassID: passID, Reason: reason, timestamp: time.Now()}
}

func (e *SyncStartedEvent) EventType() string    { return EventTypeSyncStarted }
func (e *SyncStartedEvent) Timestamp() time.Time { return e.timestamp }

// SyncPhaseEvent is published on every reconciler phase change.
type SyncPhaseEvent struct {
	PassID    string
	Phase     string
	timestamp time.Time
}

// NewSyncPhaseEvent creates a new SyncPhaseEvent.
func NewSyncPhaseEvent(passID, phase string) *SyncPhaseEvent {
	return &SyncPhaseEvent{PassID: passID, Phase: phase, timestamp: time.Now()}
}

func (e *SyncPhaseEvent) EventType() string    { return EventTypeSyncPhase }
func (e *SyncPhaseEvent) Timestamp() time.Time { return e.timestamp }

// SyncCompletedEvent is published when a pass ran to the end, with or
// without failed actions.
type SyncCompletedEvent struct {
	Summary   store.PassSummary
	timestamp time.Time
}

// NewSyncCompletedEvent creates a new SyncCompletedEvent.
// Performs defensive copy of the summary's slices.
func NewSyncCompletedEvent(summary store.PassSummary) *SyncCompletedEvent {
	return &SyncCompletedEvent{Summary: copySummary(summary), timestamp: time.Now()}
}

func (e *SyncCompletedEvent) EventType() string    { return EventTypeSyncCompleted }
func (e *SyncCompletedEvent) Timestamp() time.Time { return e.timestamp }

// SyncFailedEvent is published when a pass aborted, e.g. because the desired
// or observed state could not be fetched.
type SyncFailedEvent struct {
	PassID    string
	Phase     string
	Error     string
	timestamp time.Time
}

// NewSyncFailedEvent creates a new SyncFailedEvent.
func NewSyncFailedEvent(passID, phase string, err error) *SyncFailedEvent {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &SyncFailedEvent{PassID: passID, Phase: phase, Error: msg, timestamp: time.Now()}
}

func (e *SyncFailedEvent) EventType() string    { return EventTypeSyncFailed }
func (e *SyncFailedEvent) Timestamp() time.Time { return e.timestamp }

// ActionAppliedEvent is published after an action succeeded.
type ActionAppliedEvent struct {
	PassID    string
	Action    string
	ID        resource.Identity
	Attempts  int
	Duration  time.Duration
	timestamp time.Time
}

// NewActionAppliedEvent creates a new ActionAppliedEvent.
func NewActionAppliedEvent(passID string, action diff.ActionType, id resource.Identity, attempts int, duration time.Duration) *ActionAppliedEvent {
	return &ActionAppliedEvent{
		PassID:    passID,
		Action:    action.String(),
		ID:        id,
		Attempts:  attempts,
		Duration:  duration,
		timestamp: time.Now(),
	}
}

func (e *ActionAppliedEvent) EventType() string    { return EventTypeActionApplied }
func (e *ActionAppliedEvent) Timestamp() time.Time { return e.timestamp }

// ActionFailedEvent is published when an action is given up on.
type ActionFailedEvent struct {
	PassID    string
	Failure   store.Failure
	timestamp time.Time
}

// NewActionFailedEvent creates a new ActionFailedEvent.
func NewActionFailedEvent(passID string, failure store.Failure) *ActionFailedEvent {
	return &ActionFailedEvent{PassID: passID, Failure: failure, timestamp: time.Now()}
}

func (e *ActionFailedEvent) EventType() string    { return EventTypeActionFailed }
func (e *ActionFailedEvent) Timestamp() time.Time { return e.timestamp }

// DriftDetectedEvent is published when self-heal is disabled and existing
// resources differ from their declaration.
type DriftDetectedEvent struct {
	PassID    string
	Entries   []diff.DriftEntry
	timestamp time.Time
}

// NewDriftDetectedEvent creates a new DriftDetectedEvent.
// Performs defensive copy of the entries slice.
func NewDriftDetectedEvent(passID string, entries []diff.DriftEntry) *DriftDetectedEvent {
	var entriesCopy []diff.DriftEntry
	if len(entries) > 0 {
		entriesCopy = make([]diff.DriftEntry, len(entries))
		copy(entriesCopy, entries)
	}
	return &DriftDetectedEvent{PassID: passID, Entries: entriesCopy, timestamp: time.Now()}
}

func (e *DriftDetectedEvent) EventType() string    { return EventTypeDriftDetected }
func (e *DriftDetectedEvent) Timestamp() time.Time { return e.timestamp }

// -----------------------------------------------------------------------------
// Source Events
// -----------------------------------------------------------------------------

// SourceChangedEvent is published when the desired-state source reports a change.
type SourceChangedEvent struct {
	Reference string
	timestamp time.Time
}

// NewSourceChangedEvent creates a new SourceChangedEvent.
func NewSourceChangedEvent(reference string) *SourceChangedEvent {
	return &SourceChangedEvent{Reference: reference, timestamp: time.Now()}
}

func (e *SourceChangedEvent) EventType() string    { return EventTypeSourceChanged }
func (e *SourceChangedEvent) Timestamp() time.Time { return e.timestamp }

// -----------------------------------------------------------------------------
// Alert Events
// -----------------------------------------------------------------------------

// AlertEvaluatedEvent is published after a rule was evaluated successfully.
type AlertEvaluatedEvent struct {
	Rule      string
	Instances int
	Firing    int
	Duration  time.Duration
	timestamp time.Time
}

// NewAlertEvaluatedEvent creates a new AlertEvaluatedEvent.
func NewAlertEvaluatedEvent(rule string, instances, firing int, duration time.Duration) *AlertEvaluatedEvent {
	return &AlertEvaluatedEvent{
		Rule:      rule,
		Instances: instances,
		Firing:    firing,
		Duration:  duration,
		timestamp: time.Now(),
	}
}

func (e *AlertEvaluatedEvent) EventType() string    { return EventTypeAlertEvaluated }
func (e *AlertEvaluatedEvent) Timestamp() time.Time { return e.timestamp }

// AlertEvaluationFailedEvent is published when a rule's query failed. The
// rule's instances keep their previous state.
type AlertEvaluationFailedEvent struct {
	Rule      string
	Error     string
	timestamp time.Time
}

// NewAlertEvaluationFailedEvent creates a new AlertEvaluationFailedEvent.
func NewAlertEvaluationFailedEvent(rule string, err error) *AlertEvaluationFailedEvent {
	return &AlertEvaluationFailedEvent{Rule: rule, Error: err.Error(), timestamp: time.Now()}
}

func (e *AlertEvaluationFailedEvent) EventType() string    { return EventTypeAlertEvaluationFailed }
func (e *AlertEvaluationFailedEvent) Timestamp() time.Time { return e.timestamp }

// AlertTransitionEvent is published exactly once per alert instance state change.
type AlertTransitionEvent struct {
	Rule        string
	Fingerprint string
	Labels      map[string]string
	From        string
	To          string
	Value       float64
	timestamp   time.Time
}

// NewAlertTransitionEvent creates a new AlertTransitionEvent.
// Performs defensive copy of the labels map.
func NewAlertTransitionEvent(rule, fingerprint string, labels map[string]string, from, to string, value float64) *AlertTransitionEvent {
	labelsCopy := make(map[string]string, len(labels))
	for k, v := range labels {
		labelsCopy[k] = v
	}
	return &AlertTransitionEvent{
		Rule:        rule,
		Fingerprint: fingerprint,
		Labels:      labelsCopy,
		From:        from,
		To:          to,
		Value:       value,
		timestamp:   time.Now(),
	}
}

func (e *AlertTransitionEvent) EventType() string    { return EventTypeAlertTransition }
func (e *AlertTransitionEvent) Timestamp() time.Time { return e.timestamp }

// NotificationFailedEvent is published when a notifier sink could not deliver
// a transition. The alert state is not affected.
type NotificationFailedEvent struct {
	Rule      string
	Sink      string
	Error     string
	timestamp time.Time
}

// NewNotificationFailedEvent creates a new NotificationFailedEvent.
func NewNotificationFailedEvent(rule, sink string, err error) *NotificationFailedEvent {
	return &NotificationFailedEvent{Rule: rule, Sink: sink, Error: err.Error(), timestamp: time.Now()}
}

func (e *NotificationFailedEvent) EventType() string    { return EventTypeNotificationFailed }
func (e *NotificationFailedEvent) Timestamp() time.Time { return e.timestamp }

func copySummary(s store.PassSummary) store.PassSummary {
	out := s
	if s.Failures != nil {
		out.Failures = append([]store.Failure(nil), s.Failures...)
	}
	if s.Drift != nil {
		out.Drift = append([]diff.DriftEntry(nil), s.Drift...)
	}
	if s.Warnings != nil {
		out.Warnings = append([]string(nil), s.Warnings...)
	}
	return out
}
