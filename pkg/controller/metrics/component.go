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

package metrics

import (
	"context"

	"syncwarden/pkg/controller/events"
	pkgevents "syncwarden/pkg/events"
)

// Phases lists the reconciler phase names exported on syncwarden_sync_phase.
var Phases = []string{"idle", "fetching", "diffing", "applying"}

// Component is an event-driven metrics collector.
//
// It subscribes to the controller's domain events and updates Metrics, so
// neither the reconciler nor the evaluator depend on Prometheus.
//
// Lifecycle: NewComponent() → Start() → eventBus.Start() → Run()
type Component struct {
	metrics   *Metrics
	eventBus  *pkgevents.EventBus
	eventChan <-chan pkgevents.Event
}

// NewComponent creates a metrics component listening on eventBus.
func NewComponent(metrics *Metrics, eventBus *pkgevents.EventBus) *Component {
	return &Component{metrics: metrics, eventBus: eventBus}
}

// Start subscribes to the event bus. Call it before eventBus.Start() so
// that buffered startup events are replayed to this component.
func (c *Component) Start() {
	c.eventChan = c.eventBus.Subscribe(200)
}

// Run processes events until ctx is cancelled.
//
// Start() must be called before Run(), otherwise this will panic.
func (c *Component) Run(ctx context.Context) error {
	if c.eventChan == nil {
		panic("Component.Start() must be called before Run()")
	}

	for {
		select {
		case event := <-c.eventChan:
			c.handleEvent(event)
		case <-ctx.Done():
			return nil
		}
	}
}

// Metrics returns the underlying Metrics instance.
func (c *Component) Metrics() *Metrics {
	return c.metrics
}

func (c *Component) handleEvent(event pkgevents.Event) {
	c.metrics.EventsPublished.Inc()

	switch e := event.(type) {
	// Sync
	case *events.SyncPhaseEvent:
		c.metrics.SetPhase(e.Phase, Phases)

	case *events.SyncCompletedEvent:
		result := PassSucceeded
		if !e.Summary.Succeeded() {
			result = PassPartial
		}
		c.metrics.RecordPass(result, e.Summary.Duration, e.Summary.Skipped)
		c.metrics.DriftedResources.Set(float64(len(e.Summary.Drift)))
		c.metrics.InSyncResources.Set(float64(e.Summary.Unchanged + e.Summary.Created + e.Summary.Updated))

	case *events.SyncFailedEvent:
		c.metrics.RecordPass(PassAborted, 0, 0)

	case *events.ActionAppliedEvent:
		c.metrics.RecordAction(e.Action, false, e.Duration)

	case *events.ActionFailedEvent:
		c.metrics.RecordAction(e.Failure.Action, true, 0)

	case *events.SourceChangedEvent:
		c.metrics.SourceChangesTotal.Inc()

	// Alerting
	case *events.AlertEvaluatedEvent:
		c.metrics.RecordEvaluation(e.Rule, false, e.Duration)
		c.metrics.AlertInstances.WithLabelValues(e.Rule).Set(float64(e.Instances))
		c.metrics.AlertsFiring.WithLabelValues(e.Rule).Set(float64(e.Firing))

	case *events.AlertEvaluationFailedEvent:
		c.metrics.RecordEvaluation(e.Rule, true, 0)

	case *events.AlertTransitionEvent:
		c.metrics.TransitionsTotal.WithLabelValues(e.Rule, e.To).Inc()

	case *events.NotificationFailedEvent:
		c.metrics.NotificationFailures.WithLabelValues(e.Sink).Inc()
	}
}
