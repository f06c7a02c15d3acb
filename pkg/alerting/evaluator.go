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

package alerting

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/common/model"

	"syncwarden/pkg/controller/events"
	busevents "syncwarden/pkg/events"
	"syncwarden/pkg/metricsource"
)

const (
	// DefaultInterval is the evaluation cadence.
	DefaultInterval = time.Minute

	// DefaultQueryTimeout bounds each rule's query.
	DefaultQueryTimeout = 5 * time.Second

	// DefaultRetention is how long an instance stays in the inactive state
	// before it is garbage-collected.
	DefaultRetention = 15 * time.Minute

	// DefaultStep is the query resolution.
	DefaultStep = 15 * time.Second
)

// Notifier receives alert state transitions.
//
// Notify is called exactly once per transition. Errors are logged and
// counted by the evaluator; they never roll back the state change. Sinks
// report which of them failed with *NotificationError.
type Notifier interface {
	Notify(ctx context.Context, t Transition) error
}

// Config configures the evaluator loop. Zero values use the defaults.
type Config struct {
	Interval     time.Duration
	QueryTimeout time.Duration
	Retention    time.Duration
	Step         time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = DefaultQueryTimeout
	}
	if c.Retention <= 0 {
		c.Retention = DefaultRetention
	}
	if c.Retention < c.Interval {
		c.Retention = c.Interval
	}
	if c.Step <= 0 {
		c.Step = DefaultStep
	}
	return c
}

type instanceKey struct {
	rule        string
	fingerprint model.Fingerprint
}

// Evaluator periodically evaluates rules and owns the alert instance set.
type Evaluator struct {
	source   metricsource.Source
	notifier Notifier
	bus      *busevents.EventBus
	logger   *slog.Logger
	rules    []Rule
	config   Config
	now      func() time.Time

	mu        sync.RWMutex
	instances map[instanceKey]*Instance
	status    map[string]*RuleStatus
}

// NewEvaluator creates an Evaluator for rules.
//
// Parameters:
//   - src: metric series source
//   - notifier: transition sink (may be nil)
//   - bus: event bus for domain events (may be nil)
//   - logger: structured logger
//   - rules: validated with ValidateRules
//   - config: loop configuration
func NewEvaluator(src metricsource.Source, notifier Notifier, bus *busevents.EventBus, logger *slog.Logger, rules []Rule, config Config) (*Evaluator, error) {
	if err := ValidateRules(rules); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	status := make(map[string]*RuleStatus, len(rules))
	for _, rule := range rules {
		status[rule.Name] = &RuleStatus{Name: rule.Name, Expr: rule.Expr}
	}

	return &Evaluator{
		source:    src,
		notifier:  notifier,
		bus:       bus,
		logger:    logger.With("component", "alert-evaluator"),
		rules:     append([]Rule(nil), rules...),
		config:    config.withDefaults(),
		now:       time.Now,
		instances: make(map[instanceKey]*Instance),
		status:    status,
	}, nil
}

// Run evaluates all rules immediately and then every Interval until ctx is
// cancelled. Evaluation errors never stop the loop. Returns nil on
// cancellation.
func (e *Evaluator) Run(ctx context.Context) error {
	e.logger.Info("Alert evaluator starting",
		"rules", len(e.rules),
		"interval", e.config.Interval,
		"retention", e.config.Retention)

	e.Tick(ctx, e.now())

	ticker := time.NewTicker(e.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Alert evaluator shutting down", "reason", ctx.Err())
			return nil
		case <-ticker.C:
			e.Tick(ctx, e.now())
		}
	}
}

// Tick evaluates every rule at now and garbage-collects stale instances.
func (e *Evaluator) Tick(ctx context.Context, now time.Time) {
	for i := range e.rules {
		if ctx.Err() != nil {
			return
		}
		e.evaluateRule(ctx, e.rules[i], now)
	}
	e.gc(now)
}

func (e *Evaluator) evaluateRule(ctx context.Context, rule Rule, now time.Time) {
	start := time.Now()

	queryCtx, cancel := context.WithTimeout(ctx, e.config.QueryTimeout)
	matrix, err := e.source.Query(queryCtx, rule.Expr, now.Add(-rule.Range), now, e.config.Step)
	cancel()

	if err != nil {
		evalErr := &EvaluationError{Rule: rule.Name, Err: err}
		e.recordStatus(rule.Name, now, time.Since(start), evalErr)
		e.logger.Warn("Rule evaluation failed, keeping instance state",
			"rule", rule.Name,
			"error", err)
		e.publish(events.NewAlertEvaluationFailedEvent(rule.Name, evalErr))
		return
	}

	transitions, instances, firing := e.advance(rule, matrix, now)
	duration := time.Since(start)
	e.recordStatus(rule.Name, now, duration, nil)

	for _, t := range transitions {
		e.emit(ctx, t)
	}

	e.logger.Debug("Rule evaluated",
		"rule", rule.Name,
		"series", len(matrix),
		"instances", instances,
		"firing", firing,
		"duration", duration)
	e.publish(events.NewAlertEvaluatedEvent(rule.Name, instances, firing, duration))
}

// advance applies one successful query result to the rule's instances and
// returns the state changes in fingerprint order.
func (e *Evaluator) advance(rule Rule, matrix model.Matrix, now time.Time) (transitions []Transition, instances, firing int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	seen := make(map[model.Fingerprint]struct{}, len(matrix))
	step := func(inst *Instance, samples []model.SamplePair) {
		t := Evaluate(samples, rule, now, *inst)
		inst.apply(t)
		if t.Changed() {
			transitions = append(transitions, t)
		}
	}

	for _, stream := range matrix {
		fp := stream.Metric.Fingerprint()
		if _, dup := seen[fp]; dup {
			continue
		}
		seen[fp] = struct{}{}

		key := instanceKey{rule: rule.Name, fingerprint: fp}
		inst, ok := e.instances[key]
		if !ok {
			inst = &Instance{
				Rule:           rule.Name,
				Fingerprint:    fp,
				Labels:         model.LabelSet(stream.Metric.Clone()),
				State:          StateInactive,
				LastTransition: now,
			}
			// An instance exists from its first breach on.
			if Evaluate(stream.Values, rule, now, *inst).To == StateInactive {
				continue
			}
			e.instances[key] = inst
		}
		inst.LastSeen = now
		step(inst, stream.Values)
	}

	// Series missing from the result evaluate as no increase.
	for key, inst := range e.instances {
		if key.rule != rule.Name {
			continue
		}
		if _, ok := seen[key.fingerprint]; !ok {
			step(inst, nil)
		}
		instances++
		if inst.State == StateFiring {
			firing++
		}
	}

	sort.Slice(transitions, func(i, j int) bool { return transitions[i].Fingerprint < transitions[j].Fingerprint })
	return transitions, instances, firing
}

// emit logs, publishes and notifies one transition.
func (e *Evaluator) emit(ctx context.Context, t Transition) {
	labels := labelMap(t.Labels)

	e.logger.Info("Alert state changed",
		"rule", t.Rule,
		"fingerprint", t.Fingerprint.String(),
		"from", t.From.String(),
		"to", t.To.String(),
		"value", t.Value)
	e.publish(events.NewAlertTransitionEvent(t.Rule, t.Fingerprint.String(), labels, t.From.String(), t.To.String(), t.Value))

	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, t); err != nil {
		for _, failure := range notificationErrors(err) {
			e.logger.Warn("Notification failed",
				"rule", t.Rule,
				"sink", failure.Sink,
				"error", failure.Err)
			e.publish(events.NewNotificationFailedEvent(t.Rule, failure.Sink, failure.Err))
		}
	}
}

// gc drops instances that have been inactive for at least Retention.
func (e *Evaluator) gc(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for key, inst := range e.instances {
		if inst.State == StateInactive && now.Sub(inst.LastTransition) >= e.config.Retention {
			delete(e.instances, key)
		}
	}
}

func (e *Evaluator) recordStatus(rule string, now time.Time, duration time.Duration, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	status := e.status[rule]
	status.LastEvaluation = now
	status.LastDuration = duration
	status.LastError = ""
	if err != nil {
		status.LastError = err.Error()
	}
}

// Instances returns all alert instances ordered by rule and fingerprint.
func (e *Evaluator) Instances() []InstanceStatus {
	now := e.now()

	e.mu.RLock()
	defer e.mu.RUnlock()

	result := make([]InstanceStatus, 0, len(e.instances))
	for _, inst := range e.instances {
		status := InstanceStatus{
			Rule:            inst.Rule,
			Fingerprint:     inst.Fingerprint.String(),
			Labels:          labelMap(inst.Labels),
			State:           inst.State,
			LastTransition:  inst.LastTransition,
			DurationInState: now.Sub(inst.LastTransition),
			Value:           inst.LastValue,
		}
		if !inst.ActiveSince.IsZero() {
			since := inst.ActiveSince
			status.ActiveSince = &since
		}
		result = append(result, status)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Rule != result[j].Rule {
			return result[i].Rule < result[j].Rule
		}
		return result[i].Fingerprint < result[j].Fingerprint
	})
	return result
}

// Rules returns the evaluation status of every rule in configuration order.
func (e *Evaluator) Rules() []RuleStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()

	result := make([]RuleStatus, 0, len(e.rules))
	for _, rule := range e.rules {
		result = append(result, *e.status[rule.Name])
	}
	return result
}

func (e *Evaluator) publish(event busevents.Event) {
	if e.bus != nil {
		e.bus.Publish(event)
	}
}

func labelMap(labels model.LabelSet) map[string]string {
	m := make(map[string]string, len(labels))
	for name, value := range labels {
		m[string(name)] = string(value)
	}
	return m
}

// notificationErrors flattens a (possibly joined) notifier error into
// per-sink failures.
func notificationErrors(err error) []*NotificationError {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var result []*NotificationError
		for _, inner := range joined.Unwrap() {
			result = append(result, notificationErrors(inner)...)
		}
		return result
	}

	var notifyErr *NotificationError
	if errors.As(err, &notifyErr) {
		return []*NotificationError{notifyErr}
	}
	return []*NotificationError{{Sink: "notifier", Err: err}}
}
