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
	"fmt"
	"time"

	"github.com/prometheus/common/model"
)

// State is the lifecycle state of an alert instance.
type State int

const (
	StateInactive State = iota
	StatePending
	StateFiring
)

func (s State) String() string {
	switch s {
	case StateInactive:
		return "inactive"
	case StatePending:
		return "pending"
	case StateFiring:
		return "firing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Instance is the state of one (rule, label set) pair.
type Instance struct {
	Rule        string
	Fingerprint model.Fingerprint
	Labels      model.LabelSet

	State State

	// ActiveSince is when the current breach started; zero when inactive.
	ActiveSince time.Time

	// LastTransition is the time of the last state change (or creation).
	LastTransition time.Time

	// LastSeen is the last evaluation whose query result contained the series.
	LastSeen time.Time

	LastValue float64
}

// Transition is the outcome of evaluating one instance. From equals To when
// nothing changed.
type Transition struct {
	Rule        string
	Fingerprint model.Fingerprint

	// Labels are the series labels plus the rule labels and alertname.
	Labels      model.LabelSet
	Annotations map[string]string

	From State
	To   State

	Value       float64
	ActiveSince time.Time

	// Since is when the breach this transition belongs to started. Unlike
	// ActiveSince it is kept on the transition that resolves the breach.
	Since time.Time

	At time.Time
}

// Changed reports whether the transition is a state change.
func (t Transition) Changed() bool {
	return t.From != t.To
}

// apply folds the transition into the instance.
func (i *Instance) apply(t Transition) {
	if t.Changed() {
		i.LastTransition = t.At
	}
	i.State = t.To
	i.ActiveSince = t.ActiveSince
	i.LastValue = t.Value
}

// InstanceStatus is the externally visible view of an instance.
type InstanceStatus struct {
	Rule            string            `json:"rule"`
	Fingerprint     string            `json:"fingerprint"`
	Labels          map[string]string `json:"labels"`
	State           State             `json:"state"`
	ActiveSince     *time.Time        `json:"active_since,omitempty"`
	LastTransition  time.Time         `json:"last_transition"`
	DurationInState time.Duration     `json:"duration_in_state"`
	Value           float64           `json:"value"`
}

// RuleStatus reports the last evaluation of a rule.
type RuleStatus struct {
	Name           string        `json:"name"`
	Expr           string        `json:"expr"`
	LastEvaluation time.Time     `json:"last_evaluation,omitzero"`
	LastDuration   time.Duration `json:"last_duration"`
	LastError      string        `json:"last_error,omitempty"`
}

// Healthy reports whether the last evaluation succeeded.
func (s RuleStatus) Healthy() bool {
	return s.LastError == ""
}
