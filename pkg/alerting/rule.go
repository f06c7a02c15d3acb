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

// Package alerting evaluates windowed threshold rules over metric series and
// tracks per-label-set alert instances through Inactive, Pending and Firing.
//
// An instance becomes Pending once the increase of its series over the
// rule's range exceeds the threshold, and Firing once it has stayed above for
// the rule's sustain duration. Dropping to or below the threshold resets it to
// Inactive immediately.
package alerting

import (
	"errors"
	"fmt"
	"time"
)

// Rule is an alerting rule. Immutable once handed to an Evaluator.
type Rule struct {
	// Name identifies the rule and becomes the alertname label.
	Name string

	// Expr is the series expression sent to the metric source.
	Expr string

	// Range is the sliding window the increase is computed over.
	Range time.Duration

	// Threshold is exceeded when the increase is strictly greater.
	Threshold float64

	// For is how long the threshold must stay exceeded before firing.
	// Zero fires on the first breach.
	For time.Duration

	// Labels are added to every alert of this rule (e.g. severity).
	Labels map[string]string

	// Annotations are attached to notifications.
	Annotations map[string]string
}

// Validate checks the rule for structural errors.
func (r *Rule) Validate() error {
	var errs []error
	if r.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if r.Expr == "" {
		errs = append(errs, errors.New("expr is required"))
	}
	if r.Range <= 0 {
		errs = append(errs, fmt.Errorf("range must be positive, got %s", r.Range))
	}
	if r.For < 0 {
		errs = append(errs, fmt.Errorf("for must not be negative, got %s", r.For))
	}
	if len(errs) > 0 {
		return fmt.Errorf("rule %q: %w", r.Name, errors.Join(errs...))
	}
	return nil
}

// ValidateRules validates every rule and rejects duplicate names.
func ValidateRules(rules []Rule) error {
	seen := make(map[string]struct{}, len(rules))
	for i := range rules {
		if err := rules[i].Validate(); err != nil {
			return err
		}
		if _, dup := seen[rules[i].Name]; dup {
			return fmt.Errorf("duplicate rule name %q", rules[i].Name)
		}
		seen[rules[i].Name] = struct{}{}
	}
	return nil
}
