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
	"time"

	"github.com/prometheus/common/model"
)

// Evaluate computes the next state of instance from its samples at now.
//
// Pure: the instance is not modified. A nil or short sample slice evaluates
// as an increase of 0, which is how a series missing from the query result is
// handled.
func Evaluate(samples []model.SamplePair, rule Rule, now time.Time, instance Instance) Transition {
	value := Increase(samples, now.Add(-rule.Range), now)

	t := Transition{
		Rule:        rule.Name,
		Fingerprint: instance.Fingerprint,
		Labels:      alertLabels(rule, instance.Labels),
		Annotations: rule.Annotations,
		From:        instance.State,
		To:          instance.State,
		Value:       value,
		ActiveSince: instance.ActiveSince,
		Since:       instance.ActiveSince,
		At:          now,
	}

	if value <= rule.Threshold {
		t.To = StateInactive
		t.ActiveSince = time.Time{}
		return t
	}

	switch instance.State {
	case StateInactive:
		t.ActiveSince = now
		t.Since = now
		if rule.For <= 0 {
			t.To = StateFiring
		} else {
			t.To = StatePending
		}
	case StatePending:
		if now.Sub(instance.ActiveSince) >= rule.For {
			t.To = StateFiring
		}
	}
	return t
}

func alertLabels(rule Rule, series model.LabelSet) model.LabelSet {
	labels := make(model.LabelSet, len(series)+len(rule.Labels)+1)
	for name, value := range series {
		labels[name] = value
	}
	for name, value := range rule.Labels {
		labels[model.LabelName(name)] = model.LabelValue(value)
	}
	labels[model.AlertNameLabel] = model.LabelValue(rule.Name)
	return labels
}
