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

import "fmt"

// EvaluationError is recorded when a rule's query failed or timed out. The
// rule's instances keep their state until the next successful evaluation.
type EvaluationError struct {
	Rule string
	Err  error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluation of rule %q failed: %v", e.Rule, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}

// NotificationError is returned by a notifier sink that could not deliver a
// transition.
type NotificationError struct {
	Sink string
	Err  error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notification via %s failed: %v", e.Sink, e.Err)
}

func (e *NotificationError) Unwrap() error {
	return e.Err
}
