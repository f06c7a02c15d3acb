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

// Package notifier delivers alert state transitions to sinks.
//
// Every sink implements alerting.Notifier. Delivery is best-effort: a failed
// sink returns an *alerting.NotificationError and the evaluator logs it; the
// alert state is never rolled back.
package notifier

import (
	"context"
	"errors"
	"log/slog"

	"syncwarden/pkg/alerting"
)

// Log writes transitions to a structured logger.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a log sink.
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger.With("component", "notifier", "sink", "log")}
}

// Notify logs firing alerts at warn level and everything else at info.
func (l *Log) Notify(ctx context.Context, t alerting.Transition) error {
	level := slog.LevelInfo
	if t.To == alerting.StateFiring {
		level = slog.LevelWarn
	}

	l.logger.Log(ctx, level, "Alert "+t.To.String(),
		"rule", t.Rule,
		"labels", t.Labels.String(),
		"from", t.From.String(),
		"value", t.Value,
		"at", t.At)
	return nil
}

// Multi fans a transition out to several sinks. All sinks are called even if
// some fail; the failures are joined.
type Multi []alerting.Notifier

// Notify calls every sink in order.
func (m Multi) Notify(ctx context.Context, t alerting.Transition) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Notify(ctx, t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
