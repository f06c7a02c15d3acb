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

package reconciler

import (
	"runtime"
	"time"

	"syncwarden/pkg/diff"
	"syncwarden/pkg/retry"
)

const (
	// DefaultInterval is the time between passes when the source does not push changes.
	DefaultInterval = 3 * time.Minute

	// DefaultFetchTimeout bounds reading the desired state and each kind of observed state.
	DefaultFetchTimeout = 10 * time.Second

	// DefaultApplyTimeout bounds a single call against the target.
	DefaultApplyTimeout = 10 * time.Second
)

// Config configures the Reconciler.
type Config struct {
	// Interval between passes. Zero uses DefaultInterval.
	Interval time.Duration

	// FetchTimeout bounds each fetch. Zero uses DefaultFetchTimeout.
	FetchTimeout time.Duration

	// ApplyTimeout bounds each apply call. Zero uses DefaultApplyTimeout.
	ApplyTimeout time.Duration

	// Workers is the number of actions applied concurrently within a tier.
	// Zero uses runtime.NumCPU().
	Workers int

	// Policy gates pruning and self-heal.
	Policy diff.Policy

	// Retry configures per-action backoff. A zero MaxAttempts uses retry.DefaultConfig().
	Retry retry.Config
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}
	if c.ApplyTimeout <= 0 {
		c.ApplyTimeout = DefaultApplyTimeout
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.Retry.MaxAttempts <= 0 {
		logger := c.Retry.Logger
		c.Retry = retry.DefaultConfig()
		c.Retry.Logger = logger
	}
	return c
}
