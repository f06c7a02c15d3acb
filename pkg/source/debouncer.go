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

package source

import (
	"sync"
	"time"
)

// debouncer coalesces bursts of change events into a single callback.
//
// Every event re-arms the timer, so the callback runs once the source has been
// quiet for the interval. Thread-safe for concurrent access.
type debouncer struct {
	mu       sync.Mutex
	interval time.Duration
	timer    *time.Timer
	pending  bool
	events   int
	callback func()
}

func newDebouncer(interval time.Duration, callback func()) *debouncer {
	return &debouncer{interval: interval, callback: callback}
}

// record registers one change event.
func (d *debouncer) record() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.events++
	if d.pending {
		d.timer.Reset(d.interval)
		return
	}

	d.pending = true
	d.timer = time.AfterFunc(d.interval, d.fire)
}

func (d *debouncer) fire() {
	d.mu.Lock()
	events := d.events
	d.events = 0
	d.pending = false
	d.mu.Unlock()

	// Invoke callback outside lock
	if d.callback != nil && events > 0 {
		d.callback()
	}
}

// stop cancels any pending callback.
func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = false
	d.events = 0
}
