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

// Package events provides the in-process event bus that decouples the
// reconciler and the alert evaluator from their observers (logging, metrics,
// status).
//
// Publishing never blocks: a subscriber whose buffer is full misses the event,
// and the miss is counted so it shows up in metrics.
package events

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event is the base interface for all events in the system.
type Event interface {
	// EventType returns a unique identifier for this event type.
	// Convention: dot-notation like "sync.completed" or "alert.transition".
	EventType() string

	// Timestamp returns when this event occurred.
	Timestamp() time.Time
}

type subscription struct {
	ch    chan Event
	types map[string]struct{} // nil receives everything
}

func (s *subscription) wants(event Event) bool {
	if s.types == nil {
		return true
	}
	_, ok := s.types[event.EventType()]
	return ok
}

// EventBus provides pub/sub coordination between controller components.
//
// EventBus is thread-safe and can be used concurrently from multiple goroutines.
//
// Startup Coordination:
// Events published before Start() is called are buffered and replayed after Start().
// This lets the controller publish its startup events before every subscriber
// has been constructed.
type EventBus struct {
	subscribers []*subscription
	mu          sync.RWMutex

	// Startup coordination
	started        bool
	startMu        sync.Mutex
	preStartBuffer []Event

	dropped atomic.Uint64
}

// NewEventBus creates a new EventBus.
//
// The capacity parameter sets the initial buffer size for pre-start events.
func NewEventBus(capacity int) *EventBus {
	return &EventBus{
		preStartBuffer: make([]Event, 0, capacity),
	}
}

// Publish sends an event to all interested subscribers.
//
// Before Start() the event is buffered and 0 is returned. Afterwards this is a
// non-blocking operation; subscribers with a full channel miss the event.
//
// Returns the number of subscribers that received the event.
func (b *EventBus) Publish(event Event) int {
	b.startMu.Lock()
	if !b.started {
		b.preStartBuffer = append(b.preStartBuffer, event)
		b.startMu.Unlock()
		return 0
	}
	b.startMu.Unlock()

	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.deliver(event)
}

// deliver must be called with b.mu held for reading.
func (b *EventBus) deliver(event Event) int {
	sent := 0
	for _, sub := range b.subscribers {
		if !sub.wants(event) {
			continue
		}
		select {
		case sub.ch <- event:
			sent++
		default:
			b.dropped.Add(1)
		}
	}
	return sent
}

// Subscribe creates a subscription receiving every published event.
//
// The returned channel is never closed. Subscribers must keep reading from it;
// a bufferSize of 100 is enough for the controller's event rate.
func (b *EventBus) Subscribe(bufferSize int) <-chan Event {
	return b.SubscribeTypes(bufferSize)
}

// SubscribeTypes creates a subscription receiving only the listed event types.
// Without types it behaves like Subscribe.
//
// Example:
//
//	ch := bus.SubscribeTypes(100, events.EventTypeAlertTransition)
func (b *EventBus) SubscribeTypes(bufferSize int, eventTypes ...string) <-chan Event {
	sub := &subscription{ch: make(chan Event, bufferSize)}
	if len(eventTypes) > 0 {
		sub.types = make(map[string]struct{}, len(eventTypes))
		for _, t := range eventTypes {
			sub.types[t] = struct{}{}
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, sub)
	return sub.ch
}

// Start replays buffered events in publish order and switches the bus to
// direct delivery. It is idempotent.
func (b *EventBus) Start() {
	b.startMu.Lock()
	defer b.startMu.Unlock()

	if b.started {
		return
	}
	b.started = true

	if len(b.preStartBuffer) > 0 {
		b.mu.RLock()
		for _, event := range b.preStartBuffer {
			b.deliver(event)
		}
		b.mu.RUnlock()
		b.preStartBuffer = nil
	}
}

// Dropped returns how many deliveries were skipped because a subscriber's
// channel was full.
func (b *EventBus) Dropped() uint64 {
	return b.dropped.Load()
}
