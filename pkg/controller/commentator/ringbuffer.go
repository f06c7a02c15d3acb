// Package commentator turns domain events into log lines.
//
// The commentator subscribes to every bus event, keeps a short journal of
// recent events and logs each one at a level matching its severity, using the
// journal to add context such as how long a pass took since it was triggered.
package commentator

import (
	"sync"
	"time"

	busevents "syncwarden/pkg/events"
)

// journal is a fixed-size, time-ordered buffer of recent events.
type journal struct {
	mu     sync.RWMutex
	events []busevents.Event
	head   int
	size   int
}

func newJournal(capacity int) *journal {
	if capacity <= 0 {
		capacity = DefaultJournalSize
	}
	return &journal{events: make([]busevents.Event, capacity)}
}

func (j *journal) add(event busevents.Event) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.events[j.head] = event
	j.head = (j.head + 1) % len(j.events)
	if j.size < len(j.events) {
		j.size++
	}
}

// recent returns up to n events matching match, newest first. n <= 0 means
// no limit; a nil match accepts everything.
func (j *journal) recent(n int, match func(busevents.Event) bool) []busevents.Event {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if n <= 0 {
		n = j.size
	}
	out := make([]busevents.Event, 0, min(n, j.size))
	for i := 0; i < j.size && len(out) < n; i++ {
		event := j.events[(j.head-1-i+len(j.events))%len(j.events)]
		if match == nil || match(event) {
			out = append(out, event)
		}
	}
	return out
}

// latest returns the newest event of eventType younger than window.
func (j *journal) latest(eventType string, window time.Duration, now time.Time) busevents.Event {
	found := j.recent(1, func(e busevents.Event) bool {
		return e.EventType() == eventType && now.Sub(e.Timestamp()) <= window
	})
	if len(found) == 0 {
		return nil
	}
	return found[0]
}

func (j *journal) count() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.size
}
