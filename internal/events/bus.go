// Package events provides an in-memory event bus for observing the memory
// pipelines. Background tasks publish their outcomes here; subscribers
// (CLI verbose mode, tests) consume them without coupling to the pipelines.
package events

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Type identifies the kind of event.
type Type string

const (
	EventEpisodicAdded        Type = "episodic.added"
	EventEpisodicConsolidated Type = "episodic.consolidated"
	EventSummaryUpdated       Type = "working.summary"
	EventProcedureTaught      Type = "learning.taught"
	EventProfileUpdated       Type = "profile.updated"
	EventTaskFailed           Type = "task.failed"
)

// Event carries a typed payload from a pipeline.
type Event struct {
	ID        string         `json:"id"`
	Type      Type           `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload"`
}

var eventIDCounter uint64

// New creates an event stamped with the current time.
func New(t Type, payload map[string]any) Event {
	seq := atomic.AddUint64(&eventIDCounter, 1)
	return Event{
		ID:        fmt.Sprintf("%d-%d", time.Now().UnixNano(), seq),
		Type:      t,
		Timestamp: time.Now(),
		Payload:   payload,
	}
}

// Subscriber receives published events.
type Subscriber func(Event)

type subscription struct {
	types   []Type
	handler Subscriber
}

// Bus fans events out to subscribers. Delivery runs inline on the
// publishing goroutine (always a background task), so handlers must be
// quick and must not call back into the publishing pipeline.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[int]*subscription
	nextID      int
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[int]*subscription)}
}

// Publish delivers the event to all matching subscribers. A nil bus is
// safe to publish to, so pipelines can treat the bus as optional.
func (b *Bus) Publish(event Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subscribers {
		if sub.matches(event.Type) {
			sub.handler(event)
		}
	}
}

// Subscribe registers a handler for the given event types (all types when
// none are given). Returns an unsubscribe function.
func (b *Bus) Subscribe(handler Subscriber, types ...Type) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.subscribers[id] = &subscription{types: types, handler: handler}

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subscribers, id)
	}
}

func (s *subscription) matches(t Type) bool {
	if len(s.types) == 0 {
		return true
	}
	for _, st := range s.types {
		if st == t {
			return true
		}
	}
	return false
}
