// Package events provides a lightweight in-process event bus connecting the
// order lifecycle to notification and status consumers.
package events

import (
	"sync"
	"time"
)

// EventType identifies a system event.
type EventType string

const (
	EventOrderOpened       EventType = "ORDER_OPENED"
	EventOrderExited       EventType = "ORDER_EXITED"
	EventMilestoneHit      EventType = "MILESTONE_HIT"
	EventStopLossRatcheted EventType = "STOPLOSS_RATCHETED"
	EventEntryRejected     EventType = "ENTRY_REJECTED"
	EventCooldownStarted   EventType = "COOLDOWN_STARTED"
	EventError             EventType = "ERROR"
)

// Event is a system event with a loose payload.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber handles a single event.
type Subscriber func(Event)

// EventBus fans events out to subscribers. Delivery is asynchronous so
// publishers on the tick path never block.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber
}

// NewEventBus creates an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
	}
}

// Subscribe registers a subscriber for one event type.
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for every event.
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish delivers an event to all matching subscribers, each on its own
// goroutine.
func (eb *EventBus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for _, sub := range eb.subscribers[event.Type] {
		go sub(event)
	}
	for _, sub := range eb.allSubs {
		go sub(event)
	}
}
