package session

import (
	"log/slog"
	"sync"
	"time"
)

// EventType identifies what changed.
type EventType string

// Event types.
const (
	EventCamera   EventType = "camera"
	EventDials    EventType = "dials"
	EventPower    EventType = "power"
	EventCapture  EventType = "capture"
	EventGalleria EventType = "galleria"
	EventCatalog  EventType = "catalog"
	EventClosed   EventType = "closed"
	// EventSnapshot is sent once to a new stream subscriber and is never
	// published on the bus.
	EventSnapshot EventType = "snapshot"
)

// Event is a state change published by a controller.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
	Snapshot  Snapshot  `json:"snapshot"`
}

// Bus is a publish/subscribe fan-out for one session's events. Slow
// subscribers lose events rather than block the controller.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[int]chan Event
	nextID      int
	closed      bool
	log         *slog.Logger
}

// NewBus creates an empty bus.
func NewBus(log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{
		subscribers: make(map[int]chan Event),
		log:         log,
	}
}

// Publish delivers evt to every subscriber without blocking.
func (b *Bus) Publish(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
			b.log.Warn("subscriber buffer full, dropping event",
				slog.Int("subscriber_id", id),
				slog.String("event_type", string(evt.Type)),
				slog.String("session_id", evt.SessionID),
			)
		}
	}
}

// Subscribe returns a channel of events and an unsubscribe function. The
// channel is closed by unsubscribe or when the bus closes. Subscribing to a
// closed bus returns an already closed channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subscribers[id] = ch
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subscribers[id]; ok {
				delete(b.subscribers, id)
				close(c)
			}
		})
	}
	return ch, unsub
}

// SubscriberCount returns the number of live subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close closes every subscriber channel. Later publishes are dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subscribers {
		delete(b.subscribers, id)
		close(ch)
	}
}
