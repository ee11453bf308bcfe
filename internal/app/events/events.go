// Package events provides the item change bus. Every mutation that commits
// through the items service is published here; subscribers receive changes in
// commit order and a bounded ring keeps recent history for replay.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/itemgrid/itemgrid/internal/app/domain/item"
)

// EventType classifies an item change.
type EventType string

const (
	EventItemCreated EventType = "item.created"
	EventItemUpdated EventType = "item.updated"
	EventItemDeleted EventType = "item.deleted"
)

// Event records a single committed change. Seq increases by one per event on
// a bus, so subscribers can detect gaps after a disconnect. Deleted events
// carry only the identifier; Item is nil for them.
type Event struct {
	Seq       uint64     `json:"seq"`
	Type      EventType  `json:"type"`
	ItemID    string     `json:"item_id"`
	Item      *item.Item `json:"item,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// String returns the event as JSON for logs and diagnostics.
func (e Event) String() string {
	data, _ := json.Marshal(e)
	return string(data)
}

// Handler processes events as they are published.
type Handler func(Event)

// Filter decides whether a handler sees an event.
type Filter func(Event) bool

// Bus is a thread-safe change bus with a bounded replay ring.
type Bus struct {
	mu       sync.RWMutex
	events   []Event
	size     int
	head     int
	count    int
	seq      uint64
	handlers []handlerEntry
	nextID   int64
}

type handlerEntry struct {
	id      int64
	filter  Filter
	handler Handler
}

// NewBus creates a bus whose replay ring holds size events.
func NewBus(size int) *Bus {
	if size <= 0 {
		size = 1000
	}
	return &Bus{
		events: make([]Event, size),
		size:   size,
	}
}

// Publish assigns the next sequence number, stores the event in the ring, and
// notifies subscribers. The assigned event is returned so callers can report
// the sequence number to clients.
func (b *Bus) Publish(event Event) Event {
	b.mu.Lock()
	b.seq++
	event.Seq = b.seq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.ItemID == "" && event.Item != nil {
		event.ItemID = event.Item.ID
	}

	b.events[b.head] = event
	b.head = (b.head + 1) % b.size
	if b.count < b.size {
		b.count++
	}

	handlers := make([]handlerEntry, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.Unlock()

	// Notify handlers outside the lock
	for _, h := range handlers {
		if h.filter == nil || h.filter(event) {
			h.handler(event)
		}
	}
	return event
}

// Subscribe registers a handler for all events. The returned function removes
// the subscription.
func (b *Bus) Subscribe(handler Handler) func() {
	return b.SubscribeFiltered(nil, handler)
}

// SubscribeFiltered registers a handler that only sees events accepted by the
// filter.
func (b *Bus) SubscribeFiltered(filter Filter, handler Handler) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers = append(b.handlers, handlerEntry{
		id:      id,
		filter:  filter,
		handler: handler,
	})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, h := range b.handlers {
			if h.id == id {
				b.handlers = append(b.handlers[:i], b.handlers[i+1:]...)
				return
			}
		}
	}
}

// Recent returns the most recent n events in reverse chronological order.
func (b *Bus) Recent(n int) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n <= 0 || b.count == 0 {
		return nil
	}
	if n > b.count {
		n = b.count
	}

	result := make([]Event, n)
	for i := 0; i < n; i++ {
		idx := (b.head - 1 - i + b.size) % b.size
		result[i] = b.events[idx]
	}
	return result
}

// RecentByType returns recent events of one type, newest first.
func (b *Bus) RecentByType(eventType EventType, n int) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n <= 0 || b.count == 0 {
		return nil
	}

	var result []Event
	for i := 0; i < b.count && len(result) < n; i++ {
		idx := (b.head - 1 - i + b.size) % b.size
		if b.events[idx].Type == eventType {
			result = append(result, b.events[idx])
		}
	}
	return result
}

// Seq returns the sequence number of the most recently published event.
func (b *Bus) Seq() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.seq
}

// Count returns the number of events held in the ring.
func (b *Bus) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// Clear drops all buffered events. Subscriptions and the sequence counter
// survive.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.head = 0
	b.count = 0
	for i := range b.events {
		b.events[i] = Event{}
	}
}
