// Package collection provides a local, observable mirror of an item
// collection. Pure transition functions describe how the sequence evolves;
// Collection wraps them with locking and subscriptions; Mirror drives them
// from gateway calls so that no failed call ever changes local state.
package collection

import (
	"sync"

	"github.com/itemgrid/itemgrid/pkg/client"
)

// Load replaces the whole sequence with items. The previous sequence is
// discarded; a fresh slice is always returned.
func Load(_ []client.Item, items []client.Item) []client.Item {
	next := make([]client.Item, 0, len(items))
	for _, it := range items {
		next = append(next, cloneItem(it))
	}
	return next
}

// Create appends it to the sequence. If the ID is already present the
// existing element is replaced in place instead, keeping IDs unique.
func Create(prev []client.Item, it client.Item) []client.Item {
	it = cloneItem(it)
	next := make([]client.Item, len(prev), len(prev)+1)
	copy(next, prev)
	for i := range next {
		if next[i].ID == it.ID {
			next[i] = it
			return next
		}
	}
	return append(next, it)
}

// Update replaces the element whose ID matches it; every other element
// passes through unchanged. An unknown ID leaves the sequence as it was.
func Update(prev []client.Item, it client.Item) []client.Item {
	next := make([]client.Item, len(prev))
	copy(next, prev)
	for i := range next {
		if next[i].ID == it.ID {
			next[i] = cloneItem(it)
			break
		}
	}
	return next
}

// Remove drops the element with the given id, retaining the relative order
// of the rest. An unknown id leaves the sequence as it was.
func Remove(prev []client.Item, id string) []client.Item {
	next := make([]client.Item, 0, len(prev))
	for _, it := range prev {
		if it.ID == id {
			continue
		}
		next = append(next, it)
	}
	return next
}

func cloneItem(it client.Item) client.Item {
	if it.Attributes != nil {
		attrs := make(map[string]any, len(it.Attributes))
		for k, v := range it.Attributes {
			attrs[k] = v
		}
		it.Attributes = attrs
	}
	return it
}

// ChangeType names one collection transition.
type ChangeType string

const (
	ChangeLoad   ChangeType = "load"
	ChangeCreate ChangeType = "create"
	ChangeUpdate ChangeType = "update"
	ChangeRemove ChangeType = "remove"
)

// Change describes one applied transition. Items is the post-transition
// snapshot; subscribers may retain it, it is never modified afterwards.
// Item is set for create and update changes.
type Change struct {
	Type  ChangeType
	Item  *client.Item
	ID    string
	Seq   uint64
	Items []client.Item
}

// Handler observes applied changes.
type Handler func(Change)

type handlerEntry struct {
	id      int64
	handler Handler
}

// Collection is a thread-safe, observable sequence of items. All writes go
// through the pure transition functions; all reads return snapshots.
// Attribute maps in snapshots are shared and must be treated as read-only.
type Collection struct {
	mu       sync.RWMutex
	items    []client.Item
	seq      uint64
	handlers []handlerEntry
	nextID   int64
}

// New creates an empty collection.
func New() *Collection {
	return &Collection{}
}

// Subscribe registers a handler for future changes. The returned function
// removes the subscription. Handlers run synchronously outside the lock, in
// subscription order.
func (c *Collection) Subscribe(handler Handler) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.handlers = append(c.handlers, handlerEntry{id: id, handler: handler})
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, h := range c.handlers {
			if h.id == id {
				c.handlers = append(c.handlers[:i], c.handlers[i+1:]...)
				return
			}
		}
	}
}

// Load replaces the collection contents.
func (c *Collection) Load(items []client.Item) {
	c.mu.Lock()
	c.items = Load(c.items, items)
	c.seq++
	change := Change{Type: ChangeLoad, Seq: c.seq, Items: c.snapshotLocked()}
	handlers := c.handlersLocked()
	c.mu.Unlock()

	notify(handlers, change)
}

// Create appends it, or replaces an existing element with the same ID.
func (c *Collection) Create(it client.Item) {
	c.mu.Lock()
	c.items = Create(c.items, it)
	c.seq++
	change := Change{Type: ChangeCreate, Item: c.getLocked(it.ID), ID: it.ID, Seq: c.seq, Items: c.snapshotLocked()}
	handlers := c.handlersLocked()
	c.mu.Unlock()

	notify(handlers, change)
}

// Update replaces the element with the matching ID and reports whether a
// transition was applied. Unknown IDs apply nothing and publish nothing.
func (c *Collection) Update(it client.Item) bool {
	c.mu.Lock()
	if !c.containsLocked(it.ID) {
		c.mu.Unlock()
		return false
	}
	c.items = Update(c.items, it)
	c.seq++
	change := Change{Type: ChangeUpdate, Item: c.getLocked(it.ID), ID: it.ID, Seq: c.seq, Items: c.snapshotLocked()}
	handlers := c.handlersLocked()
	c.mu.Unlock()

	notify(handlers, change)
	return true
}

// Remove drops the element with the given id and reports whether a
// transition was applied. Unknown ids apply nothing and publish nothing.
func (c *Collection) Remove(id string) bool {
	c.mu.Lock()
	if !c.containsLocked(id) {
		c.mu.Unlock()
		return false
	}
	c.items = Remove(c.items, id)
	c.seq++
	change := Change{Type: ChangeRemove, ID: id, Seq: c.seq, Items: c.snapshotLocked()}
	handlers := c.handlersLocked()
	c.mu.Unlock()

	notify(handlers, change)
	return true
}

// Items returns the current snapshot in insertion order.
func (c *Collection) Items() []client.Item {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

// Get returns the element with the given id.
func (c *Collection) Get(id string) (client.Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := range c.items {
		if c.items[i].ID == id {
			return cloneItem(c.items[i]), true
		}
	}
	return client.Item{}, false
}

// Len returns the number of elements.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Seq returns the number of transitions applied so far.
func (c *Collection) Seq() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.seq
}

func (c *Collection) containsLocked(id string) bool {
	for i := range c.items {
		if c.items[i].ID == id {
			return true
		}
	}
	return false
}

func (c *Collection) getLocked(id string) *client.Item {
	for i := range c.items {
		if c.items[i].ID == id {
			it := cloneItem(c.items[i])
			return &it
		}
	}
	return nil
}

func (c *Collection) snapshotLocked() []client.Item {
	out := make([]client.Item, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Collection) handlersLocked() []handlerEntry {
	if len(c.handlers) == 0 {
		return nil
	}
	out := make([]handlerEntry, len(c.handlers))
	copy(out, c.handlers)
	return out
}

func notify(handlers []handlerEntry, change Change) {
	for _, h := range handlers {
		h.handler(change)
	}
}
