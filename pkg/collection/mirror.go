package collection

import (
	"context"
	"fmt"

	"github.com/itemgrid/itemgrid/pkg/client"
)

// Mirror keeps a Collection in step with the gateway. Every mutation goes
// to the server first; the local transition is applied only after the call
// succeeds, so a failed call never changes local state.
type Mirror struct {
	client     *client.Client
	collection *Collection
}

// NewMirror binds c to col. A nil col gets a fresh empty collection.
func NewMirror(c *client.Client, col *Collection) (*Mirror, error) {
	if c == nil {
		return nil, fmt.Errorf("collection: client is required")
	}
	if col == nil {
		col = New()
	}
	return &Mirror{client: c, collection: col}, nil
}

// Collection returns the mirrored collection.
func (m *Mirror) Collection() *Collection {
	return m.collection
}

// Load fetches the full item list and replaces the collection contents.
func (m *Mirror) Load(ctx context.Context) error {
	items, err := m.client.List(ctx)
	if err != nil {
		return err
	}
	m.collection.Load(items)
	return nil
}

// Create stores a new item on the server and appends the returned record.
func (m *Mirror) Create(ctx context.Context, attributes map[string]any) (*client.Item, error) {
	created, err := m.client.Create(ctx, attributes)
	if err != nil {
		return nil, err
	}
	m.collection.Create(*created)
	return created, nil
}

// Update replaces an item's attributes on the server, then locally.
func (m *Mirror) Update(ctx context.Context, id string, attributes map[string]any) (*client.Item, error) {
	updated, err := m.client.Update(ctx, id, attributes)
	if err != nil {
		return nil, err
	}
	m.collection.Update(*updated)
	return updated, nil
}

// Delete removes an item on the server, then locally. The raw server
// acknowledgment is returned for inspection.
func (m *Mirror) Delete(ctx context.Context, id string) (*client.Response, error) {
	resp, err := m.client.Delete(ctx, id)
	if err != nil {
		return resp, err
	}
	m.collection.Remove(id)
	return resp, nil
}

// Follow consumes the watch stream and applies each event to the collection
// until the context is cancelled or the server closes the stream. Most
// callers Load first so the stream extends a complete snapshot.
func (m *Mirror) Follow(ctx context.Context) error {
	return m.client.Watch(ctx, client.WatchHandlers{
		OnCreate: func(ev client.Event) {
			if ev.Item != nil {
				m.collection.Create(*ev.Item)
			}
		},
		OnUpdate: func(ev client.Event) {
			if ev.Item != nil {
				m.collection.Update(*ev.Item)
			}
		},
		OnDelete: func(ev client.Event) {
			m.collection.Remove(ev.ItemID)
		},
	})
}
