// Package items implements the item management service. It validates input,
// delegates persistence to a storage.ItemStore, and publishes a change event
// for every committed mutation.
package items

import (
	"context"
	"fmt"
	"strings"

	"github.com/itemgrid/itemgrid/internal/app/domain/item"
	"github.com/itemgrid/itemgrid/internal/app/events"
	"github.com/itemgrid/itemgrid/internal/app/storage"
	"github.com/itemgrid/itemgrid/pkg/logger"
)

// Service manages the item collection.
type Service struct {
	store  storage.ItemStore
	events *events.Bus
	log    *logger.Logger
}

// New constructs an item service. The bus may be nil when no subscriber needs
// change notifications.
func New(store storage.ItemStore, bus *events.Bus, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("items")
	}
	return &Service{
		store:  store,
		events: bus,
		log:    log,
	}
}

// Create stores a new item. Identifiers are always assigned by the backend;
// callers only supply the attribute payload.
func (s *Service) Create(ctx context.Context, attributes map[string]any) (item.Item, error) {
	created, err := s.store.CreateItem(ctx, item.Item{Attributes: attributes})
	if err != nil {
		return item.Item{}, err
	}

	s.publish(events.EventItemCreated, &created)
	s.log.WithField("item_id", created.ID).Info("item created")
	return created, nil
}

// Update replaces the attribute payload of an existing item.
func (s *Service) Update(ctx context.Context, id string, attributes map[string]any) (item.Item, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return item.Item{}, fmt.Errorf("id is required")
	}

	updated, err := s.store.UpdateItem(ctx, item.Item{ID: id, Attributes: attributes})
	if err != nil {
		return item.Item{}, err
	}

	s.publish(events.EventItemUpdated, &updated)
	s.log.WithField("item_id", updated.ID).Info("item updated")
	return updated, nil
}

// Delete removes an item by identifier.
func (s *Service) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("id is required")
	}

	if err := s.store.DeleteItem(ctx, id); err != nil {
		return err
	}

	if s.events != nil {
		s.events.Publish(events.Event{Type: events.EventItemDeleted, ItemID: id})
	}
	s.log.WithField("item_id", id).Info("item deleted")
	return nil
}

// Get retrieves a single item by identifier.
func (s *Service) Get(ctx context.Context, id string) (item.Item, error) {
	return s.store.GetItem(ctx, id)
}

// List returns every item in the collection's stable order.
func (s *Service) List(ctx context.Context) ([]item.Item, error) {
	return s.store.ListItems(ctx)
}

// Events exposes the change bus so transports can stream mutations.
func (s *Service) Events() *events.Bus {
	return s.events
}

func (s *Service) publish(eventType events.EventType, it *item.Item) {
	if s.events == nil {
		return
	}
	s.events.Publish(events.Event{Type: eventType, ItemID: it.ID, Item: it})
}
