// Package memory provides an in-memory implementation of the storage
// interfaces suitable for tests and local development.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/itemgrid/itemgrid/internal/app/domain/item"
	"github.com/itemgrid/itemgrid/internal/app/storage"
)

// Store keeps items in process memory guarded by a RWMutex. Listing order is
// insertion order: creates append, updates stay in place, deletes close the
// gap. It is safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	nextID int64
	items  map[string]item.Item
	order  []string
}

var _ storage.ItemStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID: 1,
		items:  make(map[string]item.Item),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("item-%d", id)
}

// ItemStore implementation ----------------------------------------------------

func (s *Store) CreateItem(_ context.Context, it item.Item) (item.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if it.ID == "" {
		it.ID = s.nextIDLocked()
	} else if _, exists := s.items[it.ID]; exists {
		return item.Item{}, fmt.Errorf("item %s: %w", it.ID, storage.ErrExists)
	}

	now := time.Now().UTC()
	it.CreatedAt = now
	it.UpdatedAt = now
	it.Attributes = item.CloneAttributes(it.Attributes)

	s.items[it.ID] = it
	s.order = append(s.order, it.ID)
	return it.Clone(), nil
}

func (s *Store) UpdateItem(_ context.Context, it item.Item) (item.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.items[it.ID]
	if !ok {
		return item.Item{}, fmt.Errorf("item %s: %w", it.ID, storage.ErrNotFound)
	}

	it.CreatedAt = original.CreatedAt
	it.UpdatedAt = time.Now().UTC()
	it.Attributes = item.CloneAttributes(it.Attributes)

	s.items[it.ID] = it
	return it.Clone(), nil
}

func (s *Store) GetItem(_ context.Context, id string) (item.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it, ok := s.items[id]
	if !ok {
		return item.Item{}, fmt.Errorf("item %s: %w", id, storage.ErrNotFound)
	}
	return it.Clone(), nil
}

func (s *Store) ListItems(_ context.Context) ([]item.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]item.Item, 0, len(s.order))
	for _, id := range s.order {
		result = append(result, s.items[id].Clone())
	}
	return result, nil
}

func (s *Store) DeleteItem(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return fmt.Errorf("item %s: %w", id, storage.ErrNotFound)
	}
	delete(s.items, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}
