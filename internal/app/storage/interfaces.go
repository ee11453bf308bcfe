// Package storage defines the persistence interfaces consumed by itemgrid
// services, together with the sentinel errors every backend translates its
// native failures into.
package storage

import (
	"context"
	"errors"

	"github.com/itemgrid/itemgrid/internal/app/domain/item"
)

// Sentinel errors shared by all backends. Callers match them with errors.Is;
// backends wrap them so messages still carry the offending identifier.
var (
	// ErrNotFound reports that no item with the requested identifier exists.
	ErrNotFound = errors.New("not found")
	// ErrExists reports an identifier collision on create.
	ErrExists = errors.New("already exists")
)

// ItemStore persists items. Implementations assign an identifier on create
// when the incoming item carries none, preserve CreatedAt across updates, and
// keep a stable listing order so clients replicating the collection observe a
// deterministic sequence.
type ItemStore interface {
	CreateItem(ctx context.Context, it item.Item) (item.Item, error)
	UpdateItem(ctx context.Context, it item.Item) (item.Item, error)
	GetItem(ctx context.Context, id string) (item.Item, error)
	ListItems(ctx context.Context) ([]item.Item, error)
	DeleteItem(ctx context.Context, id string) error
}
