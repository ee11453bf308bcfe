package items

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/itemgrid/itemgrid/internal/app/events"
	"github.com/itemgrid/itemgrid/internal/app/storage"
	"github.com/itemgrid/itemgrid/internal/app/storage/memory"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) record(e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) all() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}

func newTestService() (*Service, *eventRecorder) {
	bus := events.NewBus(100)
	rec := &eventRecorder{}
	bus.Subscribe(rec.record)
	return New(memory.New(), bus, nil), rec
}

func TestCreate(t *testing.T) {
	svc, rec := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, map[string]any{"name": "a"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.ID == "" {
		t.Fatal("Create() should assign an ID")
	}
	if created.Attributes["name"] != "a" {
		t.Errorf("Attributes[name] = %v, want a", created.Attributes["name"])
	}

	published := rec.all()
	if len(published) != 1 {
		t.Fatalf("published %d events, want 1", len(published))
	}
	if published[0].Type != events.EventItemCreated {
		t.Errorf("event type = %v, want EventItemCreated", published[0].Type)
	}
	if published[0].ItemID != created.ID {
		t.Errorf("event item_id = %q, want %q", published[0].ItemID, created.ID)
	}
}

func TestUpdate(t *testing.T) {
	svc, rec := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, map[string]any{"name": "a"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	updated, err := svc.Update(ctx, created.ID, map[string]any{"name": "z"})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Attributes["name"] != "z" {
		t.Errorf("Attributes[name] = %v, want z", updated.Attributes["name"])
	}

	published := rec.all()
	if len(published) != 2 {
		t.Fatalf("published %d events, want 2", len(published))
	}
	if published[1].Type != events.EventItemUpdated {
		t.Errorf("event type = %v, want EventItemUpdated", published[1].Type)
	}
}

func TestUpdate_ValidatesID(t *testing.T) {
	svc, rec := newTestService()

	if _, err := svc.Update(context.Background(), "  ", nil); err == nil {
		t.Fatal("Update() with blank id should fail")
	}
	if len(rec.all()) != 0 {
		t.Error("no event should be published for a rejected update")
	}
}

func TestUpdate_UnknownID(t *testing.T) {
	svc, rec := newTestService()

	_, err := svc.Update(context.Background(), "missing", map[string]any{"name": "z"})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Update() error = %v, want ErrNotFound", err)
	}
	if len(rec.all()) != 0 {
		t.Error("no event should be published for a failed update")
	}
}

func TestDelete(t *testing.T) {
	svc, rec := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, map[string]any{"name": "a"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := svc.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	published := rec.all()
	if len(published) != 2 {
		t.Fatalf("published %d events, want 2", len(published))
	}
	if published[1].Type != events.EventItemDeleted {
		t.Errorf("event type = %v, want EventItemDeleted", published[1].Type)
	}
	if published[1].Item != nil {
		t.Error("deleted event should not carry an item payload")
	}

	if _, err := svc.Get(ctx, created.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
}

func TestDelete_UnknownID(t *testing.T) {
	svc, rec := newTestService()

	err := svc.Delete(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
	if len(rec.all()) != 0 {
		t.Error("no event should be published for a failed delete")
	}
}

func TestList_Order(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	first, _ := svc.Create(ctx, map[string]any{"name": "a"})
	second, _ := svc.Create(ctx, map[string]any{"name": "b"})

	items, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("List() len = %d, want 2", len(items))
	}
	if items[0].ID != first.ID || items[1].ID != second.ID {
		t.Errorf("List() order = [%s %s], want [%s %s]", items[0].ID, items[1].ID, first.ID, second.ID)
	}
}

func TestNilBus(t *testing.T) {
	svc := New(memory.New(), nil, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, map[string]any{"name": "a"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := svc.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
}
