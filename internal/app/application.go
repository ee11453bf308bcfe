package app

import (
	"context"
	"fmt"

	"github.com/itemgrid/itemgrid/internal/app/events"
	"github.com/itemgrid/itemgrid/internal/app/metrics"
	"github.com/itemgrid/itemgrid/internal/app/services/items"
	"github.com/itemgrid/itemgrid/internal/app/storage"
	"github.com/itemgrid/itemgrid/internal/app/storage/memory"
	"github.com/itemgrid/itemgrid/internal/app/system"
	"github.com/itemgrid/itemgrid/pkg/logger"
)

// eventHistorySize bounds the ring of recent events behind /items/events.
const eventHistorySize = 1000

// Stores encapsulates persistence dependencies. A nil store defaults to the
// in-memory implementation.
type Stores struct {
	Items storage.ItemStore
}

// Application ties the item service and its event bus together and manages
// their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Items  *items.Service
	Events *events.Bus
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	if stores.Items == nil {
		stores.Items = memory.New()
	}

	manager := system.NewManager()
	bus := events.NewBus(eventHistorySize)
	bus.Subscribe(func(event events.Event) {
		metrics.RecordEventPublished(string(event.Type))
	})
	itemService := items.New(stores.Items, bus, log)

	if err := manager.Register(system.NoopService{ServiceName: "items"}); err != nil {
		return nil, fmt.Errorf("register items service: %w", err)
	}

	return &Application{
		manager: manager,
		log:     log,
		Items:   itemService,
		Events:  bus,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}

// Healthy reports whether every registered service is running.
func (a *Application) Healthy() bool {
	return a.manager.Healthy()
}

// Statuses returns per-service lifecycle states for the health endpoint.
func (a *Application) Statuses() map[string]system.Status {
	return a.manager.Statuses()
}
