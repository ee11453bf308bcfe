package system

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// NoopService satisfies Service for modules that need lifecycle registration
// but have no background work of their own.
type NoopService struct {
	ServiceName string
}

func (s NoopService) Name() string                  { return s.ServiceName }
func (s NoopService) Start(_ context.Context) error { return nil }
func (s NoopService) Stop(_ context.Context) error  { return nil }

// Manager starts and stops registered services deterministically: Start runs
// in registration order, Stop in reverse. Every service carries a lifecycle
// status the health endpoint can report.
type Manager struct {
	mu       sync.Mutex
	services []Service
	statuses map[string]Status
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{statuses: make(map[string]Status)}
}

// Register adds a service. Names must be unique and non-empty.
func (m *Manager) Register(svc Service) error {
	name := svc.Name()
	if name == "" {
		return errors.New("service name is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.statuses[name]; exists {
		return fmt.Errorf("service %s already registered", name)
	}
	m.services = append(m.services, svc)
	m.statuses[name] = StatusRegistered
	return nil
}

// Start brings every registered service up in registration order. The first
// failure marks that service failed and aborts the remaining starts; already
// started services keep running so the caller can Stop them.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	services := append([]Service(nil), m.services...)
	m.mu.Unlock()

	for _, svc := range services {
		if err := m.transition(svc.Name(), StatusStarting); err != nil {
			return err
		}
		if err := svc.Start(ctx); err != nil {
			m.setStatus(svc.Name(), StatusFailed)
			return fmt.Errorf("start %s: %w", svc.Name(), err)
		}
		m.setStatus(svc.Name(), StatusRunning)
	}
	return nil
}

// Stop takes every service down in reverse registration order. All services
// are attempted even when one fails; the combined error is returned.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	services := append([]Service(nil), m.services...)
	m.mu.Unlock()

	var errs []error
	for i := len(services) - 1; i >= 0; i-- {
		svc := services[i]
		if m.Status(svc.Name()) != StatusRunning {
			continue
		}
		m.setStatus(svc.Name(), StatusStopping)
		if err := svc.Stop(ctx); err != nil {
			m.setStatus(svc.Name(), StatusFailed)
			errs = append(errs, fmt.Errorf("stop %s: %w", svc.Name(), err))
			continue
		}
		m.setStatus(svc.Name(), StatusStopped)
	}
	return errors.Join(errs...)
}

// Status returns the lifecycle status of one service. Unknown names report
// the zero status.
func (m *Manager) Status(name string) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statuses[name]
}

// Statuses returns a snapshot of every service status keyed by name.
func (m *Manager) Statuses() map[string]Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]Status, len(m.statuses))
	for name, status := range m.statuses {
		out[name] = status
	}
	return out
}

// Healthy reports whether every registered service is running.
func (m *Manager) Healthy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, status := range m.statuses {
		if !status.IsHealthy() {
			return false
		}
	}
	return true
}

func (m *Manager) transition(name string, to Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.statuses[name]
	if !CanTransition(from, to) {
		return &TransitionError{Service: name, From: from, To: to}
	}
	m.statuses[name] = to
	return nil
}

func (m *Manager) setStatus(name string, status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[name] = status
}
