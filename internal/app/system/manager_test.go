package system

import (
	"context"
	"errors"
	"testing"
)

type fakeService struct {
	name     string
	startErr error
	stopErr  error
	started  int
	stopped  int
	order    *[]string
}

func (f *fakeService) Name() string { return f.name }

func (f *fakeService) Start(_ context.Context) error {
	f.started++
	if f.order != nil {
		*f.order = append(*f.order, "start:"+f.name)
	}
	return f.startErr
}

func (f *fakeService) Stop(_ context.Context) error {
	f.stopped++
	if f.order != nil {
		*f.order = append(*f.order, "stop:"+f.name)
	}
	return f.stopErr
}

func TestManager_Register(t *testing.T) {
	m := NewManager()

	if err := m.Register(NoopService{ServiceName: "items"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := m.Register(NoopService{ServiceName: "items"}); err == nil {
		t.Fatal("duplicate Register() should fail")
	}
	if err := m.Register(NoopService{}); err == nil {
		t.Fatal("Register() with empty name should fail")
	}
	if got := m.Status("items"); got != StatusRegistered {
		t.Errorf("Status(items) = %v, want registered", got)
	}
}

func TestManager_StartStopOrder(t *testing.T) {
	m := NewManager()
	var order []string

	a := &fakeService{name: "a", order: &order}
	b := &fakeService{name: "b", order: &order}
	for _, svc := range []Service{a, b} {
		if err := m.Register(svc); err != nil {
			t.Fatalf("Register(%s) error = %v", svc.Name(), err)
		}
	}

	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !m.Healthy() {
		t.Error("Healthy() = false after successful start")
	}
	if err := m.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	want := []string{"start:a", "start:b", "stop:b", "stop:a"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, order[i], want[i])
		}
	}
	if got := m.Status("a"); got != StatusStopped {
		t.Errorf("Status(a) = %v, want stopped", got)
	}
}

func TestManager_StartFailureAborts(t *testing.T) {
	m := NewManager()

	good := &fakeService{name: "good"}
	bad := &fakeService{name: "bad", startErr: errors.New("boom")}
	later := &fakeService{name: "later"}
	for _, svc := range []Service{good, bad, later} {
		if err := m.Register(svc); err != nil {
			t.Fatalf("Register(%s) error = %v", svc.Name(), err)
		}
	}

	ctx := context.Background()
	if err := m.Start(ctx); err == nil {
		t.Fatal("Start() should return the failing service's error")
	}

	if later.started != 0 {
		t.Error("services after the failure should not start")
	}
	if got := m.Status("bad"); got != StatusFailed {
		t.Errorf("Status(bad) = %v, want failed", got)
	}
	if got := m.Status("good"); got != StatusRunning {
		t.Errorf("Status(good) = %v, want running", got)
	}

	// Stop cleans up only the services that made it to running.
	if err := m.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if good.stopped != 1 {
		t.Errorf("good stopped %d times, want 1", good.stopped)
	}
	if later.stopped != 0 {
		t.Error("never-started service should not be stopped")
	}
}

func TestManager_StopCollectsErrors(t *testing.T) {
	m := NewManager()

	failing := &fakeService{name: "failing", stopErr: errors.New("stop boom")}
	fine := &fakeService{name: "fine"}
	for _, svc := range []Service{fine, failing} {
		if err := m.Register(svc); err != nil {
			t.Fatalf("Register(%s) error = %v", svc.Name(), err)
		}
	}

	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	err := m.Stop(ctx)
	if err == nil {
		t.Fatal("Stop() should surface the failing stop")
	}
	if fine.stopped != 1 {
		t.Error("remaining services must still stop after a failure")
	}
}

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusRegistered, "registered"},
		{StatusStarting, "starting"},
		{StatusRunning, "running"},
		{StatusStopping, "stopping"},
		{StatusStopped, "stopped"},
		{StatusFailed, "failed"},
		{Status(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("String(%d) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestStatus_JSONRoundTrip(t *testing.T) {
	data, err := StatusRunning.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}
	if string(data) != `"running"` {
		t.Errorf("MarshalJSON() = %s, want \"running\"", data)
	}

	var s Status
	if err := s.UnmarshalJSON(data); err != nil {
		t.Fatalf("UnmarshalJSON() error = %v", err)
	}
	if s != StatusRunning {
		t.Errorf("round trip = %v, want running", s)
	}

	if err := s.UnmarshalJSON([]byte(`"bogus"`)); err == nil {
		t.Error("UnmarshalJSON should reject unknown statuses")
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusRegistered, StatusStarting, true},
		{StatusStarting, StatusRunning, true},
		{StatusRunning, StatusStopping, true},
		{StatusStopping, StatusStopped, true},
		{StatusStopped, StatusStarting, true},
		{StatusFailed, StatusStarting, true},
		{StatusRegistered, StatusRunning, false},
		{StatusStopped, StatusStopping, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%v, %v) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestTransitionError_Message(t *testing.T) {
	err := &TransitionError{Service: "items", From: StatusStopped, To: StatusStopping}
	want := "service items: invalid state transition: stopped -> stopping"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
