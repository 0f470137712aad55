package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/slopezpereyra/icf-visualization-app/internal/logger"
)

func TestNewManager(t *testing.T) {
	mgr := NewManager(logger.NewNopLogger())

	if mgr == nil {
		t.Fatal("NewManager returned nil")
	}

	if mgr.GetServiceCount() != 0 {
		t.Errorf("Expected 0 services, got %d", mgr.GetServiceCount())
	}

	if mgr.GetEventBus() == nil {
		t.Error("Event bus should be initialized")
	}
}

func TestManager_Register(t *testing.T) {
	mgr := NewManager(logger.NewNopLogger())

	mgr.Register(&mockService{name: "state"})

	if mgr.GetServiceCount() != 1 {
		t.Errorf("Expected 1 service, got %d", mgr.GetServiceCount())
	}

	status := mgr.GetServiceStatus("state")
	if status == nil {
		t.Fatal("Service status should be created")
	}

	if status.GetStatus() != StatusStopped {
		t.Errorf("Expected status %s, got %s", StatusStopped, status.GetStatus())
	}
}

func TestManager_Register_WithEvents(t *testing.T) {
	mgr := NewManager(logger.NewNopLogger())

	svc := &mockServiceWithEvents{name: "event-service"}
	mgr.Register(svc)

	if svc.eventBus != mgr.GetEventBus() {
		t.Error("Event bus should be set for service with events")
	}
}

func TestManager_Start(t *testing.T) {
	mgr := NewManager(logger.NewNopLogger())

	svc := &mockService{name: "web"}
	mgr.Register(svc)

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := mgr.GetServiceStatus("web")
	if !status.IsRunning() {
		t.Errorf("Expected status %s, got %s", StatusRunning, status.GetStatus())
	}
	if !svc.isStarted() {
		t.Error("Service Start should have been called")
	}
}

func TestManager_Start_ServiceError(t *testing.T) {
	mgr := NewManager(logger.NewNopLogger())

	failing := &mockService{name: "failing-service", startError: errors.New("bind: address in use")}
	healthy := &mockService{name: "healthy-service"}
	mgr.Register(failing)
	mgr.Register(healthy)

	errCh := mgr.GetEventBus().Subscribe(EventTypeServiceError)

	err := mgr.Start(context.Background())
	if err == nil {
		t.Fatal("Start should report the failing service")
	}
	if !errors.Is(err, failing.startError) {
		t.Errorf("Expected wrapped start error, got %v", err)
	}

	status := mgr.GetServiceStatus("failing-service")
	if status.GetStatus() != StatusError {
		t.Errorf("Expected status %s, got %s", StatusError, status.GetStatus())
	}
	if status.GetError() == nil {
		t.Error("Service should have an error")
	}

	if !mgr.GetServiceStatus("healthy-service").IsRunning() {
		t.Error("Later services should still start")
	}

	select {
	case event := <-errCh:
		if event.Source != "failing-service" {
			t.Errorf("Expected error event from failing-service, got %s", event.Source)
		}
	case <-time.After(time.Second):
		t.Fatal("Service error event not published")
	}
}

func TestManager_Shutdown(t *testing.T) {
	mgr := NewManager(logger.NewNopLogger())

	svc1 := &mockService{name: "service-1"}
	svc2 := &mockService{name: "service-2"}
	mgr.Register(svc1)
	mgr.Register(svc2)

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := mgr.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	for _, name := range []string{"service-1", "service-2"} {
		if got := mgr.GetServiceStatus(name).GetStatus(); got != StatusStopped {
			t.Errorf("%s should be stopped, got %s", name, got)
		}
	}

	if !svc1.isStopped() || !svc2.isStopped() {
		t.Error("Both services should have been stopped")
	}
}

func TestManager_Shutdown_ReverseOrder(t *testing.T) {
	mgr := NewManager(logger.NewNopLogger())

	var stopOrder []string
	for _, name := range []string{"state", "web", "health"} {
		name := name
		mgr.Register(&mockService{
			name:   name,
			onStop: func() { stopOrder = append(stopOrder, name) },
		})
	}

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := mgr.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	want := []string{"health", "web", "state"}
	if len(stopOrder) != len(want) {
		t.Fatalf("Expected %d services stopped, got %d", len(want), len(stopOrder))
	}
	for i := range want {
		if stopOrder[i] != want[i] {
			t.Errorf("Stop %d: expected %s, got %s", i, want[i], stopOrder[i])
		}
	}
}

func TestManager_Shutdown_Timeout(t *testing.T) {
	mgr := NewManager(logger.NewNopLogger())

	mgr.Register(&mockService{name: "slow-service", stopDelay: 2 * time.Second})

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if err := mgr.Shutdown(shutdownCtx); err == nil {
		t.Error("Shutdown should timeout and return error")
	}
}

func TestManager_GetAllStatuses(t *testing.T) {
	mgr := NewManager(logger.NewNopLogger())

	mgr.Register(&mockService{name: "service-1"})
	mgr.Register(&mockService{name: "service-2"})

	statuses := mgr.GetAllStatuses()
	if len(statuses) != 2 {
		t.Errorf("Expected 2 statuses, got %d", len(statuses))
	}

	if statuses["service-1"] == nil || statuses["service-2"] == nil {
		t.Error("Status for every registered service should exist")
	}
}

func TestServiceBase_PublishEvent(t *testing.T) {
	base := NewServiceBase("state", logger.NewNopLogger())

	// No bus yet: must not panic.
	base.PublishEvent(EventTypeViewSaved, nil)

	bus := NewEventBus(10)
	base.SetEventBus(bus)
	if base.GetEventBus() != bus {
		t.Fatal("GetEventBus should return the bus that was set")
	}
	ch := bus.Subscribe(EventTypeViewSaved)

	base.PublishEvent(EventTypeViewSaved, map[string]interface{}{"name": "mdd-only"})

	select {
	case event := <-ch:
		if event.Source != "state" {
			t.Errorf("Expected source 'state', got %s", event.Source)
		}
		if event.Data["name"] != "mdd-only" {
			t.Errorf("Expected name 'mdd-only', got %v", event.Data["name"])
		}
	case <-time.After(time.Second):
		t.Fatal("Event not received")
	}

	if base.Name() != "state" || base.GetStatus().Name != "state" {
		t.Error("Name and status should carry the service name")
	}
}

type mockService struct {
	name       string
	startError error
	stopDelay  time.Duration
	onStop     func()

	mu      sync.Mutex
	started bool
	stopped bool
}

func (m *mockService) Name() string {
	return m.name
}

func (m *mockService) Start(ctx context.Context) error {
	if m.startError != nil {
		return m.startError
	}
	m.mu.Lock()
	m.started = true
	m.mu.Unlock()
	return nil
}

func (m *mockService) Stop(ctx context.Context) error {
	if m.stopDelay > 0 {
		time.Sleep(m.stopDelay)
	}
	if m.onStop != nil {
		m.onStop()
	}
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()
	return nil
}

func (m *mockService) isStarted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

func (m *mockService) isStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

type mockServiceWithEvents struct {
	name     string
	eventBus *EventBus
}

func (m *mockServiceWithEvents) Name() string {
	return m.name
}

func (m *mockServiceWithEvents) Start(ctx context.Context) error {
	return nil
}

func (m *mockServiceWithEvents) Stop(ctx context.Context) error {
	return nil
}

func (m *mockServiceWithEvents) SetEventBus(bus *EventBus) {
	m.eventBus = bus
}
