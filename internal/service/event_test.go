package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func datasetEvent(checksum string) Event {
	return Event{
		Type:   EventTypeDatasetLoaded,
		Source: "loader",
		Data:   map[string]interface{}{"checksum": checksum},
	}
}

func TestNewEventBus(t *testing.T) {
	if NewEventBus(100) == nil {
		t.Fatal("NewEventBus returned nil")
	}

	bus := NewEventBus(0)
	if bus.bufferSize != 100 {
		t.Errorf("Expected default buffer 100, got %d", bus.bufferSize)
	}
}

func TestEventBus_Subscribe(t *testing.T) {
	bus := NewEventBus(10)

	ch := bus.Subscribe(EventTypeDatasetLoaded)
	bus.Publish(datasetEvent("abc"))

	select {
	case received := <-ch:
		if received.Type != EventTypeDatasetLoaded {
			t.Errorf("Expected event type %s, got %s", EventTypeDatasetLoaded, received.Type)
		}
		if received.Source != "loader" {
			t.Errorf("Expected source 'loader', got %s", received.Source)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("Event not received within timeout")
	}
}

func TestEventBus_Subscribe_OtherTypeNotDelivered(t *testing.T) {
	bus := NewEventBus(10)

	ch := bus.Subscribe(EventTypeViewSaved)
	bus.Publish(datasetEvent("abc"))

	select {
	case event := <-ch:
		t.Fatalf("Unexpected event %s", event.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEventBus_SubscribeAll(t *testing.T) {
	bus := NewEventBus(10)

	// No per-type subscribers exist; SubscribeAll must still see everything.
	ch := bus.SubscribeAll()

	bus.Publish(datasetEvent("abc"))
	bus.Publish(Event{Type: EventTypeConfigReloaded, Source: "config"})
	bus.Publish(Event{Type: EventTypeViewDeleted, Source: "state"})

	var got []EventType
	timeout := time.After(1 * time.Second)
	for len(got) < 3 {
		select {
		case event := <-ch:
			got = append(got, event.Type)
		case <-timeout:
			t.Fatalf("Expected 3 events, received %d", len(got))
		}
	}

	want := []EventType{EventTypeDatasetLoaded, EventTypeConfigReloaded, EventTypeViewDeleted}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Event %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestEventBus_Publish(t *testing.T) {
	bus := NewEventBus(10)

	ch1 := bus.Subscribe(EventTypeDatasetLoaded)
	ch2 := bus.Subscribe(EventTypeDatasetLoaded)

	bus.Publish(datasetEvent("abc"))

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case received := <-ch:
			if received.Data["checksum"] != "abc" {
				t.Errorf("Channel %d: expected checksum abc, got %v", i+1, received.Data["checksum"])
			}
		case <-time.After(1 * time.Second):
			t.Fatalf("Event not received on channel %d", i+1)
		}
	}
}

func TestEventBus_Publish_Timestamp(t *testing.T) {
	bus := NewEventBus(10)
	ch := bus.Subscribe(EventTypeDatasetLoaded)

	beforePublish := time.Now()
	bus.Publish(datasetEvent("abc"))
	afterPublish := time.Now()

	select {
	case received := <-ch:
		if received.Timestamp.Before(beforePublish) || received.Timestamp.After(afterPublish) {
			t.Error("Event timestamp should be between before and after publish time")
		}
	case <-time.After(1 * time.Second):
		t.Fatal("Event not received")
	}

	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	event := datasetEvent("abc")
	event.Timestamp = fixed
	bus.Publish(event)

	select {
	case received := <-ch:
		if !received.Timestamp.Equal(fixed) {
			t.Errorf("Explicit timestamp should be kept, got %v", received.Timestamp)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("Event not received")
	}
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus(10)

	ch := bus.Subscribe(EventTypeDatasetLoaded)
	bus.Unsubscribe(EventTypeDatasetLoaded, ch)

	bus.Publish(datasetEvent("abc"))

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("Should not receive event after unsubscribe")
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("Channel should be closed after unsubscribe")
	}

	all := bus.SubscribeAll()
	bus.Unsubscribe("", all)
	if _, ok := <-all; ok {
		t.Error("SubscribeAll channel should be closed after unsubscribe")
	}
}

func TestEventBus_Close(t *testing.T) {
	bus := NewEventBus(10)

	channels := []<-chan Event{
		bus.Subscribe(EventTypeDatasetLoaded),
		bus.Subscribe(EventTypeServiceStarted),
		bus.SubscribeAll(),
	}

	bus.Close()

	for i, ch := range channels {
		select {
		case _, ok := <-ch:
			if ok {
				t.Errorf("Channel %d should be closed", i)
			}
		default:
			t.Errorf("Channel %d should be closed", i)
		}
	}
}

func TestEventBus_SubscribeWithHandler(t *testing.T) {
	bus := NewEventBus(10)

	var mu sync.Mutex
	var received []Event
	handler := func(ctx context.Context, event Event) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, event)
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus.SubscribeWithHandler(ctx, EventTypeDatasetLoaded, handler)

	bus.Publish(datasetEvent("first"))
	bus.Publish(datasetEvent("second"))

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(received))
	}
	if received[0].Data["checksum"] != "first" || received[1].Data["checksum"] != "second" {
		t.Errorf("Events delivered out of order: %v, %v", received[0].Data, received[1].Data)
	}
}

func TestEventBus_SubscribeWithHandler_ErrorHandler(t *testing.T) {
	bus := NewEventBus(10)

	failures := make(chan error, 1)
	bus.SetErrorHandler(func(event Event, err error) {
		failures <- err
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	boom := errors.New("disk full")
	bus.SubscribeWithHandler(ctx, EventTypeDatasetLoaded, func(ctx context.Context, event Event) error {
		return boom
	})

	bus.Publish(datasetEvent("abc"))

	select {
	case err := <-failures:
		if !errors.Is(err, boom) {
			t.Errorf("Expected handler error, got %v", err)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("Error handler not called")
	}
}

func TestEventBus_Publish_NonBlocking(t *testing.T) {
	bus := NewEventBus(1)

	ch := bus.Subscribe(EventTypeDatasetLoaded)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 3; i++ {
			bus.Publish(datasetEvent("abc"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}

	if len(ch) != 1 {
		t.Errorf("Expected exactly one buffered event, got %d", len(ch))
	}
}
