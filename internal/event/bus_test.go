package event

import (
	"testing"
	"time"
)

// ----------------------------------------------------------------------------
// Publish / Subscribe Tests
// ----------------------------------------------------------------------------

func TestBus_PublishReachesAllSubscribers(t *testing.T) {
	bus := NewBus(4)
	defer bus.Close()

	ch1, unsub1, err := bus.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer unsub1()

	ch2, unsub2, err := bus.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer unsub2()

	if err := bus.Publish(Event{Type: TypeDatasetCreated, DatasetID: "ds-1"}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case evt := <-ch:
			if evt.Type != TypeDatasetCreated {
				t.Errorf("subscriber %d got type %q, want %q", i, evt.Type, TypeDatasetCreated)
			}
			if evt.DatasetID != "ds-1" {
				t.Errorf("subscriber %d got dataset %q, want ds-1", i, evt.DatasetID)
			}
			if evt.Timestamp.IsZero() {
				t.Errorf("subscriber %d got zero timestamp", i)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d never received the event", i)
		}
	}
}

func TestBus_SlowSubscriberDoesNotBlockPublish(t *testing.T) {
	bus := NewBus(1)
	defer bus.Close()

	_, unsub, err := bus.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer unsub()

	// Nobody drains the channel; the second publish must drop, not hang.
	done := make(chan struct{})
	go func() {
		defer close(done)
		bus.Publish(Event{Type: TypeDatasetCreated})
		bus.Publish(Event{Type: TypeDatasetCleared})
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
}

func TestBus_UnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus(4)
	defer bus.Close()

	ch, unsub, err := bus.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	unsub()
	unsub() // second call must be a no-op

	if _, open := <-ch; open {
		t.Error("channel should be closed after unsubscribe")
	}
	if got := bus.SubscriberCount(); got != 0 {
		t.Errorf("SubscriberCount() = %d, want 0", got)
	}
}

// ----------------------------------------------------------------------------
// Close Tests
// ----------------------------------------------------------------------------

func TestBus_CloseReleasesSubscribers(t *testing.T) {
	bus := NewBus(4)

	ch, _, err := bus.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	bus.Close()
	bus.Close() // idempotent

	if _, open := <-ch; open {
		t.Error("channel should be closed after bus Close")
	}
	if err := bus.Publish(Event{Type: TypeDatasetCreated}); err != ErrBusClosed {
		t.Errorf("Publish() after Close error = %v, want ErrBusClosed", err)
	}
	if _, _, err := bus.Subscribe(); err != ErrBusClosed {
		t.Errorf("Subscribe() after Close error = %v, want ErrBusClosed", err)
	}
}
