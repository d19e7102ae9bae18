// Package event provides an in-process publish/subscribe bus for dataset
// lifecycle notifications. Components publish events as datasets are
// created, cleared, or analyzed; subscribers (such as the SSE event stream)
// receive them on buffered channels.
package event

import (
	"errors"
	"sync"
	"time"
)

var ErrBusClosed = errors.New("event bus is closed")

// Event types published on the bus.
const (
	TypeDatasetCreated    = "dataset.created"
	TypeDatasetCleared    = "dataset.cleared"
	TypeIngestFailed      = "ingest.failed"
	TypeAnalysisStarted   = "analysis.started"
	TypeAnalysisCompleted = "analysis.completed"
	TypeAnalysisFailed    = "analysis.failed"
)

// Event is a single lifecycle notification.
type Event struct {
	Type      string         `json:"type"`
	DatasetID string         `json:"dataset_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Bus fans events out to all current subscribers. Delivery is best-effort:
// a subscriber that is not draining its channel misses events rather than
// blocking the publisher.
type Bus struct {
	mu          sync.Mutex
	closed      bool
	nextID      int
	subscribers map[int]chan Event
	buffer      int
}

// NewBus creates a bus whose subscriber channels hold up to buffer events.
func NewBus(buffer int) *Bus {
	if buffer < 1 {
		buffer = 1
	}

	return &Bus{
		subscribers: make(map[int]chan Event),
		buffer:      buffer,
	}
}

// Publish delivers the event to every subscriber. The event timestamp is
// set if the caller left it zero.
func (b *Bus) Publish(evt Event) error {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}

	for _, ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
			// Subscriber is slow, skip this event
		}
	}

	return nil
}

// Subscribe registers a new subscriber and returns its channel along with
// an unsubscribe function. The channel is closed on unsubscribe or when
// the bus shuts down. Unsubscribing twice is safe.
func (b *Bus) Subscribe() (<-chan Event, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, nil, ErrBusClosed
	}

	id := b.nextID
	b.nextID++

	ch := make(chan Event, b.buffer)
	b.subscribers[id] = ch

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		if sub, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(sub)
		}
	}

	return ch, unsubscribe, nil
}

// SubscriberCount reports how many subscribers are currently registered.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.subscribers)
}

// Close shuts the bus down and closes every subscriber channel. Further
// publishes and subscribes fail with ErrBusClosed. Close is idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true
	for id, ch := range b.subscribers {
		delete(b.subscribers, id)
		close(ch)
	}
}
