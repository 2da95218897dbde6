package events

import (
	"sync"
	"time"
)

// Bus is a minimal in-process pub-sub fanout for EventWithData envelopes.
// Subscribers receive every event published after they subscribe; a slow
// subscriber's buffered channel filling up causes events to be dropped for
// that subscriber rather than blocking the publisher — the bus is a
// best-effort observability feed (cmd/monitor, health snapshots), never a
// path correctness depends on.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[int]chan EventWithData
	nextID      int
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[int]chan EventWithData)}
}

// Subscribe registers a new subscriber with the given channel buffer size
// and returns the channel plus an unsubscribe function.
func (b *Bus) Subscribe(bufferSize int) (<-chan EventWithData, func()) {
	if bufferSize <= 0 {
		bufferSize = 16
	}
	ch := make(chan EventWithData, bufferSize)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subscribers[id] = ch
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(sub)
		}
	}
	return ch, unsubscribe
}

// Emit publishes a typed event with the given component tag, stamping the
// current time.
func (b *Bus) Emit(component string, data EventData) {
	env := EventWithData{
		Type:      data.EventType(),
		Timestamp: time.Now(),
		Component: component,
		Data:      data,
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subscribers {
		select {
		case sub <- env:
		default:
			// Subscriber buffer full; drop rather than block the publisher.
		}
	}
}

// SubscriberCount returns the number of active subscribers, used by health
// reporting.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
