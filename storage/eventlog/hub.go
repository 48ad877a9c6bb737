package eventlog

import (
	"context"
	"sync"

	"contentchain/observability"
)

const subscriberBuffer = 64

// Hub fans appended records out to live subscribers. Slow subscribers miss
// records rather than stalling appends. A subscriber sees the miss as a gap
// in sequence numbers and catches up with Query.
type Hub struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]chan Record
	closed bool
}

func newHub() *Hub {
	return &Hub{subs: make(map[uint64]chan Record)}
}

// Subscribe registers a subscriber. The returned cancel func is idempotent
// and also runs when ctx ends.
func (h *Hub) Subscribe(ctx context.Context) (<-chan Record, func()) {
	updates := make(chan Record, subscriberBuffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(updates)
		return updates, func() {}
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = updates
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if sub, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(sub)
			}
			h.mu.Unlock()
		})
	}
	if ctx != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}
	return updates, cancel
}

// Subscribers reports the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) publish(rec Record) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- rec:
		default:
			observability.Events().RecordStreamDrop()
		}
	}
}

func (h *Hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
