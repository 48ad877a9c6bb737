package events

import (
	"sync"

	"contentchain/core/types"
)

// Event represents a structured state change emitted by a channel component.
type Event interface {
	EventType() string
}

// Payload is implemented by events that can render themselves into the
// attribute form consumed by the event log and RPC subscribers.
type Payload interface {
	Event
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(Event)

// Emit implements the Emitter interface.
func (f EmitterFunc) Emit(evt Event) {
	if f != nil {
		f(evt)
	}
}

// Multi fans a single event out to several emitters in order.
type Multi []Emitter

// Emit implements the Emitter interface.
func (m Multi) Emit(evt Event) {
	for _, emitter := range m {
		if emitter != nil {
			emitter.Emit(evt)
		}
	}
}

// Render converts an event into its attribute form. Events that do not
// implement Payload are rendered with their type only.
func Render(evt Event) *types.Event {
	if evt == nil {
		return nil
	}
	if payload, ok := evt.(Payload); ok {
		if rendered := payload.Event(); rendered != nil {
			return rendered
		}
	}
	return &types.Event{Type: evt.EventType(), Attributes: map[string]string{}}
}

// Buffer collects events emitted during an operation so they can be dropped
// when the operation reverts. Snapshot ids are positions in the pending list.
type Buffer struct {
	mu      sync.Mutex
	pending []Event
}

// Emit implements the Emitter interface.
func (b *Buffer) Emit(evt Event) {
	if evt == nil {
		return
	}
	b.mu.Lock()
	b.pending = append(b.pending, evt)
	b.mu.Unlock()
}

// Snapshot marks the current position in the buffer.
func (b *Buffer) Snapshot() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Revert discards every event emitted after the supplied snapshot.
func (b *Buffer) Revert(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if id < 0 {
		id = 0
	}
	if id < len(b.pending) {
		for i := id; i < len(b.pending); i++ {
			b.pending[i] = nil
		}
		b.pending = b.pending[:id]
	}
}

// Drain returns all buffered events and resets the buffer.
func (b *Buffer) Drain() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.pending
	b.pending = nil
	return out
}

// Len reports the number of buffered events.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
