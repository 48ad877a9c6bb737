// Package host is the execution environment every channel operation runs in.
// It gives operations a single total order and makes each one atomic: state
// writes and events are committed together or dropped together.
package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"contentchain/core/events"
	"contentchain/core/state"
	"contentchain/observability"
)

var (
	ErrModulePaused = errors.New("host: module paused")
	ErrNilOperation = errors.New("host: operation required")

	// ErrOperationPanicked wraps a panic raised inside an operation. The
	// operation's writes and events are dropped as for any other failure.
	ErrOperationPanicked = errors.New("host: operation panicked")
)

// Host serialises operations over one state manager.
type Host struct {
	mu     sync.Mutex
	state  *state.Manager
	buffer *events.Buffer
	sink   events.Emitter
	logger *slog.Logger
	tracer trace.Tracer
	nowFn  func() int64
	paused map[string]bool
}

// Option customises a Host.
type Option func(*Host)

// WithLogger sets the logger used for operation outcomes.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Host) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithSink sets the emitter that receives events after a successful commit.
func WithSink(sink events.Emitter) Option {
	return func(h *Host) {
		if sink != nil {
			h.sink = sink
		}
	}
}

// WithClock overrides the host clock.
func WithClock(now func() int64) Option {
	return func(h *Host) {
		if now != nil {
			h.nowFn = now
		}
	}
}

// WithPaused marks modules whose operations are rejected.
func WithPaused(modules ...string) Option {
	return func(h *Host) {
		for _, module := range modules {
			if module = strings.TrimSpace(module); module != "" {
				h.paused[module] = true
			}
		}
	}
}

// New constructs a host over st.
func New(st *state.Manager, opts ...Option) *Host {
	h := &Host{
		state:  st,
		buffer: &events.Buffer{},
		sink:   events.NoopEmitter{},
		logger: slog.Default(),
		tracer: otel.Tracer("contentchain/core/host"),
		nowFn:  func() int64 { return time.Now().Unix() },
		paused: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// State exposes the managed state so engines can be wired to it. Engines
// must only touch it from inside Execute or View.
func (h *Host) State() *state.Manager { return h.state }

// Emitter is the buffered emitter engines should publish to.
func (h *Host) Emitter() events.Emitter { return h.buffer }

// Now returns the host clock in unix seconds.
func (h *Host) Now() int64 { return h.nowFn() }

// IsPaused reports whether module is paused.
func (h *Host) IsPaused(module string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.paused[module]
}

// SetPaused pauses or resumes module.
func (h *Host) SetPaused(module string, paused bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if paused {
		h.paused[module] = true
		return
	}
	delete(h.paused, module)
}

func moduleOf(op string) string {
	module, _, _ := strings.Cut(op, ".")
	return module
}

// Execute runs fn as one atomic operation named op ("module.action"). When fn
// returns an error or panics every state write and event it produced is
// dropped. On success state is committed and the buffered events are handed
// to the sink.
func (h *Host) Execute(ctx context.Context, op string, fn func() error) error {
	if fn == nil {
		return ErrNilOperation
	}
	if ctx == nil {
		ctx = context.Background()
	}
	_, span := h.tracer.Start(ctx, op, trace.WithAttributes(attribute.String("channel.op", op)))
	defer span.End()

	started := time.Now()
	committed, err := h.execute(op, fn)

	observability.Operations().Observe(op, err, time.Since(started))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.logger.Warn("operation rejected", "op", op, "error", err)
		return err
	}
	span.SetAttributes(attribute.Int("channel.events", len(committed)))
	h.logger.Debug("operation committed", "op", op, "events", len(committed))
	for _, evt := range committed {
		observability.Events().Record(evt.EventType())
	}
	return nil
}

func (h *Host) execute(op string, fn func() error) ([]events.Event, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	committed, err := h.run(op, fn)
	// The sink sees events in commit order.
	for _, evt := range committed {
		h.sink.Emit(evt)
	}
	return committed, err
}

func (h *Host) run(op string, fn func() error) (committed []events.Event, err error) {
	if h.paused[moduleOf(op)] {
		return nil, ErrModulePaused
	}
	stateSnap := h.state.Snapshot()
	eventSnap := h.buffer.Snapshot()
	defer func() {
		if r := recover(); r != nil {
			h.state.RevertToSnapshot(stateSnap)
			h.buffer.Revert(eventSnap)
			committed = nil
			err = fmt.Errorf("%w: %s: %v", ErrOperationPanicked, op, r)
		}
	}()
	if err := fn(); err != nil {
		h.state.RevertToSnapshot(stateSnap)
		h.buffer.Revert(eventSnap)
		return nil, err
	}
	if err := h.state.Commit(); err != nil {
		h.state.Discard()
		h.buffer.Drain()
		return nil, err
	}
	return h.buffer.Drain(), nil
}

// View runs a read-only fn in the total order. Any writes it makes are
// discarded.
func (h *Host) View(fn func() error) error {
	if fn == nil {
		return ErrNilOperation
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	stateSnap := h.state.Snapshot()
	eventSnap := h.buffer.Snapshot()
	defer func() {
		h.state.RevertToSnapshot(stateSnap)
		h.buffer.Revert(eventSnap)
	}()
	return fn()
}
