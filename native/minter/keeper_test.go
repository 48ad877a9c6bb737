package minter

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewKeeperValidation(t *testing.T) {
	tick := func(context.Context) error { return nil }
	if _, err := NewKeeper(0, tick, nil); err == nil {
		t.Fatalf("expected zero interval to be rejected")
	}
	if _, err := NewKeeper(time.Second, nil, nil); err == nil {
		t.Fatalf("expected nil tick to be rejected")
	}
}

func TestKeeperTicksUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var ticks atomic.Int32
	keeper, err := NewKeeper(time.Millisecond, func(context.Context) error {
		if ticks.Add(1) == 3 {
			cancel()
		}
		// Failures are logged and do not stop the loop.
		return errors.New("transient")
	}, nil)
	if err != nil {
		t.Fatalf("new keeper: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- keeper.Run(ctx) }()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("keeper did not stop")
	}
	if ticks.Load() < 3 {
		t.Fatalf("expected at least 3 ticks, got %d", ticks.Load())
	}
}
