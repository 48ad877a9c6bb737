package minter

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// TickFunc advances emissions for every channel the keeper is responsible for.
type TickFunc func(ctx context.Context) error

// Keeper polls UpdatePeriod on a fixed interval. UpdatePeriod is open to
// anyone, so the keeper is a convenience rather than a privileged actor.
type Keeper struct {
	interval time.Duration
	tick     TickFunc
	logger   *slog.Logger
}

// NewKeeper constructs a keeper that invokes tick every interval.
func NewKeeper(interval time.Duration, tick TickFunc, logger *slog.Logger) (*Keeper, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("minter keeper: interval must be positive")
	}
	if tick == nil {
		return nil, fmt.Errorf("minter keeper: tick function required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Keeper{interval: interval, tick: tick, logger: logger}, nil
}

// Run blocks, ticking until the context is cancelled.
func (k *Keeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()
	k.logger.Info("emission keeper started", slog.Duration("interval", k.interval))
	for {
		if err := k.tick(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			k.logger.Warn("emission keeper tick failed", slog.Any("error", err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
