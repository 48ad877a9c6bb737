package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"contentchain/config"
	"contentchain/core/host"
	"contentchain/core/state"
	"contentchain/native/bank"
	"contentchain/native/registry"
	"contentchain/rpc"
	"contentchain/storage"
	"contentchain/storage/eventlog"
)

// node owns every long-lived component of a running channeld process.
type node struct {
	cfg      config.Config
	logger   *slog.Logger
	db       storage.Database
	events   *eventlog.Log
	host     *host.Host
	ledger   *bank.Ledger
	registry *registry.Registry
	server   *rpc.Server
}

func newNode(ctx context.Context, cfg config.Config, logger *slog.Logger) (*node, error) {
	n := &node{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			_ = n.close()
		}
	}()

	db, err := storage.Open(cfg.State.Backend, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open state: %w", err)
	}
	n.db = db

	if cfg.EventLog.Driver == eventlog.DriverSQLite && cfg.State.Backend != storage.BackendMemory {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	n.events, err = eventlog.Open(cfg.EventLog.Driver, cfg.EventLog.DSN)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	n.events.SetLogger(logger.With("component", "eventlog"))
	if err := n.events.Verify(ctx); err != nil {
		return nil, fmt.Errorf("verify event log: %w", err)
	}

	n.host = host.New(state.NewManager(db),
		host.WithLogger(logger.With("component", "host")),
		host.WithSink(n.events),
		host.WithPaused(cfg.Paused...),
	)

	n.ledger = bank.NewLedger()
	n.ledger.SetState(n.host.State())
	n.ledger.SetEmitter(n.host.Emitter())
	if err := n.genesis(ctx); err != nil {
		return nil, err
	}

	addr, regCfg, err := cfg.Registry.Resolve()
	if err != nil {
		return nil, err
	}
	n.registry = registry.New(addr, regCfg)
	n.registry.SetState(n.host.State())
	n.registry.SetBank(n.ledger)
	n.registry.SetEmitter(n.host.Emitter())
	n.registry.SetNowFunc(n.host.Now)
	if err := n.host.View(n.registry.Load); err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}
	if err := n.launchConfigured(ctx); err != nil {
		return nil, err
	}

	n.server, err = rpc.New(rpc.Config{
		Host:     n.host,
		Registry: n.registry,
		Bank:     n.ledger,
		Events:   n.events,
		Auth: rpc.AuthConfig{
			Secret: cfg.Auth.JWTSecret,
			Issuer: cfg.Auth.Issuer,
		},
		RateLimit: rpc.RateLimit{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		},
		Logger: logger.With("component", "rpc"),
	})
	if err != nil {
		return nil, err
	}
	ok = true
	return n, nil
}

// genesis registers configured tokens and seeds their balances. Tokens that
// already exist in state were seeded by an earlier boot and are left alone.
func (n *node) genesis(ctx context.Context) error {
	for _, tc := range n.cfg.Tokens {
		meta, balances, err := tc.Token()
		if err != nil {
			return err
		}
		err = n.host.Execute(ctx, "bank.genesis", func() error {
			if err := n.ledger.RegisterToken(meta); err != nil {
				return err
			}
			holders := make([]common.Address, 0, len(balances))
			for holder := range balances {
				holders = append(holders, holder)
			}
			// Sorted so the emitted mint events are reproducible.
			sort.Slice(holders, func(i, j int) bool {
				return bytes.Compare(holders[i].Bytes(), holders[j].Bytes()) < 0
			})
			for _, holder := range holders {
				if err := n.ledger.Mint(meta.MintAuthority, meta.Address, holder, balances[holder]); err != nil {
					return fmt.Errorf("seed %s: %w", meta.Symbol, err)
				}
			}
			return nil
		})
		if errors.Is(err, bank.ErrTokenExists) {
			n.logger.Debug("genesis token already registered", "symbol", meta.Symbol, "address", meta.Address.Hex())
			continue
		}
		if err != nil {
			return fmt.Errorf("genesis: %w", err)
		}
		n.logger.Info("genesis token registered", "symbol", meta.Symbol, "address", meta.Address.Hex(), "holders", len(balances))
	}
	return nil
}

// launchConfigured launches the configured channels on a registry that has
// none yet.
func (n *node) launchConfigured(ctx context.Context) error {
	if len(n.registry.Channels()) > 0 || len(n.cfg.Channels) == 0 {
		return nil
	}
	for _, cc := range n.cfg.Channels {
		params, err := cc.LaunchParams()
		if err != nil {
			return err
		}
		ch, err := n.registry.LaunchIn(ctx, n.host, params)
		if err != nil {
			return fmt.Errorf("launch %s: %w", params.TokenSymbol, err)
		}
		n.logger.Info("channel launched", "symbol", ch.Record.Symbol, "content", ch.Record.Content.Hex(), "id", ch.Record.ID)
	}
	return nil
}

// advanceEmissions runs one UpdatePeriod per channel, each as its own
// operation so one failing channel does not hold back the others.
func (n *node) advanceEmissions(ctx context.Context) error {
	var errs []error
	for _, ch := range n.registry.Channels() {
		ch := ch
		err := n.host.Execute(ctx, "minter.update", func() error {
			minted, err := ch.Minter.UpdatePeriod()
			if err != nil {
				return err
			}
			if minted != nil && minted.Sign() > 0 {
				n.logger.Info("emission minted", "symbol", ch.Record.Symbol, "amount", minted.String())
			}
			return nil
		})
		if errors.Is(err, host.ErrModulePaused) {
			return nil
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ch.Record.Symbol, err))
		}
	}
	return errors.Join(errs...)
}

// exportEvents writes records appended since the last export to dir.
func (n *node) exportEvents(ctx context.Context, dir string) (eventlog.Export, error) {
	after, err := lastExported(dir)
	if err != nil {
		return eventlog.Export{}, err
	}
	return n.events.ExportParquet(ctx, dir, after)
}

// lastExported returns the highest sequence number covered by an export
// file in dir.
func lastExported(dir string) (uint64, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "events-*-*.parquet"))
	if err != nil {
		return 0, err
	}
	var last uint64
	for _, path := range matches {
		var from, to uint64
		if _, err := fmt.Sscanf(filepath.Base(path), "events-%d-%d.parquet", &from, &to); err != nil {
			continue
		}
		if to > last {
			last = to
		}
	}
	return last, nil
}

func (n *node) close() error {
	var errs []error
	if n.events != nil {
		errs = append(errs, n.events.Close())
	}
	if n.db != nil {
		errs = append(errs, n.db.Close())
	}
	return errors.Join(errs...)
}
