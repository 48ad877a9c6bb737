// Command channeld runs the content channel node and serves its HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"contentchain/config"
	"contentchain/native/minter"
	"contentchain/observability/logging"
	telemetry "contentchain/observability/otel"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "path to channeld configuration (toml, yaml or json)")
	flag.Parse()

	cfg := config.Default()
	if cfgPath != "" {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "channeld: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	logger, closeLog := logging.Setup("channeld", cfg.Env, logging.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	defer func() { _ = closeLog() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("channeld exited", "error", err)
		_ = closeLog()
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	dsn := cfg.EventLog.DSN
	if cfg.EventLog.Driver != "postgres" {
		dsn = ""
	}
	logger.Info("starting channeld",
		slog.String("listen", cfg.Listen),
		slog.String("state_backend", cfg.State.Backend),
		slog.String("eventlog_driver", cfg.EventLog.Driver),
		logging.MaskDSN("eventlog_dsn", dsn),
		logging.MaskField("jwt_secret", cfg.Auth.JWTSecret),
		slog.Int("channels", len(cfg.Channels)),
	)

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "channeld",
		Environment: cfg.Env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		SampleRatio: cfg.Telemetry.SampleRatio,
	}.ApplyEnv())
	if err != nil {
		return fmt.Errorf("initialise telemetry: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	n, err := newNode(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := n.close(); err != nil {
			logger.Warn("close node", "error", err)
		}
	}()

	keeper, err := minter.NewKeeper(cfg.Keeper.Interval.Duration, n.advanceEmissions, logger.With("component", "keeper"))
	if err != nil {
		return err
	}
	keeperDone := make(chan struct{})
	go func() {
		defer close(keeperDone)
		if err := keeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("emission keeper stopped", "error", err)
		}
	}()

	server := &http.Server{
		Addr:              cfg.Listen,
		Handler:           h2c.NewHandler(n.server.Handler(), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	listener, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "address", listener.Addr().String(), "channels", len(n.registry.Channels()))
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			stop()
			<-keeperDone
			return fmt.Errorf("serve: %w", err)
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", "error", err)
	}
	<-keeperDone

	if dir := cfg.EventLog.ExportDir; dir != "" {
		export, err := n.exportEvents(shutdownCtx, dir)
		if err != nil {
			logger.Warn("event export failed", "dir", dir, "error", err)
		} else if export.Path != "" {
			logger.Info("events exported", "path", export.Path, "rows", export.Rows)
		}
	}
	return nil
}
