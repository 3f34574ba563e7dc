// Package main implements the entry point for the StreamBridge gateway.
// StreamBridge bridges pub/sub traffic between a local NATS bus and an
// external WebSocket messaging domain, in both directions.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/c360/streambridge/bridge"
	"github.com/c360/streambridge/busclient"
	"github.com/c360/streambridge/config"
	"github.com/c360/streambridge/gateway"
	"github.com/c360/streambridge/metric"
	"github.com/c360/streambridge/wsclient"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "streambridge"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("gateway failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil
	}

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// CLI flags win over the config file for logging
	if cliCfg.LogLevel != "" {
		cfg.Logging.Level = cliCfg.LogLevel
	}
	if cliCfg.LogFormat != "" {
		cfg.Logging.Format = cliCfg.LogFormat
	}

	logger := setupLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	if cliCfg.Validate {
		slog.Info("configuration is valid", "config_path", cliCfg.ConfigPath)
		return nil
	}

	slog.Info("starting StreamBridge",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	metricsRegistry := metric.NewMetricsRegistry()

	bus, link, err := connectClients(ctx, cfg, logger, metricsRegistry.CoreMetrics())
	if err != nil {
		return err
	}
	defer bus.Close()
	defer link.Close()

	outbound, inbound, cleanupSources, err := buildBridges(ctx, cfg, bus, link, logger, metricsRegistry.CoreMetrics())
	if err != nil {
		return err
	}
	defer cleanupSources()

	if err := outbound.Engine().LoadConfiguration(cfg); err != nil {
		return fmt.Errorf("configure outbound bridge: %w", err)
	}
	if err := inbound.Engine().LoadConfiguration(cfg); err != nil {
		return fmt.Errorf("configure inbound bridge: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Enabled {
		server := metric.NewServer(cfg.Metrics.Addr, cfg.Metrics.Path, metricsRegistry)
		g.Go(server.Start)
		g.Go(func() error {
			<-gctx.Done()
			return server.Stop()
		})
		slog.Info("metrics server enabled", "addr", cfg.Metrics.Addr, "path", cfg.Metrics.Path)
	}

	outbound.Engine().Run()
	inbound.Engine().Run()
	slog.Info("StreamBridge running")

	<-gctx.Done()
	slog.Info("received shutdown signal")

	if err := shutdownBridges(outbound, inbound, cliCfg.ShutdownTimeout); err != nil {
		return err
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("metrics server: %w", err)
	}

	slog.Info("StreamBridge shutdown complete")
	return nil
}

// connectClients establishes the bus and domain-link connections
func connectClients(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	metrics *metric.Metrics,
) (*busclient.Client, *wsclient.Client, error) {
	slog.Info("connecting to bus", "url", cfg.Bus.URL)
	bus := busclient.NewClient(cfg.Bus.URL,
		busclient.WithLogger(logger),
		busclient.WithMetrics(metrics),
		busclient.WithConnectTimeout(cfg.Bus.ConnectTimeout),
		busclient.WithReconnectWait(cfg.Bus.ReconnectWait),
		busclient.WithMaxReconnects(cfg.Bus.MaxReconnects),
	)
	if err := bus.Connect(ctx); err != nil {
		return nil, nil, fmt.Errorf("connect to bus: %w", err)
	}

	slog.Info("connecting to domain", "endpoint", cfg.Domain.Endpoint)
	link := wsclient.NewClient(cfg.Domain.Endpoint,
		wsclient.WithLogger(logger),
		wsclient.WithHandshakeTimeout(cfg.Domain.HandshakeTimeout),
		wsclient.WithWriteTimeout(cfg.Domain.WriteTimeout),
		wsclient.WithReadTimeout(cfg.Domain.ReadTimeout),
		wsclient.WithQueueLimit(cfg.Bus.PendingLimit),
	)
	if err := link.Connect(ctx); err != nil {
		bus.Close()
		return nil, nil, fmt.Errorf("connect to domain: %w", err)
	}

	return bus, link, nil
}

// buildBridges creates the two bridges, each with its own discovery source
// so both directions see every announcement.
func buildBridges(
	ctx context.Context,
	cfg *config.Config,
	bus *busclient.Client,
	link *wsclient.Client,
	logger *slog.Logger,
	metrics *metric.Metrics,
) (*bridge.Outbound, *bridge.Inbound, func(), error) {
	obSource, obCleanup, err := newDiscoverySource(ctx, cfg, bus)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("outbound discovery source: %w", err)
	}
	inSource, inCleanup, err := newDiscoverySource(ctx, cfg, bus)
	if err != nil {
		obCleanup()
		return nil, nil, nil, fmt.Errorf("inbound discovery source: %w", err)
	}

	opts := bridge.Options{Logger: logger, Metrics: metrics}
	outbound := bridge.NewOutbound(bus, link, obSource, opts)
	inbound := bridge.NewInbound(bus, link, inSource, opts)

	cleanup := func() {
		obCleanup()
		inCleanup()
	}
	return outbound, inbound, cleanup, nil
}

// newDiscoverySource creates one discovery source per the bus settings
func newDiscoverySource(
	ctx context.Context,
	cfg *config.Config,
	bus *busclient.Client,
) (gateway.DiscoverySource, func(), error) {
	if cfg.Bus.UseJetStream {
		source, err := busclient.NewJetStreamSource(ctx, bus, cfg.Bus.StreamName, cfg.Bus.DiscoverySubject)
		if err != nil {
			return nil, nil, err
		}
		return source, func() {}, nil
	}

	source, err := busclient.NewSource(bus, cfg.Bus.DiscoverySubject)
	if err != nil {
		return nil, nil, err
	}
	return source, func() { _ = source.Close() }, nil
}

// shutdownBridges stops both engines, bounded by the shutdown timeout
func shutdownBridges(outbound *bridge.Outbound, inbound *bridge.Inbound, timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		outbound.Engine().Shutdown()
		inbound.Engine().Shutdown()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("graceful shutdown exceeded %v", timeout)
	}
}
