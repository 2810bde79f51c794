// Package main implements the entry point for freqcached, an in-memory
// key/value cache daemon with least-frequently-used eviction and time-based
// expiry, served over a small REST API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/barberbradleyt/Cache/cache"
	"github.com/barberbradleyt/Cache/config"
	gatewayhttp "github.com/barberbradleyt/Cache/gateway/http"
	"github.com/barberbradleyt/Cache/health"
	"github.com/barberbradleyt/Cache/metric"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "freqcached"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if cliCfg.ShowVersion {
		fmt.Printf("%s %s (build %s)\n", appName, Version, BuildTime)
		return nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil
	}
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	cfg, err := loadConfiguration(cliCfg)
	if err != nil {
		return err
	}

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	return runDaemon(ctx, cfg, cliCfg, logger)
}

// loadConfiguration assembles defaults, file layers and env overrides.
func loadConfiguration(cliCfg *CLIConfig) (*config.Config, error) {
	loader := config.NewLoader()
	if cliCfg.ConfigPath != "" {
		loader.AddLayer(cliCfg.ConfigPath)
	}
	loader.EnableValidation(true)

	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("configuration: %w", err)
	}
	return cfg, nil
}

func runDaemon(ctx context.Context, cfg *config.Config, cliCfg *CLIConfig, logger *slog.Logger) error {
	monitor := health.NewMonitor()

	// Metrics registry always exists; the scrape endpoint is optional.
	registry := metric.NewMetricsRegistry()
	var metricsServer *metric.Server
	if cfg.Metrics.Enabled {
		metricsServer = metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, registry)
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		logger.Info("metrics server started", "addr", metricsServer.Address())
	}

	// The cache engine
	cacheOpts := []cache.Option[json.RawMessage]{
		cache.WithHealthMonitor[json.RawMessage](monitor),
	}
	if cfg.Metrics.Enabled {
		cacheOpts = append(cacheOpts, cache.WithMetrics[json.RawMessage](registry, cfg.InstanceName()))
	}
	store, err := cache.NewFromConfig[json.RawMessage](ctx, cfg.Cache, cacheOpts...)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("cache close", "error", err)
		}
	}()
	logger.Info("cache started",
		"max_size", cfg.Cache.MaxSize,
		"expiry", cfg.Cache.Expiry,
	)

	// Periodically surface sweeper liveness and aggregate health as metrics.
	go watchHealth(ctx, monitor, registry.Metrics, logger)

	registry.Metrics.ServiceStatus.WithLabelValues(appName).Set(2)
	defer registry.Metrics.ServiceStatus.WithLabelValues(appName).Set(0)

	if !cfg.Gateway.Enabled {
		logger.Info("gateway disabled, running headless")
		return waitForShutdown(ctx, logger, nil, nil, metricsServer, cliCfg.ShutdownTimeout)
	}

	gw, err := gatewayhttp.NewGateway(gatewayhttp.Config{
		Port:            cfg.Gateway.Port,
		ReadTimeout:     cfg.Gateway.ReadTimeout,
		WriteTimeout:    cfg.Gateway.WriteTimeout,
		ShutdownTimeout: cfg.Gateway.ShutdownTimeout,
		MaxBodyBytes:    cfg.Gateway.MaxBodyBytes,
	}, store, logger, registry.Metrics, monitor)
	if err != nil {
		return fmt.Errorf("gateway: %w", err)
	}

	gwErr := make(chan error, 1)
	go func() {
		gwErr <- gw.Start(ctx)
	}()

	return waitForShutdown(ctx, logger, gw, gwErr, metricsServer, cliCfg.ShutdownTimeout)
}

// watchHealth marks silent components stale and mirrors aggregate health
// into the Prometheus gauge once per second.
func watchHealth(ctx context.Context, monitor *health.Monitor, metrics *metric.Metrics, logger *slog.Logger) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	wasHealthy := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			monitor.MarkStale(5 * time.Second)

			aggregate := monitor.AggregateHealth(appName)
			value := 0.0
			if aggregate.Healthy {
				value = 1.0
			}
			metrics.SetHealth(appName, value)

			if aggregate.Healthy != wasHealthy {
				if aggregate.Healthy {
					logger.Info("service recovered", "status", aggregate.Status)
				} else {
					logger.Warn("service degraded", "status", aggregate.Status, "message", aggregate.Message)
				}
				wasHealthy = aggregate.Healthy
			}
		}
	}
}

// waitForShutdown blocks until SIGINT/SIGTERM, then tears components down in
// reverse start order.
func waitForShutdown(
	ctx context.Context, logger *slog.Logger,
	gw *gatewayhttp.Gateway, gwErr <-chan error,
	metricsServer *metric.Server, timeout time.Duration,
) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	// A nil gwErr (headless mode) blocks forever in the select.
	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("context canceled")
	case err := <-gwErr:
		if err != nil {
			logger.Error("gateway failed", "error", err)
			return fmt.Errorf("gateway: %w", err)
		}
		logger.Info("gateway stopped")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if gw != nil {
			if err := gw.Stop(); err != nil {
				logger.Warn("gateway stop", "error", err)
			}
		}
		if metricsServer != nil {
			if err := metricsServer.Stop(); err != nil {
				logger.Warn("metrics server stop", "error", err)
			}
		}
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("shutdown timed out after %v", timeout)
	}
}
