package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/zgpcy/stopwatch/internal/clock"
	"github.com/zgpcy/stopwatch/internal/collector"
	"github.com/zgpcy/stopwatch/internal/config"
	"github.com/zgpcy/stopwatch/internal/logger"
	"github.com/zgpcy/stopwatch/internal/server"
	"github.com/zgpcy/stopwatch/internal/stopwatch"
	"github.com/zgpcy/stopwatch/internal/version"
)

const (
	// DefaultShutdownTimeout is the maximum time to wait for graceful shutdown
	DefaultShutdownTimeout = 30 * time.Second
)

var configPath = flag.String("config", "", "Path to configuration file (defaults and environment only when empty)")

func main() {
	flag.Parse()

	// Load configuration first (need log level from config)
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logger.New(cfg.LogLevel)
	logger.Info("Stopwatch starting",
		"version", version.String(),
		"config_path", *configPath)

	logger.Info("Configuration loaded successfully",
		"tick_interval_seconds", cfg.TickInterval,
		"tick_step_ms", stopwatch.StepMilliseconds(cfg.Interval()),
		"auto_start", cfg.AutoStart,
		"http_port", cfg.HTTPPort)

	sw := stopwatch.New(cfg.Interval(), clock.RealClock{}, logger)
	defer sw.Close()

	if err := prometheus.Register(collector.NewStopwatchCollector(sw, logger)); err != nil {
		logger.Error("Failed to register collector", "error", err)
		os.Exit(1)
	}
	logger.Info("Collector registered with Prometheus")

	if cfg.AutoStart {
		sw.Start()
	}

	srv := server.NewServer(cfg, sw, logger)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("Server error", "error", err)
		sw.Close()
		os.Exit(1)

	case sig := <-shutdown:
		logger.Info("Received shutdown signal, starting graceful shutdown", "signal", sig.String())

		// Ends open event streams so Shutdown does not wait on them
		sw.Close()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error during server shutdown", "error", err)
			os.Exit(1)
		}

		logger.Info("Server stopped gracefully", "elapsed", sw.Elapsed().String())
	}
}
