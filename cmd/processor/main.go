package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cornjacket/member-legacy-processor/internal/config"
	"github.com/cornjacket/member-legacy-processor/internal/infra/postgres"
	"github.com/cornjacket/member-legacy-processor/internal/legacy"
	"github.com/cornjacket/member-legacy-processor/internal/metrics"
	"github.com/cornjacket/member-legacy-processor/internal/services/health"
	"github.com/cornjacket/member-legacy-processor/internal/services/processor"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("starting member legacy processor",
		"kafka_brokers", cfg.KafkaBrokers,
		"group_id", cfg.KafkaGroupID,
		"topics", cfg.Topics(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to the legacy database
	pg, err := postgres.NewClient(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns, logger)
	if err != nil {
		slog.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer pg.Close()

	repo := legacy.NewRepo(pg.Pool(), cfg.LockWaitTimeout.Milliseconds(), logger)
	collector := metrics.NewCollector(nil)

	// Start the consumer
	brokers := strings.Split(cfg.KafkaBrokers, ",")
	procSvc, err := processor.Start(ctx, processor.Config{
		Brokers:                      brokers,
		GroupID:                      cfg.KafkaGroupID,
		CreateProfileTopic:           cfg.CreateProfileTopic,
		UpdateProfileTopic:           cfg.UpdateProfileTopic,
		CreateTraitTopic:             cfg.CreateTraitTopic,
		UpdateTraitTopic:             cfg.UpdateTraitTopic,
		UpdatePhotoTopic:             cfg.UpdatePhotoTopic,
		EmailChangeVerificationTopic: cfg.EmailChangeVerificationTopic,
		BasicInfoTraitID:             cfg.BasicInfoTraitID,
	}, repo, collector, logger)
	if err != nil {
		slog.Error("failed to start processor service", "error", err)
		os.Exit(1)
	}

	// Start the health/metrics server
	healthSvc, err := health.Start(ctx, health.Config{
		Port: cfg.HealthPort,
	}, map[string]health.Checker{
		"kafka":    procSvc.Healthy,
		"database": pg.Health,
	}, logger)
	if err != nil {
		slog.Error("failed to start health service", "error", err)
		os.Exit(1)
	}

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("context cancelled")
	}

	// Graceful shutdown (reverse order)
	slog.Info("shutting down services...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := healthSvc.Shutdown(shutdownCtx); err != nil {
		slog.Error("health service shutdown error", "error", err)
	}
	if err := procSvc.Shutdown(shutdownCtx); err != nil {
		slog.Error("processor service shutdown error", "error", err)
	}

	slog.Info("member legacy processor stopped")
}

// newLogger creates a structured logger based on configuration.
func newLogger(level, format string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
