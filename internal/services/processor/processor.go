// Package processor consumes profile-change events from Kafka and applies
// them as transactional mutations to the legacy member tables.
package processor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cornjacket/member-legacy-processor/internal/legacy"
	"github.com/cornjacket/member-legacy-processor/internal/metrics"
)

// Config holds configuration for the processor service.
type Config struct {
	Brokers []string
	GroupID string

	CreateProfileTopic           string
	UpdateProfileTopic           string
	CreateTraitTopic             string
	UpdateTraitTopic             string
	UpdatePhotoTopic             string
	EmailChangeVerificationTopic string

	BasicInfoTraitID string
}

func (c Config) topics() []string {
	return []string{
		c.CreateProfileTopic,
		c.UpdateProfileTopic,
		c.CreateTraitTopic,
		c.UpdateTraitTopic,
		c.UpdatePhotoTopic,
		c.EmailChangeVerificationTopic,
	}
}

// RunningService represents a started processor service.
type RunningService struct {
	// Shutdown stops the consumer gracefully.
	Shutdown func(ctx context.Context) error

	// Healthy reports whether the broker connections are alive.
	Healthy func(ctx context.Context) error
}

// Start wires the mapping engine to the topic router and begins consuming.
func Start(ctx context.Context, cfg Config, repo legacy.Repository, collector *metrics.Collector, logger *slog.Logger) (*RunningService, error) {
	logger = logger.With("service", "processor")

	proc := NewProcessor(repo, cfg.BasicInfoTraitID, logger)

	router := NewRouter(logger)
	router.Register(cfg.CreateProfileTopic, proc.CreateProfile)
	router.Register(cfg.UpdateProfileTopic, proc.UpdateProfile)
	router.Register(cfg.UpdatePhotoTopic, proc.UpdatePhoto)
	// Both trait topics share one handler.
	router.Register(cfg.CreateTraitTopic, proc.UpdateTrait)
	router.Register(cfg.UpdateTraitTopic, proc.UpdateTrait)
	router.Register(cfg.EmailChangeVerificationTopic, proc.VerifyEmailChange)

	consumer, err := NewConsumer(
		router,
		collector,
		ConsumerConfig{
			Brokers: cfg.Brokers,
			GroupID: cfg.GroupID,
			Topics:  cfg.topics(),
		},
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	go func() {
		if err := consumer.Start(ctx); err != nil {
			logger.Error("consumer error", "error", err)
		}
	}()

	return &RunningService{
		Shutdown: func(shutdownCtx context.Context) error {
			logger.Info("shutting down processor service")
			return consumer.Close()
		},
		Healthy: consumer.Healthy,
	}, nil
}
