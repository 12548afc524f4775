package processor

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/gofrs/uuid/v5"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/cornjacket/member-legacy-processor/internal/domain/events"
	"github.com/cornjacket/member-legacy-processor/internal/metrics"
)

// ConsumerConfig holds configuration for the event consumer.
type ConsumerConfig struct {
	Brokers []string
	GroupID string
	Topics  []string
}

// Consumer consumes profile-change events from Kafka and dispatches them
// to the mapping engine. Offsets are committed per record, and only for
// records whose handling completed: a database failure stops the partition,
// rewinds consumption to the failed record and leaves its offset uncommitted
// so the event is redelivered, while validation failures and skips are
// committed as permanently handled.
type Consumer struct {
	client  *kgo.Client
	router  *Router
	metrics *metrics.Collector
	config  ConsumerConfig
	logger  *slog.Logger
}

// NewConsumer creates a new event consumer.
func NewConsumer(
	router *Router,
	collector *metrics.Collector,
	config ConsumerConfig,
	logger *slog.Logger,
) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(config.Brokers...),
		kgo.ConsumerGroup(config.GroupID),
		kgo.ConsumeTopics(config.Topics...),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, err
	}

	return &Consumer{
		client:  client,
		router:  router,
		metrics: collector,
		config:  config,
		logger:  logger.With("component", "consumer"),
	}, nil
}

// Start begins consuming events and blocks until the context is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("starting consumer",
		"group_id", c.config.GroupID,
		"topics", c.config.Topics,
	)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer stopping")
			return nil
		default:
		}

		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}

		if errs := fetches.Errors(); len(errs) > 0 {
			for _, err := range errs {
				c.logger.Error("fetch error",
					"topic", err.Topic,
					"partition", err.Partition,
					"error", err.Err,
				)
			}
			continue
		}

		var completed []*kgo.Record
		rewind := make(map[string]map[int32]kgo.EpochOffset)
		fetches.EachPartition(func(p kgo.FetchTopicPartition) {
			done, failed := c.processPartition(ctx, p)
			completed = append(completed, done...)
			if failed != nil {
				if rewind[failed.Topic] == nil {
					rewind[failed.Topic] = make(map[int32]kgo.EpochOffset)
				}
				rewind[failed.Topic][failed.Partition] = kgo.EpochOffset{Epoch: -1, Offset: failed.Offset}
			}
		})

		// Failed partitions resume at the failing record, so the next poll
		// fetches it again instead of moving past it.
		if len(rewind) > 0 {
			c.client.SetOffsets(rewind)
		}

		if len(completed) == 0 {
			continue
		}
		if err := c.client.CommitRecords(ctx, completed...); err != nil {
			c.logger.Error("failed to commit offsets", "error", err)
		}
	}
}

// processPartition handles one partition's records strictly in order. It
// returns the records whose offsets may be committed and, when a record
// hard-fails, that record; nothing past a failed record is handled.
func (c *Consumer) processPartition(ctx context.Context, p kgo.FetchTopicPartition) (completed []*kgo.Record, failed *kgo.Record) {
	for _, record := range p.Records {
		if ctx.Err() != nil {
			return completed, nil
		}
		if !c.processRecord(ctx, record) {
			return completed, record
		}
		completed = append(completed, record)
	}
	return completed, nil
}

// processRecord handles a single record and reports whether its offset may
// be committed.
func (c *Consumer) processRecord(ctx context.Context, record *kgo.Record) bool {
	logger := c.logger.With(
		"correlation_id", uuid.Must(uuid.NewV7()),
		"topic", record.Topic,
		"partition", record.Partition,
		"offset", record.Offset,
	)

	var env events.Envelope
	if err := json.Unmarshal(record.Value, &env); err != nil {
		logger.Error("invalid message json", "error", err)
		c.metrics.ObserveEvent(record.Topic, metrics.ResultInvalid)
		return true
	}

	if err := validateEnvelope(&env); err != nil {
		logger.Error("invalid envelope", "error", err)
		c.metrics.ObserveEvent(record.Topic, metrics.ResultInvalid)
		return true
	}

	// A message whose envelope topic disagrees with the bus topic it
	// arrived on is rejected before dispatch.
	if env.Topic != record.Topic {
		logger.Error("envelope topic does not match bus topic", "envelope_topic", env.Topic)
		c.metrics.ObserveEvent(record.Topic, metrics.ResultSkipped)
		return true
	}

	if !c.router.Handles(record.Topic) {
		logger.Error("no handler for topic")
		c.metrics.ObserveEvent(record.Topic, metrics.ResultSkipped)
		return true
	}

	err := c.router.Dispatch(ctx, record.Topic, &env)
	switch {
	case err == nil:
		logger.Debug("event processed")
		c.metrics.ObserveEvent(record.Topic, metrics.ResultOK)
		return true
	case IsValidation(err):
		// Bad events are permanently skipped, not replayed forever.
		logger.Error("event failed validation", "error", err)
		c.metrics.ObserveEvent(record.Topic, metrics.ResultInvalid)
		return true
	default:
		logger.Error("failed to handle event", "error", err)
		c.metrics.ObserveEvent(record.Topic, metrics.ResultFailed)
		return false
	}
}

// Healthy reports whether the brokers are reachable.
func (c *Consumer) Healthy(ctx context.Context) error {
	return c.client.Ping(ctx)
}

// Close releases consumer resources.
func (c *Consumer) Close() error {
	c.client.Close()
	c.logger.Info("consumer closed")
	return nil
}
