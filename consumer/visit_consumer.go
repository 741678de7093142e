package consumer

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"visitor-registry/config"
	"visitor-registry/models"
	"visitor-registry/monitoring"
	"visitor-registry/utils"
)

// MessageReader is the part of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// VisitConsumer keeps the search index in sync with visit events.
type VisitConsumer struct {
	reader     MessageReader
	es         utils.ElasticsearchClient
	index      string
	logger     *zap.Logger
	retryDelay time.Duration
	retryFor   time.Duration
}

func NewVisitConsumer(cfg config.KafkaConfig, es utils.ElasticsearchClient, index string, logger *zap.Logger) *VisitConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: []string{cfg.Broker},
		Topic:   cfg.Topic,
		GroupID: cfg.GroupID,
		MaxWait: 10 * time.Second,
	})
	return newVisitConsumer(reader, es, index, logger)
}

func newVisitConsumer(reader MessageReader, es utils.ElasticsearchClient, index string, logger *zap.Logger) *VisitConsumer {
	return &VisitConsumer{
		reader:     reader,
		es:         es,
		index:      index,
		logger:     logger,
		retryDelay: 5 * time.Second,
		retryFor:   time.Minute,
	}
}

// Run handles events until ctx is cancelled. A message's offset is committed
// after it has been handled.
func (c *VisitConsumer) Run(ctx context.Context) error {
	c.logger.Info("starting visit event consumer", zap.String("index", c.index))
	if err := c.es.EnsureIndex(ctx, c.index, models.VisitIndexSettings()); err != nil {
		c.logger.Warn("could not prepare search index, relying on dynamic mapping",
			zap.String("index", c.index), zap.Error(err))
	}

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Warn("kafka read error, will retry", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.retryDelay):
			}
			continue
		}

		c.handle(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Warn("failed to commit offset",
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
		}
	}
}

func (c *VisitConsumer) Close() error {
	return c.reader.Close()
}

func (c *VisitConsumer) handle(ctx context.Context, msg kafka.Message) {
	var event models.VisitEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		monitoring.ConsumerEvents.WithLabelValues("unknown", "malformed").Inc()
		c.logger.Error("failed to unmarshal visit event", zap.Int64("offset", msg.Offset), zap.Error(err))
		return
	}

	switch event.Event {
	case models.EventVisitCreated, models.EventVisitUpdated, models.EventVisitClosed:
	default:
		monitoring.ConsumerEvents.WithLabelValues(event.Event, "ignored").Inc()
		c.logger.Warn("unknown event type", zap.String("event", event.Event))
		return
	}

	id := strconv.FormatUint(uint64(event.Data.ID), 10)
	err := utils.Retry(ctx, c.logger, "elasticsearch", c.retryFor, func() error {
		return c.es.IndexDocument(ctx, c.index, id, event.Data)
	})
	if err != nil {
		monitoring.ConsumerEvents.WithLabelValues(event.Event, "failed").Inc()
		c.logger.Error("failed to index visit",
			zap.String("event", event.Event),
			zap.Uint("visit_id", event.Data.ID),
			zap.Error(err),
		)
		return
	}

	monitoring.ConsumerEvents.WithLabelValues(event.Event, "ok").Inc()
	c.logger.Debug("indexed visit", zap.String("event", event.Event), zap.Uint("visit_id", event.Data.ID))
}
