package handlers

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"visitor-registry/models"
	"visitor-registry/utils"
)

// EventPublisher sends visit events to Kafka in the background. A nil publisher
// or one without a producer drops events silently.
type EventPublisher struct {
	producer utils.KafkaProducer
	topic    string
	logger   *zap.Logger
	wg       sync.WaitGroup
}

func NewEventPublisher(producer utils.KafkaProducer, topic string, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{
		producer: producer,
		topic:    topic,
		logger:   logger,
	}
}

// Publish snapshots visit and sends the event without blocking the caller.
func (p *EventPublisher) Publish(event string, visit *models.Visit) {
	if p == nil || p.producer == nil {
		return
	}
	evt := models.NewVisitEvent(event, visit, time.Now())

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.send(evt)
	}()
}

// Wait blocks until every published event has been handed to the producer.
func (p *EventPublisher) Wait() {
	if p == nil {
		return
	}
	p.wg.Wait()
}

func (p *EventPublisher) send(evt models.VisitEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	data, err := json.Marshal(evt)
	if err != nil {
		p.logger.Error("failed to marshal visit event", zap.String("event", evt.Event), zap.Error(err))
		return
	}

	key := []byte(strconv.FormatUint(uint64(evt.Data.ID), 10))
	if err := p.producer.SendMessage(ctx, p.topic, key, data); err != nil {
		p.logger.Warn("failed to send visit event",
			zap.String("event", evt.Event),
			zap.Uint("visit_id", evt.Data.ID),
			zap.Error(err),
		)
	}
}
