// Package events fans storefront domain events out to SNS and Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bloomsisters/storefront/backend/services/storefront-service/kafka"
	"go.uber.org/zap"
)

// Publisher is what services depend on. Publishing is best-effort: failures
// are logged and never fail the request that produced the event.
type Publisher interface {
	Publish(ctx context.Context, eventType, key string, event interface{})
}

// TypedSNSPublisher is satisfied by aws.SNSClient.
type TypedSNSPublisher interface {
	PublishWithType(ctx context.Context, topicArn, eventType string, message []byte) error
}

// Bus publishes to every configured sink. A nil sink is skipped.
type Bus struct {
	sns      TypedSNSPublisher
	topicArn string
	kafka    kafka.ProducerAPI
	logger   *zap.Logger
	timeout  time.Duration
}

func NewBus(sns TypedSNSPublisher, topicArn string, producer kafka.ProducerAPI, logger *zap.Logger) *Bus {
	return &Bus{
		sns:      sns,
		topicArn: topicArn,
		kafka:    producer,
		logger:   logger,
		timeout:  5 * time.Second,
	}
}

func (b *Bus) Publish(ctx context.Context, eventType, key string, event interface{}) {
	payload, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", zap.String("event_type", eventType), zap.Error(err))
		return
	}

	// detached from the request so a finished response does not cancel delivery
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.timeout)
	defer cancel()

	if b.sns != nil && b.topicArn != "" {
		if err := b.sns.PublishWithType(pctx, b.topicArn, eventType, payload); err != nil {
			b.logger.Error("Failed to publish event to SNS", zap.String("event_type", eventType), zap.String("key", key), zap.Error(err))
		}
	}

	if b.kafka != nil {
		if err := b.kafka.Publish(pctx, []byte(key), payload, map[string]string{"event_type": eventType}); err != nil {
			b.logger.Error("Failed to publish event to Kafka", zap.String("event_type", eventType), zap.String("key", key), zap.Error(err))
		}
	}

	b.logger.Debug("Published event", zap.String("event_type", eventType), zap.String("key", key))
}
