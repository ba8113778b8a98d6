package services

import (
	"context"
	"encoding/json"
	"errors"

	aws_pkg "github.com/bloomsisters/storefront/backend/pkg/aws"
	"github.com/bloomsisters/storefront/backend/services/storefront-service/gateway"
	"go.uber.org/zap"
)

// Poller is satisfied by aws.SQSConsumer.
type Poller interface {
	StartPolling(ctx context.Context, handler aws_pkg.MessageHandler) error
}

// NotificationConsumer applies gateway notifications that were relayed to an
// SQS queue, optionally wrapped in an SNS envelope.
type NotificationConsumer struct {
	poller   Poller
	payments PaymentService
	metrics  aws_pkg.MetricsRecorder
	logger   *zap.Logger
}

func NewNotificationConsumer(poller Poller, payments PaymentService, metrics aws_pkg.MetricsRecorder, logger *zap.Logger) *NotificationConsumer {
	return &NotificationConsumer{poller: poller, payments: payments, metrics: metrics, logger: logger}
}

// Start blocks until ctx is cancelled.
func (c *NotificationConsumer) Start(ctx context.Context) {
	c.logger.Info("Starting payment notification consumer")
	err := c.poller.StartPolling(ctx, c.HandleMessage)
	if err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Error("Payment notification consumer stopped", zap.Error(err))
	}
}

// HandleMessage returns an error only for failures worth redelivering.
// Malformed, unsigned or mismatched notifications are dropped.
func (c *NotificationConsumer) HandleMessage(ctx context.Context, body string) error {
	var envelope struct {
		Message string `json:"Message"`
	}
	if err := json.Unmarshal([]byte(body), &envelope); err == nil && envelope.Message != "" {
		body = envelope.Message
	}

	var n gateway.TransactionStatus
	if err := json.Unmarshal([]byte(body), &n); err != nil {
		c.logger.Warn("Dropping malformed payment notification", zap.Error(err))
		return nil
	}
	if n.OrderID == "" || n.TransactionStatus == "" {
		c.logger.Warn("Dropping incomplete payment notification", zap.String("order_id", n.OrderID))
		return nil
	}

	if serr := c.payments.HandleNotification(ctx, &n, SourceQueue); serr != nil {
		if serr.StatusCode >= 500 {
			return serr
		}
		c.logger.Warn("Dropping rejected payment notification",
			zap.String("order_id", n.OrderID),
			zap.Int("status", serr.StatusCode),
			zap.String("reason", serr.Message))
		return nil
	}

	recordCount(c.metrics, aws_pkg.MetricSQSMessages, map[string]string{"Queue": "payment-notifications"})
	return nil
}
