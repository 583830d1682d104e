package kafka

import (
	"context"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
)

type MessageHandler interface {
	Handle(ctx context.Context, msg *sarama.ConsumerMessage) error
}

// Consumer feeds a consumer group into a MessageHandler. A message is marked
// once the handler accepts it or after MaxAttempts failed deliveries.
type Consumer struct {
	group       sarama.ConsumerGroup
	handler     MessageHandler
	MaxAttempts int
	RetryDelay  time.Duration
	Logger      *slog.Logger
}

func NewConsumer(brokers []string, groupID string, cfg *sarama.Config, handler MessageHandler) (*Consumer, error) {
	if cfg == nil {
		cfg = NewConfig(groupID)
	}
	g, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, err
	}
	return &Consumer{group: g, handler: handler, MaxAttempts: 3, RetryDelay: time.Second}, nil
}

func (c *Consumer) Run(ctx context.Context, topics []string) error {
	for {
		if err := c.group.Consume(ctx, topics, c.groupHandler()); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *Consumer) Close() error {
	return c.group.Close()
}

func (c *Consumer) groupHandler() consumerGroupHandler {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return consumerGroupHandler{handler: c.handler, maxAttempts: c.MaxAttempts, delay: c.RetryDelay, logger: logger}
}

type consumerGroupHandler struct {
	handler     MessageHandler
	maxAttempts int
	delay       time.Duration
	logger      *slog.Logger
}

func (h consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h consumerGroupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		if !h.deliver(sess.Context(), message) {
			return sess.Context().Err()
		}
		sess.MarkMessage(message, "")
	}
	return nil
}

// deliver reports false only when ctx ended before the handler accepted msg.
func (h consumerGroupHandler) deliver(ctx context.Context, msg *sarama.ConsumerMessage) bool {
	attempts := h.maxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	for i := 1; ; i++ {
		err := h.handler.Handle(ctx, msg)
		if err == nil {
			return true
		}
		if i >= attempts {
			h.logger.Error("kafka message skipped after retries", "topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "attempts", i, "error", err)
			return true
		}
		h.logger.Warn("kafka message handling failed", "topic", msg.Topic, "offset", msg.Offset, "attempt", i, "error", err)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(h.delay):
		}
	}
}
