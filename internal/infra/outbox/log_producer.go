package outbox

import (
	"context"
	"log/slog"
)

// LogProducer writes relayed events to the log. It stands in for the broker
// when no Kafka brokers are configured in local environments.
type LogProducer struct {
	Logger *slog.Logger
}

func (p LogProducer) Publish(_ context.Context, topic string, key string, payload []byte, headers map[string]string) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("event relayed", "topic", topic, "key", key, "type", headers["ce-type"], "bytes", len(payload))
	return nil
}
