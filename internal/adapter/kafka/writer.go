package kafka

import (
	"context"
	"log/slog"
	"sort"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/malaria-risk-etl/internal/config"
	"github.com/couchcryptid/malaria-risk-etl/internal/domain"
)

// Writer publishes run results to the sink topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		// Run results carry every ward and can exceed the 1 MiB default batch.
		BatchBytes: 8 << 20,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBatch publishes serialized run results in a single WriteMessages call.
// Results are keyed by run ID, so every message for one run lands on the
// same partition.
func (w *Writer) LoadBatch(ctx context.Context, events []domain.OutputEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(events))
	for i := range events {
		msgs[i] = serializeToMessage(events[i])
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return err
	}
	w.logger.Debug("run results published", "count", len(msgs), "topic", w.writer.Topic)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage converts an output event into a Kafka message. Headers
// are emitted in key order.
func serializeToMessage(event domain.OutputEvent) kafkago.Message {
	keys := make([]string, 0, len(event.Headers))
	for k := range event.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	headers := make([]kafkago.Header, 0, len(keys))
	for _, k := range keys {
		headers = append(headers, kafkago.Header{Key: k, Value: []byte(event.Headers[k])})
	}
	return kafkago.Message{
		Key:     event.Key,
		Value:   event.Value,
		Headers: headers,
	}
}
