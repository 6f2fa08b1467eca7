// Package consumer reads session events back from Kafka and forwards them to
// another sink (the OTel log pipeline in cmd/worker).
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"session-authority/internal/telemetry"
)

// messageReader is the subset of *kafka.Reader used here.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaConsumer forwards session events from a Kafka topic.
type KafkaConsumer struct {
	reader messageReader
	logger *slog.Logger
}

// NewKafkaConsumer creates a consumer in groupID reading topic.
func NewKafkaConsumer(brokers []string, topic, groupID string, logger *slog.Logger) (*KafkaConsumer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("consumer: KAFKA_BROKERS is required")
	}
	if topic == "" || groupID == "" {
		return nil, errors.New("consumer: topic and group id are required")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        time.Second,
		CommitInterval: time.Second,
	})
	return newKafkaConsumer(reader, logger), nil
}

func newKafkaConsumer(r messageReader, logger *slog.Logger) *KafkaConsumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaConsumer{reader: r, logger: logger}
}

// Run reads until ctx is done or the reader is closed, passing each decoded
// event to sink. Undecodable messages and sink failures are logged and skipped.
func (c *KafkaConsumer) Run(ctx context.Context, sink telemetry.EventEmitter) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			c.logger.Error("kafka read failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		var event telemetry.SessionEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.logger.Warn("dropping undecodable session event", "offset", msg.Offset, "error", err)
			continue
		}
		sinkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := sink.Emit(sinkCtx, &event); err != nil {
			c.logger.Warn("session event sink failed", "type", event.Type, "error", err)
		}
		cancel()
	}
}

// Close closes the Kafka reader.
func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}

// LogSink writes each event as a structured audit log record.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Emit(ctx context.Context, event *telemetry.SessionEvent) error {
	level := slog.LevelInfo
	if event.Type == telemetry.EventRefreshReuseDetected {
		level = slog.LevelWarn
	}
	attrs := []any{"type", string(event.Type), "at", event.At}
	if event.SessionID != "" {
		attrs = append(attrs, "session_id", event.SessionID)
	}
	if event.UserID != "" {
		attrs = append(attrs, "user_id", event.UserID)
	}
	for k, v := range event.Detail {
		attrs = append(attrs, k, v)
	}
	s.Logger.Log(ctx, level, "session event", attrs...)
	return nil
}
