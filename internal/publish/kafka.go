package publish

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/marwinsteiner/trade-accounting/internal/export"
)

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes one message per record, keyed by order id so that
// every revision of an order lands on the same partition.
type KafkaPublisher struct {
	w      MessageWriter
	logger *slog.Logger
}

// NewKafkaWriter builds a writer for the trades topic.
func NewKafkaWriter(brokers []string, topic string) (*kafka.Writer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("publish: kafka brokers are required")
	}
	if topic == "" {
		return nil, fmt.Errorf("publish: kafka topic is required")
	}
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	return kafka.NewWriter(kafka.WriterConfig{
		Brokers:      brokers,
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		Dialer:       dialer,
		BatchTimeout: 200 * time.Millisecond,
		RequiredAcks: int(kafka.RequireOne),
	}), nil
}

func NewKafkaPublisher(w MessageWriter, logger *slog.Logger) *KafkaPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaPublisher{w: w, logger: logger}
}

func (p *KafkaPublisher) Publish(ctx context.Context, rec export.TradeRecord) error {
	b, err := encode(rec)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(rec.OrderID),
		Value: b,
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish: kafka write %s: %w", rec.OrderID, err)
	}
	p.logger.Debug("publish.kafka.ok", "order_id", rec.OrderID)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}
