package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/mkazarin/accountgate/internal/domain"
)

const (
	topicAccountRegistered = "accounts.registered"
	topicAccountFinalized  = "accounts.finalized"
)

// Producer publishes account lifecycle events to Kafka
type Producer struct {
	writer *kafka.Writer
	logger zerolog.Logger
}

// NewProducer creates a Kafka-backed event publisher
func NewProducer(brokers []string, logger zerolog.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}

	logger.Info().
		Strs("brokers", brokers).
		Msg("Kafka producer initialized")

	return &Producer{
		writer: writer,
		logger: logger,
	}
}

// AccountRegistered publishes a registration event
func (p *Producer) AccountRegistered(ctx context.Context, event domain.AccountEvent) error {
	return p.publish(ctx, topicAccountRegistered, event)
}

// AccountFinalized publishes a terminal verdict event
func (p *Producer) AccountFinalized(ctx context.Context, event domain.AccountEvent) error {
	return p.publish(ctx, topicAccountFinalized, event)
}

func (p *Producer) publish(ctx context.Context, topic string, event domain.AccountEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(event.JobID),
		Value: data,
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}

	p.logger.Debug().
		Str("topic", topic).
		Str("job_id", event.JobID).
		Str("status", string(event.Status)).
		Msg("event published")
	return nil
}

// Close flushes and closes the writer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// NoopPublisher is used when no brokers are configured
type NoopPublisher struct{}

// AccountRegistered is a no-op
func (NoopPublisher) AccountRegistered(ctx context.Context, event domain.AccountEvent) error {
	return nil
}

// AccountFinalized is a no-op
func (NoopPublisher) AccountFinalized(ctx context.Context, event domain.AccountEvent) error {
	return nil
}

var (
	_ domain.EventPublisher = (*Producer)(nil)
	_ domain.EventPublisher = NoopPublisher{}
)
