package event

import (
	"context"
	"encoding/json"
	"time"

	"github.com/letably/backend/internal/domain/shared"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaEventPublisher publishes domain events to a Kafka topic for external
// consumers (notification workers, reporting pipelines).
//
// Delivery is best effort: the originating ledger mutation has already
// committed, so a broker failure is logged and swallowed rather than turned
// into an operation failure.
type KafkaEventPublisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewKafkaEventPublisher creates a publisher writing to the given topic
func NewKafkaEventPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaEventPublisher {
	return &KafkaEventPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			WriteTimeout: 10 * time.Second,
			// The broker may not have the topic yet in dev environments
			AllowAutoTopicCreation: true,
		},
		logger: logger.Named("kafka_publisher"),
	}
}

// eventEnvelope is the wire format for published events
type eventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	AgencyID      string          `json:"agency_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}

// Publish writes the events to Kafka, keyed by agency so that all events of
// one agency land on the same partition in order.
func (p *KafkaEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}

	messages := make([]kafka.Message, 0, len(events))
	for _, event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			p.logger.Error("failed to serialize event",
				zap.String("event_type", event.EventType()),
				zap.String("event_id", event.EventID().String()),
				zap.Error(err),
			)
			continue
		}

		envelope, err := json.Marshal(eventEnvelope{
			EventID:       event.EventID().String(),
			EventType:     event.EventType(),
			AggregateID:   event.AggregateID().String(),
			AggregateType: event.AggregateType(),
			AgencyID:      event.AgencyID().String(),
			OccurredAt:    event.OccurredAt(),
			Payload:       payload,
		})
		if err != nil {
			p.logger.Error("failed to build event envelope",
				zap.String("event_id", event.EventID().String()),
				zap.Error(err),
			)
			continue
		}

		messages = append(messages, kafka.Message{
			Key:   []byte(event.AgencyID().String()),
			Value: envelope,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(event.EventType())},
			},
		})
	}

	if len(messages) == 0 {
		return nil
	}

	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		p.logger.Error("failed to publish events to kafka",
			zap.Int("count", len(messages)),
			zap.Error(err),
		)
	}

	return nil
}

// Close flushes and closes the underlying writer
func (p *KafkaEventPublisher) Close() error {
	return p.writer.Close()
}

// Ensure KafkaEventPublisher implements EventPublisher
var _ shared.EventPublisher = (*KafkaEventPublisher)(nil)

// FanOutPublisher forwards events to several publishers in order.
// Each publisher gets every event; one failing does not stop the others.
type FanOutPublisher struct {
	publishers []shared.EventPublisher
}

// NewFanOutPublisher creates a publisher that forwards to all given publishers
func NewFanOutPublisher(publishers ...shared.EventPublisher) *FanOutPublisher {
	return &FanOutPublisher{publishers: publishers}
}

// Publish forwards the events to every registered publisher
func (p *FanOutPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	for _, pub := range p.publishers {
		_ = pub.Publish(ctx, events...)
	}
	return nil
}

// Ensure FanOutPublisher implements EventPublisher
var _ shared.EventPublisher = (*FanOutPublisher)(nil)
