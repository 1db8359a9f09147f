package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/terra-clan/quiz-engine/internal/models"
)

// EventTypeAttemptScored is the event_type metadata of scored-attempt messages
const EventTypeAttemptScored = "attempt_scored"

// Publisher publishes scored-attempt events
type Publisher interface {
	PublishAttemptScored(ctx context.Context, event models.ScoredEvent) error
	Close() error
}

// Config holds configuration for the event bus
type Config struct {
	// Backend is "gochannel" for in-process delivery or "kafka"
	Backend       string
	KafkaBrokers  []string
	TopicName     string
	ConsumerGroup string
	Logger        *slog.Logger
}

// Bus publishes scored attempts to a topic and lets the live feed consume them
type Bus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	topic      string
	logger     *slog.Logger
}

// NewBus creates a bus on the configured backend
func NewBus(cfg Config) (*Bus, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	wmLogger := watermill.NewSlogLogger(cfg.Logger)

	bus := &Bus{topic: cfg.TopicName, logger: cfg.Logger}

	switch cfg.Backend {
	case "", "gochannel":
		pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, wmLogger)
		bus.publisher = pubSub
		bus.subscriber = pubSub

	case "kafka":
		publisher, err := kafka.NewPublisher(kafka.PublisherConfig{
			Brokers:   cfg.KafkaBrokers,
			Marshaler: kafka.DefaultMarshaler{},
		}, wmLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka publisher: %w", err)
		}

		group := cfg.ConsumerGroup
		if group == "" {
			group = "quiz-engine-feed"
		}
		subscriber, err := kafka.NewSubscriber(kafka.SubscriberConfig{
			Brokers:               cfg.KafkaBrokers,
			Unmarshaler:           kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: kafka.DefaultSaramaSubscriberConfig(),
			ConsumerGroup:         group,
		}, wmLogger)
		if err != nil {
			publisher.Close()
			return nil, fmt.Errorf("failed to create Kafka subscriber: %w", err)
		}
		bus.publisher = publisher
		bus.subscriber = subscriber

	default:
		return nil, fmt.Errorf("unsupported event backend: %s", cfg.Backend)
	}

	return bus, nil
}

// PublishAttemptScored publishes one scored-attempt event
func (b *Bus) PublishAttemptScored(ctx context.Context, event models.ScoredEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal scored event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("event_type", EventTypeAttemptScored)
	msg.Metadata.Set("attempt_id", event.AttemptID)
	msg.Metadata.Set("timestamp", event.ScoredAt.Format(time.RFC3339))

	if err := b.publisher.Publish(b.topic, msg); err != nil {
		b.logger.Error("failed to publish scored event", "attempt_id", event.AttemptID, "error", err)
		return fmt.Errorf("failed to publish scored event: %w", err)
	}

	b.logger.Debug("published scored event", "attempt_id", event.AttemptID, "topic", b.topic)
	return nil
}

// Consume delivers every event on the topic to handle until ctx is cancelled
// or the bus is closed. Messages that cannot be decoded are acked and skipped.
func (b *Bus) Consume(ctx context.Context, handle func(models.ScoredEvent)) error {
	messages, err := b.subscriber.Subscribe(ctx, b.topic)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", b.topic, err)
	}

	for msg := range messages {
		var event models.ScoredEvent
		if err := json.Unmarshal(msg.Payload, &event); err != nil {
			b.logger.Warn("skipping malformed scored event", "message_id", msg.UUID, "error", err)
			msg.Ack()
			continue
		}
		handle(event)
		msg.Ack()
	}
	return nil
}

// Close closes the publisher and the subscriber
func (b *Bus) Close() error {
	pubErr := b.publisher.Close()
	if b.subscriber != nil && any(b.subscriber) != any(b.publisher) {
		if err := b.subscriber.Close(); err != nil {
			return err
		}
	}
	return pubErr
}
