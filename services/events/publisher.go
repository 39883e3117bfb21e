package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	EnrollmentCommittedType = "enrollment.committed"

	DefaultBatchTimeout = 100 * time.Millisecond
)

// EnrollmentEvent is published once per successful enrollment commit
type EnrollmentEvent struct {
	Type          string    `json:"type"`
	UserID        uint      `json:"userId"`
	Email         string    `json:"email"`
	OrderID       string    `json:"orderId"`
	PaymentID     string    `json:"paymentId"`
	TransactionID string    `json:"transactionId"`
	CourseIDs     []string  `json:"courseIds"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// Publisher emits domain events
type Publisher interface {
	PublishEnrollment(ctx context.Context, event EnrollmentEvent) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a Kafka topic
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher returns a Kafka-backed publisher, or a no-op publisher
// when no brokers or topic are configured
func NewKafkaPublisher(brokers []string, topic string) Publisher {
	if len(brokers) == 0 || topic == "" {
		return NopPublisher{}
	}

	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.ReferenceHash{},
			RequiredAcks:           kafka.RequireAll,
			BatchTimeout:           DefaultBatchTimeout,
			Async:                  false,
			AllowAutoTopicCreation: false,
		},
	}
}

// PublishEnrollment writes the event keyed by user id so one user's events
// stay ordered on a single partition
func (p *KafkaPublisher) PublishEnrollment(ctx context.Context, event EnrollmentEvent) error {
	if event.Type == "" {
		event.Type = EnrollmentCommittedType
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal enrollment event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(event.UserID), 10)),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish enrollment event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops every event
type NopPublisher struct{}

func (NopPublisher) PublishEnrollment(context.Context, EnrollmentEvent) error { return nil }

func (NopPublisher) Close() error { return nil }
