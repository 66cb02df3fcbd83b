package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	TypeMessageSent  = "message.sent"
	TypeMessagesRead = "messages.read"
)

// Record is one exported chat event. Data is marshalled as JSON.
type Record struct {
	Type           string      `json:"type"`
	ConversationID string      `json:"conversationId"`
	Data           interface{} `json:"data"`
	OccurredAt     time.Time   `json:"occurredAt"`
}

type Publisher interface {
	Publish(ctx context.Context, rec Record) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher keys every message by conversation id so a partition holds
// a conversation's events in commit order.
type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, rec Record) error {
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = time.Now().UTC()
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(rec.ConversationID),
		Value: b,
		Time:  rec.OccurredAt,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(rec.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write event %s: %w", rec.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Record) error { return nil }

func (NoopPublisher) Close() error { return nil }

// New returns a buffered Kafka publisher when brokers are configured,
// otherwise a no-op.
func New(brokers []string, topic string) Publisher {
	if len(brokers) == 0 || topic == "" {
		return NoopPublisher{}
	}
	return NewAsync(NewKafkaPublisher(brokers, topic), DefaultAsyncBuffer)
}
