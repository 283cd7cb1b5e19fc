// Package producer publishes fraud events to Kafka for downstream consumers (the Loki worker).
package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"payshield/backend/internal/fraud"
	"payshield/backend/internal/fraud/domain"
)

// writeTimeout bounds a single WriteMessages call.
const writeTimeout = 5 * time.Second

// messageWriter is the subset of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes fraud events as JSON, keyed by merchant ID so one merchant's events stay
// ordered within a partition. It implements fraud.Sink; retries are the notifier's job.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

var _ fraud.Sink = (*KafkaPublisher)(nil)

// NewKafkaPublisher returns a publisher for topic, or nil when brokers or topic are empty
// (publishing disabled). Call Close when shutting down.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return &KafkaPublisher{writer: writer, topic: topic}
}

// Emit serializes e and writes it to the topic.
func (p *KafkaPublisher) Emit(ctx context.Context, e domain.Event) error {
	if p == nil || p.writer == nil {
		return nil
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return p.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(e.MerchantID),
		Value: payload,
		Time:  e.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_kind", Value: []byte(e.Kind)},
		},
	})
}

// Topic returns the destination topic.
func (p *KafkaPublisher) Topic() string {
	if p == nil {
		return ""
	}
	return p.topic
}

// Close closes the Kafka writer. Safe to call on a nil publisher.
func (p *KafkaPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
