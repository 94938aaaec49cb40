// Package kafka exports persisted records to downstream collaborators
// (audit log, analytics) through a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"shopdesk-realtime/internal/events"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// RecordSink implements events.RecordSink.
type RecordSink struct {
	writer messageWriter
}

func NewRecordSink(brokers []string, topic string) *RecordSink {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &RecordSink{writer: w}
}

type recordValue struct {
	Kind       string    `json:"kind"`
	Key        string    `json:"key"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// Emit keys records by Key so every record of one conversation lands on
// the same partition and keeps its order.
func (s *RecordSink) Emit(ctx context.Context, rec events.Record) error {
	value, err := json.Marshal(recordValue{
		Kind:       rec.Kind,
		Key:        rec.Key,
		OccurredAt: time.Now().UTC(),
		Payload:    rec.Payload,
	})
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(rec.Key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(rec.Kind)},
		},
	})
}

func (s *RecordSink) Close() error {
	return s.writer.Close()
}
