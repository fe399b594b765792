// Package kafka publishes audit events to a Kafka topic as JSON records keyed by action.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"kycproxy/internal/platform/kafka/producer"
	audit "kycproxy/pkg/platform/audit"
)

// Producer is the subset of the platform producer the sink needs.
type Producer interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// Store writes audit events to Kafka.
type Store struct {
	producer Producer
	topic    string
}

func New(p Producer, topic string) *Store {
	return &Store{producer: p, topic: topic}
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	msg := &producer.Message{
		Topic: s.topic,
		Key:   []byte(event.Action),
		Value: payload,
		Headers: map[string]string{
			"content-type": "application/json",
			"event-id":     event.ID,
			"request-id":   event.RequestID,
		},
	}
	if err := s.producer.Produce(ctx, msg); err != nil {
		return fmt.Errorf("publish audit event: %w", err)
	}
	return nil
}
