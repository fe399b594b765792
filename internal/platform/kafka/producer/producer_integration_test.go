//go:build integration

package producer_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"kycproxy/internal/platform/config"
	"kycproxy/internal/platform/kafka/producer"
	audit "kycproxy/pkg/platform/audit"
	auditkafka "kycproxy/pkg/platform/audit/store/kafka"
	"kycproxy/pkg/testutil/containers"
)

type ProducerIntegrationSuite struct {
	suite.Suite
	kafka    *containers.KafkaContainer
	producer *producer.Producer
}

func TestProducerIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(ProducerIntegrationSuite))
}

func (s *ProducerIntegrationSuite) SetupSuite() {
	s.kafka = containers.GetManager().GetKafka(s.T())

	prod, err := producer.New(config.Kafka{
		Brokers:         s.kafka.Brokers,
		Acks:            "all",
		Retries:         3,
		DeliveryTimeout: 10 * time.Second,
	}, nil)
	s.Require().NoError(err)
	s.producer = prod
}

func (s *ProducerIntegrationSuite) TearDownSuite() {
	if s.producer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.producer.Close(ctx)
	}
}

func (s *ProducerIntegrationSuite) TestHealth() {
	s.Require().NoError(s.producer.Health(context.Background()))
}

// Produce returns only after the broker acknowledged the record.
func (s *ProducerIntegrationSuite) TestAuditSinkDeliversEvent() {
	ctx := context.Background()
	topic := "kycproxy.audit.test"
	s.Require().NoError(s.kafka.CreateTopic(ctx, topic, 1))

	sink := auditkafka.New(s.producer, topic)
	event := audit.Event{
		Timestamp: time.Now().UTC().Truncate(time.Millisecond),
		Action:    audit.ActionDocumentVerified,
		Subject:   "0a1b2c3d",
		RequestID: "req-integration",
	}
	s.Require().NoError(sink.Append(ctx, event))

	consumer, err := s.kafka.NewConsumer("audit-test", topic)
	s.Require().NoError(err)
	defer consumer.Close()

	rec := s.kafka.WaitForRecord(ctx, consumer, 15*time.Second, func(r *kgo.Record) bool {
		return string(r.Key) == string(audit.ActionDocumentVerified)
	})
	s.Require().NotNil(rec, "audit record not delivered")

	var got audit.Event
	s.Require().NoError(json.Unmarshal(rec.Value, &got))
	s.Equal(event.Subject, got.Subject)
	s.Equal(event.RequestID, got.RequestID)
	s.True(event.Timestamp.Equal(got.Timestamp))
}

func (s *ProducerIntegrationSuite) TestProduceAfterCloseFails() {
	prod, err := producer.New(config.Kafka{Brokers: s.kafka.Brokers, Acks: "1"}, nil)
	s.Require().NoError(err)
	s.Require().NoError(prod.Close(context.Background()))

	err = prod.Produce(context.Background(), &producer.Message{Topic: "x", Value: []byte("y")})
	s.ErrorIs(err, producer.ErrClosed)
}
