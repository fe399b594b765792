//go:build integration

package containers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/redpanda"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

const redpandaImage = "docker.redpanda.com/redpandadata/redpanda:v24.2.4"

type KafkaContainer struct {
	Container testcontainers.Container
	Brokers   string
}

func NewKafkaContainer(t *testing.T) *KafkaContainer {
	t.Helper()
	ctx := context.Background()

	rp, err := redpanda.Run(ctx, redpandaImage, redpanda.WithAutoCreateTopics())
	if err != nil {
		t.Fatalf("start redpanda: %v", err)
	}
	seed, err := rp.KafkaSeedBroker(ctx)
	if err != nil {
		_ = rp.Terminate(ctx)
		t.Fatalf("redpanda seed broker: %v", err)
	}
	return &KafkaContainer{Container: rp, Brokers: seed}
}

// CreateTopic is idempotent: an existing topic is not an error.
func (k *KafkaContainer) CreateTopic(ctx context.Context, topic string, partitions int32) error {
	cl, err := kgo.NewClient(kgo.SeedBrokers(k.Brokers))
	if err != nil {
		return err
	}
	defer cl.Close()

	resp, err := kadm.NewClient(cl).CreateTopic(ctx, partitions, 1, nil, topic)
	if err != nil {
		return err
	}
	if errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return nil
	}
	return resp.Err
}

// NewConsumer reads topics from the earliest offset without a group.
func (k *KafkaContainer) NewConsumer(_ string, topics ...string) (*kgo.Client, error) {
	return kgo.NewClient(
		kgo.SeedBrokers(k.Brokers),
		kgo.ConsumeTopics(topics...),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
}

// WaitForRecord returns the first record satisfying match, or nil once
// timeout elapses.
func (k *KafkaContainer) WaitForRecord(ctx context.Context, cl *kgo.Client, timeout time.Duration, match func(*kgo.Record) bool) *kgo.Record {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		fetches := cl.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return nil
		}
		for it := fetches.RecordIter(); !it.Done(); {
			if r := it.Next(); match(r) {
				return r
			}
		}
	}
}
