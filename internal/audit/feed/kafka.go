package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"seedtrace/internal/audit"
)

// KafkaProducer writes audit records to a topic keyed by entity, so every
// record of one entity lands on the same partition in chain order.
type KafkaProducer struct {
	client *kgo.Client
	topic  string
}

func NewKafkaProducer(client *kgo.Client, topic string) *KafkaProducer {
	return &KafkaProducer{client: client, topic: topic}
}

// NewClient builds a franz-go client for the given seed brokers.
func NewClient(brokers []string) (*kgo.Client, error) {
	if len(brokers) == 0 {
		return nil, errors.New("no kafka brokers configured")
	}
	return kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(0),
	)
}

func (p *KafkaProducer) Publish(ctx context.Context, records []*audit.Record) error {
	msgs := make([]*kgo.Record, 0, len(records))
	for _, rec := range records {
		value, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode audit record %d: %w", rec.ID, err)
		}
		msgs = append(msgs, &kgo.Record{
			Topic: p.topic,
			Key:   []byte(rec.EntityType + ":" + rec.EntityID),
			Value: value,
			Headers: []kgo.RecordHeader{
				{Key: "audit-id", Value: []byte(strconv.FormatInt(rec.ID, 10))},
				{Key: "operation", Value: []byte(rec.Operation)},
			},
		})
	}
	if err := p.client.ProduceSync(ctx, msgs...).FirstErr(); err != nil {
		return fmt.Errorf("produce audit records: %w", err)
	}
	return nil
}

// EnsureTopic creates the feed topic when it does not exist yet.
func EnsureTopic(ctx context.Context, client *kgo.Client, topic string, partitions int32, replicas int16) error {
	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopics(ctx, partitions, replicas, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}
