package kafka

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
)

type Publisher struct {
	writer *kafka.Writer
	topic  string
}

// NewPublisher writes to brokers. A non-empty topic replaces the topic every
// event is published under.
func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		},
		topic: topic,
	}
}

// Publish writes event as JSON to topic. Messages are keyed by account id when
// the event carries one so per-account ordering survives partitioning.
func (p *Publisher) Publish(ctx context.Context, topic string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: p.resolveTopic(topic),
		Value: data,
	}
	if k, ok := event.(interface{ PartitionKey() string }); ok {
		msg.Key = []byte(k.PartitionKey())
	}

	return p.writer.WriteMessages(ctx, msg)
}

func (p *Publisher) resolveTopic(topic string) string {
	if p.topic != "" {
		return p.topic
	}
	return topic
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
