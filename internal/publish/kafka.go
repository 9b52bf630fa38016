package publish

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Kafka publishes payloads to kafka topics, waiting for all replicas so a
// returned delivery id means the broker accepted the message.
type Kafka struct {
	writer *kafka.Writer
}

func NewKafka(brokers []string) *Kafka {
	return &Kafka{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
			RequiredAcks:           kafka.RequireAll,
		},
	}
}

func (k *Kafka) Send(ctx context.Context, topic string, payload []byte) (string, error) {
	id := uuid.NewString()
	err := k.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(id),
		Value: payload,
	})
	if err != nil {
		return "", fmt.Errorf("kafka write: %w", err)
	}
	return id, nil
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}
