package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"

	"github.com/segmentio/kafka-go"
)

// Consumer reads QuoteInserted events from a kafka topic within a consumer
// group. A message is committed only after the handler accepts it; handler
// errors leave the offset uncommitted so the broker redelivers.
type Consumer struct {
	reader  *kafka.Reader
	handler Handler
}

func NewConsumer(brokers []string, topic, group string, h Handler) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  group,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
		handler: h,
	}
}

func (c *Consumer) Run(ctx context.Context) error {
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		var evt QuoteInserted
		if err := json.Unmarshal(m.Value, &evt); err != nil {
			// Undecodable events can never succeed; commit past them.
			log.Printf("events: drop undecodable message offset=%d err=%v", m.Offset, err)
			if err := c.reader.CommitMessages(ctx, m); err != nil {
				log.Printf("events: commit error: %v", err)
			}
			continue
		}

		if err := c.handler(ctx, evt); err != nil {
			log.Printf("events: handler failed event=%s err=%v (left for redelivery)", evt.EventID, err)
			continue
		}
		if err := c.reader.CommitMessages(ctx, m); err != nil {
			log.Printf("events: commit error: %v", err)
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
