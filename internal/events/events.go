// Package events carries the "quote inserted" trigger between the ingestion
// path and the promotion pipeline. Delivery is at-least-once; ordering is not
// guaranteed, the quote's as_of is the sole ordering authority downstream.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"mortgagewatch/internal/publish"
	"mortgagewatch/internal/quote"
)

// QuoteInserted announces a newly created, non-current historical quote.
type QuoteInserted struct {
	EventID string      `json:"event_id"`
	Quote   quote.Quote `json:"quote"`
}

func NewQuoteInserted(q quote.Quote) QuoteInserted {
	return QuoteInserted{EventID: uuid.NewString(), Quote: q}
}

// Handler processes one event. A non-nil error marks the event as failed and
// eligible for redelivery.
type Handler func(ctx context.Context, evt QuoteInserted) error

// Bus is the ingestion-side publish half of the trigger.
type Bus interface {
	Publish(ctx context.Context, evt QuoteInserted) error
}

// Inline runs the handler synchronously in-process. Used when no brokers are
// configured, and by tests.
type Inline struct {
	handler Handler
}

func NewInline(h Handler) *Inline {
	return &Inline{handler: h}
}

func (b *Inline) Publish(ctx context.Context, evt QuoteInserted) error {
	return b.handler(ctx, evt)
}

// PublisherBus emits events through an outbound publisher (kafka in
// production); a Consumer on the same topic drives the handler.
type PublisherBus struct {
	pub   publish.Publisher
	topic string
}

func NewPublisherBus(pub publish.Publisher, topic string) *PublisherBus {
	return &PublisherBus{pub: pub, topic: topic}
}

func (b *PublisherBus) Publish(ctx context.Context, evt QuoteInserted) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := b.pub.Send(ctx, b.topic, payload); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}
