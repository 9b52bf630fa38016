// Package pipeline wires ingestion, promotion and notification fan-out
// together: a submitted quote becomes a historical row and a QuoteInserted
// event; the event handler promotes it if newer and notifies the bank's
// subscribers.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"mortgagewatch/internal/events"
	"mortgagewatch/internal/notify"
	"mortgagewatch/internal/promotion"
	"mortgagewatch/internal/quote"
	"mortgagewatch/internal/store"
)

type Config struct {
	// SubscriberRetries bounds retries of the subscriber-list read before the
	// event is surfaced as failed (eligible for redelivery).
	SubscriberRetries int
	RetryBackoff      time.Duration
}

type Pipeline struct {
	cfg        Config
	store      store.Store
	engine     *promotion.Engine
	dispatcher *notify.Dispatcher

	bus events.Bus
}

func New(cfg Config, st store.Store, eng *promotion.Engine, d *notify.Dispatcher) *Pipeline {
	if cfg.SubscriberRetries <= 0 {
		cfg.SubscriberRetries = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 200 * time.Millisecond
	}
	return &Pipeline{cfg: cfg, store: st, engine: eng, dispatcher: d}
}

// SetBus installs the trigger used to announce inserted quotes. Set after
// construction because the bus handler closes over the pipeline itself.
func (p *Pipeline) SetBus(bus events.Bus) {
	p.bus = bus
}

// SubmitQuote is the ingestion path. Idempotent per (bank, as_of): when a
// quote for that key already exists it is returned unchanged and no event is
// emitted. created reports whether a new historical row was written.
func (p *Pipeline) SubmitQuote(ctx context.Context, q quote.Quote) (quote.Quote, bool, error) {
	if q.BankID == uuid.Nil {
		return quote.Quote{}, false, fmt.Errorf("%w: missing bank id", promotion.ErrMalformed)
	}
	if q.AsOf <= 0 {
		return quote.Quote{}, false, fmt.Errorf("%w: as_of=%d", promotion.ErrMalformed, q.AsOf)
	}

	if existing, err := p.store.GetQuote(q.BankID, q.AsOf); err == nil {
		return *existing, false, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return quote.Quote{}, false, fmt.Errorf("read quote: %w", err)
	}

	q.Current = false
	if err := p.store.CreateQuote(q); err != nil {
		if errors.Is(err, store.ErrExists) {
			existing, gerr := p.store.GetQuote(q.BankID, q.AsOf)
			if gerr != nil {
				return quote.Quote{}, false, fmt.Errorf("read quote after conflict: %w", gerr)
			}
			return *existing, false, nil
		}
		return quote.Quote{}, false, fmt.Errorf("create quote: %w", err)
	}

	if p.bus != nil {
		if err := p.bus.Publish(ctx, events.NewQuoteInserted(q)); err != nil {
			// The historical row exists; the trigger's own redelivery (or the
			// next submission) will pick it up.
			log.Printf("pipeline: publish inserted event failed bank=%s as_of=%d err=%v", q.BankID, q.AsOf, err)
		}
	}
	return q, true, nil
}

// HandleInserted is the at-least-once event handler. A nil return commits the
// event; an error leaves it for redelivery, which is safe because an already
// promoted as_of comes back as superseded.
func (p *Pipeline) HandleInserted(ctx context.Context, evt events.QuoteInserted) error {
	res, err := p.engine.TryPromote(evt.Quote)
	if err != nil {
		if errors.Is(err, promotion.ErrMalformed) {
			log.Printf("pipeline: drop malformed quote event=%s err=%v", evt.EventID, err)
			return nil
		}
		return fmt.Errorf("promote bank=%s as_of=%d: %w", evt.Quote.BankID, evt.Quote.AsOf, err)
	}

	if res.Outcome != promotion.OutcomePromoted {
		log.Printf("pipeline: no promotion bank=%s as_of=%d outcome=%s", evt.Quote.BankID, evt.Quote.AsOf, res.Outcome)
		return nil
	}

	subs, err := p.subscribers(res.Current.BankID)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		log.Printf("pipeline: no subscribers to notify bank=%s", res.Current.BankID)
		return nil
	}
	log.Printf("pipeline: notifying %d subscriber(s) bank=%s as_of=%d", len(subs), res.Current.BankID, res.Current.AsOf)

	sent, err := p.dispatcher.Dispatch(ctx, res.Previous, *res.Current, subs)
	if err != nil {
		var partial *notify.PartialDispatchError
		if errors.As(err, &partial) {
			// The promotion stands; failed sends are left to the messaging
			// capability's own retry policy.
			log.Printf("pipeline: partial dispatch bank=%s sent=%d err=%v", res.Current.BankID, sent, partial)
			return nil
		}
		return fmt.Errorf("dispatch: %w", err)
	}
	log.Printf("pipeline: dispatched bank=%s as_of=%d sent=%d", res.Current.BankID, res.Current.AsOf, sent)
	return nil
}

func (p *Pipeline) subscribers(bank uuid.UUID) ([]quote.Subscriber, error) {
	var lastErr error
	for attempt := 1; attempt <= p.cfg.SubscriberRetries; attempt++ {
		subs, err := p.store.SubscribersByBank(bank)
		if err == nil {
			return subs, nil
		}
		lastErr = err
		log.Printf("pipeline: read subscribers failed bank=%s attempt=%d err=%v", bank, attempt, err)
		time.Sleep(p.cfg.RetryBackoff * time.Duration(attempt))
	}
	return nil, fmt.Errorf("read subscribers for bank %s: %w", bank, lastErr)
}
