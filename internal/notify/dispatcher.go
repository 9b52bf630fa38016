package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"mortgagewatch/internal/delta"
	"mortgagewatch/internal/publish"
	"mortgagewatch/internal/quote"
)

type Config struct {
	Topic   string
	Sender  string
	Subject string
	// RateLimit caps outbound sends; zero PerMinute disables the limiter.
	RateLimit RateLimitConfig
	// SendWait bounds how long a single send waits on the limiter before the
	// subscriber is reported as failed.
	SendWait time.Duration
}

type RateLimitConfig struct {
	PerMinute int
	Burst     int
}

// SendFailure records one subscriber whose notification could not be sent.
type SendFailure struct {
	UserID string
	Email  string
	Err    error
}

// PartialDispatchError reports subscribers that failed without failing the
// batch; the promotion itself already succeeded.
type PartialDispatchError struct {
	Failures []SendFailure
}

func (e *PartialDispatchError) Error() string {
	who := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		who = append(who, f.UserID)
	}
	return fmt.Sprintf("dispatch failed for %d subscriber(s): %s", len(e.Failures), strings.Join(who, ", "))
}

// Dispatcher fans one notification per subscriber out to the messaging
// capability. Idempotency across redeliveries is owned by the promotion
// engine: a redelivered insert is detected as superseded and dispatch is
// never invoked for it again.
type Dispatcher struct {
	pub     publish.Publisher
	cfg     Config
	limiter *TokenBucket
}

func NewDispatcher(pub publish.Publisher, cfg Config) *Dispatcher {
	if cfg.Sender == "" {
		cfg.Sender = DefaultSender
	}
	if cfg.Subject == "" {
		cfg.Subject = DefaultSubject
	}
	if cfg.SendWait <= 0 {
		cfg.SendWait = 2 * time.Second
	}
	return &Dispatcher{
		pub:     pub,
		cfg:     cfg,
		limiter: NewTokenBucket(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst),
	}
}

type sendResult struct {
	sub        quote.Subscriber
	deliveryID string
	err        error
}

// Dispatch sends one message per subscriber and returns how many were
// accepted by the sink. Subscriber sends run concurrently and fail
// independently; failures come back as a *PartialDispatchError. An empty
// subscriber set is a no-op, not an error.
func (d *Dispatcher) Dispatch(ctx context.Context, previous *quote.Quote, current quote.Quote, subscribers []quote.Subscriber) (int, error) {
	if len(subscribers) == 0 {
		return 0, nil
	}

	results := make(chan sendResult, len(subscribers))
	var g errgroup.Group
	for _, sub := range subscribers {
		sub := sub
		g.Go(func() error {
			results <- d.send(ctx, previous, current, sub)
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	sent := 0
	var failures []SendFailure
	for r := range results {
		if r.err != nil {
			log.Printf("notify: send failed user=%s err=%v", r.sub.UserID, r.err)
			failures = append(failures, SendFailure{UserID: r.sub.UserID, Email: r.sub.Email, Err: r.err})
			continue
		}
		sent++
		log.Printf("notify: sent user=%s delivery_id=%s", r.sub.UserID, r.deliveryID)
	}

	if len(failures) > 0 {
		return sent, &PartialDispatchError{Failures: failures}
	}
	return sent, nil
}

func (d *Dispatcher) send(ctx context.Context, previous *quote.Quote, current quote.Quote, sub quote.Subscriber) sendResult {
	if !d.limiter.WaitForToken(d.cfg.SendWait) {
		return sendResult{sub: sub, err: fmt.Errorf("outbound rate limit exceeded")}
	}

	rows := delta.Compute(previous, current, sub)
	msg := buildMessage(d.cfg.Sender, d.cfg.Subject, current, sub, rows)
	payload, err := json.Marshal(msg)
	if err != nil {
		return sendResult{sub: sub, err: fmt.Errorf("marshal message: %w", err)}
	}

	id, err := d.pub.Send(ctx, d.cfg.Topic, payload)
	if err != nil {
		return sendResult{sub: sub, err: err}
	}
	return sendResult{sub: sub, deliveryID: id}
}
