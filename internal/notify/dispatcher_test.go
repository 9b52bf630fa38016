package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"mortgagewatch/internal/quote"
)

var bankID = uuid.MustParse("E798B0C6-5065-4804-ABD1-C8C4761CB745")

type capturePub struct {
	mu       sync.Mutex
	payloads [][]byte
	topics   []string
	failTo   map[string]error // keyed by message "to" address
}

func (p *capturePub) Send(_ context.Context, topic string, payload []byte) (string, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return "", err
	}
	if err, ok := p.failTo[msg.To]; ok {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload)
	return uuid.NewString(), nil
}

func (p *capturePub) messages(t *testing.T) []Message {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Message, 0, len(p.payloads))
	for _, raw := range p.payloads {
		var msg Message
		require.NoError(t, json.Unmarshal(raw, &msg))
		out = append(out, msg)
	}
	return out
}

func subscriber(user, email string, mortgages ...quote.Mortgage) quote.Subscriber {
	return quote.Subscriber{
		BankID:    bankID,
		UserID:    user,
		Email:     email,
		FirstName: "Jane",
		LastName:  "Doe",
		Mortgages: mortgages,
	}
}

func currentQuote() quote.Quote {
	return quote.Quote{
		BankID: bankID,
		AsOf:   150,
		Name:   "ING",
		Rows: []quote.RateRow{
			{Ratio: 55, Years: 1, Rate: decimal.RequireFromString("4.90")},
			{Ratio: 70, Years: 1, Rate: decimal.RequireFromString("4.95")},
		},
		Current: true,
	}
}

func TestDispatch_NoSubscribersIsNoop(t *testing.T) {
	pub := &capturePub{}
	d := NewDispatcher(pub, Config{Topic: "notification-email"})

	sent, err := d.Dispatch(context.Background(), nil, currentQuote(), nil)
	require.NoError(t, err)
	require.Zero(t, sent)
	require.Empty(t, pub.payloads)
}

func TestDispatch_OneMessagePerSubscriber(t *testing.T) {
	pub := &capturePub{}
	d := NewDispatcher(pub, Config{Topic: "notification-email"})

	subs := []quote.Subscriber{
		subscriber("user-1", "one@example.com", quote.Mortgage{Ratio: 55, Years: 1}),
		subscriber("user-2", "two@example.com", quote.Mortgage{Ratio: 70, Years: 1}),
		subscriber("user-3", "three@example.com", quote.Mortgage{Ratio: 55, Years: 1}),
	}
	sent, err := d.Dispatch(context.Background(), nil, currentQuote(), subs)
	require.NoError(t, err)
	require.Equal(t, 3, sent)

	seen := map[string]bool{}
	for _, msg := range pub.messages(t) {
		require.Equal(t, "notification-email", pub.topics[0])
		require.False(t, seen[msg.To], "duplicate message to %s", msg.To)
		seen[msg.To] = true
	}
	require.Len(t, seen, 3)
}

func TestDispatch_PartialFailureIsolated(t *testing.T) {
	pub := &capturePub{failTo: map[string]error{
		"two@example.com": errors.New("mailbox unavailable"),
	}}
	d := NewDispatcher(pub, Config{Topic: "notification-email"})

	subs := []quote.Subscriber{
		subscriber("user-1", "one@example.com", quote.Mortgage{Ratio: 55, Years: 1}),
		subscriber("user-2", "two@example.com", quote.Mortgage{Ratio: 70, Years: 1}),
		subscriber("user-3", "three@example.com", quote.Mortgage{Ratio: 70, Years: 1}),
	}
	sent, err := d.Dispatch(context.Background(), nil, currentQuote(), subs)
	require.Equal(t, 2, sent)

	var partial *PartialDispatchError
	require.ErrorAs(t, err, &partial)
	require.Len(t, partial.Failures, 1)
	require.Equal(t, "user-2", partial.Failures[0].UserID)
	require.Equal(t, "two@example.com", partial.Failures[0].Email)
}

func TestDispatch_MessageContents(t *testing.T) {
	pub := &capturePub{}
	d := NewDispatcher(pub, Config{Topic: "notification-email"})

	prev := currentQuote()
	prev.AsOf = 100
	prev.Rows = []quote.RateRow{
		{Ratio: 70, Years: 1, Rate: decimal.RequireFromString("4.88")},
	}

	subs := []quote.Subscriber{
		subscriber("user-1", "one@example.com", quote.Mortgage{Ratio: 70, Years: 1}),
	}
	sent, err := d.Dispatch(context.Background(), &prev, currentQuote(), subs)
	require.NoError(t, err)
	require.Equal(t, 1, sent)

	msgs := pub.messages(t)
	require.Len(t, msgs, 1)
	msg := msgs[0]
	require.Equal(t, TemplateName, msg.Template)
	require.Equal(t, DefaultSender, msg.From)
	require.Equal(t, DefaultSubject, msg.Subject)
	require.Equal(t, "one@example.com", msg.To)
	require.Equal(t, "Jane Doe", msg.ToName)
	require.Equal(t, "Jane Doe", msg.Params.FullName)
	require.Equal(t, "ING", msg.Params.BankName)
	require.Len(t, msg.Params.Rows, 1)
	require.True(t, msg.Params.Rows[0].NewRate.Equal(decimal.RequireFromString("4.95")))
	require.True(t, msg.Params.Rows[0].Delta.Equal(decimal.RequireFromString("0.07")), "delta: %s", msg.Params.Rows[0].Delta)
}

func TestDispatch_SubscriberWithNoMatchingRowsStillNotified(t *testing.T) {
	pub := &capturePub{}
	d := NewDispatcher(pub, Config{Topic: "notification-email"})

	subs := []quote.Subscriber{
		subscriber("user-1", "one@example.com", quote.Mortgage{Ratio: 90, Years: 30}),
	}
	sent, err := d.Dispatch(context.Background(), nil, currentQuote(), subs)
	require.NoError(t, err)
	require.Equal(t, 1, sent)

	msgs := pub.messages(t)
	require.Len(t, msgs, 1)
	require.Empty(t, msgs[0].Params.Rows)
}

func TestDispatch_RateLimitTimeoutReportsFailure(t *testing.T) {
	pub := &capturePub{}
	d := NewDispatcher(pub, Config{
		Topic:     "notification-email",
		RateLimit: RateLimitConfig{PerMinute: 1, Burst: 1},
		SendWait:  10 * time.Millisecond,
	})

	subs := []quote.Subscriber{
		subscriber("user-1", "one@example.com", quote.Mortgage{Ratio: 55, Years: 1}),
		subscriber("user-2", "two@example.com", quote.Mortgage{Ratio: 55, Years: 1}),
	}
	sent, err := d.Dispatch(context.Background(), nil, currentQuote(), subs)
	require.Equal(t, 1, sent)

	var partial *PartialDispatchError
	require.ErrorAs(t, err, &partial)
	require.Len(t, partial.Failures, 1)
}
