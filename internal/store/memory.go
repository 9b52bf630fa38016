package store

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"mortgagewatch/internal/quote"
)

// Memory is a mutex-guarded in-process Store, used by tests and as a fallback
// when no sqlite path is configured.
type Memory struct {
	mu     sync.Mutex
	quotes map[string]quote.Quote      // part "quotes", keyed by quoteKey
	cur    map[string]quote.Quote      // part "current", keyed by quoteKey
	subs   map[string]quote.Subscriber // keyed by subscriberKey
}

func NewMemory() *Memory {
	return &Memory{
		quotes: make(map[string]quote.Quote),
		cur:    make(map[string]quote.Quote),
		subs:   make(map[string]quote.Subscriber),
	}
}

func (m *Memory) Close() error { return nil }

func copyQuote(q quote.Quote) quote.Quote {
	out := q
	out.Rows = append([]quote.RateRow(nil), q.Rows...)
	return out
}

func (m *Memory) CreateQuote(q quote.Quote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := quoteKey(q.BankID, q.AsOf)
	if _, ok := m.quotes[key]; ok {
		return ErrExists
	}
	m.quotes[key] = copyQuote(q)
	return nil
}

func (m *Memory) GetQuote(bank uuid.UUID, asOf int64) (*quote.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quotes[quoteKey(bank, asOf)]
	if !ok {
		return nil, ErrNotFound
	}
	out := copyQuote(q)
	return &out, nil
}

func (m *Memory) QuoteHistory(bank uuid.UUID) ([]quote.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return collectByBank(m.quotes, bank), nil
}

func collectByBank(part map[string]quote.Quote, bank uuid.UUID) []quote.Quote {
	var out []quote.Quote
	for _, q := range part {
		if q.BankID == bank {
			out = append(out, copyQuote(q))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AsOf > out[j].AsOf })
	return out
}

func (m *Memory) GetCurrent(bank uuid.UUID) (*quote.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := collectByBank(m.cur, bank)
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return &out[0], nil
}

func (m *Memory) PutCurrent(q quote.Quote, expectedAsOf int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var have int64
	for _, c := range m.cur {
		if c.BankID == q.BankID && c.AsOf > have {
			have = c.AsOf
		}
	}
	if have != expectedAsOf {
		return ErrConflict
	}
	q.Current = true
	m.cur[quoteKey(q.BankID, q.AsOf)] = copyQuote(q)
	return nil
}

func (m *Memory) DeleteCurrent(bank uuid.UUID, asOf int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cur, quoteKey(bank, asOf))
	return nil
}

func (m *Memory) GetSubscriber(bank uuid.UUID, user string) (*quote.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[subscriberKey(bank, user)]
	if !ok {
		return nil, ErrNotFound
	}
	out := s
	out.Mortgages = append([]quote.Mortgage(nil), s.Mortgages...)
	return &out, nil
}

func (m *Memory) SubscribersByBank(bank uuid.UUID) ([]quote.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k, s := range m.subs {
		if s.BankID == bank {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make([]quote.Subscriber, 0, len(keys))
	for _, k := range keys {
		s := m.subs[k]
		s.Mortgages = append([]quote.Mortgage(nil), s.Mortgages...)
		out = append(out, s)
	}
	return out, nil
}

func (m *Memory) PutSubscriber(s quote.Subscriber) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.Mortgages = append([]quote.Mortgage(nil), s.Mortgages...)
	m.subs[subscriberKey(s.BankID, s.UserID)] = s
	return nil
}
