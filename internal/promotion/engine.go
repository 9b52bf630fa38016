package promotion

import (
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"mortgagewatch/internal/quote"
	"mortgagewatch/internal/store"
)

var (
	// ErrMalformed marks a quote rejected before any store interaction.
	ErrMalformed = errors.New("malformed quote")
	// ErrRaceExhausted is returned when every conditional write attempt lost
	// to a concurrent promotion for the same bank.
	ErrRaceExhausted = errors.New("promotion attempts exhausted")
)

type Outcome string

const (
	// OutcomeAlreadyCurrent: the producer pre-marked the quote current
	// (administrative insert); no promotion action is needed.
	OutcomeAlreadyCurrent Outcome = "already_current"
	// OutcomeSuperseded: the incoming quote is stale or a redelivery.
	OutcomeSuperseded Outcome = "superseded"
	OutcomePromoted   Outcome = "promoted"
)

type Result struct {
	Outcome  Outcome
	Previous *quote.Quote
	Current  *quote.Quote
}

type Config struct {
	// MaxAttempts bounds the read/conditional-write loop under contention.
	MaxAttempts int
}

// Engine decides whether an incoming quote supersedes the bank's current one
// and performs the atomic swap.
type Engine struct {
	cfg   Config
	store store.Store
}

func New(cfg Config, st store.Store) *Engine {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &Engine{cfg: cfg, store: st}
}

// TryPromote promotes incoming if its as_of is strictly newer than the bank's
// current quote. The current-partition write happens before the retirement
// delete, so a crash in between leaves the new quote current rather than the
// bank with none. A failed retirement is logged and swallowed: the stale row
// loses to the newer as_of on every read, so the leak is benign.
func (e *Engine) TryPromote(incoming quote.Quote) (Result, error) {
	if incoming.BankID == uuid.Nil {
		return Result{}, fmt.Errorf("%w: missing bank id", ErrMalformed)
	}
	if incoming.AsOf <= 0 {
		return Result{}, fmt.Errorf("%w: as_of=%d", ErrMalformed, incoming.AsOf)
	}
	if incoming.Current {
		return Result{Outcome: OutcomeAlreadyCurrent, Current: &incoming}, nil
	}

	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		existing, err := e.store.GetCurrent(incoming.BankID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return Result{}, fmt.Errorf("read current: %w", err)
		}

		var expected int64
		if existing != nil {
			if existing.AsOf >= incoming.AsOf {
				return Result{Outcome: OutcomeSuperseded, Current: existing}, nil
			}
			expected = existing.AsOf
		}

		if err := e.store.PutCurrent(incoming, expected); err != nil {
			if errors.Is(err, store.ErrConflict) {
				log.Printf("promotion: lost race bank=%s as_of=%d attempt=%d", incoming.BankID, incoming.AsOf, attempt)
				continue
			}
			return Result{}, fmt.Errorf("write current: %w", err)
		}

		if existing != nil {
			if err := e.store.DeleteCurrent(incoming.BankID, existing.AsOf); err != nil {
				log.Printf("promotion: retire old current failed bank=%s as_of=%d err=%v", incoming.BankID, existing.AsOf, err)
			}
		}

		promoted := incoming
		promoted.Current = true
		return Result{Outcome: OutcomePromoted, Previous: existing, Current: &promoted}, nil
	}

	return Result{}, fmt.Errorf("bank %s as_of %d: %w", incoming.BankID, incoming.AsOf, ErrRaceExhausted)
}
