package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"mortgagewatch/internal/quote"
)

// Logical partitions of the key-value capability. Historical quotes are
// append-only; the current partition is the CurrentQuotePointer projection and
// holds one row per bank outside the promotion window.
const (
	PartQuotes      = "quotes"
	PartCurrent     = "current"
	PartSubscribers = "subscribers"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrExists   = errors.New("record already exists")
	// ErrConflict marks a lost conditional write: the current-partition state
	// changed between read and write and the caller must re-read.
	ErrConflict = errors.New("current quote changed since read")
)

// Store is the storage capability behind QuoteStore and SubscriberStore.
type Store interface {
	// CreateQuote writes a historical quote row. Idempotent per (bank, as_of):
	// a duplicate insert returns ErrExists and leaves the stored row untouched.
	CreateQuote(q quote.Quote) error
	GetQuote(bank uuid.UUID, asOf int64) (*quote.Quote, error)
	// QuoteHistory returns all historical quotes for a bank, newest first.
	QuoteHistory(bank uuid.UUID) ([]quote.Quote, error)

	// GetCurrent returns the bank's current quote, or ErrNotFound. If the
	// promotion window left more than one row in the partition, the newest
	// as_of wins.
	GetCurrent(bank uuid.UUID) (*quote.Quote, error)
	// PutCurrent writes q into the current partition, conditional on the
	// bank's newest current as_of still being expectedAsOf (0 when the caller
	// observed no current quote). Returns ErrConflict on a lost race.
	PutCurrent(q quote.Quote, expectedAsOf int64) error
	// DeleteCurrent retires one row of the current partition.
	DeleteCurrent(bank uuid.UUID, asOf int64) error

	GetSubscriber(bank uuid.UUID, user string) (*quote.Subscriber, error)
	SubscribersByBank(bank uuid.UUID) ([]quote.Subscriber, error)
	PutSubscriber(s quote.Subscriber) error

	Close() error
}

func bankKey(id uuid.UUID) string {
	return strings.ToUpper(id.String())
}

func quoteKey(id uuid.UUID, asOf int64) string {
	return fmt.Sprintf("%s#%012d", bankKey(id), asOf)
}

func subscriberKey(id uuid.UUID, user string) string {
	return fmt.Sprintf("%s#%s", bankKey(id), user)
}
