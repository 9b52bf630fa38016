package quote

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RateRow is one entry of a bank's rate table: the interest rate offered for a
// mortgage up to the given loan-to-value ceiling, fixed for the given term.
type RateRow struct {
	Ratio int             `json:"ratio"`
	Years int             `json:"years"`
	Rate  decimal.Decimal `json:"interest"`
}

// Quote is a bank's full mortgage rate table as of a point in time. AsOf is the
// sole ordering authority between quotes of the same bank.
type Quote struct {
	BankID  uuid.UUID `json:"bank_id"`
	AsOf    int64     `json:"as_of"`
	Name    string    `json:"name"`
	Rows    []RateRow `json:"rows"`
	Current bool      `json:"current"`
}

// Row returns the rate table entry matching (ratio, years) exactly, or false.
func (q Quote) Row(ratio, years int) (RateRow, bool) {
	for _, r := range q.Rows {
		if r.Ratio == ratio && r.Years == years {
			return r, true
		}
	}
	return RateRow{}, false
}

// Mortgage is one tracked (loan-to-value ceiling, term) pair of a subscriber.
type Mortgage struct {
	Ratio int `json:"ratio"`
	Years int `json:"years"`
}

// Subscriber is one user's interest in one bank's rates. Managed by account
// management; read-only here.
type Subscriber struct {
	BankID    uuid.UUID  `json:"bank_id"`
	UserID    string     `json:"user_id"`
	Email     string     `json:"email"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Mortgages []Mortgage `json:"mortgages"`
}

// DisplayName combines first and last name, falling back to whichever is set.
func (s Subscriber) DisplayName() string {
	first := strings.TrimSpace(s.FirstName)
	last := strings.TrimSpace(s.LastName)
	switch {
	case first == "" && last == "":
		return ""
	case first == "":
		return last
	case last == "":
		return first
	}
	return first + " " + last
}

// RowDelta is the computed change for one tracked mortgage between the retired
// and the newly current quote. A zero Delta means there was no comparable prior
// rate and must render as neutral, not as "unchanged".
type RowDelta struct {
	Years   int             `json:"years"`
	Ratio   int             `json:"ratio"`
	NewRate decimal.Decimal `json:"new_rate"`
	Delta   decimal.Decimal `json:"delta"`
}
