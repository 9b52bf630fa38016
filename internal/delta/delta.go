// Package delta matches a subscriber's tracked mortgages against the retired
// and newly current rate tables and computes the signed interest changes.
package delta

import (
	"github.com/shopspring/decimal"

	"mortgagewatch/internal/quote"
)

// Compute returns one RowDelta per de-duplicated tracked mortgage that has a
// matching entry in current, in the subscriber's iteration order. previous may
// be nil (first promotion for the bank). A mortgage with no entry in current
// yields no row; a mortgage with no entry in previous yields a row with a zero
// delta, which renders as neutral.
func Compute(previous *quote.Quote, current quote.Quote, sub quote.Subscriber) []quote.RowDelta {
	seen := make(map[quote.Mortgage]bool, len(sub.Mortgages))
	var out []quote.RowDelta
	for _, m := range sub.Mortgages {
		if seen[m] {
			continue
		}
		seen[m] = true

		newRow, ok := current.Row(m.Ratio, m.Years)
		if !ok {
			continue
		}

		d := decimal.Zero
		if previous != nil {
			if oldRow, ok := previous.Row(m.Ratio, m.Years); ok {
				d = newRow.Rate.Sub(oldRow.Rate)
			}
		}

		out = append(out, quote.RowDelta{
			Years:   m.Years,
			Ratio:   m.Ratio,
			NewRate: newRow.Rate,
			Delta:   d,
		})
	}
	return out
}
