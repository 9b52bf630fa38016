// Package scraper periodically pulls a bank's published rate document, parses
// the annuity product's fixed-rate table into a Quote and submits it through
// the ingestion path.
package scraper

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"mortgagewatch/internal/quote"
)

// annuityProductCode identifies the annuity mortgage product inside a rate
// document; other products on the page are ignored.
const annuityProductCode = "IN002"

// RateDocument mirrors the JSON rate collection bank sites embed.
type RateDocument struct {
	FixedInterestRates []FixedInterestRate `json:"fixedInterestRates"`
}

type FixedInterestRate struct {
	ProductCode     string           `json:"productCode"`
	RevisionPeriods []RevisionPeriod `json:"revisionPeriods"`
}

type RevisionPeriod struct {
	Months            int                `json:"months"`
	LoanToValueRanges []LoanToValueRange `json:"loanToValueRanges"`
}

type LoanToValueRange struct {
	InterestRate decimal.Decimal `json:"interestRate"`
	Interval     *Interval       `json:"interval"`
}

type Interval struct {
	ToIncluding *int `json:"toIncluding"`
}

// Parse extracts the annuity rate table from doc into a quote dated asOf.
// Ranges without an upper loan-to-value bound are skipped; fixed terms are
// published in months and stored in years.
func Parse(bankID uuid.UUID, bankName string, asOf int64, doc RateDocument) (*quote.Quote, error) {
	var fixed *FixedInterestRate
	for i := range doc.FixedInterestRates {
		if doc.FixedInterestRates[i].ProductCode == annuityProductCode {
			fixed = &doc.FixedInterestRates[i]
			break
		}
	}
	if fixed == nil {
		return nil, fmt.Errorf("product code %q not found in rate document", annuityProductCode)
	}

	q := &quote.Quote{
		BankID: bankID,
		Name:   bankName,
		AsOf:   asOf,
	}
	for _, period := range fixed.RevisionPeriods {
		for _, ltv := range period.LoanToValueRanges {
			if ltv.Interval == nil || ltv.Interval.ToIncluding == nil {
				continue
			}
			q.Rows = append(q.Rows, quote.RateRow{
				Ratio: *ltv.Interval.ToIncluding,
				Years: period.Months / 12,
				Rate:  ltv.InterestRate,
			})
		}
	}
	if len(q.Rows) == 0 {
		return nil, fmt.Errorf("rate document has no usable loan-to-value ranges")
	}
	return q, nil
}
