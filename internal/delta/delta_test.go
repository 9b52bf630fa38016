package delta

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"mortgagewatch/internal/quote"
)

var bankID = uuid.MustParse("E798B0C6-5065-4804-ABD1-C8C4761CB745")

func q(asOf int64, rows ...quote.RateRow) quote.Quote {
	return quote.Quote{BankID: bankID, AsOf: asOf, Name: "ING", Rows: rows}
}

func row(ratio, years int, rate string) quote.RateRow {
	return quote.RateRow{Ratio: ratio, Years: years, Rate: decimal.RequireFromString(rate)}
}

func TestCompute_SignedDelta(t *testing.T) {
	prev := q(100, row(55, 1, "4.76"))
	cur := q(150, row(55, 1, "4.90"))
	sub := quote.Subscriber{BankID: bankID, Mortgages: []quote.Mortgage{{Ratio: 55, Years: 1}}}

	out := Compute(&prev, cur, sub)
	require.Len(t, out, 1)
	require.Equal(t, 55, out[0].Ratio)
	require.Equal(t, 1, out[0].Years)
	require.True(t, out[0].NewRate.Equal(decimal.RequireFromString("4.90")), "new rate: %s", out[0].NewRate)
	require.True(t, out[0].Delta.Equal(decimal.RequireFromString("0.14")), "delta: %s", out[0].Delta)
}

func TestCompute_NegativeDelta(t *testing.T) {
	prev := q(100, row(70, 10, "4.95"))
	cur := q(150, row(70, 10, "4.88"))
	sub := quote.Subscriber{BankID: bankID, Mortgages: []quote.Mortgage{{Ratio: 70, Years: 10}}}

	out := Compute(&prev, cur, sub)
	require.Len(t, out, 1)
	require.True(t, out[0].Delta.Equal(decimal.RequireFromString("-0.07")), "delta: %s", out[0].Delta)
}

func TestCompute_NoPriorRate_ZeroDeltaRowStillEmitted(t *testing.T) {
	prev := q(100, row(55, 1, "4.76"))
	cur := q(150, row(55, 1, "4.90"), row(65, 5, "5.10"))
	sub := quote.Subscriber{BankID: bankID, Mortgages: []quote.Mortgage{{Ratio: 65, Years: 5}}}

	out := Compute(&prev, cur, sub)
	require.Len(t, out, 1)
	require.True(t, out[0].NewRate.Equal(decimal.RequireFromString("5.10")))
	require.True(t, out[0].Delta.IsZero(), "delta must be the neutral sentinel, got %s", out[0].Delta)
}

func TestCompute_NilPrevious_AllDeltasZero(t *testing.T) {
	cur := q(150, row(55, 1, "4.90"), row(70, 1, "4.95"))
	sub := quote.Subscriber{BankID: bankID, Mortgages: []quote.Mortgage{
		{Ratio: 55, Years: 1},
		{Ratio: 70, Years: 1},
	}}

	out := Compute(nil, cur, sub)
	require.Len(t, out, 2)
	for _, d := range out {
		require.True(t, d.Delta.IsZero())
	}
}

func TestCompute_NoMatchInCurrent_NoRowFabricated(t *testing.T) {
	prev := q(100, row(55, 1, "4.76"))
	cur := q(150, row(55, 1, "4.90"))
	sub := quote.Subscriber{BankID: bankID, Mortgages: []quote.Mortgage{
		{Ratio: 55, Years: 1},
		{Ratio: 90, Years: 20}, // not quoted by the bank
	}}

	out := Compute(&prev, cur, sub)
	require.Len(t, out, 1)
	require.Equal(t, 55, out[0].Ratio)
}

func TestCompute_DuplicateMortgagesCollapse(t *testing.T) {
	prev := q(100, row(70, 1, "4.88"))
	cur := q(150, row(70, 1, "4.95"))
	sub := quote.Subscriber{BankID: bankID, Mortgages: []quote.Mortgage{
		{Ratio: 70, Years: 1},
		{Ratio: 70, Years: 1},
	}}

	out := Compute(&prev, cur, sub)
	require.Len(t, out, 1)
	require.True(t, out[0].Delta.Equal(decimal.RequireFromString("0.07")), "delta: %s", out[0].Delta)
}

func TestCompute_OrderFollowsSubscriber(t *testing.T) {
	cur := q(150, row(55, 1, "4.90"), row(65, 1, "4.92"), row(70, 1, "4.95"))
	sub := quote.Subscriber{BankID: bankID, Mortgages: []quote.Mortgage{
		{Ratio: 70, Years: 1},
		{Ratio: 55, Years: 1},
		{Ratio: 65, Years: 1},
	}}

	out := Compute(nil, cur, sub)
	require.Len(t, out, 3)
	require.Equal(t, []int{70, 55, 65}, []int{out[0].Ratio, out[1].Ratio, out[2].Ratio})
}
