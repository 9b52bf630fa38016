package scraper

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"mortgagewatch/internal/notify"
	"mortgagewatch/internal/pipeline"
	"mortgagewatch/internal/promotion"
	"mortgagewatch/internal/store"
)

type stubFetcher struct {
	doc      RateDocument
	failures int // fail this many fetches before succeeding
	calls    int
}

func (f *stubFetcher) Fetch(_ context.Context, _ string) (RateDocument, error) {
	f.calls++
	if f.calls <= f.failures {
		return RateDocument{}, errors.New("connection reset")
	}
	return f.doc, nil
}

type nullPub struct{}

func (nullPub) Send(context.Context, string, []byte) (string, error) { return "", nil }

func testDoc(t *testing.T) RateDocument {
	t.Helper()
	return RateDocument{
		FixedInterestRates: []FixedInterestRate{{
			ProductCode: annuityProductCode,
			RevisionPeriods: []RevisionPeriod{
				{Months: 12, LoanToValueRanges: []LoanToValueRange{
					{Interval: &Interval{ToIncluding: intPtr(70)}},
				}},
			},
		}},
	}
}

func intPtr(v int) *int { return &v }

func newPipelineForWorker(st store.Store) *pipeline.Pipeline {
	eng := promotion.New(promotion.Config{}, st)
	d := notify.NewDispatcher(nullPub{}, notify.Config{Topic: "notification-email"})
	return pipeline.New(pipeline.Config{}, st, eng, d)
}

func TestWorker_SubmitsOncePerDay(t *testing.T) {
	st := store.NewMemory()
	fetcher := &stubFetcher{doc: testDoc(t)}
	w := NewWorker(Config{
		Banks: []BankSource{{ID: bankID, Name: "ING", URL: "http://example.test/rates"}},
	}, fetcher, newPipelineForWorker(st))

	w.runOnce(context.Background())
	w.runOnce(context.Background())

	require.Equal(t, 1, fetcher.calls, "second pass on the same day must not fetch")

	hist, err := st.QuoteHistory(bankID)
	require.NoError(t, err)
	require.Len(t, hist, 1)
}

func TestWorker_RetriesFetchWithinBudget(t *testing.T) {
	st := store.NewMemory()
	fetcher := &stubFetcher{doc: testDoc(t), failures: 2}
	w := NewWorker(Config{
		Banks:    []BankSource{{ID: bankID, Name: "ING", URL: "http://example.test/rates"}},
		MaxTries: 5,
	}, fetcher, newPipelineForWorker(st))

	w.runOnce(context.Background())
	require.Equal(t, 3, fetcher.calls)

	hist, err := st.QuoteHistory(bankID)
	require.NoError(t, err)
	require.Len(t, hist, 1)
}

func TestWorker_ExhaustedFetchRetriesNextPass(t *testing.T) {
	st := store.NewMemory()
	fetcher := &stubFetcher{doc: testDoc(t), failures: 3}
	w := NewWorker(Config{
		Banks:    []BankSource{{ID: bankID, Name: "ING", URL: "http://example.test/rates"}},
		MaxTries: 3,
	}, fetcher, newPipelineForWorker(st))

	w.runOnce(context.Background())
	hist, err := st.QuoteHistory(bankID)
	require.NoError(t, err)
	require.Empty(t, hist, "failed scrape must not submit")

	// Next pass the bank is still unsent for today and is fetched again.
	w.runOnce(context.Background())
	require.Equal(t, 4, fetcher.calls)
	hist, err = st.QuoteHistory(bankID)
	require.NoError(t, err)
	require.Len(t, hist, 1)
}
