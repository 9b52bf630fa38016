package scraper

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"mortgagewatch/internal/pipeline"
)

// BankSource is one scraped bank: where to fetch and how to label quotes.
type BankSource struct {
	ID   uuid.UUID
	Name string
	URL  string
}

type Config struct {
	Banks        []BankSource
	PollInterval time.Duration
	MaxTries     int
}

// Worker drives the fetch→parse→submit cycle. Rates publish at most daily,
// so each bank is submitted once per UTC day; the per-bank last-submitted day
// is worker state, not a process global.
type Worker struct {
	cfg      Config
	fetcher  Fetcher
	pipe     *pipeline.Pipeline
	lastSent map[uuid.UUID]string // bank -> UTC day of last submission
}

func NewWorker(cfg Config, fetcher Fetcher, pipe *pipeline.Pipeline) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 15 * time.Minute
	}
	if cfg.MaxTries <= 0 {
		cfg.MaxTries = 5
	}
	return &Worker{
		cfg:      cfg,
		fetcher:  fetcher,
		pipe:     pipe,
		lastSent: make(map[uuid.UUID]string),
	}
}

func (w *Worker) Run(ctx context.Context) {
	for {
		w.runOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.cfg.PollInterval):
		}
	}
}

func (w *Worker) runOnce(ctx context.Context) {
	now := time.Now().UTC()
	day := now.Format("2006-01-02")
	asOf := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).Unix()

	for _, bank := range w.cfg.Banks {
		if w.lastSent[bank.ID] == day {
			continue
		}
		if err := w.scrapeBank(ctx, bank, asOf); err != nil {
			log.Printf("scraper: bank=%s err=%v", bank.Name, err)
			continue
		}
		w.lastSent[bank.ID] = day
	}
}

func (w *Worker) scrapeBank(ctx context.Context, bank BankSource, asOf int64) error {
	var doc RateDocument
	var err error
	for tries := 1; tries <= w.cfg.MaxTries; tries++ {
		doc, err = w.fetcher.Fetch(ctx, bank.URL)
		if err == nil {
			break
		}
		log.Printf("scraper: fetch failed bank=%s (%d of %d) err=%v", bank.Name, tries, w.cfg.MaxTries, err)
	}
	if err != nil {
		return err
	}

	q, err := Parse(bank.ID, bank.Name, asOf, doc)
	if err != nil {
		return err
	}

	_, created, err := w.pipe.SubmitQuote(ctx, *q)
	if err != nil {
		return err
	}
	if created {
		log.Printf("scraper: submitted bank=%s as_of=%d rows=%d", bank.Name, q.AsOf, len(q.Rows))
	}
	return nil
}
