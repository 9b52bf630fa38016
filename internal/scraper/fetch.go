package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Fetcher retrieves a bank's rate document.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (RateDocument, error)
}

type HTTPFetcher struct {
	httpClient *http.Client
}

func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPFetcher{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (RateDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return RateDocument{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return RateDocument{}, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return RateDocument{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var doc RateDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return RateDocument{}, fmt.Errorf("decode rate document: %w", err)
	}
	return doc, nil
}
