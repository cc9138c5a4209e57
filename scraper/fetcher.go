package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"nobroker_watchdog/retry"
)

var defaultHeaders = map[string]string{
	"User-Agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Accept":          "text/html,application/json;q=0.9,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.9",
	"Connection":      "close",
}

// FetchError marks a failed fetch after retries were exhausted. It aborts
// only the current cycle's fetch, never the process.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher performs polite GETs against the listing site: a random delay
// in [MinDelay,MaxDelay] before every request, and bounded
// exponential-backoff retries on transient statuses.
type Fetcher struct {
	Client   *http.Client
	Policy   retry.Policy
	MinDelay time.Duration
	MaxDelay time.Duration
}

func NewFetcher(client *http.Client, policy retry.Policy, minDelay, maxDelay time.Duration) *Fetcher {
	if minDelay <= 0 {
		minDelay = 1200 * time.Millisecond
	}
	if maxDelay < minDelay {
		maxDelay = 2 * minDelay
	}
	return &Fetcher{
		Client:   client,
		Policy:   policy,
		MinDelay: minDelay,
		MaxDelay: maxDelay,
	}
}

// Get fetches a URL body. 200 and 404 are returned as-is (404 means an
// area page went away, which the parser handles); 429 and 5xx are
// retried; anything else is terminal for this target.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, int, error) {
	var body []byte
	var status int

	err := f.Policy.Do(ctx, "http_get", func() error {
		if err := f.politenessDelay(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		for k, v := range defaultHeaders {
			req.Header.Set(k, v)
		}

		t0 := time.Now()
		resp, err := f.Client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		status = resp.StatusCode
		log.Printf("GET %s: %d (%dms)", url, status, time.Since(t0).Milliseconds())

		switch {
		case status == http.StatusOK || status == http.StatusNotFound:
			body, err = io.ReadAll(resp.Body)
			return err
		case status == http.StatusTooManyRequests || status >= 500:
			return fmt.Errorf("transient status %d", status)
		default:
			body = nil
			return nil // terminal, no retry
		}
	})
	if err != nil {
		return nil, status, &FetchError{URL: url, Err: err}
	}
	return body, status, nil
}

// GetJSON fetches and decodes a JSON document, tolerating a missing
// content-type when the body looks like a JSON object.
func (f *Fetcher) GetJSON(ctx context.Context, url string, out any) error {
	body, status, err := f.Get(ctx, url)
	if err != nil {
		return err
	}
	if status != http.StatusOK || len(body) == 0 {
		return &FetchError{URL: url, Err: fmt.Errorf("no json body (status %d)", status)}
	}

	trimmed := strings.TrimSpace(string(body))
	if !strings.HasPrefix(trimmed, "{") {
		return &FetchError{URL: url, Err: fmt.Errorf("response is not a json object")}
	}
	if err := json.Unmarshal([]byte(trimmed), out); err != nil {
		return &FetchError{URL: url, Err: fmt.Errorf("decode json: %w", err)}
	}
	return nil
}

func (f *Fetcher) politenessDelay(ctx context.Context) error {
	d := f.MinDelay + time.Duration(rand.Int63n(int64(f.MaxDelay-f.MinDelay)+1))
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
