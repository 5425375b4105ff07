// Package httpfetch provides a retrying HTTP client shared by the Catalog
// Crawler and the Binary Fetcher, grounded on the pdf-extractor module's
// internal/llm/retry.go backoff algorithm and generalised from an
// LLM-specific client into a general-purpose GET helper.
package httpfetch

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

// Client issues bounded-retry HTTP GETs with exponential backoff, as
// scraper/crawler.py:fetch_page and scraper/downloader.py:download_pdf do.
type Client struct {
	HTTPClient       *http.Client
	MaxRetries       int
	RetryBackoffBase time.Duration
	UserAgent        string
}

func New(timeout time.Duration, maxRetries int, backoffBase time.Duration) *Client {
	return &Client{
		HTTPClient:       &http.Client{Timeout: timeout},
		MaxRetries:       maxRetries,
		RetryBackoffBase: backoffBase,
		UserAgent:        "fppc-corpus/1.0 (+resumable archival crawler)",
	}
}

// retryableStatus reports whether status warrants a retry, mirroring
// pdf-extractor's internal/llm/retry.go:shouldRetry.
func retryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func backoffFor(attempt int, base time.Duration) time.Duration {
	d := float64(base) * math.Pow(2, float64(attempt))
	max := 60 * float64(time.Second)
	if d > max {
		d = max
	}
	return time.Duration(d)
}

// Get performs a GET with bounded retries. On final failure it returns the
// last error. That error does not carry the response status, so callers
// cannot tell a persistent 429 from a 5xx; the Fetcher wraps it as
// errkind.TransientNetworkError.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoffFor(attempt-1, c.RetryBackoffBase)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("User-Agent", c.UserAgent)

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		if retryableStatus(resp.StatusCode) {
			resp.Body.Close()
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			continue
		}
		return resp, nil
	}
	return nil, fmt.Errorf("exhausted %d retries: %w", c.MaxRetries, lastErr)
}

// GetBody performs Get and returns the fully-read body, closing the
// response. Used by the Crawler, whose HTML pages are small.
func (c *Client) GetBody(ctx context.Context, url string) ([]byte, int, error) {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}
