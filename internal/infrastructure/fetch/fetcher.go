// Package fetch performs network GETs with bounded retry and exponential
// backoff. The fetcher is stateless and reentrant; inter-request politeness
// delays are the caller's responsibility.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dcrobot-keen/it-news-mail/internal/domain"
)

// Client fetches raw page content. Transient failures (network errors, 5xx,
// 429) are retried up to MaxRetries attempts with delay base*2^attempt;
// other 4xx responses fail immediately without consuming retry budget.
type Client struct {
	http       *http.Client
	userAgent  string
	maxRetries int
	baseDelay  time.Duration

	// sleep is injectable so tests do not wait out real backoff delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// Options tunes a Client. Zero values fall back to sane defaults.
type Options struct {
	Timeout    time.Duration
	UserAgent  string
	MaxRetries int
	BaseDelay  time.Duration
}

// New builds a Client.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0"
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}
	return &Client{
		http:       &http.Client{Timeout: opts.Timeout},
		userAgent:  opts.UserAgent,
		maxRetries: opts.MaxRetries,
		baseDelay:  opts.BaseDelay,
		sleep:      sleepCtx,
	}
}

// Fetch GETs the URL and returns the response body. On failure the returned
// error is always a *domain.FetchError.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || !parsed.IsAbs() {
		return nil, &domain.FetchError{
			Kind:  domain.FetchNonRetryable,
			URL:   rawURL,
			Cause: fmt.Errorf("malformed url: %v", err),
		}
	}

	var lastCause error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		body, fetchErr := c.fetchOnce(ctx, rawURL)
		if fetchErr == nil {
			return body, nil
		}
		if fetchErr.Kind == domain.FetchNonRetryable {
			return nil, fetchErr
		}
		lastCause = fetchErr

		if attempt == c.maxRetries-1 {
			break
		}
		if err := c.sleep(ctx, c.baseDelay*time.Duration(1<<attempt)); err != nil {
			return nil, &domain.FetchError{Kind: domain.FetchTransient, URL: rawURL, Cause: err}
		}
	}

	return nil, &domain.FetchError{Kind: domain.FetchExhausted, URL: rawURL, Cause: lastCause}
}

func (c *Client) fetchOnce(ctx context.Context, rawURL string) ([]byte, *domain.FetchError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &domain.FetchError{Kind: domain.FetchNonRetryable, URL: rawURL, Cause: err}
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &domain.FetchError{Kind: domain.FetchTransient, URL: rawURL, Cause: err}
	}
	defer resp.Body.Close()

	if !statusOK(resp.StatusCode) {
		kind := domain.FetchNonRetryable
		if statusRetryable(resp.StatusCode) {
			kind = domain.FetchTransient
		}
		return nil, &domain.FetchError{
			Kind:   kind,
			URL:    rawURL,
			Status: resp.StatusCode,
			Cause:  fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.FetchError{Kind: domain.FetchTransient, URL: rawURL, Cause: err}
	}
	return body, nil
}

func statusOK(code int) bool {
	return code >= 200 && code < 300
}

// statusRetryable reports whether the status is worth retrying: server
// errors and rate limiting only.
func statusRetryable(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
