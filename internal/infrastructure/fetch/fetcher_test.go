package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dcrobot-keen/it-news-mail/internal/domain"
)

func recordingSleep(delays *[]time.Duration) func(ctx context.Context, d time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestFetchSuccess(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "test-agent" {
			t.Errorf("unexpected user agent: %s", got)
		}
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer server.Close()

	client := New(Options{UserAgent: "test-agent", MaxRetries: 3})

	body, err := client.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if string(body) != "<html>ok</html>" {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestFetchRetriesTransientThenSucceeds(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("third time"))
	}))
	defer server.Close()

	client := New(Options{MaxRetries: 3, BaseDelay: time.Second})
	var delays []time.Duration
	client.sleep = recordingSleep(&delays)

	body, err := client.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if string(body) != "third time" {
		t.Fatalf("unexpected body: %s", body)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}

	want := []time.Duration{time.Second, 2 * time.Second}
	if len(delays) != len(want) {
		t.Fatalf("expected %d backoff sleeps, got %v", len(want), delays)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Fatalf("sleep %d: expected %v, got %v", i, want[i], delays[i])
		}
	}
}

func TestFetchExhaustsRetryBudget(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(Options{MaxRetries: 3, BaseDelay: time.Millisecond})
	var delays []time.Duration
	client.sleep = recordingSleep(&delays)

	_, err := client.Fetch(context.Background(), server.URL)
	var fetchErr *domain.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected *domain.FetchError, got %T", err)
	}
	if fetchErr.Kind != domain.FetchExhausted {
		t.Fatalf("expected exhausted, got %s", fetchErr.Kind)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
	if len(delays) != 2 {
		t.Fatalf("expected 2 sleeps, got %d", len(delays))
	}

	var cause *domain.FetchError
	if !errors.As(fetchErr.Cause, &cause) || cause.Status != http.StatusServiceUnavailable {
		t.Fatalf("expected last transient cause with status 503, got %v", fetchErr.Cause)
	}
}

func TestFetchNonRetryableFailsImmediately(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := New(Options{MaxRetries: 3})
	var delays []time.Duration
	client.sleep = recordingSleep(&delays)

	_, err := client.Fetch(context.Background(), server.URL)
	var fetchErr *domain.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected *domain.FetchError, got %T", err)
	}
	if fetchErr.Kind != domain.FetchNonRetryable {
		t.Fatalf("expected non_retryable, got %s", fetchErr.Kind)
	}
	if fetchErr.Status != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", fetchErr.Status)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected a single attempt, got %d", got)
	}
	if len(delays) != 0 {
		t.Fatalf("expected no sleeps, got %v", delays)
	}
}

func TestFetchTooManyRequestsIsTransient(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := New(Options{MaxRetries: 2, BaseDelay: time.Millisecond})
	var delays []time.Duration
	client.sleep = recordingSleep(&delays)

	if _, err := client.Fetch(context.Background(), server.URL); err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected 2 attempts, got %d", got)
	}
}

func TestFetchMalformedURL(t *testing.T) {
	t.Parallel()

	client := New(Options{})

	for _, raw := range []string{"://bad", "relative/path"} {
		_, err := client.Fetch(context.Background(), raw)
		var fetchErr *domain.FetchError
		if !errors.As(err, &fetchErr) {
			t.Fatalf("%s: expected *domain.FetchError, got %T", raw, err)
		}
		if fetchErr.Kind != domain.FetchNonRetryable {
			t.Fatalf("%s: expected non_retryable, got %s", raw, fetchErr.Kind)
		}
	}
}
