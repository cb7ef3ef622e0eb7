package domain

import "fmt"

// FetchKind classifies fetch failures for retry decisions.
type FetchKind string

const (
	FetchTransient    FetchKind = "transient"
	FetchNonRetryable FetchKind = "non_retryable"
	FetchExhausted    FetchKind = "exhausted"
)

// FetchError is the typed failure returned by the fetcher. Callers always
// receive one of these instead of a raw transport error.
type FetchError struct {
	Kind   FetchKind
	URL    string
	Status int
	Cause  error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: %s (status %d)", e.URL, e.Kind, e.Status)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }

// SummarizeKind classifies summarization failures.
type SummarizeKind string

const (
	SummarizeContentUnavailable SummarizeKind = "content_unavailable"
	SummarizeProviderFailure    SummarizeKind = "provider_failure"
	SummarizeEmptyResponse      SummarizeKind = "empty_response"
)

// SummarizeError reports why an article could not be summarized. The article's
// flags are untouched, so it stays eligible for the next run.
type SummarizeError struct {
	Kind      SummarizeKind
	ArticleID int64
	Cause     error
}

func (e *SummarizeError) Error() string {
	return fmt.Sprintf("summarize article %d: %s: %v", e.ArticleID, e.Kind, e.Cause)
}

func (e *SummarizeError) Unwrap() error { return e.Cause }

// ConsistencyError means a flag transition was requested out of order. It
// indicates a pipeline ordering bug upstream, not a recoverable condition.
type ConsistencyError struct {
	Op        string
	ArticleID int64
	Reason    string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("%s article %d: %s", e.Op, e.ArticleID, e.Reason)
}
