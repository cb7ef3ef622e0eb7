package ports

import (
	"context"
	"time"

	"github.com/dcrobot-keen/it-news-mail/internal/domain"
)

// ArticleStore owns every Article mutation. All components request mutations
// through it, never touching rows directly.
type ArticleStore interface {
	// InsertIfAbsent performs an atomic check-and-insert keyed by URL.
	// When the URL is already present it returns the existing record and
	// inserted=false, without overwriting anything.
	InsertIfAbsent(ctx context.Context, cand domain.Candidate, site string, category domain.Category) (domain.Article, bool, error)

	MarkCrawled(ctx context.Context, id int64) error
	SetContent(ctx context.Context, id int64, content string) error
	MarkSummarized(ctx context.Context, id int64, summary string) error
	MarkMediaGenerated(ctx context.Context, id int64, mediaURL string) error
	MarkSent(ctx context.Context, ids []int64) error

	Unsummarized(ctx context.Context) ([]domain.Article, error)
	Unsent(ctx context.Context) ([]domain.Article, error)
	Summarized(ctx context.Context) ([]domain.Article, error)
	ByDateRange(ctx context.Context, start, end time.Time) ([]domain.Article, error)

	// ResetRange clears summarized/sent/summary together for every article
	// created in [start, end], atomically per article.
	ResetRange(ctx context.Context, start, end time.Time) (int64, error)
	ResetAllSent(ctx context.Context) (int64, error)
}

// RunLog records orchestrator invocations.
type RunLog interface {
	CreateRun(ctx context.Context) (domain.ProcessingRun, error)
	UpdateRun(ctx context.Context, run domain.ProcessingRun) error
}

// Fetcher performs a network GET with bounded retry and backoff, returning
// a typed *domain.FetchError on failure.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Extractor turns a raw page into candidate articles using a site rule.
// It performs no I/O.
type Extractor interface {
	Extract(rawHTML []byte, rule domain.SiteRule) ([]domain.Candidate, error)
}

// ContentReader extracts readable body text from a fetched article page.
type ContentReader interface {
	Text(rawHTML []byte, pageURL string) (string, error)
}

// CompletionProvider generates a completion from a prompt within a token
// budget. Implementations are interchangeable and selected at startup.
type CompletionProvider interface {
	Name() string
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Scheduler controls when pipeline runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
