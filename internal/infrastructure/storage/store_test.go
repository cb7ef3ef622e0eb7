package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/dcrobot-keen/it-news-mail/internal/domain"
)

func newTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	store, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "test.db"), opts)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func insertArticle(t *testing.T, store *Store, url string, category domain.Category) domain.Article {
	t.Helper()
	article, inserted, err := store.InsertIfAbsent(context.Background(), domain.Candidate{
		Title: "Title for " + url,
		URL:   url,
	}, "test-site", category)
	if err != nil {
		t.Fatalf("insert %s: %v", url, err)
	}
	if !inserted {
		t.Fatalf("expected fresh insert for %s", url)
	}
	return article
}

func TestInsertIfAbsentDedup(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, Options{})
	ctx := context.Background()

	published := time.Date(2026, time.August, 20, 9, 30, 0, 0, time.UTC)
	first, inserted, err := store.InsertIfAbsent(ctx, domain.Candidate{
		Title:       "Original Title",
		URL:         "https://news.example.com/a",
		ImageURL:    "https://news.example.com/a.png",
		PublishedAt: &published,
	}, "site-a", domain.CategoryAI)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !inserted {
		t.Fatal("expected first insert to report inserted")
	}
	if first.ID == 0 {
		t.Fatal("expected assigned id")
	}
	if first.Crawled || first.Summarized || first.Sent || first.MediaGenerated {
		t.Fatalf("new article must start with all flags false: %+v", first)
	}
	if first.PublishedAt == nil || !first.PublishedAt.Equal(published) {
		t.Fatalf("published_at not round-tripped: %v", first.PublishedAt)
	}

	second, inserted, err := store.InsertIfAbsent(ctx, domain.Candidate{
		Title: "Different Title",
		URL:   "https://news.example.com/a",
	}, "site-b", domain.CategoryRobotics)
	if err != nil {
		t.Fatalf("duplicate insert: %v", err)
	}
	if inserted {
		t.Fatal("expected duplicate URL to be skipped")
	}
	if second.ID != first.ID || second.Title != "Original Title" || second.Site != "site-a" {
		t.Fatalf("existing row must win: %+v", second)
	}
}

func TestMarkSummarizedPreconditions(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, Options{})
	ctx := context.Background()
	article := insertArticle(t, store, "https://news.example.com/pre", domain.CategoryAI)

	var conErr *domain.ConsistencyError
	err := store.MarkSummarized(ctx, article.ID, "too early")
	if !errors.As(err, &conErr) {
		t.Fatalf("expected ConsistencyError before crawl, got %v", err)
	}

	if err := store.MarkCrawled(ctx, article.ID); err != nil {
		t.Fatalf("mark crawled: %v", err)
	}
	if err := store.MarkSummarized(ctx, article.ID, "the summary"); err != nil {
		t.Fatalf("mark summarized: %v", err)
	}

	err = store.MarkSummarized(ctx, article.ID, "again")
	if !errors.As(err, &conErr) {
		t.Fatalf("expected ConsistencyError on repeat, got %v", err)
	}

	got, err := store.Summarized(ctx)
	if err != nil {
		t.Fatalf("summarized: %v", err)
	}
	if len(got) != 1 || got[0].Summary != "the summary" {
		t.Fatalf("first summary must be preserved: %+v", got)
	}
}

func TestMarkMediaGeneratedRequiresSummary(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, Options{})
	ctx := context.Background()
	article := insertArticle(t, store, "https://news.example.com/media", domain.CategoryDevelopment)

	var conErr *domain.ConsistencyError
	if err := store.MarkMediaGenerated(ctx, article.ID, "https://cdn.example.com/m.mp4"); !errors.As(err, &conErr) {
		t.Fatalf("expected ConsistencyError, got %v", err)
	}

	if err := store.MarkCrawled(ctx, article.ID); err != nil {
		t.Fatalf("mark crawled: %v", err)
	}
	if err := store.MarkSummarized(ctx, article.ID, "s"); err != nil {
		t.Fatalf("mark summarized: %v", err)
	}
	if err := store.MarkMediaGenerated(ctx, article.ID, "https://cdn.example.com/m.mp4"); err != nil {
		t.Fatalf("mark media generated: %v", err)
	}
}

func TestMarkSentBatchRollsBackOnViolation(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, Options{})
	ctx := context.Background()

	ready := insertArticle(t, store, "https://news.example.com/ready", domain.CategoryAI)
	raw := insertArticle(t, store, "https://news.example.com/raw", domain.CategoryAI)

	if err := store.MarkCrawled(ctx, ready.ID); err != nil {
		t.Fatalf("mark crawled: %v", err)
	}
	if err := store.MarkSummarized(ctx, ready.ID, "s"); err != nil {
		t.Fatalf("mark summarized: %v", err)
	}

	var conErr *domain.ConsistencyError
	if err := store.MarkSent(ctx, []int64{ready.ID, raw.ID}); !errors.As(err, &conErr) {
		t.Fatalf("expected ConsistencyError, got %v", err)
	}

	unsent, err := store.Unsent(ctx)
	if err != nil {
		t.Fatalf("unsent: %v", err)
	}
	if len(unsent) != 1 || unsent[0].ID != ready.ID {
		t.Fatalf("batch must roll back entirely: %+v", unsent)
	}

	if err := store.MarkSent(ctx, []int64{ready.ID}); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	unsent, err = store.Unsent(ctx)
	if err != nil {
		t.Fatalf("unsent: %v", err)
	}
	if len(unsent) != 0 {
		t.Fatalf("expected empty unsent backlog, got %+v", unsent)
	}
}

func TestUnsummarizedSelection(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, Options{})
	ctx := context.Background()

	uncrawled := insertArticle(t, store, "https://news.example.com/u1", domain.CategoryAI)
	crawled := insertArticle(t, store, "https://news.example.com/u2", domain.CategoryAI)
	done := insertArticle(t, store, "https://news.example.com/u3", domain.CategoryAI)

	if err := store.MarkCrawled(ctx, crawled.ID); err != nil {
		t.Fatalf("mark crawled: %v", err)
	}
	if err := store.MarkCrawled(ctx, done.ID); err != nil {
		t.Fatalf("mark crawled: %v", err)
	}
	if err := store.MarkSummarized(ctx, done.ID, "s"); err != nil {
		t.Fatalf("mark summarized: %v", err)
	}

	backlog, err := store.Unsummarized(ctx)
	if err != nil {
		t.Fatalf("unsummarized: %v", err)
	}
	if len(backlog) != 1 || backlog[0].ID != crawled.ID {
		t.Fatalf("expected only the crawled, unsummarized article: %+v", backlog)
	}
	_ = uncrawled
}

func TestSetContentTruncatesRuneSafe(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, Options{MaxContentChars: 5})
	ctx := context.Background()
	article := insertArticle(t, store, "https://news.example.com/cap", domain.CategoryAI)

	if err := store.SetContent(ctx, article.ID, "가나다라마바사아"); err != nil {
		t.Fatalf("set content: %v", err)
	}
	if err := store.MarkCrawled(ctx, article.ID); err != nil {
		t.Fatalf("mark crawled: %v", err)
	}

	backlog, err := store.Unsummarized(ctx)
	if err != nil {
		t.Fatalf("unsummarized: %v", err)
	}
	if len(backlog) != 1 {
		t.Fatalf("expected 1 article, got %d", len(backlog))
	}
	if backlog[0].Content != "가나다라마" {
		t.Fatalf("content not truncated on rune boundary: %q", backlog[0].Content)
	}
}

func TestResetRange(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, Options{})
	ctx := context.Background()

	day1 := time.Date(2026, time.August, 20, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, time.August, 21, 10, 0, 0, 0, time.UTC)

	store.now = func() time.Time { return day1 }
	old := insertArticle(t, store, "https://news.example.com/old", domain.CategoryAI)
	store.now = func() time.Time { return day2 }
	fresh := insertArticle(t, store, "https://news.example.com/fresh", domain.CategoryAI)

	for _, id := range []int64{old.ID, fresh.ID} {
		if err := store.MarkCrawled(ctx, id); err != nil {
			t.Fatalf("mark crawled: %v", err)
		}
		if err := store.MarkSummarized(ctx, id, "s"); err != nil {
			t.Fatalf("mark summarized: %v", err)
		}
	}
	if err := store.MarkSent(ctx, []int64{old.ID, fresh.ID}); err != nil {
		t.Fatalf("mark sent: %v", err)
	}

	start := time.Date(2026, time.August, 20, 0, 0, 0, 0, time.UTC)
	end := start.Add(24*time.Hour - time.Second)
	count, err := store.ResetRange(ctx, start, end)
	if err != nil {
		t.Fatalf("reset range: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 reset article, got %d", count)
	}

	articles, err := store.ByDateRange(ctx, start, end)
	if err != nil {
		t.Fatalf("by date range: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("expected 1 article on day1, got %d", len(articles))
	}
	got := articles[0]
	if got.Summarized || got.Sent || got.Summary != "" {
		t.Fatalf("reset must clear summary state together: %+v", got)
	}
	if !got.Crawled {
		t.Fatal("reset must leave crawled untouched")
	}

	remaining, err := store.Summarized(ctx)
	if err != nil {
		t.Fatalf("summarized: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != fresh.ID {
		t.Fatalf("day2 article must be untouched: %+v", remaining)
	}
}

func TestResetAllSent(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, Options{})
	ctx := context.Background()

	a := insertArticle(t, store, "https://news.example.com/s1", domain.CategoryAI)
	b := insertArticle(t, store, "https://news.example.com/s2", domain.CategoryDevelopment)
	for _, id := range []int64{a.ID, b.ID} {
		if err := store.MarkCrawled(ctx, id); err != nil {
			t.Fatalf("mark crawled: %v", err)
		}
		if err := store.MarkSummarized(ctx, id, "s"); err != nil {
			t.Fatalf("mark summarized: %v", err)
		}
	}
	if err := store.MarkSent(ctx, []int64{a.ID, b.ID}); err != nil {
		t.Fatalf("mark sent: %v", err)
	}

	count, err := store.ResetAllSent(ctx)
	if err != nil {
		t.Fatalf("reset all sent: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 reset articles, got %d", count)
	}

	unsent, err := store.Unsent(ctx)
	if err != nil {
		t.Fatalf("unsent: %v", err)
	}
	if len(unsent) != 2 {
		t.Fatalf("expected both articles unsent again, got %d", len(unsent))
	}
	for _, article := range unsent {
		if article.Summary != "s" || !article.Summarized {
			t.Fatalf("summaries must survive a sent reset: %+v", article)
		}
	}
}

func TestProcessingRuns(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, Options{})
	ctx := context.Background()

	if _, ok, err := store.LastRun(ctx); err != nil || ok {
		t.Fatalf("expected no runs yet, got ok=%v err=%v", ok, err)
	}

	run, err := store.CreateRun(ctx)
	if err != nil {
		t.Fatalf("create run: %v", err)
	}
	if run.ID == 0 || run.Status != domain.RunRunning {
		t.Fatalf("unexpected new run: %+v", run)
	}

	completed := time.Date(2026, time.August, 25, 7, 15, 0, 0, time.UTC)
	run.ArticlesCrawled = 12
	run.ArticlesSummarized = 10
	run.EmailsSent = 2
	run.Status = domain.RunCompleted
	run.CompletedAt = &completed
	if err := store.UpdateRun(ctx, run); err != nil {
		t.Fatalf("update run: %v", err)
	}

	got, ok, err := store.LastRun(ctx)
	if err != nil || !ok {
		t.Fatalf("load last run: ok=%v err=%v", ok, err)
	}
	if got.ArticlesCrawled != 12 || got.ArticlesSummarized != 10 || got.EmailsSent != 2 {
		t.Fatalf("counters not persisted: %+v", got)
	}
	if got.Status != domain.RunCompleted || got.CompletedAt == nil || !got.CompletedAt.Equal(completed) {
		t.Fatalf("completion not persisted: %+v", got)
	}
}
