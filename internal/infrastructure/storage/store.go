// Package storage persists articles and processing runs behind the
// ports.ArticleStore contract. It runs on sqlite (default) or postgres;
// every statement is built with squirrel and all flag transitions happen
// inside a transaction so the timestamp bump and the flag flip commit
// together or not at all.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/dcrobot-keen/it-news-mail/internal/domain"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store is the SQL-backed article repository.
type Store struct {
	db         *sql.DB
	driver     string
	sb         sq.StatementBuilderType
	maxContent int
	now        func() time.Time
}

// Options tunes a Store.
type Options struct {
	// MaxContentChars bounds stored article content; longer content is
	// truncated, not rejected.
	MaxContentChars int
}

// Open connects to the configured backend and creates the schema.
func Open(driver, dsn string, opts Options) (*Store, error) {
	switch driver {
	case DriverSQLite:
		if dir := filepath.Dir(dsn); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("storage: create data dir: %w", err)
			}
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("storage: unsupported driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", driver, err)
	}

	builder := sq.StatementBuilder.PlaceholderFormat(sq.Question)
	if driver == DriverPostgres {
		builder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}

	store := &Store{
		db:         db,
		driver:     driver,
		sb:         builder,
		maxContent: opts.MaxContentChars,
		now:        func() time.Time { return time.Now().UTC() },
	}
	if store.maxContent <= 0 {
		store.maxContent = 10000
	}

	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) init() error {
	idColumn := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.driver == DriverPostgres {
		idColumn = "id BIGSERIAL PRIMARY KEY"
	}

	newsSchema := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS news (
		%s,
		title TEXT NOT NULL,
		url TEXT NOT NULL UNIQUE,
		site TEXT NOT NULL,
		category TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		summary TEXT NOT NULL DEFAULT '',
		image_url TEXT NOT NULL DEFAULT '',
		media_url TEXT NOT NULL DEFAULT '',
		published_at BIGINT,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL,
		crawled INTEGER NOT NULL DEFAULT 0,
		summarized INTEGER NOT NULL DEFAULT 0,
		media_generated INTEGER NOT NULL DEFAULT 0,
		sent INTEGER NOT NULL DEFAULT 0
	)`, idColumn)

	runsSchema := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS processing_runs (
		%s,
		articles_crawled INTEGER NOT NULL DEFAULT 0,
		articles_summarized INTEGER NOT NULL DEFAULT 0,
		emails_sent INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'running',
		error_message TEXT NOT NULL DEFAULT '',
		started_at BIGINT NOT NULL,
		completed_at BIGINT
	)`, idColumn)

	for _, stmt := range []string{newsSchema, runsSchema} {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("storage: create schema: %w", err)
		}
	}
	return nil
}

const articleColumns = "id, title, url, site, category, content, summary, image_url, media_url, published_at, created_at, updated_at, crawled, summarized, media_generated, sent"

// InsertIfAbsent inserts the candidate unless its URL is already stored.
// The URL's UNIQUE constraint makes the check-and-insert atomic under
// concurrent callers; a losing writer gets the existing row back.
func (s *Store) InsertIfAbsent(ctx context.Context, cand domain.Candidate, site string, category domain.Category) (domain.Article, bool, error) {
	now := s.now()

	res, err := s.sb.Insert("news").
		Columns("title", "url", "site", "category", "image_url", "published_at", "created_at", "updated_at").
		Values(cand.Title, cand.URL, site, string(category), cand.ImageURL, unixOrNil(cand.PublishedAt), now.Unix(), now.Unix()).
		Suffix("ON CONFLICT (url) DO NOTHING").
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return domain.Article{}, false, fmt.Errorf("insert article: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Article{}, false, fmt.Errorf("insert article: %w", err)
	}

	article, err := s.byURL(ctx, cand.URL)
	if err != nil {
		return domain.Article{}, false, err
	}
	return article, affected > 0, nil
}

func (s *Store) byURL(ctx context.Context, url string) (domain.Article, error) {
	row := s.sb.Select(articleColumns).
		From("news").
		Where(sq.Eq{"url": url}).
		RunWith(s.db).
		QueryRowContext(ctx)

	article, err := scanArticle(row)
	if err != nil {
		return domain.Article{}, fmt.Errorf("load article by url: %w", err)
	}
	return article, nil
}

// MarkCrawled flips the crawled flag.
func (s *Store) MarkCrawled(ctx context.Context, id int64) error {
	return s.transition(ctx, "mark crawled", id, nil, map[string]any{"crawled": 1})
}

// SetContent caches fetched article content, truncated to the configured cap.
func (s *Store) SetContent(ctx context.Context, id int64, content string) error {
	return s.transition(ctx, "set content", id, nil, map[string]any{
		"content": truncateRunesafe(content, s.maxContent),
	})
}

// MarkSummarized stores the summary and flips the summarized flag. The
// article must already be crawled and not yet summarized.
func (s *Store) MarkSummarized(ctx context.Context, id int64, summary string) error {
	check := func(a domain.Article) error {
		if !a.Crawled {
			return &domain.ConsistencyError{Op: "mark summarized", ArticleID: id, Reason: "article not crawled"}
		}
		if a.Summarized {
			return &domain.ConsistencyError{Op: "mark summarized", ArticleID: id, Reason: "article already summarized"}
		}
		return nil
	}
	return s.transition(ctx, "mark summarized", id, check, map[string]any{
		"summary":    summary,
		"summarized": 1,
	})
}

// MarkMediaGenerated records a generated media reference for the article.
func (s *Store) MarkMediaGenerated(ctx context.Context, id int64, mediaURL string) error {
	check := func(a domain.Article) error {
		if !a.Summarized {
			return &domain.ConsistencyError{Op: "mark media generated", ArticleID: id, Reason: "article not summarized"}
		}
		return nil
	}
	return s.transition(ctx, "mark media generated", id, check, map[string]any{
		"media_url":       mediaURL,
		"media_generated": 1,
	})
}

// MarkSent flips sent for the whole batch in one transaction. Every article
// must already be summarized; a violation rolls the entire batch back.
func (s *Store) MarkSent(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("mark sent: begin: %w", err)
	}
	defer tx.Rollback()

	now := s.now().Unix()
	for _, id := range ids {
		article, err := s.byIDTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if !article.Summarized {
			return &domain.ConsistencyError{Op: "mark sent", ArticleID: id, Reason: "article not summarized"}
		}

		_, err = s.sb.Update("news").
			Set("sent", 1).
			Set("updated_at", now).
			Where(sq.Eq{"id": id}).
			RunWith(tx).
			ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("mark sent article %d: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("mark sent: commit: %w", err)
	}
	return nil
}

// transition applies a single-article mutation inside a transaction: load
// row, validate preconditions, update fields plus updated_at.
func (s *Store) transition(ctx context.Context, op string, id int64, check func(domain.Article) error, set map[string]any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}
	defer tx.Rollback()

	article, err := s.byIDTx(ctx, tx, id)
	if err != nil {
		return err
	}
	if check != nil {
		if err := check(article); err != nil {
			return err
		}
	}

	update := s.sb.Update("news").Set("updated_at", s.now().Unix()).Where(sq.Eq{"id": id})
	for column, value := range set {
		update = update.Set(column, value)
	}
	if _, err := update.RunWith(tx).ExecContext(ctx); err != nil {
		return fmt.Errorf("%s article %d: %w", op, id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}

func (s *Store) byIDTx(ctx context.Context, tx *sql.Tx, id int64) (domain.Article, error) {
	row := s.sb.Select(articleColumns).
		From("news").
		Where(sq.Eq{"id": id}).
		RunWith(tx).
		QueryRowContext(ctx)

	article, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Article{}, &domain.ConsistencyError{Op: "load", ArticleID: id, Reason: "article not found"}
	}
	if err != nil {
		return domain.Article{}, fmt.Errorf("load article %d: %w", id, err)
	}
	return article, nil
}

// Unsummarized returns articles ready for the summarize stage.
func (s *Store) Unsummarized(ctx context.Context) ([]domain.Article, error) {
	return s.selectArticles(ctx, s.sb.Select(articleColumns).
		From("news").
		Where(sq.Eq{"crawled": 1, "summarized": 0}).
		OrderBy("id"))
}

// Unsent returns summarized, not yet sent articles ordered for deterministic
// digest rendering.
func (s *Store) Unsent(ctx context.Context) ([]domain.Article, error) {
	return s.selectArticles(ctx, s.sb.Select(articleColumns).
		From("news").
		Where(sq.Eq{"summarized": 1, "sent": 0}).
		OrderBy("category", "published_at DESC"))
}

// Summarized returns every summarized article, newest first; the export
// sink groups them into per-date files.
func (s *Store) Summarized(ctx context.Context) ([]domain.Article, error) {
	return s.selectArticles(ctx, s.sb.Select(articleColumns).
		From("news").
		Where(sq.Eq{"summarized": 1}).
		OrderBy("category", "created_at DESC"))
}

// ByDateRange returns articles created within [start, end].
func (s *Store) ByDateRange(ctx context.Context, start, end time.Time) ([]domain.Article, error) {
	return s.selectArticles(ctx, s.sb.Select(articleColumns).
		From("news").
		Where(sq.GtOrEq{"created_at": start.Unix()}).
		Where(sq.LtOrEq{"created_at": end.Unix()}).
		OrderBy("category", "created_at DESC"))
}

func (s *Store) selectArticles(ctx context.Context, builder sq.SelectBuilder) ([]domain.Article, error) {
	rows, err := builder.RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	var articles []domain.Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		articles = append(articles, article)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}
	return articles, nil
}

// ResetRange clears summarized, sent, and the summary text together for every
// article created in [start, end]. A single UPDATE keeps the group atomic:
// summary is never cleared without its flag or vice versa.
func (s *Store) ResetRange(ctx context.Context, start, end time.Time) (int64, error) {
	res, err := s.sb.Update("news").
		Set("summarized", 0).
		Set("sent", 0).
		Set("summary", "").
		Set("updated_at", s.now().Unix()).
		Where(sq.GtOrEq{"created_at": start.Unix()}).
		Where(sq.LtOrEq{"created_at": end.Unix()}).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("reset range: %w", err)
	}
	return res.RowsAffected()
}

// ResetAllSent bulk-clears the sent flag across the whole store.
func (s *Store) ResetAllSent(ctx context.Context) (int64, error) {
	res, err := s.sb.Update("news").
		Set("sent", 0).
		Set("updated_at", s.now().Unix()).
		Where(sq.Eq{"sent": 1}).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("reset sent: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (domain.Article, error) {
	var (
		a                                      domain.Article
		category                               string
		publishedAt                            sql.NullInt64
		createdAt, updatedAt                   int64
		crawled, summarized, mediaGen, sentVal int64
	)
	err := row.Scan(&a.ID, &a.Title, &a.URL, &a.Site, &category, &a.Content, &a.Summary,
		&a.ImageURL, &a.MediaURL, &publishedAt, &createdAt, &updatedAt,
		&crawled, &summarized, &mediaGen, &sentVal)
	if err != nil {
		return domain.Article{}, err
	}

	a.Category = domain.Category(category)
	a.PublishedAt = unixToTime(publishedAt)
	a.CreatedAt = time.Unix(createdAt, 0).UTC()
	a.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	a.Crawled = crawled != 0
	a.Summarized = summarized != 0
	a.MediaGenerated = mediaGen != 0
	a.Sent = sentVal != 0
	return a, nil
}

func unixOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Unix()
}

func unixToTime(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}

func truncateRunesafe(value string, max int) string {
	if len(value) <= max {
		return value
	}
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max])
}
