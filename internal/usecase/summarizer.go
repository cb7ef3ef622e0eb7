package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dcrobot-keen/it-news-mail/internal/domain"
	"github.com/dcrobot-keen/it-news-mail/internal/ports"
)

// SummarizerDeps wires the driven adapters into the summarization use case.
type SummarizerDeps struct {
	Store    ports.ArticleStore
	Fetcher  ports.Fetcher
	Reader   ports.ContentReader
	Provider ports.CompletionProvider

	MaxSummaryLength int
	MaxTokens        int
	ContentMaxChars  int
	Logger           *slog.Logger
}

// Summarizer generates summaries for crawled articles one at a time.
type Summarizer struct {
	store    ports.ArticleStore
	fetcher  ports.Fetcher
	reader   ports.ContentReader
	provider ports.CompletionProvider

	maxSummaryLength int
	maxTokens        int
	contentMaxChars  int
	logger           *slog.Logger
}

// SummaryStats reports the outcome of a SummarizeAll pass.
type SummaryStats struct {
	Total      int
	Successful int
	Failed     int
}

// NewSummarizer constructs the summarization component.
func NewSummarizer(deps SummarizerDeps) *Summarizer {
	return &Summarizer{
		store:            deps.Store,
		fetcher:          deps.Fetcher,
		reader:           deps.Reader,
		provider:         deps.Provider,
		maxSummaryLength: deps.MaxSummaryLength,
		maxTokens:        deps.MaxTokens,
		contentMaxChars:  deps.ContentMaxChars,
		logger:           deps.Logger.With("component", "summarizer"),
	}
}

// SummarizeAll drains the unsummarized backlog. Per-article failures are
// logged and counted without stopping the pass; a persistence failure
// aborts it.
func (s *Summarizer) SummarizeAll(ctx context.Context) (SummaryStats, error) {
	backlog, err := s.store.Unsummarized(ctx)
	if err != nil {
		return SummaryStats{}, fmt.Errorf("load unsummarized: %w", err)
	}

	stats := SummaryStats{Total: len(backlog)}
	s.logger.Info("summarization started", "backlog", stats.Total)

	for _, article := range backlog {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		if err := s.SummarizeOne(ctx, article); err != nil {
			var sumErr *domain.SummarizeError
			var conErr *domain.ConsistencyError
			switch {
			case errors.As(err, &sumErr):
				s.logger.Warn("article skipped", "id", article.ID, "kind", sumErr.Kind, "error", err)
			case errors.As(err, &conErr):
				s.logger.Warn("article in unexpected state", "id", article.ID, "error", err)
			default:
				return stats, err
			}
			stats.Failed++
			continue
		}
		stats.Successful++
	}

	s.logger.Info("summarization completed",
		"total", stats.Total, "successful", stats.Successful, "failed", stats.Failed)
	return stats, nil
}

// SummarizeOne produces and persists one summary. Content is fetched lazily
// and cached on the article so a retried summarization does not refetch.
func (s *Summarizer) SummarizeOne(ctx context.Context, article domain.Article) error {
	content := article.Content
	if content == "" {
		text, err := s.fetchContent(ctx, article)
		if err != nil {
			return err
		}
		if err := s.store.SetContent(ctx, article.ID, text); err != nil {
			return fmt.Errorf("cache content for article %d: %w", article.ID, err)
		}
		content = text
	}
	content = truncateRunes(content, s.contentMaxChars)

	prompt := summaryPrompt(article.Title, content, article.Category, s.maxSummaryLength)
	completion, err := s.provider.Complete(ctx, prompt, s.maxTokens)
	if err != nil {
		return &domain.SummarizeError{Kind: domain.SummarizeProviderFailure, ArticleID: article.ID, Cause: err}
	}

	summary := strings.TrimSpace(completion)
	if summary == "" {
		return &domain.SummarizeError{Kind: domain.SummarizeEmptyResponse, ArticleID: article.ID}
	}

	if err := s.store.MarkSummarized(ctx, article.ID, summary); err != nil {
		return err
	}

	s.logger.Info("article summarized", "id", article.ID, "provider", s.provider.Name())
	return nil
}

func (s *Summarizer) fetchContent(ctx context.Context, article domain.Article) (string, error) {
	page, err := s.fetcher.Fetch(ctx, article.URL)
	if err != nil {
		return "", &domain.SummarizeError{Kind: domain.SummarizeContentUnavailable, ArticleID: article.ID, Cause: err}
	}

	text, err := s.reader.Text(page, article.URL)
	if err != nil {
		return "", &domain.SummarizeError{Kind: domain.SummarizeContentUnavailable, ArticleID: article.ID, Cause: err}
	}
	return text, nil
}

func summaryPrompt(title, content string, category domain.Category, maxLength int) string {
	return fmt.Sprintf(`다음 %s 분야의 뉴스 기사를 한국어로 요약해주세요.

제목: %s

내용:
%s

요구사항:
1. 핵심 내용을 %d자 이내로 간결하게 요약
2. 기술적 용어는 설명을 추가
3. 주요 수치나 날짜가 있다면 포함
4. 왜 중요한지, 어떤 영향이 있을지 설명
5. 한국어로 작성

요약:`, category, title, content, maxLength)
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
