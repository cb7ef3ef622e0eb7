package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dcrobot-keen/it-news-mail/internal/digest"
	"github.com/dcrobot-keen/it-news-mail/internal/ports"
)

// Maintenance bundles the operator-facing reset and regeneration commands.
type Maintenance struct {
	store      ports.ArticleStore
	summarizer *Summarizer
	export     DigestSink
	logger     *slog.Logger
}

// NewMaintenance constructs the maintenance component.
func NewMaintenance(store ports.ArticleStore, summarizer *Summarizer, export DigestSink, logger *slog.Logger) *Maintenance {
	return &Maintenance{
		store:      store,
		summarizer: summarizer,
		export:     export,
		logger:     logger.With("component", "maintenance"),
	}
}

// ResetDate clears summarized, sent, and summary text for every article
// created on the given YYYY-MM-DD date. It returns how many were reset.
func (m *Maintenance) ResetDate(ctx context.Context, date string) (int64, error) {
	start, end, err := dayRange(date)
	if err != nil {
		return 0, err
	}

	count, err := m.store.ResetRange(ctx, start, end)
	if err != nil {
		return 0, err
	}
	m.logger.Info("articles reset", "date", date, "count", count)
	return count, nil
}

// ResetAllSent marks every sent article unsent so the next run re-emails
// the whole summarized backlog.
func (m *Maintenance) ResetAllSent(ctx context.Context) (int64, error) {
	count, err := m.store.ResetAllSent(ctx)
	if err != nil {
		return 0, err
	}
	m.logger.Info("sent flags cleared", "count", count)
	return count, nil
}

// RegenerateDate resets a date's articles, re-summarizes them, and rewrites
// that date's markdown file. Articles the provider fails on are skipped, as
// in a normal run.
func (m *Maintenance) RegenerateDate(ctx context.Context, date string) error {
	count, err := m.ResetDate(ctx, date)
	if err != nil {
		return err
	}
	if count == 0 {
		m.logger.Info("nothing to regenerate", "date", date)
		return nil
	}

	if _, err := m.summarizer.SummarizeAll(ctx); err != nil {
		return err
	}

	start, end, err := dayRange(date)
	if err != nil {
		return err
	}
	articles, err := m.store.ByDateRange(ctx, start, end)
	if err != nil {
		return fmt.Errorf("load articles for %s: %w", date, err)
	}

	summarized := articles[:0]
	for _, article := range articles {
		if article.Summarized {
			summarized = append(summarized, article)
		}
	}
	if len(summarized) == 0 {
		m.logger.Warn("no summarized articles to export", "date", date)
		return nil
	}

	doc := digest.Build(summarized, start)
	if err := m.export.Deliver(ctx, doc); err != nil {
		return fmt.Errorf("export %s: %w", date, err)
	}

	m.logger.Info("date regenerated", "date", date, "articles", len(summarized))
	return nil
}

// dayRange resolves a YYYY-MM-DD string to the inclusive UTC bounds of
// that calendar day.
func dayRange(date string) (start, end time.Time, err error) {
	start, err = time.ParseInLocation("2006-01-02", date, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", date, err)
	}
	end = start.Add(24*time.Hour - time.Second)
	return start, end, nil
}
