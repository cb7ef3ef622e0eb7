// Package usecase holds the application workflows: the daily pipeline run,
// summarization, and the maintenance operations. It depends only on the
// ports and digest packages; adapters plug in from the outside.
package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dcrobot-keen/it-news-mail/internal/digest"
	"github.com/dcrobot-keen/it-news-mail/internal/domain"
	"github.com/dcrobot-keen/it-news-mail/internal/ports"
)

// DigestSink delivers a rendered digest document to one destination, such
// as the email recipients or a markdown file.
type DigestSink interface {
	Deliver(ctx context.Context, doc digest.Document) error
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Store      ports.ArticleStore
	Runs       ports.RunLog
	Fetcher    ports.Fetcher
	Extractor  ports.Extractor
	Summarizer *Summarizer

	// Email is optional; a nil sink skips the email stage.
	Email  DigestSink
	Export DigestSink

	Sites      []domain.SiteRule
	Delay      time.Duration
	Recipients int
	Logger     *slog.Logger
}

// Pipeline implements the crawl-summarize-publish workflow. One invocation
// is one ProcessingRun.
type Pipeline struct {
	store      ports.ArticleStore
	runs       ports.RunLog
	fetcher    ports.Fetcher
	extractor  ports.Extractor
	summarizer *Summarizer
	email      DigestSink
	export     DigestSink

	sites      []domain.SiteRule
	delay      time.Duration
	recipients int
	logger     *slog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		store:      deps.Store,
		runs:       deps.Runs,
		fetcher:    deps.Fetcher,
		extractor:  deps.Extractor,
		summarizer: deps.Summarizer,
		email:      deps.Email,
		export:     deps.Export,
		sites:      deps.Sites,
		delay:      deps.Delay,
		recipients: deps.Recipients,
		logger:     deps.Logger.With("component", "pipeline"),
		now:        time.Now,
		sleep:      sleepCtx,
	}
}

// Run executes one full pipeline pass and records it as a ProcessingRun.
// Per-site and per-article failures are isolated; only persistence and
// export failures abort the run.
func (p *Pipeline) Run(ctx context.Context) error {
	run, err := p.runs.CreateRun(ctx)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	p.logger.Info("run started", "run_id", run.ID, "sites", len(p.sites))

	runErr := p.execute(ctx, &run)

	completed := p.now().UTC()
	run.CompletedAt = &completed
	if runErr != nil {
		run.Status = domain.RunFailed
		run.ErrorMessage = runErr.Error()
		p.logger.Error("run failed", "run_id", run.ID, "error", runErr)
	} else {
		run.Status = domain.RunCompleted
		p.logger.Info("run completed", "run_id", run.ID,
			"crawled", run.ArticlesCrawled, "summarized", run.ArticlesSummarized, "emails", run.EmailsSent)
	}

	if err := p.runs.UpdateRun(ctx, run); err != nil {
		p.logger.Error("record run outcome", "run_id", run.ID, "error", err)
		if runErr == nil {
			runErr = fmt.Errorf("record run outcome: %w", err)
		}
	}
	return runErr
}

func (p *Pipeline) execute(ctx context.Context, run *domain.ProcessingRun) error {
	crawled, err := p.crawl(ctx)
	run.ArticlesCrawled = crawled
	if err != nil {
		return err
	}
	p.updateProgress(ctx, *run)

	stats, err := p.summarizer.SummarizeAll(ctx)
	run.ArticlesSummarized = stats.Successful
	if err != nil {
		return err
	}
	p.updateProgress(ctx, *run)

	sent, err := p.publish(ctx)
	if err != nil {
		return err
	}
	if sent {
		run.EmailsSent = p.recipients
	}

	return p.exportAll(ctx)
}

// crawl visits every configured site. A failing site or candidate is logged
// and skipped; a failing store write aborts the stage.
func (p *Pipeline) crawl(ctx context.Context) (int, error) {
	inserted := 0
	for i, site := range p.sites {
		if err := ctx.Err(); err != nil {
			return inserted, err
		}
		if i > 0 && p.delay > 0 {
			p.sleep(ctx, p.delay)
		}

		count, err := p.crawlSite(ctx, site)
		inserted += count
		if err != nil {
			return inserted, err
		}
	}
	p.logger.Info("crawl completed", "new_articles", inserted)
	return inserted, nil
}

func (p *Pipeline) crawlSite(ctx context.Context, site domain.SiteRule) (int, error) {
	page, err := p.fetcher.Fetch(ctx, site.URL)
	if err != nil {
		p.logger.Warn("site fetch failed", "site", site.SiteName, "error", err)
		return 0, nil
	}

	candidates, err := p.extractor.Extract(page, site)
	if err != nil {
		p.logger.Warn("site extraction failed", "site", site.SiteName, "error", err)
		return 0, nil
	}

	inserted := 0
	for _, cand := range candidates {
		if cand.PublishedAt == nil {
			now := p.now().UTC()
			cand.PublishedAt = &now
		}

		article, fresh, err := p.store.InsertIfAbsent(ctx, cand, site.SiteName, site.Category)
		if err != nil {
			return inserted, fmt.Errorf("insert article %s: %w", cand.URL, err)
		}
		if !fresh {
			continue
		}

		if err := p.store.MarkCrawled(ctx, article.ID); err != nil {
			return inserted, fmt.Errorf("mark crawled %d: %w", article.ID, err)
		}
		inserted++
	}

	p.logger.Info("site crawled", "site", site.SiteName, "candidates", len(candidates), "new", inserted)
	return inserted, nil
}

// publish sends the unsent backlog as one digest email, then marks the
// articles sent. A delivery failure is a warning: nothing is marked and the
// backlog stays eligible for the next run.
func (p *Pipeline) publish(ctx context.Context) (bool, error) {
	if p.email == nil {
		p.logger.Info("email sink not configured, skipping")
		return false, nil
	}

	unsent, err := p.store.Unsent(ctx)
	if err != nil {
		return false, fmt.Errorf("load unsent: %w", err)
	}
	if len(unsent) == 0 {
		p.logger.Info("no articles to send")
		return false, nil
	}

	doc := digest.Build(unsent, p.now())
	if err := p.email.Deliver(ctx, doc); err != nil {
		p.logger.Warn("email delivery failed", "articles", len(unsent), "error", err)
		return false, nil
	}

	ids := make([]int64, len(unsent))
	for i, article := range unsent {
		ids[i] = article.ID
	}
	if err := p.store.MarkSent(ctx, ids); err != nil {
		return false, fmt.Errorf("mark sent: %w", err)
	}

	p.logger.Info("digest emailed", "articles", len(unsent))
	return true, nil
}

// exportAll rewrites the per-date markdown files for every summarized
// article. Unlike email, an export failure fails the run.
func (p *Pipeline) exportAll(ctx context.Context) error {
	summarized, err := p.store.Summarized(ctx)
	if err != nil {
		return fmt.Errorf("load summarized: %w", err)
	}
	if len(summarized) == 0 {
		p.logger.Info("no articles to export")
		return nil
	}

	docs := digest.BuildByDate(summarized)
	for _, doc := range docs {
		if err := p.export.Deliver(ctx, doc); err != nil {
			return fmt.Errorf("export %s: %w", doc.Date.Format("2006-01-02"), err)
		}
	}

	p.logger.Info("markdown export completed", "articles", len(summarized), "files", len(docs))
	return nil
}

func (p *Pipeline) updateProgress(ctx context.Context, run domain.ProcessingRun) {
	if err := p.runs.UpdateRun(ctx, run); err != nil {
		p.logger.Warn("record run progress", "run_id", run.ID, "error", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
