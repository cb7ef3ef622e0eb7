// Package app assembles configuration, adapters, and use cases into a
// runnable application.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dcrobot-keen/it-news-mail/internal/config"
	"github.com/dcrobot-keen/it-news-mail/internal/infrastructure/export"
	"github.com/dcrobot-keen/it-news-mail/internal/infrastructure/fetch"
	"github.com/dcrobot-keen/it-news-mail/internal/infrastructure/llm"
	"github.com/dcrobot-keen/it-news-mail/internal/infrastructure/mailer"
	"github.com/dcrobot-keen/it-news-mail/internal/infrastructure/parser"
	"github.com/dcrobot-keen/it-news-mail/internal/infrastructure/scheduler"
	"github.com/dcrobot-keen/it-news-mail/internal/infrastructure/storage"
	"github.com/dcrobot-keen/it-news-mail/internal/sitelist"
	"github.com/dcrobot-keen/it-news-mail/internal/usecase"
)

// Application wires config to use cases and owns component lifecycles.
type Application struct {
	cfg    config.Config
	logger *slog.Logger

	store       *storage.Store
	pipeline    *usecase.Pipeline
	maintenance *usecase.Maintenance
	runner      *usecase.ScheduledRunner
}

// New builds a fully wired application instance.
func New(cfg config.Config, logger *slog.Logger) (*Application, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	sites, err := sitelist.Load(cfg.SiteList, cfg.Crawler.MaxArticlesPerSite, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	fetcher := fetch.New(fetch.Options{
		Timeout:    cfg.Crawler.Timeout(),
		UserAgent:  cfg.Crawler.UserAgent,
		MaxRetries: cfg.Crawler.MaxRetries,
	})

	registry := parser.NewRegistry()
	registry.Register(parser.NewCSSStrategy())

	provider, err := llm.NewProvider(cfg.AI)
	if err != nil {
		store.Close()
		return nil, err
	}

	summarizer := usecase.NewSummarizer(usecase.SummarizerDeps{
		Store:            store,
		Fetcher:          fetcher,
		Reader:           parser.NewContentReader(),
		Provider:         provider,
		MaxSummaryLength: cfg.AI.MaxSummaryLength,
		MaxTokens:        llm.MaxTokens(cfg.AI),
		ContentMaxChars:  cfg.Crawler.ContentMaxChars,
		Logger:           logger,
	})

	exporter := export.New(cfg.Exporter.OutputDir, logger)

	var email usecase.DigestSink
	if len(cfg.Email.Recipients) > 0 {
		email = mailer.New(mailer.Options{
			Host:       cfg.Email.SMTP.Host,
			Port:       cfg.Email.SMTP.Port,
			User:       cfg.Email.SMTP.User,
			Password:   cfg.Email.SMTP.Password,
			From:       cfg.Email.From,
			Recipients: cfg.Email.Recipients,
		}, logger)
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Store:      store,
		Runs:       store,
		Fetcher:    fetcher,
		Extractor:  registry,
		Summarizer: summarizer,
		Email:      email,
		Export:     exporter,
		Sites:      sites,
		Delay:      cfg.Crawler.Delay(),
		Recipients: len(cfg.Email.Recipients),
		Logger:     logger,
	})

	driver := scheduler.New(cfg.Scheduler.CronExpression, cfg.Scheduler.Location(), logger)

	return &Application{
		cfg:         cfg,
		logger:      logger,
		store:       store,
		pipeline:    pipeline,
		maintenance: usecase.NewMaintenance(store, summarizer, exporter, logger),
		runner:      usecase.NewScheduledRunner(driver, pipeline),
	}, nil
}

func openStore(cfg config.Config) (*storage.Store, error) {
	switch cfg.Database.Type {
	case "sqlite":
		if dir := filepath.Dir(cfg.Database.SQLite.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database dir: %w", err)
			}
		}
		return storage.Open("sqlite", cfg.Database.SQLite.Path, storage.Options{
			MaxContentChars: cfg.Crawler.ContentMaxChars,
		})
	case "postgres":
		return storage.Open("postgres", cfg.Database.Postgres.DSN, storage.Options{
			MaxContentChars: cfg.Crawler.ContentMaxChars,
		})
	}
	return nil, fmt.Errorf("unsupported database type %q", cfg.Database.Type)
}

// RunOnce executes a single pipeline run.
func (a *Application) RunOnce(ctx context.Context) error {
	return a.pipeline.Run(ctx)
}

// Serve starts the cron-driven mode and blocks until the context is done.
func (a *Application) Serve(ctx context.Context) error {
	if err := a.runner.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	stopCtx := context.Background()
	return a.runner.Stop(stopCtx)
}

// ResetDate clears summarization state for one date.
func (a *Application) ResetDate(ctx context.Context, date string) (int64, error) {
	return a.maintenance.ResetDate(ctx, date)
}

// ResetAllSent clears the sent flag on every article.
func (a *Application) ResetAllSent(ctx context.Context) (int64, error) {
	return a.maintenance.ResetAllSent(ctx)
}

// RegenerateDate re-summarizes and re-exports one date.
func (a *Application) RegenerateDate(ctx context.Context, date string) error {
	return a.maintenance.RegenerateDate(ctx, date)
}

// Close releases held resources.
func (a *Application) Close() error {
	return a.store.Close()
}
