package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/dcrobot-keen/it-news-mail/internal/app"
	"github.com/dcrobot-keen/it-news-mail/internal/config"
	"github.com/dcrobot-keen/it-news-mail/internal/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to config file")
	serve := flag.Bool("serve", false, "run on the configured cron schedule instead of once")
	resetDate := flag.String("reset-date", "", "reset summaries for a date (YYYY-MM-DD) and exit")
	resetAllSent := flag.Bool("reset-all-sent", false, "clear the sent flag on every article and exit")
	regenDate := flag.String("regen-date", "", "reset, re-summarize, and re-export a date (YYYY-MM-DD) and exit")
	flag.Parse()

	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	logger := logging.New(cfg.Logging.Level)

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		return 1
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch {
	case *resetDate != "":
		count, err := application.ResetDate(ctx, *resetDate)
		if err != nil {
			logger.Error("reset date failed", "date", *resetDate, "error", err)
			return 1
		}
		logger.Info("reset done", "date", *resetDate, "articles", count)

	case *resetAllSent:
		count, err := application.ResetAllSent(ctx)
		if err != nil {
			logger.Error("reset all sent failed", "error", err)
			return 1
		}
		logger.Info("reset done", "articles", count)

	case *regenDate != "":
		if err := application.RegenerateDate(ctx, *regenDate); err != nil {
			logger.Error("regeneration failed", "date", *regenDate, "error", err)
			return 1
		}

	case *serve:
		if err := application.Serve(ctx); err != nil {
			logger.Error("serve mode failed", "error", err)
			return 1
		}

	default:
		if err := application.RunOnce(ctx); err != nil {
			return 1
		}
	}
	return 0
}
