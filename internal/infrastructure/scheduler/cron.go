// Package scheduler drives periodic pipeline runs from a cron expression.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dcrobot-keen/it-news-mail/internal/ports"
)

// CronScheduler runs a job on a standard five-field cron expression
// evaluated in a configured timezone.
type CronScheduler struct {
	expression string
	location   *time.Location
	runner     *cron.Cron
	logger     *slog.Logger
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// New builds a scheduler for the given expression and timezone.
func New(expression string, location *time.Location, logger *slog.Logger) *CronScheduler {
	if location == nil {
		location = time.UTC
	}
	return &CronScheduler{
		expression: expression,
		location:   location,
		logger:     logger.With("component", "scheduler"),
	}
}

// Start registers the job and begins firing it on schedule. The job runs
// on the cron goroutine; overlapping runs are prevented by cron running
// entries sequentially per schedule.
func (s *CronScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if s.runner != nil {
		return fmt.Errorf("scheduler already started")
	}

	runner := cron.New(cron.WithLocation(s.location))
	_, err := runner.AddFunc(s.expression, func() {
		if ctx.Err() != nil {
			return
		}
		job(time.Now().In(s.location))
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", s.expression, err)
	}

	runner.Start()
	s.runner = runner
	s.logger.Info("scheduler started", "expression", s.expression, "timezone", s.location.String())
	return nil
}

// Stop halts scheduling and waits for a running job to finish, bounded by
// the context deadline.
func (s *CronScheduler) Stop(ctx context.Context) error {
	if s.runner == nil {
		return nil
	}

	done := s.runner.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.runner = nil
	s.logger.Info("scheduler stopped")
	return nil
}
