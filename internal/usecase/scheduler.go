package usecase

import (
	"context"
	"time"

	"github.com/dcrobot-keen/it-news-mail/internal/ports"
)

// ScheduledRunner fires the pipeline from a scheduler driver.
type ScheduledRunner struct {
	driver   ports.Scheduler
	pipeline *Pipeline
}

// NewScheduledRunner returns a helper to start/stop recurring runs.
func NewScheduledRunner(driver ports.Scheduler, pipeline *Pipeline) *ScheduledRunner {
	return &ScheduledRunner{driver: driver, pipeline: pipeline}
}

// Start registers the pipeline with the scheduler. Run errors are already
// recorded on the ProcessingRun, so the job swallows them.
func (s *ScheduledRunner) Start(ctx context.Context) error {
	job := func(time.Time) {
		_ = s.pipeline.Run(ctx)
	}
	return s.driver.Start(ctx, job)
}

// Stop tears down the underlying scheduler.
func (s *ScheduledRunner) Stop(ctx context.Context) error {
	return s.driver.Stop(ctx)
}
