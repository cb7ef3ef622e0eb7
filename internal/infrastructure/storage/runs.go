package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/dcrobot-keen/it-news-mail/internal/domain"
)

// CreateRun inserts a new processing run in the running state.
func (s *Store) CreateRun(ctx context.Context) (domain.ProcessingRun, error) {
	started := s.now()
	run := domain.ProcessingRun{
		Status:    domain.RunRunning,
		StartedAt: started,
	}

	insert := s.sb.Insert("processing_runs").
		Columns("status", "started_at").
		Values(string(run.Status), started.Unix())

	if s.driver == DriverPostgres {
		var id int64
		err := insert.Suffix("RETURNING id").RunWith(s.db).QueryRowContext(ctx).Scan(&id)
		if err != nil {
			return domain.ProcessingRun{}, fmt.Errorf("create run: %w", err)
		}
		run.ID = id
		return run, nil
	}

	res, err := insert.RunWith(s.db).ExecContext(ctx)
	if err != nil {
		return domain.ProcessingRun{}, fmt.Errorf("create run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.ProcessingRun{}, fmt.Errorf("create run: %w", err)
	}
	run.ID = id
	return run, nil
}

// UpdateRun persists the run's counters and status.
func (s *Store) UpdateRun(ctx context.Context, run domain.ProcessingRun) error {
	_, err := s.sb.Update("processing_runs").
		Set("articles_crawled", run.ArticlesCrawled).
		Set("articles_summarized", run.ArticlesSummarized).
		Set("emails_sent", run.EmailsSent).
		Set("status", string(run.Status)).
		Set("error_message", run.ErrorMessage).
		Set("completed_at", unixOrNil(run.CompletedAt)).
		Where(sq.Eq{"id": run.ID}).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("update run %d: %w", run.ID, err)
	}
	return nil
}

// LastRun returns the most recent processing run, if any.
func (s *Store) LastRun(ctx context.Context) (domain.ProcessingRun, bool, error) {
	row := s.sb.Select("id", "articles_crawled", "articles_summarized", "emails_sent", "status", "error_message", "started_at", "completed_at").
		From("processing_runs").
		OrderBy("id DESC").
		Limit(1).
		RunWith(s.db).
		QueryRowContext(ctx)

	var (
		run         domain.ProcessingRun
		status      string
		startedAt   int64
		completedAt sql.NullInt64
	)
	err := row.Scan(&run.ID, &run.ArticlesCrawled, &run.ArticlesSummarized, &run.EmailsSent,
		&status, &run.ErrorMessage, &startedAt, &completedAt)
	if err == sql.ErrNoRows {
		return domain.ProcessingRun{}, false, nil
	}
	if err != nil {
		return domain.ProcessingRun{}, false, fmt.Errorf("load last run: %w", err)
	}

	run.Status = domain.RunStatus(status)
	run.StartedAt = time.Unix(startedAt, 0).UTC()
	run.CompletedAt = unixToTime(completedAt)
	return run, true, nil
}
