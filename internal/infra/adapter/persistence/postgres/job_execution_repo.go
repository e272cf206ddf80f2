package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"crawlcast/internal/domain/entity"
	"crawlcast/internal/repository"
)

// JobExecutionRepo is the PostgreSQL-backed implementation of
// repository.JobExecutionRepository.
type JobExecutionRepo struct{ db *sql.DB }

// NewJobExecutionRepo creates a new PostgreSQL-backed job execution repository.
func NewJobExecutionRepo(db *sql.DB) repository.JobExecutionRepository {
	return &JobExecutionRepo{db: db}
}

const jobExecutionColumns = `id, source_id, state, started_at, finished_at, items_found, items_new, retry_count, error`

func scanJobExecution(scanner interface{ Scan(dest ...interface{}) error }) (*entity.JobExecution, error) {
	var job entity.JobExecution
	if err := scanner.Scan(
		&job.ID, &job.SourceID, &job.State, &job.StartedAt, &job.FinishedAt,
		&job.ItemsFound, &job.ItemsNew, &job.RetryCount, &job.Error,
	); err != nil {
		return nil, err
	}
	return &job, nil
}

func (repo *JobExecutionRepo) Create(ctx context.Context, job *entity.JobExecution) error {
	const query = `
INSERT INTO job_executions (source_id, state, started_at, finished_at, items_found, items_new, retry_count, error)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id`
	return repo.db.QueryRowContext(ctx, query,
		job.SourceID, job.State, job.StartedAt, job.FinishedAt,
		job.ItemsFound, job.ItemsNew, job.RetryCount, job.Error,
	).Scan(&job.ID)
}

func (repo *JobExecutionRepo) Update(ctx context.Context, job *entity.JobExecution) error {
	const query = `
UPDATE job_executions SET
       state       = $1,
       finished_at = $2,
       items_found = $3,
       items_new   = $4,
       retry_count = $5,
       error       = $6
WHERE id = $7`
	res, err := repo.db.ExecContext(ctx, query,
		job.State, job.FinishedAt, job.ItemsFound, job.ItemsNew, job.RetryCount, job.Error, job.ID,
	)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("Update: no rows affected")
	}
	return nil
}

func (repo *JobExecutionRepo) ListBySource(ctx context.Context, sourceID int64, limit int) ([]*entity.JobExecution, error) {
	query := fmt.Sprintf(`SELECT %s FROM job_executions WHERE source_id = $1 ORDER BY started_at DESC LIMIT $2`, jobExecutionColumns)
	rows, err := repo.db.QueryContext(ctx, query, sourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("ListBySource: %w", err)
	}
	defer func() { _ = rows.Close() }()

	jobs := make([]*entity.JobExecution, 0, limit)
	for rows.Next() {
		job, err := scanJobExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("ListBySource: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
