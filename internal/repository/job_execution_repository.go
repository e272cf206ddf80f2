package repository

import (
	"context"

	"crawlcast/internal/domain/entity"
)

// JobExecutionRepository persists JobExecution records opened and closed by
// the pipeline coordinator around each per-source run.
type JobExecutionRepository interface {
	// Create inserts a new execution record and assigns its ID.
	Create(ctx context.Context, job *entity.JobExecution) error
	// Update persists the final state (State, FinishedAt, counters, Error)
	// of an already-created execution.
	Update(ctx context.Context, job *entity.JobExecution) error
	// ListBySource returns the most recent executions for a source, newest
	// first, bounded by limit.
	ListBySource(ctx context.Context, sourceID int64, limit int) ([]*entity.JobExecution, error)
}
