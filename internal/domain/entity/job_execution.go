package entity

import "time"

// JobState is the coordinator's pipeline state machine: idle -> crawling
// -> saving -> idle, with error escalating out of the happy path.
type JobState string

const (
	JobStateIdle     JobState = "idle"
	JobStateCrawling JobState = "crawling"
	JobStateSaving   JobState = "saving"
	JobStateError    JobState = "error"
)

// JobMaxRetries and JobRetryDelay mirror the Celery retry policy this
// pipeline was distilled from: up to 3 retries, fixed 60s delay between
// attempts.
const (
	JobMaxRetries = 3
	JobRetryDelay = 60 * time.Second
)

// JobExecution records a single run of the pipeline coordinator for a Source.
type JobExecution struct {
	ID          int64
	SourceID    int64
	State       JobState
	StartedAt   time.Time
	FinishedAt  *time.Time
	ItemsFound  int
	ItemsNew    int
	RetryCount  int
	Error       string
}

// MarkFailed records a failure and increments the retry counter. Callers
// are responsible for deciding whether to retry based on RetryCount
// against JobMaxRetries.
func (j *JobExecution) MarkFailed(err error) {
	j.State = JobStateError
	if err != nil {
		j.Error = err.Error()
	}
	j.RetryCount++
}

// MarkFinished transitions the execution back to idle and stamps FinishedAt.
func (j *JobExecution) MarkFinished(at time.Time) {
	j.State = JobStateIdle
	j.FinishedAt = &at
}
