package repository

import (
	"context"
	"time"

	"crawlcast/internal/domain/entity"
)

// ContentWithSource pairs a Content with the name of the Source it came from.
type ContentWithSource struct {
	Content    *entity.Content
	SourceName string
}

// ContentSearchFilters contains optional filters for content search.
type ContentSearchFilters struct {
	SourceID *int64     // Optional: filter by source ID
	Status   *entity.ContentStatus
	From     *time.Time // Optional: filter content published >= this date
	To       *time.Time // Optional: filter content published <= this date
}

// ContentRepository persists Content and mediates content-hash dedup.
type ContentRepository interface {
	List(ctx context.Context) ([]*entity.Content, error)
	ListWithSource(ctx context.Context) ([]ContentWithSource, error)
	ListWithSourcePaginated(ctx context.Context, offset, limit int) ([]ContentWithSource, error)
	// ListByStatus returns up to limit items in the given status, oldest
	// first -- used by the pipeline's enrich and notify stages to bound
	// how much work a single run takes on.
	ListByStatus(ctx context.Context, status entity.ContentStatus, limit int) ([]*entity.Content, error)
	// ListByStatusAndMinImportance returns up to limit items in the given
	// status with ImportanceScore >= minImportance, oldest first -- the
	// notify stage's gate so only content that crossed the importance
	// threshold during enrichment is dispatched.
	ListByStatusAndMinImportance(ctx context.Context, status entity.ContentStatus, minImportance float64, limit int) ([]*entity.Content, error)
	// ListForReport returns up to limit Content rows with status IN
	// (processed, notified) whose PublishedAt falls in [from, to], ordered by
	// ImportanceScore descending -- the window the report generator draws
	// its source material from.
	ListForReport(ctx context.Context, from, to time.Time, limit int) ([]*entity.Content, error)
	// ArchiveNotifiedBefore marks up to limit notified contents with
	// PublishedAt older than before as archived, the terminal state in the
	// new->processed->notified->archived lifecycle. Returns the number of
	// rows archived.
	ArchiveNotifiedBefore(ctx context.Context, before time.Time, limit int) (int64, error)
	CountContent(ctx context.Context) (int64, error)
	Get(ctx context.Context, id int64) (*entity.Content, error)
	GetWithSource(ctx context.Context, id int64) (*entity.Content, string, error)
	Search(ctx context.Context, keyword string) ([]*entity.Content, error)
	SearchWithFilters(ctx context.Context, keywords []string, filters ContentSearchFilters) ([]*entity.Content, error)
	// UpsertIfNew inserts content if no row with the same ContentHash
	// exists, returning (true, nil) when it was newly inserted and (false,
	// nil) when a matching hash was already present.
	UpsertIfNew(ctx context.Context, content *entity.Content) (inserted bool, err error)
	Update(ctx context.Context, content *entity.Content) error
	Delete(ctx context.Context, id int64) error
	ExistsByHash(ctx context.Context, hash string) (bool, error)
	ExistsByHashBatch(ctx context.Context, hashes []string) (map[string]bool, error)
}
