// Package entity defines the core domain entities and validation logic for the
// application: the crawlable Source, the Content it yields, keyword matching,
// scheduling, and notification routing.
package entity

import "time"

// ContentStatus tracks a Content item through the enrichment pipeline.
type ContentStatus string

const (
	ContentStatusNew       ContentStatus = "new"       // crawled, not yet enriched
	ContentStatusProcessed ContentStatus = "processed" // enrichment complete
	ContentStatusNotified  ContentStatus = "notified"  // dispatched to notification channels
	ContentStatusArchived  ContentStatus = "archived"  // retained for history, excluded from active pipelines
)

// Content represents a single crawled item (article, video, listing row)
// along with the results of AI enrichment and keyword matching.
type Content struct {
	ID       int64
	SourceID int64

	Title string
	URL   string
	Body  string

	// ContentHash is sha256(url|title|body) hex-encoded, the sole dedup key.
	ContentHash string

	PublishedAt time.Time
	CreatedAt   time.Time

	Status ContentStatus

	// Enrichment results (see internal/usecase/enrich).
	Summary         *string
	Categories      []string
	Entities        map[string][]string
	Sentiment       string
	RelevanceScore  float64
	ImportanceScore float64
	KeyTopics       []string

	MatchedKeywords []MatchResult
}

// Validate validates the Content entity fields.
func (c *Content) Validate() error {
	if c.Title == "" {
		return &ValidationError{Field: "title", Message: "title is required"}
	}

	if err := ValidateURL(c.URL); err != nil {
		return err
	}

	if c.Status == "" {
		c.Status = ContentStatusNew
	}

	return nil
}
