package entity

import (
	"errors"
	"fmt"
	"time"
)

// SourceKind identifies the crawling strategy a Source requires.
type SourceKind string

const (
	KindFeed        SourceKind = "feed"         // RSS/Atom feed
	KindHTML        SourceKind = "html"         // Generic HTML item list
	KindChannelFeed SourceKind = "channel-feed" // Video/podcast channel feed
	KindSearchIndex SourceKind = "search-index" // Board/trending-style listing page
	KindAPI         SourceKind = "api"          // JSON API endpoint
)

// SourceStatus tracks the crawling health of a Source.
type SourceStatus string

const (
	SourceStatusActive   SourceStatus = "active"   // crawling normally
	SourceStatusInactive SourceStatus = "inactive" // disabled by an operator, not scheduled
	SourceStatusError    SourceStatus = "error"    // escalated past errorEscalationThreshold, scheduling paused
	SourceStatusPending  SourceStatus = "pending"  // created, awaiting its first crawl
)

// errorEscalationThreshold is the number of consecutive crawl failures
// after which a Source is automatically moved to SourceStatusError.
const errorEscalationThreshold = 3

// Source represents a crawlable feed source: its URL, crawl strategy,
// and the selector configuration needed to parse it.
type Source struct {
	ID             int64
	Name           string
	URL            string
	Kind           SourceKind
	Config         *ScraperConfig
	ConfigVersion  int
	AIHealedConfig bool // true if Config was produced by self-heal rather than the operator

	Active        bool
	Status        SourceStatus
	ErrorCount    int
	LastCrawledAt *time.Time
	LastError     string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ScraperConfig holds the selector/extraction configuration used by
// internal/infra/parser implementations. Only the fields relevant to
// the Source's Kind need to be populated; unused fields are ignored.
type ScraperConfig struct {
	// HTML list / search-index selectors
	RowSelector   string `json:"row_selector,omitempty"`
	ListSelector  string `json:"list_selector,omitempty"`
	TitleSelector string `json:"title_selector,omitempty"`
	URLSelector   string `json:"url_selector,omitempty"`
	DateSelector  string `json:"date_selector,omitempty"`
	DateFormat    string `json:"date_format,omitempty"`

	// Common
	URLPrefix  string            `json:"url_prefix,omitempty"` // prepended to relative URLs
	Headers    map[string]string `json:"headers,omitempty"`
	UseBrowser bool              `json:"use_browser,omitempty"`
	Timeout    time.Duration     `json:"timeout,omitempty"`
}

// RecordSuccess resets the error count and refreshes LastCrawledAt after
// a successful crawl. A source awaiting its first crawl or recovering from
// error status is moved to active; an operator-disabled source stays
// inactive.
func (s *Source) RecordSuccess(at time.Time) {
	s.ErrorCount = 0
	s.LastError = ""
	s.LastCrawledAt = &at
	if s.Status == SourceStatusError || s.Status == SourceStatusPending {
		s.Status = SourceStatusActive
	}
}

// RecordFailure increments the error count and escalates the source to
// SourceStatusError once errorEscalationThreshold consecutive failures
// have been observed.
func (s *Source) RecordFailure(err error) {
	s.ErrorCount++
	if err != nil {
		s.LastError = err.Error()
	}
	if s.ErrorCount >= errorEscalationThreshold {
		s.Status = SourceStatusError
	}
}

// Validate validates the Source entity fields.
func (s *Source) Validate() error {
	if s.Name == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}

	if err := ValidateURL(s.URL); err != nil {
		return err
	}

	validKinds := map[SourceKind]bool{
		KindFeed: true, KindHTML: true, KindChannelFeed: true,
		KindSearchIndex: true, KindAPI: true,
	}
	if s.Kind == "" {
		s.Kind = KindFeed
	}
	if !validKinds[s.Kind] {
		return fmt.Errorf("invalid source kind: %s", s.Kind)
	}

	if s.Kind != KindFeed && s.Kind != KindChannelFeed && s.Config == nil {
		return errors.New("config is required for html, search-index, and api sources")
	}

	if s.Status == "" {
		s.Status = SourceStatusPending
	}

	return nil
}
