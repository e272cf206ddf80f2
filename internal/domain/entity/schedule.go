package entity

import "time"

// Schedule configures when a Source's pipeline run is triggered via cron.
type Schedule struct {
	ID         int64
	SourceID   int64
	CronExpr   string
	Timezone   string // IANA location name; falls back to UTC if unrecognized
	Enabled    bool
	NextRunAt  *time.Time
	LastRunAt  *time.Time
}

// Validate validates the Schedule entity fields.
func (s *Schedule) Validate() error {
	if s.CronExpr == "" {
		return &ValidationError{Field: "cron_expr", Message: "cron_expr is required"}
	}
	if s.Timezone == "" {
		s.Timezone = "UTC"
	}
	return nil
}
