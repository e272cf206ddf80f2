// Package report assembles AI-generated intelligence reports (daily brief,
// weekly roundup, or a custom topic digest) from the window of Content the
// pipeline has already processed and notified on.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"crawlcast/internal/domain/entity"
	"crawlcast/internal/infra/aiprovider"
	"crawlcast/internal/usecase/aiorchestrator"
)

// maxWindowContents bounds how many Content rows a report draws from.
const maxWindowContents = 100

// maxPromptContents bounds how many of those rows are formatted into the AI
// prompt -- the report's narrative only needs the highest-importance slice.
const maxPromptContents = 50

// maxSources bounds the "sources" list attached to the finished report.
const maxSources = 10

const defaultCustomWindowDays = 30

// Kind identifies which of the three report shapes to generate.
type Kind string

const (
	KindDaily  Kind = "daily"
	KindWeekly Kind = "weekly"
	KindCustom Kind = "custom"
)

// Source is a minimal citation entry: enough to link back to the content
// a report drew on without re-embedding the full item.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Period is the [Start, End] window a report covers.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Report is the finished envelope returned to callers (a CLI command, an
// HTTP handler, or a scheduled job -- report itself has no opinion on
// delivery).
type Report struct {
	ID           string          `json:"id"`
	Type         Kind            `json:"type"`
	Topic        string          `json:"topic,omitempty"`
	Period       Period          `json:"period"`
	GeneratedAt  time.Time       `json:"generated_at"`
	ContentCount int             `json:"content_count"`
	Report       json.RawMessage `json:"report"`
	Sources      []Source        `json:"sources"`
}

// ContentLister is the subset of repository.ContentRepository the report
// generator depends on, narrowed so tests can substitute a fake.
type ContentLister interface {
	ListForReport(ctx context.Context, from, to time.Time, limit int) ([]*entity.Content, error)
}

// AIRequester is the subset of aiorchestrator.Orchestrator this package
// depends on, narrowed so tests can substitute a fake.
type AIRequester interface {
	Request(ctx context.Context, prompt string, task aiorchestrator.TaskKind, preferredProvider aiprovider.ProviderID) (aiorchestrator.Response, error)
}

// Generator builds Reports from processed Content.
type Generator struct {
	contents     ContentLister
	orchestrator AIRequester
}

// New creates a Generator.
func New(contents ContentLister, orchestrator AIRequester) *Generator {
	return &Generator{contents: contents, orchestrator: orchestrator}
}

// GenerateDaily builds a report covering the last 24 hours.
func (g *Generator) GenerateDaily(ctx context.Context) (*Report, error) {
	end := time.Now().UTC()
	start := end.Add(-24 * time.Hour)
	return g.generate(ctx, KindDaily, start, end, "")
}

// GenerateWeekly builds a report covering the last 7 days.
func (g *Generator) GenerateWeekly(ctx context.Context) (*Report, error) {
	end := time.Now().UTC()
	start := end.Add(-7 * 24 * time.Hour)
	return g.generate(ctx, KindWeekly, start, end, "")
}

// GenerateCustom builds a topic-focused report covering the last days days
// (30 when days <= 0).
func (g *Generator) GenerateCustom(ctx context.Context, topic string, days int) (*Report, error) {
	if days <= 0 {
		days = defaultCustomWindowDays
	}
	end := time.Now().UTC()
	start := end.Add(-time.Duration(days) * 24 * time.Hour)
	return g.generate(ctx, KindCustom, start, end, topic)
}

func (g *Generator) generate(ctx context.Context, kind Kind, start, end time.Time, topic string) (*Report, error) {
	contents, err := g.contents.ListForReport(ctx, start, end, maxWindowContents)
	if err != nil {
		return nil, fmt.Errorf("list contents for report: %w", err)
	}

	if len(contents) == 0 {
		return emptyReport(kind, start, end, topic), nil
	}

	return g.buildReport(ctx, kind, contents, start, end, topic)
}

func (g *Generator) buildReport(ctx context.Context, kind Kind, contents []*entity.Content, start, end time.Time, topic string) (*Report, error) {
	sample := contents
	if len(sample) > maxPromptContents {
		sample = sample[:maxPromptContents]
	}

	prompt := promptFor(kind, formatContentsForPrompt(sample), start, end, topic)

	resp, err := g.orchestrator.Request(ctx, prompt, aiorchestrator.TaskAnalyze, "")
	if err != nil {
		return nil, fmt.Errorf("report request: %w", err)
	}

	return &Report{
		ID:           reportID(kind, end),
		Type:         kind,
		Topic:        topic,
		Period:       Period{Start: start, End: end},
		GeneratedAt:  time.Now().UTC(),
		ContentCount: len(contents),
		Report:       parseReportBody(resp.Content),
		Sources:      sourcesFrom(contents),
	}, nil
}

// parseReportBody returns resp verbatim if it is valid JSON, matching the
// shape the prompt asked for; otherwise it wraps the raw text under
// "raw_analysis" so a malformed completion never fails report generation.
func parseReportBody(content string) json.RawMessage {
	trimmed := strings.TrimSpace(content)
	if json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed)
	}

	fallback, err := json.Marshal(map[string]string{"raw_analysis": content})
	if err != nil {
		return json.RawMessage(`{"raw_analysis":""}`)
	}
	return fallback
}

func sourcesFrom(contents []*entity.Content) []Source {
	n := len(contents)
	if n > maxSources {
		n = maxSources
	}
	sources := make([]Source, 0, n)
	for _, c := range contents[:n] {
		sources = append(sources, Source{Title: c.Title, URL: c.URL})
	}
	return sources
}

func emptyReport(kind Kind, start, end time.Time, topic string) *Report {
	body, _ := json.Marshal(map[string]string{
		"message": "No content available for the specified period.",
	})
	return &Report{
		ID:           reportID(kind, end),
		Type:         kind,
		Topic:        topic,
		Period:       Period{Start: start, End: end},
		GeneratedAt:  time.Now().UTC(),
		ContentCount: 0,
		Report:       body,
		Sources:      []Source{},
	}
}

func reportID(kind Kind, end time.Time) string {
	return fmt.Sprintf("%s_%s", kind, end.Format("20060102"))
}

// formatContentsForPrompt renders a numbered digest of contents for the AI
// prompt: title, optional summary, optional categories, one per item.
func formatContentsForPrompt(contents []*entity.Content) string {
	var b strings.Builder
	for i, c := range contents {
		fmt.Fprintf(&b, "%d. %s\n", i+1, c.Title)
		if c.Summary != nil && *c.Summary != "" {
			fmt.Fprintf(&b, "   Summary: %s\n", *c.Summary)
		}
		if len(c.Categories) > 0 {
			fmt.Fprintf(&b, "   Categories: %s\n", strings.Join(c.Categories, ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func promptFor(kind Kind, contentText string, start, end time.Time, topic string) string {
	switch kind {
	case KindWeekly:
		return fmt.Sprintf(weeklyPromptTemplate, start.Format("2006-01-02"), end.Format("2006-01-02"), contentText)
	case KindCustom:
		return fmt.Sprintf(customPromptTemplate, topic, start.Format("2006-01-02"), end.Format("2006-01-02"), contentText)
	default:
		return fmt.Sprintf(dailyPromptTemplate, end.Format("2006-01-02"), contentText)
	}
}

const dailyPromptTemplate = `Generate a daily intelligence brief for %s.

Based on these items:
%s

Create a JSON report with:
1. "headline": One-sentence overview of the day's most important development
2. "top_stories": Array of 3-5 most important stories, each with "title", "summary" (2-3 sentences), "impact" (1 sentence), and "importance" ("high", "medium", or "low")
3. "trends": Array of 2-3 emerging trends observed
4. "keyword_stats": Object mapping keyword categories to mention counts
5. "notable_companies": Array of companies prominently mentioned
6. "outlook": Brief outlook for tomorrow based on today's developments

Return ONLY valid JSON.`

const weeklyPromptTemplate = `Generate a weekly intelligence report for %s to %s.

Based on these items:
%s

Create a comprehensive JSON report with:
1. "executive_summary": 3-4 sentence overview of the week
2. "key_developments": Array of 5-7 major developments, each with "title", "description" (3-4 sentences), "implications", and "category"
3. "trend_analysis": Array of 3-5 trends, each with "trend", "evidence", and "trajectory" ("rising", "stable", or "declining")
4. "company_spotlight": Analysis of the 3-5 most active companies
5. "technology_focus": Deep dive on 2-3 key technologies mentioned
6. "market_signals": Any market-relevant signals observed
7. "next_week_watchlist": 3-5 things to watch next week

Return ONLY valid JSON.`

const customPromptTemplate = `Generate a focused intelligence report on %q covering %s to %s.

Based on these relevant items:
%s

Create a focused JSON report with:
1. "overview": Executive summary of the topic's developments
2. "timeline": Chronological array of key events
3. "key_players": Companies and people involved
4. "technical_details": Any technical information mentioned
5. "market_impact": Market and business implications
6. "competitive_landscape": How different players are positioned
7. "future_outlook": Predictions and expected developments
8. "recommendations": Actionable insights

Return ONLY valid JSON.`
