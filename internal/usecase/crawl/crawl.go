// Package crawl executes a single Source's fetch-then-parse cycle and,
// when parsing yields nothing, attempts to self-heal the Source's selector
// configuration by asking the AI orchestrator to analyze the page and
// propose new selectors.
package crawl

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"crawlcast/internal/domain/entity"
	"crawlcast/internal/infra/aiprovider"
	"crawlcast/internal/infra/parser"
	"crawlcast/internal/usecase/aiorchestrator"
)

// maxHealSampleBytes bounds how much of the fetched page is sent to the AI
// orchestrator for structure analysis, keeping the prompt cheap.
const maxHealSampleBytes = 10000

// Fetcher retrieves the raw bytes at a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Result is the outcome of crawling one Source.
type Result struct {
	Items []parser.Item
	// HealedConfig is non-nil when parsing the original config produced no
	// items and self-heal succeeded in producing a replacement. The caller
	// (the pipeline coordinator) is responsible for persisting it onto the
	// Source; Crawler itself never mutates Source state.
	HealedConfig *entity.ScraperConfig
}

// AIRequester is the subset of aiorchestrator.Orchestrator this package
// depends on, narrowed so tests can substitute a fake.
type AIRequester interface {
	Request(ctx context.Context, prompt string, task aiorchestrator.TaskKind, preferredProvider aiprovider.ProviderID) (aiorchestrator.Response, error)
}

// Crawler fetches and parses a Source according to its Kind, self-healing
// the selector configuration on a parse failure.
type Crawler struct {
	fetcher      Fetcher
	parsers      map[entity.SourceKind]parser.Parser
	orchestrator AIRequester
}

// New creates a Crawler. parsers maps each SourceKind to the parser
// implementation that serves it; orchestrator may be nil to disable
// self-healing entirely.
func New(fetcher Fetcher, parsers map[entity.SourceKind]parser.Parser, orchestrator AIRequester) *Crawler {
	return &Crawler{fetcher: fetcher, parsers: parsers, orchestrator: orchestrator}
}

// Crawl fetches src.URL and parses it with the parser registered for
// src.Kind. If parsing yields zero items and self-healing is enabled, it
// asks the AI orchestrator for a replacement ScraperConfig, reparses with
// it, and returns the healed config alongside the items for the caller to
// persist.
func (c *Crawler) Crawl(ctx context.Context, src *entity.Source) (Result, error) {
	p, ok := c.parsers[src.Kind]
	if !ok {
		return Result{}, fmt.Errorf("no parser registered for source kind %q", src.Kind)
	}

	slog.Info("crawl start", slog.Int64("source_id", src.ID), slog.String("url", src.URL), slog.String("kind", string(src.Kind)))

	raw, err := c.fetcher.Fetch(ctx, src.URL)
	if err != nil {
		slog.Error("crawl fetch failed", slog.Int64("source_id", src.ID), slog.Any("error", err))
		return Result{}, fmt.Errorf("fetch source %d: %w", src.ID, err)
	}

	items, err := p.Parse(raw, src.Config)
	if err == nil {
		slog.Info("crawl success", slog.Int64("source_id", src.ID), slog.Int("items", len(items)))
		return Result{Items: items}, nil
	}

	if !isSelectorBased(src.Kind) {
		slog.Error("crawl parse failed", slog.Int64("source_id", src.ID), slog.String("kind", string(src.Kind)), slog.Any("error", err))
		return Result{}, fmt.Errorf("parse source %d: %w", src.ID, err)
	}

	slog.Warn("crawl parse failed, attempting self-heal", slog.Int64("source_id", src.ID), slog.Any("error", err))

	healed, healErr := c.attemptSelfHeal(ctx, src, raw, p)
	if healErr != nil {
		slog.Error("crawl self-heal failed", slog.Int64("source_id", src.ID), slog.Any("error", healErr))
		return Result{}, fmt.Errorf("parse source %d: %w: %w", src.ID, err, entity.ErrHealingFailed)
	}

	slog.Info("crawl self-heal success", slog.Int64("source_id", src.ID), slog.Int("items", len(healed.Items)))
	return healed, nil
}

// isSelectorBased reports whether kind's parser consults a ScraperConfig, and
// so can plausibly be repaired by proposing new selectors. Feed-based kinds
// are self-describing and gain nothing from self-heal.
func isSelectorBased(kind entity.SourceKind) bool {
	return kind == entity.KindHTML || kind == entity.KindSearchIndex
}

// attemptSelfHeal asks the AI orchestrator to propose a new ScraperConfig
// from a sample of the fetched page, then reparses with it.
func (c *Crawler) attemptSelfHeal(ctx context.Context, src *entity.Source, raw []byte, p parser.Parser) (Result, error) {
	if c.orchestrator == nil {
		return Result{}, fmt.Errorf("self-heal disabled: no AI orchestrator configured")
	}

	sample := raw
	if len(sample) > maxHealSampleBytes {
		sample = sample[:maxHealSampleBytes]
	}

	prompt := fmt.Sprintf(selfHealPromptTemplate, string(sample))

	resp, err := c.orchestrator.Request(ctx, prompt, aiorchestrator.TaskExtract, "")
	if err != nil {
		return Result{}, fmt.Errorf("self-heal request: %w", err)
	}

	var proposed healedSelectors
	if err := json.Unmarshal([]byte(resp.Content), &proposed); err != nil {
		return Result{}, fmt.Errorf("self-heal response not valid JSON: %w", err)
	}

	newConfig := &entity.ScraperConfig{
		ListSelector:  proposed.ListSelector,
		RowSelector:   proposed.ListSelector,
		TitleSelector: proposed.TitleSelector,
		URLSelector:   proposed.LinkSelector,
		DateSelector:  proposed.DateSelector,
	}

	items, err := p.Parse(raw, newConfig)
	if err != nil {
		return Result{}, fmt.Errorf("reparse with healed config: %w", err)
	}

	return Result{Items: items, HealedConfig: newConfig}, nil
}

// healedSelectors is the JSON shape expected back from the self-heal
// completion request.
type healedSelectors struct {
	ListSelector  string `json:"list_selector"`
	TitleSelector string `json:"title_selector"`
	LinkSelector  string `json:"link_selector"`
	DateSelector  string `json:"date_selector"`
}

const selfHealPromptTemplate = `Analyze this HTML and provide CSS selectors to extract news/article list items.

HTML:
%s

Return a JSON object with these fields:
- list_selector: CSS selector for the list container or repeated items
- title_selector: CSS selector for article title (relative to list item)
- link_selector: CSS selector for article link (relative to list item)
- date_selector: CSS selector for publish date (relative to list item, if available)

Only return valid JSON, no explanation.`
