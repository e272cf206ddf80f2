// Package enrich runs AI-powered content analysis: summarization,
// categorization, entity extraction, sentiment, and relevance/importance
// scoring. A failed or malformed AI response never blocks the pipeline --
// it falls back to a neutral default result.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"crawlcast/internal/domain/entity"
	"crawlcast/internal/infra/aiprovider"
	"crawlcast/internal/usecase/aiorchestrator"
)

// maxAnalysisRunes bounds how much content text is sent for full analysis.
const maxAnalysisRunes = 4000

// maxHelperRunes bounds text sent to the supplemental helper methods.
const maxHelperRunes = 3000

// jsonObjectPattern is a last-resort fallback for extracting a JSON object
// embedded in a response that also contains surrounding prose.
var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// Result is the outcome of analyzing one piece of content.
type Result struct {
	Summary         string
	Categories      []string
	Entities        map[string][]string
	Sentiment       string
	RelevanceScore  float64
	ImportanceScore float64
	KeyTopics       []string
}

func defaultResult() Result {
	return Result{
		Sentiment:       "neutral",
		RelevanceScore:  0.5,
		ImportanceScore: 0.5,
		Entities:        map[string][]string{},
	}
}

// AIRequester is the subset of aiorchestrator.Orchestrator this package
// depends on, narrowed so tests can substitute a fake.
type AIRequester interface {
	Request(ctx context.Context, prompt string, task aiorchestrator.TaskKind, preferredProvider aiprovider.ProviderID) (aiorchestrator.Response, error)
}

// Processor runs AI analysis over entity.Content.
type Processor struct {
	orchestrator AIRequester
}

// New creates a Processor.
func New(orchestrator AIRequester) *Processor {
	return &Processor{orchestrator: orchestrator}
}

// Process runs the full analysis pipeline over c. On any failure it logs
// and returns the neutral default result rather than propagating an error,
// so a flaky AI provider never blocks the pipeline.
func (p *Processor) Process(ctx context.Context, c *entity.Content) Result {
	text := c.Title + "\n\n" + c.Body

	result, err := p.analyze(ctx, text)
	if err != nil {
		slog.Error("enrichment analysis failed, using default result",
			slog.Int64("content_id", c.ID), slog.Any("error", err))
		return defaultResult()
	}

	slog.Info("enrichment analysis success",
		slog.Int64("content_id", c.ID),
		slog.Any("categories", result.Categories),
		slog.Float64("importance", result.ImportanceScore))
	return result
}

func (p *Processor) analyze(ctx context.Context, text string) (Result, error) {
	sample := truncateRunes(text, maxAnalysisRunes)
	prompt := fmt.Sprintf(analysisPromptTemplate, sample)

	resp, err := p.orchestrator.Request(ctx, prompt, aiorchestrator.TaskAnalyze, "")
	if err != nil {
		return Result{}, fmt.Errorf("analysis request: %w", err)
	}

	raw, err := parseAnalysisJSON(resp.Content)
	if err != nil {
		return Result{}, fmt.Errorf("analysis response: %w", err)
	}

	return normalizeResult(raw), nil
}

// rawAnalysis is the direct unmarshal target for the AI's analysis JSON,
// before range-clamping and defaulting.
type rawAnalysis struct {
	Summary         string              `json:"summary"`
	Categories      []string            `json:"categories"`
	Entities        map[string][]string `json:"entities"`
	Sentiment       string              `json:"sentiment"`
	RelevanceScore  *float64            `json:"relevance_score"`
	ImportanceScore *float64            `json:"importance_score"`
	KeyTopics       []string            `json:"key_topics"`
}

func parseAnalysisJSON(content string) (rawAnalysis, error) {
	var result rawAnalysis
	if err := json.Unmarshal([]byte(content), &result); err == nil {
		return result, nil
	}

	match := jsonObjectPattern.FindString(content)
	if match == "" {
		return rawAnalysis{}, fmt.Errorf("no JSON object found in response")
	}
	if err := json.Unmarshal([]byte(match), &result); err != nil {
		return rawAnalysis{}, fmt.Errorf("embedded JSON invalid: %w", err)
	}
	return result, nil
}

func normalizeResult(raw rawAnalysis) Result {
	result := defaultResult()
	result.Summary = raw.Summary
	result.Categories = raw.Categories
	if raw.Entities != nil {
		result.Entities = raw.Entities
	}
	if raw.Sentiment != "" {
		result.Sentiment = raw.Sentiment
	}
	if raw.RelevanceScore != nil {
		result.RelevanceScore = clamp01(*raw.RelevanceScore)
	}
	if raw.ImportanceScore != nil {
		result.ImportanceScore = clamp01(*raw.ImportanceScore)
	}
	result.KeyTopics = raw.KeyTopics
	return result
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Summarize generates a short standalone summary of text, independent of
// the full analyze pipeline.
func (p *Processor) Summarize(ctx context.Context, text string, maxLength int) (string, error) {
	sample := truncateRunes(text, maxHelperRunes)
	prompt := fmt.Sprintf(summarizePromptTemplate, maxLength, sample)

	resp, err := p.orchestrator.Request(ctx, prompt, aiorchestrator.TaskSummarize, "")
	if err != nil {
		return "", fmt.Errorf("summarize request: %w", err)
	}
	return strings.TrimSpace(resp.Content), nil
}

// ExtractEntities extracts named entities from text, independent of the
// full analyze pipeline.
func (p *Processor) ExtractEntities(ctx context.Context, text string) (map[string][]string, error) {
	sample := truncateRunes(text, maxHelperRunes)
	prompt := fmt.Sprintf(extractEntitiesPromptTemplate, sample)

	resp, err := p.orchestrator.Request(ctx, prompt, aiorchestrator.TaskExtract, "")
	if err != nil {
		return emptyEntities(), fmt.Errorf("extract entities request: %w", err)
	}

	var entities map[string][]string
	if err := json.Unmarshal([]byte(resp.Content), &entities); err != nil {
		return emptyEntities(), nil
	}
	return entities, nil
}

func emptyEntities() map[string][]string {
	return map[string][]string{
		"companies":    {},
		"people":       {},
		"technologies": {},
		"locations":    {},
	}
}

// Classify classifies text into zero or more of the given categories.
func (p *Processor) Classify(ctx context.Context, text string, categories []string) ([]string, error) {
	sample := truncateRunes(text, maxHelperRunes)
	prompt := fmt.Sprintf(classifyPromptTemplate, strings.Join(categories, ", "), sample)

	resp, err := p.orchestrator.Request(ctx, prompt, aiorchestrator.TaskClassify, "")
	if err != nil {
		return nil, fmt.Errorf("classify request: %w", err)
	}

	var result []string
	if err := json.Unmarshal([]byte(resp.Content), &result); err != nil {
		return nil, nil
	}
	return result, nil
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

const analysisPromptTemplate = `Analyze the following content and provide a structured analysis.

Content:
%s

Provide your analysis as a JSON object with these fields:
1. "summary": A 2-3 sentence summary of the key points
2. "categories": Array of relevant categories from: ["AI Research", "Product Launch", "Funding/Investment", "Partnership", "Regulation/Policy", "Technical", "Business", "Opinion"]
3. "entities": Object with:
   - "companies": Array of company names mentioned
   - "people": Array of people mentioned
   - "technologies": Array of technologies/products mentioned
4. "sentiment": One of "positive", "negative", "neutral"
5. "relevance_score": Float 0-1, how relevant this is to AI/tech industry
6. "importance_score": Float 0-1, how significant/impactful this news is
7. "key_topics": Array of main topics (e.g., "LLM", "Robotics", "Autonomous Vehicles")

Return ONLY valid JSON, no explanation or markdown.`

const summarizePromptTemplate = `Summarize the following in %d characters or less.
Be concise and capture the key point.

Text:
%s

Summary:`

const extractEntitiesPromptTemplate = `Extract named entities from the following text.

Text:
%s

Return as JSON with keys: "companies", "people", "technologies", "locations"
Only return valid JSON.`

const classifyPromptTemplate = `Classify the following text into one or more of these categories:
%s

Text:
%s

Return only the matching category names as a JSON array.`
