// Package keyword implements the three-tier keyword matching engine: exact
// term matches, synonym matches, and (when the first two come up empty) an
// AI-powered semantic pass.
package keyword

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"crawlcast/internal/domain/entity"
	"crawlcast/internal/infra/aiprovider"
	"crawlcast/internal/usecase/aiorchestrator"
)

// semanticMinScore is the minimum score a semantic match must carry to be
// kept.
const semanticMinScore = 0.5

// semanticSampleRunes bounds how much text is sent to the AI orchestrator
// for a semantic pass.
const semanticSampleRunes = 2000

type lookupEntry struct {
	group string
	term  string
}

// AIRequester is the subset of aiorchestrator.Orchestrator this package
// depends on, narrowed so tests can substitute a fake.
type AIRequester interface {
	Request(ctx context.Context, prompt string, task aiorchestrator.TaskKind, preferredProvider aiprovider.ProviderID) (aiorchestrator.Response, error)
}

// Matcher matches free text against a set of keyword groups using exact,
// synonym, and (as a fallback) AI-driven semantic matching.
type Matcher struct {
	groups         []entity.KeywordGroup
	exactLookup    map[string]lookupEntry
	synonymLookup  map[string]lookupEntry
	orchestrator   AIRequester
	enableSemantic bool
}

// New builds a Matcher from the given keyword groups. orchestrator may be
// nil, in which case semantic matching is always skipped regardless of
// enableSemantic.
func New(groups []entity.KeywordGroup, orchestrator AIRequester, enableSemantic bool) *Matcher {
	m := &Matcher{
		groups:         groups,
		orchestrator:   orchestrator,
		enableSemantic: enableSemantic,
	}
	m.buildLookups()
	return m
}

func (m *Matcher) buildLookups() {
	m.exactLookup = make(map[string]lookupEntry)
	m.synonymLookup = make(map[string]lookupEntry)

	for _, group := range m.groups {
		for _, kw := range group.Keywords {
			m.exactLookup[strings.ToLower(kw.Term)] = lookupEntry{group: group.Name, term: kw.Term}
			for _, syn := range kw.Synonyms {
				m.synonymLookup[strings.ToLower(syn)] = lookupEntry{group: group.Name, term: kw.Term}
			}
		}
	}
}

// Match runs the exact and synonym tiers against text, and the semantic
// tier only when both of those find nothing, returning one
// deduplicated MatchResult per keyword (the highest-scoring tier wins),
// sorted by descending score.
func (m *Matcher) Match(ctx context.Context, text string) ([]entity.MatchResult, error) {
	textLower := strings.ToLower(text)

	var results []entity.MatchResult
	results = append(results, matchLookup(textLower, m.exactLookup, entity.MatchTierExact, entity.ScoreExact)...)
	results = append(results, matchLookup(textLower, m.synonymLookup, entity.MatchTierSynonym, entity.ScoreSynonym)...)

	if len(results) == 0 && m.enableSemantic && m.orchestrator != nil {
		semantic, err := m.matchSemantic(ctx, text)
		if err != nil {
			slog.Warn("semantic keyword match failed", slog.Any("error", err))
		} else {
			results = append(results, semantic...)
		}
	}

	return dedupeHighestScore(results), nil
}

func matchLookup(textLower string, lookup map[string]lookupEntry, tier entity.MatchTier, score float64) []entity.MatchResult {
	var results []entity.MatchResult
	for key, entry := range lookup {
		pattern := `\b` + regexp.QuoteMeta(key) + `\b`
		re, err := regexp.Compile(pattern)
		if err != nil {
			continue
		}
		if re.MatchString(textLower) {
			results = append(results, entity.MatchResult{
				GroupName: entry.group,
				Keyword:   entry.term,
				Tier:      tier,
				Score:     score,
			})
		}
	}
	return results
}

// matchSemantic asks the AI orchestrator to pick semantically relevant
// keywords out of the full registered set.
func (m *Matcher) matchSemantic(ctx context.Context, text string) ([]entity.MatchResult, error) {
	if len(m.groups) == 0 {
		return nil, nil
	}

	var allKeywords []string
	for _, group := range m.groups {
		for _, kw := range group.Keywords {
			allKeywords = append(allKeywords, fmt.Sprintf("%s:%s", group.Name, kw.Term))
		}
	}

	sample := []rune(text)
	if len(sample) > semanticSampleRunes {
		sample = sample[:semanticSampleRunes]
	}

	prompt := fmt.Sprintf(semanticPromptTemplate, string(sample), strings.Join(allKeywords, ", "))

	resp, err := m.orchestrator.Request(ctx, prompt, aiorchestrator.TaskClassify, "")
	if err != nil {
		return nil, fmt.Errorf("semantic match request: %w", err)
	}

	var matches []semanticMatch
	if err := json.Unmarshal([]byte(resp.Content), &matches); err != nil {
		return nil, fmt.Errorf("semantic match response not valid JSON: %w", err)
	}

	var results []entity.MatchResult
	for _, match := range matches {
		if match.Score < semanticMinScore {
			continue
		}
		group, term, ok := strings.Cut(match.Keyword, ":")
		if !ok {
			continue
		}
		results = append(results, entity.MatchResult{
			GroupName: group,
			Keyword:   term,
			Tier:      entity.MatchTierSemantic,
			Score:     match.Score,
		})
	}
	return results, nil
}

type semanticMatch struct {
	Keyword string  `json:"keyword"`
	Score   float64 `json:"score"`
	Reason  string  `json:"reason"`
}

const semanticPromptTemplate = `Given the following text and keyword list, identify which keywords are semantically relevant to the text.
Even if the exact keyword doesn't appear, check if the content is about that topic.

Text:
%s

Keywords:
%s

Return a JSON array of objects with:
- "keyword": the matched keyword (format: "group:keyword")
- "score": relevance score from 0.0 to 1.0
- "reason": brief explanation

Only include keywords with score >= 0.5. Return empty array if no matches.
Return ONLY valid JSON.`

// dedupeHighestScore keeps, per Key(), only the highest-scoring
// MatchResult, and returns the result sorted by descending score.
func dedupeHighestScore(results []entity.MatchResult) []entity.MatchResult {
	seen := make(map[string]entity.MatchResult)
	for _, r := range results {
		existing, ok := seen[r.Key()]
		if !ok || r.Score > existing.Score {
			seen[r.Key()] = r
		}
	}

	final := make([]entity.MatchResult, 0, len(seen))
	for _, r := range seen {
		final = append(final, r)
	}
	sort.Slice(final, func(i, j int) bool { return final[i].Score > final[j].Score })
	return final
}
