package keyword

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crawlcast/internal/domain/entity"
)

func testGroups() []entity.KeywordGroup {
	return []entity.KeywordGroup{
		{
			Name: "AI Core",
			Keywords: []entity.Keyword{
				{Term: "LLM", Synonyms: []string{"Large Language Model"}},
				{Term: "GPT", Synonyms: []string{"ChatGPT"}},
			},
		},
	}
}

func TestMatcher_ExactMatch(t *testing.T) {
	m := New(testGroups(), nil, false)

	results, err := m.Match(context.Background(), "This article discusses GPT in depth.")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "GPT", results[0].Keyword)
	assert.Equal(t, entity.MatchTierExact, results[0].Tier)
	assert.Equal(t, entity.ScoreExact, results[0].Score)
}

func TestMatcher_SynonymMatch(t *testing.T) {
	m := New(testGroups(), nil, false)

	results, err := m.Match(context.Background(), "A new Large Language Model was released.")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "LLM", results[0].Keyword)
	assert.Equal(t, entity.MatchTierSynonym, results[0].Tier)
	assert.Equal(t, entity.ScoreSynonym, results[0].Score)
}

func TestMatcher_NoMatch_SemanticDisabled(t *testing.T) {
	m := New(testGroups(), nil, false)

	results, err := m.Match(context.Background(), "Completely unrelated gardening tips.")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMatcher_DedupesHigherScoreWins(t *testing.T) {
	results := dedupeHighestScore([]entity.MatchResult{
		{GroupName: "g", Keyword: "k", Tier: entity.MatchTierSynonym, Score: entity.ScoreSynonym},
		{GroupName: "g", Keyword: "k", Tier: entity.MatchTierExact, Score: entity.ScoreExact},
	})

	require.Len(t, results, 1)
	assert.Equal(t, entity.MatchTierExact, results[0].Tier)
}
