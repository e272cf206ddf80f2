package entity

// MatchTier identifies which stage of keyword matching produced a MatchResult.
type MatchTier string

const (
	MatchTierExact    MatchTier = "exact"
	MatchTierSynonym  MatchTier = "synonym"
	MatchTierSemantic MatchTier = "semantic"
)

// Score values assigned to each matching tier, highest-confidence first.
const (
	ScoreExact    = 1.0
	ScoreSynonym  = 0.9
	ScoreSemantic = 0.7
)

// MatchResult records a single keyword hit against a piece of Content.
type MatchResult struct {
	GroupName string
	Keyword   string
	Tier      MatchTier
	Score     float64
}

// Key returns the "group:keyword" identity used for deduplication, keeping
// the highest-scoring MatchResult when the same keyword matches on more
// than one tier.
func (m MatchResult) Key() string {
	return m.GroupName + ":" + m.Keyword
}
