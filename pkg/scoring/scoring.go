// Package scoring is the Hybrid Scorer (spec §4.10): combines semantic
// similarity, temporal score, context score and keyword score into one
// final score and a human-readable reasoning string, with weights
// keyed by query type.
package scoring

import (
	"strings"

	"github.com/jetgogoing/sage/pkg/model"
)

// Weights is one query type's (semantic, temporal, context, keyword)
// weight tuple (spec §4.10's table).
type Weights struct {
	Semantic float64
	Temporal float64
	Context  float64
	Keyword  float64
}

var weightTable = map[model.QueryType]Weights{
	model.QueryTechnical:      {Semantic: 0.5, Temporal: 0.2, Context: 0.2, Keyword: 0.1},
	model.QueryDiagnostic:     {Semantic: 0.4, Temporal: 0.3, Context: 0.2, Keyword: 0.1},
	model.QueryConversational: {Semantic: 0.3, Temporal: 0.4, Context: 0.3, Keyword: 0.0},
	model.QueryConceptual:     {Semantic: 0.6, Temporal: 0.1, Context: 0.2, Keyword: 0.1},
	model.QueryProcedural:     {Semantic: 0.5, Temporal: 0.2, Context: 0.2, Keyword: 0.1},
}

// WeightsFor returns the weight tuple for queryType, defaulting to the
// technical row for any type the table does not name (e.g. creative).
func WeightsFor(queryType model.QueryType) Weights {
	if w, ok := weightTable[queryType]; ok {
		return w
	}
	return weightTable[model.QueryTechnical]
}

// Candidate is the per-result input to Combine: a base similarity plus
// the signals needed to derive temporal, context and keyword scores.
type Candidate struct {
	Similarity        float64
	CandidateSession  string
	CandidateRole     model.Role
	CandidateKeywords []string
}

// ContextScore computes the context component of the final score:
// 40% session continuity, role-consistency, and technical-domain
// keyword overlap, capped at 1.0 (spec §4.10).
func ContextScore(qc model.QueryContext, c Candidate, querySessionID string) float64 {
	var score float64

	if c.CandidateSession != "" && c.CandidateSession == querySessionID {
		score += 0.4
	}

	// Conversational continuations read best from the assistant side;
	// other query types read best from the user's own words.
	if qc.Type == model.QueryConversational {
		if c.CandidateRole == model.RoleAssistant {
			score += 0.2
		}
	} else if c.CandidateRole == model.RoleUser {
		score += 0.2
	}

	overlap := keywordOverlapRatio(qc.Keywords, c.CandidateKeywords)
	score += 0.4 * overlap

	if score > 1.0 {
		score = 1.0
	}
	return score
}

func keywordOverlapRatio(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(b))
	for _, k := range b {
		set[k] = true
	}
	hits := 0
	for _, k := range a {
		if set[k] {
			hits++
		}
	}
	return float64(hits) / float64(len(a))
}

// KeywordScore is the fraction of the query's keywords present in the
// candidate content, a coarse lexical-overlap signal distinct from the
// context-score's technical-domain overlap.
func KeywordScore(queryKeywords []string, content string) float64 {
	if len(queryKeywords) == 0 {
		return 0
	}
	lower := strings.ToLower(content)
	hits := 0
	for _, k := range queryKeywords {
		if strings.Contains(lower, k) {
			hits++
		}
	}
	return float64(hits) / float64(len(queryKeywords))
}

// Combine blends the four component scores per queryType's weights and
// produces a reasoning string (spec §4.10).
func Combine(queryType model.QueryType, semanticScore, temporalScore, contextScore, keywordScore float64) (final float64, reasoning string) {
	w := WeightsFor(queryType)
	final = w.Semantic*semanticScore + w.Temporal*temporalScore + w.Context*contextScore + w.Keyword*keywordScore
	if final > 1 {
		final = 1
	}
	if final < 0 {
		final = 0
	}

	var reasons []string
	switch {
	case semanticScore >= 0.8:
		reasons = append(reasons, "high semantic similarity")
	case semanticScore >= 0.5:
		reasons = append(reasons, "medium semantic similarity")
	}
	if temporalScore >= 0.7 {
		reasons = append(reasons, "time-sensitive")
	}
	if contextScore >= 0.5 {
		reasons = append(reasons, "context-relevant")
	}
	if keywordScore > 0 {
		reasons = append(reasons, "keyword match")
	}
	if len(reasons) == 0 {
		return final, "basic match"
	}
	return final, strings.Join(reasons, ", ")
}
