package scoring

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jetgogoing/sage/pkg/model"
)

func TestWeightsForKnownAndUnknownType(t *testing.T) {
	require.Equal(t, Weights{0.5, 0.2, 0.2, 0.1}, WeightsFor(model.QueryTechnical))
	require.Equal(t, WeightsFor(model.QueryTechnical), WeightsFor(model.QueryCreative))
}

func TestContextScoreSameSessionAndRole(t *testing.T) {
	qc := model.QueryContext{Type: model.QueryConversational, Keywords: []string{"retry"}}
	c := Candidate{CandidateSession: "s1", CandidateRole: model.RoleAssistant, CandidateKeywords: []string{"retry"}}
	score := ContextScore(qc, c, "s1")
	require.InDelta(t, 1.0, score, 0.001)
}

func TestContextScoreDifferentSessionNoBonus(t *testing.T) {
	qc := model.QueryContext{Type: model.QueryTechnical}
	c := Candidate{CandidateSession: "s2", CandidateRole: model.RoleUser}
	score := ContextScore(qc, c, "s1")
	require.InDelta(t, 0.2, score, 0.001)
}

func TestKeywordScoreCountsHits(t *testing.T) {
	score := KeywordScore([]string{"retry", "timeout"}, "set the retry count in config")
	require.InDelta(t, 0.5, score, 0.001)
}

func TestCombineReasoningHighSemantic(t *testing.T) {
	final, reasoning := Combine(model.QueryTechnical, 0.9, 0.1, 0.1, 0.0)
	require.Greater(t, final, 0.0)
	require.Contains(t, reasoning, "high semantic similarity")
}

func TestCombineReasoningBasicMatch(t *testing.T) {
	_, reasoning := Combine(model.QueryTechnical, 0.1, 0.1, 0.1, 0.0)
	require.Equal(t, "basic match", reasoning)
}

func TestCombineClampedToOne(t *testing.T) {
	final, _ := Combine(model.QueryConceptual, 1, 1, 1, 1)
	require.LessOrEqual(t, final, 1.0)
}
