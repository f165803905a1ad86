// Package temporal is the Temporal Scorer (spec §4.9): converts a
// memory's age into a recency score, modulated by query urgency and a
// session-relevance bonus. Pure function, no external state — grounded
// on the teacher's decay-style scoring found in pkg/reasoning's
// relevance weighting, generalized to this exact formula.
package temporal

import (
	"math"

	"github.com/jetgogoing/sage/pkg/model"
)

// decayBase gives the "half-life ≈ 13 days" of spec §4.9 as a
// consequence of 0.95^(Δt/24); there is no separate half-life knob.
const decayBase = 0.95

// Score computes the temporal score for a memory aged ageHours, given
// the query's urgency (1..5) and whether/how its session relates to
// recent history (spec §4.9).
func Score(ageHours float64, urgency int, sessionBonus float64) float64 {
	base := math.Pow(decayBase, ageHours/24)
	if ageHours <= 24 {
		base *= 2.0
	}
	if ageHours <= 1 {
		base *= 1.5
	}

	floor := 0.0
	switch {
	case ageHours <= 1:
		floor = 0.9
	case ageHours <= 24:
		floor = 0.7
	}

	score := math.Max(base, floor)
	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}

	if urgency >= 4 {
		score *= 1 + float64(5-urgency)*0.2
	}

	score += sessionBonus
	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}

// SessionBonus computes the +0.3 same-session / +0.1-per-keyword-overlap
// bonus against recentSessions, capped at 1.0 (spec §4.9). It is kept
// separate from Score so callers can compute it once per candidate
// session rather than per keyword-compare call.
func SessionBonus(candidateSessionID string, candidateKeywords []string, recentSessions []model.SessionHistoryEntry) float64 {
	var bonus float64
	for _, h := range recentSessions {
		if h.SessionID != candidateSessionID {
			continue
		}
		bonus += 0.3
		bonus += 0.1 * float64(keywordOverlapCount(candidateKeywords, h.Keywords))
	}
	if bonus > 1.0 {
		bonus = 1.0
	}
	return bonus
}

func keywordOverlapCount(a, b []string) int {
	set := make(map[string]bool, len(b))
	for _, k := range b {
		set[k] = true
	}
	count := 0
	for _, k := range a {
		if set[k] {
			count++
		}
	}
	return count
}
