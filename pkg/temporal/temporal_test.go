package temporal

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jetgogoing/sage/pkg/model"
)

func TestScoreVeryRecentHitsInSessionFloor(t *testing.T) {
	s := Score(0.5, 1, 0)
	require.GreaterOrEqual(t, s, 0.9)
}

func TestScoreWithinDayHitsRecencyFloor(t *testing.T) {
	s := Score(12, 1, 0)
	require.GreaterOrEqual(t, s, 0.7)
}

func TestScoreOldDecaysTowardZero(t *testing.T) {
	s := Score(24*90, 1, 0)
	require.Less(t, s, 0.1)
}

func TestScoreUrgencyModulationBoostsRecentMaterial(t *testing.T) {
	// Within 24h the score already saturates at 1, and urgency 5 has a
	// 1.0 multiplier, so use 48h (0.95^2 ≈ 0.90) and urgency 4 (×1.2).
	low := Score(48, 1, 0)
	high := Score(48, 4, 0)
	require.Greater(t, high, low)
}

func TestScoreClampedToOne(t *testing.T) {
	s := Score(0.1, 5, 1.0)
	require.LessOrEqual(t, s, 1.0)
}

func TestSessionBonusSameSessionAndKeywordOverlap(t *testing.T) {
	history := []model.SessionHistoryEntry{{SessionID: "s1", Keywords: []string{"config", "retry"}}}
	bonus := SessionBonus("s1", []string{"config", "retry", "timeout"}, history)
	require.InDelta(t, 0.5, bonus, 0.001)
}

func TestSessionBonusCappedAtOne(t *testing.T) {
	history := []model.SessionHistoryEntry{{SessionID: "s1", Keywords: make([]string, 20)}}
	kws := make([]string, 20)
	for i := range kws {
		kws[i] = history[0].Keywords[i]
	}
	bonus := SessionBonus("s1", kws, history)
	require.LessOrEqual(t, bonus, 1.0)
}

func TestSessionBonusNoMatchIsZero(t *testing.T) {
	bonus := SessionBonus("s1", []string{"a"}, nil)
	require.Equal(t, 0.0, bonus)
}
