package semantic

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jetgogoing/sage/pkg/model"
)

func TestClassifyTypeDiagnosticBeatsTechnical(t *testing.T) {
	qc := Analyze("I'm getting an error in my database query function", nil)
	require.Equal(t, model.QueryDiagnostic, qc.Type)
}

func TestClassifyTypeTechnical(t *testing.T) {
	qc := Analyze("how does the config API handle retries", nil)
	require.Equal(t, model.QueryTechnical, qc.Type)
}

func TestClassifyTypeProcedural(t *testing.T) {
	qc := Analyze("how do I set up the project", nil)
	require.Equal(t, model.QueryProcedural, qc.Type)
}

func TestClassifyTypeTechnicalBeatsConceptual(t *testing.T) {
	qc := Analyze("what is the difference between a process and a thread", nil)
	// contains "thread" (technical) and "difference between" (conceptual);
	// technical precedes conceptual in precedence, so this resolves technical.
	require.Equal(t, model.QueryTechnical, qc.Type)
}

func TestClassifyTypeConversationalFallback(t *testing.T) {
	qc := Analyze("thanks, that's all for today", nil)
	require.Equal(t, model.QueryConversational, qc.Type)
}

func TestExtractKeywordsCamelAndSnakeCase(t *testing.T) {
	qc := Analyze("the getUserById function reads from user_profile table", nil)
	require.Contains(t, qc.Keywords, "getuserbyid")
	require.Contains(t, qc.Keywords, "user_profile")
}

func TestToneAndUrgency(t *testing.T) {
	qc := Analyze("this is urgent, the server is down now", nil)
	require.Equal(t, model.ToneUrgent, qc.Tone)
	require.Equal(t, 5, qc.Urgency)
}

func TestToneNeutralDefaultsUrgencyOne(t *testing.T) {
	qc := Analyze("just checking in", nil)
	require.Equal(t, model.ToneNeutral, qc.Tone)
	require.Equal(t, 1, qc.Urgency)
}

func TestClassifyIntentTroubleshooting(t *testing.T) {
	qc := Analyze("can you help me fix this broken build", nil)
	require.Contains(t, qc.Intent, "troubleshooting")
}
