package aggregator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jetgogoing/sage/pkg/hookstore"
	"github.com/jetgogoing/sage/pkg/model"
)

func newTestAggregator(t *testing.T) (*Aggregator, *hookstore.Store) {
	t.Helper()
	store, err := hookstore.New(t.TempDir())
	require.NoError(t, err)
	return New(store), store
}

func TestAggregateSessionOrdersAndCounts(t *testing.T) {
	agg, store := newTestAggregator(t)
	base := time.Now()

	require.NoError(t, store.RecordPre("c1", model.PreCallEvent{SessionID: "s1", ToolName: "Bash", ToolInput: "ls", Timestamp: base}))
	require.NoError(t, store.RecordPost("c1", model.PostCallEvent{ToolOutput: "ok", Timestamp: base}))

	require.NoError(t, store.RecordPre("c2", model.PreCallEvent{SessionID: "s1", ToolName: "Read", ToolInput: "f.go", Timestamp: base.Add(time.Second)}))
	require.NoError(t, store.RecordPost("c2", model.PostCallEvent{IsError: true, ErrorMessage: "boom", Timestamp: base.Add(time.Second)}))

	require.NoError(t, store.RecordPre("c3", model.PreCallEvent{SessionID: "s1", ToolName: "Grep", ToolInput: "x", Timestamp: base.Add(2 * time.Second)}))

	calls, stats, err := agg.AggregateSession("s1", "")
	require.NoError(t, err)
	require.Len(t, calls, 3)
	require.Equal(t, "c1", calls[0].CallID)
	require.Equal(t, "c3", calls[2].CallID)
	require.Equal(t, model.ToolCallPending, calls[2].Status)

	require.Equal(t, 3, stats.Count)
	require.Equal(t, 1, stats.SuccessCount)
	require.Equal(t, 1, stats.ErrorCount)
	require.Equal(t, 1, stats.PendingCount)
}

func TestAggregateSessionFiltersByProject(t *testing.T) {
	agg, store := newTestAggregator(t)
	require.NoError(t, store.RecordPre("c1", model.PreCallEvent{SessionID: "s1", ProjectID: "proj-a", ToolName: "Bash", Timestamp: time.Now()}))
	require.NoError(t, store.RecordPre("c2", model.PreCallEvent{SessionID: "s1", ProjectID: "proj-b", ToolName: "Bash", Timestamp: time.Now()}))

	calls, _, err := agg.AggregateSession("s1", "proj-a")
	require.NoError(t, err)
	require.Len(t, calls, 1)
	require.Equal(t, "c1", calls[0].CallID)
}

func TestEnhanceStopHookDataCompleteness(t *testing.T) {
	agg, store := newTestAggregator(t)
	base := time.Now()

	require.NoError(t, store.RecordPre("c1", model.PreCallEvent{SessionID: "s1", ToolName: "Bash", ToolInput: "ls", Timestamp: base}))
	require.NoError(t, store.RecordPost("c1", model.PostCallEvent{ToolOutput: "file1", Timestamp: base}))

	require.NoError(t, store.RecordPre("c2", model.PreCallEvent{SessionID: "s1", ToolName: "Read", ToolInput: "f.go", Timestamp: base.Add(time.Second)}))
	require.NoError(t, store.RecordPost("c2", model.PostCallEvent{Timestamp: base.Add(time.Second)}))

	_, _, completeness, err := agg.EnhanceStopHookData("s1", "", 2)
	require.NoError(t, err)
	// coverage = 2/2 = 1.0, quality = 1/2 (c2's output is empty) -> 0.7*1 + 0.3*0.5 = 0.85
	require.InDelta(t, 0.85, completeness, 0.001)
}

func TestEnhanceStopHookDataNoExpectedDefaultsToFullCoverage(t *testing.T) {
	agg, _ := newTestAggregator(t)
	_, _, completeness, err := agg.EnhanceStopHookData("empty-session", "", 0)
	require.NoError(t, err)
	// no tool uses expected and none captured -> coverage defaults to 1.0, quality is 0 for an empty set
	require.InDelta(t, 0.7, completeness, 0.001)
}
