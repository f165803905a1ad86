// Package aggregator reconciles the Hook State Store's per-call-id
// records into a chronologically ordered tool-call timeline for one
// session (spec §4.2), plus the completeness score the stop hook
// reports alongside a saved turn.
package aggregator

import (
	"time"

	"github.com/jetgogoing/sage/pkg/hookstore"
	"github.com/jetgogoing/sage/pkg/model"
)

// Stats summarizes one session's reconciled tool calls.
type Stats struct {
	Count        int            `json:"count"`
	SuccessCount int            `json:"success_count"`
	ErrorCount   int            `json:"error_count"`
	PendingCount int            `json:"pending_count"`
	ByTool       map[string]int `json:"by_tool"`
	TotalTimeMs  int64          `json:"total_time_ms"`
}

// Aggregator reads from a hookstore.Store and produces ToolCall
// timelines.
type Aggregator struct {
	store *hookstore.Store
}

// New builds an Aggregator over store.
func New(store *hookstore.Store) *Aggregator {
	return &Aggregator{store: store}
}

// AggregateSession reconciles all HookRecords for sessionID into an
// ordered ToolCall slice plus Stats. When projectID is non-empty,
// records whose pre_call.project_id is set and differs are dropped;
// records without a project id are kept.
func (a *Aggregator) AggregateSession(sessionID, projectID string) ([]model.ToolCall, Stats, error) {
	records, err := a.store.ListBySession(sessionID)
	if err != nil {
		return nil, Stats{}, err
	}

	stats := Stats{ByTool: make(map[string]int)}
	calls := make([]model.ToolCall, 0, len(records))

	for _, rec := range records {
		if projectID != "" && rec.PreCall != nil && rec.PreCall.ProjectID != "" && rec.PreCall.ProjectID != projectID {
			continue
		}
		tc := rec.ToToolCall()
		calls = append(calls, tc)

		stats.Count++
		stats.ByTool[tc.ToolName]++
		stats.TotalTimeMs += tc.ExecutionTimeMs
		switch tc.Status {
		case model.ToolCallSuccess:
			stats.SuccessCount++
		case model.ToolCallError:
			stats.ErrorCount++
		case model.ToolCallPending:
			stats.PendingCount++
		}
	}

	return calls, stats, nil
}

// EnhanceStopHookData aggregates sessionID's tool calls and scores how
// completely the captured HookRecords account for the tool uses/results
// the stop hook observed directly in the transcript (spec §4.2):
//
//	completeness = 0.7 * min(captured/expected, 1.0) + 0.3 * quality
//	quality      = fraction of captured calls with non-empty input and non-empty output
func (a *Aggregator) EnhanceStopHookData(sessionID, projectID string, transcriptToolUseCount int) ([]model.ToolCall, Stats, float64, error) {
	calls, stats, err := a.AggregateSession(sessionID, projectID)
	if err != nil {
		return nil, Stats{}, 0, err
	}

	expected := transcriptToolUseCount
	captured := len(calls)

	var coverage float64
	if expected <= 0 {
		coverage = 1.0
	} else {
		coverage = float64(captured) / float64(expected)
		if coverage > 1.0 {
			coverage = 1.0
		}
	}

	quality := qualityFraction(calls)
	completeness := 0.7*coverage + 0.3*quality

	return calls, stats, completeness, nil
}

func qualityFraction(calls []model.ToolCall) float64 {
	if len(calls) == 0 {
		return 0
	}
	var complete int
	for _, c := range calls {
		if !isEmptyValue(c.Input) && !isEmptyValue(c.Output) {
			complete++
		}
	}
	return float64(complete) / float64(len(calls))
}

func isEmptyValue(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	return false
}

// CleanupProcessed removes the HookRecords backing calls now folded
// into a persisted Turn.
func (a *Aggregator) CleanupProcessed(calls []model.ToolCall) {
	ids := make([]string, 0, len(calls))
	for _, c := range calls {
		ids = append(ids, c.CallID)
	}
	a.store.DeleteMany(ids)
}

// CleanupOld evicts HookRecords older than age regardless of session.
func (a *Aggregator) CleanupOld(age time.Duration) (int, error) {
	return a.store.EvictOlderThan(age)
}
