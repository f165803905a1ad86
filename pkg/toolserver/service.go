// Package toolserver is the Tool Server (spec §4.12): a JSON-RPC 2.0
// endpoint exposing five memory tools over stdio (line-delimited JSON,
// grounded on mark3labs/mcp-go's stdio transport shape) and HTTP
// (go-chi router), each handler wrapped in a 30s timeout and an
// exponential-backoff retry for storage operations (3 retries after
// 1s, 2s and 4s, so up to 4 attempts in all).
package toolserver

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jetgogoing/sage/pkg/embedder"
	"github.com/jetgogoing/sage/pkg/model"
	"github.com/jetgogoing/sage/pkg/retrieval"
	"github.com/jetgogoing/sage/pkg/sageerr"
	"github.com/jetgogoing/sage/pkg/storage"
)

// handlerTimeout is the per-call wall-clock timeout all five tool
// handlers honour (spec §4.12, §5).
const handlerTimeout = 30 * time.Second

// retryDelays is the exponential backoff schedule for storage
// operations (spec §4.12): 1s, 2s, 4s before each of the 3 retries,
// so withRetry makes up to 4 attempts.
var retryDelays = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

// Service implements the five tool handlers against the rest of sage's
// components. It is the one place that turns a raw tool-call argument
// map into calls against the Retrieval Engine and Storage Layer and
// back into the tool-call result shape.
type Service struct {
	store    storage.Store
	embedder embedder.Embedder
	engine   *retrieval.Engine

	mu          sync.Mutex
	turnIndexes map[string]int // session_id -> next turn_index, in-process only
}

// New builds a Service.
func New(store storage.Store, emb embedder.Embedder, engine *retrieval.Engine) *Service {
	return &Service{
		store:       store,
		embedder:    emb,
		engine:      engine,
		turnIndexes: make(map[string]int),
	}
}

// nextTurnIndex assigns a monotonic per-session index. It is tracked
// in-process rather than derived from storage: the spec requires the
// pair (session_id, turn_index) to be unique, not that indexing
// survive a process restart, and every session in one running server
// started counting at 0 in this process.
func (s *Service) nextTurnIndex(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.turnIndexes[sessionID]
	s.turnIndexes[sessionID] = idx + 1
	return idx
}

// withRetry runs op up to len(retryDelays)+1 times, sleeping the
// matching retryDelays entry between attempts, stopping early on a
// non-retryable *sageerr.Error or on ctx cancellation (spec §4.12).
func withRetry(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= len(retryDelays); attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		se, ok := sageerr.As(lastErr)
		if !ok || !sageerr.Retryable(se.Kind) {
			return lastErr
		}
		if attempt == len(retryDelays) {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelays[attempt]):
		}
	}
	return lastErr
}

// SaveConversation implements the save_conversation tool.
func (s *Service) SaveConversation(ctx context.Context, args SaveConversationArgs) (map[string]any, error) {
	if args.UserPrompt == "" && args.AssistantResponse == "" {
		return nil, sageerr.New(sageerr.InputInvalid, "toolserver", fmt.Errorf("at least one of user_prompt or assistant_response is required"))
	}
	if len(args.UserPrompt) > maxUserPromptLen {
		return nil, sageerr.New(sageerr.InputInvalid, "toolserver", fmt.Errorf("user_prompt exceeds %d characters", maxUserPromptLen))
	}
	if len(args.AssistantResponse) > maxAssistantResponseLen {
		return nil, sageerr.New(sageerr.InputInvalid, "toolserver", fmt.Errorf("assistant_response exceeds %d characters", maxAssistantResponseLen))
	}

	sessionID := args.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	turn := &model.Turn{
		TurnID:            uuid.NewString(),
		SessionID:         sessionID,
		TurnIndex:         s.nextTurnIndex(sessionID),
		Timestamp:         time.Now().UTC(),
		UserPrompt:        args.UserPrompt,
		AssistantResponse: args.AssistantResponse,
		Metadata:          map[string]any{"source": "tool_server"},
	}

	ctx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	var ids []string
	err := withRetry(ctx, func(ctx context.Context) error {
		var err error
		ids, err = s.store.Save(ctx, turn)
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.engine != nil {
		s.engine.InvalidateSession(sessionID)
	}

	return map[string]any{
		"session_id": sessionID,
		"turn_id":    turn.TurnID,
		"memory_ids": ids,
		"summary":    summarizeTurn(turn),
	}, nil
}

func summarizeTurn(turn *model.Turn) string {
	switch {
	case turn.UserPrompt != "" && turn.AssistantResponse != "":
		return fmt.Sprintf("saved turn %d for session %s (%d chars user, %d chars assistant)",
			turn.TurnIndex, turn.SessionID, len(turn.UserPrompt), len(turn.AssistantResponse))
	case turn.AssistantResponse != "":
		return fmt.Sprintf("saved assistant-only turn %d for session %s", turn.TurnIndex, turn.SessionID)
	default:
		return fmt.Sprintf("saved user-only turn %d for session %s", turn.TurnIndex, turn.SessionID)
	}
}

// GetContext implements the get_context tool.
func (s *Service) GetContext(ctx context.Context, args GetContextArgs) (map[string]any, error) {
	if args.Query == "" {
		return nil, sageerr.New(sageerr.InputInvalid, "toolserver", fmt.Errorf("query is required"))
	}
	if len(args.Query) > maxGetContextQueryLen {
		return nil, sageerr.New(sageerr.InputInvalid, "toolserver", fmt.Errorf("query exceeds %d characters", maxGetContextQueryLen))
	}
	maxResults := args.MaxResults
	if maxResults == 0 {
		maxResults = defaultMaxResults
	}
	if maxResults < 1 || maxResults > 50 {
		return nil, sageerr.New(sageerr.InputInvalid, "toolserver", fmt.Errorf("max_results must be between 1 and 50"))
	}
	contextWindow := args.ContextWindow
	if contextWindow == 0 {
		contextWindow = 2000
	}
	if contextWindow < minContextWindow || contextWindow > maxContextWindow {
		return nil, sageerr.New(sageerr.InputInvalid, "toolserver", fmt.Errorf("context_window must be between %d and %d", minContextWindow, maxContextWindow))
	}

	ctx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	var results []model.RetrievalResult
	err := withRetry(ctx, func(ctx context.Context) error {
		var err error
		results, err = s.engine.Retrieve(ctx, args.Query, maxResults, retrieval.Options{
			EnableNeuralRerank: args.EnableNeuralRerank,
			SessionID:          args.SessionID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	formatted := formatContext(results, contextWindow, args.EnableLLMSummary)

	return map[string]any{
		"context": formatted,
		"metadata": map[string]any{
			"result_count":         len(results),
			"enable_neural_rerank": args.EnableNeuralRerank,
			"enable_llm_summary":   args.EnableLLMSummary,
		},
	}, nil
}

// formatContext renders results into one budget-bounded string in
// ranked order, stopping before the first line that would exceed the
// byte budget, so the strongest matches are the ones kept.
// enableLLMSummary is accepted for interface symmetry with spec §4.12
// but this service has no LLM-summarization provider wired (the spec
// names it as a caller option, not a component sage's domain stack
// supplies), so it degrades to the plain formatted block.
func formatContext(results []model.RetrievalResult, budget int, enableLLMSummary bool) string {
	var b strings.Builder
	for _, r := range results {
		line := fmt.Sprintf("[%s] (score=%.2f) %s\n", r.Role, r.FinalScore, r.Content)
		if b.Len()+len(line) > budget {
			break
		}
		b.WriteString(line)
	}
	return b.String()
}

// SearchMemory implements the search_memory tool.
func (s *Service) SearchMemory(ctx context.Context, args SearchMemoryArgs) (map[string]any, error) {
	if args.Query == "" {
		return nil, sageerr.New(sageerr.InputInvalid, "toolserver", fmt.Errorf("query is required"))
	}
	if len(args.Query) > maxSearchMemoryQueryLen {
		return nil, sageerr.New(sageerr.InputInvalid, "toolserver", fmt.Errorf("query exceeds %d characters", maxSearchMemoryQueryLen))
	}
	n := args.N
	if n == 0 {
		n = defaultSearchN
	}
	if n < 1 || n > 20 {
		return nil, sageerr.New(sageerr.InputInvalid, "toolserver", fmt.Errorf("n must be between 1 and 20"))
	}
	if args.SimilarityThreshold < 0 || args.SimilarityThreshold > 1 {
		return nil, sageerr.New(sageerr.InputInvalid, "toolserver", fmt.Errorf("similarity_threshold must be between 0 and 1"))
	}

	ctx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	var rows []model.StoredMemory
	var queryVec []float32
	err := withRetry(ctx, func(ctx context.Context) error {
		var err error
		queryVec, err = s.embedder.Embed(ctx, args.Query)
		if err != nil {
			return err
		}
		rows, err = s.store.SearchVector(ctx, queryVec, n)
		return err
	})
	if err != nil {
		return nil, err
	}

	type hit struct {
		Role    model.Role `json:"role"`
		Content string     `json:"content"`
		Score   float64    `json:"score"`
	}
	hits := make([]hit, 0, len(rows))
	for _, row := range rows {
		score := cosineSimilarity(queryVec, row.Embedding)
		if score < args.SimilarityThreshold {
			continue
		}
		hits = append(hits, hit{Role: row.Role, Content: row.Content, Score: score})
	}

	return map[string]any{"results": hits}, nil
}

// GetMemoryStats implements the get_memory_stats tool.
func (s *Service) GetMemoryStats(ctx context.Context, args GetMemoryStatsArgs) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	var stats model.Stats
	err := withRetry(ctx, func(ctx context.Context) error {
		var err error
		stats, err = s.store.GetStats(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	result := map[string]any{
		"total":           stats.Total,
		"sessions":        stats.Sessions,
		"with_embeddings": stats.WithEmbeddings,
		"earliest":        stats.Earliest,
		"latest":          stats.Latest,
		"range_seconds":   stats.RangeSeconds,
	}
	if args.IncludePerformance {
		result["performance"] = map[string]any{"note": "per-call latency counters are not tracked by this process"}
	}
	return result, nil
}

// ClearSession implements the clear_session tool.
func (s *Service) ClearSession(ctx context.Context, args ClearSessionArgs) (map[string]any, error) {
	if args.SessionID == "" {
		return nil, sageerr.New(sageerr.InputInvalid, "toolserver", fmt.Errorf("session_id is required"))
	}
	if _, err := uuid.Parse(args.SessionID); err != nil {
		return nil, sageerr.New(sageerr.InputInvalid, "toolserver", fmt.Errorf("session_id must be a UUID"))
	}

	ctx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	var count int
	err := withRetry(ctx, func(ctx context.Context) error {
		var err error
		count, err = s.store.ClearSession(ctx, args.SessionID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.engine != nil {
		s.engine.InvalidateSession(args.SessionID)
	}

	s.mu.Lock()
	delete(s.turnIndexes, args.SessionID)
	s.mu.Unlock()

	return map[string]any{"count_deleted": count}, nil
}

// cosineSimilarity re-derives the score search_memory reports: the
// Storage Layer returns rows nearest a query vector but does not carry
// the similarity value itself, so the Tool Server recomputes it from
// the same embedding it already requested.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}

// unmarshalArgs decodes a tools/call arguments payload into T,
// reporting a sageerr.InputInvalid on any shape mismatch, which the
// dispatcher returns as an isError:true tool result.
func unmarshalArgs[T any](raw json.RawMessage) (T, error) {
	var args T
	if len(raw) == 0 {
		return args, nil
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return args, sageerr.New(sageerr.InputInvalid, "toolserver", fmt.Errorf("invalid arguments: %w", err))
	}
	return args, nil
}
