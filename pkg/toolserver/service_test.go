package toolserver

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/jetgogoing/sage/pkg/model"
	"github.com/jetgogoing/sage/pkg/retrieval"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}
func (fakeEmbedder) Dimension() int { return 3 }
func (fakeEmbedder) Model() string  { return "fake" }

type fakeStore struct {
	rows        []model.StoredMemory
	saveErr     error
	clearCalled string
}

func (f *fakeStore) Save(ctx context.Context, turn *model.Turn) ([]string, error) {
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	return []string{"1"}, nil
}
func (f *fakeStore) SearchVector(ctx context.Context, q []float32, limit int) ([]model.StoredMemory, error) {
	return f.rows, nil
}
func (f *fakeStore) GetStats(ctx context.Context) (model.Stats, error) {
	return model.Stats{Total: 5, Sessions: 2, WithEmbeddings: 5}, nil
}
func (f *fakeStore) ClearSession(ctx context.Context, sessionID string) (int, error) {
	f.clearCalled = sessionID
	return 3, nil
}
func (f *fakeStore) GetRecent(ctx context.Context, n int) ([]model.StoredMemory, error) { return nil, nil }
func (f *fakeStore) Close() error                                                      { return nil }

func newTestService(store *fakeStore) *Service {
	engine := retrieval.New(store, fakeEmbedder{}, nil, 0, time.Minute)
	return New(store, fakeEmbedder{}, engine)
}

func TestSaveConversationGeneratesSessionWhenAbsent(t *testing.T) {
	svc := newTestService(&fakeStore{})
	result, err := svc.SaveConversation(context.Background(), SaveConversationArgs{
		UserPrompt:        "hi",
		AssistantResponse: "hello",
	})
	require.NoError(t, err)
	require.NotEmpty(t, result["session_id"])
}

func TestSaveConversationRejectsEmptyTurn(t *testing.T) {
	svc := newTestService(&fakeStore{})
	_, err := svc.SaveConversation(context.Background(), SaveConversationArgs{})
	require.Error(t, err)
}

func TestSaveConversationRejectsOversizeUserPrompt(t *testing.T) {
	svc := newTestService(&fakeStore{})
	big := make([]byte, maxUserPromptLen+1)
	_, err := svc.SaveConversation(context.Background(), SaveConversationArgs{UserPrompt: string(big)})
	require.Error(t, err)
}

func TestSaveConversationIncrementsTurnIndexPerSession(t *testing.T) {
	svc := newTestService(&fakeStore{})
	sid := uuid.NewString()
	first, err := svc.SaveConversation(context.Background(), SaveConversationArgs{SessionID: sid, UserPrompt: "a"})
	require.NoError(t, err)
	second, err := svc.SaveConversation(context.Background(), SaveConversationArgs{SessionID: sid, UserPrompt: "b"})
	require.NoError(t, err)
	require.Equal(t, first["session_id"], second["session_id"])
	require.Contains(t, first["summary"], "turn 0 ")
	require.Contains(t, second["summary"], "turn 1 ")
}

func TestGetContextRejectsOverlongQuery(t *testing.T) {
	svc := newTestService(&fakeStore{})
	big := make([]byte, maxGetContextQueryLen+1)
	_, err := svc.GetContext(context.Background(), GetContextArgs{Query: string(big)})
	require.Error(t, err)
}

func TestGetContextRejectsOutOfRangeMaxResults(t *testing.T) {
	svc := newTestService(&fakeStore{})
	_, err := svc.GetContext(context.Background(), GetContextArgs{Query: "q", MaxResults: 100})
	require.Error(t, err)
}

func TestGetContextReturnsFormattedResults(t *testing.T) {
	store := &fakeStore{rows: []model.StoredMemory{
		{SessionID: "s1", Role: model.RoleAssistant, Content: "remember the retry config", Embedding: []float32{1, 0, 0}, CreatedAt: time.Now()},
	}}
	svc := newTestService(store)
	result, err := svc.GetContext(context.Background(), GetContextArgs{Query: "retry config"})
	require.NoError(t, err)
	require.NotEmpty(t, result["context"])
}

func TestSearchMemoryRejectsInvalidThreshold(t *testing.T) {
	svc := newTestService(&fakeStore{})
	_, err := svc.SearchMemory(context.Background(), SearchMemoryArgs{Query: "q", SimilarityThreshold: 1.5})
	require.Error(t, err)
}

func TestSearchMemoryFiltersBelowThreshold(t *testing.T) {
	store := &fakeStore{rows: []model.StoredMemory{
		{Role: model.RoleUser, Content: "match", Embedding: []float32{1, 0, 0}},
		{Role: model.RoleUser, Content: "no match", Embedding: []float32{0, 1, 0}},
	}}
	svc := newTestService(store)
	result, err := svc.SearchMemory(context.Background(), SearchMemoryArgs{Query: "q", SimilarityThreshold: 0.5})
	require.NoError(t, err)
	hits := result["results"]
	require.NotNil(t, hits)
	require.Len(t, hits, 1)
}

func TestGetMemoryStatsReturnsTotals(t *testing.T) {
	svc := newTestService(&fakeStore{})
	result, err := svc.GetMemoryStats(context.Background(), GetMemoryStatsArgs{})
	require.NoError(t, err)
	require.Equal(t, 5, result["total"])
}

func TestGetMemoryStatsIncludesPerformanceWhenRequested(t *testing.T) {
	svc := newTestService(&fakeStore{})
	result, err := svc.GetMemoryStats(context.Background(), GetMemoryStatsArgs{IncludePerformance: true})
	require.NoError(t, err)
	require.Contains(t, result, "performance")
}

func TestClearSessionRejectsNonUUID(t *testing.T) {
	svc := newTestService(&fakeStore{})
	_, err := svc.ClearSession(context.Background(), ClearSessionArgs{SessionID: "not-a-uuid"})
	require.Error(t, err)
}

func TestClearSessionDeletesAndReportsCount(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store)
	sid := uuid.NewString()
	result, err := svc.ClearSession(context.Background(), ClearSessionArgs{SessionID: sid})
	require.NoError(t, err)
	require.Equal(t, 3, result["count_deleted"])
	require.Equal(t, sid, store.clearCalled)
}

func TestCosineSimilarityBasic(t *testing.T) {
	require.InDelta(t, 1.0, cosineSimilarity([]float32{1, 1}, []float32{2, 2}), 0.001)
	require.Equal(t, 0.0, cosineSimilarity(nil, []float32{1}))
}
