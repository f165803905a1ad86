package retrieval

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jetgogoing/sage/pkg/model"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}
func (fakeEmbedder) Dimension() int { return 3 }
func (fakeEmbedder) Model() string  { return "fake" }

type fakeStore struct {
	rows []model.StoredMemory
}

func (f *fakeStore) Save(ctx context.Context, turn *model.Turn) ([]string, error) { return nil, nil }
func (f *fakeStore) SearchVector(ctx context.Context, q []float32, limit int) ([]model.StoredMemory, error) {
	if limit < len(f.rows) {
		return f.rows[:limit], nil
	}
	return f.rows, nil
}
func (f *fakeStore) GetStats(ctx context.Context) (model.Stats, error)          { return model.Stats{}, nil }
func (f *fakeStore) ClearSession(ctx context.Context, sessionID string) (int, error) { return 0, nil }
func (f *fakeStore) GetRecent(ctx context.Context, n int) ([]model.StoredMemory, error) { return nil, nil }
func (f *fakeStore) Close() error                                               { return nil }

func rowAt(id string, ageHours float64, content string) model.StoredMemory {
	return model.StoredMemory{
		MemoryID:  id,
		SessionID: "s1",
		Role:      model.RoleAssistant,
		Content:   content,
		Embedding: []float32{1, 0, 0},
		CreatedAt: time.Now().Add(-time.Duration(ageHours * float64(time.Hour))),
	}
}

func TestRetrieveReturnsRankedResults(t *testing.T) {
	store := &fakeStore{rows: []model.StoredMemory{
		rowAt("a", 1, "how to configure retry timeout"),
		rowAt("b", 400, "an unrelated old note about lunch"),
	}}
	eng := New(store, fakeEmbedder{}, nil, 0, 0)

	results, err := eng.Retrieve(context.Background(), "retry timeout config", 5, Options{SessionID: "s1"})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Equal(t, "how to configure retry timeout", results[0].Content)
}

func TestRetrieveCachesSecondCall(t *testing.T) {
	store := &fakeStore{rows: []model.StoredMemory{rowAt("a", 1, "cached content")}}
	eng := New(store, fakeEmbedder{}, nil, 0, time.Minute)

	first, err := eng.Retrieve(context.Background(), "q", 5, Options{SessionID: "s1"})
	require.NoError(t, err)

	store.rows = nil // prove the second call doesn't hit the store again
	second, err := eng.Retrieve(context.Background(), "q", 5, Options{SessionID: "s1"})
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestRetrieveInvalidateSessionDropsCache(t *testing.T) {
	store := &fakeStore{rows: []model.StoredMemory{rowAt("a", 1, "content one")}}
	eng := New(store, fakeEmbedder{}, nil, 0, time.Minute)

	_, err := eng.Retrieve(context.Background(), "q", 5, Options{SessionID: "s1"})
	require.NoError(t, err)

	eng.InvalidateSession("s1")
	store.rows = []model.StoredMemory{rowAt("b", 1, "content two")}
	second, err := eng.Retrieve(context.Background(), "q", 5, Options{SessionID: "s1"})
	require.NoError(t, err)
	require.Equal(t, "content two", second[0].Content)
}

func TestRetrieveDiversityFilterTrimsToMaxResults(t *testing.T) {
	rows := make([]model.StoredMemory, 0, 10)
	for i := 0; i < 10; i++ {
		rows = append(rows, rowAt(string(rune('a'+i)), float64(i), "distinct content about topic "+string(rune('a'+i))))
	}
	store := &fakeStore{rows: rows}
	eng := New(store, fakeEmbedder{}, nil, 0, 0)

	results, err := eng.Retrieve(context.Background(), "topic", 3, Options{SessionID: "s1"})
	require.NoError(t, err)
	require.Len(t, results, 3)
}

func TestCosineSimilarityIdentical(t *testing.T) {
	require.InDelta(t, 1.0, cosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3}), 0.001)
}

func TestCosineSimilarityMismatchedLengthIsZero(t *testing.T) {
	require.Equal(t, 0.0, cosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}))
}

func TestCacheKeyForDiffersByOptions(t *testing.T) {
	a := cacheKeyFor("q", "default", 5, false)
	b := cacheKeyFor("q", "default", 5, true)
	require.NotEqual(t, a, b)
}
