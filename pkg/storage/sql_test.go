package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jetgogoing/sage/pkg/config"
	"github.com/jetgogoing/sage/pkg/model"
)

// fakeEmbedder returns a deterministic low-dimension vector derived
// from the text's length and first byte, enough to exercise cosine
// ranking without a real provider.
type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var first float32
	if len(text) > 0 {
		first = float32(text[0])
	}
	return []float32{float32(len(text)), first, 1}, nil
}
func (fakeEmbedder) Dimension() int { return 3 }
func (fakeEmbedder) Model() string  { return "fake" }

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "sage.db")
	dbCfg := config.DatabaseConfig{Driver: "sqlite", Path: dbPath}
	store, err := Open(context.Background(), dbCfg, fakeEmbedder{}, nil, "conversations", nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveThenGetRecent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	turn := &model.Turn{
		SessionID:         "s1",
		TurnIndex:         0,
		UserPrompt:        "how do I configure retries",
		AssistantResponse: "set max_retries in config",
		Metadata:          map[string]any{"source": "test"},
	}
	ids, err := store.Save(ctx, turn)
	require.NoError(t, err)
	require.Len(t, ids, 2)

	recent, err := store.GetRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, "s1", recent[0].SessionID)
}

func TestSaveAssistantOnlyWritesOneRow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	turn := &model.Turn{SessionID: "s2", AssistantResponse: "here is the answer"}
	ids, err := store.Save(ctx, turn)
	require.NoError(t, err)
	require.Len(t, ids, 1)
}

func TestSaveEmptyTurnFails(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Save(context.Background(), &model.Turn{SessionID: "s3"})
	require.Error(t, err)
}

func TestSearchVectorSequentialRanksBySimilarity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Save(ctx, &model.Turn{SessionID: "s4", UserPrompt: "a", AssistantResponse: "aa"})
	require.NoError(t, err)
	_, err = store.Save(ctx, &model.Turn{SessionID: "s4", UserPrompt: "aaaaaaaaaa", AssistantResponse: "bbbbbbbbbb"})
	require.NoError(t, err)

	queryVec, _ := fakeEmbedder{}.Embed(ctx, "a")
	results, err := store.SearchVector(ctx, queryVec, 2)
	require.NoError(t, err)
	require.NotEmpty(t, results)
}

func TestClearSessionDeletesRows(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Save(ctx, &model.Turn{SessionID: "s5", UserPrompt: "x", AssistantResponse: "y"})
	require.NoError(t, err)

	n, err := store.ClearSession(ctx, "s5")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	stats, err := store.GetStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, stats.Total)
}

func TestGetStatsCountsSessionsAndEmbeddings(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Save(ctx, &model.Turn{SessionID: "s6", UserPrompt: "hi", AssistantResponse: "hello"})
	require.NoError(t, err)

	stats, err := store.GetStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, stats.Total)
	require.Equal(t, 1, stats.Sessions)
	require.Equal(t, 2, stats.WithEmbeddings)
}
