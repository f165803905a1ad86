package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jetgogoing/sage/pkg/config"
)

func TestChromemIndexUpsertAndSearch(t *testing.T) {
	idx, err := newChromemIndex(config.VectorIndexConfig{})
	require.NoError(t, err)
	defer idx.Close()

	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, "conversations", "1", []float32{1, 0, 0}, map[string]any{"session_id": "s1"}))
	require.NoError(t, idx.Upsert(ctx, "conversations", "2", []float32{0, 1, 0}, map[string]any{"session_id": "s1"}))

	results, err := idx.Search(ctx, "conversations", []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "1", results[0].ID)
}

func TestChromemIndexDelete(t *testing.T) {
	idx, err := newChromemIndex(config.VectorIndexConfig{})
	require.NoError(t, err)
	defer idx.Close()

	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, "c", "1", []float32{1, 0}, nil))
	require.NoError(t, idx.Delete(ctx, "c", "1"))

	results, err := idx.Search(ctx, "c", []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Empty(t, results)
}
