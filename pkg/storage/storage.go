// Package storage is the Storage Layer (spec §4.5): persists a Turn as
// one or two StoredMemory rows with their embeddings under a single
// transaction, and serves vector-similarity reads. Grounded on
// kadirpekel/hector's pkg/memory/session_service_sql.go (dialect
// switching, transaction discipline) and pkg/databases/registry.go
// (the pluggable vector-index shape).
package storage

import (
	"context"
	"math"
	"time"

	"github.com/jetgogoing/sage/pkg/model"
)

// Store is the Storage Layer contract consumed by the rest of sage.
type Store interface {
	// Save persists a turn's content as one or two StoredMemory rows
	// (one per non-empty side) inside a single transaction that also
	// requests and writes their embeddings. Returns the memory ids in
	// the same order as the rows were written.
	Save(ctx context.Context, turn *model.Turn) ([]string, error)

	// SearchVector returns the limit nearest rows to queryEmbedding by
	// cosine similarity, ordered descending by similarity.
	SearchVector(ctx context.Context, queryEmbedding []float32, limit int) ([]model.StoredMemory, error)

	// GetStats summarises the store's contents.
	GetStats(ctx context.Context) (model.Stats, error)

	// ClearSession deletes every row for sessionID and reports the
	// count removed.
	ClearSession(ctx context.Context, sessionID string) (int, error)

	// GetRecent returns the n most recently created rows, newest
	// first, for temporal fallbacks when a vector index is absent.
	GetRecent(ctx context.Context, n int) ([]model.StoredMemory, error)

	// Close releases the store's underlying connections.
	Close() error
}

// defaultSequentialScanLimit bounds the sequential-cosine degrade path
// (spec §4.5's "bounded LIMIT, configurable, default 1,000").
const defaultSequentialScanLimit = 1000

// rowSizeGuardBytes matches pkg/assembler's truncation guard so
// oversize content never fails a save outright (spec §4.5).
const rowSizeGuardBytes = 1 << 20

// cosineSimilarity returns the cosine similarity of a and b in [-1,1].
// Sequential fallback search and the StoredMemory.Embedding comparisons
// used by the SQL dialects that lack a native vector operator both
// route through this.
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
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// clampSimilarity clamps s to [0,1], the range the spec's similarity
// scores must fall within; raw cosine can be negative.
func clampSimilarity(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// nowUTC is split out so tests can't accidentally depend on local TZ.
func nowUTC() time.Time { return time.Now().UTC() }
