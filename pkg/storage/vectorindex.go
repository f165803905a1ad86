package storage

import (
	"context"
	"fmt"

	"github.com/jetgogoing/sage/pkg/config"
	"github.com/jetgogoing/sage/pkg/registry"
)

// VectorIndex is an optional accelerator for SearchVector: a dedicated
// vector database that SQLStore delegates similarity search to instead
// of scanning rows in process. Shaped after kadirpekel/hector's
// pkg/databases.DatabaseProvider, trimmed to what the Storage Layer
// actually calls.
type VectorIndex interface {
	// Upsert indexes or re-indexes one vector under id.
	Upsert(ctx context.Context, collection string, id string, vector []float32, metadata map[string]any) error

	// Search returns the topK nearest vectors to vector, scored by
	// cosine similarity descending.
	Search(ctx context.Context, collection string, vector []float32, topK int) ([]IndexResult, error)

	// Delete removes one vector by id.
	Delete(ctx context.Context, collection string, id string) error

	// DeleteCollection removes every vector under collection.
	DeleteCollection(ctx context.Context, collection string) error

	// Close releases the index's resources.
	Close() error
}

// IndexResult is one VectorIndex search hit.
type IndexResult struct {
	ID    string
	Score float64
}

// Registry holds named VectorIndex instances, mirroring
// kadirpekel/hector's pkg/databases.DatabaseRegistry.
type Registry struct {
	*registry.BaseRegistry[VectorIndex]
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{BaseRegistry: registry.NewBaseRegistry[VectorIndex]()}
}

// NewVectorIndex builds the VectorIndex named by cfg.Backend. An empty
// or "chromem" backend returns the embedded default; any construction
// failure (e.g. an unreachable qdrant host) is returned to the caller,
// who is expected to fall back to SQLStore's sequential-cosine path.
func NewVectorIndex(cfg config.VectorIndexConfig, dimension int) (VectorIndex, error) {
	switch cfg.Backend {
	case "", "chromem":
		return newChromemIndex(cfg)
	case "qdrant":
		return newQdrantIndex(cfg)
	case "pinecone":
		return newPineconeIndex(cfg)
	default:
		return nil, fmt.Errorf("unsupported vector index backend: %s", cfg.Backend)
	}
}
