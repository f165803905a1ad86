package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"

	"github.com/philippgille/chromem-go"

	"github.com/jetgogoing/sage/pkg/config"
)

// chromemIndex is the embedded default VectorIndex: pure Go, no
// external service, optional uncompressed file persistence.
// Adapted from kadirpekel/hector's pkg/vector.ChromemProvider, whose
// embedding func is an identity stub because sage always supplies a
// pre-computed vector from pkg/embedder.
type chromemIndex struct {
	db          *chromem.DB
	persistPath string
	mu          sync.RWMutex
	collections map[string]*chromem.Collection
}

func newChromemIndex(cfg config.VectorIndexConfig) (VectorIndex, error) {
	var db *chromem.DB

	if cfg.PersistPath != "" {
		if err := os.MkdirAll(cfg.PersistPath, 0o755); err != nil {
			return nil, fmt.Errorf("create vector persist dir: %w", err)
		}
		dbPath := cfg.PersistPath + "/vectors.gob"
		if _, err := os.Stat(dbPath); err == nil {
			loaded, loadErr := chromem.NewPersistentDB(dbPath, false)
			if loadErr != nil {
				slog.Warn("failed to load persisted vector index, starting empty", "path", dbPath, "error", loadErr)
				db = chromem.NewDB()
			} else {
				db = loaded
			}
		} else {
			db = chromem.NewDB()
		}
	} else {
		db = chromem.NewDB()
	}

	return &chromemIndex{
		db:          db,
		persistPath: cfg.PersistPath,
		collections: make(map[string]*chromem.Collection),
	}, nil
}

func noopEmbed(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("chromem index received a text query; sage only queries by precomputed vector")
}

func (c *chromemIndex) getCollection(name string) (*chromem.Collection, error) {
	c.mu.RLock()
	if col, ok := c.collections[name]; ok {
		c.mu.RUnlock()
		return col, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if col, ok := c.collections[name]; ok {
		return col, nil
	}
	col, err := c.db.GetOrCreateCollection(name, nil, noopEmbed)
	if err != nil {
		return nil, fmt.Errorf("get/create collection %q: %w", name, err)
	}
	c.collections[name] = col
	return col, nil
}

func (c *chromemIndex) Upsert(ctx context.Context, collection string, id string, vector []float32, metadata map[string]any) error {
	col, err := c.getCollection(collection)
	if err != nil {
		return err
	}
	strMeta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		strMeta[k] = fmt.Sprint(v)
	}
	doc := chromem.Document{ID: id, Metadata: strMeta, Embedding: vector}
	if err := col.AddDocuments(ctx, []chromem.Document{doc}, runtime.NumCPU()); err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	c.persist()
	return nil
}

func (c *chromemIndex) Search(ctx context.Context, collection string, vector []float32, topK int) ([]IndexResult, error) {
	col, err := c.getCollection(collection)
	if err != nil {
		return nil, err
	}
	if col.Count() == 0 {
		return nil, nil
	}
	if topK > col.Count() {
		topK = col.Count()
	}
	results, err := col.QueryEmbedding(ctx, vector, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query embedding: %w", err)
	}
	out := make([]IndexResult, 0, len(results))
	for _, r := range results {
		out = append(out, IndexResult{ID: r.ID, Score: float64(r.Similarity)})
	}
	return out, nil
}

func (c *chromemIndex) Delete(ctx context.Context, collection string, id string) error {
	col, err := c.getCollection(collection)
	if err != nil {
		return err
	}
	if err := col.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	c.persist()
	return nil
}

func (c *chromemIndex) DeleteCollection(ctx context.Context, collection string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.db.DeleteCollection(collection); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	delete(c.collections, collection)
	c.persist()
	return nil
}

func (c *chromemIndex) Close() error {
	c.persist()
	return nil
}

func (c *chromemIndex) persist() {
	if c.persistPath == "" {
		return
	}
	dbPath := c.persistPath + "/vectors.gob"
	if err := c.db.Export(dbPath, false, ""); err != nil { //nolint:staticcheck
		slog.Warn("failed to persist vector index", "path", dbPath, "error", err)
	}
}
