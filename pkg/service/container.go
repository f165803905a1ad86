// Package service holds the process-wide singleton that wires
// together the Storage Layer, embedder/reranker clients, Retrieval
// Engine and Tool Server behind one lazily-constructed Bundle, shared
// across every tool call a long-running sage process handles (spec §9:
// "Singleton core with late initialisation"). Grounded on
// original_source's sage_core/singleton_manager.py: a mutex-guarded
// get_instance()/get_sage_core(), reinitialised when the caller's
// config changes or the bundle has sat idle past a threshold.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/jetgogoing/sage/pkg/backup"
	"github.com/jetgogoing/sage/pkg/config"
	"github.com/jetgogoing/sage/pkg/embedder"
	"github.com/jetgogoing/sage/pkg/reranker"
	"github.com/jetgogoing/sage/pkg/retrieval"
	"github.com/jetgogoing/sage/pkg/storage"
	"github.com/jetgogoing/sage/pkg/toolserver"
)

// defaultMaxIdle mirrors singleton_manager.py's _max_idle_time of one
// hour: a bundle that hasn't been touched in that long is rebuilt
// rather than trusted (stale provider connections, rotated credentials).
const defaultMaxIdle = time.Hour

// Bundle holds one fully wired set of backend components.
type Bundle struct {
	Store      storage.Store
	Index      storage.VectorIndex
	Embedder   *embedder.Client
	Reranker   *reranker.Client
	Engine     *retrieval.Engine
	Backup     *backup.Writer
	ToolServer *toolserver.Server
}

func (b *Bundle) close() {
	if b == nil {
		return
	}
	if b.Store != nil {
		b.Store.Close()
	}
}

// Container is the mutex-guarded singleton. The zero value is ready to
// use; callers share one Container for the process's lifetime.
type Container struct {
	mu sync.Mutex

	bundle       *Bundle
	cfg          *config.Config
	lastUsed     time.Time
	accessCount  int64
	maxIdle      time.Duration
	initialized  bool
}

// New builds an empty Container. maxIdle overrides the default idle-reset
// window; zero uses defaultMaxIdle.
func New(maxIdle time.Duration) *Container {
	if maxIdle <= 0 {
		maxIdle = defaultMaxIdle
	}
	return &Container{maxIdle: maxIdle}
}

// Get returns the shared Bundle for cfg, building or rebuilding it if
// this is the first call, cfg has changed since the last build, or the
// existing bundle has been idle longer than maxIdle. Safe for
// concurrent use by multiple in-flight tool calls.
func (c *Container) Get(ctx context.Context, cfg *config.Config) (*Bundle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.needsReinit(cfg) {
		if err := c.reinitialize(ctx, cfg); err != nil {
			return nil, err
		}
	}

	c.lastUsed = time.Now()
	c.accessCount++
	return c.bundle, nil
}

// Stats reports the container's current lifecycle state, mirroring
// singleton_manager.py's get_stats().
type Stats struct {
	Initialized bool
	AccessCount int64
	LastUsed    time.Time
	IdleFor     time.Duration
}

// Stats returns a snapshot of the container's lifecycle counters.
func (c *Container) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Stats{Initialized: c.initialized, AccessCount: c.accessCount, LastUsed: c.lastUsed}
	if c.initialized {
		st.IdleFor = time.Since(c.lastUsed)
	}
	return st
}

// Shutdown closes the held Bundle, if any, and resets the Container so
// the next Get rebuilds from scratch.
func (c *Container) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bundle.close()
	c.bundle = nil
	c.cfg = nil
	c.initialized = false
	c.accessCount = 0
}

func (c *Container) needsReinit(cfg *config.Config) bool {
	if c.bundle == nil || !c.initialized {
		return true
	}
	if !reflect.DeepEqual(c.cfg, cfg) {
		return true
	}
	return time.Since(c.lastUsed) > c.maxIdle
}

func (c *Container) reinitialize(ctx context.Context, cfg *config.Config) error {
	c.bundle.close()
	c.bundle = nil
	c.initialized = false

	bundle, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	c.bundle = bundle
	c.cfg = cfg
	c.initialized = true
	return nil
}

// build constructs one Bundle from a resolved Config: the embedder and
// reranker HTTP clients, the optional external vector index, the SQL
// Storage Layer (with its local backup writer wired in per spec §7),
// the Retrieval Engine, and the Tool Server sitting on top of all of
// it.
func build(ctx context.Context, cfg *config.Config) (*Bundle, error) {
	emb := embedder.New(embedder.Config{
		BaseURL:   cfg.Embedder.BaseURL,
		APIKey:    cfg.Embedder.APIKey,
		Model:     cfg.Embedder.EmbeddingModel,
		Dimension: cfg.Embedder.Dimension,
		Timeout:   30 * time.Second,
	})

	rr := reranker.New(reranker.Config{
		BaseURL: cfg.Reranker.BaseURL,
		APIKey:  cfg.Reranker.APIKey,
		Model:   cfg.Reranker.RerankerModel,
		Timeout: 30 * time.Second,
	})

	index, err := storage.NewVectorIndex(cfg.VectorIndex, cfg.Embedder.Dimension)
	if err != nil {
		slog.Warn("vector index unavailable, falling back to sequential scan", "error", err)
		index = nil
	}

	configDir, err := config.DefaultConfigDir()
	if err != nil {
		return nil, fmt.Errorf("resolve config dir: %w", err)
	}
	backupWriter := backup.New(configDir)

	store, err := storage.Open(ctx, cfg.Database, emb, index, cfg.VectorIndex.Collection, backupWriter)
	if err != nil {
		return nil, err
	}

	engine := retrieval.New(store, emb, rr, 256, cfg.Retrieval.CacheTTL)

	svc := toolserver.New(store, emb, engine)
	srv := toolserver.NewServer(svc)

	return &Bundle{
		Store:      store,
		Index:      index,
		Embedder:   emb,
		Reranker:   rr,
		Engine:     engine,
		Backup:     backupWriter,
		ToolServer: srv,
	}, nil
}
