// Package config loads and validates sage's layered configuration:
// built-in defaults, a per-user config.json, then environment
// variables, in that precedence order (spec §6). Adapted from
// kadirpekel/hector's pkg/config, trimmed to the settings sage
// actually needs and consolidated onto one provider (file) and one
// env-expansion pass.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/jetgogoing/sage/pkg/sageerr"
)

// DatabaseConfig describes the relational+vector store connection.
type DatabaseConfig struct {
	Driver   string `json:"driver" yaml:"driver"` // postgres, mysql, sqlite
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Name     string `json:"name" yaml:"name"`
	User     string `json:"user" yaml:"user"`
	Password string `json:"password" yaml:"password"`
	SSLMode  string `json:"ssl_mode" yaml:"ssl_mode"`
	Path     string `json:"path" yaml:"path"` // sqlite file path, when driver=sqlite
}

// DSN builds a driver-appropriate connection string.
func (d DatabaseConfig) DSN() string {
	switch d.Driver {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true", d.User, d.Password, d.Host, d.Port, d.Name)
	case "sqlite":
		return d.Path
	default:
		sslMode := d.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
			d.Host, d.Port, d.Name, d.User, d.Password, sslMode)
	}
}

// ProviderConfig describes the embedding/reranker HTTP providers.
type ProviderConfig struct {
	BaseURL        string `json:"base_url" yaml:"base_url"`
	APIKey         string `json:"api_key" yaml:"api_key"`
	EmbeddingModel string `json:"embedding_model" yaml:"embedding_model"`
	RerankerModel  string `json:"reranker_model" yaml:"reranker_model"`
	Dimension      int    `json:"dimension" yaml:"dimension"`
}

// RetrievalConfig tunes the hybrid retrieval pipeline (spec §4.10-§4.11).
type RetrievalConfig struct {
	Count               int           `json:"retrieval_count" yaml:"retrieval_count"`
	SimilarityThreshold float64       `json:"similarity_threshold" yaml:"similarity_threshold"`
	MaxContextTokens    int           `json:"max_context_tokens" yaml:"max_context_tokens"`
	CacheTTL            time.Duration `json:"cache_ttl" yaml:"cache_ttl"`
	TimeDecay           float64       `json:"time_decay" yaml:"time_decay"`
	MaxAgeDays          int           `json:"max_age_days" yaml:"max_age_days"`
}

// VectorIndexConfig configures an optional external vector index that
// accelerates search_vector beyond the SQL Storage Layer's built-in
// cosine query. Backend "" (or "chromem") uses the embedded default;
// "qdrant" and "pinecone" delegate to an external service (spec §4.5's
// vector-index-absent path falls back to sequential cosine when none
// of these is reachable).
type VectorIndexConfig struct {
	Backend     string `json:"backend" yaml:"backend"`
	Host        string `json:"host" yaml:"host"`
	Port        int    `json:"port" yaml:"port"`
	APIKey      string `json:"api_key" yaml:"api_key"`
	Collection  string `json:"collection" yaml:"collection"`
	PersistPath string `json:"persist_path" yaml:"persist_path"`
}

// ServerConfig binds the optional HTTP surface of the tool server.
type ServerConfig struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
}

// LoggerConfig controls process-wide log output (pkg/logger).
type LoggerConfig struct {
	Level      string `json:"level" yaml:"level"`
	Format     string `json:"format" yaml:"format"` // simple, verbose
	Dir        string `json:"dir" yaml:"dir"`
	MaxBytes   int64  `json:"max_bytes" yaml:"max_bytes"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
}

// Config is sage's fully resolved configuration.
type Config struct {
	Version   int             `json:"version" yaml:"version"`
	Database  DatabaseConfig  `json:"database" yaml:"database"`
	Embedder  ProviderConfig  `json:"embedder" yaml:"embedder"`
	Reranker  ProviderConfig  `json:"reranker" yaml:"reranker"`
	Retrieval RetrievalConfig `json:"retrieval" yaml:"retrieval"`
	VectorIndex VectorIndexConfig `json:"vector_index" yaml:"vector_index"`
	Server    ServerConfig    `json:"server" yaml:"server"`
	Logger    LoggerConfig    `json:"logger" yaml:"logger"`
	HookDir   string          `json:"hook_dir" yaml:"hook_dir"`
}

const configVersion = 1

// SetDefaults fills zero-valued fields with sage's built-in defaults.
// Called before file/env overlays so a partial config.json is valid.
func (c *Config) SetDefaults() {
	if c.Version == 0 {
		c.Version = configVersion
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Embedder.Dimension == 0 {
		c.Embedder.Dimension = 4096
	}
	if c.Embedder.EmbeddingModel == "" {
		c.Embedder.EmbeddingModel = "BAAI/bge-m3"
	}
	if c.Reranker.RerankerModel == "" {
		c.Reranker.RerankerModel = "BAAI/bge-reranker-v2-m3"
	}
	if c.Retrieval.Count == 0 {
		c.Retrieval.Count = 10
	}
	if c.Retrieval.SimilarityThreshold == 0 {
		c.Retrieval.SimilarityThreshold = 0.35
	}
	if c.Retrieval.MaxContextTokens == 0 {
		c.Retrieval.MaxContextTokens = 4000
	}
	if c.Retrieval.CacheTTL == 0 {
		c.Retrieval.CacheTTL = 5 * time.Minute
	}
	if c.Retrieval.TimeDecay == 0 {
		c.Retrieval.TimeDecay = 0.95
	}
	if c.Retrieval.MaxAgeDays == 0 {
		c.Retrieval.MaxAgeDays = 90
	}
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 17800
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Logger.Format == "" {
		c.Logger.Format = "simple"
	}
	if c.Logger.MaxBytes == 0 {
		c.Logger.MaxBytes = 10 * 1024 * 1024
	}
	if c.Logger.MaxBackups == 0 {
		c.Logger.MaxBackups = 5
	}
	if c.VectorIndex.Backend == "" {
		c.VectorIndex.Backend = "chromem"
	}
	if c.VectorIndex.Collection == "" {
		c.VectorIndex.Collection = "conversations"
	}
	if c.VectorIndex.PersistPath == "" {
		if dir, err := DefaultConfigDir(); err == nil {
			c.VectorIndex.PersistPath = filepath.Join(dir, "vectors")
		}
	}
	if c.HookDir == "" {
		c.HookDir, _ = DefaultHookDir()
	}
	if c.Logger.Dir == "" {
		c.Logger.Dir = "logs"
	}
}

// ApplyEnv overlays environment variables on top of file-sourced
// values, per the precedence in spec §6.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("SILICONFLOW_API_KEY"); v != "" {
		c.Embedder.APIKey = v
		c.Reranker.APIKey = v
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		c.Database.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		fmt.Sscanf(v, "%d", &c.Database.Port)
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		c.Database.Name = v
	}
	if v := os.Getenv("DB_USER"); v != "" {
		c.Database.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("MCP_SERVER_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("MCP_SERVER_PORT"); v != "" {
		fmt.Sscanf(v, "%d", &c.Server.Port)
	}
	if v := os.Getenv("SAGE_RETRIEVAL_COUNT"); v != "" {
		fmt.Sscanf(v, "%d", &c.Retrieval.Count)
	}
	if v := os.Getenv("SAGE_SIMILARITY_THRESHOLD"); v != "" {
		fmt.Sscanf(v, "%f", &c.Retrieval.SimilarityThreshold)
	}
	if v := os.Getenv("SAGE_MAX_CONTEXT_TOKENS"); v != "" {
		fmt.Sscanf(v, "%d", &c.Retrieval.MaxContextTokens)
	}
	if v := os.Getenv("SAGE_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Retrieval.CacheTTL = d
		}
	}
	if v := os.Getenv("SAGE_TIME_DECAY"); v != "" {
		fmt.Sscanf(v, "%f", &c.Retrieval.TimeDecay)
	}
	if v := os.Getenv("SAGE_MAX_AGE_DAYS"); v != "" {
		fmt.Sscanf(v, "%d", &c.Retrieval.MaxAgeDays)
	}
}

// Validate enforces ConfigMissing invariants (spec §7): required
// credentials present, dimensions sane. Dimension-vs-provider-probe
// agreement is checked by pkg/embedder at startup, not here.
func (c *Config) Validate() error {
	if c.Embedder.APIKey == "" {
		return sageerr.New(sageerr.ConfigMissing, "config", fmt.Errorf("SILICONFLOW_API_KEY is required"))
	}
	if c.Database.Driver != "sqlite" {
		if c.Database.Host == "" || c.Database.Name == "" || c.Database.User == "" {
			return sageerr.New(sageerr.ConfigMissing, "config", fmt.Errorf("DB_HOST, DB_NAME and DB_USER are required"))
		}
	}
	if c.Embedder.Dimension <= 0 {
		return sageerr.New(sageerr.ConfigMissing, "config", fmt.Errorf("embedder dimension must be positive"))
	}
	if c.Retrieval.Count <= 0 {
		return sageerr.New(sageerr.ConfigMissing, "config", fmt.Errorf("retrieval count must be positive"))
	}
	return nil
}

// DefaultConfigDir returns the platform-appropriate per-user config
// directory (spec §6), honoring SAGE_CONFIG_DIR as an override.
func DefaultConfigDir() (string, error) {
	if v := os.Getenv("SAGE_CONFIG_DIR"); v != "" {
		return v, nil
	}
	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "sage"), nil
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support", "sage"), nil
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "sage"), nil
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "sage"), nil
}

// DefaultHookDir returns the per-user hook-state directory
// (~/.sage_hooks_temp, mode 0700 per spec §6).
func DefaultHookDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".sage_hooks_temp"), nil
}
