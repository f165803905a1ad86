package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jetgogoing/sage/pkg/config/provider"
)

// Loader resolves sage's layered Config (defaults -> config.json ->
// env) and optionally watches config.json for hot reload. Adapted
// from kadirpekel/hector's pkg/config.Loader.
type Loader struct {
	provider provider.Provider
	path     string

	mu      sync.RWMutex
	current *Config
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// NewLoader builds a Loader reading from the file at path.
func NewLoader(path string, opts ...LoaderOption) (*Loader, error) {
	p, err := provider.New(provider.ProviderConfig{Type: provider.TypeFile, Path: path})
	if err != nil {
		return nil, err
	}
	l := &Loader{provider: p, path: path}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Load reads config.json (recovering from corruption, see backup.go),
// applies defaults and environment overrides, and validates the
// result.
func (l *Loader) Load(ctx context.Context) (*Config, error) {
	data, err := l.provider.Load(ctx)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := &Config{}
			cfg.SetDefaults()
			if werr := l.save(cfg); werr != nil {
				return nil, fmt.Errorf("write default config: %w", werr)
			}
			cfg.ApplyEnv()
			l.setCurrent(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("load config: %w", err)
	}

	cfg, parseErr := parseConfig(data)
	if parseErr != nil {
		recovered, rerr := recoverCorrupted(l.path, parseErr)
		if rerr != nil {
			return nil, rerr
		}
		recovered.ApplyEnv()
		l.setCurrent(recovered)
		return recovered, nil
	}

	cfg.SetDefaults()
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	l.setCurrent(cfg)
	return cfg, nil
}

func parseConfig(data []byte) (*Config, error) {
	expanded := ExpandEnvVarsInBytes(data)
	cfg := &Config{}
	if err := json.Unmarshal(expanded, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) setCurrent(cfg *Config) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.current = cfg
}

// Current returns the most recently loaded Config.
func (l *Loader) Current() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// Watch starts watching config.json and re-loads it on each change,
// invoking onChange with the new Config. Stops when ctx is done.
func (l *Loader) Watch(ctx context.Context, onChange func(*Config)) error {
	ch, err := l.provider.Watch(ctx)
	if err != nil {
		return err
	}
	go func() {
		for range ch {
			cfg, err := l.Load(ctx)
			if err != nil {
				continue
			}
			if onChange != nil {
				onChange(cfg)
			}
		}
	}()
	return nil
}

// Close releases the underlying provider's resources.
func (l *Loader) Close() error {
	return l.provider.Close()
}

// save atomically writes cfg as the config.json at l.path: write to a
// temp file in the same directory, then rename over the target so a
// reader never observes a partial write.
func (l *Loader) save(cfg *Config) error {
	return atomicWriteJSON(l.path, cfg)
}

// Save re-persists cfg (e.g. after a programmatic change) atomically.
func (l *Loader) Save(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := l.save(cfg); err != nil {
		return err
	}
	l.setCurrent(cfg)
	return nil
}

func atomicWriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return snapshot(path, data)
}

// snapshot keeps the last 10 config.json versions under backups/ (spec
// §6), named by timestamp so the newest sorts last.
func snapshot(path string, data []byte) error {
	dir := filepath.Join(filepath.Dir(path), "backups")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	name := fmt.Sprintf("config-%d.json", time.Now().UnixNano())
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return err
	}
	return pruneSnapshots(dir, 10)
}

func pruneSnapshots(dir string, keep int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	if len(entries) <= keep {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		// backups/ is shared with pkg/backup's conversation dumps; only
		// config snapshots are pruned.
		if !e.IsDir() && strings.HasPrefix(e.Name(), "config-") {
			names = append(names, e.Name())
		}
	}
	if len(names) <= keep {
		return nil
	}
	// Names embed a nanosecond timestamp, so lexical sort is chronological.
	for i := 0; i < len(names)-keep; i++ {
		_ = os.Remove(filepath.Join(dir, names[i]))
	}
	return nil
}
