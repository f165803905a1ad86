package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jetgogoing/sage/pkg/sageerr"
)

// recoverCorrupted implements the ConfigMissing recovery path (spec
// §7): move the unreadable config.json aside to backups/corrupted/
// and write a fresh default in its place, mirroring original_source's
// config_manager.py behavior. The returned error is always
// ConfigMissing; Loader.Load treats it as fatal, so the process
// refuses to start and the operator sees why the config was reset
// rather than silently losing unknown settings.
func recoverCorrupted(path string, cause error) (*Config, error) {
	corruptDir := filepath.Join(filepath.Dir(path), "backups", "corrupted")
	if err := os.MkdirAll(corruptDir, 0o755); err != nil {
		return nil, fmt.Errorf("prepare corrupted-config backup dir: %w", err)
	}

	dest := filepath.Join(corruptDir, fmt.Sprintf("config-%d.json", time.Now().UnixNano()))
	if err := os.Rename(path, dest); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("move corrupted config aside: %w", err)
	}

	cfg := &Config{}
	cfg.SetDefaults()
	if err := atomicWriteJSON(path, cfg); err != nil {
		return nil, fmt.Errorf("write default config after corruption recovery: %w", err)
	}

	return cfg, sageerr.New(sageerr.ConfigMissing, "config",
		fmt.Errorf("config.json was corrupt (%w); moved to %s and replaced with defaults", cause, dest))
}
