// Package backup is the local JSON durability net for the Storage
// Layer (spec §7 StorageTransient/StorageFatal, §8 scenario 6):
// when a save can't be committed, the turn's full input is written
// verbatim to backups/conversation_<session>_<ts>.json so no data is
// lost. Grounded on original_source's sage_stop_hook.py
// save_local_backup, which writes the same
// conversation_<session_id>_<timestamp>.json shape under a file lock
// before falling back further.
package backup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/jetgogoing/sage/pkg/model"
)

const (
	dirMode  = 0o700
	fileMode = 0o600
)

// Writer writes local JSON backups under dir/backups.
type Writer struct {
	dir string
}

// New builds a Writer rooted at dir (typically the per-user config
// directory; the writer creates a "backups" subdirectory under it).
func New(dir string) *Writer {
	return &Writer{dir: filepath.Join(dir, "backups")}
}

// record mirrors sage_stop_hook.py's save_local_backup payload shape:
// a timestamp, a version tag, and the verbatim conversation data.
type record struct {
	BackupTimestamp int64      `json:"backup_timestamp"`
	BackupVersion   string     `json:"backup_version"`
	ConversationData *model.Turn `json:"conversation_data"`
	Reason          string     `json:"reason,omitempty"`
}

const backupVersion = "sage-backup-v1"

// Write persists turn verbatim as backups/conversation_<session>_<ts>.json,
// tagged with reason (the sageerr.Kind that triggered the fallback).
// Best-effort: a failure to write the backup itself is returned so the
// caller can log it, but must never be allowed to mask the original
// storage error.
func (w *Writer) Write(turn *model.Turn, reason string) (string, error) {
	if err := os.MkdirAll(w.dir, dirMode); err != nil {
		return "", fmt.Errorf("create backups dir: %w", err)
	}

	ts := time.Now().Unix()
	session := turn.SessionID
	if session == "" {
		session = "unknown"
	}
	filename := fmt.Sprintf("conversation_%s_%d.json", session, ts)
	path := filepath.Join(w.dir, filename)

	rec := record{
		BackupTimestamp:  ts,
		BackupVersion:    backupVersion,
		ConversationData: turn,
		Reason:           reason,
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal backup record: %w", err)
	}

	lk := flock.New(path + ".lock")
	if err := lk.Lock(); err != nil {
		return "", fmt.Errorf("lock backup file: %w", err)
	}
	defer lk.Unlock()

	if err := os.WriteFile(path, data, fileMode); err != nil {
		return "", fmt.Errorf("write backup file: %w", err)
	}
	return path, nil
}
